package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/astralforge/lobby/internal/core"
)

func (ctl *LobbyWSController) handleMatchmaking(sid core.SessionID, conn *WsLobbyConn, data []byte) {
	var p struct {
		Command string `json:"command"`
		State   string `json:"state"`
		Faction string `json:"faction"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad matchmaking payload")
		return
	}
	player := ctl.Registry.GetOrCreatePlayer(sid)
	switch p.State {
	case "start":
		ctl.replyErr(conn, ctl.Matchmaker.StartSearch(player))
	case "stop":
		ctl.Matchmaker.StopSearch(player)
	default:
		log.Warn().Str("module", "signal").Str("state", p.State).Msg("unknown matchmaking state")
	}
}
