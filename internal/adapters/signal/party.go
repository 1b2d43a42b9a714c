package signal

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/astralforge/lobby/internal/app"
	"github.com/astralforge/lobby/internal/core"
	"github.com/astralforge/lobby/internal/domain"
	"github.com/astralforge/lobby/internal/party"
)

// replyErr translates command failures to wire messages. Guard rejections win
// over everything else; notice errors carry their fixed text; anything left is
// only logged.
func (ctl *LobbyWSController) replyErr(conn *WsLobbyConn, err error) {
	if err == nil {
		return
	}
	var inv *app.InvalidStateError
	if errors.As(err, &inv) {
		ctl.sendJSON(conn, struct {
			Command string             `json:"command"`
			State   domain.PlayerState `json:"state"`
		}{
			Command: "invalid_state",
			State:   inv.State,
		})
		return
	}
	var notice *party.NoticeError
	if errors.As(err, &notice) {
		ctl.sendJSON(conn, struct {
			Command string `json:"command"`
			Style   string `json:"style"`
			Text    string `json:"text"`
		}{
			Command: "notice",
			Style:   "error",
			Text:    notice.Text,
		})
		return
	}
	log.Error().Err(err).Str("module", "signal").Msg("party command failed")
}

func (ctl *LobbyWSController) handleInvite(sid core.SessionID, conn *WsLobbyConn, data []byte) {
	var p struct {
		Command     string          `json:"command"`
		RecipientID domain.PlayerID `json:"recipient_id"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad invite payload")
		return
	}
	player := ctl.Registry.GetOrCreatePlayer(sid)
	ctl.replyErr(conn, ctl.Parties.Invite(player, p.RecipientID))
}

func (ctl *LobbyWSController) handleAccept(sid core.SessionID, conn *WsLobbyConn, data []byte) {
	var p struct {
		Command  string          `json:"command"`
		SenderID domain.PlayerID `json:"sender_id"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad accept payload")
		return
	}
	player := ctl.Registry.GetOrCreatePlayer(sid)
	ctl.replyErr(conn, ctl.Parties.Accept(player, p.SenderID))
}

func (ctl *LobbyWSController) handleSetFactions(sid core.SessionID, conn *WsLobbyConn, data []byte) {
	var p struct {
		Command  string `json:"command"`
		Factions []bool `json:"factions"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad factions payload")
		return
	}
	if len(p.Factions) != domain.FactionCount {
		log.Warn().Str("module", "signal").Int("count", len(p.Factions)).Msg("wrong faction count")
		return
	}
	var factions [domain.FactionCount]bool
	copy(factions[:], p.Factions)
	player := ctl.Registry.GetOrCreatePlayer(sid)
	ctl.replyErr(conn, ctl.Parties.SetFactions(player, factions))
}

func (ctl *LobbyWSController) handleReady(sid core.SessionID, conn *WsLobbyConn) {
	player := ctl.Registry.GetOrCreatePlayer(sid)
	ctl.replyErr(conn, ctl.Parties.Ready(player))
}

func (ctl *LobbyWSController) handleUnready(sid core.SessionID, conn *WsLobbyConn) {
	player := ctl.Registry.GetOrCreatePlayer(sid)
	ctl.replyErr(conn, ctl.Parties.Unready(player))
}

func (ctl *LobbyWSController) handleKick(sid core.SessionID, conn *WsLobbyConn, data []byte) {
	var p struct {
		Command        string          `json:"command"`
		KickedPlayerID domain.PlayerID `json:"kicked_player_id"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad kick payload")
		return
	}
	player := ctl.Registry.GetOrCreatePlayer(sid)
	ctl.replyErr(conn, ctl.Parties.Kick(player, p.KickedPlayerID))
}

func (ctl *LobbyWSController) handleLeave(sid core.SessionID, conn *WsLobbyConn) {
	player := ctl.Registry.GetOrCreatePlayer(sid)
	ctl.replyErr(conn, ctl.Parties.Leave(player))
}
