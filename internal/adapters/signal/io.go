package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/astralforge/lobby/internal/core"
	"github.com/astralforge/lobby/internal/domain"
)

func (ctl *LobbyWSController) writePump(ctx context.Context, c *WsLobbyConn) {
	ticker := time.NewTicker(ctl.Cfg.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *LobbyWSController) readPump(ctx context.Context, sid core.SessionID, c *WsLobbyConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.onDisconnect(sid)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				return
			}
			ctl.handleCommand(sid, c, data)
		}
	}
}

// onDisconnect clears the dropped player out of its party and the registry.
func (ctl *LobbyWSController) onDisconnect(sid core.SessionID) {
	player := ctl.Registry.GetOrCreatePlayer(sid)
	ctl.Parties.Disconnect(player)
	ctl.Guard.Transition(player, domain.StateIdle)
	ctl.Registry.Unbind(sid)
}

func (ctl *LobbyWSController) handleCommand(sid core.SessionID, c *WsLobbyConn, data []byte) {
	var env struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Command {
	case "invite_to_party":
		ctl.handleInvite(sid, c, data)
	case "accept_party_invite":
		ctl.handleAccept(sid, c, data)
	case "set_party_factions":
		ctl.handleSetFactions(sid, c, data)
	case "ready_party":
		ctl.handleReady(sid, c)
	case "unready_party":
		ctl.handleUnready(sid, c)
	case "kick_player_from_party":
		ctl.handleKick(sid, c, data)
	case "leave_party":
		ctl.handleLeave(sid, c)
	case "game_matchmaking":
		ctl.handleMatchmaking(sid, c, data)
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("command", env.Command).Msg("unknown command")
	}
}
