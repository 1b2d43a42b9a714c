package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/astralforge/lobby/internal/app"
	"github.com/astralforge/lobby/internal/config"
	"github.com/astralforge/lobby/internal/core"
	"github.com/astralforge/lobby/internal/domain"
	"github.com/astralforge/lobby/internal/matchmaker"
	"github.com/astralforge/lobby/internal/party"
)

var ErrBackpressure = errors.New("backpressure")

// LobbyWSController serves the lobby websocket: one connection per player,
// JSON command envelopes in, push messages out.
type LobbyWSController struct {
	Registry   *app.Registry
	Guard      *app.StateGuard
	Parties    *party.Service
	Matchmaker *matchmaker.Service
	Cfg        *config.Config
}

func NewLobbyWSController(
	registry *app.Registry,
	guard *app.StateGuard,
	parties *party.Service,
	mm *matchmaker.Service,
	cfg *config.Config,
) *LobbyWSController {
	return &LobbyWSController{
		Registry:   registry,
		Guard:      guard,
		Parties:    parties,
		Matchmaker: mm,
		Cfg:        cfg,
	}
}

type WsLobbyConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsLobbyConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsLobbyConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *LobbyWSController) HandleLobby(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.Cfg.ReadLimit)

	conn := &WsLobbyConn{
		conn: ws,
		send: make(chan core.Frame, ctl.Cfg.SendQueue),
	}

	player := ctl.Registry.GetOrCreatePlayer(sid)
	sess := core.NewPlayerSession(player, conn)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Registry.BindSignal(sid, sess, cancel)

	ctl.sendJSON(conn, struct {
		Command  string          `json:"command"`
		PlayerID domain.PlayerID `json:"player_id"`
		Login    string          `json:"login"`
	}{
		Command:  "welcome",
		PlayerID: player.ID,
		Login:    player.Login,
	})

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, conn)
}

func (ctl *LobbyWSController) sendJSON(c *WsLobbyConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}
