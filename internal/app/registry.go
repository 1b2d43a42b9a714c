package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/astralforge/lobby/internal/core"
	"github.com/astralforge/lobby/internal/domain"
)

type sessionEntry struct {
	PlayerID domain.PlayerID
	Session  core.PlayerSession
	Cancel   context.CancelFunc
}

// Registry tracks connected players and their transport sessions.
// Player records persist across reconnects of the same client token;
// connectivity means a bound session.
type Registry struct {
	mu       sync.RWMutex
	nextID   domain.PlayerID
	players  map[core.SessionID]*domain.Player
	sessions map[core.SessionID]*sessionEntry
	byPlayer map[domain.PlayerID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{
		players:  make(map[core.SessionID]*domain.Player),
		sessions: make(map[core.SessionID]*sessionEntry),
		byPlayer: make(map[domain.PlayerID]*sessionEntry),
	}
}

// GetOrCreatePlayer resolves the client token to a player, minting a fresh
// numeric id and login on first sight.
func (r *Registry) GetOrCreatePlayer(sid core.SessionID) *domain.Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.players[sid]; ok {
		return p
	}
	r.nextID++
	p := domain.NewPlayer(r.nextID, fmt.Sprintf("guest-%d", r.nextID))
	r.players[sid] = p
	log.Info().Str("module", "app.registry").Int("player", int(p.ID)).Str("sid", string(sid)).Msg("created new player")
	return p
}

// BindSignal attaches a live session to the client token.
func (r *Registry) BindSignal(sid core.SessionID, sess core.PlayerSession, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := &sessionEntry{PlayerID: sess.Player().ID, Session: sess, Cancel: cancel}
	r.sessions[sid] = entry
	r.byPlayer[entry.PlayerID] = entry
	log.Info().Str("module", "app.registry").Int("player", int(entry.PlayerID)).Str("sid", string(sid)).Msg("bound session")
}

// Unbind drops the session; the player is no longer connected.
func (r *Registry) Unbind(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.sessions[sid]; ok {
		delete(r.byPlayer, entry.PlayerID)
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbound session")
}

// PlayerByID resolves a player id among currently connected players.
func (r *Registry) PlayerByID(id domain.PlayerID) (*domain.Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.byPlayer[id]
	if !ok {
		return nil, false
	}
	return entry.Session.Player(), true
}

// SessionOf returns the live session for a connected player.
func (r *Registry) SessionOf(id domain.PlayerID) (core.PlayerSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.byPlayer[id]
	if !ok {
		return nil, false
	}
	return entry.Session, true
}

// IsConnected reports whether a player id has a bound session.
func (r *Registry) IsConnected(id domain.PlayerID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byPlayer[id]
	return ok
}

// ConnectedPlayers snapshots every connected player.
func (r *Registry) ConnectedPlayers() []*domain.Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Player, 0, len(r.byPlayer))
	for _, entry := range r.byPlayer {
		out = append(out, entry.Session.Player())
	}
	return out
}

// Cancel tears down the connection context for a client token, if any.
func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	entry, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if entry.Cancel != nil {
		entry.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
