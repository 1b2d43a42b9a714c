// Package matchmaker owns the ladder-search state transitions. The queue's
// own matching logic lives elsewhere; the lobby only needs players to enter
// and leave the searching state through the guard so party commands see it.
package matchmaker

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/astralforge/lobby/internal/app"
	"github.com/astralforge/lobby/internal/core"
	"github.com/astralforge/lobby/internal/domain"
)

// SessionDirectory resolves a connected player to its transport session.
type SessionDirectory interface {
	SessionOf(domain.PlayerID) (core.PlayerSession, bool)
}

type Service struct {
	guard    *app.StateGuard
	sessions SessionDirectory
}

func NewService(guard *app.StateGuard, sessions SessionDirectory) *Service {
	return &Service{guard: guard, sessions: sessions}
}

type searchInfo struct {
	Command string `json:"command"`
	State   string `json:"state"`
}

// StartSearch puts an idle player into the ladder queue.
func (s *Service) StartSearch(p *domain.Player) error {
	if err := s.guard.Begin(p, domain.StateSearchingLadder); err != nil {
		return err
	}
	log.Info().Str("module", "matchmaker").Int("player", int(p.ID)).Msg("search started")
	s.notify(p.ID, "start")
	return nil
}

// StopSearch returns a searching player to idle. Ineffective for players in
// any other state, so a stale stop can't yank someone out of a game.
func (s *Service) StopSearch(p *domain.Player) {
	if s.guard.StateOf(p) != domain.StateSearchingLadder {
		return
	}
	s.guard.Transition(p, domain.StateIdle)
	log.Info().Str("module", "matchmaker").Int("player", int(p.ID)).Msg("search stopped")
	s.notify(p.ID, "stop")
}

func (s *Service) notify(id domain.PlayerID, state string) {
	frame, err := json.Marshal(searchInfo{Command: "search_info", State: state})
	if err != nil {
		log.Error().Err(err).Str("module", "matchmaker").Msg("search_info marshal")
		return
	}
	sess, ok := s.sessions.SessionOf(id)
	if !ok {
		return
	}
	if err := sess.Signal().TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "matchmaker").Int("player", int(id)).Msg("search_info dropped")
	}
}
