package app

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/astralforge/lobby/internal/domain"
)

// InvalidStateError is returned when a player tries a party action while
// engaged elsewhere (queuing, hosting, playing). Carries the offending state.
type InvalidStateError struct {
	State domain.PlayerState
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid player state %s", e.State)
}

// StateGuard owns every player's activity state. A single mutex covers both
// state transitions and guarded party mutations, so an authorization check
// can never be split from its mutation by a concurrent transition.
type StateGuard struct {
	mu sync.Mutex
}

func NewStateGuard() *StateGuard {
	return &StateGuard{}
}

// Authorize runs fn under the state lock if p may issue party commands.
// fn must not block; it runs with the lock held.
func (g *StateGuard) Authorize(p *domain.Player, fn func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !p.State.PartyEligible() {
		log.Debug().Str("module", "app.guard").Int("player", int(p.ID)).Stringer("state", p.State).Msg("rejected by state guard")
		return &InvalidStateError{State: p.State}
	}
	return fn()
}

// Exclusive runs fn under the state lock without an eligibility check.
// Used for cleanup that must serialize with commands but never be refused.
func (g *StateGuard) Exclusive(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn()
}

// Begin moves an idle player into an engaged state, failing with
// InvalidStateError if the player is already engaged.
func (g *StateGuard) Begin(p *domain.Player, to domain.PlayerState) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !p.State.PartyEligible() {
		return &InvalidStateError{State: p.State}
	}
	p.State = to
	log.Info().Str("module", "app.guard").Int("player", int(p.ID)).Stringer("state", to).Msg("state transition")
	return nil
}

// Transition sets the state unconditionally (search stop, disconnect cleanup).
func (g *StateGuard) Transition(p *domain.Player, to domain.PlayerState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p.State = to
	log.Info().Str("module", "app.guard").Int("player", int(p.ID)).Stringer("state", to).Msg("state transition")
}

// StateOf reads the state under the lock.
func (g *StateGuard) StateOf(p *domain.Player) domain.PlayerState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return p.State
}
