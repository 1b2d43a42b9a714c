package party

import (
	"github.com/rs/zerolog/log"

	"github.com/astralforge/lobby/internal/domain"
)

// Guard gates party commands on the commanding player's activity state and
// serializes the guarded mutation with state transitions. Exclusive runs a
// mutation under the same lock without the eligibility check.
type Guard interface {
	Authorize(p *domain.Player, fn func() error) error
	Exclusive(fn func())
}

// InviteLimiter caps how fast a player may send invites. Nil means unlimited.
type InviteLimiter interface {
	Allow(domain.PlayerID) bool
}

// PlayerDirectory resolves ids among currently connected players.
type PlayerDirectory interface {
	PlayerByID(domain.PlayerID) (*domain.Player, bool)
}

// Service handles party commands: it validates them against the guard and the
// registry, applies the mutation, and notifies every affected connection.
// It never retains party references across commands; every read goes back
// through the registry.
type Service struct {
	registry *Registry
	guard    Guard
	players  PlayerDirectory
	dispatch *Dispatcher
	limiter  InviteLimiter
}

func NewService(registry *Registry, guard Guard, players PlayerDirectory, dispatch *Dispatcher, limiter InviteLimiter) *Service {
	return &Service{
		registry: registry,
		guard:    guard,
		players:  players,
		dispatch: dispatch,
		limiter:  limiter,
	}
}

// Invite records a pending invite for the recipient (latest invite wins) and
// notifies them. The recipient's own state is not checked; only acceptance
// moves players.
func (s *Service) Invite(sender *domain.Player, recipientID domain.PlayerID) error {
	return s.guard.Authorize(sender, func() error {
		if s.limiter != nil && !s.limiter.Allow(sender.ID) {
			log.Warn().Str("module", "party.service").Int("player", int(sender.ID)).Msg("invite rate limited")
			return errTooManyInvites
		}
		if recipientID == sender.ID {
			return errSelfInvite
		}
		if _, ok := s.players.PlayerByID(recipientID); !ok {
			return errInvitedNotFound
		}
		s.registry.SetInvite(recipientID, sender.ID)
		s.dispatch.SendInvite(recipientID, sender.ID)
		return nil
	})
}

// Accept consumes a matching pending invite and joins the sender's party,
// creating it if the sender has none yet. A mismatched or missing invite is
// left untouched, as is an accept from a player already in a party.
func (s *Service) Accept(p *domain.Player, senderID domain.PlayerID) error {
	return s.guard.Authorize(p, func() error {
		if senderID == p.ID {
			return errInvitingNotFound
		}
		sender, ok := s.players.PlayerByID(senderID)
		if !ok {
			return errInvitingNotFound
		}
		pending, ok := s.registry.Invite(p.ID)
		if !ok || pending != senderID {
			return errInvitingNotFound
		}
		if s.registry.Party(p.ID) != nil {
			return errAlreadyInParty
		}

		var joined *domain.Party
		if existing := s.registry.Party(sender.ID); existing != nil {
			if err := s.registry.AddMember(existing, p.ID); err != nil {
				return err
			}
			joined = existing
		} else {
			created, err := s.registry.CreatePartyWith(sender.ID, p.ID)
			if err != nil {
				return err
			}
			joined = created
		}
		s.registry.PopInvite(p.ID)
		s.dispatch.BroadcastUpdate(joined)
		return nil
	})
}

// SetFactions replaces the player's faction availability flags.
// Without a party the command is ineffective.
func (s *Service) SetFactions(p *domain.Player, factions [domain.FactionCount]bool) error {
	return s.guard.Authorize(p, func() error {
		if err := s.registry.MutateMember(p.ID, func(m *domain.PartyMember) {
			m.Factions = factions
		}); err != nil {
			return nil
		}
		s.dispatch.BroadcastUpdate(s.registry.Party(p.ID))
		return nil
	})
}

// Ready marks the player ready. Without a party the command is ineffective.
func (s *Service) Ready(p *domain.Player) error {
	return s.setReady(p, true)
}

// Unready clears the player's ready flag.
func (s *Service) Unready(p *domain.Player) error {
	return s.setReady(p, false)
}

func (s *Service) setReady(p *domain.Player, ready bool) error {
	return s.guard.Authorize(p, func() error {
		if err := s.registry.MutateMember(p.ID, func(m *domain.PartyMember) {
			m.Ready = ready
		}); err != nil {
			return nil
		}
		s.dispatch.BroadcastUpdate(s.registry.Party(p.ID))
		return nil
	})
}

// Kick removes a member from the commander's party. Only the owner may kick;
// the kicked player still receives the post-removal snapshot as their
// terminal view of the party.
func (s *Service) Kick(owner *domain.Player, kickedID domain.PlayerID) error {
	return s.guard.Authorize(owner, func() error {
		if _, ok := s.players.PlayerByID(kickedID); !ok {
			return errKickedNotFound
		}
		p := s.registry.Party(owner.ID)
		if p == nil || p.OwnerID != owner.ID {
			return nil
		}
		if p.Member(kickedID) == nil {
			return errKickedNotFound
		}
		removed, disbanded := s.registry.RemoveMember(p, kickedID)
		if disbanded {
			s.dispatch.BroadcastDisband(p.OwnerID, append(removed, kickedID))
		} else {
			s.dispatch.BroadcastUpdate(p, kickedID)
		}
		return nil
	})
}

// Leave removes the player from their party. The owner leaving disbands the
// whole party; every former member sees the terminal empty snapshot.
func (s *Service) Leave(p *domain.Player) error {
	return s.guard.Authorize(p, func() error {
		s.leave(p)
		return nil
	})
}

// Disconnect cleans a dropped connection out of its party. The eligibility
// check is skipped on purpose, a player who vanishes mid-search must still be
// removed, but the mutation runs under the guard lock like every command so
// it can't interleave with another command's read-then-mutate sequence.
func (s *Service) Disconnect(p *domain.Player) {
	log.Info().Str("module", "party.service").Int("player", int(p.ID)).Msg("disconnect cleanup")
	s.guard.Exclusive(func() {
		s.leave(p)
	})
}

func (s *Service) leave(p *domain.Player) {
	current := s.registry.Party(p.ID)
	if current == nil {
		return
	}
	removed, disbanded := s.registry.RemoveMember(current, p.ID)
	if disbanded {
		s.dispatch.BroadcastDisband(current.OwnerID, append(removed, p.ID))
	} else {
		s.dispatch.BroadcastUpdate(current, p.ID)
	}
}
