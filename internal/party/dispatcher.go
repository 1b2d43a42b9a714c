package party

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/astralforge/lobby/internal/core"
	"github.com/astralforge/lobby/internal/domain"
)

// SessionDirectory resolves a connected player to its transport session.
type SessionDirectory interface {
	SessionOf(domain.PlayerID) (core.PlayerSession, bool)
}

// Dispatcher fans party snapshots out to member connections. Delivery is
// best-effort: a full send queue or a vanished session drops that copy and
// never rolls back the mutation that produced it.
type Dispatcher struct {
	sessions SessionDirectory
}

func NewDispatcher(sessions SessionDirectory) *Dispatcher {
	return &Dispatcher{sessions: sessions}
}

type memberSnapshot struct {
	Player   domain.PlayerID           `json:"player"`
	Factions [domain.FactionCount]bool `json:"factions"`
	Ready    bool                      `json:"ready"`
}

type partyUpdate struct {
	Command string           `json:"command"`
	Owner   domain.PlayerID  `json:"owner"`
	Members []memberSnapshot `json:"members"`
}

type partyInvite struct {
	Command string          `json:"command"`
	Sender  domain.PlayerID `json:"sender"`
}

func snapshotOf(p *domain.Party) partyUpdate {
	members := make([]memberSnapshot, 0, len(p.Members))
	for _, m := range p.Members {
		members = append(members, memberSnapshot{
			Player:   m.PlayerID,
			Factions: m.Factions,
			Ready:    m.Ready,
		})
	}
	return partyUpdate{Command: "update_party", Owner: p.OwnerID, Members: members}
}

// BroadcastUpdate sends one identical update_party snapshot to every current
// member, plus any extra recipients (a member removed by this very change).
func (d *Dispatcher) BroadcastUpdate(p *domain.Party, extra ...domain.PlayerID) {
	frame, err := json.Marshal(snapshotOf(p))
	if err != nil {
		log.Error().Err(err).Str("module", "party.dispatcher").Msg("snapshot marshal")
		return
	}
	for _, id := range p.MemberIDs() {
		d.push(id, frame)
	}
	for _, id := range extra {
		d.push(id, frame)
	}
}

// BroadcastDisband sends the terminal snapshot (last-known owner, no members)
// to every former member.
func (d *Dispatcher) BroadcastDisband(ownerID domain.PlayerID, to []domain.PlayerID) {
	frame, err := json.Marshal(partyUpdate{
		Command: "update_party",
		Owner:   ownerID,
		Members: []memberSnapshot{},
	})
	if err != nil {
		log.Error().Err(err).Str("module", "party.dispatcher").Msg("snapshot marshal")
		return
	}
	for _, id := range to {
		d.push(id, frame)
	}
}

// SendInvite notifies the invited player.
func (d *Dispatcher) SendInvite(recipientID, senderID domain.PlayerID) {
	frame, err := json.Marshal(partyInvite{Command: "party_invite", Sender: senderID})
	if err != nil {
		log.Error().Err(err).Str("module", "party.dispatcher").Msg("invite marshal")
		return
	}
	d.push(recipientID, frame)
}

func (d *Dispatcher) push(id domain.PlayerID, frame core.Frame) {
	sess, ok := d.sessions.SessionOf(id)
	if !ok {
		log.Debug().Str("module", "party.dispatcher").Int("player", int(id)).Msg("no session, dropping push")
		return
	}
	if err := sess.Signal().TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "party.dispatcher").Int("player", int(id)).Msg("push dropped")
	}
}
