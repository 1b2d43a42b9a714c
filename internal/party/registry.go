package party

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/astralforge/lobby/internal/domain"
)

var (
	ErrAlreadyInParty = errors.New("player already belongs to a party")
	ErrNotInParty     = errors.New("player is not in a party")
)

// Registry is the in-memory store of parties and pending invitations.
// Every member of a party maps to the same *domain.Party, so membership
// lookups never walk all parties. Pending invites are keyed by recipient
// with latest-invite-wins semantics.
type Registry struct {
	mu      sync.Mutex
	parties map[domain.PlayerID]*domain.Party
	invites map[domain.PlayerID]domain.PlayerID // recipient -> sender
}

func NewRegistry() *Registry {
	return &Registry{
		parties: make(map[domain.PlayerID]*domain.Party),
		invites: make(map[domain.PlayerID]domain.PlayerID),
	}
}

// Party returns the party the player belongs to, or nil.
func (r *Registry) Party(id domain.PlayerID) *domain.Party {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.parties[id]
}

// CreatePartyWith forms a fresh two-member party, owner first.
func (r *Registry) CreatePartyWith(ownerID, joinerID domain.PlayerID) (*domain.Party, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.parties[ownerID] != nil || r.parties[joinerID] != nil {
		return nil, ErrAlreadyInParty
	}
	p := domain.NewParty(ownerID)
	p.Add(joinerID)
	r.parties[ownerID] = p
	r.parties[joinerID] = p
	log.Info().Str("module", "party.registry").Int("owner", int(ownerID)).Int("joiner", int(joinerID)).Msg("party created")
	return p, nil
}

// AddMember appends a new member with default settings.
func (r *Registry) AddMember(p *domain.Party, id domain.PlayerID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.parties[id] != nil {
		return ErrAlreadyInParty
	}
	p.Add(id)
	r.parties[id] = p
	log.Info().Str("module", "party.registry").Int("player", int(id)).Int("owner", int(p.OwnerID)).Msg("member added")
	return nil
}

// RemoveMember removes the member from the party. Removing the owner (or the
// last member) disbands: every former member's entry is cleared. Returns the
// ids whose entries were removed beyond the leaver, and whether the party
// was disbanded.
func (r *Registry) RemoveMember(p *domain.Party, id domain.PlayerID) (removed []domain.PlayerID, disbanded bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !p.Remove(id) {
		return nil, false
	}
	delete(r.parties, id)
	if id != p.OwnerID && !p.Empty() {
		log.Info().Str("module", "party.registry").Int("player", int(id)).Int("owner", int(p.OwnerID)).Msg("member removed")
		return nil, false
	}
	removed = p.MemberIDs()
	for _, mid := range removed {
		delete(r.parties, mid)
	}
	p.Members = nil
	log.Info().Str("module", "party.registry").Int("owner", int(p.OwnerID)).Msg("party disbanded")
	return removed, true
}

// SetInvite records a pending invite, overwriting any prior one for the
// recipient.
func (r *Registry) SetInvite(recipientID, senderID domain.PlayerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invites[recipientID] = senderID
	log.Info().Str("module", "party.registry").Int("recipient", int(recipientID)).Int("sender", int(senderID)).Msg("invite set")
}

// Invite peeks at the pending invite for the recipient without consuming it.
func (r *Registry) Invite(recipientID domain.PlayerID) (domain.PlayerID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	senderID, ok := r.invites[recipientID]
	return senderID, ok
}

// PopInvite atomically reads and clears the pending invite.
func (r *Registry) PopInvite(recipientID domain.PlayerID) (domain.PlayerID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	senderID, ok := r.invites[recipientID]
	if ok {
		delete(r.invites, recipientID)
	}
	return senderID, ok
}

// MutateMember applies fn to the player's member record under the lock.
func (r *Registry) MutateMember(id domain.PlayerID, fn func(*domain.PartyMember)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.parties[id]
	if p == nil {
		return ErrNotInParty
	}
	m := p.Member(id)
	if m == nil {
		return ErrNotInParty
	}
	fn(m)
	return nil
}

// Count reports the number of distinct parties, for the inspection API.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[*domain.Party]struct{})
	for _, p := range r.parties {
		seen[p] = struct{}{}
	}
	return len(seen)
}

// Parties snapshots every distinct party, for the inspection API.
func (r *Registry) Parties() []*domain.Party {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[*domain.Party]struct{})
	out := make([]*domain.Party, 0, len(r.parties))
	for _, p := range r.parties {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
