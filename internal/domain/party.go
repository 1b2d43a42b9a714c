package domain

import "errors"

// FactionCount is the number of faction availability flags per member.
const FactionCount = 4

var ErrFactionCount = errors.New("faction list must have exactly 4 entries")

// PartyMember is one player's per-party settings.
// Owned exclusively by the Party that contains it.
type PartyMember struct {
	PlayerID PlayerID
	Factions [FactionCount]bool
	Ready    bool
}

// NewPartyMember returns a member with every faction available and not ready.
func NewPartyMember(id PlayerID) *PartyMember {
	return &PartyMember{
		PlayerID: id,
		Factions: [FactionCount]bool{true, true, true, true},
	}
}

// Party is an ordered group of players. The owner is always Members[0];
// ownership never transfers, the owner leaving disbands the party.
type Party struct {
	OwnerID PlayerID
	Members []*PartyMember
}

func NewParty(ownerID PlayerID) *Party {
	return &Party{
		OwnerID: ownerID,
		Members: []*PartyMember{NewPartyMember(ownerID)},
	}
}

// Member returns the member record for id, or nil.
func (p *Party) Member(id PlayerID) *PartyMember {
	for _, m := range p.Members {
		if m.PlayerID == id {
			return m
		}
	}
	return nil
}

// Add appends a fresh member, preserving join order.
func (p *Party) Add(id PlayerID) *PartyMember {
	m := NewPartyMember(id)
	p.Members = append(p.Members, m)
	return m
}

// Remove drops the member with id, compacting without re-sorting.
// Returns false if id is not a member.
func (p *Party) Remove(id PlayerID) bool {
	for i, m := range p.Members {
		if m.PlayerID == id {
			p.Members = append(p.Members[:i], p.Members[i+1:]...)
			return true
		}
	}
	return false
}

// MemberIDs lists member ids in owner-first join order.
func (p *Party) MemberIDs() []PlayerID {
	ids := make([]PlayerID, 0, len(p.Members))
	for _, m := range p.Members {
		ids = append(ids, m.PlayerID)
	}
	return ids
}

func (p *Party) Empty() bool { return len(p.Members) == 0 }
