package party

import (
	"sync"
	"time"

	"github.com/astralforge/lobby/internal/domain"
)

// InviteRateLimiter bounds how many invites a player may send inside a
// sliding window, keeping invite spam off other players' screens.
type InviteRateLimiter struct {
	mu     sync.Mutex
	sent   map[domain.PlayerID][]time.Time
	limit  int
	window time.Duration
}

func NewInviteRateLimiter(limit int, window time.Duration) *InviteRateLimiter {
	return &InviteRateLimiter{
		sent:   make(map[domain.PlayerID][]time.Time),
		limit:  limit,
		window: window,
	}
}

// Allow records one invite attempt unless the player already sent limit
// invites inside the window. Expired timestamps are pruned on each call, so
// the per-player history never outgrows the limit by more than one entry.
func (rl *InviteRateLimiter) Allow(id domain.PlayerID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.window)
	recent := rl.sent[id][:0]
	for _, ts := range rl.sent[id] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= rl.limit {
		rl.sent[id] = recent
		return false
	}
	rl.sent[id] = append(recent, time.Now())
	return true
}
