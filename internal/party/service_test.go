package party

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/astralforge/lobby/internal/app"
	"github.com/astralforge/lobby/internal/core"
	"github.com/astralforge/lobby/internal/domain"
)

type fakeConn struct {
	frames []core.Frame
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {}

// fakeLobby plays both directories: connected players and their sessions.
type fakeLobby struct {
	players map[domain.PlayerID]*domain.Player
	conns   map[domain.PlayerID]*fakeConn
}

func newFakeLobby() *fakeLobby {
	return &fakeLobby{
		players: make(map[domain.PlayerID]*domain.Player),
		conns:   make(map[domain.PlayerID]*fakeConn),
	}
}

func (l *fakeLobby) add(id domain.PlayerID) *domain.Player {
	p := domain.NewPlayer(id, fmt.Sprintf("guest-%d", id))
	l.players[id] = p
	l.conns[id] = &fakeConn{}
	return p
}

func (l *fakeLobby) PlayerByID(id domain.PlayerID) (*domain.Player, bool) {
	p, ok := l.players[id]
	return p, ok
}

func (l *fakeLobby) SessionOf(id domain.PlayerID) (core.PlayerSession, bool) {
	p, ok := l.players[id]
	if !ok {
		return nil, false
	}
	return core.NewPlayerSession(p, l.conns[id]), true
}

func (l *fakeLobby) frames(id domain.PlayerID) []core.Frame {
	return l.conns[id].frames
}

func (l *fakeLobby) lastFrame(t *testing.T, id domain.PlayerID) map[string]any {
	t.Helper()
	frames := l.conns[id].frames
	require.NotEmpty(t, frames, "player %d received no messages", id)
	var m map[string]any
	require.NoError(t, json.Unmarshal(frames[len(frames)-1], &m))
	return m
}

func newService(t *testing.T) (*Service, *Registry, *app.StateGuard, *fakeLobby) {
	t.Helper()
	lobby := newFakeLobby()
	registry := NewRegistry()
	guard := app.NewStateGuard()
	svc := NewService(registry, guard, lobby, NewDispatcher(lobby), nil)
	return svc, registry, guard, lobby
}

func formParty(t *testing.T, svc *Service, owner *domain.Player, joiners ...*domain.Player) {
	t.Helper()
	for _, j := range joiners {
		require.NoError(t, svc.Invite(owner, j.ID))
		require.NoError(t, svc.Accept(j, owner.ID))
	}
}

func requireNotice(t *testing.T, err error, text string) {
	t.Helper()
	var notice *NoticeError
	require.True(t, errors.As(err, &notice), "expected notice error, got %v", err)
	require.Equal(t, text, notice.Text)
}

func TestInvitePartyWorkflow(t *testing.T) {
	svc, registry, _, lobby := newService(t)
	a := lobby.add(1)
	b := lobby.add(2)

	// Invite reaches the recipient.
	require.NoError(t, svc.Invite(a, 2))
	invite := lobby.lastFrame(t, 2)
	require.Equal(t, map[string]any{"command": "party_invite", "sender": float64(1)}, invite)

	// Accept forms the party; both see the same snapshot.
	require.NoError(t, svc.Accept(b, 1))
	wantJSON := `{"command":"update_party","owner":1,"members":[` +
		`{"player":1,"factions":[true,true,true,true],"ready":false},` +
		`{"player":2,"factions":[true,true,true,true],"ready":false}]}`
	framesA := lobby.frames(1)
	framesB := lobby.frames(2)
	require.JSONEq(t, wantJSON, string(framesA[len(framesA)-1]))
	require.Equal(t, string(framesA[len(framesA)-1]), string(framesB[len(framesB)-1]))

	// Faction change is broadcast to everyone, identically.
	require.NoError(t, svc.SetFactions(a, [domain.FactionCount]bool{true, false, false, false}))
	update := lobby.lastFrame(t, 2)
	members := update["members"].([]any)
	require.Equal(t, []any{true, false, false, false}, members[0].(map[string]any)["factions"])
	require.Equal(t, lobby.lastFrame(t, 1), lobby.lastFrame(t, 2))

	// Ready and unready.
	require.NoError(t, svc.Ready(b))
	update = lobby.lastFrame(t, 1)
	members = update["members"].([]any)
	require.Equal(t, true, members[1].(map[string]any)["ready"])

	require.NoError(t, svc.Unready(b))
	update = lobby.lastFrame(t, 1)
	members = update["members"].([]any)
	require.Equal(t, false, members[1].(map[string]any)["ready"])

	// Kick: both the remaining member and the kicked one see the result.
	require.NoError(t, svc.Kick(a, 2))
	update = lobby.lastFrame(t, 1)
	require.Equal(t, lobby.lastFrame(t, 2), update)
	require.Len(t, update["members"].([]any), 1)
	require.Nil(t, registry.Party(2))

	// Owner leaving an owner-only party disbands it.
	require.NoError(t, svc.Leave(a))
	update = lobby.lastFrame(t, 1)
	require.Equal(t, float64(1), update["owner"])
	require.Empty(t, update["members"])
	require.Nil(t, registry.Party(1))
	require.Equal(t, 0, registry.Count())
}

func TestInviteUnknownRecipient(t *testing.T) {
	svc, registry, _, lobby := newService(t)
	a := lobby.add(1)

	err := svc.Invite(a, 2)
	requireNotice(t, err, "The invited player doesn't exist")
	_, ok := registry.Invite(2)
	require.False(t, ok)
}

func TestAcceptWithoutInvite(t *testing.T) {
	svc, registry, _, lobby := newService(t)
	a := lobby.add(1)
	b := lobby.add(2)

	err := svc.Accept(b, a.ID)
	requireNotice(t, err, "The inviting player doesn't exist")
	require.Nil(t, registry.Party(1))
	require.Nil(t, registry.Party(2))
}

func TestAcceptUnknownSender(t *testing.T) {
	svc, _, _, lobby := newService(t)
	b := lobby.add(2)

	err := svc.Accept(b, 99)
	requireNotice(t, err, "The inviting player doesn't exist")
}

func TestLatestInviteWins(t *testing.T) {
	svc, registry, _, lobby := newService(t)
	a := lobby.add(1)
	b := lobby.add(2)
	c := lobby.add(3)

	require.NoError(t, svc.Invite(a, 3))
	require.NoError(t, svc.Invite(b, 3))
	invite := lobby.lastFrame(t, 3)
	require.Equal(t, float64(2), invite["sender"])

	// The overwritten invite can no longer be accepted; the latest can.
	err := svc.Accept(c, a.ID)
	requireNotice(t, err, "The inviting player doesn't exist")
	require.NoError(t, svc.Accept(c, b.ID))
	require.Equal(t, []domain.PlayerID{2, 3}, registry.Party(3).MemberIDs())
}

func TestMismatchedAcceptKeepsInvite(t *testing.T) {
	svc, registry, _, lobby := newService(t)
	a := lobby.add(1)
	b := lobby.add(2)
	lobby.add(3)

	require.NoError(t, svc.Invite(a, 2))
	err := svc.Accept(b, 3)
	requireNotice(t, err, "The inviting player doesn't exist")

	sender, ok := registry.Invite(2)
	require.True(t, ok)
	require.Equal(t, domain.PlayerID(1), sender)
}

func TestAcceptGrowsExistingParty(t *testing.T) {
	svc, registry, _, lobby := newService(t)
	a := lobby.add(1)
	b := lobby.add(2)
	c := lobby.add(3)
	formParty(t, svc, a, b)

	require.NoError(t, svc.Invite(a, 3))
	require.NoError(t, svc.Accept(c, a.ID))
	require.Equal(t, []domain.PlayerID{1, 2, 3}, registry.Party(1).MemberIDs())

	// All three got the identical three-member snapshot.
	require.Equal(t, lobby.lastFrame(t, 1), lobby.lastFrame(t, 2))
	require.Equal(t, lobby.lastFrame(t, 2), lobby.lastFrame(t, 3))
}

func TestAcceptWhileAlreadyInParty(t *testing.T) {
	svc, registry, _, lobby := newService(t)
	a := lobby.add(1)
	b := lobby.add(2)
	c := lobby.add(3)
	formParty(t, svc, a, b)

	require.NoError(t, svc.Invite(c, 2))
	err := svc.Accept(b, c.ID)
	requireNotice(t, err, "You are already in a party")

	// Membership did not migrate and the invite survives the rejection.
	require.Equal(t, domain.PlayerID(1), registry.Party(2).OwnerID)
	sender, ok := registry.Invite(2)
	require.True(t, ok)
	require.Equal(t, domain.PlayerID(3), sender)
}

func TestKickUnknownPlayer(t *testing.T) {
	svc, _, _, lobby := newService(t)
	a := lobby.add(1)

	err := svc.Kick(a, 2)
	requireNotice(t, err, "The kicked player doesn't exist")
}

func TestKickNonMember(t *testing.T) {
	svc, registry, _, lobby := newService(t)
	a := lobby.add(1)
	b := lobby.add(2)
	lobby.add(3)
	formParty(t, svc, a, b)

	err := svc.Kick(a, 3)
	requireNotice(t, err, "The kicked player doesn't exist")
	require.Equal(t, []domain.PlayerID{1, 2}, registry.Party(1).MemberIDs())
}

func TestKickByNonOwnerIsIneffective(t *testing.T) {
	svc, registry, _, lobby := newService(t)
	a := lobby.add(1)
	b := lobby.add(2)
	c := lobby.add(3)
	formParty(t, svc, a, b, c)

	require.NoError(t, svc.Kick(b, 3))
	require.Equal(t, []domain.PlayerID{1, 2, 3}, registry.Party(1).MemberIDs())
}

func TestKickPreservesMemberOrder(t *testing.T) {
	svc, registry, _, lobby := newService(t)
	a := lobby.add(1)
	b := lobby.add(2)
	c := lobby.add(3)
	d := lobby.add(4)
	formParty(t, svc, a, b, c, d)

	require.NoError(t, svc.Kick(a, 3))
	require.Equal(t, []domain.PlayerID{1, 2, 4}, registry.Party(1).MemberIDs())

	update := lobby.lastFrame(t, 4)
	members := update["members"].([]any)
	require.Equal(t, float64(1), members[0].(map[string]any)["player"])
	require.Equal(t, float64(2), members[1].(map[string]any)["player"])
	require.Equal(t, float64(4), members[2].(map[string]any)["player"])
}

func TestNonOwnerLeave(t *testing.T) {
	svc, registry, _, lobby := newService(t)
	a := lobby.add(1)
	b := lobby.add(2)
	c := lobby.add(3)
	formParty(t, svc, a, b, c)

	require.NoError(t, svc.Leave(b))
	require.Nil(t, registry.Party(2))
	require.Equal(t, []domain.PlayerID{1, 3}, registry.Party(1).MemberIDs())

	// Remaining members and the leaver all see the post-leave snapshot.
	require.Equal(t, lobby.lastFrame(t, 1), lobby.lastFrame(t, 2))
	require.Equal(t, lobby.lastFrame(t, 1), lobby.lastFrame(t, 3))
}

func TestOwnerLeaveDisbandsWholeParty(t *testing.T) {
	svc, registry, _, lobby := newService(t)
	a := lobby.add(1)
	b := lobby.add(2)
	c := lobby.add(3)
	formParty(t, svc, a, b, c)

	require.NoError(t, svc.Leave(a))
	for _, id := range []domain.PlayerID{1, 2, 3} {
		require.Nil(t, registry.Party(id))
		update := lobby.lastFrame(t, id)
		require.Equal(t, "update_party", update["command"])
		require.Equal(t, float64(1), update["owner"])
		require.Empty(t, update["members"])
	}
	require.Equal(t, 0, registry.Count())
}

func TestLeaveWithoutParty(t *testing.T) {
	svc, _, _, lobby := newService(t)
	a := lobby.add(1)

	require.NoError(t, svc.Leave(a))
	require.Empty(t, lobby.frames(1))
}

func TestSetFactionsWithoutParty(t *testing.T) {
	svc, _, _, lobby := newService(t)
	a := lobby.add(1)

	require.NoError(t, svc.SetFactions(a, [domain.FactionCount]bool{true, false, true, false}))
	require.NoError(t, svc.Ready(a))
	require.Empty(t, lobby.frames(1))
}

func TestGuardRejectsWhileSearching(t *testing.T) {
	svc, registry, guard, lobby := newService(t)
	a := lobby.add(1)
	lobby.add(2)
	guard.Transition(a, domain.StateSearchingLadder)

	commands := map[string]func() error{
		"invite": func() error { return svc.Invite(a, 2) },
		"accept": func() error { return svc.Accept(a, 2) },
		"kick":   func() error { return svc.Kick(a, 2) },
	}
	for name, cmd := range commands {
		err := cmd()
		var inv *app.InvalidStateError
		require.True(t, errors.As(err, &inv), "%s while searching", name)
		require.Equal(t, domain.StateSearchingLadder, inv.State)
	}

	require.Nil(t, registry.Party(1))
	_, ok := registry.Invite(2)
	require.False(t, ok)
}

func TestDisconnectLeavesParty(t *testing.T) {
	svc, registry, guard, lobby := newService(t)
	a := lobby.add(1)
	b := lobby.add(2)
	formParty(t, svc, a, b)

	// Disconnect skips the guard on purpose.
	guard.Transition(b, domain.StateSearchingLadder)
	svc.Disconnect(b)

	require.Nil(t, registry.Party(2))
	require.Equal(t, []domain.PlayerID{1}, registry.Party(1).MemberIDs())
}

func TestSlowConnectionNeverBlocksOthers(t *testing.T) {
	svc, registry, _, lobby := newService(t)
	a := lobby.add(1)
	b := lobby.add(2)
	formParty(t, svc, a, b)

	// B's connection vanishes; the broadcast still reaches A and the
	// mutation sticks.
	delete(lobby.players, 2)
	delete(lobby.conns, 2)

	require.NoError(t, svc.Ready(a))
	update := lobby.lastFrame(t, 1)
	members := update["members"].([]any)
	require.Equal(t, true, members[0].(map[string]any)["ready"])
	require.Equal(t, []domain.PlayerID{1, 2}, registry.Party(1).MemberIDs())
}

func TestSelfInviteRejected(t *testing.T) {
	svc, registry, _, lobby := newService(t)
	a := lobby.add(1)

	requireNotice(t, svc.Invite(a, 1), "You can't invite yourself to a party")
	_, ok := registry.Invite(1)
	require.False(t, ok)
	require.Empty(t, lobby.frames(1))

	// Even a forged self-invite cannot fold a player into a party with
	// themselves.
	registry.SetInvite(1, 1)
	requireNotice(t, svc.Accept(a, 1), "The inviting player doesn't exist")
	require.Nil(t, registry.Party(1))
	require.Equal(t, 0, registry.Count())
}

func TestInviteRateLimited(t *testing.T) {
	lobby := newFakeLobby()
	registry := NewRegistry()
	guard := app.NewStateGuard()
	svc := NewService(registry, guard, lobby, NewDispatcher(lobby), NewInviteRateLimiter(2, time.Minute))
	a := lobby.add(1)
	lobby.add(2)
	lobby.add(3)

	require.NoError(t, svc.Invite(a, 2))
	require.NoError(t, svc.Invite(a, 3))
	requireNotice(t, svc.Invite(a, 2), "You are sending invites too quickly")

	// The earlier invites are untouched.
	sender, ok := registry.Invite(3)
	require.True(t, ok)
	require.Equal(t, domain.PlayerID(1), sender)
}

func TestGuardOutranksInviteLimit(t *testing.T) {
	lobby := newFakeLobby()
	registry := NewRegistry()
	guard := app.NewStateGuard()
	limiter := NewInviteRateLimiter(1, time.Minute)
	limiter.Allow(1)
	svc := NewService(registry, guard, lobby, NewDispatcher(lobby), limiter)
	a := lobby.add(1)
	lobby.add(2)

	// A searching player gets the state rejection even with the invite
	// budget exhausted.
	guard.Transition(a, domain.StateSearchingLadder)
	err := svc.Invite(a, 2)
	var inv *app.InvalidStateError
	require.True(t, errors.As(err, &inv))
	require.Equal(t, domain.StateSearchingLadder, inv.State)
}

func TestDisconnectSerializesWithAccept(t *testing.T) {
	for i := 0; i < 200; i++ {
		svc, registry, _, lobby := newService(t)
		a := lobby.add(1)
		b := lobby.add(2)
		c := lobby.add(3)
		formParty(t, svc, a, b)
		require.NoError(t, svc.Invite(a, 3))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			svc.Disconnect(a)
		}()
		go func() {
			defer wg.Done()
			_ = svc.Accept(c, a.ID)
		}()
		wg.Wait()

		// Whatever the interleaving, nobody ends up registered in a party
		// whose owner is gone from the member list.
		for _, id := range []domain.PlayerID{1, 2, 3} {
			if pt := registry.Party(id); pt != nil {
				require.NotNil(t, pt.Member(pt.OwnerID), "iteration %d: player %d left in a party without its owner", i, id)
			}
		}
	}
}
