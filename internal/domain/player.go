// Package domain contains entities without logic, just meta-data.
package domain

// PlayerID is the opaque numeric identity of a connected player.
// Assigned by the registry, immutable for the connection's lifetime.
type PlayerID int

// PlayerState is the player's current lobby activity.
type PlayerState int

const (
	StateIdle PlayerState = iota
	StateHosting
	StateJoining
	StatePlaying
	StateSearchingLadder
)

var stateNames = map[PlayerState]string{
	StateIdle:            "IDLE",
	StateHosting:         "HOSTING",
	StateJoining:         "JOINING",
	StatePlaying:         "PLAYING",
	StateSearchingLadder: "SEARCHING_LADDER",
}

func (s PlayerState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// MarshalJSON renders the state name, which is what clients match against.
func (s PlayerState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// PartyEligible reports whether a player in this state may issue or be
// moved by party commands. Anything other than idle counts as engaged:
// hosting, joining or playing a game, or sitting in the ladder queue.
func (s PlayerState) PartyEligible() bool {
	return s == StateIdle
}

// Player is a connected lobby player.
// State is owned by app.StateGuard; read or write it only through the guard.
type Player struct {
	ID    PlayerID
	Login string
	State PlayerState
}

// NewPlayer avoids ad-hoc struct literals in adapters.
func NewPlayer(id PlayerID, login string) *Player {
	return &Player{ID: id, Login: login, State: StateIdle}
}
