package core

import "github.com/astralforge/lobby/internal/domain"

// Frame is one serialized lobby message.
type Frame []byte

// SessionID identifies a client connection (the browser's client token).
type SessionID string

// SignalConnection abstracts the system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// PlayerSession binds a domain.Player and its transport endpoint.
// This is what the registry stores and the dispatcher fans out to.
type PlayerSession interface {
	Player() *domain.Player
	Signal() SignalConnection
}
