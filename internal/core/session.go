package core

import "github.com/astralforge/lobby/internal/domain"

// playerSession implements PlayerSession by pairing player + transport.
type playerSession struct {
	player *domain.Player
	conn   SignalConnection
}

func NewPlayerSession(player *domain.Player, conn SignalConnection) PlayerSession {
	return &playerSession{player: player, conn: conn}
}

func (s *playerSession) Player() *domain.Player   { return s.player }
func (s *playerSession) Signal() SignalConnection { return s.conn }
