package protocol

import (
	"github.com/go-pantheon/fabrica-util/errors"
)

// State is a connection's position in the protocol lifecycle. Transitions
// are forward-only except that any state may move to StateDisconnected.
type State int32

const (
	StateHandshake State = iota
	StateStatus
	StateLogin
	StatePlay
	StateDisconnected
)

// ErrInvalidNextState is returned for a handshake next_state outside {1, 2}.
// The reference behavior left the connection parked in Handshake; a client
// that sends a bad intent is misbehaving either way, so fail fast.
var ErrInvalidNextState = errors.New("invalid handshake next_state")

const (
	// NextStateStatus is the handshake intent for a server list ping.
	NextStateStatus int32 = 1
	// NextStateLogin is the handshake intent for joining the game.
	NextStateLogin int32 = 2
)

// HandshakeTarget maps the handshake next_state field to the following state.
func HandshakeTarget(next int32) (State, error) {
	switch next {
	case NextStateStatus:
		return StateStatus, nil
	case NextStateLogin:
		return StateLogin, nil
	default:
		return StateHandshake, ErrInvalidNextState
	}
}

func (s State) String() string {
	switch s {
	case StateHandshake:
		return "handshake"
	case StateStatus:
		return "status"
	case StateLogin:
		return "login"
	case StatePlay:
		return "play"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
