package protocol

import (
	"github.com/go-pantheon/fabrica-util/errors"
)

// ErrUnknownPacket is returned when a packet id has no constructor for the
// connection's current state. A stream that offers an unknown id cannot be
// resynchronized and must be closed.
var ErrUnknownPacket = errors.New("unknown packet id for state")

// Packet is one logical protocol message. Implementations encode and decode
// their fields over a Buffer positioned just past the packet id.
type Packet interface {
	ID() int32
	Encode(b *Buffer) error
	Decode(b *Buffer) error
}

// Registry holds serverbound packet constructors keyed by connection state
// and numeric packet id. Gameplay payload types are registered here by the
// surrounding system; this layer only needs the codec capability itself.
type Registry struct {
	states map[State]map[int32]func() Packet
}

func NewRegistry() *Registry {
	return &Registry{states: make(map[State]map[int32]func() Packet)}
}

// Register binds a constructor for the given state. The constructor's zero
// packet reports the id to register under.
func (r *Registry) Register(s State, f func() Packet) {
	m, ok := r.states[s]
	if !ok {
		m = make(map[int32]func() Packet)
		r.states[s] = m
	}

	m[f().ID()] = f
}

// Decode reads the packet id at the buffer cursor and decodes the rest of
// the payload into a freshly constructed packet for the given state.
func (r *Registry) Decode(s State, b *Buffer) (Packet, error) {
	id, err := b.ReadVarInt()
	if err != nil {
		return nil, err
	}

	f, ok := r.states[s][id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownPacket, "state=%s id=0x%02x", s, id)
	}

	p := f()
	if err := p.Decode(b); err != nil {
		return nil, errors.Wrapf(err, "decode packet state=%s id=0x%02x", s, id)
	}

	return p, nil
}

// Marshal encodes a packet into a raw payload: varint packet id followed by
// the packet fields. The payload carries no framing.
func Marshal(p Packet) ([]byte, error) {
	b := NewBuffer()
	b.WriteVarInt(p.ID())

	if err := p.Encode(b); err != nil {
		return nil, errors.Wrapf(err, "encode packet id=0x%02x", p.ID())
	}

	return b.Bytes(), nil
}
