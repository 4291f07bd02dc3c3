package protocol

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, in, out Packet) {
	t.Helper()

	b := NewBuffer()
	require.NoError(t, in.Encode(b))
	b.Rewind()
	require.NoError(t, out.Decode(b))
	assert.Equal(t, 0, b.Remaining())
}

func TestHandshakeRoundTrip(t *testing.T) {
	t.Parallel()

	in := &Handshake{
		ProtocolVersion: 755,
		ServerAddress:   "play.example.com",
		ServerPort:      25565,
		NextState:       NextStateLogin,
	}
	out := &Handshake{}
	roundTrip(t, in, out)
	assert.Equal(t, in, out)
}

func TestEncryptionRequestRoundTrip(t *testing.T) {
	t.Parallel()

	in := &EncryptionRequest{
		ServerID:    "",
		PublicKey:   []byte{0x30, 0x81, 0x9f, 0x01, 0x02},
		VerifyToken: []byte{9, 8, 7, 6},
	}
	out := &EncryptionRequest{}
	roundTrip(t, in, out)
	assert.Equal(t, in, out)
}

func TestLoginSuccessRoundTrip(t *testing.T) {
	t.Parallel()

	in := &LoginSuccess{
		UUID:     uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5"),
		Username: "Notch",
	}
	out := &LoginSuccess{}
	roundTrip(t, in, out)
	assert.Equal(t, in, out)
}

func TestMarshalPrependsID(t *testing.T) {
	t.Parallel()

	raw, err := Marshal(&SetCompression{Threshold: 256})
	require.NoError(t, err)

	b := Wrap(raw)
	id, err := b.ReadVarInt()
	require.NoError(t, err)
	assert.Equal(t, IDSetCompression, id)

	threshold, err := b.ReadVarInt()
	require.NoError(t, err)
	assert.Equal(t, int32(256), threshold)
}

func TestRegistryDecode(t *testing.T) {
	t.Parallel()

	r := BaseRegistry()

	raw, err := Marshal(&LoginStart{Name: "simon"})
	require.NoError(t, err)

	p, err := r.Decode(StateLogin, Wrap(raw))
	require.NoError(t, err)

	ls, ok := p.(*LoginStart)
	require.True(t, ok)
	assert.Equal(t, "simon", ls.Name)
}

func TestRegistryDecodeIDSpacesIndependent(t *testing.T) {
	t.Parallel()

	r := BaseRegistry()

	// 0x00 means Handshake, StatusRequest or LoginStart depending on state.
	raw, err := Marshal(&StatusRequest{})
	require.NoError(t, err)

	p, err := r.Decode(StateStatus, Wrap(raw))
	require.NoError(t, err)
	assert.IsType(t, &StatusRequest{}, p)
}

func TestRegistryDecodeUnknown(t *testing.T) {
	t.Parallel()

	r := BaseRegistry()

	b := NewBuffer()
	b.WriteVarInt(0x7F)
	b.Rewind()

	_, err := r.Decode(StatePlay, b)
	assert.ErrorIs(t, err, ErrUnknownPacket)
}

func TestRegistryDecodeTruncatedPayload(t *testing.T) {
	t.Parallel()

	r := BaseRegistry()

	b := NewBuffer()
	b.WriteVarInt(IDKeepAliveServerbound)
	b.WriteUint32(1) // keep-alive payload is 8 bytes, only 4 present
	b.Rewind()

	_, err := r.Decode(StatePlay, b)
	assert.ErrorIs(t, err, ErrEndOfBuffer)
}
