package frame

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkReader serves at most n bytes per Read so a frame can straddle
// multiple socket reads.
type chunkReader struct {
	data []byte
	n    int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}

	n := min(c.n, min(len(c.data), len(p)))
	copy(p, c.data[:n])
	c.data = c.data[n:]

	return n, nil
}

func TestFrameRoundTripNoCompression(t *testing.T) {
	t.Parallel()

	var wire bytes.Buffer
	enc := NewEncoder(&wire)

	payloads := [][]byte{
		[]byte{0x00},
		[]byte("a short payload"),
		[]byte{},
		bytes.Repeat([]byte{0xAA}, 1000),
	}
	for _, p := range payloads {
		require.NoError(t, enc.Encode(p))
	}

	dec := NewDecoder(&wire)
	for _, want := range payloads {
		got, err := dec.ReadFrame()
		require.NoError(t, err)
		assert.Equal(t, want, append([]byte{}, got...))
	}

	_, err := dec.ReadFrame()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameCompressionThreshold(t *testing.T) {
	t.Parallel()

	const threshold = 64

	var wire bytes.Buffer
	enc := NewEncoder(&wire)
	enc.EnableCompression(threshold)

	below := bytes.Repeat([]byte{0x11}, threshold-1)
	at := bytes.Repeat([]byte{0x22}, threshold)

	require.NoError(t, enc.Encode(below))

	// Below the threshold the frame carries the 0x00 "not compressed"
	// sentinel right after the length varint.
	raw := wire.Bytes()
	assert.Equal(t, byte(threshold), raw[0]) // varint(len(below)+1)
	assert.Equal(t, byte(0x00), raw[1])

	require.NoError(t, enc.Encode(at))

	dec := NewDecoder(&wire)
	dec.EnableCompression(threshold)

	got, err := dec.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, below, append([]byte{}, got...))

	got, err = dec.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, at, append([]byte{}, got...))
}

func TestFrameCompressionShrinksRepetition(t *testing.T) {
	t.Parallel()

	var wire bytes.Buffer
	enc := NewEncoder(&wire)
	enc.EnableCompression(16)

	payload := bytes.Repeat([]byte{0x55}, 4096)
	require.NoError(t, enc.Encode(payload))

	assert.Less(t, wire.Len(), len(payload)/4)
}

func TestFrameEncryptionRoundTrip(t *testing.T) {
	t.Parallel()

	secret := testSecret(t)

	var wire bytes.Buffer
	enc := NewEncoder(&wire)
	require.NoError(t, enc.EnableEncryption(secret))

	payload := []byte("sealed payload")
	require.NoError(t, enc.Encode(payload))

	// The whole frame is ciphertext, including the length prefix.
	assert.NotContains(t, wire.String(), "sealed")

	dec := NewDecoder(&wire)
	require.NoError(t, dec.EnableEncryption(secret))

	got, err := dec.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, payload, append([]byte{}, got...))
}

func TestFrameEncryptionEnableTwice(t *testing.T) {
	t.Parallel()

	secret := testSecret(t)

	enc := NewEncoder(io.Discard)
	require.NoError(t, enc.EnableEncryption(secret))
	assert.ErrorIs(t, enc.EnableEncryption(secret), ErrCipherEnabled)

	dec := NewDecoder(bytes.NewReader(nil))
	require.NoError(t, dec.EnableEncryption(secret))
	assert.ErrorIs(t, dec.EnableEncryption(secret), ErrCipherEnabled)
}

func TestFrameMultipleFramesSingleRead(t *testing.T) {
	t.Parallel()

	var wire bytes.Buffer
	enc := NewEncoder(&wire)

	require.NoError(t, enc.Encode([]byte("first")))
	require.NoError(t, enc.Encode([]byte("second")))
	require.NoError(t, enc.Encode([]byte("third")))

	// One Read hands the decoder all three frames; the later ones must come
	// out of the leftover buffer without another socket read.
	dec := NewDecoder(&chunkReader{data: wire.Bytes(), n: wire.Len()})

	got, err := dec.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))
	assert.True(t, dec.Buffered())

	got, err = dec.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	got, err = dec.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "third", string(got))
	assert.False(t, dec.Buffered())
}

func TestFrameStraddledReads(t *testing.T) {
	t.Parallel()

	secret := testSecret(t)

	var wire bytes.Buffer
	enc := NewEncoder(&wire)
	require.NoError(t, enc.EnableEncryption(secret))

	payloads := [][]byte{
		[]byte("frames split across many tiny reads"),
		bytes.Repeat([]byte{0x7F}, 300),
		[]byte("tail"),
	}
	for _, p := range payloads {
		require.NoError(t, enc.Encode(p))
	}

	// Three bytes per read: every frame straddles reads, and each arriving
	// byte must be decrypted exactly once.
	dec := NewDecoder(&chunkReader{data: wire.Bytes(), n: 3})
	require.NoError(t, dec.EnableEncryption(secret))

	for _, want := range payloads {
		got, err := dec.ReadFrame()
		require.NoError(t, err)
		assert.Equal(t, want, append([]byte{}, got...))
	}
}

func TestFrameEnableEncryptionDecryptsBufferedTail(t *testing.T) {
	t.Parallel()

	secret := testSecret(t)

	var wire bytes.Buffer
	enc := NewEncoder(&wire)

	require.NoError(t, enc.Encode([]byte("plaintext frame")))
	require.NoError(t, enc.EnableEncryption(secret))
	require.NoError(t, enc.Encode([]byte("pipelined ciphertext")))

	// Both frames land in one read. The second is still ciphertext when the
	// first is decoded; enabling encryption afterwards must decrypt the
	// buffered tail so the next ReadFrame sees plaintext.
	dec := NewDecoder(&chunkReader{data: wire.Bytes(), n: wire.Len()})

	got, err := dec.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "plaintext frame", string(got))
	require.True(t, dec.Buffered())

	require.NoError(t, dec.EnableEncryption(secret))

	got, err = dec.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "pipelined ciphertext", string(got))
}

func TestFramePeekAndDiscard(t *testing.T) {
	t.Parallel()

	dec := NewDecoder(bytes.NewReader([]byte{0xFE, 0x01}))

	c, err := dec.Peek()
	require.NoError(t, err)
	assert.Equal(t, byte(0xFE), c)

	// Peek does not consume.
	c, err = dec.Peek()
	require.NoError(t, err)
	assert.Equal(t, byte(0xFE), c)

	dec.Discard(1)

	c, err = dec.Peek()
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), c)
}

func TestFrameRejectsOversizeDeclaredLength(t *testing.T) {
	t.Parallel()

	// varint(1<<22) exceeds MaxFrameLen.
	dec := NewDecoder(bytes.NewReader([]byte{0x80, 0x80, 0x80, 0x02}))

	_, err := dec.ReadFrame()
	assert.ErrorIs(t, err, ErrInvalidFrameLen)
}

func TestFrameRejectsOversizePayload(t *testing.T) {
	t.Parallel()

	enc := NewEncoder(io.Discard)

	err := enc.Encode(make([]byte, MaxFrameLen+1))
	assert.ErrorIs(t, err, ErrInvalidFrameLen)
}
