// Package frame implements the wire envelope around raw packet payloads:
// varint length framing, threshold-gated DEFLATE compression and whole-frame
// stream encryption.
//
// The pipeline is split into two independently owned halves. The Encoder
// belongs to a connection's writer goroutine and the Decoder to its reader
// goroutine; the one-shot login upgrades reach each half on its own
// goroutine, so neither half ever needs a lock in steady state.
package frame

import (
	"bytes"
	"compress/zlib"
	"crypto/cipher"
	"io"

	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/quartzmc/quartz/protocol"
)

// MaxFrameLen bounds the declared length of a single frame.
const MaxFrameLen = 1 << 21

var (
	ErrInvalidFrameLen = errors.New("invalid frame length")
	ErrCipherEnabled   = errors.New("session cipher already enabled")
	ErrShortWrite      = errors.New("short frame write")
)

// Encoder turns raw packet payloads into wire frames. Not safe for
// concurrent use; a connection's writer goroutine is its only caller.
type Encoder struct {
	w io.Writer

	threshold int32
	stream    cipher.Stream

	scratch []byte
	zbuf    bytes.Buffer
	zw      *zlib.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		w:         w,
		threshold: -1,
		scratch:   make([]byte, 0, 4096),
	}
}

// EnableCompression sets the payload size threshold. Negative disables.
// Affects future Encode calls only.
func (e *Encoder) EnableCompression(threshold int32) {
	e.threshold = threshold
}

// EnableEncryption installs the sending cipher. Calling it twice on one
// connection is a programming error and fails.
func (e *Encoder) EnableEncryption(secret []byte) error {
	if e.stream != nil {
		return ErrCipherEnabled
	}

	stream, err := NewEncryptStream(secret)
	if err != nil {
		return err
	}

	e.stream = stream

	return nil
}

// Encode frames the payload, compresses it if it meets the threshold,
// encrypts the complete frame if the session cipher is active, and writes
// the result in one call.
func (e *Encoder) Encode(payload []byte) error {
	if len(payload) > MaxFrameLen {
		return errors.Wrapf(ErrInvalidFrameLen, "payload len=%d", len(payload))
	}

	out := e.scratch[:0]

	switch {
	case e.threshold < 0:
		out = protocol.AppendVarInt(out, int32(len(payload)))
		out = append(out, payload...)

	case len(payload) >= int(e.threshold):
		comp, err := e.compress(payload)
		if err != nil {
			return err
		}

		rawLen := int32(len(payload))
		out = protocol.AppendVarInt(out, int32(protocol.VarIntSize(rawLen)+len(comp)))
		out = protocol.AppendVarInt(out, rawLen)
		out = append(out, comp...)

	default:
		// Below the threshold the data-length varint is the single zero
		// byte meaning "not compressed".
		out = protocol.AppendVarInt(out, int32(len(payload))+1)
		out = append(out, 0x00)
		out = append(out, payload...)
	}

	e.scratch = out[:0]

	if e.stream != nil {
		e.stream.XORKeyStream(out, out)
	}

	n, err := e.w.Write(out)
	if err != nil {
		return errors.Wrap(err, "write frame failed")
	}

	if n != len(out) {
		return ErrShortWrite
	}

	return nil
}

func (e *Encoder) compress(payload []byte) ([]byte, error) {
	e.zbuf.Reset()

	if e.zw == nil {
		e.zw = zlib.NewWriter(&e.zbuf)
	} else {
		e.zw.Reset(&e.zbuf)
	}

	if _, err := e.zw.Write(payload); err != nil {
		return nil, errors.Wrap(err, "compress payload failed")
	}

	if err := e.zw.Close(); err != nil {
		return nil, errors.Wrap(err, "flush compressed payload failed")
	}

	return e.zbuf.Bytes(), nil
}
