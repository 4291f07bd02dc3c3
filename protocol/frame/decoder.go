package frame

import (
	"bytes"
	"compress/zlib"
	"crypto/cipher"
	"io"

	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/quartzmc/quartz/protocol"
)

// MaxUncompressedLen bounds the declared uncompressed size of a frame so a
// hostile peer cannot make a tiny frame inflate without limit.
const MaxUncompressedLen = 1 << 23

var ErrBadUncompressedLen = errors.New("uncompressed length mismatch")

// Decoder strips wire framing back off the byte stream: decryption first,
// then length framing, then decompression. Not safe for concurrent use; a
// connection's reader goroutine is its only caller.
//
// Ciphertext is decrypted exactly once, when it arrives. Bytes left over
// from an earlier over-read are already plaintext and are replayed without
// touching the cipher again.
type Decoder struct {
	r   io.Reader
	buf *protocol.Buffer

	threshold int32
	stream    cipher.Stream
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:         r,
		buf:       protocol.NewBuffer(),
		threshold: -1,
	}
}

// EnableCompression mirrors the encoder-side threshold for inbound frames.
func (d *Decoder) EnableCompression(threshold int32) {
	d.threshold = threshold
}

// EnableEncryption installs the receiving cipher. Calling it twice on one
// connection is a programming error and fails.
func (d *Decoder) EnableEncryption(secret []byte) error {
	if d.stream != nil {
		return ErrCipherEnabled
	}

	stream, err := NewDecryptStream(secret)
	if err != nil {
		return err
	}

	d.stream = stream

	// Bytes already buffered past the cursor arrived after the peer turned
	// its cipher on, so they were stored as ciphertext. Decrypt them now;
	// later reads must never run the stream over them a second time.
	if tail := d.buf.Remaining(); tail > 0 {
		p := d.buf.Bytes()[d.buf.Cursor():]
		d.stream.XORKeyStream(p, p)
	}

	return nil
}

// Buffered reports whether a previous socket read left undecoded bytes.
func (d *Decoder) Buffered() bool {
	return d.buf.Remaining() > 0
}

// Peek returns the next raw byte without consuming it, issuing one blocking
// read if nothing is buffered. Used to detect the legacy status probe before
// varint framing is assumed.
func (d *Decoder) Peek() (byte, error) {
	if err := d.ensure(1); err != nil {
		return 0, err
	}

	return d.buf.Bytes()[d.buf.Cursor()], nil
}

// Discard consumes n buffered bytes.
func (d *Decoder) Discard(n int) {
	d.buf.Seek(d.buf.Cursor() + n)
}

// ReadFrame returns the next frame's payload, positioned at the packet id.
// Leftover bytes from a prior over-read are decoded first without a new
// socket read; otherwise one blocking read is issued and further bytes are
// pulled only as the frame requires. The returned slice is valid until the
// next call.
func (d *Decoder) ReadFrame() ([]byte, error) {
	if d.Buffered() {
		d.buf.ShiftRemaining()
	} else {
		d.buf.Reset()

		if err := d.fill(); err != nil {
			return nil, err
		}
	}

	return d.collect()
}

// fill issues one blocking read into the inflated buffer and decrypts
// whatever arrived. A 0-byte read surfaces as io.EOF.
func (d *Decoder) fill() error {
	ln := d.buf.Len()
	p := d.buf.InflateToCapacity()

	n, err := d.r.Read(p)
	if n <= 0 {
		d.buf.Truncate(ln)

		if err == nil {
			err = io.EOF
		}

		return err
	}

	if d.stream != nil {
		d.stream.XORKeyStream(p[:n], p[:n])
	}

	d.buf.Truncate(ln + n)

	return nil
}

// ensure pulls exactly the missing bytes so that n unread bytes are
// available, decrypting only the newly arrived ones.
func (d *Decoder) ensure(n int) error {
	missing := n - d.buf.Remaining()
	if missing <= 0 {
		return nil
	}

	d.buf.Grow(missing)

	ln := d.buf.Len()
	p := d.buf.InflateToCapacity()[:missing]

	if _, err := io.ReadFull(d.r, p); err != nil {
		d.buf.Truncate(ln)
		return errors.Wrap(err, "read frame remainder failed")
	}

	if d.stream != nil {
		d.stream.XORKeyStream(p, p)
	}

	d.buf.Truncate(ln + missing)

	return nil
}

func (d *Decoder) collect() ([]byte, error) {
	rawLen, err := d.readWireVarInt()
	if err != nil {
		return nil, err
	}

	if rawLen < 0 || rawLen > MaxFrameLen {
		return nil, errors.Wrapf(ErrInvalidFrameLen, "len=%d", rawLen)
	}

	if err := d.ensure(int(rawLen)); err != nil {
		return nil, err
	}

	if d.threshold < 0 {
		return d.buf.ReadBytes(int(rawLen))
	}

	start := d.buf.Cursor()

	dataLen, err := d.buf.ReadVarInt()
	if err != nil {
		return nil, err
	}

	body, err := d.buf.ReadBytes(int(rawLen) - (d.buf.Cursor() - start))
	if err != nil {
		return nil, err
	}

	if dataLen == 0 {
		// Sent uncompressed despite compression being active.
		return body, nil
	}

	if dataLen < 0 || dataLen > MaxUncompressedLen {
		return nil, errors.Wrapf(ErrInvalidFrameLen, "uncompressed len=%d", dataLen)
	}

	return decompress(body, int(dataLen))
}

// readWireVarInt decodes the length varint byte by byte so a varint split
// across socket reads pulls exactly the bytes it still needs.
func (d *Decoder) readWireVarInt() (int32, error) {
	var v uint32

	for i := 0; ; i++ {
		if i == protocol.MaxVarIntLen {
			return 0, protocol.ErrVarIntTooLong
		}

		if err := d.ensure(1); err != nil {
			return 0, err
		}

		c, err := d.buf.ReadUint8()
		if err != nil {
			return 0, err
		}

		v |= uint32(c&0x7F) << (7 * i)

		if c&0x80 == 0 {
			return int32(v), nil
		}
	}
}

func decompress(body []byte, dataLen int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "open compressed frame failed")
	}
	defer zr.Close()

	out := make([]byte, dataLen)

	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, errors.Wrap(err, "decompress frame failed")
	}

	// The declared length must be exact, not a lower bound.
	if n, _ := zr.Read(make([]byte, 1)); n != 0 {
		return nil, ErrBadUncompressedLen
	}

	return out, nil
}
