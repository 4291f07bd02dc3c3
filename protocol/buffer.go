// Package protocol implements the wire-level primitives of the Quartz
// protocol: the codec buffer, varint encoding, connection states and the
// packet codec boundary.
package protocol

import (
	"encoding/binary"
	"math"

	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/google/uuid"
)

var (
	// ErrEndOfBuffer is returned when a read runs past the buffered data.
	// Underruns are never reported as zero values; a misaligned stream must
	// surface immediately so the connection can be torn down.
	ErrEndOfBuffer = errors.New("read past end of buffer")

	ErrNegativeLength = errors.New("negative length prefix")
	ErrStringTooLong  = errors.New("string length over limit")
)

// MaxStringLen bounds the byte length of a decoded string. Anything larger
// is a malformed or hostile frame.
const MaxStringLen = 1 << 16

const initialBufferSize = 4096

// Buffer is a growable byte sequence with a single read/write cursor.
// Writing past the current length extends it; reading past the current
// length fails with ErrEndOfBuffer. The zero value is ready to use.
type Buffer struct {
	data []byte
	cur  int
}

func NewBuffer() *Buffer {
	return &Buffer{data: make([]byte, 0, initialBufferSize)}
}

// Wrap returns a Buffer reading and writing b in place, cursor at the start.
func Wrap(b []byte) *Buffer {
	return &Buffer{data: b}
}

// Bytes returns the full underlying sequence regardless of cursor position.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the current length of the sequence.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Cursor returns the current cursor position.
func (b *Buffer) Cursor() int {
	return b.cur
}

// Remaining returns the number of unread bytes after the cursor.
func (b *Buffer) Remaining() int {
	return len(b.data) - b.cur
}

// Rewind moves the cursor back to the start without touching the data.
func (b *Buffer) Rewind() {
	b.cur = 0
}

// Reset truncates the buffer to zero length and rewinds the cursor.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.cur = 0
}

// Seek moves the cursor to pos, clamped to [0, Len()].
func (b *Buffer) Seek(pos int) {
	if pos < 0 {
		pos = 0
	}

	if pos > len(b.data) {
		pos = len(b.data)
	}

	b.cur = pos
}

// ShiftRemaining moves the unread tail to the front of the buffer,
// truncates to its length and rewinds the cursor. Used when one socket
// read yields more than one frame.
func (b *Buffer) ShiftRemaining() {
	n := copy(b.data, b.data[b.cur:])
	b.data = b.data[:n]
	b.cur = 0
}

// Truncate shortens the sequence to n bytes, clamping the cursor.
func (b *Buffer) Truncate(n int) {
	if n < 0 || n > len(b.data) {
		return
	}

	b.data = b.data[:n]
	if b.cur > n {
		b.cur = n
	}
}

// InflateToCapacity extends the length to the full capacity and returns the
// writable slice beyond the previous length. Used to obtain a destination
// for a blocking socket read.
func (b *Buffer) InflateToCapacity() []byte {
	if cap(b.data) == 0 {
		b.data = make([]byte, 0, initialBufferSize)
	}

	ln := len(b.data)
	b.data = b.data[:cap(b.data)]

	return b.data[ln:]
}

// Grow ensures at least n bytes of unused capacity beyond the current length.
func (b *Buffer) Grow(n int) {
	if cap(b.data)-len(b.data) >= n {
		return
	}

	grown := make([]byte, len(b.data), len(b.data)+n)
	copy(grown, b.data)
	b.data = grown
}

func (b *Buffer) writable(n int) []byte {
	end := b.cur + n
	if end > len(b.data) {
		if end > cap(b.data) {
			grown := make([]byte, end, max(end, 2*cap(b.data)))
			copy(grown, b.data)
			b.data = grown
		} else {
			b.data = b.data[:end]
		}
	}

	p := b.data[b.cur:end]
	b.cur = end

	return p
}

func (b *Buffer) readable(n int) ([]byte, error) {
	if b.cur+n > len(b.data) {
		return nil, ErrEndOfBuffer
	}

	p := b.data[b.cur : b.cur+n]
	b.cur += n

	return p, nil
}

func (b *Buffer) WriteUint8(v uint8) {
	b.writable(1)[0] = v
}

func (b *Buffer) WriteUint16(v uint16) {
	binary.BigEndian.PutUint16(b.writable(2), v)
}

func (b *Buffer) WriteUint32(v uint32) {
	binary.BigEndian.PutUint32(b.writable(4), v)
}

func (b *Buffer) WriteUint64(v uint64) {
	binary.BigEndian.PutUint64(b.writable(8), v)
}

func (b *Buffer) WriteInt8(v int8)   { b.WriteUint8(uint8(v)) }
func (b *Buffer) WriteInt16(v int16) { b.WriteUint16(uint16(v)) }
func (b *Buffer) WriteInt32(v int32) { b.WriteUint32(uint32(v)) }
func (b *Buffer) WriteInt64(v int64) { b.WriteUint64(uint64(v)) }

func (b *Buffer) WriteFloat32(v float32) {
	b.WriteUint32(math.Float32bits(v))
}

func (b *Buffer) WriteFloat64(v float64) {
	b.WriteUint64(math.Float64bits(v))
}

func (b *Buffer) WriteBool(v bool) {
	if v {
		b.WriteUint8(1)
	} else {
		b.WriteUint8(0)
	}
}

// WriteBytes appends raw bytes without a length prefix.
func (b *Buffer) WriteBytes(p []byte) {
	copy(b.writable(len(p)), p)
}

// WriteByteArray writes a varint length prefix followed by the bytes.
func (b *Buffer) WriteByteArray(p []byte) {
	b.WriteVarInt(int32(len(p)))
	b.WriteBytes(p)
}

// WriteString writes a varint length prefix followed by the UTF-8 bytes.
func (b *Buffer) WriteString(s string) {
	b.WriteVarInt(int32(len(s)))
	copy(b.writable(len(s)), s)
}

func (b *Buffer) WriteUUID(id uuid.UUID) {
	copy(b.writable(16), id[:])
}

func (b *Buffer) ReadUint8() (uint8, error) {
	p, err := b.readable(1)
	if err != nil {
		return 0, err
	}

	return p[0], nil
}

func (b *Buffer) ReadUint16() (uint16, error) {
	p, err := b.readable(2)
	if err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint16(p), nil
}

func (b *Buffer) ReadUint32() (uint32, error) {
	p, err := b.readable(4)
	if err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint32(p), nil
}

func (b *Buffer) ReadUint64() (uint64, error) {
	p, err := b.readable(8)
	if err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint64(p), nil
}

func (b *Buffer) ReadInt8() (int8, error) {
	v, err := b.ReadUint8()
	return int8(v), err
}

func (b *Buffer) ReadInt16() (int16, error) {
	v, err := b.ReadUint16()
	return int16(v), err
}

func (b *Buffer) ReadInt32() (int32, error) {
	v, err := b.ReadUint32()
	return int32(v), err
}

func (b *Buffer) ReadInt64() (int64, error) {
	v, err := b.ReadUint64()
	return int64(v), err
}

func (b *Buffer) ReadFloat32() (float32, error) {
	v, err := b.ReadUint32()
	return math.Float32frombits(v), err
}

func (b *Buffer) ReadFloat64() (float64, error) {
	v, err := b.ReadUint64()
	return math.Float64frombits(v), err
}

func (b *Buffer) ReadBool() (bool, error) {
	v, err := b.ReadUint8()
	return v != 0, err
}

// ReadBytes reads exactly n raw bytes. The returned slice aliases the
// buffer and is only valid until the next write.
func (b *Buffer) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeLength
	}

	return b.readable(n)
}

// ReadByteArray reads a varint length prefix followed by that many bytes.
func (b *Buffer) ReadByteArray() ([]byte, error) {
	n, err := b.ReadVarInt()
	if err != nil {
		return nil, err
	}

	if n < 0 {
		return nil, ErrNegativeLength
	}

	return b.readable(int(n))
}

func (b *Buffer) ReadString() (string, error) {
	n, err := b.ReadVarInt()
	if err != nil {
		return "", err
	}

	if n < 0 {
		return "", ErrNegativeLength
	}

	if n > MaxStringLen {
		return "", ErrStringTooLong
	}

	p, err := b.readable(int(n))
	if err != nil {
		return "", err
	}

	return string(p), nil
}

func (b *Buffer) ReadUUID() (uuid.UUID, error) {
	p, err := b.readable(16)
	if err != nil {
		return uuid.UUID{}, err
	}

	var id uuid.UUID
	copy(id[:], p)

	return id, nil
}
