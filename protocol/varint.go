package protocol

import (
	"github.com/go-pantheon/fabrica-util/errors"
)

// ErrVarIntTooLong is returned when a varint runs past five bytes.
var ErrVarIntTooLong = errors.New("varint over 5 bytes")

// MaxVarIntLen is the longest wire form of a 32-bit varint.
const MaxVarIntLen = 5

// WriteVarInt appends v in base-128 varint form: 7 data bits per byte,
// little-endian group order, high bit set on every byte but the last.
// Negative values carry no zig-zag remapping and always take 5 bytes.
func (b *Buffer) WriteVarInt(v int32) {
	u := uint32(v)

	for u&^0x7F != 0 {
		b.WriteUint8(byte(u&0x7F | 0x80))
		u >>= 7
	}

	b.WriteUint8(byte(u))
}

// ReadVarInt decodes a base-128 varint at the cursor.
func (b *Buffer) ReadVarInt() (int32, error) {
	var v uint32

	for i := 0; ; i++ {
		if i == MaxVarIntLen {
			return 0, ErrVarIntTooLong
		}

		c, err := b.ReadUint8()
		if err != nil {
			return 0, err
		}

		v |= uint32(c&0x7F) << (7 * i)

		if c&0x80 == 0 {
			return int32(v), nil
		}
	}
}

// VarIntSize returns the number of bytes WriteVarInt emits for v.
func VarIntSize(v int32) int {
	u := uint32(v)

	switch {
	case u < 1<<7:
		return 1
	case u < 1<<14:
		return 2
	case u < 1<<21:
		return 3
	case u < 1<<28:
		return 4
	default:
		return 5
	}
}

// AppendVarInt appends v to p in varint form and returns the extended slice.
func AppendVarInt(p []byte, v int32) []byte {
	u := uint32(v)

	for u&^0x7F != 0 {
		p = append(p, byte(u&0x7F|0x80))
		u >>= 7
	}

	return append(p, byte(u))
}
