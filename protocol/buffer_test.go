package protocol

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferPrimitives(t *testing.T) {
	t.Parallel()

	b := NewBuffer()
	b.WriteUint8(0xAB)
	b.WriteUint16(0xBEEF)
	b.WriteUint32(0xDEADBEEF)
	b.WriteInt64(-42)
	b.WriteFloat32(1.5)
	b.WriteFloat64(-2.25)
	b.WriteBool(true)
	b.WriteBool(false)

	b.Rewind()

	u8, err := b.ReadUint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0xAB), u8)

	u16, err := b.ReadUint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0xBEEF), u16)

	u32, err := b.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), u32)

	i64, err := b.ReadInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(-42), i64)

	f32, err := b.ReadFloat32()
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), f32)

	f64, err := b.ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, -2.25, f64)

	v, err := b.ReadBool()
	require.NoError(t, err)
	assert.True(t, v)

	v, err = b.ReadBool()
	require.NoError(t, err)
	assert.False(t, v)

	assert.Equal(t, 0, b.Remaining())
}

func TestBufferBigEndian(t *testing.T) {
	t.Parallel()

	b := NewBuffer()
	b.WriteUint16(0x0102)
	b.WriteUint32(0x03040506)

	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}, b.Bytes())
}

func TestBufferStringsAndArrays(t *testing.T) {
	t.Parallel()

	b := NewBuffer()
	b.WriteString("hello")
	b.WriteString("")
	b.WriteByteArray([]byte{1, 2, 3})
	b.WriteByteArray(nil)

	id := uuid.MustParse("f84c6a79-0a4e-45e0-879b-cd49ebd4c4e2")
	b.WriteUUID(id)

	b.Rewind()

	s, err := b.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	s, err = b.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "", s)

	p, err := b.ReadByteArray()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, p)

	p, err = b.ReadByteArray()
	require.NoError(t, err)
	assert.Empty(t, p)

	got, err := b.ReadUUID()
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestBufferFailFastUnderrun(t *testing.T) {
	t.Parallel()

	b := Wrap([]byte{0x01, 0x02})

	_, err := b.ReadUint32()
	assert.ErrorIs(t, err, ErrEndOfBuffer)

	// A failed read must not move the cursor past valid data silently; the
	// cursor stays where it was so the error is re-observable.
	_, err = b.ReadUint32()
	assert.ErrorIs(t, err, ErrEndOfBuffer)
}

func TestBufferNegativeLengthPrefix(t *testing.T) {
	t.Parallel()

	b := NewBuffer()
	b.WriteVarInt(-5)
	b.Rewind()

	_, err := b.ReadString()
	assert.ErrorIs(t, err, ErrNegativeLength)
}

func TestBufferSeekClamped(t *testing.T) {
	t.Parallel()

	b := Wrap([]byte{1, 2, 3})

	b.Seek(100)
	assert.Equal(t, 3, b.Cursor())

	b.Seek(-7)
	assert.Equal(t, 0, b.Cursor())

	b.Seek(2)
	assert.Equal(t, 2, b.Cursor())
	assert.Equal(t, 1, b.Remaining())
}

func TestBufferShiftRemaining(t *testing.T) {
	t.Parallel()

	b := Wrap([]byte{1, 2, 3, 4, 5})
	b.Seek(3)

	b.ShiftRemaining()

	assert.Equal(t, []byte{4, 5}, b.Bytes())
	assert.Equal(t, 0, b.Cursor())
	assert.Equal(t, 2, b.Remaining())
}

func TestBufferInflateAndTruncate(t *testing.T) {
	t.Parallel()

	b := NewBuffer()
	b.WriteBytes([]byte{1, 2})
	b.Rewind()

	p := b.InflateToCapacity()
	require.NotEmpty(t, p)
	p[0] = 3

	b.Truncate(3)

	assert.Equal(t, []byte{1, 2, 3}, b.Bytes())
	assert.Equal(t, 3, b.Remaining())
}

func TestBufferWriteExtends(t *testing.T) {
	t.Parallel()

	b := Wrap([]byte{1, 2, 3})
	b.Seek(2)

	// Writing from mid-buffer overwrites the tail then extends.
	b.WriteBytes([]byte{9, 9, 9})

	assert.Equal(t, []byte{1, 2, 9, 9, 9}, b.Bytes())
	assert.Equal(t, 5, b.Len())
}
