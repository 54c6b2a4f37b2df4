package payload

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestByteParser_ReadsFixedWidthFields(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x00, 0x00, 0x00, 0x04, 0xAA, 0xBB}
	p := NewByteParser(data)

	u8, err := p.Uint8()
	require.NoError(t, err)
	require.Equal(t, uint8(1), u8)

	u16, err := p.Uint16()
	require.NoError(t, err)
	require.Equal(t, uint16(0x0203), u16)

	u32, err := p.Uint32()
	require.NoError(t, err)
	require.Equal(t, uint32(4), u32)

	rest, err := p.Bytes(2)
	require.NoError(t, err)
	require.Equal(t, []byte{0xAA, 0xBB}, rest)

	require.Equal(t, 0, p.Remaining())
}

func TestByteParser_ShortBufferErrors(t *testing.T) {
	p := NewByteParser([]byte{0x01})
	_, err := p.Uint32()
	require.ErrorIs(t, err, ErrShortBuffer)
}

func TestByteParser_Int32SignedRoundTrip(t *testing.T) {
	p := NewByteParser([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	v, err := p.Int32()
	require.NoError(t, err)
	require.Equal(t, int32(-1), v)
}

func TestByteParser_Drain(t *testing.T) {
	p := NewByteParser([]byte{1, 2, 3, 4})
	_, _ = p.Uint8()
	require.Equal(t, []byte{2, 3, 4}, p.Drain())
	require.Equal(t, 0, p.Remaining())
}

func TestByteParser_Address(t *testing.T) {
	raw := make([]byte, 20)
	raw[19] = 0x42
	p := NewByteParser(raw)
	a, err := p.Address()
	require.NoError(t, err)
	require.Equal(t, byte(0x42), a[19])
}
