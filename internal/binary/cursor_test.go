package binary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorReadByte(t *testing.T) {
	c := NewCursor([]byte{0x01, 0x02, 0x03})

	for i, want := range []byte{0x01, 0x02, 0x03} {
		assert.Equal(t, i, c.Position())
		b, err := c.ReadByte()
		require.NoError(t, err)
		assert.Equal(t, want, b)
	}

	assert.Equal(t, 3, c.Position())
	assert.True(t, c.IsEmpty())
	_, err := c.ReadByte()
	assert.ErrorIs(t, err, ErrUnexpectedEOF)
}

func TestCursorSliceWith(t *testing.T) {
	c := NewCursor([]byte{0x01, 0x02, 0x03, 0x04, 0x05})

	sub, err := c.SliceWith(3)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Position())
	assert.Equal(t, 3, sub.Remaining())

	b, err := sub.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), b)

	// The parent cursor is unaffected by reads on the child.
	b, err = c.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x04), b)

	_, err = c.SliceWith(10)
	assert.ErrorIs(t, err, ErrUnexpectedEOF)
}

func TestCursorReadVarU32(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint32
	}{
		{"zero", []byte{0x00}, 0},
		{"one byte", []byte{0x7F}, 127},
		{"three bytes", []byte{0xE5, 0x8E, 0x26}, 624485},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCursor(tt.data)
			got, err := c.ReadVarU32()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCursorReadVarS32(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want int32
	}{
		{"zero", []byte{0x00}, 0},
		{"-1", []byte{0x7F}, -1},
		{"-624485", []byte{0x9B, 0xF1, 0x59}, -624485},
		{"42", []byte{0x2A}, 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCursor(tt.data)
			got, err := c.ReadVarS32()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestCursorReadVarS33 checks the values ReadVarS33 yields for the bytes
// block types and heap types use: the negative values of the single-byte
// forms (void, valtype tags, funcref) and ordinary non-negative type
// indices.
func TestCursorReadVarS33(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want int64
	}{
		{"void block type", []byte{0x40}, -64},
		{"i32 block type", []byte{0x7F}, -1},
		{"funcref heap type", []byte{0x70}, -16},
		{"type index 5", []byte{0x05}, 5},
		{"type index 300", []byte{0xAC, 0x02}, 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCursor(tt.data)
			got, err := c.ReadVarS33()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCursorReadName(t *testing.T) {
	data := append([]byte{0x05}, []byte("hello")...)
	c := NewCursor(data)
	name, err := c.ReadName()
	require.NoError(t, err)
	assert.Equal(t, "hello", name)
}

func TestCursorReadNameInvalidUTF8(t *testing.T) {
	data := []byte{0x02, 0xFF, 0xFE}
	c := NewCursor(data)
	_, err := c.ReadName()
	assert.Error(t, err)
}

func TestCursorReadF32(t *testing.T) {
	c := NewCursor([]byte{0x00, 0x00, 0x28, 0x42}) // 42.0 as little-endian f32
	f, err := c.ReadF32()
	require.NoError(t, err)
	assert.Equal(t, float32(42.0), f)
}
