// Package binary provides the low-level byte-cursor primitives used to
// decode the WebAssembly binary format: a position-tracking cursor over an
// in-memory byte slice, LEB128 integer decoding (including the signed
// 33-bit form used for block types and heap types), and UTF-8 name reads.
package binary

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"
)

// ErrOverflow is returned when a LEB128 value exceeds the maximum size for
// its target width.
var ErrOverflow = errors.New("leb128: integer representation too long")

// ErrUnexpectedEOF is returned when a read runs past the end of the
// underlying byte slice.
var ErrUnexpectedEOF = errors.New("unexpected end of input")

// Cursor is a position-tracking reader over an immutable byte slice. Unlike
// an io.Reader-backed reader, it supports Peek and SliceWith, both required
// to decode block types (which need a lookahead byte) and to bound a
// section or function body to its declared byte length before recursing
// into it.
type Cursor struct {
	buf          []byte
	pos          int
	validateUTF8 bool
}

// NewCursor creates a Cursor over buf starting at position 0.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf, validateUTF8: true}
}

// SetValidateUTF8 toggles UTF-8 validation on ReadName. Validation is on by
// default; disabling it is a caller-requested performance opt-out for
// trusted input.
func (c *Cursor) SetValidateUTF8(v bool) {
	c.validateUTF8 = v
}

// Position returns the current byte offset from the start of the slice this
// Cursor was created over (not the original top-level buffer, for a Cursor
// produced by SliceWith).
func (c *Cursor) Position() int {
	return c.pos
}

// Len returns the total length of the underlying slice.
func (c *Cursor) Len() int {
	return len(c.buf)
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.buf) - c.pos
}

// IsEmpty reports whether the cursor has no more bytes to read.
func (c *Cursor) IsEmpty() bool {
	return c.pos >= len(c.buf)
}

// RemainingSlice returns the unread tail of the underlying buffer. The
// returned slice aliases the Cursor's storage and must not be retained
// past the lifetime of the input byte slice passed to the parser.
func (c *Cursor) RemainingSlice() []byte {
	return c.buf[c.pos:]
}

// SliceWith carves out a child Cursor over exactly the next n bytes and
// advances this cursor past them. It is used to bound a section or a
// function body to its declared length before decoding its contents, so
// decoding one entry can never read into the next.
func (c *Cursor) SliceWith(n int) (*Cursor, error) {
	if n < 0 || c.Remaining() < n {
		return nil, ErrUnexpectedEOF
	}
	sub := &Cursor{buf: c.buf[c.pos : c.pos+n], validateUTF8: c.validateUTF8}
	c.pos += n
	return sub, nil
}

// Peek returns the next byte without advancing the cursor.
func (c *Cursor) Peek() (byte, error) {
	if c.pos >= len(c.buf) {
		return 0, ErrUnexpectedEOF
	}
	return c.buf[c.pos], nil
}

// ReadByte reads a single byte and advances the cursor.
func (c *Cursor) ReadByte() (byte, error) {
	if c.pos >= len(c.buf) {
		return 0, ErrUnexpectedEOF
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

// ReadBytes reads exactly n bytes and returns a fresh copy (never an alias
// into the Cursor's backing array), so callers can retain it independent
// of the input buffer's lifetime.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if n < 0 || c.Remaining() < n {
		return nil, ErrUnexpectedEOF
	}
	out := make([]byte, n)
	copy(out, c.buf[c.pos:c.pos+n])
	c.pos += n
	return out, nil
}

// ReadVarU32 reads an unsigned LEB128-encoded value into a uint32.
func (c *Cursor) ReadVarU32() (uint32, error) {
	v, err := c.readVarUint(35)
	return uint32(v), err
}

// ReadVarU64 reads an unsigned LEB128-encoded value into a uint64.
func (c *Cursor) ReadVarU64() (uint64, error) {
	return c.readVarUint(70)
}

func (c *Cursor) readVarUint(maxShift uint) (uint64, error) {
	var result uint64
	var shift uint
	for {
		b, err := c.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
		if shift >= maxShift {
			return 0, c.wrapError(ErrOverflow)
		}
	}
}

// ReadVarS32 reads a signed LEB128-encoded value into an int32.
func (c *Cursor) ReadVarS32() (int32, error) {
	v, err := c.readVarInt(35)
	return int32(v), err
}

// ReadVarS64 reads a signed LEB128-encoded value into an int64.
func (c *Cursor) ReadVarS64() (int64, error) {
	return c.readVarInt(70)
}

func (c *Cursor) readVarInt(maxShift uint) (int64, error) {
	var result int64
	var shift uint
	var b byte
	var err error
	for {
		b, err = c.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if shift >= maxShift {
			return 0, c.wrapError(ErrOverflow)
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= ^int64(0) << shift
	}
	return result, nil
}

// ReadVarS33 reads the signed 33-bit LEB128 form used for block types and
// heap types. Ported from the reference algorithm used by wasmparser/
// wasm-tools: a single-byte fast path sign-extends bit 6 of that byte, and
// the multi-byte path accumulates 7 bits per byte, validating on the fifth
// byte (the one read with shift 28) that it ends the encoding and that its
// unused high bits agree with the sign bit before sign-extending the
// 33-bit result out to 64 bits.
func (c *Cursor) ReadVarS33() (int64, error) {
	b, err := c.ReadByte()
	if err != nil {
		return 0, err
	}
	if b&0x80 == 0 {
		return int64(int8(b<<1)) >> 1, nil
	}
	result := int64(b & 0x7f)
	shift := uint(7)
	for {
		b, err = c.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= int64(b&0x7f) << shift
		if shift >= 25 {
			continuationBit := b&0x80 != 0
			signAndUnused := int8(b<<1) >> (33 - shift)
			if continuationBit || (signAndUnused != 0 && signAndUnused != -1) {
				return 0, c.wrapError(ErrOverflow)
			}
			return (result << 31) >> 31, nil
		}
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	ashift := uint(64 - shift)
	return (result << ashift) >> ashift, nil
}

// ReadName reads a length-prefixed UTF-8 string: a var_u32 byte length
// followed by that many bytes.
func (c *Cursor) ReadName() (string, error) {
	length, err := c.ReadVarU32()
	if err != nil {
		return "", err
	}
	data, err := c.ReadBytes(int(length))
	if err != nil {
		return "", err
	}
	if c.validateUTF8 && !utf8.Valid(data) {
		return "", c.wrapError(errors.New("invalid UTF-8 in name"))
	}
	return string(data), nil
}

// ReadU32LE reads a fixed-width little-endian uint32 (used only for the
// module header's magic and version fields, which are not LEB128-encoded).
func (c *Cursor) ReadU32LE() (uint32, error) {
	buf, err := c.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// ReadF32 reads a fixed-width little-endian IEEE-754 single-precision float.
func (c *Cursor) ReadF32() (float32, error) {
	buf, err := c.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(buf)), nil
}

// ReadF64 reads a fixed-width little-endian IEEE-754 double-precision float.
func (c *Cursor) ReadF64() (float64, error) {
	buf, err := c.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf)), nil
}

func (c *Cursor) wrapError(err error) error {
	return fmt.Errorf("at position %d: %w", c.pos, err)
}
