// Package bitio implements the append/consume bit buffer that every
// other codec package serializes through: single bits, bytes, u32s and
// f64s, little-endian on the wire for multi-byte values, with
// byte-aligned flush/read-past-end framing.
package bitio

import (
	"math"

	"github.com/scidata-tools/wavecore/pkg/wavecore"
)

// Writer is an append-only bit buffer. The zero value is ready to use.
type Writer struct {
	buf      []byte
	cur      byte // partially filled trailing byte
	curBits  int  // number of valid bits already placed in cur (MSB-first)
	bitCount int  // total bits appended, including flushed ones
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// PutBit appends a single bit (0 or 1).
func (w *Writer) PutBit(b int) {
	w.cur = (w.cur << 1) | byte(b&1)
	w.curBits++
	w.bitCount++
	if w.curBits == 8 {
		w.buf = append(w.buf, w.cur)
		w.cur = 0
		w.curBits = 0
	}
}

// PutByte appends a full byte, bit by bit, MSB first, so that the
// stream stays bit-addressable even when a PutByte follows a PutBit.
func (w *Writer) PutByte(b byte) {
	for i := 7; i >= 0; i-- {
		w.PutBit(int((b >> i) & 1))
	}
}

// PutU32 appends a little-endian uint32, four PutByte calls.
func (w *Writer) PutU32(n uint32) {
	w.PutByte(byte(n))
	w.PutByte(byte(n >> 8))
	w.PutByte(byte(n >> 16))
	w.PutByte(byte(n >> 24))
}

// PutU64 appends a little-endian uint64.
func (w *Writer) PutU64(n uint64) {
	w.PutU32(uint32(n))
	w.PutU32(uint32(n >> 32))
}

// PutF64 appends an IEEE-754 double, little-endian.
func (w *Writer) PutF64(x float64) {
	w.PutU64(math.Float64bits(x))
}

// BitCount returns the number of bits appended so far (pre-flush).
func (w *Writer) BitCount() int {
	return w.bitCount
}

// Flush pads the trailing byte with zeros and returns the framed
// buffer. Safe to call more than once; bits put after a Flush start
// a new byte after the padded one.
func (w *Writer) Flush() []byte {
	if w.curBits > 0 {
		w.cur <<= uint(8 - w.curBits)
		w.buf = append(w.buf, w.cur)
		w.cur = 0
		w.curBits = 0
	}
	return w.buf
}

// Bytes returns the framed buffer without padding state reset; callers
// that need the padded form should call Flush.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Reader is a cursor-advancing bit stream over a fixed byte slice.
type Reader struct {
	data    []byte
	bytePos int
	bitPos  int // 0..7, next bit to read within data[bytePos], MSB first
}

// NewReader wraps data for bit-at-a-time consumption.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// GetBit reads a single bit. Reading past the end of data returns
// wavecore.ErrEndOfStream, the signal the bit-plane controller uses to
// terminate gracefully on a truncated prefix.
func (r *Reader) GetBit() (int, error) {
	if r.bytePos >= len(r.data) {
		return 0, wavecore.ErrEndOfStream
	}
	b := r.data[r.bytePos]
	bit := int((b >> uint(7-r.bitPos)) & 1)
	r.bitPos++
	if r.bitPos == 8 {
		r.bitPos = 0
		r.bytePos++
	}
	return bit, nil
}

// GetByte reads a full byte, one bit at a time so it composes with
// GetBit regardless of alignment.
func (r *Reader) GetByte() (byte, error) {
	var b byte
	for i := 0; i < 8; i++ {
		bit, err := r.GetBit()
		if err != nil {
			return 0, err
		}
		b = (b << 1) | byte(bit)
	}
	return b, nil
}

// GetU32 reads a little-endian uint32.
func (r *Reader) GetU32() (uint32, error) {
	var n uint32
	for i := 0; i < 4; i++ {
		b, err := r.GetByte()
		if err != nil {
			return 0, err
		}
		n |= uint32(b) << uint(8*i)
	}
	return n, nil
}

// GetU64 reads a little-endian uint64.
func (r *Reader) GetU64() (uint64, error) {
	lo, err := r.GetU32()
	if err != nil {
		return 0, err
	}
	hi, err := r.GetU32()
	if err != nil {
		return 0, err
	}
	return uint64(lo) | uint64(hi)<<32, nil
}

// GetF64 reads an IEEE-754 double, little-endian.
func (r *Reader) GetF64() (float64, error) {
	bits, err := r.GetU64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

// BitsRemaining reports how many more bits can be read before
// EndOfStream, used by the bit-plane controller to estimate whether a
// pass can still complete within a byte budget.
func (r *Reader) BitsRemaining() int {
	return (len(r.data)-r.bytePos)*8 - r.bitPos
}

// Align discards any partial byte so the next GetByte/GetU32/GetF64
// starts at a byte boundary, mirroring the encode-side framing rule
// that headers and payload are byte-aligned.
func (r *Reader) Align() {
	if r.bitPos != 0 {
		r.bitPos = 0
		r.bytePos++
	}
}
