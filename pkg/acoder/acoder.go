// Package acoder implements the context-adaptive binary arithmetic
// coder that every set-partitioning coder (speck, tarp) serializes
// through: a bank of per-context probability models, start/encode/
// decode/flush, and an optional non-adaptive (frozen-table) mode
//. The state-transition table and renormalization
// procedure follow the classical Qe-based binary arithmetic coder
// construction used throughout the wavelet/EBCOT literature.
package acoder

import "github.com/scidata-tools/wavecore/pkg/wavecore"

// Context holds one context's adaptive state: an index into the
// probability-estimation table plus the current most-probable symbol.
type Context struct {
	Index int
	MPS   int
}

// transition is one row of the probability estimation state machine:
// Qe (the LPS probability estimate, fixed point), the next state on
// MPS, the next state on LPS, and whether an LPS occurrence should
// also swap MPS/LPS roles (used near the low-probability tail of the
// table, where the "more probable" symbol itself is uncertain).
type transition struct {
	qe   uint32
	nmps int
	nlps int
	swap int
}

// table is the shared, read-only state machine. It is initialized
// once at program start (a package-level literal) and never mutated,
// satisfying the "no global mutable state" resource-model rule
//; every Context only ever indexes into it.
var table = []transition{
	{0x5601, 1, 1, 1},
	{0x3401, 2, 6, 0},
	{0x1801, 3, 9, 0},
	{0x0AC1, 4, 12, 0},
	{0x0521, 5, 29, 0},
	{0x0221, 38, 33, 0},
	{0x5601, 7, 6, 1},
	{0x5401, 8, 14, 0},
	{0x4801, 9, 14, 0},
	{0x3801, 10, 14, 0},
	{0x3001, 11, 17, 0},
	{0x2401, 12, 18, 0},
	{0x1C01, 13, 20, 0},
	{0x1601, 29, 21, 0},
	{0x5601, 15, 14, 1},
	{0x5401, 16, 14, 0},
	{0x5101, 17, 15, 0},
	{0x4801, 18, 16, 0},
	{0x3801, 19, 17, 0},
	{0x3401, 20, 18, 0},
	{0x3001, 21, 19, 0},
	{0x2801, 22, 19, 0},
	{0x2401, 23, 20, 0},
	{0x2201, 24, 21, 0},
	{0x1C01, 25, 22, 0},
	{0x1801, 26, 23, 0},
	{0x1601, 27, 24, 0},
	{0x1401, 28, 25, 0},
	{0x1201, 29, 26, 0},
	{0x1101, 30, 27, 0},
	{0x0AC1, 31, 28, 0},
	{0x09C1, 32, 29, 0},
	{0x08A1, 33, 30, 0},
	{0x0521, 34, 31, 0},
	{0x0441, 35, 32, 0},
	{0x02A1, 36, 33, 0},
	{0x0221, 37, 34, 0},
	{0x0141, 38, 35, 0},
	{0x0111, 39, 36, 0},
	{0x0085, 40, 37, 0},
	{0x0049, 41, 38, 0},
	{0x0025, 42, 39, 0},
	{0x0015, 43, 40, 0},
	{0x0009, 44, 41, 0},
	{0x0005, 45, 42, 0},
	{0x0001, 45, 43, 0},
	{0x5601, 46, 46, 0},
}

// EquiprobableIndex is a table row whose Qe represents p=0.5 and whose
// MPS and LPS transitions both lead back to itself, so a context at
// this index never changes state. No coder here uses it: NewBank
// starts every context at index 0, and a non-adaptive bank keeps each
// context at the index it starts from.
const EquiprobableIndex = 46

// NewContext returns a context initialized to the equiprobable state
// with the given initial MPS guess.
func NewContext(mps int) Context {
	return Context{Index: 0, MPS: mps}
}

// Bank is a set of K named contexts, all sharing the read-only table.
// Per-context `current_context` is selected by the caller immediately
// before each symbol.
type Bank struct {
	contexts []Context
	nonAdapt bool
}

// NewBank allocates n contexts, all starting equiprobable.
func NewBank(n int, nonAdaptive bool) *Bank {
	return &Bank{contexts: make([]Context, n), nonAdapt: nonAdaptive}
}

// Context returns a pointer to context i for direct inspection (tests
// rely on this to assert state evolution).
func (b *Bank) Context(i int) *Context {
	return &b.contexts[i]
}

// Len returns the number of contexts in the bank.
func (b *Bank) Len() int {
	return len(b.contexts)
}

// Reset restores every context to the equiprobable state.
func (b *Bank) Reset() {
	for i := range b.contexts {
		b.contexts[i] = Context{}
	}
}

// Encoder is a binary arithmetic encoder driven by a Bank. Budget, if
// non-zero, caps the number of emitted bytes; Encode returns
// wavecore.ErrBudgetMet once that cap would be exceeded, so the
// bit-plane controller can terminate without corrupting the stream.
type Encoder struct {
	bank   *Bank
	out    []byte
	a      uint32
	c      uint32
	ct     int
	tByte  byte
	length int // -1 before the first putByte, like the classical coder
	budget int // max output bytes, 0 = unlimited
}

// NewEncoder creates an encoder bound to bank with an optional byte
// budget (0 disables the budget check).
func NewEncoder(bank *Bank, budgetBytes int) *Encoder {
	return &Encoder{
		bank:   bank,
		out:    make([]byte, 0, 256),
		a:      0x8000,
		c:      0,
		ct:     12,
		length: -1,
		budget: budgetBytes,
	}
}

// Encode codes one bit under context ctxIdx. It returns
// wavecore.ErrBudgetMet if doing so would exceed the configured byte
// budget; the caller must stop the current pass without acting on the
// bit that triggered it.
func (e *Encoder) Encode(bit int, ctxIdx int) error {
	if e.budget > 0 && len(e.out) >= e.budget {
		return wavecore.ErrBudgetMet
	}
	ctx := &e.bank.contexts[ctxIdx]
	row := &table[ctx.Index]
	qe := row.qe
	e.a -= qe

	if bit == ctx.MPS {
		if e.a < 0x8000 {
			if e.a < qe {
				e.c += e.a
				e.a = qe
			}
			if !e.bank.nonAdapt {
				ctx.Index = row.nmps
			}
			e.renorm()
		}
	} else {
		if e.a >= qe {
			e.c += e.a
			e.a = qe
		}
		if !e.bank.nonAdapt {
			if row.swap != 0 {
				ctx.MPS = 1 - ctx.MPS
			}
			ctx.Index = row.nlps
		}
		e.renorm()
	}
	return nil
}

func (e *Encoder) renorm() {
	for e.a < 0x8000 {
		e.a <<= 1
		e.c <<= 1
		e.ct--
		if e.ct == 0 {
			e.putByte()
		}
	}
}

func (e *Encoder) putByte() {
	if e.length >= 0 {
		if e.c < 0x8000000 {
			e.emit(e.tByte)
		} else {
			e.tByte++
			if e.tByte == 0 {
				e.emit(0xFF)
				e.emit(0x00)
				e.tByte = 0
			} else {
				e.emit(e.tByte)
			}
			e.c &= 0x7FFFFFF
			if e.tByte == 0xFF {
				// The carry produced a 0xFF byte: the next byte carries
				// only 7 bits, as the decoder expects after 0xFF.
				e.tByte = byte(e.c >> 20)
				e.c &= 0xFFFFF
				e.ct = 7
				e.length++
				return
			}
		}
	}
	e.tByte = byte(e.c >> 19)
	e.c &= 0x7FFFF
	if e.tByte == 0xFF {
		e.ct = 7
	} else {
		e.ct = 8
	}
	e.length++
}

func (e *Encoder) emit(b byte) {
	e.out = append(e.out, b)
}

// Flush terminates the codestream and returns the emitted bytes. The
// Encoder must not be used for further Encode calls afterward.
func (e *Encoder) Flush() []byte {
	e.setBits()
	e.c <<= uint(e.ct)
	e.putByte()
	e.c <<= uint(e.ct)
	e.putByte()
	e.emit(e.tByte)
	if e.tByte == 0xFF {
		e.emit(0x00)
	}
	return e.out
}

func (e *Encoder) setBits() {
	tmp := e.c + e.a - 1
	tmp &= 0xFFFF0000
	if tmp < e.c {
		tmp += 0x8000
	}
	e.c = tmp
}

// BytesWritten returns how many bytes have been emitted so far,
// without flushing.
func (e *Encoder) BytesWritten() int {
	return len(e.out)
}

// Decoder is the mirror of Encoder, reading from a fixed byte slice.
// Decoding past the end of the data (a truncated bitstream prefix)
// behaves as reading an infinite run of 0xFF marker bytes,
// which is how the bit-plane controller achieves graceful prefix
// decoding without a distinct EndOfStream signal at this layer — the
// controller itself stops based on LIS/LIP/LSP progress and its own
// byte-budget accounting, not on a decoder error.
type Decoder struct {
	bank *Bank
	data []byte
	pos  int
	a    uint32
	c    uint32
	ct   int
	b    byte
}

// NewDecoder creates a decoder over data bound to bank.
func NewDecoder(bank *Bank, data []byte) *Decoder {
	d := &Decoder{bank: bank, data: data, a: 0x8000}
	d.init()
	return d
}

func (d *Decoder) init() {
	d.b = d.nextByte()
	d.c = uint32(d.b) << 16
	d.fill()
	d.c <<= 7
	d.ct -= 7
	d.a = 0x8000
}

func (d *Decoder) nextByte() byte {
	if d.pos >= len(d.data) {
		return 0xFF
	}
	b := d.data[d.pos]
	d.pos++
	return b
}

func (d *Decoder) fill() {
	if d.pos >= len(d.data) {
		d.b = 0xFF
		d.ct = 8
		return
	}
	if d.b == 0xFF {
		b := d.nextByte()
		if b > 0x8F {
			d.pos--
			d.ct = 8
		} else {
			d.b = b
			d.c += uint32(d.b) << 9
			d.ct = 7
		}
	} else {
		d.b = d.nextByte()
		d.c += uint32(d.b) << 8
		d.ct = 8
	}
}

// Decode decodes one bit under context ctxIdx.
func (d *Decoder) Decode(ctxIdx int) int {
	ctx := &d.bank.contexts[ctxIdx]
	row := &table[ctx.Index]
	qe := row.qe
	d.a -= qe

	chigh := d.c >> 16
	if chigh < d.a {
		if d.a < 0x8000 {
			return d.mpsExchange(ctx, row, qe)
		}
		return ctx.MPS
	}
	return d.lpsExchange(ctx, row, qe)
}

func (d *Decoder) mpsExchange(ctx *Context, row *transition, qe uint32) int {
	var bit int
	if d.a < qe {
		bit = 1 - ctx.MPS
		if !d.bank.nonAdapt {
			if row.swap != 0 {
				ctx.MPS = 1 - ctx.MPS
			}
			ctx.Index = row.nlps
		}
	} else {
		bit = ctx.MPS
		if !d.bank.nonAdapt {
			ctx.Index = row.nmps
		}
	}
	d.renorm()
	return bit
}

func (d *Decoder) lpsExchange(ctx *Context, row *transition, qe uint32) int {
	d.c -= d.a << 16
	var bit int
	if d.a < qe {
		bit = ctx.MPS
		d.a = qe
		if !d.bank.nonAdapt {
			ctx.Index = row.nmps
		}
	} else {
		bit = 1 - ctx.MPS
		d.a = qe
		if !d.bank.nonAdapt {
			if row.swap != 0 {
				ctx.MPS = 1 - ctx.MPS
			}
			ctx.Index = row.nlps
		}
	}
	d.renorm()
	return bit
}

func (d *Decoder) renorm() {
	for d.a < 0x8000 {
		if d.ct == 0 {
			d.fill()
		}
		d.a <<= 1
		d.c <<= 1
		d.ct--
	}
}
