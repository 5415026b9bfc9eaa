package speck

import (
	"errors"

	"github.com/scidata-tools/wavecore/pkg/acoder"
)

// Coder1D is a dedicated bit-plane coder for a single strided 1D
// magnitude array, used where the 3D Coder's generality isn't needed:
// a packet-mode decomposition that leaves the spatial axes undecomposed
// produces one independent 1D detail profile per (x,y) line, and each
// is coded through its own Coder1D rather than being wrapped in a
// throwaway 3D Dims{NX:1,NY:1,NZ:n} Coder.
//
// Initialization carves the largest power-of-two-length prefix off as
// an ordinary top-level Set and leaves the remainder as a distinguished
// tail "I" region, tested as a whole and grown chunk-by-chunk only once
// it tests significant, rather than pre-partitioned down to pixels.
type Coder1D struct {
	mag  []uint64
	sign []bool

	arena   arena
	lis     [][]int
	lip     []int
	lspMask []bool
	lspNew  []int

	iOff, iLen int // pending tail region not yet folded into the set tree
	iChunk     int // size of the next chunk carved from the tail

	bank *acoder.Bank
	enc  *acoder.Encoder
	dec  *acoder.Decoder

	threshold    uint64
	numBitplanes int
	bp           int
}

// NewEncoder1D builds a 1D encoder over mag/sign with an optional byte
// budget (0 = unlimited).
func NewEncoder1D(mag []uint64, sign []bool, budgetBytes int) *Coder1D {
	c := newCoder1D(mag, sign)
	c.bank = acoder.NewBank(NumContexts, false)
	c.enc = acoder.NewEncoder(c.bank, budgetBytes)
	return c
}

// NewDecoder1D mirrors NewEncoder1D, reading from an encoded stream.
// mag/sign must be pre-sized to the original length and are filled in
// place. numBitplanes is the value the encoder reported (NumBitplanes);
// it cannot be rederived from mag here since mag is still a zero-valued
// output buffer, not the original data.
func NewDecoder1D(mag []uint64, sign []bool, numBitplanes int, data []byte) *Coder1D {
	c := newCoder1D(mag, sign)
	if numBitplanes < 1 {
		numBitplanes = 1
	}
	c.numBitplanes = numBitplanes
	c.threshold = uint64(1) << uint(numBitplanes-1)
	c.bank = acoder.NewBank(NumContexts, false)
	c.dec = acoder.NewDecoder(c.bank, data)
	return c
}

func levelFor1D(n int) int {
	lvl := 0
	for (1 << uint(lvl)) < n {
		lvl++
	}
	return lvl
}

func newCoder1D(mag []uint64, sign []bool) *Coder1D {
	n := len(mag)
	c := &Coder1D{mag: mag, sign: sign, lspMask: make([]bool, n)}

	p2 := 1
	for p2*2 <= n {
		p2 *= 2
	}
	if p2 > n {
		p2 = n
	}
	c.lis = make([][]int, levelFor1D(p2)+1)
	if p2 > 0 {
		idx := c.arena.alloc(Set{OX: 0, NX: p2, NY: 1, NZ: 1, Level: levelFor1D(p2)})
		c.pushSet(idx)
	}
	c.iOff = p2
	c.iLen = n - p2
	c.iChunk = p2
	if c.iChunk == 0 {
		c.iChunk = 1
	}

	var maxMag uint64
	for _, v := range mag {
		if v > maxMag {
			maxMag = v
		}
	}
	if maxMag == 0 {
		c.numBitplanes = 1
	} else {
		bp := 0
		for (uint64(1) << uint(bp)) <= maxMag {
			bp++
		}
		c.numBitplanes = bp
	}
	c.threshold = uint64(1) << uint(c.numBitplanes-1)
	return c
}

func (c *Coder1D) pushSet(idx int) {
	s := c.arena.get(idx)
	if s.IsPixel() {
		c.lip = append(c.lip, s.OX)
		return
	}
	for s.Level >= len(c.lis) {
		c.lis = append(c.lis, nil)
	}
	c.lis[s.Level] = append(c.lis[s.Level], idx)
}

func (c *Coder1D) codeBit(ctx int, bit int) (int, error) {
	if c.enc != nil {
		if err := c.enc.Encode(bit, ctx); err != nil {
			return 0, err
		}
		return bit, nil
	}
	return c.dec.Decode(ctx), nil
}

func (c *Coder1D) regionSignificant(off, n int, T uint64) bool {
	for i := off; i < off+n; i++ {
		if c.mag[i] >= T {
			return true
		}
	}
	return false
}

// codeSignificance mirrors Coder.codeSignificance: idx selects a pixel
// (setOff<0) or a region [setOff,setOff+setLen) (idx<0).
func (c *Coder1D) codeSignificance(ctx int, idx, setOff, setLen int, T uint64) (bool, error) {
	bitVal := 0
	if c.enc != nil {
		if idx >= 0 {
			bitVal = boolToBit(c.mag[idx] >= T)
		} else {
			bitVal = boolToBit(c.regionSignificant(setOff, setLen, T))
		}
	}
	bit, err := c.codeBit(ctx, bitVal)
	if err != nil {
		return false, err
	}
	return bit == 1, nil
}

func (c *Coder1D) markSignificant(idx int, T uint64) error {
	bit, err := c.codeBit(CtxSign, boolToBit(c.sign[idx]))
	if err != nil {
		return err
	}
	if c.dec != nil {
		c.sign[idx] = bit == 1
		c.mag[idx] += T
	} else {
		c.mag[idx] -= T
	}
	c.lspNew = append(c.lspNew, idx)
	return nil
}

// codeS partitions a 1D set by bisection (first_len = len - len/2),
// identical to Coder.split1D, with NoCode inference for a lone last
// child when the first tested insignificant.
func (c *Coder1D) codeS(idx int, T uint64) error {
	s := *c.arena.get(idx)
	first, second := bisectHalves(s.NX)
	children := []Set{
		{OX: s.OX + first.offset, NX: first.extent, NY: 1, NZ: 1, Level: s.Level - 1},
		{OX: s.OX + second.offset, NX: second.extent, NY: 1, NZ: 1, Level: s.Level - 1},
	}

	sigFirst := false
	for i, ch := range children {
		isLast := i == len(children)-1
		var sig bool
		var err error
		if isLast && !sigFirst {
			sig = true // single-sibling inference: the other half must hold it
		} else if ch.IsPixel() {
			sig, err = c.codeSignificance(CtxSignificance, ch.OX, -1, -1, T)
		} else {
			sig, err = c.codeSignificance(CtxSignificance, -1, ch.OX, ch.NX, T)
		}
		if err != nil {
			return err
		}
		if ch.IsPixel() {
			if sig {
				if err := c.markSignificant(ch.OX, T); err != nil {
					return err
				}
			} else {
				c.lip = append(c.lip, ch.OX)
			}
		} else {
			childIdx := c.arena.alloc(ch)
			if sig {
				if err := c.codeS(childIdx, T); err != nil {
					return err
				}
				c.arena.get(childIdx).Empty = true
			} else {
				c.pushSet(childIdx)
			}
		}
		if i == 0 {
			sigFirst = sig
		}
	}
	return nil
}

// growTail is entered once the pending "I" tail as a whole has tested
// significant: carve the next chunk off, recurse into it if
// significant, and otherwise infer the remaining (now whole) tail
// significant without coding a bit, continuing to carve until a
// significant chunk is found or the tail is exhausted.
func (c *Coder1D) growTail(T uint64) error {
	for c.iLen > 0 {
		chunk := c.iChunk
		if chunk > c.iLen {
			chunk = c.iLen
		}
		remaining := c.iLen - chunk

		var sig bool
		var err error
		if remaining == 0 {
			sig = true
		} else {
			off := c.iOff
			if chunk == 1 {
				sig, err = c.codeSignificance(CtxSignificance, off, -1, -1, T)
			} else {
				sig, err = c.codeSignificance(CtxSignificance, -1, off, chunk, T)
			}
			if err != nil {
				return err
			}
		}

		set := Set{OX: c.iOff, NX: chunk, NY: 1, NZ: 1, Level: levelFor1D(chunk)}
		c.iOff += chunk
		c.iLen = remaining

		if chunk == 1 {
			if sig {
				if err := c.markSignificant(set.OX, T); err != nil {
					return err
				}
			} else {
				c.lip = append(c.lip, set.OX)
			}
		} else {
			idx := c.arena.alloc(set)
			if sig {
				if err := c.codeS(idx, T); err != nil {
					return err
				}
				c.arena.get(idx).Empty = true
			} else {
				c.pushSet(idx)
			}
		}

		if remaining == 0 {
			break
		}
		if !sig {
			continue // remaining inferred significant; keep carving
		}
		break // chunk was significant; remaining's status isn't implied, retest next bit-plane
	}
	return nil
}

func (c *Coder1D) sortingPass() error {
	T := c.threshold
	newLIP := c.lip[:0]
	for _, idx := range c.lip {
		sig, err := c.codeSignificance(CtxSignificance, idx, -1, -1, T)
		if err != nil {
			return err
		}
		if sig {
			if err := c.markSignificant(idx, T); err != nil {
				return err
			}
		} else {
			newLIP = append(newLIP, idx)
		}
	}
	c.lip = newLIP

	snapshot := c.lis
	c.lis = make([][]int, len(snapshot))
	for lvl := len(snapshot) - 1; lvl >= 0; lvl-- {
		for _, setIdx := range snapshot[lvl] {
			s := c.arena.get(setIdx)
			if s.Empty {
				continue
			}
			sig, err := c.codeSignificance(CtxSignificance, -1, s.OX, s.NX, T)
			if err != nil {
				return err
			}
			if sig {
				if err := c.codeS(setIdx, T); err != nil {
					return err
				}
				s.Empty = true
			} else {
				c.lis[lvl] = append(c.lis[lvl], setIdx)
			}
		}
	}

	if c.iLen > 0 {
		sig, err := c.codeSignificance(CtxSignificance, -1, c.iOff, c.iLen, T)
		if err != nil {
			return err
		}
		if sig {
			if err := c.growTail(T); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Coder1D) refinementPass() error {
	T := c.threshold
	newSet := make(map[int]bool, len(c.lspNew))
	for _, idx := range c.lspNew {
		newSet[idx] = true
	}
	for idx, inLSP := range c.lspMask {
		if !inLSP || newSet[idx] {
			continue
		}
		bitVal := 0
		if c.enc != nil {
			bitVal = boolToBit(c.mag[idx] >= T)
		}
		bit, err := c.codeBit(CtxRefinement, bitVal)
		if err != nil {
			return err
		}
		if bit == 1 {
			if c.dec != nil {
				c.mag[idx] += T
			} else {
				c.mag[idx] -= T
			}
		}
	}
	return nil
}

func (c *Coder1D) sweep() {
	for _, idx := range c.lspNew {
		c.lspMask[idx] = true
	}
	c.lspNew = c.lspNew[:0]
}

// Step runs one bit-plane and reports whether further bit-planes
// remain, mirroring Coder.Step.
func (c *Coder1D) Step() (more bool, err error) {
	if c.bp >= c.numBitplanes {
		return false, nil
	}
	if err := c.sortingPass(); err != nil {
		return false, err
	}
	if err := c.refinementPass(); err != nil {
		return false, err
	}
	c.threshold /= 2
	c.sweep()
	c.bp++
	return c.bp < c.numBitplanes, nil
}

// Run drives Step to completion.
func (c *Coder1D) Run() error {
	for {
		more, err := c.Step()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

// Flush finalizes an encoding session and returns the emitted bytes.
func (c *Coder1D) Flush() ([]byte, error) {
	if c.enc == nil {
		return nil, errors.New("speck: Flush called on a decoder")
	}
	return c.enc.Flush(), nil
}

// NumBitplanes reports the bit-plane count derived at construction.
func (c *Coder1D) NumBitplanes() int {
	return c.numBitplanes
}
