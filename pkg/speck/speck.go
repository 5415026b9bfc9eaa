package speck

import (
	"errors"

	"github.com/scidata-tools/wavecore/pkg/acoder"
	"github.com/scidata-tools/wavecore/pkg/wavecore"
)

// Context IDs for the 3D/2D SPECK context table. The 2D
// variant only ever touches CtxSigS0/CtxSigS1 (Sig_Subset1/2 in
// QccPack's own naming); CtxSigS2 stays allocated but unused so the
// same Bank layout serves both dimensionalities.
const (
	CtxSignificance = iota
	CtxSigS0
	CtxSigS1
	CtxSigS2
	CtxSign
	CtxRefinement
	NumContexts
)

// Mask restricts which samples participate, mirroring wavelet.Mask
// without importing it (speck operates on quantized magnitudes, one
// layer below the float pyramid).
type Mask interface {
	Transparent(x, y, z int) bool
}

// SubbandInit describes one subband's top-level set, as produced by a
// wavelet.Pyramid's SubbandSize/SubbandOrigin queries. Level is the
// split-count the set starts with, which selects its LIS bucket.
// pkg/wavecodec sets Level to the smallest l with 2^l at least the
// subband's largest extent; it is not derived from the subband's
// dyadic level.
type SubbandInit struct {
	OX, OY, OZ int
	NX, NY, NZ int
	Level      int
}

// Coder is one SPECK encode or decode session over a magnitude grid.
// It owns its LIS/LIP/LSP state lists and set arena exclusively for
// the session's lifetime.
type Coder struct {
	dims wavecore.Dims
	mag  []uint64
	sign []bool
	mask Mask

	arena arena
	lis   [][]int // lis[level] -> set indices
	lip   []int   // pixel linear indices
	lspMask []bool
	lspNew  []int

	bank *acoder.Bank
	enc  *acoder.Encoder
	dec  *acoder.Decoder

	threshold    uint64
	numBitplanes int
	bp           int // next bit-plane Step will process
}

// NewEncoder builds a SPECK encoder over mag/sign, seeded from subs
// (one SubbandInit per subband, in any order), with an optional byte
// budget (0 = unlimited).
func NewEncoder(d wavecore.Dims, mag []uint64, sign []bool, subs []SubbandInit, mask Mask, budgetBytes int) *Coder {
	c := newCoder(d, mag, sign, subs, mask)
	c.bank = acoder.NewBank(NumContexts, false)
	c.enc = acoder.NewEncoder(c.bank, budgetBytes)
	return c
}

// NewDecoder mirrors NewEncoder, reading from an encoded byte stream.
// mag/sign must be pre-sized to d.Volume() and are filled in place.
// numBitplanes is the value the encoder reported (NumBitplanes) and
// the wire format transmits in speck_header; it cannot be rederived
// from mag/sign here since those are still zero-valued output
// buffers, not the original data.
func NewDecoder(d wavecore.Dims, mag []uint64, sign []bool, subs []SubbandInit, mask Mask, numBitplanes int, data []byte) *Coder {
	c := newCoder(d, mag, sign, subs, mask)
	if numBitplanes < 1 {
		numBitplanes = 1
	}
	c.numBitplanes = numBitplanes
	c.threshold = uint64(1) << uint(numBitplanes-1)
	c.bank = acoder.NewBank(NumContexts, false)
	c.dec = acoder.NewDecoder(c.bank, data)
	return c
}

func newCoder(d wavecore.Dims, mag []uint64, sign []bool, subs []SubbandInit, mask Mask) *Coder {
	c := &Coder{dims: d, mag: mag, sign: sign, mask: mask}
	maxLevel := 0
	for _, s := range subs {
		if s.Level > maxLevel {
			maxLevel = s.Level
		}
	}
	c.lis = make([][]int, maxLevel+1)
	c.lspMask = make([]bool, d.Volume())
	for _, s := range subs {
		set := Set{OX: s.OX, OY: s.OY, OZ: s.OZ, NX: s.NX, NY: s.NY, NZ: s.NZ, Level: s.Level}
		if c.regionEmpty(set) {
			continue
		}
		idx := c.arena.alloc(set)
		c.pushSet(idx)
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

func (c *Coder) pushSet(idx int) {
	s := c.arena.get(idx)
	if s.IsPixel() {
		c.lip = append(c.lip, c.linear(s.OX, s.OY, s.OZ))
		return
	}
	c.lis[s.Level] = append(c.lis[s.Level], idx)
}

func (c *Coder) linear(x, y, z int) int {
	return wavecore.Linearize(c.dims, x, y, z)
}

func (c *Coder) regionEmpty(s Set) bool {
	if c.mask == nil {
		return false
	}
	for z := s.OZ; z < s.OZ+s.NZ; z++ {
		for y := s.OY; y < s.OY+s.NY; y++ {
			for x := s.OX; x < s.OX+s.NX; x++ {
				if !c.mask.Transparent(x, y, z) {
					return false
				}
			}
		}
	}
	return true
}

// Step runs one bit-plane (sorting pass, refinement pass, halve
// threshold, sweep) and reports whether further bit-planes remain. A
// caller driving several coders under a shared cancellation token
// (pkg/bitplane) calls Step in a loop and polls between calls instead
// of using Run.
func (c *Coder) Step() (more bool, err error) {
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

// Run drives the full bit-plane loop via Step until all bit-planes are
// consumed or the coder/decoder signals a terminal condition.
func (c *Coder) Run() error {
	for {
		more, err := c.Step()
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return nil
}

// sweep merges this bit-plane's newly-significant entries into
// LSP_mask and clears LSP_new. LIP/LIS are already
// rebuilt free of Empty/significant entries by sortingPass itself.
func (c *Coder) sweep() {
	for _, idx := range c.lspNew {
		c.lspMask[idx] = true
	}
	c.lspNew = c.lspNew[:0]
}

// sortingPass processes LIP first, then LIS from the coarsest
// (largest level) bucket to the finest. New entries CodeS pushes
// during this pass (children of a just-split set) must wait for the
// NEXT pass even if they land in an as-yet-unvisited bucket, so the
// bucket contents are snapshotted up front and c.lis is rebuilt fresh
// as the pass runs.
func (c *Coder) sortingPass() error {
	T := c.threshold
	newLIP := c.lip[:0]
	for _, idx := range c.lip {
		sig, err := c.codeSignificance(CtxSignificance, dunno, idx, -1, T)
		if err != nil {
			return err
		}
		if sig {
			if err := c.markPixelSignificant(idx, T); err != nil {
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
			sig, err := c.codeSignificance(CtxSignificance, dunno, -1, setIdx, T)
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
	return nil
}

// sigHint encodes what the caller already knows about significance
// before ProcessP/ProcessS run, per the partitioning sig_hint parameter.
type sigHint int

const (
	dunno sigHint = iota
	hintSig
)

// codeSignificance is the shared ProcessP/ProcessS significance step:
// test/emit, honoring a parent-supplied hint. idx is a pixel linear
// index (pixel mode, setIdx==-1) or -1 (set mode, setIdx>=0).
func (c *Coder) codeSignificance(ctx int, hint sigHint, idx, setIdx int, T uint64) (bool, error) {
	if hint == hintSig {
		return true, nil
	}
	bitVal := 0
	if c.enc != nil {
		if idx >= 0 {
			bitVal = boolToBit(c.mag[idx] >= T)
		} else {
			bitVal = boolToBit(c.regionSignificant(c.arena.get(setIdx), T))
		}
	}
	bit, err := c.codeBit(ctx, bitVal)
	if err != nil {
		return false, err
	}
	return bit == 1, nil
}

func (c *Coder) regionSignificant(s *Set, T uint64) bool {
	for z := s.OZ; z < s.OZ+s.NZ; z++ {
		for y := s.OY; y < s.OY+s.NY; y++ {
			for x := s.OX; x < s.OX+s.NX; x++ {
				if c.mask != nil && c.mask.Transparent(x, y, z) {
					continue
				}
				if c.mag[c.linear(x, y, z)] >= T {
					return true
				}
			}
		}
	}
	return false
}

// markPixelSignificant records a coefficient's first appearance in
// LSP. The encoder peels the most-significant contribution off the
// true magnitude (mag[idx] -= T); the decoder accumulates that same
// contribution into its reconstruction (mag[idx] += T, starting from
// zero). The two are exact inverses, so a full bit-plane run
// reconstructs the original integer magnitude bit-for-bit.
func (c *Coder) markPixelSignificant(idx int, T uint64) error {
	bit, err := c.codeBit(CtxSign, boolToBit(c.signOf(idx)))
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

func (c *Coder) signOf(idx int) bool {
	if c.enc != nil {
		return c.sign[idx]
	}
	return false
}

// codeS partitions set idx into its children, coding
// each child's significance under the sibling-state-dependent
// Sig_S0/S1/S2 context, or skipping the bit entirely (NoCode) for a
// last child inferred significant because no prior sibling was.
func (c *Coder) codeS(idx int, T uint64) error {
	s := *c.arena.get(idx)
	children := c.split(s)

	var active []Set
	for _, ch := range children {
		if !c.regionEmpty(ch) {
			active = append(active, ch)
		}
	}

	sigCount := 0
	for i, ch := range active {
		isLast := i == len(active)-1
		hint := dunno
		if isLast && sigCount == 0 {
			hint = hintSig
		}
		ctx := siblingContext(c.dims, sigCount)

		var sig bool
		var err error
		if ch.IsPixel() {
			pidx := c.linear(ch.OX, ch.OY, ch.OZ)
			sig, err = c.codeSignificance(ctx, hint, pidx, -1, T)
			if err != nil {
				return err
			}
			if sig {
				if err := c.markPixelSignificant(pidx, T); err != nil {
					return err
				}
			} else {
				c.lip = append(c.lip, pidx)
			}
		} else {
			childIdx := c.arena.alloc(ch)
			sig, err = c.codeSignificance(ctx, hint, -1, childIdx, T)
			if err != nil {
				return err
			}
			if sig {
				if err := c.codeS(childIdx, T); err != nil {
					return err
				}
				c.arena.get(childIdx).Empty = true
			} else {
				c.pushSet(childIdx)
			}
		}
		if sig {
			sigCount++
		}
	}
	return nil
}

func siblingContext(d wavecore.Dims, priorSig int) int {
	max := 2
	if d.Is2D() {
		max = 1
	}
	if priorSig > max {
		priorSig = max
	}
	return CtxSigS0 + priorSig
}

// split partitions a set into its children in the canonical order for
// its dimensionality.
func (c *Coder) split(s Set) []Set {
	switch {
	case s.NZ == 1 && s.NY == 1:
		return c.split1D(s)
	case c.dims.Is2D() || s.NZ == 1:
		return c.split2D(s)
	default:
		return c.split3D(s)
	}
}

func (c *Coder) split3D(s Set) []Set {
	xh := axisHalvesSPECK(s.NX)
	yh := axisHalvesSPECK(s.NY)
	zh := axisHalvesSPECK(s.NZ)
	var out []Set
	for _, z := range zh {
		for _, y := range yh {
			for _, x := range xh {
				out = append(out, Set{
					OX: s.OX + x.offset, OY: s.OY + y.offset, OZ: s.OZ + z.offset,
					NX: x.extent, NY: y.extent, NZ: z.extent,
					Level: s.Level - 1,
				})
			}
		}
	}
	return out
}

func (c *Coder) split2D(s Set) []Set {
	xh := axisHalvesSPECK(s.NX)
	yh := axisHalvesSPECK(s.NY)
	// order: BR, BL, TR, TL (x,y both descending)
	var out []Set
	for yi := len(yh) - 1; yi >= 0; yi-- {
		for xi := len(xh) - 1; xi >= 0; xi-- {
			x, y := xh[xi], yh[yi]
			out = append(out, Set{
				OX: s.OX + x.offset, OY: s.OY + y.offset, OZ: s.OZ,
				NX: x.extent, NY: y.extent, NZ: 1,
				Level: s.Level - 1,
			})
		}
	}
	return out
}

func (c *Coder) split1D(s Set) []Set {
	first, second := bisectHalves(s.NX)
	return []Set{
		{OX: s.OX + first.offset, OY: s.OY, OZ: s.OZ, NX: first.extent, NY: 1, NZ: 1, Level: s.Level - 1},
		{OX: s.OX + second.offset, OY: s.OY, OZ: s.OZ, NX: second.extent, NY: 1, NZ: 1, Level: s.Level - 1},
	}
}

// refinementPass reads/writes one bit per previously-significant
// coefficient not newly significant this bit-plane.
func (c *Coder) refinementPass() error {
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

func (c *Coder) codeBit(ctx int, bit int) (int, error) {
	if c.enc != nil {
		if err := c.enc.Encode(bit, ctx); err != nil {
			return 0, err
		}
		return bit, nil
	}
	return c.dec.Decode(ctx), nil
}

func boolToBit(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Flush finalizes an encoding session and returns the emitted bytes.
// Calling Flush on a decoder session is a programming error.
func (c *Coder) Flush() ([]byte, error) {
	if c.enc == nil {
		return nil, errors.New("speck: Flush called on a decoder")
	}
	return c.enc.Flush(), nil
}

// NumBitplanes reports the bit-plane count derived at construction,
// which the bit-plane controller transmits out-of-band.
func (c *Coder) NumBitplanes() int {
	return c.numBitplanes
}
