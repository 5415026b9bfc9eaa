// Package tarp implements the TCE (Tree/Context Estimation) bit-plane
// coder: an alternative to pkg/speck's set-partitioning approach that
// drops the LIS/LIP/LSP set machinery in favor of a per-coefficient
// state machine driven by an IIR-estimated significance probability
// plus a cross-scale prediction from the coefficient's parent in the
// next-coarser subband.
package tarp

import (
	"github.com/scidata-tools/wavecore/pkg/acoder"
	"github.com/scidata-tools/wavecore/pkg/wavecore"
)

// State is the per-coefficient life cycle: Z (zero/insignificant),
// NZNNew/NZN (has a significant neighbor, not yet itself significant),
// SNew/S (significant). The New flavors exist only within the pass
// that produced them and are folded into their stable form at the end
// of that pass.
type State int

const (
	Z State = iota
	NZNNew
	NZN
	SNew
	S
)

// NumProbBuckets quantizes the continuous estimated probability into a
// fixed number of arithmetic-coder contexts per context group, so the
// IIR estimate steers which context a bit is coded against rather than
// being fed to the coder as a literal probability (acoder.Bank only
// ever adapts discrete contexts).
const NumProbBuckets = 8

// Context groups. Significance and NZN each get NumProbBuckets
// contexts (one per probability bucket); Sign and Refinement are
// single contexts, as in pkg/speck.
const (
	ctxSignificanceBase = 0
	ctxNZNBase          = NumProbBuckets
	CtxSign             = 2 * NumProbBuckets
	CtxRefinement       = 2*NumProbBuckets + 1
	NumContexts         = 2*NumProbBuckets + 2
)

// PredictThreshold, ParentWeight and CurrentWeight implement the
// cross-scale blend: when the current-scale IIR estimate alone is
// below PredictThreshold, it is replaced by
// ParentWeight*parent_p + CurrentWeight*current_p.
const (
	PredictThreshold = 0.05
	ParentWeight     = 0.3
	CurrentWeight    = 0.7
)

// AlphaIsotropic is the canonical IIR decay used for isotropic
// subbands. AlphaDirectionalUp/Down are the asymmetric pair used for
// strongly directional subbands (named after QCCWAVTCE_ALPHA_1D in
// QccPack; carried verbatim as opaque constants, not analytically
// derived).
const (
	AlphaIsotropic       = 0.4
	AlphaDirectionalUp   = 0.995
	AlphaDirectionalDown = 0.005
)

// Options configures one coding session.
type Options struct {
	// Alpha is the isotropic IIR decay. Ignored if Asymmetric is true.
	Alpha float64
	// Asymmetric selects the (AlphaDirectionalUp, AlphaDirectionalDown)
	// pair over a single isotropic Alpha.
	Asymmetric bool
	// Adaptive, when false, freezes every context's probability state
	// after construction (acoder.Bank's non-adaptive mode): required
	// for deterministic tests, since the IIR filter is itself the
	// source of adaptation and a frozen arithmetic-coder table
	// isolates it from the coder's own adaptation.
	Adaptive bool
}

// DefaultOptions returns the canonical isotropic, adaptive setting.
func DefaultOptions() Options {
	return Options{Alpha: AlphaIsotropic, Adaptive: true}
}

// Coder drives one encode or decode session over a flat coefficient
// array. Parent maps each coefficient to the index of its cross-scale
// parent in the next-coarser subband, or -1 if it has none (the
// coarsest approximation band); it is supplied by the caller (the
// bit-plane controller, which alone knows the pyramid geometry) so
// this package never needs to import pkg/wavelet.
type Coder struct {
	dims   wavecore.Dims
	mag    []uint64
	sign   []bool
	parent []int
	mask   Mask

	state []State
	p     []float64 // current-scale IIR probability estimate per site
	lspMask []bool

	opts Options

	bank *acoder.Bank
	enc  *acoder.Encoder
	dec  *acoder.Decoder

	threshold    uint64
	numBitplanes int
	bp           int
}

// Mask marks samples outside an irregular region of interest as
// transparent, mirroring pkg/speck.Mask.
type Mask interface {
	Transparent(x, y, z int) bool
}

func newCoder(d wavecore.Dims, mag []uint64, sign []bool, parent []int, mask Mask, opts Options) *Coder {
	n := d.Volume()
	c := &Coder{
		dims:    d,
		mag:     mag,
		sign:    sign,
		parent:  parent,
		mask:    mask,
		state:   make([]State, n),
		p:       make([]float64, n),
		lspMask: make([]bool, n),
		opts:    opts,
	}
	var maxMag uint64
	for i, v := range mag {
		if c.transparent(i) {
			continue
		}
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

// NewEncoder builds an encoding session. budgetBytes of 0 means
// unlimited.
func NewEncoder(d wavecore.Dims, mag []uint64, sign []bool, parent []int, mask Mask, opts Options, budgetBytes int) *Coder {
	c := newCoder(d, mag, sign, parent, mask, opts)
	c.bank = acoder.NewBank(NumContexts, !opts.Adaptive)
	c.enc = acoder.NewEncoder(c.bank, budgetBytes)
	return c
}

// NewDecoder mirrors NewEncoder, reading from an encoded stream.
// mag/sign must be pre-sized to d.Volume() and are filled in place.
// numBitplanes is the value the encoder reported (NumBitplanes); it
// cannot be rederived from mag here since mag is still a zero-valued
// output buffer, not the original data.
func NewDecoder(d wavecore.Dims, mag []uint64, sign []bool, parent []int, mask Mask, opts Options, numBitplanes int, data []byte) *Coder {
	c := newCoder(d, mag, sign, parent, mask, opts)
	if numBitplanes < 1 {
		numBitplanes = 1
	}
	c.numBitplanes = numBitplanes
	c.threshold = uint64(1) << uint(numBitplanes-1)
	c.bank = acoder.NewBank(NumContexts, !opts.Adaptive)
	c.dec = acoder.NewDecoder(c.bank, data)
	return c
}

func (c *Coder) transparent(i int) bool {
	if c.mask == nil {
		return false
	}
	x, y, z := c.coords(i)
	return c.mask.Transparent(x, y, z)
}

func (c *Coder) coords(i int) (x, y, z int) {
	z = i / (c.dims.NX * c.dims.NY)
	r := i % (c.dims.NX * c.dims.NY)
	y = r / c.dims.NX
	x = r % c.dims.NX
	return
}

// neighbors returns the up-to-6 face-adjacent (or up-to-4 in 2D)
// indices of site i that lie within bounds.
func (c *Coder) neighbors(i int) []int {
	x, y, z := c.coords(i)
	var out []int
	try := func(nx, ny, nz int) {
		if nx < 0 || nx >= c.dims.NX || ny < 0 || ny >= c.dims.NY || nz < 0 || nz >= c.dims.NZ {
			return
		}
		out = append(out, wavecore.Linearize(c.dims, nx, ny, nz))
	}
	try(x-1, y, z)
	try(x+1, y, z)
	try(x, y-1, z)
	try(x, y+1, z)
	if !c.dims.Is2D() {
		try(x, y, z-1)
		try(x, y, z+1)
	}
	return out
}

func (c *Coder) hasSignificantNeighbor(i int) bool {
	for _, n := range c.neighbors(i) {
		if c.state[n] == S || c.state[n] == SNew {
			return true
		}
	}
	return false
}

func (c *Coder) alphaFor(i int) float64 {
	if !c.opts.Asymmetric {
		return c.opts.Alpha
	}
	if c.state[i] == Z {
		return AlphaDirectionalDown
	}
	return AlphaDirectionalUp
}

// updateProbability folds the observed outcome (1 = significant this
// bit-plane) into site i's IIR estimate, then blends in the parent's
// estimate when the result is still near zero, per the cross-scale
// prediction rule.
func (c *Coder) updateProbability(i int, observed float64) {
	a := c.alphaFor(i)
	c.p[i] = a*c.p[i] + (1-a)*observed
	if c.p[i] < PredictThreshold && c.parent[i] >= 0 {
		pp := c.p[c.parent[i]]
		c.p[i] = ParentWeight*pp + CurrentWeight*c.p[i]
	}
}

func (c *Coder) bucket(i int) int {
	b := int(c.p[i] * float64(NumProbBuckets))
	if b < 0 {
		b = 0
	}
	if b >= NumProbBuckets {
		b = NumProbBuckets - 1
	}
	return b
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

// codeSignificance codes (or decodes) whether site i is significant at
// threshold T, against the context group selected by i's current
// state and estimated probability bucket.
func (c *Coder) codeSignificance(i int, T uint64) (bool, error) {
	ctxBase := ctxSignificanceBase
	if c.state[i] == NZN || c.state[i] == NZNNew {
		ctxBase = ctxNZNBase
	}
	ctx := ctxBase + c.bucket(i)

	bitVal := 0
	if c.enc != nil {
		bitVal = boolToBit(c.mag[i] >= T)
	}
	bit, err := c.codeBit(ctx, bitVal)
	if err != nil {
		return false, err
	}
	return bit == 1, nil
}

func (c *Coder) markSignificant(i int, T uint64) error {
	bit, err := c.codeBit(CtxSign, boolToBit(c.sign[i]))
	if err != nil {
		return err
	}
	if c.dec != nil {
		c.sign[i] = bit == 1
		c.mag[i] += T
	} else {
		c.mag[i] -= T
	}
	c.state[i] = SNew
	c.lspMask[i] = true
	return nil
}

// sortingPass visits every still-insignificant, non-transparent site
// once per bit-plane, testing significance and transitioning its
// state, updating each site's IIR estimate with the observed outcome.
func (c *Coder) sortingPass() error {
	T := c.threshold
	for i := range c.mag {
		if c.transparent(i) {
			continue
		}
		if c.state[i] == S || c.state[i] == SNew {
			continue
		}
		if c.hasSignificantNeighbor(i) && c.state[i] == Z {
			c.state[i] = NZNNew
		}
		sig, err := c.codeSignificance(i, T)
		if err != nil {
			return err
		}
		c.updateProbability(i, float64(boolToBit(sig)))
		if sig {
			if err := c.markSignificant(i, T); err != nil {
				return err
			}
		}
	}
	return nil
}

// refinementPass refines every site that was significant before this
// bit-plane (not newly significant this pass).
func (c *Coder) refinementPass() error {
	T := c.threshold
	for i := range c.mag {
		if !c.lspMask[i] || c.state[i] == SNew {
			continue
		}
		bitVal := 0
		if c.enc != nil {
			bitVal = boolToBit(c.mag[i] >= T)
		}
		bit, err := c.codeBit(CtxRefinement, bitVal)
		if err != nil {
			return err
		}
		if bit == 1 {
			if c.dec != nil {
				c.mag[i] += T
			} else {
				c.mag[i] -= T
			}
		}
	}
	return nil
}

// settle folds each site's New state flavor into its stable form at
// the end of a pass, per the Z -> NZN_NEW -> NZN -> S_NEW -> S life
// cycle.
func (c *Coder) settle() {
	for i := range c.state {
		switch c.state[i] {
		case NZNNew:
			c.state[i] = NZN
		case SNew:
			c.state[i] = S
		}
	}
}

// Step codes one bit-plane (sorting pass + refinement pass) and
// reports whether further bit-planes remain, mirroring
// pkg/speck.Coder.Step so pkg/bitplane can drive either engine through
// the same tagged-variant dispatch.
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
	c.settle()
	c.threshold /= 2
	c.bp++
	return c.bp < c.numBitplanes, nil
}

// Run drives Step to completion.
func (c *Coder) Run() error {
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
func (c *Coder) Flush() ([]byte, error) {
	if c.enc == nil {
		return nil, wavecore.ErrInternal
	}
	return c.enc.Flush(), nil
}

// NumBitplanes reports the bit-plane count derived at construction.
func (c *Coder) NumBitplanes() int {
	return c.numBitplanes
}
