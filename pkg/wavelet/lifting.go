// Package wavelet implements the separable, lifting-based CDF 9/7
// discrete wavelet transform at the core of this codec: a 1D lifting
// kernel (this file), a separable N-D transform built from it
// (transform.go), an optional shape-adaptive (mask-restricted) variant
// (shapeadaptive.go), and the subband pyramid container and geometry
// queries the set-partitioning coders operate over (pyramid.go).
package wavelet

// CDF 9/7 lifting coefficients, to 16 decimals.
const (
	alpha   = -1.586134342059923558
	beta    = -0.05298011857296141462
	gamma   = 0.88291107553093329595
	delta   = 0.44350685204397115217
	zeta    = 1.23017410491400072921 // scale for odd / wavelet coefficients
	invZeta = 0.81289306611596105003 // scale for even / scaling coefficients
)

// MinLengthPL is the minimum span length the Peter-Lindstrom boundary
// variant may operate on; shorter spans always fall
// back to the standard lifting with symmetric extension.
const MinLengthPL = 9

// plLift and plBlift are Peter Lindstrom's end-of-array fix-up
// coefficients, carried verbatim from QccPack's m_lift/m_blift tables
// (an immutable, package-level LUT per the no-global-mutable-state
// convention). The values influence only a handful of samples nearest
// each boundary; see the Peter-Lindstrom entry in DESIGN.md for the
// open question about __float128 intermediates in QccPack's C code.
var plLift = [6]float64{
	-1.586134342059923558,
	-0.05298011857296141462,
	0.8829110755309332959,
	0.4435068520439711521,
	1.2301741049140007292,
	0.81289306611596105003,
}

var plBlift = [9]float64{
	-1.586134342059923558,
	-0.05298011857296141462,
	0.8829110755309332959,
	1.0796367753748872,
	-0.9206964196560029,
	-17.37814947295878,
	-0.13081031898599063,
	10.978432345068303,
	-10.956291035467812,
}

// sym returns the symmetric whole-point extension of x at index j,
// for an array of logical length n: x[-1]==x[1], x[n]==x[n-2], and so
// on. Only ever called with j one step outside [0,n), which is all
// the lifting steps below need.
func sym(x []float64, off, stride, j, n int) float64 {
	if j < 0 {
		j = -j
	} else if j >= n {
		j = 2*n - 2 - j
	}
	return x[off+j*stride]
}

// at/set index a strided logical position within data.
func at(data []float64, off, stride, j int) float64 {
	return data[off+j*stride]
}

func set(data []float64, off, stride, j int, v float64) {
	data[off+j*stride] = v
}

// ForwardStandard performs the standard four-lift-step CDF 9/7 forward
// transform in place over a strided span of logical length n, with
// symmetric whole-point extension at both boundaries. Used whenever
// n < MinLengthPL, and whenever the
// Peter-Lindstrom variant is disabled.
func ForwardStandard(data []float64, off, stride, n int) {
	if n < 2 {
		return
	}
	// 1. Predict alpha: odd positions.
	for j := 1; j < n; j += 2 {
		left := sym(data, off, stride, j-1, n)
		right := sym(data, off, stride, j+1, n)
		set(data, off, stride, j, at(data, off, stride, j)+alpha*(left+right))
	}
	// 2. Update beta: even positions.
	for j := 0; j < n; j += 2 {
		left := sym(data, off, stride, j-1, n)
		right := sym(data, off, stride, j+1, n)
		set(data, off, stride, j, at(data, off, stride, j)+beta*(left+right))
	}
	// 3. Predict gamma: odd positions.
	for j := 1; j < n; j += 2 {
		left := sym(data, off, stride, j-1, n)
		right := sym(data, off, stride, j+1, n)
		set(data, off, stride, j, at(data, off, stride, j)+gamma*(left+right))
	}
	// 4. Update delta: even positions.
	for j := 0; j < n; j += 2 {
		left := sym(data, off, stride, j-1, n)
		right := sym(data, off, stride, j+1, n)
		set(data, off, stride, j, at(data, off, stride, j)+delta*(left+right))
	}
	// 5. Scale.
	for j := 0; j < n; j++ {
		if j%2 == 1 {
			set(data, off, stride, j, at(data, off, stride, j)*zeta)
		} else {
			set(data, off, stride, j, at(data, off, stride, j)*invZeta)
		}
	}
}

// InverseStandard undoes ForwardStandard: same steps in reverse order
// with negated lift coefficients and reciprocal scales.
func InverseStandard(data []float64, off, stride, n int) {
	if n < 2 {
		return
	}
	// 5'. Unscale.
	for j := 0; j < n; j++ {
		if j%2 == 1 {
			set(data, off, stride, j, at(data, off, stride, j)/zeta)
		} else {
			set(data, off, stride, j, at(data, off, stride, j)/invZeta)
		}
	}
	// 4'. Undo update delta.
	for j := 0; j < n; j += 2 {
		left := sym(data, off, stride, j-1, n)
		right := sym(data, off, stride, j+1, n)
		set(data, off, stride, j, at(data, off, stride, j)-delta*(left+right))
	}
	// 3'. Undo predict gamma.
	for j := 1; j < n; j += 2 {
		left := sym(data, off, stride, j-1, n)
		right := sym(data, off, stride, j+1, n)
		set(data, off, stride, j, at(data, off, stride, j)-gamma*(left+right))
	}
	// 2'. Undo update beta.
	for j := 0; j < n; j += 2 {
		left := sym(data, off, stride, j-1, n)
		right := sym(data, off, stride, j+1, n)
		set(data, off, stride, j, at(data, off, stride, j)-beta*(left+right))
	}
	// 1'. Undo predict alpha.
	for j := 1; j < n; j += 2 {
		left := sym(data, off, stride, j-1, n)
		right := sym(data, off, stride, j+1, n)
		set(data, off, stride, j, at(data, off, stride, j)-alpha*(left+right))
	}
}

// ForwardPL performs one level of the Peter-Lindstrom boundary-aware
// forward transform, operating on a contiguous scratch copy of the
// strided span and writing packed scaling-then-wavelet coefficients
// back, mirroring the reference m_fwd_pl. Requires n >= MinLengthPL;
// callers must fall back to ForwardStandard otherwise. Returns the
// number of scaling coefficients produced (the input length for the
// next, coarser level).
func ForwardPL(data []float64, off, stride, n int) int {
	if n < MinLengthPL {
		return 0
	}
	even := 0
	if n%2 == 0 {
		even = 1
	}
	m := n - 1 - even // index of last scaling coefficient

	q := make([]float64, n)
	for i := 0; i < n; i++ {
		q[i] = at(data, off, stride, i)
	}

	// first w-lift (predict)
	for i := 1; i < n-1; i += 2 {
		q[i] += plLift[0] * (q[i-1] + q[i+1])
	}
	if even == 1 {
		q[n-1] += plLift[0] * q[n-2]
	}

	// first s-lift (update)
	for i := 1; i < n-1; i += 2 {
		w := plLift[1] * q[i]
		q[i-1] += w
		q[i+1] += w
	}

	// second w-lift (predict)
	for i := 2; i < n-2; i += 2 {
		s := plLift[2] * q[i]
		q[i-1] += s
		q[i+1] += s
	}
	if even == 1 {
		q[n-1] += plLift[2] * q[n-2]
	}

	// second s-lift (update), with boundary-special weights
	q[0] += plBlift[3] * q[1]
	for i := 3; i < n-3; i += 2 {
		w := plLift[3] * q[i]
		q[i-1] += w
		q[i+1] += w
	}
	q[m] += plBlift[3] * q[m-1]

	if even == 1 {
		q[n-1] += plBlift[6] * q[n-3]
		q[n-1] += plBlift[7] * q[n-2]
	}

	// w-lift scale pass
	q[1] *= plBlift[4]
	for i := 3; i < n-3; i += 2 {
		q[i] *= plLift[4]
	}
	q[m-1] *= plBlift[4]
	if even == 1 {
		q[n-1] *= plBlift[8]
	}

	// s-lift scale pass
	q[0] *= plBlift[5]
	for i := 2; i < n-2; i += 2 {
		q[i] *= plLift[5]
	}
	q[m] *= plBlift[5]

	// pack: scaling coefficients first, then wavelet coefficients
	out := off
	writeAndAdvance := func(v float64) {
		data[out] = v
		out += stride
	}
	writeAndAdvance(q[0])
	writeAndAdvance(q[1])
	for i := 2; i < n-2; i += 2 {
		writeAndAdvance(q[i])
	}
	if even == 1 {
		writeAndAdvance(q[n-3])
	}
	writeAndAdvance(q[n-2])
	writeAndAdvance(q[n-1])
	for i := 3; i < n-3; i += 2 {
		writeAndAdvance(q[i])
	}

	return (n + 6) / 2
}

// InversePL undoes ForwardPL for a span whose packed length is n.
func InversePL(data []float64, off, stride, n int) bool {
	if n < MinLengthPL {
		return false
	}
	even := 0
	if n%2 == 0 {
		even = 1
	}
	m := n - 1 - even

	q := make([]float64, n)
	in := off
	readAndAdvance := func() float64 {
		v := data[in]
		in += stride
		return v
	}
	q[0] = readAndAdvance()
	q[1] = readAndAdvance()
	for i := 2; i < n-2; i += 2 {
		q[i] = readAndAdvance()
	}
	if even == 1 {
		q[n-3] = readAndAdvance()
	}
	q[n-2] = readAndAdvance()
	q[n-1] = readAndAdvance()
	for i := 3; i < n-3; i += 2 {
		q[i] = readAndAdvance()
	}

	// s-lift scale pass
	q[0] /= plBlift[5]
	for i := 2; i < n-2; i += 2 {
		q[i] /= plLift[5]
	}
	q[m] /= plBlift[5]

	// w-lift scale pass
	q[1] /= plBlift[4]
	for i := 3; i < n-3; i += 2 {
		q[i] /= plLift[4]
	}
	q[m-1] /= plBlift[4]
	if even == 1 {
		q[n-1] /= plBlift[8]
	}

	if even == 1 {
		q[n-1] -= plBlift[6] * q[n-3]
		q[n-1] -= plBlift[7] * q[n-2]
	}

	// second s-lift (update), inverse
	q[0] -= plBlift[3] * q[1]
	for i := 3; i < n-3; i += 2 {
		w := plLift[3] * q[i]
		q[i-1] -= w
		q[i+1] -= w
	}
	q[m] -= plBlift[3] * q[m-1]

	// second w-lift (predict), inverse
	for i := 2; i < n-2; i += 2 {
		s := plLift[2] * q[i]
		q[i-1] -= s
		q[i+1] -= s
	}
	if even == 1 {
		q[n-1] -= plLift[2] * q[n-2]
	}

	// first s-lift (update), inverse
	for i := 1; i < n-1; i += 2 {
		w := plLift[1] * q[i]
		q[i-1] -= w
		q[i+1] -= w
	}

	// first w-lift (predict), inverse
	for i := 1; i < n-1; i += 2 {
		q[i] -= plLift[0] * (q[i-1] + q[i+1])
	}
	if even == 1 {
		q[n-1] -= plLift[0] * q[n-2]
	}

	out := off
	for i := 0; i < n; i++ {
		data[out] = q[i]
		out += stride
	}
	return true
}

// Forward1D dispatches to ForwardPL when usePL is requested and the
// span is long enough,
// otherwise to the standard lifting.
func Forward1D(data []float64, off, stride, n int, usePL bool) {
	if usePL && n >= MinLengthPL {
		ForwardPL(data, off, stride, n)
		return
	}
	ForwardStandard(data, off, stride, n)
}

// Inverse1D mirrors Forward1D.
func Inverse1D(data []float64, off, stride, n int, usePL bool) {
	if usePL && n >= MinLengthPL {
		InversePL(data, off, stride, n)
		return
	}
	InverseStandard(data, off, stride, n)
}
