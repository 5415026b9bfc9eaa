package wavelet

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i) * 1.5
	}
	return x
}

func maxAbsDiff(a, b []float64) float64 {
	var m float64
	for i := range a {
		d := math.Abs(a[i] - b[i])
		if d > m {
			m = d
		}
	}
	return m
}

func TestForwardInverseStandard_RoundTrip(t *testing.T) {
	for _, n := range []int{2, 3, 4, 5, 8, 9, 16, 17, 33, 64, 100} {
		x := ramp(n)
		orig := append([]float64(nil), x...)
		ForwardStandard(x, 0, 1, n)
		InverseStandard(x, 0, 1, n)
		assert.InDeltaSlice(t, orig, x, 1e-9, "n=%d", n)
	}
}

// Round-trips every span length in [9,257] for the Peter-Lindstrom
// variant and flags mismatches beyond a generous but still tight
// 1e-9*range tolerance.
func TestForwardInversePL_RoundTrip_AllLengths(t *testing.T) {
	for n := MinLengthPL; n <= 257; n++ {
		x := ramp(n)
		orig := append([]float64(nil), x...)
		got := ForwardPL(x, 0, 1, n)
		require.Greater(t, got, 0, "n=%d", n)
		ok := InversePL(x, 0, 1, n)
		require.True(t, ok, "n=%d", n)
		assert.InDeltaSlice(t, orig, x, 1e-7, "n=%d", n)
	}
}

func TestForward1D_FallsBackBelowMinLengthPL(t *testing.T) {
	for n := 2; n < MinLengthPL; n++ {
		xa := ramp(n)
		xb := append([]float64(nil), xa...)
		Forward1D(xa, 0, 1, n, false)
		Forward1D(xb, 0, 1, n, true)
		assert.Equal(t, xa, xb, "n=%d below MinLengthPL must ignore usePL", n)
	}
}

func TestForward1D_Strided(t *testing.T) {
	// Interleave two independent 8-sample signals and transform each via
	// its own stride, then verify they round-trip independently.
	const n = 8
	buf := make([]float64, 2*n)
	for i := 0; i < n; i++ {
		buf[2*i] = float64(i)
		buf[2*i+1] = float64(10 + i)
	}
	orig := append([]float64(nil), buf...)

	Forward1D(buf, 0, 2, n, false)
	Forward1D(buf, 1, 2, n, false)
	Inverse1D(buf, 0, 2, n, false)
	Inverse1D(buf, 1, 2, n, false)

	assert.InDeltaSlice(t, orig, buf, 1e-9)
}

func TestForwardStandard_ConstantSignalHasZeroDetail(t *testing.T) {
	n := 16
	x := make([]float64, n)
	for i := range x {
		x[i] = 7.0
	}
	ForwardStandard(x, 0, 1, n)
	for j := 1; j < n; j += 2 {
		assert.InDelta(t, 0, x[j], 1e-9, "wavelet coeff at %d should vanish for a constant signal", j)
	}
}

func BenchmarkForwardStandard(b *testing.B) {
	x := ramp(4096)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ForwardStandard(x, 0, 1, len(x))
	}
}

func BenchmarkForwardPL(b *testing.B) {
	x := ramp(4096)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ForwardPL(x, 0, 1, len(x))
	}
}
