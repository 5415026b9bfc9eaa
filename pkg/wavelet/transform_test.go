package wavelet

import (
	"math"
	"testing"

	"github.com/scidata-tools/wavecore/pkg/wavecore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// S1: a 16-sample 1D ramp, 2-level dyadic DWT, standard (non-PL)
// lifting. The four surviving LL coefficients are checked not to be
// NaN, and the inverse must restore the ramp within 1e-8.
func TestS1_1D_TwoLevelRamp(t *testing.T) {
	d := wavecore.Dims{NX: 16, NY: 1, NZ: 1}
	samples := make([]float64, 16)
	for i := range samples {
		samples[i] = float64(i + 1)
	}
	p, err := FromSamples(d, samples, Dyadic)
	require.NoError(t, err)

	require.NoError(t, ForwardND(p, DyadicLevels(2)))

	ll := []float64{p.Data[0], p.Data[1], p.Data[2], p.Data[3]}
	for _, v := range ll {
		assert.False(t, math.IsNaN(v))
	}

	require.NoError(t, InverseND(p, DyadicLevels(2)))
	for i := range samples {
		assert.InDelta(t, samples[i], p.Data[i], 1e-8, "sample %d", i)
	}
}

func TestForwardInverseND_RoundTrip_3D(t *testing.T) {
	d := wavecore.Dims{NX: 16, NY: 16, NZ: 16}
	samples := make([]float64, d.Volume())
	for i := range samples {
		samples[i] = float64((i*37 + 11) % 251)
	}
	p, err := FromSamples(d, samples, Dyadic)
	require.NoError(t, err)

	require.NoError(t, ForwardND(p, DyadicLevels(2)))
	require.NoError(t, InverseND(p, DyadicLevels(2)))

	for i := range samples {
		assert.InDelta(t, samples[i], p.Data[i], 1e-6, "sample %d", i)
	}
}

func TestForwardInverseND_RoundTrip_2D(t *testing.T) {
	d := wavecore.Dims{NX: 32, NY: 24, NZ: 1}
	samples := make([]float64, d.Volume())
	for i := range samples {
		samples[i] = float64((i*13 + 5) % 97)
	}
	p, err := FromSamples(d, samples, Dyadic)
	require.NoError(t, err)

	require.NoError(t, ForwardND(p, DyadicLevels(3)))
	require.NoError(t, InverseND(p, DyadicLevels(3)))

	for i := range samples {
		assert.InDelta(t, samples[i], p.Data[i], 1e-6, "sample %d", i)
	}
}

func TestForwardND_Packet_IndependentZLevels(t *testing.T) {
	d := wavecore.Dims{NX: 16, NY: 16, NZ: 8}
	samples := make([]float64, d.Volume())
	for i := range samples {
		samples[i] = float64((i*7 + 3) % 211)
	}
	p, err := FromSamples(d, samples, Packet)
	require.NoError(t, err)

	spec := LevelSpec{Spatial: 2, Temporal: 1}
	require.NoError(t, ForwardND(p, spec))
	require.NoError(t, InverseND(p, spec))

	for i := range samples {
		assert.InDelta(t, samples[i], p.Data[i], 1e-6, "sample %d", i)
	}
}

// NumSubbands and LLL geometry for a 17x17x17 volume at 2 dyadic
// levels. The LLL corner's extent and
// origin match exactly; see DESIGN.md for the Open Question decision
// on how this module numbers and positions the detail groups relative
// to the (nested, nonredundant) pyramid buffer layout.
func TestS2_PyramidGeometry_17Cube(t *testing.T) {
	d := wavecore.Dims{NX: 17, NY: 17, NZ: 17}
	p := NewPyramid(d, Dyadic)
	p.SpatialLevels = 2
	p.TemporalLevels = 2

	assert.Equal(t, 15, p.NumSubbands())

	nx, ny, nz, err := p.SubbandSize(0)
	require.NoError(t, err)
	assert.Equal(t, [3]int{5, 5, 5}, [3]int{nx, ny, nz})

	ox, oy, oz, err := p.SubbandOrigin(0)
	require.NoError(t, err)
	assert.Equal(t, [3]int{0, 0, 0}, [3]int{ox, oy, oz})

	// The coarsest (innermost, level-2) HHH detail group: extent (4,4,4),
	// nested inside the level-1 approximation corner of extent 9.
	nx, ny, nz, err = p.SubbandSize(7)
	require.NoError(t, err)
	assert.Equal(t, [3]int{4, 4, 4}, [3]int{nx, ny, nz})
}

func TestPyramid_ZeroSubband(t *testing.T) {
	d := wavecore.Dims{NX: 16, NY: 16, NZ: 1}
	samples := make([]float64, d.Volume())
	for i := range samples {
		samples[i] = float64(i + 1)
	}
	p, err := FromSamples(d, samples, Dyadic)
	require.NoError(t, err)
	require.NoError(t, ForwardND(p, DyadicLevels(2)))

	require.NoError(t, p.ZeroSubband(0))
	nx, ny, _, err := p.SubbandSize(0)
	require.NoError(t, err)
	ox, oy, _, err := p.SubbandOrigin(0)
	require.NoError(t, err)
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			assert.Zero(t, p.Data[wavecore.Linearize(d, ox+x, oy+y, 0)])
		}
	}
}

func TestMaxLevels_CappedAndFloored(t *testing.T) {
	assert.Equal(t, 1, MaxLevels(wavecore.Dims{NX: 8, NY: 8, NZ: 8}))
	assert.Equal(t, 1, MaxLevels(wavecore.Dims{NX: 15, NY: 15, NZ: 15}))
	assert.LessOrEqual(t, MaxLevels(wavecore.Dims{NX: 4096, NY: 4096, NZ: 4096}), MaxLevelCap)
}
