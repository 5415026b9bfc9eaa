package tarp

import (
	"testing"

	"github.com/scidata-tools/wavecore/pkg/wavecore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noParents(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = -1
	}
	return p
}

func roundTrip(t *testing.T, d wavecore.Dims, mag []uint64, sign []bool, parent []int, mask Mask, opts Options, budget int) ([]uint64, []bool, error) {
	t.Helper()
	encMag := append([]uint64(nil), mag...)
	encSign := append([]bool(nil), sign...)
	enc := NewEncoder(d, encMag, encSign, parent, mask, opts, budget)
	runErr := enc.Run()
	data, flushErr := enc.Flush()
	if runErr != nil {
		return nil, nil, runErr
	}
	require.NoError(t, flushErr)

	decMag := make([]uint64, d.Volume())
	decSign := make([]bool, d.Volume())
	dec := NewDecoder(d, decMag, decSign, parent, mask, opts, enc.NumBitplanes(), data)
	err := dec.Run()
	return decMag, decSign, err
}

// A small 2D field with scattered non-zero coefficients and no
// cross-scale parents round-trips exactly, exercising the Z/NZN/S
// state machine in non-adaptive mode (required for determinism).
func TestTarp_MinimalRoundTrip_NonAdaptive(t *testing.T) {
	d := wavecore.Dims{NX: 6, NY: 6, NZ: 1}
	mag := make([]uint64, d.Volume())
	sign := make([]bool, d.Volume())
	vals := map[int]uint64{0: 1, 7: 5, 14: 12, 21: 30, 28: 63, 35: 64}
	for idx, v := range vals {
		mag[idx] = v
		sign[idx] = idx%2 == 0
	}

	opts := Options{Alpha: AlphaIsotropic, Adaptive: false}
	decMag, decSign, err := roundTrip(t, d, mag, sign, noParents(d.Volume()), nil, opts, 0)
	require.NoError(t, err)
	assert.Equal(t, mag, decMag)
	for idx := range vals {
		assert.Equal(t, sign[idx], decSign[idx], "sign mismatch at %d", idx)
	}
}

func TestTarp_RoundTrip_AllZero(t *testing.T) {
	d := wavecore.Dims{NX: 4, NY: 4, NZ: 4}
	mag := make([]uint64, d.Volume())
	sign := make([]bool, d.Volume())

	decMag, _, err := roundTrip(t, d, mag, sign, noParents(d.Volume()), nil, DefaultOptions(), 0)
	require.NoError(t, err)
	assert.Equal(t, mag, decMag)
}

// A two-level parent relation (every site in the second half points at
// the corresponding site in the first half) exercises the cross-scale
// blend without changing the round-trip law: parent linkage only
// steers which context a bit is coded against, never the coded bit
// itself.
func TestTarp_RoundTrip_WithParents(t *testing.T) {
	d := wavecore.Dims{NX: 4, NY: 4, NZ: 2}
	mag := make([]uint64, d.Volume())
	sign := make([]bool, d.Volume())
	for i := range mag {
		mag[i] = uint64((i*13 + 3) % 97)
		sign[i] = i%3 == 0
	}
	parent := make([]int, d.Volume())
	half := d.Volume() / 2
	for i := range parent {
		if i < half {
			parent[i] = -1
		} else {
			parent[i] = i - half
		}
	}

	decMag, decSign, err := roundTrip(t, d, mag, sign, parent, nil, DefaultOptions(), 0)
	require.NoError(t, err)
	assert.Equal(t, mag, decMag)
	for i := range mag {
		if mag[i] == 0 {
			continue
		}
		assert.Equal(t, sign[i], decSign[i], "sign mismatch at %d", i)
	}
}

func TestTarp_BudgetTermination(t *testing.T) {
	d := wavecore.Dims{NX: 8, NY: 8, NZ: 1}
	mag := make([]uint64, d.Volume())
	sign := make([]bool, d.Volume())
	for i := range mag {
		mag[i] = uint64((i*31 + 7) % 253)
		sign[i] = i%3 == 0
	}

	enc := NewEncoder(d, append([]uint64(nil), mag...), append([]bool(nil), sign...), noParents(d.Volume()), nil, DefaultOptions(), 4)
	err := enc.Run()
	require.ErrorIs(t, err, wavecore.ErrBudgetMet)
	data, flushErr := enc.Flush()
	require.NoError(t, flushErr)
	assert.NotEmpty(t, data)
}

func TestTarp_NumBitplanes(t *testing.T) {
	d := wavecore.Dims{NX: 2, NY: 2, NZ: 1}
	mag := []uint64{0, 1, 2, 3}
	sign := make([]bool, 4)

	enc := NewEncoder(d, mag, sign, noParents(4), nil, DefaultOptions(), 0)
	assert.Equal(t, 2, enc.NumBitplanes())
}
