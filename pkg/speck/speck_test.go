package speck

import (
	"testing"

	"github.com/scidata-tools/wavecore/pkg/wavecore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundTrip runs an encoder over mag/sign and feeds the resulting
// bytes into a fresh decoder, returning the decoder's reconstruction.
func roundTrip(t *testing.T, d wavecore.Dims, mag []uint64, sign []bool, subs []SubbandInit, mask Mask, budget int) ([]uint64, []bool, error) {
	t.Helper()
	encMag := append([]uint64(nil), mag...)
	encSign := append([]bool(nil), sign...)
	enc := NewEncoder(d, encMag, encSign, subs, mask, budget)
	runErr := enc.Run()
	data, flushErr := enc.Flush()
	if runErr != nil {
		return nil, nil, runErr
	}
	require.NoError(t, flushErr)

	decMag := make([]uint64, d.Volume())
	decSign := make([]bool, d.Volume())
	dec := NewDecoder(d, decMag, decSign, subs, mask, enc.NumBitplanes(), data)
	err := dec.Run()
	return decMag, decSign, err
}

// A 4x3x8 integer magnitude array of zeros with a handful of non-zero
// entries encodes then decodes to the exact same magnitudes and signs.
func TestS3_SPECKMinimalRoundTrip_4x3x8(t *testing.T) {
	d := wavecore.Dims{NX: 4, NY: 3, NZ: 8}
	mag := make([]uint64, d.Volume())
	sign := make([]bool, d.Volume())

	set := func(idx int, v uint64, neg bool) {
		mag[idx] = v
		sign[idx] = neg
	}
	set(4, 1, false)
	set(7, 3, true)
	set(10, 7, false)
	set(11, 9, true)
	set(16, 10, false)
	set(19, 12, true)
	set(26, 18, false)
	set(29, 19, true)
	set(32, 32, false)
	set(39, 32, true)

	subs := []SubbandInit{{OX: 0, OY: 0, OZ: 0, NX: d.NX, NY: d.NY, NZ: d.NZ, Level: 6}}

	decMag, decSign, err := roundTrip(t, d, mag, sign, subs, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, mag, decMag)
	for i := range mag {
		if mag[i] == 0 {
			continue
		}
		assert.Equal(t, sign[i], decSign[i], "sign mismatch at %d", i)
	}
}

func TestSPECK_RoundTrip_AllZero(t *testing.T) {
	d := wavecore.Dims{NX: 4, NY: 4, NZ: 4}
	mag := make([]uint64, d.Volume())
	sign := make([]bool, d.Volume())
	subs := []SubbandInit{{NX: d.NX, NY: d.NY, NZ: d.NZ, Level: 4}}

	decMag, _, err := roundTrip(t, d, mag, sign, subs, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, mag, decMag)
}

func TestSPECK_RoundTrip_2D_MultiSubband(t *testing.T) {
	d := wavecore.Dims{NX: 8, NY: 8, NZ: 1}
	mag := make([]uint64, d.Volume())
	sign := make([]bool, d.Volume())
	vals := map[int]uint64{0: 5, 1: 250, 9: 17, 20: 1, 40: 63, 63: 99}
	for idx, v := range vals {
		mag[idx] = v
		sign[idx] = idx%2 == 0
	}

	// Four 4x4 quadrant subbands (the LL corner plus three detail
	// groups), each starting at split-count level 1.
	subs := []SubbandInit{
		{OX: 0, OY: 0, NX: 4, NY: 4, NZ: 1, Level: 1},
		{OX: 4, OY: 0, NX: 4, NY: 4, NZ: 1, Level: 1},
		{OX: 0, OY: 4, NX: 4, NY: 4, NZ: 1, Level: 1},
		{OX: 4, OY: 4, NX: 4, NY: 4, NZ: 1, Level: 1},
	}

	decMag, decSign, err := roundTrip(t, d, mag, sign, subs, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, mag, decMag)
	for idx := range vals {
		assert.Equal(t, sign[idx], decSign[idx], "sign mismatch at %d", idx)
	}
}

// denseBoxMask marks everything outside a rectangular box transparent,
// exercising codeS's regionEmpty skip and the LIP/LIS shape-adaptive
// seeding path together.
type denseBoxMask struct {
	d                  wavecore.Dims
	x0, y0, z0, x1, y1, z1 int
}

func (m denseBoxMask) Transparent(x, y, z int) bool {
	return x < m.x0 || x >= m.x1 || y < m.y0 || y >= m.y1 || z < m.z0 || z >= m.z1
}

func TestSPECK_RoundTrip_MaskedRegion(t *testing.T) {
	d := wavecore.Dims{NX: 8, NY: 8, NZ: 1}
	mag := make([]uint64, d.Volume())
	sign := make([]bool, d.Volume())
	mask := denseBoxMask{d: d, x0: 2, y0: 2, x1: 6, y1: 6, z1: 1}

	for y := 2; y < 6; y++ {
		for x := 2; x < 6; x++ {
			idx := wavecore.Linearize(d, x, y, 0)
			mag[idx] = uint64((x + y*7) % 251)
			sign[idx] = (x+y)%2 == 0
		}
	}
	subs := []SubbandInit{{NX: d.NX, NY: d.NY, NZ: 1, Level: 3}}

	decMag, decSign, err := roundTrip(t, d, mag, sign, subs, mask, 0)
	require.NoError(t, err)
	assert.Equal(t, mag, decMag)
	for y := 2; y < 6; y++ {
		for x := 2; x < 6; x++ {
			idx := wavecore.Linearize(d, x, y, 0)
			if mag[idx] == 0 {
				continue
			}
			assert.Equal(t, sign[idx], decSign[idx], "sign mismatch at (%d,%d)", x, y)
		}
	}
}

func TestSPECK_BudgetTermination(t *testing.T) {
	d := wavecore.Dims{NX: 8, NY: 8, NZ: 1}
	mag := make([]uint64, d.Volume())
	sign := make([]bool, d.Volume())
	for i := range mag {
		mag[i] = uint64((i*31 + 7) % 253)
		sign[i] = i%3 == 0
	}
	subs := []SubbandInit{{NX: d.NX, NY: d.NY, NZ: 1, Level: 3}}

	enc := NewEncoder(d, append([]uint64(nil), mag...), append([]bool(nil), sign...), subs, nil, 4)
	err := enc.Run()
	require.ErrorIs(t, err, wavecore.ErrBudgetMet)
	data, flushErr := enc.Flush()
	require.NoError(t, flushErr)
	assert.NotEmpty(t, data)
}

func TestSPECK_NumBitplanes(t *testing.T) {
	d := wavecore.Dims{NX: 2, NY: 2, NZ: 1}
	mag := []uint64{0, 1, 2, 3}
	sign := make([]bool, 4)
	subs := []SubbandInit{{NX: 2, NY: 2, NZ: 1, Level: 1}}

	enc := NewEncoder(d, mag, sign, subs, nil, 0)
	assert.Equal(t, 2, enc.NumBitplanes())
}
