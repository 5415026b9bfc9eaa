package quant

import (
	"math"
	"testing"

	"github.com/scidata-tools/wavecore/pkg/wavecore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantize_RoundTrip_ExactMultiples(t *testing.T) {
	data := []float64{0, 2.0, -4.0, 10.0, -10.0}
	q := 2.0

	mag, sign, err := Quantize(data, q)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1, 2, 5, 5}, mag)
	assert.Equal(t, []bool{true, true, false, true, false}, sign)

	recon := Dequantize(mag, sign, q)
	assert.Equal(t, data, recon)
}

func TestQuantize_MidtreadRounding(t *testing.T) {
	mag, sign, err := Quantize([]float64{0.74, -0.74}, 1.0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 1}, mag)
	assert.Equal(t, []bool{true, false}, sign)
}

func TestQuantize_InvalidStep(t *testing.T) {
	_, _, err := Quantize([]float64{1}, 0)
	require.ErrorIs(t, err, wavecore.ErrQzInvalid)

	_, _, err = Quantize([]float64{1}, -1)
	require.ErrorIs(t, err, wavecore.ErrQzInvalid)

	_, _, err = Quantize([]float64{1}, math.NaN())
	require.ErrorIs(t, err, wavecore.ErrQzInvalid)
}

func TestQuantize_NonFiniteCoefficient(t *testing.T) {
	_, _, err := Quantize([]float64{math.NaN()}, 1.0)
	require.ErrorIs(t, err, wavecore.ErrQzInvalid)

	_, _, err = Quantize([]float64{math.Inf(1)}, 1.0)
	require.ErrorIs(t, err, wavecore.ErrQzInvalid)
}

func TestBitWidthForBitplanes(t *testing.T) {
	cases := []struct {
		bp   int
		want int
	}{
		{1, 8}, {8, 8}, {9, 16}, {16, 16}, {17, 32}, {32, 32}, {33, 64}, {64, 64},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, BitWidthForBitplanes(c.bp))
	}
}

func TestNumBitplanes(t *testing.T) {
	assert.Equal(t, 1, NumBitplanes([]uint64{0, 0, 0}))
	assert.Equal(t, 2, NumBitplanes([]uint64{0, 3}))
	assert.Equal(t, 6, NumBitplanes([]uint64{0, 32}))
}

func TestOutliers_RoundTrip(t *testing.T) {
	orig := []float64{1.0, 2.0, 3.0, 100.0, 5.0}
	decoded := []float64{1.0, 2.0, 3.0, 4.0, 5.0}
	tolerance := 0.5

	section := EncodeOutliers(orig, decoded, tolerance)
	require.NotEmpty(t, section)

	recon := append([]float64(nil), decoded...)
	require.NoError(t, DecodeOutliers(section, recon))
	assert.InDelta(t, orig[3], recon[3], 1e-9)
	assert.InDelta(t, orig[0], recon[0], 1e-9)
}

func TestOutliers_NoneWithinTolerance(t *testing.T) {
	orig := []float64{1.0, 2.0}
	decoded := []float64{1.1, 1.9}
	section := EncodeOutliers(orig, decoded, 1.0)
	assert.Empty(t, section)

	recon := append([]float64(nil), decoded...)
	require.NoError(t, DecodeOutliers(section, recon))
	assert.Equal(t, decoded, recon)
}

func TestOutliers_TruncatedSection(t *testing.T) {
	recon := make([]float64, 4)
	err := DecodeOutliers([]byte{0x01}, recon)
	require.ErrorIs(t, err, wavecore.ErrBitstreamTruncated)
}

func TestOutliers_CorruptIndex(t *testing.T) {
	orig := []float64{100.0}
	decoded := []float64{0.0}
	section := EncodeOutliers(orig, decoded, 0.1)
	recon := make([]float64, 0) // index 0 now out of range
	err := DecodeOutliers(section, recon)
	require.ErrorIs(t, err, wavecore.ErrBitstreamCorrupt)
}
