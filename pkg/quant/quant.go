// Package quant implements the integer SPECK driver: midtread uniform
// scalar quantization between floating-point coefficients and the
// 64-bit magnitude/sign arrays pkg/speck and pkg/tarp operate on, plus
// the sparse outlier coder used in fixed-PWE mode.
package quant

import (
	"math"

	"github.com/scidata-tools/wavecore/pkg/bitio"
	"github.com/scidata-tools/wavecore/pkg/wavecore"
)

// Quantize applies midtread uniform scalar quantization with step q:
// n = lround(c/q), storing |n| in mag and (n >= 0) in sign. Returns
// ErrQzInvalid for a non-positive or NaN step, a non-finite
// coefficient, or an lround result overflowing int64.
func Quantize(data []float64, q float64) (mag []uint64, sign []bool, err error) {
	if q <= 0 || math.IsNaN(q) {
		return nil, nil, wavecore.ErrQzInvalid
	}
	mag = make([]uint64, len(data))
	sign = make([]bool, len(data))
	for i, c := range data {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, nil, wavecore.ErrQzInvalid
		}
		n := math.Round(c / q)
		if math.Abs(n) >= float64(math.MaxInt64) {
			return nil, nil, wavecore.ErrQzInvalid
		}
		ni := int64(n)
		sign[i] = ni >= 0
		if ni < 0 {
			mag[i] = uint64(-ni)
		} else {
			mag[i] = uint64(ni)
		}
	}
	return mag, sign, nil
}

// Dequantize reconstructs c = sign*mag*q, with zero magnitude always
// yielding zero regardless of the stored sign bit.
func Dequantize(mag []uint64, sign []bool, q float64) []float64 {
	out := make([]float64, len(mag))
	for i, m := range mag {
		if m == 0 {
			continue
		}
		v := float64(m) * q
		if !sign[i] {
			v = -v
		}
		out[i] = v
	}
	return out
}

// NumBitplanes returns the bit-plane count pkg/speck/pkg/tarp would
// derive from mag: the smallest bp with 2^bp > max(mag), or 1 if mag
// is all zero.
func NumBitplanes(mag []uint64) int {
	var maxMag uint64
	for _, v := range mag {
		if v > maxMag {
			maxMag = v
		}
	}
	if maxMag == 0 {
		return 1
	}
	bp := 0
	for (uint64(1) << uint(bp)) <= maxMag {
		bp++
	}
	return bp
}

// BitWidthForBitplanes derives the smallest unsigned integer width
// that can hold every magnitude reachable with numBitplanes bit-planes
// (<=8 => u8, <=16 => u16, <=32 => u32, else u64). The chosen width is
// never itself transmitted; a decoder derives it from num_bitplanes in
// the speck_header.
func BitWidthForBitplanes(numBitplanes int) int {
	switch {
	case numBitplanes <= 8:
		return 8
	case numBitplanes <= 16:
		return 16
	case numBitplanes <= 32:
		return 32
	default:
		return 64
	}
}

// Outlier is one corrected residual: c_orig - c_decoded at Index,
// present only where the magnitude exceeds a fixed-PWE tolerance.
type Outlier struct {
	Index    int
	Residual float64
}

// EncodeOutliers computes residuals r = orig[i] - decoded[i] and
// builds the self-delimited outlier_section (a u32 count followed by
// (u64 index, f64 residual) pairs, index-ascending) for every |r|
// exceeding tolerance. Returns nil if there are none.
func EncodeOutliers(orig, decoded []float64, tolerance float64) []byte {
	w := bitio.NewWriter()
	var outliers []Outlier
	for i := range orig {
		r := orig[i] - decoded[i]
		if math.Abs(r) > tolerance {
			outliers = append(outliers, Outlier{Index: i, Residual: r})
		}
	}
	if len(outliers) == 0 {
		return nil
	}
	w.PutU32(uint32(len(outliers)))
	for _, o := range outliers {
		w.PutU64(uint64(o.Index))
		w.PutF64(o.Residual)
	}
	return w.Flush()
}

// DecodeOutliers parses an outlier_section produced by EncodeOutliers
// and applies each correction to recon in place.
func DecodeOutliers(data []byte, recon []float64) error {
	if len(data) == 0 {
		return nil
	}
	r := bitio.NewReader(data)
	count, err := r.GetU32()
	if err != nil {
		return wavecore.ErrBitstreamTruncated
	}
	for i := uint32(0); i < count; i++ {
		idx, err := r.GetU64()
		if err != nil {
			return wavecore.ErrBitstreamTruncated
		}
		res, err := r.GetF64()
		if err != nil {
			return wavecore.ErrBitstreamTruncated
		}
		if idx >= uint64(len(recon)) {
			return wavecore.ErrBitstreamCorrupt
		}
		recon[idx] += res
	}
	return nil
}

// OutlierTolerance implements the fixed-PWE driver's outlier
// threshold: residuals are corrected whenever they exceed the target
// point-wise error directly (the quantization step itself is set by
// the caller to 1.5*pwe, per the bit-plane controller's fixed-PWE
// target).
func OutlierTolerance(pwe float64) float64 {
	return pwe
}
