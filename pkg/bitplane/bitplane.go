// Package bitplane drives pkg/speck or pkg/tarp through their shared
// per-bit-plane Step/Run contract, owning the three termination
// targets (fixed size, fixed PSNR, fixed PWE) and the cooperative
// cancellation the core's concurrency model requires: suspension
// doesn't exist, so the only way to stop early is to poll between
// passes.
package bitplane

import (
	"context"
	"math"

	"github.com/scidata-tools/wavecore/pkg/speck"
	"github.com/scidata-tools/wavecore/pkg/tarp"
	"github.com/scidata-tools/wavecore/pkg/wavecore"
)

// Kind tags which coder an Engine wraps. A tagged variant, not an
// interface hierarchy: pkg/speck.Coder and pkg/tarp.Coder have
// different constructors (different state they need from the
// pyramid) but the same Step/Run/Flush/NumBitplanes shape, so the
// controller only ever needs to pick between two concrete fields.
type Kind int

const (
	SpeckEngine Kind = iota
	TarpEngine
)

// Engine wraps exactly one of a *speck.Coder or a *tarp.Coder,
// selected by Kind.
type Engine struct {
	Kind  Kind
	Speck *speck.Coder
	Tarp  *tarp.Coder
}

// Step advances the wrapped coder by one bit-plane.
func (e Engine) Step() (more bool, err error) {
	switch e.Kind {
	case SpeckEngine:
		return e.Speck.Step()
	case TarpEngine:
		return e.Tarp.Step()
	default:
		return false, wavecore.ErrInternal
	}
}

// Flush finalizes an encoding session.
func (e Engine) Flush() ([]byte, error) {
	switch e.Kind {
	case SpeckEngine:
		return e.Speck.Flush()
	case TarpEngine:
		return e.Tarp.Flush()
	default:
		return nil, wavecore.ErrInternal
	}
}

// NumBitplanes reports the bit-plane count the wrapped coder derived
// at construction.
func (e Engine) NumBitplanes() int {
	switch e.Kind {
	case SpeckEngine:
		return e.Speck.NumBitplanes()
	case TarpEngine:
		return e.Tarp.NumBitplanes()
	default:
		return 0
	}
}

// Run drives e to completion, polling ctx at each pass boundary.
// wavecore.ErrBudgetMet and wavecore.ErrEndOfStream are returned
// as-is (they are the normal, non-error loop terminators the caller
// is expected to check for with wavecore.Terminal); a cancelled or
// expired ctx returns ctx.Err() instead of running the remaining
// bit-planes.
func Run(ctx context.Context, e Engine) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		more, err := e.Step()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

// TargetKind selects which of the three termination strategies a
// Target describes.
type TargetKind int

const (
	// FixedSize stops once the arithmetic coder has emitted BudgetBits
	// (rounded up to whole bytes) or the loop completes naturally.
	FixedSize TargetKind = iota
	// FixedPSNR pre-estimates a terminal quantization step from a
	// target PSNR before encoding begins.
	FixedPSNR
	// FixedPWE sets the quantization step directly from a target
	// point-wise error, driving pkg/quant's outlier coder for any
	// residual that still exceeds it after reconstruction.
	FixedPWE
)

// Target describes one encode session's stopping rule.
type Target struct {
	Kind TargetKind

	// BudgetBits is used by FixedSize.
	BudgetBits int
	// PSNRTargetDB and DataRange are used by FixedPSNR: DataRange is
	// the reference span (e.g. max-min of the input field) the dB
	// figure is measured against.
	PSNRTargetDB float64
	DataRange    float64
	// PWE is used by FixedPWE: the target point-wise error.
	PWE float64
}

// Resolve computes the quantization step this target implies for
// data, plus the byte budget to pass to the underlying coder's
// constructor (0 meaning unlimited, used by FixedPSNR/FixedPWE, which
// let the bit-plane loop run to completion at the chosen step rather
// than truncating it).
func (t Target) Resolve(data []float64) (q float64, budgetBytes int) {
	switch t.Kind {
	case FixedPSNR:
		rmse := PSNRToRMSE(t.PSNRTargetDB, t.DataRange)
		return TargetPSNRQuantStep(data, rmse), 0
	case FixedPWE:
		return PWEQuantStep(t.PWE), 0
	default:
		return 1.0, (t.BudgetBits + 7) / 8
	}
}

// PSNRToRMSE converts a target PSNR in dB, measured against a known
// data range, to the RMSE TargetPSNRQuantStep expects:
// rmse = range / 10^(psnr/20).
func PSNRToRMSE(psnrDB, dataRange float64) float64 {
	return dataRange / math.Pow(10, psnrDB/20)
}

// TargetPSNRQuantStep implements the Peter-Lindstrom pre-estimate
// q_term = 2*sqrt(3)*rmseTarget, then iteratively tightens it by
// 2^(-1/4) while the midtread-estimated MSE at that step still
// exceeds the target MSE.
func TargetPSNRQuantStep(data []float64, rmseTarget float64) float64 {
	q := 2 * math.Sqrt(3) * rmseTarget
	targetMSE := rmseTarget * rmseTarget
	for i := 0; i < 64 && q > 0 && estimatedMSE(data, q) > targetMSE; i++ {
		q *= math.Pow(2, -0.25)
	}
	return q
}

// estimatedMSE approximates the mean squared quantization error for
// step q using the midtread remainder sum over data: each
// coefficient's error is modeled as its signed distance to the
// nearest multiple of q.
func estimatedMSE(data []float64, q float64) float64 {
	if q <= 0 || len(data) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for _, c := range data {
		n := math.Round(c / q)
		r := c - n*q
		sum += r * r
	}
	return sum / float64(len(data))
}

// PWEQuantStep implements the fixed-PWE target's direct step
// selection: q = 1.5 * pwe.
func PWEQuantStep(pwe float64) float64 {
	return 1.5 * pwe
}
