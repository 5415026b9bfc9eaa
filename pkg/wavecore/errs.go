// Package wavecore holds types and sentinel errors shared across the
// wavelet codec packages (bitio, acoder, wavelet, speck, tarp, quant,
// bitplane, wavecodec), so that none of them needs to import another
// leaf package just to report a shared condition.
package wavecore

import "errors"

// Error taxonomy for the codec core. BudgetMet and EndOfStream are not
// failures: they are the two non-error conditions that break a
// bit-plane loop cleanly ("termination signals").
var (
	// ErrWrongDims reports an API called with incompatible extents.
	ErrWrongDims = errors.New("wavecore: incompatible dimensions")
	// ErrBitstreamTruncated reports a header consumed but payload shorter
	// than announced.
	ErrBitstreamTruncated = errors.New("wavecore: bitstream truncated")
	// ErrBitstreamCorrupt reports an arithmetic-coder state inconsistency,
	// or a header magic/version mismatch.
	ErrBitstreamCorrupt = errors.New("wavecore: bitstream corrupt")
	// ErrVersionMismatch reports a stream produced by an incompatible
	// core version.
	ErrVersionMismatch = errors.New("wavecore: version mismatch")
	// ErrQzInvalid reports a quantization step <= 0, a NaN coefficient,
	// or an lround overflow.
	ErrQzInvalid = errors.New("wavecore: invalid quantization step")
	// ErrBudgetMet signals the arithmetic coder emitted the full bit
	// budget. Not an error; exits the bit-plane loop normally.
	ErrBudgetMet = errors.New("wavecore: budget met")
	// ErrEndOfStream signals graceful truncation support on decode. Not
	// an error; exits the bit-plane loop normally.
	ErrEndOfStream = errors.New("wavecore: end of stream")
	// ErrUnsupportedTransform reports a packet transform requested with
	// mismatched spatial/temporal levels in dyadic mode.
	ErrUnsupportedTransform = errors.New("wavecore: unsupported transform configuration")
	// ErrInternal reports an assertion failure. Never recoverable by the
	// caller; callers should treat it as a bug report.
	ErrInternal = errors.New("wavecore: internal invariant violated")
)

// Terminal reports whether err is one of the two non-error loop
// terminators (BudgetMet, EndOfStream) rather than a genuine failure.
func Terminal(err error) bool {
	return errors.Is(err, ErrBudgetMet) || errors.Is(err, ErrEndOfStream)
}
