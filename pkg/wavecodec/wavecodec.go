// Package wavecodec is the top-level floating-point driver: it
// composes the conditioner (field mean/constant detection), the N-D
// wavelet transform, integer quantization, and a bit-plane engine
// (SPECK or TCE/Tarp) into one Encode/Decode call pair, mirroring the
// conditioner -> transform -> quantize -> bit-plane-coder data flow.
package wavecodec

import (
	"context"
	"log/slog"
	"math"

	"github.com/scidata-tools/wavecore/pkg/bitio"
	"github.com/scidata-tools/wavecore/pkg/bitplane"
	"github.com/scidata-tools/wavecore/pkg/logging"
	"github.com/scidata-tools/wavecore/pkg/quant"
	"github.com/scidata-tools/wavecore/pkg/speck"
	"github.com/scidata-tools/wavecore/pkg/tarp"
	"github.com/scidata-tools/wavecore/pkg/wavecore"
	"github.com/scidata-tools/wavecore/pkg/wavelet"
)

// Conditioner header tags and flag bits. The constant envelope is 17
// bytes (tag + f64 constant + f64 q); the general envelope is 26
// bytes (tag + f64 mean + f64 q + f64 dataRange + flags).
const (
	tagConstant byte = 0
	tagGeneral  byte = 1

	flagEngineTarp  byte = 1 << 0
	flagHasOutliers byte = 1 << 1

	constantEnvelopeBytes = 17
	generalEnvelopeBytes  = 26
)

// Options configures one Encode/Decode session.
type Options struct {
	Transform      wavelet.TransformType
	SpatialLevels  int // 0 = derive from wavelet.MaxLevels
	TemporalLevels int // packet mode only; ignored under Dyadic

	Target bitplane.Target
	Engine bitplane.Kind

	Adaptive       bool    // tarp only: Options.Adaptive false freezes context state
	TarpAlpha      float64 // tarp only
	TarpAsymmetric bool    // tarp only

	// ConstantTolerance is the max abs deviation from the field mean
	// the conditioner will accept before treating the field as
	// constant and short-circuiting straight to a 17-byte bitstream.
	ConstantTolerance float64

	Logger *slog.Logger
}

// DefaultOptions returns canonical settings: dyadic transform, SPECK
// engine, fixed-size (unbounded) target, a near-zero constant
// tolerance (1e-12) that only catches fields constant to within it.
func DefaultOptions() *Options {
	return &Options{
		Transform:         wavelet.Dyadic,
		Target:            bitplane.Target{Kind: bitplane.FixedSize},
		Engine:            bitplane.SpeckEngine,
		Adaptive:          true,
		TarpAlpha:         tarp.AlphaIsotropic,
		ConstantTolerance: 1e-12,
	}
}

func (o *Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Encode drives the full conditioner -> transform -> quantize ->
// bit-plane-coder pipeline and returns the encoded bitstream.
func Encode(ctx context.Context, d wavecore.Dims, samples []float64, opts *Options) ([]byte, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if !d.Valid() || len(samples) != d.Volume() {
		return nil, wavecore.ErrWrongDims
	}

	sessionID := wavecore.SessionID(wavecore.SessionParams{
		Dims:   d,
		Levels: opts.SpatialLevels,
		Budget: opts.Target.BudgetBits,
	})
	logCtx := logging.AppendCtx(ctx, slog.String("session_id", sessionID))
	logger := opts.logger()
	logger.InfoContext(logCtx, "encode session start", "dims", d.String())
	defer logger.InfoContext(logCtx, "encode session end")

	constantValue, isConstant := detectConstant(samples, opts.ConstantTolerance)
	if isConstant {
		q, _ := opts.Target.Resolve(samples)
		if q <= 0 {
			q = 1
		}
		logger.DebugContext(logCtx, "constant field short-circuit", "value", constantValue)
		return encodeConstantEnvelope(constantValue, q), nil
	}

	pyr, err := wavelet.FromSamples(d, samples, opts.Transform)
	if err != nil {
		return nil, err
	}
	ls, lt := resolveLevels(d, opts)
	spec := wavelet.LevelSpec{Spatial: ls, Temporal: lt}
	if opts.Transform == wavelet.Dyadic {
		spec = wavelet.DyadicLevels(ls)
	}
	if err := wavelet.ForwardND(pyr, spec); err != nil {
		return nil, err
	}

	dataRange := rangeOf(samples)
	q, budgetBytes := opts.Target.Resolve(pyr.Data)

	mag, sign, err := quant.Quantize(pyr.Data, q)
	if err != nil {
		return nil, err
	}
	// The engines consume mag in place; keep the quantized values for
	// the PWE residual check below.
	quantMag := append([]uint64(nil), mag...)

	subs, err := subbandInits(pyr)
	if err != nil {
		return nil, err
	}

	var payload []byte
	var numBitplanes int
	switch opts.Engine {
	case bitplane.TarpEngine:
		parent := noParents(len(mag))
		enc := tarp.NewEncoder(d, mag, sign, parent, nil, tarp.Options{Alpha: opts.TarpAlpha, Asymmetric: opts.TarpAsymmetric, Adaptive: opts.Adaptive}, budgetBytes)
		eng := bitplane.Engine{Kind: bitplane.TarpEngine, Tarp: enc}
		if err := runEngine(ctx, eng); err != nil {
			return nil, err
		}
		payload, err = eng.Flush()
		numBitplanes = eng.NumBitplanes()
	default:
		enc := speck.NewEncoder(d, mag, sign, subs, nil, budgetBytes)
		eng := bitplane.Engine{Kind: bitplane.SpeckEngine, Speck: enc}
		if err := runEngine(ctx, eng); err != nil {
			return nil, err
		}
		payload, err = eng.Flush()
		numBitplanes = eng.NumBitplanes()
	}
	if err != nil {
		return nil, err
	}

	var outlierSection []byte
	if opts.Target.Kind == bitplane.FixedPWE {
		decodedMag := quantMag
		decodedSign := append([]bool(nil), sign...)
		reconPyr := &wavelet.Pyramid{Dims: d, Data: quant.Dequantize(decodedMag, decodedSign, q), Transform: pyr.Transform, SpatialLevels: pyr.SpatialLevels, TemporalLevels: pyr.TemporalLevels}
		invSpec := wavelet.LevelSpec{Spatial: reconPyr.SpatialLevels, Temporal: reconPyr.TemporalLevels}
		if err := wavelet.InverseND(reconPyr, invSpec); err != nil {
			return nil, err
		}
		outlierSection = quant.EncodeOutliers(samples, reconPyr.Data, opts.Target.PWE)
	}

	header := encodeGeneralEnvelope(mean(samples), q, dataRange, opts.Engine, len(outlierSection) > 0)
	w := bitio.NewWriter()
	for _, b := range header {
		w.PutByte(b)
	}
	w.PutByte(byte(numBitplanes))
	w.PutU64(uint64(len(payload)) * 8)
	out := w.Flush()
	out = append(out, payload...)
	if len(outlierSection) > 0 {
		out = append(out, outlierSection...)
	}
	return out, nil
}

// Decode reverses Encode, returning the reconstructed sample field.
func Decode(ctx context.Context, d wavecore.Dims, data []byte, opts *Options) ([]float64, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if !d.Valid() {
		return nil, wavecore.ErrWrongDims
	}
	if len(data) < 1 {
		return nil, wavecore.ErrBitstreamTruncated
	}
	sessionID := wavecore.SessionID(wavecore.SessionParams{
		Dims:   d,
		Levels: opts.SpatialLevels,
		Budget: opts.Target.BudgetBits,
	})
	logCtx := logging.AppendCtx(ctx, slog.String("session_id", sessionID))
	logger := opts.logger()
	logger.InfoContext(logCtx, "decode session start", "dims", d.String())
	defer logger.InfoContext(logCtx, "decode session end")

	switch data[0] {
	case tagConstant:
		value, err := decodeConstantEnvelope(data)
		if err != nil {
			return nil, err
		}
		out := make([]float64, d.Volume())
		for i := range out {
			out[i] = value
		}
		return out, nil
	case tagGeneral:
		return decodeGeneral(d, data, opts)
	default:
		return nil, wavecore.ErrBitstreamCorrupt
	}
}

func decodeGeneral(d wavecore.Dims, data []byte, opts *Options) ([]float64, error) {
	if len(data) < generalEnvelopeBytes+9 {
		return nil, wavecore.ErrBitstreamTruncated
	}
	r := bitio.NewReader(data[:generalEnvelopeBytes])
	if _, err := r.GetByte(); err != nil {
		return nil, wavecore.ErrBitstreamTruncated
	}
	_, err := r.GetF64() // mean, carried for diagnostics only
	if err != nil {
		return nil, wavecore.ErrBitstreamTruncated
	}
	q, err := r.GetF64()
	if err != nil {
		return nil, wavecore.ErrBitstreamTruncated
	}
	_, err = r.GetF64() // dataRange, unused on decode
	if err != nil {
		return nil, wavecore.ErrBitstreamTruncated
	}
	flags, err := r.GetByte()
	if err != nil {
		return nil, wavecore.ErrBitstreamTruncated
	}

	rest := data[generalEnvelopeBytes:]
	hr := bitio.NewReader(rest[:9])
	numBitplanes, err := hr.GetByte()
	if err != nil {
		return nil, wavecore.ErrBitstreamTruncated
	}
	numUsefulBits, err := hr.GetU64()
	if err != nil {
		return nil, wavecore.ErrBitstreamTruncated
	}
	payloadLen := int((numUsefulBits + 7) / 8)
	payloadStart := generalEnvelopeBytes + 9
	if len(rest) < 9+payloadLen {
		return nil, wavecore.ErrBitstreamTruncated
	}
	payload := data[payloadStart : payloadStart+payloadLen]
	outlierData := data[payloadStart+payloadLen:]

	ls, lt := resolveLevels(d, opts)
	pyr := wavelet.NewPyramid(d, opts.Transform)
	pyr.SpatialLevels, pyr.TemporalLevels = ls, lt
	if opts.Transform == wavelet.Dyadic {
		pyr.TemporalLevels = ls
	}
	subs, err := subbandInitsForDims(d, opts.Transform, ls, lt)
	if err != nil {
		return nil, err
	}

	mag := make([]uint64, d.Volume())
	sign := make([]bool, d.Volume())

	var decErr error
	if flags&flagEngineTarp != 0 {
		parent := noParents(len(mag))
		dec := tarp.NewDecoder(d, mag, sign, parent, nil, tarp.Options{Alpha: opts.TarpAlpha, Asymmetric: opts.TarpAsymmetric, Adaptive: opts.Adaptive}, int(numBitplanes), payload)
		eng := bitplane.Engine{Kind: bitplane.TarpEngine, Tarp: dec}
		decErr = runEngine(context.Background(), eng)
	} else {
		dec := speck.NewDecoder(d, mag, sign, subs, nil, int(numBitplanes), payload)
		eng := bitplane.Engine{Kind: bitplane.SpeckEngine, Speck: dec}
		decErr = runEngine(context.Background(), eng)
	}
	if decErr != nil && !wavecore.Terminal(decErr) {
		return nil, decErr
	}

	pyr.Data = quant.Dequantize(mag, sign, q)
	invSpec := wavelet.LevelSpec{Spatial: pyr.SpatialLevels, Temporal: pyr.TemporalLevels}
	if err := wavelet.InverseND(pyr, invSpec); err != nil {
		return nil, err
	}

	if flags&flagHasOutliers != 0 {
		if err := quant.DecodeOutliers(outlierData, pyr.Data); err != nil {
			return nil, err
		}
	}
	return pyr.Data, nil
}

func runEngine(ctx context.Context, eng bitplane.Engine) error {
	err := bitplane.Run(ctx, eng)
	if err != nil && wavecore.Terminal(err) {
		return nil
	}
	return err
}

func resolveLevels(d wavecore.Dims, opts *Options) (spatial, temporal int) {
	ls := opts.SpatialLevels
	if ls <= 0 {
		ls = wavelet.MaxLevels(d)
	}
	lt := opts.TemporalLevels
	if opts.Transform == wavelet.Dyadic || lt <= 0 {
		lt = ls
	}
	return ls, lt
}

func subbandInits(pyr *wavelet.Pyramid) ([]speck.SubbandInit, error) {
	n := pyr.NumSubbands()
	subs := make([]speck.SubbandInit, 0, n)
	for id := 0; id < n; id++ {
		nx, ny, nz, err := pyr.SubbandSize(id)
		if err != nil {
			return nil, err
		}
		ox, oy, oz, err := pyr.SubbandOrigin(id)
		if err != nil {
			return nil, err
		}
		subs = append(subs, speck.SubbandInit{OX: ox, OY: oy, OZ: oz, NX: nx, NY: ny, NZ: nz, Level: levelForExtent(nx, ny, nz)})
	}
	return subs, nil
}

func subbandInitsForDims(d wavecore.Dims, transform wavelet.TransformType, ls, lt int) ([]speck.SubbandInit, error) {
	pyr := wavelet.NewPyramid(d, transform)
	pyr.SpatialLevels = ls
	pyr.TemporalLevels = lt
	return subbandInits(pyr)
}

func levelForExtent(nx, ny, nz int) int {
	m := nx
	if ny > m {
		m = ny
	}
	if nz > m {
		m = nz
	}
	lvl := 0
	for (1 << uint(lvl)) < m {
		lvl++
	}
	return lvl
}

func noParents(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = -1
	}
	return p
}

func mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	var sum float64
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

func rangeOf(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	lo, hi := data[0], data[0]
	for _, v := range data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return hi - lo
}

func detectConstant(data []float64, tolerance float64) (value float64, ok bool) {
	m := mean(data)
	for _, v := range data {
		if math.Abs(v-m) > tolerance {
			return 0, false
		}
	}
	return m, true
}

func encodeConstantEnvelope(value, q float64) []byte {
	w := bitio.NewWriter()
	w.PutByte(tagConstant)
	w.PutF64(value)
	w.PutF64(q)
	return w.Flush()
}

func decodeConstantEnvelope(data []byte) (float64, error) {
	if len(data) < constantEnvelopeBytes {
		return 0, wavecore.ErrBitstreamTruncated
	}
	r := bitio.NewReader(data[:constantEnvelopeBytes])
	if _, err := r.GetByte(); err != nil {
		return 0, wavecore.ErrBitstreamTruncated
	}
	value, err := r.GetF64()
	if err != nil {
		return 0, wavecore.ErrBitstreamTruncated
	}
	return value, nil
}

func encodeGeneralEnvelope(mean, q, dataRange float64, engine bitplane.Kind, hasOutliers bool) []byte {
	w := bitio.NewWriter()
	w.PutByte(tagGeneral)
	w.PutF64(mean)
	w.PutF64(q)
	w.PutF64(dataRange)
	var flags byte
	if engine == bitplane.TarpEngine {
		flags |= flagEngineTarp
	}
	if hasOutliers {
		flags |= flagHasOutliers
	}
	w.PutByte(flags)
	return w.Flush()
}
