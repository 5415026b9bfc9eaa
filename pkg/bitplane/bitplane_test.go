package bitplane

import (
	"context"
	"testing"
	"time"

	"github.com/scidata-tools/wavecore/pkg/speck"
	"github.com/scidata-tools/wavecore/pkg/tarp"
	"github.com/scidata-tools/wavecore/pkg/wavecore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Speck_RunToCompletion(t *testing.T) {
	d := wavecore.Dims{NX: 4, NY: 4, NZ: 1}
	mag := make([]uint64, d.Volume())
	sign := make([]bool, d.Volume())
	mag[5] = 7
	subs := []speck.SubbandInit{{NX: d.NX, NY: d.NY, NZ: 1, Level: 2}}

	enc := speck.NewEncoder(d, mag, sign, subs, nil, 0)
	eng := Engine{Kind: SpeckEngine, Speck: enc}

	err := Run(context.Background(), eng)
	require.NoError(t, err)
	data, err := eng.Flush()
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestEngine_Tarp_RunToCompletion(t *testing.T) {
	d := wavecore.Dims{NX: 4, NY: 4, NZ: 1}
	mag := make([]uint64, d.Volume())
	sign := make([]bool, d.Volume())
	mag[5] = 7
	parent := make([]int, d.Volume())
	for i := range parent {
		parent[i] = -1
	}

	enc := tarp.NewEncoder(d, mag, sign, parent, nil, tarp.DefaultOptions(), 0)
	eng := Engine{Kind: TarpEngine, Tarp: enc}

	err := Run(context.Background(), eng)
	require.NoError(t, err)
	data, err := eng.Flush()
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestRun_CancelledContextStopsEarly(t *testing.T) {
	d := wavecore.Dims{NX: 8, NY: 8, NZ: 8}
	mag := make([]uint64, d.Volume())
	sign := make([]bool, d.Volume())
	for i := range mag {
		mag[i] = uint64(i % 255)
	}
	subs := []speck.SubbandInit{{NX: d.NX, NY: d.NY, NZ: d.NZ, Level: 6}}
	enc := speck.NewEncoder(d, mag, sign, subs, nil, 0)
	eng := Engine{Kind: SpeckEngine, Speck: enc}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Run(ctx, eng)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRun_BudgetMetPropagates(t *testing.T) {
	d := wavecore.Dims{NX: 8, NY: 8, NZ: 1}
	mag := make([]uint64, d.Volume())
	sign := make([]bool, d.Volume())
	for i := range mag {
		mag[i] = uint64((i*31 + 7) % 253)
	}
	subs := []speck.SubbandInit{{NX: d.NX, NY: d.NY, NZ: 1, Level: 3}}
	enc := speck.NewEncoder(d, mag, sign, subs, nil, 4)
	eng := Engine{Kind: SpeckEngine, Speck: enc}

	err := Run(context.Background(), eng)
	require.ErrorIs(t, err, wavecore.ErrBudgetMet)
}

func TestTarget_FixedSize_Resolve(t *testing.T) {
	target := Target{Kind: FixedSize, BudgetBits: 17}
	q, budgetBytes := target.Resolve(nil)
	assert.Equal(t, 1.0, q)
	assert.Equal(t, 3, budgetBytes) // ceil(17/8)
}

func TestTarget_FixedPWE_Resolve(t *testing.T) {
	target := Target{Kind: FixedPWE, PWE: 0.02}
	q, budgetBytes := target.Resolve(nil)
	assert.InDelta(t, 0.03, q, 1e-12)
	assert.Equal(t, 0, budgetBytes)
}

func TestTarget_FixedPSNR_Resolve_TighterForHigherPSNR(t *testing.T) {
	data := make([]float64, 256)
	for i := range data {
		data[i] = float64(i%17) - 8
	}
	low := Target{Kind: FixedPSNR, PSNRTargetDB: 40, DataRange: 16}
	high := Target{Kind: FixedPSNR, PSNRTargetDB: 80, DataRange: 16}

	qLow, _ := low.Resolve(data)
	qHigh, _ := high.Resolve(data)
	assert.Greater(t, qLow, qHigh, "a higher target PSNR must resolve to a finer (smaller) quantization step")
}

func TestPWEQuantStep(t *testing.T) {
	assert.InDelta(t, 0.15, PWEQuantStep(0.1), 1e-12)
}

func TestPSNRToRMSE(t *testing.T) {
	// 20 dB is a factor of 10 in amplitude: rmse = range/10 = 1.
	assert.InDelta(t, 1.0, PSNRToRMSE(20, 10), 1e-9)
}

func TestContext_TimeoutIsRespectedBetweenSteps(t *testing.T) {
	d := wavecore.Dims{NX: 2, NY: 2, NZ: 1}
	mag := []uint64{0, 1, 2, 3}
	sign := make([]bool, 4)
	subs := []speck.SubbandInit{{NX: 2, NY: 2, NZ: 1, Level: 1}}
	enc := speck.NewEncoder(d, mag, sign, subs, nil, 0)
	eng := Engine{Kind: SpeckEngine, Speck: enc}

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Microsecond)

	err := Run(ctx, eng)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
