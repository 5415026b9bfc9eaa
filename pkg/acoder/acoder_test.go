package acoder

import (
	"testing"

	"github.com/scidata-tools/wavecore/pkg/wavecore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func make100Bits(val int) []int {
	bits := make([]int, 100)
	for i := range bits {
		bits[i] = val
	}
	return bits
}

func makeAlternatingBits(n int) []int {
	bits := make([]int, n)
	for i := range bits {
		bits[i] = i % 2
	}
	return bits
}

func TestEncoder_Simple(t *testing.T) {
	bank := NewBank(1, false)
	enc := NewEncoder(bank, 0)
	for i := 0; i < 100; i++ {
		require.NoError(t, enc.Encode(0, 0))
	}
	out := enc.Flush()
	assert.True(t, len(out) > 0)
}

func TestEncoder_AllOnes(t *testing.T) {
	bank := NewBank(1, false)
	enc := NewEncoder(bank, 0)
	for i := 0; i < 100; i++ {
		require.NoError(t, enc.Encode(1, 0))
	}
	out := enc.Flush()
	assert.True(t, len(out) > 0)
}

func TestRoundTrip_Constant(t *testing.T) {
	tests := []struct {
		name string
		bits []int
	}{
		{"all zeros", make100Bits(0)},
		{"all ones", make100Bits(1)},
		{"alternating", makeAlternatingBits(100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encBank := NewBank(1, false)
			enc := NewEncoder(encBank, 0)
			for _, b := range tt.bits {
				require.NoError(t, enc.Encode(b, 0))
			}
			encoded := enc.Flush()
			require.True(t, len(encoded) > 0)

			decBank := NewBank(1, false)
			dec := NewDecoder(decBank, encoded)
			got := make([]int, len(tt.bits))
			for i := range got {
				got[i] = dec.Decode(0)
			}
			assert.Equal(t, tt.bits, got)
		})
	}
}

func TestRoundTrip_MultiContext(t *testing.T) {
	const nCtx = 4
	bits := make([]int, 400)
	ctxs := make([]int, 400)
	for i := range bits {
		ctxs[i] = i % nCtx
		bits[i] = (i / (ctxs[i] + 1)) % 2
	}

	encBank := NewBank(nCtx, false)
	enc := NewEncoder(encBank, 0)
	for i, b := range bits {
		require.NoError(t, enc.Encode(b, ctxs[i]))
	}
	encoded := enc.Flush()

	decBank := NewBank(nCtx, false)
	dec := NewDecoder(decBank, encoded)
	for i, want := range bits {
		got := dec.Decode(ctxs[i])
		require.Equal(t, want, got, "symbol %d ctx %d", i, ctxs[i])
	}
}

func TestNonAdaptive_StateFrozen(t *testing.T) {
	bank := NewBank(1, true)
	enc := NewEncoder(bank, 0)
	for i := 0; i < 20; i++ {
		require.NoError(t, enc.Encode(i%2, 0))
	}
	assert.Equal(t, 0, bank.Context(0).Index, "non-adaptive context must never change state")
}

func TestAdaptive_StateEvolves(t *testing.T) {
	bank := NewBank(1, false)
	enc := NewEncoder(bank, 0)
	for i := 0; i < 10; i++ {
		require.NoError(t, enc.Encode(bank.Context(0).MPS, 0))
	}
	assert.Greater(t, bank.Context(0).Index, 0)
}

func TestBudget_StopsEncoding(t *testing.T) {
	bank := NewBank(1, false)
	enc := NewEncoder(bank, 4)
	var sawBudgetMet bool
	for i := 0; i < 10000; i++ {
		if err := enc.Encode(i%2, 0); err != nil {
			assert.ErrorIs(t, err, wavecore.ErrBudgetMet)
			sawBudgetMet = true
			break
		}
	}
	assert.True(t, sawBudgetMet, "budget should have been hit for a 4-byte cap over 10000 symbols")
}

func TestBank_Reset(t *testing.T) {
	bank := NewBank(2, false)
	enc := NewEncoder(bank, 0)
	_ = enc.Encode(1, 0)
	_ = enc.Encode(0, 1)
	bank.Reset()
	assert.Equal(t, Context{}, *bank.Context(0))
	assert.Equal(t, Context{}, *bank.Context(1))
}

func BenchmarkEncode(b *testing.B) {
	bits := make([]int, 10000)
	for i := range bits {
		bits[i] = (i * 17) % 2
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bank := NewBank(1, false)
		enc := NewEncoder(bank, 0)
		for _, bit := range bits {
			_ = enc.Encode(bit, 0)
		}
		enc.Flush()
	}
}

func BenchmarkDecode(b *testing.B) {
	bits := make([]int, 10000)
	for i := range bits {
		bits[i] = (i * 17) % 2
	}
	bank := NewBank(1, false)
	enc := NewEncoder(bank, 0)
	for _, bit := range bits {
		_ = enc.Encode(bit, 0)
	}
	encoded := enc.Flush()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		decBank := NewBank(1, false)
		dec := NewDecoder(decBank, encoded)
		for range bits {
			dec.Decode(0)
		}
	}
}
