package main

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplySlippage(t *testing.T) {
	tests := []struct {
		name        string
		amountOut   int64
		slippageBps int
		want        int64
	}{
		{"default half percent", 1_000_000, 50, 995_000},
		{"no slippage", 999, 0, 999},
		{"full range", 999, 10000, 0},
		{"rounds down", 999, 1, 998},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := applySlippage(math.NewInt(tt.amountOut), tt.slippageBps)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Int64())
		})
	}
}

func TestApplySlippage_OutOfRange(t *testing.T) {
	for _, bps := range []int{-1, 10001, 20000} {
		_, err := applySlippage(math.NewInt(1000), bps)
		assert.Error(t, err, "slippage %d bps", bps)
	}
}
