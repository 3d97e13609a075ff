package splswap

import (
	"lukechampine.com/uint128"
)

// tradingFee matches the program's fee rounding: a non-zero rate never
// charges less than one base unit.
func tradingFee(amount, numerator, denominator uint64) uint64 {
	if numerator == 0 || amount == 0 || denominator == 0 {
		return 0
	}
	fee := uint128.From64(amount).Mul64(numerator).Div64(denominator)
	if fee.IsZero() {
		return 1
	}
	return fee.Lo
}

// constantProductOut returns how many destination tokens a swap of
// sourceAmount moves out of the pool, rounding in the pool's favour the way the
// on-chain curve does. ok is false when the trade cannot execute.
func constantProductOut(sourceAmount, swapSource, swapDestination uint64) (out uint64, ok bool) {
	invariant := uint128.From64(swapSource).Mul64(swapDestination)
	newSource := uint128.From64(swapSource).Add64(sourceAmount)

	newDestination, rem := invariant.QuoRem(newSource)
	if newDestination.IsZero() {
		return 0, false
	}
	if !rem.IsZero() {
		newDestination = newDestination.Add64(1)
	}
	if newDestination.Cmp64(swapDestination) > 0 {
		return 0, false
	}
	return swapDestination - newDestination.Lo, true
}

// QuoteExactIn estimates the output of swapping amountIn against the given
// reserves after trade and owner fees.
func QuoteExactIn(amountIn, reserveIn, reserveOut uint64, fees Fees) uint64 {
	tradeFee := tradingFee(amountIn, fees.TradeFeeNumerator, fees.TradeFeeDenominator)
	ownerFee := tradingFee(amountIn, fees.OwnerTradeFeeNumerator, fees.OwnerTradeFeeDenominator)
	if tradeFee+ownerFee >= amountIn {
		return 0
	}
	out, ok := constantProductOut(amountIn-tradeFee-ownerFee, reserveIn, reserveOut)
	if !ok {
		return 0
	}
	return out
}
