package splswap

import "github.com/gagliardetto/solana-go"

// SPL Token Swap Program ID (official Solana program)
const (
	SPL_TOKEN_SWAP_PROGRAM_ID = "SwaPpA9LAaLfeLi3a68M4DjnLqgtticKg6CnyNwgAC8"
)

var (
	SplTokenSwapProgramID = solana.MustPublicKeyFromBase58(SPL_TOKEN_SWAP_PROGRAM_ID)
)

const (
	// PoolStateSize is the packed length of a version 1 swap state account.
	PoolStateSize = 324

	// LpDecimals is the decimals of every pool's LP mint.
	LpDecimals = 6

	CurveTypeConstantProduct uint8 = 0
)

// Instruction tags
const (
	instructionInitialize uint8 = 0
	instructionSwap       uint8 = 1
)

// Fees mirrors the eight fee fields of a swap pool.
type Fees struct {
	TradeFeeNumerator           uint64
	TradeFeeDenominator         uint64
	OwnerTradeFeeNumerator      uint64
	OwnerTradeFeeDenominator    uint64
	OwnerWithdrawFeeNumerator   uint64
	OwnerWithdrawFeeDenominator uint64
	HostFeeNumerator            uint64
	HostFeeDenominator          uint64
}

// ZeroFees charges nothing. Denominators stay 1 so the program accepts them.
var ZeroFees = Fees{
	TradeFeeDenominator:         1,
	OwnerTradeFeeDenominator:    1,
	OwnerWithdrawFeeDenominator: 1,
	HostFeeDenominator:          1,
}
