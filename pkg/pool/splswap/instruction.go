package splswap

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// FindPoolAuthority derives the PDA that owns a pool's reserves and LP mint.
func FindPoolAuthority(programID, pool solana.PublicKey) (solana.PublicKey, uint8, error) {
	authority, bump, err := solana.FindProgramAddress([][]byte{pool.Bytes()}, programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("derive authority of pool %s: %w", pool, err)
	}
	return authority, bump, nil
}

func encodeFees(enc *bin.Encoder, fees Fees) error {
	for _, v := range []uint64{
		fees.TradeFeeNumerator,
		fees.TradeFeeDenominator,
		fees.OwnerTradeFeeNumerator,
		fees.OwnerTradeFeeDenominator,
		fees.OwnerWithdrawFeeNumerator,
		fees.OwnerWithdrawFeeDenominator,
		fees.HostFeeNumerator,
		fees.HostFeeDenominator,
	} {
		if err := enc.WriteUint64(v, bin.LE); err != nil {
			return err
		}
	}
	return nil
}

// InitializeAccounts lists the accounts of an Initialize instruction.
type InitializeAccounts struct {
	Pool        solana.PublicKey
	Authority   solana.PublicKey
	TokenA      solana.PublicKey
	TokenB      solana.PublicKey
	PoolMint    solana.PublicKey
	FeeAccount  solana.PublicKey
	Destination solana.PublicKey
}

// NewInitializeInstruction initializes a constant-product pool with the given
// fees. The pool account must sign.
func NewInitializeInstruction(programID solana.PublicKey, accounts InitializeAccounts, fees Fees) (solana.Instruction, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)
	if err := enc.WriteUint8(instructionInitialize); err != nil {
		return nil, err
	}
	if err := encodeFees(enc, fees); err != nil {
		return nil, fmt.Errorf("encode fees: %w", err)
	}
	if err := enc.WriteUint8(CurveTypeConstantProduct); err != nil {
		return nil, err
	}
	// constant product has no calculator parameters
	if err := enc.WriteBytes(make([]byte, 32), false); err != nil {
		return nil, err
	}

	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(accounts.Pool, true, true),
		solana.NewAccountMeta(accounts.Authority, false, false),
		solana.NewAccountMeta(accounts.TokenA, false, false),
		solana.NewAccountMeta(accounts.TokenB, false, false),
		solana.NewAccountMeta(accounts.PoolMint, true, false),
		solana.NewAccountMeta(accounts.FeeAccount, false, false),
		solana.NewAccountMeta(accounts.Destination, true, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}
	return solana.NewInstruction(programID, metas, buf.Bytes()), nil
}

// NewSwapInstruction encodes a swap of amountIn with a minimum output. No host
// fee account is passed.
func NewSwapInstruction(programID solana.PublicKey, accounts SwapAccounts, amountIn, minimumAmountOut uint64) solana.Instruction {
	data := make([]byte, 0, 17)
	buf := bytes.NewBuffer(data)
	enc := bin.NewBinEncoder(buf)
	// writes to a bytes.Buffer cannot fail
	_ = enc.WriteUint8(instructionSwap)
	_ = enc.WriteUint64(amountIn, bin.LE)
	_ = enc.WriteUint64(minimumAmountOut, bin.LE)

	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(accounts.Pool, false, false),
		solana.NewAccountMeta(accounts.Authority, false, false),
		solana.NewAccountMeta(accounts.TransferAuthority, false, true),
		solana.NewAccountMeta(accounts.Source, true, false),
		solana.NewAccountMeta(accounts.SwapSource, true, false),
		solana.NewAccountMeta(accounts.SwapDestination, true, false),
		solana.NewAccountMeta(accounts.Destination, true, false),
		solana.NewAccountMeta(accounts.PoolMint, true, false),
		solana.NewAccountMeta(accounts.FeeAccount, true, false),
		solana.NewAccountMeta(accounts.TokenProgram, false, false),
	}
	return solana.NewInstruction(programID, metas, buf.Bytes())
}
