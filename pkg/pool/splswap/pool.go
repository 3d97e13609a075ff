package splswap

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	cosmath "cosmossdk.io/math"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"altswap/pkg"
	"altswap/pkg/sol"
)

var ErrInvalidPoolData = errors.New("invalid spl token swap pool data")

// SplSwapPool represents an SPL Token Swap pool
type SplSwapPool struct {
	Version        uint8
	IsInitialized  bool
	BumpSeed       uint8
	TokenProgramId solana.PublicKey
	TokenAccountA  solana.PublicKey
	TokenAccountB  solana.PublicKey
	TokenPool      solana.PublicKey
	MintA          solana.PublicKey
	MintB          solana.PublicKey
	FeeAccount     solana.PublicKey
	Fees           Fees
	CurveType      uint8
	CurveParams    [32]byte

	PoolId    solana.PublicKey
	ProgramID solana.PublicKey

	// Pool reserves (fetched from token accounts)
	ReserveA cosmath.Int
	ReserveB cosmath.Int
}

func (p *SplSwapPool) ProtocolName() pkg.ProtocolName {
	return pkg.ProtocolNameSplTokenSwap
}

func (p *SplSwapPool) GetProgramID() solana.PublicKey {
	if p.ProgramID.IsZero() {
		return SplTokenSwapProgramID
	}
	return p.ProgramID
}

func (p *SplSwapPool) GetID() string {
	return p.PoolId.String()
}

func (p *SplSwapPool) GetTokens() (string, string) {
	return p.MintA.String(), p.MintB.String()
}

func (p *SplSwapPool) Decode(data []byte) error {
	if len(data) < PoolStateSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidPoolData, len(data), PoolStateSize)
	}

	dec := bin.NewBinDecoder(data)
	var err error
	if p.Version, err = dec.ReadUint8(); err != nil {
		return err
	}
	if p.IsInitialized, err = dec.ReadBool(); err != nil {
		return err
	}
	if p.BumpSeed, err = dec.ReadUint8(); err != nil {
		return err
	}

	for _, key := range []*solana.PublicKey{
		&p.TokenProgramId,
		&p.TokenAccountA,
		&p.TokenAccountB,
		&p.TokenPool,
		&p.MintA,
		&p.MintB,
		&p.FeeAccount,
	} {
		raw, err := dec.ReadNBytes(32)
		if err != nil {
			return err
		}
		*key = solana.PublicKeyFromBytes(raw)
	}

	for _, fee := range []*uint64{
		&p.Fees.TradeFeeNumerator,
		&p.Fees.TradeFeeDenominator,
		&p.Fees.OwnerTradeFeeNumerator,
		&p.Fees.OwnerTradeFeeDenominator,
		&p.Fees.OwnerWithdrawFeeNumerator,
		&p.Fees.OwnerWithdrawFeeDenominator,
		&p.Fees.HostFeeNumerator,
		&p.Fees.HostFeeDenominator,
	} {
		if *fee, err = dec.ReadUint64(bin.LE); err != nil {
			return err
		}
	}

	if p.CurveType, err = dec.ReadUint8(); err != nil {
		return err
	}
	params, err := dec.ReadNBytes(32)
	if err != nil {
		return err
	}
	copy(p.CurveParams[:], params)

	if p.Version != 1 || !p.IsInitialized {
		return fmt.Errorf("%w: version %d initialized %v", ErrInvalidPoolData, p.Version, p.IsInitialized)
	}
	return nil
}

// SwapAccounts is the ordered account list of a swap instruction.
type SwapAccounts struct {
	Pool              solana.PublicKey
	Authority         solana.PublicKey
	TransferAuthority solana.PublicKey
	Source            solana.PublicKey
	SwapSource        solana.PublicKey
	SwapDestination   solana.PublicKey
	Destination       solana.PublicKey
	PoolMint          solana.PublicKey
	FeeAccount        solana.PublicKey
	TokenProgram      solana.PublicKey
}

// SwapAccounts resolves the accounts for a swap by user. The user's token
// accounts are its associated token accounts for the two mints. aToB selects
// the direction; the reserve pair is flipped along with the user pair.
func (p *SplSwapPool) SwapAccounts(user, transferAuthority solana.PublicKey, aToB bool) (SwapAccounts, error) {
	authority, _, err := FindPoolAuthority(p.GetProgramID(), p.PoolId)
	if err != nil {
		return SwapAccounts{}, err
	}
	userA, _, err := solana.FindAssociatedTokenAddress(user, p.MintA)
	if err != nil {
		return SwapAccounts{}, fmt.Errorf("derive user ata for %s: %w", p.MintA, err)
	}
	userB, _, err := solana.FindAssociatedTokenAddress(user, p.MintB)
	if err != nil {
		return SwapAccounts{}, fmt.Errorf("derive user ata for %s: %w", p.MintB, err)
	}

	accounts := SwapAccounts{
		Pool:              p.PoolId,
		Authority:         authority,
		TransferAuthority: transferAuthority,
		Source:            userA,
		SwapSource:        p.TokenAccountA,
		SwapDestination:   p.TokenAccountB,
		Destination:       userB,
		PoolMint:          p.TokenPool,
		FeeAccount:        p.FeeAccount,
		TokenProgram:      p.TokenProgramId,
	}
	if !aToB {
		accounts.Source, accounts.Destination = userB, userA
		accounts.SwapSource, accounts.SwapDestination = p.TokenAccountB, p.TokenAccountA
	}
	if accounts.TokenProgram.IsZero() {
		accounts.TokenProgram = solana.TokenProgramID
	}
	return accounts, nil
}

// BuildSwapInstruction builds the swap instruction moving amountIn from the
// user's source account through this pool.
func (p *SplSwapPool) BuildSwapInstruction(user, transferAuthority solana.PublicKey, aToB bool, amountIn, minimumAmountOut uint64) (solana.Instruction, error) {
	accounts, err := p.SwapAccounts(user, transferAuthority, aToB)
	if err != nil {
		return nil, err
	}
	return NewSwapInstruction(p.GetProgramID(), accounts, amountIn, minimumAmountOut), nil
}

// Keys returns the pool-owned addresses a swap through this pool touches:
// pool, authority, both reserves, LP mint and fee account.
func (p *SplSwapPool) Keys() (solana.PublicKeySlice, error) {
	authority, _, err := FindPoolAuthority(p.GetProgramID(), p.PoolId)
	if err != nil {
		return nil, err
	}
	return solana.PublicKeySlice{
		p.PoolId,
		authority,
		p.TokenAccountA,
		p.TokenAccountB,
		p.TokenPool,
		p.FeeAccount,
	}, nil
}

// LoadReserves reads both vault balances into ReserveA and ReserveB.
func (p *SplSwapPool) LoadReserves(ctx context.Context, solClient *sol.Client) error {
	accounts := []solana.PublicKey{p.TokenAccountA, p.TokenAccountB}
	results, err := solClient.GetMultipleAccountsWithOpts(ctx, accounts)
	if err != nil {
		return fmt.Errorf("failed to fetch vault balances: %w", err)
	}
	if len(results.Value) != len(accounts) {
		return fmt.Errorf("expected %d vault accounts, got %d", len(accounts), len(results.Value))
	}

	for i, result := range results.Value {
		if result == nil {
			return fmt.Errorf("vault account %s not found", accounts[i])
		}
		data := result.Data.GetBinary()
		if len(data) < 72 {
			return fmt.Errorf("vault account %s too short", accounts[i])
		}
		// token account amount lives at offset 64
		balance := binary.LittleEndian.Uint64(data[64:72])
		if i == 0 {
			p.ReserveA = cosmath.NewIntFromUint64(balance)
		} else {
			p.ReserveB = cosmath.NewIntFromUint64(balance)
		}
	}
	return nil
}

func (p *SplSwapPool) Quote(ctx context.Context, solClient *sol.Client, inputMint string, amount cosmath.Int) (cosmath.Int, error) {
	if err := p.LoadReserves(ctx, solClient); err != nil {
		return cosmath.ZeroInt(), err
	}
	return p.QuoteWithReserves(inputMint, amount)
}

// QuoteWithReserves quotes against the reserves already loaded on the pool.
func (p *SplSwapPool) QuoteWithReserves(inputMint string, amount cosmath.Int) (cosmath.Int, error) {
	if amount.IsNil() || amount.IsZero() {
		return cosmath.ZeroInt(), nil
	}
	if !amount.IsUint64() {
		return cosmath.ZeroInt(), fmt.Errorf("amount %s exceeds u64", amount)
	}
	if p.ReserveA.IsNil() || p.ReserveB.IsNil() {
		return cosmath.ZeroInt(), fmt.Errorf("reserves of pool %s not loaded", p.PoolId)
	}

	var reserveIn, reserveOut cosmath.Int
	switch inputMint {
	case p.MintA.String():
		reserveIn, reserveOut = p.ReserveA, p.ReserveB
	case p.MintB.String():
		reserveIn, reserveOut = p.ReserveB, p.ReserveA
	default:
		return cosmath.ZeroInt(), fmt.Errorf("mint %s is not traded by pool %s", inputMint, p.PoolId)
	}

	out := QuoteExactIn(amount.Uint64(), reserveIn.Uint64(), reserveOut.Uint64(), p.Fees)
	return cosmath.NewIntFromUint64(out), nil
}
