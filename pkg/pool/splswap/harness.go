package splswap

import (
	"context"
	"fmt"
	"log"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"altswap/pkg"
	"altswap/pkg/sol"
	"altswap/pkg/token"
)

// Fetcher loads decoded pool state by pool address.
type Fetcher interface {
	FetchPoolByID(ctx context.Context, poolID string) (pkg.Pool, error)
}

// InitializeParams describes a pool to create.
type InitializeParams struct {
	ProgramID solana.PublicKey
	MintA     solana.PublicKey
	MintB     solana.PublicKey
	ReserveA  uint64
	ReserveB  uint64
}

// PoolSetup holds the keys and the two instruction batches that create a pool.
type PoolSetup struct {
	Pool   solana.PrivateKey
	LpMint solana.PrivateKey

	Authority   solana.PublicKey
	TokenA      solana.PublicKey
	TokenB      solana.PublicKey
	FeeAccount  solana.PublicKey
	Destination solana.PublicKey

	// SetupInstructions is signed by payer and LpMint, InitInstructions by payer and Pool.
	SetupInstructions []solana.Instruction
	InitInstructions  []solana.Instruction
}

// PlanPool generates the pool and LP mint keypairs and builds both batches.
// Reserves are the pool authority's associated accounts for each mint, funded
// by minting with payer as mint authority. Fee and LP destination accounts are
// owned by throwaway keys.
func PlanPool(payer solana.PublicKey, params InitializeParams, mintRent, poolRent uint64) (*PoolSetup, error) {
	programID := params.ProgramID
	if programID.IsZero() {
		programID = SplTokenSwapProgramID
	}

	pool, err := sol.NewKeypair()
	if err != nil {
		return nil, err
	}
	lpMint, err := sol.NewKeypair()
	if err != nil {
		return nil, err
	}
	authority, _, err := FindPoolAuthority(programID, pool.PublicKey())
	if err != nil {
		return nil, err
	}

	setup := &PoolSetup{Pool: pool, LpMint: lpMint, Authority: authority}

	var ix solana.Instruction
	if setup.TokenA, ix, err = token.CreateATAInstruction(payer, params.MintA, authority); err != nil {
		return nil, err
	}
	setup.SetupInstructions = append(setup.SetupInstructions, ix,
		token.MintToInstruction(params.MintA, setup.TokenA, payer, params.ReserveA))

	if setup.TokenB, ix, err = token.CreateATAInstruction(payer, params.MintB, authority); err != nil {
		return nil, err
	}
	setup.SetupInstructions = append(setup.SetupInstructions, ix,
		token.MintToInstruction(params.MintB, setup.TokenB, payer, params.ReserveB))

	setup.SetupInstructions = append(setup.SetupInstructions,
		token.InitializeMintInstructions(payer, lpMint.PublicKey(), authority, LpDecimals, mintRent)...)

	for _, dst := range []*solana.PublicKey{&setup.FeeAccount, &setup.Destination} {
		owner, err := sol.NewKeypair()
		if err != nil {
			return nil, err
		}
		if *dst, ix, err = token.CreateATAInstruction(payer, lpMint.PublicKey(), owner.PublicKey()); err != nil {
			return nil, err
		}
		setup.SetupInstructions = append(setup.SetupInstructions, ix)
	}

	initIx, err := NewInitializeInstruction(programID, InitializeAccounts{
		Pool:        pool.PublicKey(),
		Authority:   authority,
		TokenA:      setup.TokenA,
		TokenB:      setup.TokenB,
		PoolMint:    lpMint.PublicKey(),
		FeeAccount:  setup.FeeAccount,
		Destination: setup.Destination,
	}, ZeroFees)
	if err != nil {
		return nil, fmt.Errorf("build initialize instruction: %w", err)
	}
	setup.InitInstructions = []solana.Instruction{
		system.NewCreateAccountInstruction(
			poolRent,
			PoolStateSize,
			programID,
			payer,
			pool.PublicKey(),
		).Build(),
		initIx,
	}
	return setup, nil
}

// InitializePool creates and funds a constant-product pool for mintA/mintB
// with zero fees, sending the setup and init batches as two confirmed
// transactions. The returned harness re-reads pool state through fetcher.
func InitializePool(ctx context.Context, client *sol.Client, fetcher Fetcher, payer solana.PrivateKey, params InitializeParams) (*Harness, error) {
	if params.ProgramID.IsZero() {
		params.ProgramID = SplTokenSwapProgramID
	}

	mintRent, err := client.GetMinimumBalanceForRentExemption(ctx, token.MintSize)
	if err != nil {
		return nil, fmt.Errorf("get mint rent: %w", err)
	}
	poolRent, err := client.GetMinimumBalanceForRentExemption(ctx, PoolStateSize)
	if err != nil {
		return nil, fmt.Errorf("get pool rent: %w", err)
	}

	setup, err := PlanPool(payer.PublicKey(), params, mintRent, poolRent)
	if err != nil {
		return nil, err
	}

	if _, err := client.SendAndConfirm(ctx, setup.SetupInstructions, payer, setup.LpMint); err != nil {
		return nil, fmt.Errorf("setup pool %s/%s: %w", params.MintA, params.MintB, err)
	}
	sig, err := client.SendAndConfirm(ctx, setup.InitInstructions, payer, setup.Pool)
	if err != nil {
		return nil, fmt.Errorf("init pool %s/%s: %w", params.MintA, params.MintB, err)
	}
	log.Printf("🏊 init pool %s: %s", setup.Pool.PublicKey(), sig)

	return NewHarness(setup.Pool.PublicKey(), params.MintA, params.MintB, params.ProgramID, fetcher), nil
}

// Harness builds swap instructions against one pool, reading its state fresh
// for every call.
type Harness struct {
	PoolKey   solana.PublicKey
	MintA     solana.PublicKey
	MintB     solana.PublicKey
	ProgramID solana.PublicKey

	fetcher Fetcher
}

func NewHarness(pool, mintA, mintB, programID solana.PublicKey, fetcher Fetcher) *Harness {
	return &Harness{
		PoolKey:   pool,
		MintA:     mintA,
		MintB:     mintB,
		ProgramID: programID,
		fetcher:   fetcher,
	}
}

func (h *Harness) GetID() string {
	return h.PoolKey.String()
}

func (h *Harness) GetTokens() (string, string) {
	return h.MintA.String(), h.MintB.String()
}

func (h *Harness) state(ctx context.Context) (*SplSwapPool, error) {
	p, err := h.fetcher.FetchPoolByID(ctx, h.PoolKey.String())
	if err != nil {
		return nil, err
	}
	pool, ok := p.(*SplSwapPool)
	if !ok {
		return nil, fmt.Errorf("pool %s is %s, not spl token swap", h.PoolKey, p.ProtocolName())
	}
	return pool, nil
}

// SwapInstruction builds a swap by user through the pool. The user's token
// accounts are its associated accounts for the pool's mints.
func (h *Harness) SwapInstruction(ctx context.Context, user, transferAuthority solana.PublicKey, aToB bool, amountIn, minimumAmountOut uint64) (solana.Instruction, error) {
	pool, err := h.state(ctx)
	if err != nil {
		return nil, err
	}
	return pool.BuildSwapInstruction(user, transferAuthority, aToB, amountIn, minimumAmountOut)
}

// Keys returns pool, authority, both reserves, LP mint and fee account.
func (h *Harness) Keys(ctx context.Context) (solana.PublicKeySlice, error) {
	pool, err := h.state(ctx)
	if err != nil {
		return nil, err
	}
	return pool.Keys()
}
