// Package workflow drives the multi-hop lookup-table swap from mint creation
// to the persisted transaction record.
package workflow

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"altswap/pkg/router"
	"altswap/pkg/sol"
)

// Provisioner creates the on-chain fixtures: mints, pools and balances.
type Provisioner interface {
	// CreateMint creates a mint with the payer as authority plus the payer's
	// associated token account.
	CreateMint(ctx context.Context, decimals uint8) (solana.PublicKey, error)
	CreatePool(ctx context.Context, mintA, mintB solana.PublicKey, reserveA, reserveB uint64) (router.SwapPool, error)
	// MintTo mints into owner's associated token account.
	MintTo(ctx context.Context, mint, owner solana.PublicKey, amount uint64) error
	TokenBalance(ctx context.Context, mint, owner solana.PublicKey) (uint64, error)
}

// Tables manages the address lookup table.
type Tables interface {
	CreateTable(ctx context.Context) (solana.PublicKey, error)
	ExtendTable(ctx context.Context, table solana.PublicKey, keys solana.PublicKeySlice, chunkSize int) error
	// WaitActive returns the table's addresses once a transaction can resolve
	// expected of them.
	WaitActive(ctx context.Context, table solana.PublicKey, expected int, timeout time.Duration) (solana.PublicKeySlice, error)
}

// Submitter sends the versioned transaction and reads it back.
type Submitter interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	SendVersioned(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	WaitForSignature(ctx context.Context, sig solana.Signature, commitment rpc.ConfirmationStatusType) error
	GetTransactionRaw(ctx context.Context, sig solana.Signature) (*sol.RawResponse, error)
}

// Options are the run parameters.
type Options struct {
	MintCount         int
	Decimals          uint8
	PoolReserve       uint64
	SeedAmount        uint64
	HopDecay          uint64
	ChunkSize         int
	ActivationTimeout time.Duration
	OutputPath        string
	SwapProgramID     solana.PublicKey
	FinalCommitment   rpc.ConfirmationStatusType
}

// StepError names the step a run failed in.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

const (
	StepProvisionMints = "provision mints"
	StepProvisionPools = "provision pools"
	StepSeed           = "seed liquidity path"
	StepLookupTable    = "populate lookup table"
	StepActivation     = "wait for lookup table"
	StepSubmit         = "compile and submit"
	StepConfirm        = "confirm and report"
)

// Report is what a run produced.
type Report struct {
	Mints         []solana.PublicKey
	Pools         []string
	Table         solana.PublicKey
	Keys          int
	HopAmounts    []uint64
	LegacySize    int
	VersionedSize int
	Signature     solana.Signature
	OutputPath    string
	// SwapPools lists the pool of every swap instruction in the confirmed
	// transaction, in execution order.
	SwapPools []solana.PublicKey
	// SeedBalance is the payer's first-mint balance before the swap;
	// FirstBalance and LastBalance are the first and last mint balances after it.
	SeedBalance  uint64
	FirstBalance uint64
	LastBalance  uint64
}

type Orchestrator struct {
	Payer       solana.PrivateKey
	Provisioner Provisioner
	Tables      Tables
	Submitter   Submitter
	Options     Options

	// written by WriteResponse unless replaced
	writeResponse func(path string, resp *sol.RawResponse) error
}

func NewOrchestrator(payer solana.PrivateKey, provisioner Provisioner, tables Tables, submitter Submitter, opts Options) *Orchestrator {
	if opts.FinalCommitment == "" {
		opts.FinalCommitment = rpc.ConfirmationStatusFinalized
	}
	return &Orchestrator{
		Payer:         payer,
		Provisioner:   provisioner,
		Tables:        tables,
		Submitter:     submitter,
		Options:       opts,
		writeResponse: WriteResponse,
	}
}

// Run executes every step in order and stops at the first failure. Accounts
// created before a failure are left on chain.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	if o.Options.MintCount < 2 {
		return nil, fmt.Errorf("need at least 2 mints, got %d", o.Options.MintCount)
	}
	report := &Report{OutputPath: o.Options.OutputPath}

	mints, err := o.ProvisionMints(ctx)
	if err != nil {
		return report, &StepError{StepProvisionMints, err}
	}
	report.Mints = mints

	chain, pools, err := o.ProvisionPools(ctx, mints)
	if err != nil {
		return report, &StepError{StepProvisionPools, err}
	}
	report.Pools = pools
	report.Keys = len(chain.Keys)
	report.HopAmounts = chain.Amounts

	if err := o.Seed(ctx, mints[0]); err != nil {
		return report, &StepError{StepSeed, err}
	}
	if report.SeedBalance, err = o.Provisioner.TokenBalance(ctx, mints[0], o.Payer.PublicKey()); err != nil {
		return report, &StepError{StepSeed, err}
	}

	table, err := o.PopulateTable(ctx, chain.Keys)
	if err != nil {
		return report, &StepError{StepLookupTable, err}
	}
	report.Table = table

	log.Printf("⏳ waiting for lookup table %s to activate", table)
	addresses, err := o.Tables.WaitActive(ctx, table, len(chain.Keys), o.Options.ActivationTimeout)
	if err != nil {
		return report, &StepError{StepActivation, err}
	}

	sig, err := o.Submit(ctx, chain.Instructions, table, addresses, report)
	if err != nil {
		return report, &StepError{StepSubmit, err}
	}
	report.Signature = sig

	if err := o.ConfirmAndReport(ctx, sig, mints, pools, report); err != nil {
		return report, &StepError{StepConfirm, err}
	}
	return report, nil
}

// ProvisionMints creates MintCount mints and the payer's token accounts.
func (o *Orchestrator) ProvisionMints(ctx context.Context) ([]solana.PublicKey, error) {
	log.Printf("🪙 Create %d mints and the corresponding ata for the payer", o.Options.MintCount)
	mints := make([]solana.PublicKey, 0, o.Options.MintCount)
	for i := 0; i < o.Options.MintCount; i++ {
		mint, err := o.Provisioner.CreateMint(ctx, o.Options.Decimals)
		if err != nil {
			return mints, fmt.Errorf("mint %d: %w", i, err)
		}
		mints = append(mints, mint)
	}
	return mints, nil
}

// ProvisionPools creates a pool for every consecutive mint pair and builds the
// swap chain through them.
func (o *Orchestrator) ProvisionPools(ctx context.Context, mints []solana.PublicKey) (*router.SwapChain, []string, error) {
	log.Printf("🏊 Create %d pools, mint0/mint1 => ... => mint%d/mint%d", len(mints)-1, len(mints)-2, len(mints)-1)
	r := router.NewChainRouter()
	pools := make([]string, 0, len(mints)-1)
	for i := 0; i+1 < len(mints); i++ {
		pool, err := o.Provisioner.CreatePool(ctx, mints[i], mints[i+1], o.Options.PoolReserve, o.Options.PoolReserve)
		if err != nil {
			return nil, pools, fmt.Errorf("pool %d (%s/%s): %w", i, mints[i], mints[i+1], err)
		}
		if err := r.AddPool(pool); err != nil {
			return nil, pools, err
		}
		pools = append(pools, pool.GetID())
	}

	chain, err := r.BuildSwapChain(ctx, o.Payer.PublicKey(), router.NewHopPlan(o.Options.SeedAmount, o.Options.HopDecay))
	if err != nil {
		return nil, pools, err
	}
	return chain, pools, nil
}

// Seed mints SeedAmount of the first mint to the payer so the chain has
// something to move.
func (o *Orchestrator) Seed(ctx context.Context, mint solana.PublicKey) error {
	log.Printf("💧 mint %d %s tokens to swap all the way to the last mint", o.Options.SeedAmount, mint)
	return o.Provisioner.MintTo(ctx, mint, o.Payer.PublicKey(), o.Options.SeedAmount)
}

// PopulateTable creates the lookup table and appends keys to it.
func (o *Orchestrator) PopulateTable(ctx context.Context, keys solana.PublicKeySlice) (solana.PublicKey, error) {
	if len(keys) == 0 {
		return solana.PublicKey{}, fmt.Errorf("no keys to store: %w", sol.ErrNoTableLookups)
	}
	log.Printf("📒 Create account lookup table and put all %d keys inside it", len(keys))
	table, err := o.Tables.CreateTable(ctx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if err := o.Tables.ExtendTable(ctx, table, keys, o.Options.ChunkSize); err != nil {
		return table, err
	}
	return table, nil
}

// Submit compiles the chain against the table, logs legacy and versioned
// sizes, and sends it.
func (o *Orchestrator) Submit(ctx context.Context, instructions []solana.Instruction, table solana.PublicKey, addresses solana.PublicKeySlice, report *Report) (solana.Signature, error) {
	blockhash, err := o.Submitter.LatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("get latest blockhash: %w", err)
	}

	legacy, err := sol.CompileLegacy(instructions, o.Payer.PublicKey(), blockhash)
	if err != nil {
		return solana.Signature{}, err
	}
	if report.LegacySize, err = sol.SignedSize(legacy, o.Payer); err != nil {
		return solana.Signature{}, err
	}

	tx, err := sol.CompileVersioned(instructions, o.Payer.PublicKey(), blockhash, table, addresses)
	if err != nil {
		return solana.Signature{}, err
	}
	if report.VersionedSize, err = sol.SignedSize(tx, o.Payer); err != nil {
		return solana.Signature{}, err
	}
	sol.LogSizes(report.LegacySize, report.VersionedSize)

	sig, err := o.Submitter.SendVersioned(ctx, tx)
	if err != nil {
		return solana.Signature{}, err
	}
	log.Printf("🚀 Multi swap txid: %s", sig)
	return sig, nil
}

// ConfirmAndReport waits for the final commitment, persists the raw
// transaction record and checks it executed one swap per pool in order.
func (o *Orchestrator) ConfirmAndReport(ctx context.Context, sig solana.Signature, mints []solana.PublicKey, pools []string, report *Report) error {
	if err := o.Submitter.WaitForSignature(ctx, sig, o.Options.FinalCommitment); err != nil {
		return err
	}

	resp, err := o.Submitter.GetTransactionRaw(ctx, sig)
	if err != nil {
		return err
	}
	if err := o.writeResponse(o.Options.OutputPath, resp); err != nil {
		return err
	}
	log.Printf("📝 transaction record written to %s", o.Options.OutputPath)

	swapPools, err := SwapInstructionPools(resp.Result, o.swapProgramID())
	if err != nil {
		return err
	}
	report.SwapPools = swapPools
	if err := checkPoolOrder(swapPools, pools); err != nil {
		return err
	}

	if report.FirstBalance, err = o.Provisioner.TokenBalance(ctx, mints[0], o.Payer.PublicKey()); err != nil {
		return err
	}
	if report.LastBalance, err = o.Provisioner.TokenBalance(ctx, mints[len(mints)-1], o.Payer.PublicKey()); err != nil {
		return err
	}
	return nil
}

func (o *Orchestrator) swapProgramID() solana.PublicKey {
	if o.Options.SwapProgramID.IsZero() {
		return defaultSwapProgramID
	}
	return o.Options.SwapProgramID
}

func checkPoolOrder(executed []solana.PublicKey, pools []string) error {
	if len(executed) != len(pools) {
		return fmt.Errorf("confirmed transaction has %d swap instructions, expected %d", len(executed), len(pools))
	}
	for i := range pools {
		if executed[i].String() != pools[i] {
			return fmt.Errorf("swap %d went through %s, expected %s", i, executed[i], pools[i])
		}
	}
	return nil
}
