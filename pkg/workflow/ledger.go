package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"altswap/pkg/alt"
	"altswap/pkg/pool/splswap"
	"altswap/pkg/protocol"
	"altswap/pkg/router"
	"altswap/pkg/sol"
	"altswap/pkg/token"
)

var (
	_ Provisioner     = (*Ledger)(nil)
	_ Tables          = (*Ledger)(nil)
	_ Submitter       = (*Ledger)(nil)
	_ router.SwapPool = (*splswap.Harness)(nil)
)

// Ledger performs the workflow's on-chain operations through one RPC client,
// signing with Payer. It implements Provisioner, Tables and Submitter.
type Ledger struct {
	Client   *sol.Client
	Payer    solana.PrivateKey
	Protocol *protocol.SplTokenSwapProtocol
	// Slots drives lookup-table activation; RPC polling when nil.
	Slots alt.SlotSource
	// PreflightCommitment is used when sending the versioned transaction.
	PreflightCommitment rpc.CommitmentType
}

func NewLedger(client *sol.Client, payer solana.PrivateKey, swapProgramID solana.PublicKey, slots alt.SlotSource) *Ledger {
	if slots == nil {
		slots = &alt.RPCSlotSource{Client: client}
	}
	return &Ledger{
		Client:              client,
		Payer:               payer,
		Protocol:            protocol.NewSplTokenSwap(client, swapProgramID),
		Slots:               slots,
		PreflightCommitment: rpc.CommitmentProcessed,
	}
}

func (l *Ledger) CreateMint(ctx context.Context, decimals uint8) (solana.PublicKey, error) {
	return token.CreateMint(ctx, l.Client, l.Payer, decimals)
}

func (l *Ledger) CreatePool(ctx context.Context, mintA, mintB solana.PublicKey, reserveA, reserveB uint64) (router.SwapPool, error) {
	harness, err := splswap.InitializePool(ctx, l.Client, l.Protocol, l.Payer, splswap.InitializeParams{
		ProgramID: l.Protocol.ProgramID,
		MintA:     mintA,
		MintB:     mintB,
		ReserveA:  reserveA,
		ReserveB:  reserveB,
	})
	if err != nil {
		return nil, err
	}
	return harness, nil
}

func (l *Ledger) MintTo(ctx context.Context, mint, owner solana.PublicKey, amount uint64) error {
	ata, err := token.AssociatedAddress(owner, mint)
	if err != nil {
		return err
	}
	_, err = token.MintTo(ctx, l.Client, l.Payer, mint, ata, amount)
	return err
}

func (l *Ledger) TokenBalance(ctx context.Context, mint, owner solana.PublicKey) (uint64, error) {
	ata, err := token.AssociatedAddress(owner, mint)
	if err != nil {
		return 0, err
	}
	account, err := token.GetTokenAccount(ctx, l.Client, ata)
	if err != nil {
		return 0, err
	}
	return account.Amount, nil
}

func (l *Ledger) CreateTable(ctx context.Context) (solana.PublicKey, error) {
	return alt.Create(ctx, l.Client, l.Payer)
}

func (l *Ledger) ExtendTable(ctx context.Context, table solana.PublicKey, keys solana.PublicKeySlice, chunkSize int) error {
	_, err := alt.Extend(ctx, l.Client, l.Payer, table, keys, chunkSize)
	return err
}

func (l *Ledger) WaitActive(ctx context.Context, table solana.PublicKey, expected int, timeout time.Duration) (solana.PublicKeySlice, error) {
	state, err := alt.WaitActive(ctx, l.Client, l.Slots, table, alt.WaitOptions{
		Expected:     expected,
		Timeout:      timeout,
		PollInterval: l.Client.PollInterval,
	})
	if err != nil {
		return nil, err
	}
	return state.Addresses, nil
}

func (l *Ledger) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	return l.Client.GetLatestBlockhash(ctx)
}

// SendVersioned signs tx with the payer and submits it with preflight checks.
func (l *Ledger) SendVersioned(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if len(tx.Signatures) == 0 {
		if _, err := tx.Sign(sol.Signers(l.Payer)); err != nil {
			return solana.Signature{}, fmt.Errorf("sign: %w", err)
		}
	}
	return l.Client.SendSigned(ctx, tx, false, l.PreflightCommitment)
}

func (l *Ledger) WaitForSignature(ctx context.Context, sig solana.Signature, commitment rpc.ConfirmationStatusType) error {
	return l.Client.WaitForSignature(ctx, sig, commitment)
}

func (l *Ledger) GetTransactionRaw(ctx context.Context, sig solana.Signature) (*sol.RawResponse, error) {
	return l.Client.GetTransactionRaw(ctx, sig)
}
