package sol

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// PacketDataSize is the largest serialized transaction a validator accepts.
const PacketDataSize = 1232

var (
	ErrNoTableLookups    = errors.New("compiled transaction does not reference the lookup table")
	ErrTransactionFailed = errors.New("transaction failed")
	ErrConfirmTimeout    = errors.New("timed out waiting for confirmation")
)

// Signers resolves signing keys by public key for Transaction.Sign.
func Signers(keys ...solana.PrivateKey) func(solana.PublicKey) *solana.PrivateKey {
	return func(pub solana.PublicKey) *solana.PrivateKey {
		for i := range keys {
			if keys[i].PublicKey().Equals(pub) {
				return &keys[i]
			}
		}
		return nil
	}
}

// CompileVersioned builds an unsigned v0 transaction whose non-signer accounts
// are resolved against one lookup table.
func CompileVersioned(
	instructions []solana.Instruction,
	payer solana.PublicKey,
	blockhash solana.Hash,
	table solana.PublicKey,
	addresses solana.PublicKeySlice,
) (*solana.Transaction, error) {
	if len(addresses) == 0 {
		return nil, fmt.Errorf("lookup table %s is empty: %w", table, ErrNoTableLookups)
	}

	tx, err := solana.NewTransaction(
		instructions,
		blockhash,
		solana.TransactionPayer(payer),
		solana.TransactionAddressTables(map[solana.PublicKey]solana.PublicKeySlice{
			table: addresses,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("compile v0 message: %w", err)
	}
	// NumLookups counts accounts resolved through tables, not tables
	if !tx.Message.IsVersioned() || tx.Message.NumLookups() == 0 {
		return nil, ErrNoTableLookups
	}
	return tx, nil
}

// CompileLegacy builds an unsigned legacy transaction listing every account inline.
func CompileLegacy(instructions []solana.Instruction, payer solana.PublicKey, blockhash solana.Hash) (*solana.Transaction, error) {
	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("compile legacy message: %w", err)
	}
	return tx, nil
}

// SignedSize signs tx and returns its wire size.
func SignedSize(tx *solana.Transaction, signers ...solana.PrivateKey) (int, error) {
	if _, err := tx.Sign(Signers(signers...)); err != nil {
		return 0, fmt.Errorf("sign: %w", err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return 0, fmt.Errorf("serialize: %w", err)
	}
	return len(raw), nil
}

// SendAndConfirm signs instructions with payer plus extra signers, submits them
// as a legacy transaction and waits for confirmed commitment.
func (c *Client) SendAndConfirm(ctx context.Context, instructions []solana.Instruction, payer solana.PrivateKey, signers ...solana.PrivateKey) (solana.Signature, error) {
	blockhash, err := c.GetLatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("get latest blockhash: %w", err)
	}

	tx, err := CompileLegacy(instructions, payer.PublicKey(), blockhash)
	if err != nil {
		return solana.Signature{}, err
	}
	if _, err := tx.Sign(Signers(append([]solana.PrivateKey{payer}, signers...)...)); err != nil {
		return solana.Signature{}, fmt.Errorf("sign: %w", err)
	}

	sig, err := c.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	if err := c.WaitForSignature(ctx, sig, rpc.ConfirmationStatusConfirmed); err != nil {
		return sig, err
	}
	return sig, nil
}

// SendSigned submits an already signed transaction with the given preflight policy.
func (c *Client) SendSigned(ctx context.Context, tx *solana.Transaction, skipPreflight bool, preflight rpc.CommitmentType) (solana.Signature, error) {
	sig, err := c.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		Encoding:            solana.EncodingBase64,
		SkipPreflight:       skipPreflight,
		PreflightCommitment: preflight,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	return sig, nil
}

// WaitForSignature polls the signature status until it reaches commitment,
// fails on chain, or ConfirmTimeout elapses.
func (c *Client) WaitForSignature(ctx context.Context, sig solana.Signature, commitment rpc.ConfirmationStatusType) error {
	ctx, cancel := context.WithTimeout(ctx, c.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()

	for {
		out, err := c.GetSignatureStatuses(ctx, sig)
		if err != nil && !errors.Is(err, rpc.ErrNotFound) {
			if ctx.Err() != nil {
				return fmt.Errorf("%s: %w", sig, ErrConfirmTimeout)
			}
			return fmt.Errorf("get signature status %s: %w", sig, err)
		}
		if out != nil && len(out.Value) > 0 && out.Value[0] != nil {
			status := out.Value[0]
			if status.Err != nil {
				return fmt.Errorf("%s: %v: %w", sig, status.Err, ErrTransactionFailed)
			}
			if Reached(status.ConfirmationStatus, commitment) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s not %s: %w", sig, commitment, ErrConfirmTimeout)
		case <-ticker.C:
		}
	}
}

var commitmentRank = map[rpc.ConfirmationStatusType]int{
	rpc.ConfirmationStatusProcessed: 1,
	rpc.ConfirmationStatusConfirmed: 2,
	rpc.ConfirmationStatusFinalized: 3,
}

// Reached reports whether status is at least as final as want.
func Reached(status, want rpc.ConfirmationStatusType) bool {
	got, ok := commitmentRank[status]
	if !ok {
		return false
	}
	return got >= commitmentRank[want]
}

// LogSizes prints the legacy and versioned sizes of the same instruction list.
func LogSizes(legacy, versioned int) {
	if legacy > PacketDataSize {
		log.Printf("legacy transaction would be %d bytes, over the %d byte packet limit", legacy, PacketDataSize)
	} else {
		log.Printf("legacy serialized tx is %d bytes", legacy)
	}
	log.Printf("versioned serialized tx is %d bytes", versioned)
}
