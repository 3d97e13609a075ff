package alt

import (
	"context"
	"fmt"
	"log"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"altswap/pkg/sol"
)

// Create creates a lookup table with payer as authority, deriving its address
// from the latest finalized slot.
func Create(ctx context.Context, client *sol.Client, payer solana.PrivateKey) (solana.PublicKey, error) {
	recentSlot, err := client.GetSlot(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("get recent slot: %w", err)
	}

	ix, table, err := CreateLookupTableInstruction(payer.PublicKey(), payer.PublicKey(), recentSlot)
	if err != nil {
		return solana.PublicKey{}, err
	}
	log.Printf("📒 address lookup table pk: %s", table)

	if _, err := client.SendAndConfirm(ctx, []solana.Instruction{ix}, payer); err != nil {
		return solana.PublicKey{}, fmt.Errorf("create lookup table %s: %w", table, err)
	}
	return table, nil
}

// Extend appends keys to table in chunks of chunkSize, one confirmed
// transaction per chunk, preserving order.
func Extend(ctx context.Context, client *sol.Client, payer solana.PrivateKey, table solana.PublicKey, keys solana.PublicKeySlice, chunkSize int) (solana.Signature, error) {
	if len(keys) > MaxAddresses {
		return solana.Signature{}, fmt.Errorf("%d keys exceed the lookup table limit of %d", len(keys), MaxAddresses)
	}
	chunks, err := Chunk(keys, chunkSize)
	if err != nil {
		return solana.Signature{}, err
	}

	var last solana.Signature
	for i, chunk := range chunks {
		ix, err := ExtendLookupTableInstruction(table, payer.PublicKey(), payer.PublicKey(), chunk)
		if err != nil {
			return last, err
		}
		last, err = client.SendAndConfirm(ctx, []solana.Instruction{ix}, payer)
		if err != nil {
			return last, fmt.Errorf("extend lookup table %s chunk %d/%d: %w", table, i+1, len(chunks), err)
		}
		log.Printf("📒 extended %s with %d keys (%s)", table, len(chunk), sol.ShortSig(last))
	}
	return last, nil
}
