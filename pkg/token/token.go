package token

import (
	"context"
	"fmt"
	"log"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	splToken "github.com/gagliardetto/solana-go/programs/token"

	"altswap/pkg/sol"
)

const (
	MintSize    = splToken.MINT_SIZE
	AccountSize = 165
)

// InitializeMintInstructions allocates mint as a rent-exempt token mint owned
// by the token program and initializes it without a freeze authority.
func InitializeMintInstructions(payer, mint, authority solana.PublicKey, decimals uint8, rentLamports uint64) []solana.Instruction {
	return []solana.Instruction{
		system.NewCreateAccountInstruction(
			rentLamports,
			MintSize,
			solana.TokenProgramID,
			payer,
			mint,
		).Build(),
		splToken.NewInitializeMintInstructionBuilder().
			SetDecimals(decimals).
			SetMintAuthority(authority).
			SetMintAccount(mint).
			SetSysVarRentPubkeyAccount(solana.SysVarRentPubkey).
			Build(),
	}
}

// CreateATAInstruction returns the associated token account of owner for mint
// and the instruction creating it, paid by payer.
func CreateATAInstruction(payer, mint, owner solana.PublicKey) (solana.PublicKey, solana.Instruction, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, nil, fmt.Errorf("derive ata for %s/%s: %w", owner, mint, err)
	}
	return ata, associatedtokenaccount.NewCreateInstruction(payer, owner, mint).Build(), nil
}

// MintToInstruction mints amount base units of mint into destination.
func MintToInstruction(mint, destination, authority solana.PublicKey, amount uint64) solana.Instruction {
	return splToken.NewMintToInstruction(amount, mint, destination, authority, nil).Build()
}

// CreateMint creates a fresh mint with payer as mint authority together with
// the payer's associated token account, in one confirmed transaction.
func CreateMint(ctx context.Context, client *sol.Client, payer solana.PrivateKey, decimals uint8) (solana.PublicKey, error) {
	mint, err := sol.NewKeypair()
	if err != nil {
		return solana.PublicKey{}, err
	}

	rent, err := client.GetMinimumBalanceForRentExemption(ctx, MintSize)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("get mint rent: %w", err)
	}

	instructions := InitializeMintInstructions(payer.PublicKey(), mint.PublicKey(), payer.PublicKey(), decimals, rent)
	_, ataIx, err := CreateATAInstruction(payer.PublicKey(), mint.PublicKey(), payer.PublicKey())
	if err != nil {
		return solana.PublicKey{}, err
	}
	instructions = append(instructions, ataIx)

	sig, err := client.SendAndConfirm(ctx, instructions, payer, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("create mint %s: %w", mint.PublicKey(), err)
	}
	log.Printf("🪙 mint %s created (%s)", mint.PublicKey(), sol.ShortSig(sig))
	return mint.PublicKey(), nil
}

// MintTo mints amount of mint into destination with payer as mint authority.
func MintTo(ctx context.Context, client *sol.Client, payer solana.PrivateKey, mint, destination solana.PublicKey, amount uint64) (solana.Signature, error) {
	sig, err := client.SendAndConfirm(ctx, []solana.Instruction{
		MintToInstruction(mint, destination, payer.PublicKey(), amount),
	}, payer)
	if err != nil {
		return sig, fmt.Errorf("mint %d of %s to %s: %w", amount, mint, destination, err)
	}
	return sig, nil
}

// DecodeTokenAccount unpacks raw token account data.
func DecodeTokenAccount(data []byte) (*splToken.Account, error) {
	if len(data) < AccountSize {
		return nil, fmt.Errorf("token account data too short: got %d bytes", len(data))
	}
	var account splToken.Account
	if err := bin.NewBinDecoder(data).Decode(&account); err != nil {
		return nil, fmt.Errorf("decode token account: %w", err)
	}
	return &account, nil
}

// GetTokenAccount fetches and decodes a token account.
func GetTokenAccount(ctx context.Context, client *sol.Client, address solana.PublicKey) (*splToken.Account, error) {
	info, err := client.GetAccountInfoWithOpts(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("get token account %s: %w", address, err)
	}
	if info == nil || info.Value == nil {
		return nil, fmt.Errorf("token account %s not found", address)
	}
	return DecodeTokenAccount(info.Value.Data.GetBinary())
}

// AssociatedAddress returns the associated token account of owner for mint.
func AssociatedAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive ata for %s/%s: %w", owner, mint, err)
	}
	return ata, nil
}
