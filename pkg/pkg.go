package pkg

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

type ProtocolName string

const (
	ProtocolNameSplTokenSwap ProtocolName = "spl_token_swap"
)

// Pool is the decoded on-chain state of a liquidity pool.
type Pool interface {
	ProtocolName() ProtocolName
	GetProgramID() solana.PublicKey
	GetID() string
	GetTokens() (string, string)
	Decode(data []byte) error
}

// Protocol fetches pools owned by one swap program.
type Protocol interface {
	ProtocolName() ProtocolName
	FetchPoolByID(ctx context.Context, poolID string) (Pool, error)
}
