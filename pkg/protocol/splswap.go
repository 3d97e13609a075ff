package protocol

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"altswap/pkg"
	"altswap/pkg/pool/splswap"
	"altswap/pkg/sol"
)

// Byte offsets of the mints inside the swap state.
const (
	mintAOffset = 3 + 32*4
	mintBOffset = mintAOffset + 32
)

type SplTokenSwapProtocol struct {
	SolClient *sol.Client
	ProgramID solana.PublicKey
}

// NewSplTokenSwap targets the swap program at programID, or the canonical
// deployment when programID is zero.
func NewSplTokenSwap(solClient *sol.Client, programID solana.PublicKey) *SplTokenSwapProtocol {
	if programID.IsZero() {
		programID = splswap.SplTokenSwapProgramID
	}
	return &SplTokenSwapProtocol{
		SolClient: solClient,
		ProgramID: programID,
	}
}

func (p *SplTokenSwapProtocol) ProtocolName() pkg.ProtocolName {
	return pkg.ProtocolNameSplTokenSwap
}

// FetchPoolsByPair finds pools trading baseMint/quoteMint in either order.
func (p *SplTokenSwapProtocol) FetchPoolsByPair(ctx context.Context, baseMint string, quoteMint string) ([]pkg.Pool, error) {
	baseMintPubkey, err := solana.PublicKeyFromBase58(baseMint)
	if err != nil {
		return nil, fmt.Errorf("invalid base mint address: %w", err)
	}
	quoteMintPubkey, err := solana.PublicKeyFromBase58(quoteMint)
	if err != nil {
		return nil, fmt.Errorf("invalid quote mint address: %w", err)
	}

	programAccounts, err := p.SolClient.GetProgramAccountsWithOpts(ctx, p.ProgramID, pairFilters(baseMintPubkey, quoteMintPubkey))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch spl token swap pools: %w", err)
	}

	// Also try reverse pair
	reverseAccounts, err := p.SolClient.GetProgramAccountsWithOpts(ctx, p.ProgramID, pairFilters(quoteMintPubkey, baseMintPubkey))
	if err == nil {
		programAccounts = append(programAccounts, reverseAccounts...)
	}

	res := make([]pkg.Pool, 0, len(programAccounts))
	for _, v := range programAccounts {
		pool := &splswap.SplSwapPool{}
		if err := pool.Decode(v.Account.Data.GetBinary()); err != nil {
			continue
		}
		pool.PoolId = v.Pubkey
		pool.ProgramID = p.ProgramID
		res = append(res, pool)
	}
	return res, nil
}

func pairFilters(mintA, mintB solana.PublicKey) []rpc.RPCFilter {
	return []rpc.RPCFilter{
		{DataSize: splswap.PoolStateSize},
		{
			Memcmp: &rpc.RPCFilterMemcmp{
				Offset: mintAOffset,
				Bytes:  mintA.Bytes(),
			},
		},
		{
			Memcmp: &rpc.RPCFilterMemcmp{
				Offset: mintBOffset,
				Bytes:  mintB.Bytes(),
			},
		},
	}
}

func (p *SplTokenSwapProtocol) FetchPoolByID(ctx context.Context, poolId string) (pkg.Pool, error) {
	poolPubkey, err := solana.PublicKeyFromBase58(poolId)
	if err != nil {
		return nil, fmt.Errorf("invalid pool ID: %w", err)
	}

	account, err := p.SolClient.GetAccountInfoWithOpts(ctx, poolPubkey)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool account %s: %w", poolId, err)
	}
	if !account.Value.Owner.Equals(p.ProgramID) {
		return nil, fmt.Errorf("pool account %s is owned by %s, not %s", poolId, account.Value.Owner, p.ProgramID)
	}

	pool := &splswap.SplSwapPool{}
	if err := pool.Decode(account.Value.Data.GetBinary()); err != nil {
		return nil, fmt.Errorf("failed to parse pool data for pool %s: %w", poolId, err)
	}
	pool.PoolId = poolPubkey
	pool.ProgramID = p.ProgramID
	return pool, nil
}
