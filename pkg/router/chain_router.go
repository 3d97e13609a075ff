package router

import (
	"context"
	"errors"
	"fmt"
	"log"

	"cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
)

var (
	ErrBrokenChain   = errors.New("pools do not form a chain")
	ErrPlanExhausted = errors.New("hop plan runs out before the last pool")
)

// SwapPool is one hop of a chain.
type SwapPool interface {
	GetID() string
	GetTokens() (string, string)
	SwapInstruction(ctx context.Context, user, transferAuthority solana.PublicKey, aToB bool, amountIn, minimumAmountOut uint64) (solana.Instruction, error)
	Keys(ctx context.Context) (solana.PublicKeySlice, error)
}

// HopPlan assigns every hop an input of Seed - hop*Decay. The decay leaves
// room for the output shrinking on each constant-product hop.
type HopPlan struct {
	Seed  math.Int
	Decay math.Int
}

func NewHopPlan(seed, decay uint64) HopPlan {
	return HopPlan{
		Seed:  math.NewIntFromUint64(seed),
		Decay: math.NewIntFromUint64(decay),
	}
}

// AmountIn returns the input amount of hop (zero-based).
func (p HopPlan) AmountIn(hop int) (math.Int, error) {
	amount := p.Seed.Sub(p.Decay.MulRaw(int64(hop)))
	if !amount.IsPositive() {
		return math.ZeroInt(), fmt.Errorf("hop %d: %w", hop, ErrPlanExhausted)
	}
	return amount, nil
}

// Amounts returns the input amount of every hop.
func (p HopPlan) Amounts(hops int) ([]uint64, error) {
	amounts := make([]uint64, hops)
	for i := range amounts {
		amount, err := p.AmountIn(i)
		if err != nil {
			return nil, err
		}
		if !amount.IsUint64() {
			return nil, fmt.Errorf("hop %d amount %s exceeds u64", i, amount)
		}
		amounts[i] = amount.Uint64()
	}
	return amounts, nil
}

// ChainRouter routes a swap through pools in the order they were added, each
// pool's second mint being the next pool's first.
type ChainRouter struct {
	Pools []SwapPool
}

func NewChainRouter() *ChainRouter {
	return &ChainRouter{
		Pools: []SwapPool{},
	}
}

// AddPool appends pool as the next hop.
func (r *ChainRouter) AddPool(pool SwapPool) error {
	if n := len(r.Pools); n > 0 {
		_, prevOut := r.Pools[n-1].GetTokens()
		nextIn, _ := pool.GetTokens()
		if prevOut != nextIn {
			return fmt.Errorf("pool %s starts at %s but hop %d ends at %s: %w", pool.GetID(), nextIn, n-1, prevOut, ErrBrokenChain)
		}
	}
	r.Pools = append(r.Pools, pool)
	return nil
}

// SwapChain is the ordered instruction list of a multi-hop swap and the pool
// addresses it references.
type SwapChain struct {
	Instructions []solana.Instruction
	Keys         solana.PublicKeySlice
	Amounts      []uint64
}

// BuildSwapChain builds one A to B swap per pool, in pool order, with no
// minimum output, and collects the union of pool keys.
func (r *ChainRouter) BuildSwapChain(ctx context.Context, user solana.PublicKey, plan HopPlan) (*SwapChain, error) {
	if len(r.Pools) == 0 {
		return nil, fmt.Errorf("no pools to route through")
	}
	amounts, err := plan.Amounts(len(r.Pools))
	if err != nil {
		return nil, err
	}

	chain := &SwapChain{
		Instructions: make([]solana.Instruction, 0, len(r.Pools)),
		Amounts:      amounts,
	}
	keySets := make([]solana.PublicKeySlice, 0, len(r.Pools))
	for i, pool := range r.Pools {
		ix, err := pool.SwapInstruction(ctx, user, user, true, amounts[i], 0)
		if err != nil {
			return nil, fmt.Errorf("build swap for pool %s: %w", pool.GetID(), err)
		}
		keys, err := pool.Keys(ctx)
		if err != nil {
			return nil, fmt.Errorf("collect keys of pool %s: %w", pool.GetID(), err)
		}
		chain.Instructions = append(chain.Instructions, ix)
		keySets = append(keySets, keys)
	}
	chain.Keys = CollectKeys(keySets...)

	log.Printf("😈 built %d hop swap chain referencing %d keys", len(chain.Instructions), len(chain.Keys))
	return chain, nil
}

// CollectKeys returns the union of sets in first-seen order.
func CollectKeys(sets ...solana.PublicKeySlice) solana.PublicKeySlice {
	seen := make(map[solana.PublicKey]struct{})
	var keys solana.PublicKeySlice
	for _, set := range sets {
		for _, key := range set {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	return keys
}
