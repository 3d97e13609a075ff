package alt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gagliardetto/solana-go"
	addresslookuptable "github.com/gagliardetto/solana-go/programs/address-lookup-table"
	"github.com/gagliardetto/solana-go/rpc"

	"altswap/pkg/sol"
)

var ErrTableNotActive = errors.New("lookup table not active")

type AccountReader interface {
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
}

// SlotSource reports the cluster's current slot.
type SlotSource interface {
	CurrentSlot(ctx context.Context) (uint64, error)
}

// RPCSlotSource polls getSlot.
type RPCSlotSource struct {
	Client     *sol.Client
	Commitment rpc.CommitmentType
}

func (s *RPCSlotSource) CurrentSlot(ctx context.Context) (uint64, error) {
	commitment := s.Commitment
	if commitment == "" {
		commitment = rpc.CommitmentProcessed
	}
	return s.Client.GetSlot(ctx, commitment)
}

// Fetch reads and decodes the lookup table at address.
func Fetch(ctx context.Context, reader AccountReader, table solana.PublicKey) (*addresslookuptable.AddressLookupTableState, error) {
	info, err := reader.GetAccountInfoWithOpts(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("get lookup table %s: %w", table, err)
	}
	if info == nil || info.Value == nil {
		return nil, fmt.Errorf("lookup table %s: %w", table, rpc.ErrNotFound)
	}
	if !info.Value.Owner.Equals(ProgramID) {
		return nil, fmt.Errorf("account %s is owned by %s, not the lookup table program", table, info.Value.Owner)
	}
	state, err := addresslookuptable.DecodeAddressLookupTableState(info.Value.Data.GetBinary())
	if err != nil {
		return nil, fmt.Errorf("decode lookup table %s: %w", table, err)
	}
	return state, nil
}

// WaitOptions bounds WaitActive.
type WaitOptions struct {
	// Expected is the number of addresses the table must hold.
	Expected     int
	Timeout      time.Duration
	PollInterval time.Duration
}

// Ready reports whether a table holding state can be used by a transaction
// landing after currentSlot. Addresses appended in a slot only resolve from
// the next slot on.
func Ready(state *addresslookuptable.AddressLookupTableState, expected int, currentSlot uint64) bool {
	return state.IsActive() &&
		len(state.Addresses) >= expected &&
		currentSlot > state.LastExtendedSlot
}

// WaitActive polls the table until it is Ready or opts.Timeout elapses, in
// which case the error wraps ErrTableNotActive.
func WaitActive(ctx context.Context, reader AccountReader, slots SlotSource, table solana.PublicKey, opts WaitOptions) (*addresslookuptable.AddressLookupTableState, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 400 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	var (
		state   *addresslookuptable.AddressLookupTableState
		slot    uint64
		lastErr error
	)
	for {
		var err error
		state, err = Fetch(ctx, reader, table)
		if err == nil {
			slot, err = slots.CurrentSlot(ctx)
		}
		if err == nil && Ready(state, opts.Expected, slot) {
			log.Printf("📒 lookup table %s active with %d addresses at slot %d", table, len(state.Addresses), slot)
			return state, nil
		}
		if err != nil {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if lastErr != nil && state == nil {
				return nil, fmt.Errorf("%s: %v: %w", table, lastErr, ErrTableNotActive)
			}
			return state, fmt.Errorf("%s not ready after %s: %w", table, opts.Timeout, ErrTableNotActive)
		case <-ticker.C:
		}
	}
}
