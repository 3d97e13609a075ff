package workflow

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"

	"altswap/pkg/pool/splswap"
	"altswap/pkg/sol"
)

var defaultSwapProgramID = splswap.SplTokenSwapProgramID

// WriteResponse pretty-prints the JSON-RPC envelope to path.
func WriteResponse(path string, resp *sol.RawResponse) error {
	data, err := resp.MarshalIndent()
	if err != nil {
		return fmt.Errorf("encode transaction record: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// transactionRecord is the part of a json-encoded getTransaction result needed
// to resolve instruction accounts.
type transactionRecord struct {
	Meta *struct {
		LoadedAddresses struct {
			Writable []string `json:"writable"`
			Readonly []string `json:"readonly"`
		} `json:"loadedAddresses"`
	} `json:"meta"`
	Transaction struct {
		Message struct {
			AccountKeys  []string `json:"accountKeys"`
			Instructions []struct {
				ProgramIDIndex int   `json:"programIdIndex"`
				Accounts       []int `json:"accounts"`
			} `json:"instructions"`
		} `json:"message"`
	} `json:"transaction"`
}

// SwapInstructionPools returns, for every top-level instruction invoking
// programID, the pool account it swaps through, in instruction order.
// Account indexes resolve against the static keys followed by the writable
// and readonly addresses loaded from lookup tables.
func SwapInstructionPools(result json.RawMessage, programID solana.PublicKey) ([]solana.PublicKey, error) {
	var record transactionRecord
	if err := json.Unmarshal(result, &record); err != nil {
		return nil, fmt.Errorf("decode transaction record: %w", err)
	}

	keys := append([]string{}, record.Transaction.Message.AccountKeys...)
	if record.Meta != nil {
		keys = append(keys, record.Meta.LoadedAddresses.Writable...)
		keys = append(keys, record.Meta.LoadedAddresses.Readonly...)
	}
	resolve := func(index int) (solana.PublicKey, error) {
		if index < 0 || index >= len(keys) {
			return solana.PublicKey{}, fmt.Errorf("account index %d out of range (%d keys)", index, len(keys))
		}
		return solana.PublicKeyFromBase58(keys[index])
	}

	var pools []solana.PublicKey
	for i, ix := range record.Transaction.Message.Instructions {
		program, err := resolve(ix.ProgramIDIndex)
		if err != nil {
			return nil, fmt.Errorf("instruction %d program: %w", i, err)
		}
		if !program.Equals(programID) {
			continue
		}
		if len(ix.Accounts) == 0 {
			return nil, fmt.Errorf("instruction %d has no accounts", i)
		}
		pool, err := resolve(ix.Accounts[0])
		if err != nil {
			return nil, fmt.Errorf("instruction %d pool: %w", i, err)
		}
		pools = append(pools, pool)
	}
	return pools, nil
}

// CountProgramInstructions counts top-level instructions invoking programID.
func CountProgramInstructions(result json.RawMessage, programID solana.PublicKey) (int, error) {
	pools, err := SwapInstructionPools(result, programID)
	if err != nil {
		return 0, err
	}
	return len(pools), nil
}

// Print writes the run summary.
func (r *Report) Print() {
	fmt.Println("\n================ altswap report ================")
	fmt.Printf("Mints:              %d\n", len(r.Mints))
	fmt.Printf("Pools:              %d\n", len(r.Pools))
	fmt.Printf("Lookup table:       %s (%d keys)\n", r.Table, r.Keys)
	fmt.Printf("Legacy size:        %d bytes\n", r.LegacySize)
	fmt.Printf("Versioned size:     %d bytes\n", r.VersionedSize)
	fmt.Printf("Signature:          %s\n", r.Signature)
	fmt.Printf("Swaps executed:     %d\n", len(r.SwapPools))
	fmt.Printf("First mint balance: %d -> %d\n", r.SeedBalance, r.FirstBalance)
	fmt.Printf("Last mint balance:  %d\n", r.LastBalance)
	fmt.Printf("Response written:   %s\n", r.OutputPath)
}
