package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"

	"altswap/pkg"
	"altswap/pkg/config"
	"altswap/pkg/pool/splswap"
	"altswap/pkg/protocol"
	"altswap/pkg/sol"
)

type QuoteResponse struct {
	InputMint            string      `json:"inputMint"`
	OutputMint           string      `json:"outputMint"`
	InAmount             string      `json:"inAmount"`
	OutAmount            string      `json:"outAmount"`
	RoutePlan            []RoutePlan `json:"routePlan"`
	SlippageBps          int         `json:"slippageBps"`
	OtherAmountThreshold string      `json:"otherAmountThreshold"`
}

type RoutePlan struct {
	Protocol   string `json:"protocol"`
	PoolID     string `json:"poolId"`
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
}

type QuoteError struct {
	Error string `json:"error"`
}

var (
	rpcEndpoint = flag.String("rpc", "", "Solana RPC endpoint (reads RPC_ENDPOINTS from .env if not specified)")
	path        = flag.String("path", "", "Comma-separated mint path, e.g. mint0,mint1,mint2 (required)")
	amount      = flag.String("amount", "", "Input amount in smallest units (required)")
	program     = flag.String("program", config.DefaultSwapProgramID, "Token swap program id")
	slippageBps = flag.Int("slippage", 50, "Slippage tolerance in basis points (default: 50 = 0.5%)")
	rateLimit   = flag.Int("ratelimit", config.DefaultRPCRateLimit, "RPC requests per second limit (default: 20)")
	jsonOutput  = flag.Bool("json", true, "Output as JSON (default: true)")
)

func main() {
	// Load .env file
	if err := config.LoadEnv(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	flag.Parse()

	mints := strings.Split(*path, ",")
	if *path == "" || len(mints) < 2 || *amount == "" {
		fmt.Fprintln(os.Stderr, "Error: Missing required arguments")
		fmt.Fprintln(os.Stderr, "\nUsage:")
		flag.PrintDefaults()
		fmt.Fprintln(os.Stderr, "\nExample:")
		fmt.Fprintln(os.Stderr, "  quote -path <mint0>,<mint1>,<mint2> -amount 1000")
		os.Exit(1)
	}
	for i := range mints {
		mints[i] = strings.TrimSpace(mints[i])
		if _, err := solana.PublicKeyFromBase58(mints[i]); err != nil {
			outputError(fmt.Sprintf("Invalid mint address %q: %v", mints[i], err))
			os.Exit(1)
		}
	}

	if *slippageBps < 0 || *slippageBps > maxSlippageBps {
		outputError(fmt.Sprintf("Invalid slippage: %d bps, must be between 0 and %d", *slippageBps, maxSlippageBps))
		os.Exit(1)
	}

	programID, err := solana.PublicKeyFromBase58(*program)
	if err != nil {
		outputError(fmt.Sprintf("Invalid program id: %v", err))
		os.Exit(1)
	}

	amountIn, ok := math.NewIntFromString(*amount)
	if !ok || amountIn.LTE(math.ZeroInt()) {
		outputError("Invalid amount: must be a positive integer")
		os.Exit(1)
	}

	endpoint := *rpcEndpoint
	if endpoint == "" {
		endpoints := config.GetRPCEndpoints()
		if len(endpoints) == 0 {
			endpoint = config.DefaultRPCEndpoint
		} else {
			endpoint = endpoints[0]
		}
	}

	ctx := context.Background()
	solClient, err := sol.NewClient(ctx, endpoint, *rateLimit)
	if err != nil {
		outputError(fmt.Sprintf("Failed to create Solana client: %v", err))
		os.Exit(1)
	}
	defer solClient.Close()

	swapProtocol := protocol.NewSplTokenSwap(solClient, programID)

	// Quote every hop through its best pool, feeding each output forward
	hopIn := amountIn
	plan := make([]RoutePlan, 0, len(mints)-1)
	for i := 0; i+1 < len(mints); i++ {
		pool, out, err := bestPool(ctx, solClient, swapProtocol, mints[i], mints[i+1], hopIn)
		if err != nil {
			outputError(fmt.Sprintf("Hop %d %s -> %s: %v", i, mints[i], mints[i+1], err))
			os.Exit(1)
		}
		if !*jsonOutput {
			log.Printf("hop %d via %s: %s -> %s", i, pool.GetID(), hopIn, out)
		}
		plan = append(plan, RoutePlan{
			Protocol:   string(swapProtocol.ProtocolName()),
			PoolID:     pool.GetID(),
			InputMint:  mints[i],
			OutputMint: mints[i+1],
			InAmount:   hopIn.String(),
			OutAmount:  out.String(),
		})
		hopIn = out
	}
	amountOut := hopIn

	minAmountOut, err := applySlippage(amountOut, *slippageBps)
	if err != nil {
		outputError(err.Error())
		os.Exit(1)
	}

	response := QuoteResponse{
		InputMint:            mints[0],
		OutputMint:           mints[len(mints)-1],
		InAmount:             amountIn.String(),
		OutAmount:            amountOut.String(),
		SlippageBps:          *slippageBps,
		OtherAmountThreshold: minAmountOut.String(),
		RoutePlan:            plan,
	}

	// Output result
	if *jsonOutput {
		jsonData, err := json.MarshalIndent(response, "", "  ")
		if err != nil {
			outputError(fmt.Sprintf("Failed to marshal JSON: %v", err))
			os.Exit(1)
		}
		fmt.Println(string(jsonData))
	} else {
		fmt.Printf("\n=== Quote Results ===\n")
		fmt.Printf("Hops: %d\n", len(plan))
		fmt.Printf("Input: %s %s\n", amountIn.String(), response.InputMint)
		fmt.Printf("Output: %s %s\n", amountOut.String(), response.OutputMint)
		fmt.Printf("Minimum Output (with %d bps slippage): %s\n", *slippageBps, minAmountOut.String())
	}
}

const maxSlippageBps = 10000

// applySlippage returns the minimum output accepted at slippageBps.
func applySlippage(amountOut math.Int, slippageBps int) (math.Int, error) {
	if slippageBps < 0 || slippageBps > maxSlippageBps {
		return math.Int{}, fmt.Errorf("invalid slippage: %d bps, must be between 0 and %d", slippageBps, maxSlippageBps)
	}
	return amountOut.Mul(math.NewInt(int64(maxSlippageBps - slippageBps))).Quo(math.NewInt(maxSlippageBps)), nil
}

// bestPool quotes amount on every pool of the pair and returns the one with
// the largest output.
func bestPool(ctx context.Context, solClient *sol.Client, swapProtocol *protocol.SplTokenSwapProtocol, inputMint, outputMint string, amount math.Int) (pkg.Pool, math.Int, error) {
	pools, err := swapProtocol.FetchPoolsByPair(ctx, inputMint, outputMint)
	if err != nil {
		return nil, math.Int{}, err
	}
	if len(pools) == 0 {
		return nil, math.Int{}, fmt.Errorf("no pools found for this token pair")
	}

	var best pkg.Pool
	bestOut := math.ZeroInt()
	for _, p := range pools {
		pool, ok := p.(*splswap.SplSwapPool)
		if !ok {
			continue
		}
		out, err := pool.Quote(ctx, solClient, inputMint, amount)
		if err != nil {
			if !*jsonOutput {
				log.Printf("Pool %s: quote failed: %v", pool.GetID(), err)
			}
			continue
		}
		if best == nil || out.GT(bestOut) {
			best, bestOut = pool, out
		}
	}
	if best == nil {
		return nil, math.Int{}, fmt.Errorf("no pool could quote %s", amount)
	}
	return best, bestOut, nil
}

func outputError(msg string) {
	if *jsonOutput {
		errResp := QuoteError{Error: msg}
		jsonData, _ := json.MarshalIndent(errResp, "", "  ")
		fmt.Fprintln(os.Stderr, string(jsonData))
	} else {
		log.Println("Error:", msg)
	}
}
