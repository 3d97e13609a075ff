package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gagliardetto/solana-go"

	"altswap/pkg/alt"
	"altswap/pkg/config"
	"altswap/pkg/sol"
	"altswap/pkg/subscription"
	"altswap/pkg/workflow"
)

var (
	configPath   = flag.String("config", "", "YAML config file (optional)")
	rpcEndpoints = flag.String("rpc", "", "Comma-separated Solana RPC endpoints (reads from .env if not specified)")
	wsEndpoint   = flag.String("ws", "", "Websocket endpoint for slot updates (polls the RPC when empty)")
	keypairPath  = flag.String("keypair", "", "Payer keypair file (default: ~/.config/solana/id.json)")
	outputPath   = flag.String("out", "", "Where to write the getTransaction response (default: response.json)")
	mintCount    = flag.Int("mints", 0, "Number of mints to chain (default: 26)")
	rateLimit    = flag.Int("ratelimit", 0, "RPC requests per second limit per endpoint (default: 20)")
)

func main() {
	// Load .env file
	if err := config.LoadEnv(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\nUsage:\n", err)
		flag.PrintDefaults()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

// loadConfig layers defaults, the YAML file, the environment and flags.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if *configPath != "" {
		if err := cfg.LoadFile(*configPath); err != nil {
			return nil, err
		}
	}
	if err := cfg.FromEnv(); err != nil {
		return nil, err
	}

	if *rpcEndpoints != "" {
		endpoints := strings.Split(*rpcEndpoints, ",")
		for i := range endpoints {
			endpoints[i] = strings.TrimSpace(endpoints[i])
		}
		cfg.RPCEndpoints = endpoints
	}
	if *wsEndpoint != "" {
		cfg.WSEndpoint = *wsEndpoint
	}
	if *keypairPath != "" {
		cfg.KeypairPath = *keypairPath
	}
	if *outputPath != "" {
		cfg.OutputPath = *outputPath
	}
	if *mintCount > 0 {
		cfg.MintCount = *mintCount
	}
	if *rateLimit > 0 {
		cfg.RPCRateLimit = *rateLimit
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	payer, err := sol.LoadPayer(cfg.KeypairPath, cfg.PayerPrivateKey)
	if err != nil {
		return fmt.Errorf("load payer: %w", err)
	}
	swapProgramID, err := solana.PublicKeyFromBase58(cfg.SwapProgramID)
	if err != nil {
		return fmt.Errorf("invalid swap program id: %w", err)
	}

	rpcPool, err := sol.NewRPCPool(ctx, cfg.RPCEndpoints, cfg.RPCRateLimit)
	if err != nil {
		return fmt.Errorf("failed to create RPC pool: %w", err)
	}
	defer rpcPool.Close()
	if rpcPool.Size() > 1 {
		log.Printf("Using RPC pool with %d endpoints, transactions go through %s", rpcPool.Size(), cfg.RPCEndpoints[0])
	}

	// sends and their confirmations must hit the same node
	client := rpcPool.Primary()
	client.ConfirmTimeout = cfg.ConfirmTimeout

	var slots alt.SlotSource
	if cfg.WSEndpoint != "" {
		feed, err := subscription.NewSlotFeed(ctx, cfg.WSEndpoint)
		if err != nil {
			log.Printf("Warning: slot subscription unavailable, polling %s instead: %v", client.Endpoint, err)
		} else {
			defer feed.Close()
			feed.Fallback = &alt.RPCSlotSource{Client: client}
			slots = feed
		}
	}

	log.Printf("🔑 payer %s on %s, %d mints for %d hops", payer.PublicKey(), client.Endpoint, cfg.MintCount, cfg.Hops())

	ledger := workflow.NewLedger(client, payer, swapProgramID, slots)
	orchestrator := workflow.NewOrchestrator(payer, ledger, ledger, ledger, workflow.Options{
		MintCount:         cfg.MintCount,
		Decimals:          cfg.MintDecimals,
		PoolReserve:       cfg.PoolReserve,
		SeedAmount:        cfg.SeedAmount,
		HopDecay:          cfg.HopDecay,
		ChunkSize:         cfg.LookupChunkSize,
		ActivationTimeout: cfg.ActivationTimeout,
		OutputPath:        cfg.OutputPath,
		SwapProgramID:     swapProgramID,
	})

	report, err := orchestrator.Run(ctx)
	if err != nil {
		if report != nil && !report.Table.IsZero() {
			log.Printf("lookup table %s was left on chain", report.Table)
		}
		return err
	}
	report.Print()
	return nil
}
