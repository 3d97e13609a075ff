package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"altswap/pkg/router"
)

const (
	DefaultRPCEndpoint       = "http://localhost:8899"
	DefaultKeypairPath       = "~/.config/solana/id.json"
	DefaultOutputPath        = "response.json"
	DefaultSwapProgramID     = "SwaPpA9LAaLfeLi3a68M4DjnLqgtticKg6CnyNwgAC8"
	DefaultMintCount         = 26
	DefaultMintDecimals      = 6
	DefaultPoolReserve       = 1_000_000
	DefaultSeedAmount        = 1000
	DefaultHopDecay          = 10
	DefaultLookupChunkSize   = 20
	DefaultActivationTimeout = 30 * time.Second
	DefaultConfirmTimeout    = 60 * time.Second
	DefaultRPCRateLimit      = 20
)

// Config holds everything the altswap run needs. Values come from defaults,
// then an optional YAML file, then the environment, then command-line flags.
type Config struct {
	RPCEndpoints    []string `yaml:"rpc_endpoints"`
	WSEndpoint      string   `yaml:"ws_endpoint"`
	KeypairPath     string   `yaml:"keypair_path"`
	PayerPrivateKey string   `yaml:"payer_private_key"`
	SwapProgramID   string   `yaml:"swap_program_id"`
	OutputPath      string   `yaml:"output_path"`

	MintCount       int    `yaml:"mint_count"`
	MintDecimals    uint8  `yaml:"mint_decimals"`
	PoolReserve     uint64 `yaml:"pool_reserve"`
	SeedAmount      uint64 `yaml:"seed_amount"`
	HopDecay        uint64 `yaml:"hop_decay"`
	LookupChunkSize int    `yaml:"lookup_chunk_size"`
	RPCRateLimit    int    `yaml:"rpc_rate_limit"`

	ActivationTimeout time.Duration `yaml:"activation_timeout"`
	ConfirmTimeout    time.Duration `yaml:"confirm_timeout"`
}

func DefaultConfig() *Config {
	return &Config{
		RPCEndpoints:      []string{DefaultRPCEndpoint},
		KeypairPath:       DefaultKeypairPath,
		SwapProgramID:     DefaultSwapProgramID,
		OutputPath:        DefaultOutputPath,
		MintCount:         DefaultMintCount,
		MintDecimals:      DefaultMintDecimals,
		PoolReserve:       DefaultPoolReserve,
		SeedAmount:        DefaultSeedAmount,
		HopDecay:          DefaultHopDecay,
		LookupChunkSize:   DefaultLookupChunkSize,
		RPCRateLimit:      DefaultRPCRateLimit,
		ActivationTimeout: DefaultActivationTimeout,
		ConfirmTimeout:    DefaultConfirmTimeout,
	}
}

// LoadFile overlays the YAML file at path onto cfg. Keys missing from the
// file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// FromEnv overlays environment variables onto cfg.
func (c *Config) FromEnv() error {
	if endpoints := GetRPCEndpoints(); len(endpoints) > 0 {
		c.RPCEndpoints = endpoints
	}
	setString(&c.WSEndpoint, "WS_ENDPOINT")
	setString(&c.KeypairPath, "KEYPAIR_PATH")
	setString(&c.PayerPrivateKey, "PAYER_PRIVATE_KEY")
	setString(&c.SwapProgramID, "SWAP_PROGRAM_ID")
	setString(&c.OutputPath, "OUTPUT_PATH")

	if err := setInt(&c.MintCount, "MINT_COUNT"); err != nil {
		return err
	}
	if v := os.Getenv("MINT_DECIMALS"); v != "" {
		d, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return fmt.Errorf("invalid MINT_DECIMALS %q: %w", v, err)
		}
		c.MintDecimals = uint8(d)
	}
	if err := setUint64(&c.PoolReserve, "POOL_RESERVE"); err != nil {
		return err
	}
	if err := setUint64(&c.SeedAmount, "SEED_AMOUNT"); err != nil {
		return err
	}
	if err := setUint64(&c.HopDecay, "HOP_DECAY"); err != nil {
		return err
	}
	if err := setInt(&c.LookupChunkSize, "LOOKUP_CHUNK_SIZE"); err != nil {
		return err
	}
	if err := setInt(&c.RPCRateLimit, "RPC_RATE_LIMIT"); err != nil {
		return err
	}
	if err := setMillis(&c.ActivationTimeout, "ACTIVATION_TIMEOUT_MS"); err != nil {
		return err
	}
	if err := setMillis(&c.ConfirmTimeout, "CONFIRM_TIMEOUT_MS"); err != nil {
		return err
	}
	return nil
}

// Validate checks the values a run depends on.
func (c *Config) Validate() error {
	if len(c.RPCEndpoints) == 0 {
		return fmt.Errorf("at least one RPC endpoint is required")
	}
	for _, endpoint := range c.RPCEndpoints {
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			return fmt.Errorf("RPC endpoint %q must be http(s)", endpoint)
		}
	}
	if c.WSEndpoint != "" && !strings.HasPrefix(c.WSEndpoint, "ws://") && !strings.HasPrefix(c.WSEndpoint, "wss://") {
		return fmt.Errorf("websocket endpoint %q must be ws(s)", c.WSEndpoint)
	}
	if c.KeypairPath == "" && c.PayerPrivateKey == "" {
		return fmt.Errorf("either keypair_path or payer_private_key is required")
	}
	if c.SwapProgramID == "" {
		return fmt.Errorf("swap_program_id is required")
	}
	if c.OutputPath == "" {
		return fmt.Errorf("output_path is required")
	}
	if c.MintCount < 2 {
		return fmt.Errorf("mint_count must be at least 2, got %d", c.MintCount)
	}
	if c.PoolReserve == 0 {
		return fmt.Errorf("pool_reserve must be positive")
	}
	if c.SeedAmount == 0 {
		return fmt.Errorf("seed_amount must be positive")
	}
	if _, err := router.NewHopPlan(c.SeedAmount, c.HopDecay).AmountIn(c.Hops() - 1); err != nil {
		return fmt.Errorf("seed_amount %d with hop_decay %d runs out before hop %d: %w", c.SeedAmount, c.HopDecay, c.Hops(), err)
	}
	if c.LookupChunkSize <= 0 {
		return fmt.Errorf("lookup_chunk_size must be positive, got %d", c.LookupChunkSize)
	}
	if c.ActivationTimeout <= 0 {
		return fmt.Errorf("activation_timeout must be positive")
	}
	if c.ConfirmTimeout <= 0 {
		return fmt.Errorf("confirm_timeout must be positive")
	}
	return nil
}

// Hops is the number of pools, and so swap instructions, in the chain.
func (c *Config) Hops() int {
	return c.MintCount - 1
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func setUint64(dst *uint64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseUint(strings.ReplaceAll(v, "_", ""), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func setMillis(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = time.Duration(ms) * time.Millisecond
	return nil
}
