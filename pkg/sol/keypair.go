package sol

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// LoadPayer returns the funding identity. A base58 secret key wins over the
// keygen file when both are given.
func LoadPayer(keypairPath, base58Secret string) (solana.PrivateKey, error) {
	if base58Secret != "" {
		return PrivateKeyFromBase58Secret(base58Secret)
	}

	path, err := ExpandHome(keypairPath)
	if err != nil {
		return nil, err
	}
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("load keypair %s: %w", path, err)
	}
	return key, nil
}

// PrivateKeyFromBase58Secret decodes a 64-byte ed25519 secret key.
func PrivateKeyFromBase58Secret(secret string) (solana.PrivateKey, error) {
	raw, err := base58.Decode(strings.TrimSpace(secret))
	if err != nil {
		return nil, fmt.Errorf("decode base58 secret: %w", err)
	}
	if len(raw) != 64 {
		return nil, fmt.Errorf("secret key must be 64 bytes, got %d", len(raw))
	}
	return solana.PrivateKey(raw), nil
}

// ExpandHome replaces a leading ~ with the current user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// NewKeypair generates a fresh account keypair.
func NewKeypair() (solana.PrivateKey, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return key, nil
}

// ShortSig renders the leading characters of a signature for progress lines.
func ShortSig(sig solana.Signature) string {
	s := base58.Encode(sig[:])
	if len(s) <= 12 {
		return s
	}
	return s[:12] + "…"
}
