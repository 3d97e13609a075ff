package sol

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

var ErrTransactionNotFound = errors.New("transaction not found")

// RawResponse is the JSON-RPC envelope persisted for a getTransaction call.
type RawResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
}

// GetTransactionRaw fetches a confirmed transaction with json encoding and v0
// support. solana-go's typed GetTransaction rejects the json encoding, so the
// call goes through the generic JSON-RPC path and the result is kept verbatim.
// The node may answer null for a short while after confirmation; the call
// keeps polling until ConfirmTimeout.
func (c *Client) GetTransactionRaw(ctx context.Context, sig solana.Signature) (*RawResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.ConfirmTimeout)
	defer cancel()

	params := []interface{}{
		sig.String(),
		map[string]interface{}{
			"encoding":                       "json",
			"commitment":                     rpc.CommitmentConfirmed,
			"maxSupportedTransactionVersion": 0,
		},
	}

	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()

	for {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		var result json.RawMessage
		err := c.rpcClient.RPCCallForInto(ctx, &result, "getTransaction", params)
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("getTransaction %s: %w", sig, err)
		}
		if err == nil && len(result) > 0 && !bytes.Equal(bytes.TrimSpace(result), []byte("null")) {
			return &RawResponse{JSONRPC: "2.0", ID: 1, Result: result}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %w", sig, ErrTransactionNotFound)
		case <-ticker.C:
		}
	}
}

// MarshalIndent renders the envelope the way it is written to disk.
func (r *RawResponse) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
