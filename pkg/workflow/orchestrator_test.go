package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"altswap/pkg/router"
	"altswap/pkg/sol"
)

type fakePool struct {
	keys         solana.PublicKeySlice
	mintA, mintB solana.PublicKey
}

func newFakePool(mintA, mintB solana.PublicKey) *fakePool {
	keys := make(solana.PublicKeySlice, 6)
	for i := range keys {
		keys[i] = solana.NewWallet().PublicKey()
	}
	return &fakePool{keys: keys, mintA: mintA, mintB: mintB}
}

func (p *fakePool) GetID() string { return p.keys[0].String() }

func (p *fakePool) GetTokens() (string, string) { return p.mintA.String(), p.mintB.String() }

func (p *fakePool) SwapInstruction(ctx context.Context, user, transferAuthority solana.PublicKey, aToB bool, amountIn, minimumAmountOut uint64) (solana.Instruction, error) {
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(p.keys[0], false, false),
		solana.NewAccountMeta(p.keys[1], false, false),
		solana.NewAccountMeta(transferAuthority, false, true),
	}
	for _, k := range p.keys[2:] {
		accounts = append(accounts, solana.NewAccountMeta(k, true, false))
	}
	return solana.NewInstruction(defaultSwapProgramID, accounts, []byte{1}), nil
}

func (p *fakePool) Keys(ctx context.Context) (solana.PublicKeySlice, error) { return p.keys, nil }

// fakeLedger records the workflow's calls and replays the sent transaction
// as a json-encoded getTransaction result.
type fakeLedger struct {
	payer    solana.PublicKey
	mints    []solana.PublicKey
	pools    []*fakePool
	balances map[solana.PublicKey]uint64

	table     solana.PublicKey
	extended  solana.PublicKeySlice
	chunkSize int
	sent      *solana.Transaction

	createPoolErr error
	waitErr       error
}

func newFakeLedger(payer solana.PublicKey) *fakeLedger {
	return &fakeLedger{payer: payer, balances: map[solana.PublicKey]uint64{}}
}

func (f *fakeLedger) CreateMint(ctx context.Context, decimals uint8) (solana.PublicKey, error) {
	mint := solana.NewWallet().PublicKey()
	f.mints = append(f.mints, mint)
	return mint, nil
}

func (f *fakeLedger) CreatePool(ctx context.Context, mintA, mintB solana.PublicKey, reserveA, reserveB uint64) (router.SwapPool, error) {
	if f.createPoolErr != nil {
		return nil, f.createPoolErr
	}
	pool := newFakePool(mintA, mintB)
	f.pools = append(f.pools, pool)
	return pool, nil
}

func (f *fakeLedger) MintTo(ctx context.Context, mint, owner solana.PublicKey, amount uint64) error {
	f.balances[mint] += amount
	return nil
}

func (f *fakeLedger) TokenBalance(ctx context.Context, mint, owner solana.PublicKey) (uint64, error) {
	return f.balances[mint], nil
}

func (f *fakeLedger) CreateTable(ctx context.Context) (solana.PublicKey, error) {
	f.table = solana.NewWallet().PublicKey()
	return f.table, nil
}

func (f *fakeLedger) ExtendTable(ctx context.Context, table solana.PublicKey, keys solana.PublicKeySlice, chunkSize int) error {
	f.extended = append(f.extended, keys...)
	f.chunkSize = chunkSize
	return nil
}

func (f *fakeLedger) WaitActive(ctx context.Context, table solana.PublicKey, expected int, timeout time.Duration) (solana.PublicKeySlice, error) {
	if f.waitErr != nil {
		return nil, f.waitErr
	}
	if len(f.extended) < expected {
		return nil, errors.New("table short of addresses")
	}
	return f.extended, nil
}

func (f *fakeLedger) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	return solana.Hash{1, 2, 3}, nil
}

func (f *fakeLedger) SendVersioned(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	f.sent = tx
	// the whole seed leaves the first mint and the output lands on the last
	first, last := f.mints[0], f.mints[len(f.mints)-1]
	f.balances[last] += f.balances[first] / 2
	f.balances[first] = 0
	return tx.Signatures[0], nil
}

func (f *fakeLedger) WaitForSignature(ctx context.Context, sig solana.Signature, commitment rpc.ConfirmationStatusType) error {
	return nil
}

func (f *fakeLedger) GetTransactionRaw(ctx context.Context, sig solana.Signature) (*sol.RawResponse, error) {
	msg := f.sent.Message
	toStrings := func(keys solana.PublicKeySlice) []string {
		out := make([]string, len(keys))
		for i, k := range keys {
			out[i] = k.String()
		}
		return out
	}

	var writable, readonly []string
	for _, lookup := range msg.AddressTableLookups {
		for _, idx := range lookup.WritableIndexes {
			writable = append(writable, f.extended[idx].String())
		}
		for _, idx := range lookup.ReadonlyIndexes {
			readonly = append(readonly, f.extended[idx].String())
		}
	}

	instructions := make([]map[string]interface{}, 0, len(msg.Instructions))
	for _, ix := range msg.Instructions {
		accounts := make([]int, len(ix.Accounts))
		for i, a := range ix.Accounts {
			accounts[i] = int(a)
		}
		instructions = append(instructions, map[string]interface{}{
			"programIdIndex": ix.ProgramIDIndex,
			"accounts":       accounts,
			"data":           ix.Data.String(),
		})
	}

	result, err := json.Marshal(map[string]interface{}{
		"slot":    42,
		"version": 0,
		"meta": map[string]interface{}{
			"err": nil,
			"loadedAddresses": map[string]interface{}{
				"writable": writable,
				"readonly": readonly,
			},
		},
		"transaction": map[string]interface{}{
			"signatures": []string{sig.String()},
			"message": map[string]interface{}{
				"accountKeys":  toStrings(msg.AccountKeys),
				"instructions": instructions,
			},
		},
	})
	if err != nil {
		return nil, err
	}
	return &sol.RawResponse{JSONRPC: "2.0", ID: 1, Result: result}, nil
}

func testOptions(t *testing.T, mints int) Options {
	return Options{
		MintCount:         mints,
		Decimals:          6,
		PoolReserve:       1_000_000,
		SeedAmount:        1000,
		HopDecay:          10,
		ChunkSize:         20,
		ActivationTimeout: time.Second,
		OutputPath:        filepath.Join(t.TempDir(), "response.json"),
	}
}

func newTestOrchestrator(t *testing.T, mints int) (*Orchestrator, *fakeLedger) {
	payer := solana.NewWallet().PrivateKey
	ledger := newFakeLedger(payer.PublicKey())
	return NewOrchestrator(payer, ledger, ledger, ledger, testOptions(t, mints)), ledger
}

func TestRun_ThreeMints(t *testing.T) {
	o, ledger := newTestOrchestrator(t, 3)

	report, err := o.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Mints, 3)
	require.Len(t, report.Pools, 2)
	for i, pool := range ledger.pools {
		a, b := pool.GetTokens()
		assert.Equal(t, report.Mints[i].String(), a)
		assert.Equal(t, report.Mints[i+1].String(), b)
	}

	assert.Equal(t, 12, report.Keys)
	assert.Len(t, ledger.extended, 12)
	assert.Equal(t, 20, ledger.chunkSize)
	assert.Equal(t, ledger.table, report.Table)
	assert.Equal(t, []uint64{1000, 990}, report.HopAmounts)

	require.NotNil(t, ledger.sent)
	assert.True(t, ledger.sent.Message.IsVersioned())
	assert.Len(t, ledger.sent.Message.AddressTableLookups, 1)
	assert.Equal(t, 12, ledger.sent.Message.NumLookups())
	assert.Less(t, report.VersionedSize, report.LegacySize)

	require.Len(t, report.SwapPools, 2)
	for i, pool := range ledger.pools {
		assert.Equal(t, pool.keys[0], report.SwapPools[i])
	}

	assert.Equal(t, uint64(1000), report.SeedBalance)
	assert.Equal(t, uint64(0), report.FirstBalance)
	assert.Equal(t, uint64(500), report.LastBalance)

	data, err := os.ReadFile(report.OutputPath)
	require.NoError(t, err)
	var written sol.RawResponse
	require.NoError(t, json.Unmarshal(data, &written))
	assert.Equal(t, "2.0", written.JSONRPC)
	n, err := CountProgramInstructions(written.Result, defaultSwapProgramID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRun_FullChainFitsOnePacket(t *testing.T) {
	o, ledger := newTestOrchestrator(t, 26)

	report, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, report.Pools, 25)
	assert.Equal(t, 150, report.Keys)
	assert.Len(t, report.SwapPools, 25)
	assert.Equal(t, uint64(760), report.HopAmounts[24])
	assert.Greater(t, report.LegacySize, sol.PacketDataSize)
	assert.LessOrEqual(t, report.VersionedSize, sol.PacketDataSize)
	assert.Equal(t, ledger.pools[24].keys[0], report.SwapPools[24])
}

func TestRun_StepErrors(t *testing.T) {
	boom := errors.New("boom")

	t.Run("pool creation", func(t *testing.T) {
		o, ledger := newTestOrchestrator(t, 3)
		ledger.createPoolErr = boom

		report, err := o.Run(context.Background())
		require.ErrorIs(t, err, boom)
		var stepErr *StepError
		require.True(t, errors.As(err, &stepErr))
		assert.Equal(t, StepProvisionPools, stepErr.Step)
		assert.Len(t, report.Mints, 3)
		assert.Nil(t, ledger.sent)
	})

	t.Run("activation", func(t *testing.T) {
		o, ledger := newTestOrchestrator(t, 3)
		ledger.waitErr = boom

		report, err := o.Run(context.Background())
		require.ErrorIs(t, err, boom)
		var stepErr *StepError
		require.True(t, errors.As(err, &stepErr))
		assert.Equal(t, StepActivation, stepErr.Step)
		assert.Equal(t, ledger.table, report.Table)
		assert.Nil(t, ledger.sent)
		_, statErr := os.Stat(report.OutputPath)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("too few mints", func(t *testing.T) {
		o, ledger := newTestOrchestrator(t, 1)
		_, err := o.Run(context.Background())
		require.Error(t, err)
		assert.Empty(t, ledger.mints)
	})
}

func TestPopulateTable_NoKeys(t *testing.T) {
	o, ledger := newTestOrchestrator(t, 3)

	_, err := o.PopulateTable(context.Background(), nil)
	require.ErrorIs(t, err, sol.ErrNoTableLookups)
	assert.True(t, ledger.table.IsZero())
}

func TestSwapInstructionPools_LoadedAddresses(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	poolA := solana.NewWallet().PublicKey()
	poolB := solana.NewWallet().PublicKey()
	other := solana.NewWallet().PublicKey()
	program := defaultSwapProgramID

	// indexes: 0 payer, 1 program, 2 other program, 3 writable lookup, 4-5 readonly lookups
	result := []byte(`{
		"meta": {"loadedAddresses": {"writable": ["` + other.String() + `"], "readonly": ["` + poolA.String() + `", "` + poolB.String() + `"]}},
		"transaction": {"message": {
			"accountKeys": ["` + payer.String() + `", "` + program.String() + `", "` + solana.SystemProgramID.String() + `"],
			"instructions": [
				{"programIdIndex": 1, "accounts": [4, 0, 3]},
				{"programIdIndex": 2, "accounts": [0, 3]},
				{"programIdIndex": 1, "accounts": [5, 0, 3]}
			]
		}}
	}`)

	pools, err := SwapInstructionPools(result, program)
	require.NoError(t, err)
	assert.Equal(t, []solana.PublicKey{poolA, poolB}, pools)

	bad := []byte(`{"transaction": {"message": {"accountKeys": ["` + program.String() + `"], "instructions": [{"programIdIndex": 0, "accounts": [7]}]}}}`)
	_, err = SwapInstructionPools(bad, program)
	require.Error(t, err)
}

func TestCheckPoolOrder(t *testing.T) {
	a, b := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()

	require.NoError(t, checkPoolOrder([]solana.PublicKey{a, b}, []string{a.String(), b.String()}))
	require.Error(t, checkPoolOrder([]solana.PublicKey{b, a}, []string{a.String(), b.String()}))
	require.Error(t, checkPoolOrder([]solana.PublicKey{a}, []string{a.String(), b.String()}))
}

func TestWriteResponse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "response.json")
	resp := &sol.RawResponse{JSONRPC: "2.0", ID: 1, Result: json.RawMessage(`{"slot":7}`)}

	require.NoError(t, WriteResponse(path, resp))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"jsonrpc\": \"2.0\"")
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":{"slot":7}}`, string(data))
}
