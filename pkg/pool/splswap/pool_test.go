package splswap

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	cosmath "cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"altswap/pkg"
)

func newPubkey(t *testing.T) solana.PublicKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key.PublicKey()
}

func encodeState(p *SplSwapPool) []byte {
	var buf bytes.Buffer
	buf.WriteByte(p.Version)
	if p.IsInitialized {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	buf.WriteByte(p.BumpSeed)
	for _, k := range []solana.PublicKey{p.TokenProgramId, p.TokenAccountA, p.TokenAccountB, p.TokenPool, p.MintA, p.MintB, p.FeeAccount} {
		buf.Write(k[:])
	}
	f := p.Fees
	for _, v := range []uint64{
		f.TradeFeeNumerator, f.TradeFeeDenominator,
		f.OwnerTradeFeeNumerator, f.OwnerTradeFeeDenominator,
		f.OwnerWithdrawFeeNumerator, f.OwnerWithdrawFeeDenominator,
		f.HostFeeNumerator, f.HostFeeDenominator,
	} {
		binary.Write(&buf, binary.LittleEndian, v)
	}
	buf.WriteByte(p.CurveType)
	buf.Write(p.CurveParams[:])
	return buf.Bytes()
}

func randomPool(t *testing.T) *SplSwapPool {
	return &SplSwapPool{
		Version:        1,
		IsInitialized:  true,
		BumpSeed:       254,
		TokenProgramId: solana.TokenProgramID,
		TokenAccountA:  newPubkey(t),
		TokenAccountB:  newPubkey(t),
		TokenPool:      newPubkey(t),
		MintA:          newPubkey(t),
		MintB:          newPubkey(t),
		FeeAccount:     newPubkey(t),
		Fees:           ZeroFees,
		CurveType:      CurveTypeConstantProduct,
		PoolId:         newPubkey(t),
	}
}

func TestDecode(t *testing.T) {
	want := randomPool(t)
	data := encodeState(want)
	require.Len(t, data, PoolStateSize)

	got := &SplSwapPool{}
	require.NoError(t, got.Decode(data))
	assert.Equal(t, want.TokenAccountA, got.TokenAccountA)
	assert.Equal(t, want.TokenAccountB, got.TokenAccountB)
	assert.Equal(t, want.TokenPool, got.TokenPool)
	assert.Equal(t, want.MintA, got.MintA)
	assert.Equal(t, want.MintB, got.MintB)
	assert.Equal(t, want.FeeAccount, got.FeeAccount)
	assert.Equal(t, ZeroFees, got.Fees)
	assert.Equal(t, uint8(254), got.BumpSeed)
}

func TestDecode_Invalid(t *testing.T) {
	p := randomPool(t)
	data := encodeState(p)

	err := (&SplSwapPool{}).Decode(data[:100])
	require.ErrorIs(t, err, ErrInvalidPoolData)

	p.IsInitialized = false
	err = (&SplSwapPool{}).Decode(encodeState(p))
	require.ErrorIs(t, err, ErrInvalidPoolData)
}

func TestKeys(t *testing.T) {
	p := randomPool(t)
	keys, err := p.Keys()
	require.NoError(t, err)
	require.Len(t, keys, 6)

	authority, _, err := FindPoolAuthority(SplTokenSwapProgramID, p.PoolId)
	require.NoError(t, err)
	assert.Equal(t, solana.PublicKeySlice{p.PoolId, authority, p.TokenAccountA, p.TokenAccountB, p.TokenPool, p.FeeAccount}, keys)
}

func TestSwapAccounts_Direction(t *testing.T) {
	p := randomPool(t)
	user := newPubkey(t)

	userA, _, err := solana.FindAssociatedTokenAddress(user, p.MintA)
	require.NoError(t, err)
	userB, _, err := solana.FindAssociatedTokenAddress(user, p.MintB)
	require.NoError(t, err)

	aToB, err := p.SwapAccounts(user, user, true)
	require.NoError(t, err)
	assert.Equal(t, userA, aToB.Source)
	assert.Equal(t, p.TokenAccountA, aToB.SwapSource)
	assert.Equal(t, p.TokenAccountB, aToB.SwapDestination)
	assert.Equal(t, userB, aToB.Destination)

	bToA, err := p.SwapAccounts(user, user, false)
	require.NoError(t, err)
	assert.Equal(t, userB, bToA.Source)
	assert.Equal(t, p.TokenAccountB, bToA.SwapSource)
	assert.Equal(t, p.TokenAccountA, bToA.SwapDestination)
	assert.Equal(t, userA, bToA.Destination)

	assert.Equal(t, aToB.PoolMint, bToA.PoolMint)
	assert.Equal(t, aToB.FeeAccount, bToA.FeeAccount)
	assert.Equal(t, aToB.Authority, bToA.Authority)
}

func TestBuildSwapInstruction(t *testing.T) {
	p := randomPool(t)
	user := newPubkey(t)

	ix, err := p.BuildSwapInstruction(user, user, true, 1000, 0)
	require.NoError(t, err)
	assert.Equal(t, SplTokenSwapProgramID, ix.ProgramID())

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 17)
	assert.Equal(t, byte(1), data[0])
	assert.Equal(t, uint64(1000), binary.LittleEndian.Uint64(data[1:9]))
	assert.Equal(t, uint64(0), binary.LittleEndian.Uint64(data[9:17]))

	accounts := ix.Accounts()
	require.Len(t, accounts, 10)
	assert.Equal(t, p.PoolId, accounts[0].PublicKey)
	assert.False(t, accounts[0].IsWritable)
	assert.True(t, accounts[2].IsSigner)
	for _, i := range []int{3, 4, 5, 6, 7, 8} {
		assert.True(t, accounts[i].IsWritable, "account %d", i)
	}
	assert.Equal(t, solana.TokenProgramID, accounts[9].PublicKey)
}

func TestNewInitializeInstruction(t *testing.T) {
	accounts := InitializeAccounts{
		Pool:        newPubkey(t),
		Authority:   newPubkey(t),
		TokenA:      newPubkey(t),
		TokenB:      newPubkey(t),
		PoolMint:    newPubkey(t),
		FeeAccount:  newPubkey(t),
		Destination: newPubkey(t),
	}
	ix, err := NewInitializeInstruction(SplTokenSwapProgramID, accounts, ZeroFees)
	require.NoError(t, err)

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 1+64+1+32)
	assert.Equal(t, byte(0), data[0])
	for i := 0; i < 8; i++ {
		v := binary.LittleEndian.Uint64(data[1+8*i : 9+8*i])
		if i%2 == 0 {
			assert.Equal(t, uint64(0), v, "numerator %d", i)
		} else {
			assert.Equal(t, uint64(1), v, "denominator %d", i)
		}
	}
	assert.Equal(t, CurveTypeConstantProduct, data[65])

	metas := ix.Accounts()
	require.Len(t, metas, 8)
	assert.True(t, metas[0].IsSigner)
	assert.True(t, metas[0].IsWritable)
	assert.True(t, metas[4].IsWritable)
	assert.True(t, metas[6].IsWritable)
	assert.Equal(t, solana.TokenProgramID, metas[7].PublicKey)
}

func TestQuoteExactIn(t *testing.T) {
	assert.Equal(t, uint64(999), QuoteExactIn(1000, 1_000_000, 1_000_000, ZeroFees))
	assert.Equal(t, uint64(0), QuoteExactIn(0, 1_000_000, 1_000_000, ZeroFees))

	fees := ZeroFees
	fees.TradeFeeNumerator = 25
	fees.TradeFeeDenominator = 10000
	// 1000 * 25 / 10000 = 2, so 998 goes through the curve
	assert.Equal(t, QuoteExactIn(998, 1_000_000, 1_000_000, ZeroFees), QuoteExactIn(1000, 1_000_000, 1_000_000, fees))
	// small amounts still pay one unit
	assert.Equal(t, uint64(1), tradingFee(10, 25, 10000))
}

func TestConstantProductOut_RoundsForPool(t *testing.T) {
	out, ok := constantProductOut(1000, 1_000_000, 1_000_000)
	require.True(t, ok)
	// exact curve output is 999.000999; the pool keeps the fraction
	assert.Equal(t, uint64(999), out)

	_, ok = constantProductOut(1, 1, 0)
	assert.False(t, ok)
}

func TestQuoteWithReserves(t *testing.T) {
	p := randomPool(t)
	p.ReserveA = cosmath.NewInt(1_000_000)
	p.ReserveB = cosmath.NewInt(2_000_000)

	out, err := p.QuoteWithReserves(p.MintA.String(), cosmath.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, int64(QuoteExactIn(1000, 1_000_000, 2_000_000, ZeroFees)), out.Int64())

	out, err = p.QuoteWithReserves(p.MintB.String(), cosmath.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, int64(QuoteExactIn(1000, 2_000_000, 1_000_000, ZeroFees)), out.Int64())

	_, err = p.QuoteWithReserves(newPubkey(t).String(), cosmath.NewInt(1000))
	require.Error(t, err)
}

func TestPlanPool(t *testing.T) {
	payer := newPubkey(t)
	params := InitializeParams{
		MintA:    newPubkey(t),
		MintB:    newPubkey(t),
		ReserveA: 1_000_000,
		ReserveB: 1_000_000,
	}

	setup, err := PlanPool(payer, params, 1_461_600, 3_146_880)
	require.NoError(t, err)

	authority, _, err := FindPoolAuthority(SplTokenSwapProgramID, setup.Pool.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, authority, setup.Authority)

	// ata+mintTo twice, create+init LP mint, fee and destination atas
	assert.Len(t, setup.SetupInstructions, 8)
	require.Len(t, setup.InitInstructions, 2)
	assert.Equal(t, solana.SystemProgramID, setup.InitInstructions[0].ProgramID())
	assert.Equal(t, SplTokenSwapProgramID, setup.InitInstructions[1].ProgramID())

	init := setup.InitInstructions[1].Accounts()
	assert.Equal(t, setup.Pool.PublicKey(), init[0].PublicKey)
	assert.Equal(t, setup.TokenA, init[2].PublicKey)
	assert.Equal(t, setup.TokenB, init[3].PublicKey)
	assert.Equal(t, setup.LpMint.PublicKey(), init[4].PublicKey)
	assert.Equal(t, setup.FeeAccount, init[5].PublicKey)
	assert.Equal(t, setup.Destination, init[6].PublicKey)
	assert.NotEqual(t, setup.FeeAccount, setup.Destination)
}

type fakeFetcher struct {
	pools map[string]pkg.Pool
	calls int
}

func (f *fakeFetcher) FetchPoolByID(ctx context.Context, poolID string) (pkg.Pool, error) {
	f.calls++
	p, ok := f.pools[poolID]
	if !ok {
		return nil, assert.AnError
	}
	return p, nil
}

func TestHarness_RefetchesState(t *testing.T) {
	p := randomPool(t)
	fetcher := &fakeFetcher{pools: map[string]pkg.Pool{p.PoolId.String(): p}}
	h := NewHarness(p.PoolId, p.MintA, p.MintB, SplTokenSwapProgramID, fetcher)

	user := newPubkey(t)
	ix, err := h.SwapInstruction(context.Background(), user, user, true, 990, 0)
	require.NoError(t, err)
	assert.Equal(t, p.TokenAccountA, ix.Accounts()[4].PublicKey)

	keys, err := h.Keys(context.Background())
	require.NoError(t, err)
	assert.Len(t, keys, 6)
	assert.Equal(t, 2, fetcher.calls)

	a, b := h.GetTokens()
	assert.Equal(t, p.MintA.String(), a)
	assert.Equal(t, p.MintB.String(), b)

	missing := NewHarness(newPubkey(t), p.MintA, p.MintB, SplTokenSwapProgramID, fetcher)
	_, err = missing.Keys(context.Background())
	require.Error(t, err)
}
