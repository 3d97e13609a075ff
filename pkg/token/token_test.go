package token

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPubkey(t *testing.T) solana.PublicKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key.PublicKey()
}

func TestInitializeMintInstructions(t *testing.T) {
	payer := newPubkey(t)
	mint := newPubkey(t)

	instructions := InitializeMintInstructions(payer, mint, payer, 6, 1_461_600)
	require.Len(t, instructions, 2)

	create := instructions[0]
	assert.Equal(t, solana.SystemProgramID, create.ProgramID())
	accounts := create.Accounts()
	require.Len(t, accounts, 2)
	assert.Equal(t, payer, accounts[0].PublicKey)
	assert.True(t, accounts[0].IsSigner)
	assert.Equal(t, mint, accounts[1].PublicKey)
	assert.True(t, accounts[1].IsSigner)

	data, err := create.Data()
	require.NoError(t, err)
	require.Len(t, data, 4+8+8+32)
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(data[0:4]))
	assert.Equal(t, uint64(1_461_600), binary.LittleEndian.Uint64(data[4:12]))
	assert.Equal(t, uint64(MintSize), binary.LittleEndian.Uint64(data[12:20]))
	assert.Equal(t, solana.TokenProgramID[:], data[20:52])

	init := instructions[1]
	assert.Equal(t, solana.TokenProgramID, init.ProgramID())
	data, err = init.Data()
	require.NoError(t, err)
	assert.Equal(t, byte(0), data[0])
	assert.Equal(t, byte(6), data[1])
	assert.Equal(t, payer[:], data[2:34])
}

func TestCreateATAInstruction(t *testing.T) {
	payer := newPubkey(t)
	owner := newPubkey(t)
	mint := newPubkey(t)

	ata, ix, err := CreateATAInstruction(payer, mint, owner)
	require.NoError(t, err)

	expected, err := AssociatedAddress(owner, mint)
	require.NoError(t, err)
	assert.Equal(t, expected, ata)
	assert.Equal(t, solana.SPLAssociatedTokenAccountProgramID, ix.ProgramID())

	var found bool
	for _, meta := range ix.Accounts() {
		if meta.PublicKey.Equals(ata) {
			found = true
			assert.True(t, meta.IsWritable)
		}
	}
	assert.True(t, found, "ata must be an instruction account")
}

func TestMintToInstruction(t *testing.T) {
	mint := newPubkey(t)
	dest := newPubkey(t)
	authority := newPubkey(t)

	ix := MintToInstruction(mint, dest, authority, 1000)
	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, byte(7), data[0])
	assert.Equal(t, uint64(1000), binary.LittleEndian.Uint64(data[1:9]))

	accounts := ix.Accounts()
	require.Len(t, accounts, 3)
	assert.Equal(t, mint, accounts[0].PublicKey)
	assert.Equal(t, dest, accounts[1].PublicKey)
	assert.Equal(t, authority, accounts[2].PublicKey)
	assert.True(t, accounts[2].IsSigner)
}

func TestDecodeTokenAccount(t *testing.T) {
	mint := newPubkey(t)
	owner := newPubkey(t)

	var buf bytes.Buffer
	buf.Write(mint[:])
	buf.Write(owner[:])
	binary.Write(&buf, binary.LittleEndian, uint64(998_990))
	buf.Write(make([]byte, 4+32)) // delegate: none
	buf.WriteByte(1)              // initialized
	buf.Write(make([]byte, 4+8))  // is_native: none
	buf.Write(make([]byte, 8))    // delegated amount
	buf.Write(make([]byte, 4+32)) // close authority: none
	require.Equal(t, AccountSize, buf.Len())

	account, err := DecodeTokenAccount(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, mint, account.Mint)
	assert.Equal(t, owner, account.Owner)
	assert.Equal(t, uint64(998_990), account.Amount)
	assert.Nil(t, account.Delegate)

	_, err = DecodeTokenAccount(buf.Bytes()[:64])
	require.Error(t, err)
}
