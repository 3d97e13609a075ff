// Package alt creates, extends and reads address lookup tables.
package alt

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	addresslookuptable "github.com/gagliardetto/solana-go/programs/address-lookup-table"
)

const (
	MaxAddresses = addresslookuptable.LOOKUP_TABLE_MAX_ADDRESSES

	// DefaultChunkSize keeps every extend transaction under the packet limit.
	DefaultChunkSize = 20
)

var ProgramID = solana.MustPublicKeyFromBase58("AddressLookupTab1e1111111111111111111111111")

// Instruction tags
const (
	instructionCreate uint32 = 0
	instructionExtend uint32 = 2
)

// DeriveLookupTableAddress returns the table address for authority created at recentSlot.
func DeriveLookupTableAddress(authority solana.PublicKey, recentSlot uint64) (solana.PublicKey, uint8, error) {
	slot := make([]byte, 8)
	binary.LittleEndian.PutUint64(slot, recentSlot)
	table, bump, err := solana.FindProgramAddress([][]byte{authority.Bytes(), slot}, ProgramID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("derive lookup table address: %w", err)
	}
	return table, bump, nil
}

func tableAccounts(table, authority, payer solana.PublicKey) solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.NewAccountMeta(table, true, false),
		solana.NewAccountMeta(authority, false, true),
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}
}

// CreateLookupTableInstruction builds the instruction creating a table owned
// by authority and funded by payer. recentSlot must be a slot the cluster still
// remembers; the table address is derived from it.
func CreateLookupTableInstruction(authority, payer solana.PublicKey, recentSlot uint64) (solana.Instruction, solana.PublicKey, error) {
	table, bump, err := DeriveLookupTableAddress(authority, recentSlot)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}

	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)
	if err := enc.WriteUint32(instructionCreate, bin.LE); err != nil {
		return nil, solana.PublicKey{}, err
	}
	if err := enc.WriteUint64(recentSlot, bin.LE); err != nil {
		return nil, solana.PublicKey{}, err
	}
	if err := enc.WriteUint8(bump); err != nil {
		return nil, solana.PublicKey{}, err
	}

	return solana.NewInstruction(ProgramID, tableAccounts(table, authority, payer), buf.Bytes()), table, nil
}

// ExtendLookupTableInstruction appends addresses to table.
func ExtendLookupTableInstruction(table, authority, payer solana.PublicKey, addresses solana.PublicKeySlice) (solana.Instruction, error) {
	if len(addresses) == 0 {
		return nil, fmt.Errorf("extend lookup table %s: no addresses", table)
	}

	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)
	if err := enc.WriteUint32(instructionExtend, bin.LE); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(uint64(len(addresses)), bin.LE); err != nil {
		return nil, err
	}
	for _, address := range addresses {
		if err := enc.WriteBytes(address.Bytes(), false); err != nil {
			return nil, err
		}
	}

	return solana.NewInstruction(ProgramID, tableAccounts(table, authority, payer), buf.Bytes()), nil
}

// Chunk splits keys into consecutive slices of at most size keys.
// Concatenating the result yields keys unchanged.
func Chunk(keys solana.PublicKeySlice, size int) ([]solana.PublicKeySlice, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	chunks := make([]solana.PublicKeySlice, 0, (len(keys)+size-1)/size)
	for start := 0; start < len(keys); start += size {
		end := start + size
		if end > len(keys) {
			end = len(keys)
		}
		chunks = append(chunks, keys[start:end])
	}
	return chunks, nil
}
