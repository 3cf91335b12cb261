package testutils

import (
	"bytes"

	"github.com/progtoken-org/progtoken-go/hash"
	"github.com/progtoken-org/progtoken-go/list"
	"github.com/progtoken-org/progtoken-go/types"
)

// ScriptHash returns a script hash shaped value filled with the given byte.
func ScriptHash(b byte) []byte {
	return bytes.Repeat([]byte{b}, hash.ScriptHashLength)
}

// DefaultParams returns bootstrap parameters with distinct placeholder script
// hashes and small fee values.
func DefaultParams() *types.ProtocolParams {
	return &types.ProtocolParams{
		Version:           1,
		CustodyScript:     ScriptHash(0x0c),
		CoordinatorScript: ScriptHash(0x0d),
		RegistryPolicy:    ScriptHash(0x0e),
		IssuanceTemplate:  ScriptHash(0x0f),
		MinCustodyValue:   2,
		BaseFee:           1,
	}
}

// BootstrapList places an empty list (origin node only) on the ledger.
func BootstrapList(l *Ledger, listPolicy []byte) {
	l.PutNode(listPolicy, list.NewOriginNode(nil))
}

// FundFees places a base currency output at the fee address.
func FundFees(l *Ledger, feeAddr types.Address, amount uint64) {
	l.AddOutput(feeAddr, types.NewValue(amount))
}
