package types

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

type (
	// OutputRef points at a ledger output: transaction identifier plus the
	// output index within that transaction.
	OutputRef struct {
		_     struct{}      `cbor:",toarray"`
		TxID  hexutil.Bytes `json:"txId"`
		Index uint16        `json:"index"`
	}

	// CustodyRecord is a ledger output at the shared custody address. The
	// payment half of the address is always the custody script; the record
	// is identified to its beneficial owner by the owner credential.
	CustodyRecord struct {
		_     struct{}   `cbor:",toarray"`
		Ref   OutputRef  `json:"ref"`
		Owner Credential `json:"owner"`
		Value Value      `json:"value"`
	}
)

func (r OutputRef) Eq(other OutputRef) bool {
	return r.Index == other.Index && bytes.Equal(r.TxID, other.TxID)
}

func (r OutputRef) String() string {
	return fmt.Sprintf("%X#%d", []byte(r.TxID), r.Index)
}

// Address returns the programmable address the record sits at.
func (r *CustodyRecord) Address(custodyScriptHash []byte) Address {
	return NewCustodyAddress(custodyScriptHash, r.Owner)
}

func (r *CustodyRecord) Clone() *CustodyRecord {
	return &CustodyRecord{
		Ref:   OutputRef{TxID: bytes.Clone(r.Ref.TxID), Index: r.Ref.Index},
		Owner: Credential{Tag: r.Owner.Tag, Hash: bytes.Clone(r.Owner.Hash)},
		Value: r.Value.Clone(),
	}
}
