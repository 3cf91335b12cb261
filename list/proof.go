package list

import (
	"bytes"
	"fmt"

	"github.com/progtoken-org/progtoken-go/types"
)

type ProofKind uint8

const (
	// ProofExists: the referenced node's key equals the queried key.
	ProofExists ProofKind = iota + 1
	// ProofNotExists: the referenced node's key/next bracket the queried key.
	ProofNotExists
)

// Proof resolves one queried key against a list via a reference input: the
// node at NodeIndex in the transaction's reference inputs either matches the
// key exactly or covers it. NodeIndex is assigned by the builder when it
// places the node among the reference inputs.
type Proof struct {
	_         struct{}  `cbor:",toarray"`
	Kind      ProofKind `json:"kind"`
	NodeIndex uint16    `json:"nodeIndex"`
}

// Verify checks the proof against the resolved reference input. It demands
// the node authenticity marker in the reference input's value: a node output
// without the marker minted by the list's policy must never be trusted.
func (p Proof) Verify(key []byte, listPolicy []byte, ref types.TxInput) (*Node, error) {
	node, err := NodeFromBytes(ref.Output.Datum)
	if err != nil {
		return nil, types.WrapError(types.CodeValidationRejected, err, "reference input %d does not hold a list node", p.NodeIndex)
	}
	if ref.Output.Value.Get(MarkerAsset(listPolicy, node.Key)) == 0 {
		return nil, types.NewError(types.CodeValidationRejected, "node %X lacks its authenticity marker", []byte(node.Key))
	}
	switch p.Kind {
	case ProofExists:
		if !bytes.Equal(node.Key, key) {
			return nil, types.NewError(types.CodeValidationRejected, "exists proof node key %X does not match %X", []byte(node.Key), key)
		}
	case ProofNotExists:
		if !node.Covers(key) {
			return nil, types.NewError(types.CodeValidationRejected, "absence proof node [%X,%X) does not cover %X", []byte(node.Key), []byte(node.Next), key)
		}
	default:
		return nil, types.NewError(types.CodeValidationRejected, "unknown proof kind %d", p.Kind)
	}
	return node, nil
}

func (k ProofKind) String() string {
	switch k {
	case ProofExists:
		return "Exists"
	case ProofNotExists:
		return "NotExists"
	default:
		return fmt.Sprintf("ProofKind(%d)", uint8(k))
	}
}
