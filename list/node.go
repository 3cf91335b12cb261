/*
Package list implements the on-ledger sorted singly-linked list shared by the
token registry and the denylists.

On the ledger the list is a physical chain of node outputs: each node datum
holds its own key and the key of its successor, every change consumes the
affected nodes and produces replacements in the same transaction, and each
node is bound to exactly one authenticity marker minted by the list's owning
policy. Off ledger the package maintains a mirror indexed by key, which is
what the builders and plugins query for covering nodes and proofs.
*/
package list

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/progtoken-org/progtoken-go/cbor"
	"github.com/progtoken-org/progtoken-go/types"
)

// SentinelNext is the fixed maximum value terminating every list: the origin
// node of an empty list points at it and no real key may reach it.
var SentinelNext = hexutil.Bytes{0xff, 0xff}

type (
	// Node is the datum of one list output. Key is empty for the origin
	// node. Datum is set for registry nodes only; denylist nodes carry the
	// bare key/next pair.
	Node struct {
		_     struct{}       `cbor:",toarray"`
		Key   hexutil.Bytes  `json:"key"`
		Next  hexutil.Bytes  `json:"next"`
		Datum *RegistryDatum `json:"datum,omitempty"`
	}

	// RegistryDatum is the payload a registry node carries for its asset
	// policy: the validator credentials the coordinator must see invoked
	// and an optional pointer to the policy's global state output.
	RegistryDatum struct {
		_             struct{}         `cbor:",toarray"`
		TransferLogic types.Credential `json:"transferLogic"`
		AdminLogic    types.Credential `json:"adminLogic"`
		GlobalStateID hexutil.Bytes    `json:"globalStateId,omitempty"`
	}
)

// IsOrigin reports whether the node is the list's origin (empty key).
func (n *Node) IsOrigin() bool {
	return len(n.Key) == 0
}

// Covers reports whether key falls strictly between the node's key and next.
func (n *Node) Covers(key []byte) bool {
	return bytes.Compare(n.Key, key) < 0 && bytes.Compare(key, n.Next) < 0
}

func (n *Node) IsValid() error {
	if n == nil {
		return fmt.Errorf("node is nil")
	}
	if bytes.Compare(n.Key, n.Next) >= 0 {
		return fmt.Errorf("node key %X must be smaller than next %X", []byte(n.Key), []byte(n.Next))
	}
	if n.Datum != nil {
		if err := n.Datum.TransferLogic.IsValid(); err != nil {
			return fmt.Errorf("invalid transfer logic: %w", err)
		}
		if err := n.Datum.AdminLogic.IsValid(); err != nil {
			return fmt.Errorf("invalid admin logic: %w", err)
		}
	}
	return nil
}

func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{Key: bytes.Clone(n.Key), Next: bytes.Clone(n.Next)}
	if n.Datum != nil {
		c.Datum = &RegistryDatum{
			TransferLogic: n.Datum.TransferLogic,
			AdminLogic:    n.Datum.AdminLogic,
			GlobalStateID: bytes.Clone(n.Datum.GlobalStateID),
		}
	}
	return c
}

// Bytes serializes the node datum to its on-ledger form.
func (n *Node) Bytes() ([]byte, error) {
	return cbor.Marshal(n)
}

// NodeFromBytes decodes a node datum.
func NodeFromBytes(data []byte) (*Node, error) {
	n := &Node{}
	if err := cbor.Unmarshal(data, n); err != nil {
		return nil, fmt.Errorf("unmarshaling list node: %w", err)
	}
	return n, nil
}

// MarkerAsset is the authenticity marker bound to the node with the given
// key: a unique token minted once by the list's owning policy, named after
// the key. A node output without its marker must never be trusted.
func MarkerAsset(listPolicy, key []byte) types.AssetID {
	return types.NewAssetID(listPolicy, key)
}

// NewOriginNode returns the node created at list bootstrap: empty key
// pointing at the sentinel.
func NewOriginNode(datum *RegistryDatum) *Node {
	return &Node{Key: hexutil.Bytes{}, Next: bytes.Clone(SentinelNext), Datum: datum}
}
