/*
Package state declares the ledger-state collaborator the transaction builder
reads from. The implementation (chain indexer, database, RPC client) lives
outside this module; it must serve a consistent point-in-time snapshot.
Staleness is tolerated: a plan built against a stale snapshot loses the race
on submission and surfaces as Conflict, which the builder resolves by
re-reading state and recomputing.
*/
package state

import (
	"context"

	"github.com/progtoken-org/progtoken-go/list"
	"github.com/progtoken-org/progtoken-go/types"
)

type (
	// NodeRecord is a list node together with its on-ledger location and
	// value. The value must include the node's authenticity marker, the
	// location is what a builder consumes when replacing the node.
	NodeRecord struct {
		Ref   types.OutputRef
		Value types.Value
		Node  *list.Node
	}

	// Source is the read-only ledger view the builder operates on.
	Source interface {
		// RecordsByOwner returns the custody records owned by the
		// credential, i.e. the outputs at its programmable address.
		RecordsByOwner(ctx context.Context, owner types.Credential) ([]types.CustodyRecord, error)

		// Record resolves a single custody record by its output reference.
		Record(ctx context.Context, ref types.OutputRef) (*types.CustodyRecord, error)

		// OutputsByAddress returns the spendable outputs at a plain
		// (non-custody) address, e.g. the fee paying address.
		OutputsByAddress(ctx context.Context, addr types.Address) ([]types.TxInput, error)

		// ListNode returns the node with the exact key, or nil if the list
		// has no such node.
		ListNode(ctx context.Context, listPolicy []byte, key []byte) (*NodeRecord, error)

		// CoveringNode returns the node with node.Key < key <= node.Next:
		// the covering node proving absence for keys not in the list, the
		// predecessor for keys that are present (used when unlinking).
		// Nil if the list has no such node.
		CoveringNode(ctx context.Context, listPolicy []byte, key []byte) (*NodeRecord, error)

		// BootstrapParams returns the protocol bootstrap parameters.
		// Missing bootstrap data is a StateUnavailable condition.
		BootstrapParams(ctx context.Context) (*types.ProtocolParams, error)
	}
)

// TxInput converts the node record into a spendable transaction input at the
// list's script address, carrying the node datum.
func (r *NodeRecord) TxInput(listPolicy []byte) (types.TxInput, error) {
	datum, err := r.Node.Bytes()
	if err != nil {
		return types.TxInput{}, err
	}
	return types.TxInput{
		Ref: r.Ref,
		Output: types.TxOutput{
			Address: types.NewScriptAddress(listPolicy),
			Value:   r.Value.Clone(),
			Datum:   datum,
		},
	}, nil
}
