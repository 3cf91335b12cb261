package list

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/progtoken-org/progtoken-go/types"
)

type (
	// List is the off-ledger mirror of one on-ledger sorted list: nodes
	// indexed by key for O(1) exact lookup plus a sorted key slice for
	// O(log n) covering lookup. The mirror is a point-in-time snapshot;
	// a plan computed against it can lose the race once submitted, which
	// surfaces as Conflict and is resolved by re-reading state.
	List struct {
		policy []byte
		nodes  map[string]*Node
		keys   []string
	}

	// InsertPlan is the node pair an insertion produces: the covering node
	// updated to point at the new key, and the new node taking over the
	// covering node's old successor. Both replace the consumed covering
	// node output in the same transaction.
	InsertPlan struct {
		Covering        *Node // consumed
		UpdatedCovering *Node // produced
		NewNode         *Node // produced, with a freshly minted marker
	}

	// RemovePlan merges two adjacent nodes back into one: the predecessor
	// is updated to point past the removed target, whose marker is burned.
	RemovePlan struct {
		Prev        *Node // consumed
		Target      *Node // consumed
		UpdatedPrev *Node // produced
		MarkerBurn  types.AssetID
	}
)

// New builds the mirror from a node snapshot and validates the chain:
// one origin, strictly increasing keys, no gaps, terminated by the sentinel.
func New(policy []byte, nodes []*Node) (*List, error) {
	l := &List{
		policy: bytes.Clone(policy),
		nodes:  make(map[string]*Node, len(nodes)),
	}
	for _, n := range nodes {
		if err := n.IsValid(); err != nil {
			return nil, fmt.Errorf("invalid node: %w", err)
		}
		k := string(n.Key)
		if _, ok := l.nodes[k]; ok {
			return nil, fmt.Errorf("duplicate node key %X", []byte(n.Key))
		}
		l.nodes[k] = n.Clone()
		l.keys = append(l.keys, k)
	}
	sort.Strings(l.keys)
	if len(l.keys) > 0 {
		if err := l.Validate(); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Policy returns the list's owning policy (marker minting policy).
func (l *List) Policy() []byte { return l.policy }

// Len returns the number of nodes, origin included.
func (l *List) Len() int { return len(l.keys) }

// Keys returns the node keys in sorted order.
func (l *List) Keys() [][]byte {
	res := make([][]byte, len(l.keys))
	for i, k := range l.keys {
		res[i] = []byte(k)
	}
	return res
}

// Validate checks the chain invariant: the nodes form one sorted chain from
// the origin to the sentinel with no gaps and no duplicates.
func (l *List) Validate() error {
	if len(l.keys) == 0 {
		return fmt.Errorf("list has no nodes")
	}
	if l.keys[0] != "" {
		return fmt.Errorf("list has no origin node")
	}
	for i, k := range l.keys {
		node := l.nodes[k]
		if i+1 < len(l.keys) {
			if !bytes.Equal(node.Next, []byte(l.keys[i+1])) {
				return fmt.Errorf("chain gap: node %X points at %X, next node is %X",
					[]byte(node.Key), []byte(node.Next), []byte(l.keys[i+1]))
			}
		} else if !bytes.Equal(node.Next, SentinelNext) {
			return fmt.Errorf("last node %X does not point at the sentinel", []byte(node.Key))
		}
	}
	return nil
}

// Find returns the node with the exact key.
func (l *List) Find(key []byte) (*Node, bool) {
	n, ok := l.nodes[string(key)]
	return n, ok
}

// FindCovering returns the unique node whose key/next bracket the queried
// key, plus its position in the sorted chain. Fails with DuplicateKey if the
// key is already present (no node can cover an existing key).
func (l *List) FindCovering(key []byte) (*Node, int, error) {
	if len(key) == 0 {
		return nil, 0, types.NewError(types.CodeMalformedRequest, "cannot cover the origin key")
	}
	if bytes.Compare(key, SentinelNext) >= 0 {
		return nil, 0, types.NewError(types.CodeMalformedRequest, "key %X is not below the sentinel", key)
	}
	if _, ok := l.nodes[string(key)]; ok {
		return nil, 0, types.WrapError(types.CodeDuplicateKey, types.ErrDuplicateKey, "key %X is already in the list", key)
	}
	if len(l.keys) == 0 {
		return nil, 0, types.NewError(types.CodeStateUnavailable, "list has no nodes")
	}
	// position of the first key greater than the queried one; the covering
	// node is its predecessor
	i := sort.SearchStrings(l.keys, string(key))
	if i == 0 {
		return nil, 0, types.NewError(types.CodeNotFound, "no node covers key %X", key)
	}
	node := l.nodes[l.keys[i-1]]
	if !node.Covers(key) {
		return nil, 0, types.NewError(types.CodeNotFound, "no node covers key %X", key)
	}
	return node, i - 1, nil
}

// BuildExistsProof proves membership of the key: the referenced node is an
// exact match. Fails with NotFound if the key is absent.
func (l *List) BuildExistsProof(key []byte) (*Node, Proof, error) {
	node, ok := l.Find(key)
	if !ok {
		return nil, Proof{}, types.WrapError(types.CodeNotFound, types.ErrNotFound, "key %X is not in the list", key)
	}
	return node, Proof{Kind: ProofExists}, nil
}

// BuildAbsenceProof proves non-membership of the key: the referenced node
// is the covering pair bracketing it. Fails with DuplicateKey if the key is
// present.
func (l *List) BuildAbsenceProof(key []byte) (*Node, Proof, error) {
	node, _, err := l.FindCovering(key)
	if err != nil {
		return nil, Proof{}, err
	}
	return node, Proof{Kind: ProofNotExists}, nil
}

// PlanInsert splits the covering node into the updated covering node and the
// new node. Fails with DuplicateKey if the key is already present.
func (l *List) PlanInsert(key []byte, datum *RegistryDatum) (*InsertPlan, error) {
	covering, _, err := l.FindCovering(key)
	if err != nil {
		return nil, err
	}
	return PlanInsertAt(covering, key, datum)
}

// PlanInsertAt plans an insertion against a single covering node snapshot,
// for builders that hold one node rather than the whole mirror. The covering
// node is re-checked: if it no longer brackets the key the snapshot is stale
// and the caller must re-read state (compare-and-swap semantics).
func PlanInsertAt(covering *Node, key []byte, datum *RegistryDatum) (*InsertPlan, error) {
	if bytes.Equal(covering.Key, key) {
		return nil, types.WrapError(types.CodeDuplicateKey, types.ErrDuplicateKey, "key %X is already in the list", key)
	}
	if !covering.Covers(key) {
		return nil, types.WrapError(types.CodeConflict, types.ErrConflict,
			"node [%X,%X) no longer covers key %X", []byte(covering.Key), []byte(covering.Next), key)
	}
	updated := covering.Clone()
	updated.Next = bytes.Clone(key)
	return &InsertPlan{
		Covering:        covering.Clone(),
		UpdatedCovering: updated,
		NewNode:         &Node{Key: bytes.Clone(key), Next: bytes.Clone(covering.Next), Datum: datum},
	}, nil
}

// PlanRemoveAt plans a removal against a predecessor/target node pair
// snapshot. Fails with Conflict if the two nodes are no longer adjacent.
func PlanRemoveAt(listPolicy []byte, prev, target *Node) (*RemovePlan, error) {
	if target.IsOrigin() {
		return nil, types.NewError(types.CodeMalformedRequest, "cannot remove the origin node")
	}
	if !bytes.Equal(prev.Next, target.Key) {
		return nil, types.WrapError(types.CodeConflict, types.ErrConflict,
			"node %X is no longer the predecessor of %X", []byte(prev.Key), []byte(target.Key))
	}
	updated := prev.Clone()
	updated.Next = bytes.Clone(target.Next)
	return &RemovePlan{
		Prev:        prev.Clone(),
		Target:      target.Clone(),
		UpdatedPrev: updated,
		MarkerBurn:  MarkerAsset(listPolicy, target.Key),
	}, nil
}

// PlanRemove merges the target node back into its predecessor and burns the
// target's marker. Fails with NotFound for absent keys; the origin node is
// never removable.
func (l *List) PlanRemove(key []byte) (*RemovePlan, error) {
	if len(key) == 0 {
		return nil, types.NewError(types.CodeMalformedRequest, "cannot remove the origin node")
	}
	target, ok := l.Find(key)
	if !ok {
		return nil, types.WrapError(types.CodeNotFound, types.ErrNotFound, "key %X is not in the list", key)
	}
	prev, err := l.predecessor(key)
	if err != nil {
		return nil, err
	}
	return PlanRemoveAt(l.policy, prev, target)
}

func (l *List) predecessor(key []byte) (*Node, error) {
	i := sort.SearchStrings(l.keys, string(key))
	if i == 0 {
		return nil, types.NewError(types.CodeNotFound, "key %X has no predecessor", key)
	}
	return l.nodes[l.keys[i-1]], nil
}

// Apply mutates the mirror with an insert plan (for snapshot maintenance and
// round-trip testing; the ledger applies the same change by consuming and
// producing node outputs).
func (l *List) Apply(plan *InsertPlan) error {
	k := string(plan.NewNode.Key)
	if _, ok := l.nodes[k]; ok {
		return types.WrapError(types.CodeDuplicateKey, types.ErrDuplicateKey, "key %X is already in the list", plan.NewNode.Key)
	}
	cov, ok := l.nodes[string(plan.UpdatedCovering.Key)]
	if !ok || !bytes.Equal(cov.Next, plan.Covering.Next) {
		return types.WrapError(types.CodeConflict, types.ErrConflict, "covering node %X changed", plan.Covering.Key)
	}
	l.nodes[string(plan.UpdatedCovering.Key)] = plan.UpdatedCovering.Clone()
	l.nodes[k] = plan.NewNode.Clone()
	l.keys = append(l.keys, k)
	sort.Strings(l.keys)
	return nil
}

// ApplyRemove mutates the mirror with a remove plan.
func (l *List) ApplyRemove(plan *RemovePlan) error {
	k := string(plan.Target.Key)
	if _, ok := l.nodes[k]; !ok {
		return types.WrapError(types.CodeNotFound, types.ErrNotFound, "key %X is not in the list", plan.Target.Key)
	}
	prev, ok := l.nodes[string(plan.Prev.Key)]
	if !ok || !bytes.Equal(prev.Next, plan.Target.Key) {
		return types.WrapError(types.CodeConflict, types.ErrConflict, "predecessor node %X changed", plan.Prev.Key)
	}
	delete(l.nodes, k)
	l.nodes[string(plan.UpdatedPrev.Key)] = plan.UpdatedPrev.Clone()
	for i, cur := range l.keys {
		if cur == k {
			l.keys = append(l.keys[:i], l.keys[i+1:]...)
			break
		}
	}
	return nil
}
