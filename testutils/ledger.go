// Package testutils provides an in-memory ledger snapshot and deterministic
// signing helpers for tests.
package testutils

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/progtoken-org/progtoken-go/list"
	"github.com/progtoken-org/progtoken-go/state"
	"github.com/progtoken-org/progtoken-go/types"
)

// Ledger is an in-memory state.Source. It is a plain snapshot store: tests
// populate it, builders read it. Mutators may be called between builds to
// simulate state advancing under a retry loop.
type Ledger struct {
	mu      sync.Mutex
	params  *types.ProtocolParams
	records map[string]*types.CustodyRecord
	outputs map[string][]types.TxInput
	lists   map[string]map[string]*state.NodeRecord
	nextTx  uint64

	// FailNext makes the next FailNext reads fail with the given error,
	// simulating a snapshot that is temporarily unavailable.
	FailNext int
	FailWith error
}

func NewLedger(params *types.ProtocolParams) *Ledger {
	return &Ledger{
		params:  params,
		records: map[string]*types.CustodyRecord{},
		outputs: map[string][]types.TxInput{},
		lists:   map[string]map[string]*state.NodeRecord{},
	}
}

// NextRef hands out a unique output reference.
func (l *Ledger) NextRef() types.OutputRef {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextTx++
	txID := make([]byte, 32)
	binary.BigEndian.PutUint64(txID[24:], l.nextTx)
	return types.OutputRef{TxID: txID}
}

// AddRecord places a custody record on the ledger and returns its reference.
func (l *Ledger) AddRecord(owner types.Credential, val types.Value) types.OutputRef {
	ref := l.NextRef()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[ref.String()] = &types.CustodyRecord{Ref: ref, Owner: owner, Value: val}
	return ref
}

// RemoveRecord consumes a custody record, as a confirmed spend would.
func (l *Ledger) RemoveRecord(ref types.OutputRef) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, ref.String())
}

// AddOutput places a plain (non-custody) output at the address, typically the
// fee paying address.
func (l *Ledger) AddOutput(addr types.Address, val types.Value) types.OutputRef {
	ref := l.NextRef()
	l.mu.Lock()
	defer l.mu.Unlock()
	key := addr.String()
	l.outputs[key] = append(l.outputs[key], types.TxInput{
		Ref:    ref,
		Output: types.TxOutput{Address: addr, Value: val},
	})
	return ref
}

// PutNode places a list node on the ledger, replacing any node with the same
// key, and gives it a fresh reference and the node's authenticity marker.
func (l *Ledger) PutNode(listPolicy []byte, n *list.Node) types.OutputRef {
	ref := l.NextRef()
	l.mu.Lock()
	defer l.mu.Unlock()
	nodes := l.lists[string(listPolicy)]
	if nodes == nil {
		nodes = map[string]*state.NodeRecord{}
		l.lists[string(listPolicy)] = nodes
	}
	nodes[string(n.Key)] = &state.NodeRecord{
		Ref: ref,
		Value: types.NewValue(1,
			types.AssetQuantity{Asset: list.MarkerAsset(listPolicy, n.Key), Amount: 1}),
		Node: n.Clone(),
	}
	return ref
}

// DropNode removes a list node, as a confirmed unlink would.
func (l *Ledger) DropNode(listPolicy, key []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if nodes := l.lists[string(listPolicy)]; nodes != nil {
		delete(nodes, string(key))
	}
}

// SetParams replaces the bootstrap parameters.
func (l *Ledger) SetParams(params *types.ProtocolParams) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.params = params
}

func (l *Ledger) failing() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.FailNext > 0 {
		l.FailNext--
		if l.FailWith != nil {
			return l.FailWith
		}
		return fmt.Errorf("snapshot unavailable")
	}
	return nil
}

func (l *Ledger) RecordsByOwner(_ context.Context, owner types.Credential) ([]types.CustodyRecord, error) {
	if err := l.failing(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var res []types.CustodyRecord
	for _, rec := range l.records {
		if rec.Owner.Eq(owner) {
			res = append(res, *rec.Clone())
		}
	}
	return res, nil
}

func (l *Ledger) Record(_ context.Context, ref types.OutputRef) (*types.CustodyRecord, error) {
	if err := l.failing(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.records[ref.String()]
	if rec == nil {
		return nil, nil
	}
	return rec.Clone(), nil
}

func (l *Ledger) OutputsByAddress(_ context.Context, addr types.Address) ([]types.TxInput, error) {
	if err := l.failing(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]types.TxInput(nil), l.outputs[addr.String()]...), nil
}

func (l *Ledger) ListNode(_ context.Context, listPolicy, key []byte) (*state.NodeRecord, error) {
	if err := l.failing(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	nodes := l.lists[string(listPolicy)]
	rec := nodes[string(key)]
	if rec == nil {
		return nil, nil
	}
	return cloneNodeRecord(rec), nil
}

func (l *Ledger) CoveringNode(_ context.Context, listPolicy, key []byte) (*state.NodeRecord, error) {
	if err := l.failing(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, rec := range l.lists[string(listPolicy)] {
		if bytes.Compare(rec.Node.Key, key) < 0 && bytes.Compare(key, rec.Node.Next) <= 0 {
			return cloneNodeRecord(rec), nil
		}
	}
	return nil, nil
}

func cloneNodeRecord(rec *state.NodeRecord) *state.NodeRecord {
	return &state.NodeRecord{
		Ref:   types.OutputRef{TxID: bytes.Clone(rec.Ref.TxID), Index: rec.Ref.Index},
		Value: rec.Value.Clone(),
		Node:  rec.Node.Clone(),
	}
}

func (l *Ledger) BootstrapParams(_ context.Context) (*types.ProtocolParams, error) {
	if err := l.failing(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.params, nil
}
