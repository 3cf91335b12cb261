package builder

import (
	"context"

	"github.com/progtoken-org/progtoken-go/coordinator"
	"github.com/progtoken-org/progtoken-go/list"
	"github.com/progtoken-org/progtoken-go/substandard"
	"github.com/progtoken-org/progtoken-go/types"
)

// List maintenance operations shared by every sorted-list deployment
// (substandard denylists, and in principle any future list). All three are
// compare-and-swap operations: the consumed node outputs are whichever the
// snapshot served, and a concurrent change to the same region surfaces as
// Conflict on submission, resolved by the Builder's retry.

// ListInit plans the bootstrap of a new list: the origin node (empty key
// pointing at the sentinel) with its marker, minted once by the list policy.
func (e *Engine) ListInit(ctx context.Context, params *types.ProtocolParams, listPolicy []byte, admin types.Credential) (*substandard.Plan, error) {
	origin := list.NewOriginNode(nil)

	plan := &types.TxPlan{Version: 1}
	out, err := nodeOutput(params, listPolicy, origin)
	if err != nil {
		return nil, err
	}
	plan.Outputs = append(plan.Outputs, out)
	plan.Mints = append(plan.Mints, types.MintEntry{Asset: list.MarkerAsset(listPolicy, origin.Key), Amount: 1})

	if err := plan.AddInvocation(types.ScriptInvocation{ScriptHash: listPolicy, Purpose: types.PurposeMint}); err != nil {
		return nil, err
	}
	if err := requireLogic(plan, admin, nil); err != nil {
		return nil, err
	}

	if err := e.balance(ctx, params, plan); err != nil {
		return nil, err
	}
	if err := e.selfCheck(params, plan, coordinator.NewTransferRedeemer(nil)); err != nil {
		return nil, err
	}
	return &substandard.Plan{Tx: plan, NodeKeysTouched: [][]byte{origin.Key}}, nil
}

// RegistryInit plans the bootstrap of the protocol's asset registry.
func (e *Engine) RegistryInit(ctx context.Context, params *types.ProtocolParams, admin types.Credential) (*substandard.Plan, error) {
	return e.ListInit(ctx, params, params.RegistryPolicy, admin)
}

// ListInsert plans splitting the covering node around the new key.
func (e *Engine) ListInsert(ctx context.Context, params *types.ProtocolParams, listPolicy, key []byte, datum *list.RegistryDatum, admin types.Credential) (*substandard.Plan, error) {
	if existing, err := e.src.ListNode(ctx, listPolicy, key); err != nil {
		return nil, types.WrapError(types.CodeStateUnavailable, err, "reading list node %X", key)
	} else if existing != nil {
		return nil, types.WrapError(types.CodeDuplicateKey, types.ErrDuplicateKey, "key %X is already in the list", key)
	}
	covering, err := e.src.CoveringNode(ctx, listPolicy, key)
	if err != nil {
		return nil, types.WrapError(types.CodeStateUnavailable, err, "reading covering node for %X", key)
	}
	if covering == nil {
		return nil, types.NewError(types.CodeStateUnavailable, "list %X is not bootstrapped", listPolicy)
	}

	insert, err := list.PlanInsertAt(covering.Node, key, datum)
	if err != nil {
		return nil, err
	}

	plan := &types.TxPlan{Version: 1}
	coveringIn, err := covering.TxInput(listPolicy)
	if err != nil {
		return nil, err
	}
	plan.Inputs = append(plan.Inputs, coveringIn)
	updatedOut, err := nodeOutput(params, listPolicy, insert.UpdatedCovering)
	if err != nil {
		return nil, err
	}
	newOut, err := nodeOutput(params, listPolicy, insert.NewNode)
	if err != nil {
		return nil, err
	}
	plan.Outputs = append(plan.Outputs, updatedOut, newOut)
	plan.Mints = append(plan.Mints, types.MintEntry{Asset: list.MarkerAsset(listPolicy, key), Amount: 1})

	if err := plan.AddInvocation(types.ScriptInvocation{ScriptHash: listPolicy, Purpose: types.PurposeMint}); err != nil {
		return nil, err
	}
	if err := requireLogic(plan, admin, nil); err != nil {
		return nil, err
	}

	if err := e.balance(ctx, params, plan); err != nil {
		return nil, err
	}
	if err := e.selfCheck(params, plan, coordinator.NewTransferRedeemer(nil)); err != nil {
		return nil, err
	}
	return &substandard.Plan{Tx: plan, NodeKeysTouched: [][]byte{insert.Covering.Key, key}}, nil
}

// ListRemove plans merging the target node back into its predecessor and
// burning the target's marker.
func (e *Engine) ListRemove(ctx context.Context, params *types.ProtocolParams, listPolicy, key []byte, admin types.Credential) (*substandard.Plan, error) {
	target, err := e.src.ListNode(ctx, listPolicy, key)
	if err != nil {
		return nil, types.WrapError(types.CodeStateUnavailable, err, "reading list node %X", key)
	}
	if target == nil {
		return nil, types.WrapError(types.CodeNotFound, types.ErrNotFound, "key %X is not in the list", key)
	}
	prev, err := e.src.CoveringNode(ctx, listPolicy, key)
	if err != nil {
		return nil, types.WrapError(types.CodeStateUnavailable, err, "reading predecessor of %X", key)
	}
	if prev == nil {
		return nil, types.NewError(types.CodeStateUnavailable, "list %X has no predecessor node for %X", listPolicy, key)
	}

	remove, err := list.PlanRemoveAt(listPolicy, prev.Node, target.Node)
	if err != nil {
		return nil, err
	}

	plan := &types.TxPlan{Version: 1}
	prevIn, err := prev.TxInput(listPolicy)
	if err != nil {
		return nil, err
	}
	targetIn, err := target.TxInput(listPolicy)
	if err != nil {
		return nil, err
	}
	plan.Inputs = append(plan.Inputs, prevIn, targetIn)
	updatedOut, err := nodeOutput(params, listPolicy, remove.UpdatedPrev)
	if err != nil {
		return nil, err
	}
	plan.Outputs = append(plan.Outputs, updatedOut)
	plan.Mints = append(plan.Mints, types.MintEntry{Asset: remove.MarkerBurn, Amount: -1})

	if err := plan.AddInvocation(types.ScriptInvocation{ScriptHash: listPolicy, Purpose: types.PurposeMint}); err != nil {
		return nil, err
	}
	if err := requireLogic(plan, admin, nil); err != nil {
		return nil, err
	}

	if err := e.balance(ctx, params, plan); err != nil {
		return nil, err
	}
	if err := e.selfCheck(params, plan, coordinator.NewTransferRedeemer(nil)); err != nil {
		return nil, err
	}
	return &substandard.Plan{Tx: plan, NodeKeysTouched: [][]byte{remove.Prev.Key, key}}, nil
}
