package builder

import (
	"context"

	"github.com/progtoken-org/progtoken-go/coordinator"
	"github.com/progtoken-org/progtoken-go/list"
	"github.com/progtoken-org/progtoken-go/substandard"
	"github.com/progtoken-org/progtoken-go/types"
)

// Register plans the registration of a new programmable token policy: it
// inserts the derived policy ID into the registry's sorted list (consuming
// the covering node, producing the updated covering node and the new node
// with a freshly minted marker) and mints the initial token quantity into
// the recipient's custody record.
//
// The policy ID is re-derived from the fixed issuance template and the
// caller chosen validator reference and verified before emitting: a
// registration whose policy does not match the derivation must fail rather
// than silently proceed.
func (e *Engine) Register(ctx context.Context, params *types.ProtocolParams, req *types.RegisterRequest) (*substandard.Plan, error) {
	if err := req.IsValid(); err != nil {
		return nil, err
	}

	policyID := types.DerivePolicyID(params.IssuanceTemplate, req.TransferLogic.Hash)
	if err := types.VerifyPolicyID(policyID, params.IssuanceTemplate, req.TransferLogic.Hash); err != nil {
		return nil, err
	}

	if existing, err := e.src.ListNode(ctx, params.RegistryPolicy, policyID); err != nil {
		return nil, types.WrapError(types.CodeStateUnavailable, err, "reading registry node %X", policyID)
	} else if existing != nil {
		return nil, types.WrapError(types.CodeAlreadyRegistered, types.ErrAlreadyRegistered, "policy %X", policyID)
	}

	covering, err := e.src.CoveringNode(ctx, params.RegistryPolicy, policyID)
	if err != nil {
		return nil, types.WrapError(types.CodeStateUnavailable, err, "reading registry covering node for %X", policyID)
	}
	if covering == nil {
		return nil, types.NewError(types.CodeStateUnavailable, "registry is not bootstrapped")
	}

	insert, err := list.PlanInsertAt(covering.Node, policyID, &list.RegistryDatum{
		TransferLogic: req.TransferLogic,
		AdminLogic:    req.AdminLogic,
	})
	if err != nil {
		return nil, err
	}

	plan := &types.TxPlan{Version: 1}

	// consume the covering node, produce the split pair
	coveringIn, err := covering.TxInput(params.RegistryPolicy)
	if err != nil {
		return nil, err
	}
	plan.Inputs = append(plan.Inputs, coveringIn)
	updatedOut, err := nodeOutput(params, params.RegistryPolicy, insert.UpdatedCovering)
	if err != nil {
		return nil, err
	}
	newNodeOut, err := nodeOutput(params, params.RegistryPolicy, insert.NewNode)
	if err != nil {
		return nil, err
	}
	plan.Outputs = append(plan.Outputs, updatedOut, newNodeOut)

	// mint the new node's marker and the initial token quantity
	plan.Mints = append(plan.Mints,
		types.MintEntry{Asset: list.MarkerAsset(params.RegistryPolicy, policyID), Amount: 1},
		types.MintEntry{Asset: types.NewAssetID(policyID, req.AssetName), Amount: int64(req.Quantity)},
	)
	tokenOut, err := custodyOutput(params, req.RecipientOrOwner(),
		types.Value{{Asset: types.NewAssetID(policyID, req.AssetName), Amount: req.Quantity}})
	if err != nil {
		return nil, err
	}
	plan.Outputs = append(plan.Outputs, tokenOut)

	// the registry script validates the node split and marker mint, the
	// issuance script validates the token mint against the registration
	if err := plan.AddInvocation(types.ScriptInvocation{ScriptHash: params.RegistryPolicy, Purpose: types.PurposeMint}); err != nil {
		return nil, err
	}
	if err := plan.AddInvocation(types.ScriptInvocation{ScriptHash: policyID, Purpose: types.PurposeMint}); err != nil {
		return nil, err
	}
	if err := requireOwnerAuth(plan, req.Owner); err != nil {
		return nil, err
	}

	if err := e.balance(ctx, params, plan); err != nil {
		return nil, err
	}
	if err := e.selfCheck(params, plan, coordinator.NewTransferRedeemer(nil)); err != nil {
		return nil, err
	}

	return &substandard.Plan{
		Tx:              plan,
		NewPolicyID:     policyID,
		NodeKeysTouched: [][]byte{insert.Covering.Key, policyID},
	}, nil
}
