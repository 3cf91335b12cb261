package builder

import (
	"context"

	"github.com/progtoken-org/progtoken-go/coordinator"
	"github.com/progtoken-org/progtoken-go/substandard"
	"github.com/progtoken-org/progtoken-go/types"
)

// Mint plans minting additional quantity of a registered policy into the
// recipient's custody record. The registry node is supplied as a reference
// input so the issuance script can check the registration, and the policy's
// transfer logic authorizes the issuance.
func (e *Engine) Mint(ctx context.Context, params *types.ProtocolParams, req *types.MintRequest) (*substandard.Plan, error) {
	if err := req.IsValid(); err != nil {
		return nil, err
	}

	node, err := e.src.ListNode(ctx, params.RegistryPolicy, req.PolicyID)
	if err != nil {
		return nil, types.WrapError(types.CodeStateUnavailable, err, "reading registry node %X", req.PolicyID)
	}
	if node == nil {
		return nil, types.WrapError(types.CodeNotRegistered, types.ErrNotRegistered, "policy %X", req.PolicyID)
	}
	if node.Node.Datum == nil {
		return nil, types.NewError(types.CodeValidationRejected, "registry node %X carries no validator references", req.PolicyID)
	}

	plan := &types.TxPlan{Version: 1}

	refIn, err := node.TxInput(params.RegistryPolicy)
	if err != nil {
		return nil, err
	}
	plan.AddReferenceInput(refIn)

	asset := types.NewAssetID(req.PolicyID, req.AssetName)
	plan.Mints = append(plan.Mints, types.MintEntry{Asset: asset, Amount: int64(req.Quantity)})
	out, err := custodyOutput(params, req.Recipient, types.Value{{Asset: asset, Amount: req.Quantity}})
	if err != nil {
		return nil, err
	}
	plan.Outputs = append(plan.Outputs, out)

	if err := plan.AddInvocation(types.ScriptInvocation{ScriptHash: req.PolicyID, Purpose: types.PurposeMint}); err != nil {
		return nil, err
	}
	if err := requireLogic(plan, node.Node.Datum.TransferLogic, nil); err != nil {
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
		NodeKeysTouched: [][]byte{node.Node.Key},
	}, nil
}
