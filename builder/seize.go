package builder

import (
	"bytes"
	"context"

	"github.com/progtoken-org/progtoken-go/coordinator"
	"github.com/progtoken-org/progtoken-go/substandard"
	"github.com/progtoken-org/progtoken-go/types"
	"github.com/progtoken-org/progtoken-go/util"
)

// Seize plans the administrative removal of all of a policy's tokens from
// one custody record, without the owner's consent. The victim's record is
// replaced 1:1 (same address, all other value preserved), the seized tokens
// move to the recipient's custody record, and the policy's administrative
// logic authorizes the transaction instead of the owner.
func (e *Engine) Seize(ctx context.Context, params *types.ProtocolParams, req *types.SeizeRequest) (*substandard.Plan, error) {
	if err := req.IsValid(); err != nil {
		return nil, err
	}

	target, err := e.src.Record(ctx, req.TargetRef)
	if err != nil {
		return nil, types.WrapError(types.CodeStateUnavailable, err, "reading record %s", req.TargetRef)
	}
	if target == nil {
		return nil, types.WrapError(types.CodeNotFound, types.ErrNotFound, "record %s", req.TargetRef)
	}

	// everything the record holds under the seized policy
	seizedValue := types.Value(util.FilterSlice(target.Value, func(q types.AssetQuantity) bool {
		return bytes.Equal(q.Asset.Policy, req.PolicyID)
	}))
	if seizedValue.IsZero() {
		return nil, types.NewError(types.CodeValidationRejected,
			"record %s holds nothing under policy %X, seizure would be a no-op", req.TargetRef, req.PolicyID)
	}

	plan := &types.TxPlan{Version: 1}
	plan.Inputs = append(plan.Inputs, custodyInput(params, *target))

	// the victim keeps everything but the seized assets, at the same address
	remainder, err := target.Value.Sub(seizedValue)
	if err != nil {
		return nil, types.WrapError(types.CodeValidationRejected, err, "computing victim remainder")
	}
	plan.Outputs = append(plan.Outputs, types.TxOutput{
		Address: params.CustodyAddress(target.Owner),
		Value:   remainder,
	})
	recipientOut, err := custodyOutput(params, req.Recipient, seizedValue)
	if err != nil {
		return nil, err
	}
	plan.Outputs = append(plan.Outputs, recipientOut)

	proofs, registered, err := e.registryProofs(ctx, params, plan, target.Value.Policies())
	if err != nil {
		return nil, err
	}
	seizedNode := registered[string(req.PolicyID)]
	if seizedNode == nil {
		return nil, types.WrapError(types.CodeNotRegistered, types.ErrNotRegistered, "policy %X", req.PolicyID)
	}
	for policy, node := range registered {
		logic := node.Datum.TransferLogic
		if policy == string(req.PolicyID) {
			logic = node.Datum.AdminLogic
		}
		if err := requireLogic(plan, logic, nil); err != nil {
			return nil, err
		}
	}

	red := coordinator.NewSeizeRedeemer(proofs, []coordinator.SeizePair{{InputIndex: 0, OutputIndex: 0}})
	if err := addCoordinator(params, plan, red); err != nil {
		return nil, err
	}

	if err := e.balance(ctx, params, plan); err != nil {
		return nil, err
	}
	if err := e.selfCheck(params, plan, red); err != nil {
		return nil, err
	}

	return &substandard.Plan{
		Tx:              plan,
		NodeKeysTouched: nodeKeys(registered),
	}, nil
}
