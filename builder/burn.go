package builder

import (
	"context"

	"github.com/progtoken-org/progtoken-go/coordinator"
	"github.com/progtoken-org/progtoken-go/substandard"
	"github.com/progtoken-org/progtoken-go/types"
)

// Burn plans destroying quantity of a registered asset out of the owner's
// custody records. The remaining value returns to the owner's custody
// address; the coordinator accepts the shrinkage because the burn is
// explicit in the plan's mint entries.
func (e *Engine) Burn(ctx context.Context, params *types.ProtocolParams, req *types.BurnRequest) (*substandard.Plan, error) {
	if err := req.IsValid(); err != nil {
		return nil, err
	}

	records, err := e.src.RecordsByOwner(ctx, req.Owner)
	if err != nil {
		return nil, types.WrapError(types.CodeStateUnavailable, err, "reading custody records of %s", req.Owner)
	}
	selected, err := selectRecords(records, req.Unit, req.Quantity)
	if err != nil {
		return nil, err
	}

	plan := &types.TxPlan{Version: 1}
	selectedValue := types.Value{}
	for _, rec := range selected {
		plan.Inputs = append(plan.Inputs, custodyInput(params, rec))
		if selectedValue, err = selectedValue.Add(rec.Value); err != nil {
			return nil, types.WrapError(types.CodeValidationRejected, err, "summing selected records")
		}
	}

	plan.Mints = append(plan.Mints, types.MintEntry{Asset: req.Unit, Amount: -int64(req.Quantity)})
	if err := plan.AddInvocation(types.ScriptInvocation{ScriptHash: req.Unit.Policy, Purpose: types.PurposeMint}); err != nil {
		return nil, err
	}

	change, err := selectedValue.Sub(types.Value{{Asset: req.Unit, Amount: req.Quantity}})
	if err != nil {
		return nil, types.WrapError(types.CodeInsufficientFunds, types.ErrInsufficientFunds, "selected records do not cover the burn")
	}
	if !change.IsZero() {
		changeOut, err := custodyOutput(params, req.Owner, change)
		if err != nil {
			return nil, err
		}
		plan.Outputs = append(plan.Outputs, changeOut)
	}

	policies := selectedValue.Policies()
	proofs, registered, err := e.registryProofs(ctx, params, plan, policies)
	if err != nil {
		return nil, err
	}
	if registered[string(req.Unit.Policy)] == nil {
		return nil, types.WrapError(types.CodeNotRegistered, types.ErrNotRegistered, "policy %X", req.Unit.Policy)
	}
	for _, node := range registered {
		if err := requireLogic(plan, node.Datum.TransferLogic, nil); err != nil {
			return nil, err
		}
	}

	if err := requireOwnerAuth(plan, req.Owner); err != nil {
		return nil, err
	}
	red := coordinator.NewTransferRedeemer(proofs)
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
