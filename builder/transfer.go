package builder

import (
	"context"

	"github.com/progtoken-org/progtoken-go/coordinator"
	"github.com/progtoken-org/progtoken-go/substandard"
	"github.com/progtoken-org/progtoken-go/types"
)

// Transfer plans moving quantity of a unit between custody records: the
// sender's records are consumed, the recipient gains a new record, the
// remainder returns to the sender. For a registered unit the registry node
// is referenced with an Exists proof and the policy's transfer logic is
// invoked (with the redeemer the substandard's authorizer supplies); for an
// unregistered unit the absence proof is referenced and no script beyond the
// coordinator runs.
func (e *Engine) Transfer(ctx context.Context, params *types.ProtocolParams, req *types.TransferRequest, auth TransferAuthorizer) (*substandard.Plan, error) {
	if err := req.IsValid(); err != nil {
		return nil, err
	}

	records, err := e.src.RecordsByOwner(ctx, req.Sender)
	if err != nil {
		return nil, types.WrapError(types.CodeStateUnavailable, err, "reading custody records of %s", req.Sender)
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

	moved := types.Value{{Asset: req.Unit, Amount: req.Quantity}}
	recipientOut, err := custodyOutput(params, req.Recipient, moved)
	if err != nil {
		return nil, err
	}
	plan.Outputs = append(plan.Outputs, recipientOut)

	change, err := selectedValue.Sub(moved)
	if err != nil {
		return nil, types.WrapError(types.CodeInsufficientFunds, types.ErrInsufficientFunds, "selected records do not cover the transfer")
	}
	if !change.IsZero() {
		changeOut, err := custodyOutput(params, req.Sender, change)
		if err != nil {
			return nil, err
		}
		plan.Outputs = append(plan.Outputs, changeOut)
	}

	proofs, registered, err := e.registryProofs(ctx, params, plan, selectedValue.Policies())
	if err != nil {
		return nil, err
	}

	// token-specific authorization: the substandard may veto the transfer
	// and supplies the redeemer for its transfer-logic invocation
	var logicAuth *LogicAuth
	if auth != nil && registered[string(req.Unit.Policy)] != nil {
		if logicAuth, err = auth(ctx, plan, []types.Credential{req.Sender, req.Recipient}); err != nil {
			return nil, err
		}
	}
	for policy, node := range registered {
		var redeemer []byte
		if logicAuth != nil && policy == string(req.Unit.Policy) {
			redeemer = logicAuth.Redeemer
		}
		if err := requireLogic(plan, node.Datum.TransferLogic, redeemer); err != nil {
			return nil, err
		}
	}
	if logicAuth != nil {
		for _, signer := range logicAuth.RequiredSigners {
			plan.AddRequiredSigner(signer)
		}
	}

	if err := requireOwnerAuth(plan, req.Sender); err != nil {
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
