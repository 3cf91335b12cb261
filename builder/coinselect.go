package builder

import (
	"context"

	"github.com/progtoken-org/progtoken-go/types"
	"github.com/progtoken-org/progtoken-go/util"
)

// selectRecords accumulates custody records until the requested quantity of
// the unit is covered. Selection is deliberately simple: records holding the
// unit, in snapshot order, stopping as soon as the target is reached — never
// more inputs than necessary, to avoid fragmenting unrelated holdings.
func selectRecords(records []types.CustodyRecord, unit types.AssetID, quantity uint64) ([]types.CustodyRecord, error) {
	var (
		selected []types.CustodyRecord
		covered  uint64
	)
	for _, rec := range records {
		held := rec.Value.Get(unit)
		if held == 0 {
			continue
		}
		selected = append(selected, rec)
		sum, ok := util.SafeAdd(covered, held)
		if !ok {
			return nil, types.NewError(types.CodeValidationRejected, "selected quantity overflows for asset %s", unit)
		}
		covered = sum
		if covered >= quantity {
			return selected, nil
		}
	}
	return nil, types.WrapError(types.CodeInsufficientFunds, types.ErrInsufficientFunds,
		"need %d of %s, only %d available", quantity, unit, covered)
}

// balance covers the base currency gap (outputs + fee against inputs) from
// the fee paying address and returns any excess as change. Custody outputs'
// minimum value requirements are already baked into the outputs; this step
// only funds them.
func (e *Engine) balance(ctx context.Context, params *types.ProtocolParams, plan *types.TxPlan) error {
	plan.Fee = params.BaseFee

	needed, have, err := planTotals(plan)
	if err != nil {
		return err
	}

	// any non-base shortfall means the operation under-selected; that is a
	// builder bug surfaced as rejection rather than a fixable funding gap
	for _, q := range needed {
		if q.Asset.IsBase() {
			continue
		}
		if have.Get(q.Asset) < q.Amount {
			return types.NewError(types.CodeValidationRejected,
				"plan is short %d of %s before fee balancing", q.Amount-have.Get(q.Asset), q.Asset)
		}
	}

	if gap, ok := util.SafeSub(needed.Base(), have.Base()); ok && gap > 0 {
		feeInputs, err := e.src.OutputsByAddress(ctx, e.feeAddr)
		if err != nil {
			return types.WrapError(types.CodeStateUnavailable, err, "reading fee inputs at %s", e.feeAddr)
		}
		var covered uint64
		for _, in := range feeInputs {
			plan.Inputs = append(plan.Inputs, in)
			covered += in.Output.Value.Base()
			if covered >= gap {
				break
			}
		}
		if covered < gap {
			return types.WrapError(types.CodeInsufficientFunds, types.ErrInsufficientFunds,
				"fee address covers %d of the %d base currency gap", covered, gap)
		}
		if e.feeAddr.Payment.Tag == types.KeyCredential {
			plan.AddRequiredSigner(e.feeAddr.Payment.Hash)
		}
	}

	// recompute and return the excess to the fee address
	needed, have, err = planTotals(plan)
	if err != nil {
		return err
	}
	change, err := have.Sub(needed)
	if err != nil {
		return types.WrapError(types.CodeInsufficientFunds, types.ErrInsufficientFunds, "plan does not balance")
	}
	if !change.IsZero() {
		plan.Outputs = append(plan.Outputs, types.TxOutput{Address: e.feeAddr, Value: change})
	}
	return nil
}

// planTotals returns what the plan must provide (outputs + burns + fee) and
// what it provides (inputs + mints).
func planTotals(plan *types.TxPlan) (needed, have types.Value, err error) {
	if needed, err = plan.OutputValue(); err != nil {
		return nil, nil, err
	}
	burned, err := plan.BurnedValue()
	if err != nil {
		return nil, nil, err
	}
	if needed, err = needed.Add(burned); err != nil {
		return nil, nil, err
	}
	if needed, err = needed.Add(types.NewValue(plan.Fee)); err != nil {
		return nil, nil, err
	}
	if have, err = plan.InputValue(); err != nil {
		return nil, nil, err
	}
	minted, err := plan.MintedValue()
	if err != nil {
		return nil, nil, err
	}
	if have, err = have.Add(minted); err != nil {
		return nil, nil, err
	}
	return needed, have, nil
}
