package coordinator

import (
	"github.com/progtoken-org/progtoken-go/types"
)

// Guard is the lightweight per-UTXO validator attached to every custody
// record. It performs no expensive checks of its own: it demands exactly one
// invocation of the coordinator script in the transaction and defers to a
// single coordinator run shared by all guarded inputs. This keeps the cost
// of validating a transaction independent of its custody input count.
type Guard struct {
	coordinatorScript []byte
	validator         TxValidator

	done bool
	err  error
}

func NewGuard(coordinatorScript []byte, validator TxValidator) *Guard {
	return &Guard{coordinatorScript: coordinatorScript, validator: validator}
}

// CheckInput validates the spending of one custody input. The coordinator
// itself runs at most once per guard lifetime; subsequent inputs reuse the
// memoized verdict.
func (g *Guard) CheckInput(view *TxView, red *Redeemer, inputIndex int) error {
	if view == nil || view.Plan == nil {
		return types.NewError(types.CodeValidationRejected, "transaction view is incomplete")
	}
	if inputIndex < 0 || inputIndex >= len(view.Plan.Inputs) {
		return types.NewError(types.CodeValidationRejected, "input index %d is out of range", inputIndex)
	}
	if n := view.Plan.InvocationCount(g.coordinatorScript); n != 1 {
		return types.NewError(types.CodeValidationRejected,
			"coordinator must be invoked exactly once per transaction, found %d invocations", n)
	}
	if !g.done {
		g.err = g.validator.Validate(view, red)
		g.done = true
	}
	return g.err
}
