/*
Package builder assembles unsigned ledger transactions for the programmable
token protocol: registration, mint, burn, transfer, denylist maintenance and
administrative seizure.

The builder works over a point-in-time ledger snapshot served by the external
state collaborator. It owns no lock: two concurrent builds targeting the same
covering list node both succeed locally but only one confirms, the other
surfaces as Conflict. Registration, insert and remove are therefore
compare-and-swap style operations; the Builder facade retries a bounded
number of times by re-reading state and recomputing before giving up.
*/
package builder

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/progtoken-org/progtoken-go/cbor"
	"github.com/progtoken-org/progtoken-go/coordinator"
	"github.com/progtoken-org/progtoken-go/list"
	"github.com/progtoken-org/progtoken-go/state"
	"github.com/progtoken-org/progtoken-go/types"
)

type (
	// Engine implements the single-attempt build algorithms. It never
	// retries; retry-on-conflict lives in the Builder facade.
	Engine struct {
		src     state.Source
		feeAddr types.Address
		log     zerolog.Logger
	}

	// LogicAuth is what a substandard contributes to a transfer: the
	// redeemer for its transfer-logic invocation and any signers it
	// requires. Reference inputs the logic needs (e.g. denylist covering
	// nodes) are appended to the plan by the authorizer itself.
	LogicAuth struct {
		Redeemer        cbor.RawCBOR
		RequiredSigners [][]byte
	}

	// TransferAuthorizer supplies token-specific authorization for a
	// transfer between the given parties. Returning a ValidationRejected
	// error vetoes the transfer.
	TransferAuthorizer func(ctx context.Context, plan *types.TxPlan, parties []types.Credential) (*LogicAuth, error)
)

func NewEngine(src state.Source, feeAddr types.Address, log zerolog.Logger) *Engine {
	return &Engine{src: src, feeAddr: feeAddr, log: log.With().Str("component", "builder").Logger()}
}

// Source exposes the engine's state collaborator to substandards built on
// top of the engine.
func (e *Engine) Source() state.Source { return e.src }

// custodyOutput builds a custody record output for the owner, topping the
// base currency up to the protocol minimum. The top-up is funded by the fee
// paying address during balancing.
func custodyOutput(params *types.ProtocolParams, owner types.Credential, val types.Value) (types.TxOutput, error) {
	if base := val.Base(); base < params.MinCustodyValue {
		topped, err := val.Add(types.NewValue(params.MinCustodyValue - base))
		if err != nil {
			return types.TxOutput{}, err
		}
		val = topped
	}
	return types.TxOutput{Address: params.CustodyAddress(owner), Value: val}, nil
}

// nodeOutput builds a list node output at the list's script address carrying
// the node datum and the node's authenticity marker.
func nodeOutput(params *types.ProtocolParams, listPolicy []byte, n *list.Node) (types.TxOutput, error) {
	datum, err := n.Bytes()
	if err != nil {
		return types.TxOutput{}, fmt.Errorf("encoding node datum: %w", err)
	}
	return types.TxOutput{
		Address: types.NewScriptAddress(listPolicy),
		Value: types.NewValue(params.MinCustodyValue,
			types.AssetQuantity{Asset: list.MarkerAsset(listPolicy, n.Key), Amount: 1}),
		Datum: datum,
	}, nil
}

// custodyInput resolves a custody record into a spendable input.
func custodyInput(params *types.ProtocolParams, rec types.CustodyRecord) types.TxInput {
	return types.TxInput{
		Ref: rec.Ref,
		Output: types.TxOutput{
			Address: params.CustodyAddress(rec.Owner),
			Value:   rec.Value.Clone(),
		},
	}
}

// registryProofs resolves one proof per policy, in the ascending policy
// order the coordinator expects, placing each node among the plan's
// reference inputs. Returns the proofs and the exact-match nodes by policy.
func (e *Engine) registryProofs(ctx context.Context, params *types.ProtocolParams, plan *types.TxPlan, policies [][]byte) ([]list.Proof, map[string]*list.Node, error) {
	var proofs []list.Proof
	registered := map[string]*list.Node{}
	for _, policy := range policies {
		rec, err := e.src.ListNode(ctx, params.RegistryPolicy, policy)
		if err != nil {
			return nil, nil, types.WrapError(types.CodeStateUnavailable, err, "reading registry node %X", policy)
		}
		kind := list.ProofExists
		if rec == nil {
			kind = list.ProofNotExists
			if rec, err = e.src.CoveringNode(ctx, params.RegistryPolicy, policy); err != nil {
				return nil, nil, types.WrapError(types.CodeStateUnavailable, err, "reading registry covering node for %X", policy)
			}
			if rec == nil {
				return nil, nil, types.NewError(types.CodeStateUnavailable, "registry has no node covering policy %X", policy)
			}
		}
		refIn, err := rec.TxInput(params.RegistryPolicy)
		if err != nil {
			return nil, nil, err
		}
		idx := plan.AddReferenceInput(refIn)
		proofs = append(proofs, list.Proof{Kind: kind, NodeIndex: uint16(idx)})
		if kind == list.ProofExists {
			if rec.Node.Datum == nil {
				return nil, nil, types.NewError(types.CodeValidationRejected, "registry node %X carries no validator references", policy)
			}
			registered[string(policy)] = rec.Node
		}
	}
	return proofs, registered, nil
}

// nodeKeys extracts the touched node keys for operation metadata.
func nodeKeys(registered map[string]*list.Node) [][]byte {
	res := make([][]byte, 0, len(registered))
	for k := range registered {
		res = append(res, []byte(k))
	}
	sort.Slice(res, func(i, j int) bool { return bytes.Compare(res[i], res[j]) < 0 })
	return res
}

// requireLogic wires the authorization a validator credential demands into
// the plan: script credentials get one invocation (with the redeemer, if
// any), key credentials become required signers.
func requireLogic(plan *types.TxPlan, logic types.Credential, redeemer cbor.RawCBOR) error {
	switch logic.Tag {
	case types.ScriptCredential:
		return plan.AddInvocation(types.ScriptInvocation{
			ScriptHash: logic.Hash,
			Purpose:    types.PurposeObserve,
			Redeemer:   redeemer,
		})
	case types.KeyCredential:
		plan.AddRequiredSigner(logic.Hash)
		return nil
	default:
		return types.NewError(types.CodeValidationRejected, "unknown credential tag %d", logic.Tag)
	}
}

// requireOwnerAuth wires the spending authorization of a custody owner.
func requireOwnerAuth(plan *types.TxPlan, owner types.Credential) error {
	return requireLogic(plan, owner, nil)
}

// addCoordinator attaches the single per-transaction coordinator invocation.
func addCoordinator(params *types.ProtocolParams, plan *types.TxPlan, red *coordinator.Redeemer) error {
	redBytes, err := red.Bytes()
	if err != nil {
		return err
	}
	return plan.AddInvocation(types.ScriptInvocation{
		ScriptHash: params.CoordinatorScript,
		Purpose:    types.PurposeObserve,
		Redeemer:   redBytes,
	})
}

// selfCheck runs the coordinator against the finished plan before emitting
// it. A plan that would fail ledger validation is never returned as if
// complete; required signers are trusted since the plan is unsigned.
func (e *Engine) selfCheck(params *types.ProtocolParams, plan *types.TxPlan, red *coordinator.Redeemer) error {
	coord, err := coordinator.New(params)
	if err != nil {
		return err
	}
	view := &coordinator.TxView{Plan: plan, TrustRequiredSigners: true}
	if err := coord.Validate(view, red); err != nil {
		return types.WrapError(types.CodeValidationRejected, err, "plan fails coordinator validation")
	}
	return nil
}
