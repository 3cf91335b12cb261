/*
Package coordinator implements the single per-transaction validation step of
the programmable token protocol.

Every custody record is guarded by a lightweight per-UTXO check (Guard) that
only demands one invocation of the coordinator for the whole transaction; the
coordinator then performs the expensive work once: it authorizes all custody
inputs, resolves one registry proof per distinct asset policy, and enforces
value conservation into custody outputs. Administrative seizure is a distinct
redeemer kind that swaps owner authorization for the token's administrative
logic on a declared set of input/output pairs.
*/
package coordinator

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/progtoken-org/progtoken-go/list"
	"github.com/progtoken-org/progtoken-go/types"
)

type (
	// TxValidator validates a complete transaction view. The coordinator is
	// the canonical implementation; the Guard delegates to one.
	TxValidator interface {
		Validate(view *TxView, red *Redeemer) error
	}

	Coordinator struct {
		params *types.ProtocolParams
	}

	// resolution is the outcome of the proof step: which policies are
	// registered (and under which node) and which pass through.
	resolution struct {
		registered map[string]*list.Node
	}
)

var _ TxValidator = (*Coordinator)(nil)

func New(params *types.ProtocolParams) (*Coordinator, error) {
	if err := params.IsValid(); err != nil {
		return nil, fmt.Errorf("invalid protocol params: %w", err)
	}
	return &Coordinator{params: params}, nil
}

// Validate runs the coordinator state machine over the view:
// CollectAuthorized -> ResolveProofs -> ConserveValue. The first violated
// invariant is returned; nothing is swallowed.
func (c *Coordinator) Validate(view *TxView, red *Redeemer) error {
	if view == nil || view.Plan == nil {
		return types.NewError(types.CodeValidationRejected, "transaction view is incomplete")
	}
	if err := red.IsValid(); err != nil {
		return err
	}

	custody := view.CustodyInputs(c.params.CustodyScript)

	seized := map[int]int{}
	var seizedPolicies [][]byte
	if red.Kind == KindSeize {
		var err error
		if seized, seizedPolicies, err = c.checkSeizure(view, red, custody); err != nil {
			return err
		}
	}

	if err := c.collectAuthorized(view, custody, seized); err != nil {
		return err
	}
	res, err := c.resolveProofs(view, red, custody, seizedPolicies)
	if err != nil {
		return err
	}
	return c.conserveValue(view, custody, res)
}

// collectAuthorized requires authorization for every custody input: key
// credentials by a matching signature, script credentials by one independent
// whole-transaction invocation. Seized inputs are exempt, their
// authorization is the administrative logic checked in the proof step.
func (c *Coordinator) collectAuthorized(view *TxView, custody []int, seized map[int]int) error {
	for _, i := range custody {
		if _, ok := seized[i]; ok {
			continue
		}
		in := view.Plan.Inputs[i]
		owner := in.Output.Address.Owner
		if owner == nil {
			return types.NewError(types.CodeValidationRejected, "custody input %s has no owner credential", in.Ref)
		}
		if err := c.requireAuthorized(view, *owner); err != nil {
			return types.WrapError(types.CodeValidationRejected, err, "custody input %s is not authorized", in.Ref)
		}
	}
	return nil
}

func (c *Coordinator) requireAuthorized(view *TxView, cred types.Credential) error {
	switch cred.Tag {
	case types.KeyCredential:
		ok, err := view.AuthorizedByKey(cred.Hash)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no valid signature for key credential %X", []byte(cred.Hash))
		}
	case types.ScriptCredential:
		// the script authorizes the whole transaction in one run, never
		// once per input
		if n := view.Plan.InvocationCount(cred.Hash); n != 1 {
			return fmt.Errorf("script credential %X must be invoked exactly once, found %d invocations", []byte(cred.Hash), n)
		}
	default:
		return fmt.Errorf("unknown credential tag %d", cred.Tag)
	}
	return nil
}

// resolveProofs requires exactly one registry proof per distinct non-base
// asset policy across the custody inputs. Proofs are matched to policies in
// ascending policy byte order. An Exists proof additionally requires the
// node's transfer logic (or, for seized policies, its administrative logic)
// to be independently invoked; a NotExists proof ends the checks for that
// policy, unregistered assets pass through ordinary ledger rules only.
func (c *Coordinator) resolveProofs(view *TxView, red *Redeemer, custody []int, seizedPolicies [][]byte) (*resolution, error) {
	policies := c.custodyPolicies(view, custody)
	if len(red.Proofs) != len(policies) {
		return nil, types.NewError(types.CodeValidationRejected,
			"expected %d registry proofs (one per distinct policy), got %d", len(policies), len(red.Proofs))
	}

	seized := map[string]bool{}
	for _, p := range seizedPolicies {
		seized[string(p)] = true
	}

	res := &resolution{registered: map[string]*list.Node{}}
	for i, policy := range policies {
		proof := red.Proofs[i]
		if int(proof.NodeIndex) >= len(view.Plan.ReferenceInputs) {
			return nil, types.NewError(types.CodeValidationRejected, "proof node index %d is out of range", proof.NodeIndex)
		}
		node, err := proof.Verify(policy, c.params.RegistryPolicy, view.Plan.ReferenceInputs[proof.NodeIndex])
		if err != nil {
			return nil, err
		}
		if proof.Kind == list.ProofNotExists {
			if seized[string(policy)] {
				return nil, types.NewError(types.CodeValidationRejected, "cannot seize unregistered policy %X", policy)
			}
			continue
		}
		if node.Datum == nil {
			return nil, types.NewError(types.CodeValidationRejected, "registry node %X carries no validator references", policy)
		}
		logic := node.Datum.TransferLogic
		if seized[string(policy)] {
			logic = node.Datum.AdminLogic
		}
		if err := c.requireAuthorized(view, logic); err != nil {
			return nil, types.WrapError(types.CodeValidationRejected, err, "validator of policy %X not satisfied", policy)
		}
		res.registered[string(policy)] = node
	}
	return res, nil
}

// custodyPolicies returns the distinct non-base policies over the custody
// inputs, sorted ascending.
func (c *Coordinator) custodyPolicies(view *TxView, custody []int) [][]byte {
	seen := map[string]bool{}
	var res [][]byte
	for _, i := range custody {
		for _, p := range view.Plan.Inputs[i].Output.Value.Policies() {
			if !seen[string(p)] {
				seen[string(p)] = true
				res = append(res, p)
			}
		}
	}
	sort.Slice(res, func(i, j int) bool { return bytes.Compare(res[i], res[j]) < 0 })
	return res
}

// conserveValue requires, per registered asset, that custody outputs (plus
// explicit burns) hold at least the summed custody input quantity: tokens
// may never leave custody to a non-custody address undetected.
func (c *Coordinator) conserveValue(view *TxView, custody []int, res *resolution) error {
	inSum := types.Value{}
	var err error
	for _, i := range custody {
		if inSum, err = inSum.Add(view.Plan.Inputs[i].Output.Value); err != nil {
			return types.WrapError(types.CodeValidationRejected, err, "summing custody inputs")
		}
	}
	outSum := types.Value{}
	for _, out := range view.Plan.Outputs {
		if out.Address.IsCustody(c.params.CustodyScript) {
			if outSum, err = outSum.Add(out.Value); err != nil {
				return types.WrapError(types.CodeValidationRejected, err, "summing custody outputs")
			}
		}
	}
	burned, err := view.Plan.BurnedValue()
	if err != nil {
		return types.WrapError(types.CodeValidationRejected, err, "summing burns")
	}
	if outSum, err = outSum.Add(burned); err != nil {
		return types.WrapError(types.CodeValidationRejected, err, "summing burns")
	}

	for _, q := range inSum {
		if !res.isRegistered(q.Asset.Policy) {
			continue
		}
		if held := outSum.Get(q.Asset); held < q.Amount {
			return types.NewError(types.CodeValidationRejected,
				"registered asset %s leaks custody: inputs hold %d, custody outputs %d", q.Asset, q.Amount, held)
		}
	}
	return nil
}

// checkSeizure validates the administrative path: strict 1:1 input/output
// correspondence preserving the victim's address and all non-seized value,
// with a non-empty difference (no-op seizures are rejected as spam).
// Returns the seized input set and the policies whose value was diminished.
func (c *Coordinator) checkSeizure(view *TxView, red *Redeemer, custody []int) (map[int]int, [][]byte, error) {
	isCustody := map[int]bool{}
	for _, i := range custody {
		isCustody[i] = true
	}

	seized := map[int]int{}
	usedOutputs := map[int]bool{}
	policySet := map[string]bool{}
	for _, pair := range red.Pairs {
		in, out := int(pair.InputIndex), int(pair.OutputIndex)
		if in >= len(view.Plan.Inputs) || out >= len(view.Plan.Outputs) {
			return nil, nil, types.NewError(types.CodeValidationRejected, "seizure pair (%d,%d) is out of range", in, out)
		}
		if _, dup := seized[in]; dup || usedOutputs[out] {
			return nil, nil, types.NewError(types.CodeValidationRejected, "seizure pairs must be strictly 1:1")
		}
		if !isCustody[in] {
			return nil, nil, types.NewError(types.CodeValidationRejected, "seized input %d is not a custody record", in)
		}
		victim := view.Plan.Inputs[in].Output
		replacement := view.Plan.Outputs[out]
		if !victim.Address.Eq(replacement.Address) {
			return nil, nil, types.NewError(types.CodeValidationRejected, "seizure must preserve the victim address")
		}
		diff, err := victim.Value.Sub(replacement.Value)
		if err != nil {
			return nil, nil, types.WrapError(types.CodeValidationRejected, err, "seizure output %d holds value the input did not", out)
		}
		if diff.IsZero() {
			return nil, nil, types.NewError(types.CodeValidationRejected, "no-op seizure: pre and post values are identical")
		}
		for _, q := range diff {
			if q.Asset.IsBase() {
				return nil, nil, types.NewError(types.CodeValidationRejected, "seizure may not take the victim's base currency")
			}
			policySet[string(q.Asset.Policy)] = true
		}
		seized[in] = out
		usedOutputs[out] = true
	}

	policies := make([][]byte, 0, len(policySet))
	for p := range policySet {
		policies = append(policies, []byte(p))
	}
	sort.Slice(policies, func(i, j int) bool { return bytes.Compare(policies[i], policies[j]) < 0 })
	return seized, policies, nil
}

func (r *resolution) isRegistered(policy []byte) bool {
	_, ok := r.registered[string(policy)]
	return ok
}
