/*
Package freeze implements the freeze-and-seize substandard: every token policy
registered under it carries a shared denylist (a sorted on-ledger list keyed
on credential bytes) and an administrative seizure path.

A transfer involving a denylisted sender or recipient is rejected at build
time; an accepted transfer references the denylist nodes proving both parties
absent, so the on-ledger transfer logic can re-verify the same facts. The
denylist itself is maintained by the administrator fixed at list bootstrap.
*/
package freeze

import (
	"context"

	"github.com/progtoken-org/progtoken-go/builder"
	"github.com/progtoken-org/progtoken-go/cbor"
	"github.com/progtoken-org/progtoken-go/hash"
	"github.com/progtoken-org/progtoken-go/list"
	"github.com/progtoken-org/progtoken-go/state"
	"github.com/progtoken-org/progtoken-go/substandard"
	"github.com/progtoken-org/progtoken-go/types"
)

// ID is the substandard identifier registration requests select.
const ID = "freeze-and-seize"

// Substandard is one freeze-and-seize deployment: a denylist policy plus the
// administrator established when the denylist was bootstrapped.
type Substandard struct {
	engine *builder.Engine
	cfg    substandard.Config
}

func New(engine *builder.Engine, cfg substandard.Config) (*Substandard, error) {
	if len(cfg.ListPolicy) != hash.ScriptHashLength {
		return nil, types.NewError(types.CodeMalformedRequest, "denylist policy must be a %d byte script hash", hash.ScriptHashLength)
	}
	if len(cfg.AdminKeyHash) != hash.ScriptHashLength {
		return nil, types.NewError(types.CodeMalformedRequest, "admin key hash must be %d bytes", hash.ScriptHashLength)
	}
	return &Substandard{engine: engine, cfg: cfg}, nil
}

// Factory adapts New to the registry's factory signature.
func Factory(engine *builder.Engine) substandard.Factory {
	return func(cfg substandard.Config) (substandard.Substandard, error) {
		return New(engine, cfg)
	}
}

func (s *Substandard) ID() string { return ID }

func (s *Substandard) BuildRegistration(ctx context.Context, _ state.Source, params *types.ProtocolParams, req *types.RegisterRequest) (*substandard.Plan, error) {
	return s.engine.Register(ctx, params, req)
}

func (s *Substandard) BuildMint(ctx context.Context, _ state.Source, params *types.ProtocolParams, req *types.MintRequest) (*substandard.Plan, error) {
	return s.engine.Mint(ctx, params, req)
}

// BuildBurn destroys tokens out of the owner's custody records. A denylisted
// owner cannot burn: frozen funds stay frozen until removed from the list or
// seized.
func (s *Substandard) BuildBurn(ctx context.Context, _ state.Source, params *types.ProtocolParams, req *types.BurnRequest) (*substandard.Plan, error) {
	if err := req.IsValid(); err != nil {
		return nil, err
	}
	if err := s.requireAbsent(ctx, req.Owner); err != nil {
		return nil, err
	}
	return s.engine.Burn(ctx, params, req)
}

// BuildTransfer rejects transfers touching a denylisted party and otherwise
// supplies the transfer logic's redeemer: absence proofs for the sender and
// the recipient, referencing the denylist nodes covering their keys.
func (s *Substandard) BuildTransfer(ctx context.Context, _ state.Source, params *types.ProtocolParams, req *types.TransferRequest) (*substandard.Plan, error) {
	return s.engine.Transfer(ctx, params, req, s.authorizeTransfer)
}

func (s *Substandard) authorizeTransfer(ctx context.Context, plan *types.TxPlan, parties []types.Credential) (*builder.LogicAuth, error) {
	proofs := make([]list.Proof, 0, len(parties))
	for _, party := range parties {
		covering, err := s.absenceNode(ctx, party)
		if err != nil {
			return nil, err
		}
		refIn, err := covering.TxInput(s.cfg.ListPolicy)
		if err != nil {
			return nil, err
		}
		idx := plan.AddReferenceInput(refIn)
		proofs = append(proofs, list.Proof{Kind: list.ProofNotExists, NodeIndex: uint16(idx)})
	}
	redeemer, err := cbor.Marshal(proofs)
	if err != nil {
		return nil, types.WrapError(types.CodeValidationRejected, err, "encoding denylist proofs")
	}
	return &builder.LogicAuth{Redeemer: redeemer}, nil
}

// requireAbsent fails with ValidationRejected when the credential is on the
// denylist.
func (s *Substandard) requireAbsent(ctx context.Context, cred types.Credential) error {
	node, err := s.engine.Source().ListNode(ctx, s.cfg.ListPolicy, cred.Bytes())
	if err != nil {
		return types.WrapError(types.CodeStateUnavailable, err, "reading denylist node for %s", cred)
	}
	if node != nil {
		return types.NewError(types.CodeValidationRejected, "credential %s is denylisted", cred)
	}
	return nil
}

// absenceNode resolves the denylist node covering the credential's key,
// rejecting when the credential turns out to be listed.
func (s *Substandard) absenceNode(ctx context.Context, cred types.Credential) (*state.NodeRecord, error) {
	if err := s.requireAbsent(ctx, cred); err != nil {
		return nil, err
	}
	covering, err := s.engine.Source().CoveringNode(ctx, s.cfg.ListPolicy, cred.Bytes())
	if err != nil {
		return nil, types.WrapError(types.CodeStateUnavailable, err, "reading denylist covering node for %s", cred)
	}
	if covering == nil {
		return nil, types.NewError(types.CodeStateUnavailable, "denylist %X is not bootstrapped", s.cfg.ListPolicy)
	}
	return covering, nil
}

// BuildBlacklistInit bootstraps the deployment's denylist: the origin node
// and its marker, authorized by the fixed administrator.
func (s *Substandard) BuildBlacklistInit(ctx context.Context, _ state.Source, params *types.ProtocolParams) (*substandard.Plan, error) {
	return s.engine.ListInit(ctx, params, s.cfg.ListPolicy, s.admin())
}

func (s *Substandard) BuildBlacklistInsert(ctx context.Context, _ state.Source, params *types.ProtocolParams, req *types.BlacklistRequest) (*substandard.Plan, error) {
	if err := s.checkBlacklistRequest(req); err != nil {
		return nil, err
	}
	return s.engine.ListInsert(ctx, params, s.cfg.ListPolicy, req.Target.Bytes(), nil, req.Admin)
}

func (s *Substandard) BuildBlacklistRemove(ctx context.Context, _ state.Source, params *types.ProtocolParams, req *types.BlacklistRequest) (*substandard.Plan, error) {
	if err := s.checkBlacklistRequest(req); err != nil {
		return nil, err
	}
	return s.engine.ListRemove(ctx, params, s.cfg.ListPolicy, req.Target.Bytes(), req.Admin)
}

// BuildSeize moves everything a custody record holds under the policy to the
// recipient; the policy's admin logic recorded in the registry authorizes it.
func (s *Substandard) BuildSeize(ctx context.Context, _ state.Source, params *types.ProtocolParams, req *types.SeizeRequest) (*substandard.Plan, error) {
	return s.engine.Seize(ctx, params, req)
}

func (s *Substandard) admin() types.Credential {
	return types.NewKeyCredential(s.cfg.AdminKeyHash)
}

func (s *Substandard) checkBlacklistRequest(req *types.BlacklistRequest) error {
	if err := req.IsValid(); err != nil {
		return err
	}
	if string(req.PolicyID) != string(s.cfg.ListPolicy) {
		return types.NewError(types.CodeValidationRejected, "request targets denylist %X, deployment maintains %X", req.PolicyID, s.cfg.ListPolicy)
	}
	if !req.Admin.Eq(s.admin()) {
		return types.NewError(types.CodeValidationRejected, "credential %s is not the denylist administrator", req.Admin)
	}
	return nil
}
