package freeze_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/progtoken-org/progtoken-go/builder"
	"github.com/progtoken-org/progtoken-go/cbor"
	"github.com/progtoken-org/progtoken-go/list"
	"github.com/progtoken-org/progtoken-go/substandard"
	"github.com/progtoken-org/progtoken-go/substandard/freeze"
	"github.com/progtoken-org/progtoken-go/testutils"
	"github.com/progtoken-org/progtoken-go/types"
)

type env struct {
	params *types.ProtocolParams
	ledger *testutils.Ledger
	sub    *freeze.Substandard
	cfg    substandard.Config

	owner     *testutils.Signer
	recipient *testutils.Signer
	admin     *testutils.Signer

	transferLogic types.Credential
	policyID      []byte
	asset         types.AssetID
}

func newEnv(t *testing.T) *env {
	e := &env{
		params:    testutils.DefaultParams(),
		owner:     testutils.NewSigner(t, 1),
		recipient: testutils.NewSigner(t, 2),
		admin:     testutils.NewSigner(t, 3),
	}
	e.ledger = testutils.NewLedger(e.params)
	fee := testutils.NewSigner(t, 4)
	feeAddr := types.NewKeyAddress(fee.Credential().Hash)
	engine := builder.NewEngine(e.ledger, feeAddr, zerolog.Nop())

	e.cfg = substandard.Config{
		ListPolicy:   testutils.ScriptHash(0xd1),
		AdminKeyHash: e.admin.Credential().Hash,
	}
	sub, err := freeze.New(engine, e.cfg)
	require.NoError(t, err)
	e.sub = sub

	e.transferLogic = types.NewScriptCredential(testutils.ScriptHash(0x71))
	e.policyID = types.DerivePolicyID(e.params.IssuanceTemplate, e.transferLogic.Hash)
	e.asset = types.NewAssetID(e.policyID, []byte("token"))

	testutils.BootstrapList(e.ledger, e.params.RegistryPolicy)
	testutils.BootstrapList(e.ledger, e.cfg.ListPolicy)
	testutils.FundFees(e.ledger, feeAddr, 1000)

	// registered policy under this substandard
	origin := list.NewOriginNode(nil)
	origin.Next = e.policyID
	e.ledger.PutNode(e.params.RegistryPolicy, origin)
	e.ledger.PutNode(e.params.RegistryPolicy, &list.Node{
		Key:  e.policyID,
		Next: list.SentinelNext,
		Datum: &list.RegistryDatum{
			TransferLogic: e.transferLogic,
			AdminLogic:    e.admin.Credential(),
		},
	})
	return e
}

// denylist puts the credential on the deployment's denylist, splitting the
// covering node the way a confirmed blacklist insert would.
func (e *env) denylist(t *testing.T, cred types.Credential) {
	rec, err := e.ledger.CoveringNode(context.Background(), e.cfg.ListPolicy, cred.Bytes())
	require.NoError(t, err)
	require.NotNil(t, rec)
	plan, err := list.PlanInsertAt(rec.Node, cred.Bytes(), nil)
	require.NoError(t, err)
	e.ledger.PutNode(e.cfg.ListPolicy, plan.UpdatedCovering)
	e.ledger.PutNode(e.cfg.ListPolicy, plan.NewNode)
}

func (e *env) transferRequest() *types.TransferRequest {
	return &types.TransferRequest{
		Sender:    e.owner.Credential(),
		Unit:      e.asset,
		Quantity:  7,
		Recipient: e.recipient.Credential(),
	}
}

func TestBuildTransfer(t *testing.T) {
	ctx := context.Background()

	t.Run("carries denylist absence proofs in the logic redeemer", func(t *testing.T) {
		e := newEnv(t)
		e.ledger.AddRecord(e.owner.Credential(), types.NewValue(5, types.AssetQuantity{Asset: e.asset, Amount: 10}))

		plan, err := e.sub.BuildTransfer(ctx, e.ledger, e.params, e.transferRequest())
		require.NoError(t, err)

		var logicRedeemer cbor.RawCBOR
		for _, inv := range plan.Tx.Invocations {
			if string(inv.ScriptHash) == string(e.transferLogic.Hash) {
				logicRedeemer = inv.Redeemer
			}
		}
		require.NotNil(t, logicRedeemer, "transfer logic must be invoked with the denylist proofs")

		var proofs []list.Proof
		require.NoError(t, cbor.Unmarshal(logicRedeemer, &proofs))
		require.Len(t, proofs, 2, "one absence proof per party")
		for _, p := range proofs {
			require.Equal(t, list.ProofNotExists, p.Kind)
			require.Less(t, int(p.NodeIndex), len(plan.Tx.ReferenceInputs))
		}
	})

	t.Run("denylisted sender is rejected", func(t *testing.T) {
		e := newEnv(t)
		e.ledger.AddRecord(e.owner.Credential(), types.NewValue(5, types.AssetQuantity{Asset: e.asset, Amount: 10}))
		e.denylist(t, e.owner.Credential())

		_, err := e.sub.BuildTransfer(ctx, e.ledger, e.params, e.transferRequest())
		require.ErrorIs(t, err, types.ErrValidationRejected)
		require.ErrorContains(t, err, "denylisted")
	})

	t.Run("denylisted recipient is rejected", func(t *testing.T) {
		e := newEnv(t)
		e.ledger.AddRecord(e.owner.Credential(), types.NewValue(5, types.AssetQuantity{Asset: e.asset, Amount: 10}))
		e.denylist(t, e.recipient.Credential())

		_, err := e.sub.BuildTransfer(ctx, e.ledger, e.params, e.transferRequest())
		require.ErrorIs(t, err, types.ErrValidationRejected)
	})

	t.Run("denylist removal restores the transfer", func(t *testing.T) {
		e := newEnv(t)
		e.ledger.AddRecord(e.owner.Credential(), types.NewValue(5, types.AssetQuantity{Asset: e.asset, Amount: 10}))
		e.denylist(t, e.owner.Credential())
		_, err := e.sub.BuildTransfer(ctx, e.ledger, e.params, e.transferRequest())
		require.Error(t, err)

		// confirmed removal: merge back into the origin
		e.ledger.DropNode(e.cfg.ListPolicy, e.owner.Credential().Bytes())
		e.ledger.PutNode(e.cfg.ListPolicy, list.NewOriginNode(nil))
		_, err = e.sub.BuildTransfer(ctx, e.ledger, e.params, e.transferRequest())
		require.NoError(t, err)
	})
}

func TestBuildBurn(t *testing.T) {
	ctx := context.Background()

	t.Run("denylisted owner cannot burn", func(t *testing.T) {
		e := newEnv(t)
		e.ledger.AddRecord(e.owner.Credential(), types.NewValue(5, types.AssetQuantity{Asset: e.asset, Amount: 10}))
		e.denylist(t, e.owner.Credential())

		_, err := e.sub.BuildBurn(ctx, e.ledger, e.params, &types.BurnRequest{
			Owner:    e.owner.Credential(),
			Unit:     e.asset,
			Quantity: 4,
		})
		require.ErrorIs(t, err, types.ErrValidationRejected)
	})

	t.Run("clean owner burns normally", func(t *testing.T) {
		e := newEnv(t)
		e.ledger.AddRecord(e.owner.Credential(), types.NewValue(5, types.AssetQuantity{Asset: e.asset, Amount: 10}))
		plan, err := e.sub.BuildBurn(ctx, e.ledger, e.params, &types.BurnRequest{
			Owner:    e.owner.Credential(),
			Unit:     e.asset,
			Quantity: 4,
		})
		require.NoError(t, err)
		burned, err := plan.Tx.BurnedValue()
		require.NoError(t, err)
		require.EqualValues(t, 4, burned.Get(e.asset))
	})
}

func TestBlacklistMaintenance(t *testing.T) {
	ctx := context.Background()

	blacklistReq := func(e *env, target types.Credential) *types.BlacklistRequest {
		return &types.BlacklistRequest{
			PolicyID: e.cfg.ListPolicy,
			Target:   target,
			Admin:    e.admin.Credential(),
		}
	}

	t.Run("insert splits the covering node", func(t *testing.T) {
		e := newEnv(t)
		target := e.owner.Credential()
		plan, err := e.sub.BuildBlacklistInsert(ctx, e.ledger, e.params, blacklistReq(e, target))
		require.NoError(t, err)

		minted, err := plan.Tx.MintedValue()
		require.NoError(t, err)
		require.EqualValues(t, 1, minted.Get(list.MarkerAsset(e.cfg.ListPolicy, target.Bytes())))
		require.True(t, plan.Tx.RequiresSigner(e.admin.Credential().Hash))
		require.Len(t, plan.NodeKeysTouched, 2, "covering node key plus the new key")
	})

	t.Run("insert of a listed credential fails", func(t *testing.T) {
		e := newEnv(t)
		target := e.owner.Credential()
		e.denylist(t, target)
		_, err := e.sub.BuildBlacklistInsert(ctx, e.ledger, e.params, blacklistReq(e, target))
		require.ErrorIs(t, err, types.ErrDuplicateKey)
	})

	t.Run("remove burns the node marker", func(t *testing.T) {
		e := newEnv(t)
		target := e.owner.Credential()
		e.denylist(t, target)

		plan, err := e.sub.BuildBlacklistRemove(ctx, e.ledger, e.params, blacklistReq(e, target))
		require.NoError(t, err)
		burned, err := plan.Tx.BurnedValue()
		require.NoError(t, err)
		require.EqualValues(t, 1, burned.Get(list.MarkerAsset(e.cfg.ListPolicy, target.Bytes())))
	})

	t.Run("remove of an unlisted credential fails", func(t *testing.T) {
		e := newEnv(t)
		_, err := e.sub.BuildBlacklistRemove(ctx, e.ledger, e.params, blacklistReq(e, e.owner.Credential()))
		require.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("only the fixed administrator may maintain the list", func(t *testing.T) {
		e := newEnv(t)
		req := blacklistReq(e, e.owner.Credential())
		req.Admin = e.recipient.Credential()
		_, err := e.sub.BuildBlacklistInsert(ctx, e.ledger, e.params, req)
		require.ErrorIs(t, err, types.ErrValidationRejected)
		require.ErrorContains(t, err, "administrator")
	})

	t.Run("deployment maintains only its own denylist", func(t *testing.T) {
		e := newEnv(t)
		req := blacklistReq(e, e.owner.Credential())
		req.PolicyID = testutils.ScriptHash(0xd2)
		_, err := e.sub.BuildBlacklistInsert(ctx, e.ledger, e.params, req)
		require.ErrorIs(t, err, types.ErrValidationRejected)
	})

	t.Run("init bootstraps a fresh denylist", func(t *testing.T) {
		e := newEnv(t)
		e.ledger.DropNode(e.cfg.ListPolicy, nil)
		plan, err := e.sub.BuildBlacklistInit(ctx, e.ledger, e.params)
		require.NoError(t, err)
		minted, err := plan.Tx.MintedValue()
		require.NoError(t, err)
		require.EqualValues(t, 1, minted.Get(list.MarkerAsset(e.cfg.ListPolicy, nil)))
	})
}

func TestBuildSeize(t *testing.T) {
	ctx := context.Background()

	e := newEnv(t)
	ref := e.ledger.AddRecord(e.owner.Credential(), types.NewValue(5, types.AssetQuantity{Asset: e.asset, Amount: 10}))

	plan, err := e.sub.BuildSeize(ctx, e.ledger, e.params, &types.SeizeRequest{
		PolicyID:  e.policyID,
		TargetRef: ref,
		Recipient: e.recipient.Credential(),
	})
	require.NoError(t, err)
	require.True(t, plan.Tx.RequiresSigner(e.admin.Credential().Hash))
	seizedOut := plan.Tx.Outputs[1]
	require.EqualValues(t, 10, seizedOut.Value.Get(e.asset))
}

func TestSubstandardRegistry(t *testing.T) {
	e := newEnv(t)
	registry := substandard.NewRegistry()
	engine := builder.NewEngine(e.ledger, types.NewKeyAddress(testutils.ScriptHash(0x05)), zerolog.Nop())

	require.NoError(t, registry.Register(freeze.ID, freeze.Factory(engine)))
	require.Error(t, registry.Register(freeze.ID, freeze.Factory(engine)), "duplicate registration")

	sub, err := registry.New(freeze.ID, e.cfg)
	require.NoError(t, err)
	require.Equal(t, freeze.ID, sub.ID())
	_, ok := sub.(substandard.FreezeAndSeize)
	require.True(t, ok, "freeze-and-seize exposes the administrative extension")

	_, err = registry.New("unknown", e.cfg)
	require.ErrorIs(t, err, types.ErrNotFound)

	_, err = registry.New(freeze.ID, substandard.Config{})
	require.Error(t, err, "deployment config must carry the denylist policy and admin key")

	require.Equal(t, []string{freeze.ID}, registry.IDs())
}
