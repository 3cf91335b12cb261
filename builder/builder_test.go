package builder_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/progtoken-org/progtoken-go/builder"
	"github.com/progtoken-org/progtoken-go/coordinator"
	"github.com/progtoken-org/progtoken-go/list"
	"github.com/progtoken-org/progtoken-go/state"
	"github.com/progtoken-org/progtoken-go/substandard"
	"github.com/progtoken-org/progtoken-go/substandard/freeze"
	"github.com/progtoken-org/progtoken-go/testutils"
	"github.com/progtoken-org/progtoken-go/types"
)

type env struct {
	params *types.ProtocolParams
	ledger *testutils.Ledger
	engine *builder.Engine

	owner     *testutils.Signer
	recipient *testutils.Signer
	fee       *testutils.Signer
	feeAddr   types.Address

	transferLogic types.Credential
	adminLogic    types.Credential
	policyID      []byte
	asset         types.AssetID
}

func newEnv(t *testing.T) *env {
	e := &env{
		params:    testutils.DefaultParams(),
		owner:     testutils.NewSigner(t, 1),
		recipient: testutils.NewSigner(t, 2),
		fee:       testutils.NewSigner(t, 3),
	}
	e.feeAddr = types.NewKeyAddress(e.fee.Credential().Hash)
	e.ledger = testutils.NewLedger(e.params)
	e.engine = builder.NewEngine(e.ledger, e.feeAddr, zerolog.Nop())

	e.transferLogic = types.NewScriptCredential(testutils.ScriptHash(0x71))
	e.adminLogic = testutils.NewSigner(t, 4).Credential()
	e.policyID = types.DerivePolicyID(e.params.IssuanceTemplate, e.transferLogic.Hash)
	e.asset = types.NewAssetID(e.policyID, []byte("token"))

	testutils.BootstrapList(e.ledger, e.params.RegistryPolicy)
	testutils.FundFees(e.ledger, e.feeAddr, 1000)
	return e
}

// registerPolicy places the policy's registry node directly on the ledger, as
// a confirmed registration would.
func (e *env) registerPolicy() {
	origin := list.NewOriginNode(nil)
	origin.Next = e.policyID
	e.ledger.PutNode(e.params.RegistryPolicy, origin)
	e.ledger.PutNode(e.params.RegistryPolicy, &list.Node{
		Key:  e.policyID,
		Next: list.SentinelNext,
		Datum: &list.RegistryDatum{
			TransferLogic: e.transferLogic,
			AdminLogic:    e.adminLogic,
		},
	})
}

func (e *env) registerRequest() *types.RegisterRequest {
	return &types.RegisterRequest{
		SubstandardID: freeze.ID,
		Owner:         e.owner.Credential(),
		AssetName:     []byte("token"),
		Quantity:      100,
		TransferLogic: e.transferLogic,
		AdminLogic:    e.adminLogic,
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("registers a new policy", func(t *testing.T) {
		e := newEnv(t)
		plan, err := e.engine.Register(ctx, e.params, e.registerRequest())
		require.NoError(t, err)
		require.Equal(t, e.policyID, []byte(plan.NewPolicyID), "policy ID must match the issuance derivation")

		// covering node consumed, split pair plus the token output produced
		require.Len(t, plan.Tx.Inputs, 2, "origin node plus one fee input")
		nodeAddr := types.NewScriptAddress(e.params.RegistryPolicy)
		var nodeOutputs int
		for _, out := range plan.Tx.Outputs {
			if out.Address.Eq(nodeAddr) {
				nodeOutputs++
			}
		}
		require.Equal(t, 2, nodeOutputs)

		minted, err := plan.Tx.MintedValue()
		require.NoError(t, err)
		require.EqualValues(t, 100, minted.Get(e.asset))
		require.EqualValues(t, 1, minted.Get(list.MarkerAsset(e.params.RegistryPolicy, e.policyID)))

		require.True(t, plan.Tx.RequiresSigner(e.owner.Credential().Hash))
	})

	t.Run("already registered", func(t *testing.T) {
		e := newEnv(t)
		e.registerPolicy()
		_, err := e.engine.Register(ctx, e.params, e.registerRequest())
		require.ErrorIs(t, err, types.ErrAlreadyRegistered)
	})

	t.Run("registry not bootstrapped", func(t *testing.T) {
		e := newEnv(t)
		e.ledger.DropNode(e.params.RegistryPolicy, nil)
		_, err := e.engine.Register(ctx, e.params, e.registerRequest())
		require.ErrorIs(t, err, types.ErrStateUnavailable)
		require.True(t, types.IsRetryable(err))
	})

	t.Run("malformed request", func(t *testing.T) {
		e := newEnv(t)
		req := e.registerRequest()
		req.Quantity = 0
		_, err := e.engine.Register(ctx, e.params, req)
		require.ErrorIs(t, err, types.ErrMalformedRequest)
	})
}

func TestRegistryInit(t *testing.T) {
	ctx := context.Background()

	e := newEnv(t)
	e.ledger.DropNode(e.params.RegistryPolicy, nil)

	admin := testutils.NewSigner(t, 4).Credential()
	plan, err := e.engine.RegistryInit(ctx, e.params, admin)
	require.NoError(t, err)

	nodeAddr := types.NewScriptAddress(e.params.RegistryPolicy)
	require.True(t, plan.Tx.Outputs[0].Address.Eq(nodeAddr))

	minted, err := plan.Tx.MintedValue()
	require.NoError(t, err)
	require.EqualValues(t, 1, minted.Get(list.MarkerAsset(e.params.RegistryPolicy, nil)))
	require.True(t, plan.Tx.RequiresSigner(admin.Hash))
	require.Len(t, plan.NodeKeysTouched, 1)
	require.Empty(t, plan.NodeKeysTouched[0], "origin key")
}

func TestMint(t *testing.T) {
	ctx := context.Background()

	t.Run("mints into the recipient custody record", func(t *testing.T) {
		e := newEnv(t)
		e.registerPolicy()
		plan, err := e.engine.Mint(ctx, e.params, &types.MintRequest{
			PolicyID:  e.policyID,
			AssetName: []byte("token"),
			Quantity:  40,
			Recipient: e.recipient.Credential(),
		})
		require.NoError(t, err)

		minted, err := plan.Tx.MintedValue()
		require.NoError(t, err)
		require.EqualValues(t, 40, minted.Get(e.asset))

		recOut := plan.Tx.Outputs[0]
		require.True(t, recOut.Address.Eq(e.params.CustodyAddress(e.recipient.Credential())))
		require.EqualValues(t, 40, recOut.Value.Get(e.asset))
		require.GreaterOrEqual(t, recOut.Value.Base(), e.params.MinCustodyValue)
	})

	t.Run("unregistered policy", func(t *testing.T) {
		e := newEnv(t)
		_, err := e.engine.Mint(ctx, e.params, &types.MintRequest{
			PolicyID:  e.policyID,
			AssetName: []byte("token"),
			Quantity:  40,
			Recipient: e.recipient.Credential(),
		})
		require.ErrorIs(t, err, types.ErrNotRegistered)
	})
}

func TestBurn(t *testing.T) {
	ctx := context.Background()

	t.Run("burns and returns the remainder", func(t *testing.T) {
		e := newEnv(t)
		e.registerPolicy()
		e.ledger.AddRecord(e.owner.Credential(), types.NewValue(5, types.AssetQuantity{Asset: e.asset, Amount: 10}))

		plan, err := e.engine.Burn(ctx, e.params, &types.BurnRequest{
			Owner:    e.owner.Credential(),
			Unit:     e.asset,
			Quantity: 4,
		})
		require.NoError(t, err)

		burned, err := plan.Tx.BurnedValue()
		require.NoError(t, err)
		require.EqualValues(t, 4, burned.Get(e.asset))

		change := plan.Tx.Outputs[0]
		require.True(t, change.Address.Eq(e.params.CustodyAddress(e.owner.Credential())))
		require.EqualValues(t, 6, change.Value.Get(e.asset))

		require.True(t, plan.Tx.Invoked(e.transferLogic.Hash), "transfer logic authorizes the burn")
		require.True(t, plan.Tx.Invoked(e.policyID), "the minting policy must witness its own burn")
		require.True(t, plan.Tx.Invoked(e.params.CoordinatorScript))
	})

	t.Run("insufficient funds", func(t *testing.T) {
		e := newEnv(t)
		e.registerPolicy()
		e.ledger.AddRecord(e.owner.Credential(), types.NewValue(5, types.AssetQuantity{Asset: e.asset, Amount: 3}))
		_, err := e.engine.Burn(ctx, e.params, &types.BurnRequest{
			Owner:    e.owner.Credential(),
			Unit:     e.asset,
			Quantity: 4,
		})
		require.ErrorIs(t, err, types.ErrInsufficientFunds)
	})

	t.Run("unregistered unit cannot be burned", func(t *testing.T) {
		e := newEnv(t)
		wild := types.NewAssetID(testutils.ScriptHash(0x42), []byte("wild"))
		e.ledger.AddRecord(e.owner.Credential(), types.NewValue(5, types.AssetQuantity{Asset: wild, Amount: 10}))
		_, err := e.engine.Burn(ctx, e.params, &types.BurnRequest{
			Owner:    e.owner.Credential(),
			Unit:     wild,
			Quantity: 4,
		})
		require.ErrorIs(t, err, types.ErrNotRegistered)
	})
}

func TestTransfer(t *testing.T) {
	ctx := context.Background()

	t.Run("registered unit invokes its transfer logic", func(t *testing.T) {
		e := newEnv(t)
		e.registerPolicy()
		e.ledger.AddRecord(e.owner.Credential(), types.NewValue(5, types.AssetQuantity{Asset: e.asset, Amount: 10}))

		plan, err := e.engine.Transfer(ctx, e.params, &types.TransferRequest{
			Sender:    e.owner.Credential(),
			Unit:      e.asset,
			Quantity:  7,
			Recipient: e.recipient.Credential(),
		}, nil)
		require.NoError(t, err)

		require.True(t, plan.Tx.Invoked(e.transferLogic.Hash))
		require.True(t, plan.Tx.Invoked(e.params.CoordinatorScript))

		recOut := plan.Tx.Outputs[0]
		require.True(t, recOut.Address.Eq(e.params.CustodyAddress(e.recipient.Credential())))
		require.EqualValues(t, 7, recOut.Value.Get(e.asset))
		change := plan.Tx.Outputs[1]
		require.True(t, change.Address.Eq(e.params.CustodyAddress(e.owner.Credential())))
		require.EqualValues(t, 3, change.Value.Get(e.asset))
	})

	t.Run("unregistered unit runs no script beyond the coordinator", func(t *testing.T) {
		e := newEnv(t)
		wild := types.NewAssetID(testutils.ScriptHash(0x42), []byte("wild"))
		e.ledger.AddRecord(e.owner.Credential(), types.NewValue(5, types.AssetQuantity{Asset: wild, Amount: 10}))

		plan, err := e.engine.Transfer(ctx, e.params, &types.TransferRequest{
			Sender:    e.owner.Credential(),
			Unit:      wild,
			Quantity:  10,
			Recipient: e.recipient.Credential(),
		}, nil)
		require.NoError(t, err)

		require.Len(t, plan.Tx.Invocations, 1)
		require.True(t, plan.Tx.Invoked(e.params.CoordinatorScript))

		// the absence proof still references the covering registry node
		red, err := coordinator.RedeemerFromBytes(plan.Tx.Invocations[0].Redeemer)
		require.NoError(t, err)
		require.Len(t, red.Proofs, 1)
		require.Equal(t, list.ProofNotExists, red.Proofs[0].Kind)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		e := newEnv(t)
		e.registerPolicy()
		e.ledger.AddRecord(e.owner.Credential(), types.NewValue(5, types.AssetQuantity{Asset: e.asset, Amount: 3}))
		_, err := e.engine.Transfer(ctx, e.params, &types.TransferRequest{
			Sender:    e.owner.Credential(),
			Unit:      e.asset,
			Quantity:  7,
			Recipient: e.recipient.Credential(),
		}, nil)
		require.ErrorIs(t, err, types.ErrInsufficientFunds)
	})

	t.Run("authorizer may veto", func(t *testing.T) {
		e := newEnv(t)
		e.registerPolicy()
		e.ledger.AddRecord(e.owner.Credential(), types.NewValue(5, types.AssetQuantity{Asset: e.asset, Amount: 10}))
		veto := func(context.Context, *types.TxPlan, []types.Credential) (*builder.LogicAuth, error) {
			return nil, types.NewError(types.CodeValidationRejected, "not allowed")
		}
		_, err := e.engine.Transfer(ctx, e.params, &types.TransferRequest{
			Sender:    e.owner.Credential(),
			Unit:      e.asset,
			Quantity:  7,
			Recipient: e.recipient.Credential(),
		}, veto)
		require.ErrorIs(t, err, types.ErrValidationRejected)
	})

	t.Run("empty fee address fails with insufficient funds", func(t *testing.T) {
		e := newEnv(t)
		e.registerPolicy()
		e.ledger.AddRecord(e.owner.Credential(), types.NewValue(5, types.AssetQuantity{Asset: e.asset, Amount: 10}))
		e.engineWithoutFees(t)
		_, err := e.engine.Transfer(ctx, e.params, &types.TransferRequest{
			Sender:    e.owner.Credential(),
			Unit:      e.asset,
			Quantity:  7,
			Recipient: e.recipient.Credential(),
		}, nil)
		require.ErrorIs(t, err, types.ErrInsufficientFunds)
	})
}

// engineWithoutFees swaps the engine's fee address for an unfunded one.
func (e *env) engineWithoutFees(t *testing.T) {
	broke := testutils.NewSigner(t, 9)
	e.feeAddr = types.NewKeyAddress(broke.Credential().Hash)
	e.engine = builder.NewEngine(e.ledger, e.feeAddr, zerolog.Nop())
}

// staleCoveringSource serves a covering node that no longer brackets the
// requested key for the first staleReads lookups, the way a lagging indexer
// snapshot would after a concurrent list change.
type staleCoveringSource struct {
	*testutils.Ledger
	staleReads int
}

func (s *staleCoveringSource) CoveringNode(ctx context.Context, listPolicy, key []byte) (*state.NodeRecord, error) {
	if s.staleReads > 0 {
		s.staleReads--
		return &state.NodeRecord{
			Ref:  s.Ledger.NextRef(),
			Node: &list.Node{Next: []byte{0x00}},
		}, nil
	}
	return s.Ledger.CoveringNode(ctx, listPolicy, key)
}

// newConflictBuilder wires a facade whose denylist reads go through src.
func newConflictBuilder(t *testing.T, e *env, src state.Source) *builder.Builder {
	cfg := substandard.Config{
		ListPolicy:   testutils.ScriptHash(0xd1),
		AdminKeyHash: e.adminLogic.Hash,
	}
	testutils.BootstrapList(e.ledger, cfg.ListPolicy)

	engine := builder.NewEngine(src, e.feeAddr, zerolog.Nop())
	sub, err := freeze.New(engine, cfg)
	require.NoError(t, err)
	registry := substandard.NewRegistry()
	require.NoError(t, registry.Register(freeze.ID, freeze.Factory(engine)))
	return builder.New(engine, registry, sub, cfg, zerolog.Nop())
}

func TestSeize(t *testing.T) {
	ctx := context.Background()

	t.Run("seizes the policy's tokens, preserving the rest", func(t *testing.T) {
		e := newEnv(t)
		e.registerPolicy()
		other := types.NewAssetID(testutils.ScriptHash(0x42), []byte("wild"))
		ref := e.ledger.AddRecord(e.owner.Credential(), types.NewValue(5,
			types.AssetQuantity{Asset: e.asset, Amount: 10},
			types.AssetQuantity{Asset: other, Amount: 3}))

		plan, err := e.engine.Seize(ctx, e.params, &types.SeizeRequest{
			PolicyID:  e.policyID,
			TargetRef: ref,
			Recipient: e.recipient.Credential(),
		})
		require.NoError(t, err)

		remainder := plan.Tx.Outputs[0]
		require.True(t, remainder.Address.Eq(e.params.CustodyAddress(e.owner.Credential())))
		require.EqualValues(t, 0, remainder.Value.Get(e.asset))
		require.EqualValues(t, 3, remainder.Value.Get(other), "unrelated assets stay with the victim")
		require.EqualValues(t, 5, remainder.Value.Base())

		seizedOut := plan.Tx.Outputs[1]
		require.True(t, seizedOut.Address.Eq(e.params.CustodyAddress(e.recipient.Credential())))
		require.EqualValues(t, 10, seizedOut.Value.Get(e.asset))

		// the admin key, not the victim, must witness the transaction
		require.True(t, plan.Tx.RequiresSigner(e.adminLogic.Hash))
		require.False(t, plan.Tx.RequiresSigner(e.owner.Credential().Hash))
	})

	t.Run("no-op seizure is rejected", func(t *testing.T) {
		e := newEnv(t)
		e.registerPolicy()
		ref := e.ledger.AddRecord(e.owner.Credential(), types.NewValue(5))
		_, err := e.engine.Seize(ctx, e.params, &types.SeizeRequest{
			PolicyID:  e.policyID,
			TargetRef: ref,
			Recipient: e.recipient.Credential(),
		})
		require.ErrorIs(t, err, types.ErrValidationRejected)
		require.ErrorContains(t, err, "no-op")
	})

	t.Run("unknown record", func(t *testing.T) {
		e := newEnv(t)
		e.registerPolicy()
		_, err := e.engine.Seize(ctx, e.params, &types.SeizeRequest{
			PolicyID:  e.policyID,
			TargetRef: types.OutputRef{TxID: []byte{9, 9}, Index: 0},
			Recipient: e.recipient.Credential(),
		})
		require.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestBuilderFacade(t *testing.T) {
	ctx := context.Background()

	newBuilder := func(t *testing.T, e *env) *builder.Builder {
		cfg := substandard.Config{
			ListPolicy:   testutils.ScriptHash(0xd1),
			AdminKeyHash: e.adminLogic.Hash,
		}
		sub, err := freeze.New(e.engine, cfg)
		require.NoError(t, err)
		registry := substandard.NewRegistry()
		require.NoError(t, registry.Register(freeze.ID, freeze.Factory(e.engine)))
		testutils.BootstrapList(e.ledger, cfg.ListPolicy)
		return builder.New(e.engine, registry, sub, cfg, zerolog.Nop())
	}

	t.Run("emits tx bytes and metadata", func(t *testing.T) {
		e := newEnv(t)
		e.registerPolicy()
		b := newBuilder(t, e)

		res, err := b.Mint(ctx, &types.MintRequest{
			PolicyID:  e.policyID,
			AssetName: []byte("token"),
			Quantity:  40,
			Recipient: e.recipient.Credential(),
		})
		require.NoError(t, err)
		require.Equal(t, "mint", res.Metadata.OperationType)
		require.NotEqual(t, res.Metadata.OperationID.String(), "00000000-0000-0000-0000-000000000000")

		decoded, err := types.UnmarshalTxPlan(res.TxBytes)
		require.NoError(t, err)
		minted, err := decoded.MintedValue()
		require.NoError(t, err)
		require.EqualValues(t, 40, minted.Get(e.asset))
	})

	t.Run("retries transient snapshot failures", func(t *testing.T) {
		e := newEnv(t)
		e.registerPolicy()
		b := newBuilder(t, e)

		e.ledger.FailNext = 1
		res, err := b.Mint(ctx, &types.MintRequest{
			PolicyID:  e.policyID,
			AssetName: []byte("token"),
			Quantity:  40,
			Recipient: e.recipient.Credential(),
		})
		require.NoError(t, err)
		require.NotNil(t, res)
		require.Zero(t, e.ledger.FailNext, "first attempt must have consumed the failure")
	})

	t.Run("gives up after the retry bound", func(t *testing.T) {
		e := newEnv(t)
		e.registerPolicy()
		b := newBuilder(t, e).WithMaxAttempts(2)

		e.ledger.FailNext = 10
		_, err := b.Mint(ctx, &types.MintRequest{
			PolicyID:  e.policyID,
			AssetName: []byte("token"),
			Quantity:  40,
			Recipient: e.recipient.Credential(),
		})
		require.ErrorIs(t, err, types.ErrStateUnavailable)
		require.EqualValues(t, 8, e.ledger.FailNext, "exactly one read per attempt")
	})

	t.Run("non-retryable errors propagate immediately", func(t *testing.T) {
		e := newEnv(t)
		b := newBuilder(t, e)
		_, err := b.Mint(ctx, &types.MintRequest{
			PolicyID:  e.policyID,
			AssetName: []byte("token"),
			Quantity:  40,
			Recipient: e.recipient.Credential(),
		})
		require.ErrorIs(t, err, types.ErrNotRegistered)
	})

	t.Run("retries a compare-and-swap conflict against fresh state", func(t *testing.T) {
		e := newEnv(t)
		e.registerPolicy()

		src := &staleCoveringSource{Ledger: e.ledger, staleReads: 1}
		b := newConflictBuilder(t, e, src)

		res, err := b.BlacklistInsert(ctx, &types.BlacklistRequest{
			PolicyID: testutils.ScriptHash(0xd1),
			Target:   e.recipient.Credential(),
			Admin:    e.adminLogic,
		})
		require.NoError(t, err, "second attempt must replan against the fresh covering node")
		require.Equal(t, "blacklist-insert", res.Metadata.OperationType)
		require.Zero(t, src.staleReads, "first attempt must have consumed the stale snapshot")
	})

	t.Run("persistent conflict exhausts the retry bound", func(t *testing.T) {
		e := newEnv(t)
		e.registerPolicy()

		src := &staleCoveringSource{Ledger: e.ledger, staleReads: 10}
		b := newConflictBuilder(t, e, src)

		_, err := b.WithMaxAttempts(2).BlacklistInsert(ctx, &types.BlacklistRequest{
			PolicyID: testutils.ScriptHash(0xd1),
			Target:   e.recipient.Credential(),
			Admin:    e.adminLogic,
		})
		require.ErrorIs(t, err, types.ErrConflict)
		require.EqualValues(t, 8, src.staleReads, "exactly one covering read per attempt")
	})

	t.Run("registration resolves the substandard by ID", func(t *testing.T) {
		e := newEnv(t)
		b := newBuilder(t, e)

		res, err := b.Register(ctx, e.registerRequest())
		require.NoError(t, err)
		require.Equal(t, "register", res.Metadata.OperationType)
		require.Equal(t, e.policyID, []byte(res.Metadata.NewPolicyID))

		req := e.registerRequest()
		req.SubstandardID = "no-such-substandard"
		_, err = b.Register(ctx, req)
		require.ErrorIs(t, err, types.ErrNotFound)
	})
}
