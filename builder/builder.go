package builder

import (
	"context"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/progtoken-org/progtoken-go/substandard"
	"github.com/progtoken-org/progtoken-go/types"
	"github.com/progtoken-org/progtoken-go/util"
)

// DefaultMaxAttempts bounds the internal retry on StateUnavailable and
// Conflict before the error surfaces to the caller.
const DefaultMaxAttempts = 3

type (
	// OperationMetadata accompanies every emitted transaction: what was
	// built, which policy it created (if any), which list node keys it
	// touched. TxID is a placeholder until the signing collaborator
	// submits the transaction.
	OperationMetadata struct {
		OperationID     uuid.UUID       `json:"operationId"`
		OperationType   string          `json:"operationType"`
		NewPolicyID     hexutil.Bytes   `json:"newPolicyId,omitempty"`
		NodeKeysTouched []hexutil.Bytes `json:"nodeKeysTouched"`
		TxID            hexutil.Bytes   `json:"txId,omitempty"`
	}

	// BuildResult is the builder's output: the opaque unsigned transaction
	// bytes for the external signing collaborator plus the metadata record.
	BuildResult struct {
		TxBytes  []byte            `json:"txBytes"`
		Metadata OperationMetadata `json:"metadata"`
	}

	// Builder is the retrying facade over the Engine and one substandard
	// deployment. Registration resolves the substandard named by the
	// request through the registry; the lifecycle operations go to the
	// deployment the builder was constructed with.
	Builder struct {
		engine      *Engine
		registry    *substandard.Registry
		sub         substandard.Substandard
		cfg         substandard.Config
		maxAttempts int
		log         zerolog.Logger
	}
)

func New(engine *Engine, registry *substandard.Registry, sub substandard.Substandard, cfg substandard.Config, log zerolog.Logger) *Builder {
	return &Builder{
		engine:      engine,
		registry:    registry,
		sub:         sub,
		cfg:         cfg,
		maxAttempts: DefaultMaxAttempts,
		log:         log.With().Str("component", "builder").Logger(),
	}
}

// WithMaxAttempts overrides the retry bound.
func (b *Builder) WithMaxAttempts(n int) *Builder {
	if n > 0 {
		b.maxAttempts = n
	}
	return b
}

func (b *Builder) Register(ctx context.Context, req *types.RegisterRequest) (*BuildResult, error) {
	sub := b.sub
	if req != nil && req.SubstandardID != "" && (sub == nil || sub.ID() != req.SubstandardID) {
		var err error
		if sub, err = b.registry.New(req.SubstandardID, b.cfg); err != nil {
			return nil, err
		}
	}
	return b.run(ctx, "register", func(ctx context.Context, params *types.ProtocolParams) (*substandard.Plan, error) {
		return sub.BuildRegistration(ctx, b.engine.Source(), params, req)
	})
}

func (b *Builder) Mint(ctx context.Context, req *types.MintRequest) (*BuildResult, error) {
	return b.run(ctx, "mint", func(ctx context.Context, params *types.ProtocolParams) (*substandard.Plan, error) {
		return b.sub.BuildMint(ctx, b.engine.Source(), params, req)
	})
}

func (b *Builder) Burn(ctx context.Context, req *types.BurnRequest) (*BuildResult, error) {
	return b.run(ctx, "burn", func(ctx context.Context, params *types.ProtocolParams) (*substandard.Plan, error) {
		return b.sub.BuildBurn(ctx, b.engine.Source(), params, req)
	})
}

func (b *Builder) Transfer(ctx context.Context, req *types.TransferRequest) (*BuildResult, error) {
	return b.run(ctx, "transfer", func(ctx context.Context, params *types.ProtocolParams) (*substandard.Plan, error) {
		return b.sub.BuildTransfer(ctx, b.engine.Source(), params, req)
	})
}

func (b *Builder) BlacklistInit(ctx context.Context) (*BuildResult, error) {
	fs, err := b.freezeAndSeize()
	if err != nil {
		return nil, err
	}
	return b.run(ctx, "blacklist-init", func(ctx context.Context, params *types.ProtocolParams) (*substandard.Plan, error) {
		return fs.BuildBlacklistInit(ctx, b.engine.Source(), params)
	})
}

func (b *Builder) BlacklistInsert(ctx context.Context, req *types.BlacklistRequest) (*BuildResult, error) {
	fs, err := b.freezeAndSeize()
	if err != nil {
		return nil, err
	}
	return b.run(ctx, "blacklist-insert", func(ctx context.Context, params *types.ProtocolParams) (*substandard.Plan, error) {
		return fs.BuildBlacklistInsert(ctx, b.engine.Source(), params, req)
	})
}

func (b *Builder) BlacklistRemove(ctx context.Context, req *types.BlacklistRequest) (*BuildResult, error) {
	fs, err := b.freezeAndSeize()
	if err != nil {
		return nil, err
	}
	return b.run(ctx, "blacklist-remove", func(ctx context.Context, params *types.ProtocolParams) (*substandard.Plan, error) {
		return fs.BuildBlacklistRemove(ctx, b.engine.Source(), params, req)
	})
}

func (b *Builder) Seize(ctx context.Context, req *types.SeizeRequest) (*BuildResult, error) {
	fs, err := b.freezeAndSeize()
	if err != nil {
		return nil, err
	}
	return b.run(ctx, "seize", func(ctx context.Context, params *types.ProtocolParams) (*substandard.Plan, error) {
		return fs.BuildSeize(ctx, b.engine.Source(), params, req)
	})
}

func (b *Builder) freezeAndSeize() (substandard.FreezeAndSeize, error) {
	fs, ok := b.sub.(substandard.FreezeAndSeize)
	if !ok {
		return nil, types.NewError(types.CodeMalformedRequest, "substandard %q does not support blacklist operations", b.sub.ID())
	}
	return fs, nil
}

// run executes one build with bounded retry: StateUnavailable and Conflict
// trigger a fresh attempt against re-read state (including fresh bootstrap
// params), everything else propagates immediately.
func (b *Builder) run(ctx context.Context, opType string, build func(context.Context, *types.ProtocolParams) (*substandard.Plan, error)) (*BuildResult, error) {
	var lastErr error
	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		params, err := b.engine.Source().BootstrapParams(ctx)
		if err != nil {
			lastErr = types.WrapError(types.CodeStateUnavailable, err, "reading bootstrap params")
		} else if params == nil {
			lastErr = types.NewError(types.CodeStateUnavailable, "protocol is not bootstrapped")
		} else if err := params.IsValid(); err != nil {
			lastErr = types.WrapError(types.CodeStateUnavailable, err, "invalid bootstrap params")
		} else {
			plan, err := build(ctx, params)
			if err == nil {
				return b.finish(opType, plan)
			}
			lastErr = err
		}
		if !types.IsRetryable(lastErr) {
			return nil, lastErr
		}
		b.log.Warn().
			Str("operation", opType).
			Int("attempt", attempt).
			Err(lastErr).
			Msg("retrying build against fresh state")
	}
	return nil, lastErr
}

func (b *Builder) finish(opType string, plan *substandard.Plan) (*BuildResult, error) {
	txBytes, err := plan.Tx.Bytes()
	if err != nil {
		return nil, err
	}
	return &BuildResult{
		TxBytes: txBytes,
		Metadata: OperationMetadata{
			OperationID:   uuid.New(),
			OperationType: opType,
			NewPolicyID:   plan.NewPolicyID,
			NodeKeysTouched: util.TransformSlice(plan.NodeKeysTouched, func(k []byte) hexutil.Bytes {
				return hexutil.Bytes(k)
			}),
		},
	}, nil
}
