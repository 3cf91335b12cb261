/*
Package substandard defines the contract a pluggable per-token validation
module must satisfy. A substandard layers token-specific rules (e.g.
freeze-and-seize) on top of the coordinator: its transfer logic is invoked
once per transaction alongside the coordinator, never once per input.

Substandards are resolved through a factory registry keyed on the
substandard ID plus per-instance configuration, so the same substandard can
back multiple deployments (e.g. several independent denylists).
*/
package substandard

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/progtoken-org/progtoken-go/state"
	"github.com/progtoken-org/progtoken-go/types"
)

type (
	// Plan is a finished build: a balanced unsigned transaction skeleton
	// plus the protocol-level facts the caller needs to track it.
	Plan struct {
		Tx              *types.TxPlan
		NewPolicyID     hexutil.Bytes
		NodeKeysTouched [][]byte
	}

	// Substandard builds the token lifecycle operations for one pluggable
	// validation module. Every method either returns a complete balanced
	// plan or a typed error (InsufficientFunds, NotRegistered,
	// AlreadyRegistered, ValidationRejected, ...); partial plans are never
	// returned.
	Substandard interface {
		ID() string
		BuildRegistration(ctx context.Context, src state.Source, params *types.ProtocolParams, req *types.RegisterRequest) (*Plan, error)
		BuildMint(ctx context.Context, src state.Source, params *types.ProtocolParams, req *types.MintRequest) (*Plan, error)
		BuildBurn(ctx context.Context, src state.Source, params *types.ProtocolParams, req *types.BurnRequest) (*Plan, error)
		BuildTransfer(ctx context.Context, src state.Source, params *types.ProtocolParams, req *types.TransferRequest) (*Plan, error)
	}

	// FreezeAndSeize extends Substandard with administrative controls:
	// denylist lifecycle and seizure of custody-held tokens. Substandards
	// without these capabilities implement Substandard only.
	FreezeAndSeize interface {
		Substandard
		BuildBlacklistInit(ctx context.Context, src state.Source, params *types.ProtocolParams) (*Plan, error)
		BuildBlacklistInsert(ctx context.Context, src state.Source, params *types.ProtocolParams, req *types.BlacklistRequest) (*Plan, error)
		BuildBlacklistRemove(ctx context.Context, src state.Source, params *types.ProtocolParams, req *types.BlacklistRequest) (*Plan, error)
		BuildSeize(ctx context.Context, src state.Source, params *types.ProtocolParams, req *types.SeizeRequest) (*Plan, error)
	}

	// Config is the per-instance deployment configuration passed to a
	// factory. ListPolicy selects the substandard's own list deployment
	// (e.g. one specific denylist); AdminKeyHash is the fixed administrator
	// key established at list bootstrap, not derivable or changeable later.
	Config struct {
		ListPolicy   hexutil.Bytes
		AdminKeyHash hexutil.Bytes
	}

	Factory func(cfg Config) (Substandard, error)

	// Registry resolves substandard instances by ID.
	Registry struct {
		mu        sync.RWMutex
		factories map[string]Factory
	}
)

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

func (r *Registry) Register(id string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[id]; ok {
		return fmt.Errorf("substandard %q is already registered", id)
	}
	r.factories[id] = f
	return nil
}

// New instantiates the substandard with the given deployment configuration.
func (r *Registry) New(id string, cfg Config) (Substandard, error) {
	r.mu.RLock()
	f, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, types.NewError(types.CodeNotFound, "unknown substandard %q", id)
	}
	return f(cfg)
}

// IDs returns the registered substandard IDs, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
