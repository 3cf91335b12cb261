package coordinator

import (
	"fmt"

	"github.com/progtoken-org/progtoken-go/cbor"
	"github.com/progtoken-org/progtoken-go/list"
	"github.com/progtoken-org/progtoken-go/types"
)

type Kind uint8

const (
	// KindTransfer is the ordinary path: every custody input authorized by
	// its owner credential.
	KindTransfer Kind = iota + 1
	// KindSeize bypasses owner authorization for the listed input/output
	// pairs; the seized policy's administrative logic authorizes instead.
	KindSeize
)

type (
	// SeizePair maps a seized custody input to the output that replaces it.
	// The correspondence is strictly 1:1 and must preserve the victim's
	// address and all value except the seized asset.
	SeizePair struct {
		_           struct{} `cbor:",toarray"`
		InputIndex  uint16   `json:"inputIndex"`
		OutputIndex uint16   `json:"outputIndex"`
	}

	// Redeemer is the coordinator's per-transaction argument. The field
	// order of this structure is wire-pinned: it must match the deployed
	// coordinator script interface, do not reorder.
	Redeemer struct {
		_      struct{}     `cbor:",toarray"`
		Kind   Kind         `json:"kind"`
		Proofs []list.Proof `json:"proofs"`
		Pairs  []SeizePair  `json:"pairs,omitempty"`
	}
)

func NewTransferRedeemer(proofs []list.Proof) *Redeemer {
	return &Redeemer{Kind: KindTransfer, Proofs: proofs}
}

func NewSeizeRedeemer(proofs []list.Proof, pairs []SeizePair) *Redeemer {
	return &Redeemer{Kind: KindSeize, Proofs: proofs, Pairs: pairs}
}

func (r *Redeemer) IsValid() error {
	if r == nil {
		return types.NewError(types.CodeValidationRejected, "coordinator redeemer is missing")
	}
	switch r.Kind {
	case KindTransfer:
		if len(r.Pairs) != 0 {
			return types.NewError(types.CodeValidationRejected, "transfer redeemer must not carry seizure pairs")
		}
	case KindSeize:
		if len(r.Pairs) == 0 {
			return types.NewError(types.CodeValidationRejected, "seizure redeemer must list at least one input/output pair")
		}
	default:
		return types.NewError(types.CodeValidationRejected, "unknown redeemer kind %d", r.Kind)
	}
	return nil
}

func (r *Redeemer) Bytes() (cbor.RawCBOR, error) {
	buf, err := cbor.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshaling coordinator redeemer: %w", err)
	}
	return buf, nil
}

func RedeemerFromBytes(data []byte) (*Redeemer, error) {
	r := &Redeemer{}
	if err := cbor.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("unmarshaling coordinator redeemer: %w", err)
	}
	return r, nil
}
