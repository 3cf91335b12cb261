package types

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/progtoken-org/progtoken-go/cbor"
	"github.com/progtoken-org/progtoken-go/hash"
)

var (
	ErrTxPlanIsNil = errors.New("transaction plan is nil")
)

// TxPlanTag marks the opaque wire form of a transaction plan, so consumers
// can tell plan bytes apart from other tagged items.
const TxPlanTag cbor.Tag = 1001

type InvocationPurpose uint8

const (
	PurposeSpend InvocationPurpose = iota + 1
	PurposeMint
	PurposeObserve
)

type (
	// TxOutput is a planned ledger output.
	TxOutput struct {
		_       struct{}     `cbor:",toarray"`
		Address Address      `json:"address"`
		Value   Value        `json:"value"`
		Datum   cbor.RawCBOR `json:"datum,omitempty"`
	}

	// TxInput is a planned spend: the reference of the consumed output plus
	// the resolved output itself (the builder works over a snapshot, so the
	// resolved data travels with the plan for validation).
	TxInput struct {
		_      struct{}  `cbor:",toarray"`
		Ref    OutputRef `json:"ref"`
		Output TxOutput  `json:"output"`
	}

	// MintEntry mints (positive) or burns (negative) an asset.
	MintEntry struct {
		_      struct{} `cbor:",toarray"`
		Asset  AssetID  `json:"asset"`
		Amount int64    `json:"amount,string"`
	}

	// ScriptInvocation is one required validator run. The coordinator
	// pattern demands each script be invoked exactly once per transaction,
	// regardless of how many inputs it guards.
	ScriptInvocation struct {
		_          struct{}          `cbor:",toarray"`
		ScriptHash hexutil.Bytes     `json:"scriptHash"`
		Purpose    InvocationPurpose `json:"purpose"`
		Redeemer   cbor.RawCBOR      `json:"redeemer,omitempty"`
	}

	// TxPlan is the unsigned transaction skeleton emitted by the builder
	// and consumed by the external signing collaborator. It is complete:
	// value-balanced, with every required script invocation and required
	// signer listed. Only witnesses are missing.
	TxPlan struct {
		_               struct{}        `cbor:",toarray"`
		Version         uint32          `json:"version"`
		Inputs          []TxInput       `json:"inputs"`
		ReferenceInputs []TxInput       `json:"referenceInputs"`
		Outputs         []TxOutput      `json:"outputs"`
		Mints           []MintEntry     `json:"mints"`
		Invocations     []ScriptInvocation `json:"invocations"`
		RequiredSigners []hexutil.Bytes `json:"requiredSigners"`
		Fee             uint64          `json:"fee,string"`
	}

	// KeyWitness is a signature over the plan's sig bytes together with the
	// compressed public key that produced it.
	KeyWitness struct {
		_         struct{}      `cbor:",toarray"`
		PubKey    hexutil.Bytes `json:"pubKey"`
		Signature hexutil.Bytes `json:"signature"`
	}
)

// Bytes serializes the plan to its opaque tagged wire form.
func (t *TxPlan) Bytes() ([]byte, error) {
	if t == nil {
		return nil, ErrTxPlanIsNil
	}
	buf, err := cbor.MarshalTaggedValue(TxPlanTag, t)
	if err != nil {
		return nil, fmt.Errorf("marshaling transaction plan: %w", err)
	}
	return buf, nil
}

// SigBytes returns the digest key witnesses must sign: the SHA256 of the
// canonical CBOR encoding of the plan.
func (t *TxPlan) SigBytes() ([]byte, error) {
	if t == nil {
		return nil, ErrTxPlanIsNil
	}
	hasher := hash.New(sha256.New())
	hasher.Write(t)
	return hasher.Sum()
}

// AddInvocation records a required script run. Each script is invoked at
// most once per transaction; re-adding the same script is a no-op unless the
// redeemers disagree, which is an error.
func (t *TxPlan) AddInvocation(inv ScriptInvocation) error {
	for _, cur := range t.Invocations {
		if bytes.Equal(cur.ScriptHash, inv.ScriptHash) {
			if !bytes.Equal(cur.Redeemer, inv.Redeemer) {
				return fmt.Errorf("conflicting redeemers for script %X", []byte(inv.ScriptHash))
			}
			return nil
		}
	}
	t.Invocations = append(t.Invocations, inv)
	return nil
}

// Invoked reports whether the script is among the plan's invocations.
func (t *TxPlan) Invoked(scriptHash []byte) bool {
	for _, inv := range t.Invocations {
		if bytes.Equal(inv.ScriptHash, scriptHash) {
			return true
		}
	}
	return false
}

// InvocationCount counts invocations of the given script. The guard demands
// exactly one for the coordinator.
func (t *TxPlan) InvocationCount(scriptHash []byte) int {
	n := 0
	for _, inv := range t.Invocations {
		if bytes.Equal(inv.ScriptHash, scriptHash) {
			n++
		}
	}
	return n
}

// AddReferenceInput records a read-only reference input, deduplicated by
// output reference, and returns its index among the reference inputs.
func (t *TxPlan) AddReferenceInput(in TxInput) int {
	for i, cur := range t.ReferenceInputs {
		if cur.Ref.Eq(in.Ref) {
			return i
		}
	}
	t.ReferenceInputs = append(t.ReferenceInputs, in)
	return len(t.ReferenceInputs) - 1
}

// AddRequiredSigner records a key hash that must witness the transaction.
func (t *TxPlan) AddRequiredSigner(keyHash []byte) {
	for _, s := range t.RequiredSigners {
		if bytes.Equal(s, keyHash) {
			return
		}
	}
	t.RequiredSigners = append(t.RequiredSigners, bytes.Clone(keyHash))
}

// RequiresSigner reports whether the key hash is listed as required signer.
func (t *TxPlan) RequiresSigner(keyHash []byte) bool {
	for _, s := range t.RequiredSigners {
		if bytes.Equal(s, keyHash) {
			return true
		}
	}
	return false
}

// InputValue sums the resolved value of all inputs.
func (t *TxPlan) InputValue() (Value, error) {
	sum := Value{}
	var err error
	for _, in := range t.Inputs {
		if sum, err = sum.Add(in.Output.Value); err != nil {
			return nil, fmt.Errorf("summing input %s: %w", in.Ref, err)
		}
	}
	return sum, nil
}

// OutputValue sums the value of all outputs.
func (t *TxPlan) OutputValue() (Value, error) {
	sum := Value{}
	var err error
	for _, out := range t.Outputs {
		if sum, err = sum.Add(out.Value); err != nil {
			return nil, fmt.Errorf("summing outputs: %w", err)
		}
	}
	return sum, nil
}

// MintedValue returns the positive mint entries as a value.
func (t *TxPlan) MintedValue() (Value, error) {
	sum := Value{}
	var err error
	for _, m := range t.Mints {
		if m.Amount > 0 {
			if sum, err = sum.Add(Value{{Asset: m.Asset, Amount: uint64(m.Amount)}}); err != nil {
				return nil, err
			}
		}
	}
	return sum, nil
}

// BurnedValue returns the negative mint entries as a (positive) value.
func (t *TxPlan) BurnedValue() (Value, error) {
	sum := Value{}
	var err error
	for _, m := range t.Mints {
		if m.Amount < 0 {
			if sum, err = sum.Add(Value{{Asset: m.Asset, Amount: uint64(-m.Amount)}}); err != nil {
				return nil, err
			}
		}
	}
	return sum, nil
}

// UnmarshalTxPlan decodes the opaque wire form produced by Bytes.
func UnmarshalTxPlan(data []byte) (*TxPlan, error) {
	if tag, err := cbor.PeekTag(data); err != nil {
		return nil, fmt.Errorf("reading transaction plan tag: %w", err)
	} else if tag != TxPlanTag {
		return nil, fmt.Errorf("unexpected tag %d, expected transaction plan (%d)", tag, TxPlanTag)
	}
	plan := &TxPlan{}
	if err := cbor.UnmarshalTaggedValue(TxPlanTag, data, plan); err != nil {
		return nil, fmt.Errorf("unmarshaling transaction plan: %w", err)
	}
	return plan, nil
}
