package types

import (
	"math"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Operation request DTOs, the shapes external callers (REST facade, CLI)
// hand to the transaction builder. Validation failures surface as
// MalformedRequest before any state is read.

type (
	RegisterRequest struct {
		SubstandardID string        `json:"substandardId"`
		Owner         Credential    `json:"owner"`
		AssetName     hexutil.Bytes `json:"assetName"`
		Quantity      uint64        `json:"quantity,string"`
		// Recipient receives the initially minted tokens; defaults to Owner.
		Recipient *Credential `json:"recipient,omitempty"`
		// TransferLogic is the caller chosen validator reference the new
		// policy is derived from; the per-transaction transfer checks of
		// the substandard run under this credential.
		TransferLogic Credential `json:"transferLogic"`
		// AdminLogic authorizes administrative actions (e.g. seizure).
		AdminLogic Credential `json:"adminLogic"`
	}

	MintRequest struct {
		PolicyID  hexutil.Bytes `json:"policyId"`
		AssetName hexutil.Bytes `json:"assetName"`
		Quantity  uint64        `json:"quantity,string"`
		Recipient Credential    `json:"recipient"`
	}

	BurnRequest struct {
		Owner    Credential    `json:"owner"`
		Unit     AssetID       `json:"unit"`
		Quantity uint64        `json:"quantity,string"`
	}

	TransferRequest struct {
		Sender    Credential `json:"sender"`
		Unit      AssetID    `json:"unit"`
		Quantity  uint64     `json:"quantity,string"`
		Recipient Credential `json:"recipient"`
	}

	BlacklistRequest struct {
		PolicyID hexutil.Bytes `json:"policyId"`
		Target   Credential    `json:"target"`
		Admin    Credential    `json:"admin"`
	}

	SeizeRequest struct {
		PolicyID  hexutil.Bytes `json:"policyId"`
		TargetRef OutputRef     `json:"targetRef"`
		Recipient Credential    `json:"recipient"`
	}
)

func (r *RegisterRequest) IsValid() error {
	if r == nil {
		return NewError(CodeMalformedRequest, "register request is nil")
	}
	if r.SubstandardID == "" {
		return NewError(CodeMalformedRequest, "substandard ID must be set")
	}
	if err := r.Owner.IsValid(); err != nil {
		return NewError(CodeMalformedRequest, "invalid owner credential: %v", err)
	}
	if r.Quantity == 0 || r.Quantity > math.MaxInt64 {
		return NewError(CodeMalformedRequest, "initial quantity must be positive and mintable")
	}
	if err := r.TransferLogic.IsValid(); err != nil {
		return NewError(CodeMalformedRequest, "invalid transfer logic credential: %v", err)
	}
	if r.TransferLogic.Tag != ScriptCredential {
		return NewError(CodeMalformedRequest, "transfer logic must be a script credential")
	}
	if err := r.AdminLogic.IsValid(); err != nil {
		return NewError(CodeMalformedRequest, "invalid admin logic credential: %v", err)
	}
	if r.Recipient != nil {
		if err := r.Recipient.IsValid(); err != nil {
			return NewError(CodeMalformedRequest, "invalid recipient credential: %v", err)
		}
	}
	return nil
}

// RecipientOrOwner returns the credential the initial mint goes to.
func (r *RegisterRequest) RecipientOrOwner() Credential {
	if r.Recipient != nil {
		return *r.Recipient
	}
	return r.Owner
}

func (r *MintRequest) IsValid() error {
	if r == nil {
		return NewError(CodeMalformedRequest, "mint request is nil")
	}
	if len(r.PolicyID) == 0 {
		return NewError(CodeMalformedRequest, "policy ID must be set")
	}
	if r.Quantity == 0 || r.Quantity > math.MaxInt64 {
		return NewError(CodeMalformedRequest, "quantity must be positive and mintable")
	}
	if err := r.Recipient.IsValid(); err != nil {
		return NewError(CodeMalformedRequest, "invalid recipient credential: %v", err)
	}
	return nil
}

func (r *BurnRequest) IsValid() error {
	if r == nil {
		return NewError(CodeMalformedRequest, "burn request is nil")
	}
	if r.Unit.IsBase() {
		return NewError(CodeMalformedRequest, "cannot burn the base currency")
	}
	if r.Quantity == 0 || r.Quantity > math.MaxInt64 {
		return NewError(CodeMalformedRequest, "quantity must be positive and burnable")
	}
	if err := r.Owner.IsValid(); err != nil {
		return NewError(CodeMalformedRequest, "invalid owner credential: %v", err)
	}
	return nil
}

func (r *TransferRequest) IsValid() error {
	if r == nil {
		return NewError(CodeMalformedRequest, "transfer request is nil")
	}
	if r.Unit.IsBase() {
		return NewError(CodeMalformedRequest, "base currency transfers are not custody operations")
	}
	if r.Quantity == 0 {
		return NewError(CodeMalformedRequest, "quantity must be positive")
	}
	if err := r.Sender.IsValid(); err != nil {
		return NewError(CodeMalformedRequest, "invalid sender credential: %v", err)
	}
	if err := r.Recipient.IsValid(); err != nil {
		return NewError(CodeMalformedRequest, "invalid recipient credential: %v", err)
	}
	return nil
}

func (r *BlacklistRequest) IsValid() error {
	if r == nil {
		return NewError(CodeMalformedRequest, "blacklist request is nil")
	}
	if len(r.PolicyID) == 0 {
		return NewError(CodeMalformedRequest, "policy ID must be set")
	}
	if err := r.Target.IsValid(); err != nil {
		return NewError(CodeMalformedRequest, "invalid target credential: %v", err)
	}
	if err := r.Admin.IsValid(); err != nil {
		return NewError(CodeMalformedRequest, "invalid admin credential: %v", err)
	}
	return nil
}

func (r *SeizeRequest) IsValid() error {
	if r == nil {
		return NewError(CodeMalformedRequest, "seize request is nil")
	}
	if len(r.PolicyID) == 0 {
		return NewError(CodeMalformedRequest, "policy ID must be set")
	}
	if len(r.TargetRef.TxID) == 0 {
		return NewError(CodeMalformedRequest, "target record reference must be set")
	}
	if err := r.Recipient.IsValid(); err != nil {
		return NewError(CodeMalformedRequest, "invalid recipient credential: %v", err)
	}
	return nil
}
