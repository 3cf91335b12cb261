package types

import (
	"bytes"
	"fmt"
)

type (
	// Address is a two-part ledger address: the payment credential decides
	// which validator guards spending, the optional owner credential names
	// the beneficial owner. Every programmable address shares the custody
	// script as payment part and differs only in the owner part.
	Address struct {
		_       struct{}    `cbor:",toarray"`
		Payment Credential  `json:"payment"`
		Owner   *Credential `json:"owner,omitempty"`
	}
)

// NewCustodyAddress derives the programmable address for the given owner:
// the shared custody script plus the caller supplied owner credential.
func NewCustodyAddress(custodyScriptHash []byte, owner Credential) Address {
	o := owner
	return Address{
		Payment: NewScriptCredential(custodyScriptHash),
		Owner:   &o,
	}
}

// NewKeyAddress returns a plain (non-programmable) address guarded by a
// verification key only, e.g. a fee paying address.
func NewKeyAddress(keyHash []byte) Address {
	return Address{Payment: NewKeyCredential(keyHash)}
}

// NewScriptAddress returns a plain script address, e.g. the address holding
// registry or denylist nodes.
func NewScriptAddress(scriptHash []byte) Address {
	return Address{Payment: NewScriptCredential(scriptHash)}
}

func (a Address) Eq(other Address) bool {
	if !a.Payment.Eq(other.Payment) {
		return false
	}
	if (a.Owner == nil) != (other.Owner == nil) {
		return false
	}
	return a.Owner == nil || a.Owner.Eq(*other.Owner)
}

// IsCustody reports whether the address belongs to the shared custody script.
func (a Address) IsCustody(custodyScriptHash []byte) bool {
	return a.Payment.Tag == ScriptCredential && bytes.Equal(a.Payment.Hash, custodyScriptHash)
}

func (a Address) IsValid() error {
	if err := a.Payment.IsValid(); err != nil {
		return fmt.Errorf("invalid payment credential: %w", err)
	}
	if a.Owner != nil {
		if err := a.Owner.IsValid(); err != nil {
			return fmt.Errorf("invalid owner credential: %w", err)
		}
	}
	return nil
}

func (a Address) String() string {
	if a.Owner == nil {
		return a.Payment.String()
	}
	return a.Payment.String() + "/" + a.Owner.String()
}
