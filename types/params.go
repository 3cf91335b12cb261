package types

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/progtoken-org/progtoken-go/hash"
)

type (
	// ProtocolParams are the protocol bootstrap parameters. There is no
	// process-wide singleton: an explicit value is threaded through every
	// builder call so that concurrent builds against different deployments
	// cannot observe each other's state.
	ProtocolParams struct {
		_       struct{} `cbor:",toarray"`
		Version uint32   `json:"version"`
		// CustodyScript is the hash of the shared custody payment script;
		// every programmable address uses it as the payment half.
		CustodyScript hexutil.Bytes `json:"custodyScript"`
		// CoordinatorScript is the hash of the per-transaction coordinator
		// validator that every custody guard delegates to.
		CoordinatorScript hexutil.Bytes `json:"coordinatorScript"`
		// RegistryPolicy is the hash of the registry list script: it mints
		// the node authenticity markers and holds the node outputs.
		RegistryPolicy hexutil.Bytes `json:"registryPolicy"`
		// IssuanceTemplate is the hash of the fixed issuance script
		// template that all registered policies are instantiated from.
		IssuanceTemplate hexutil.Bytes `json:"issuanceTemplate"`
		// MinCustodyValue is the minimum base currency amount every custody
		// output must carry.
		MinCustodyValue uint64 `json:"minCustodyValue,string"`
		// BaseFee is the flat fee charged against the fee paying address
		// when balancing a transaction.
		BaseFee uint64 `json:"baseFee,string"`
	}
)

func (p *ProtocolParams) IsValid() error {
	if p == nil {
		return errors.New("protocol params are nil")
	}
	for _, f := range []struct {
		name string
		val  []byte
	}{
		{"custody script", p.CustodyScript},
		{"coordinator script", p.CoordinatorScript},
		{"registry policy", p.RegistryPolicy},
		{"issuance template", p.IssuanceTemplate},
	} {
		if len(f.val) != hash.ScriptHashLength {
			return fmt.Errorf("%s hash must be %d bytes, got %d", f.name, hash.ScriptHashLength, len(f.val))
		}
	}
	return nil
}

// CustodyAddress derives the programmable address for the owner credential.
func (p *ProtocolParams) CustodyAddress(owner Credential) Address {
	return NewCustodyAddress(p.CustodyScript, owner)
}

// RegistryAddress is the script address holding the registry list nodes.
func (p *ProtocolParams) RegistryAddress() Address {
	return NewScriptAddress(p.RegistryPolicy)
}

// DerivePolicyID computes the asset policy a registration will create:
// the hash of the fixed issuance script template applied to the caller
// chosen validator reference. Registration must fail if a requested policy
// does not match this derivation, otherwise an attacker could forge a
// policy that looks unregistered while the registry holds an entry for it.
func DerivePolicyID(issuanceTemplate, validatorRef []byte) []byte {
	buf := make([]byte, 0, len(issuanceTemplate)+len(validatorRef))
	buf = append(buf, issuanceTemplate...)
	buf = append(buf, validatorRef...)
	return hash.Script224(buf)
}

// VerifyPolicyID checks a claimed policy ID against the derivation.
func VerifyPolicyID(policyID, issuanceTemplate, validatorRef []byte) error {
	if derived := DerivePolicyID(issuanceTemplate, validatorRef); !bytes.Equal(policyID, derived) {
		return NewError(CodeValidationRejected, "policy ID %X does not match issuance derivation %X", policyID, derived)
	}
	return nil
}
