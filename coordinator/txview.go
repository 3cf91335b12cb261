package coordinator

import (
	"bytes"

	secp256k1 "github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/progtoken-org/progtoken-go/hash"
	"github.com/progtoken-org/progtoken-go/types"
)

// TxView is the immutable per-transaction snapshot the coordinator validates:
// the plan with its resolved inputs plus the key witnesses. Validation is a
// pure function over this view; the ledger serializes conflicting spends, so
// no locking happens at this layer.
type TxView struct {
	Plan      *types.TxPlan
	Witnesses []types.KeyWitness

	// TrustRequiredSigners makes key credentials count as authorized when
	// their hash is listed among the plan's required signers. The builder
	// uses this for its pre-submission self check, where the plan is not
	// signed yet; the on-ledger validation path never sets it.
	TrustRequiredSigners bool

	sigBytes []byte
}

// CustodyInputs returns the indexes of the plan inputs sitting at the shared
// custody address.
func (v *TxView) CustodyInputs(custodyScript []byte) []int {
	var res []int
	for i, in := range v.Plan.Inputs {
		if in.Output.Address.IsCustody(custodyScript) {
			res = append(res, i)
		}
	}
	return res
}

// AuthorizedByKey reports whether the view carries a valid witness for the
// key hash: a signature over the plan's sig bytes by a public key hashing to
// the credential.
func (v *TxView) AuthorizedByKey(keyHash []byte) (bool, error) {
	if v.TrustRequiredSigners && v.Plan.RequiresSigner(keyHash) {
		return true, nil
	}
	digest, err := v.SigBytes()
	if err != nil {
		return false, err
	}
	for _, w := range v.Witnesses {
		if !bytes.Equal(hash.Script224(w.PubKey), keyHash) {
			continue
		}
		pub, err := secp256k1.ParsePubKey(w.PubKey)
		if err != nil {
			continue
		}
		sig, err := ecdsa.ParseDERSignature(w.Signature)
		if err != nil {
			continue
		}
		if sig.Verify(digest, pub) {
			return true, nil
		}
	}
	return false, nil
}

// SigBytes returns the signing digest of the plan, computed once per view.
func (v *TxView) SigBytes() ([]byte, error) {
	if v.sigBytes == nil {
		digest, err := v.Plan.SigBytes()
		if err != nil {
			return nil, err
		}
		v.sigBytes = digest
	}
	return v.sigBytes, nil
}
