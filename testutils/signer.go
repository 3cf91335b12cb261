package testutils

import (
	"bytes"
	"testing"

	secp256k1 "github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/stretchr/testify/require"

	"github.com/progtoken-org/progtoken-go/types"
)

// Signer is a deterministic secp256k1 key for tests, derived from a single
// seed byte so failures reproduce.
type Signer struct {
	priv *secp256k1.PrivateKey
}

func NewSigner(t *testing.T, seed byte) *Signer {
	require.NotZero(t, seed, "seed zero would produce an invalid private key")
	priv := secp256k1.PrivKeyFromBytes(bytes.Repeat([]byte{seed}, 32))
	return &Signer{priv: priv}
}

// PubKey returns the compressed public key.
func (s *Signer) PubKey() []byte {
	return s.priv.PubKey().SerializeCompressed()
}

// Credential returns the key credential of the signer.
func (s *Signer) Credential() types.Credential {
	return types.CredentialFromPublicKey(s.PubKey())
}

// Witness signs the plan's signing digest and returns the key witness.
func (s *Signer) Witness(t *testing.T, plan *types.TxPlan) types.KeyWitness {
	digest, err := plan.SigBytes()
	require.NoError(t, err)
	sig := ecdsa.Sign(s.priv, digest)
	return types.KeyWitness{PubKey: s.PubKey(), Signature: sig.Serialize()}
}
