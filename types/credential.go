package types

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/progtoken-org/progtoken-go/hash"
)

type CredentialTag uint8

const (
	KeyCredential    CredentialTag = 0
	ScriptCredential CredentialTag = 1
)

type (
	// Credential identifies the owner half of a programmable address:
	// either the hash of a verification key or the hash of a script.
	Credential struct {
		_    struct{}      `cbor:",toarray"`
		Tag  CredentialTag `json:"tag"`
		Hash hexutil.Bytes `json:"hash"`
	}

	// AuthRequirement is what the coordinator demands for spending a record
	// owned by a credential: a signature from SignerHash, or one
	// whole-transaction invocation of ScriptHash. Exactly one side is set.
	AuthRequirement struct {
		SignerHash hexutil.Bytes
		ScriptHash hexutil.Bytes
	}
)

func NewKeyCredential(keyHash []byte) Credential {
	return Credential{Tag: KeyCredential, Hash: bytes.Clone(keyHash)}
}

func NewScriptCredential(scriptHash []byte) Credential {
	return Credential{Tag: ScriptCredential, Hash: bytes.Clone(scriptHash)}
}

// CredentialFromPublicKey derives a key credential from a compressed
// secp256k1 public key.
func CredentialFromPublicKey(pubKey []byte) Credential {
	return NewKeyCredential(hash.Script224(pubKey))
}

func (c Credential) IsValid() error {
	if c.Tag != KeyCredential && c.Tag != ScriptCredential {
		return fmt.Errorf("unknown credential tag %d", c.Tag)
	}
	if len(c.Hash) != hash.ScriptHashLength {
		return fmt.Errorf("credential hash must be %d bytes, got %d", hash.ScriptHashLength, len(c.Hash))
	}
	return nil
}

func (c Credential) Eq(other Credential) bool {
	return c.Tag == other.Tag && bytes.Equal(c.Hash, other.Hash)
}

// Bytes returns the canonical byte form of the credential, a single tag byte
// followed by the hash. Denylists are keyed on this form.
func (c Credential) Bytes() []byte {
	buf := make([]byte, 0, 1+len(c.Hash))
	buf = append(buf, byte(c.Tag))
	return append(buf, c.Hash...)
}

func (c Credential) String() string {
	return fmt.Sprintf("%d:%X", c.Tag, []byte(c.Hash))
}

// AuthRequirement resolves how the coordinator must see this credential
// authorized: key credentials by a matching signature, script credentials by
// a single independent invocation of the script.
func (c Credential) AuthRequirement() AuthRequirement {
	if c.Tag == KeyCredential {
		return AuthRequirement{SignerHash: c.Hash}
	}
	return AuthRequirement{ScriptHash: c.Hash}
}
