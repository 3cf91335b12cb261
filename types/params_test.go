package types

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/progtoken-org/progtoken-go/hash"
)

func TestDerivePolicyID(t *testing.T) {
	template := hash.Script224([]byte("issuance"))
	validator := hash.Script224([]byte("transfer logic"))

	id := DerivePolicyID(template, validator)
	require.Len(t, id, hash.ScriptHashLength)
	require.Equal(t, id, DerivePolicyID(template, validator), "derivation must be deterministic")
	require.NotEqual(t, id, DerivePolicyID(template, hash.Script224([]byte("other"))))

	require.NoError(t, VerifyPolicyID(id, template, validator))
	err := VerifyPolicyID(id, template, hash.Script224([]byte("other")))
	require.ErrorIs(t, err, ErrValidationRejected)
}

func TestProtocolParamsValidation(t *testing.T) {
	valid := func() *ProtocolParams {
		return &ProtocolParams{
			Version:           1,
			CustodyScript:     bytes.Repeat([]byte{1}, hash.ScriptHashLength),
			CoordinatorScript: bytes.Repeat([]byte{2}, hash.ScriptHashLength),
			RegistryPolicy:    bytes.Repeat([]byte{3}, hash.ScriptHashLength),
			IssuanceTemplate:  bytes.Repeat([]byte{4}, hash.ScriptHashLength),
		}
	}
	require.NoError(t, valid().IsValid())

	p := valid()
	p.RegistryPolicy = []byte{1, 2, 3}
	require.ErrorContains(t, p.IsValid(), "registry policy")

	var nilParams *ProtocolParams
	require.Error(t, nilParams.IsValid())
}

func TestCustodyAddress(t *testing.T) {
	p := &ProtocolParams{CustodyScript: bytes.Repeat([]byte{1}, hash.ScriptHashLength)}
	owner := NewKeyCredential(bytes.Repeat([]byte{9}, hash.ScriptHashLength))
	addr := p.CustodyAddress(owner)

	require.True(t, addr.IsCustody(p.CustodyScript))
	require.NotNil(t, addr.Owner)
	require.True(t, addr.Owner.Eq(owner))

	other := p.CustodyAddress(NewKeyCredential(bytes.Repeat([]byte{8}, hash.ScriptHashLength)))
	require.False(t, addr.Eq(other), "addresses differ by owner only")
	require.True(t, other.IsCustody(p.CustodyScript))

	plain := NewKeyAddress(bytes.Repeat([]byte{7}, hash.ScriptHashLength))
	require.False(t, plain.IsCustody(p.CustodyScript))
}
