package hash

import (
	"crypto"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSum256(t *testing.T) {
	require.Equal(t, Zero256, Sum256(nil))
	require.Equal(t, Zero256, Sum256([]byte{}))

	h := Sum256([]byte("data"))
	require.Len(t, h, 32)
	require.Equal(t, h, Sum256([]byte("data")))
	require.NotEqual(t, h, Sum256([]byte("date")))
}

func TestScript224(t *testing.T) {
	h := Script224([]byte("script"))
	require.Len(t, h, ScriptHashLength)
	require.Equal(t, h, Script224([]byte("script")))
	require.NotEqual(t, h, Script224([]byte("script2")))
	require.Len(t, Script224(nil), ScriptHashLength)
}

func TestSumHashes(t *testing.T) {
	a, b := Sum256([]byte("a")), Sum256([]byte("b"))
	require.Equal(t, SumHashes(crypto.SHA256, a, b), SumHashes(crypto.SHA256, a, b))
	require.NotEqual(t, SumHashes(crypto.SHA256, a, b), SumHashes(crypto.SHA256, b, a))
}

func TestHasherEncodesCBOR(t *testing.T) {
	type payload struct {
		_ struct{} `cbor:",toarray"`
		A uint64
		B []byte
	}

	t.Run("equal values hash equal", func(t *testing.T) {
		h1 := New(sha256.New())
		h1.Write(payload{A: 1, B: []byte{2}})
		s1, err := h1.Sum()
		require.NoError(t, err)
		require.Len(t, s1, h1.Size())

		h2 := New(sha256.New())
		h2.Write(payload{A: 1, B: []byte{2}})
		s2, err := h2.Sum()
		require.NoError(t, err)
		require.Equal(t, s1, s2)

		h2.Reset()
		h2.Write(payload{A: 1, B: []byte{3}})
		s3, err := h2.Sum()
		require.NoError(t, err)
		require.NotEqual(t, s1, s3)
	})

	t.Run("raw write differs from encoded write", func(t *testing.T) {
		h1 := New(sha256.New())
		h1.WriteRaw([]byte{2})
		s1, err := h1.Sum()
		require.NoError(t, err)

		h2 := New(sha256.New())
		h2.Write([]byte{2})
		s2, err := h2.Sum()
		require.NoError(t, err)
		require.NotEqual(t, s1, s2)
	})
}
