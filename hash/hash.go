package hash

import (
	"crypto"
	"crypto/sha256"

	"golang.org/x/crypto/blake2b"
)

// ScriptHashLength is the length of script and credential hashes (Blake2b-224).
const ScriptHashLength = 28

var Zero256 = make([]byte, 32)

// Sum256 returns the SHA256 checksum of the data, or the zero hash
// in case data is either empty or missing.
func Sum256(data []byte) []byte {
	if len(data) == 0 {
		return Zero256
	}
	hsh := sha256.Sum256(data)
	return hsh[:]
}

// Script224 returns the Blake2b-224 digest of the script bytes. Credential
// hashes and asset policy identifiers are derived with this function.
func Script224(script []byte) []byte {
	hsh, _ := blake2b.New(ScriptHashLength, nil)
	hsh.Write(script)
	return hsh.Sum(nil)
}

// SumHashes hashes the hashes, for hashing other data units, use hash.New() instead.
func SumHashes(hashAlgorithm crypto.Hash, hashes ...[]byte) []byte {
	hasher := hashAlgorithm.New()
	for _, hash := range hashes {
		hasher.Write(hash)
	}
	return hasher.Sum(nil)
}
