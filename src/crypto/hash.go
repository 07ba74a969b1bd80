package crypto

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"golang.org/x/crypto/ripemd160"
)

// SHA256 returns the SHA256 hash of the data.
func SHA256(data []byte) []byte {
	hasher := sha256.New()
	hasher.Write(data)
	hash := hasher.Sum(nil)
	return hash
}

// DoubleSHA256 returns SHA256(SHA256(data)) as a chainhash.Hash. This is the
// hash used for message digests, dedup keys and scores.
func DoubleSHA256(data []byte) chainhash.Hash {
	return chainhash.DoubleHashH(data)
}

// Hash160 returns RIPEMD160(SHA256(data)), the key id used in pay-to-pubkey-hash
// scripts.
func Hash160(data []byte) []byte {
	hasher := ripemd160.New()
	hasher.Write(SHA256(data))
	return hasher.Sum(nil)
}
