package keys

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec"
	"github.com/swiftcashproject/swiftnode/src/crypto"
)

// ParsePublicKey parses a compressed or uncompressed serialized public key.
func ParsePublicKey(pub []byte) (*btcec.PublicKey, error) {
	return btcec.ParsePubKey(pub, Curve())
}

// FromPublicKey serializes the public key in compressed form. Swiftnode
// messages always carry compressed keys.
func FromPublicKey(pub *btcec.PublicKey) []byte {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return nil
	}
	return pub.SerializeCompressed()
}

// PublicKeyID returns the 20-byte key id of the serialized public key.
func PublicKeyID(pubBytes []byte) []byte {
	return crypto.Hash160(pubBytes)
}

// PublicKeyHex returns the hexadecimal reprentation of the compressed form of
// the public key
func PublicKeyHex(pub *btcec.PublicKey) string {
	return hex.EncodeToString(FromPublicKey(pub))
}
