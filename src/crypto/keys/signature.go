package keys

import (
	"errors"

	"github.com/btcsuite/btcd/btcec"
)

// CompactSignatureLen is the length of a compact recoverable signature.
const CompactSignatureLen = 65

// ErrSignatureLength is returned when a signature is not a compact signature.
var ErrSignatureLength = errors.New("signature must be 65 bytes")

// SignCompact signs the 32-byte digest and returns a compact recoverable
// signature for the compressed public key.
func SignCompact(priv *btcec.PrivateKey, digest []byte) ([]byte, error) {
	return btcec.SignCompact(Curve(), priv, digest, true)
}

// RecoverCompact recovers the public key from a compact signature and the
// digest it signs. It also returns the serialized form the signer committed
// to, compressed or not.
func RecoverCompact(sig []byte, digest []byte) (*btcec.PublicKey, []byte, error) {
	if len(sig) != CompactSignatureLen {
		return nil, nil, ErrSignatureLength
	}

	pub, compressed, err := btcec.RecoverCompact(Curve(), sig, digest)
	if err != nil {
		return nil, nil, err
	}

	if compressed {
		return pub, pub.SerializeCompressed(), nil
	}
	return pub, pub.SerializeUncompressed(), nil
}
