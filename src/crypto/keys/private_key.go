package keys

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcec"
)

const privateKeyLen = 32

//GenerateKey creates a new secp256k1 private key.
func GenerateKey() (*btcec.PrivateKey, error) {
	return btcec.NewPrivateKey(Curve())
}

//DumpPrivateKey exports a private key into a 32-byte binary dump.
func DumpPrivateKey(priv *btcec.PrivateKey) []byte {
	if priv == nil {
		return nil
	}
	return priv.Serialize()
}

//ParsePrivateKey creates a private key with the given D value.
func ParsePrivateKey(d []byte) (*btcec.PrivateKey, error) {
	if len(d) != privateKeyLen {
		return nil, fmt.Errorf("invalid length, need %d bits", privateKeyLen*8)
	}

	k := new(big.Int).SetBytes(d)

	// The D value must be < N
	if k.Cmp(secp256k1N) >= 0 {
		return nil, fmt.Errorf("invalid private key, >=N")
	}

	// The D value must not be zero.
	if k.Sign() <= 0 {
		return nil, fmt.Errorf("invalid private key, zero or negative")
	}

	priv, _ := btcec.PrivKeyFromBytes(Curve(), d)
	if priv.PublicKey.X == nil {
		return nil, errors.New("invalid private key")
	}

	return priv, nil
}

//ParsePrivateKeyHex parses the hexadecimal secret produced by PrivateKeyHex.
//Surrounding whitespace is ignored.
func ParsePrivateKeyHex(secret string) (*btcec.PrivateKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(secret))
	if err != nil {
		return nil, err
	}
	return ParsePrivateKey(raw)
}

//PrivateKeyHex returns the hexadecimal representation of a raw private key as
//returned by DumpPrivateKey
func PrivateKeyHex(key *btcec.PrivateKey) string {
	return hex.EncodeToString(DumpPrivateKey(key))
}
