package keys

import (
	"math/big"

	"github.com/btcsuite/btcd/btcec"
)

/*
Swiftnode keys and signatures use the secp256k1 curve of the underlying coin.
Both the collateral key and the operating key are plain secp256k1 keys.
*/

//Parameters of the secp256k1 curve. They are used in other function to verify
//that a private key is valid.
var (
	secp256k1N, _ = new(big.Int).SetString("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141", 16)
)

//Curve returns the btcsuite implementation of secp256k1.
func Curve() *btcec.KoblitzCurve {
	return btcec.S256()
}
