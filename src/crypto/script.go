package crypto

import (
	"bytes"
	"encoding/hex"

	"github.com/btcsuite/btcd/txscript"
)

// PayToPubKeyHash returns the standard pay-to-pubkey-hash script paying the
// serialized public key:
//
//	OP_DUP OP_HASH160 <hash160(pub)> OP_EQUALVERIFY OP_CHECKSIG
func PayToPubKeyHash(pub []byte) []byte {
	if len(pub) == 0 {
		return nil
	}
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(Hash160(pub)).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	if err != nil {
		return nil
	}
	return script
}

// IsPayToPubKeyHash reports whether script is a standard single-key script.
func IsPayToPubKeyHash(script []byte) bool {
	return txscript.GetScriptClass(script) == txscript.PubKeyHashTy
}

// ScriptEqual compares two scripts byte for byte.
func ScriptEqual(a, b []byte) bool {
	return bytes.Equal(a, b)
}

// ScriptString returns the hex form of a script. It is the form used in signed
// vote messages and logs.
func ScriptString(script []byte) string {
	return hex.EncodeToString(script)
}
