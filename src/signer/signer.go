package signer

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/swiftcashproject/swiftnode/src/chain"
	"github.com/swiftcashproject/swiftnode/src/crypto"
	"github.com/swiftcashproject/swiftnode/src/crypto/keys"
)

// MessageMagic is the domain-separation prefix of every signed message.
const MessageMagic = "SwiftCash Signed Message:\n"

var (
	// ErrKeyMismatch is returned when a signature recovers to a different key
	// than the one claimed.
	ErrKeyMismatch = errors.New("signature does not match public key")

	// ErrNoKey is returned when signing without a key.
	ErrNoKey = errors.New("no signing key")
)

// MessageHash returns the digest that is actually signed: the double SHA256
// of the var-string encoded magic followed by the var-string encoded message.
func MessageHash(message string) chainhash.Hash {
	var buf bytes.Buffer
	// WriteVarString only fails on writer errors, which a bytes.Buffer never
	// returns.
	wire.WriteVarString(&buf, 0, MessageMagic)
	wire.WriteVarString(&buf, 0, message)
	return crypto.DoubleSHA256(buf.Bytes())
}

// SignMessage signs the message with key and returns a 65-byte compact
// recoverable signature.
func SignMessage(message string, key *btcec.PrivateKey) ([]byte, error) {
	if key == nil {
		return nil, ErrNoKey
	}
	digest := MessageHash(message)
	return keys.SignCompact(key, digest[:])
}

// VerifyMessage checks that sig is a signature of message by the owner of the
// serialized public key pub. The key is recovered from the signature and its
// key id compared with the key id of pub, so compressed and uncompressed
// serializations are not interchangeable.
func VerifyMessage(pub []byte, sig []byte, message string) error {
	digest := MessageHash(message)

	_, recovered, err := keys.RecoverCompact(sig, digest[:])
	if err != nil {
		return fmt.Errorf("recovering key: %w", err)
	}

	if !bytes.Equal(keys.PublicKeyID(recovered), keys.PublicKeyID(pub)) {
		return ErrKeyMismatch
	}

	return nil
}

// SetKey parses an operating secret and returns the key with its compressed
// public key.
func SetKey(secret string) (*btcec.PrivateKey, []byte, error) {
	key, err := keys.ParsePrivateKeyHex(secret)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, keys.FromPublicKey(key.PubKey()), nil
}

// IsVinAssociatedWithPubkey reports whether the collateral outpoint holds
// exactly the collateral amount and pays the standard script of pub.
func IsVinAssociatedWithPubkey(utxo chain.UTXOOracle, op wire.OutPoint, pub []byte, collateral int64) (bool, error) {
	outs, err := utxo.TxOutputs(op.Hash)
	if err != nil {
		return false, err
	}

	if int(op.Index) >= len(outs) {
		return false, nil
	}

	out := outs[op.Index]
	payee := crypto.PayToPubKeyHash(pub)

	return out.Value == collateral && crypto.ScriptEqual(out.PkScript, payee), nil
}
