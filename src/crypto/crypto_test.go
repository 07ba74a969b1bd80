package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestDoubleSHA256(t *testing.T) {
	// sha256d("hello")
	expected := "9595c9df90075148eb06860365df33584b75bff782a510c6cd4883a419833d50"

	h := DoubleSHA256([]byte("hello"))

	// chainhash stores hashes little-endian and String() reverses them
	raw := h.CloneBytes()
	if hex.EncodeToString(raw) != expected {
		t.Fatalf("DoubleSHA256 should be %s, not %s", expected, hex.EncodeToString(raw))
	}
}

func TestHash160(t *testing.T) {
	pub, _ := hex.DecodeString("0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798")

	expected := "751e76e8199196d454941c45d1b3a323f1433bd6"

	if h := hex.EncodeToString(Hash160(pub)); h != expected {
		t.Fatalf("Hash160 should be %s, not %s", expected, h)
	}
}

func TestPayToPubKeyHash(t *testing.T) {
	pub, _ := hex.DecodeString("0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798")

	script := PayToPubKeyHash(pub)

	if !IsPayToPubKeyHash(script) {
		t.Fatalf("script should be recognised as pay-to-pubkey-hash")
	}

	if !bytes.Equal(script[3:23], Hash160(pub)) {
		t.Fatalf("script should embed the key id")
	}

	expected := "76a914751e76e8199196d454941c45d1b3a323f1433bd688ac"
	if ScriptString(script) != expected {
		t.Fatalf("script should be %s, not %s", expected, ScriptString(script))
	}

	if PayToPubKeyHash(nil) != nil {
		t.Fatalf("empty key should produce an empty script")
	}

	if IsPayToPubKeyHash(script[:24]) {
		t.Fatalf("truncated script should not be recognised")
	}
}
