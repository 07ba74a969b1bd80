package swiftnode

import (
	"bytes"
	"encoding/binary"
	"strconv"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/swiftcashproject/swiftnode/src/crypto"
	"github.com/swiftcashproject/swiftnode/src/signer"
)

// Heartbeat is the signed liveness proof of a swiftnode. BlockHash anchors it
// to a recent block so that it cannot be replayed much later.
type Heartbeat struct {
	OutPoint  wire.OutPoint
	BlockHash chainhash.Hash
	SigTime   int64
	Sig       []byte
}

// NewHeartbeat returns an unsigned heartbeat.
func NewHeartbeat(op wire.OutPoint, anchor chainhash.Hash, sigTime int64) Heartbeat {
	return Heartbeat{
		OutPoint:  op,
		BlockHash: anchor,
		SigTime:   sigTime,
	}
}

// IsZero reports whether h is the empty heartbeat.
func (h *Heartbeat) IsZero() bool {
	return h.SigTime == 0 && len(h.Sig) == 0 && h.BlockHash == (chainhash.Hash{})
}

// Message returns the signed text.
func (h *Heartbeat) Message() string {
	return h.OutPoint.String() + h.BlockHash.String() + strconv.FormatInt(h.SigTime, 10)
}

// Hash is the gossip dedup key.
func (h *Heartbeat) Hash() chainhash.Hash {
	var buf bytes.Buffer
	buf.Write(SerializeOutPoint(h.OutPoint))
	binary.Write(&buf, binary.LittleEndian, h.SigTime)
	return crypto.DoubleSHA256(buf.Bytes())
}

// Sign signs the heartbeat with the operating key.
func (h *Heartbeat) Sign(key *btcec.PrivateKey) error {
	sig, err := signer.SignMessage(h.Message(), key)
	if err != nil {
		return err
	}
	h.Sig = sig
	return nil
}

// Verify checks the signature against the operating public key.
func (h *Heartbeat) Verify(operatingPub []byte) error {
	return signer.VerifyMessage(operatingPub, h.Sig, h.Message())
}

// Copy returns a deep copy.
func (h Heartbeat) Copy() Heartbeat {
	res := h
	res.Sig = append([]byte(nil), h.Sig...)
	return res
}

// SerializeOutPoint returns the canonical 36-byte encoding of an outpoint:
// the transaction hash followed by the little-endian output index.
func SerializeOutPoint(op wire.OutPoint) []byte {
	res := make([]byte, chainhash.HashSize+4)
	copy(res, op.Hash[:])
	binary.LittleEndian.PutUint32(res[chainhash.HashSize:], op.Index)
	return res
}
