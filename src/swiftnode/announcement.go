package swiftnode

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"strconv"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/swiftcashproject/swiftnode/src/crypto"
	"github.com/swiftcashproject/swiftnode/src/crypto/keys"
	"github.com/swiftcashproject/swiftnode/src/signer"
)

// Announcement registers a swiftnode. It is signed once by the collateral key
// and carries the first heartbeat of the node.
type Announcement struct {
	OutPoint         wire.OutPoint
	Addr             string
	CollateralPubKey []byte
	OperatingPubKey  []byte
	Sig              []byte
	SigTime          int64
	ProtocolVersion  int32
	LastPing         Heartbeat
}

// CreateAnnouncement builds and signs an announcement together with its
// initial heartbeat, anchored at anchor.
func CreateAnnouncement(
	op wire.OutPoint,
	addr string,
	collateralKey *btcec.PrivateKey,
	operatingKey *btcec.PrivateKey,
	anchor chainhash.Hash,
	now int64,
	protocol int32,
) (*Announcement, error) {

	ping := NewHeartbeat(op, anchor, now)
	if err := ping.Sign(operatingKey); err != nil {
		return nil, err
	}

	a := &Announcement{
		OutPoint:         op,
		Addr:             addr,
		CollateralPubKey: keys.FromPublicKey(collateralKey.PubKey()),
		OperatingPubKey:  keys.FromPublicKey(operatingKey.PubKey()),
		SigTime:          now,
		ProtocolVersion:  protocol,
		LastPing:         ping,
	}

	if err := a.Sign(collateralKey); err != nil {
		return nil, err
	}

	return a, nil
}

// AnnouncementFromRecord rebuilds the announcement a record was created from.
func AnnouncementFromRecord(r *Record) Announcement {
	return Announcement{
		OutPoint:         r.OutPoint,
		Addr:             r.Addr,
		CollateralPubKey: append([]byte(nil), r.CollateralPubKey...),
		OperatingPubKey:  append([]byte(nil), r.OperatingPubKey...),
		Sig:              append([]byte(nil), r.Sig...),
		SigTime:          r.SigTime,
		ProtocolVersion:  r.ProtocolVersion,
		LastPing:         r.LastPing.Copy(),
	}
}

// Message returns the signed text.
func (a *Announcement) Message() string {
	return a.Addr +
		strconv.FormatInt(a.SigTime, 10) +
		hex.EncodeToString(a.CollateralPubKey) +
		hex.EncodeToString(a.OperatingPubKey) +
		strconv.FormatInt(int64(a.ProtocolVersion), 10)
}

// Hash is the gossip dedup key. It does not cover the heartbeat, so a
// re-broadcast with a newer heartbeat is still recognised.
func (a *Announcement) Hash() chainhash.Hash {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, a.SigTime)
	wire.WriteVarBytes(&buf, 0, a.CollateralPubKey)
	return crypto.DoubleSHA256(buf.Bytes())
}

// Sign signs the announcement with the collateral key.
func (a *Announcement) Sign(key *btcec.PrivateKey) error {
	sig, err := signer.SignMessage(a.Message(), key)
	if err != nil {
		return err
	}
	a.Sig = sig
	return nil
}

// Verify checks the signature against the collateral public key.
func (a *Announcement) Verify() error {
	return signer.VerifyMessage(a.CollateralPubKey, a.Sig, a.Message())
}

// Payee returns the script paying the collateral key.
func (a *Announcement) Payee() []byte {
	return crypto.PayToPubKeyHash(a.CollateralPubKey)
}
