package payments

import (
	"bytes"
	"encoding/binary"
	"strconv"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/swiftcashproject/swiftnode/src/crypto"
	"github.com/swiftcashproject/swiftnode/src/signer"
	"github.com/swiftcashproject/swiftnode/src/swiftnode"
)

// Vote is the signed proposal of a swiftnode for the payee of a block.
type Vote struct {
	Voter  wire.OutPoint
	Height int64
	Payee  []byte
	Sig    []byte
}

// NewVote returns an unsigned vote.
func NewVote(voter wire.OutPoint, height int64, payee []byte) Vote {
	return Vote{
		Voter:  voter,
		Height: height,
		Payee:  append([]byte(nil), payee...),
	}
}

// Message returns the signed text.
func (v *Vote) Message() string {
	return v.Voter.String() + strconv.FormatInt(v.Height, 10) + crypto.ScriptString(v.Payee)
}

// Hash is the gossip dedup key. It covers the payee, the height and the
// voter, but not the signature.
func (v *Vote) Hash() chainhash.Hash {
	var buf bytes.Buffer
	wire.WriteVarBytes(&buf, 0, v.Payee)
	binary.Write(&buf, binary.LittleEndian, int32(v.Height))
	buf.Write(swiftnode.SerializeOutPoint(v.Voter))
	return crypto.DoubleSHA256(buf.Bytes())
}

// Sign signs the vote with the operating key of the voter.
func (v *Vote) Sign(key *btcec.PrivateKey) error {
	sig, err := signer.SignMessage(v.Message(), key)
	if err != nil {
		return err
	}
	v.Sig = sig
	return nil
}

// Verify checks the signature against the operating key of the voter.
func (v *Vote) Verify(operatingPub []byte) error {
	return signer.VerifyMessage(operatingPub, v.Sig, v.Message())
}

// Copy returns a deep copy.
func (v Vote) Copy() Vote {
	res := v
	res.Payee = append([]byte(nil), v.Payee...)
	res.Sig = append([]byte(nil), v.Sig...)
	return res
}
