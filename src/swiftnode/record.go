package swiftnode

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/wire"
	"github.com/swiftcashproject/swiftnode/src/chain"
	"github.com/swiftcashproject/swiftnode/src/common"
	"github.com/swiftcashproject/swiftnode/src/crypto"
)

const (
	// MinConfirmations is the depth a collateral must reach before its
	// announcement is accepted.
	MinConfirmations = 20

	// MinPingSeconds is the minimum interval between accepted heartbeats, and
	// the bring-up interval before a node is enabled.
	MinPingSeconds = 10 * 60

	// MinBroadcastSeconds is the cooldown between two announcements of the
	// same node.
	MinBroadcastSeconds = 5 * 60

	// PingSeconds is how often the local node emits a heartbeat.
	PingSeconds = 5 * 60

	// ExpirationSeconds ...
	ExpirationSeconds = 120 * 60

	// RemovalSeconds ...
	RemovalSeconds = 180 * 60

	// CheckSeconds rate-limits Check.
	CheckSeconds = 5

	// MinWinnerAge is the age below which nodes are ignored by elections while
	// payment enforcement is active.
	MinWinnerAge = 8000

	month = 60 * 60 * 24 * 30
)

// Env groups the collaborators a record needs to evaluate its state.
type Env struct {
	Clock  chain.TimeSource
	UTXO   chain.UTXOOracle
	Params *chain.Params
}

// Record is the registry entry of one swiftnode.
type Record struct {
	OutPoint         wire.OutPoint
	Addr             string
	CollateralPubKey []byte
	OperatingPubKey  []byte
	Sig              []byte
	SigTime          int64
	ProtocolVersion  int32
	LastPing         Heartbeat
	State            State
	LastChecked      int64

	// cached collateral depth and the tip height it was measured at
	CacheInputAge      int64
	CacheInputAgeBlock int64
}

// NewRecord creates the record of a freshly accepted announcement. It starts
// Enabled; the next Check settles its real state.
func NewRecord(a *Announcement) *Record {
	return &Record{
		OutPoint:         a.OutPoint,
		Addr:             a.Addr,
		CollateralPubKey: append([]byte(nil), a.CollateralPubKey...),
		OperatingPubKey:  append([]byte(nil), a.OperatingPubKey...),
		Sig:              append([]byte(nil), a.Sig...),
		SigTime:          a.SigTime,
		ProtocolVersion:  a.ProtocolVersion,
		LastPing:         a.LastPing.Copy(),
		State:            Enabled,
	}
}

// Copy returns a deep copy of r.
func (r *Record) Copy() *Record {
	res := *r
	res.CollateralPubKey = append([]byte(nil), r.CollateralPubKey...)
	res.OperatingPubKey = append([]byte(nil), r.OperatingPubKey...)
	res.Sig = append([]byte(nil), r.Sig...)
	res.LastPing = r.LastPing.Copy()
	return &res
}

// IsEnabled ...
func (r *Record) IsEnabled() bool {
	return r.State == Enabled
}

// IsPreEnabled ...
func (r *Record) IsPreEnabled() bool {
	return r.State == PreEnabled
}

// Payee returns the script paying the collateral key.
func (r *Record) Payee() []byte {
	return crypto.PayToPubKeyHash(r.CollateralPubKey)
}

// IsPingedWithin reports whether the last heartbeat is less than seconds
// older than now.
func (r *Record) IsPingedWithin(seconds int64, now int64) bool {
	if r.LastPing.IsZero() {
		return false
	}
	return now-r.LastPing.SigTime < seconds
}

// IsBroadcastedWithin reports whether the announcement is less than seconds
// older than now.
func (r *Record) IsBroadcastedWithin(seconds int64, now int64) bool {
	return now-r.SigTime < seconds
}

// UpdateFromAnnouncement applies a strictly newer announcement to r. The
// embedded heartbeat is taken only when acceptPing is set, the caller having
// validated it. It returns false if a is not newer.
func (r *Record) UpdateFromAnnouncement(a *Announcement, acceptPing bool) bool {
	if a.SigTime <= r.SigTime {
		return false
	}

	r.OperatingPubKey = append([]byte(nil), a.OperatingPubKey...)
	r.CollateralPubKey = append([]byte(nil), a.CollateralPubKey...)
	r.SigTime = a.SigTime
	r.Sig = append([]byte(nil), a.Sig...)
	r.ProtocolVersion = a.ProtocolVersion
	r.Addr = a.Addr
	r.LastChecked = 0

	if acceptPing {
		r.LastPing = a.LastPing.Copy()
	}

	return true
}

// Check re-evaluates the lifecycle state. Calls less than CheckSeconds apart
// are no-ops unless force is set. A TransientError is returned when the
// collateral oracle is unavailable; the state is then left unchanged.
func (r *Record) Check(force bool, env Env) error {
	now := env.Clock.Now()

	if !r.IsCheckDue(force, now) {
		return nil
	}
	r.LastChecked = now

	if r.State == CollateralSpent {
		return nil
	}

	if !IsValidNetAddr(r.Addr, env.Params) {
		r.State = AddressInvalid
		return nil
	}

	if !r.IsPingedWithin(RemovalSeconds, now) {
		r.State = Removed
		return nil
	}

	if !r.IsPingedWithin(ExpirationSeconds, now) {
		r.State = Expired
		return nil
	}

	if r.LastPing.SigTime-r.SigTime < MinPingSeconds {
		r.State = PreEnabled
		return nil
	}

	spent, err := env.UTXO.IsCollateralSpent(r.OutPoint)
	if err != nil {
		return common.NewTransientError("collateral check", err)
	}
	if spent {
		r.State = CollateralSpent
		return nil
	}

	r.State = Enabled
	return nil
}

// IsCheckDue reports whether Check would re-evaluate the record at now.
func (r *Record) IsCheckDue(force bool, now int64) bool {
	return force || now-r.LastChecked >= CheckSeconds
}

// SecondsSincePayment returns how long ago the node was last paid. Nodes
// unpaid for more than a month get a deterministic value above a month so
// that they still sort in a stable order.
func (r *Record) SecondsSincePayment(now int64, lastPaid int64) int64 {
	sec := now - lastPaid
	if sec < month {
		return sec
	}

	var buf bytes.Buffer
	buf.Write(SerializeOutPoint(r.OutPoint))
	binary.Write(&buf, binary.LittleEndian, r.SigTime)
	hash := crypto.DoubleSHA256(buf.Bytes())

	return month + int64(blockchain.BigToCompact(blockchain.HashToBig(&hash)))
}

// Status returns the state string.
func (r *Record) Status() string {
	return r.State.String()
}

// String ...
func (r *Record) String() string {
	return fmt.Sprintf("%s %s %s proto=%d sigTime=%d lastPing=%d",
		r.OutPoint.String(), r.Addr, r.State, r.ProtocolVersion, r.SigTime, r.LastPing.SigTime)
}
