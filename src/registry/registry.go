package registry

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/sirupsen/logrus"
	"github.com/swiftcashproject/swiftnode/src/chain"
	"github.com/swiftcashproject/swiftnode/src/common"
	"github.com/swiftcashproject/swiftnode/src/crypto"
	"github.com/swiftcashproject/swiftnode/src/spork"
	"github.com/swiftcashproject/swiftnode/src/swiftnode"
)

// ListRequestSeconds is how long a full list request is remembered, both for
// requests we send and requests we serve.
const ListRequestSeconds = 3 * 60 * 60

// PaymentSchedule answers payment history questions for the payment queue.
type PaymentSchedule interface {
	// IsScheduled reports whether payee is voted for in the next few blocks,
	// ignoring notHeight.
	IsScheduled(payee []byte, notHeight int64) bool

	// LastPaidTime returns the time of the last block that paid payee, or 0.
	LastPaidTime(payee []byte) int64
}

// SyncObserver is told when a seen announcement is dropped so that it can be
// counted again when it comes back.
type SyncObserver interface {
	ForgetListItem(hash chainhash.Hash)
}

// Registry owns the set of swiftnode records, keyed by collateral outpoint,
// together with the gossip bookkeeping around them. Records never leave the
// registry by pointer: every lookup returns a copy.
type Registry struct {
	mtx   sync.RWMutex
	nodes map[wire.OutPoint]*swiftnode.Record

	reqMtx          sync.Mutex
	askedUsForList  map[string]int64
	weAskedForList  map[string]int64
	weAskedForEntry map[wire.OutPoint]int64

	seenMtx           sync.RWMutex
	seenAnnouncements map[chainhash.Hash]swiftnode.Announcement
	seenHeartbeats    map[chainhash.Hash]swiftnode.Heartbeat

	env      swiftnode.Env
	view     chain.ChainView
	flags    chain.FeatureFlags
	schedule PaymentSchedule
	observer SyncObserver

	logger *logrus.Entry
}

// NewRegistry ...
func NewRegistry(env swiftnode.Env, view chain.ChainView, flags chain.FeatureFlags, logger *logrus.Entry) *Registry {
	return &Registry{
		nodes:             make(map[wire.OutPoint]*swiftnode.Record),
		askedUsForList:    make(map[string]int64),
		weAskedForList:    make(map[string]int64),
		weAskedForEntry:   make(map[wire.OutPoint]int64),
		seenAnnouncements: make(map[chainhash.Hash]swiftnode.Announcement),
		seenHeartbeats:    make(map[chainhash.Hash]swiftnode.Heartbeat),
		env:               env,
		view:              view,
		flags:             flags,
		logger:            logger,
	}
}

// SetPaymentSchedule wires the payment history used by NextInQueue.
func (r *Registry) SetPaymentSchedule(s PaymentSchedule) {
	r.schedule = s
}

// SetSyncObserver ...
func (r *Registry) SetSyncObserver(o SyncObserver) {
	r.observer = o
}

// Env returns the collaborators used to check records.
func (r *Registry) Env() swiftnode.Env {
	return r.env
}

// Params ...
func (r *Registry) Params() *chain.Params {
	return r.env.Params
}

// MinPaymentsProtocol is the minimum protocol of a payable node.
func (r *Registry) MinPaymentsProtocol() int32 {
	return spork.MinPaymentsProtocol(r.flags)
}

// Add inserts a record. Only Enabled records are accepted, and an existing
// identity is never overwritten.
func (r *Registry) Add(rec *swiftnode.Record) error {
	if !rec.IsEnabled() {
		return common.NewStoreErr("Registry", common.Inactive, rec.OutPoint.String())
	}

	r.mtx.Lock()
	defer r.mtx.Unlock()

	if _, ok := r.nodes[rec.OutPoint]; ok {
		return common.NewStoreErr("Registry", common.KeyAlreadyExists, rec.OutPoint.String())
	}

	r.nodes[rec.OutPoint] = rec.Copy()

	r.logger.WithFields(logrus.Fields{
		"outpoint": rec.OutPoint.String(),
		"size":     len(r.nodes),
	}).Debug("Adding new swiftnode")

	return nil
}

// Has reports whether op is registered.
func (r *Registry) Has(op wire.OutPoint) bool {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	_, ok := r.nodes[op]
	return ok
}

// Find returns a copy of the record of op.
func (r *Registry) Find(op wire.OutPoint) (*swiftnode.Record, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	rec, ok := r.nodes[op]
	if !ok {
		return nil, common.NewStoreErr("Registry", common.KeyNotFound, op.String())
	}
	return rec.Copy(), nil
}

// FindByOperatingKey returns the record whose operating key is pub.
func (r *Registry) FindByOperatingKey(pub []byte) (*swiftnode.Record, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	for _, rec := range r.nodes {
		if bytes.Equal(rec.OperatingPubKey, pub) {
			return rec.Copy(), nil
		}
	}
	return nil, common.NewStoreErr("Registry", common.KeyNotFound, common.EncodeToString(pub))
}

// FindByPayee returns the record whose collateral key is paid by script.
func (r *Registry) FindByPayee(script []byte) (*swiftnode.Record, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	for _, rec := range r.nodes {
		if crypto.ScriptEqual(rec.Payee(), script) {
			return rec.Copy(), nil
		}
	}
	return nil, common.NewStoreErr("Registry", common.KeyNotFound, crypto.ScriptString(script))
}

// Remove deletes the record of op, if any.
func (r *Registry) Remove(op wire.OutPoint) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if _, ok := r.nodes[op]; ok {
		delete(r.nodes, op)
		r.logger.WithFields(logrus.Fields{
			"outpoint": op.String(),
			"size":     len(r.nodes),
		}).Debug("Removing swiftnode")
	}
}

// Check runs the lifecycle check of op and returns the updated copy.
func (r *Registry) Check(op wire.OutPoint, force bool) (*swiftnode.Record, error) {
	r.refresh(force, op)
	return r.Find(op)
}

// CountEnabled counts enabled records with at least the given protocol. A
// protocol of -1 stands for the minimum payments protocol.
func (r *Registry) CountEnabled(protocol int32) int {
	if protocol == -1 {
		protocol = r.MinPaymentsProtocol()
	}

	r.refresh(false)

	r.mtx.RLock()
	defer r.mtx.RUnlock()

	count := 0
	for _, rec := range r.nodes {
		if rec.ProtocolVersion < protocol || !rec.IsEnabled() {
			continue
		}
		count++
	}
	return count
}

// StableCount is CountEnabled for the active protocol that, while payment
// enforcement is on, also ignores nodes younger than swiftnode.MinWinnerAge.
// It absorbs churn when computing required payments.
func (r *Registry) StableCount() int {
	protocol := spork.ActiveProtocol(r.flags)
	enforce := r.flags.IsActive(spork.SwiftnodePaymentEnforcement)
	now := r.env.Clock.Now()

	r.refresh(false)

	r.mtx.RLock()
	defer r.mtx.RUnlock()

	count := 0
	for _, rec := range r.nodes {
		if rec.ProtocolVersion < protocol {
			continue
		}
		if enforce && now-rec.SigTime < swiftnode.MinWinnerAge {
			continue
		}
		if !rec.IsEnabled() {
			continue
		}
		count++
	}
	return count
}

// Size returns the number of records.
func (r *Registry) Size() int {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return len(r.nodes)
}

// All returns copies of every record, ordered by outpoint.
func (r *Registry) All() []*swiftnode.Record {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	res := make([]*swiftnode.Record, 0, len(r.nodes))
	for _, rec := range r.nodes {
		res = append(res, rec.Copy())
	}
	sort.Slice(res, func(i, j int) bool {
		return swiftnode.CompareOutPoints(res[i].OutPoint, res[j].OutPoint) < 0
	})
	return res
}

// UpdateFromAnnouncement applies a newer announcement to an existing record.
// It returns the updated copy, or a StoreErr if op is unknown.
func (r *Registry) UpdateFromAnnouncement(a *swiftnode.Announcement, acceptPing bool) (*swiftnode.Record, bool, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	rec, ok := r.nodes[a.OutPoint]
	if !ok {
		return nil, false, common.NewStoreErr("Registry", common.KeyNotFound, a.OutPoint.String())
	}

	updated := rec.UpdateFromAnnouncement(a, acceptPing)
	return rec.Copy(), updated, nil
}

// UpdateHeartbeat stores hb as the last heartbeat of its node, refreshes the
// heartbeat carried by the node's seen announcement and force-checks the
// node.
func (r *Registry) UpdateHeartbeat(hb swiftnode.Heartbeat) (*swiftnode.Record, error) {
	r.mtx.Lock()
	rec, ok := r.nodes[hb.OutPoint]
	if !ok {
		r.mtx.Unlock()
		return nil, common.NewStoreErr("Registry", common.KeyNotFound, hb.OutPoint.String())
	}

	rec.LastPing = hb.Copy()
	annHash := announcementHash(rec)
	r.mtx.Unlock()

	r.refresh(true, hb.OutPoint)

	r.seenMtx.Lock()
	if a, ok := r.seenAnnouncements[annHash]; ok {
		a.LastPing = hb.Copy()
		r.seenAnnouncements[annHash] = a
	}
	r.seenMtx.Unlock()

	return r.Find(hb.OutPoint)
}

// InputAge returns the collateral depth of op, cached per record and advanced
// with the tip.
func (r *Registry) InputAge(op wire.OutPoint) (int64, error) {
	tip, err := r.view.TipHeight()
	if err != nil {
		return 0, common.NewTransientError("tip", err)
	}

	r.mtx.RLock()
	rec, ok := r.nodes[op]
	if !ok {
		r.mtx.RUnlock()
		return 0, common.NewStoreErr("Registry", common.KeyNotFound, op.String())
	}
	cached, cachedAt := rec.CacheInputAge, rec.CacheInputAgeBlock
	r.mtx.RUnlock()

	if cached != 0 {
		return cached + (tip - cachedAt), nil
	}

	age, err := r.env.UTXO.Confirmations(op)
	if err != nil {
		return 0, err
	}

	r.mtx.Lock()
	if rec, ok := r.nodes[op]; ok {
		rec.CacheInputAge = age
		rec.CacheInputAgeBlock = tip
	}
	r.mtx.Unlock()

	return age, nil
}

// Clear empties the registry and its bookkeeping.
func (r *Registry) Clear() {
	r.mtx.Lock()
	r.nodes = make(map[wire.OutPoint]*swiftnode.Record)
	r.mtx.Unlock()

	r.reqMtx.Lock()
	r.askedUsForList = make(map[string]int64)
	r.weAskedForList = make(map[string]int64)
	r.weAskedForEntry = make(map[wire.OutPoint]int64)
	r.reqMtx.Unlock()

	r.seenMtx.Lock()
	r.seenAnnouncements = make(map[chainhash.Hash]swiftnode.Announcement)
	r.seenHeartbeats = make(map[chainhash.Hash]swiftnode.Heartbeat)
	r.seenMtx.Unlock()
}

// String ...
func (r *Registry) String() string {
	size := r.Size()

	r.reqMtx.Lock()
	defer r.reqMtx.Unlock()

	return fmt.Sprintf("Swiftnodes: %d, peers who asked us for Swiftnode list: %d, peers we asked for Swiftnode list: %d, entries in Swiftnode list we asked for: %d",
		size, len(r.askedUsForList), len(r.weAskedForList), len(r.weAskedForEntry))
}

func announcementHash(rec *swiftnode.Record) chainhash.Hash {
	a := swiftnode.Announcement{
		SigTime:          rec.SigTime,
		CollateralPubKey: rec.CollateralPubKey,
	}
	return a.Hash()
}
