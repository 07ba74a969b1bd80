package registry

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/sirupsen/logrus"
	"github.com/swiftcashproject/swiftnode/src/swiftnode"
)

// CheckAndRemove force-checks every record and drops the ones that are Removed,
// CollateralSpent, below the minimum payments protocol, or Expired when
// forceExpired is set. Seen announcements of dropped nodes are forgotten so
// that the nodes can come back without a new announcement. Expired request
// bookkeeping and old seen messages are pruned as well.
func (r *Registry) CheckAndRemove(forceExpired bool) {
	minProto := r.MinPaymentsProtocol()
	now := r.env.Clock.Now()

	removed := []wire.OutPoint{}

	r.refresh(true)

	r.mtx.Lock()
	for op, rec := range r.nodes {
		if rec.State == swiftnode.Removed ||
			rec.State == swiftnode.CollateralSpent ||
			(forceExpired && rec.State == swiftnode.Expired) ||
			rec.ProtocolVersion < minProto {

			r.logger.WithFields(logrus.Fields{
				"outpoint": op.String(),
				"state":    rec.State.String(),
				"protocol": rec.ProtocolVersion,
			}).Debug("Removing inactive swiftnode")

			delete(r.nodes, op)
			removed = append(removed, op)
		}
	}
	r.mtx.Unlock()

	forgotten := []chainhash.Hash{}

	r.seenMtx.Lock()
	if len(removed) > 0 {
		gone := make(map[wire.OutPoint]bool, len(removed))
		for _, op := range removed {
			gone[op] = true
		}
		for hash, a := range r.seenAnnouncements {
			if gone[a.OutPoint] {
				delete(r.seenAnnouncements, hash)
				forgotten = append(forgotten, hash)
			}
		}
	}

	cutoff := now - 2*swiftnode.RemovalSeconds
	for hash, a := range r.seenAnnouncements {
		if a.LastPing.SigTime < cutoff {
			delete(r.seenAnnouncements, hash)
			forgotten = append(forgotten, hash)
		}
	}
	for hash, hb := range r.seenHeartbeats {
		if hb.SigTime < cutoff {
			delete(r.seenHeartbeats, hash)
		}
	}
	r.seenMtx.Unlock()

	r.reqMtx.Lock()
	for _, op := range removed {
		delete(r.weAskedForEntry, op)
	}
	for peer, t := range r.askedUsForList {
		if t < now {
			delete(r.askedUsForList, peer)
		}
	}
	for peer, t := range r.weAskedForList {
		if t < now {
			delete(r.weAskedForList, peer)
		}
	}
	for op, t := range r.weAskedForEntry {
		if t < now {
			delete(r.weAskedForEntry, op)
		}
	}
	r.reqMtx.Unlock()

	if r.observer != nil {
		for _, hash := range forgotten {
			r.observer.ForgetListItem(hash)
		}
	}
}
