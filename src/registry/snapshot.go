package registry

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/swiftcashproject/swiftnode/src/swiftnode"
)

// EntryRequest is a pending request for a single registry entry.
type EntryRequest struct {
	OutPoint wire.OutPoint
	Expires  int64
}

// Snapshot is the persisted form of the registry.
type Snapshot struct {
	Nodes             []*swiftnode.Record
	AskedUsForList    map[string]int64
	WeAskedForList    map[string]int64
	WeAskedForEntry   []EntryRequest
	SeenAnnouncements []swiftnode.Announcement
	SeenHeartbeats    []swiftnode.Heartbeat
}

// Snapshot returns a deep copy of the registry state.
func (r *Registry) Snapshot() *Snapshot {
	s := &Snapshot{
		Nodes:          r.All(),
		AskedUsForList: make(map[string]int64),
		WeAskedForList: make(map[string]int64),
	}

	r.reqMtx.Lock()
	for k, v := range r.askedUsForList {
		s.AskedUsForList[k] = v
	}
	for k, v := range r.weAskedForList {
		s.WeAskedForList[k] = v
	}
	for op, t := range r.weAskedForEntry {
		s.WeAskedForEntry = append(s.WeAskedForEntry, EntryRequest{OutPoint: op, Expires: t})
	}
	r.reqMtx.Unlock()

	r.seenMtx.RLock()
	for _, a := range r.seenAnnouncements {
		s.SeenAnnouncements = append(s.SeenAnnouncements, a)
	}
	for _, hb := range r.seenHeartbeats {
		s.SeenHeartbeats = append(s.SeenHeartbeats, hb)
	}
	r.seenMtx.RUnlock()

	return s
}

// Restore replaces the registry state with s. It does not prune; callers run
// CheckAndRemove before trusting restored data.
func (r *Registry) Restore(s *Snapshot) {
	nodes := make(map[wire.OutPoint]*swiftnode.Record, len(s.Nodes))
	for _, rec := range s.Nodes {
		nodes[rec.OutPoint] = rec.Copy()
	}

	r.mtx.Lock()
	r.nodes = nodes
	r.mtx.Unlock()

	r.reqMtx.Lock()
	r.askedUsForList = make(map[string]int64)
	for k, v := range s.AskedUsForList {
		r.askedUsForList[k] = v
	}
	r.weAskedForList = make(map[string]int64)
	for k, v := range s.WeAskedForList {
		r.weAskedForList[k] = v
	}
	r.weAskedForEntry = make(map[wire.OutPoint]int64)
	for _, e := range s.WeAskedForEntry {
		r.weAskedForEntry[e.OutPoint] = e.Expires
	}
	r.reqMtx.Unlock()

	r.seenMtx.Lock()
	r.seenAnnouncements = make(map[chainhash.Hash]swiftnode.Announcement)
	for _, a := range s.SeenAnnouncements {
		r.seenAnnouncements[a.Hash()] = a
	}
	r.seenHeartbeats = make(map[chainhash.Hash]swiftnode.Heartbeat)
	for _, hb := range s.SeenHeartbeats {
		r.seenHeartbeats[hb.Hash()] = hb
	}
	r.seenMtx.Unlock()
}
