package registry

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/swiftcashproject/swiftnode/src/swiftnode"
)

// SeenAnnouncement reports whether an announcement with hash was already
// processed.
func (r *Registry) SeenAnnouncement(hash chainhash.Hash) bool {
	r.seenMtx.RLock()
	defer r.seenMtx.RUnlock()
	_, ok := r.seenAnnouncements[hash]
	return ok
}

// GetSeenAnnouncement ...
func (r *Registry) GetSeenAnnouncement(hash chainhash.Hash) (swiftnode.Announcement, bool) {
	r.seenMtx.RLock()
	defer r.seenMtx.RUnlock()
	a, ok := r.seenAnnouncements[hash]
	return a, ok
}

// AddSeenAnnouncement records a; it returns false if it was already there.
func (r *Registry) AddSeenAnnouncement(a swiftnode.Announcement) bool {
	hash := a.Hash()

	r.seenMtx.Lock()
	defer r.seenMtx.Unlock()

	if _, ok := r.seenAnnouncements[hash]; ok {
		return false
	}
	r.seenAnnouncements[hash] = a
	return true
}

// ForgetSeenAnnouncement drops hash from the dedup cache so that the same
// announcement can be processed again.
func (r *Registry) ForgetSeenAnnouncement(hash chainhash.Hash) {
	r.seenMtx.Lock()
	delete(r.seenAnnouncements, hash)
	r.seenMtx.Unlock()

	if r.observer != nil {
		r.observer.ForgetListItem(hash)
	}
}

// SeenHeartbeat ...
func (r *Registry) SeenHeartbeat(hash chainhash.Hash) bool {
	r.seenMtx.RLock()
	defer r.seenMtx.RUnlock()
	_, ok := r.seenHeartbeats[hash]
	return ok
}

// AddSeenHeartbeat records hb; it returns false if it was already there.
func (r *Registry) AddSeenHeartbeat(hb swiftnode.Heartbeat) bool {
	hash := hb.Hash()

	r.seenMtx.Lock()
	defer r.seenMtx.Unlock()

	if _, ok := r.seenHeartbeats[hash]; ok {
		return false
	}
	r.seenHeartbeats[hash] = hb
	return true
}

// ForgetSeenHeartbeat drops hash from the dedup cache.
func (r *Registry) ForgetSeenHeartbeat(hash chainhash.Hash) {
	r.seenMtx.Lock()
	delete(r.seenHeartbeats, hash)
	r.seenMtx.Unlock()
}

// SeenCounts returns the sizes of the dedup caches.
func (r *Registry) SeenCounts() (announcements int, heartbeats int) {
	r.seenMtx.RLock()
	defer r.seenMtx.RUnlock()
	return len(r.seenAnnouncements), len(r.seenHeartbeats)
}
