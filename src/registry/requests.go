package registry

import (
	"github.com/btcsuite/btcd/wire"
	"github.com/sirupsen/logrus"
	"github.com/swiftcashproject/swiftnode/src/common"
	"github.com/swiftcashproject/swiftnode/src/swiftnode"
)

// AskForNode reports whether the entry of op should be requested from peer,
// and if so remembers the request for swiftnode.MinPingSeconds. Entries are
// re-requested at most that often, whichever peer is asked.
func (r *Registry) AskForNode(peer string, op wire.OutPoint) bool {
	now := r.env.Clock.Now()

	r.reqMtx.Lock()
	defer r.reqMtx.Unlock()

	if t, ok := r.weAskedForEntry[op]; ok && now < t {
		return false
	}

	r.logger.WithFields(logrus.Fields{
		"peer":     peer,
		"outpoint": op.String(),
	}).Debug("Asking for missing entry")

	r.weAskedForEntry[op] = now + swiftnode.MinPingSeconds
	return true
}

// RequestList reports whether the full list should be requested from peer,
// and if so remembers the request for ListRequestSeconds. On mainnet public
// peers are asked at most that often.
func (r *Registry) RequestList(peer string) bool {
	now := r.env.Clock.Now()

	r.reqMtx.Lock()
	defer r.reqMtx.Unlock()

	if r.env.Params.IsMainNet() && !swiftnode.IsPrivateAddr(peer) {
		if t, ok := r.weAskedForList[peer]; ok && now < t {
			r.logger.WithField("peer", peer).Debug("Already asked peer for the list")
			return false
		}
	}

	r.weAskedForList[peer] = now + ListRequestSeconds
	return true
}

// ServeListRequest returns the announcements to send in answer to a list
// request from peer. A nil filter asks for the whole list; on mainnet a
// public peer may do so once per ListRequestSeconds, repeats are charged 34.
// Only enabled nodes with public addresses are served.
func (r *Registry) ServeListRequest(peer string, filter *wire.OutPoint) ([]swiftnode.Announcement, error) {
	now := r.env.Clock.Now()

	if filter == nil && r.env.Params.IsMainNet() && !swiftnode.IsPrivateAddr(peer) {
		r.reqMtx.Lock()
		t, ok := r.askedUsForList[peer]
		if ok && now < t {
			r.reqMtx.Unlock()
			return nil, common.NewValidationError(34, "peer %s already asked for the list", peer)
		}
		r.askedUsForList[peer] = now + ListRequestSeconds
		r.reqMtx.Unlock()
	}

	r.mtx.RLock()
	res := []swiftnode.Announcement{}
	for _, rec := range r.nodes {
		if swiftnode.IsPrivateAddr(rec.Addr) && !r.env.Params.RegTest {
			continue
		}
		if !rec.IsEnabled() {
			continue
		}
		if filter != nil && *filter != rec.OutPoint {
			continue
		}
		res = append(res, swiftnode.AnnouncementFromRecord(rec))
		if filter != nil {
			break
		}
	}
	r.mtx.RUnlock()

	r.seenMtx.Lock()
	for _, a := range res {
		if _, ok := r.seenAnnouncements[a.Hash()]; !ok {
			r.seenAnnouncements[a.Hash()] = a
		}
	}
	r.seenMtx.Unlock()

	r.logger.WithFields(logrus.Fields{
		"peer":  peer,
		"count": len(res),
		"full":  filter == nil,
	}).Debug("Serving list request")

	return res, nil
}
