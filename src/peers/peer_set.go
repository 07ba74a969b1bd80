package peers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/swiftcashproject/swiftnode/src/chain"
)

const (
	// BanScore is the misbehaviour score at which a peer is banned.
	BanScore = 100

	// BanSeconds is how long a banned address is refused.
	BanSeconds = 24 * 60 * 60
)

type entry struct {
	peer      Peer
	score     int
	fulfilled map[string]bool
}

// PeerSet is the set of connected peers, keyed by network address.
type PeerSet struct {
	sync.RWMutex
	byAddr map[string]*entry
	banned map[string]int64

	clock  chain.TimeSource
	logger *logrus.Entry
}

// NewPeerSet ...
func NewPeerSet(clock chain.TimeSource, logger *logrus.Entry) *PeerSet {
	return &PeerSet{
		byAddr: make(map[string]*entry),
		banned: make(map[string]int64),
		clock:  clock,
		logger: logger,
	}
}

// Add registers a connected peer. Banned addresses are refused. Adding a
// known peer updates its version and keeps its bookkeeping.
func (ps *PeerSet) Add(p Peer) error {
	ps.Lock()
	defer ps.Unlock()

	if ps.isBanned(p.NetAddr) {
		return fmt.Errorf("peer %s is banned", p.NetAddr)
	}

	if e, ok := ps.byAddr[p.NetAddr]; ok {
		e.peer = p
		return nil
	}

	ps.byAddr[p.NetAddr] = &entry{
		peer:      p,
		fulfilled: make(map[string]bool),
	}
	return nil
}

// Remove forgets a peer.
func (ps *PeerSet) Remove(addr string) {
	ps.Lock()
	defer ps.Unlock()
	delete(ps.byAddr, addr)
}

// Get returns a copy of the peer at addr.
func (ps *PeerSet) Get(addr string) (Peer, bool) {
	ps.RLock()
	defer ps.RUnlock()
	e, ok := ps.byAddr[addr]
	if !ok {
		return Peer{}, false
	}
	return e.peer, true
}

// List returns copies of the connected peers sorted by address.
func (ps *PeerSet) List() []*Peer {
	ps.RLock()
	res := make([]*Peer, 0, len(ps.byAddr))
	for _, e := range ps.byAddr {
		p := e.peer
		res = append(res, &p)
	}
	ps.RUnlock()

	sort.Sort(ByAddr(res))
	return res
}

// Len returns the number of connected peers.
func (ps *PeerSet) Len() int {
	ps.RLock()
	defer ps.RUnlock()
	return len(ps.byAddr)
}

// Misbehaving adds score to the misbehaviour score of the peer at addr. When
// the total reaches BanScore the peer is removed and its address banned for
// BanSeconds, and true is returned.
func (ps *PeerSet) Misbehaving(addr string, score int) bool {
	if score <= 0 {
		return false
	}

	ps.Lock()
	defer ps.Unlock()

	e, ok := ps.byAddr[addr]
	if !ok {
		return false
	}
	e.score += score

	logger := ps.logger.WithFields(logrus.Fields{
		"peer":  addr,
		"score": e.score,
	})

	if e.score < BanScore {
		logger.Debug("Peer misbehaving")
		return false
	}

	logger.Info("Banning peer")
	delete(ps.byAddr, addr)
	ps.banned[addr] = ps.clock.Now() + BanSeconds
	return true
}

// Score returns the misbehaviour score of the peer at addr.
func (ps *PeerSet) Score(addr string) int {
	ps.RLock()
	defer ps.RUnlock()
	if e, ok := ps.byAddr[addr]; ok {
		return e.score
	}
	return 0
}

// IsBanned ...
func (ps *PeerSet) IsBanned(addr string) bool {
	ps.Lock()
	defer ps.Unlock()
	return ps.isBanned(addr)
}

func (ps *PeerSet) isBanned(addr string) bool {
	until, ok := ps.banned[addr]
	if !ok {
		return false
	}
	if ps.clock.Now() >= until {
		delete(ps.banned, addr)
		return false
	}
	return true
}

// HasFulfilledRequest reports whether the request called name was already
// made to the peer at addr. Unknown peers count as fulfilled.
func (ps *PeerSet) HasFulfilledRequest(addr string, name string) bool {
	ps.RLock()
	defer ps.RUnlock()
	e, ok := ps.byAddr[addr]
	if !ok {
		return true
	}
	return e.fulfilled[name]
}

// FulfilledRequest records that the request called name was made to the peer
// at addr.
func (ps *PeerSet) FulfilledRequest(addr string, name string) {
	ps.Lock()
	defer ps.Unlock()
	if e, ok := ps.byAddr[addr]; ok {
		e.fulfilled[name] = true
	}
}

// ClearFulfilledRequests clears the given request flags of every peer.
func (ps *PeerSet) ClearFulfilledRequests(names ...string) {
	ps.Lock()
	defer ps.Unlock()
	for _, e := range ps.byAddr {
		for _, name := range names {
			delete(e.fulfilled, name)
		}
	}
}
