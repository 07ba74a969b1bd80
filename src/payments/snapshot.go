package payments

import (
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Snapshot is the persisted form of the payment votes.
type Snapshot struct {
	Votes  []Vote
	Blocks []*BlockPayees
}

// Snapshot returns a deep copy of the votes and tallies.
func (m *Manager) Snapshot() *Snapshot {
	s := &Snapshot{Votes: m.Votes()}

	m.blocksMtx.RLock()
	for _, b := range m.blocks {
		s.Blocks = append(s.Blocks, b.Copy())
	}
	m.blocksMtx.RUnlock()

	sort.Slice(s.Blocks, func(i, j int) bool {
		return s.Blocks[i].Height < s.Blocks[j].Height
	})
	return s
}

// Restore replaces the votes and tallies with s. Vote-once bookkeeping is
// session state and starts empty. Callers run CleanPaymentList before
// trusting restored data.
func (m *Manager) Restore(s *Snapshot) {
	votes := make(map[chainhash.Hash]Vote, len(s.Votes))
	for _, v := range s.Votes {
		votes[v.Hash()] = v.Copy()
	}
	blocks := make(map[int64]*BlockPayees, len(s.Blocks))
	for _, b := range s.Blocks {
		blocks[b.Height] = b.Copy()
	}

	m.votesMtx.Lock()
	m.blocksMtx.Lock()
	m.votes = votes
	m.lastVotes = make(map[voteKey]bool)
	m.blocks = blocks
	m.blocksMtx.Unlock()
	m.votesMtx.Unlock()
}
