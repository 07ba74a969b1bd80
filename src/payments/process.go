package payments

import (
	"github.com/sirupsen/logrus"
	"github.com/swiftcashproject/swiftnode/src/common"
	"github.com/swiftcashproject/swiftnode/src/crypto"
	"github.com/swiftcashproject/swiftnode/src/spork"
	"github.com/swiftcashproject/swiftnode/src/swiftnode"
)

// ProcessVote handles a vote received from a peer speaking peerVersion. The
// returned error carries the misbehaviour score of the peer, if any.
func (m *Manager) ProcessVote(peer string, peerVersion int32, v Vote) error {
	if m.sync != nil && !m.sync.IsBlockchainSynced() {
		return nil
	}

	active := spork.ActiveProtocol(m.flags)
	if peerVersion < active {
		return nil
	}

	tip, err := m.chain.TipHeight()
	if err != nil {
		return common.NewTransientError("tip", err)
	}

	hash := v.Hash()
	if m.HasVote(hash) {
		if m.sync != nil {
			m.sync.AddedWinner(hash)
		}
		return nil
	}

	first := m.enabledWindow(tip)
	if v.Height < first || v.Height > tip+VoteLookahead {
		return common.NewValidationError(0, "vote for %d out of range [%d, %d]", v.Height, first, tip+VoteLookahead)
	}

	rec, err := m.registry.Find(v.Voter)
	if err != nil {
		m.askForVoter(peer, v)
		return common.NewValidationError(0, "vote from unknown swiftnode %s", v.Voter)
	}

	if rec.ProtocolVersion < active {
		return common.NewValidationError(0, "voter %s protocol %d too old, %d required", v.Voter, rec.ProtocolVersion, active)
	}

	rank := m.registry.Rank(v.Voter, v.Height-swiftnode.ScoreOffset, active, true)
	if rank < 1 || rank > SignaturesTotal {
		return common.NewValidationError(0, "voter %s ranked %d at %d", v.Voter, rank, v.Height)
	}

	if err := v.Verify(rec.OperatingPubKey); err != nil {
		// the voter may have changed keys in an announcement we missed
		m.askForVoter(peer, v)
		if m.sync != nil && m.sync.IsSynced() {
			return common.NewValidationError(20, "bad vote signature from %s: %v", v.Voter, err)
		}
		return common.NewValidationError(0, "bad vote signature from %s: %v", v.Voter, err)
	}

	if !m.CanVote(v.Voter, v.Height) {
		m.logger.WithFields(logrus.Fields{
			"voter":  v.Voter.String(),
			"height": v.Height,
		}).Debug("Swiftnode already voted")
		return nil
	}

	if !m.AddVote(v) {
		return nil
	}

	if m.relay != nil {
		m.relay.RelayVote(v)
	}
	if m.sync != nil {
		m.sync.AddedWinner(hash)
	}

	return nil
}

func (m *Manager) askForVoter(peer string, v Vote) {
	if m.registry.AskForNode(peer, v.Voter) && m.requester != nil {
		m.requester.RequestEntry(peer, v.Voter)
	}
}

// ProcessBlock makes the local node vote for the payee of height when it
// ranks in the top SignaturesTotal. It returns true if a vote was cast.
func (m *Manager) ProcessBlock(height int64) bool {
	if m.local == nil {
		return false
	}
	voter, ok := m.local.Identity()
	if !ok {
		return false
	}

	logger := m.logger.WithField("height", height)

	rank := m.registry.Rank(voter, height-swiftnode.ScoreOffset, spork.ActiveProtocol(m.flags), true)
	if rank == -1 {
		logger.Debug("Unknown swiftnode")
		return false
	}
	if rank > SignaturesTotal {
		logger.WithField("rank", rank).Debug("Swiftnode not in the top ranks")
		return false
	}

	m.localMtx.Lock()
	defer m.localMtx.Unlock()

	if height <= m.lastBlockHeight {
		return false
	}

	s := m.StrategyFor(height)
	payee, err := s.Propose(height)
	if err != nil {
		logger.WithError(err).WithField("strategy", s.Name()).Debug("No payee to vote for")
		return false
	}

	v := NewVote(voter, height, payee)
	if err := v.Sign(m.local.OperatingKey()); err != nil {
		logger.WithError(err).Error("Signing vote")
		return false
	}

	if !m.CanVote(voter, height) {
		return false
	}
	if !m.AddVote(v) {
		return false
	}

	logger.WithField("payee", crypto.ScriptString(payee)).Debug("Voted for payee")

	if m.relay != nil {
		m.relay.RelayVote(v)
	}
	m.lastBlockHeight = height
	return true
}

// ServeSync returns the votes to send to a peer that needs countNeeded
// blocks of history. On mainnet a peer may ask once; repeats are charged 20.
func (m *Manager) ServeSync(peer string, countNeeded int) ([]Vote, error) {
	if m.sync != nil && !m.sync.IsBlockchainSynced() {
		return nil, nil
	}

	m.votesMtx.Lock()
	asked := m.askedUsFor[peer]
	m.askedUsFor[peer] = true
	m.votesMtx.Unlock()

	if asked && m.params.IsMainNet() {
		return nil, common.NewValidationError(20, "peer %s already asked for the winners", peer)
	}

	tip, err := m.chain.TipHeight()
	if err != nil {
		return nil, common.NewTransientError("tip", err)
	}

	limit := int(float64(m.registry.CountEnabled(-1)) * 1.25)
	if countNeeded > limit {
		countNeeded = limit
	}

	res := []Vote{}
	for _, v := range m.Votes() {
		if v.Height >= tip-int64(countNeeded) && v.Height <= tip+VoteLookahead {
			res = append(res, v)
		}
	}

	m.logger.WithFields(logrus.Fields{
		"peer":  peer,
		"votes": len(res),
	}).Debug("Serving winners")

	return res, nil
}

// ForgetPeer clears the request bookkeeping of a disconnected peer.
func (m *Manager) ForgetPeer(peer string) {
	m.votesMtx.Lock()
	delete(m.askedUsFor, peer)
	m.votesMtx.Unlock()
}
