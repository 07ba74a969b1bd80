package payments

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/sirupsen/logrus"
	"github.com/swiftcashproject/swiftnode/src/chain"
	"github.com/swiftcashproject/swiftnode/src/crypto"
	"github.com/swiftcashproject/swiftnode/src/registry"
	"github.com/swiftcashproject/swiftnode/src/spork"
	"github.com/swiftcashproject/swiftnode/src/swiftnode"
)

const (
	// SignaturesRequired is the number of votes that confirms a payee.
	SignaturesRequired = 6

	// SignaturesTotal is the number of top ranked nodes allowed to vote.
	SignaturesTotal = 10

	// VoteLookahead is how far past the tip votes are accepted.
	VoteLookahead = 20

	// scheduleWindow is how many blocks past the tip a payee counts as
	// scheduled.
	scheduleWindow = 8

	// minKeptBlocks is the least number of heights kept by CleanPaymentList.
	minKeptBlocks = 1000

	// paidVotes is the number of votes a payee needs for a block to count
	// as its last payment.
	paidVotes = 2
)

// Relayer forwards accepted votes to our peers.
type Relayer interface {
	RelayVote(v Vote)
}

// EntryRequester asks a peer for a single registry entry.
type EntryRequester interface {
	RequestEntry(peer string, op wire.OutPoint)
}

// SyncObserver is the part of the sync orchestrator that payments use.
type SyncObserver interface {
	AddedWinner(hash chainhash.Hash)
	ForgetWinner(hash chainhash.Hash)
	IsBlockchainSynced() bool
	IsSynced() bool
}

// LocalNode is the swiftnode run by this peer.
type LocalNode interface {
	Identity() (wire.OutPoint, bool)
	OperatingKey() *btcec.PrivateKey
}

// Config groups the collaborators of a Manager.
type Config struct {
	Registry  *registry.Registry
	Chain     chain.ChainView
	Flags     chain.FeatureFlags
	Rewards   chain.Rewards
	Budget    chain.Budget
	Params    *chain.Params
	Relay     Relayer
	Requester EntryRequester
	Sync      SyncObserver
	Local     LocalNode
	Logger    *logrus.Entry
}

type voteKey struct {
	voter  wire.OutPoint
	height int64
}

// Manager owns the payment votes and the per-height tallies. Votes and
// tallies have their own locks, always taken in that order.
type Manager struct {
	votesMtx   sync.RWMutex
	votes      map[chainhash.Hash]Vote
	lastVotes  map[voteKey]bool
	askedUsFor map[string]bool

	blocksMtx sync.RWMutex
	blocks    map[int64]*BlockPayees

	localMtx        sync.Mutex
	lastBlockHeight int64

	registry  *registry.Registry
	chain     chain.ChainView
	flags     chain.FeatureFlags
	rewards   chain.Rewards
	params    *chain.Params
	selector  *Selector
	relay     Relayer
	requester EntryRequester
	sync      SyncObserver
	local     LocalNode

	logger *logrus.Entry
}

// NewManager ...
func NewManager(conf Config) *Manager {
	m := &Manager{
		votes:      make(map[chainhash.Hash]Vote),
		lastVotes:  make(map[voteKey]bool),
		askedUsFor: make(map[string]bool),
		blocks:     make(map[int64]*BlockPayees),
		registry:   conf.Registry,
		chain:      conf.Chain,
		flags:      conf.Flags,
		rewards:    conf.Rewards,
		params:     conf.Params,
		relay:      conf.Relay,
		requester:  conf.Requester,
		sync:       conf.Sync,
		local:      conf.Local,
		logger:     conf.Logger,
	}
	m.selector = newSelector(m, conf.Flags, conf.Budget)
	return m
}

// SetLocalNode wires the local node once it exists.
func (m *Manager) SetLocalNode(l LocalNode) {
	m.local = l
}

// SetSyncObserver ...
func (m *Manager) SetSyncObserver(s SyncObserver) {
	m.sync = s
}

// StrategyFor returns the payee strategy of height.
func (m *Manager) StrategyFor(height int64) PayeeStrategy {
	return m.selector.StrategyFor(height)
}

// MinPaymentsProtocol is the minimum protocol of a payable node.
func (m *Manager) MinPaymentsProtocol() int32 {
	return spork.MinPaymentsProtocol(m.flags)
}

// CanVote records that voter voted at height. It returns false if it already
// did.
func (m *Manager) CanVote(voter wire.OutPoint, height int64) bool {
	m.votesMtx.Lock()
	defer m.votesMtx.Unlock()

	key := voteKey{voter: voter, height: height}
	if m.lastVotes[key] {
		return false
	}
	m.lastVotes[key] = true
	return true
}

// AddVote adds v to the tally of its height. Votes for heights whose score
// anchor is unknown, and votes already counted, are refused.
func (m *Manager) AddVote(v Vote) bool {
	if _, err := m.chain.BlockHash(v.Height - swiftnode.ScoreOffset); err != nil {
		return false
	}

	hash := v.Hash()

	m.votesMtx.Lock()
	defer m.votesMtx.Unlock()

	if _, ok := m.votes[hash]; ok {
		return false
	}
	m.votes[hash] = v.Copy()

	m.blocksMtx.Lock()
	defer m.blocksMtx.Unlock()

	b, ok := m.blocks[v.Height]
	if !ok {
		b = NewBlockPayees(v.Height)
		m.blocks[v.Height] = b
	}
	b.AddPayee(v.Payee, 1)

	return true
}

// HasVote reports whether a vote with hash was counted.
func (m *Manager) HasVote(hash chainhash.Hash) bool {
	m.votesMtx.RLock()
	defer m.votesMtx.RUnlock()
	_, ok := m.votes[hash]
	return ok
}

// BlockPayees returns a copy of the tally of height.
func (m *Manager) BlockPayees(height int64) (*BlockPayees, bool) {
	m.blocksMtx.RLock()
	defer m.blocksMtx.RUnlock()
	b, ok := m.blocks[height]
	if !ok {
		return nil, false
	}
	return b.Copy(), true
}

// BlockPayee returns the most voted payee of height.
func (m *Manager) BlockPayee(height int64) ([]byte, bool) {
	m.blocksMtx.RLock()
	defer m.blocksMtx.RUnlock()
	b, ok := m.blocks[height]
	if !ok {
		return nil, false
	}
	return b.Payee()
}

// IsScheduled implements registry.PaymentSchedule. It looks at the votes of
// the next few blocks only, leaving room for the latest winners to
// propagate.
func (m *Manager) IsScheduled(payee []byte, notHeight int64) bool {
	tip, err := m.chain.TipHeight()
	if err != nil {
		return false
	}

	m.blocksMtx.RLock()
	defer m.blocksMtx.RUnlock()

	for h := tip; h <= tip+scheduleWindow; h++ {
		if h == notHeight {
			continue
		}
		b, ok := m.blocks[h]
		if !ok {
			continue
		}
		if p, ok := b.Payee(); ok && crypto.ScriptEqual(p, payee) {
			return true
		}
	}
	return false
}

// LastPaidTime implements registry.PaymentSchedule. It walks back from the
// tip over 2.5 payment cycles looking for a block where payee had at least
// two votes.
func (m *Manager) LastPaidTime(payee []byte) int64 {
	tip, err := m.chain.TipHeight()
	if err != nil {
		return 0
	}

	depth := int64(float64(m.registry.CountEnabled(-1)) * 2.5)

	for h, n := tip, int64(0); h > 0 && n < depth; h, n = h-1, n+1 {
		m.blocksMtx.RLock()
		b, ok := m.blocks[h]
		paid := ok && b.HasPayeeWithVotes(payee, paidVotes)
		m.blocksMtx.RUnlock()

		if paid {
			t, err := m.chain.BlockTime(h)
			if err != nil {
				return 0
			}
			return t
		}
	}
	return 0
}

// RequiredPayment is the least a block at height must pay its swiftnode. The
// node count used is inflated by the network drift so that peers with a
// slightly larger view of the network still agree.
func (m *Manager) RequiredPayment(height int64) int64 {
	var count int
	if m.flags.IsActive(spork.SwiftnodePaymentEnforcement) {
		count = m.registry.StableCount() + m.params.CountDrift
	} else {
		count = m.registry.Size() + m.params.CountDrift
	}
	value := m.rewards.BlockValue(height - 1)
	return m.rewards.NodePayment(height, value, count)
}

// IsTransactionValid checks the swiftnode payment of tx against the tally of
// height. Heights without votes are always valid.
func (m *Manager) IsTransactionValid(tx *wire.MsgTx, height int64) error {
	m.blocksMtx.RLock()
	b, ok := m.blocks[height]
	if ok {
		b = b.Copy()
	}
	m.blocksMtx.RUnlock()

	if !ok {
		return nil
	}
	return b.IsTransactionValid(tx, m.RequiredPayment(height))
}

// IsBlockPayeeValid checks the service outputs of the coinbase tx of a block
// at height, using the strategy of that height. Before the swiftnode layer
// is synced every block is accepted.
func (m *Manager) IsBlockPayeeValid(tx *wire.MsgTx, height int64) bool {
	if m.sync != nil && !m.sync.IsSynced() {
		m.logger.Debug("Not synced, skipping block payee checks")
		return true
	}

	s := m.StrategyFor(height)
	if err := s.Check(tx, height); err != nil {
		m.logger.WithFields(logrus.Fields{
			"height":   height,
			"strategy": s.Name(),
			"tx":       tx.TxHash().String(),
		}).WithError(err).Info("Invalid block payee")
		return false
	}
	return true
}

// FillBlockPayee adds the payee outputs of the next block to tx.
func (m *Manager) FillBlockPayee(tx *wire.MsgTx, fees int64) {
	tip, err := m.chain.TipHeight()
	if err != nil {
		return
	}
	m.StrategyFor(tip+1).Fill(tx, fees, tip+1)
}

// fillRegular pays the voted payee of height, or the current winner when
// there is none. The first output keeps the rest of the block value.
func (m *Manager) fillRegular(tx *wire.MsgTx, height int64) {
	payee, ok := m.BlockPayee(height)
	if !ok {
		winner, err := m.registry.CurrentWinner(0, m.MinPaymentsProtocol())
		if err != nil {
			m.logger.WithError(err).Info("Failed to detect swiftnode to pay")
			return
		}
		payee = winner.Payee()
	}

	value := m.rewards.BlockValue(height - 1)
	payment := m.rewards.NodePayment(height-1, value, m.registry.Size())

	if len(tx.TxOut) == 0 {
		tx.AddTxOut(wire.NewTxOut(0, nil))
	}
	tx.TxOut = append(tx.TxOut[:1], wire.NewTxOut(payment, payee))
	tx.TxOut[0].Value = value - payment

	m.logger.WithFields(logrus.Fields{
		"height":  height,
		"payee":   crypto.ScriptString(payee),
		"payment": payment,
	}).Debug("Swiftnode payment")
}

// RequiredPaymentsString describes the votes of height for the strategy of
// that height.
func (m *Manager) RequiredPaymentsString(height int64) string {
	m.blocksMtx.RLock()
	defer m.blocksMtx.RUnlock()
	if b, ok := m.blocks[height]; ok {
		return b.RequiredPaymentsString()
	}
	return "Unknown"
}

// CleanPaymentList drops votes older than max(1.25 × registry size, 1000)
// blocks, with their tallies.
func (m *Manager) CleanPaymentList() {
	tip, err := m.chain.TipHeight()
	if err != nil {
		return
	}

	limit := int64(math.Max(float64(m.registry.Size())*1.25, minKeptBlocks))
	forgotten := []chainhash.Hash{}

	m.votesMtx.Lock()
	m.blocksMtx.Lock()
	for hash, v := range m.votes {
		if tip-v.Height > limit {
			m.logger.WithField("height", v.Height).Debug("Removing old swiftnode payment")
			delete(m.votes, hash)
			delete(m.blocks, v.Height)
			forgotten = append(forgotten, hash)
		}
	}
	for key := range m.lastVotes {
		if tip-key.height > limit {
			delete(m.lastVotes, key)
		}
	}
	m.blocksMtx.Unlock()
	m.votesMtx.Unlock()

	if m.sync != nil {
		for _, hash := range forgotten {
			m.sync.ForgetWinner(hash)
		}
	}
}

// OldestBlock returns the lowest height with votes, math.MaxInt64 if there
// are none.
func (m *Manager) OldestBlock() int64 {
	m.blocksMtx.RLock()
	defer m.blocksMtx.RUnlock()
	res := int64(math.MaxInt64)
	for h := range m.blocks {
		if h < res {
			res = h
		}
	}
	return res
}

// NewestBlock returns the highest height with votes, 0 if there are none.
func (m *Manager) NewestBlock() int64 {
	m.blocksMtx.RLock()
	defer m.blocksMtx.RUnlock()
	var res int64
	for h := range m.blocks {
		if h > res {
			res = h
		}
	}
	return res
}

// Counts returns the number of votes and of heights with votes.
func (m *Manager) Counts() (votes int, blocks int) {
	m.votesMtx.RLock()
	votes = len(m.votes)
	m.votesMtx.RUnlock()

	m.blocksMtx.RLock()
	blocks = len(m.blocks)
	m.blocksMtx.RUnlock()
	return
}

// Votes returns copies of the votes, ordered by height then voter.
func (m *Manager) Votes() []Vote {
	m.votesMtx.RLock()
	res := make([]Vote, 0, len(m.votes))
	for _, v := range m.votes {
		res = append(res, v.Copy())
	}
	m.votesMtx.RUnlock()

	sort.Slice(res, func(i, j int) bool {
		if res[i].Height != res[j].Height {
			return res[i].Height < res[j].Height
		}
		return swiftnode.CompareOutPoints(res[i].Voter, res[j].Voter) < 0
	})
	return res
}

// Clear drops every vote and tally.
func (m *Manager) Clear() {
	m.votesMtx.Lock()
	m.blocksMtx.Lock()
	m.votes = make(map[chainhash.Hash]Vote)
	m.lastVotes = make(map[voteKey]bool)
	m.blocks = make(map[int64]*BlockPayees)
	m.blocksMtx.Unlock()
	m.votesMtx.Unlock()
}

// String ...
func (m *Manager) String() string {
	votes, blocks := m.Counts()
	return fmt.Sprintf("Votes: %d, Blocks: %d", votes, blocks)
}

func (m *Manager) enabledWindow(tip int64) int64 {
	return tip - int64(float64(m.registry.CountEnabled(-1))*1.25)
}
