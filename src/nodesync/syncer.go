package nodesync

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/sirupsen/logrus"
	"github.com/swiftcashproject/swiftnode/src/chain"
	"github.com/swiftcashproject/swiftnode/src/peers"
)

const (
	// Timeout is the base duration of a stage, in seconds.
	Timeout = 5

	// Threshold is the number of times an item counts as progress, and the
	// number of attempts after which a stage may be left.
	Threshold = 2

	// TickInterval is the number of Process calls per sync step.
	TickInterval = 5

	// ResyncCheckSeconds is how often a finished sync checks that it still
	// knows enabled swiftnodes.
	ResyncCheckSeconds = 30 * 60

	// FailureCooldown is the wait before a failed sync starts over.
	FailureCooldown = 60

	// MaxTipAge is the age past which the chain tip is not considered synced.
	MaxTipAge = 5 * 60 * 60

	// SleepGap is the pause in IsBlockchainSynced calls after which the
	// process is assumed to have been asleep, and the sync starts over.
	SleepGap = 60 * 60
)

// Names of the per-peer request flags, one per stage.
const (
	requestSporks  = "getspork"
	requestList    = "mnsync"
	requestWinners = "mnwsync"
	requestBudget  = "busync"
)

// Peers lists the connected peers and tracks the requests made to them.
type Peers interface {
	List() []*peers.Peer
	HasFulfilledRequest(addr string, name string) bool
	FulfilledRequest(addr string, name string)
	ClearFulfilledRequests(names ...string)
}

// Requester sends sync requests to peers.
type Requester interface {
	RequestSporks(peer string)
	RequestList(peer string)
	RequestWinners(peer string, countNeeded int)
	RequestBudget(peer string)
}

// Registry is the part of the registry the Syncer reads.
type Registry interface {
	CountEnabled(protocol int32) int

	// RequestList reports whether the list may be asked from peer now.
	RequestList(peer string) bool
}

// Activator is told when the sync completes so that the local swiftnode can
// start.
type Activator interface {
	ManageStatus()
}

// Config groups the collaborators of a Syncer.
type Config struct {
	Chain     chain.ChainView
	Flags     chain.FeatureFlags
	Params    *chain.Params
	Clock     chain.TimeSource
	Registry  Registry
	Peers     Peers
	Requester Requester
	Activator Activator
	Logger    *logrus.Entry
}

// Syncer is the sync state machine. All its methods are safe for concurrent
// use.
type Syncer struct {
	mtx sync.Mutex

	stage            Stage
	attempt          int
	assetSyncStarted int64

	// time of the last new item of each stage
	lastList   int64
	lastWinner int64

	seenList   map[chainhash.Hash]int
	seenWinner map[chainhash.Hash]int

	// sums and number of the counts reported by peers
	sumList         int
	sumWinner       int
	sumBudgetProp   int
	sumBudgetFin    int
	countList       int
	countWinner     int
	countBudgetProp int
	countBudgetFin  int

	lastFailure int64
	failures    int

	tick      int
	lastCheck int64

	blockchainSynced bool
	lastProcess      int64

	chain     chain.ChainView
	flags     chain.FeatureFlags
	params    *chain.Params
	clock     chain.TimeSource
	registry  Registry
	peers     Peers
	requester Requester
	activator Activator

	logger *logrus.Entry
}

// NewSyncer ...
func NewSyncer(conf Config) *Syncer {
	now := conf.Clock.Now()
	s := &Syncer{
		chain:       conf.Chain,
		flags:       conf.Flags,
		params:      conf.Params,
		clock:       conf.Clock,
		registry:    conf.Registry,
		peers:       conf.Peers,
		requester:   conf.Requester,
		activator:   conf.Activator,
		logger:      conf.Logger,
		lastCheck:   now,
		lastProcess: now,
	}
	s.reset(now)
	return s
}

// SetActivator ...
func (s *Syncer) SetActivator(a Activator) {
	s.mtx.Lock()
	s.activator = a
	s.mtx.Unlock()
}

// Reset starts the sync over.
func (s *Syncer) Reset() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.reset(s.clock.Now())
}

func (s *Syncer) reset(now int64) {
	s.stage = Initial
	s.attempt = 0
	s.assetSyncStarted = now

	s.lastList = 0
	s.lastWinner = 0
	s.seenList = make(map[chainhash.Hash]int)
	s.seenWinner = make(map[chainhash.Hash]int)

	s.sumList, s.sumWinner, s.sumBudgetProp, s.sumBudgetFin = 0, 0, 0, 0
	s.countList, s.countWinner, s.countBudgetProp, s.countBudgetFin = 0, 0, 0, 0

	s.lastFailure = 0
	s.failures = 0
}

// Stage returns the current stage.
func (s *Syncer) Stage() Stage {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.stage
}

// Status returns the status line of the current stage.
func (s *Syncer) Status() string {
	return s.Stage().String()
}

// Failures returns the number of failures since the last reset.
func (s *Syncer) Failures() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.failures
}

// IsSynced reports whether the sync finished.
func (s *Syncer) IsSynced() bool {
	return s.Stage() == Finished
}

// IsListSynced reports whether the registry stage is over.
func (s *Syncer) IsListSynced() bool {
	stage := s.Stage()
	return stage > List && stage != Failed
}

// IsBlockchainSynced reports whether the chain tip is recent. Once true it
// stays true, unless calls stop for SleepGap, which resets the whole sync.
func (s *Syncer) IsBlockchainSynced() bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.isBlockchainSynced(s.clock.Now())
}

func (s *Syncer) isBlockchainSynced(now int64) bool {
	if now-s.lastProcess > SleepGap {
		s.logger.Info("Woke up from sleep, restarting sync")
		s.reset(now)
		s.blockchainSynced = false
	}
	s.lastProcess = now

	if s.blockchainSynced {
		return true
	}

	if s.chain.IsImporting() {
		return false
	}

	tip, err := s.chain.TipHeight()
	if err != nil {
		return false
	}
	t, err := s.chain.BlockTime(tip)
	if err != nil {
		return false
	}
	if t+MaxTipAge < now {
		return false
	}

	s.blockchainSynced = true
	return true
}

// AddedListItem counts an announcement as progress of the List stage.
func (s *Syncer) AddedListItem(hash chainhash.Hash) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.added(s.seenList, &s.lastList, hash)
}

// AddedWinner counts a payment vote as progress of the PaymentWinners stage.
func (s *Syncer) AddedWinner(hash chainhash.Hash) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.added(s.seenWinner, &s.lastWinner, hash)
}

// added moves the progress time of a stage. Each item counts up to Threshold
// times, as it is received from different peers.
func (s *Syncer) added(seen map[chainhash.Hash]int, last *int64, hash chainhash.Hash) {
	if seen[hash] >= Threshold {
		return
	}
	seen[hash]++
	*last = s.clock.Now()
}

// ForgetListItem implements registry.SyncObserver.
func (s *Syncer) ForgetListItem(hash chainhash.Hash) {
	s.mtx.Lock()
	delete(s.seenList, hash)
	s.mtx.Unlock()
}

// ForgetWinner implements payments.SyncObserver.
func (s *Syncer) ForgetWinner(hash chainhash.Hash) {
	s.mtx.Lock()
	delete(s.seenWinner, hash)
	s.mtx.Unlock()
}

// ProcessSyncCount records the number of items a peer sent for a stage.
// Counts for stages other than the current one are ignored.
func (s *Syncer) ProcessSyncCount(peer string, stage Stage, count int) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.stage >= Finished {
		return
	}

	switch stage {
	case List:
		if s.stage != List {
			return
		}
		s.sumList += count
		s.countList++
	case PaymentWinners:
		if s.stage != PaymentWinners {
			return
		}
		s.sumWinner += count
		s.countWinner++
	case BudgetProp:
		if s.stage != Budget {
			return
		}
		s.sumBudgetProp += count
		s.countBudgetProp++
	case BudgetFin:
		if s.stage != Budget {
			return
		}
		s.sumBudgetFin += count
		s.countBudgetFin++
	default:
		return
	}

	s.logger.WithFields(logrus.Fields{
		"peer":  peer,
		"stage": int(stage),
		"count": count,
	}).Debug("Got inventory count")
}

// SyncCounts returns the total count reported by peers for each stage.
func (s *Syncer) SyncCounts() map[Stage]int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return map[Stage]int{
		List:           s.sumList,
		PaymentWinners: s.sumWinner,
		BudgetProp:     s.sumBudgetProp,
		BudgetFin:      s.sumBudgetFin,
	}
}

// IsBudgetPropEmpty reports whether peers said they have no budget proposals.
func (s *Syncer) IsBudgetPropEmpty() bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.sumBudgetProp == 0 && s.countBudgetProp > 0
}

// IsBudgetFinEmpty reports whether peers said they have no finalized budgets.
func (s *Syncer) IsBudgetFinEmpty() bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.sumBudgetFin == 0 && s.countBudgetFin > 0
}
