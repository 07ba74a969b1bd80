package node

import (
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/wire"
	"github.com/sirupsen/logrus"
	"github.com/swiftcashproject/swiftnode/src/active"
	"github.com/swiftcashproject/swiftnode/src/chain"
	"github.com/swiftcashproject/swiftnode/src/net"
	"github.com/swiftcashproject/swiftnode/src/nodesync"
	"github.com/swiftcashproject/swiftnode/src/payments"
	"github.com/swiftcashproject/swiftnode/src/peers"
	"github.com/swiftcashproject/swiftnode/src/protocol"
	"github.com/swiftcashproject/swiftnode/src/registry"
	"github.com/swiftcashproject/swiftnode/src/store"
	"github.com/swiftcashproject/swiftnode/src/swiftnode"
	"github.com/swiftcashproject/swiftnode/src/telemetry"
)

// blockLookahead is how far past a new tip payment votes are cast.
const blockLookahead = 10

// Sporks is the feature flag source of a node. Its values are served to the
// peers that ask for them.
type Sporks interface {
	chain.FeatureFlags
	Values() map[string]int64
}

// Chain groups the external collaborators of a node.
type Chain struct {
	View    chain.ChainView
	UTXO    chain.UTXOOracle
	Wallet  chain.Wallet
	Rewards chain.Rewards
	Budget  chain.Budget
	Flags   Sporks
	Clock   chain.TimeSource
	Params  *chain.Params
}

// Local describes the swiftnode run by this daemon. A nil OperatingKey means
// the daemon only follows the network.
type Local struct {
	OperatingKey    *btcec.PrivateKey
	ServiceAddr     string
	CollateralTx    string
	CollateralIndex uint32
	ConfLocked      []wire.OutPoint
}

// Node ties the swiftnode components to a transport and runs the
// maintenance loop.
type Node struct {
	state

	conf   *Config
	logger *logrus.Entry

	chain  chain.ChainView
	flags  Sporks
	params *chain.Params

	registry  *registry.Registry
	protocol  *protocol.Protocol
	payments  *payments.Manager
	syncer    *nodesync.Syncer
	active    *active.Controller
	peers     *peers.PeerSet
	snapshots *store.Snapshots

	trans net.Transport
	netCh <-chan net.RPC

	sigintCh   chan os.Signal
	shutdownCh chan struct{}

	controlTimer *ControlTimer

	start       time.Time
	lastDump    time.Time
	lastTip     int64
	syncedTicks int64
}

// NewNode is a factory method that returns a Node instance with all the
// swiftnode components wired together.
func NewNode(conf *Config,
	ch Chain,
	local Local,
	peerSet *peers.PeerSet,
	trans net.Transport,
) *Node {
	//Prepare sigintCh to relay SIGINT system calls
	sigintCh := make(chan os.Signal, 1)
	signal.Notify(sigintCh, os.Interrupt, syscall.SIGINT)

	n := &Node{
		conf:         conf,
		logger:       conf.Logger.WithField("node", trans.AdvertiseAddr()),
		chain:        ch.View,
		flags:        ch.Flags,
		params:       ch.Params,
		peers:        peerSet,
		trans:        trans,
		netCh:        trans.Consumer(),
		sigintCh:     sigintCh,
		shutdownCh:   make(chan struct{}),
		controlTimer: NewPeriodicControlTimer(),
		start:        time.Now(),
		lastDump:     time.Now(),
		lastTip:      -1,
	}

	env := swiftnode.Env{Clock: ch.Clock, UTXO: ch.UTXO, Params: ch.Params}
	n.registry = registry.NewRegistry(env, ch.View, ch.Flags, n.component("registry"))

	n.syncer = nodesync.NewSyncer(nodesync.Config{
		Chain:     ch.View,
		Flags:     ch.Flags,
		Params:    ch.Params,
		Clock:     ch.Clock,
		Registry:  n.registry,
		Peers:     peerSet,
		Requester: n,
		Logger:    n.component("sync"),
	})

	n.active = active.NewController(active.Config{
		Registry:        n.registry,
		Chain:           ch.View,
		UTXO:            ch.UTXO,
		Wallet:          ch.Wallet,
		Params:          ch.Params,
		Clock:           ch.Clock,
		Sync:            n.syncer,
		Relay:           n,
		Prober:          n,
		OperatingKey:    local.OperatingKey,
		ServiceAddr:     local.ServiceAddr,
		CollateralTx:    local.CollateralTx,
		CollateralIndex: local.CollateralIndex,
		ConfLocked:      local.ConfLocked,
		Logger:          n.component("active"),
	})
	n.syncer.SetActivator(n.active)

	n.payments = payments.NewManager(payments.Config{
		Registry:  n.registry,
		Chain:     ch.View,
		Flags:     ch.Flags,
		Rewards:   ch.Rewards,
		Budget:    ch.Budget,
		Params:    ch.Params,
		Relay:     n,
		Requester: n,
		Sync:      n.syncer,
		Local:     n.active,
		Logger:    n.component("payments"),
	})
	n.registry.SetPaymentSchedule(n.payments)
	n.registry.SetSyncObserver(n.syncer)

	n.protocol = protocol.NewProtocol(protocol.Config{
		Registry:  n.registry,
		Chain:     ch.View,
		UTXO:      ch.UTXO,
		Flags:     ch.Flags,
		Params:    ch.Params,
		Clock:     ch.Clock,
		Relay:     n,
		Requester: n,
		Sync:      n.syncer,
		Local:     n.active,
		Logger:    n.component("protocol"),
	})

	return n
}

func (n *Node) component(name string) *logrus.Entry {
	return n.logger.WithField("component", name)
}

// EnableSnapshots binds the registry and payments snapshots of dataDir to the
// node. mirror may be nil.
func (n *Node) EnableSnapshots(dataDir string, mirror *store.BadgerStore) {
	n.snapshots = store.NewSnapshots(dataDir, n.params, n.registry, n.payments, mirror, n.component("store"))
}

// Init loads the snapshots, if any, and puts the node in the Syncing state.
func (n *Node) Init() error {
	if n.snapshots != nil {
		n.logger.Debug("Loading snapshots")
		n.snapshots.Load()
	}

	n.logger.WithFields(logrus.Fields{
		"network":   n.params.Name,
		"swiftnode": n.active.IsSwiftnode(),
		"peers":     n.peers.Len(),
	}).Debug("Init")

	n.setState(Syncing)
	return nil
}

// RunAsync calls Run in a separate goroutine.
func (n *Node) RunAsync() {
	n.logger.Debug("runasync")
	go n.Run()
}

// Run invokes the main loop of the node. It returns on Shutdown.
func (n *Node) Run() {
	go n.controlTimer.Run(n.conf.TickInterval)

	//Answer peers regardless of the state of the node.
	go n.doBackgroundWork()

	for {
		select {
		case <-n.controlTimer.tickCh:
			n.tick()
		case <-n.shutdownCh:
			return
		}
	}
}

func (n *Node) doBackgroundWork() {
	for {
		select {
		case rpc := <-n.netCh:
			if !n.goFunc(func() { n.processRPC(rpc) }) {
				n.processRPC(rpc)
			}
		case <-n.shutdownCh:
			return
		case <-n.sigintCh:
			n.logger.Debug("Reacting to SIGINT - SHUTDOWN")
			n.Shutdown()
			os.Exit(0)
		}
	}
}

// tick runs one step of the maintenance loop. The components count in
// seconds, one tick each.
func (n *Node) tick() {
	switch n.getState() {
	case Suspended, Shutdown:
		return
	}

	n.syncer.Process()
	n.checkTip()

	if n.syncer.IsBlockchainSynced() {
		if n.getState() == Syncing {
			n.logger.Info("Blockchain synced")
			n.setState(Running)
		}

		n.syncedTicks++

		// activate or ping right after the chain is synced, then every
		// PingSeconds
		if n.syncedTicks%swiftnode.PingSeconds == 1 {
			n.active.ManageStatus()
		}

		if n.conf.CleanupTicks > 0 && n.syncedTicks%int64(n.conf.CleanupTicks) == 0 {
			n.registry.CheckAndRemove(false)
			n.payments.CleanPaymentList()
		}
	} else if n.getState() == Running {
		n.setState(Syncing)
	}

	if n.snapshots != nil && n.conf.DumpInterval > 0 && time.Since(n.lastDump) >= n.conf.DumpInterval {
		if err := n.Dump(); err != nil {
			n.logger.WithError(err).Error("Dumping snapshots")
		}
	}

	n.updateMetrics()
}

// checkTip reacts to a new chain tip.
func (n *Node) checkTip() {
	tip, err := n.chain.TipHeight()
	if err != nil {
		n.logger.WithError(err).Debug("TipHeight")
		return
	}
	if tip == n.lastTip {
		return
	}
	n.lastTip = tip

	if n.syncer.IsListSynced() {
		n.payments.ProcessBlock(tip + blockLookahead)
	}
}

// Dump writes the snapshots now.
func (n *Node) Dump() error {
	n.lastDump = time.Now()
	if n.snapshots == nil {
		return nil
	}

	start := time.Now()
	err := n.snapshots.Dump()
	n.logger.WithField("duration", time.Since(start).Nanoseconds()).Debug("Dump()")
	n.logStats()
	return err
}

// Suspend stops the maintenance loop. Peers are still answered.
func (n *Node) Suspend() {
	if n.getState() != Shutdown {
		n.setState(Suspended)
	}
}

// Resume restarts the maintenance loop of a suspended node.
func (n *Node) Resume() {
	if n.getState() == Suspended {
		n.setState(Syncing)
	}
}

// Shutdown shuts down the node and dumps the snapshots.
func (n *Node) Shutdown() {
	if n.getState() != Shutdown {
		n.logger.Debug("Shutdown")

		//Exit any non-shutdown state immediately
		n.setState(Shutdown)

		//Stop and wait for concurrent operations
		close(n.shutdownCh)

		n.waitRoutines()

		n.controlTimer.Shutdown()

		//The transport should only be closed once all concurrent operations
		//are finished
		n.trans.Close()

		if n.snapshots != nil {
			if err := n.snapshots.Dump(); err != nil {
				n.logger.WithError(err).Error("Dumping snapshots")
			}
		}
	}
}

func (n *Node) updateMetrics() {
	counts := make(map[swiftnode.State]int)
	for _, rec := range n.registry.All() {
		counts[rec.State]++
	}
	for st := swiftnode.PreEnabled; st <= swiftnode.AddressInvalid; st++ {
		telemetry.Nodes.WithLabelValues(st.String()).Set(float64(counts[st]))
	}
	telemetry.EnabledNodes.Set(float64(n.registry.CountEnabled(n.registry.MinPaymentsProtocol())))

	votes, blocks := n.payments.Counts()
	telemetry.PaymentVotes.Set(float64(votes))
	telemetry.PaymentBlocks.Set(float64(blocks))

	telemetry.SyncStage.Set(float64(n.syncer.Stage()))
	telemetry.ActiveStatus.Set(float64(n.active.State()))
	telemetry.Peers.Set(float64(n.peers.Len()))
}

// GetStats returns stats
func (n *Node) GetStats() map[string]string {
	tip, err := n.chain.TipHeight()
	if err != nil {
		tip = -1
	}
	votes, blocks := n.payments.Counts()
	seenAnnouncements, seenHeartbeats := n.registry.SeenCounts()

	s := map[string]string{
		"state":              n.getState().String(),
		"network":            n.params.Name,
		"addr":               n.trans.AdvertiseAddr(),
		"tip":                strconv.FormatInt(tip, 10),
		"nodes":              strconv.Itoa(n.registry.Size()),
		"enabled":            strconv.Itoa(n.registry.CountEnabled(-1)),
		"stable":             strconv.Itoa(n.registry.StableCount()),
		"seen_announcements": strconv.Itoa(seenAnnouncements),
		"seen_heartbeats":    strconv.Itoa(seenHeartbeats),
		"payment_votes":      strconv.Itoa(votes),
		"payment_blocks":     strconv.Itoa(blocks),
		"sync_stage":         n.syncer.Stage().String(),
		"sync_status":        n.syncer.Status(),
		"sync_failures":      strconv.Itoa(n.syncer.Failures()),
		"active_status":      n.active.Status(),
		"num_peers":          strconv.Itoa(n.peers.Len()),
		"uptime":             time.Since(n.start).Truncate(time.Second).String(),
	}
	return s
}

func (n *Node) logStats() {
	stats := n.GetStats()

	n.logger.WithFields(logrus.Fields{
		"state":         stats["state"],
		"tip":           stats["tip"],
		"nodes":         stats["nodes"],
		"enabled":       stats["enabled"],
		"payment_votes": stats["payment_votes"],
		"sync_stage":    stats["sync_stage"],
		"active_status": stats["active_status"],
		"num_peers":     stats["num_peers"],
	}).Debug("Stats")
}

// StartAlias announces a swiftnode operated elsewhere whose collateral is
// held by this wallet. The announcement is processed like one received from
// a peer, which registers and relays it.
func (n *Node) StartAlias(service, operatingSecret, txHash string, index uint32) (*swiftnode.Announcement, error) {
	a, err := n.active.CreateAnnouncement(service, operatingSecret, txHash, index, false)
	if err != nil {
		return nil, err
	}
	if err := n.protocol.ProcessAnnouncement(n.trans.AdvertiseAddr(), *a); err != nil {
		return nil, err
	}
	n.logger.WithFields(logrus.Fields{
		"outpoint": a.OutPoint.String(),
		"addr":     a.Addr,
	}).Info("Started remote swiftnode")
	return a, nil
}

// Tip returns the height of the chain tip.
func (n *Node) Tip() (int64, error) {
	return n.chain.TipHeight()
}

// GetState returns the state of the node.
func (n *Node) GetState() State {
	return n.getState()
}

// Registry ...
func (n *Node) Registry() *registry.Registry {
	return n.registry
}

// Payments ...
func (n *Node) Payments() *payments.Manager {
	return n.payments
}

// Syncer ...
func (n *Node) Syncer() *nodesync.Syncer {
	return n.syncer
}

// Active ...
func (n *Node) Active() *active.Controller {
	return n.active
}

// Peers ...
func (n *Node) Peers() *peers.PeerSet {
	return n.peers
}

// Params ...
func (n *Node) Params() *chain.Params {
	return n.params
}
