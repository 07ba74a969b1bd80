package active

import (
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/sirupsen/logrus"
	"github.com/swiftcashproject/swiftnode/src/chain"
	"github.com/swiftcashproject/swiftnode/src/crypto/keys"
	"github.com/swiftcashproject/swiftnode/src/registry"
	"github.com/swiftcashproject/swiftnode/src/swiftnode"
)

// AnchorOffset is the depth, below the tip, of the block a heartbeat is
// anchored on.
const AnchorOffset = 12

var (
	errNotStarted = errors.New("swiftnode is not started")
	errTooEarly   = errors.New("too early to send a heartbeat")
	errNotListed  = errors.New("swiftnode is not in the registry")
	errNoCoins    = errors.New("could not find suitable coins")
)

// Syncer tells whether the chain tip is recent enough to sign on it.
type Syncer interface {
	IsBlockchainSynced() bool
}

// Relayer forwards messages created by the local node to peers.
type Relayer interface {
	RelayAnnouncement(a swiftnode.Announcement)
	RelayHeartbeat(hb swiftnode.Heartbeat)
}

// Prober checks that addr accepts inbound connections.
type Prober interface {
	Probe(addr string) error
}

// Config groups the collaborators of a Controller. OperatingKey is nil when
// this peer does not run a swiftnode; the Controller then stays Initial.
type Config struct {
	Registry *registry.Registry
	Chain    chain.ChainView
	UTXO     chain.UTXOOracle
	Wallet   chain.Wallet
	Params   *chain.Params
	Clock    chain.TimeSource
	Sync     Syncer
	Relay    Relayer
	Prober   Prober

	OperatingKey *btcec.PrivateKey
	ServiceAddr  string

	// CollateralTx and CollateralIndex pin the collateral output. When
	// CollateralTx is empty the first suitable wallet output is used.
	CollateralTx    string
	CollateralIndex uint32

	// ConfLocked are the outputs reserved by swiftnode.conf entries. They are
	// locked in the wallet but remain eligible as collateral.
	ConfLocked []wire.OutPoint

	Logger *logrus.Entry
}

// Controller drives the lifecycle of the local swiftnode.
type Controller struct {
	// manageMtx serializes ManageStatus and SendHeartbeat
	manageMtx sync.Mutex

	mtx      sync.Mutex
	status   Status
	reason   string
	outPoint wire.OutPoint
	service  string

	opKey *btcec.PrivateKey
	opPub []byte

	conf   Config
	logger *logrus.Entry
}

// NewController ...
func NewController(conf Config) *Controller {
	c := &Controller{
		status:  Initial,
		service: conf.ServiceAddr,
		opKey:   conf.OperatingKey,
		conf:    conf,
		logger:  conf.Logger,
	}
	if conf.OperatingKey != nil {
		c.opPub = keys.FromPublicKey(conf.OperatingKey.PubKey())
	}
	for _, op := range conf.ConfLocked {
		if conf.Wallet != nil {
			conf.Wallet.LockCoin(op)
		}
	}
	return c
}

// IsSwiftnode reports whether an operating key is configured.
func (c *Controller) IsSwiftnode() bool {
	return c.opKey != nil
}

// OperatingPubKey implements protocol.LocalNode.
func (c *Controller) OperatingPubKey() []byte {
	return c.opPub
}

// OperatingKey implements payments.LocalNode.
func (c *Controller) OperatingKey() *btcec.PrivateKey {
	return c.opKey
}

// Identity returns the collateral of the local node once it is Started.
func (c *Controller) Identity() (wire.OutPoint, bool) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.status != Started {
		return wire.OutPoint{}, false
	}
	return c.outPoint, true
}

// State returns the current status.
func (c *Controller) State() Status {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.status
}

// Status returns the status line, with the reason when not capable.
func (c *Controller) Status() string {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.status == NotCapable {
		return c.status.String() + ": " + c.reason
	}
	return c.status.String()
}

// Reason returns the last reason the node could not start.
func (c *Controller) Reason() string {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.reason
}

// ServiceAddr returns the address the node is announced with.
func (c *Controller) ServiceAddr() string {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.service
}

// EnableHotCold starts the local node from an announcement made by a remote
// wallet. It implements protocol.LocalNode.
func (c *Controller) EnableHotCold(op wire.OutPoint, addr string) bool {
	if !c.IsSwiftnode() {
		return false
	}

	c.mtx.Lock()
	c.status = Started
	c.reason = ""
	c.outPoint = op
	c.service = addr
	c.mtx.Unlock()

	c.logger.WithFields(logrus.Fields{
		"outpoint": op.String(),
		"addr":     addr,
	}).Info("Swiftnode enabled by remote activation")

	return true
}

func (c *Controller) setStatus(s Status, reason string) {
	c.mtx.Lock()
	c.status = s
	c.reason = reason
	c.mtx.Unlock()

	if s == NotCapable || s == InputTooNew {
		c.logger.WithField("reason", reason).Info("Not capable")
	}
}

// ManageStatus moves the local node towards Started, then keeps it alive
// with heartbeats.
func (c *Controller) ManageStatus() {
	if !c.IsSwiftnode() {
		return
	}

	c.manageMtx.Lock()
	defer c.manageMtx.Unlock()

	if !c.conf.Params.RegTest && !c.conf.Sync.IsBlockchainSynced() {
		c.setStatus(SyncInProcess, "")
		c.logger.Debug(SyncInProcess.String())
		return
	}

	if c.State() == SyncInProcess {
		c.setStatus(Initial, "")
	}

	if c.State() == Initial {
		if rec, err := c.conf.Registry.FindByOperatingKey(c.opPub); err == nil {
			if rec, err = c.conf.Registry.Check(rec.OutPoint, false); err == nil &&
				rec.IsEnabled() && rec.ProtocolVersion == chain.ProtocolVersion {
				c.EnableHotCold(rec.OutPoint, rec.Addr)
			}
		}
	}

	if c.State() != Started {
		c.start()
		return
	}

	if err := c.sendHeartbeat(); err != nil {
		c.logger.WithError(err).Debug("SendHeartbeat")
	}
}

// start tries to activate the node with a collateral held by the local
// wallet. Every failure leaves the node NotCapable with a reason.
func (c *Controller) start() {
	w := c.conf.Wallet
	if w == nil || w.IsLocked() {
		c.setStatus(NotCapable, "Wallet is locked.")
		return
	}

	if w.Balance() == 0 {
		c.setStatus(NotCapable, "Hot node, waiting for remote activation.")
		return
	}

	service := c.ServiceAddr()
	if service == "" {
		c.setStatus(NotCapable, "Can't detect external address. Please use the swiftnodeaddr configuration option.")
		return
	}

	if err := checkDefaultPort(service, c.conf.Params); err != nil {
		c.setStatus(NotCapable, err.Error())
		return
	}

	if c.conf.Prober != nil {
		c.logger.WithField("addr", service).Debug("Checking inbound connection")
		if err := c.conf.Prober.Probe(service); err != nil {
			c.setStatus(NotCapable, "Could not connect to "+service)
			return
		}
	}

	out, key, err := c.SelectCollateral(c.conf.CollateralTx, c.conf.CollateralIndex)
	if err != nil {
		c.setStatus(NotCapable, "Could not find suitable coins!")
		return
	}

	confs, err := c.conf.UTXO.Confirmations(out)
	if err != nil {
		c.setStatus(NotCapable, fmt.Sprintf("Could not get input age: %v", err))
		return
	}
	if confs < swiftnode.MinConfirmations {
		c.setStatus(InputTooNew, fmt.Sprintf("%s - %d confirmations", InputTooNew, confs))
		return
	}

	w.LockCoin(out)

	a, err := c.createAnnouncement(out, service, key, c.opKey)
	if err != nil {
		c.setStatus(NotCapable, "Error on Register: "+err.Error())
		return
	}

	c.register(a)

	c.mtx.Lock()
	c.outPoint = out
	c.mtx.Unlock()
	c.setStatus(Started, "")

	c.logger.WithFields(logrus.Fields{
		"outpoint": out.String(),
		"addr":     service,
	}).Info("Swiftnode started")

	if c.conf.Relay != nil {
		c.conf.Relay.RelayAnnouncement(*a)
	}
}

// register adds the local announcement to the registry, since gossip does not
// bring our own announcement back to us.
func (c *Controller) register(a *swiftnode.Announcement) {
	reg := c.conf.Registry
	reg.AddSeenAnnouncement(*a)

	if reg.Has(a.OutPoint) {
		if _, _, err := reg.UpdateFromAnnouncement(a, true); err != nil {
			c.logger.WithError(err).Debug("UpdateFromAnnouncement")
		}
		return
	}
	if err := reg.Add(swiftnode.NewRecord(a)); err != nil {
		c.logger.WithError(err).Debug("Add")
	}
}

// SendHeartbeat signs a heartbeat for the local node, applies it to the
// registry and relays it.
func (c *Controller) SendHeartbeat() error {
	c.manageMtx.Lock()
	defer c.manageMtx.Unlock()
	return c.sendHeartbeat()
}

func (c *Controller) sendHeartbeat() error {
	op, ok := c.Identity()
	if !ok {
		return errNotStarted
	}

	rec, err := c.conf.Registry.Find(op)
	if err != nil {
		c.setStatus(NotCapable, "Swiftnode List doesn't include our Swiftnode, shutting down Swiftnode pinging service! "+op.String())
		return errNotListed
	}

	now := c.conf.Clock.Now()
	if rec.IsPingedWithin(swiftnode.PingSeconds, now) {
		return errTooEarly
	}

	anchor, err := c.anchor()
	if err != nil {
		return err
	}

	hb := swiftnode.NewHeartbeat(op, anchor, now)
	if err := hb.Sign(c.opKey); err != nil {
		return err
	}

	if _, err := c.conf.Registry.UpdateHeartbeat(hb); err != nil {
		return err
	}
	c.conf.Registry.AddSeenHeartbeat(hb)

	c.logger.WithFields(logrus.Fields{
		"outpoint": op.String(),
		"sig_time": now,
	}).Debug("Sending heartbeat")

	if c.conf.Relay != nil {
		c.conf.Relay.RelayHeartbeat(hb)
	}
	return nil
}

func (c *Controller) anchor() (chainhash.Hash, error) {
	tip, err := c.conf.Chain.TipHeight()
	if err != nil {
		return chainhash.Hash{}, err
	}
	return c.conf.Chain.BlockHash(tip - AnchorOffset)
}

func (c *Controller) createAnnouncement(
	op wire.OutPoint,
	service string,
	collateralKey *btcec.PrivateKey,
	operatingKey *btcec.PrivateKey,
) (*swiftnode.Announcement, error) {

	anchor, err := c.anchor()
	if err != nil {
		return nil, err
	}
	return swiftnode.CreateAnnouncement(
		op,
		service,
		collateralKey,
		operatingKey,
		anchor,
		c.conf.Clock.Now(),
		chain.ProtocolVersion,
	)
}
