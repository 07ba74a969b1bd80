package daemon

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/swiftcashproject/swiftnode/src/chain"
	"github.com/swiftcashproject/swiftnode/src/chain/dummy"
	"github.com/swiftcashproject/swiftnode/src/config"
	"github.com/swiftcashproject/swiftnode/src/crypto/keys"
	"github.com/swiftcashproject/swiftnode/src/net"
	"github.com/swiftcashproject/swiftnode/src/node"
	"github.com/swiftcashproject/swiftnode/src/peers"
	"github.com/swiftcashproject/swiftnode/src/service"
	"github.com/swiftcashproject/swiftnode/src/signer"
	"github.com/swiftcashproject/swiftnode/src/spork"
	"github.com/swiftcashproject/swiftnode/src/store"
	"github.com/swiftcashproject/swiftnode/src/telemetry"
	"github.com/swiftcashproject/swiftnode/src/version"
)

// standaloneTip is the height of the in-memory chain used when no chain
// collaborators are given.
const standaloneTip int64 = 1000

// Daemon is a swiftnode process: a node with its transport, peers, snapshot
// mirror and HTTP service.
type Daemon struct {
	Config *config.Config
	// Chain holds the chain collaborators. When nil, Init creates an
	// in-memory chain following the wall clock.
	Chain     *node.Chain
	Params    *chain.Params
	Node      *node.Node
	Transport net.Transport
	Store     *store.BadgerStore
	Peers     *peers.PeerSet
	Conf      *config.SwiftnodeConf
	Service   *service.Service

	logger *logrus.Entry
}

// NewDaemon ...
func NewDaemon(conf *config.Config) *Daemon {
	return &Daemon{
		Config: conf,
	}
}

func (d *Daemon) initParams() error {
	params, err := d.Config.Params()
	if err != nil {
		return err
	}
	d.Params = params
	return nil
}

func (d *Daemon) initChain() error {
	if d.Chain != nil {
		d.Chain.Params = d.Params
		return nil
	}

	clock := chain.SystemClock{}
	view := dummy.NewChain(standaloneTip, clock.Now()-standaloneTip*d.Params.TargetSpacing, d.Params.TargetSpacing)
	utxo := dummy.NewUTXOSet(view)

	d.Chain = &node.Chain{
		View:    view,
		UTXO:    utxo,
		Wallet:  dummy.NewWallet(utxo),
		Rewards: dummy.NewRewards(),
		Budget:  dummy.NewBudget(),
		Flags:   spork.NewStatic(clock, nil),
		Clock:   clock,
		Params:  d.Params,
	}

	d.logger.Warn("No chain attached, running standalone on an in-memory chain")

	return nil
}

func (d *Daemon) initPeers() error {
	d.Peers = peers.NewPeerSet(d.Chain.Clock, d.logger.WithField("component", "peers"))

	seeds, err := peers.NewJSONPeers(d.Config.DataDir).Peers()
	if os.IsNotExist(err) {
		d.logger.Debug("No peers.json, waiting for inbound peers")
		return nil
	}
	if err != nil {
		return err
	}

	for _, p := range seeds {
		if err := d.Peers.Add(*p); err != nil {
			d.logger.WithError(err).WithField("peer", p.NetAddr).Warn("Ignoring seed peer")
		}
	}

	d.logger.WithField("peers", d.Peers.Len()).Debug("Loaded peers.json")

	return nil
}

func (d *Daemon) initStore() error {
	if !d.Config.Store {
		d.logger.Debug("Snapshots only, no database mirror")
		return nil
	}

	d.logger.WithField("path", d.Config.DatabaseDir).Debug("Attempting to load or create database")

	s, err := store.NewBadgerStore(d.Config.DatabaseDir, d.Params, d.logger.WithField("component", "badger"))
	if err != nil {
		return err
	}
	d.Store = s

	return nil
}

func (d *Daemon) initTransport() error {
	transport, err := net.NewTCPTransport(
		d.Config.BindAddr,
		d.Config.AdvertiseAddr,
		d.Config.MaxPool,
		d.Config.TCPTimeout,
		d.Config.SyncTimeout,
		d.logger.WithField("component", "transport"),
	)
	if err != nil {
		return err
	}

	d.Transport = transport

	return nil
}

// initKey loads the operating key of the local swiftnode, from
// swiftnodeprivkey or from the key file in the data directory.
func (d *Daemon) initKey() (node.Local, error) {
	local := node.Local{}

	if d.Conf != nil && d.Config.ConfLock {
		local.ConfLocked = d.Conf.LockedOutPoints()
	}

	if !d.Config.Swiftnode {
		return local, nil
	}

	if d.Config.SwiftnodePrivKey != "" {
		key, _, err := signer.SetKey(d.Config.SwiftnodePrivKey)
		if err != nil {
			return local, err
		}
		local.OperatingKey = key
	} else {
		key, err := keys.NewSimpleKeyfile(d.Config.Keyfile()).ReadKey()
		if err != nil {
			return local, fmt.Errorf("swiftnode enabled without swiftnodeprivkey or a readable %s: %w", d.Config.Keyfile(), err)
		}
		local.OperatingKey = key
	}

	local.ServiceAddr = d.Config.ServiceAddress()

	d.logger.WithFields(logrus.Fields{
		"pubkey":  keys.PublicKeyHex(local.OperatingKey.PubKey()),
		"service": local.ServiceAddr,
	}).Info("Swiftnode operating key loaded")

	return local, nil
}

func (d *Daemon) initConf() error {
	conf, err := config.ReadSwiftnodeConf(d.Config.SwiftnodeConfFile(), d.Params)
	if err != nil {
		return fmt.Errorf("reading %s: %w", d.Config.SwiftnodeConfFile(), err)
	}
	d.Conf = conf

	d.logger.WithField("entries", len(conf.Entries)).Debug("Loaded swiftnode.conf")

	return nil
}

func (d *Daemon) initNode() error {
	local, err := d.initKey()
	if err != nil {
		return err
	}

	nodeConf := node.NewConfig(
		d.Config.TickInterval,
		d.Config.DumpInterval,
		d.logger.Logger,
	)

	d.Node = node.NewNode(nodeConf, *d.Chain, local, d.Peers, d.Transport)
	d.Node.EnableSnapshots(d.Config.DataDir, d.Store)

	if err := d.Node.Init(); err != nil {
		return fmt.Errorf("failed to initialize node: %s", err)
	}

	return nil
}

func (d *Daemon) initService() error {
	if !d.Config.NoService {
		d.Service = service.NewService(
			d.Config.ServiceAddr,
			d.Node,
			d.Conf,
			d.Config.Logger().WithField("prefix", "service"),
		)
	}
	return nil
}

// Init reads the configuration and data directory and wires the node. The
// steps run in order: params, chain, peers, swiftnode.conf, store,
// transport, node, service.
func (d *Daemon) Init() error {
	d.logger = d.Config.Logger()

	if err := os.MkdirAll(d.Config.DataDir, 0700); err != nil {
		return err
	}

	steps := []func() error{
		d.initParams,
		d.initChain,
		d.initPeers,
		d.initConf,
		d.initStore,
		d.initTransport,
		d.initNode,
		d.initService,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	telemetry.SetBuildInfo(version.Version, version.GitCommit)

	return nil
}

// Run starts the service, if any, and runs the node until it is shut down.
func (d *Daemon) Run() {
	if d.Service != nil {
		go d.Service.Serve()
	}

	d.Node.Run()
}

// Shutdown stops the node and closes the database mirror.
func (d *Daemon) Shutdown() {
	if d.Node != nil {
		d.Node.Shutdown()
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			d.logger.WithError(err).Error("Closing database")
		}
	}
}

// Keygen creates an operating key in keyfile. It refuses to overwrite an
// existing key.
func Keygen(keyfile string) (string, error) {
	if _, err := os.Stat(keyfile); err == nil {
		return "", fmt.Errorf("A key already lives under %s", keyfile)
	}

	key, err := keys.GenerateKey()
	if err != nil {
		return "", err
	}

	if err := keys.NewSimpleKeyfile(keyfile).WriteKey(key); err != nil {
		return "", err
	}

	return keys.PublicKeyHex(key.PubKey()), nil
}
