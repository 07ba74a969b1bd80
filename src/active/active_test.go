package active

import (
	"errors"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
	"github.com/swiftcashproject/swiftnode/src/chain"
	"github.com/swiftcashproject/swiftnode/src/chain/dummy"
	"github.com/swiftcashproject/swiftnode/src/common"
	"github.com/swiftcashproject/swiftnode/src/crypto"
	"github.com/swiftcashproject/swiftnode/src/crypto/keys"
	"github.com/swiftcashproject/swiftnode/src/registry"
	"github.com/swiftcashproject/swiftnode/src/spork"
	"github.com/swiftcashproject/swiftnode/src/swiftnode"
)

const (
	genesis int64 = 1550000000
	tip     int64 = 2000
	service       = "93.184.216.34:8544"
)

type syncState struct {
	synced bool
}

func (s *syncState) IsBlockchainSynced() bool { return s.synced }

type relay struct {
	announcements []swiftnode.Announcement
	heartbeats    []swiftnode.Heartbeat
}

func (r *relay) RelayAnnouncement(a swiftnode.Announcement) { r.announcements = append(r.announcements, a) }
func (r *relay) RelayHeartbeat(hb swiftnode.Heartbeat)      { r.heartbeats = append(r.heartbeats, hb) }

type prober struct {
	err    error
	probed []string
}

func (p *prober) Probe(addr string) error {
	p.probed = append(p.probed, addr)
	return p.err
}

type fixture struct {
	clock    *dummy.Clock
	chain    *dummy.Chain
	utxo     *dummy.UTXOSet
	wallet   *dummy.Wallet
	registry *registry.Registry
	sync     *syncState
	relay    *relay
	prober   *prober
	opKey    *btcec.PrivateKey
}

func newFixture(t *testing.T) *fixture {
	c := dummy.NewChain(tip, genesis, 60)
	clock := dummy.NewClock(genesis + tip*60)
	utxo := dummy.NewUTXOSet(c)
	flags := spork.NewStatic(clock, nil)
	env := swiftnode.Env{Clock: clock, UTXO: utxo, Params: &chain.MainNetParams}

	opKey, err := keys.GenerateKey()
	require.NoError(t, err)

	return &fixture{
		clock:    clock,
		chain:    c,
		utxo:     utxo,
		wallet:   dummy.NewWallet(utxo),
		registry: registry.NewRegistry(env, c, flags, common.NewTestEntry(t, "registry")),
		sync:     &syncState{synced: true},
		relay:    &relay{},
		prober:   &prober{},
		opKey:    opKey,
	}
}

func (f *fixture) config(t *testing.T) Config {
	return Config{
		Registry:     f.registry,
		Chain:        f.chain,
		UTXO:         f.utxo,
		Wallet:       f.wallet,
		Params:       &chain.MainNetParams,
		Clock:        f.clock,
		Sync:         f.sync,
		Relay:        f.relay,
		Prober:       f.prober,
		OperatingKey: f.opKey,
		ServiceAddr:  service,
		Logger:       common.NewTestEntry(t, "active"),
	}
}

func (f *fixture) controller(t *testing.T) *Controller {
	return NewController(f.config(t))
}

// mine adds n blocks one minute apart and moves the clock along.
func (f *fixture) mine(n int) {
	for i := 0; i < n; i++ {
		f.clock.Advance(60)
		f.chain.AddBlock(f.clock.Now())
	}
}

func TestNotASwiftnode(t *testing.T) {
	f := newFixture(t)
	conf := f.config(t)
	conf.OperatingKey = nil
	c := NewController(conf)

	c.ManageStatus()
	require.Equal(t, Initial, c.State())
	require.False(t, c.IsSwiftnode())
	require.False(t, c.EnableHotCold(wire.OutPoint{Index: 1}, service))

	_, ok := c.Identity()
	require.False(t, ok)
}

func TestSyncInProcess(t *testing.T) {
	f := newFixture(t)
	f.sync.synced = false
	c := f.controller(t)

	c.ManageStatus()
	require.Equal(t, SyncInProcess, c.State())
	require.Equal(t, "Sync in progress. Must wait until sync is complete to start Swiftnode", c.Status())

	f.sync.synced = true
	f.wallet.SetLocked(true)
	c.ManageStatus()
	require.Equal(t, NotCapable, c.State())
	require.Equal(t, "Not capable swiftnode: Wallet is locked.", c.Status())
}

func TestNotCapable(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(f *fixture, conf *Config)
		reason string
	}{
		{
			name:   "zero balance",
			setup:  func(f *fixture, conf *Config) {},
			reason: "Hot node, waiting for remote activation.",
		},
		{
			name: "no address",
			setup: func(f *fixture, conf *Config) {
				f.wallet.AddOutput(conf.Params.Collateral, 500)
				conf.ServiceAddr = ""
			},
			reason: "Can't detect external address. Please use the swiftnodeaddr configuration option.",
		},
		{
			name: "wrong port",
			setup: func(f *fixture, conf *Config) {
				f.wallet.AddOutput(conf.Params.Collateral, 500)
				conf.ServiceAddr = "93.184.216.34:9999"
			},
			reason: "Invalid port 9999 for swiftnode 93.184.216.34:9999, only 8544 is supported on main-net.",
		},
		{
			name: "unreachable",
			setup: func(f *fixture, conf *Config) {
				f.wallet.AddOutput(conf.Params.Collateral, 500)
				f.prober.err = errors.New("connection refused")
			},
			reason: "Could not connect to " + service,
		},
		{
			name: "no collateral",
			setup: func(f *fixture, conf *Config) {
				f.wallet.AddOutput(conf.Params.Collateral-1, 500)
			},
			reason: "Could not find suitable coins!",
		},
		{
			name: "collateral locked",
			setup: func(f *fixture, conf *Config) {
				op, _, _ := f.wallet.AddOutput(conf.Params.Collateral, 500)
				f.wallet.LockCoin(op)
			},
			reason: "Could not find suitable coins!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			conf := f.config(t)
			tt.setup(f, &conf)
			c := NewController(conf)

			c.ManageStatus()
			require.Equal(t, NotCapable, c.State())
			require.Equal(t, tt.reason, c.Reason())
			require.Empty(t, f.relay.announcements)
		})
	}
}

func TestStart(t *testing.T) {
	f := newFixture(t)
	op, collateralKey, err := f.wallet.AddOutput(chain.MainNetParams.Collateral, tip-5)
	require.NoError(t, err)
	c := f.controller(t)

	c.ManageStatus()
	require.Equal(t, InputTooNew, c.State())
	require.Equal(t, "Swiftnode input must have at least 20 confirmations - 6 confirmations", c.Reason())
	require.False(t, f.wallet.IsCoinLocked(op))

	f.mine(swiftnode.MinConfirmations - 6)
	c.ManageStatus()
	require.Equal(t, Started, c.State())
	require.Equal(t, "Swiftnode successfully started", c.Status())
	require.True(t, f.wallet.IsCoinLocked(op))
	require.Equal(t, []string{service, service}, f.prober.probed)

	id, ok := c.Identity()
	require.True(t, ok)
	require.Equal(t, op, id)

	require.Len(t, f.relay.announcements, 1)
	a := f.relay.announcements[0]
	require.NoError(t, a.Verify())
	require.NoError(t, a.LastPing.Verify(c.OperatingPubKey()))
	require.Equal(t, keys.FromPublicKey(collateralKey.PubKey()), a.CollateralPubKey)
	require.Equal(t, service, a.Addr)
	require.Equal(t, chain.ProtocolVersion, a.ProtocolVersion)

	rec, err := f.registry.Find(op)
	require.NoError(t, err)
	require.Equal(t, a.SigTime, rec.SigTime)
	require.True(t, f.registry.SeenAnnouncement(a.Hash()))
}

func TestHeartbeats(t *testing.T) {
	f := newFixture(t)
	op, _, err := f.wallet.AddOutput(chain.MainNetParams.Collateral, 500)
	require.NoError(t, err)
	c := f.controller(t)

	require.Equal(t, errNotStarted, c.SendHeartbeat())

	c.ManageStatus()
	require.Equal(t, Started, c.State())

	// the announcement carries a fresh heartbeat
	require.Equal(t, errTooEarly, c.SendHeartbeat())
	c.ManageStatus()
	require.Empty(t, f.relay.heartbeats)

	f.mine(swiftnode.PingSeconds / 60)
	c.ManageStatus()
	require.Len(t, f.relay.heartbeats, 1)

	hb := f.relay.heartbeats[0]
	require.Equal(t, op, hb.OutPoint)
	require.Equal(t, f.clock.Now(), hb.SigTime)
	require.NoError(t, hb.Verify(c.OperatingPubKey()))
	require.True(t, f.registry.SeenHeartbeat(hb.Hash()))

	height, err := f.chain.BlockHeight(hb.BlockHash)
	require.NoError(t, err)
	tipHeight, _ := f.chain.TipHeight()
	require.Equal(t, tipHeight-AnchorOffset, height)

	rec, err := f.registry.Find(op)
	require.NoError(t, err)
	require.Equal(t, hb.SigTime, rec.LastPing.SigTime)

	// dropped from the registry
	f.registry.Remove(op)
	f.mine(swiftnode.PingSeconds / 60)
	c.ManageStatus()
	require.Equal(t, NotCapable, c.State())
	require.True(t, strings.HasPrefix(c.Reason(), "Swiftnode List doesn't include our Swiftnode"))
	require.Len(t, f.relay.heartbeats, 1)
}

func TestHotColdActivation(t *testing.T) {
	f := newFixture(t)
	c := f.controller(t)

	collateralKey, err := keys.GenerateKey()
	require.NoError(t, err)
	op := f.utxo.AddOutput(
		crypto.PayToPubKeyHash(keys.FromPublicKey(collateralKey.PubKey())),
		chain.MainNetParams.Collateral,
		500,
	)
	anchor, err := f.chain.BlockHash(tip - AnchorOffset)
	require.NoError(t, err)

	now := f.clock.Now()
	a, err := swiftnode.CreateAnnouncement(op, service, collateralKey, f.opKey, anchor, now-9000, chain.ProtocolVersion)
	require.NoError(t, err)
	rec := swiftnode.NewRecord(a)
	rec.LastPing.SigTime = now - 60
	require.NoError(t, f.registry.Add(rec))

	// no local coins: started from the registry alone
	c.ManageStatus()
	require.Equal(t, Started, c.State())
	id, ok := c.Identity()
	require.True(t, ok)
	require.Equal(t, op, id)
	require.Empty(t, f.relay.announcements)
	require.Empty(t, f.relay.heartbeats)

	f.clock.Advance(swiftnode.PingSeconds)
	c.ManageStatus()
	require.Len(t, f.relay.heartbeats, 1)
}

func TestCreateAnnouncement(t *testing.T) {
	f := newFixture(t)
	first, _, err := f.wallet.AddOutput(chain.MainNetParams.Collateral, 500)
	require.NoError(t, err)
	op, collateralKey, err := f.wallet.AddOutput(chain.MainNetParams.Collateral, 500)
	require.NoError(t, err)

	conf := f.config(t)
	conf.ConfLocked = []wire.OutPoint{op}
	c := NewController(conf)
	require.True(t, f.wallet.IsCoinLocked(op))

	// conf entries stay eligible, other locked coins do not
	selected, _, err := c.SelectCollateral("", 0)
	require.NoError(t, err)
	require.Equal(t, first, selected)
	f.wallet.LockCoin(first)
	selected, _, err = c.SelectCollateral("", 0)
	require.NoError(t, err)
	require.Equal(t, op, selected)

	remoteKey, err := keys.GenerateKey()
	require.NoError(t, err)
	secret := keys.PrivateKeyHex(remoteKey)

	a, err := c.CreateAnnouncement(service, secret, op.Hash.String(), op.Index, false)
	require.NoError(t, err)
	require.Equal(t, op, a.OutPoint)
	require.NoError(t, a.Verify())
	require.Equal(t, keys.FromPublicKey(remoteKey.PubKey()), a.OperatingPubKey)
	require.Equal(t, keys.FromPublicKey(collateralKey.PubKey()), a.CollateralPubKey)
	require.NoError(t, a.LastPing.Verify(a.OperatingPubKey))

	_, err = c.CreateAnnouncement(service, "zz", op.Hash.String(), op.Index, false)
	require.Error(t, err)

	_, err = c.CreateAnnouncement(service, secret, op.Hash.String(), op.Index+1, false)
	require.True(t, errors.Is(err, errNoCoins))

	_, err = c.CreateAnnouncement("93.184.216.34:28544", secret, op.Hash.String(), op.Index, false)
	require.Error(t, err)

	f.sync.synced = false
	_, err = c.CreateAnnouncement(service, secret, op.Hash.String(), op.Index, false)
	require.Error(t, err)
	_, err = c.CreateAnnouncement(service, secret, op.Hash.String(), op.Index, true)
	require.NoError(t, err)
}
