package protocol

import (
	"testing"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
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
	tip     int64 = 1000
	addr          = "93.184.216.34:8544"
	peer          = "93.184.216.1:8544"
)

type relay struct {
	announcements []swiftnode.Announcement
	heartbeats    []swiftnode.Heartbeat
}

func (r *relay) RelayAnnouncement(a swiftnode.Announcement) {
	r.announcements = append(r.announcements, a)
}

func (r *relay) RelayHeartbeat(hb swiftnode.Heartbeat) {
	r.heartbeats = append(r.heartbeats, hb)
}

type requester struct {
	requests map[string][]wire.OutPoint
}

func (r *requester) RequestEntry(peer string, op wire.OutPoint) {
	r.requests[peer] = append(r.requests[peer], op)
}

type syncObserver struct {
	items []chainhash.Hash
}

func (s *syncObserver) AddedListItem(hash chainhash.Hash) {
	s.items = append(s.items, hash)
}

type localNode struct {
	pub     []byte
	op      wire.OutPoint
	known   bool
	enabled []wire.OutPoint
}

func (l *localNode) OperatingPubKey() []byte {
	return l.pub
}

func (l *localNode) Identity() (wire.OutPoint, bool) {
	return l.op, l.known
}

func (l *localNode) EnableHotCold(op wire.OutPoint, addr string) bool {
	l.enabled = append(l.enabled, op)
	return true
}

type fixture struct {
	clock     *dummy.Clock
	chain     *dummy.Chain
	utxo      *dummy.UTXOSet
	flags     *spork.Static
	params    *chain.Params
	registry  *registry.Registry
	protocol  *Protocol
	relay     *relay
	requester *requester
	sync      *syncObserver
}

func newFixture(t *testing.T) *fixture {
	c := dummy.NewChain(tip, genesis, 60)
	f := &fixture{
		clock:  dummy.NewClock(genesis + tip*60),
		chain:  c,
		utxo:   dummy.NewUTXOSet(c),
		params: &chain.MainNetParams,
	}
	f.flags = spork.NewStatic(f.clock, nil)
	f.protocol, f.registry = f.newProtocol(t)
	return f
}

// newProtocol builds a protocol over a fresh registry sharing the chain of f.
func (f *fixture) newProtocol(t *testing.T) (*Protocol, *registry.Registry) {
	env := swiftnode.Env{Clock: f.clock, UTXO: f.utxo, Params: f.params}
	reg := registry.NewRegistry(env, f.chain, f.flags, common.NewTestEntry(t, "registry"))

	f.relay = &relay{}
	f.requester = &requester{requests: make(map[string][]wire.OutPoint)}
	f.sync = &syncObserver{}

	p := NewProtocol(Config{
		Registry:  reg,
		Chain:     f.chain,
		UTXO:      f.utxo,
		Flags:     f.flags,
		Params:    f.params,
		Clock:     f.clock,
		Relay:     f.relay,
		Requester: f.requester,
		Sync:      f.sync,
		Logger:    common.NewTestEntry(t, "protocol"),
	})
	return p, reg
}

type node struct {
	op            wire.OutPoint
	collateralKey *btcec.PrivateKey
	operatingKey  *btcec.PrivateKey
}

// newNode funds a collateral output mined at height.
func (f *fixture) newNode(t *testing.T, height int64) *node {
	collateralKey, err := keys.GenerateKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	operatingKey, err := keys.GenerateKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	op := f.utxo.AddOutput(
		crypto.PayToPubKeyHash(keys.FromPublicKey(collateralKey.PubKey())),
		f.params.Collateral,
		height,
	)
	return &node{op: op, collateralKey: collateralKey, operatingKey: operatingKey}
}

func (f *fixture) anchor(t *testing.T) chainhash.Hash {
	height, err := f.chain.TipHeight()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	hash, err := f.chain.BlockHash(height - HeartbeatAnchorDepth)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	return hash
}

func (f *fixture) announce(t *testing.T, n *node, address string, sigTime int64) swiftnode.Announcement {
	a, err := swiftnode.CreateAnnouncement(n.op, address, n.collateralKey, n.operatingKey,
		f.anchor(t), sigTime, chain.ProtocolVersion)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	return *a
}

func (f *fixture) heartbeat(t *testing.T, n *node, key *btcec.PrivateKey, sigTime int64) swiftnode.Heartbeat {
	hb := swiftnode.NewHeartbeat(n.op, f.anchor(t), sigTime)
	if err := hb.Sign(key); err != nil {
		t.Fatalf("err: %v", err)
	}
	return hb
}

func TestProcessAnnouncement(t *testing.T) {
	f := newFixture(t)
	n := f.newNode(t, 500)
	a := f.announce(t, n, addr, f.clock.Now())

	if err := f.protocol.ProcessAnnouncement(peer, a); err != nil {
		t.Fatalf("err: %v", err)
	}

	rec, err := f.registry.Find(n.op)
	if err != nil {
		t.Fatalf("node should be registered: %v", err)
	}
	if rec.Addr != addr || rec.SigTime != a.SigTime {
		t.Fatalf("unexpected record %s", rec)
	}
	if len(f.relay.announcements) != 1 {
		t.Fatalf("announcement should be relayed once, got %d", len(f.relay.announcements))
	}
	if len(f.sync.items) != 1 || f.sync.items[0] != a.Hash() {
		t.Fatalf("announcement should be counted as a list item")
	}

	// a duplicate is only counted
	if err := f.protocol.ProcessAnnouncement(peer, a); err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(f.relay.announcements) != 1 {
		t.Fatalf("duplicate should not be relayed")
	}
	if len(f.sync.items) != 2 {
		t.Fatalf("duplicate should still be counted, got %d", len(f.sync.items))
	}
}

func TestConfirmationBoundary(t *testing.T) {
	f := newFixture(t)

	// the collateral reaches its 20th confirmation at the tip
	mature := f.newNode(t, tip-swiftnode.MinConfirmations+1)
	a := f.announce(t, mature, addr, f.clock.Now())
	if err := f.protocol.ProcessAnnouncement(peer, a); err != nil {
		t.Fatalf("20 confirmations should be accepted: %v", err)
	}

	young := f.newNode(t, tip-swiftnode.MinConfirmations+2)
	b := f.announce(t, young, "93.184.216.35:8544", f.clock.Now())
	err := f.protocol.ProcessAnnouncement(peer, b)
	if !common.IsCollateral(err) {
		t.Fatalf("19 confirmations should be a collateral error, got %v", err)
	}
	if f.registry.Has(young.op) {
		t.Fatalf("young collateral should not be registered")
	}
	if f.registry.SeenAnnouncement(b.Hash()) {
		t.Fatalf("rejected announcement should be forgotten")
	}

	// once the collateral matures the same announcement goes through
	f.chain.AddBlock(f.clock.Now())
	if err := f.protocol.ProcessAnnouncement(peer, b); err != nil {
		t.Fatalf("err: %v", err)
	}
	if !f.registry.Has(young.op) {
		t.Fatalf("matured collateral should be registered")
	}
}

func TestAnnouncementSignedBeforeMaturity(t *testing.T) {
	f := newFixture(t)
	n := f.newNode(t, tip-swiftnode.MinConfirmations+1)

	a := f.announce(t, n, addr, f.clock.Now()-1)
	err := f.protocol.ProcessAnnouncement(peer, a)
	if !common.IsValidation(err) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if f.registry.Has(n.op) {
		t.Fatalf("node should not be registered")
	}
}

func TestAnnouncementMisbehaviour(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now()

	other, _ := keys.GenerateKey()

	cases := []struct {
		name   string
		mutate func(a *swiftnode.Announcement)
		sigAt  int64
		dos    int
	}{
		{
			name:  "future",
			sigAt: now + MaxClockDrift + 1,
			dos:   1,
		},
		{
			name:   "bad signature",
			sigAt:  now,
			mutate: func(a *swiftnode.Announcement) { a.ProtocolVersion++ },
			dos:    100,
		},
		{
			name:  "bad heartbeat signature",
			sigAt: now,
			mutate: func(a *swiftnode.Announcement) {
				a.LastPing.Sign(other)
			},
			dos: 33,
		},
		{
			name:   "missing heartbeat",
			sigAt:  now,
			mutate: func(a *swiftnode.Announcement) { a.LastPing = swiftnode.Heartbeat{} },
			dos:    0,
		},
		{
			name:   "wrong collateral key",
			sigAt:  now,
			mutate: func(a *swiftnode.Announcement) { a.CollateralPubKey = keys.FromPublicKey(other.PubKey()) },
			dos:    100,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := f.newNode(t, 500)
			a := f.announce(t, n, addr, tc.sigAt)
			if tc.mutate != nil {
				tc.mutate(&a)
			}

			err := f.protocol.ProcessAnnouncement(peer, a)
			if !common.IsValidation(err) {
				t.Fatalf("expected a validation error, got %v", err)
			}
			if dos := common.DoS(err); dos != tc.dos {
				t.Fatalf("expected misbehaviour %d, got %d", tc.dos, dos)
			}
			if f.registry.Has(n.op) {
				t.Fatalf("node should not be registered")
			}
		})
	}
}

func TestCollateralNotOwned(t *testing.T) {
	f := newFixture(t)
	n := f.newNode(t, 500)

	// a valid announcement whose signer does not own the collateral
	thief := &node{op: n.op, collateralKey: n.operatingKey, operatingKey: n.operatingKey}
	a := f.announce(t, thief, addr, f.clock.Now())

	err := f.protocol.ProcessAnnouncement(peer, a)
	if dos := common.DoS(err); dos != 33 {
		t.Fatalf("expected misbehaviour 33, got %d (%v)", dos, err)
	}

	f.utxo.SetBusy(true)
	b := f.announce(t, n, addr, f.clock.Now())
	if err := f.protocol.ProcessAnnouncement(peer, b); !common.IsTransient(err) {
		t.Fatalf("expected a transient error, got %v", err)
	}
	if f.registry.SeenAnnouncement(b.Hash()) {
		t.Fatalf("announcement should be forgotten after a transient error")
	}
}

func TestPortRule(t *testing.T) {
	f := newFixture(t)
	n := f.newNode(t, 500)

	a := f.announce(t, n, "93.184.216.34:9999", f.clock.Now())
	err := f.protocol.ProcessAnnouncement(peer, a)
	if !common.IsValidation(err) || common.DoS(err) != 0 {
		t.Fatalf("wrong mainnet port should be rejected without penalty, got %v", err)
	}

	f = newFixture(t)
	f.params = &chain.TestNetParams
	f.protocol, f.registry = f.newProtocol(t)
	n = f.newNode(t, 500)

	a = f.announce(t, n, addr, f.clock.Now())
	if err := f.protocol.ProcessAnnouncement(peer, a); !common.IsValidation(err) {
		t.Fatalf("mainnet port should be rejected on testnet, got %v", err)
	}

	// a later announcement on the right port hashes differently
	b := f.announce(t, n, "93.184.216.34:28544", f.clock.Now()+1)
	if err := f.protocol.ProcessAnnouncement(peer, b); err != nil {
		t.Fatalf("err: %v", err)
	}
	if !f.registry.Has(n.op) {
		t.Fatalf("node should be registered")
	}
}

func TestSupersession(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now()
	n := f.newNode(t, 500)

	first := f.announce(t, n, addr, now-1000)

	rotated := *n
	rotated.operatingKey, _ = keys.GenerateKey()
	second := f.announce(t, &rotated, "93.184.216.36:8544", now)

	if err := f.protocol.ProcessAnnouncement(peer, first); err != nil {
		t.Fatalf("err: %v", err)
	}
	if err := f.protocol.ProcessAnnouncement(peer, second); err != nil {
		t.Fatalf("err: %v", err)
	}

	alone, aloneReg := f.newProtocol(t)
	if err := alone.ProcessAnnouncement(peer, second); err != nil {
		t.Fatalf("err: %v", err)
	}

	got, err := f.registry.Check(n.op, true)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	want, err := aloneReg.Check(n.op, true)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if got.Addr != want.Addr ||
		got.SigTime != want.SigTime ||
		got.State != want.State ||
		got.LastPing.Hash() != want.LastPing.Hash() ||
		string(got.OperatingPubKey) != string(want.OperatingPubKey) {
		t.Fatalf("superseded record %s differs from %s", got, want)
	}

	// an older announcement is refused
	if err := f.protocol.CheckAnnouncement(&first); !common.IsValidation(err) {
		t.Fatalf("older announcement should be refused, got %v", err)
	}
}

func TestHeartbeat(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now()
	n := f.newNode(t, 500)

	a := f.announce(t, n, addr, now-1000)
	if err := f.protocol.ProcessAnnouncement(peer, a); err != nil {
		t.Fatalf("err: %v", err)
	}

	hb := f.heartbeat(t, n, n.operatingKey, now)
	if err := f.protocol.ProcessHeartbeat(peer, hb); err != nil {
		t.Fatalf("err: %v", err)
	}

	rec, _ := f.registry.Find(n.op)
	if rec.LastPing.SigTime != now {
		t.Fatalf("last heartbeat should be %d, got %d", now, rec.LastPing.SigTime)
	}
	if !rec.IsEnabled() {
		t.Fatalf("node should be enabled, is %s", rec.State)
	}
	if len(f.relay.heartbeats) != 1 {
		t.Fatalf("heartbeat should be relayed")
	}

	seen, ok := f.registry.GetSeenAnnouncement(a.Hash())
	if !ok || seen.LastPing.SigTime != now {
		t.Fatalf("seen announcement should carry the new heartbeat")
	}

	// duplicates are dropped silently
	if err := f.protocol.ProcessHeartbeat(peer, hb); err != nil {
		t.Fatalf("err: %v", err)
	}

	f.clock.Advance(30)
	early := f.heartbeat(t, n, n.operatingKey, now+30)
	if err := f.protocol.ProcessHeartbeat(peer, early); !common.IsValidation(err) {
		t.Fatalf("early heartbeat should be refused, got %v", err)
	}

	rec, _ = f.registry.Find(n.op)
	if rec.LastPing.SigTime != now {
		t.Fatalf("early heartbeat should not change the last heartbeat")
	}
	if len(f.relay.heartbeats) != 1 {
		t.Fatalf("early heartbeat should not be relayed")
	}
}

func TestHeartbeatRejections(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now()
	n := f.newNode(t, 500)

	a := f.announce(t, n, addr, now-1000)
	if err := f.protocol.ProcessAnnouncement(peer, a); err != nil {
		t.Fatalf("err: %v", err)
	}

	other, _ := keys.GenerateKey()
	forged := f.heartbeat(t, n, other, now)
	if dos := common.DoS(f.protocol.ProcessHeartbeat(peer, forged)); dos != 33 {
		t.Fatalf("forged heartbeat should cost 33, got %d", dos)
	}

	past := f.heartbeat(t, n, n.operatingKey, now-MaxClockDrift)
	if dos := common.DoS(f.protocol.ProcessHeartbeat(peer, past)); dos != 1 {
		t.Fatalf("stale heartbeat should cost 1, got %d", dos)
	}

	stale := swiftnode.NewHeartbeat(n.op, mustBlockHash(t, f.chain, tip-MaxAnchorAge-1), now+1)
	stale.Sign(n.operatingKey)
	err := f.protocol.ProcessHeartbeat(peer, stale)
	if !common.IsValidation(err) || common.DoS(err) != 0 {
		t.Fatalf("old anchor should be refused without penalty, got %v", err)
	}

	unknown := swiftnode.NewHeartbeat(n.op, chainhash.Hash{1}, now+2)
	unknown.Sign(n.operatingKey)
	if err := f.protocol.ProcessHeartbeat(peer, unknown); !common.IsValidation(err) {
		t.Fatalf("unknown anchor should be refused, got %v", err)
	}

	rec, _ := f.registry.Find(n.op)
	if rec.LastPing.SigTime != now-1000 {
		t.Fatalf("refused heartbeats should not change the record")
	}
}

func TestHeartbeatRetriedAfterTransientError(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now()
	n := f.newNode(t, 500)

	a := f.announce(t, n, addr, now-1000)
	if err := f.protocol.ProcessAnnouncement(peer, a); err != nil {
		t.Fatalf("err: %v", err)
	}

	hb := f.heartbeat(t, n, n.operatingKey, now)

	f.chain.SetBusy(true)
	if err := f.protocol.ProcessHeartbeat(peer, hb); !common.IsTransient(err) {
		t.Fatalf("expected a transient error, got %v", err)
	}
	if f.registry.SeenHeartbeat(hb.Hash()) {
		t.Fatalf("heartbeat should be forgotten after a transient error")
	}

	f.chain.SetBusy(false)
	if err := f.protocol.ProcessHeartbeat(peer, hb); err != nil {
		t.Fatalf("err: %v", err)
	}
	rec, _ := f.registry.Find(n.op)
	if rec.LastPing.SigTime != now {
		t.Fatalf("retried heartbeat should be applied")
	}
}

func TestUnknownNodeHeartbeat(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now()
	n := f.newNode(t, 500)

	hb := f.heartbeat(t, n, n.operatingKey, now)
	if err := f.protocol.ProcessHeartbeat(peer, hb); err != ErrUnknownNode {
		t.Fatalf("expected ErrUnknownNode, got %v", err)
	}

	if reqs := f.requester.requests[peer]; len(reqs) != 1 || reqs[0] != n.op {
		t.Fatalf("entry should be requested from the sender, got %v", reqs)
	}

	// the entry is not asked for again right away
	again := f.heartbeat(t, n, n.operatingKey, now+1)
	f.protocol.ProcessHeartbeat("93.184.216.2:8544", again)
	if len(f.requester.requests) != 1 {
		t.Fatalf("entry should be requested once, got %v", f.requester.requests)
	}
}

func TestHotColdActivation(t *testing.T) {
	f := newFixture(t)
	n := f.newNode(t, 500)

	local := &localNode{pub: keys.FromPublicKey(n.operatingKey.PubKey())}
	f.protocol.SetLocalNode(local)

	a := f.announce(t, n, addr, f.clock.Now())
	if err := f.protocol.ProcessAnnouncement(peer, a); err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(local.enabled) != 1 || local.enabled[0] != n.op {
		t.Fatalf("local node should be enabled remotely, got %v", local.enabled)
	}

	// our own announcement coming back is ignored
	m := f.newNode(t, 500)
	mine := &localNode{pub: keys.FromPublicKey(m.operatingKey.PubKey()), op: m.op, known: true}
	f.protocol.SetLocalNode(mine)

	b := f.announce(t, m, "93.184.216.37:8544", f.clock.Now())
	if err := f.protocol.ProcessAnnouncement(peer, b); err != nil {
		t.Fatalf("err: %v", err)
	}
	if f.registry.Has(m.op) {
		t.Fatalf("own announcement should not be added from the network")
	}
}

func mustBlockHash(t *testing.T, c *dummy.Chain, height int64) chainhash.Hash {
	hash, err := c.BlockHash(height)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	return hash
}
