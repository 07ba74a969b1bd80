package node

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/wire"
	"github.com/swiftcashproject/swiftnode/src/chain"
	"github.com/swiftcashproject/swiftnode/src/chain/dummy"
	"github.com/swiftcashproject/swiftnode/src/common"
	"github.com/swiftcashproject/swiftnode/src/crypto"
	"github.com/swiftcashproject/swiftnode/src/crypto/keys"
	"github.com/swiftcashproject/swiftnode/src/net"
	"github.com/swiftcashproject/swiftnode/src/payments"
	"github.com/swiftcashproject/swiftnode/src/peers"
	"github.com/swiftcashproject/swiftnode/src/protocol"
	"github.com/swiftcashproject/swiftnode/src/spork"
	"github.com/swiftcashproject/swiftnode/src/store"
	"github.com/swiftcashproject/swiftnode/src/swiftnode"
)

const (
	genesis int64 = 1550000000
	tip     int64 = 1000

	addrA    = "93.184.216.1:8544"
	addrB    = "93.184.216.2:8544"
	addrC    = "93.184.216.3:8544"
	nodeAddr = "93.184.216.50:8544"
)

// testNet is the chain shared by the nodes of a test.
type testNet struct {
	clock  *dummy.Clock
	chain  *dummy.Chain
	utxo   *dummy.UTXOSet
	params *chain.Params
}

func newTestNet(params *chain.Params) *testNet {
	c := dummy.NewChain(tip, genesis, 60)
	return &testNet{
		clock:  dummy.NewClock(genesis + tip*60),
		chain:  c,
		utxo:   dummy.NewUTXOSet(c),
		params: params,
	}
}

type testNode struct {
	*Node
	trans  *net.InmemTransport
	wallet *dummy.Wallet
	flags  *spork.Static
}

func (tn *testNet) newNode(t *testing.T, addr string) *testNode {
	_, trans := net.NewInmemTransport(addr)
	wallet := dummy.NewWallet(tn.utxo)
	flags := spork.NewStatic(tn.clock, nil)

	n := NewNode(TestConfig(t),
		Chain{
			View:    tn.chain,
			UTXO:    tn.utxo,
			Wallet:  wallet,
			Rewards: dummy.NewRewards(),
			Budget:  dummy.NewBudget(),
			Flags:   flags,
			Clock:   tn.clock,
			Params:  tn.params,
		},
		Local{},
		peers.NewPeerSet(tn.clock, common.NewTestEntry(t, "peers")),
		trans,
	)
	if err := n.Init(); err != nil {
		t.Fatalf("err: %v", err)
	}
	return &testNode{Node: n, trans: trans, wallet: wallet, flags: flags}
}

// serve answers peers without running the maintenance loop.
func (n *testNode) serve() {
	go n.doBackgroundWork()
}

func connect(a, b *net.InmemTransport) {
	a.Connect(b.LocalAddr(), b)
	b.Connect(a.LocalAddr(), a)
}

type fundedNode struct {
	op            wire.OutPoint
	collateralKey *btcec.PrivateKey
	operatingKey  *btcec.PrivateKey
}

func (tn *testNet) fund(t *testing.T) *fundedNode {
	collateralKey, err := keys.GenerateKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	operatingKey, err := keys.GenerateKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	op := tn.utxo.AddOutput(
		crypto.PayToPubKeyHash(keys.FromPublicKey(collateralKey.PubKey())),
		tn.params.Collateral,
		500,
	)
	return &fundedNode{op: op, collateralKey: collateralKey, operatingKey: operatingKey}
}

func (tn *testNet) announce(t *testing.T, f *fundedNode) swiftnode.Announcement {
	anchor, err := tn.chain.BlockHash(tip - protocol.HeartbeatAnchorDepth)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	a, err := swiftnode.CreateAnnouncement(f.op, nodeAddr, f.collateralKey, f.operatingKey,
		anchor, tn.clock.Now(), chain.ProtocolVersion)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	return *a
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, what string) {
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestListRequest(t *testing.T) {
	tn := newTestNet(&chain.MainNetParams)
	a := tn.newNode(t, addrA)
	b := tn.newNode(t, addrB)
	defer a.Shutdown()
	defer b.Shutdown()
	connect(a.trans, b.trans)
	a.serve()
	b.serve()

	f := tn.fund(t)
	if err := a.protocol.ProcessAnnouncement(addrC, tn.announce(t, f)); err != nil {
		t.Fatalf("err: %v", err)
	}

	b.RequestList(addrA)

	waitFor(t, time.Second, func() bool { return b.Registry().Has(f.op) }, "list entry")

	if _, ok := a.Peers().Get(addrB); !ok {
		t.Fatalf("requesting peer should be registered")
	}
}

func TestAnnouncementRelay(t *testing.T) {
	tn := newTestNet(&chain.MainNetParams)
	a := tn.newNode(t, addrA)
	b := tn.newNode(t, addrB)
	defer a.Shutdown()
	defer b.Shutdown()
	connect(a.trans, b.trans)
	a.serve()
	b.serve()

	if err := a.Peers().Add(peers.Peer{NetAddr: addrB, Version: chain.ProtocolVersion}); err != nil {
		t.Fatalf("err: %v", err)
	}

	f := tn.fund(t)
	if err := a.protocol.ProcessAnnouncement(addrC, tn.announce(t, f)); err != nil {
		t.Fatalf("err: %v", err)
	}

	waitFor(t, time.Second, func() bool { return b.Registry().Has(f.op) }, "relayed announcement")

	// b learned a from the relay
	if _, ok := b.Peers().Get(addrA); !ok {
		t.Fatalf("relaying peer should be registered")
	}
}

func TestWinnersRequest(t *testing.T) {
	tn := newTestNet(&chain.MainNetParams)
	a := tn.newNode(t, addrA)
	defer a.Shutdown()
	a.serve()

	_, client := net.NewInmemTransport(addrC)
	connect(client, a.trans)

	key, err := keys.GenerateKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	v := tn.vote(t, key, tip+5)
	if !a.Payments().AddVote(v) {
		t.Fatalf("vote should be added")
	}

	args := net.WinnersRequest{
		Header:      net.Header{FromAddr: addrC, Version: chain.ProtocolVersion},
		CountNeeded: 10,
	}
	var out net.WinnersResponse
	if err := client.Winners(addrA, &args, &out); err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(out.Votes) != 1 || out.Votes[0].Hash() != v.Hash() {
		t.Fatalf("unexpected votes %v", out.Votes)
	}
	if out.SyncCount == nil || out.SyncCount.Count != 1 {
		t.Fatalf("winners response should carry a sync count, got %v", out.SyncCount)
	}

	// a mainnet peer may ask once
	if err := client.Winners(addrA, &args, &out); err == nil {
		t.Fatalf("second winners request should be refused")
	}
	if a.Peers().Score(addrC) != 20 {
		t.Fatalf("repeated request should be charged, score %d", a.Peers().Score(addrC))
	}
}

// vote returns a vote for height signed by key, from a fresh collateral.
func (tn *testNet) vote(t *testing.T, key *btcec.PrivateKey, height int64) payments.Vote {
	v := payments.NewVote(tn.fund(t).op, height, crypto.PayToPubKeyHash(keys.FromPublicKey(key.PubKey())))
	if err := v.Sign(key); err != nil {
		t.Fatalf("err: %v", err)
	}
	return v
}

func TestMisbehavingPeerBanned(t *testing.T) {
	tn := newTestNet(&chain.MainNetParams)
	a := tn.newNode(t, addrA)
	defer a.Shutdown()
	a.serve()

	_, client := net.NewInmemTransport(addrC)
	connect(client, a.trans)

	args := net.ListRequest{
		Header: net.Header{FromAddr: addrC, Version: chain.ProtocolVersion},
	}
	var out net.ListResponse
	if err := client.List(addrA, &args, &out); err != nil {
		t.Fatalf("err: %v", err)
	}
	if out.SyncCount == nil || out.SyncCount.Count != 0 {
		t.Fatalf("full list response should carry a sync count")
	}

	// each repeat is charged 34, the third one bans
	for i := 0; i < 3; i++ {
		if err := client.List(addrA, &args, &out); err == nil {
			t.Fatalf("repeated list request %d should be refused", i)
		}
	}
	if !a.Peers().IsBanned(addrC) {
		t.Fatalf("peer should be banned")
	}

	var ack net.Ack
	heartbeat := net.HeartbeatMessage{Header: args.Header}
	if err := client.Heartbeat(addrA, &heartbeat, &ack); err == nil || ack.Accepted {
		t.Fatalf("banned peer should be refused")
	}
}

func TestSporksRequest(t *testing.T) {
	tn := newTestNet(&chain.MainNetParams)
	a := tn.newNode(t, addrA)
	b := tn.newNode(t, addrB)
	defer a.Shutdown()
	defer b.Shutdown()
	connect(a.trans, b.trans)
	a.serve()

	a.flags.Set(spork.SwiftnodePaymentEnforcement, 1234)
	b.flags.Enable(spork.SwiftnodePayUpdatedNodes)
	before := b.flags.Value(spork.SwiftnodePaymentEnforcement)

	var out net.SporksResponse
	if err := b.trans.Sporks(addrA, &net.SporksRequest{Header: b.header()}, &out); err != nil {
		t.Fatalf("err: %v", err)
	}
	if out.Values["SPORK_4_SWIFTNODE_PAYMENT_ENFORCEMENT"] != 1234 {
		t.Fatalf("served values should carry the flag, got %v", out.Values)
	}

	diff := b.divergentSporks(out.Values)
	if len(diff) != 1 || diff[0] != "SPORK_4_SWIFTNODE_PAYMENT_ENFORCEMENT" {
		t.Fatalf("divergent sporks should be [SPORK_4_SWIFTNODE_PAYMENT_ENFORCEMENT], got %v", diff)
	}

	b.RequestSporks(addrA)
	time.Sleep(100 * time.Millisecond)

	if v := b.flags.Value(spork.SwiftnodePaymentEnforcement); v != before {
		t.Fatalf("peer values must not change local flags, got %d", v)
	}
	if !b.flags.IsActive(spork.SwiftnodePayUpdatedNodes) {
		t.Fatalf("local flag should stay active")
	}
}

func TestUnexpectedCommand(t *testing.T) {
	tn := newTestNet(&chain.MainNetParams)
	a := tn.newNode(t, addrA)
	defer a.Shutdown()

	respCh := make(chan net.RPCResponse, 1)
	a.processRPC(net.RPC{Command: "bogus", RespChan: respCh})

	resp := <-respCh
	if resp.Error == nil {
		t.Fatalf("unexpected command should fail")
	}
}

func TestTick(t *testing.T) {
	tn := newTestNet(&chain.MainNetParams)
	a := tn.newNode(t, addrA)
	defer a.Shutdown()

	if a.GetState() != Syncing {
		t.Fatalf("node should start Syncing, got %s", a.GetState())
	}

	a.tick()
	if a.GetState() != Running {
		t.Fatalf("synced node should be Running, got %s", a.GetState())
	}
	if a.syncedTicks != 1 {
		t.Fatalf("synced ticks should be 1, got %d", a.syncedTicks)
	}
	if a.lastTip != tip {
		t.Fatalf("tip should be tracked, got %d", a.lastTip)
	}

	a.Suspend()
	a.tick()
	if a.syncedTicks != 1 {
		t.Fatalf("suspended node should not tick")
	}

	a.Resume()
	a.tick()
	if a.syncedTicks != 2 {
		t.Fatalf("resumed node should tick, got %d", a.syncedTicks)
	}

	// a stale tip puts the node back to Syncing after a sleep
	tn.clock.Advance(6 * 60 * 60)
	a.tick()
	if a.GetState() != Syncing {
		t.Fatalf("stale node should be Syncing, got %s", a.GetState())
	}
}

func TestStartAlias(t *testing.T) {
	tn := newTestNet(&chain.MainNetParams)
	a := tn.newNode(t, addrA)
	defer a.Shutdown()
	a.tick()

	op, _, err := a.wallet.AddOutput(tn.params.Collateral, 500)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	remoteKey, err := keys.GenerateKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	ann, err := a.StartAlias(nodeAddr, keys.PrivateKeyHex(remoteKey), op.Hash.String(), op.Index)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if ann.OutPoint != op {
		t.Fatalf("announcement should use the requested collateral")
	}
	if !a.Registry().Has(op) {
		t.Fatalf("started alias should be registered")
	}

	if _, err := a.StartAlias("93.184.216.51:9999", keys.PrivateKeyHex(remoteKey), op.Hash.String(), op.Index); err == nil {
		t.Fatalf("mainnet alias on a non default port should fail")
	}
}

func TestSnapshotsOnShutdown(t *testing.T) {
	dir := t.TempDir()
	tn := newTestNet(&chain.MainNetParams)

	a := tn.newNode(t, addrA)
	a.EnableSnapshots(dir, nil)

	f := tn.fund(t)
	if err := a.protocol.ProcessAnnouncement(addrC, tn.announce(t, f)); err != nil {
		t.Fatalf("err: %v", err)
	}
	a.Shutdown()

	if _, err := os.Stat(filepath.Join(dir, store.CacheFileName)); err != nil {
		t.Fatalf("registry snapshot should be written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, store.PaymentsFileName)); err != nil {
		t.Fatalf("payments snapshot should be written: %v", err)
	}

	b := tn.newNode(t, addrB)
	defer b.Shutdown()
	b.EnableSnapshots(dir, nil)
	if err := b.Init(); err != nil {
		t.Fatalf("err: %v", err)
	}
	if !b.Registry().Has(f.op) {
		t.Fatalf("registry should be restored from the snapshot")
	}
}

func TestGetStats(t *testing.T) {
	tn := newTestNet(&chain.TestNetParams)
	a := tn.newNode(t, addrA)
	defer a.Shutdown()

	stats := a.GetStats()
	expected := map[string]string{
		"state":     "Syncing",
		"network":   tn.params.Name,
		"addr":      addrA,
		"tip":       "1000",
		"nodes":     "0",
		"num_peers": "0",
	}
	for k, v := range expected {
		if stats[k] != v {
			t.Fatalf("stats[%s] should be %s, got %s", k, v, stats[k])
		}
	}
	for _, k := range []string{"sync_stage", "sync_status", "active_status", "uptime"} {
		if _, ok := stats[k]; !ok {
			t.Fatalf("stats should contain %s", k)
		}
	}
}

func TestRun(t *testing.T) {
	tn := newTestNet(&chain.MainNetParams)
	a := tn.newNode(t, addrA)
	a.RunAsync()

	waitFor(t, time.Second, func() bool { return a.GetState() == Running }, "running state")

	a.Shutdown()
	if a.GetState() != Shutdown {
		t.Fatalf("node should be Shutdown")
	}
	// idempotent
	a.Shutdown()
}
