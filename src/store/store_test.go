package store

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/dgraph-io/badger"
	"github.com/stretchr/testify/require"
	"github.com/swiftcashproject/swiftnode/src/chain"
	"github.com/swiftcashproject/swiftnode/src/chain/dummy"
	"github.com/swiftcashproject/swiftnode/src/common"
	"github.com/swiftcashproject/swiftnode/src/crypto"
	"github.com/swiftcashproject/swiftnode/src/crypto/keys"
	"github.com/swiftcashproject/swiftnode/src/payments"
	"github.com/swiftcashproject/swiftnode/src/registry"
	"github.com/swiftcashproject/swiftnode/src/spork"
	"github.com/swiftcashproject/swiftnode/src/swiftnode"
)

const (
	genesis int64 = 1550000000
	tip     int64 = 2000
)

type fixture struct {
	clock    *dummy.Clock
	chain    *dummy.Chain
	utxo     *dummy.UTXOSet
	registry *registry.Registry
	payments *payments.Manager
}

func newFixture(t *testing.T) *fixture {
	c := dummy.NewChain(tip, genesis, 60)
	clock := dummy.NewClock(genesis + tip*60)
	utxo := dummy.NewUTXOSet(c)
	flags := spork.NewStatic(clock, nil)
	params := &chain.MainNetParams

	env := swiftnode.Env{Clock: clock, UTXO: utxo, Params: params}
	reg := registry.NewRegistry(env, c, flags, common.NewTestEntry(t, "registry"))

	pay := payments.NewManager(payments.Config{
		Registry: reg,
		Chain:    c,
		Flags:    flags,
		Rewards:  dummy.NewRewards(),
		Budget:   dummy.NewBudget(),
		Params:   params,
		Logger:   common.NewTestEntry(t, "payments"),
	})
	reg.SetPaymentSchedule(pay)

	return &fixture{
		clock:    clock,
		chain:    c,
		utxo:     utxo,
		registry: reg,
		payments: pay,
	}
}

// populate adds n enabled nodes and one vote per node at consecutive heights
// above the tip.
func (f *fixture) populate(t *testing.T, n int) {
	for i := 0; i < n; i++ {
		collateralKey, err := keys.GenerateKey()
		require.NoError(t, err)
		operatingKey, err := keys.GenerateKey()
		require.NoError(t, err)

		op := f.utxo.AddOutput(
			crypto.PayToPubKeyHash(keys.FromPublicKey(collateralKey.PubKey())),
			chain.MainNetParams.Collateral,
			500,
		)
		anchor, err := f.chain.BlockHash(tip - 12)
		require.NoError(t, err)

		now := f.clock.Now()
		addr := fmt.Sprintf("93.184.216.%d:8544", i+1)
		a, err := swiftnode.CreateAnnouncement(op, addr, collateralKey, operatingKey, anchor, now-9000, chain.ProtocolVersion)
		require.NoError(t, err)

		rec := swiftnode.NewRecord(a)
		rec.LastPing.SigTime = now - 60
		require.NoError(t, f.registry.Add(rec))
		require.True(t, f.registry.AddSeenAnnouncement(*a))

		v := payments.NewVote(op, tip+int64(i), rec.Payee())
		require.NoError(t, v.Sign(operatingKey))
		require.True(t, f.payments.AddVote(v))
	}
}

func outPoints(recs []*swiftnode.Record) map[wire.OutPoint]string {
	res := make(map[wire.OutPoint]string, len(recs))
	for _, rec := range recs {
		res[rec.OutPoint] = rec.Addr
	}
	return res
}

func TestReadResultString(t *testing.T) {
	require.Equal(t, "Ok", Ok.String())
	require.Equal(t, "IncorrectMagicNumber", IncorrectMagicNumber.String())
	require.Equal(t, "Unknown", ReadResult(42).String())
}

func TestFileRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.populate(t, 5)

	dir, err := ioutil.TempDir("", "swiftnode-store")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	s := NewSnapshots(dir, &chain.MainNetParams, f.registry, f.payments, nil, common.NewTestEntry(t, "store"))
	require.NoError(t, s.Dump())

	_, err = os.Stat(filepath.Join(dir, CacheFileName))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, PaymentsFileName))
	require.NoError(t, err)

	g := newFixture(t)
	h := NewSnapshots(dir, &chain.MainNetParams, g.registry, g.payments, nil, common.NewTestEntry(t, "store"))

	require.Equal(t, Ok, h.LoadRegistry(true))
	require.Equal(t, 0, g.registry.Size(), "a dry run must not touch the registry")
	require.Equal(t, Ok, h.LoadPayments(true))
	votes, _ := g.payments.Counts()
	require.Equal(t, 0, votes, "a dry run must not touch the payments")

	require.Equal(t, Ok, h.LoadPayments(false))
	require.Equal(t, f.payments.Snapshot(), g.payments.Snapshot())

	var snap registry.Snapshot
	require.Equal(t, Ok, h.cacheFile.Read(&snap))
	require.Equal(t, outPoints(f.registry.All()), outPoints(snap.Nodes))
	require.Len(t, snap.SeenAnnouncements, 5)
	for _, a := range snap.SeenAnnouncements {
		require.NoError(t, a.Verify())
	}
}

func TestLoadPrunes(t *testing.T) {
	f := newFixture(t)
	f.populate(t, 3)

	dir, err := ioutil.TempDir("", "swiftnode-store")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	s := NewSnapshots(dir, &chain.MainNetParams, f.registry, f.payments, nil, common.NewTestEntry(t, "store"))
	require.NoError(t, s.DumpRegistry())

	spent := f.registry.All()[0].OutPoint
	f.utxo.Spend(spent)
	f.clock.Advance(swiftnode.CheckSeconds + 1)

	f.registry.Clear()
	require.Equal(t, Ok, s.LoadRegistry(false))
	require.Equal(t, 2, f.registry.Size())
	require.False(t, f.registry.Has(spent))
}

func TestReadErrors(t *testing.T) {
	dir, err := ioutil.TempDir("", "swiftnode-store")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, CacheFileName)
	logger := common.NewTestEntry(t, "store")
	main := NewFile(path, CacheMagic, &chain.MainNetParams, logger)

	in := &payments.Snapshot{Votes: []payments.Vote{}}
	var out payments.Snapshot

	t.Run("missing", func(t *testing.T) {
		require.Equal(t, FileError, main.Read(&out))
	})

	t.Run("short", func(t *testing.T) {
		require.NoError(t, ioutil.WriteFile(path, []byte("short"), 0600))
		require.Equal(t, HashReadError, main.Read(&out))
	})

	t.Run("corrupted", func(t *testing.T) {
		require.NoError(t, main.Write(in))
		data, err := ioutil.ReadFile(path)
		require.NoError(t, err)
		data[len(CacheMagic)+3] ^= 0xff
		require.NoError(t, ioutil.WriteFile(path, data, 0600))
		require.Equal(t, IncorrectHash, main.Read(&out))
	})

	t.Run("magic message", func(t *testing.T) {
		other := NewFile(path, PaymentsMagic, &chain.MainNetParams, logger)
		require.NoError(t, other.Write(in))
		require.Equal(t, IncorrectMagicMessage, main.Read(&out))
	})

	t.Run("magic number", func(t *testing.T) {
		test := NewFile(path, CacheMagic, &chain.TestNetParams, logger)
		require.NoError(t, test.Write(in))
		require.Equal(t, IncorrectMagicNumber, main.Read(&out))
	})

	t.Run("format", func(t *testing.T) {
		require.NoError(t, ioutil.WriteFile(path, frame(t, CacheMagic, chain.MainNetParams.Net, []byte(`{"Votes":[`)), 0600))
		require.Equal(t, IncorrectFormat, main.Read(&out))
	})

	t.Run("ok", func(t *testing.T) {
		require.NoError(t, main.Write(in))
		require.Equal(t, Ok, main.Read(&out))
		require.Empty(t, out.Votes)
	})
}

// frame builds a checksummed snapshot around a raw payload.
func frame(t *testing.T, magic string, net [4]byte, payload []byte) []byte {
	var buf bytes.Buffer
	require.NoError(t, wire.WriteVarString(&buf, 0, magic))
	buf.Write(net[:])
	require.NoError(t, wire.WriteVarBytes(&buf, 0, payload))
	sum := crypto.DoubleSHA256(buf.Bytes())
	buf.Write(sum[:])
	return buf.Bytes()
}

func TestDumpRefusesUnknownFile(t *testing.T) {
	f := newFixture(t)
	f.populate(t, 2)

	dir, err := ioutil.TempDir("", "swiftnode-store")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	s := NewSnapshots(dir, &chain.MainNetParams, f.registry, f.payments, nil, common.NewTestEntry(t, "store"))
	path := filepath.Join(dir, PaymentsFileName)

	// another network's file is left alone
	foreign := NewFile(path, PaymentsMagic, &chain.TestNetParams, common.NewTestEntry(t, "store"))
	require.NoError(t, foreign.Write(&payments.Snapshot{}))
	before, err := ioutil.ReadFile(path)
	require.NoError(t, err)

	require.Error(t, s.DumpPayments())
	after, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, before, after)

	// a recognised file with a broken payload is recreated
	require.NoError(t, ioutil.WriteFile(path, frame(t, PaymentsMagic, chain.MainNetParams.Net, []byte("{")), 0600))
	require.NoError(t, s.DumpPayments())
	require.Equal(t, Ok, s.LoadPayments(true))
}

func TestBadgerStore(t *testing.T) {
	dir, err := ioutil.TempDir("", "swiftnode-badger")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	bs, err := NewBadgerStore(dir, &chain.MainNetParams, common.NewTestEntry(t, "badger"))
	require.NoError(t, err)
	defer bs.Close()
	require.Equal(t, dir, bs.StorePath())

	var out payments.Snapshot
	_, err = bs.Get(PaymentsMagic, &out)
	require.True(t, common.IsStore(err, common.KeyNotFound), "got %v", err)
	_, err = bs.DumpTime(PaymentsMagic)
	require.True(t, common.IsStore(err, common.KeyNotFound), "got %v", err)

	f := newFixture(t)
	f.populate(t, 3)
	in := f.payments.Snapshot()

	require.NoError(t, bs.Put(PaymentsMagic, in))
	res, err := bs.Get(PaymentsMagic, &out)
	require.NoError(t, err)
	require.Equal(t, Ok, res)
	require.Equal(t, in, &out)

	stamp, err := bs.DumpTime(PaymentsMagic)
	require.NoError(t, err)
	require.False(t, stamp.IsZero())

	// an entry is only readable under its own magic
	require.NoError(t, bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(CacheMagic), mustEncode(t, PaymentsMagic, in))
	}))
	var snap registry.Snapshot
	res, err = bs.Get(CacheMagic, &snap)
	require.NoError(t, err)
	require.Equal(t, IncorrectMagicMessage, res)
}

func mustEncode(t *testing.T, magic string, in interface{}) []byte {
	data, err := encodeSnapshot(magic, chain.MainNetParams.Net, in)
	require.NoError(t, err)
	return data
}

func TestBootstrapFromMirror(t *testing.T) {
	f := newFixture(t)
	f.populate(t, 4)

	dir, err := ioutil.TempDir("", "swiftnode-store")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	bs, err := NewBadgerStore(filepath.Join(dir, "badger_db"), &chain.MainNetParams, common.NewTestEntry(t, "badger"))
	require.NoError(t, err)
	defer bs.Close()

	s := NewSnapshots(dir, &chain.MainNetParams, f.registry, f.payments, bs, common.NewTestEntry(t, "store"))
	require.NoError(t, s.Dump())

	require.NoError(t, os.Remove(filepath.Join(dir, CacheFileName)))
	require.NoError(t, os.Remove(filepath.Join(dir, PaymentsFileName)))

	g := newFixture(t)
	h := NewSnapshots(dir, &chain.MainNetParams, g.registry, g.payments, bs, common.NewTestEntry(t, "store"))
	require.Equal(t, Ok, h.LoadPayments(false))
	require.Equal(t, f.payments.Snapshot(), g.payments.Snapshot())

	var snap registry.Snapshot
	res, err := bs.Get(CacheMagic, &snap)
	require.NoError(t, err)
	require.Equal(t, Ok, res)
	require.Equal(t, outPoints(f.registry.All()), outPoints(snap.Nodes))
}
