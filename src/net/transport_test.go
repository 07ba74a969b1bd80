package net

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/swiftcashproject/swiftnode/src/chain"
	"github.com/swiftcashproject/swiftnode/src/common"
	"github.com/swiftcashproject/swiftnode/src/crypto"
	"github.com/swiftcashproject/swiftnode/src/crypto/keys"
	"github.com/swiftcashproject/swiftnode/src/nodesync"
	"github.com/swiftcashproject/swiftnode/src/payments"
	"github.com/swiftcashproject/swiftnode/src/swiftnode"
)

const (
	INMEM = iota
	TCP
	numTestTransports // NOTE: must be last
)

func NewTestTransport(ttype int, t *testing.T) Transport {
	switch ttype {
	case INMEM:
		_, it := NewInmemTransport("")
		return it
	case TCP:
		tt, err := NewTCPTransport("127.0.0.1:0", "", 2, time.Second, 2*time.Second, common.NewTestEntry(t, "net"))
		if err != nil {
			t.Fatal(err)
		}
		go tt.Listen()
		return tt
	default:
		panic("Unknown transport type")
	}
}

// newTestPair returns a consumer transport and a transport that can reach it.
func newTestPair(ttype int, t *testing.T) (Transport, Transport) {
	trans1 := NewTestTransport(ttype, t)
	trans2 := NewTestTransport(ttype, t)
	if ttype == INMEM {
		trans1.(*InmemTransport).Connect(trans2.LocalAddr(), trans2)
		trans2.(*InmemTransport).Connect(trans1.LocalAddr(), trans1)
	}
	return trans1, trans2
}

// serve answers the first RPC received on trans with resp after checking that
// its command equals expected.
func serve(t *testing.T, trans Transport, expected interface{}, resp interface{}, respErr error) {
	go func() {
		select {
		case rpc := <-trans.Consumer():
			if !reflect.DeepEqual(rpc.Command, expected) {
				t.Errorf("command mismatch: %#v %#v", rpc.Command, expected)
			}
			rpc.Respond(resp, respErr)
		case <-time.After(time.Second):
			t.Errorf("timeout")
		}
	}()
}

func testAnnouncement(t *testing.T) swiftnode.Announcement {
	collateralKey, err := keys.GenerateKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	operatingKey, err := keys.GenerateKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	op := wire.OutPoint{Hash: chainhash.DoubleHashH([]byte("collateral")), Index: 1}
	anchor := chainhash.DoubleHashH([]byte("anchor"))

	a, err := swiftnode.CreateAnnouncement(op, "93.184.216.34:8544", collateralKey, operatingKey, anchor, 1550000000, chain.ProtocolVersion)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	return *a
}

func testVote(t *testing.T) payments.Vote {
	key, err := keys.GenerateKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	voter := wire.OutPoint{Hash: chainhash.DoubleHashH([]byte("voter")), Index: 0}
	v := payments.NewVote(voter, 2010, crypto.PayToPubKeyHash(keys.FromPublicKey(key.PubKey())))
	if err := v.Sign(key); err != nil {
		t.Fatalf("err: %v", err)
	}
	return v
}

func TestTransport_StartStop(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans := NewTestTransport(ttype, t)
		if err := trans.Close(); err != nil {
			t.Fatalf("err: %v", err)
		}
	}
}

func TestTransport_Gossip(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans1, trans2 := newTestPair(ttype, t)
		defer trans1.Close()
		defer trans2.Close()

		header := Header{FromAddr: trans2.AdvertiseAddr(), Version: chain.ProtocolVersion}
		resp := Ack{FromAddr: trans1.AdvertiseAddr(), Accepted: true}

		a := testAnnouncement(t)
		announce := AnnounceMessage{Header: header, Announcement: a}
		serve(t, trans1, &announce, &resp, nil)

		var out Ack
		if err := trans2.Announce(trans1.LocalAddr(), &announce, &out); err != nil {
			t.Fatalf("err: %v", err)
		}
		if !reflect.DeepEqual(resp, out) {
			t.Fatalf("response mismatch: %#v %#v", resp, out)
		}

		heartbeat := HeartbeatMessage{Header: header, Heartbeat: a.LastPing}
		serve(t, trans1, &heartbeat, &resp, nil)

		out = Ack{}
		if err := trans2.Heartbeat(trans1.LocalAddr(), &heartbeat, &out); err != nil {
			t.Fatalf("err: %v", err)
		}
		if !reflect.DeepEqual(resp, out) {
			t.Fatalf("response mismatch: %#v %#v", resp, out)
		}

		vote := WinnerVoteMessage{Header: header, Vote: testVote(t)}
		serve(t, trans1, &vote, &resp, nil)

		out = Ack{}
		if err := trans2.WinnerVote(trans1.LocalAddr(), &vote, &out); err != nil {
			t.Fatalf("err: %v", err)
		}
		if !reflect.DeepEqual(resp, out) {
			t.Fatalf("response mismatch: %#v %#v", resp, out)
		}
	}
}

func TestTransport_List(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans1, trans2 := newTestPair(ttype, t)
		defer trans1.Close()
		defer trans2.Close()

		args := ListRequest{
			Header: Header{FromAddr: trans2.AdvertiseAddr(), Version: chain.ProtocolVersion},
		}
		resp := ListResponse{
			FromAddr:      trans1.AdvertiseAddr(),
			Announcements: []swiftnode.Announcement{testAnnouncement(t), testAnnouncement(t)},
			SyncCount:     &SyncCountMessage{Stage: nodesync.List, Count: 2},
		}
		serve(t, trans1, &args, &resp, nil)

		var out ListResponse
		if err := trans2.List(trans1.LocalAddr(), &args, &out); err != nil {
			t.Fatalf("err: %v", err)
		}
		if !reflect.DeepEqual(resp, out) {
			t.Fatalf("response mismatch: %#v %#v", resp, out)
		}

		// single entry
		op := resp.Announcements[0].OutPoint
		args.OutPoint = &op
		single := ListResponse{
			FromAddr:      trans1.AdvertiseAddr(),
			Announcements: resp.Announcements[:1],
		}
		serve(t, trans1, &args, &single, nil)

		out = ListResponse{}
		if err := trans2.List(trans1.LocalAddr(), &args, &out); err != nil {
			t.Fatalf("err: %v", err)
		}
		if !reflect.DeepEqual(single, out) {
			t.Fatalf("response mismatch: %#v %#v", single, out)
		}
	}
}

func TestTransport_Winners(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans1, trans2 := newTestPair(ttype, t)
		defer trans1.Close()
		defer trans2.Close()

		args := WinnersRequest{
			Header:      Header{FromAddr: trans2.AdvertiseAddr(), Version: chain.ProtocolVersion},
			CountNeeded: 120,
		}
		resp := WinnersResponse{
			FromAddr:  trans1.AdvertiseAddr(),
			Votes:     []payments.Vote{testVote(t), testVote(t), testVote(t)},
			SyncCount: &SyncCountMessage{Stage: nodesync.PaymentWinners, Count: 3},
		}
		serve(t, trans1, &args, &resp, nil)

		var out WinnersResponse
		if err := trans2.Winners(trans1.LocalAddr(), &args, &out); err != nil {
			t.Fatalf("err: %v", err)
		}
		if !reflect.DeepEqual(resp, out) {
			t.Fatalf("response mismatch: %#v %#v", resp, out)
		}
	}
}

func TestTransport_Sporks(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans1, trans2 := newTestPair(ttype, t)
		defer trans1.Close()
		defer trans2.Close()

		args := SporksRequest{
			Header: Header{FromAddr: trans2.AdvertiseAddr(), Version: chain.ProtocolVersion},
		}
		resp := SporksResponse{
			FromAddr: trans1.AdvertiseAddr(),
			Values: map[string]int64{
				"SPORK_8_SWIFTNODE_PAYMENT_ENFORCEMENT": 1550000000,
				"SPORK_10_SWIFTNODE_PAY_UPDATED_NODES":  4070908800,
			},
		}
		serve(t, trans1, &args, &resp, nil)

		var out SporksResponse
		if err := trans2.Sporks(trans1.LocalAddr(), &args, &out); err != nil {
			t.Fatalf("err: %v", err)
		}
		if !reflect.DeepEqual(resp, out) {
			t.Fatalf("response mismatch: %#v %#v", resp, out)
		}
	}
}

func TestTransport_Error(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans1, trans2 := newTestPair(ttype, t)
		defer trans1.Close()
		defer trans2.Close()

		vote := WinnerVoteMessage{
			Header: Header{FromAddr: trans2.AdvertiseAddr(), Version: chain.ProtocolVersion},
			Vote:   testVote(t),
		}
		respErr := common.NewValidationError(20, "bad vote")
		serve(t, trans1, &vote, &Ack{FromAddr: trans1.AdvertiseAddr()}, respErr)

		var out Ack
		err := trans2.WinnerVote(trans1.LocalAddr(), &vote, &out)
		if err == nil || !strings.Contains(err.Error(), "bad vote") {
			t.Fatalf("expected the handler error, got %v", err)
		}
	}
}

func TestTransport_Probe(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans1, trans2 := newTestPair(ttype, t)
		defer trans2.Close()

		if err := trans2.Probe(trans1.LocalAddr()); err != nil {
			t.Fatalf("err: %v", err)
		}

		addr := trans1.LocalAddr()
		trans1.Close()
		if ttype == INMEM {
			trans2.(*InmemTransport).Disconnect(addr)
		}
		if err := trans2.Probe(addr); err == nil {
			t.Fatalf("probe of a closed transport should fail")
		}
	}
}
