package node

import (
	"sort"

	"github.com/btcsuite/btcd/wire"
	"github.com/sirupsen/logrus"
	"github.com/swiftcashproject/swiftnode/src/chain"
	"github.com/swiftcashproject/swiftnode/src/net"
	"github.com/swiftcashproject/swiftnode/src/payments"
	"github.com/swiftcashproject/swiftnode/src/spork"
	"github.com/swiftcashproject/swiftnode/src/swiftnode"
)

func (n *Node) header() net.Header {
	return net.Header{
		FromAddr: n.trans.AdvertiseAddr(),
		Version:  chain.ProtocolVersion,
	}
}

// peerVersion returns the protocol version peer announced, or ours when it
// never sent us a message.
func (n *Node) peerVersion(peer string) int32 {
	if p, ok := n.peers.Get(peer); ok && p.Version > 0 {
		return p.Version
	}
	return chain.ProtocolVersion
}

// request runs f in the background. Sync requests are issued while the
// components hold their locks, and their responses feed the same components.
func (n *Node) request(peer string, kind string, f func() error) {
	ok := n.goFunc(func() {
		if err := f(); err != nil {
			n.logger.WithFields(logrus.Fields{
				"peer":    peer,
				"request": kind,
				"error":   err,
			}).Debug("Request failed")
		}
	})
	if !ok {
		n.logger.WithFields(logrus.Fields{
			"peer":    peer,
			"request": kind,
		}).Warn("Too many requests in flight, dropping")
	}
}

// RequestSporks implements nodesync.Requester. Flags are owned by the host
// process, the values a peer serves are only compared with ours.
func (n *Node) RequestSporks(peer string) {
	n.request(peer, "sporks", func() error {
		var out net.SporksResponse
		if err := n.trans.Sporks(peer, &net.SporksRequest{Header: n.header()}, &out); err != nil {
			return err
		}
		if diff := n.divergentSporks(out.Values); len(diff) > 0 {
			n.logger.WithFields(logrus.Fields{
				"peer":   peer,
				"sporks": diff,
			}).Warn("Peer serves different spork values")
		}
		return nil
	})
}

// divergentSporks returns the names of the known flags whose value differs
// from ours, sorted.
func (n *Node) divergentSporks(values map[string]int64) []string {
	var res []string
	for name, v := range values {
		id, ok := spork.ID(name)
		if !ok {
			continue
		}
		if n.flags.Value(id) != v {
			res = append(res, name)
		}
	}
	sort.Strings(res)
	return res
}

// RequestList implements nodesync.Requester.
func (n *Node) RequestList(peer string) {
	n.request(peer, "list", func() error {
		var out net.ListResponse
		if err := n.trans.List(peer, &net.ListRequest{Header: n.header()}, &out); err != nil {
			return err
		}
		n.processListResponse(peer, &out)
		return nil
	})
}

// RequestEntry implements protocol.EntryRequester and
// payments.EntryRequester.
func (n *Node) RequestEntry(peer string, op wire.OutPoint) {
	n.request(peer, "entry", func() error {
		args := net.ListRequest{Header: n.header(), OutPoint: &op}
		var out net.ListResponse
		if err := n.trans.List(peer, &args, &out); err != nil {
			return err
		}
		n.processListResponse(peer, &out)
		return nil
	})
}

func (n *Node) processListResponse(peer string, resp *net.ListResponse) {
	n.logger.WithFields(logrus.Fields{
		"peer":          peer,
		"announcements": len(resp.Announcements),
	}).Debug("ListResponse")

	for _, a := range resp.Announcements {
		err := n.protocol.ProcessAnnouncement(peer, a)
		n.handled("announce", peer, err)
	}

	if resp.SyncCount != nil {
		n.syncer.ProcessSyncCount(peer, resp.SyncCount.Stage, resp.SyncCount.Count)
	}
}

// RequestWinners implements nodesync.Requester.
func (n *Node) RequestWinners(peer string, countNeeded int) {
	n.request(peer, "winners", func() error {
		args := net.WinnersRequest{Header: n.header(), CountNeeded: countNeeded}
		var out net.WinnersResponse
		if err := n.trans.Winners(peer, &args, &out); err != nil {
			return err
		}
		n.processWinnersResponse(peer, &out)
		return nil
	})
}

func (n *Node) processWinnersResponse(peer string, resp *net.WinnersResponse) {
	n.logger.WithFields(logrus.Fields{
		"peer":  peer,
		"votes": len(resp.Votes),
	}).Debug("WinnersResponse")

	version := n.peerVersion(peer)
	for _, v := range resp.Votes {
		err := n.payments.ProcessVote(peer, version, v)
		n.handled("vote", peer, err)
	}

	if resp.SyncCount != nil {
		n.syncer.ProcessSyncCount(peer, resp.SyncCount.Stage, resp.SyncCount.Count)
	}
}

// RequestBudget implements nodesync.Requester. Budget items are owned by the
// budget collaborator, the Budget stage completes on its timeout.
func (n *Node) RequestBudget(peer string) {
	n.logger.WithField("peer", peer).Debug("Budget sync is left to the budget collaborator")
}

// RelayAnnouncement implements protocol.Relayer and active.Relayer.
func (n *Node) RelayAnnouncement(a swiftnode.Announcement) {
	msg := &net.AnnounceMessage{Header: n.header(), Announcement: a}
	n.broadcast("announce", func(peer string) error {
		var out net.Ack
		return n.trans.Announce(peer, msg, &out)
	})
}

// RelayHeartbeat implements protocol.Relayer and active.Relayer.
func (n *Node) RelayHeartbeat(hb swiftnode.Heartbeat) {
	msg := &net.HeartbeatMessage{Header: n.header(), Heartbeat: hb}
	n.broadcast("heartbeat", func(peer string) error {
		var out net.Ack
		return n.trans.Heartbeat(peer, msg, &out)
	})
}

// RelayVote implements payments.Relayer.
func (n *Node) RelayVote(v payments.Vote) {
	msg := &net.WinnerVoteMessage{Header: n.header(), Vote: v}
	n.broadcast("vote", func(peer string) error {
		var out net.Ack
		return n.trans.WinnerVote(peer, msg, &out)
	})
}

// broadcast sends a message to every peer from a single goroutine. Peers
// reject what they have already seen, so the sender is not excluded.
func (n *Node) broadcast(kind string, send func(peer string) error) {
	targets := n.peers.List()
	if len(targets) == 0 {
		return
	}
	n.request("", "relay "+kind, func() error {
		for _, p := range targets {
			if err := send(p.NetAddr); err != nil {
				n.logger.WithFields(logrus.Fields{
					"peer":  p.NetAddr,
					"type":  kind,
					"error": err,
				}).Debug("Relay failed")
			}
		}
		return nil
	})
}

// Probe implements active.Prober.
func (n *Node) Probe(addr string) error {
	return n.trans.Probe(addr)
}
