package node

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/swiftcashproject/swiftnode/src/common"
	"github.com/swiftcashproject/swiftnode/src/net"
	"github.com/swiftcashproject/swiftnode/src/nodesync"
	"github.com/swiftcashproject/swiftnode/src/peers"
	"github.com/swiftcashproject/swiftnode/src/telemetry"
)

func (n *Node) processRPC(rpc net.RPC) {
	switch cmd := rpc.Command.(type) {
	case *net.AnnounceMessage:
		n.processAnnounce(rpc, cmd)
	case *net.HeartbeatMessage:
		n.processHeartbeat(rpc, cmd)
	case *net.WinnerVoteMessage:
		n.processWinnerVote(rpc, cmd)
	case *net.ListRequest:
		n.processListRequest(rpc, cmd)
	case *net.WinnersRequest:
		n.processWinnersRequest(rpc, cmd)
	case *net.SporksRequest:
		n.processSporksRequest(rpc, cmd)
	default:
		n.logger.WithField("cmd", rpc.Command).Error("Unexpected RPC command")
		rpc.Respond(nil, fmt.Errorf("unexpected command"))
	}
}

// admit registers the sender of a message as a peer. Banned senders are
// refused.
func (n *Node) admit(h net.Header) error {
	if h.FromAddr == "" {
		return common.NewValidationError(0, "message without sender address")
	}
	if n.peers.IsBanned(h.FromAddr) {
		return fmt.Errorf("peer %s is banned", h.FromAddr)
	}
	if p, ok := n.peers.Get(h.FromAddr); ok && p.Version == h.Version {
		return nil
	}
	return n.peers.Add(peers.Peer{NetAddr: h.FromAddr, Version: h.Version, Inbound: true})
}

// handled accounts for the outcome of a message from peer and charges the
// peer the misbehaviour score carried by err.
func (n *Node) handled(kind string, peer string, err error) {
	telemetry.ObserveMessage(kind, err)
	if err == nil {
		return
	}

	n.logger.WithFields(logrus.Fields{
		"type":  kind,
		"peer":  peer,
		"error": err,
	}).Debug("Message rejected")

	score := common.DoS(err)
	if score <= 0 {
		return
	}
	telemetry.MisbehaviourTotal.Add(float64(score))
	if n.peers.Misbehaving(peer, score) {
		n.payments.ForgetPeer(peer)
	}
}

func (n *Node) ack(err error) *net.Ack {
	return &net.Ack{
		FromAddr: n.trans.AdvertiseAddr(),
		Accepted: err == nil,
	}
}

func (n *Node) processAnnounce(rpc net.RPC, cmd *net.AnnounceMessage) {
	n.logger.WithFields(logrus.Fields{
		"from":     cmd.FromAddr,
		"outpoint": cmd.Announcement.OutPoint.String(),
	}).Debug("process Announcement")

	err := n.admit(cmd.Header)
	if err == nil {
		err = n.protocol.ProcessAnnouncement(cmd.FromAddr, cmd.Announcement)
		n.handled("announce", cmd.FromAddr, err)
	}

	rpc.Respond(n.ack(err), err)
}

func (n *Node) processHeartbeat(rpc net.RPC, cmd *net.HeartbeatMessage) {
	n.logger.WithFields(logrus.Fields{
		"from":     cmd.FromAddr,
		"outpoint": cmd.Heartbeat.OutPoint.String(),
	}).Debug("process Heartbeat")

	err := n.admit(cmd.Header)
	if err == nil {
		err = n.protocol.ProcessHeartbeat(cmd.FromAddr, cmd.Heartbeat)
		n.handled("heartbeat", cmd.FromAddr, err)
	}

	rpc.Respond(n.ack(err), err)
}

func (n *Node) processWinnerVote(rpc net.RPC, cmd *net.WinnerVoteMessage) {
	n.logger.WithFields(logrus.Fields{
		"from":   cmd.FromAddr,
		"height": cmd.Vote.Height,
	}).Debug("process WinnerVote")

	err := n.admit(cmd.Header)
	if err == nil {
		err = n.payments.ProcessVote(cmd.FromAddr, cmd.Version, cmd.Vote)
		n.handled("vote", cmd.FromAddr, err)
	}

	rpc.Respond(n.ack(err), err)
}

func (n *Node) processListRequest(rpc net.RPC, cmd *net.ListRequest) {
	n.logger.WithFields(logrus.Fields{
		"from": cmd.FromAddr,
		"full": cmd.OutPoint == nil,
	}).Debug("process ListRequest")

	resp := &net.ListResponse{
		FromAddr: n.trans.AdvertiseAddr(),
	}

	err := n.admit(cmd.Header)
	if err == nil {
		resp.Announcements, err = n.registry.ServeListRequest(cmd.FromAddr, cmd.OutPoint)
		n.handled("list", cmd.FromAddr, err)
	}

	if err == nil && cmd.OutPoint == nil {
		resp.SyncCount = &net.SyncCountMessage{
			Stage: nodesync.List,
			Count: len(resp.Announcements),
		}
	}

	rpc.Respond(resp, err)
}

func (n *Node) processWinnersRequest(rpc net.RPC, cmd *net.WinnersRequest) {
	n.logger.WithFields(logrus.Fields{
		"from":         cmd.FromAddr,
		"count_needed": cmd.CountNeeded,
	}).Debug("process WinnersRequest")

	resp := &net.WinnersResponse{
		FromAddr: n.trans.AdvertiseAddr(),
	}

	err := n.admit(cmd.Header)
	if err == nil {
		resp.Votes, err = n.payments.ServeSync(cmd.FromAddr, cmd.CountNeeded)
		n.handled("winners", cmd.FromAddr, err)
	}

	if err == nil {
		resp.SyncCount = &net.SyncCountMessage{
			Stage: nodesync.PaymentWinners,
			Count: len(resp.Votes),
		}
	}

	rpc.Respond(resp, err)
}

func (n *Node) processSporksRequest(rpc net.RPC, cmd *net.SporksRequest) {
	n.logger.WithField("from", cmd.FromAddr).Debug("process SporksRequest")

	resp := &net.SporksResponse{
		FromAddr: n.trans.AdvertiseAddr(),
	}

	err := n.admit(cmd.Header)
	if err == nil {
		resp.Values = n.flags.Values()
	}
	telemetry.ObserveMessage("sporks", err)

	rpc.Respond(resp, err)
}
