package net

import (
	"github.com/btcsuite/btcd/wire"
	"github.com/swiftcashproject/swiftnode/src/nodesync"
	"github.com/swiftcashproject/swiftnode/src/payments"
	"github.com/swiftcashproject/swiftnode/src/swiftnode"
)

// Header identifies the sender of a message: the address other peers reach
// it at and the protocol version it speaks.
type Header struct {
	FromAddr string
	Version  int32
}

// Ack is the response to a gossip message.
type Ack struct {
	FromAddr string
	Accepted bool
}

// SyncCountMessage tells how many items of a sync stage the sender served.
type SyncCountMessage struct {
	Stage nodesync.Stage
	Count int
}

// AnnounceMessage gossips a swiftnode announcement.
type AnnounceMessage struct {
	Header
	Announcement swiftnode.Announcement
}

// HeartbeatMessage gossips a swiftnode heartbeat.
type HeartbeatMessage struct {
	Header
	Heartbeat swiftnode.Heartbeat
}

// WinnerVoteMessage gossips a payment vote.
type WinnerVoteMessage struct {
	Header
	Vote payments.Vote
}

// ListRequest asks for the registry, or for the single entry OutPoint when it
// is set.
type ListRequest struct {
	Header
	OutPoint *wire.OutPoint
}

// ListResponse carries the announcements served for a ListRequest. SyncCount
// is only set for full list requests.
type ListResponse struct {
	FromAddr      string
	Announcements []swiftnode.Announcement
	SyncCount     *SyncCountMessage
}

// WinnersRequest asks for the payment votes of the upcoming blocks.
// CountNeeded is the number of enabled swiftnodes the sender knows.
type WinnersRequest struct {
	Header
	CountNeeded int
}

// WinnersResponse carries the votes served for a WinnersRequest.
type WinnersResponse struct {
	FromAddr  string
	Votes     []payments.Vote
	SyncCount *SyncCountMessage
}

// SporksRequest asks for the current feature flag values.
type SporksRequest struct {
	Header
}

// SporksResponse carries feature flag values by name.
type SporksResponse struct {
	FromAddr string
	Values   map[string]int64
}
