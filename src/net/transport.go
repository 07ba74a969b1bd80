package net

// Transport provides an interface for network transports to allow a node to
// communicate with other nodes.
type Transport interface {

	// Starts the transport listening
	Listen()

	// Consumer returns a channel that can be used to consume and respond to
	// RPC requests.
	Consumer() <-chan RPC

	// LocalAddr is used to return our local address
	LocalAddr() string

	// AdvertiseAddr is used to return our advertise address where other peers
	// can reach us
	AdvertiseAddr() string

	// Announce, Heartbeat and WinnerVote push gossip to the target node.

	Announce(target string, args *AnnounceMessage, resp *Ack) error

	Heartbeat(target string, args *HeartbeatMessage, resp *Ack) error

	WinnerVote(target string, args *WinnerVoteMessage, resp *Ack) error

	// List, Winners and Sporks send sync requests to the target node.

	List(target string, args *ListRequest, resp *ListResponse) error

	Winners(target string, args *WinnersRequest, resp *WinnersResponse) error

	Sporks(target string, args *SporksRequest, resp *SporksResponse) error

	// Probe checks that target accepts connections.
	Probe(target string) error

	// Close permanently closes a transport, stopping any associated goroutines
	// and freeing other resources.
	Close() error
}
