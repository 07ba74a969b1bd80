// Package peers keeps track of the peers a swiftnode daemon is connected to.
//
// A peer is identified by the network address it advertises. Besides the
// address, the daemon needs to know the protocol version a peer speaks, which
// decides what it may be asked for and which of its messages are processed.
//
// The PeerSet also carries two pieces of per-peer bookkeeping used by the
// swiftnode protocols. The misbehaviour score accumulates the penalties
// returned by message validation; a peer reaching BanScore is disconnected and
// banned for BanSeconds. Fulfilled requests are named flags recording that a
// peer was already asked for something (the registry, the payment winners,
// the feature flags) during the current sync, so that each peer is asked at
// most once per stage.
//
// Upon starting up, the daemon reads a peers.json file in its data directory
// listing the addresses it should attempt to connect to. The file is
// rewritten on shutdown with the peers that were connected.
package peers
