// Package net implements the transports swiftnode peers use to exchange
// gossip and sync requests.
//
// Every message is an RPC: the sender waits for the response, which is an Ack
// for gossip (announcements, heartbeats, payment votes) and the requested
// items for sync requests. There are two implementations of the Transport
// interface:
//
// - Inmem: in-memory transport used only for testing
//
// - TCP: communicating over plain TCP
//
// TCP
//
// To use a TCP transport, set the following configuration options in the
// Config object (cf config package):
//
// - BindAddr: the IP:PORT of the TCP socket the node binds to.
//
// - AdvertiseAddr: (optional) The address that is advertised to other nodes.
// If BindAddr is a local address not reachable by other peers, it is useful to
// set AdvertiseAddr to the reachable public address. A swiftnode announces
// this address.
//
// Each request is framed by one byte giving the message type followed by its
// JSON body. The response is an error string followed by the JSON response.
// Bodies are encoded with the canonical ugorji JSON codec.
package net
