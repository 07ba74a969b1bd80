// Package node implements the reactive component of a swiftnode daemon.
//
// This is the part of the daemon that owns the swiftnode components (the
// registry, the announce and heartbeat protocol, payment consensus, the
// bootstrap sync and the local node controller), wires them together and
// connects them to the network transport.
//
// Peer messages
//
// Every message received from the transport is dispatched by type.
// Announcements and heartbeats go to the protocol, winner votes to the
// payments manager, list and winners requests are served from the registry
// and the payments manager, spork requests from the feature flags. Errors
// carry a misbehaviour score which is charged to the sending peer; peers that
// reach the ban score are dropped and refused.
//
// Outbound requests and relays are issued from background goroutines, since
// the components ask for them while holding their own locks and the answers
// feed the same components.
//
// Maintenance loop
//
// A ControlTimer ticks once per TickInterval. Each tick advances the
// bootstrap sync and reacts to a new chain tip by electing the payee of a
// block ahead. Once the chain is synced, the local swiftnode is managed
// every PingSeconds ticks, and the registry and payment votes are pruned
// every CleanupTicks ticks. Snapshots are dumped every DumpInterval and on
// shutdown.
package node
