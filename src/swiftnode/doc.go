// Package swiftnode defines the swiftnode record and the signed messages that
// create and maintain it.
//
// A swiftnode is identified by the outpoint of its collateral. It registers
// with an Announcement signed by the collateral key, then proves liveness with
// Heartbeats signed by its operating key. Record.Check derives the lifecycle
// State from the heartbeat history and the collateral, first match wins:
//
//	invalid address              -> AddressInvalid
//	no heartbeat for 3h          -> Removed
//	no heartbeat for 2h          -> Expired
//	heartbeats span less than 10m -> PreEnabled
//	collateral spent             -> CollateralSpent (terminal)
//	otherwise                    -> Enabled
//
// Score gives every outpoint a deterministic pseudo-random value for a block
// anchor. Elections pick the highest score.
package swiftnode
