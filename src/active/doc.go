// Package active runs the swiftnode operated by this peer.
//
// The Controller owns the local node's status. ManageStatus is called
// periodically once the chain is synced. It either picks up a node that a
// remote (cold) wallet started for our operating key, or selects a collateral
// output from the local wallet, signs an announcement and relays it. Once
// Started, every call sends a heartbeat, unless the last one is too recent.
//
// Status transitions:
//
//	Initial -> SyncInProcess (chain not synced) -> Initial
//	Initial -> Started (hot/cold: registry holds our operating key)
//	Initial -> NotCapable | InputTooNew | Started (local collateral)
//	Started -> NotCapable (our record left the registry)
package active
