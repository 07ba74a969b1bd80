// Package registry holds the swiftnode list of a peer.
//
// The Registry maps collateral outpoints to records and keeps the gossip
// bookkeeping that goes with them: which announcements and heartbeats were
// already seen, which peers asked us for the list, and which peers and
// entries we asked for. It also answers the election queries that rank nodes
// by score.
//
// The identity map, the request bookkeeping and the seen caches each have
// their own lock. Collaborators called while a lock is held (the UTXO oracle
// through Record.Check) must not block; they return chain.ErrTryAgain
// instead, and the record keeps its state until the next check.
package registry
