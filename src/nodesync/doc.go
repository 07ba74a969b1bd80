// Package nodesync drives the bootstrap of the swiftnode layer.
//
// A fresh daemon knows nothing about the swiftnodes of the network. The Syncer
// walks through a fixed sequence of stages, asking its peers for one kind of
// data at a time:
//
//	Initial -> Sporks -> List -> PaymentWinners -> Budget -> Finished
//
// Each stage is bounded by attempts and time. A stage is left once items stop
// arriving for a while after enough peers were asked. A stage that never sees
// a single item either fails the sync, when payments are enforced, or is
// skipped. A failed sync is retried after a cooldown.
//
// The other components report the items they accept through the Added* hooks,
// and ask the Syncer whether the chain and the swiftnode layer are synced
// before trusting what they see.
package nodesync
