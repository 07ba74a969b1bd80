// Package payments implements the payment consensus of the swiftnode tier.
//
// Swiftnodes ranked in the top ten at a height vote for the node that should
// be paid in that block. Votes are tallied per height; once a payee gathers
// SignaturesRequired votes, blocks that do not pay it at least the required
// amount are invalid while payment enforcement is active. Superblocks are
// delegated to the external budget subsystem through a PayeeStrategy chosen
// per height.
package payments
