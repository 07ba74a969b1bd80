// Package store persists the swiftnode registry and the payment votes
// between restarts.
//
// Each component is saved to its own snapshot file in the data directory:
//
//	swiftnodecache.dat     registry (nodes, seen messages, request books)
//	swiftnodepayments.dat  payment votes and per-height tallies
//
// A file is laid out as
//
//	var-string  magic message ("SwiftnodeCache" or "SwiftnodePayments")
//	[4]byte     network magic
//	var-bytes   payload, canonical JSON
//	[32]byte    double SHA-256 of everything above
//
// Reading reports one of the ReadResult codes. A loaded snapshot is pruned
// with the normal registry and payment clean-up before it is used, unless the
// read is a dry run. Dump refuses to overwrite a file it cannot recognise.
//
// BadgerStore optionally mirrors the same framed snapshots into a badger
// database, from which a node can bootstrap when the files are missing.
package store
