// Package config defines the configuration for a swiftnode daemon.
//
// The daemon uses the Config object defined in this package to store and
// forward configuration options. On top of these options, it relies on a data
// directory, defined by Config.DataDir, where it expects to find a few
// additional files:
//
//  priv_key              // (optional) hex operating key of the local swiftnode (cf. swiftnoded keygen).
//  peers.json            // a JSON file listing the peers to connect to.
//  swiftnode.conf        // (optional) swiftnodes whose collateral is held by this wallet.
//  swiftnoded.toml       // (optional) values for any of the command line flags.
//
// Snapshot files (swiftnodecache.dat, swiftnodepayments.dat) and the optional
// badger database are written in the same directory.
package config
