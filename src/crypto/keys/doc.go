// Package keys implements the key handling used by swiftnodes.
//
// A swiftnode involves two key-pairs. The collateral key owns the output that
// locks the collateral; it signs the announcement once, usually from a cold
// wallet. The operating key lives on the running node; it signs heartbeats and
// payment votes. Both are secp256k1 keys, the curve used by the coin itself, so
// wallet keys can be used directly.
//
// Signatures are 65-byte compact recoverable signatures: the public key can be
// recovered from the signature and the message hash, which lets a verifier
// compare the recovered key with the key it expects.
package keys
