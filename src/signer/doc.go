// Package signer signs and verifies the text messages exchanged by swiftnodes.
//
// Messages are plain strings built by the caller (announcements, heartbeats and
// payment votes each define their own layout). The digest is the double SHA256
// of the var-string encoded MessageMagic followed by the var-string encoded
// message, and the signature is a compact recoverable secp256k1 signature.
// Verification recovers the public key and compares key ids, so any change of
// prefix, field order or encoding fails closed.
package signer
