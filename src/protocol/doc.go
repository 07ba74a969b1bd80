// Package protocol validates the announcements and heartbeats gossiped by
// swiftnodes and applies them to the registry.
//
// Every check that fails returns an error. Errors built with
// common.NewValidationError carry the misbehaviour score to charge the peer
// that sent the message; a score of 0 means the failure may be honest (an
// anchor block we do not know yet, a heartbeat that arrived early).
// Collateral failures return a common.CollateralError and forget the
// announcement so that it can be processed again once the collateral
// matures.
package protocol
