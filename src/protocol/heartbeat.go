package protocol

import (
	"github.com/sirupsen/logrus"
	"github.com/swiftcashproject/swiftnode/src/common"
	"github.com/swiftcashproject/swiftnode/src/swiftnode"
)

// ProcessHeartbeat handles a heartbeat received from peer. Heartbeats of
// unknown nodes trigger a request for the node's entry. The returned error
// carries the misbehaviour score of the peer, if any.
func (p *Protocol) ProcessHeartbeat(peer string, hb swiftnode.Heartbeat) error {
	if !p.registry.AddSeenHeartbeat(hb) {
		return nil
	}

	err := p.CheckHeartbeat(hb, true)
	if err == nil {
		return nil
	}

	// retried when it comes again
	if common.IsTransient(err) {
		p.registry.ForgetSeenHeartbeat(hb.Hash())
		return err
	}

	if common.DoS(err) > 0 || err != ErrUnknownNode {
		return err
	}

	if p.registry.AskForNode(peer, hb.OutPoint) && p.requester != nil {
		p.requester.RequestEntry(peer, hb.OutPoint)
	}

	return err
}

// CheckHeartbeat validates hb against the record of its node, then applies
// it to the record and relays it.
func (p *Protocol) CheckHeartbeat(hb swiftnode.Heartbeat, requireEnabled bool) error {
	if err := p.checkSigTime(&hb); err != nil {
		return err
	}

	rec, err := p.registry.Find(hb.OutPoint)
	if err != nil {
		return ErrUnknownNode
	}

	if rec.ProtocolVersion < p.registry.MinPaymentsProtocol() {
		return common.NewValidationError(0, "swiftnode %s protocol %d too old", hb.OutPoint, rec.ProtocolVersion)
	}

	if requireEnabled && !rec.IsEnabled() && !rec.IsPreEnabled() {
		return common.NewValidationError(0, "swiftnode %s is %s", hb.OutPoint, rec.State)
	}

	// the new heartbeat must come late enough after the previous one
	if rec.IsPingedWithin(swiftnode.MinPingSeconds-60, hb.SigTime) {
		return common.NewValidationError(0, "heartbeat %s arrived too early", hb.OutPoint)
	}

	if err := hb.Verify(rec.OperatingPubKey); err != nil {
		return common.NewValidationError(33, "bad heartbeat signature for %s: %v", hb.OutPoint, err)
	}

	anchorHeight, err := p.chain.BlockHeight(hb.BlockHash)
	if err != nil {
		return common.NewValidationError(0, "heartbeat %s anchored on unknown block %s", hb.OutPoint, hb.BlockHash)
	}
	tip, err := p.chain.TipHeight()
	if err != nil {
		return common.NewTransientError("tip", err)
	}
	if anchorHeight < tip-MaxAnchorAge {
		return common.NewValidationError(0, "heartbeat %s anchored %d blocks behind the tip", hb.OutPoint, tip-anchorHeight)
	}

	updated, err := p.registry.UpdateHeartbeat(hb)
	if err != nil {
		return err
	}
	p.registry.AddSeenHeartbeat(hb)

	if !updated.IsEnabled() {
		return common.NewValidationError(0, "swiftnode %s is %s", hb.OutPoint, updated.State)
	}

	p.logger.WithFields(logrus.Fields{
		"outpoint": hb.OutPoint.String(),
		"sig_time": hb.SigTime,
	}).Debug("Heartbeat accepted")

	if p.relay != nil {
		p.relay.RelayHeartbeat(hb)
	}

	return nil
}

// checkEmbeddedHeartbeat checks the heartbeat carried by an announcement: its
// timestamp, and its signature by the announced operating key.
func (p *Protocol) checkEmbeddedHeartbeat(a *swiftnode.Announcement) error {
	if a.LastPing.IsZero() {
		return common.NewValidationError(0, "announcement %s has no heartbeat", a.OutPoint)
	}
	if a.LastPing.OutPoint != a.OutPoint {
		return common.NewValidationError(100, "announcement %s carries the heartbeat of %s", a.OutPoint, a.LastPing.OutPoint)
	}
	if err := p.checkSigTime(&a.LastPing); err != nil {
		return err
	}
	if err := a.LastPing.Verify(a.OperatingPubKey); err != nil {
		return common.NewValidationError(33, "bad heartbeat signature for %s: %v", a.OutPoint, err)
	}
	return nil
}

func (p *Protocol) checkSigTime(hb *swiftnode.Heartbeat) error {
	now := p.clock.Now()

	if hb.SigTime > now+MaxClockDrift {
		return common.NewValidationError(1, "heartbeat %s too far in the future", hb.OutPoint)
	}
	if hb.SigTime <= now-MaxClockDrift {
		return common.NewValidationError(1, "heartbeat %s too far in the past", hb.OutPoint)
	}
	return nil
}
