package protocol

import (
	"bytes"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/swiftcashproject/swiftnode/src/chain"
	"github.com/swiftcashproject/swiftnode/src/common"
	"github.com/swiftcashproject/swiftnode/src/crypto"
	"github.com/swiftcashproject/swiftnode/src/crypto/keys"
	"github.com/swiftcashproject/swiftnode/src/signer"
	"github.com/swiftcashproject/swiftnode/src/swiftnode"
)

// ProcessAnnouncement handles an announcement received from peer. The
// returned error carries the misbehaviour score of the peer, if any.
func (p *Protocol) ProcessAnnouncement(peer string, a swiftnode.Announcement) error {
	hash := a.Hash()

	if !p.registry.AddSeenAnnouncement(a) {
		p.addedListItem(hash)
		return nil
	}

	if err := p.CheckAnnouncement(&a); err != nil {
		return err
	}

	ok, err := signer.IsVinAssociatedWithPubkey(p.utxo, a.OutPoint, a.CollateralPubKey, p.params.Collateral)
	if errors.Is(err, chain.ErrTryAgain) {
		p.registry.ForgetSeenAnnouncement(hash)
		return common.NewTransientError("collateral lookup", err)
	}
	if err != nil || !ok {
		return common.NewValidationError(33, "collateral %s is not associated with the announced key", a.OutPoint)
	}

	if err := p.CheckInputsAndAdd(&a); err != nil {
		return err
	}

	p.addedListItem(hash)
	return nil
}

// CheckAnnouncement runs the stateless checks of an announcement, then
// applies it to an existing record when it supersedes it. A nil error with no
// record for the identity means the announcement is a candidate for
// CheckInputsAndAdd.
func (p *Protocol) CheckAnnouncement(a *swiftnode.Announcement) error {
	now := p.clock.Now()

	if a.SigTime > now+MaxClockDrift {
		return common.NewValidationError(1, "announcement %s too far in the future", a.OutPoint)
	}

	if !swiftnode.IsValidNetAddr(a.Addr, p.params) {
		return common.NewValidationError(0, "announcement %s has invalid address %s", a.OutPoint, a.Addr)
	}

	if err := p.checkEmbeddedHeartbeat(a); err != nil {
		return err
	}

	if a.ProtocolVersion < p.registry.MinPaymentsProtocol() {
		return common.NewValidationError(0, "announcement %s protocol %d too old", a.OutPoint, a.ProtocolVersion)
	}

	if err := checkKeyScript(a.CollateralPubKey); err != nil {
		return common.NewValidationError(100, "announcement %s collateral key: %v", a.OutPoint, err)
	}
	if err := checkKeyScript(a.OperatingPubKey); err != nil {
		return common.NewValidationError(100, "announcement %s operating key: %v", a.OutPoint, err)
	}

	if err := a.Verify(); err != nil {
		return common.NewValidationError(100, "bad announcement signature for %s: %v", a.OutPoint, err)
	}

	port := swiftnode.Port(a.Addr)
	if p.params.IsMainNet() {
		if port != p.params.DefaultPort {
			return common.NewValidationError(0, "announcement %s uses port %d", a.OutPoint, port)
		}
	} else if port == chain.MainNetParams.DefaultPort {
		return common.NewValidationError(0, "announcement %s uses the mainnet port", a.OutPoint)
	}

	existing, err := p.registry.Find(a.OutPoint)
	if err != nil {
		return nil
	}

	if existing.SigTime >= a.SigTime {
		return common.NewValidationError(0, "announcement %s at %d is not newer than %d", a.OutPoint, a.SigTime, existing.SigTime)
	}

	if !existing.IsEnabled() {
		return nil
	}

	if bytes.Equal(existing.CollateralPubKey, a.CollateralPubKey) &&
		!existing.IsBroadcastedWithin(swiftnode.MinBroadcastSeconds, now) {

		p.supersede(a)
		p.addedListItem(a.Hash())
	}

	return nil
}

// supersede applies a newer announcement to its record. The embedded
// heartbeat is applied only if it passes the full heartbeat check.
func (p *Protocol) supersede(a *swiftnode.Announcement) {
	_, updated, err := p.registry.UpdateFromAnnouncement(a, false)
	if err != nil || !updated {
		return
	}

	if err := p.CheckHeartbeat(a.LastPing, false); err != nil {
		p.logger.WithError(err).Debug("Heartbeat of superseding announcement")
	}

	rec, err := p.registry.Check(a.OutPoint, false)
	if err != nil {
		return
	}

	p.logger.WithFields(logrus.Fields{
		"outpoint": a.OutPoint.String(),
		"sig_time": a.SigTime,
		"state":    rec.State.String(),
	}).Debug("Announcement superseded record")

	if rec.IsEnabled() && p.relay != nil {
		p.relay.RelayAnnouncement(*a)
	}
}

// CheckInputsAndAdd verifies the collateral of a new announcement and adds the
// node. Collateral failures forget the announcement so that it can be
// processed again later.
func (p *Protocol) CheckInputsAndAdd(a *swiftnode.Announcement) error {
	hash := a.Hash()

	if p.isLocal(a) {
		return nil
	}

	if err := p.checkEmbeddedHeartbeat(a); err != nil {
		return err
	}

	if existing, err := p.registry.Find(a.OutPoint); err == nil {
		if existing.IsEnabled() {
			return nil
		}
		p.registry.Remove(a.OutPoint)
	}

	spent, err := p.utxo.IsCollateralSpent(a.OutPoint)
	if err != nil {
		p.registry.ForgetSeenAnnouncement(hash)
		return common.NewTransientError("collateral check", err)
	}
	if spent {
		p.registry.ForgetSeenAnnouncement(hash)
		return common.NewCollateralError(0, "collateral %s is spent", a.OutPoint)
	}

	confs, err := p.utxo.Confirmations(a.OutPoint)
	if err != nil {
		p.registry.ForgetSeenAnnouncement(hash)
		return common.NewTransientError("collateral depth", err)
	}
	if confs < swiftnode.MinConfirmations {
		p.registry.ForgetSeenAnnouncement(hash)
		return common.NewCollateralError(0, "collateral %s has %d confirmations, %d required",
			a.OutPoint, confs, swiftnode.MinConfirmations)
	}

	tip, err := p.chain.TipHeight()
	if err != nil {
		p.registry.ForgetSeenAnnouncement(hash)
		return common.NewTransientError("tip", err)
	}

	// sigTime may not predate the block that gave the collateral its
	// required depth
	txHeight := tip - confs + 1
	confTime, err := p.chain.BlockTime(txHeight + swiftnode.MinConfirmations - 1)
	if err != nil {
		p.registry.ForgetSeenAnnouncement(hash)
		return common.NewTransientError("block time", err)
	}
	if confTime > a.SigTime {
		return common.NewValidationError(0, "announcement %s signed at %d before its collateral matured at %d",
			a.OutPoint, a.SigTime, confTime)
	}

	if err := p.registry.Add(swiftnode.NewRecord(a)); err != nil {
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"outpoint": a.OutPoint.String(),
		"addr":     a.Addr,
		"size":     p.registry.Size(),
	}).Info("Swiftnode added")

	if p.local != nil &&
		bytes.Equal(p.local.OperatingPubKey(), a.OperatingPubKey) &&
		a.ProtocolVersion == chain.ProtocolVersion {
		p.local.EnableHotCold(a.OutPoint, a.Addr)
	}

	if p.relay != nil && (p.params.RegTest || !swiftnode.IsPrivateAddr(a.Addr)) {
		p.relay.RelayAnnouncement(*a)
	}

	return nil
}

// isLocal reports whether a announces the node run by this peer.
func (p *Protocol) isLocal(a *swiftnode.Announcement) bool {
	if p.local == nil {
		return false
	}
	op, ok := p.local.Identity()
	return ok && op == a.OutPoint && bytes.Equal(p.local.OperatingPubKey(), a.OperatingPubKey)
}

func checkKeyScript(pub []byte) error {
	if _, err := keys.ParsePublicKey(pub); err != nil {
		return err
	}
	if !crypto.IsPayToPubKeyHash(crypto.PayToPubKeyHash(pub)) {
		return errScriptSize
	}
	return nil
}
