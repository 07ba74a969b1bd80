package nodesync

import (
	"github.com/sirupsen/logrus"
	"github.com/swiftcashproject/swiftnode/src/peers"
	"github.com/swiftcashproject/swiftnode/src/spork"
)

// Process runs one tick of the sync. It is called once per second and acts
// every TickInterval calls. When the Budget stage completes, the activator is
// run after the Syncer is unlocked.
func (s *Syncer) Process() {
	s.mtx.Lock()
	activate := s.process()
	activator := s.activator
	s.mtx.Unlock()

	if activate && activator != nil {
		activator.ManageStatus()
	}
}

func (s *Syncer) process() bool {
	tick := s.tick
	s.tick++
	if tick%TickInterval != 0 {
		return false
	}

	now := s.clock.Now()

	if s.stage == Finished {
		if now-s.lastCheck <= ResyncCheckSeconds {
			return false
		}
		s.lastCheck = now
		// resync if all swiftnodes were lost while asleep or the first sync
		// brought none
		if s.registry.CountEnabled(-1) != 0 {
			return false
		}
		s.logger.Info("No enabled swiftnodes, restarting sync")
		s.reset(now)
	}

	if s.stage == Failed {
		if s.lastFailure+FailureCooldown < now {
			s.logger.Info("Retrying sync")
			s.reset(now)
		}
		return false
	}

	s.logger.WithFields(logrus.Fields{
		"tick":  tick,
		"stage": int(s.stage),
	}).Debug("Process")

	if s.stage == Initial {
		s.nextStage(now)
	}

	// sporks are fetched while the chain syncs, the rest waits for it
	if !s.params.RegTest && s.stage > Sporks && !s.isBlockchainSynced(now) {
		return false
	}

	list := s.peers.List()

	if s.params.RegTest {
		if len(list) > 0 {
			s.processRegTest(list[0])
		}
		return false
	}

	switch s.stage {
	case Sporks:
		s.processSporks(list, now)
	case List:
		s.processAsset(list, now, spork.MinPaymentsProtocol(s.flags), s.lastList, true, requestList, func(peer string) {
			if s.registry.RequestList(peer) {
				s.requester.RequestList(peer)
			}
		})
	case PaymentWinners:
		s.processAsset(list, now, spork.MinPaymentsProtocol(s.flags), s.lastWinner, true, requestWinners, func(peer string) {
			s.requester.RequestWinners(peer, s.registry.CountEnabled(-1))
		})
	case Budget:
		// budget items are received by the budget collaborator, so this stage
		// never sees progress and ends as an empty one
		return s.processAsset(list, now, spork.ActiveProtocol(s.flags), 0, false, requestBudget, s.requester.RequestBudget)
	}
	return false
}

// processRegTest runs the fixed request sequence used on regtest, where a
// single peer is enough.
func (s *Syncer) processRegTest(p *peers.Peer) {
	switch {
	case s.attempt <= 2:
		s.requester.RequestSporks(p.NetAddr)
	case s.attempt < 4:
		if s.registry.RequestList(p.NetAddr) {
			s.requester.RequestList(p.NetAddr)
		}
	case s.attempt < 6:
		s.requester.RequestWinners(p.NetAddr, s.registry.CountEnabled(-1))
		s.requester.RequestBudget(p.NetAddr)
	default:
		s.stage = Finished
	}
	s.attempt++
}

// processSporks asks the first peer not asked yet for the feature flags. The
// stage is left after the third peer, or after 5×Timeout when there are not
// enough peers.
func (s *Syncer) processSporks(list []*peers.Peer, now int64) {
	if now-s.assetSyncStarted > 5*Timeout && s.attempt > 0 {
		s.nextStage(now)
		return
	}

	for _, p := range list {
		if s.peers.HasFulfilledRequest(p.NetAddr, requestSporks) {
			continue
		}
		s.peers.FulfilledRequest(p.NetAddr, requestSporks)

		s.requester.RequestSporks(p.NetAddr)
		if s.attempt >= 2 {
			s.nextStage(now)
			return
		}
		s.attempt++
		return
	}
}

// processAsset runs one step of a stage that asks peers for items. The stage
// is left when progress was seen but nothing new arrived for 2×Timeout, once
// Threshold peers were asked or no peer is left to ask. Without any progress
// after 3×Threshold attempts or 5×Timeout, a failable stage fails while
// payments are enforced; otherwise it is skipped. Else the first eligible
// peer not asked yet is sent a request. It returns true when the stage was
// left.
func (s *Syncer) processAsset(
	list []*peers.Peer,
	now int64,
	minProto int32,
	last int64,
	failable bool,
	name string,
	request func(peer string),
) bool {

	var next *peers.Peer
	for _, p := range list {
		if p.Version < minProto || s.peers.HasFulfilledRequest(p.NetAddr, name) {
			continue
		}
		next = p
		break
	}

	if last > 0 && last < now-2*Timeout && (s.attempt >= Threshold || next == nil) {
		s.nextStage(now)
		return true
	}

	if last == 0 && (s.attempt >= 3*Threshold || now-s.assetSyncStarted > 5*Timeout) {
		if failable && s.flags.IsActive(spork.SwiftnodePaymentEnforcement) {
			s.fail(now)
			return false
		}
		s.logger.WithField("stage", int(s.stage)).Info("Nothing to sync, skipping stage")
		s.nextStage(now)
		return true
	}

	if next == nil || s.attempt >= 3*Threshold {
		return false
	}

	s.peers.FulfilledRequest(next.NetAddr, name)
	request(next.NetAddr)
	s.attempt++
	return false
}

func (s *Syncer) nextStage(now int64) {
	if s.stage == Initial || s.stage == Failed {
		s.peers.ClearFulfilledRequests(requestSporks, requestList, requestWinners, requestBudget)
	}

	s.stage = s.stage.next()
	s.attempt = 0
	s.assetSyncStarted = now

	if s.stage == Finished {
		s.lastCheck = now
		s.logger.Info("Sync has finished")
	} else {
		s.logger.WithField("stage", int(s.stage)).Debug("Next stage")
	}
}

func (s *Syncer) fail(now int64) {
	s.logger.WithField("stage", int(s.stage)).Error("Sync has failed, will retry later")
	s.stage = Failed
	s.attempt = 0
	s.lastFailure = now
	s.failures++
}
