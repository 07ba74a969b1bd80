package registry

import (
	"math/big"
	"sort"

	"github.com/btcsuite/btcd/wire"
	"github.com/swiftcashproject/swiftnode/src/common"
	"github.com/swiftcashproject/swiftnode/src/spork"
	"github.com/swiftcashproject/swiftnode/src/swiftnode"
)

// scheduleWindow is how many blocks ahead of the tip a payee counts as
// already scheduled.
const scheduleWindow = 8

// Ranked is a record with its 1-based rank at some height.
type Ranked struct {
	Rank   int
	Record *swiftnode.Record
}

type scored struct {
	op    wire.OutPoint
	score *big.Int
	rec   *swiftnode.Record
}

// byScore sorts high to low, ties broken by outpoint.
func byScore(s []scored) {
	sort.Slice(s, func(i, j int) bool {
		if c := s[i].score.Cmp(s[j].score); c != 0 {
			return c > 0
		}
		return swiftnode.CompareOutPoints(s[i].op, s[j].op) < 0
	})
}

// CurrentWinner returns the enabled node with the highest score at height.
func (r *Registry) CurrentWinner(height int64, minProto int32) (*swiftnode.Record, error) {
	anchor, err := swiftnode.AnchorHash(r.view, height)
	if err != nil {
		return nil, common.NewTransientError("anchor", err)
	}

	r.refresh(false)

	r.mtx.RLock()
	defer r.mtx.RUnlock()

	var best *scored
	for _, rec := range r.nodes {
		if rec.ProtocolVersion < minProto || !rec.IsEnabled() {
			continue
		}
		s := scored{op: rec.OutPoint, score: swiftnode.Score(rec.OutPoint, anchor), rec: rec}
		if best == nil || better(s, *best) {
			best = &s
		}
	}

	if best == nil {
		return nil, common.NewStoreErr("Registry", common.Empty, "winner")
	}
	return best.rec.Copy(), nil
}

func better(a, b scored) bool {
	if c := a.score.Cmp(b.score); c != 0 {
		return c > 0
	}
	return swiftnode.CompareOutPoints(a.op, b.op) < 0
}

type lastPaid struct {
	op      wire.OutPoint
	seconds int64
}

// NextInQueue selects the node to be paid at height. Candidates are enabled,
// payable, not already scheduled, deep enough and, when filterSigTime is
// set, announced at least one full payment cycle ago. If filtering leaves
// less than a third of the network it is dropped. Of the tenth of the network
// that waited longest for a payment, the one with the best score at
// height-100 is returned, with the number of candidates.
func (r *Registry) NextInQueue(height int64, filterSigTime bool) (*swiftnode.Record, int, error) {
	if r.schedule == nil {
		return nil, 0, common.NewStoreErr("Registry", common.Empty, "payment schedule")
	}

	anchor, err := swiftnode.AnchorHash(r.view, height-swiftnode.ScoreOffset)
	if err != nil {
		return nil, 0, common.NewTransientError("anchor", err)
	}

	nodeCount := r.CountEnabled(-1)
	minProto := r.MinPaymentsProtocol()
	now := r.env.Clock.Now()
	spacing := r.env.Params.TargetSpacing

	candidates := []*swiftnode.Record{}
	for _, rec := range r.All() {
		if !rec.IsEnabled() || rec.ProtocolVersion < minProto {
			continue
		}
		if r.schedule.IsScheduled(rec.Payee(), height) {
			continue
		}
		if filterSigTime && rec.SigTime+int64(nodeCount)*spacing > now {
			continue
		}
		age, err := r.InputAge(rec.OutPoint)
		if err != nil || age < int64(nodeCount) {
			continue
		}
		candidates = append(candidates, rec)
	}

	count := len(candidates)

	if filterSigTime && count < nodeCount/3 {
		return r.NextInQueue(height, false)
	}

	queue := make([]lastPaid, 0, count)
	for _, rec := range candidates {
		queue = append(queue, lastPaid{
			op:      rec.OutPoint,
			seconds: rec.SecondsSincePayment(now, r.schedule.LastPaidTime(rec.Payee())),
		})
	}
	sort.Slice(queue, func(i, j int) bool {
		if queue[i].seconds != queue[j].seconds {
			return queue[i].seconds > queue[j].seconds
		}
		return swiftnode.CompareOutPoints(queue[i].op, queue[j].op) > 0
	})

	tenth := nodeCount / 10
	if tenth < 1 {
		tenth = 1
	}

	var best *scored
	for i, lp := range queue {
		if i >= tenth {
			break
		}
		s := scored{op: lp.op, score: swiftnode.Score(lp.op, anchor)}
		if best == nil || better(s, *best) {
			best = &s
		}
	}

	if best == nil {
		return nil, count, common.NewStoreErr("Registry", common.Empty, "payment queue")
	}

	rec, err := r.Find(best.op)
	if err != nil {
		return nil, count, err
	}
	return rec, count, nil
}

// Rank returns the 1-based rank of op among the nodes scored at height, or
// -1 when op is not ranked or the block is unknown. While payment
// enforcement is active nodes younger than swiftnode.MinWinnerAge are left
// out. With onlyActive only enabled nodes are ranked.
func (r *Registry) Rank(op wire.OutPoint, height int64, minProto int32, onlyActive bool) int {
	list, err := r.scoredList(height, minProto, onlyActive, true)
	if err != nil {
		return -1
	}
	for i, s := range list {
		if s.op == op {
			return i + 1
		}
	}
	return -1
}

// ByRank returns the node at rank at height.
func (r *Registry) ByRank(rank int, height int64, minProto int32, onlyActive bool) (*swiftnode.Record, error) {
	list, err := r.scoredList(height, minProto, onlyActive, false)
	if err != nil {
		return nil, err
	}
	if rank < 1 || rank > len(list) {
		return nil, common.NewStoreErr("Registry", common.KeyNotFound, "rank")
	}
	return list[rank-1].rec.Copy(), nil
}

// Ranks ranks every node with at least minProto at height. Nodes that are
// not enabled are ranked after all enabled ones.
func (r *Registry) Ranks(height int64, minProto int32) []Ranked {
	anchor, err := swiftnode.AnchorHash(r.view, height)
	if err != nil {
		return nil
	}

	r.refresh(false)

	r.mtx.RLock()
	enabled := []scored{}
	others := []scored{}
	for _, rec := range r.nodes {
		if rec.ProtocolVersion < minProto {
			continue
		}
		s := scored{op: rec.OutPoint, rec: rec.Copy()}
		if rec.IsEnabled() {
			s.score = swiftnode.Score(rec.OutPoint, anchor)
			enabled = append(enabled, s)
		} else {
			s.score = new(big.Int)
			others = append(others, s)
		}
	}
	r.mtx.RUnlock()

	byScore(enabled)
	byScore(others)

	res := make([]Ranked, 0, len(enabled)+len(others))
	for _, s := range append(enabled, others...) {
		res = append(res, Ranked{Rank: len(res) + 1, Record: s.rec})
	}
	return res
}

func (r *Registry) scoredList(height int64, minProto int32, onlyActive bool, filterAge bool) ([]scored, error) {
	anchor, err := swiftnode.AnchorHash(r.view, height)
	if err != nil {
		return nil, common.NewTransientError("anchor", err)
	}

	enforce := filterAge && r.flags.IsActive(spork.SwiftnodePaymentEnforcement)
	now := r.env.Clock.Now()

	if onlyActive {
		r.refresh(false)
	}

	r.mtx.RLock()
	list := []scored{}
	for _, rec := range r.nodes {
		if rec.ProtocolVersion < minProto {
			continue
		}
		if enforce && now-rec.SigTime < swiftnode.MinWinnerAge {
			continue
		}
		if onlyActive && !rec.IsEnabled() {
			continue
		}
		list = append(list, scored{
			op:    rec.OutPoint,
			score: swiftnode.Score(rec.OutPoint, anchor),
			rec:   rec.Copy(),
		})
	}
	r.mtx.RUnlock()

	byScore(list)
	return list, nil
}
