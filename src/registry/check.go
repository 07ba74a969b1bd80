package registry

import (
	"github.com/btcsuite/btcd/wire"
	"github.com/swiftcashproject/swiftnode/src/swiftnode"
)

// pendingCheck is a record copied out of the registry to be checked with no
// lock held, with the fields a concurrent update would change.
type pendingCheck struct {
	rec         *swiftnode.Record
	lastChecked int64
	sigTime     int64
	pingTime    int64
	addr        string
}

func (p *pendingCheck) unchanged(rec *swiftnode.Record) bool {
	return rec.LastChecked == p.lastChecked &&
		rec.SigTime == p.sigTime &&
		rec.LastPing.SigTime == p.pingTime &&
		rec.Addr == p.addr
}

// refresh runs the lifecycle check of the given records, or of every record
// when none is given. Checks query the collateral oracle, which may block on
// the chain, so they run on copies outside the registry lock. A result is
// dropped when its record was removed or updated in the meantime; the next
// check picks it up.
func (r *Registry) refresh(force bool, ops ...wire.OutPoint) {
	now := r.env.Clock.Now()

	pending := []*pendingCheck{}
	collect := func(rec *swiftnode.Record) {
		if !rec.IsCheckDue(force, now) {
			return
		}
		pending = append(pending, &pendingCheck{
			rec:         rec.Copy(),
			lastChecked: rec.LastChecked,
			sigTime:     rec.SigTime,
			pingTime:    rec.LastPing.SigTime,
			addr:        rec.Addr,
		})
	}

	r.mtx.RLock()
	if len(ops) == 0 {
		for _, rec := range r.nodes {
			collect(rec)
		}
	} else {
		for _, op := range ops {
			if rec, ok := r.nodes[op]; ok {
				collect(rec)
			}
		}
	}
	r.mtx.RUnlock()

	if len(pending) == 0 {
		return
	}

	for _, p := range pending {
		if err := p.rec.Check(force, r.env); err != nil {
			r.logger.WithError(err).Debug("Check")
		}
	}

	r.mtx.Lock()
	defer r.mtx.Unlock()

	for _, p := range pending {
		rec, ok := r.nodes[p.rec.OutPoint]
		if !ok || !p.unchanged(rec) {
			continue
		}
		rec.State = p.rec.State
		rec.LastChecked = p.rec.LastChecked
	}
}
