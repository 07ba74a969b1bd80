package payments

import (
	"errors"

	"github.com/btcsuite/btcd/wire"
	"github.com/swiftcashproject/swiftnode/src/chain"
	"github.com/swiftcashproject/swiftnode/src/spork"
)

var (
	// ErrBudgetPayment is returned for superblocks that do not pay the budget.
	ErrBudgetPayment = errors.New("invalid budget payment")

	errNoProposal = errors.New("superblocks are paid by the budget")
)

// PayeeStrategy decides how the coinbase of a height pays its service
// output.
type PayeeStrategy interface {
	Name() string

	// Check validates the payee outputs of tx. A non-nil error rejects the
	// block; violations that are not enforced are logged and return nil.
	Check(tx *wire.MsgTx, height int64) error

	// Fill adds the payee outputs to a block template paying height.
	Fill(tx *wire.MsgTx, fees int64, height int64)

	// Propose returns the payee this node votes for at height.
	Propose(height int64) ([]byte, error)

	RequiredPayments(height int64) string
}

// Regular pays swiftnodes according to the vote tally.
type Regular struct {
	m *Manager
}

// Name implements PayeeStrategy.
func (r *Regular) Name() string {
	return "regular"
}

// Check implements PayeeStrategy.
func (r *Regular) Check(tx *wire.MsgTx, height int64) error {
	err := r.m.IsTransactionValid(tx, height)
	if err == nil {
		return nil
	}
	if r.m.flags.IsActive(spork.SwiftnodePaymentEnforcement) {
		return err
	}
	r.m.logger.WithError(err).Info("Invalid swiftnode payment, enforcement is disabled, accepting block")
	return nil
}

// Fill implements PayeeStrategy.
func (r *Regular) Fill(tx *wire.MsgTx, fees int64, height int64) {
	r.m.fillRegular(tx, height)
}

// Propose implements PayeeStrategy. It picks the next node in the payment
// queue.
func (r *Regular) Propose(height int64) ([]byte, error) {
	rec, _, err := r.m.registry.NextInQueue(height, true)
	if err != nil {
		return nil, err
	}
	return rec.Payee(), nil
}

// RequiredPayments implements PayeeStrategy.
func (r *Regular) RequiredPayments(height int64) string {
	return r.m.RequiredPaymentsString(height)
}

// Budget delegates superblocks to the budget subsystem. Superblocks that fail
// the budget check fall back to the regular tally unless budget enforcement
// is active.
type Budget struct {
	budget   chain.Budget
	flags    chain.FeatureFlags
	fallback PayeeStrategy
}

// Name implements PayeeStrategy.
func (b *Budget) Name() string {
	return "budget"
}

// Check implements PayeeStrategy.
func (b *Budget) Check(tx *wire.MsgTx, height int64) error {
	if b.budget.IsTransactionValid(tx, height) {
		return nil
	}
	if b.flags.IsActive(spork.BudgetEnforcement) {
		return ErrBudgetPayment
	}
	return b.fallback.Check(tx, height)
}

// Fill implements PayeeStrategy.
func (b *Budget) Fill(tx *wire.MsgTx, fees int64, height int64) {
	b.budget.FillBlockPayee(tx, fees)
}

// Propose implements PayeeStrategy. Swiftnodes do not vote on superblocks.
func (b *Budget) Propose(height int64) ([]byte, error) {
	return nil, errNoProposal
}

// RequiredPayments implements PayeeStrategy.
func (b *Budget) RequiredPayments(height int64) string {
	return b.budget.RequiredPaymentsString(height)
}

// Selector picks the strategy of each height from the superblock flag and
// the budget schedule.
type Selector struct {
	flags   chain.FeatureFlags
	budget  chain.Budget
	regular *Regular
	super   *Budget
}

func newSelector(m *Manager, flags chain.FeatureFlags, budget chain.Budget) *Selector {
	s := &Selector{
		flags:   flags,
		budget:  budget,
		regular: &Regular{m: m},
	}
	if budget != nil {
		s.super = &Budget{budget: budget, flags: flags, fallback: s.regular}
	}
	return s
}

// StrategyFor returns the strategy paying height.
func (s *Selector) StrategyFor(height int64) PayeeStrategy {
	if s.super != nil &&
		s.flags.IsActive(spork.EnableSuperblocks) &&
		s.budget.IsBudgetPaymentBlock(height) {
		return s.super
	}
	return s.regular
}
