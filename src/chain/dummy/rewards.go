package dummy

import (
	"sync"

	"github.com/btcsuite/btcd/wire"
	"github.com/swiftcashproject/swiftnode/src/chain"
)

// Rewards pays a flat subsidy and gives swiftnodes a fixed percentage of it.
type Rewards struct {
	Subsidy int64
	Percent int64
}

// NewRewards returns a 10 coin subsidy with a 45% swiftnode share.
func NewRewards() *Rewards {
	return &Rewards{Subsidy: 10 * chain.Coin, Percent: 45}
}

// BlockValue implements chain.Rewards.
func (r *Rewards) BlockValue(height int64) int64 {
	return r.Subsidy
}

// NodePayment implements chain.Rewards.
func (r *Rewards) NodePayment(height int64, blockValue int64, nodeCount int) int64 {
	return blockValue * r.Percent / 100
}

// Budget is a chain.Budget with a configurable set of superblocks.
type Budget struct {
	sync.Mutex
	superblocks map[int64]bool
	valid       bool
}

// NewBudget returns a budget without superblocks that accepts every budget
// payment.
func NewBudget() *Budget {
	return &Budget{
		superblocks: make(map[int64]bool),
		valid:       true,
	}
}

// SetSuperblock marks height as a budget payment block.
func (b *Budget) SetSuperblock(height int64) {
	b.Lock()
	defer b.Unlock()
	b.superblocks[height] = true
}

// SetValid sets the answer of IsTransactionValid.
func (b *Budget) SetValid(v bool) {
	b.Lock()
	defer b.Unlock()
	b.valid = v
}

// IsBudgetPaymentBlock implements chain.Budget.
func (b *Budget) IsBudgetPaymentBlock(height int64) bool {
	b.Lock()
	defer b.Unlock()
	return b.superblocks[height]
}

// IsTransactionValid implements chain.Budget.
func (b *Budget) IsTransactionValid(tx *wire.MsgTx, height int64) bool {
	b.Lock()
	defer b.Unlock()
	return b.valid
}

// FillBlockPayee implements chain.Budget. The dummy budget pays nothing.
func (b *Budget) FillBlockPayee(tx *wire.MsgTx, fees int64) {}

// RequiredPaymentsString implements chain.Budget.
func (b *Budget) RequiredPaymentsString(height int64) string {
	return "Unknown"
}
