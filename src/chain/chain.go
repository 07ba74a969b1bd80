package chain

import (
	"errors"
	"time"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

var (
	// ErrTryAgain is returned by collaborators that could not acquire the
	// resource they guard without blocking. Callers skip the current tick and
	// retry on the next one.
	ErrTryAgain = errors.New("resource busy, try again")

	// ErrNoTip is returned when the chain has no tip yet.
	ErrNoTip = errors.New("chain tip unavailable")

	// ErrUnknownBlock is returned when a height or hash is not part of the
	// active chain.
	ErrUnknownBlock = errors.New("unknown block")

	// ErrUnknownTx is returned when a transaction cannot be found.
	ErrUnknownTx = errors.New("unknown transaction")
)

// TimeSource returns the network-adjusted time in unix seconds.
type TimeSource interface {
	Now() int64
}

// SystemClock is a TimeSource backed by the local wall clock.
type SystemClock struct{}

// Now implements TimeSource.
func (SystemClock) Now() int64 {
	return time.Now().Unix()
}

// ChainView exposes the read-only parts of the active chain that the swiftnode
// layer needs.
type ChainView interface {
	TipHeight() (int64, error)
	BlockHash(height int64) (chainhash.Hash, error)
	BlockTime(height int64) (int64, error)
	BlockHeight(hash chainhash.Hash) (int64, error)
	IsImporting() bool
}

// UTXOOracle answers questions about collateral outputs.
type UTXOOracle interface {
	// IsCollateralSpent reports whether the outpoint is spent on chain or in
	// the mempool.
	IsCollateralSpent(op wire.OutPoint) (bool, error)

	// Confirmations returns the depth of the block containing the outpoint's
	// transaction, 0 for mempool transactions.
	Confirmations(op wire.OutPoint) (int64, error)

	// TxOutputs returns the outputs of a confirmed transaction.
	TxOutputs(txid chainhash.Hash) ([]*wire.TxOut, error)
}

// Output is a spendable wallet output.
type Output struct {
	OutPoint      wire.OutPoint
	Value         int64
	Confirmations int64
	Locked        bool
}

// Wallet is the subset of the local wallet used to activate a swiftnode.
type Wallet interface {
	IsLocked() bool
	Balance() int64
	Outputs() ([]Output, error)
	KeyFor(op wire.OutPoint) (*btcec.PrivateKey, error)
	LockCoin(op wire.OutPoint)
	UnlockCoin(op wire.OutPoint)
}

// FeatureFlags exposes the network feature flags by id. A flag is active when
// its value is a timestamp in the past.
type FeatureFlags interface {
	IsActive(id int) bool
	Value(id int) int64
}

// Rewards computes block subsidies.
type Rewards interface {
	BlockValue(height int64) int64
	NodePayment(height int64, blockValue int64, nodeCount int) int64
}

// Budget is the external budget subsystem. It only decides on superblocks.
type Budget interface {
	IsBudgetPaymentBlock(height int64) bool
	IsTransactionValid(tx *wire.MsgTx, height int64) bool
	FillBlockPayee(tx *wire.MsgTx, fees int64)
	RequiredPaymentsString(height int64) string
}
