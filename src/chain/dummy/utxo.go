package dummy

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/swiftcashproject/swiftnode/src/chain"
)

type txEntry struct {
	outs   []*wire.TxOut
	height int64
}

// UTXOSet is an in-memory UTXOOracle tied to a Chain for confirmation counts.
type UTXOSet struct {
	sync.Mutex
	chain *Chain
	txs   map[chainhash.Hash]*txEntry
	spent map[wire.OutPoint]bool
	busy  bool
	nonce uint32
}

// NewUTXOSet ...
func NewUTXOSet(c *Chain) *UTXOSet {
	return &UTXOSet{
		chain: c,
		txs:   make(map[chainhash.Hash]*txEntry),
		spent: make(map[wire.OutPoint]bool),
	}
}

// AddTx records tx as mined at height and returns its hash. A height of -1
// leaves it in the mempool.
func (u *UTXOSet) AddTx(tx *wire.MsgTx, height int64) chainhash.Hash {
	u.Lock()
	defer u.Unlock()
	hash := tx.TxHash()
	u.txs[hash] = &txEntry{outs: tx.TxOut, height: height}
	return hash
}

// AddOutput creates a one-output transaction paying value to pkScript, mined
// at height, and returns its outpoint.
func (u *UTXOSet) AddOutput(pkScript []byte, value int64, height int64) wire.OutPoint {
	u.Lock()
	u.nonce++
	nonce := u.nonce
	u.Unlock()

	tx := wire.NewMsgTx(wire.TxVersion)
	// the nonce keeps otherwise identical transactions apart
	tx.LockTime = nonce
	tx.AddTxOut(wire.NewTxOut(value, pkScript))

	hash := u.AddTx(tx, height)
	return wire.OutPoint{Hash: hash, Index: 0}
}

// Spend marks op as spent.
func (u *UTXOSet) Spend(op wire.OutPoint) {
	u.Lock()
	defer u.Unlock()
	u.spent[op] = true
}

// SetBusy makes IsCollateralSpent fail with chain.ErrTryAgain.
func (u *UTXOSet) SetBusy(v bool) {
	u.Lock()
	defer u.Unlock()
	u.busy = v
}

// SetHeight moves the transaction of op to another block.
func (u *UTXOSet) SetHeight(op wire.OutPoint, height int64) {
	u.Lock()
	defer u.Unlock()
	if e, ok := u.txs[op.Hash]; ok {
		e.height = height
	}
}

// IsCollateralSpent implements chain.UTXOOracle. Unknown outputs count as
// spent.
func (u *UTXOSet) IsCollateralSpent(op wire.OutPoint) (bool, error) {
	u.Lock()
	defer u.Unlock()
	if u.busy {
		return false, chain.ErrTryAgain
	}
	e, ok := u.txs[op.Hash]
	if !ok || int(op.Index) >= len(e.outs) {
		return true, nil
	}
	return u.spent[op], nil
}

// Confirmations implements chain.UTXOOracle.
func (u *UTXOSet) Confirmations(op wire.OutPoint) (int64, error) {
	u.Lock()
	e, ok := u.txs[op.Hash]
	u.Unlock()
	if !ok {
		return 0, chain.ErrUnknownTx
	}
	if e.height < 0 {
		return 0, nil
	}
	tip, err := u.chain.TipHeight()
	if err != nil {
		return 0, err
	}
	if e.height > tip {
		return 0, nil
	}
	return tip - e.height + 1, nil
}

// TxOutputs implements chain.UTXOOracle.
func (u *UTXOSet) TxOutputs(txid chainhash.Hash) ([]*wire.TxOut, error) {
	u.Lock()
	defer u.Unlock()
	e, ok := u.txs[txid]
	if !ok {
		return nil, chain.ErrUnknownTx
	}
	return e.outs, nil
}
