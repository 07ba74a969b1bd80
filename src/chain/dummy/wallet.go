package dummy

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/wire"
	"github.com/swiftcashproject/swiftnode/src/chain"
	"github.com/swiftcashproject/swiftnode/src/crypto"
	"github.com/swiftcashproject/swiftnode/src/crypto/keys"
)

// Wallet is an in-memory chain.Wallet whose outputs live in a UTXOSet.
type Wallet struct {
	sync.Mutex
	utxo    *UTXOSet
	locked  bool
	outs    []wire.OutPoint
	values  map[wire.OutPoint]int64
	keys    map[wire.OutPoint]*btcec.PrivateKey
	lockout map[wire.OutPoint]bool
}

// NewWallet ...
func NewWallet(utxo *UTXOSet) *Wallet {
	return &Wallet{
		utxo:    utxo,
		values:  make(map[wire.OutPoint]int64),
		keys:    make(map[wire.OutPoint]*btcec.PrivateKey),
		lockout: make(map[wire.OutPoint]bool),
	}
}

// AddOutput mines an output of value paying a fresh key at height and adds
// it to the wallet.
func (w *Wallet) AddOutput(value int64, height int64) (wire.OutPoint, *btcec.PrivateKey, error) {
	key, err := keys.GenerateKey()
	if err != nil {
		return wire.OutPoint{}, nil, err
	}
	script := crypto.PayToPubKeyHash(keys.FromPublicKey(key.PubKey()))
	op := w.utxo.AddOutput(script, value, height)

	w.Lock()
	defer w.Unlock()
	w.outs = append(w.outs, op)
	w.values[op] = value
	w.keys[op] = key
	return op, key, nil
}

// SetLocked toggles the wallet lock.
func (w *Wallet) SetLocked(v bool) {
	w.Lock()
	defer w.Unlock()
	w.locked = v
}

// IsLocked implements chain.Wallet.
func (w *Wallet) IsLocked() bool {
	w.Lock()
	defer w.Unlock()
	return w.locked
}

// Balance implements chain.Wallet. Spent outputs are not counted.
func (w *Wallet) Balance() int64 {
	w.Lock()
	defer w.Unlock()
	var total int64
	for _, op := range w.outs {
		if spent, _ := w.utxo.IsCollateralSpent(op); spent {
			continue
		}
		total += w.values[op]
	}
	return total
}

// Outputs implements chain.Wallet.
func (w *Wallet) Outputs() ([]chain.Output, error) {
	w.Lock()
	defer w.Unlock()
	res := []chain.Output{}
	for _, op := range w.outs {
		spent, err := w.utxo.IsCollateralSpent(op)
		if err != nil {
			return nil, err
		}
		if spent {
			continue
		}
		conf, err := w.utxo.Confirmations(op)
		if err != nil {
			return nil, err
		}
		res = append(res, chain.Output{
			OutPoint:      op,
			Value:         w.values[op],
			Confirmations: conf,
			Locked:        w.lockout[op],
		})
	}
	return res, nil
}

// KeyFor implements chain.Wallet.
func (w *Wallet) KeyFor(op wire.OutPoint) (*btcec.PrivateKey, error) {
	w.Lock()
	defer w.Unlock()
	key, ok := w.keys[op]
	if !ok {
		return nil, fmt.Errorf("no key for %v", op)
	}
	return key, nil
}

// LockCoin implements chain.Wallet.
func (w *Wallet) LockCoin(op wire.OutPoint) {
	w.Lock()
	defer w.Unlock()
	w.lockout[op] = true
}

// UnlockCoin implements chain.Wallet.
func (w *Wallet) UnlockCoin(op wire.OutPoint) {
	w.Lock()
	defer w.Unlock()
	delete(w.lockout, op)
}

// IsCoinLocked reports whether LockCoin was called for op.
func (w *Wallet) IsCoinLocked(op wire.OutPoint) bool {
	w.Lock()
	defer w.Unlock()
	return w.lockout[op]
}
