package swiftnode

import (
	"bytes"
	"math/big"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/swiftcashproject/swiftnode/src/chain"
	"github.com/swiftcashproject/swiftnode/src/crypto"
)

// ScoreOffset is how far behind the target height the score anchor is taken.
const ScoreOffset = 100

// AnchorHash returns the anchor of height: the hash of its parent block. A
// height of 0 designates the tip.
func AnchorHash(view chain.ChainView, height int64) (chainhash.Hash, error) {
	tip, err := view.TipHeight()
	if err != nil {
		return chainhash.Hash{}, err
	}
	if height == 0 {
		return view.BlockHash(tip)
	}
	if tip == 0 || height > tip+1 || height < 1 {
		return chainhash.Hash{}, chain.ErrUnknownBlock
	}
	return view.BlockHash(height - 1)
}

// Score is the election score of op for anchor: the distance between the hash
// of the anchor and the hash of the anchor followed by the serialized
// outpoint, both read as 256-bit integers.
func Score(op wire.OutPoint, anchor chainhash.Hash) *big.Int {
	h2 := crypto.DoubleSHA256(anchor[:])

	buf := make([]byte, 0, chainhash.HashSize+36)
	buf = append(buf, anchor[:]...)
	buf = append(buf, SerializeOutPoint(op)...)
	h3 := crypto.DoubleSHA256(buf)

	d := new(big.Int).Sub(blockchain.HashToBig(&h3), blockchain.HashToBig(&h2))
	return d.Abs(d)
}

// CompareOutPoints orders outpoints by hash bytes then index. It breaks score
// ties so that rankings are total orders.
func CompareOutPoints(a, b wire.OutPoint) int {
	if c := bytes.Compare(a.Hash[:], b.Hash[:]); c != 0 {
		return c
	}
	switch {
	case a.Index < b.Index:
		return -1
	case a.Index > b.Index:
		return 1
	}
	return 0
}
