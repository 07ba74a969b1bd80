package dummy

import (
	"encoding/binary"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/swiftcashproject/swiftnode/src/chain"
)

// Clock is a settable TimeSource.
type Clock struct {
	sync.Mutex
	now int64
}

// NewClock returns a Clock set to now.
func NewClock(now int64) *Clock {
	return &Clock{now: now}
}

// Now implements chain.TimeSource.
func (c *Clock) Now() int64 {
	c.Lock()
	defer c.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *Clock) Set(t int64) {
	c.Lock()
	defer c.Unlock()
	c.now = t
}

// Advance moves the clock forward by secs.
func (c *Clock) Advance(secs int64) {
	c.Lock()
	defer c.Unlock()
	c.now += secs
}

// Chain is an in-memory ChainView. Block hashes are derived from the height
// so that two chains built the same way agree on them.
type Chain struct {
	sync.RWMutex
	hashes    []chainhash.Hash
	times     []int64
	byHash    map[chainhash.Hash]int64
	importing bool
	busy      bool
}

// NewChain returns a chain with blocks 0..tip, block h being timestamped
// genesisTime + h*spacing.
func NewChain(tip int64, genesisTime int64, spacing int64) *Chain {
	c := &Chain{
		byHash: make(map[chainhash.Hash]int64),
	}
	for h := int64(0); h <= tip; h++ {
		c.appendBlock(genesisTime + h*spacing)
	}
	return c
}

func (c *Chain) appendBlock(t int64) int64 {
	height := int64(len(c.hashes))
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(height))
	hash := chainhash.DoubleHashH(buf[:])
	c.hashes = append(c.hashes, hash)
	c.times = append(c.times, t)
	c.byHash[hash] = height
	return height
}

// AddBlock appends a block with timestamp t and returns its height.
func (c *Chain) AddBlock(t int64) int64 {
	c.Lock()
	defer c.Unlock()
	return c.appendBlock(t)
}

// SetImporting toggles the importing flag.
func (c *Chain) SetImporting(v bool) {
	c.Lock()
	defer c.Unlock()
	c.importing = v
}

// SetBusy makes TipHeight fail with chain.ErrTryAgain.
func (c *Chain) SetBusy(v bool) {
	c.Lock()
	defer c.Unlock()
	c.busy = v
}

// TipHeight implements chain.ChainView.
func (c *Chain) TipHeight() (int64, error) {
	c.RLock()
	defer c.RUnlock()
	if c.busy {
		return 0, chain.ErrTryAgain
	}
	if len(c.hashes) == 0 {
		return 0, chain.ErrNoTip
	}
	return int64(len(c.hashes)) - 1, nil
}

// BlockHash implements chain.ChainView.
func (c *Chain) BlockHash(height int64) (chainhash.Hash, error) {
	c.RLock()
	defer c.RUnlock()
	if height < 0 || height >= int64(len(c.hashes)) {
		return chainhash.Hash{}, chain.ErrUnknownBlock
	}
	return c.hashes[height], nil
}

// BlockTime implements chain.ChainView.
func (c *Chain) BlockTime(height int64) (int64, error) {
	c.RLock()
	defer c.RUnlock()
	if height < 0 || height >= int64(len(c.times)) {
		return 0, chain.ErrUnknownBlock
	}
	return c.times[height], nil
}

// BlockHeight implements chain.ChainView.
func (c *Chain) BlockHeight(hash chainhash.Hash) (int64, error) {
	c.RLock()
	defer c.RUnlock()
	h, ok := c.byHash[hash]
	if !ok {
		return 0, chain.ErrUnknownBlock
	}
	return h, nil
}

// IsImporting implements chain.ChainView.
func (c *Chain) IsImporting() bool {
	c.RLock()
	defer c.RUnlock()
	return c.importing
}
