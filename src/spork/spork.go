// Package spork reads the network feature flags the swiftnode layer depends
// on. Flags are owned by an external system; here they are plain values set
// from configuration or by the host process.
package spork

import (
	"fmt"
	"sync"

	"github.com/swiftcashproject/swiftnode/src/chain"
)

// Feature flag ids.
const (
	SwiftTXBlockFiltering       = 10002
	MaxValue                    = 10003
	SwiftnodePaymentEnforcement = 10004
	BudgetEnforcement           = 10005
	SwiftnodePayUpdatedNodes    = 10008
	EnableSuperblocks           = 10011
	NewProtocolEnforcement      = 10012
)

// Off is the value of a flag that is not active. Any timestamp in the past
// turns a flag on.
const Off int64 = 8580808800

var names = map[int]string{
	SwiftTXBlockFiltering:       "SPORK_2_SWIFTTX_BLOCK_FILTERING",
	MaxValue:                    "SPORK_3_MAX_VALUE",
	SwiftnodePaymentEnforcement: "SPORK_4_SWIFTNODE_PAYMENT_ENFORCEMENT",
	BudgetEnforcement:           "SPORK_5_BUDGET_ENFORCEMENT",
	SwiftnodePayUpdatedNodes:    "SPORK_8_SWIFTNODE_PAY_UPDATED_NODES",
	EnableSuperblocks:           "SPORK_11_ENABLE_SUPERBLOCKS",
	NewProtocolEnforcement:      "SPORK_12_NEW_PROTOCOL_ENFORCEMENT",
}

// Name returns the display name of a flag id.
func Name(id int) string {
	if n, ok := names[id]; ok {
		return n
	}
	return fmt.Sprintf("SPORK_%d", id)
}

// ID returns the flag id of a display name.
func ID(name string) (int, bool) {
	for id, n := range names {
		if n == name {
			return id, true
		}
	}
	return 0, false
}

// Static is a chain.FeatureFlags backed by a map of values.
type Static struct {
	sync.RWMutex
	clock  chain.TimeSource
	values map[int]int64
}

// NewStatic returns flags that are all off, overridden by values.
func NewStatic(clock chain.TimeSource, values map[int]int64) *Static {
	s := &Static{
		clock:  clock,
		values: make(map[int]int64),
	}
	for id, v := range values {
		s.values[id] = v
	}
	return s
}

// Set changes the value of a flag.
func (s *Static) Set(id int, value int64) {
	s.Lock()
	defer s.Unlock()
	s.values[id] = value
}

// Enable turns the flag on.
func (s *Static) Enable(id int) {
	s.Set(id, 0)
}

// Disable turns the flag off.
func (s *Static) Disable(id int) {
	s.Set(id, Off)
}

// Value implements chain.FeatureFlags.
func (s *Static) Value(id int) int64 {
	s.RLock()
	defer s.RUnlock()
	if v, ok := s.values[id]; ok {
		return v
	}
	return Off
}

// IsActive implements chain.FeatureFlags.
func (s *Static) IsActive(id int) bool {
	return s.Value(id) < s.clock.Now()
}

// Values returns a copy of the explicitly set values keyed by display name.
func (s *Static) Values() map[string]int64 {
	s.RLock()
	defer s.RUnlock()
	res := make(map[string]int64, len(s.values))
	for id, v := range s.values {
		res[Name(id)] = v
	}
	return res
}

// ActiveProtocol is the minimum protocol accepted from peers, depending on
// whether the new protocol is enforced.
func ActiveProtocol(flags chain.FeatureFlags) int32 {
	if flags.IsActive(NewProtocolEnforcement) {
		return chain.MinPeerProtoAfterEnforcement
	}
	return chain.MinPeerProtoBeforeEnforcement
}

// MinPaymentsProtocol is the minimum protocol of a swiftnode eligible for
// payment.
func MinPaymentsProtocol(flags chain.FeatureFlags) int32 {
	if flags.IsActive(SwiftnodePayUpdatedNodes) {
		return ActiveProtocol(flags)
	}
	return chain.MinPeerProtoBeforeEnforcement
}
