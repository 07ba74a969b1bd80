package chain

import (
	"encoding/hex"
	"fmt"
)

// Coin is the number of base units in one coin.
const Coin int64 = 100000000

// Protocol versions spoken by this implementation.
const (
	ProtocolVersion               int32 = 70920
	MinPeerProtoBeforeEnforcement int32 = 70919
	MinPeerProtoAfterEnforcement  int32 = 70920
)

const (
	DefaultCollateralCoins int64 = 50000
	DefaultTargetSpacing   int64 = 60
)

const (
	mainnetPort = 8544
	testnetPort = 28544
	regtestPort = 48544

	mainnetSwiftnodeCountDrift = 20
	testnetSwiftnodeCountDrift = 4
)

// Params holds the per-network constants used by the swiftnode layer.
type Params struct {
	Name          string
	Net           [4]byte
	DefaultPort   int
	TargetSpacing int64
	CountDrift    int
	Collateral    int64
	RegTest       bool
}

var (
	// MainNetParams are the parameters of the main network.
	MainNetParams = Params{
		Name:          "main",
		Net:           [4]byte{0x42, 0x1e, 0x31, 0xf5},
		DefaultPort:   mainnetPort,
		TargetSpacing: DefaultTargetSpacing,
		CountDrift:    mainnetSwiftnodeCountDrift,
		Collateral:    DefaultCollateralCoins * Coin,
	}

	// TestNetParams are the parameters of the test network.
	TestNetParams = Params{
		Name:          "test",
		Net:           [4]byte{0x42, 0x51, 0xd3, 0x8a},
		DefaultPort:   testnetPort,
		TargetSpacing: DefaultTargetSpacing,
		CountDrift:    testnetSwiftnodeCountDrift,
		Collateral:    DefaultCollateralCoins * Coin,
	}

	// RegTestParams are the parameters of the regression test network. Any
	// address is accepted.
	RegTestParams = Params{
		Name:          "regtest",
		Net:           [4]byte{0x11, 0xf2, 0x43, 0xff},
		DefaultPort:   regtestPort,
		TargetSpacing: DefaultTargetSpacing,
		CountDrift:    testnetSwiftnodeCountDrift,
		Collateral:    DefaultCollateralCoins * Coin,
		RegTest:       true,
	}
)

// IsMainNet reports whether p describes the main network.
func (p *Params) IsMainNet() bool {
	return p.Name == MainNetParams.Name
}

// NetHex returns the network magic as a hex string.
func (p *Params) NetHex() string {
	return hex.EncodeToString(p.Net[:])
}

// ParamsByName returns the params of the named network.
func ParamsByName(name string) (*Params, error) {
	switch name {
	case "main", "mainnet", "":
		p := MainNetParams
		return &p, nil
	case "test", "testnet":
		p := TestNetParams
		return &p, nil
	case "regtest":
		p := RegTestParams
		return &p, nil
	default:
		return nil, fmt.Errorf("unknown network %q", name)
	}
}
