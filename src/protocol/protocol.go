package protocol

import (
	"errors"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/sirupsen/logrus"
	"github.com/swiftcashproject/swiftnode/src/chain"
	"github.com/swiftcashproject/swiftnode/src/registry"
	"github.com/swiftcashproject/swiftnode/src/swiftnode"
)

const (
	// MaxClockDrift bounds how far message timestamps may be from our time.
	MaxClockDrift = 60 * 60

	// HeartbeatAnchorDepth is how far behind the tip heartbeats are anchored.
	HeartbeatAnchorDepth = 12

	// MaxAnchorAge is the oldest anchor accepted, in blocks behind the tip.
	MaxAnchorAge = 24
)

var (
	// ErrUnknownNode is returned for heartbeats of nodes we do not know.
	ErrUnknownNode = errors.New("unknown swiftnode")

	errScriptSize = errors.New("key does not give a standard pay-to-pubkey-hash script")
)

// Relayer forwards accepted messages to our peers.
type Relayer interface {
	RelayAnnouncement(a swiftnode.Announcement)
	RelayHeartbeat(hb swiftnode.Heartbeat)
}

// EntryRequester asks a peer for a single registry entry.
type EntryRequester interface {
	RequestEntry(peer string, op wire.OutPoint)
}

// SyncObserver counts list items for the sync orchestrator.
type SyncObserver interface {
	AddedListItem(hash chainhash.Hash)
}

// LocalNode is the swiftnode run by this peer, if any.
type LocalNode interface {
	// OperatingPubKey is the configured operating key, nil when this peer is
	// not a swiftnode.
	OperatingPubKey() []byte

	// Identity returns the collateral of the local node once it is known.
	Identity() (wire.OutPoint, bool)

	// EnableHotCold starts the local node from an announcement made by a
	// remote wallet.
	EnableHotCold(op wire.OutPoint, addr string) bool
}

// Config groups the collaborators of a Protocol.
type Config struct {
	Registry  *registry.Registry
	Chain     chain.ChainView
	UTXO      chain.UTXOOracle
	Flags     chain.FeatureFlags
	Params    *chain.Params
	Clock     chain.TimeSource
	Relay     Relayer
	Requester EntryRequester
	Sync      SyncObserver
	Local     LocalNode
	Logger    *logrus.Entry
}

// Protocol validates inbound announcements and heartbeats and applies them to
// the registry.
type Protocol struct {
	registry  *registry.Registry
	chain     chain.ChainView
	utxo      chain.UTXOOracle
	flags     chain.FeatureFlags
	params    *chain.Params
	clock     chain.TimeSource
	relay     Relayer
	requester EntryRequester
	sync      SyncObserver
	local     LocalNode
	logger    *logrus.Entry
}

// NewProtocol ...
func NewProtocol(conf Config) *Protocol {
	return &Protocol{
		registry:  conf.Registry,
		chain:     conf.Chain,
		utxo:      conf.UTXO,
		flags:     conf.Flags,
		params:    conf.Params,
		clock:     conf.Clock,
		relay:     conf.Relay,
		requester: conf.Requester,
		sync:      conf.Sync,
		local:     conf.Local,
		logger:    conf.Logger,
	}
}

// SetLocalNode wires the local node once it exists.
func (p *Protocol) SetLocalNode(l LocalNode) {
	p.local = l
}

// SetSyncObserver ...
func (p *Protocol) SetSyncObserver(s SyncObserver) {
	p.sync = s
}

func (p *Protocol) addedListItem(hash chainhash.Hash) {
	if p.sync != nil {
		p.sync.AddedListItem(hash)
	}
}
