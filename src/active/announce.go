package active

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/swiftcashproject/swiftnode/src/chain"
	"github.com/swiftcashproject/swiftnode/src/signer"
	"github.com/swiftcashproject/swiftnode/src/swiftnode"
)

// SelectCollateral returns a wallet output of exactly the collateral amount
// with the key that spends it. With an empty txHash the first such output is
// returned, otherwise the one at txHash:index. Outputs locked by the wallet
// are skipped, except those reserved by swiftnode.conf entries.
func (c *Controller) SelectCollateral(txHash string, index uint32) (wire.OutPoint, *btcec.PrivateKey, error) {
	if c.conf.Wallet == nil {
		return wire.OutPoint{}, nil, errNoCoins
	}

	outs, err := c.conf.Wallet.Outputs()
	if err != nil {
		return wire.OutPoint{}, nil, err
	}

	var want *wire.OutPoint
	if txHash != "" {
		h, err := chainhash.NewHashFromStr(txHash)
		if err != nil {
			return wire.OutPoint{}, nil, fmt.Errorf("invalid collateral hash %q: %w", txHash, err)
		}
		want = wire.NewOutPoint(h, index)
	}

	for _, out := range outs {
		if out.Value != c.conf.Params.Collateral {
			continue
		}
		if out.Locked && !c.isConfLocked(out.OutPoint) {
			continue
		}
		if want != nil && out.OutPoint != *want {
			continue
		}

		key, err := c.conf.Wallet.KeyFor(out.OutPoint)
		if err != nil {
			return wire.OutPoint{}, nil, err
		}
		return out.OutPoint, key, nil
	}

	if want != nil {
		return wire.OutPoint{}, nil, fmt.Errorf("%w: %s", errNoCoins, want)
	}
	return wire.OutPoint{}, nil, errNoCoins
}

func (c *Controller) isConfLocked(op wire.OutPoint) bool {
	for _, l := range c.conf.ConfLocked {
		if l == op {
			return true
		}
	}
	return false
}

// CreateAnnouncement builds the signed announcement of a swiftnode whose
// collateral is held by this wallet, for a node operated elsewhere with
// operatingSecret. Unless offline, the chain must be synced.
func (c *Controller) CreateAnnouncement(
	service string,
	operatingSecret string,
	txHash string,
	index uint32,
	offline bool,
) (*swiftnode.Announcement, error) {

	if !offline && !c.conf.Params.RegTest && !c.conf.Sync.IsBlockchainSynced() {
		return nil, fmt.Errorf("%s", SyncInProcess)
	}

	opKey, _, err := signer.SetKey(operatingSecret)
	if err != nil {
		return nil, fmt.Errorf("invalid swiftnode key: %w", err)
	}

	op, collateralKey, err := c.SelectCollateral(txHash, index)
	if err != nil {
		return nil, fmt.Errorf("could not allocate collateral %s:%d for swiftnode %s: %w", txHash, index, service, err)
	}

	if err := checkDefaultPort(service, c.conf.Params); err != nil {
		return nil, err
	}

	return c.createAnnouncement(op, service, collateralKey, opKey)
}

// checkDefaultPort applies the port rule peers enforce on announcements:
// mainnet nodes use the default port, other networks must not use the
// mainnet one.
func checkDefaultPort(service string, params *chain.Params) error {
	port := swiftnode.Port(service)
	if params.IsMainNet() {
		if port != params.DefaultPort {
			return fmt.Errorf("Invalid port %d for swiftnode %s, only %d is supported on %s-net.",
				port, service, params.DefaultPort, params.Name)
		}
		return nil
	}
	if port == chain.MainNetParams.DefaultPort {
		return fmt.Errorf("Invalid port %d for swiftnode %s, %d is the only supported on mainnet.",
			port, service, port)
	}
	return nil
}
