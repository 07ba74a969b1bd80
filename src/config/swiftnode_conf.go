package config

import (
	"bufio"
	"fmt"
	"io/ioutil"
	"os"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/swiftcashproject/swiftnode/src/chain"
	"github.com/swiftcashproject/swiftnode/src/swiftnode"
)

const swiftnodeConfTemplate = `# Swiftnode config file
# Format: alias IP:port swiftnodeprivkey collateral_output_txid collateral_output_index
# Example: mn1 127.0.0.2:28544 2f4a6e1c0e7b9d3a5c8f1e2d4b6a8c0e1f3d5b7a9c2e4f6a8b0d2c4e6f8a1b3c 2bcd3c84c84f87eaa86e4e56834c92927a07f9e18718810b92e0d0324456a67c 0
`

// Entry is one swiftnode.conf line: a swiftnode run elsewhere whose
// collateral is held by this wallet.
type Entry struct {
	Alias       string
	Addr        string
	PrivKey     string
	TxHash      string
	OutputIndex string
}

// Index parses the collateral output index.
func (e Entry) Index() (uint32, error) {
	n, err := strconv.ParseUint(e.OutputIndex, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid output index %q: %w", e.OutputIndex, err)
	}
	return uint32(n), nil
}

// OutPoint returns the collateral outpoint of the entry.
func (e Entry) OutPoint() (wire.OutPoint, error) {
	h, err := chainhash.NewHashFromStr(e.TxHash)
	if err != nil {
		return wire.OutPoint{}, fmt.Errorf("invalid collateral hash %q: %w", e.TxHash, err)
	}
	idx, err := e.Index()
	if err != nil {
		return wire.OutPoint{}, err
	}
	return *wire.NewOutPoint(h, idx), nil
}

// SwiftnodeConf is the parsed content of swiftnode.conf.
type SwiftnodeConf struct {
	Entries []Entry
}

// ReadSwiftnodeConf parses the file at path. A missing file is created with a
// commented template and yields no entries. Ports are checked against the
// network: mainnet entries must use the default port, which other networks
// cannot use.
func ReadSwiftnodeConf(path string, params *chain.Params) (*SwiftnodeConf, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		if err := ioutil.WriteFile(path, []byte(swiftnodeConfTemplate), 0600); err != nil {
			return nil, err
		}
		return &SwiftnodeConf{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	conf := &SwiftnodeConf{}
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if len(fields) < 5 {
			return nil, fmt.Errorf("Could not parse %s\nLine: %d\n%q", DefaultSwiftnodeConf, lineNum, line)
		}

		port := swiftnode.Port(fields[1])
		if params.IsMainNet() {
			if port != chain.MainNetParams.DefaultPort {
				return nil, fmt.Errorf("Invalid port detected in %s\nLine: %d\n%q\n(must be %d for mainnet)",
					DefaultSwiftnodeConf, lineNum, line, chain.MainNetParams.DefaultPort)
			}
		} else if port == chain.MainNetParams.DefaultPort {
			return nil, fmt.Errorf("Invalid port detected in %s\nLine: %d\n%q\n(%d could be used only on mainnet)",
				DefaultSwiftnodeConf, lineNum, line, chain.MainNetParams.DefaultPort)
		}

		conf.Entries = append(conf.Entries, Entry{
			Alias:       fields[0],
			Addr:        fields[1],
			PrivKey:     fields[2],
			TxHash:      fields[3],
			OutputIndex: fields[4],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Find returns the entry with the given alias.
func (c *SwiftnodeConf) Find(alias string) (Entry, bool) {
	for _, e := range c.Entries {
		if e.Alias == alias {
			return e, true
		}
	}
	return Entry{}, false
}

// LockedOutPoints returns the collateral of every well-formed entry.
func (c *SwiftnodeConf) LockedOutPoints() []wire.OutPoint {
	res := []wire.OutPoint{}
	for _, e := range c.Entries {
		op, err := e.OutPoint()
		if err != nil {
			continue
		}
		res = append(res, op)
	}
	return res
}
