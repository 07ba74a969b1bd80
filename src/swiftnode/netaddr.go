package swiftnode

import (
	"fmt"
	"net"
	"strconv"

	"github.com/btcsuite/btcd/addrmgr"
	"github.com/btcsuite/btcd/wire"
	"github.com/swiftcashproject/swiftnode/src/chain"
)

// ParseAddr parses an "ip:port" service address.
func ParseAddr(addr string) (*wire.NetAddress, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return nil, fmt.Errorf("%q is not an IP address", host)
	}

	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid port %q: %v", portStr, err)
	}

	return wire.NewNetAddressIPPort(ip, uint16(port), 0), nil
}

// Port returns the port of a service address, or 0 if it does not parse.
func Port(addr string) int {
	na, err := ParseAddr(addr)
	if err != nil {
		return 0
	}
	return int(na.Port)
}

// IsValidNetAddr reports whether addr may be used by a swiftnode: a routable
// IPv4 address. Regtest accepts anything.
func IsValidNetAddr(addr string, params *chain.Params) bool {
	if params != nil && params.RegTest {
		return true
	}

	na, err := ParseAddr(addr)
	if err != nil {
		return false
	}

	return addrmgr.IsIPv4(na) && addrmgr.IsRoutable(na) && !addrmgr.IsLocal(na)
}

// IsPrivateAddr reports whether addr belongs to a private network. Records
// with such addresses are neither relayed nor served to peers.
func IsPrivateAddr(addr string) bool {
	na, err := ParseAddr(addr)
	if err != nil {
		return true
	}
	return addrmgr.IsRFC1918(na) || addrmgr.IsLocal(na)
}
