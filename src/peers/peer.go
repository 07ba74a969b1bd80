package peers

import (
	"fmt"
)

// Peer is a connected peer.
type Peer struct {
	NetAddr string
	Version int32 `json:",omitempty"`
	Inbound bool  `json:"-"`
}

// NewPeer ...
func NewPeer(netAddr string, version int32) *Peer {
	return &Peer{
		NetAddr: netAddr,
		Version: version,
	}
}

// String ...
func (p *Peer) String() string {
	return fmt.Sprintf("%s (%d)", p.NetAddr, p.Version)
}

// ExcludePeer is used to exclude a single peer from a list of peers.
func ExcludePeer(peers []*Peer, peer string) (int, []*Peer) {
	index := -1
	otherPeers := make([]*Peer, 0, len(peers))
	for i, p := range peers {
		if p.NetAddr != peer {
			otherPeers = append(otherPeers, p)
		} else {
			index = i
		}
	}
	return index, otherPeers
}

// ByAddr implements sort.Interface for Peers based on the NetAddr field.
type ByAddr []*Peer

func (a ByAddr) Len() int           { return len(a) }
func (a ByAddr) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a ByAddr) Less(i, j int) bool { return a[i].NetAddr < a[j].NetAddr }
