package net

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"
)

// NewInmemAddr returns a new in-memory addr with a randomly generate UUID as
// the ID.
func NewInmemAddr() string {
	return generateUUID()
}

// generateUUID is used to generate a random UUID.
func generateUUID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Errorf("failed to read random bytes: %v", err))
	}

	return fmt.Sprintf("%08x-%04x-%04x-%04x-%12x",
		buf[0:4],
		buf[4:6],
		buf[6:8],
		buf[8:10],
		buf[10:16])
}

// InmemTransport Implements the Transport interface, to allow swiftnode
// peers to be tested in-memory without going over a network.
type InmemTransport struct {
	sync.RWMutex
	consumerCh chan RPC
	localAddr  string
	peers      map[string]*InmemTransport
	timeout    time.Duration
}

// NewInmemTransport is used to initialize a new transport and generates a
// random local address if none is specified
func NewInmemTransport(addr string) (string, *InmemTransport) {
	if addr == "" {
		addr = NewInmemAddr()
	}
	trans := &InmemTransport{
		consumerCh: make(chan RPC, 16),
		localAddr:  addr,
		peers:      make(map[string]*InmemTransport),
		timeout:    500 * time.Millisecond,
	}
	return addr, trans
}

// Consumer implements the Transport interface.
func (i *InmemTransport) Consumer() <-chan RPC {
	return i.consumerCh
}

// LocalAddr implements the Transport interface.
func (i *InmemTransport) LocalAddr() string {
	return i.localAddr
}

// AdvertiseAddr implements the Transport interface.
func (i *InmemTransport) AdvertiseAddr() string {
	return i.localAddr
}

// Announce implements the Transport interface.
func (i *InmemTransport) Announce(target string, args *AnnounceMessage, resp *Ack) error {
	rpcResp, err := i.makeRPC(target, args)
	if err != nil {
		return err
	}
	return copyResponse(rpcResp, resp)
}

// Heartbeat implements the Transport interface.
func (i *InmemTransport) Heartbeat(target string, args *HeartbeatMessage, resp *Ack) error {
	rpcResp, err := i.makeRPC(target, args)
	if err != nil {
		return err
	}
	return copyResponse(rpcResp, resp)
}

// WinnerVote implements the Transport interface.
func (i *InmemTransport) WinnerVote(target string, args *WinnerVoteMessage, resp *Ack) error {
	rpcResp, err := i.makeRPC(target, args)
	if err != nil {
		return err
	}
	return copyResponse(rpcResp, resp)
}

// List implements the Transport interface.
func (i *InmemTransport) List(target string, args *ListRequest, resp *ListResponse) error {
	rpcResp, err := i.makeRPC(target, args)
	if err != nil {
		return err
	}
	out, ok := rpcResp.Response.(*ListResponse)
	if !ok {
		return fmt.Errorf("unexpected response %T", rpcResp.Response)
	}
	*resp = *out
	return nil
}

// Winners implements the Transport interface.
func (i *InmemTransport) Winners(target string, args *WinnersRequest, resp *WinnersResponse) error {
	rpcResp, err := i.makeRPC(target, args)
	if err != nil {
		return err
	}
	out, ok := rpcResp.Response.(*WinnersResponse)
	if !ok {
		return fmt.Errorf("unexpected response %T", rpcResp.Response)
	}
	*resp = *out
	return nil
}

// Sporks implements the Transport interface.
func (i *InmemTransport) Sporks(target string, args *SporksRequest, resp *SporksResponse) error {
	rpcResp, err := i.makeRPC(target, args)
	if err != nil {
		return err
	}
	out, ok := rpcResp.Response.(*SporksResponse)
	if !ok {
		return fmt.Errorf("unexpected response %T", rpcResp.Response)
	}
	*resp = *out
	return nil
}

// Probe implements the Transport interface.
func (i *InmemTransport) Probe(target string) error {
	i.RLock()
	defer i.RUnlock()
	if _, ok := i.peers[target]; !ok {
		return fmt.Errorf("failed to connect to peer: %v", target)
	}
	return nil
}

// copyResponse copies an Ack back. Gossip handlers may answer with an error
// only, leaving the Ack empty.
func copyResponse(rpcResp RPCResponse, resp *Ack) error {
	if out, ok := rpcResp.Response.(*Ack); ok && out != nil {
		*resp = *out
	}
	return nil
}

func (i *InmemTransport) makeRPC(target string, args interface{}) (rpcResp RPCResponse, err error) {
	i.RLock()
	peer, ok := i.peers[target]
	i.RUnlock()

	if !ok {
		err = fmt.Errorf("failed to connect to peer: %v", target)
		return
	}

	// Send the RPC over
	respCh := make(chan RPCResponse, 1)
	select {
	case peer.consumerCh <- RPC{
		Command:  args,
		RespChan: respCh,
	}:
	case <-time.After(i.timeout):
		err = fmt.Errorf("send timed out")
		return
	}

	// Wait for a response
	select {
	case rpcResp = <-respCh:
		if rpcResp.Error != nil {
			err = rpcResp.Error
		}
	case <-time.After(i.timeout):
		err = fmt.Errorf("command timed out")
	}
	return
}

// Connect is used to connect this transport to another transport for a given
// peer name. This allows for local routing.
func (i *InmemTransport) Connect(peer string, t Transport) {
	trans := t.(*InmemTransport)
	i.Lock()
	defer i.Unlock()
	i.peers[peer] = trans
}

// Disconnect is used to remove the ability to route to a given peer.
func (i *InmemTransport) Disconnect(peer string) {
	i.Lock()
	defer i.Unlock()
	delete(i.peers, peer)
}

// DisconnectAll is used to remove all routes to peers.
func (i *InmemTransport) DisconnectAll() {
	i.Lock()
	defer i.Unlock()
	i.peers = make(map[string]*InmemTransport)
}

// Close is used to permanently disable the transport
func (i *InmemTransport) Close() error {
	i.DisconnectAll()
	return nil
}

// Listen is an empty function as there is no need to defer initialisation of
// the InMem service
func (i *InmemTransport) Listen() {
}
