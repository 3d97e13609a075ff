package sol

import (
	"context"
	"fmt"
	"sync/atomic"
)

// RPCPool distributes read traffic across several endpoints of the same cluster.
// Transactions that must be confirmed through the node they were sent to should
// stick to Primary.
type RPCPool struct {
	endpoints []string
	clients   []*Client
	index     uint64
}

// NewRPCPool creates a client per endpoint, each with its own request limiter.
func NewRPCPool(ctx context.Context, endpoints []string, reqLimitPerSecond int) (*RPCPool, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no RPC endpoints")
	}

	pool := &RPCPool{
		endpoints: endpoints,
		clients:   make([]*Client, 0, len(endpoints)),
	}

	for _, endpoint := range endpoints {
		client, err := NewClient(ctx, endpoint, reqLimitPerSecond)
		if err != nil {
			return nil, fmt.Errorf("client for %s: %w", endpoint, err)
		}
		pool.clients = append(pool.clients, client)
	}

	return pool, nil
}

// Primary returns the client of the first configured endpoint.
func (p *RPCPool) Primary() *Client {
	return p.clients[0]
}

// GetClient returns the next client in round-robin fashion
func (p *RPCPool) GetClient() *Client {
	if len(p.clients) == 1 {
		return p.clients[0]
	}
	idx := atomic.AddUint64(&p.index, 1) % uint64(len(p.clients))
	return p.clients[idx]
}

func (p *RPCPool) Size() int {
	return len(p.clients)
}

// Close closes every client and returns the first error.
func (p *RPCPool) Close() error {
	var first error
	for _, c := range p.clients {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
