package flagrelay

import (
	"context"
	"sync/atomic"

	"github.com/jackc/puddle/v2"
)

// ClientPool hands out whole Client instances with exclusive ownership.
// A Client is single-owner by contract, so the pool is how a process with
// several submission goroutines shares a bounded set of connections: each
// goroutine acquires a lease, drives the client alone, and releases it.
type ClientPool struct {
	pool             *puddle.Pool[*Client]
	createdClients   atomic.Int64
	destroyedClients atomic.Int64
}

// NewClientPool creates a pool of at most maxSize clients, all built from
// cfg. Clients are created lazily on first acquire; each creation performs
// the initial connect.
func NewClientPool(cfg Config, maxSize int32) (*ClientPool, error) {
	if len(cfg.Servers) == 0 {
		return nil, ErrNoServers
	}

	p := &ClientPool{}
	pool, err := puddle.NewPool(&puddle.Config[*Client]{
		Constructor: func(ctx context.Context) (*Client, error) {
			client, err := NewClient(cfg)
			if err == nil {
				p.createdClients.Add(1)
			}
			return client, err
		},
		Destructor: func(c *Client) {
			p.destroyedClients.Add(1)
			c.Close()
		},
		MaxSize: maxSize,
	})
	if err != nil {
		return nil, err
	}
	p.pool = pool
	return p, nil
}

// Acquire checks a client out of the pool, creating one if the pool is not
// yet at capacity. The caller has exclusive ownership until Release or
// Destroy is called on the lease.
func (p *ClientPool) Acquire(ctx context.Context) (*ClientLease, error) {
	res, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &ClientLease{res: res}, nil
}

// Close destroys all pooled clients and rejects further acquires.
func (p *ClientPool) Close() {
	p.pool.Close()
}

// PoolStats is a snapshot of pool counters.
type PoolStats struct {
	TotalClients     int32
	IdleClients      int32
	AcquiredClients  int32
	CreatedClients   int64
	DestroyedClients int64
}

// Stats returns a snapshot of the pool state.
func (p *ClientPool) Stats() PoolStats {
	s := p.pool.Stat()
	return PoolStats{
		TotalClients:     s.TotalResources(),
		IdleClients:      s.IdleResources(),
		AcquiredClients:  s.AcquiredResources(),
		CreatedClients:   p.createdClients.Load(),
		DestroyedClients: p.destroyedClients.Load(),
	}
}

// ClientLease is an exclusively held pool slot.
type ClientLease struct {
	res *puddle.Resource[*Client]
}

// Client returns the leased client.
func (l *ClientLease) Client() *Client { return l.res.Value() }

// Release returns a healthy client to the pool for reuse.
func (l *ClientLease) Release() { l.res.Release() }

// Destroy closes the leased client and removes it from the pool, freeing the
// slot for a fresh connect on the next acquire. Use it after an error that
// leaves the connection in doubt.
func (l *ClientLease) Destroy() { l.res.Destroy() }
