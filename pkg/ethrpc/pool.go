// pkg/ethrpc/pool.go
package ethrpc

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pool hands out dialed endpoints round-robin. Endpoints that fail a
// health check are removed; the pool never re-adds them.
type Pool struct {
	mu     sync.Mutex
	conns  []*Conn
	index  int
	logger *zap.Logger
}

// DialPool dials every endpoint in the list and keeps the ones that
// connect. At least one endpoint must succeed.
func DialPool(ctx context.Context, endpoints []string, chainID uint64, logger *zap.Logger) (*Pool, error) {
	if len(endpoints) == 0 {
		return nil, ErrEmptyEndpoints
	}

	pool := &Pool{logger: logger}
	var lastErr error
	for _, endpoint := range endpoints {
		conn, err := Dial(ctx, endpoint, chainID, logger)
		if err != nil {
			logger.Warn("Skipping unreachable RPC endpoint",
				zap.String("url", endpoint),
				zap.Error(err))
			lastErr = err
			continue
		}
		pool.conns = append(pool.conns, conn)
	}

	if len(pool.conns) == 0 {
		return nil, lastErr
	}
	return pool, nil
}

// Get returns the next endpoint in round-robin order.
func (p *Pool) Get() *Conn {
	p.mu.Lock()
	defer p.mu.Unlock()

	conn := p.conns[p.index]
	p.index = (p.index + 1) % len(p.conns)
	return conn
}

// Size reports the number of live endpoints.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// HealthCheck probes every endpoint and drops the dead ones. When all
// endpoints fail the pool is left untouched so reads surface the real
// transport error instead of an empty-pool panic.
func (p *Pool) HealthCheck(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var alive, dead []*Conn
	for _, conn := range p.conns {
		if p.probe(ctx, conn) {
			alive = append(alive, conn)
		} else {
			dead = append(dead, conn)
		}
	}
	if len(alive) == 0 || len(dead) == 0 {
		return
	}

	for _, conn := range dead {
		p.logger.Warn("Dropping unhealthy RPC endpoint", zap.String("url", conn.URL))
		conn.Close()
	}
	p.conns = alive
	if p.index >= len(p.conns) {
		p.index = 0
	}
}

func (p *Pool) probe(ctx context.Context, conn *Conn) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := conn.ETH.BlockNumber(probeCtx)
	return err == nil
}

// Close releases every connection.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, conn := range p.conns {
		conn.Close()
	}
	p.conns = nil
}
