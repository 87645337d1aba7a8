// pkg/ethrpc/dial.go
package ethrpc

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

const (
	dialRetryDelay = 500 * time.Millisecond
	dialMaxTries   = 5
)

// Conn is one dialed JSON-RPC endpoint, exposing both the raw client
// (batch requests, storage reads) and the typed ethclient wrapper.
type Conn struct {
	URL string
	RPC *rpc.Client
	ETH *ethclient.Client
}

func (c *Conn) Close() {
	c.RPC.Close()
}

// Dial connects to a single endpoint with exponential backoff. Retries
// happen only here, at connection time; read paths never retry.
func Dial(ctx context.Context, rawURL string, chainID uint64, logger *zap.Logger) (*Conn, error) {
	if _, err := url.Parse(rawURL); err != nil {
		return nil, fmt.Errorf("invalid RPC URL %q: %w", rawURL, err)
	}

	backoffPolicy := backoff.NewExponentialBackOff()
	backoffPolicy.InitialInterval = dialRetryDelay
	backoffPolicy.MaxInterval = dialRetryDelay * 10

	notify := func(err error, duration time.Duration) {
		logger.Info("Retrying RPC dial",
			zap.String("url", rawURL),
			zap.Duration("backoff", duration),
			zap.Error(err))
	}

	operation := func() (*rpc.Client, error) {
		return rpc.DialContext(ctx, rawURL)
	}

	client, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoffPolicy),
		backoff.WithMaxTries(dialMaxTries),
		backoff.WithNotify(notify))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}

	conn := &Conn{URL: rawURL, RPC: client, ETH: ethclient.NewClient(client)}

	if chainID != 0 {
		if err := verifyChainID(ctx, conn, chainID); err != nil {
			conn.Close()
			return nil, err
		}
	}

	return conn, nil
}

func verifyChainID(ctx context.Context, conn *Conn, want uint64) error {
	got, err := conn.ETH.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain id check for %s: %w", conn.URL, err)
	}
	if got.Uint64() != want {
		return fmt.Errorf("endpoint %s is on chain %d, expected %d", conn.URL, got.Uint64(), want)
	}
	return nil
}

// ErrEmptyEndpoints is returned when no RPC endpoints are configured.
var ErrEmptyEndpoints = errors.New("empty RPC endpoint list")
