// =======================================
// File: internal/uusd/thresholds_test.go
// =======================================
package uusd

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"uusd-router/internal/chain"
	"uusd-router/internal/events"
)

var testPoolAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")

// stubChain serves canned storage words and counts batch round trips.
type stubChain struct {
	mintWord   common.Hash
	redeemWord common.Hash
	batchErr   error
	elemErr    error
	calls      int
	lastBatch  []rpc.BatchElem
}

var _ chain.Reader = (*stubChain)(nil)

func (s *stubChain) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return nil, nil
}

func (s *stubChain) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, nil
}

func (s *stubChain) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return nil, nil
}

func (s *stubChain) BlockNumber(context.Context) (uint64, error) { return 0, nil }

func (s *stubChain) FilterLogs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (s *stubChain) BatchCall(_ context.Context, batch []rpc.BatchElem) error {
	s.calls++
	s.lastBatch = batch
	if s.batchErr != nil {
		return s.batchErr
	}
	words := []common.Hash{s.mintWord, s.redeemWord}
	for i := range batch {
		if s.elemErr != nil {
			batch[i].Error = s.elemErr
			continue
		}
		*(batch[i].Result.(*string)) = words[i].Hex()
	}
	return nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func word(v int64) common.Hash {
	return common.BigToHash(big.NewInt(v))
}

func TestThresholdCacheTTL(t *testing.T) {
	stub := &stubChain{mintWord: word(1_010_000), redeemWord: word(980_000)}
	src := NewThresholdSource(stub, testPoolAddr, 60*time.Second, nil, nil, zap.NewNop())
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	src.now = clock.Now

	first, err := src.GetThresholds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1_010_000), first.Mint)
	assert.Equal(t, uint64(980_000), first.Redeem)
	assert.Equal(t, 1, stub.calls)

	// Inside the TTL the cached pair is served with no chain I/O.
	clock.Advance(59 * time.Second)
	_, err = src.GetThresholds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stub.calls)

	// Past the TTL the next read refreshes and picks up new values.
	clock.Advance(2 * time.Second)
	stub.mintWord = word(1_020_000)
	second, err := src.GetThresholds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1_020_000), second.Mint)
	assert.Equal(t, 2, stub.calls)
}

func TestThresholdSanityBounds(t *testing.T) {
	garbage := common.BigToHash(new(big.Int).Lsh(big.NewInt(1), 128))

	tests := []struct {
		name       string
		mintWord   common.Hash
		redeemWord common.Hash
		want       Thresholds
		wantErr    bool
	}{
		{"typical gates", word(1_010_000), word(980_000), Thresholds{Mint: 1_010_000, Redeem: 980_000}, false},
		{"lower bound inclusive", word(500_000), word(500_000), Thresholds{Mint: 500_000, Redeem: 500_000}, false},
		{"upper bound inclusive", word(1_500_000), word(1_500_000), Thresholds{Mint: 1_500_000, Redeem: 1_500_000}, false},
		{"mint below floor", word(499_999), word(1_000_000), Thresholds{}, true},
		{"redeem above ceiling", word(1_000_000), word(1_500_001), Thresholds{}, true},
		{"garbage word", garbage, word(1_000_000), Thresholds{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubChain{mintWord: tt.mintWord, redeemWord: tt.redeemWord}
			src := NewThresholdSource(stub, testPoolAddr, time.Minute, nil, nil, zap.NewNop())

			got, err := src.GetThresholds(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrCorruptThresholdData)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestThresholdSlotWiring(t *testing.T) {
	stub := &stubChain{mintWord: word(minSaneThreshold), redeemWord: word(maxSaneThreshold)}
	src := NewThresholdSource(stub, testPoolAddr, 0, nil, nil, zap.NewNop())

	_, err := src.GetThresholds(context.Background())
	require.NoError(t, err)
	require.Len(t, stub.lastBatch, 2)

	for i, offset := range []int64{mintThresholdSlotOffset, redeemThresholdSlotOffset} {
		elem := stub.lastBatch[i]
		assert.Equal(t, "eth_getStorageAt", elem.Method)
		require.Len(t, elem.Args, 3)
		assert.Equal(t, testPoolAddr, elem.Args[0])
		assert.Equal(t, thresholdSlot(offset), elem.Args[1])
		assert.Equal(t, "latest", elem.Args[2])
	}
}

func TestThresholdReadErrors(t *testing.T) {
	t.Run("transport failure", func(t *testing.T) {
		stub := &stubChain{batchErr: errors.New("connection refused")}
		src := NewThresholdSource(stub, testPoolAddr, time.Minute, nil, nil, zap.NewNop())

		_, err := src.GetThresholds(context.Background())
		require.Error(t, err)
		assert.True(t, IsChainReadError(err))
	})

	t.Run("sub-call failure", func(t *testing.T) {
		stub := &stubChain{elemErr: errors.New("missing trie node")}
		src := NewThresholdSource(stub, testPoolAddr, time.Minute, nil, nil, zap.NewNop())

		_, err := src.GetThresholds(context.Background())
		require.Error(t, err)
		assert.True(t, IsChainReadError(err))
	})

	t.Run("failure is not cached", func(t *testing.T) {
		stub := &stubChain{
			mintWord:   word(1_000_000),
			redeemWord: word(1_000_000),
			batchErr:   errors.New("connection refused"),
		}
		src := NewThresholdSource(stub, testPoolAddr, time.Minute, nil, nil, zap.NewNop())

		_, err := src.GetThresholds(context.Background())
		require.Error(t, err)

		stub.batchErr = nil
		got, err := src.GetThresholds(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(1_000_000), got.Mint)
		assert.Equal(t, 2, stub.calls)
	})
}

func TestThresholdRefreshPublishesEvent(t *testing.T) {
	stub := &stubChain{mintWord: word(1_010_000), redeemWord: word(980_000)}
	bus := events.NewBus(zap.NewNop(), 16)

	received := make(chan events.ThresholdsRefreshedEvent, 2)
	bus.SubscribeFunc(events.ThresholdsRefreshed, func(_ context.Context, e events.Event) error {
		if evt, ok := e.(events.ThresholdsRefreshedEvent); ok {
			received <- evt
		}
		return nil
	})

	src := NewThresholdSource(stub, testPoolAddr, time.Hour, bus, nil, zap.NewNop())

	_, err := src.GetThresholds(context.Background())
	require.NoError(t, err)

	// A cached read must not republish.
	_, err = src.GetThresholds(context.Background())
	require.NoError(t, err)

	require.NoError(t, bus.Shutdown(context.Background()))

	require.Len(t, received, 1)
	evt := <-received
	assert.Equal(t, uint64(1_010_000), evt.MintThreshold)
	assert.Equal(t, uint64(980_000), evt.RedeemThreshold)
}

func TestThresholdInvalidate(t *testing.T) {
	stub := &stubChain{mintWord: word(1_000_000), redeemWord: word(1_000_000)}
	src := NewThresholdSource(stub, testPoolAddr, time.Hour, nil, nil, zap.NewNop())

	_, err := src.GetThresholds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stub.calls)

	src.Invalidate()

	_, err = src.GetThresholds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stub.calls)
}
