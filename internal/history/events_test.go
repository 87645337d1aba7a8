// ======================================
// File: internal/history/events_test.go
// ======================================
package history

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"uusd-router/internal/amm"
	"uusd-router/internal/chain"
)

var testPoolAddr = common.HexToAddress("0x3333333333333333333333333333333333333333")

type stubChain struct {
	head      *types.Header
	headErr   error
	logs      []types.Log
	logsErr   error
	lastQuery ethereum.FilterQuery
}

var _ chain.Reader = (*stubChain)(nil)

func (s *stubChain) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x01}, nil
}

func (s *stubChain) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return nil, errors.New("not wired")
}

func (s *stubChain) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	if s.headErr != nil {
		return nil, s.headErr
	}
	return s.head, nil
}

func (s *stubChain) BlockNumber(ctx context.Context) (uint64, error) {
	return s.head.Number.Uint64(), nil
}

func (s *stubChain) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	s.lastQuery = q
	if s.logsErr != nil {
		return nil, s.logsErr
	}
	return s.logs, nil
}

// BatchCall answers header lookups with 12s block times.
func (s *stubChain) BatchCall(ctx context.Context, batch []rpc.BatchElem) error {
	for i := range batch {
		var tag string
		switch v := batch[i].Args[0].(type) {
		case string:
			tag = v
		default:
			return errors.New("unexpected batch arg")
		}
		n, ok := new(big.Int).SetString(tag[2:], 16)
		if !ok {
			return errors.New("bad block tag")
		}
		*(batch[i].Result.(**types.Header)) = &types.Header{
			Number: n,
			Time:   n.Uint64() * 12,
		}
	}
	return nil
}

func exchangeLog(topic common.Hash, block uint64, soldID int64, sold *big.Int, boughtID int64, bought *big.Int) types.Log {
	data := make([]byte, 0, 128)
	data = append(data, common.BigToHash(big.NewInt(soldID)).Bytes()...)
	data = append(data, common.BigToHash(sold).Bytes()...)
	data = append(data, common.BigToHash(big.NewInt(boughtID)).Bytes()...)
	data = append(data, common.BigToHash(bought).Bytes()...)
	return types.Log{
		Address:     testPoolAddr,
		Topics:      []common.Hash{topic, common.HexToHash("0x4444444444444444444444444444444444444444")},
		Data:        data,
		BlockNumber: block,
	}
}

func tokens(whole int64, extraMilli int64) *big.Int {
	v := new(big.Int).Mul(big.NewInt(whole*1000+extraMilli), big.NewInt(1_000_000_000_000_000))
	return v
}

func newEventFixture(t *testing.T, sc *stubChain) *SwapEventSource {
	t.Helper()
	quoter, err := amm.NewPoolQuoter(sc, testPoolAddr, 0, 1, zap.NewNop())
	require.NoError(t, err)
	return NewSwapEventSource(sc, quoter, 0, func(context.Context) (uint64, error) {
		return 1_000_000, nil
	}, nil, zap.NewNop())
}

func TestSwapEventSourceBuildsSeries(t *testing.T) {
	sc := &stubChain{head: &types.Header{Number: big.NewInt(7200), Time: 7200 * 12}}
	quoter, err := amm.NewPoolQuoter(sc, testPoolAddr, 0, 1, zap.NewNop())
	require.NoError(t, err)
	topic := quoter.ExchangeTopic()

	sc.logs = []types.Log{
		// Collateral in, dollar out: 1.01 LUSD for 1 UUSD.
		exchangeLog(topic, 7000, 1, tokens(1, 10), 0, tokens(1, 0)),
		// Dollar in, collateral out: 1 UUSD for 0.99 LUSD.
		exchangeLog(topic, 7100, 0, tokens(1, 0), 1, tokens(0, 990)),
	}
	src := NewSwapEventSource(sc, quoter, 0, func(context.Context) (uint64, error) {
		return 1_000_000, nil
	}, nil, zap.NewNop())

	points, err := src.Load(context.Background(), Config{MaxDataPoints: 50, TimeRangeHours: 1})
	require.NoError(t, err)

	require.Len(t, points, 2)
	require.Equal(t, uint64(7000), points[0].BlockNumber)
	require.Equal(t, uint64(1_010_000), points[0].PriceUsd)
	require.Equal(t, uint64(7000*12), points[0].Timestamp)
	require.Equal(t, uint64(7100), points[1].BlockNumber)
	require.Equal(t, uint64(990_000), points[1].PriceUsd)

	// The filter covers exactly the block window for the pool's
	// exchange topic.
	require.Equal(t, uint64(6900), sc.lastQuery.FromBlock.Uint64())
	require.Equal(t, uint64(7200), sc.lastQuery.ToBlock.Uint64())
	require.Equal(t, []common.Address{testPoolAddr}, sc.lastQuery.Addresses)
	require.Equal(t, topic, sc.lastQuery.Topics[0][0])
}

func TestSwapEventSourceInsufficientEvents(t *testing.T) {
	sc := &stubChain{head: &types.Header{Number: big.NewInt(7200)}}
	src := newEventFixture(t, sc)
	topic := src.pool.ExchangeTopic()

	t.Run("too few logs", func(t *testing.T) {
		sc.logs = []types.Log{
			exchangeLog(topic, 7000, 1, tokens(1, 0), 0, tokens(1, 0)),
		}
		_, err := src.Load(context.Background(), Config{MaxDataPoints: 10, TimeRangeHours: 1})
		require.ErrorIs(t, err, ErrInsufficientData)
	})

	t.Run("reorged logs do not count", func(t *testing.T) {
		removed := exchangeLog(topic, 7000, 1, tokens(1, 0), 0, tokens(1, 0))
		removed.Removed = true
		sc.logs = []types.Log{
			removed,
			exchangeLog(topic, 7100, 1, tokens(1, 0), 0, tokens(1, 0)),
		}
		_, err := src.Load(context.Background(), Config{MaxDataPoints: 10, TimeRangeHours: 1})
		require.ErrorIs(t, err, ErrInsufficientData)
	})

	t.Run("filter failure surfaces", func(t *testing.T) {
		sc.logs = nil
		sc.logsErr = errors.New("filter not supported")
		defer func() { sc.logsErr = nil }()
		_, err := src.Load(context.Background(), Config{MaxDataPoints: 10, TimeRangeHours: 1})
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrInsufficientData)
	})
}

func TestSwapEventSourceThinsToRequestedDensity(t *testing.T) {
	sc := &stubChain{head: &types.Header{Number: big.NewInt(7200)}}
	src := newEventFixture(t, sc)
	topic := src.pool.ExchangeTopic()

	for i := uint64(1); i <= 10; i++ {
		sc.logs = append(sc.logs,
			exchangeLog(topic, 7000+i, 1, tokens(1, int64(i)), 0, tokens(1, 0)))
	}

	points, err := src.Load(context.Background(), Config{MaxDataPoints: 3, TimeRangeHours: 1})
	require.NoError(t, err)

	require.Len(t, points, 3)
	require.Equal(t, uint64(7002), points[0].BlockNumber)
	require.Equal(t, uint64(7006), points[1].BlockNumber)
	// The newest swap is always kept.
	require.Equal(t, uint64(7010), points[2].BlockNumber)
}

func TestSwapEventSourceSkipsUndecodableLogs(t *testing.T) {
	sc := &stubChain{head: &types.Header{Number: big.NewInt(7200)}}
	src := newEventFixture(t, sc)
	topic := src.pool.ExchangeTopic()

	broken := exchangeLog(topic, 7050, 1, tokens(1, 0), 0, tokens(1, 0))
	broken.Data = broken.Data[:16]
	sc.logs = []types.Log{
		exchangeLog(topic, 7000, 1, tokens(1, 0), 0, tokens(1, 0)),
		broken,
		exchangeLog(topic, 7100, 1, tokens(1, 0), 0, tokens(1, 0)),
	}

	points, err := src.Load(context.Background(), Config{MaxDataPoints: 10, TimeRangeHours: 1})
	require.NoError(t, err)
	require.Len(t, points, 2)
	require.Equal(t, uint64(7000), points[0].BlockNumber)
	require.Equal(t, uint64(7100), points[1].BlockNumber)
}

func TestImpliedFromExchange(t *testing.T) {
	cases := []struct {
		name     string
		soldID   int64
		sold     *big.Int
		boughtID int64
		bought   *big.Int
		want     uint64
		wantErr  bool
	}{
		{"collateral into dollar", 1, tokens(1, 10), 0, tokens(1, 0), 1_010_000, false},
		{"dollar into collateral", 0, tokens(1, 0), 1, tokens(0, 990), 990_000, false},
		{"zero dollar leg", 1, tokens(1, 0), 0, big.NewInt(0), 0, true},
		{"zero collateral leg", 1, big.NewInt(0), 0, tokens(1, 0), 0, true},
		{"legs miss the dollar", 3, tokens(1, 0), 4, tokens(1, 0), 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ex := &amm.TokenExchange{
				SoldId:       big.NewInt(tc.soldID),
				TokensSold:   tc.sold,
				BoughtId:     big.NewInt(tc.boughtID),
				TokensBought: tc.bought,
			}
			got, err := impliedFromExchange(1_000_000, ex, 0)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}

	t.Run("price out of range", func(t *testing.T) {
		huge := new(big.Int).Lsh(big.NewInt(1), 200)
		ex := &amm.TokenExchange{
			SoldId:       big.NewInt(1),
			TokensSold:   huge,
			BoughtId:     big.NewInt(0),
			TokensBought: big.NewInt(1),
		}
		_, err := impliedFromExchange(1_000_000, ex, 0)
		require.Error(t, err)
	})
}
