// internal/chain/chain.go
package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

// Reader is the read-only chain surface the pricing engine consumes.
// CodeAt and CallContract satisfy bind.ContractCaller, so bound
// contracts route their view calls through the adapter and pick up its
// logging and metrics.
type Reader interface {
	// Code and contract calls (bind.ContractCaller).
	CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	// Headers and head tracking.
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	BlockNumber(ctx context.Context) (uint64, error)
	// Event log queries.
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	// One multiplexed JSON-RPC request; correlation by id is handled
	// by the rpc client, per-element errors stay on the elements.
	BatchCall(ctx context.Context, batch []rpc.BatchElem) error
}

// CallArg converts a CallMsg into the positional eth_call argument
// shape used when building raw batch elements.
func CallArg(msg ethereum.CallMsg) interface{} {
	arg := map[string]interface{}{
		"to":   msg.To,
		"data": hexutil.Bytes(msg.Data),
	}
	if msg.From != (common.Address{}) {
		arg["from"] = msg.From
	}
	if msg.Gas != 0 {
		arg["gas"] = hexutil.Uint64(msg.Gas)
	}
	if msg.Value != nil {
		arg["value"] = (*hexutil.Big)(msg.Value)
	}
	return arg
}

// BlockArg renders a block number for positional JSON-RPC params,
// "latest" when nil.
func BlockArg(number *big.Int) string {
	if number == nil {
		return "latest"
	}
	return hexutil.EncodeBig(number)
}
