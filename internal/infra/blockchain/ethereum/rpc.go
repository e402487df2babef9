package ethereum

import (
	"context"
	"encoding/json"

	"github.com/pingpongbot/pongbot/internal/pkg/types"
)

// fetch waits for p's rate limiter slot, then issues the JSON-RPC call,
// retrying a bounded number of times on transient failure. The limiter is
// waited on once per fetch; retry attempts inside it do not wait again.
// Every RPC made through a Provider goes through fetch; FetchChainID, run
// once at bootstrap on a bare connection, does not.
func (p Provider) fetch(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var result json.RawMessage
	err := p.retrier.Execute(ctx, func() error {
		data, err := p.conn.Fetch(ctx, method, params...)
		if err != nil {
			return err
		}
		result = data
		return nil
	})
	return result, err
}

// logResponse is an eth_getLogs entry.
type logResponse struct {
	Address         string    `json:"address"`
	Topics          []string  `json:"topics"`
	Data            string    `json:"data"`
	TransactionHash string    `json:"transactionHash"`
	BlockNumber     types.Hex `json:"blockNumber"`
}

// transactionResponse is an eth_getTransactionByHash / pending-block entry.
type transactionResponse struct {
	Hash                 string     `json:"hash"`
	From                 string     `json:"from"`
	To                   string     `json:"to"`
	Nonce                types.Hex  `json:"nonce"`
	Input                string     `json:"input"`
	MaxFeePerGas         *types.Hex `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *types.Hex `json:"maxPriorityFeePerGas"`
	GasPrice             *types.Hex `json:"gasPrice"`
	BlockNumber          *types.Hex `json:"blockNumber"`
}

// blockResponse is the subset of eth_getBlockByNumber used for fee
// estimation (fullTx=false) and for the mempool sweep (fullTx=true).
type blockResponse struct {
	BaseFeePerGas *types.Hex            `json:"baseFeePerGas"`
	Transactions  []transactionResponse `json:"transactions"`
}

// receiptResponse is the subset of eth_getTransactionReceipt used to learn
// whether a transaction has been mined.
type receiptResponse struct {
	BlockNumber types.Hex `json:"blockNumber"`
}
