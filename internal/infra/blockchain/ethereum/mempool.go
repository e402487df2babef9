package ethereum

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pingpongbot/pongbot/internal/gateway"
	"github.com/pingpongbot/pongbot/internal/pkg/logger"
	"github.com/pingpongbot/pongbot/internal/pkg/types"
)

// SearchMempoolTransaction implements gateway.Gateway: fans the lookup out
// across every configured provider concurrently and merges with
// first-writer-wins, since providers naturally disagree about what they
// have seen (spec.md §9).
func (c *client) SearchMempoolTransaction(ctx context.Context, txHash string) (*gateway.MempoolTransaction, error) {
	type result struct {
		provider string
		tx       *gateway.Transaction
		err      error
	}

	results := make([]result, len(c.providers))
	var wg sync.WaitGroup
	for i, p := range c.providers {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()

			data, err := p.fetch(ctx, "eth_getTransactionByHash", txHash)
			if err != nil {
				results[i] = result{provider: p.name, err: err}
				return
			}
			if string(data) == "null" {
				results[i] = result{provider: p.name}
				return
			}

			var raw transactionResponse
			if err := json.Unmarshal(data, &raw); err != nil {
				results[i] = result{provider: p.name, err: err}
				return
			}
			tx, err := c.toGatewayTransaction(raw)
			if err != nil {
				results[i] = result{provider: p.name, err: err}
				return
			}
			results[i] = result{provider: p.name, tx: &tx}
		}(i, p)
	}
	wg.Wait()

	var winner *gateway.MempoolTransaction
	for _, r := range results {
		if r.err != nil {
			logger.Debug(ctx, "mempool search: provider error, ignoring", "provider", r.provider, "error", r.err)
			continue
		}
		if r.tx == nil {
			continue
		}
		if winner == nil {
			winner = &gateway.MempoolTransaction{ProviderName: r.provider, Tx: *r.tx}
			continue
		}
		if winner.Tx.Hash != r.tx.Hash || !feeEqual(winner.Tx, *r.tx) {
			logger.Warn(ctx, "mempool search: providers disagree, keeping first writer",
				"txHash", txHash, "winner.provider", winner.ProviderName, "other.provider", r.provider)
		}
	}

	return winner, nil
}

func feeEqual(a, b gateway.Transaction) bool {
	return a.MaxFee.Cmp(b.MaxFee) == 0 && a.PriorityFee.Cmp(b.PriorityFee) == 0
}

// ScanMyMempoolPongs implements gateway.Gateway: sweeps every configured
// provider's pending block for transactions from our wallet, to our
// contract, carrying our pong selector, merging with first-writer-wins.
func (c *client) ScanMyMempoolPongs(ctx context.Context) ([]gateway.MempoolPong, error) {
	type result struct {
		provider string
		pongs    []gateway.MempoolPong
		err      error
	}

	results := make([]result, len(c.providers))
	var wg sync.WaitGroup
	for i, p := range c.providers {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()

			data, err := p.fetch(ctx, "eth_getBlockByNumber", "pending", true)
			if err != nil {
				results[i] = result{provider: p.name, err: err}
				return
			}

			var blk blockResponse
			if err := json.Unmarshal(data, &blk); err != nil {
				results[i] = result{provider: p.name, err: err}
				return
			}

			var pongs []gateway.MempoolPong
			for _, tx := range blk.Transactions {
				if !c.isOwnPong(tx) {
					continue
				}
				data := common.FromHex(tx.Input)
				pingHash := common.BytesToHash(data[len(pongSelector):]).Hex()

				// The pending pong's call data only carries the ping hash,
				// not the block it was mined in; the ping transaction is
				// itself findable by that same hash (GetPings identifies a
				// ping by its own transaction hash).
				pingBlock, err := c.pingBlockNumber(ctx, pingHash)
				if err != nil {
					logger.Debug(ctx, "mempool scan: could not resolve ping block, recording 0",
						"provider", p.name, "pingHash", pingHash, "error", err)
				}

				pongs = append(pongs, gateway.MempoolPong{
					PingHash:  pingHash,
					PingBlock: pingBlock,
					PongHash:  tx.Hash,
					PongNonce: uint64(tx.Nonce.Int()),
				})
			}
			results[i] = result{provider: p.name, pongs: pongs}
		}(i, p)
	}
	wg.Wait()

	seen := types.NewSet[string]()
	var merged []gateway.MempoolPong
	for _, r := range results {
		if r.err != nil {
			logger.Debug(ctx, "mempool scan: provider error, ignoring", "provider", r.provider, "error", r.err)
			continue
		}
		for _, p := range r.pongs {
			if _, ok := seen[p.PongHash]; ok {
				continue
			}
			seen.Add(p.PongHash)
			merged = append(merged, p)
		}
	}

	return merged, nil
}

// pingBlockNumber looks up the block number the ping transaction (our own
// pong's call data argument) was mined in. Returns 0 if the ping cannot be
// found (e.g. the node has pruned it); the caller treats 0 as "unknown"
// rather than failing the whole scan over one unresolved ping.
func (c *client) pingBlockNumber(ctx context.Context, pingHash string) (uint64, error) {
	tx, err := c.GetTransaction(ctx, pingHash)
	if err != nil {
		return 0, err
	}
	if tx.BlockNumber == nil {
		return 0, nil
	}
	return *tx.BlockNumber, nil
}

func (c *client) isOwnPong(tx transactionResponse) bool {
	data := common.FromHex(tx.Input)
	return common.HexToAddress(tx.From) == c.walletAddress &&
		common.HexToAddress(tx.To) == c.contractAddress &&
		len(data) >= len(pongSelector)+32 &&
		bytes.Equal(data[:len(pongSelector)], pongSelector)
}
