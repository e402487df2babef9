package ethereum

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pingpongbot/pongbot/internal/gateway"
	"github.com/pingpongbot/pongbot/internal/pkg/types"
)

func hexBlock(n uint64) types.Hex {
	h, _ := types.HexFromString(fmt.Sprintf("0x%x", n))
	return h
}

// CurrentBlockHeight implements gateway.Gateway.
func (c *client) CurrentBlockHeight(ctx context.Context) (uint64, error) {
	data, err := c.primary().fetch(ctx, "eth_blockNumber")
	if err != nil {
		return 0, err
	}

	var h types.Hex
	if err := json.Unmarshal(data, &h); err != nil {
		return 0, err
	}
	return uint64(h.Int()), nil
}

func (c *client) getLogs(ctx context.Context, fromBlock, toBlock uint64, topic string) ([]logResponse, error) {
	filter := map[string]any{
		"address":   c.contractAddress.Hex(),
		"fromBlock": hexBlock(fromBlock),
		"toBlock":   hexBlock(toBlock),
		"topics":    []string{topic},
	}

	data, err := c.primary().fetch(ctx, "eth_getLogs", filter)
	if err != nil {
		return nil, err
	}

	var logs []logResponse
	return logs, json.Unmarshal(data, &logs)
}

// GetPings implements gateway.Gateway: Ping() carries no indexed data, so a
// ping's identity is its own transaction hash.
func (c *client) GetPings(ctx context.Context, fromBlock, toBlock uint64) ([]gateway.Ping, error) {
	logs, err := c.getLogs(ctx, fromBlock, toBlock, pingTopic.Hex())
	if err != nil {
		return nil, err
	}

	pings := make([]gateway.Ping, 0, len(logs))
	for _, l := range logs {
		pings = append(pings, gateway.Ping{
			TxHash:      l.TransactionHash,
			BlockNumber: uint64(l.BlockNumber.Int()),
		})
	}
	return pings, nil
}

// GetPongs implements gateway.Gateway: Pong(bytes32 pingHash) indexes its
// argument, so topics[1] decodes straight to the originating ping's
// transaction hash.
func (c *client) GetPongs(ctx context.Context, fromBlock, toBlock uint64) ([]gateway.Pong, error) {
	logs, err := c.getLogs(ctx, fromBlock, toBlock, pongTopic.Hex())
	if err != nil {
		return nil, err
	}

	pongs := make([]gateway.Pong, 0, len(logs))
	for _, l := range logs {
		if len(l.Topics) < 2 {
			continue
		}
		pongs = append(pongs, gateway.Pong{
			TxHash:      l.TransactionHash,
			BlockNumber: uint64(l.BlockNumber.Int()),
			PingHash:    l.Topics[1],
		})
	}
	return pongs, nil
}
