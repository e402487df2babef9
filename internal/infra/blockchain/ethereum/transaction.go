package ethereum

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/pingpongbot/pongbot/internal/gateway"
	hextype "github.com/pingpongbot/pongbot/internal/pkg/types"
)

// hexToFee parses a 0x-prefixed hex quantity into a gateway.FeeAmount,
// treating an absent value as zero.
func hexToFee(h *hextype.Hex) (*gateway.FeeAmount, error) {
	if h == nil {
		return gateway.FeeAmountFromUint64(0), nil
	}
	n := new(uint256.Int)
	if err := n.SetFromHex(string(*h)); err != nil {
		return nil, fmt.Errorf("ethereum: parsing fee quantity %q: %w", *h, err)
	}
	return gateway.NewFeeAmount(n), nil
}

// FetchChainID queries eth_chainId through conn, for bootstrap use before
// constructing a client (the signer needs the chain ID up front).
func FetchChainID(ctx context.Context, conn interface {
	Fetch(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}) (uint64, error) {
	data, err := conn.Fetch(ctx, "eth_chainId")
	if err != nil {
		return 0, err
	}
	var h hextype.Hex
	if err := json.Unmarshal(data, &h); err != nil {
		return 0, err
	}
	return uint64(h.Int()), nil
}

// WalletAddress implements gateway.Gateway.
func (c *client) WalletAddress(ctx context.Context) (string, error) {
	return c.walletAddress.Hex(), nil
}

// WalletNonce implements gateway.Gateway: the next nonce, including
// transactions still pending in the mempool.
func (c *client) WalletNonce(ctx context.Context) (uint64, error) {
	data, err := c.primary().fetch(ctx, "eth_getTransactionCount", c.walletAddress.Hex(), "pending")
	if err != nil {
		return 0, err
	}
	var h hextype.Hex
	if err := json.Unmarshal(data, &h); err != nil {
		return 0, err
	}
	return uint64(h.Int()), nil
}

// GetTransaction implements gateway.Gateway.
func (c *client) GetTransaction(ctx context.Context, txHash string) (gateway.Transaction, error) {
	data, err := c.primary().fetch(ctx, "eth_getTransactionByHash", txHash)
	if err != nil {
		return gateway.Transaction{}, err
	}
	if string(data) == "null" {
		return gateway.Transaction{}, gateway.ErrTransactionNotFound
	}

	var tx transactionResponse
	if err := json.Unmarshal(data, &tx); err != nil {
		return gateway.Transaction{}, err
	}
	return c.toGatewayTransaction(tx)
}

func (c *client) toGatewayTransaction(tx transactionResponse) (gateway.Transaction, error) {
	maxFee, err := hexToFee(tx.MaxFeePerGas)
	if err != nil {
		return gateway.Transaction{}, err
	}
	if tx.MaxFeePerGas == nil && tx.GasPrice != nil {
		// Legacy transaction: gasPrice stands in for both fee fields.
		if maxFee, err = hexToFee(tx.GasPrice); err != nil {
			return gateway.Transaction{}, err
		}
	}
	priorityFee, err := hexToFee(tx.MaxPriorityFeePerGas)
	if err != nil {
		return gateway.Transaction{}, err
	}

	var blockNumber *uint64
	if tx.BlockNumber != nil {
		n := uint64(tx.BlockNumber.Int())
		blockNumber = &n
	}

	data := common.FromHex(tx.Input)

	return gateway.Transaction{
		Hash:        tx.Hash,
		From:        tx.From,
		Nonce:       uint64(tx.Nonce.Int()),
		MaxFee:      maxFee,
		PriorityFee: priorityFee,
		BlockNumber: blockNumber,
		Data:        data,
	}, nil
}

// RefreshFeeData implements gateway.Gateway: estimates EIP-1559 fees from
// the latest block's base fee plus the node's priority-fee suggestion.
func (c *client) RefreshFeeData(ctx context.Context) error {
	baseFeeData, err := c.primary().fetch(ctx, "eth_getBlockByNumber", "latest", false)
	if err != nil {
		return err
	}
	var blk blockResponse
	if err := json.Unmarshal(baseFeeData, &blk); err != nil {
		return err
	}
	baseFee, err := hexToFee(blk.BaseFeePerGas)
	if err != nil {
		return err
	}

	priorityData, err := c.primary().fetch(ctx, "eth_maxPriorityFeePerGas")
	if err != nil {
		return err
	}
	var priorityHex hextype.Hex
	if err := json.Unmarshal(priorityData, &priorityHex); err != nil {
		return err
	}
	priorityFee, err := hexToFee(&priorityHex)
	if err != nil {
		return err
	}

	// maxFee = 2*baseFee + priorityFee, the standard headroom heuristic.
	maxFee := new(uint256.Int).Mul(baseFee.Int(), uint256.NewInt(2))
	maxFee.Add(maxFee, priorityFee.Int())

	c.feeMu.Lock()
	c.feeData = gateway.FeeData{
		MaxFee:      gateway.NewFeeAmount(maxFee),
		PriorityFee: priorityFee,
	}
	c.feeMu.Unlock()
	return nil
}

// CurrentFeeData implements gateway.Gateway.
func (c *client) CurrentFeeData(ctx context.Context) (gateway.FeeData, error) {
	c.feeMu.RLock()
	defer c.feeMu.RUnlock()
	if c.feeData.MaxFee == nil {
		return gateway.FeeData{}, fmt.Errorf("ethereum: fee data not yet initialized, call RefreshFeeData first")
	}
	return c.feeData, nil
}

// pongCallData builds the call data for pong(bytes32 pingHash): the
// selector followed by the 32-byte ping hash, unpadded since it is already
// exactly 32 bytes.
func pongCallData(pingHash string) ([]byte, error) {
	h := common.HexToHash(pingHash)
	data := make([]byte, 0, len(pongSelector)+len(h))
	data = append(data, pongSelector...)
	data = append(data, h.Bytes()...)
	return data, nil
}

// Pong implements gateway.Gateway: builds, signs and submits a
// pong(pingHash) transaction using the cached fee estimate.
func (c *client) Pong(ctx context.Context, pingHash string, opts gateway.PongOptions) (gateway.PongResult, error) {
	fees, err := c.CurrentFeeData(ctx)
	if err != nil {
		return gateway.PongResult{}, err
	}

	nonce := opts.Nonce
	if nonce == nil {
		n, err := c.WalletNonce(ctx)
		if err != nil {
			return gateway.PongResult{}, err
		}
		nonce = &n
	}

	callData, err := pongCallData(pingHash)
	if err != nil {
		return gateway.PongResult{}, err
	}

	txHash, err := c.signAndSend(ctx, *nonce, callData, fees)
	if err != nil {
		return gateway.PongResult{}, err
	}

	return gateway.PongResult{TxHash: txHash, Nonce: *nonce}, nil
}

// BumpTransactionFees implements gateway.Gateway: resubmits stale with the
// same nonce, call data and replacement fees, through the provider that
// originally reported it so the replacement lands in the same mempool view.
func (c *client) BumpTransactionFees(ctx context.Context, stale gateway.Transaction, newFees gateway.FeeData, providerName string) error {
	p := c.providerByName(providerName)
	_, err := c.signAndSendVia(ctx, p, stale.Nonce, stale.Data, newFees)
	return err
}

func (c *client) providerByName(name string) Provider {
	for _, p := range c.providers {
		if p.name == name {
			return p
		}
	}
	return c.primary()
}

func (c *client) signAndSend(ctx context.Context, nonce uint64, callData []byte, fees gateway.FeeData) (string, error) {
	return c.signAndSendVia(ctx, c.primary(), nonce, callData, fees)
}

func (c *client) signAndSendVia(ctx context.Context, p Provider, nonce uint64, callData []byte, fees gateway.FeeData) (string, error) {
	txdata := &types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: fees.PriorityFee.Int().ToBig(),
		GasFeeCap: fees.MaxFee.Int().ToBig(),
		Gas:       100_000,
		To:        &c.contractAddress,
		Value:     big.NewInt(0),
		Data:      callData,
	}

	signed, err := types.SignNewTx(c.privateKey, c.signer, txdata)
	if err != nil {
		return "", fmt.Errorf("ethereum: signing pong transaction: %w", err)
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return "", err
	}

	data, err := p.fetch(ctx, "eth_sendRawTransaction", "0x"+common.Bytes2Hex(raw))
	if err != nil {
		return "", err
	}

	var txHash string
	if err := json.Unmarshal(data, &txHash); err != nil {
		return "", err
	}
	return txHash, nil
}
