// Package gateway defines the abstract contract the core consumes to talk
// to the chain: fetching finalized logs, inspecting pending transactions,
// estimating fees, and submitting and replacing pongs. Concrete
// implementations (see internal/infra/blockchain/ethereum) own their RPC
// clients, signer and rate limiter; the core only ever sees this interface.
package gateway

import (
	"context"
)

// Ping is a finalized Ping() log record.
type Ping struct {
	TxHash      string
	BlockNumber uint64
}

// Pong is a finalized Pong(bytes32) log record.
type Pong struct {
	TxHash      string
	BlockNumber uint64
	PingHash    string
}

// Transaction is the subset of an on-chain or pending transaction the core
// needs: its sender, nonce, fee fields and, if mined, its block number.
type Transaction struct {
	Hash        string
	From        string
	Nonce       uint64
	MaxFee      *FeeAmount
	PriorityFee *FeeAmount
	BlockNumber *uint64 // nil while pending
	// Data is the transaction's call data, carried along so
	// BumpTransactionFees can resubmit the exact same call with replacement
	// fees without needing to re-derive it.
	Data []byte
}

// FeeData is a cached EIP-1559 fee estimate.
type FeeData struct {
	MaxFee      *FeeAmount
	PriorityFee *FeeAmount
}

// PongOptions customizes a single pong submission.
type PongOptions struct {
	// Nonce, when non-nil, pins the transaction's nonce instead of letting
	// the gateway fetch a fresh one from the wallet provider.
	Nonce *uint64
}

// PongResult is the outcome of a successful pong submission. Nonce is
// always populated, whether it came from PongOptions.Nonce or was fetched
// fresh from the wallet provider.
type PongResult struct {
	TxHash string
	Nonce  uint64
}

// MempoolTransaction is a transaction observed in a provider's pending
// transaction pool, annotated with the provider that reported it.
type MempoolTransaction struct {
	ProviderName string
	Tx           Transaction
}

// MempoolPong is a self-originated pong discovered via a mempool sweep,
// before it has been recorded in the exchange store.
type MempoolPong struct {
	PingHash  string
	PingBlock uint64
	PongHash  string
	PongNonce uint64
}

// Gateway is the chain collaborator the core requires. Every method may
// fail; failure is the signal the executor uses to abort the current
// iteration (see internal/executor) and let recovery reconcile afterwards.
type Gateway interface {
	// CurrentBlockHeight returns the chain's current head height.
	CurrentBlockHeight(ctx context.Context) (uint64, error)

	// GetPings returns finalized Ping() logs in the inclusive block range.
	GetPings(ctx context.Context, fromBlock, toBlock uint64) ([]Ping, error)

	// GetPongs returns finalized Pong(bytes32) logs in the inclusive block
	// range.
	GetPongs(ctx context.Context, fromBlock, toBlock uint64) ([]Pong, error)

	// GetTransaction returns the full transaction for txHash, or
	// ErrTransactionNotFound if it is not known to any configured provider.
	GetTransaction(ctx context.Context, txHash string) (Transaction, error)

	// WalletAddress returns the bot's own wallet address.
	WalletAddress(ctx context.Context) (string, error)

	// WalletNonce returns the next nonce the wallet will use.
	WalletNonce(ctx context.Context) (uint64, error)

	// RefreshFeeData re-estimates and caches the current EIP-1559 fee data.
	RefreshFeeData(ctx context.Context) error

	// CurrentFeeData returns the most recently cached fee estimate.
	CurrentFeeData(ctx context.Context) (FeeData, error)

	// Pong submits a pong(pingHash) transaction using the cached fee data.
	Pong(ctx context.Context, pingHash string, opts PongOptions) (PongResult, error)

	// SearchMempoolTransaction polls each configured provider's mempool
	// view for txHash. It returns nil, nil if no provider reports it.
	SearchMempoolTransaction(ctx context.Context, txHash string) (*MempoolTransaction, error)

	// BumpTransactionFees replaces a pending transaction with the same
	// nonce and newFees, resubmitted through the provider that originally
	// reported it.
	BumpTransactionFees(ctx context.Context, stale Transaction, newFees FeeData, providerName string) error

	// ScanMyMempoolPongs sweeps every configured provider's pending block
	// for pongs from our wallet, to our contract, with our pong selector.
	ScanMyMempoolPongs(ctx context.Context) ([]MempoolPong, error)
}
