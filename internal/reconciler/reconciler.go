// Package reconciler implements the stale-transaction reconciliation pass:
// it detects PongIssued exchanges that have not confirmed within a timeout
// and either bumps their fees or reissues them entirely.
package reconciler

import (
	"context"
	"time"

	"github.com/pingpongbot/pongbot/internal/exchange"
	"github.com/pingpongbot/pongbot/internal/gateway"
	"github.com/pingpongbot/pongbot/internal/pkg/logger"
)

// Reconciler reconciles stale pong transactions against mempool and fee
// estimate truth.
type Reconciler interface {
	// ProcessStalePongs is §4.E's processStalePongs: for every PongIssued
	// exchange older than the configured timeout, it checks the mempool
	// and either leaves it alone (already mined or fees still sufficient),
	// bumps its fees, or resubmits it from scratch.
	ProcessStalePongs(ctx context.Context) error
}

type reconciler struct {
	store        exchange.Store
	gateway      gateway.Gateway
	staleTimeout time.Duration
}

var _ Reconciler = (*reconciler)(nil)

// New builds a Reconciler over the given store and gateway. staleTimeout is
// STALE_PONG_TIMEOUT_MINUTES from configuration.
func New(store exchange.Store, gw gateway.Gateway, staleTimeout time.Duration) *reconciler {
	return &reconciler{
		store:        store,
		gateway:      gw,
		staleTimeout: staleTimeout,
	}
}

func (r *reconciler) ProcessStalePongs(ctx context.Context) error {
	stale, err := r.store.GetStalePongIssuedExchanges(ctx, time.Now().UTC(), r.staleTimeout)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	if err := r.gateway.RefreshFeeData(ctx); err != nil {
		return err
	}
	current, err := r.gateway.CurrentFeeData(ctx)
	if err != nil {
		return err
	}

	for _, ex := range stale {
		if err := r.processOne(ctx, ex, current); err != nil {
			return err
		}
	}

	return nil
}

// processOne handles a single stale PongIssued exchange, per §4.E's three
// mempool-search outcomes.
func (r *reconciler) processOne(ctx context.Context, ex exchange.Exchange, current gateway.FeeData) error {
	found, err := r.gateway.SearchMempoolTransaction(ctx, ex.PongHash)
	if err != nil {
		return err
	}

	if found == nil {
		return r.reissue(ctx, ex)
	}

	if found.Tx.BlockNumber != nil {
		// Mined already; the next processPongs pass will complete it.
		logger.Debug(ctx, "stale pong already mined, leaving for processPongs",
			"exchange.pingHash", ex.PingHash, "exchange.pongHash", ex.PongHash)
		return nil
	}

	return r.bump(ctx, ex, found.Tx, found.ProviderName, current)
}

// reissue resubmits a dropped pong from scratch, with a fresh nonce and
// timestamp.
func (r *reconciler) reissue(ctx context.Context, ex exchange.Exchange) error {
	logger.Warn(ctx, "stale pong not found in any provider mempool, reissuing",
		"exchange.pingHash", ex.PingHash, "exchange.pongHash", ex.PongHash)

	result, err := r.gateway.Pong(ctx, ex.PingHash, gateway.PongOptions{})
	if err != nil {
		return err
	}

	return r.store.PutPongIssued(ctx, exchange.PongIssuedFields{
		PingHash:  ex.PingHash,
		PingBlock: ex.PingBlock,
		PongHash:  result.TxHash,
		PongNonce: result.Nonce,
	})
}

// bump raises a pending pong's fees if the network estimate has moved on,
// and then restarts the stale timer. When the existing fees already meet
// the estimate it only logs; the record and its timestamp are left as is.
func (r *reconciler) bump(ctx context.Context, ex exchange.Exchange, staleTx gateway.Transaction, providerName string, current gateway.FeeData) error {
	bumped := CalculateBumpFees(staleTx.MaxFee, staleTx.PriorityFee, current.MaxFee, current.PriorityFee)
	if bumped == nil {
		logger.Debug(ctx, "stale pong fees already meet current estimate, leaving pending",
			"exchange.pingHash", ex.PingHash, "exchange.pongHash", ex.PongHash)
		return nil
	}

	if err := r.gateway.BumpTransactionFees(ctx, staleTx, gateway.FeeData{
		MaxFee:      bumped.MaxFee,
		PriorityFee: bumped.PriorityFee,
	}, providerName); err != nil {
		return err
	}

	now := time.Now().UTC()
	return r.store.PutPongIssued(ctx, exchange.PongIssuedFields{
		PingHash:      ex.PingHash,
		PingBlock:     ex.PingBlock,
		PongHash:      ex.PongHash,
		PongNonce:     derefOr(ex.PongNonce, 0),
		PongTimestamp: &now,
	})
}

func derefOr(p *uint64, def uint64) uint64 {
	if p == nil {
		return def
	}
	return *p
}
