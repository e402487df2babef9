// Package executor implements the iteration executor: it dispatches the
// per-phase actions (process pings, process pongs, answer pending, reconcile
// stale, scan mempool) according to the iteration type the planner produced,
// in the fixed order each iteration type requires.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/pingpongbot/pongbot/internal/exchange"
	"github.com/pingpongbot/pongbot/internal/gateway"
	"github.com/pingpongbot/pongbot/internal/pkg/logger"
	"github.com/pingpongbot/pongbot/internal/pkg/telemetry"
	"github.com/pingpongbot/pongbot/internal/reconciler"
)

func phaseOutcomeAttrs(phase, outcome string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("phase", phase),
		attribute.String("outcome", outcome),
	}
}

// Executor runs the side-effecting phases of one iteration against the
// gateway and the store, per the dispatch table in package-level
// documentation. Every method aborts on the first error, leaving the
// iteration singleton in its Started state for the planner to notice on the
// next tick.
type Executor interface {
	// Execute runs every phase the iteration's Type requires, in order.
	Execute(ctx context.Context, it exchange.Iteration) error
}

type executor struct {
	store      exchange.Store
	gateway    gateway.Gateway
	reconciler reconciler.Reconciler
}

var _ Executor = (*executor)(nil)

// New builds an Executor over the given collaborators.
func New(store exchange.Store, gw gateway.Gateway, rec reconciler.Reconciler) *executor {
	return &executor{store: store, gateway: gw, reconciler: rec}
}

func (e *executor) Execute(ctx context.Context, it exchange.Iteration) error {
	switch it.Type {
	case exchange.TypeRecoveryStart:
		return e.phase(ctx, "mempool_scan", e.processMempool)

	case exchange.TypeNormal:
		from, to := *it.FromBlock, it.ToBlock
		return e.runChain(ctx,
			e.named("process_pongs", func(ctx context.Context) error { return e.processPongs(ctx, from, to, false) }),
			e.named("process_pings", func(ctx context.Context) error { return e.processPings(ctx, from, to) }),
			e.named("cleanup", e.cleanup),
			e.named("answer_pending_pings", e.answerPendingPings),
			e.named("process_stale_pongs", func(ctx context.Context) error { return e.reconciler.ProcessStalePongs(ctx) }),
		)

	case exchange.TypeRecovery:
		from, to := *it.FromBlock, it.ToBlock
		return e.runChain(ctx,
			e.named("process_pongs", func(ctx context.Context) error { return e.processPongs(ctx, from, to, true) }),
			e.named("process_pings", func(ctx context.Context) error { return e.processPings(ctx, from, to) }),
			e.named("cleanup", e.cleanup),
		)

	case exchange.TypeRecoveryEnd:
		return e.phase(ctx, "answer_pending_pings", e.answerPendingPings)

	default:
		return fmt.Errorf("executor: unknown iteration type %q", it.Type)
	}
}

type namedPhase struct {
	name string
	run  func(ctx context.Context) error
}

func (e *executor) named(name string, run func(ctx context.Context) error) namedPhase {
	return namedPhase{name: name, run: run}
}

// runChain executes phases in order, aborting on the first failure. Phase
// order is the correctness-critical part of the dispatch table: pongs are
// always observed before pings, so a pong's Completed promotion happens
// before the same block's ping is re-examined.
func (e *executor) runChain(ctx context.Context, phases ...namedPhase) error {
	for _, p := range phases {
		if err := e.phase(ctx, p.name, p.run); err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}
	}
	return nil
}

func (e *executor) phase(ctx context.Context, name string, run func(ctx context.Context) error) error {
	ctx, span := telemetry.Tracer().Start(ctx, "iteration."+name)
	defer span.End()

	counter, _ := telemetry.Meter().Int64Counter("pongbot.phase.outcome")

	err := run(ctx)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if counter != nil {
		counter.Add(ctx, 1, metric.WithAttributes(phaseOutcomeAttrs(name, outcome)...))
	}

	return err
}

// processPongs implements spec §4.D.i. In normal mode it only promotes an
// exchange to Completed when the stored record is PongIssued with a
// matching pongHash; every other observation belongs to another
// participant or is a stale duplicate and is logged, not acted on. In
// recovery mode sender identity (not storage) is the authoritative signal,
// since storage may have been wiped.
func (e *executor) processPongs(ctx context.Context, from, to uint64, recovery bool) error {
	pongs, err := e.gateway.GetPongs(ctx, from, to)
	if err != nil {
		return err
	}

	if recovery {
		return e.processPongsRecovery(ctx, pongs)
	}
	return e.processPongsNormal(ctx, pongs)
}

func (e *executor) processPongsNormal(ctx context.Context, pongs []gateway.Pong) error {
	for _, p := range pongs {
		ex, err := e.store.GetExchange(ctx, p.PingHash)
		if err != nil {
			if errors.Is(err, exchange.ErrExchangeNotFound) {
				logger.Debug(ctx, "pong observed for unknown ping, ignoring",
					"pong.txHash", p.TxHash, "pong.pingHash", p.PingHash)
				continue
			}
			return err
		}

		if ex.State != exchange.StatePongIssued || ex.PongHash != p.TxHash {
			logger.Debug(ctx, "pong observed does not match our pending record, ignoring",
				"pong.txHash", p.TxHash, "pong.pingHash", p.PingHash, "exchange.state", ex.State)
			continue
		}

		if err := e.store.PutCompletedExchange(ctx, exchange.CompletedFields{
			PingHash:      ex.PingHash,
			PingBlock:     ex.PingBlock,
			PongHash:      p.TxHash,
			PongBlock:     p.BlockNumber,
			PongNonce:     ex.PongNonce,
			PongTimestamp: ex.PongTimestamp,
		}); err != nil {
			return err
		}
	}

	return nil
}

func (e *executor) processPongsRecovery(ctx context.Context, pongs []gateway.Pong) error {
	wallet, err := e.gateway.WalletAddress(ctx)
	if err != nil {
		return err
	}

	for _, p := range pongs {
		tx, err := e.gateway.GetTransaction(ctx, p.TxHash)
		if err != nil {
			// Loud: a pong log whose transaction can't be retrieved is a
			// semantic violation, per spec §7. Abort the iteration.
			return fmt.Errorf("recovery: fetching transaction for pong %s: %w", p.TxHash, err)
		}

		if !strings.EqualFold(tx.From, wallet) {
			logger.Debug(ctx, "recovery: pong from another wallet, ignoring",
				"pong.txHash", p.TxHash, "pong.pingHash", p.PingHash, "tx.from", tx.From)
			continue
		}

		existing, err := e.store.GetExchange(ctx, p.PingHash)
		var pingBlock *uint64
		var pongTimestamp = existing.PongTimestamp
		switch {
		case err == nil:
			pingBlock = existing.PingBlock
		case errors.Is(err, exchange.ErrExchangeNotFound):
			pingBlock, pongTimestamp = nil, nil
		default:
			return err
		}

		nonce := tx.Nonce
		if err := e.store.PutCompletedExchange(ctx, exchange.CompletedFields{
			PingHash:      p.PingHash,
			PingBlock:     pingBlock,
			PongHash:      p.TxHash,
			PongBlock:     p.BlockNumber,
			PongNonce:     &nonce,
			PongTimestamp: pongTimestamp,
		}); err != nil {
			return err
		}
	}

	return nil
}

// processPings implements spec §4.D.ii: idempotent detection of newly
// observed Ping logs.
func (e *executor) processPings(ctx context.Context, from, to uint64) error {
	pings, err := e.gateway.GetPings(ctx, from, to)
	if err != nil {
		return err
	}

	for _, p := range pings {
		_, err := e.store.GetExchange(ctx, p.TxHash)
		if err == nil {
			continue
		}
		if !errors.Is(err, exchange.ErrExchangeNotFound) {
			return err
		}

		if err := e.store.PutPingDetected(ctx, p.TxHash, p.BlockNumber); err != nil {
			return err
		}
	}

	return nil
}

// cleanup implements spec §4.D.iii: delete all Completed exchanges. Bounded
// because pongs only become Completed CONFIRMATION_BLOCKS behind head.
func (e *executor) cleanup(ctx context.Context) error {
	removed, err := e.store.RemoveCompletedExchanges(ctx)
	if err != nil {
		return err
	}
	if len(removed) > 0 {
		logger.Debug(ctx, "cleaned up completed exchanges", "count", len(removed))
	}
	return nil
}

// answerPendingPings implements spec §4.D.iv: submit one pong per pending
// Detected exchange, persisting each submission before issuing the next so
// a crash leaves at most one submitted-but-unstored pong.
func (e *executor) answerPendingPings(ctx context.Context) error {
	pending, err := e.store.GetPingDetectedExchanges(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	nonce, err := e.gateway.WalletNonce(ctx)
	if err != nil {
		return err
	}

	for _, ex := range pending {
		result, err := e.gateway.Pong(ctx, ex.PingHash, gateway.PongOptions{Nonce: &nonce})
		if err != nil {
			return err
		}

		if err := e.store.PutPongIssued(ctx, exchange.PongIssuedFields{
			PingHash:  ex.PingHash,
			PingBlock: ex.PingBlock,
			PongHash:  result.TxHash,
			PongNonce: result.Nonce,
		}); err != nil {
			return err
		}

		nonce++
	}

	return nil
}

// processMempool implements spec §4.D.v: the recovery mempool scan that
// lets a freshly-reinitialized bot rediscover pongs it had in flight.
func (e *executor) processMempool(ctx context.Context) error {
	found, err := e.gateway.ScanMyMempoolPongs(ctx)
	if err != nil {
		return err
	}

	for _, mp := range found {
		pingBlock := mp.PingBlock
		if err := e.store.PutPongIssued(ctx, exchange.PongIssuedFields{
			PingHash:  mp.PingHash,
			PingBlock: &pingBlock,
			PongHash:  mp.PongHash,
			PongNonce: mp.PongNonce,
		}); err != nil {
			return err
		}
	}

	return nil
}
