// Package runloop implements the outermost iterate-then-sleep loop: it
// reads the previous iteration and the chain head, asks the planner for the
// next iteration (or Skip), persists the plan, executes it, and marks it
// Completed — then sleeps for the configured cooldown before repeating.
// Shutdown is cooperative: Stop lets the in-flight iterate() finish before
// the loop exits.
package runloop

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pingpongbot/pongbot/internal/exchange"
	"github.com/pingpongbot/pongbot/internal/executor"
	"github.com/pingpongbot/pongbot/internal/gateway"
	"github.com/pingpongbot/pongbot/internal/pkg/logger"
	"github.com/pingpongbot/pongbot/internal/pkg/telemetry"
	"github.com/pingpongbot/pongbot/internal/planner"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrAlreadyStarted is returned by Start if called more than once on the
// same RunLoop without an intervening Stop.
var ErrAlreadyStarted = errors.New("run loop already started")

// RunLoop repeats iterate-then-sleep until shutdown, cooperating with a
// graceful stop request.
type RunLoop interface {
	// Start launches the loop in a background goroutine and returns
	// immediately. Returns ErrAlreadyStarted if already running.
	Start(ctx context.Context) error

	// Stop requests a graceful halt: the in-flight iterate() (if any)
	// finishes, then the loop exits instead of sleeping. Stop blocks until
	// the loop has fully exited or ctx is done, whichever comes first.
	Stop(ctx context.Context) error
}

type runLoop struct {
	store    exchange.Store
	gateway  gateway.Gateway
	executor executor.Executor
	params   planner.Params
	cooldown time.Duration

	mu        sync.Mutex
	isStarted bool
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

var _ RunLoop = (*runLoop)(nil)

// New builds a RunLoop. cooldown is COOLDOWN_PERIOD; params carries
// CONFIRMATION_BLOCKS, MAX_BLOCKS_BATCH_SIZE and STARTING_BLOCK for the
// planner.
func New(store exchange.Store, gw gateway.Gateway, exec executor.Executor, params planner.Params, cooldown time.Duration) *runLoop {
	return &runLoop{
		store:    store,
		gateway:  gw,
		executor: exec,
		params:   params,
		cooldown: cooldown,
	}
}

func (r *runLoop) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isStarted {
		return ErrAlreadyStarted
	}

	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.stopOnce = sync.Once{}
	r.isStarted = true

	go r.run(ctx)
	return nil
}

func (r *runLoop) Stop(ctx context.Context) error {
	r.mu.Lock()
	started := r.isStarted
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()

	if !started {
		return nil
	}

	r.stopOnce.Do(func() { close(stopCh) })

	select {
	case <-doneCh:
		r.mu.Lock()
		r.isStarted = false
		r.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *runLoop) run(ctx context.Context) {
	defer close(r.doneCh)

	for {
		r.iterate(ctx)

		select {
		case <-r.stopCh:
			return
		default:
		}

		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(r.cooldown):
		}
	}
}

// iterate is one tick: plan, persist as Started, execute, persist as
// Completed. Any failure aborts the tick. A failure before the Started write
// leaves the stored iteration as it was; a failure after it leaves the
// iteration Started, which is exactly the signal the planner needs next tick
// to enter recovery. Store errors are logged at error level and, like any
// other failure, end only this tick: the loop keeps running.
func (r *runLoop) iterate(ctx context.Context) {
	ctx, span := telemetry.Tracer().Start(ctx, "iteration")
	defer span.End()

	start := time.Now()
	outcome := "error"
	defer func() {
		r.recordOutcome(ctx, outcome, time.Since(start))
	}()

	previous, err := r.store.GetIteration(ctx)
	var previousPtr *exchange.Iteration
	switch {
	case err == nil:
		previousPtr = &previous
	case errors.Is(err, exchange.ErrNoIteration):
		previousPtr = nil
	default:
		logger.Error(ctx, "run loop: failed to read previous iteration", "error", err)
		return
	}

	head, err := r.gateway.CurrentBlockHeight(ctx)
	if err != nil {
		logger.Warn(ctx, "run loop: failed to read current block height, aborting tick", "error", err)
		return
	}

	next, skip := planner.Plan(previousPtr, head, r.params)
	if skip {
		outcome = "skip"
		logger.Debug(ctx, "run loop: nothing to do this tick", "head", head)
		return
	}

	if err := r.store.SetIteration(ctx, next); err != nil {
		logger.Error(ctx, "run loop: failed to persist iteration start, fatal", "error", err)
		return
	}

	if err := r.executor.Execute(ctx, next); err != nil {
		logger.Warn(ctx, "run loop: iteration aborted, recovering next tick",
			"iteration.type", next.Type, "iteration.toBlock", next.ToBlock, "error", err)
		return
	}

	if err := r.store.SetIteration(ctx, next.Completed()); err != nil {
		logger.Error(ctx, "run loop: failed to persist iteration completion, fatal", "error", err)
		return
	}

	outcome = "completed"
	logger.Info(ctx, "run loop: iteration completed",
		"iteration.type", next.Type, "iteration.toBlock", next.ToBlock, "duration", time.Since(start))
}

func (r *runLoop) recordOutcome(ctx context.Context, outcome string, d time.Duration) {
	counter, _ := telemetry.Meter().Int64Counter("pongbot.iterations.total")
	if counter != nil {
		counter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}

	hist, _ := telemetry.Meter().Float64Histogram("pongbot.iteration.duration")
	if hist != nil {
		hist.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}
