package exchange

import (
	"context"
	"errors"
	"time"
)

// ErrExchangeNotFound is returned by GetExchange when no record exists for
// the requested pingHash.
var ErrExchangeNotFound = errors.New("exchange not found")

// ErrNoIteration is returned by GetIteration when no iteration has ever been
// written, i.e. the bot has never begun a cold start.
var ErrNoIteration = errors.New("no iteration recorded")

// Store is the durable, crash-safe key/value store of exchange records and
// the last iteration descriptor. Implementations must make each individual
// Put* call durable before returning, so that a successful pong submission
// can be immediately followed by a durable PutPongIssued before the next RPC
// side effect that depends on it.
type Store interface {
	// GetIteration returns the current iteration singleton, or
	// ErrNoIteration if none has ever been written.
	GetIteration(ctx context.Context) (Iteration, error)

	// SetIteration overwrites the iteration singleton.
	SetIteration(ctx context.Context, it Iteration) error

	// GetExchange returns the exchange record for pingHash, or
	// ErrExchangeNotFound if none exists.
	GetExchange(ctx context.Context, pingHash string) (Exchange, error)

	// PutPingDetected writes a Detected record for pingHash. It is a no-op
	// if a record already exists in any state — detection is idempotent
	// and must never downgrade an existing PongIssued or Completed record.
	PutPingDetected(ctx context.Context, pingHash string, pingBlock uint64) error

	// PutPongIssued writes a PongIssued record, overwriting any existing
	// Detected or PongIssued record for the same pingHash. It refuses to
	// overwrite an existing Completed record, since Completed is terminal.
	PutPongIssued(ctx context.Context, f PongIssuedFields) error

	// PutCompletedExchange writes a Completed record, overwriting whatever
	// was there before (Detected, PongIssued, absent, or an identical
	// Completed record from a prior run of the same phase).
	PutCompletedExchange(ctx context.Context, f CompletedFields) error

	// GetPingDetectedExchanges returns all Detected exchanges in key order.
	GetPingDetectedExchanges(ctx context.Context) ([]Exchange, error)

	// GetStalePongIssuedExchanges returns all PongIssued exchanges whose
	// PongTimestamp is at least staleTimeout behind now, in key order.
	GetStalePongIssuedExchanges(ctx context.Context, now time.Time, staleTimeout time.Duration) ([]Exchange, error)

	// RemoveCompletedExchanges deletes every Completed exchange atomically
	// and returns what was removed.
	RemoveCompletedExchanges(ctx context.Context) ([]Exchange, error)

	// Close flushes and releases the store handle. It is safe to call more
	// than once; calls after the first successful Close are no-ops.
	Close() error
}
