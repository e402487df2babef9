// Package pebble implements exchange.Store over an embedded, ordered
// key/value engine (cockroachdb/pebble). It is the concrete storage engine
// named in the system's external interfaces: an on-disk database rooted at
// "${DATA_PATH}/db", one singleton key for the current iteration and one
// key per exchange record under a flat prefix.
package pebble

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/pingpongbot/pongbot/internal/exchange"

	"github.com/cockroachdb/pebble"
)

const (
	iterationKey   = "iteration"
	exchangePrefix = "exchange/"
)

// client is a pebble-backed implementation of exchange.Store.
type client struct {
	mu     sync.Mutex
	db     *pebble.DB
	closed bool
}

var _ exchange.Store = (*client)(nil)

// Open opens (creating if absent) the pebble database at dir and returns an
// exchange.Store backed by it.
func Open(dir string) (*client, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}

	return &client{db: db}, nil
}

func exchangeKey(pingHash string) []byte {
	return append([]byte(exchangePrefix), []byte(pingHash)...)
}

// exchangePrefixBounds returns the [lower, upper) byte range covering every
// key under exchangePrefix, for prefix-bounded iteration.
func exchangePrefixBounds() (lower, upper []byte) {
	lower = []byte(exchangePrefix)
	upper = append([]byte{}, lower...)
	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return lower, upper
		}
		upper = upper[:i]
	}
	return lower, nil
}

func (c *client) GetIteration(ctx context.Context) (exchange.Iteration, error) {
	val, closer, err := c.db.Get([]byte(iterationKey))
	if errors.Is(err, pebble.ErrNotFound) {
		return exchange.Iteration{}, exchange.ErrNoIteration
	}
	if err != nil {
		return exchange.Iteration{}, err
	}
	defer closer.Close()

	var it exchange.Iteration
	if err := json.Unmarshal(val, &it); err != nil {
		return exchange.Iteration{}, err
	}

	return it, nil
}

func (c *client) SetIteration(ctx context.Context, it exchange.Iteration) error {
	data, err := json.Marshal(it)
	if err != nil {
		return err
	}

	return c.db.Set([]byte(iterationKey), data, pebble.Sync)
}

func (c *client) getExchangeLocked(pingHash string) (exchange.Exchange, error) {
	val, closer, err := c.db.Get(exchangeKey(pingHash))
	if errors.Is(err, pebble.ErrNotFound) {
		return exchange.Exchange{}, exchange.ErrExchangeNotFound
	}
	if err != nil {
		return exchange.Exchange{}, err
	}
	defer closer.Close()

	var e exchange.Exchange
	if err := json.Unmarshal(val, &e); err != nil {
		return exchange.Exchange{}, err
	}

	return e, nil
}

func (c *client) GetExchange(ctx context.Context, pingHash string) (exchange.Exchange, error) {
	return c.getExchangeLocked(pingHash)
}

func (c *client) putExchange(e exchange.Exchange) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	return c.db.Set(exchangeKey(e.PingHash), data, pebble.Sync)
}

func (c *client) PutPingDetected(ctx context.Context, pingHash string, pingBlock uint64) error {
	if _, err := c.getExchangeLocked(pingHash); err == nil {
		// A record already exists in some state; detection never downgrades it.
		return nil
	} else if !errors.Is(err, exchange.ErrExchangeNotFound) {
		return err
	}

	e, err := exchange.NewDetected(pingHash, pingBlock)
	if err != nil {
		return err
	}

	return c.putExchange(e)
}

func (c *client) PutPongIssued(ctx context.Context, f exchange.PongIssuedFields) error {
	existing, err := c.getExchangeLocked(f.PingHash)
	if err != nil && !errors.Is(err, exchange.ErrExchangeNotFound) {
		return err
	}
	if err == nil && existing.State == exchange.StateCompleted {
		// Never demote a Completed record.
		return nil
	}

	e, err := exchange.NewPongIssued(f)
	if err != nil {
		return err
	}

	return c.putExchange(e)
}

func (c *client) PutCompletedExchange(ctx context.Context, f exchange.CompletedFields) error {
	e, err := exchange.NewCompleted(f)
	if err != nil {
		return err
	}

	return c.putExchange(e)
}

func (c *client) scanByState(ctx context.Context, want exchange.State, match func(exchange.Exchange) bool) ([]exchange.Exchange, error) {
	lower, upper := exchangePrefixBounds()
	iter, err := c.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var results []exchange.Exchange
	for valid := iter.First(); valid; valid = iter.Next() {
		var e exchange.Exchange
		if err := json.Unmarshal(bytes.Clone(iter.Value()), &e); err != nil {
			return nil, err
		}

		if e.State != want {
			continue
		}
		if match != nil && !match(e) {
			continue
		}

		results = append(results, e)
	}

	return results, iter.Error()
}

func (c *client) GetPingDetectedExchanges(ctx context.Context) ([]exchange.Exchange, error) {
	return c.scanByState(ctx, exchange.StateDetected, nil)
}

func (c *client) GetStalePongIssuedExchanges(ctx context.Context, now time.Time, staleTimeout time.Duration) ([]exchange.Exchange, error) {
	return c.scanByState(ctx, exchange.StatePongIssued, func(e exchange.Exchange) bool {
		return e.IsStale(now, staleTimeout)
	})
}

func (c *client) RemoveCompletedExchanges(ctx context.Context) ([]exchange.Exchange, error) {
	completed, err := c.scanByState(ctx, exchange.StateCompleted, nil)
	if err != nil {
		return nil, err
	}
	if len(completed) == 0 {
		return nil, nil
	}

	batch := c.db.NewBatch()
	for _, e := range completed {
		if err := batch.Delete(exchangeKey(e.PingHash), nil); err != nil {
			return nil, err
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return nil, err
	}

	return completed, nil
}

func (c *client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	return c.db.Close()
}
