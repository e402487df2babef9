// Package ratelimit gates outbound provider calls to a configured minimum
// spacing. The local implementation is an in-process ticker-gated bucket;
// the redis implementation coordinates spacing across multiple bot
// processes sharing one provider set.
package ratelimit

import "context"

// Limiter enforces a minimum spacing between successive calls.
type Limiter interface {
	// Wait blocks until the next call is allowed, or ctx is done.
	Wait(ctx context.Context) error
}
