// Package exchange models the lifecycle of a single ping/pong pair and the
// iteration descriptor that drives the orchestrator, and persists both in a
// crash-safe embedded key/value store.
package exchange

import (
	"errors"
	"time"
)

// State discriminates the lifecycle stage of an Exchange record.
type State string

const (
	StateDetected   State = "detected"
	StatePongIssued State = "pong_issued"
	StateCompleted  State = "completed"
)

// ErrInvalidExchange is returned by the constructors when required fields
// for the requested state are missing.
var ErrInvalidExchange = errors.New("invalid exchange record")

// Exchange is the closed tagged-variant record connecting one Ping to its
// eventual Pong. Only the fields relevant to State are guaranteed to be set;
// see the package-level constructors for the exact contract of each variant.
type Exchange struct {
	State State `json:"state"`

	PingHash  string  `json:"pingHash"`
	PingBlock *uint64 `json:"pingBlock,omitempty"`

	PongHash      string     `json:"pongHash,omitempty"`
	PongBlock     *uint64    `json:"pongBlock,omitempty"`
	PongNonce     *uint64    `json:"pongNonce,omitempty"`
	PongTimestamp *time.Time `json:"pongTimestamp,omitempty"`
}

// NewDetected builds a Detected exchange record for a newly observed Ping.
func NewDetected(pingHash string, pingBlock uint64) (Exchange, error) {
	if pingHash == "" {
		return Exchange{}, ErrInvalidExchange
	}

	return Exchange{
		State:     StateDetected,
		PingHash:  pingHash,
		PingBlock: &pingBlock,
	}, nil
}

// PongIssuedFields carries the fields needed to transition an exchange into
// the PongIssued state. PongTimestamp defaults to now when nil.
type PongIssuedFields struct {
	PingHash      string
	PingBlock     *uint64
	PongHash      string
	PongNonce     uint64
	PongTimestamp *time.Time
}

// NewPongIssued builds a PongIssued exchange record for a submitted pong
// transaction that has not yet been observed on chain.
func NewPongIssued(f PongIssuedFields) (Exchange, error) {
	if f.PingHash == "" || f.PongHash == "" {
		return Exchange{}, ErrInvalidExchange
	}

	ts := f.PongTimestamp
	if ts == nil {
		now := time.Now().UTC()
		ts = &now
	}

	return Exchange{
		State:         StatePongIssued,
		PingHash:      f.PingHash,
		PingBlock:     f.PingBlock,
		PongHash:      f.PongHash,
		PongNonce:     &f.PongNonce,
		PongTimestamp: ts,
	}, nil
}

// CompletedFields carries the fields needed to transition an exchange into
// the Completed state. PingBlock and PongTimestamp are optional: recovery
// may learn of a completed exchange without ever having observed the
// original Ping.
type CompletedFields struct {
	PingHash      string
	PingBlock     *uint64
	PongHash      string
	PongBlock     uint64
	PongNonce     *uint64
	PongTimestamp *time.Time
}

// NewCompleted builds a Completed exchange record for a pong that has been
// confirmed on chain.
func NewCompleted(f CompletedFields) (Exchange, error) {
	if f.PingHash == "" || f.PongHash == "" {
		return Exchange{}, ErrInvalidExchange
	}

	pongBlock := f.PongBlock
	return Exchange{
		State:         StateCompleted,
		PingHash:      f.PingHash,
		PingBlock:     f.PingBlock,
		PongHash:      f.PongHash,
		PongBlock:     &pongBlock,
		PongNonce:     f.PongNonce,
		PongTimestamp: f.PongTimestamp,
	}, nil
}

// IsStale reports whether a PongIssued record is older than timeout as of now.
func (e Exchange) IsStale(now time.Time, timeout time.Duration) bool {
	if e.State != StatePongIssued || e.PongTimestamp == nil {
		return false
	}

	return now.Sub(*e.PongTimestamp) >= timeout
}
