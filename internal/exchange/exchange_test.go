package exchange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDetected_RequiresPingHash(t *testing.T) {
	_, err := NewDetected("", 10)
	assert.ErrorIs(t, err, ErrInvalidExchange)
}

func TestNewDetected_SetsFields(t *testing.T) {
	e, err := NewDetected("0xping", 10)
	require.NoError(t, err)

	assert.Equal(t, StateDetected, e.State)
	assert.Equal(t, "0xping", e.PingHash)
	require.NotNil(t, e.PingBlock)
	assert.Equal(t, uint64(10), *e.PingBlock)
}

func TestNewPongIssued_RequiresPingAndPongHash(t *testing.T) {
	_, err := NewPongIssued(PongIssuedFields{PingHash: "0xping"})
	assert.ErrorIs(t, err, ErrInvalidExchange)

	_, err = NewPongIssued(PongIssuedFields{PongHash: "0xpong"})
	assert.ErrorIs(t, err, ErrInvalidExchange)
}

func TestNewPongIssued_DefaultsTimestampToNow(t *testing.T) {
	before := time.Now().UTC()
	e, err := NewPongIssued(PongIssuedFields{PingHash: "0xping", PongHash: "0xpong", PongNonce: 3})
	after := time.Now().UTC()
	require.NoError(t, err)

	require.NotNil(t, e.PongTimestamp)
	assert.False(t, e.PongTimestamp.Before(before))
	assert.False(t, e.PongTimestamp.After(after))
	require.NotNil(t, e.PongNonce)
	assert.Equal(t, uint64(3), *e.PongNonce)
}

func TestNewPongIssued_HonorsExplicitTimestamp(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e, err := NewPongIssued(PongIssuedFields{PingHash: "0xping", PongHash: "0xpong", PongTimestamp: &ts})
	require.NoError(t, err)

	require.NotNil(t, e.PongTimestamp)
	assert.True(t, e.PongTimestamp.Equal(ts))
}

func TestNewCompleted_RequiresPingAndPongHash(t *testing.T) {
	_, err := NewCompleted(CompletedFields{PongHash: "0xpong"})
	assert.ErrorIs(t, err, ErrInvalidExchange)
}

func TestNewCompleted_AllowsNilOptionalFields(t *testing.T) {
	e, err := NewCompleted(CompletedFields{PingHash: "0xping", PongHash: "0xpong", PongBlock: 99})
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, e.State)
	assert.Nil(t, e.PingBlock)
	require.NotNil(t, e.PongBlock)
	assert.Equal(t, uint64(99), *e.PongBlock)
	assert.Nil(t, e.PongNonce)
	assert.Nil(t, e.PongTimestamp)
}

func TestIsStale(t *testing.T) {
	now := time.Now().UTC()

	t.Run("not stale for non-PongIssued states", func(t *testing.T) {
		e, _ := NewDetected("0xping", 1)
		assert.False(t, e.IsStale(now, time.Minute))
	})

	t.Run("not stale when younger than timeout", func(t *testing.T) {
		ts := now.Add(-30 * time.Second)
		e, _ := NewPongIssued(PongIssuedFields{PingHash: "0xping", PongHash: "0xpong", PongTimestamp: &ts})
		assert.False(t, e.IsStale(now, time.Minute))
	})

	t.Run("stale once timeout has elapsed", func(t *testing.T) {
		ts := now.Add(-2 * time.Minute)
		e, _ := NewPongIssued(PongIssuedFields{PingHash: "0xping", PongHash: "0xpong", PongTimestamp: &ts})
		assert.True(t, e.IsStale(now, time.Minute))
	})
}
