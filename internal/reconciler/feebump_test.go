package reconciler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pingpongbot/pongbot/internal/gateway"
)

func fee(n uint64) *gateway.FeeAmount {
	return gateway.FeeAmountFromUint64(n)
}

func TestCalculateBumpFees_TenPercentFloorBinds(t *testing.T) {
	// tx.maxFee=11, tx.priority=3, current.maxFee=12, current.priority=6 -> {13, 6}.
	got := CalculateBumpFees(fee(11), fee(3), fee(12), fee(6))
	require.NotNil(t, got)
	assert.Equal(t, "13", got.MaxFee.String())
	assert.Equal(t, "6", got.PriorityFee.String())
}

func TestCalculateBumpFees_ExistingFeesAlreadySufficient(t *testing.T) {
	got := CalculateBumpFees(fee(20), fee(10), fee(12), fee(6))
	assert.Nil(t, got)
}

func TestCalculateBumpFees_ExactlyEqualIsSufficient(t *testing.T) {
	got := CalculateBumpFees(fee(12), fee(6), fee(12), fee(6))
	assert.Nil(t, got)
}

func TestCalculateBumpFees_PriorityBelowCurrentTakesCurrent(t *testing.T) {
	// tx.priority below current.priority: newPriority = current.priority.
	got := CalculateBumpFees(fee(100), fee(1), fee(50), fee(10))
	require.NotNil(t, got)
	assert.Equal(t, "10", got.PriorityFee.String())
}

func TestCalculateBumpFees_AdjustedMaxBinds(t *testing.T) {
	// current.maxFee=1000, current.priority=10 -> baseFee=(1000-10)/2=495,
	// adjustedMax=2*495+10=1000. tx.maxFee=100 (stale, far below current):
	// minReplacement=100+ceil(1000/100)=100+10=110. newMax=max(1000,110,1000)=1000.
	got := CalculateBumpFees(fee(100), fee(10), fee(1000), fee(10))
	require.NotNil(t, got)
	assert.Equal(t, "1000", got.MaxFee.String())
	assert.Equal(t, "10", got.PriorityFee.String())
}

func TestCalculateBumpFees_CurrentMaxFeeIsFloor(t *testing.T) {
	got := CalculateBumpFees(fee(1), fee(1), fee(5), fee(1))
	require.NotNil(t, got)
	assert.Equal(t, "5", got.MaxFee.String())
}

func TestCalculateBumpFees_ZeroValues(t *testing.T) {
	got := CalculateBumpFees(fee(0), fee(0), fee(0), fee(0))
	assert.Nil(t, got, "tx already meets a zero current estimate")
}
