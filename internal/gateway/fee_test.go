package gateway

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

func TestNewFeeAmount_NilBecomesZero(t *testing.T) {
	f := NewFeeAmount(nil)
	assert.Equal(t, "0", f.String())
}

func TestNewFeeAmount_ClonesInput(t *testing.T) {
	n := uint256.NewInt(42)
	f := NewFeeAmount(n)

	n.SetUint64(7)

	assert.Equal(t, "42", f.String(), "FeeAmount must not alias the caller's *uint256.Int")
}

func TestFeeAmountFromUint64(t *testing.T) {
	f := FeeAmountFromUint64(1_000_000_000)
	assert.Equal(t, "1000000000", f.String())
}

func TestFeeAmount_Cmp(t *testing.T) {
	low := FeeAmountFromUint64(10)
	high := FeeAmountFromUint64(20)

	assert.Equal(t, -1, low.Cmp(high))
	assert.Equal(t, 1, high.Cmp(low))
	assert.Equal(t, 0, low.Cmp(FeeAmountFromUint64(10)))
}

func TestFeeAmount_NilReceiverIsZero(t *testing.T) {
	var f *FeeAmount
	assert.Equal(t, "0", f.Int().Dec())
}
