package gateway

import (
	"errors"

	"github.com/holiman/uint256"
)

// ErrTransactionNotFound is returned by GetTransaction when no provider
// knows about the requested hash (neither mined nor pending).
var ErrTransactionNotFound = errors.New("transaction not found")

// FeeAmount wraps an arbitrary-precision EIP-1559 fee value. Every fee
// computation in the system (gateway estimates, transaction fields, the
// stale reconciler's bump arithmetic) uses this type rather than a machine
// integer, per the "arbitrary-precision integers" requirement on fee math.
type FeeAmount struct {
	v *uint256.Int
}

// NewFeeAmount wraps n as a FeeAmount.
func NewFeeAmount(n *uint256.Int) *FeeAmount {
	if n == nil {
		return &FeeAmount{v: new(uint256.Int)}
	}
	return &FeeAmount{v: n.Clone()}
}

// FeeAmountFromUint64 wraps a machine integer as a FeeAmount, for tests and
// small constants.
func FeeAmountFromUint64(n uint64) *FeeAmount {
	return &FeeAmount{v: uint256.NewInt(n)}
}

// Int returns the underlying *uint256.Int. Callers must not mutate it.
func (f *FeeAmount) Int() *uint256.Int {
	if f == nil || f.v == nil {
		return new(uint256.Int)
	}
	return f.v
}

// Cmp compares f to other, per uint256.Int.Cmp semantics.
func (f *FeeAmount) Cmp(other *FeeAmount) int {
	return f.Int().Cmp(other.Int())
}

// String renders the fee amount in base 10, for logging.
func (f *FeeAmount) String() string {
	return f.Int().Dec()
}
