package reconciler

import (
	"github.com/holiman/uint256"

	"github.com/pingpongbot/pongbot/internal/gateway"
)

// BumpedFees is the replacement fee pair produced by CalculateBumpFees.
type BumpedFees struct {
	MaxFee      *gateway.FeeAmount
	PriorityFee *gateway.FeeAmount
}

// CalculateBumpFees decides whether a pending transaction's fees need
// bumping against the current network estimate, and if so by how much.
//
// It returns nil when the transaction's existing fees already meet or
// exceed the current estimate on both dimensions — nothing to do. All
// arithmetic is performed on arbitrary-precision uint256.Int so the result
// is bit-exact and reproducible regardless of host integer width.
func CalculateBumpFees(txMaxFee, txPriorityFee, currentMaxFee, currentPriorityFee *gateway.FeeAmount) *BumpedFees {
	txMax, txPrio := txMaxFee.Int(), txPriorityFee.Int()
	curMax, curPrio := currentMaxFee.Int(), currentPriorityFee.Int()

	if txMax.Cmp(curMax) >= 0 && txPrio.Cmp(curPrio) >= 0 {
		return nil
	}

	newPriority := txPrio
	if curPrio.Cmp(txPrio) > 0 {
		newPriority = curPrio
	}

	// baseFee = (current.maxFee - current.priorityFee) / 2, integer division.
	baseFee := new(uint256.Int).Sub(curMax, curPrio)
	baseFee.Div(baseFee, uint256.NewInt(2))

	// adjustedMax = 2*baseFee + newPriority.
	adjustedMax := new(uint256.Int).Mul(baseFee, uint256.NewInt(2))
	adjustedMax.Add(adjustedMax, newPriority)

	// minReplacement = tx.maxFee + ceil(tx.maxFee * 10 / 100).
	bump := new(uint256.Int).Mul(txMax, uint256.NewInt(10))
	bump.AddUint64(bump, 99)
	bump.Div(bump, uint256.NewInt(100))
	minReplacement := new(uint256.Int).Add(txMax, bump)

	newMax := adjustedMax
	if minReplacement.Cmp(newMax) > 0 {
		newMax = minReplacement
	}
	if curMax.Cmp(newMax) > 0 {
		newMax = curMax
	}

	return &BumpedFees{
		MaxFee:      gateway.NewFeeAmount(newMax),
		PriorityFee: gateway.NewFeeAmount(newPriority),
	}
}
