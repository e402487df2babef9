// Package planner implements the pure iteration-planning function: given
// the previous iteration descriptor (or none) and the chain's current
// height, it decides what the next iteration should be, or that there is
// nothing worth doing yet. It has no side effects and talks to neither the
// store nor the gateway directly — the run loop feeds it inputs read from
// both and persists whatever it returns.
package planner

import (
	"github.com/pingpongbot/pongbot/internal/exchange"
)

// Params bundles the configuration the planner's rules are parameterized
// over: CONFIRMATION_BLOCKS, MAX_BLOCKS_BATCH_SIZE and STARTING_BLOCK.
type Params struct {
	ConfirmationBlocks uint64
	MaxBlocksBatchSize uint64
	StartingBlock      uint64
}

// Plan is the pure total function from (previous iteration, current chain
// height) to the next iteration descriptor, or skip=true when there is
// nothing to do yet. previous is nil when the store has never recorded an
// iteration (cold start). The rules are evaluated in order; the first match
// wins, exactly as spec'd.
func Plan(previous *exchange.Iteration, head uint64, p Params) (next exchange.Iteration, skip bool) {
	// Rule 1: cold start always enters recovery from the configured floor.
	if previous == nil {
		return exchange.Iteration{
			Type:    exchange.TypeRecoveryStart,
			State:   exchange.IterationStarted,
			ToBlock: safeSub(p.StartingBlock, 1),
		}, false
	}

	// Rule 2: a crash mid-iteration re-enters recovery from the block just
	// before the aborted range, so nothing already-attempted is skipped.
	if previous.Started() {
		reentry := previous.ToBlock
		if previous.HasFromBlock() {
			reentry = safeSub(*previous.FromBlock, 1)
		}
		return exchange.Iteration{
			Type:    exchange.TypeRecoveryStart,
			State:   exchange.IterationStarted,
			ToBlock: reentry,
		}, false
	}

	// Rule 3: the recovery window has been fully scanned.
	if previous.Type == exchange.TypeRecovery && previous.RecoveryUntilBlock != nil && previous.ToBlock >= *previous.RecoveryUntilBlock {
		return exchange.Iteration{
			Type:    exchange.TypeRecoveryEnd,
			State:   exchange.IterationStarted,
			ToBlock: previous.ToBlock,
		}, false
	}

	// Rule 4: compute the next confirmed block range, clamped to the batch
	// size, and signal Skip if it doesn't advance by at least one block.
	confirmedHead := safeSub(head, p.ConfirmationBlocks)
	fromBlock := previous.ToBlock + 1

	toBlock := confirmedHead
	if cap := fromBlock + p.MaxBlocksBatchSize; cap < toBlock {
		toBlock = cap
	}

	if int64(toBlock)-int64(fromBlock) < 1 {
		return exchange.Iteration{}, true
	}

	// Rule 5: still inside a recovery round.
	if previous.Type == exchange.TypeRecovery || previous.Type == exchange.TypeRecoveryStart {
		until := head
		if previous.RecoveryUntilBlock != nil {
			until = *previous.RecoveryUntilBlock
		}
		return exchange.Iteration{
			Type:               exchange.TypeRecovery,
			State:              exchange.IterationStarted,
			FromBlock:          &fromBlock,
			ToBlock:            toBlock,
			RecoveryUntilBlock: &until,
		}, false
	}

	// Rule 6: steady state.
	return exchange.Iteration{
		Type:      exchange.TypeNormal,
		State:     exchange.IterationStarted,
		FromBlock: &fromBlock,
		ToBlock:   toBlock,
	}, false
}

// safeSub returns a-b without wrapping around zero for unsigned operands
// where the subtrahend may legitimately exceed the minuend (e.g. a chain
// that hasn't produced CONFIRMATION_BLOCKS blocks yet).
func safeSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
