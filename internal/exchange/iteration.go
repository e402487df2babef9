package exchange

// Type discriminates the kind of pass an Iteration describes.
type Type string

const (
	TypeNormal        Type = "normal"
	TypeRecoveryStart Type = "recovery_start"
	TypeRecovery      Type = "recovery"
	TypeRecoveryEnd   Type = "recovery_end"
)

// IterationState discriminates whether an Iteration's side effects have
// started or fully completed.
type IterationState string

const (
	IterationStarted   IterationState = "started"
	IterationCompleted IterationState = "completed"
)

// Iteration is the singleton descriptor of one pass over a block range, or
// of a phase-transition marker (RecoveryStart/RecoveryEnd).
//
// FromBlock is set for Normal and Recovery. RecoveryUntilBlock is set only
// for Recovery, captured once when recovery begins and carried through
// subsequent recovery rounds.
type Iteration struct {
	Type  Type           `json:"type"`
	State IterationState `json:"state"`

	FromBlock *uint64 `json:"fromBlock,omitempty"`
	ToBlock   uint64  `json:"toBlock"`

	RecoveryUntilBlock *uint64 `json:"recoveryUntilBlock,omitempty"`
}

// HasFromBlock reports whether this iteration carries a FromBlock (Normal
// and Recovery do; RecoveryStart and RecoveryEnd don't).
func (i Iteration) HasFromBlock() bool {
	return i.FromBlock != nil
}

// Started reports whether the iteration's side effects have begun but not
// yet been marked complete — the signal the planner uses to detect a crash
// mid-iteration.
func (i Iteration) Started() bool {
	return i.State == IterationStarted
}

// Completed returns a copy of the iteration with its state advanced to
// IterationCompleted. It is the only valid state transition besides the
// initial write at IterationStarted.
func (i Iteration) Completed() Iteration {
	i.State = IterationCompleted
	return i
}

// WithToBlock returns a copy of the iteration with ToBlock overwritten. Used
// by RecoveryEnd, whose ToBlock equals the last Recovery iteration's ToBlock.
func (i Iteration) WithToBlock(toBlock uint64) Iteration {
	i.ToBlock = toBlock
	return i
}
