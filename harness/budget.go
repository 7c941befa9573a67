package harness

import "time"

// TimeoutBudget tracks how much of a per-test time allowance remains. The
// deadline is fixed at construction; every blocking operation in the harness
// derives its timeout from Remaining() unless a test overrides it.
type TimeoutBudget struct {
	deadline time.Time
}

// NewTimeoutBudget starts a budget of the given total duration, measured from
// now.
func NewTimeoutBudget(total time.Duration) *TimeoutBudget {
	return &TimeoutBudget{deadline: time.Now().Add(total)}
}

// Remaining returns the time left before the deadline. It is monotonically
// non-increasing across calls and never negative, even after the deadline has
// passed.
func (b *TimeoutBudget) Remaining() time.Duration {
	left := time.Until(b.deadline)
	if left < 0 {
		return 0
	}
	return left
}

// Deadline returns the absolute point in time at which the budget expires.
func (b *TimeoutBudget) Deadline() time.Time {
	return b.deadline
}
