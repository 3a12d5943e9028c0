// Package wait provides explicit waits: a deadline-bounded poller and
// element-state predicates evaluated against a core.Driver.
package wait

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultInterval is the default polling cadence.
const DefaultInterval = 500 * time.Millisecond

// Condition is evaluated repeatedly until it reports true.
// A non-nil error aborts the wait and is returned to the caller.
type Condition func() (bool, error)

// Constant returns a fixed-interval polling policy.
func Constant(interval time.Duration) backoff.BackOff {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return backoff.NewConstantBackOff(interval)
}

// Poll evaluates cond until it returns true or timeout elapses.
//
// It returns (true, nil) as soon as cond holds and (false, nil) when the
// deadline passes; a timeout is not an error. An error from cond stops polling
// immediately. A zero or negative timeout evaluates cond exactly once.
// Sleeps between evaluations come from policy (nil means Constant(DefaultInterval))
// and are clipped to the time remaining; backoff.Stop ends the wait early.
func Poll(timeout time.Duration, policy backoff.BackOff, cond Condition) (bool, error) {
	if policy == nil {
		policy = Constant(DefaultInterval)
	}
	policy.Reset()
	deadline := time.Now().Add(timeout)

	for {
		ok, err := cond()
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}
		next := policy.NextBackOff()
		if next == backoff.Stop {
			return false, nil
		}
		if next > remaining {
			next = remaining
		}
		time.Sleep(next)
	}
}
