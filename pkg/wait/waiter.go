package wait

import (
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/devicelab-dev/appium-pom/pkg/core"
)

// DefaultTimeout is used when a wait is given no positive timeout.
const DefaultTimeout = 30 * time.Second

// State is the element condition ForElement waits for.
type State int

const (
	Present   State = iota // in the UI tree
	Visible                // present, displayed and with a non-empty rect
	Clickable              // visible and enabled
)

func (s State) String() string {
	switch s {
	case Present:
		return "present"
	case Visible:
		return "visible"
	case Clickable:
		return "clickable"
	default:
		return "unknown"
	}
}

// Waiter evaluates element-state predicates against a driver.
// "No such element" and stale-element errors count as "not yet met";
// any other driver error ends the wait and is returned.
type Waiter struct {
	driver   core.Driver
	timeout  time.Duration
	interval time.Duration
}

// Option configures a Waiter.
type Option func(*Waiter)

// WithTimeout sets the default timeout.
func WithTimeout(d time.Duration) Option {
	return func(w *Waiter) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithInterval sets the polling cadence.
func WithInterval(d time.Duration) Option {
	return func(w *Waiter) {
		if d > 0 {
			w.interval = d
		}
	}
}

// New creates a Waiter for driver.
func New(driver core.Driver, opts ...Option) *Waiter {
	w := &Waiter{
		driver:   driver,
		timeout:  DefaultTimeout,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Timeout returns the default timeout.
func (w *Waiter) Timeout() time.Duration { return w.timeout }

// Interval returns the polling cadence.
func (w *Waiter) Interval() time.Duration { return w.interval }

func (w *Waiter) resolve(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return w.timeout
	}
	return timeout
}

func (w *Waiter) policy() backoff.BackOff {
	return Constant(w.interval)
}

func (w *Waiter) poll(timeout time.Duration, cond Condition) (bool, error) {
	return Poll(w.resolve(timeout), w.policy(), cond)
}

// check finds loc and tests it against state. Gone elements yield (nil, false, nil).
func (w *Waiter) check(loc core.Locator, state State) (core.Element, bool, error) {
	el, err := w.driver.FindElement(loc)
	if err != nil {
		if core.IsElementGone(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if state == Present {
		return el, true, nil
	}

	ok, err := isVisible(el)
	if err != nil || !ok {
		return nil, false, goneIsFalse(err)
	}
	if state == Visible {
		return el, true, nil
	}

	enabled, err := el.IsEnabled()
	if err != nil || !enabled {
		return nil, false, goneIsFalse(err)
	}
	return el, true, nil
}

func isVisible(el core.Element) (bool, error) {
	displayed, err := el.IsDisplayed()
	if err != nil || !displayed {
		return false, err
	}
	rect, err := el.Rect()
	if err != nil {
		return false, err
	}
	return !rect.Empty(), nil
}

func goneIsFalse(err error) error {
	if core.IsElementGone(err) {
		return nil
	}
	return err
}

// ForElement waits until loc reaches state and returns the element.
// On timeout it returns an error matching core.ErrWaitTimeout.
func (w *Waiter) ForElement(loc core.Locator, state State, timeout time.Duration) (core.Element, error) {
	var found core.Element
	ok, err := w.poll(timeout, func() (bool, error) {
		el, ok, err := w.check(loc, state)
		if ok {
			found = el
		}
		return ok, err
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, core.ErrWaitTimeout.WithMessage(
			fmt.Sprintf("element %s not %s after %s", loc, state, w.resolve(timeout)))
	}
	return found, nil
}

func (w *Waiter) waitState(loc core.Locator, state State, timeout time.Duration) (bool, error) {
	return w.poll(timeout, func() (bool, error) {
		_, ok, err := w.check(loc, state)
		return ok, err
	})
}

// ElementPresent waits for loc to appear in the UI tree.
func (w *Waiter) ElementPresent(loc core.Locator, timeout time.Duration) (bool, error) {
	return w.waitState(loc, Present, timeout)
}

// ElementVisible waits for loc to be displayed with a non-empty rect.
func (w *Waiter) ElementVisible(loc core.Locator, timeout time.Duration) (bool, error) {
	return w.waitState(loc, Visible, timeout)
}

// ElementClickable waits for loc to be visible and enabled.
func (w *Waiter) ElementClickable(loc core.Locator, timeout time.Duration) (bool, error) {
	return w.waitState(loc, Clickable, timeout)
}

// TextInElement waits for loc to be visible with text containing substr.
func (w *Waiter) TextInElement(loc core.Locator, substr string, timeout time.Duration) (bool, error) {
	return w.poll(timeout, func() (bool, error) {
		el, ok, err := w.check(loc, Visible)
		if err != nil || !ok {
			return false, err
		}
		text, err := el.Text()
		if err != nil {
			return false, goneIsFalse(err)
		}
		return strings.Contains(text, substr), nil
	})
}

// ElementNotPresent waits for loc to leave the UI tree.
func (w *Waiter) ElementNotPresent(loc core.Locator, timeout time.Duration) (bool, error) {
	return w.poll(timeout, func() (bool, error) {
		_, err := w.driver.FindElement(loc)
		if err == nil {
			return false, nil
		}
		if core.IsElementGone(err) {
			return true, nil
		}
		return false, err
	})
}

// ElementNotVisible waits for loc to be absent or hidden.
func (w *Waiter) ElementNotVisible(loc core.Locator, timeout time.Duration) (bool, error) {
	return w.poll(timeout, func() (bool, error) {
		el, err := w.driver.FindElement(loc)
		if err != nil {
			if core.IsElementGone(err) {
				return true, nil
			}
			return false, err
		}
		visible, err := isVisible(el)
		if core.IsElementGone(err) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		return !visible, nil
	})
}

// Staleness waits for a previously found element to detach from the UI tree.
func (w *Waiter) Staleness(el core.Element, timeout time.Duration) (bool, error) {
	return w.poll(timeout, func() (bool, error) {
		_, err := el.IsEnabled()
		if err == nil {
			return false, nil
		}
		if core.IsElementGone(err) {
			return true, nil
		}
		return false, err
	})
}

// Until waits for a custom condition. Errors from cond are returned.
func (w *Waiter) Until(cond Condition, timeout time.Duration) (bool, error) {
	return w.poll(timeout, cond)
}

// UntilTrue waits for a boolean condition.
func (w *Waiter) UntilTrue(cond func() bool, timeout time.Duration) bool {
	ok, _ := w.poll(timeout, func() (bool, error) { return cond(), nil })
	return ok
}
