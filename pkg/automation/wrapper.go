// Package automation wraps a core.Driver with waiting element operations
// used by page objects.
package automation

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/devicelab-dev/appium-pom/pkg/core"
	"github.com/devicelab-dev/appium-pom/pkg/logger"
	"github.com/devicelab-dev/appium-pom/pkg/wait"
)

// Default timeouts.
const (
	DefaultClickTimeout  = 10 * time.Second
	DefaultCheckTimeout  = 5 * time.Second
	DefaultSwipeDuration = 1000 * time.Millisecond
	DefaultMaxSwipes     = 5
	scrollCheckTimeout   = 2 * time.Second
)

// Direction is the way content moves into view when scrolling.
type Direction string

const (
	Down  Direction = "down"
	Up    Direction = "up"
	Left  Direction = "left"
	Right Direction = "right"
)

// Wrapper performs element operations that wait for the element first.
type Wrapper struct {
	driver core.Driver
	wait   *wait.Waiter
}

// New creates a Wrapper. A nil waiter gets wait.New(driver).
func New(driver core.Driver, waiter *wait.Waiter) *Wrapper {
	if waiter == nil {
		waiter = wait.New(driver)
	}
	return &Wrapper{driver: driver, wait: waiter}
}

// Driver returns the wrapped driver.
func (a *Wrapper) Driver() core.Driver { return a.driver }

// Waiter returns the waiter used for element waits.
func (a *Wrapper) Waiter() *wait.Waiter { return a.wait }

type findOptions struct {
	state   wait.State
	timeout time.Duration
}

// FindOption tunes Find.
type FindOption func(*findOptions)

// Present makes Find wait for presence only instead of visibility.
func Present() FindOption {
	return func(o *findOptions) { o.state = wait.Present }
}

// Within overrides the waiter's default timeout.
func Within(d time.Duration) FindOption {
	return func(o *findOptions) { o.timeout = d }
}

// Find waits for loc to become visible (or present, with Present) and returns it.
// The error on timeout matches both core.ErrWaitTimeout and core.ErrElementNotFound.
func (a *Wrapper) Find(loc core.Locator, opts ...FindOption) (core.Element, error) {
	o := findOptions{state: wait.Visible}
	for _, opt := range opts {
		opt(&o)
	}

	el, err := a.wait.ForElement(loc, o.state, o.timeout)
	if err != nil {
		if core.CategoryOf(err) == core.ErrCategoryTimeout {
			return nil, core.ErrWaitTimeout.
				WithMessage(fmt.Sprintf("element %s not %s", loc, o.state)).
				WithCause(core.ErrElementNotFound.WithDetails(map[string]interface{}{"locator": loc.String()}))
		}
		return nil, err
	}
	return el, nil
}

// FindAll returns every element matching loc. With a positive timeout it
// first waits for at least one to be present; the result may still be empty.
func (a *Wrapper) FindAll(loc core.Locator, timeout time.Duration) ([]core.Element, error) {
	if timeout > 0 {
		if _, err := a.wait.ElementPresent(loc, timeout); err != nil {
			return nil, err
		}
	}
	return a.driver.FindElements(loc)
}

// Click waits for loc to be clickable and clicks it. timeout <= 0 uses DefaultClickTimeout.
func (a *Wrapper) Click(loc core.Locator, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultClickTimeout
	}
	el, err := a.wait.ForElement(loc, wait.Clickable, timeout)
	if err != nil {
		if core.CategoryOf(err) == core.ErrCategoryTimeout {
			return core.ErrElementNotClickable.WithMessage(fmt.Sprintf("element %s not clickable", loc)).WithCause(err)
		}
		return err
	}
	logger.Debug("click %s", loc)
	return el.Click()
}

// Type waits for loc to be visible, optionally clears it, and types text.
func (a *Wrapper) Type(loc core.Locator, text string, clearFirst bool) error {
	el, err := a.wait.ForElement(loc, wait.Visible, 0)
	if err != nil {
		if core.CategoryOf(err) == core.ErrCategoryTimeout {
			return core.ErrElementNotVisible.WithMessage(fmt.Sprintf("element %s not visible", loc)).WithCause(err)
		}
		return err
	}
	if clearFirst {
		if err := el.Clear(); err != nil {
			return fmt.Errorf("clear %s: %w", loc, err)
		}
	}
	logger.Debug("type into %s (%d chars)", loc, len(text))
	return el.SendKeys(text)
}

// Text waits for loc to be visible and returns its text.
func (a *Wrapper) Text(loc core.Locator) (string, error) {
	el, err := a.Find(loc)
	if err != nil {
		return "", err
	}
	return el.Text()
}

func checkTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultCheckTimeout
	}
	return timeout
}

// IsPresent reports whether loc appears within timeout (default 5s).
func (a *Wrapper) IsPresent(loc core.Locator, timeout time.Duration) bool {
	ok, err := a.wait.ElementPresent(loc, checkTimeout(timeout))
	if err != nil {
		logger.Warn("presence check for %s failed: %v", loc, err)
	}
	return ok
}

// IsVisible reports whether loc is visible within timeout (default 5s).
func (a *Wrapper) IsVisible(loc core.Locator, timeout time.Duration) bool {
	ok, err := a.wait.ElementVisible(loc, checkTimeout(timeout))
	if err != nil {
		logger.Warn("visibility check for %s failed: %v", loc, err)
	}
	return ok
}

// IsClickable reports whether loc is clickable within timeout (default 5s).
func (a *Wrapper) IsClickable(loc core.Locator, timeout time.Duration) bool {
	ok, err := a.wait.ElementClickable(loc, checkTimeout(timeout))
	if err != nil {
		logger.Warn("clickability check for %s failed: %v", loc, err)
	}
	return ok
}

// Swipe drags from start to end. duration <= 0 uses DefaultSwipeDuration.
func (a *Wrapper) Swipe(startX, startY, endX, endY int, duration time.Duration) error {
	if duration <= 0 {
		duration = DefaultSwipeDuration
	}
	return a.driver.Swipe(startX, startY, endX, endY, duration)
}

// ScrollTo swipes in direction until loc is present, at most maxSwipes times
// (default 5). Returns an error matching core.ErrElementNotFound when exhausted.
func (a *Wrapper) ScrollTo(loc core.Locator, direction Direction, maxSwipes int) (core.Element, error) {
	if maxSwipes <= 0 {
		maxSwipes = DefaultMaxSwipes
	}
	if direction == "" {
		direction = Down
	}

	for i := 0; i < maxSwipes; i++ {
		ok, err := a.wait.ElementPresent(loc, scrollCheckTimeout)
		if err != nil {
			return nil, err
		}
		if ok {
			return a.Find(loc, Present())
		}

		w, h, err := a.driver.WindowSize()
		if err != nil {
			return nil, err
		}
		sx, sy, ex, ey, err := swipeVector(direction, w, h)
		if err != nil {
			return nil, err
		}
		logger.Debug("scroll %s for %s (%d/%d)", direction, loc, i+1, maxSwipes)
		if err := a.Swipe(sx, sy, ex, ey, 0); err != nil {
			return nil, err
		}
	}

	return nil, core.ErrElementNotFound.WithMessage(
		fmt.Sprintf("element %s not found after %d swipes %s", loc, maxSwipes, direction))
}

// swipeVector returns a drag across the middle half of the viewport.
func swipeVector(d Direction, w, h int) (sx, sy, ex, ey int, err error) {
	switch d {
	case Down:
		return w / 2, h * 3 / 4, w / 2, h / 4, nil
	case Up:
		return w / 2, h / 4, w / 2, h * 3 / 4, nil
	case Left:
		return w * 3 / 4, h / 2, w / 4, h / 2, nil
	case Right:
		return w / 4, h / 2, w * 3 / 4, h / 2, nil
	default:
		return 0, 0, 0, 0, fmt.Errorf("unknown scroll direction %q", d)
	}
}

// HideKeyboard dismisses the soft keyboard. Failures are logged and ignored.
func (a *Wrapper) HideKeyboard() {
	if err := a.driver.HideKeyboard(); err != nil {
		logger.Debug("hide keyboard: %v", err)
	}
}

// CurrentActivity returns the focused Android activity.
func (a *Wrapper) CurrentActivity() (string, error) { return a.driver.CurrentActivity() }

// CurrentPackage returns the focused Android package.
func (a *Wrapper) CurrentPackage() (string, error) { return a.driver.CurrentPackage() }

// ResetApp clears app data and relaunches the app.
func (a *Wrapper) ResetApp() error { return a.driver.ResetApp() }

// BackgroundApp backgrounds the app for d.
func (a *Wrapper) BackgroundApp(d time.Duration) error { return a.driver.BackgroundApp(d) }

// DeviceTime returns the device clock.
func (a *Wrapper) DeviceTime() (string, error) { return a.driver.DeviceTime() }

// TakeScreenshot saves a PNG to path, creating its directory. It reports success.
func (a *Wrapper) TakeScreenshot(path string) bool {
	data, err := a.driver.Screenshot()
	if err != nil {
		logger.Warn("screenshot failed: %v", err)
		return false
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Warn("screenshot dir %s: %v", filepath.Dir(path), err)
		return false
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logger.Warn("write screenshot %s: %v", path, err)
		return false
	}
	logger.Info("screenshot saved to %s", path)
	return true
}
