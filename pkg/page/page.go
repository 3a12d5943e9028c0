// Package page provides the lifecycle shared by page objects: a screen is
// handed to the caller only after its load check has passed.
package page

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/devicelab-dev/appium-pom/pkg/automation"
	"github.com/devicelab-dev/appium-pom/pkg/core"
	"github.com/devicelab-dev/appium-pom/pkg/logger"
	"github.com/devicelab-dev/appium-pom/pkg/wait"
)

// Defaults for page objects.
const (
	DefaultLoadTimeout   = 30 * time.Second
	DefaultCheckTimeout  = 5 * time.Second
	DefaultScreenshotDir = "screenshots"
)

// Loadable is implemented by every screen.
// IsLoaded reports whether the screen's identifying element is showing.
type Loadable interface {
	IsLoaded() bool
}

type options struct {
	loadTimeout   time.Duration
	checkTimeout  time.Duration
	skipLoadWait  bool
	screenshotDir string
	waiter        *wait.Waiter
}

// Option configures a Base.
type Option func(*options)

// WithLoadTimeout bounds how long a constructor waits for its screen.
func WithLoadTimeout(d time.Duration) Option {
	return func(o *options) { o.loadTimeout = d }
}

// WithCheckTimeout sets the timeout screens use for visibility checks.
func WithCheckTimeout(d time.Duration) Option {
	return func(o *options) { o.checkTimeout = d }
}

// WithoutLoadWait makes constructors return without waiting for the screen.
func WithoutLoadWait() Option {
	return func(o *options) { o.skipLoadWait = true }
}

// WithScreenshotDir sets where TakeScreenshot writes.
func WithScreenshotDir(dir string) Option {
	return func(o *options) { o.screenshotDir = dir }
}

// WithWaiter overrides the waiter (and so the polling cadence).
func WithWaiter(w *wait.Waiter) Option {
	return func(o *options) { o.waiter = w }
}

// Base holds the session and helpers shared by page objects.
type Base struct {
	driver core.Driver
	ui     *automation.Wrapper
	opts   options
	raw    []Option

	// loadDeadline is set while WaitForLoad runs.
	loadDeadline time.Time
}

// NewBase creates the shared state for a page object.
func NewBase(driver core.Driver, opts ...Option) *Base {
	o := options{
		loadTimeout:   DefaultLoadTimeout,
		checkTimeout:  DefaultCheckTimeout,
		screenshotDir: DefaultScreenshotDir,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.loadTimeout <= 0 {
		o.loadTimeout = DefaultLoadTimeout
	}
	if o.checkTimeout <= 0 {
		o.checkTimeout = DefaultCheckTimeout
	}
	if o.waiter == nil {
		o.waiter = wait.New(driver)
	}
	return &Base{
		driver: driver,
		ui:     automation.New(driver, o.waiter),
		opts:   o,
		raw:    opts,
	}
}

// Driver returns the session.
func (b *Base) Driver() core.Driver { return b.driver }

// UI returns the automation facade.
func (b *Base) UI() *automation.Wrapper { return b.ui }

// Options returns the options the page was built with, for constructing the next screen.
func (b *Base) Options() []Option { return b.raw }

// minCheckTimeout keeps a check that runs at the load deadline to a single probe.
const minCheckTimeout = time.Millisecond

// CheckTimeout is the timeout for a screen's visibility checks. While the
// screen is loading it is capped at the time left in the load timeout.
func (b *Base) CheckTimeout() time.Duration {
	if b.loadDeadline.IsZero() {
		return b.opts.checkTimeout
	}
	remaining := time.Until(b.loadDeadline)
	if remaining >= b.opts.checkTimeout {
		return b.opts.checkTimeout
	}
	if remaining < minCheckTimeout {
		return minCheckTimeout
	}
	return remaining
}

// LoadTimeout is the timeout for WaitForLoad.
func (b *Base) LoadTimeout() time.Duration { return b.opts.loadTimeout }

// Load waits for l unless the page was built WithoutLoadWait.
func (b *Base) Load(l Loadable) error {
	if b.opts.skipLoadWait {
		return nil
	}
	return b.WaitForLoad(l)
}

// WaitForLoad polls l.IsLoaded until it holds or the load timeout passes.
func (b *Base) WaitForLoad(l Loadable) error {
	start := time.Now()
	b.loadDeadline = start.Add(b.opts.loadTimeout)
	defer func() { b.loadDeadline = time.Time{} }()

	if !b.opts.waiter.UntilTrue(l.IsLoaded, b.opts.loadTimeout) {
		return core.ErrPageNotLoaded.WithMessage(
			fmt.Sprintf("%T did not load within %s", l, b.opts.loadTimeout))
	}
	logger.Debug("%T loaded in %s", l, time.Since(start).Round(time.Millisecond))
	return nil
}

// TakeScreenshot saves the current screen as filename in the screenshot directory.
func (b *Base) TakeScreenshot(filename string) bool {
	return b.ui.TakeScreenshot(filepath.Join(b.opts.screenshotDir, filename))
}
