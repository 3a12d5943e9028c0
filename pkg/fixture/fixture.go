// Package fixture wires a resolved configuration, an Appium session and the
// test-data loader into Go tests.
//
// A Suite is built once per package (typically in TestMain) and shared;
// Driver opens a fresh session per test and closes it through t.Cleanup.
package fixture

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/devicelab-dev/appium-pom/pkg/automation"
	"github.com/devicelab-dev/appium-pom/pkg/config"
	"github.com/devicelab-dev/appium-pom/pkg/core"
	"github.com/devicelab-dev/appium-pom/pkg/driver/appium"
	"github.com/devicelab-dev/appium-pom/pkg/logger"
	"github.com/devicelab-dev/appium-pom/pkg/page"
	"github.com/devicelab-dev/appium-pom/pkg/testdata"
	"github.com/devicelab-dev/appium-pom/pkg/wait"
)

// T is the subset of testing.TB the fixtures use.
type T interface {
	Helper()
	Name() string
	Logf(format string, args ...any)
	Fatalf(format string, args ...any)
	Skipf(format string, args ...any)
	Cleanup(func())
}

// Binding names the test case a test runs with.
type Binding struct {
	File string
	Case string
}

// Suite holds what a whole test run shares.
type Suite struct {
	Settings *config.Settings
	Config   *config.Resolved
	Data     *testdata.Loader

	mu       sync.RWMutex
	bindings map[string]Binding
}

// Setup builds a Suite from the project home: config.yaml, then environment
// variables, with directories resolved against the home.
func Setup() (*Suite, error) {
	home := config.GetHome()
	settings, err := config.LoadFromDir(home)
	if err != nil {
		return nil, err
	}
	settings.ApplyEnv()
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return NewSuite(settings.Within(home))
}

// NewSuite resolves the app configuration once for settings.
func NewSuite(settings *config.Settings) (*Suite, error) {
	resolved, err := config.Resolve(settings.AppOptions())
	if err != nil {
		return nil, fmt.Errorf("resolve app config: %w", err)
	}
	return &Suite{
		Settings: settings,
		Config:   resolved,
		Data:     testdata.NewLoader(settings.DataDir),
		bindings: make(map[string]Binding),
	}, nil
}

// Driver opens a session for t, resets the app, and quits the session when t ends.
func (s *Suite) Driver(t T) *appium.Session {
	t.Helper()

	drv, err := appium.NewSession(s.Config.ServerURL, s.Config.Capabilities)
	if err != nil {
		t.Fatalf("create session on %s: %v", s.Config.ServerURL, err)
		return nil
	}
	t.Cleanup(func() {
		if err := drv.Quit(); err != nil {
			logger.Warn("quit session for %s: %v", t.Name(), err)
		}
	})

	if err := drv.ResetApp(); err != nil {
		if !errors.Is(err, core.ErrMissingRequired) {
			t.Fatalf("reset app: %v", err)
			return nil
		}
		t.Logf("app not reset: %v", err)
	}
	return drv
}

// Waiter returns a waiter using the configured wait timeout.
func (s *Suite) Waiter(drv core.Driver) *wait.Waiter {
	return wait.New(drv, wait.WithTimeout(s.Settings.Timeouts.Wait))
}

// PageOptions returns the page options implied by the settings.
func (s *Suite) PageOptions(drv core.Driver) []page.Option {
	return []page.Option{
		page.WithLoadTimeout(s.Settings.Timeouts.PageLoad),
		page.WithCheckTimeout(s.Settings.Timeouts.Check),
		page.WithScreenshotDir(s.Settings.ScreenshotsDir),
		page.WithWaiter(s.Waiter(drv)),
	}
}

// Bind associates the test named testName (as reported by t.Name()) with a case.
func (s *Suite) Bind(testName, file, caseName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[testName] = Binding{File: file, Case: caseName}
}

// TestCase returns the case bound to t.Name(). Unbound tests and missing
// cases are skipped; unreadable data files fail the test.
func (s *Suite) TestCase(t T) testdata.Case {
	t.Helper()

	s.mu.RLock()
	b, ok := s.bindings[t.Name()]
	s.mu.RUnlock()
	if !ok {
		t.Skipf("no test case bound to %s", t.Name())
		return nil
	}
	return s.Case(t, b.File, b.Case)
}

// Case returns the named case, skipping t when the case is absent and
// failing it when the file is missing or malformed.
func (s *Suite) Case(t T, file, name string) testdata.Case {
	t.Helper()

	tc, err := s.Data.TestCase(file, name)
	switch {
	case err == nil:
		return tc
	case errors.Is(err, core.ErrTestCaseNotFound):
		t.Skipf("test case %q not found in %q", name, file)
	default:
		t.Fatalf("load test data %q: %v", file, err)
	}
	return nil
}

// Fixtures bundles the per-test objects.
type Fixtures struct {
	Suite  *Suite
	Driver *appium.Session
	Wait   *wait.Waiter
	UI     *automation.Wrapper
	Pages  []page.Option
}

// WithSession opens a session for t, builds the fixtures around it and calls fn.
func WithSession(t *testing.T, s *Suite, fn func(t *testing.T, f *Fixtures)) {
	t.Helper()

	drv := s.Driver(t)
	if drv == nil {
		return
	}
	w := s.Waiter(drv)
	fn(t, &Fixtures{
		Suite:  s,
		Driver: drv,
		Wait:   w,
		UI:     automation.New(drv, w),
		Pages:  s.PageOptions(drv),
	})
}
