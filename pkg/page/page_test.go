package page

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/devicelab-dev/appium-pom/pkg/core"
	"github.com/devicelab-dev/appium-pom/pkg/driver/appium"
	"github.com/devicelab-dev/appium-pom/pkg/driver/mock"
	"github.com/devicelab-dev/appium-pom/pkg/wait"
)

type fakeScreen struct {
	calls   atomic.Int32
	readyAt int32
}

func (f *fakeScreen) IsLoaded() bool {
	return f.calls.Add(1) >= f.readyAt
}

func newSession(t *testing.T) core.Driver {
	t.Helper()
	srv := mock.NewServer(mock.LoginApp(nil)...)
	t.Cleanup(srv.Close)
	s, err := appium.NewSession(srv.URL(), map[string]interface{}{"platformName": "Android"})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	t.Cleanup(func() { s.Quit() })
	return s
}

func fastWaiter(d core.Driver) Option {
	return WithWaiter(wait.New(d, wait.WithInterval(10*time.Millisecond)))
}

func TestNewBase_Defaults(t *testing.T) {
	b := NewBase(nil)
	if b.LoadTimeout() != DefaultLoadTimeout || b.CheckTimeout() != DefaultCheckTimeout {
		t.Errorf("Unexpected defaults %s/%s", b.LoadTimeout(), b.CheckTimeout())
	}
	if b.opts.screenshotDir != DefaultScreenshotDir {
		t.Errorf("Unexpected screenshot dir %q", b.opts.screenshotDir)
	}
	if b.UI() == nil {
		t.Error("Expected automation facade")
	}
}

func TestWaitForLoad(t *testing.T) {
	b := NewBase(nil, WithLoadTimeout(time.Second), fastWaiter(nil))

	screen := &fakeScreen{readyAt: 3}
	if err := b.WaitForLoad(screen); err != nil {
		t.Fatalf("WaitForLoad failed: %v", err)
	}
	if screen.calls.Load() != 3 {
		t.Errorf("Expected 3 checks, got %d", screen.calls.Load())
	}
}

func TestWaitForLoad_Timeout(t *testing.T) {
	b := NewBase(nil, WithLoadTimeout(100*time.Millisecond), fastWaiter(nil))

	err := b.WaitForLoad(&fakeScreen{readyAt: 1 << 30})
	if !errors.Is(err, core.ErrPageNotLoaded) {
		t.Fatalf("Expected ErrPageNotLoaded, got %v", err)
	}
	if core.CategoryOf(err) != core.ErrCategoryTimeout {
		t.Errorf("Expected timeout category, got %s", core.CategoryOf(err))
	}
}

func TestLoad_WithoutLoadWait(t *testing.T) {
	b := NewBase(nil, WithoutLoadWait())

	screen := &fakeScreen{readyAt: 1 << 30}
	if err := b.Load(screen); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if screen.calls.Load() != 0 {
		t.Error("Load should not check the screen")
	}
}

func TestTakeScreenshot(t *testing.T) {
	d := newSession(t)
	dir := filepath.Join(t.TempDir(), "shots")
	b := NewBase(d, WithScreenshotDir(dir))

	if !b.TakeScreenshot("login.png") {
		t.Fatal("TakeScreenshot reported failure")
	}
	if _, err := os.Stat(filepath.Join(dir, "login.png")); err != nil {
		t.Errorf("Expected file in screenshot dir: %v", err)
	}
}

func TestOptions_PassedOn(t *testing.T) {
	opts := []Option{WithLoadTimeout(time.Second), WithCheckTimeout(2 * time.Second)}
	b := NewBase(nil, opts...)
	next := NewBase(nil, b.Options()...)
	if next.LoadTimeout() != time.Second || next.CheckTimeout() != 2*time.Second {
		t.Error("Options should carry over to the next page")
	}
}

type checkRecorder struct {
	b      *Base
	checks []time.Duration
}

func (r *checkRecorder) IsLoaded() bool {
	r.checks = append(r.checks, r.b.CheckTimeout())
	return false
}

func TestWaitForLoad_CapsCheckTimeout(t *testing.T) {
	b := NewBase(nil, WithLoadTimeout(50*time.Millisecond), fastWaiter(nil))
	screen := &checkRecorder{b: b}

	if err := b.WaitForLoad(screen); !errors.Is(err, core.ErrPageNotLoaded) {
		t.Fatalf("Expected ErrPageNotLoaded, got %v", err)
	}
	if len(screen.checks) == 0 {
		t.Fatal("Expected at least one check")
	}
	for _, d := range screen.checks {
		if d > 50*time.Millisecond {
			t.Errorf("Check timeout %s exceeds the load timeout", d)
		}
	}
	if b.CheckTimeout() != DefaultCheckTimeout {
		t.Errorf("Expected check timeout restored after load, got %s", b.CheckTimeout())
	}
}
