package automation

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/devicelab-dev/appium-pom/pkg/core"
	"github.com/devicelab-dev/appium-pom/pkg/driver/appium"
	"github.com/devicelab-dev/appium-pom/pkg/driver/mock"
	"github.com/devicelab-dev/appium-pom/pkg/wait"
)

const short = 150 * time.Millisecond

func setup(t *testing.T, screens ...mock.Screen) (*Wrapper, *mock.Server) {
	t.Helper()
	srv := mock.NewServer(screens...)
	t.Cleanup(srv.Close)
	s, err := appium.NewSession(srv.URL(), map[string]interface{}{
		"platformName": "Android",
		"appPackage":   mock.AppPackage,
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	t.Cleanup(func() { s.Quit() })
	w := wait.New(s, wait.WithTimeout(short), wait.WithInterval(20*time.Millisecond))
	return New(s, w), srv
}

func loginApp(t *testing.T) (*Wrapper, *mock.Server) {
	return setup(t, mock.LoginApp(map[string]string{"alice": "secret"})...)
}

func TestFind(t *testing.T) {
	a, _ := loginApp(t)

	el, err := a.Find(core.ID(mock.UsernameID))
	if err != nil || el == nil {
		t.Fatalf("Find failed: %v", err)
	}

	// Hidden error label is present but not visible
	if _, err := a.Find(core.ID(mock.ErrorID), Present()); err != nil {
		t.Errorf("Find(Present) failed: %v", err)
	}
	_, err = a.Find(core.ID(mock.ErrorID), Within(short))
	if !errors.Is(err, core.ErrWaitTimeout) || !errors.Is(err, core.ErrElementNotFound) {
		t.Errorf("Expected wait timeout + element not found, got %v", err)
	}
	if core.CategoryOf(err) != core.ErrCategoryTimeout {
		t.Errorf("Expected timeout category, got %s", core.CategoryOf(err))
	}
}

func TestFindAll(t *testing.T) {
	a, _ := loginApp(t)

	all, err := a.FindAll(core.ClassName("android.widget.EditText"), short)
	if err != nil || len(all) != 2 {
		t.Fatalf("Expected 2 fields, got %d (%v)", len(all), err)
	}
	none, err := a.FindAll(core.ClassName("android.widget.Switch"), 0)
	if err != nil || len(none) != 0 {
		t.Errorf("Expected no switches, got %d (%v)", len(none), err)
	}
}

func TestTypeAndText(t *testing.T) {
	a, srv := loginApp(t)
	loc := core.ID(mock.UsernameID)

	if err := a.Type(loc, "ali", false); err != nil {
		t.Fatalf("Type failed: %v", err)
	}
	if err := a.Type(loc, "ce", false); err != nil {
		t.Fatalf("Type failed: %v", err)
	}
	if got := srv.TextOf(mock.UsernameID); got != "alice" {
		t.Errorf("Expected appended text 'alice', got %q", got)
	}

	if err := a.Type(loc, "bob", true); err != nil {
		t.Fatalf("Type failed: %v", err)
	}
	text, err := a.Text(loc)
	if err != nil || text != "bob" {
		t.Errorf("Expected 'bob', got %q (%v)", text, err)
	}

	err = a.Type(core.ID(mock.ErrorID), "x", true)
	if !errors.Is(err, core.ErrElementNotVisible) || !errors.Is(err, core.ErrWaitTimeout) {
		t.Errorf("Expected not-visible timeout, got %v", err)
	}
}

func TestClick(t *testing.T) {
	a, srv := loginApp(t)

	a.Type(core.ID(mock.UsernameID), "alice", true)
	a.Type(core.ID(mock.PasswordID), "secret", true)
	if err := a.Click(core.ID(mock.LoginID), short); err != nil {
		t.Fatalf("Click failed: %v", err)
	}
	if srv.Current() != "home" {
		t.Errorf("Expected home screen after login, got %q", srv.Current())
	}
}

func TestClickNotClickable(t *testing.T) {
	a, _ := setup(t, mock.Screen{Name: "main", Elements: []mock.Element{
		{ID: "app:id/submit", Disabled: true},
	}})

	err := a.Click(core.ID("app:id/submit"), short)
	if !errors.Is(err, core.ErrElementNotClickable) {
		t.Errorf("Expected ErrElementNotClickable, got %v", err)
	}
}

func TestChecks(t *testing.T) {
	a, _ := loginApp(t)

	if !a.IsPresent(core.ID(mock.ErrorID), short) {
		t.Error("error label should be present")
	}
	if a.IsVisible(core.ID(mock.ErrorID), short) {
		t.Error("error label should be hidden")
	}
	if !a.IsClickable(core.ID(mock.LoginID), short) {
		t.Error("login button should be clickable")
	}
	// Driver errors are logged, not returned
	if a.IsPresent(core.AndroidUIAutomator("new UiSelector()"), short) {
		t.Error("invalid selector should report false")
	}
}

func TestScrollTo(t *testing.T) {
	a, srv := setup(t,
		mock.Screen{Name: "top", Elements: []mock.Element{{ID: "app:id/header"}}},
		mock.Screen{Name: "bottom", Elements: []mock.Element{{ID: "app:id/footer"}}},
	)
	srv.OnSwipe(func(s *mock.Server, sw mock.Swipe) {
		if sw.StartY > sw.EndY {
			s.Show("bottom")
		}
	})

	el, err := a.ScrollTo(core.ID("app:id/footer"), Down, 3)
	if err != nil || el == nil {
		t.Fatalf("ScrollTo failed: %v", err)
	}

	swipes := srv.Swipes()
	if len(swipes) != 1 {
		t.Fatalf("Expected 1 swipe, got %d", len(swipes))
	}
	want := mock.Swipe{
		StartX: mock.ScreenWidth / 2, StartY: mock.ScreenHeight * 3 / 4,
		EndX: mock.ScreenWidth / 2, EndY: mock.ScreenHeight / 4,
		Duration: DefaultSwipeDuration,
	}
	if swipes[0] != want {
		t.Errorf("Expected %+v, got %+v", want, swipes[0])
	}
}

func TestScrollToExhausted(t *testing.T) {
	if testing.Short() {
		t.Skip("uses the fixed 2s presence check per swipe")
	}
	a, srv := setup(t, mock.Screen{Name: "main"})

	_, err := a.ScrollTo(core.ID("app:id/never"), Up, 2)
	if !errors.Is(err, core.ErrElementNotFound) {
		t.Errorf("Expected ErrElementNotFound, got %v", err)
	}
	if n := len(srv.Swipes()); n != 2 {
		t.Errorf("Expected 2 swipes, got %d", n)
	}
}

func TestSwipeVector(t *testing.T) {
	tests := []struct {
		d              Direction
		sx, sy, ex, ey int
	}{
		{Down, 50, 150, 50, 50},
		{Up, 50, 50, 50, 150},
		{Left, 75, 100, 25, 100},
		{Right, 25, 100, 75, 100},
	}
	for _, tt := range tests {
		sx, sy, ex, ey, err := swipeVector(tt.d, 100, 200)
		if err != nil {
			t.Fatalf("%s: %v", tt.d, err)
		}
		if sx != tt.sx || sy != tt.sy || ex != tt.ex || ey != tt.ey {
			t.Errorf("%s: got (%d,%d)->(%d,%d)", tt.d, sx, sy, ex, ey)
		}
	}
	if _, _, _, _, err := swipeVector("diagonal", 100, 200); err == nil {
		t.Error("Expected error for unknown direction")
	}
}

func TestHideKeyboardBestEffort(t *testing.T) {
	a, srv := loginApp(t)

	// No keyboard up: the server error is swallowed
	a.HideKeyboard()

	a.Type(core.ID(mock.UsernameID), "alice", true)
	if !srv.KeyboardShown() {
		t.Fatal("typing should raise the keyboard")
	}
	a.HideKeyboard()
	if srv.KeyboardShown() {
		t.Error("keyboard should be hidden")
	}
}

func TestPassThrough(t *testing.T) {
	a, srv := loginApp(t)

	if act, err := a.CurrentActivity(); err != nil || act != mock.AppActivity {
		t.Errorf("CurrentActivity = %q (%v)", act, err)
	}
	if pkg, err := a.CurrentPackage(); err != nil || pkg != mock.AppPackage {
		t.Errorf("CurrentPackage = %q (%v)", pkg, err)
	}
	if _, err := a.DeviceTime(); err != nil {
		t.Errorf("DeviceTime failed: %v", err)
	}
	if err := a.BackgroundApp(time.Second); err != nil {
		t.Errorf("BackgroundApp failed: %v", err)
	}
	if err := a.ResetApp(); err != nil || srv.Resets() != 1 {
		t.Errorf("ResetApp failed: %v", err)
	}
}

func TestTakeScreenshot(t *testing.T) {
	a, _ := loginApp(t)

	path := filepath.Join(t.TempDir(), "nested", "shots", "login.png")
	if !a.TakeScreenshot(path) {
		t.Fatal("TakeScreenshot reported failure")
	}
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		t.Errorf("Expected screenshot file, got %v", err)
	}

	blocker := filepath.Join(t.TempDir(), "file")
	os.WriteFile(blocker, []byte("x"), 0o644)
	if a.TakeScreenshot(filepath.Join(blocker, "shot.png")) {
		t.Error("Expected failure when the directory cannot be created")
	}
}
