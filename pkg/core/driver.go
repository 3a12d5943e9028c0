package core

import (
	"fmt"
	"time"
)

// Appium locator strategies.
const (
	ByID                 = "id"
	ByXPath              = "xpath"
	ByAccessibilityID    = "accessibility id"
	ByClassName          = "class name"
	ByAndroidUIAutomator = "-android uiautomator"
	ByIOSPredicate       = "-ios predicate string"
	ByIOSClassChain      = "-ios class chain"
)

// Locator identifies a UI element for the automation server.
// It is passed through verbatim; the server picks the first match.
type Locator struct {
	Strategy string `json:"using"`
	Value    string `json:"value"`
}

// String returns a readable form used in logs and error messages.
func (l Locator) String() string {
	return fmt.Sprintf("%s=%s", l.Strategy, l.Value)
}

// ID returns a resource-id locator.
func ID(value string) Locator { return Locator{Strategy: ByID, Value: value} }

// XPath returns an XPath locator.
func XPath(value string) Locator { return Locator{Strategy: ByXPath, Value: value} }

// AccessibilityID returns an accessibility id (content-desc / accessibilityIdentifier) locator.
func AccessibilityID(value string) Locator {
	return Locator{Strategy: ByAccessibilityID, Value: value}
}

// ClassName returns a class name locator.
func ClassName(value string) Locator { return Locator{Strategy: ByClassName, Value: value} }

// AndroidUIAutomator returns a UiSelector expression locator.
func AndroidUIAutomator(value string) Locator {
	return Locator{Strategy: ByAndroidUIAutomator, Value: value}
}

// IOSPredicate returns an NSPredicate string locator.
func IOSPredicate(value string) Locator {
	return Locator{Strategy: ByIOSPredicate, Value: value}
}

// IOSClassChain returns an XCUITest class chain locator.
func IOSClassChain(value string) Locator {
	return Locator{Strategy: ByIOSClassChain, Value: value}
}

// Driver defines the session operations consumed from the automation server.
// Implementations: appium.Session.
type Driver interface {
	// FindElement returns the first element matching loc.
	// Returns an error matching ErrNoSuchElement when nothing matches.
	FindElement(loc Locator) (Element, error)

	// FindElements returns all elements matching loc (possibly none).
	FindElements(loc Locator) ([]Element, error)

	// WindowSize returns the viewport dimensions.
	WindowSize() (width, height int, err error)

	// Swipe drags a single touch pointer from start to end.
	Swipe(startX, startY, endX, endY int, duration time.Duration) error

	// HideKeyboard dismisses the soft keyboard.
	HideKeyboard() error

	// Screenshot captures the current screen as PNG
	Screenshot() ([]byte, error)

	// BackgroundApp sends the app to the background for d, then restores it.
	BackgroundApp(d time.Duration) error

	// ResetApp terminates the app under test, clears its data and relaunches it.
	ResetApp() error

	// CurrentActivity returns the focused Android activity.
	CurrentActivity() (string, error)

	// CurrentPackage returns the focused Android package.
	CurrentPackage() (string, error)

	// DeviceTime returns the device clock as reported by the server.
	DeviceTime() (string, error)

	// GetPlatformInfo returns device/platform information
	GetPlatformInfo() *PlatformInfo

	// Quit ends the session.
	Quit() error
}

// Element is a handle to an element previously returned by the server.
// Handles become stale once the element leaves the UI tree.
type Element interface {
	ID() string
	Click() error
	Clear() error
	SendKeys(text string) error
	Text() (string, error)
	IsDisplayed() (bool, error)
	IsEnabled() (bool, error)
	Rect() (Bounds, error)
}

// Bounds represents element position and size
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the center point of the bounds
func (b Bounds) Center() (int, int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Contains checks if a point is within the bounds
func (b Bounds) Contains(x, y int) bool {
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}

// Empty reports whether the bounds have no rendered area.
func (b Bounds) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// PlatformInfo contains device and platform details
type PlatformInfo struct {
	Platform     string `json:"platform"`               // ios, android
	OSVersion    string `json:"osVersion"`              // e.g., "17.0", "14"
	DeviceName   string `json:"deviceName"`             // e.g., "iPhone 15 Pro", "Pixel 8"
	SessionID    string `json:"sessionId"`              // Appium session
	ScreenWidth  int    `json:"screenWidth,omitempty"`  // Screen width in pixels
	ScreenHeight int    `json:"screenHeight,omitempty"` // Screen height in pixels
	AppID        string `json:"appId,omitempty"`        // Bundle ID / Package name
}
