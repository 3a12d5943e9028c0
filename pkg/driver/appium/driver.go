package appium

import (
	"fmt"
	"time"

	"github.com/devicelab-dev/appium-pom/pkg/core"
	"github.com/devicelab-dev/appium-pom/pkg/logger"
)

// Session implements core.Driver on top of an Appium server session.
type Session struct {
	client     *Client
	appID      string // appPackage / bundleId from capabilities
	deviceName string
}

// NewSession connects to serverURL and opens a session with capabilities.
// Capabilities may be given with or without the "appium:" prefix.
func NewSession(serverURL string, capabilities map[string]interface{}) (*Session, error) {
	client := NewClient(serverURL)

	if err := client.Connect(capabilities); err != nil {
		return nil, err
	}

	s := &Session{client: client}
	s.appID = capString(capabilities, "appPackage")
	if s.appID == "" {
		s.appID = capString(capabilities, "bundleId")
	}
	s.deviceName = capString(capabilities, "deviceName")

	logger.Info("session %s created on %s (platform=%s, app=%s)",
		client.SessionID(), serverURL, client.Platform(), s.appID)
	return s, nil
}

func capString(caps map[string]interface{}, key string) string {
	if v, ok := caps[key].(string); ok {
		return v
	}
	if v, ok := caps["appium:"+key].(string); ok {
		return v
	}
	return ""
}

// Client returns the underlying HTTP client.
func (s *Session) Client() *Client {
	return s.client
}

// AppID returns the app under test.
func (s *Session) AppID() string {
	return s.appID
}

// Quit ends the session. Calling it twice is a no-op.
func (s *Session) Quit() error {
	id := s.client.SessionID()
	if id == "" {
		return nil
	}
	logger.Info("quitting session %s", id)
	return s.client.Disconnect()
}

// FindElement implements core.Driver.
func (s *Session) FindElement(loc core.Locator) (core.Element, error) {
	id, err := s.client.FindElement(loc.Strategy, loc.Value)
	if err != nil {
		return nil, err
	}
	return &Element{id: id, client: s.client}, nil
}

// FindElements implements core.Driver.
func (s *Session) FindElements(loc core.Locator) ([]core.Element, error) {
	ids, err := s.client.FindElements(loc.Strategy, loc.Value)
	if err != nil {
		return nil, err
	}
	elems := make([]core.Element, 0, len(ids))
	for _, id := range ids {
		elems = append(elems, &Element{id: id, client: s.client})
	}
	return elems, nil
}

// WindowSize returns the viewport size captured at connect time, or fetches it.
func (s *Session) WindowSize() (int, int, error) {
	if w, h := s.client.ScreenSize(); w > 0 && h > 0 {
		return w, h, nil
	}
	w, h, err := s.client.GetWindowRect()
	if err != nil {
		return 0, 0, err
	}
	s.client.screenW, s.client.screenH = w, h
	return w, h, nil
}

// Swipe implements core.Driver.
func (s *Session) Swipe(startX, startY, endX, endY int, duration time.Duration) error {
	return s.client.Swipe(startX, startY, endX, endY, int(duration.Milliseconds()))
}

// HideKeyboard implements core.Driver.
func (s *Session) HideKeyboard() error {
	return s.client.HideKeyboard()
}

// Screenshot implements core.Driver.
func (s *Session) Screenshot() ([]byte, error) {
	return s.client.Screenshot()
}

// BackgroundApp implements core.Driver.
func (s *Session) BackgroundApp(d time.Duration) error {
	_, err := s.client.ExecuteMobile("backgroundApp", map[string]interface{}{
		"seconds": d.Seconds(),
	})
	return err
}

// ResetApp clears the app's data and relaunches it.
func (s *Session) ResetApp() error {
	if s.appID == "" {
		return core.ErrMissingRequired.WithMessage("no appPackage or bundleId in capabilities")
	}
	if err := s.client.ClearAppData(s.appID); err != nil {
		return fmt.Errorf("clear %s: %w", s.appID, err)
	}
	if err := s.client.LaunchApp(s.appID); err != nil {
		return fmt.Errorf("launch %s: %w", s.appID, err)
	}
	return nil
}

// CurrentActivity implements core.Driver.
func (s *Session) CurrentActivity() (string, error) {
	return s.mobileString("getCurrentActivity")
}

// CurrentPackage implements core.Driver.
func (s *Session) CurrentPackage() (string, error) {
	return s.mobileString("getCurrentPackage")
}

// DeviceTime implements core.Driver.
func (s *Session) DeviceTime() (string, error) {
	return s.mobileString("getDeviceTime")
}

func (s *Session) mobileString(command string) (string, error) {
	v, err := s.client.ExecuteMobile(command, nil)
	if err != nil {
		return "", err
	}
	str, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("mobile: %s returned %T", command, v)
	}
	return str, nil
}

// GetPlatformInfo implements core.Driver.
func (s *Session) GetPlatformInfo() *core.PlatformInfo {
	w, h := s.client.ScreenSize()
	return &core.PlatformInfo{
		Platform:     s.client.Platform(),
		OSVersion:    s.client.osVersion,
		DeviceName:   s.deviceName,
		SessionID:    s.client.SessionID(),
		ScreenWidth:  w,
		ScreenHeight: h,
		AppID:        s.appID,
	}
}

// Element implements core.Element for a server-side element handle.
type Element struct {
	id     string
	client *Client
}

// ID returns the server element id.
func (e *Element) ID() string { return e.id }

// Click implements core.Element.
func (e *Element) Click() error { return e.client.ClickElement(e.id) }

// Clear implements core.Element.
func (e *Element) Clear() error { return e.client.ClearElement(e.id) }

// SendKeys implements core.Element.
func (e *Element) SendKeys(text string) error { return e.client.SetElementValue(e.id, text) }

// Text implements core.Element.
func (e *Element) Text() (string, error) { return e.client.GetElementText(e.id) }

// IsDisplayed implements core.Element.
func (e *Element) IsDisplayed() (bool, error) { return e.client.IsElementDisplayed(e.id) }

// IsEnabled implements core.Element.
func (e *Element) IsEnabled() (bool, error) { return e.client.IsElementEnabled(e.id) }

// Rect implements core.Element.
func (e *Element) Rect() (core.Bounds, error) { return e.client.GetElementRect(e.id) }

var (
	_ core.Driver  = (*Session)(nil)
	_ core.Element = (*Element)(nil)
)
