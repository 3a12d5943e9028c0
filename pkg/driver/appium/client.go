// Package appium talks to an Appium server over the W3C WebDriver protocol and
// exposes the session as a core.Driver.
package appium

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/devicelab-dev/appium-pom/pkg/core"
	"github.com/devicelab-dev/appium-pom/pkg/logger"
)

// W3C WebDriver element identifier key
const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// Capabilities defined by the W3C spec; everything else must carry a vendor prefix.
var w3cStandardCaps = map[string]bool{
	"platformName":              true,
	"browserName":               true,
	"browserVersion":            true,
	"acceptInsecureCerts":       true,
	"pageLoadStrategy":          true,
	"proxy":                     true,
	"setWindowRect":             true,
	"timeouts":                  true,
	"strictFileInteractability": true,
	"unhandledPromptBehavior":   true,
	"webSocketUrl":              true,
}

// Client handles HTTP communication with Appium server.
type Client struct {
	serverURL string
	sessionID string
	client    *http.Client
	platform  string // ios, android
	osVersion string
	screenW   int
	screenH   int
}

// NewClient creates a new Appium client.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: strings.TrimSuffix(serverURL, "/"),
		client: &http.Client{
			Timeout: 5 * time.Minute, // Long timeout for install/screenshot
		},
	}
}

// W3CCapabilities returns caps with the "appium:" vendor prefix added to every
// non-standard key that does not already carry a prefix.
func W3CCapabilities(caps map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(caps))
	for k, v := range caps {
		if w3cStandardCaps[k] || strings.Contains(k, ":") {
			out[k] = v
			continue
		}
		out["appium:"+k] = v
	}
	return out
}

// newSession is the value of a POST /session reply.
type newSession struct {
	SessionID    string `json:"sessionId"`
	Capabilities struct {
		PlatformName    string `json:"platformName"`
		PlatformVersion string `json:"platformVersion"`
	} `json:"capabilities"`
}

// Connect creates a new session with the given capabilities.
func (c *Client) Connect(capabilities map[string]interface{}) error {
	body := map[string]interface{}{
		"capabilities": map[string]interface{}{
			"alwaysMatch": W3CCapabilities(capabilities),
			"firstMatch":  []interface{}{map[string]interface{}{}},
		},
	}

	resp, err := c.request(http.MethodPost, "/session", body)
	if err != nil {
		return core.ErrSessionNotCreated.WithCause(err)
	}

	var session newSession
	if err := resp.decode(&session); err != nil {
		return core.ErrSessionNotCreated.WithMessage("invalid session response").WithCause(err)
	}

	c.sessionID = session.SessionID
	if c.sessionID == "" {
		// Pre-W3C servers put the id at the top level
		c.sessionID = resp.SessionID
	}
	if c.sessionID == "" {
		return core.ErrSessionNotCreated.WithMessage("no session ID in response")
	}

	c.platform = strings.ToLower(session.Capabilities.PlatformName)
	c.osVersion = session.Capabilities.PlatformVersion
	if c.platform == "" {
		if platform, ok := capabilities["platformName"].(string); ok {
			c.platform = strings.ToLower(platform)
		}
	}

	c.fetchScreenSize()
	return nil
}

// Disconnect closes the session.
func (c *Client) Disconnect() error {
	if c.sessionID == "" {
		return nil
	}
	err := c.call(http.MethodDelete, c.sessionPath(), nil, nil)
	c.sessionID = ""
	return err
}

// SessionID returns the active session id ("" when disconnected).
func (c *Client) SessionID() string {
	return c.sessionID
}

// Platform returns the platform (ios/android).
func (c *Client) Platform() string {
	return c.platform
}

// ScreenSize returns the screen dimensions.
func (c *Client) ScreenSize() (int, int) {
	return c.screenW, c.screenH
}

func (c *Client) fetchScreenSize() {
	w, h, err := c.GetWindowRect()
	if err != nil {
		logger.Debug("window rect unavailable: %v", err)
		return
	}
	c.screenW, c.screenH = w, h
}

// rect is the value of the window and element rect endpoints.
type rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r rect) bounds() core.Bounds {
	return core.Bounds{X: int(r.X), Y: int(r.Y), Width: int(r.Width), Height: int(r.Height)}
}

// GetWindowRect returns the current viewport size.
func (c *Client) GetWindowRect() (int, int, error) {
	var r rect
	if err := c.call(http.MethodGet, c.sessionPath()+"/window/rect", nil, &r); err != nil {
		return 0, 0, fmt.Errorf("window rect: %w", err)
	}
	return int(r.Width), int(r.Height), nil
}

// Element Operations

// elementRef is an element reference in W3C or legacy JSONWP form.
type elementRef struct {
	W3C    string `json:"element-6066-11e4-a52e-4f735466cecf"`
	Legacy string `json:"ELEMENT"`
}

func (e elementRef) id() string {
	if e.W3C != "" {
		return e.W3C
	}
	return e.Legacy
}

// FindElement finds a single element.
func (c *Client) FindElement(strategy, value string) (string, error) {
	var ref elementRef
	err := c.call(http.MethodPost, c.sessionPath()+"/element", core.Locator{Strategy: strategy, Value: value}, &ref)
	if err != nil && !errors.Is(err, errBadValue) {
		return "", err
	}
	if ref.id() == "" {
		return "", core.ErrNoSuchElement.WithMessage(fmt.Sprintf("no such element: %s=%s", strategy, value))
	}
	return ref.id(), nil
}

// FindElements finds multiple elements.
func (c *Client) FindElements(strategy, value string) ([]string, error) {
	var refs []elementRef
	err := c.call(http.MethodPost, c.sessionPath()+"/elements", core.Locator{Strategy: strategy, Value: value}, &refs)
	if errors.Is(err, errBadValue) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, ref := range refs {
		if id := ref.id(); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ClickElement clicks an element using WebDriver standard endpoint.
func (c *Client) ClickElement(elementID string) error {
	return c.call(http.MethodPost, c.elementPath(elementID)+"/click", struct{}{}, nil)
}

// ClearElement clears an element's text.
func (c *Client) ClearElement(elementID string) error {
	return c.call(http.MethodPost, c.elementPath(elementID)+"/clear", struct{}{}, nil)
}

// SetElementValue types text into an element.
func (c *Client) SetElementValue(elementID, text string) error {
	chars := make([]string, 0, len(text))
	for _, ch := range text {
		chars = append(chars, string(ch))
	}
	return c.call(http.MethodPost, c.elementPath(elementID)+"/value", map[string]interface{}{
		"text":  text,
		"value": chars,
	}, nil)
}

// GetElementText returns an element's text.
func (c *Client) GetElementText(elementID string) (string, error) {
	var text string
	err := c.call(http.MethodGet, c.elementPath(elementID)+"/text", nil, &text)
	return text, err
}

// GetElementRect returns an element's position and size.
func (c *Client) GetElementRect(elementID string) (core.Bounds, error) {
	var r rect
	if err := c.call(http.MethodGet, c.elementPath(elementID)+"/rect", nil, &r); err != nil {
		return core.Bounds{}, err
	}
	return r.bounds(), nil
}

// IsElementDisplayed checks if element is visible.
func (c *Client) IsElementDisplayed(elementID string) (bool, error) {
	var displayed bool
	err := c.call(http.MethodGet, c.elementPath(elementID)+"/displayed", nil, &displayed)
	return displayed, err
}

// IsElementEnabled checks if element is enabled.
func (c *Client) IsElementEnabled(elementID string) (bool, error) {
	var enabled bool
	err := c.call(http.MethodGet, c.elementPath(elementID)+"/enabled", nil, &enabled)
	return enabled, err
}

// Touch/Gesture Operations (W3C Actions)

func (c *Client) performTouchAction(actions []map[string]interface{}) error {
	payload := []map[string]interface{}{
		{
			"type":       "pointer",
			"id":         "finger1",
			"parameters": map[string]interface{}{"pointerType": "touch"},
			"actions":    actions,
		},
	}
	return c.call(http.MethodPost, c.sessionPath()+"/actions", map[string]interface{}{"actions": payload}, nil)
}

// Swipe performs a swipe gesture.
func (c *Client) Swipe(startX, startY, endX, endY, durationMs int) error {
	return c.performTouchAction([]map[string]interface{}{
		{"type": "pointerMove", "duration": 0, "x": startX, "y": startY, "origin": "viewport"},
		{"type": "pointerDown", "button": 0},
		{"type": "pointerMove", "duration": durationMs, "x": endX, "y": endY, "origin": "viewport"},
		{"type": "pointerUp", "button": 0},
	})
}

// HideKeyboard hides the on-screen keyboard.
func (c *Client) HideKeyboard() error {
	return c.call(http.MethodPost, c.sessionPath()+"/appium/device/hide_keyboard", struct{}{}, nil)
}

// App Management

// LaunchApp activates an app.
func (c *Client) LaunchApp(appID string) error {
	return c.call(http.MethodPost, c.sessionPath()+"/appium/device/activate_app", c.appBody(appID), nil)
}

// TerminateApp terminates an app.
func (c *Client) TerminateApp(appID string) error {
	return c.call(http.MethodPost, c.sessionPath()+"/appium/device/terminate_app", c.appBody(appID), nil)
}

func (c *Client) appBody(appID string) map[string]interface{} {
	if c.platform == "ios" {
		return map[string]interface{}{"bundleId": appID}
	}
	return map[string]interface{}{"appId": appID}
}

// ClearAppData clears app data.
func (c *Client) ClearAppData(appID string) error {
	if err := c.TerminateApp(appID); err != nil {
		logger.Debug("terminate %s before clear: %v", appID, err)
	}

	if c.platform == "ios" {
		// iOS: mobile: clearApp only works on simulator
		_, err := c.ExecuteMobile("clearApp", map[string]interface{}{"bundleId": appID})
		return err
	}

	_, err := c.ExecuteMobile("shell", map[string]interface{}{
		"command": "pm",
		"args":    []string{"clear", appID},
	})
	return err
}

// Screen Operations

// Screenshot returns a screenshot as PNG bytes.
func (c *Client) Screenshot() ([]byte, error) {
	var encoded string
	if err := c.call(http.MethodGet, c.sessionPath()+"/screenshot", nil, &encoded); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// ExecuteMobile executes a mobile: command.
func (c *Client) ExecuteMobile(command string, args map[string]interface{}) (interface{}, error) {
	if args == nil {
		args = map[string]interface{}{}
	}
	var result interface{}
	err := c.call(http.MethodPost, c.sessionPath()+"/execute/sync", map[string]interface{}{
		"script": "mobile: " + command,
		"args":   []interface{}{args},
	}, &result)
	return result, err
}

// HTTP Helpers

func (c *Client) sessionPath() string {
	return "/session/" + c.sessionID
}

func (c *Client) elementPath(elementID string) string {
	return c.sessionPath() + "/element/" + elementID
}

// response is the reply envelope: the payload always sits under "value".
type response struct {
	Value     json.RawMessage `json:"value"`
	SessionID string          `json:"sessionId"`
}

// errBadValue reports a reply whose value does not fit the expected type.
var errBadValue = errors.New("unexpected response value")

// decode unmarshals the value into out. A null or missing value leaves out untouched.
func (r *response) decode(out interface{}) error {
	if out == nil || len(r.Value) == 0 || bytes.Equal(r.Value, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(r.Value, out); err != nil {
		return fmt.Errorf("%w: %v", errBadValue, err)
	}
	return nil
}

// webDriverError returns the W3C error carried in the value, if any.
func (r *response) webDriverError() error {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if len(r.Value) == 0 || r.Value[0] != '{' || json.Unmarshal(r.Value, &e) != nil || e.Error == "" {
		return nil
	}
	return classifyError(e.Error, e.Message)
}

// call sends a request and decodes the reply value into out (which may be nil).
func (c *Client) call(method, path string, body, out interface{}) error {
	resp, err := c.request(method, path, body)
	if err != nil {
		return err
	}
	return resp.decode(out)
}

func (c *Client) request(method, path string, body interface{}) (*response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, c.serverURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	logger.Debug("%s %s", method, path)
	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, core.ErrServerUnreachable.WithCause(err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	var resp response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response (HTTP %d): %w", httpResp.StatusCode, err)
	}
	if err := resp.webDriverError(); err != nil {
		return nil, err
	}
	return &resp, nil
}

// classifyError maps W3C error codes onto the core taxonomy.
func classifyError(errType, errMsg string) error {
	base := fmt.Errorf("%s: %s", errType, errMsg)
	switch errType {
	case "no such element":
		return core.ErrNoSuchElement.WithCause(base)
	case "stale element reference":
		return core.ErrStaleElement.WithCause(base)
	case "session not created":
		return core.ErrSessionNotCreated.WithCause(base)
	default:
		return base
	}
}
