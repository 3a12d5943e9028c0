// Package mock provides an in-memory Appium server for testing without a real device.
//
// The server speaks enough of the W3C WebDriver protocol for appium.Session:
// session create/delete, element find and interaction, pointer actions,
// keyboard, app activation and a handful of "mobile:" execute commands.
package mock

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/devicelab-dev/appium-pom/pkg/core"
)

const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// Screen size reported by GET /window/rect.
const (
	ScreenWidth  = 1080
	ScreenHeight = 2400
)

// pngHeader is what the fake screenshot endpoint returns.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// Element is a widget on a mock screen.
type Element struct {
	ID        string // resource id, e.g. com.example.app:id/username
	Label     string // accessibility id
	Class     string // e.g. android.widget.EditText
	Text      string
	Hidden    bool // found but not displayed
	Disabled  bool
	Collapsed bool // displayed with a zero-size rect
	Bounds    core.Bounds
	OnClick   func(s *Server)
}

func (e *Element) rect(index int) core.Bounds {
	if e.Collapsed {
		return core.Bounds{X: e.Bounds.X, Y: e.Bounds.Y}
	}
	if e.Bounds.Empty() {
		return core.Bounds{X: 40, Y: 200 + index*140, Width: ScreenWidth - 80, Height: 120}
	}
	return e.Bounds
}

func (e *Element) editable() bool {
	return strings.Contains(e.Class, "EditText") || strings.Contains(e.Class, "TextField")
}

// Screen is a named set of elements; one screen is shown at a time.
type Screen struct {
	Name     string
	Activity string
	Package  string
	Elements []Element
}

// Swipe records a pointer drag received via the actions endpoint.
type Swipe struct {
	StartX, StartY, EndX, EndY int
	Duration                   time.Duration
}

type handle struct {
	gen    int
	screen string
	el     *Element
}

// Server is a fake Appium server backed by httptest.
type Server struct {
	mu         sync.Mutex
	ts         *httptest.Server
	initial    []Screen
	screens    map[string][]*Element
	meta       map[string]Screen
	current    string
	generation int
	handles    map[string]handle
	nextHandle int

	sessionID  string
	sessions   int
	quits      int
	resets     int
	background int
	caps       map[string]interface{}
	keyboard   bool
	swipes     []Swipe
	onSwipe    func(s *Server, sw Swipe)
}

// NewServer starts a server showing the first of screens.
func NewServer(screens ...Screen) *Server {
	s := &Server{initial: screens}
	s.load()
	s.ts = httptest.NewServer(s.routes())
	return s
}

// load (re)builds the screen state from the initial definitions. Caller holds mu or owns s.
func (s *Server) load() {
	s.screens = make(map[string][]*Element, len(s.initial))
	s.meta = make(map[string]Screen, len(s.initial))
	for _, sc := range s.initial {
		elems := make([]*Element, len(sc.Elements))
		for i := range sc.Elements {
			el := sc.Elements[i]
			elems[i] = &el
		}
		s.screens[sc.Name] = elems
		s.meta[sc.Name] = sc
	}
	s.current = ""
	if len(s.initial) > 0 {
		s.current = s.initial[0].Name
	}
	s.generation++
	s.handles = make(map[string]handle)
	s.keyboard = false
}

// URL returns the server base URL.
func (s *Server) URL() string { return s.ts.URL }

// Close shuts the server down.
func (s *Server) Close() { s.ts.Close() }

// Show switches to the named screen. Handles from the previous screen go stale.
func (s *Server) Show(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.show(name)
}

func (s *Server) show(name string) {
	if _, ok := s.screens[name]; !ok {
		panic(fmt.Sprintf("mock: unknown screen %q", name))
	}
	s.current = name
	s.generation++
	s.keyboard = false
}

// Current returns the name of the visible screen.
func (s *Server) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Update runs fn with the element whose resource id or label is key on any screen.
func (s *Server) Update(key string, fn func(el *Element)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, elems := range s.screens {
		for _, el := range elems {
			if el.ID == key || el.Label == key {
				fn(el)
				return
			}
		}
	}
	panic(fmt.Sprintf("mock: unknown element %q", key))
}

// TextOf returns the text of the element with the given resource id or label.
func (s *Server) TextOf(key string) string {
	var text string
	s.Update(key, func(el *Element) { text = el.Text })
	return text
}

// SetText replaces an element's text.
func (s *Server) SetText(key, text string) {
	s.Update(key, func(el *Element) { el.Text = text })
}

// SetHidden toggles an element's displayed state.
func (s *Server) SetHidden(key string, hidden bool) {
	s.Update(key, func(el *Element) { el.Hidden = hidden })
}

// Remove detaches an element from its screen.
func (s *Server) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, elems := range s.screens {
		for i, el := range elems {
			if el.ID == key || el.Label == key {
				s.screens[name] = append(elems[:i:i], elems[i+1:]...)
				return
			}
		}
	}
}

// OnSwipe registers fn to be called, without the server lock held, for every swipe.
func (s *Server) OnSwipe(fn func(s *Server, sw Swipe)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSwipe = fn
}

// Swipes returns the swipes received so far.
func (s *Server) Swipes() []Swipe {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Swipe(nil), s.swipes...)
}

// KeyboardShown reports whether the soft keyboard is up.
func (s *Server) KeyboardShown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keyboard
}

// Sessions returns how many sessions were created.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions
}

// Quits returns how many sessions were deleted.
func (s *Server) Quits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quits
}

// Resets returns how many times the app was relaunched.
func (s *Server) Resets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

// Backgrounded returns how many backgroundApp commands were received.
func (s *Server) Backgrounded() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.background
}

// Capabilities returns the alwaysMatch capabilities of the last session request.
func (s *Server) Capabilities() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caps
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /session", s.handleNewSession)
	mux.HandleFunc("DELETE /session/{sid}", s.withSession(s.handleQuit))
	mux.HandleFunc("GET /session/{sid}/window/rect", s.withSession(s.handleWindowRect))
	mux.HandleFunc("POST /session/{sid}/element", s.withSession(s.handleFind))
	mux.HandleFunc("POST /session/{sid}/elements", s.withSession(s.handleFindAll))
	mux.HandleFunc("POST /session/{sid}/element/{eid}/click", s.withSession(s.handleClick))
	mux.HandleFunc("POST /session/{sid}/element/{eid}/clear", s.withSession(s.handleClear))
	mux.HandleFunc("POST /session/{sid}/element/{eid}/value", s.withSession(s.handleValue))
	mux.HandleFunc("GET /session/{sid}/element/{eid}/{prop}", s.withSession(s.handleProperty))
	mux.HandleFunc("POST /session/{sid}/actions", s.withSession(s.handleActions))
	mux.HandleFunc("POST /session/{sid}/appium/device/hide_keyboard", s.withSession(s.handleHideKeyboard))
	mux.HandleFunc("POST /session/{sid}/appium/device/activate_app", s.withSession(s.handleActivate))
	mux.HandleFunc("POST /session/{sid}/appium/device/terminate_app", s.withSession(s.handleOK))
	mux.HandleFunc("GET /session/{sid}/screenshot", s.withSession(s.handleScreenshot))
	mux.HandleFunc("POST /session/{sid}/execute/sync", s.withSession(s.handleExecute))
	return mux
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeValue(w http.ResponseWriter, v interface{}) {
	writeJSON(w, map[string]interface{}{"value": v})
}

func writeError(w http.ResponseWriter, status int, errType, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"value": map[string]interface{}{"error": errType, "message": msg},
	})
}

func (s *Server) withSession(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		ok := s.sessionID != "" && r.PathValue("sid") == s.sessionID
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusNotFound, "invalid session id", "session is not active")
			return
		}
		h(w, r)
	}
}

func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Capabilities struct {
			AlwaysMatch map[string]interface{} `json:"alwaysMatch"`
		} `json:"capabilities"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid argument", err.Error())
		return
	}

	s.mu.Lock()
	s.sessions++
	s.sessionID = "mock-session-" + strconv.Itoa(s.sessions)
	s.caps = body.Capabilities.AlwaysMatch
	id := s.sessionID
	s.mu.Unlock()

	platform, _ := body.Capabilities.AlwaysMatch["platformName"].(string)
	version, _ := body.Capabilities.AlwaysMatch["appium:platformVersion"].(string)
	writeValue(w, map[string]interface{}{
		"sessionId": id,
		"capabilities": map[string]interface{}{
			"platformName":    platform,
			"platformVersion": version,
		},
	})
}

func (s *Server) handleQuit(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.sessionID = ""
	s.quits++
	s.mu.Unlock()
	writeValue(w, nil)
}

func (s *Server) handleOK(w http.ResponseWriter, r *http.Request) {
	writeValue(w, nil)
}

func (s *Server) handleWindowRect(w http.ResponseWriter, r *http.Request) {
	writeValue(w, map[string]interface{}{"x": 0, "y": 0, "width": ScreenWidth, "height": ScreenHeight})
}

type findRequest struct {
	Using string `json:"using"`
	Value string `json:"value"`
}

func (s *Server) find(r *http.Request) ([]map[string]interface{}, error) {
	var req findRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	match, err := matcher(req.Using, req.Value)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var found []map[string]interface{}
	for _, el := range s.screens[s.current] {
		if !match(el) {
			continue
		}
		s.nextHandle++
		id := "el-" + strconv.Itoa(s.nextHandle)
		s.handles[id] = handle{gen: s.generation, screen: s.current, el: el}
		found = append(found, map[string]interface{}{w3cElementKey: id})
	}
	return found, nil
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	found, err := s.find(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid selector", err.Error())
		return
	}
	if len(found) == 0 {
		writeError(w, http.StatusNotFound, "no such element", "An element could not be located on the page using the given search parameters.")
		return
	}
	writeValue(w, found[0])
}

func (s *Server) handleFindAll(w http.ResponseWriter, r *http.Request) {
	found, err := s.find(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid selector", err.Error())
		return
	}
	if found == nil {
		found = []map[string]interface{}{}
	}
	writeValue(w, found)
}

// lookup resolves a handle; the caller holds mu.
func (s *Server) lookup(id string) (*Element, int, bool) {
	h, ok := s.handles[id]
	if !ok || h.gen != s.generation || h.screen != s.current {
		return nil, 0, false
	}
	for i, el := range s.screens[s.current] {
		if el == h.el {
			return el, i, true
		}
	}
	return nil, 0, false
}

func writeStale(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "stale element reference", "The element is not linked to the same object in the DOM or has been deleted")
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	el, _, ok := s.lookup(r.PathValue("eid"))
	var onClick func(*Server)
	if ok {
		if el.editable() {
			s.keyboard = true
		}
		if !el.Disabled && !el.Hidden {
			onClick = el.OnClick
		}
	}
	s.mu.Unlock()

	if !ok {
		writeStale(w)
		return
	}
	if onClick != nil {
		onClick(s)
	}
	writeValue(w, nil)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, _, ok := s.lookup(r.PathValue("eid"))
	if !ok {
		writeStale(w)
		return
	}
	el.Text = ""
	writeValue(w, nil)
}

func (s *Server) handleValue(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid argument", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	el, _, ok := s.lookup(r.PathValue("eid"))
	if !ok {
		writeStale(w)
		return
	}
	el.Text += body.Text
	if el.editable() {
		s.keyboard = true
	}
	writeValue(w, nil)
}

func (s *Server) handleProperty(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, index, ok := s.lookup(r.PathValue("eid"))
	if !ok {
		writeStale(w)
		return
	}
	switch r.PathValue("prop") {
	case "text":
		writeValue(w, el.Text)
	case "displayed":
		writeValue(w, !el.Hidden)
	case "enabled":
		writeValue(w, !el.Disabled)
	case "rect":
		if el.Hidden {
			writeValue(w, core.Bounds{})
			return
		}
		writeValue(w, el.rect(index))
	default:
		writeError(w, http.StatusNotFound, "unknown command", "unsupported property "+r.PathValue("prop"))
	}
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Actions []struct {
			Actions []struct {
				Type     string `json:"type"`
				Duration int    `json:"duration"`
				X        int    `json:"x"`
				Y        int    `json:"y"`
			} `json:"actions"`
		} `json:"actions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Actions) == 0 {
		writeError(w, http.StatusBadRequest, "invalid argument", "malformed actions")
		return
	}

	var sw Swipe
	moves := 0
	for _, a := range body.Actions[0].Actions {
		if a.Type != "pointerMove" {
			continue
		}
		if moves == 0 {
			sw.StartX, sw.StartY = a.X, a.Y
		}
		sw.EndX, sw.EndY = a.X, a.Y
		sw.Duration += time.Duration(a.Duration) * time.Millisecond
		moves++
	}

	s.mu.Lock()
	s.swipes = append(s.swipes, sw)
	onSwipe := s.onSwipe
	s.mu.Unlock()

	if onSwipe != nil {
		onSwipe(s, sw)
	}
	writeValue(w, nil)
}

func (s *Server) handleHideKeyboard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	shown := s.keyboard
	s.keyboard = false
	s.mu.Unlock()
	if !shown {
		writeError(w, http.StatusInternalServerError, "unknown error", "Soft keyboard not present, cannot hide keyboard")
		return
	}
	writeValue(w, nil)
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.load()
	s.resets++
	s.mu.Unlock()
	writeValue(w, nil)
}

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	writeValue(w, base64.StdEncoding.EncodeToString(pngHeader))
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Script string `json:"script"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid argument", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch strings.TrimPrefix(body.Script, "mobile: ") {
	case "getCurrentActivity":
		writeValue(w, s.meta[s.current].Activity)
	case "getCurrentPackage":
		writeValue(w, s.meta[s.current].Package)
	case "getDeviceTime":
		writeValue(w, time.Now().Format(time.RFC3339))
	case "backgroundApp":
		s.background++
		writeValue(w, nil)
	case "shell", "clearApp":
		writeValue(w, nil)
	default:
		writeError(w, http.StatusBadRequest, "unknown method", "unsupported script "+body.Script)
	}
}

var xpathAttr = regexp.MustCompile(`^//([\w.*]+)(?:\[@([\w-]+)=['"]([^'"]*)['"]\])?$`)

// matcher compiles a locator into an element predicate.
func matcher(using, value string) (func(*Element) bool, error) {
	switch using {
	case core.ByID:
		return func(e *Element) bool {
			return e.ID == value || strings.HasSuffix(e.ID, ":id/"+value)
		}, nil
	case core.ByAccessibilityID:
		return func(e *Element) bool { return e.Label == value }, nil
	case core.ByClassName:
		return func(e *Element) bool { return e.Class == value }, nil
	case core.ByXPath:
		m := xpathAttr.FindStringSubmatch(value)
		if m == nil {
			return nil, fmt.Errorf("unsupported xpath %q", value)
		}
		class, attr, want := m[1], m[2], m[3]
		return func(e *Element) bool {
			if class != "*" && e.Class != class {
				return false
			}
			switch attr {
			case "":
				return true
			case "resource-id":
				return e.ID == want
			case "content-desc", "name", "label":
				return e.Label == want
			case "text", "value":
				return e.Text == want
			default:
				return false
			}
		}, nil
	default:
		return nil, fmt.Errorf("unsupported locator strategy %q", using)
	}
}
