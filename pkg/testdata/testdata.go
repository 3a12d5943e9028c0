// Package testdata loads JSON test-case files.
//
// A data file holds a required "test_cases" object (case name to fields),
// an optional "common" object and an optional "environments" object
// (environment name to fields). Files are cached per loader by name.
package testdata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/devicelab-dev/appium-pom/pkg/core"
	"github.com/devicelab-dev/appium-pom/pkg/logger"
)

// DefaultEnvironment is the environment every other one is merged over.
const DefaultEnvironment = "default"

// NameKey is the field AllTestCases adds to carry each case's name.
const NameKey = "_name"

// Case is one test case's fields.
type Case map[string]interface{}

// String returns the field as a string ("" when absent or null).
func (c Case) String(key string) string {
	v, ok := c[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Has reports whether key is set.
func (c Case) Has(key string) bool {
	_, ok := c[key]
	return ok
}

// Name returns the case name added by AllTestCases.
func (c Case) Name() string {
	return c.String(NameKey)
}

func (c Case) clone() Case {
	out := make(Case, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Cases is the test_cases object, in file order.
type Cases struct {
	names  []string
	byName map[string]Case
}

// UnmarshalJSON keeps the order cases appear in the file.
func (c *Cases) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("test_cases must be an object")
	}

	c.byName = make(map[string]Case)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)

		var tc Case
		if err := dec.Decode(&tc); err != nil {
			return fmt.Errorf("test case %q: %w", name, err)
		}
		if _, dup := c.byName[name]; !dup {
			c.names = append(c.names, name)
		}
		c.byName[name] = tc
	}
	_, err = dec.Token()
	return err
}

// Names returns case names in file order.
func (c *Cases) Names() []string {
	return append([]string(nil), c.names...)
}

// File is a parsed data file.
type File struct {
	Name         string                            `json:"-"`
	Path         string                            `json:"-"`
	TestCases    Cases                             `json:"test_cases"`
	Common       map[string]interface{}            `json:"common"`
	Environments map[string]map[string]interface{} `json:"environments"`
}

// Loader reads data files from a directory and caches them.
// It is safe for concurrent use.
type Loader struct {
	dir string

	mu    sync.Mutex
	cache map[string]*File
}

// NewLoader creates a loader for dir.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir, cache: make(map[string]*File)}
}

// Dir returns the data directory.
func (l *Loader) Dir() string { return l.dir }

// normalize appends the .json extension when absent.
func normalize(name string) string {
	if strings.HasSuffix(name, ".json") {
		return name
	}
	return name + ".json"
}

// Load parses the named file (".json" optional), using the cache when possible.
func (l *Loader) Load(name string) (*File, error) {
	key := normalize(name)

	l.mu.Lock()
	defer l.mu.Unlock()

	if f, ok := l.cache[key]; ok {
		return f, nil
	}

	path := filepath.Join(l.dir, key)
	data, err := os.ReadFile(path) //#nosec G304 -- test data under the project dir
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, core.ErrDataFileNotFound.WithMessage("test data file not found: " + path).WithCause(err)
		}
		return nil, err
	}

	f := &File{Name: key, Path: path}
	if err := json.Unmarshal(data, f); err != nil {
		return nil, core.ErrInvalidFormat.WithMessage("invalid JSON in test data file " + path).WithCause(err)
	}
	if f.TestCases.byName == nil {
		return nil, core.ErrInvalidFormat.WithMessage(fmt.Sprintf("test data file %s does not contain 'test_cases'", path))
	}

	logger.Debug("loaded %d test cases from %s", len(f.TestCases.names), path)
	l.cache[key] = f
	return f, nil
}

// TestCase returns a copy of one case.
func (l *Loader) TestCase(file, name string) (Case, error) {
	f, err := l.Load(file)
	if err != nil {
		return nil, err
	}
	tc, ok := f.TestCases.byName[name]
	if !ok {
		return nil, core.ErrTestCaseNotFound.
			WithMessage(fmt.Sprintf("test case %q not found in %s", name, f.Name)).
			WithDetails(map[string]interface{}{"file": f.Name, "case": name})
	}
	return tc.clone(), nil
}

// AllTestCases returns every case in file order, each a copy carrying its name under NameKey.
func (l *Loader) AllTestCases(file string) ([]Case, error) {
	f, err := l.Load(file)
	if err != nil {
		return nil, err
	}
	cases := make([]Case, 0, len(f.TestCases.names))
	for _, name := range f.TestCases.names {
		tc := f.TestCases.byName[name].clone()
		tc[NameKey] = name
		cases = append(cases, tc)
	}
	return cases, nil
}

// CommonData returns a copy of the file's "common" object (empty when absent).
func (l *Loader) CommonData(file string) (map[string]interface{}, error) {
	f, err := l.Load(file)
	if err != nil {
		return nil, err
	}
	return Merge(nil, f.Common), nil
}

// EnvironmentData returns the named environment's fields merged over the
// default environment's. An empty env means DefaultEnvironment.
func (l *Loader) EnvironmentData(file, env string) (map[string]interface{}, error) {
	f, err := l.Load(file)
	if err != nil {
		return nil, err
	}
	if env == "" {
		env = DefaultEnvironment
	}

	data := f.Environments[env]
	if env != DefaultEnvironment {
		if def, ok := f.Environments[DefaultEnvironment]; ok {
			return Merge(def, data), nil
		}
	}
	return Merge(nil, data), nil
}

// ClearCache drops every cached file.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]*File)
}

// Merge returns a new map with override's keys replacing base's. Neither input is modified.
func Merge(base, override map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
