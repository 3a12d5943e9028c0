package testdata

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/devicelab-dev/appium-pom/pkg/core"
)

const loginData = `{
  "test_cases": {
    "valid_login": {"username": "testuser", "password": "password123", "expected_result": "success", "expected_message": "Welcome"},
    "invalid_username": {"username": "nobody", "password": "password123", "expected_result": "error"},
    "empty_credentials": {"username": "", "password": "", "expected_result": "error"},
    "attempts": {"username": "x", "password": "y", "retries": 3}
  },
  "common": {"app_name": "Example"},
  "environments": {
    "default": {"a": 1, "b": 2},
    "staging": {"b": 3},
    "prod": {"c": "p"}
  }
}`

func newLoader(t *testing.T, files map[string]string) *Loader {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return NewLoader(dir)
}

func TestLoad_ExtensionOptional(t *testing.T) {
	l := newLoader(t, map[string]string{"login_test_data.json": loginData})

	a, err := l.Load("login_test_data")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	b, err := l.Load("login_test_data.json")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if a != b {
		t.Error("both spellings should hit the same cache entry")
	}
}

func TestLoad_CacheStable(t *testing.T) {
	l := newLoader(t, map[string]string{"login.json": loginData})

	first, err := l.TestCase("login", "valid_login")
	if err != nil {
		t.Fatalf("TestCase failed: %v", err)
	}

	// Changing the file after the first load does not change results
	os.WriteFile(filepath.Join(l.Dir(), "login.json"), []byte(`{"test_cases": {}}`), 0o644)
	second, err := l.TestCase("login", "valid_login")
	if err != nil {
		t.Fatalf("TestCase failed after file change: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("cached lookup changed (-first +second):\n%s", diff)
	}

	l.ClearCache()
	if _, err := l.TestCase("login", "valid_login"); !errors.Is(err, core.ErrTestCaseNotFound) {
		t.Errorf("expected reload after ClearCache, got %v", err)
	}
}

func TestTestCase_ReturnsCopy(t *testing.T) {
	l := newLoader(t, map[string]string{"login.json": loginData})

	tc, _ := l.TestCase("login", "valid_login")
	tc["username"] = "mutated"

	again, _ := l.TestCase("login", "valid_login")
	if again.String("username") != "testuser" {
		t.Errorf("cached case was mutated: %v", again)
	}
}

func TestErrors_Distinguishable(t *testing.T) {
	l := newLoader(t, map[string]string{
		"login.json":    loginData,
		"broken.json":   `{"test_cases": {`,
		"no_cases.json": `{"common": {}}`,
		"null.json":     `{"test_cases": null}`,
		"array.json":    `{"test_cases": []}`,
	})

	tests := []struct {
		file, name string
		want       error
	}{
		{"missing", "x", core.ErrDataFileNotFound},
		{"login", "nope", core.ErrTestCaseNotFound},
		{"broken", "x", core.ErrInvalidFormat},
		{"no_cases", "x", core.ErrInvalidFormat},
		{"null", "x", core.ErrInvalidFormat},
		{"array", "x", core.ErrInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			_, err := l.TestCase(tt.file, tt.name)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	_, fileErr := l.TestCase("missing", "x")
	_, caseErr := l.TestCase("login", "nope")
	if errors.Is(fileErr, core.ErrTestCaseNotFound) || errors.Is(caseErr, core.ErrDataFileNotFound) {
		t.Error("file and case errors must not match each other")
	}
}

func TestAllTestCases_FileOrder(t *testing.T) {
	l := newLoader(t, map[string]string{"login.json": loginData})

	cases, err := l.AllTestCases("login")
	if err != nil {
		t.Fatalf("AllTestCases failed: %v", err)
	}
	var names []string
	for _, c := range cases {
		names = append(names, c.Name())
	}
	want := []string{"valid_login", "invalid_username", "empty_credentials", "attempts"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	if cases[3].String("retries") != "3" {
		t.Errorf("non-string fields should format, got %q", cases[3].String("retries"))
	}
	if cases[0].Has(NameKey) == false {
		t.Error("copies should carry _name")
	}

	tc, _ := l.TestCase("login", "valid_login")
	if tc.Has(NameKey) {
		t.Error("_name must not leak into the cached case")
	}
}

func TestEnvironmentData_Merge(t *testing.T) {
	l := newLoader(t, map[string]string{"login.json": loginData})

	tests := []struct {
		env  string
		want map[string]interface{}
	}{
		{"staging", map[string]interface{}{"a": 1.0, "b": 3.0}},
		{"default", map[string]interface{}{"a": 1.0, "b": 2.0}},
		{"", map[string]interface{}{"a": 1.0, "b": 2.0}},
		{"prod", map[string]interface{}{"a": 1.0, "b": 2.0, "c": "p"}},
		{"unknown", map[string]interface{}{"a": 1.0, "b": 2.0}},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			got, err := l.EnvironmentData("login", tt.env)
			if err != nil {
				t.Fatalf("EnvironmentData failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEnvironmentData_NoDefault(t *testing.T) {
	l := newLoader(t, map[string]string{"d.json": `{"test_cases": {}, "environments": {"qa": {"x": "y"}}}`})

	got, err := l.EnvironmentData("d", "qa")
	if err != nil {
		t.Fatalf("EnvironmentData failed: %v", err)
	}
	if diff := cmp.Diff(map[string]interface{}{"x": "y"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	got, _ = l.EnvironmentData("d", "")
	if len(got) != 0 {
		t.Errorf("expected empty default, got %v", got)
	}
}

func TestCommonData(t *testing.T) {
	l := newLoader(t, map[string]string{"login.json": loginData})

	common, err := l.CommonData("login")
	if err != nil {
		t.Fatalf("CommonData failed: %v", err)
	}
	if common["app_name"] != "Example" {
		t.Errorf("unexpected common data %v", common)
	}
}

func TestMerge(t *testing.T) {
	base := map[string]interface{}{"a": 1, "b": 2}
	override := map[string]interface{}{"b": 3, "c": 4}

	got := Merge(base, override)
	want := map[string]interface{}{"a": 1, "b": 3, "c": 4}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if base["b"] != 2 || len(base) != 2 {
		t.Error("Merge modified its base")
	}
}

func TestLoader_Concurrent(t *testing.T) {
	l := newLoader(t, map[string]string{"login.json": loginData})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.TestCase("login", "valid_login"); err != nil {
				t.Errorf("TestCase failed: %v", err)
			}
		}()
	}
	wg.Wait()
}
