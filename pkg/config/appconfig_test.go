package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/devicelab-dev/appium-pom/pkg/core"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const androidConfig = `{
  "app": {
    "build_number": "42",
    "version": "1.2.0",
    "app_path": "/apps/example.apk",
    "package_name": "com.example.app",
    "activity_name": ".MainActivity",
    "bundle_id": "com.example.ios"
  },
  "environment": {
    "platform": "Android",
    "platform_version": "14",
    "device_name": "emulator-5554",
    "environment": "staging",
    "android_capabilities": {"noReset": true, "newCommandTimeout": 120},
    "ios_capabilities": {"wdaLocalPort": 8100}
  },
  "capabilities": {"autoGrantPermissions": true}
}`

func TestResolve_Android(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app_config.json", androidConfig)

	r, err := Resolve(Options{ConfigDir: dir})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	want := map[string]interface{}{
		"platformName":         "Android",
		"platformVersion":      "14",
		"deviceName":           "emulator-5554",
		"app":                  "/apps/example.apk",
		"autoGrantPermissions": true,
		"automationName":       "UiAutomator2",
		"appPackage":           "com.example.app",
		"appActivity":          ".MainActivity",
		"noReset":              true,
		"newCommandTimeout":    120.0,
	}
	if diff := cmp.Diff(want, r.Capabilities); diff != "" {
		t.Errorf("capabilities mismatch (-want +got):\n%s", diff)
	}

	if r.ServerURL != DefaultServerURL {
		t.Errorf("expected default server URL, got %q", r.ServerURL)
	}
	if r.Environment != "staging" || r.Platform != "Android" {
		t.Errorf("unexpected environment/platform %q/%q", r.Environment, r.Platform)
	}
	if r.App.BuildNumber != "42" || r.App.Version != "1.2.0" {
		t.Errorf("unexpected app info %+v", r.App)
	}
}

func TestResolve_IOSOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app_config.json", androidConfig)

	r, err := Resolve(Options{ConfigDir: dir, Platform: "iOS", Device: "iPhone 15"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	want := map[string]interface{}{
		"platformName":         "iOS",
		"platformVersion":      "14",
		"deviceName":           "iPhone 15",
		"app":                  "/apps/example.apk",
		"autoGrantPermissions": true,
		"automationName":       "XCUITest",
		"bundleId":             "com.example.ios",
		"wdaLocalPort":         8100.0,
	}
	if diff := cmp.Diff(want, r.Capabilities); diff != "" {
		t.Errorf("capabilities mismatch (-want +got):\n%s", diff)
	}
	if r.Device != "iPhone 15" {
		t.Errorf("expected device override, got %q", r.Device)
	}
}

func TestResolve_PlatformSpecificFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app_config.json", androidConfig)
	ios := writeFile(t, dir, "app_config_ios.json", `{"environment": {"platform": "iOS", "server_url": "http://grid:4444/wd/hub"}}`)

	r, err := Resolve(Options{ConfigDir: dir, Platform: "IOS"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if r.Path != ios {
		t.Errorf("expected %s, got %s", ios, r.Path)
	}
	if r.ServerURL != "http://grid:4444/wd/hub" {
		t.Errorf("unexpected server URL %q", r.ServerURL)
	}

	// No android-specific file: falls back to the default one
	r, err = Resolve(Options{ConfigDir: dir, Platform: "Android"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if filepath.Base(r.Path) != "app_config.json" {
		t.Errorf("expected default file, got %s", r.Path)
	}
}

func TestResolve_Defaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app_config.json", `{}`)

	r, err := Resolve(Options{ConfigDir: dir})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if r.Platform != DefaultPlatform || r.Environment != DefaultEnvironment || r.ServerURL != DefaultServerURL {
		t.Errorf("unexpected defaults %+v", r)
	}
	if r.Capabilities["automationName"] != "UiAutomator2" {
		t.Errorf("expected UiAutomator2, got %v", r.Capabilities["automationName"])
	}
	if _, ok := r.Capabilities["appPackage"]; ok {
		t.Error("appPackage should be absent when not declared")
	}
}

func TestResolve_ExplicitPathAndServerURL(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "custom.json", `{"environment": {"server_url": "http://a:1"}}`)

	r, err := Resolve(Options{Path: path, ConfigDir: "/nowhere", ServerURL: "http://b:2"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if r.Path != path || r.ServerURL != "http://b:2" {
		t.Errorf("unexpected %s / %s", r.Path, r.ServerURL)
	}
}

func TestBuildCapabilities_AutomationName(t *testing.T) {
	tests := []struct {
		name string
		cfg  AppConfig
		want string
	}{
		{"default", AppConfig{}, "UiAutomator2"},
		{"environment", AppConfig{Environment: Environment{AutomationName: "Espresso"}}, "Espresso"},
		{"capabilities section", AppConfig{Capabilities: map[string]interface{}{"automationName": "Flutter"}}, "Flutter"},
		{"platform sub-map wins", AppConfig{Environment: Environment{
			AutomationName:      "Espresso",
			AndroidCapabilities: map[string]interface{}{"automationName": "UiAutomator2"},
		}}, "UiAutomator2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps := tt.cfg.BuildCapabilities("android", "")
			if caps["automationName"] != tt.want {
				t.Errorf("automationName = %v, want %s", caps["automationName"], tt.want)
			}
		})
	}
}

func TestResolve_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.json", `{"app": [`)
	badURL := writeFile(t, dir, "url.json", `{"environment": {"server_url": "not a url"}}`)

	tests := []struct {
		name string
		path string
		want error
	}{
		{"missing", filepath.Join(dir, "missing.json"), core.ErrConfigNotFound},
		{"malformed", bad, core.ErrInvalidFormat},
		{"invalid url", badURL, core.ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(Options{Path: tt.path})
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
