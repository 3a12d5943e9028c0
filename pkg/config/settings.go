// Package config resolves run settings, the app configuration file and the
// Appium capabilities derived from it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/appium-pom/pkg/core"
)

// Environment variables read by ApplyEnv.
const (
	EnvPlatform    = "APPIUM_PLATFORM"
	EnvDevice      = "APPIUM_DEVICE"
	EnvEnvironment = "TEST_ENV"
)

// Settings is the explicit run configuration (config.yaml), resolved once per run.
type Settings struct {
	// Target selection
	Platform    string `yaml:"platform" validate:"omitempty,platform"`
	Device      string `yaml:"device"`      // Overrides environment.device_name
	Environment string `yaml:"environment"` // Test data environment, "" = default
	ServerURL   string `yaml:"serverUrl" validate:"omitempty,url"`

	// Locations, relative to the project home
	ConfigFile     string `yaml:"configFile"` // Explicit app config file
	ConfigDir      string `yaml:"configDir"`
	DataDir        string `yaml:"dataDir"`
	ScreenshotsDir string `yaml:"screenshotsDir"`

	Timeouts Timeouts `yaml:"timeouts"`
}

// Timeouts for waits and page loads.
type Timeouts struct {
	Wait     time.Duration `yaml:"wait"`     // Element waits
	PageLoad time.Duration `yaml:"pageLoad"` // Page object construction
	Check    time.Duration `yaml:"check"`    // Visibility checks inside page objects
}

// Defaults returns settings with every default filled in.
func Defaults() *Settings {
	s := &Settings{}
	s.applyDefaults()
	return s
}

func (s *Settings) applyDefaults() {
	if s.ConfigDir == "" {
		s.ConfigDir = "config"
	}
	if s.DataDir == "" {
		s.DataDir = "test_data"
	}
	if s.ScreenshotsDir == "" {
		s.ScreenshotsDir = "screenshots"
	}
	if s.Timeouts.Wait <= 0 {
		s.Timeouts.Wait = 30 * time.Second
	}
	if s.Timeouts.PageLoad <= 0 {
		s.Timeouts.PageLoad = 30 * time.Second
	}
	if s.Timeouts.Check <= 0 {
		s.Timeouts.Check = 5 * time.Second
	}
}

// Load loads settings from a file.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, core.ErrConfigNotFound.WithMessage("settings file not found: " + path).WithCause(err)
		}
		return nil, err
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, core.ErrInvalidFormat.WithMessage("invalid YAML in " + path).WithCause(err)
	}
	s.applyDefaults()

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Settings, error) {
	for _, name := range []string{"config.yaml", "config.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	// No settings file found, use defaults
	return Defaults(), nil
}

// ApplyEnv overlays APPIUM_PLATFORM, APPIUM_DEVICE and TEST_ENV when set.
func (s *Settings) ApplyEnv() {
	if v := os.Getenv(EnvPlatform); v != "" {
		s.Platform = v
	}
	if v := os.Getenv(EnvDevice); v != "" {
		s.Device = v
	}
	if v := os.Getenv(EnvEnvironment); v != "" {
		s.Environment = v
	}
}

// Validate checks field formats.
func (s *Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("invalid settings: %v", err)).WithCause(err)
	}
	return nil
}

// Within returns a copy with relative directories resolved against home.
func (s *Settings) Within(home string) *Settings {
	out := *s
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(home, p)
	}
	out.ConfigFile = abs(s.ConfigFile)
	out.ConfigDir = abs(s.ConfigDir)
	out.DataDir = abs(s.DataDir)
	out.ScreenshotsDir = abs(s.ScreenshotsDir)
	return &out
}

// AppOptions returns the options for Resolve.
func (s *Settings) AppOptions() Options {
	return Options{
		Path:      s.ConfigFile,
		Platform:  s.Platform,
		Device:    s.Device,
		ConfigDir: s.ConfigDir,
		ServerURL: s.ServerURL,
	}
}

// IsIOS reports whether platform names iOS, case-insensitively.
func IsIOS(platform string) bool {
	return strings.EqualFold(platform, "ios")
}

// IsAndroid reports whether platform names Android, case-insensitively.
func IsAndroid(platform string) bool {
	return strings.EqualFold(platform, "android")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Platform names match the way capabilities are assembled.
	_ = v.RegisterValidation("platform", func(fl validator.FieldLevel) bool {
		p := fl.Field().String()
		return IsAndroid(p) || IsIOS(p)
	})
	return v
}
