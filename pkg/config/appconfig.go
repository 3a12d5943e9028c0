package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/devicelab-dev/appium-pom/pkg/core"
	"github.com/devicelab-dev/appium-pom/pkg/logger"
)

// Defaults used when the app config leaves a value out.
const (
	DefaultServerURL   = "http://localhost:4723"
	DefaultPlatform    = "Android"
	DefaultEnvironment = "default"
)

// AppConfig is the app_config JSON file.
type AppConfig struct {
	App          App                    `json:"app"`
	Environment  Environment            `json:"environment"`
	Capabilities map[string]interface{} `json:"capabilities"`
}

// App describes the build under test.
type App struct {
	BuildNumber  string `json:"build_number"`
	Version      string `json:"version"`
	AppPath      string `json:"app_path"`
	PackageName  string `json:"package_name"`
	ActivityName string `json:"activity_name"`
	BundleID     string `json:"bundle_id"`
}

// Environment describes the device and server to run against.
type Environment struct {
	Platform            string                 `json:"platform"`
	PlatformVersion     string                 `json:"platform_version"`
	DeviceName          string                 `json:"device_name"`
	ServerURL           string                 `json:"server_url" validate:"omitempty,url"`
	AutomationName      string                 `json:"automation_name"`
	Environment         string                 `json:"environment"`
	AndroidCapabilities map[string]interface{} `json:"android_capabilities"`
	IOSCapabilities     map[string]interface{} `json:"ios_capabilities"`
}

// Options select which app config to load and what overrides apply.
type Options struct {
	Path      string // Explicit file; skips the lookup in ConfigDir
	Platform  string // Explicit platform; "" = file's environment.platform
	Device    string // Overrides environment.device_name
	ConfigDir string // Directory holding app_config[_<platform>].json
	ServerURL string // Overrides environment.server_url
}

// Resolved is the configuration of one run.
type Resolved struct {
	Path         string
	Platform     string
	Device       string
	ServerURL    string
	Environment  string
	App          App
	Capabilities map[string]interface{}
}

// LoadAppConfig reads and validates an app config file.
func LoadAppConfig(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, core.ErrConfigNotFound.WithMessage("configuration file not found: " + path).WithCause(err)
		}
		return nil, err
	}

	var cfg AppConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, core.ErrInvalidFormat.WithMessage("invalid JSON in configuration file " + path).WithCause(err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("invalid configuration %s: %v", path, err)).WithCause(err)
	}
	return &cfg, nil
}

// ConfigPath picks the app config file: the explicit path, else
// app_config_<platform>.json in dir if it exists, else app_config.json.
func ConfigPath(opts Options) string {
	if opts.Path != "" {
		return opts.Path
	}
	dir := opts.ConfigDir
	if dir == "" {
		dir = "config"
	}
	if opts.Platform != "" {
		candidate := filepath.Join(dir, "app_config_"+strings.ToLower(opts.Platform)+".json")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return filepath.Join(dir, "app_config.json")
}

// Resolve loads the app config selected by opts and derives the run configuration.
func Resolve(opts Options) (*Resolved, error) {
	path := ConfigPath(opts)
	cfg, err := LoadAppConfig(path)
	if err != nil {
		return nil, err
	}

	platform := opts.Platform
	if platform == "" {
		platform = cfg.Environment.Platform
	}
	if platform == "" {
		platform = DefaultPlatform
	}

	r := &Resolved{
		Path:         path,
		Platform:     platform,
		Device:       cfg.Environment.DeviceName,
		ServerURL:    cfg.Environment.ServerURL,
		Environment:  cfg.Environment.Environment,
		App:          cfg.App,
		Capabilities: cfg.BuildCapabilities(platform, opts.Device),
	}
	if opts.Device != "" {
		r.Device = opts.Device
	}
	if opts.ServerURL != "" {
		r.ServerURL = opts.ServerURL
	}
	if r.ServerURL == "" {
		r.ServerURL = DefaultServerURL
	}
	if r.Environment == "" {
		r.Environment = DefaultEnvironment
	}

	logger.Info("config %s: platform=%s device=%s server=%s", path, r.Platform, r.Device, r.ServerURL)
	return r, nil
}

// BuildCapabilities assembles the session capabilities for platform.
//
// Order, later wins: base {platformName, platformVersion, deviceName, app},
// the capabilities section, platform defaults (automationName only when
// neither environment.automation_name nor the capabilities section sets it;
// appPackage/appActivity or bundleId), the platform sub-map, then device.
func (c *AppConfig) BuildCapabilities(platform, device string) map[string]interface{} {
	env := c.Environment
	caps := map[string]interface{}{
		"platformName":    platform,
		"platformVersion": env.PlatformVersion,
		"deviceName":      env.DeviceName,
		"app":             c.App.AppPath,
	}
	for k, v := range c.Capabilities {
		caps[k] = v
	}

	setAutomation := func(fallback string) {
		if env.AutomationName != "" {
			caps["automationName"] = env.AutomationName
			return
		}
		if _, ok := c.Capabilities["automationName"]; !ok {
			caps["automationName"] = fallback
		}
	}

	switch {
	case IsAndroid(platform):
		setAutomation("UiAutomator2")
		if c.App.PackageName != "" {
			caps["appPackage"] = c.App.PackageName
		}
		if c.App.ActivityName != "" {
			caps["appActivity"] = c.App.ActivityName
		}
		for k, v := range env.AndroidCapabilities {
			caps[k] = v
		}
	case IsIOS(platform):
		setAutomation("XCUITest")
		if c.App.BundleID != "" {
			caps["bundleId"] = c.App.BundleID
		}
		for k, v := range env.IOSCapabilities {
			caps[k] = v
		}
	}

	if device != "" {
		caps["deviceName"] = device
	}
	return caps
}
