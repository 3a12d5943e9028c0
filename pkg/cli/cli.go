// Package cli provides the command-line interface for appium-pom.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/appium-pom/pkg/config"
	"github.com/devicelab-dev/appium-pom/pkg/fixture"
	"github.com/devicelab-dev/appium-pom/pkg/logger"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "platform",
		Aliases: []string{"p"},
		Usage:   "Platform to run on (Android, iOS)",
		EnvVars: []string{config.EnvPlatform},
	},
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"udid"},
		Usage:   "Device name or UDID, overrides environment.device_name",
		EnvVars: []string{config.EnvDevice},
	},
	&cli.StringFlag{
		Name:    "env",
		Aliases: []string{"e"},
		Usage:   "Test data environment",
		EnvVars: []string{config.EnvEnvironment},
	},
	&cli.StringFlag{
		Name:  "config",
		Usage: "App config file (default: <home>/config/app_config[_<platform>].json)",
	},
	&cli.StringFlag{
		Name:    "home",
		Usage:   "Project home holding config/, test_data/ and screenshots/",
		EnvVars: []string{config.EnvHome},
	},
	&cli.StringFlag{
		Name:  "server-url",
		Usage: "Appium server URL, overrides environment.server_url",
	},
	&cli.BoolFlag{
		Name:  "verbose",
		Usage: "Log to stderr at debug level",
	},
	&cli.StringFlag{
		Name:  "log-file",
		Usage: "Write the run log to this file",
	},
}

// Execute runs the CLI.
func Execute() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:    "appium-pom",
		Usage:   "Page-object test runner for Appium",
		Version: Version,
		Description: `appium-pom resolves app configuration and test data for an Appium
session and runs data-driven login scenarios against a device.

Examples:
  appium-pom caps
  appium-pom -p iOS --device "iPhone 15" caps
  appium-pom cases login_test_data
  appium-pom validate
  appium-pom --env staging run login_test_data`,
		Flags: GlobalFlags,
		Commands: []*cli.Command{
			capsCommand,
			casesCommand,
			runCommand,
			validateCommand,
		},
		Before:    setupLogging,
		After:     func(*cli.Context) error { logger.Close(); return nil },
		Writer:    stdout,
		ErrWriter: stderr,
	}
}

func setupLogging(c *cli.Context) error {
	if path := c.String("log-file"); path != "" {
		if err := logger.Init(path); err != nil {
			return err
		}
	} else if c.Bool("verbose") {
		logger.InitWriter(c.App.ErrWriter)
	}
	logger.SetVerbose(c.Bool("verbose"))
	return nil
}

// loadSettings resolves settings: config.yaml in the home, then environment
// variables, then flags.
func loadSettings(c *cli.Context) (*config.Settings, error) {
	home := c.String("home")
	if home == "" {
		home = config.GetHome()
	}

	settings, err := config.LoadFromDir(home)
	if err != nil {
		return nil, err
	}
	settings.ApplyEnv()

	if v := c.String("platform"); v != "" {
		settings.Platform = v
	}
	if v := c.String("device"); v != "" {
		settings.Device = v
	}
	if v := c.String("env"); v != "" {
		settings.Environment = v
	}
	if v := c.String("config"); v != "" {
		settings.ConfigFile = v
	}
	if v := c.String("server-url"); v != "" {
		settings.ServerURL = v
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	logger.Debug("home: %s", home)
	return settings.Within(home), nil
}

func loadSuite(c *cli.Context) (*fixture.Suite, error) {
	settings, err := loadSettings(c)
	if err != nil {
		return nil, err
	}
	return fixture.NewSuite(settings)
}
