package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/appium-pom/pkg/core"
	"github.com/devicelab-dev/appium-pom/pkg/logger"
	"github.com/devicelab-dev/appium-pom/pkg/report"
	"github.com/devicelab-dev/appium-pom/pkg/scenario"
	"github.com/devicelab-dev/appium-pom/pkg/testdata"
	"github.com/devicelab-dev/appium-pom/pkg/validator"
)

var capsCommand = &cli.Command{
	Name:  "caps",
	Usage: "Print the resolved session capabilities as JSON",
	Description: `Resolve app_config.json with the global flags and environment and print
what a session would be created with.

Examples:
  appium-pom caps
  appium-pom -p iOS caps`,
	Action: runCaps,
}

var casesCommand = &cli.Command{
	Name:      "cases",
	Usage:     "List the test cases of a data file",
	ArgsUsage: "<data-file>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "data",
			Usage: "Also print common and environment data (uses --env)",
		},
	},
	Action: runCases,
}

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run the login scenario for every case of a data file",
	ArgsUsage: "<data-file>",
	Description: `Each case gets a fresh session and a reset app. Failed cases leave a
screenshot in <home>/screenshots.

Examples:
  appium-pom run login_test_data
  appium-pom run --report-dir reports/nightly --allure login_test_data`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "report-dir",
			Usage: "Write report.json and report.html to this directory",
		},
		&cli.BoolFlag{
			Name:  "allure",
			Usage: "Also write allure-results/ into the report directory",
		},
		&cli.BoolFlag{
			Name:  "screenshot-on-success",
			Usage: "Capture a screenshot for passing cases too",
		},
	},
	Action: runRun,
}

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "Check data files for malformed login cases",
	ArgsUsage: "[data-file-or-dir]",
	Description: `Without an argument every .json file in the data directory is checked.

Examples:
  appium-pom validate
  appium-pom validate test_data/login_test_data.json`,
	Action: runValidate,
}

func runCaps(c *cli.Context) error {
	suite, err := loadSuite(c)
	if err != nil {
		return err
	}
	cfg := suite.Config
	logger.Debug("resolved %s: %v", cfg.Path, sortedKeys(cfg.Capabilities))
	return writeJSON(c.App.Writer, map[string]interface{}{
		"configFile":   cfg.Path,
		"platform":     cfg.Platform,
		"device":       cfg.Device,
		"serverUrl":    cfg.ServerURL,
		"capabilities": cfg.Capabilities,
	})
}

func runCases(c *cli.Context) error {
	file, err := dataFileArg(c)
	if err != nil {
		return err
	}
	settings, err := loadSettings(c)
	if err != nil {
		return err
	}

	// Only test data is needed here, so skip app config resolution
	loader := testdata.NewLoader(settings.DataDir)
	cases, err := loader.AllTestCases(file)
	if err != nil {
		return err
	}
	for _, tc := range cases {
		fmt.Fprintln(c.App.Writer, tc.Name())
	}

	if !c.Bool("data") {
		return nil
	}
	common, err := loader.CommonData(file)
	if err != nil {
		return err
	}
	env, err := loader.EnvironmentData(file, settings.Environment)
	if err != nil {
		return err
	}
	return writeJSON(c.App.Writer, map[string]interface{}{
		"common":      common,
		"environment": env,
	})
}

func runRun(c *cli.Context) error {
	file, err := dataFileArg(c)
	if err != nil {
		return err
	}
	suite, err := loadSuite(c)
	if err != nil {
		return err
	}

	artifacts := core.DefaultArtifactConfig()
	artifacts.CaptureOnSuccess = c.Bool("screenshot-on-success")

	out := c.App.Writer
	runner := &scenario.Runner{
		ServerURL:     suite.Config.ServerURL,
		Capabilities:  suite.Config.Capabilities,
		Data:          suite.Data,
		PageOptions:   suite.PageOptions,
		ScreenshotDir: suite.Settings.ScreenshotsDir,
		Artifacts:     artifacts,
		OnCase: func(cr core.CaseResult) {
			fmt.Fprintf(out, "  %-8s %s (%s)\n", cr.Status, cr.Name, cr.Duration.Round(time.Millisecond))
			if cr.Message != "" {
				fmt.Fprintf(out, "           %s\n", cr.Message)
			}
		},
	}

	fmt.Fprintf(out, "Running %s on %s (%s)\n", file, suite.Config.Platform, suite.Config.ServerURL)
	result, err := runner.Run(file)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d passed, %d failed, %d skipped in %s\n",
		result.PassedCases, result.FailedCases, result.SkippedCases, result.Duration.Round(time.Millisecond))

	if dir := c.String("report-dir"); dir != "" {
		if err := report.Write(dir, result); err != nil {
			return err
		}
		if c.Bool("allure") {
			if err := report.GenerateAllure(dir); err != nil {
				return err
			}
		}
		fmt.Fprintf(out, "Report: %s\n", filepath.Join(dir, "report.html"))
	}

	if !result.Success() {
		return fmt.Errorf("%d of %d cases failed", result.FailedCases, result.TotalCases)
	}
	return nil
}

func runValidate(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		settings, err := loadSettings(c)
		if err != nil {
			return err
		}
		path = settings.DataDir
	}

	result := validator.Validate(path)
	for _, err := range result.Errors {
		fmt.Fprintf(c.App.Writer, "  %v\n", err)
	}
	if !result.IsValid() {
		return fmt.Errorf("%d problem(s) in %s", len(result.Errors), path)
	}
	fmt.Fprintf(c.App.Writer, "%d file(s), %d case(s) OK\n", len(result.Files), result.Cases)
	return nil
}

func dataFileArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one data file, got %d arguments", c.NArg())
	}
	return c.Args().First(), nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
