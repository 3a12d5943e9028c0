// Package report persists suite results as report.json and renders HTML and
// Allure output from it.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/devicelab-dev/appium-pom/pkg/core"
	"github.com/devicelab-dev/appium-pom/pkg/logger"
)

// IndexFile is the name of the JSON result inside a report directory.
const IndexFile = "report.json"

// Write stores result in dir as report.json and renders report.html next to it.
// Screenshots referenced by the cases are embedded into the HTML.
func Write(dir string, result *core.SuiteResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := atomicWriteJSON(filepath.Join(dir, IndexFile), result); err != nil {
		return err
	}
	if err := GenerateHTML(dir, HTMLConfig{EmbedAssets: true}); err != nil {
		return err
	}
	logger.Info("report for run %s written to %s", result.RunID, dir)
	return nil
}

// ReadReport loads report.json from dir.
func ReadReport(dir string) (*core.SuiteResult, error) {
	path := filepath.Join(dir, IndexFile)
	data, err := os.ReadFile(path) //#nosec G304 -- report directory chosen by the user
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var result core.SuiteResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, core.ErrInvalidFormat.WithMessage("invalid report " + path).WithCause(err)
	}
	return &result, nil
}

// atomicWriteJSON writes v to a temp file in the same directory and renames it
// over path, so readers never see a partial file.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
