package report

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/devicelab-dev/appium-pom/pkg/core"
	"github.com/devicelab-dev/appium-pom/pkg/logger"
)

// Allure result schema types.

// AllureResult represents a single test result in Allure format.
type AllureResult struct {
	UUID          string              `json:"uuid"`
	HistoryID     string              `json:"historyId"`
	FullName      string              `json:"fullName"`
	Name          string              `json:"name"`
	Status        string              `json:"status"`
	Stage         string              `json:"stage"`
	Start         int64               `json:"start"`
	Stop          int64               `json:"stop"`
	Labels        []AllureLabel       `json:"labels"`
	StatusDetails AllureStatusDetails `json:"statusDetails"`
	Attachments   []AllureAttachment  `json:"attachments"`
}

// AllureAttachment represents a file attachment.
type AllureAttachment struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Type   string `json:"type"`
}

// AllureLabel represents a label on a test result.
type AllureLabel struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AllureStatusDetails holds failure message and trace.
type AllureStatusDetails struct {
	Message string `json:"message"`
	Trace   string `json:"trace"`
}

// AllureCategory defines a failure category with regex matching.
type AllureCategory struct {
	Name            string   `json:"name"`
	MatchedStatuses []string `json:"matchedStatuses"`
	MessageRegex    string   `json:"messageRegex"`
}

// GenerateAllure writes Allure-compatible result files to <dir>/allure-results/
// from the report.json in dir.
func GenerateAllure(dir string) error {
	result, err := ReadReport(dir)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	allureDir := filepath.Join(dir, "allure-results")
	if err := os.MkdirAll(allureDir, 0o755); err != nil {
		return fmt.Errorf("create allure-results dir: %w", err)
	}

	for _, c := range result.Cases {
		res := buildAllureResult(result, c)
		for i, a := range c.Attachments {
			res.Attachments[i].Source = copyAttachment(allureDir, res.UUID, i, a.Path)
		}

		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal allure result for %s: %w", c.Name, err)
		}
		path := filepath.Join(allureDir, res.UUID+"-result.json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write allure result %s: %w", c.Name, err)
		}
	}

	if err := writeAllureCategories(allureDir); err != nil {
		return err
	}
	return writeAllureEnvironment(allureDir, result)
}

func buildAllureResult(suite *core.SuiteResult, c core.CaseResult) AllureResult {
	start := c.StartTime.UnixMilli()

	labels := []AllureLabel{
		{Name: "suite", Value: suite.Name},
		{Name: "parentSuite", Value: "appium-pom"},
		{Name: "severity", Value: "normal"},
	}
	if c.Category != core.ErrCategoryNone {
		labels = append(labels, AllureLabel{Name: "tag", Value: c.Category.String()})
	}
	if info := suite.PlatformInfo; info != nil && info.DeviceName != "" {
		labels = append(labels, AllureLabel{Name: "host", Value: info.DeviceName})
	}

	details := AllureStatusDetails{Message: c.Message, Trace: c.Error}

	attachments := make([]AllureAttachment, 0, len(c.Attachments))
	for _, a := range c.Attachments {
		attachments = append(attachments, AllureAttachment{Name: a.Name, Type: a.ContentType})
	}

	return AllureResult{
		UUID:          uuid.NewString(),
		HistoryID:     fnv32aHash(suite.Name + ":" + c.Name),
		FullName:      suite.Name + "." + c.Name,
		Name:          c.Name,
		Status:        mapAllureStatus(c.Status),
		Stage:         "finished",
		Start:         start,
		Stop:          start + c.Duration.Milliseconds(),
		Labels:        labels,
		StatusDetails: details,
		Attachments:   attachments,
	}
}

// copyAttachment copies src into allureDir and returns the new file name,
// or "" if it could not be copied.
func copyAttachment(allureDir, resultID string, idx int, src string) string {
	name := fmt.Sprintf("%s-attachment-%d%s", resultID, idx, filepath.Ext(src))

	in, err := os.Open(src) //#nosec G304 -- attachment path recorded by the runner
	if err != nil {
		logger.Warn("failed to open attachment %s: %v", src, err)
		return ""
	}
	defer in.Close()

	out, err := os.Create(filepath.Join(allureDir, name))
	if err != nil {
		logger.Warn("failed to create attachment %s: %v", name, err)
		return ""
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		logger.Warn("failed to copy %s: %v", src, err)
		return ""
	}
	return name
}

// mapAllureStatus maps a case status to an Allure status string.
// Allure calls unexpected errors "broken".
func mapAllureStatus(s core.Status) string {
	switch s {
	case core.StatusPassed:
		return "passed"
	case core.StatusFailed:
		return "failed"
	case core.StatusErrored:
		return "broken"
	case core.StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// fnv32aHash returns a hex-encoded FNV-32a hash of the input string.
func fnv32aHash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}

func writeAllureCategories(allureDir string) error {
	categories := []AllureCategory{
		{Name: "Text Mismatch", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*does not match.*|.*mismatch.*"},
		{Name: "Expected Screen Not Shown", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*condition was not met.*|.*did not load.*"},
		{Name: "Element Not Found", MatchedStatuses: []string{"failed", "broken"}, MessageRegex: "(?i).*element not found.*|.*no such element.*"},
		{Name: "Timeout", MatchedStatuses: []string{"broken"}, MessageRegex: "(?i).*timeout.*|.*timed out.*"},
		{Name: "Session Error", MatchedStatuses: []string{"broken"}, MessageRegex: "(?i).*session.*|.*could not connect.*"},
	}

	data, err := json.MarshalIndent(categories, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}
	if err := os.WriteFile(filepath.Join(allureDir, "categories.json"), data, 0o644); err != nil {
		return fmt.Errorf("write categories.json: %w", err)
	}
	return nil
}

// writeAllureEnvironment writes environment.properties with device metadata.
func writeAllureEnvironment(allureDir string, result *core.SuiteResult) error {
	var b strings.Builder
	b.WriteString("framework=appium-pom\n")
	fmt.Fprintf(&b, "run.id=%s\n", result.RunID)

	if info := result.PlatformInfo; info != nil {
		if info.Platform != "" {
			fmt.Fprintf(&b, "device.platform=%s\n", info.Platform)
		}
		if info.OSVersion != "" {
			fmt.Fprintf(&b, "device.osVersion=%s\n", info.OSVersion)
		}
		if info.DeviceName != "" {
			fmt.Fprintf(&b, "device.name=%s\n", info.DeviceName)
		}
		if info.AppID != "" {
			fmt.Fprintf(&b, "app.id=%s\n", info.AppID)
		}
	}

	path := filepath.Join(allureDir, "environment.properties")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write environment.properties: %w", err)
	}
	return nil
}
