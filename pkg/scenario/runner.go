package scenario

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/appium-pom/pkg/automation"
	"github.com/devicelab-dev/appium-pom/pkg/core"
	"github.com/devicelab-dev/appium-pom/pkg/driver/appium"
	"github.com/devicelab-dev/appium-pom/pkg/logger"
	"github.com/devicelab-dev/appium-pom/pkg/page"
	"github.com/devicelab-dev/appium-pom/pkg/testdata"
)

// Runner executes every login case of a data file, one session per case.
type Runner struct {
	ServerURL    string
	Capabilities map[string]interface{}
	Data         *testdata.Loader

	// PageOptions builds page options for a new session (nil = page defaults).
	PageOptions   func(core.Driver) []page.Option
	ScreenshotDir string
	Artifacts     core.ArtifactConfig

	// OnCase, if set, is called after each case finishes.
	OnCase func(core.CaseResult)
}

// Run executes the cases in file order and returns the suite result.
// The error is non-nil only when the data file itself cannot be used.
func (r *Runner) Run(file string) (*core.SuiteResult, error) {
	cases, err := r.Data.AllTestCases(file)
	if err != nil {
		return nil, err
	}
	if len(cases) == 0 {
		return nil, core.ErrTestCaseNotFound.WithMessage("no test cases in " + file)
	}

	result := &core.SuiteResult{
		Name:      file,
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
	}
	logger.Info("run %s: %d cases from %s", result.RunID, len(cases), file)

	for _, tc := range cases {
		cr := r.runCase(file, tc, result)
		logger.Info("case %s: %s (%s)", cr.Name, cr.Status, cr.Duration.Round(time.Millisecond))
		result.Cases = append(result.Cases, cr)
		if r.OnCase != nil {
			r.OnCase(cr)
		}
	}

	result.Duration = time.Since(result.StartTime)
	result.ComputeSummary()
	return result, nil
}

func (r *Runner) runCase(file string, tc testdata.Case, suite *core.SuiteResult) core.CaseResult {
	cr := core.CaseResult{
		Name:      tc.Name(),
		DataFile:  file,
		Status:    core.StatusRunning,
		StartTime: time.Now(),
	}
	finish := func(err error) core.CaseResult {
		cr.Duration = time.Since(cr.StartTime)
		cr.Status = statusOf(err)
		if err != nil {
			cr.Category = core.CategoryOf(err)
			cr.Error = err.Error()
			cr.Message = messageOf(err)
		}
		return cr
	}

	drv, err := appium.NewSession(r.ServerURL, r.Capabilities)
	if err != nil {
		return finish(err)
	}
	defer func() {
		if err := drv.Quit(); err != nil {
			logger.Warn("quit session: %v", err)
		}
	}()
	if suite.PlatformInfo == nil {
		suite.PlatformInfo = drv.GetPlatformInfo()
	}

	if err := drv.ResetApp(); err != nil && !errors.Is(err, core.ErrMissingRequired) {
		return finish(fmt.Errorf("reset app: %w", err))
	}

	var opts []page.Option
	if r.PageOptions != nil {
		opts = r.PageOptions(drv)
	}
	err = Login(drv, tc, opts...)
	cr = finish(err)

	if r.Artifacts.ShouldCapture(cr.Status) {
		name := fmt.Sprintf("%s_%s.png", cr.Name, uuid.NewString()[:8])
		path := filepath.Join(r.ScreenshotDir, name)
		if automation.New(drv, nil).TakeScreenshot(path) {
			cr.Attachments = append(cr.Attachments, core.NewScreenshotAttachment(path, nil))
		}
	}
	return cr
}

// statusOf maps an outcome onto a case status: assertion errors fail the
// case, anything else is an error.
func statusOf(err error) core.Status {
	switch {
	case err == nil:
		return core.StatusPassed
	case core.CategoryOf(err) == core.ErrCategoryAssertion:
		return core.StatusFailed
	default:
		return core.StatusErrored
	}
}

func messageOf(err error) string {
	var execErr *core.ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Message
	}
	return err.Error()
}
