// Package validator checks login data files before a run.
// It loads every file up front and reports all problems at once.
package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/devicelab-dev/appium-pom/pkg/scenario"
	"github.com/devicelab-dev/appium-pom/pkg/testdata"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	File    string
	Case    string // empty for file-level errors
	Message string
}

func (e *ValidationError) Error() string {
	if e.Case == "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.File, e.Case, e.Message)
}

// Result contains the validation result.
type Result struct {
	// Files is the list of data files checked, sorted.
	Files []string
	// Cases counts the test cases seen across all files.
	Cases int
	// Errors contains all validation errors found.
	Errors []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Validate checks a data file or every .json file in a directory.
func Validate(path string) *Result {
	result := &Result{}

	info, err := os.Stat(path)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{
			File:    path,
			Message: fmt.Sprintf("cannot access: %v", err),
		})
		return result
	}

	dir, files := filepath.Dir(path), []string{filepath.Base(path)}
	if info.IsDir() {
		dir = path
		files, err = collectDataFiles(path)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{
				File:    path,
				Message: fmt.Sprintf("failed to scan directory: %v", err),
			})
			return result
		}
	}

	loader := testdata.NewLoader(dir)
	for _, name := range files {
		result.Files = append(result.Files, filepath.Join(dir, name))
		validateFile(loader, name, result)
	}
	return result
}

// collectDataFiles lists the .json files directly inside dir.
func collectDataFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func validateFile(loader *testdata.Loader, name string, result *Result) {
	cases, err := loader.AllTestCases(name)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{File: name, Message: err.Error()})
		return
	}
	if len(cases) == 0 {
		result.Errors = append(result.Errors, &ValidationError{File: name, Message: "no test cases"})
		return
	}

	for _, tc := range cases {
		result.Cases++
		for _, msg := range checkCase(tc) {
			result.Errors = append(result.Errors, &ValidationError{File: name, Case: tc.Name(), Message: msg})
		}
	}
}

// checkCase returns the problems in one login case.
func checkCase(tc testdata.Case) []string {
	var problems []string

	for _, field := range []string{scenario.FieldUsername, scenario.FieldPassword, scenario.FieldExpectedResult, scenario.FieldExpectedMessage} {
		if v, ok := tc[field]; ok && v != nil {
			if _, isString := v.(string); !isString {
				problems = append(problems, fmt.Sprintf("%s must be a string, got %T", field, v))
			}
		}
	}

	switch expected := tc.String(scenario.FieldExpectedResult); expected {
	case "", scenario.ExpectSuccess, scenario.ExpectError:
	default:
		problems = append(problems, fmt.Sprintf("unknown expected_result %q (want %q or %q)",
			expected, scenario.ExpectSuccess, scenario.ExpectError))
	}

	if tc.String(scenario.FieldExpectedResult) != scenario.ExpectError &&
		tc.String(scenario.FieldUsername) == "" && tc.String(scenario.FieldPassword) == "" {
		problems = append(problems, "empty credentials can only expect an error")
	}
	return problems
}
