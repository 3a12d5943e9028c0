package core

import (
	"time"
)

// CaseResult captures the outcome of running one test case
type CaseResult struct {
	// Identity
	Name     string `json:"name"`
	DataFile string `json:"dataFile"`

	// Status
	Status   Status        `json:"status"`
	Category ErrorCategory `json:"errorCategory,omitempty"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Output
	Message string `json:"message,omitempty"` // Human-readable explanation
	Error   string `json:"error,omitempty"`   // Technical error message

	// Debug Artifacts
	Attachments []Attachment `json:"attachments,omitempty"`
}

// SuiteResult captures the outcome of running every case in a data file
type SuiteResult struct {
	// Identity
	Name  string `json:"name"`
	RunID string `json:"runId"` // Unique execution ID

	// Platform info (captured from the first session)
	PlatformInfo *PlatformInfo `json:"platformInfo,omitempty"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Results
	Cases []CaseResult `json:"cases"`

	// Summary
	TotalCases   int `json:"totalCases"`
	PassedCases  int `json:"passedCases"`
	FailedCases  int `json:"failedCases"`
	SkippedCases int `json:"skippedCases"`
}

// ComputeSummary calculates case counts from the Cases slice
func (s *SuiteResult) ComputeSummary() {
	s.TotalCases = len(s.Cases)
	s.PassedCases = 0
	s.FailedCases = 0
	s.SkippedCases = 0

	for _, c := range s.Cases {
		switch c.Status {
		case StatusPassed:
			s.PassedCases++
		case StatusFailed, StatusErrored:
			s.FailedCases++
		case StatusSkipped:
			s.SkippedCases++
		}
	}
}

// Success returns true if every case passed or was skipped, and at least one ran
func (s *SuiteResult) Success() bool {
	ran := 0
	for _, c := range s.Cases {
		switch c.Status {
		case StatusPassed:
			ran++
		case StatusSkipped:
		default:
			return false
		}
	}
	return ran > 0
}
