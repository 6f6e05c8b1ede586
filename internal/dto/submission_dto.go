package dto

// CustomCase is a user-authored test case supplied with a freeform run.
type CustomCase struct {
	Input    string `json:"stdin"`
	Expected string `json:"expected_output"`
}

// RunRequest starts a freeform grading attempt that may include custom cases.
type RunRequest struct {
	Code      string       `json:"code" validate:"required"`
	Language  string       `json:"language" validate:"required"`
	TestCases []CustomCase `json:"test_cases" validate:"max=20,dive"`
}

// SubmitRequest starts an official freeform grading attempt.
type SubmitRequest struct {
	Code     string `json:"code" validate:"required"`
	Language string `json:"language" validate:"required"`
}

// CaseView is the per-case breakdown returned to the caller. Hidden cases are
// redacted to source and pass/fail only.
type CaseView struct {
	Source   string `json:"source"`
	Passed   bool   `json:"passed"`
	StatusID int    `json:"status_id,omitempty"`
	Stdin    string `json:"stdin,omitempty"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	Expected string `json:"expected_output,omitempty"`
}

// GradeResponse summarises one grading attempt.
type GradeResponse struct {
	SubmissionID uint       `json:"submission_id"`
	Verdict      string     `json:"verdict"`
	Accepted     bool       `json:"accepted"`
	PassedCount  int        `json:"test_cases_passed"`
	TotalCount   int        `json:"total_test_cases"`
	RuntimeSec   float64    `json:"runtime_sec"`
	MemoryKB     int64      `json:"memory_kb"`
	TestCases    []CaseView `json:"test_cases,omitempty"`
	Streak       *int       `json:"streak,omitempty"`
}
