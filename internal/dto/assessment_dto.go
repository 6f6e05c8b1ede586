package dto

import "time"

// StartAssessmentResponse returns the public session identifier used by all
// subsequent answer and completion calls.
type StartAssessmentResponse struct {
	SubmissionID string    `json:"submission_id"`
	StartedAt    time.Time `json:"started_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// MCQAnswerRequest records an option selection for one question.
type MCQAnswerRequest struct {
	SubmissionID   string `json:"submission_id" validate:"required"`
	QuestionIndex  int    `json:"question_index" validate:"min=0"`
	SelectedOption int    `json:"selected_option" validate:"min=0"`
}

// CodingAnswerRequest grades code for one coding question.
type CodingAnswerRequest struct {
	SubmissionID  string `json:"submission_id" validate:"required"`
	QuestionIndex int    `json:"question_index" validate:"min=0"`
	Code          string `json:"code" validate:"required"`
	Language      string `json:"language" validate:"required"`
}

// CodingAnswerResponse reports pass counts only; hidden case data stays on
// the server.
type CodingAnswerResponse struct {
	PassedCount int `json:"test_cases_passed"`
	TotalCount  int `json:"total_test_cases"`
}

// CompleteAssessmentRequest finalises a session.
type CompleteAssessmentRequest struct {
	SubmissionID string `json:"submission_id" validate:"required"`
}

// CompleteAssessmentResponse confirms the final score.
type CompleteAssessmentResponse struct {
	SubmissionID string    `json:"submission_id"`
	Score        int       `json:"score"`
	CompletedAt  time.Time `json:"completed_at"`
}

// QuestionReport is the per-question line of an assessment report.
type QuestionReport struct {
	QuestionIndex  int    `json:"question_index"`
	Kind           string `json:"kind"`
	Subject        string `json:"subject,omitempty"`
	Answered       bool   `json:"answered"`
	Correct        bool   `json:"correct"`
	SelectedOption *int   `json:"selected_option,omitempty"`
	CorrectOption  *int   `json:"correct_option,omitempty"`
	PassedCount    int    `json:"test_cases_passed,omitempty"`
	TotalCount     int    `json:"total_test_cases,omitempty"`
	Marks          int    `json:"marks"`
	MarksAwarded   int    `json:"marks_awarded"`
}

// SubjectScore aggregates correctness per subject tag.
type SubjectScore struct {
	Total   int `json:"total"`
	Correct int `json:"correct"`
}

// AssessmentReport is the full report for a completed session.
type AssessmentReport struct {
	SubmissionID string                  `json:"submission_id"`
	AssessmentID uint                    `json:"assessment_id"`
	Score        int                     `json:"score"`
	TotalMarks   int                     `json:"total_marks"`
	StartedAt    time.Time               `json:"started_at"`
	CompletedAt  *time.Time              `json:"completed_at,omitempty"`
	Questions    []QuestionReport        `json:"questions"`
	Subjects     map[string]SubjectScore `json:"subjects"`
}
