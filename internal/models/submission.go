package models

import "time"

// Submission origins.
const (
	OriginFreeform   = "freeform"
	OriginContest    = "contest"
	OriginAssessment = "assessment"
)

// Submission verdicts.
const (
	VerdictAccepted     = "accepted"
	VerdictWrongAnswer  = "wrong-answer"
	VerdictRuntimeError = "runtime-error"
	VerdictCompileError = "compile-error"
	VerdictTimeLimit    = "time-limit-exceeded"
	VerdictJudgeError   = "judge-error"
)

// Submission records one grading attempt. Rows are append-only: a new attempt
// is a new Submission, never an update to an existing one.
type Submission struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	UserID              uint      `gorm:"not null;index" json:"user_id"`
	ProblemID           uint      `gorm:"not null;index" json:"problem_id"`
	Origin              string    `gorm:"size:32;not null;index" json:"origin"`
	ContestID           *uint     `gorm:"index" json:"contest_id,omitempty"`
	AssessmentSessionID *uint     `gorm:"index" json:"assessment_session_id,omitempty"`
	QuestionIndex       *int      `json:"question_index,omitempty"`
	Language            string    `gorm:"size:32;not null" json:"language"`
	Code                string    `gorm:"type:text" json:"code"`
	Verdict             string    `gorm:"size:32;not null" json:"verdict"`
	PassedCount         int       `gorm:"default:0" json:"passed_count"`
	TotalCount          int       `gorm:"default:0" json:"total_count"`
	RuntimeSec          float64   `gorm:"default:0" json:"runtime_sec"`
	MemoryKB            int64     `gorm:"default:0" json:"memory_kb"`
	CreatedAt           time.Time `json:"created_at"`
}

// IsAccepted reports whether every graded case passed.
func (s Submission) IsAccepted() bool {
	return s.Verdict == VerdictAccepted
}
