package models

import (
	"time"

	"gorm.io/datatypes"
)

// Assessment question kinds.
const (
	QuestionKindMCQ    = "mcq"
	QuestionKindCoding = "coding"
)

// Assessment session statuses.
const (
	AssessmentStatusInProgress = "in-progress"
	AssessmentStatusCompleted  = "completed"
)

// Assessment is a timed test composed of MCQ and coding questions.
type Assessment struct {
	ID              uint                 `gorm:"primaryKey" json:"id"`
	Title           string               `gorm:"size:255;not null" json:"title"`
	Description     string               `gorm:"type:text" json:"description"`
	DurationMinutes int                  `gorm:"not null" json:"duration_minutes"`
	Questions       []AssessmentQuestion `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"questions,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// AssessmentQuestion is one item in an assessment, either an MCQ with options
// or a coding question backed by a problem.
type AssessmentQuestion struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	AssessmentID  uint           `gorm:"not null;uniqueIndex:idx_assessment_question" json:"assessment_id"`
	Index         int            `gorm:"not null;uniqueIndex:idx_assessment_question" json:"index"`
	Kind          string         `gorm:"size:16;not null" json:"kind"`
	Prompt        string         `gorm:"type:text" json:"prompt"`
	Options       datatypes.JSON `json:"options,omitempty"`
	CorrectOption *int           `json:"-"`
	Subject       string         `gorm:"size:64" json:"subject"`
	ProblemID     *uint          `json:"problem_id,omitempty"`
	Marks         int            `gorm:"default:1" json:"marks"`
}

// AssessmentSession is one user's timed attempt at an assessment. PublicID is
// the identifier exposed over HTTP.
type AssessmentSession struct {
	ID              uint               `gorm:"primaryKey" json:"id"`
	PublicID        string             `gorm:"size:64;uniqueIndex;not null" json:"public_id"`
	AssessmentID    uint               `gorm:"not null;index" json:"assessment_id"`
	UserID          uint               `gorm:"not null;index" json:"user_id"`
	StartedAt       time.Time          `gorm:"not null" json:"started_at"`
	DurationMinutes int                `gorm:"not null" json:"duration_minutes"`
	Status          string             `gorm:"size:32;not null" json:"status"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
	Score           int                `gorm:"default:0" json:"score"`
	SubjectScores   datatypes.JSONMap  `json:"subject_scores,omitempty"`
	Answers         []AssessmentAnswer `gorm:"foreignKey:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"answers,omitempty"`
}

// ExpiresAt returns the authoritative end of the session window.
func (s AssessmentSession) ExpiresAt() time.Time {
	return s.StartedAt.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

// WindowOpenAt reports whether answer writes are still accepted.
func (s AssessmentSession) WindowOpenAt(now time.Time) bool {
	return s.Status == AssessmentStatusInProgress && now.Before(s.ExpiresAt())
}

// AssessmentAnswer captures one answered question within a session.
type AssessmentAnswer struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	SessionID      uint       `gorm:"not null;uniqueIndex:idx_session_question" json:"session_id"`
	QuestionIndex  int        `gorm:"not null;uniqueIndex:idx_session_question" json:"question_index"`
	SelectedOption *int       `json:"selected_option,omitempty"`
	SubmissionID   *uint      `json:"submission_id,omitempty"`
	Correct        bool       `gorm:"default:false" json:"correct"`
	PassedCount    int        `gorm:"default:0" json:"passed_count"`
	TotalCount     int        `gorm:"default:0" json:"total_count"`
	AnsweredAt     time.Time  `json:"answered_at"`
	Submission     Submission `gorm:"foreignKey:SubmissionID" json:"-"`
}
