package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Problem difficulty levels.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Problem represents a published coding problem.
type Problem struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	Slug          string            `gorm:"size:255;uniqueIndex;not null" json:"slug"`
	Title         string            `gorm:"size:255;not null" json:"title"`
	Statement     string            `gorm:"type:text;not null" json:"statement"`
	Difficulty    string            `gorm:"size:32;not null" json:"difficulty"`
	Tags          string            `gorm:"type:text" json:"tags"`
	Premium       bool              `gorm:"default:false" json:"premium"`
	TimeLimitSec  float64           `gorm:"default:2" json:"time_limit_sec"`
	MemoryLimitKB int64             `gorm:"default:262144" json:"memory_limit_kb"`
	StarterCode   datatypes.JSONMap `json:"starter_code"`
	ReferenceCode datatypes.JSONMap `json:"-"`
	TestCases     []TestCase        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// TagsSlice returns the tags as a slice of strings.
func (p Problem) TagsSlice() []string {
	if p.Tags == "" {
		return nil
	}

	parts := strings.Split(p.Tags, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}

// VisibleCases returns the sample cases shown to solvers.
func (p Problem) VisibleCases() []TestCase {
	cases := make([]TestCase, 0, len(p.TestCases))
	for _, tc := range p.TestCases {
		if !tc.Hidden {
			cases = append(cases, tc)
		}
	}
	return cases
}

// HiddenCases returns the cases used for official grading only.
func (p Problem) HiddenCases() []TestCase {
	cases := make([]TestCase, 0, len(p.TestCases))
	for _, tc := range p.TestCases {
		if tc.Hidden {
			cases = append(cases, tc)
		}
	}
	return cases
}

// TestCase is one input/expected-output pair attached to a problem. Hidden
// cases never leave the server in grading payloads.
type TestCase struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	ProblemID   uint   `gorm:"not null;index" json:"problem_id"`
	Input       string `gorm:"type:text" json:"input"`
	Expected    string `gorm:"type:text" json:"expected"`
	Explanation string `gorm:"type:text" json:"explanation"`
	Hidden      bool   `gorm:"default:false" json:"hidden"`
}
