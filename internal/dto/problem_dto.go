package dto

import (
	"github.com/codeclash/codeclash-api/internal/models"
)

// ProblemSummary is the listing view of a problem.
type ProblemSummary struct {
	ID         uint     `json:"id"`
	Slug       string   `json:"slug"`
	Title      string   `json:"title"`
	Difficulty string   `json:"difficulty"`
	Tags       []string `json:"tags"`
	Premium    bool     `json:"premium"`
}

// SampleCase is a visible test case including its explanation.
type SampleCase struct {
	Input       string `json:"input"`
	Expected    string `json:"expected"`
	Explanation string `json:"explanation,omitempty"`
}

// ProblemDetail is the full solver-facing view of a problem. Hidden cases and
// reference code are never part of it.
type ProblemDetail struct {
	ProblemSummary
	Statement     string            `json:"statement"`
	TimeLimitSec  float64           `json:"time_limit_sec"`
	MemoryLimitKB int64             `json:"memory_limit_kb"`
	StarterCode   map[string]string `json:"starter_code,omitempty"`
	SampleCases   []SampleCase      `json:"sample_cases"`
}

// NewProblemSummary maps a problem model to its listing view.
func NewProblemSummary(problem models.Problem) ProblemSummary {
	return ProblemSummary{
		ID:         problem.ID,
		Slug:       problem.Slug,
		Title:      problem.Title,
		Difficulty: problem.Difficulty,
		Tags:       problem.TagsSlice(),
		Premium:    problem.Premium,
	}
}

// NewProblemDetail maps a problem model to its solver-facing view.
func NewProblemDetail(problem models.Problem) ProblemDetail {
	starter := make(map[string]string, len(problem.StarterCode))
	for lang, code := range problem.StarterCode {
		if text, ok := code.(string); ok {
			starter[lang] = text
		}
	}

	visible := problem.VisibleCases()
	samples := make([]SampleCase, 0, len(visible))
	for _, tc := range visible {
		samples = append(samples, SampleCase{
			Input:       tc.Input,
			Expected:    tc.Expected,
			Explanation: tc.Explanation,
		})
	}

	return ProblemDetail{
		ProblemSummary: NewProblemSummary(problem),
		Statement:      problem.Statement,
		TimeLimitSec:   problem.TimeLimitSec,
		MemoryLimitKB:  problem.MemoryLimitKB,
		StarterCode:    starter,
		SampleCases:    samples,
	}
}
