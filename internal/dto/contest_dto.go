package dto

import "time"

// ContestSubmitRequest is one contest grading attempt.
type ContestSubmitRequest struct {
	ProblemID uint   `json:"problem_id" validate:"required"`
	Code      string `json:"code" validate:"required"`
	Language  string `json:"language" validate:"required"`
}

// ContestSubmitResponse reports the graded attempt and the best-known marks.
type ContestSubmitResponse struct {
	Status       string `json:"status"`
	MarksAwarded int    `json:"marks_awarded"`
	PassedCount  int    `json:"test_cases_passed"`
	TotalCount   int    `json:"total_test_cases"`
}

// ContestProblemView is one problem slot inside a contest.
type ContestProblemView struct {
	ProblemID    uint   `json:"problem_id"`
	Slug         string `json:"slug"`
	Title        string `json:"title"`
	Difficulty   string `json:"difficulty"`
	Marks        int    `json:"marks"`
	MarksAwarded int    `json:"marks_awarded"`
}

// ContestView is contest metadata plus the viewer's standing.
type ContestView struct {
	ID              uint                 `json:"id"`
	Slug            string               `json:"slug"`
	Title           string               `json:"title"`
	Description     string               `json:"description"`
	StartTime       time.Time            `json:"start_time"`
	EndTime         time.Time            `json:"end_time"`
	Status          string               `json:"status"`
	MaxParticipants int                  `json:"max_participants,omitempty"`
	Registered      bool                 `json:"registered"`
	TotalScore      int                  `json:"total_score"`
	Problems        []ContestProblemView `json:"problems"`
}

// LeaderboardEntry is one ranked row of the contest leaderboard.
type LeaderboardEntry struct {
	Rank       int       `json:"rank"`
	UserID     uint      `json:"user_id"`
	TotalScore int       `json:"total_score"`
	Solved     int       `json:"solved"`
	LastScored time.Time `json:"last_scored"`
}

// Leaderboard is a ranked snapshot for a contest.
type Leaderboard struct {
	ContestID   uint               `json:"contest_id"`
	GeneratedAt time.Time          `json:"generated_at"`
	Entries     []LeaderboardEntry `json:"entries"`
}
