package models

import "time"

// Contest statuses derived from the wall clock, never stored.
const (
	ContestStatusUpcoming = "upcoming"
	ContestStatusLive     = "live"
	ContestStatusEnded    = "ended"
)

// Contest represents a time-boxed competition over a fixed problem set.
type Contest struct {
	ID              uint             `gorm:"primaryKey" json:"id"`
	Slug            string           `gorm:"size:255;uniqueIndex;not null" json:"slug"`
	Title           string           `gorm:"size:255;not null" json:"title"`
	Description     string           `gorm:"type:text" json:"description"`
	StartTime       time.Time        `gorm:"not null" json:"start_time"`
	EndTime         time.Time        `gorm:"not null" json:"end_time"`
	MaxParticipants int              `gorm:"default:0" json:"max_participants"`
	Problems        []ContestProblem `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"problems,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// StatusAt derives the contest status from the wall clock. The server clock is
// authoritative; client countdowns are advisory.
func (c Contest) StatusAt(now time.Time) string {
	switch {
	case now.Before(c.StartTime):
		return ContestStatusUpcoming
	case now.Before(c.EndTime):
		return ContestStatusLive
	default:
		return ContestStatusEnded
	}
}

// WindowOpenAt reports whether writes are accepted at the given instant.
func (c Contest) WindowOpenAt(now time.Time) bool {
	return !now.Before(c.StartTime) && now.Before(c.EndTime)
}

// TotalMarks sums the configured marks across the contest's problems.
func (c Contest) TotalMarks() int {
	total := 0
	for _, p := range c.Problems {
		total += p.Marks
	}
	return total
}

// ContestProblem links a problem into a contest with its mark weight.
type ContestProblem struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	ContestID uint    `gorm:"not null;uniqueIndex:idx_contest_problem" json:"contest_id"`
	ProblemID uint    `gorm:"not null;uniqueIndex:idx_contest_problem" json:"problem_id"`
	Marks     int     `gorm:"not null" json:"marks"`
	Order     int     `gorm:"default:0" json:"order"`
	Problem   Problem `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"problem"`
}

// ContestRegistration marks a user as registered for a contest.
type ContestRegistration struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ContestID    uint      `gorm:"not null;uniqueIndex:idx_contest_user" json:"contest_id"`
	UserID       uint      `gorm:"not null;uniqueIndex:idx_contest_user" json:"user_id"`
	RegisteredAt time.Time `json:"registered_at"`
}

// ContestScore holds the best-known result for one (contest, user, problem).
// MarksAwarded is monotonically non-decreasing across resubmissions; the
// submission log is the full history.
type ContestScore struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	ContestID        uint      `gorm:"not null;uniqueIndex:idx_contest_user_problem" json:"contest_id"`
	UserID           uint      `gorm:"not null;uniqueIndex:idx_contest_user_problem" json:"user_id"`
	ProblemID        uint      `gorm:"not null;uniqueIndex:idx_contest_user_problem" json:"problem_id"`
	MarksAwarded     int       `gorm:"default:0" json:"marks_awarded"`
	PassedCount      int       `gorm:"default:0" json:"passed_count"`
	TotalCount       int       `gorm:"default:0" json:"total_count"`
	BestSubmissionID uint      `json:"best_submission_id"`
	AchievedAt       time.Time `json:"achieved_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
