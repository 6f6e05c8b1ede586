package models

import "time"

// StreakState tracks a user's daily-activity streak. It is mutated only by
// the reward trigger, at most once per calendar day.
type StreakState struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	CurrentStreak    int       `gorm:"default:0" json:"current_streak"`
	MaxStreak        int       `gorm:"default:0" json:"max_streak"`
	LastActivityDate string    `gorm:"size:10" json:"last_activity_date"`
	UpdatedAt        time.Time `json:"updated_at"`
}
