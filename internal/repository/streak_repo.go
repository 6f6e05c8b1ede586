package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/codeclash/codeclash-api/internal/models"
)

// StreakRepository persists per-user streak state.
type StreakRepository interface {
	Get(ctx context.Context, userID uint) (models.StreakState, error)
	Save(ctx context.Context, state *models.StreakState) error
}

// NewStreakRepository constructs a streak repository.
func NewStreakRepository(db *gorm.DB) StreakRepository {
	return &streakRepository{db: db}
}

type streakRepository struct {
	db *gorm.DB
}

func (r *streakRepository) Get(ctx context.Context, userID uint) (models.StreakState, error) {
	var state models.StreakState
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&state).Error
	if err != nil {
		return models.StreakState{}, err
	}
	return state, nil
}

func (r *streakRepository) Save(ctx context.Context, state *models.StreakState) error {
	return r.db.WithContext(ctx).Save(state).Error
}
