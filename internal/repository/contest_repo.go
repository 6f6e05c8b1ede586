package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codeclash/codeclash-api/internal/models"
)

// ContestRepository persists contests, registrations, and best-known scores.
type ContestRepository interface {
	GetByID(ctx context.Context, id uint) (models.Contest, error)
	Register(ctx context.Context, registration *models.ContestRegistration) error
	Unregister(ctx context.Context, contestID, userID uint) error
	IsRegistered(ctx context.Context, contestID, userID uint) (bool, error)
	CountRegistrations(ctx context.Context, contestID uint) (int64, error)
	UpsertScoreIfBetter(ctx context.Context, score models.ContestScore) (models.ContestScore, error)
	ListScores(ctx context.Context, contestID uint) ([]models.ContestScore, error)
	ListUserScores(ctx context.Context, contestID, userID uint) ([]models.ContestScore, error)
}

// NewContestRepository constructs a contest repository.
func NewContestRepository(db *gorm.DB) ContestRepository {
	return &contestRepository{db: db}
}

type contestRepository struct {
	db *gorm.DB
}

func (r *contestRepository) GetByID(ctx context.Context, id uint) (models.Contest, error) {
	var contest models.Contest
	err := r.db.WithContext(ctx).
		Preload("Problems", func(db *gorm.DB) *gorm.DB {
			return db.Order("contest_problems.\"order\" ASC")
		}).
		Preload("Problems.Problem").
		First(&contest, id).Error
	if err != nil {
		return models.Contest{}, err
	}
	return contest, nil
}

func (r *contestRepository) Register(ctx context.Context, registration *models.ContestRegistration) error {
	// ON CONFLICT DO NOTHING keeps registration idempotent under the unique index.
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(registration).Error
}

func (r *contestRepository) Unregister(ctx context.Context, contestID, userID uint) error {
	return r.db.WithContext(ctx).
		Where("contest_id = ? AND user_id = ?", contestID, userID).
		Delete(&models.ContestRegistration{}).Error
}

func (r *contestRepository) IsRegistered(ctx context.Context, contestID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ContestRegistration{}).
		Where("contest_id = ? AND user_id = ?", contestID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *contestRepository) CountRegistrations(ctx context.Context, contestID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ContestRegistration{}).
		Where("contest_id = ?", contestID).
		Count(&count).Error
	return count, err
}

// UpsertScoreIfBetter applies best-attempt-wins bookkeeping: the stored
// MarksAwarded never decreases, and on equal scores the earlier attempt keeps
// its AchievedAt timestamp for tie-breaking.
func (r *contestRepository) UpsertScoreIfBetter(ctx context.Context, score models.ContestScore) (models.ContestScore, error) {
	var result models.ContestScore

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.ContestScore
		err := tx.Where("contest_id = ? AND user_id = ? AND problem_id = ?",
			score.ContestID, score.UserID, score.ProblemID).
			First(&existing).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			if createErr := tx.Create(&score).Error; createErr != nil {
				return createErr
			}
			result = score
			return nil
		}
		if err != nil {
			return err
		}

		if score.MarksAwarded <= existing.MarksAwarded {
			result = existing
			return nil
		}

		updates := map[string]interface{}{
			"marks_awarded":      score.MarksAwarded,
			"passed_count":       score.PassedCount,
			"total_count":        score.TotalCount,
			"best_submission_id": score.BestSubmissionID,
			"achieved_at":        score.AchievedAt,
		}
		if updateErr := tx.Model(&existing).
			Where("marks_awarded < ?", score.MarksAwarded).
			Updates(updates).Error; updateErr != nil {
			return updateErr
		}

		return tx.Where("id = ?", existing.ID).First(&result).Error
	})
	if err != nil {
		return models.ContestScore{}, err
	}

	return result, nil
}

func (r *contestRepository) ListScores(ctx context.Context, contestID uint) ([]models.ContestScore, error) {
	var scores []models.ContestScore
	err := r.db.WithContext(ctx).
		Where("contest_id = ?", contestID).
		Find(&scores).Error
	if err != nil {
		return nil, err
	}
	return scores, nil
}

func (r *contestRepository) ListUserScores(ctx context.Context, contestID, userID uint) ([]models.ContestScore, error) {
	var scores []models.ContestScore
	err := r.db.WithContext(ctx).
		Where("contest_id = ? AND user_id = ?", contestID, userID).
		Find(&scores).Error
	if err != nil {
		return nil, err
	}
	return scores, nil
}
