package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/codeclash/codeclash-api/internal/models"
)

// SubmissionFilter narrows submission listings.
type SubmissionFilter struct {
	UserID    *uint
	ProblemID *uint
	Origin    string
	Limit     int
}

// SubmissionRepository persists the append-only submission log.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
}

// NewSubmissionRepository constructs a submission repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

type submissionRepository struct {
	db *gorm.DB
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	tx := r.db.WithContext(ctx).Model(&models.Submission{})

	if filter.UserID != nil {
		tx = tx.Where("user_id = ?", *filter.UserID)
	}
	if filter.ProblemID != nil {
		tx = tx.Where("problem_id = ?", *filter.ProblemID)
	}
	if filter.Origin != "" {
		tx = tx.Where("origin = ?", filter.Origin)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var submissions []models.Submission
	if err := tx.Order("created_at DESC").Limit(limit).Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}
