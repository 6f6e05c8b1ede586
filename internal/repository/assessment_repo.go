package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codeclash/codeclash-api/internal/models"
)

// AssessmentRepository persists assessments and their timed sessions.
type AssessmentRepository interface {
	GetByID(ctx context.Context, id uint) (models.Assessment, error)
	CreateSession(ctx context.Context, session *models.AssessmentSession) error
	GetSessionByPublicID(ctx context.Context, publicID string) (models.AssessmentSession, error)
	HasActiveSession(ctx context.Context, assessmentID, userID uint) (bool, error)
	SaveAnswerIfOpen(ctx context.Context, sessionID uint, answer models.AssessmentAnswer) (bool, error)
	CompleteSession(ctx context.Context, sessionID uint, score int, subjectScores datatypes.JSONMap, completedAt time.Time) (bool, error)
}

// NewAssessmentRepository constructs an assessment repository.
func NewAssessmentRepository(db *gorm.DB) AssessmentRepository {
	return &assessmentRepository{db: db}
}

type assessmentRepository struct {
	db *gorm.DB
}

func (r *assessmentRepository) GetByID(ctx context.Context, id uint) (models.Assessment, error) {
	var assessment models.Assessment
	err := r.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("assessment_questions.\"index\" ASC")
		}).
		First(&assessment, id).Error
	if err != nil {
		return models.Assessment{}, err
	}
	return assessment, nil
}

func (r *assessmentRepository) CreateSession(ctx context.Context, session *models.AssessmentSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *assessmentRepository) GetSessionByPublicID(ctx context.Context, publicID string) (models.AssessmentSession, error) {
	var session models.AssessmentSession
	err := r.db.WithContext(ctx).
		Preload("Answers").
		Where("public_id = ?", publicID).
		First(&session).Error
	if err != nil {
		return models.AssessmentSession{}, err
	}
	return session, nil
}

func (r *assessmentRepository) HasActiveSession(ctx context.Context, assessmentID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AssessmentSession{}).
		Where("assessment_id = ? AND user_id = ? AND status = ?", assessmentID, userID, models.AssessmentStatusInProgress).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SaveAnswerIfOpen upserts an answer only while the owning session is still
// in progress. The status re-check inside the transaction closes the race
// between a late write and a concurrent completion.
func (r *assessmentRepository) SaveAnswerIfOpen(ctx context.Context, sessionID uint, answer models.AssessmentAnswer) (bool, error) {
	saved := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open int64
		err := tx.Model(&models.AssessmentSession{}).
			Where("id = ? AND status = ?", sessionID, models.AssessmentStatusInProgress).
			Count(&open).Error
		if err != nil {
			return err
		}
		if open == 0 {
			return nil
		}

		answer.SessionID = sessionID
		err = tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "session_id"}, {Name: "question_index"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"selected_option", "submission_id", "correct", "passed_count", "total_count", "answered_at",
			}),
		}).Create(&answer).Error
		if err != nil {
			return err
		}

		saved = true
		return nil
	})

	return saved, err
}

// CompleteSession transitions in-progress -> completed as a compare-and-set;
// it reports false when the session was already completed.
func (r *assessmentRepository) CompleteSession(ctx context.Context, sessionID uint, score int, subjectScores datatypes.JSONMap, completedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.AssessmentSession{}).
		Where("id = ? AND status = ?", sessionID, models.AssessmentStatusInProgress).
		Updates(map[string]interface{}{
			"status":         models.AssessmentStatusCompleted,
			"score":          score,
			"subject_scores": subjectScores,
			"completed_at":   completedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
