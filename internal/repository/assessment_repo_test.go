package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/codeclash/codeclash-api/internal/models"
)

func seedSession(t *testing.T, repo AssessmentRepository) models.AssessmentSession {
	t.Helper()
	session := models.AssessmentSession{
		PublicID:        "s-" + t.Name(),
		AssessmentID:    1,
		UserID:          1,
		StartedAt:       time.Now().UTC(),
		DurationMinutes: 30,
		Status:          models.AssessmentStatusInProgress,
	}
	require.NoError(t, repo.CreateSession(context.Background(), &session))
	return session
}

func TestSaveAnswerIfOpenUpsertsWhileOpen(t *testing.T) {
	db := openRepoTestDB(t, &models.AssessmentSession{}, &models.AssessmentAnswer{})
	repo := NewAssessmentRepository(db)
	ctx := context.Background()

	session := seedSession(t, repo)

	option := 1
	saved, err := repo.SaveAnswerIfOpen(ctx, session.ID, models.AssessmentAnswer{
		QuestionIndex: 0, SelectedOption: &option, Correct: false, AnsweredAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.True(t, saved)

	// A rewrite of the same question replaces the row instead of duplicating it.
	revised := 2
	saved, err = repo.SaveAnswerIfOpen(ctx, session.ID, models.AssessmentAnswer{
		QuestionIndex: 0, SelectedOption: &revised, Correct: true, AnsweredAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.True(t, saved)

	stored, err := repo.GetSessionByPublicID(ctx, session.PublicID)
	require.NoError(t, err)
	require.Len(t, stored.Answers, 1)
	require.Equal(t, 2, *stored.Answers[0].SelectedOption)
	require.True(t, stored.Answers[0].Correct)
}

func TestSaveAnswerIfOpenRejectsClosedSession(t *testing.T) {
	db := openRepoTestDB(t, &models.AssessmentSession{}, &models.AssessmentAnswer{})
	repo := NewAssessmentRepository(db)
	ctx := context.Background()

	session := seedSession(t, repo)

	applied, err := repo.CompleteSession(ctx, session.ID, 5, datatypes.JSONMap{}, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, applied)

	option := 1
	saved, err := repo.SaveAnswerIfOpen(ctx, session.ID, models.AssessmentAnswer{
		QuestionIndex: 0, SelectedOption: &option, AnsweredAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.False(t, saved)

	stored, err := repo.GetSessionByPublicID(ctx, session.PublicID)
	require.NoError(t, err)
	require.Empty(t, stored.Answers)
}

func TestCompleteSessionCompareAndSet(t *testing.T) {
	db := openRepoTestDB(t, &models.AssessmentSession{}, &models.AssessmentAnswer{})
	repo := NewAssessmentRepository(db)
	ctx := context.Background()

	session := seedSession(t, repo)

	first, err := repo.CompleteSession(ctx, session.ID, 7, datatypes.JSONMap{}, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, first)

	// The losing writer of the race observes no rows affected.
	second, err := repo.CompleteSession(ctx, session.ID, 99, datatypes.JSONMap{}, time.Now().UTC())
	require.NoError(t, err)
	require.False(t, second)

	stored, err := repo.GetSessionByPublicID(ctx, session.PublicID)
	require.NoError(t, err)
	require.Equal(t, models.AssessmentStatusCompleted, stored.Status)
	require.Equal(t, 7, stored.Score)
}

func TestHasActiveSession(t *testing.T) {
	db := openRepoTestDB(t, &models.AssessmentSession{}, &models.AssessmentAnswer{})
	repo := NewAssessmentRepository(db)
	ctx := context.Background()

	session := seedSession(t, repo)

	active, err := repo.HasActiveSession(ctx, session.AssessmentID, session.UserID)
	require.NoError(t, err)
	require.True(t, active)

	active, err = repo.HasActiveSession(ctx, session.AssessmentID, 999)
	require.NoError(t, err)
	require.False(t, active)

	_, err = repo.CompleteSession(ctx, session.ID, 0, datatypes.JSONMap{}, time.Now().UTC())
	require.NoError(t, err)

	active, err = repo.HasActiveSession(ctx, session.AssessmentID, session.UserID)
	require.NoError(t, err)
	require.False(t, active)
}
