package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/codeclash/codeclash-api/internal/dto"
	"github.com/codeclash/codeclash-api/internal/models"
	"github.com/codeclash/codeclash-api/internal/repository"
)

func assessmentTestDB(t *testing.T) *gorm.DB {
	return openTestDB(t,
		&models.Problem{}, &models.TestCase{}, &models.Submission{},
		&models.Assessment{}, &models.AssessmentQuestion{}, &models.AssessmentSession{}, &models.AssessmentAnswer{},
	)
}

func seedAssessment(t *testing.T, db *gorm.DB) models.Assessment {
	t.Helper()

	problem := models.Problem{Slug: "reverse-list", Title: "Reverse List", Statement: "reverse", Difficulty: models.DifficultyMedium}
	require.NoError(t, db.Create(&problem).Error)

	assessment := models.Assessment{Title: "Backend Basics", DurationMinutes: 30}
	require.NoError(t, db.Create(&assessment).Error)

	correctFirst := 1
	correctSecond := 0
	questions := []models.AssessmentQuestion{
		{
			AssessmentID:  assessment.ID,
			Index:         0,
			Kind:          models.QuestionKindMCQ,
			Prompt:        "pick one",
			Options:       datatypes.JSON([]byte(`["heap","stack","queue"]`)),
			CorrectOption: &correctFirst,
			Subject:       "data-structures",
			Marks:         2,
		},
		{
			AssessmentID:  assessment.ID,
			Index:         1,
			Kind:          models.QuestionKindMCQ,
			Prompt:        "pick another",
			Options:       datatypes.JSON([]byte(`["O(n)","O(1)"]`)),
			CorrectOption: &correctSecond,
			Subject:       "algorithms",
			Marks:         2,
		},
		{
			AssessmentID: assessment.ID,
			Index:        2,
			Kind:         models.QuestionKindCoding,
			Prompt:       "reverse a list",
			Subject:      "algorithms",
			ProblemID:    &problem.ID,
			Marks:        5,
		},
	}
	for i := range questions {
		require.NoError(t, db.Create(&questions[i]).Error)
	}

	assessment.Questions = questions
	return assessment
}

type assessmentFixture struct {
	svc        *assessmentService
	repo       repository.AssessmentRepository
	grading    *scriptedGrading
	publisher  *capturePublisher
	assessment models.Assessment
	clock      *time.Time
}

func newAssessmentFixture(t *testing.T) *assessmentFixture {
	db := assessmentTestDB(t)
	assessment := seedAssessment(t, db)

	repo := repository.NewAssessmentRepository(db)
	grading := &scriptedGrading{}
	publisher := &capturePublisher{}

	svc := NewAssessmentService(repo, grading, publisher, zerolog.Nop()).(*assessmentService)
	now := time.Now().UTC()
	svc.now = func() time.Time { return now }

	return &assessmentFixture{
		svc:        svc,
		repo:       repo,
		grading:    grading,
		publisher:  publisher,
		assessment: assessment,
		clock:      &now,
	}
}

func (f *assessmentFixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func TestAssessmentStartAndDuplicateRejected(t *testing.T) {
	f := newAssessmentFixture(t)
	ctx := context.Background()

	started, err := f.svc.Start(ctx, f.assessment.ID, 1)
	require.NoError(t, err)
	require.NotEmpty(t, started.SubmissionID)
	require.Equal(t, started.StartedAt.Add(30*time.Minute), started.ExpiresAt)

	_, err = f.svc.Start(ctx, f.assessment.ID, 1)
	require.ErrorIs(t, err, ErrActiveSessionExists)

	// A different user starts independently.
	_, err = f.svc.Start(ctx, f.assessment.ID, 2)
	require.NoError(t, err)

	_, err = f.svc.Start(ctx, 9999, 1)
	require.ErrorIs(t, err, ErrAssessmentNotFound)
}

func TestAssessmentAnswerMCQValidation(t *testing.T) {
	f := newAssessmentFixture(t)
	ctx := context.Background()

	started, err := f.svc.Start(ctx, f.assessment.ID, 1)
	require.NoError(t, err)

	err = f.svc.AnswerMCQ(ctx, 1, dto.MCQAnswerRequest{SubmissionID: started.SubmissionID, QuestionIndex: 0, SelectedOption: 7})
	require.ErrorIs(t, err, ErrInvalidOption)

	err = f.svc.AnswerMCQ(ctx, 1, dto.MCQAnswerRequest{SubmissionID: started.SubmissionID, QuestionIndex: 2, SelectedOption: 0})
	require.ErrorIs(t, err, ErrQuestionKindMismatch)

	err = f.svc.AnswerMCQ(ctx, 1, dto.MCQAnswerRequest{SubmissionID: started.SubmissionID, QuestionIndex: 9, SelectedOption: 0})
	require.ErrorIs(t, err, ErrQuestionNotFound)

	err = f.svc.AnswerMCQ(ctx, 2, dto.MCQAnswerRequest{SubmissionID: started.SubmissionID, QuestionIndex: 0, SelectedOption: 0})
	require.ErrorIs(t, err, ErrNotSessionOwner)

	require.NoError(t, f.svc.AnswerMCQ(ctx, 1, dto.MCQAnswerRequest{SubmissionID: started.SubmissionID, QuestionIndex: 0, SelectedOption: 1}))
}

func TestAssessmentLateAnswerRejected(t *testing.T) {
	f := newAssessmentFixture(t)
	ctx := context.Background()

	started, err := f.svc.Start(ctx, f.assessment.ID, 1)
	require.NoError(t, err)

	require.NoError(t, f.svc.AnswerMCQ(ctx, 1, dto.MCQAnswerRequest{SubmissionID: started.SubmissionID, QuestionIndex: 0, SelectedOption: 1}))

	f.advance(31 * time.Minute)

	err = f.svc.AnswerMCQ(ctx, 1, dto.MCQAnswerRequest{SubmissionID: started.SubmissionID, QuestionIndex: 1, SelectedOption: 0})
	require.ErrorIs(t, err, ErrSessionClosed)

	// The in-window answer is untouched by the rejected late write.
	session, err := f.repo.GetSessionByPublicID(ctx, started.SubmissionID)
	require.NoError(t, err)
	require.Len(t, session.Answers, 1)
	require.Equal(t, 0, session.Answers[0].QuestionIndex)
	require.True(t, session.Answers[0].Correct)
}

func TestAssessmentAnswerOverwriteWithinWindow(t *testing.T) {
	f := newAssessmentFixture(t)
	ctx := context.Background()

	started, err := f.svc.Start(ctx, f.assessment.ID, 1)
	require.NoError(t, err)

	require.NoError(t, f.svc.AnswerMCQ(ctx, 1, dto.MCQAnswerRequest{SubmissionID: started.SubmissionID, QuestionIndex: 0, SelectedOption: 0}))
	require.NoError(t, f.svc.AnswerMCQ(ctx, 1, dto.MCQAnswerRequest{SubmissionID: started.SubmissionID, QuestionIndex: 0, SelectedOption: 1}))

	session, err := f.repo.GetSessionByPublicID(ctx, started.SubmissionID)
	require.NoError(t, err)
	require.Len(t, session.Answers, 1)
	require.Equal(t, 1, *session.Answers[0].SelectedOption)
	require.True(t, session.Answers[0].Correct)
}

func TestAssessmentAnswerCoding(t *testing.T) {
	f := newAssessmentFixture(t)
	ctx := context.Background()

	started, err := f.svc.Start(ctx, f.assessment.ID, 1)
	require.NoError(t, err)

	f.grading.results = []GradeResult{acceptedGrade(11, 4, 4, *f.clock)}

	response, err := f.svc.AnswerCoding(ctx, 1, dto.CodingAnswerRequest{
		SubmissionID:  started.SubmissionID,
		QuestionIndex: 2,
		Code:          "def reverse(xs): return xs[::-1]",
		Language:      "python",
	}, false)
	require.NoError(t, err)
	require.Equal(t, 4, response.PassedCount)
	require.Equal(t, 4, response.TotalCount)

	session, err := f.repo.GetSessionByPublicID(ctx, started.SubmissionID)
	require.NoError(t, err)
	require.Len(t, session.Answers, 1)
	require.True(t, session.Answers[0].Correct)
	require.Equal(t, uint(11), *session.Answers[0].SubmissionID)
}

func TestAssessmentAnswerCodingExpiresDuringGrading(t *testing.T) {
	f := newAssessmentFixture(t)
	ctx := context.Background()

	started, err := f.svc.Start(ctx, f.assessment.ID, 1)
	require.NoError(t, err)

	// The judge call straddles the session deadline.
	f.grading.results = []GradeResult{acceptedGrade(31, 4, 4, *f.clock)}
	f.grading.onGrade = func() { f.advance(31 * time.Minute) }

	_, err = f.svc.AnswerCoding(ctx, 1, dto.CodingAnswerRequest{
		SubmissionID:  started.SubmissionID,
		QuestionIndex: 2,
		Code:          "def reverse(xs): return xs[::-1]",
		Language:      "python",
	}, false)
	require.ErrorIs(t, err, ErrSessionClosed)

	session, err := f.repo.GetSessionByPublicID(ctx, started.SubmissionID)
	require.NoError(t, err)
	require.Empty(t, session.Answers)
}

func TestAssessmentCompleteScoresAndIsIdempotent(t *testing.T) {
	f := newAssessmentFixture(t)
	ctx := context.Background()

	started, err := f.svc.Start(ctx, f.assessment.ID, 1)
	require.NoError(t, err)

	require.NoError(t, f.svc.AnswerMCQ(ctx, 1, dto.MCQAnswerRequest{SubmissionID: started.SubmissionID, QuestionIndex: 0, SelectedOption: 1}))
	require.NoError(t, f.svc.AnswerMCQ(ctx, 1, dto.MCQAnswerRequest{SubmissionID: started.SubmissionID, QuestionIndex: 1, SelectedOption: 1}))

	f.grading.results = []GradeResult{acceptedGrade(21, 4, 4, *f.clock)}
	_, err = f.svc.AnswerCoding(ctx, 1, dto.CodingAnswerRequest{
		SubmissionID: started.SubmissionID, QuestionIndex: 2, Code: "x", Language: "python",
	}, false)
	require.NoError(t, err)

	// Correct MCQ (2) + wrong MCQ (0) + accepted coding (5).
	completed, err := f.svc.Complete(ctx, 1, dto.CompleteAssessmentRequest{SubmissionID: started.SubmissionID})
	require.NoError(t, err)
	require.Equal(t, 7, completed.Score)
	require.Len(t, f.publisher.completed, 1)

	again, err := f.svc.Complete(ctx, 1, dto.CompleteAssessmentRequest{SubmissionID: started.SubmissionID})
	require.NoError(t, err)
	require.Equal(t, 7, again.Score)
	require.Equal(t, completed.CompletedAt.Unix(), again.CompletedAt.Unix())
	require.Len(t, f.publisher.completed, 1)

	// Writes after completion bounce even inside the original window.
	err = f.svc.AnswerMCQ(ctx, 1, dto.MCQAnswerRequest{SubmissionID: started.SubmissionID, QuestionIndex: 1, SelectedOption: 0})
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestAssessmentReport(t *testing.T) {
	f := newAssessmentFixture(t)
	ctx := context.Background()

	started, err := f.svc.Start(ctx, f.assessment.ID, 1)
	require.NoError(t, err)

	require.NoError(t, f.svc.AnswerMCQ(ctx, 1, dto.MCQAnswerRequest{SubmissionID: started.SubmissionID, QuestionIndex: 0, SelectedOption: 1}))

	_, err = f.svc.Report(ctx, 1, f.assessment.ID, started.SubmissionID)
	require.ErrorIs(t, err, ErrSessionInProgress)

	_, err = f.svc.Complete(ctx, 1, dto.CompleteAssessmentRequest{SubmissionID: started.SubmissionID})
	require.NoError(t, err)

	report, err := f.svc.Report(ctx, 1, f.assessment.ID, started.SubmissionID)
	require.NoError(t, err)
	require.Equal(t, 2, report.Score)
	require.Equal(t, 9, report.TotalMarks)
	require.Len(t, report.Questions, 3)

	first := report.Questions[0]
	require.True(t, first.Answered)
	require.True(t, first.Correct)
	require.Equal(t, 2, first.MarksAwarded)
	require.NotNil(t, first.CorrectOption)

	second := report.Questions[1]
	require.False(t, second.Answered)
	require.Zero(t, second.MarksAwarded)

	require.Equal(t, dto.SubjectScore{Total: 1, Correct: 1}, report.Subjects["data-structures"])
	require.Equal(t, dto.SubjectScore{Total: 2, Correct: 0}, report.Subjects["algorithms"])

	_, err = f.svc.Report(ctx, 2, f.assessment.ID, started.SubmissionID)
	require.ErrorIs(t, err, ErrNotSessionOwner)

	_, err = f.svc.Report(ctx, 1, 9999, started.SubmissionID)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAssessmentReportFinalizesExpiredSession(t *testing.T) {
	f := newAssessmentFixture(t)
	ctx := context.Background()

	started, err := f.svc.Start(ctx, f.assessment.ID, 1)
	require.NoError(t, err)

	require.NoError(t, f.svc.AnswerMCQ(ctx, 1, dto.MCQAnswerRequest{SubmissionID: started.SubmissionID, QuestionIndex: 0, SelectedOption: 1}))

	f.advance(31 * time.Minute)

	report, err := f.svc.Report(ctx, 1, f.assessment.ID, started.SubmissionID)
	require.NoError(t, err)
	require.Equal(t, 2, report.Score)
	require.NotNil(t, report.CompletedAt)

	session, err := f.repo.GetSessionByPublicID(ctx, started.SubmissionID)
	require.NoError(t, err)
	require.Equal(t, models.AssessmentStatusCompleted, session.Status)
}
