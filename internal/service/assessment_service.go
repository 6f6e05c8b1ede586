package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/codeclash/codeclash-api/internal/dto"
	"github.com/codeclash/codeclash-api/internal/events"
	"github.com/codeclash/codeclash-api/internal/models"
	"github.com/codeclash/codeclash-api/internal/observability"
	"github.com/codeclash/codeclash-api/internal/repository"
)

// ErrAssessmentNotFound indicates the assessment cannot be located.
var ErrAssessmentNotFound = errors.New("assessment not found")

// ErrSessionNotFound indicates no session matches the given identifier.
var ErrSessionNotFound = errors.New("assessment session not found")

// ErrSessionClosed indicates a write arrived after the session completed or
// its window expired. Late writes are rejected, never silently accepted.
var ErrSessionClosed = errors.New("session closed")

// ErrSessionInProgress indicates the report was requested before completion.
var ErrSessionInProgress = errors.New("session still in progress")

// ErrActiveSessionExists indicates the user already has a running session
// for this assessment.
var ErrActiveSessionExists = errors.New("active session already exists")

// ErrNotSessionOwner indicates the caller does not own the session.
var ErrNotSessionOwner = errors.New("not session owner")

// ErrQuestionNotFound indicates the question index is out of range.
var ErrQuestionNotFound = errors.New("question not found")

// ErrQuestionKindMismatch indicates an answer type that does not match the
// question (MCQ answer for a coding question or vice versa).
var ErrQuestionKindMismatch = errors.New("answer does not match question kind")

// ErrInvalidOption indicates the selected option index is out of range.
var ErrInvalidOption = errors.New("selected option out of range")

// AssessmentService governs timed assessment sessions: start, answer
// capture, forced finalization, and reporting.
type AssessmentService interface {
	Start(ctx context.Context, assessmentID, userID uint) (dto.StartAssessmentResponse, error)
	AnswerMCQ(ctx context.Context, userID uint, payload dto.MCQAnswerRequest) error
	AnswerCoding(ctx context.Context, userID uint, payload dto.CodingAnswerRequest, hasPremium bool) (dto.CodingAnswerResponse, error)
	Complete(ctx context.Context, userID uint, payload dto.CompleteAssessmentRequest) (dto.CompleteAssessmentResponse, error)
	Report(ctx context.Context, userID, assessmentID uint, publicID string) (dto.AssessmentReport, error)
}

type assessmentService struct {
	assessments repository.AssessmentRepository
	grading     GradingService
	publisher   events.Publisher
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAssessmentService constructs the assessment controller.
func NewAssessmentService(assessments repository.AssessmentRepository, grading GradingService, publisher events.Publisher, logger zerolog.Logger) AssessmentService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	return &assessmentService{
		assessments: assessments,
		grading:     grading,
		publisher:   publisher,
		logger:      logger.With().Str("component", "assessment_service").Logger(),
		now:         time.Now,
	}
}

func (s *assessmentService) Start(ctx context.Context, assessmentID, userID uint) (dto.StartAssessmentResponse, error) {
	assessment, err := s.loadAssessment(ctx, assessmentID)
	if err != nil {
		return dto.StartAssessmentResponse{}, err
	}

	active, err := s.assessments.HasActiveSession(ctx, assessmentID, userID)
	if err != nil {
		return dto.StartAssessmentResponse{}, err
	}
	if active {
		return dto.StartAssessmentResponse{}, ErrActiveSessionExists
	}

	session := models.AssessmentSession{
		PublicID:        uuid.NewString(),
		AssessmentID:    assessmentID,
		UserID:          userID,
		StartedAt:       s.now(),
		DurationMinutes: assessment.DurationMinutes,
		Status:          models.AssessmentStatusInProgress,
	}
	if err := s.assessments.CreateSession(ctx, &session); err != nil {
		return dto.StartAssessmentResponse{}, err
	}

	observability.SessionTransitions().WithLabelValues("assessment", "started").Inc()
	s.logger.Info().
		Uint("assessment_id", assessmentID).
		Uint("user_id", userID).
		Str("session", session.PublicID).
		Msg("assessment session started")

	return dto.StartAssessmentResponse{
		SubmissionID: session.PublicID,
		StartedAt:    session.StartedAt,
		ExpiresAt:    session.ExpiresAt(),
	}, nil
}

func (s *assessmentService) AnswerMCQ(ctx context.Context, userID uint, payload dto.MCQAnswerRequest) error {
	session, err := s.loadOpenSession(ctx, userID, payload.SubmissionID)
	if err != nil {
		return err
	}

	question, err := s.questionAt(ctx, session.AssessmentID, payload.QuestionIndex)
	if err != nil {
		return err
	}
	if question.Kind != models.QuestionKindMCQ {
		return ErrQuestionKindMismatch
	}

	options, err := decodeOptions(question.Options)
	if err != nil {
		return err
	}
	if payload.SelectedOption < 0 || payload.SelectedOption >= len(options) {
		return ErrInvalidOption
	}

	selected := payload.SelectedOption
	correct := question.CorrectOption != nil && selected == *question.CorrectOption

	saved, err := s.assessments.SaveAnswerIfOpen(ctx, session.ID, models.AssessmentAnswer{
		QuestionIndex:  payload.QuestionIndex,
		SelectedOption: &selected,
		Correct:        correct,
		AnsweredAt:     s.now(),
	})
	if err != nil {
		return err
	}
	if !saved {
		return ErrSessionClosed
	}

	return nil
}

func (s *assessmentService) AnswerCoding(ctx context.Context, userID uint, payload dto.CodingAnswerRequest, hasPremium bool) (dto.CodingAnswerResponse, error) {
	session, err := s.loadOpenSession(ctx, userID, payload.SubmissionID)
	if err != nil {
		return dto.CodingAnswerResponse{}, err
	}

	question, err := s.questionAt(ctx, session.AssessmentID, payload.QuestionIndex)
	if err != nil {
		return dto.CodingAnswerResponse{}, err
	}
	if question.Kind != models.QuestionKindCoding || question.ProblemID == nil {
		return dto.CodingAnswerResponse{}, ErrQuestionKindMismatch
	}

	questionIndex := payload.QuestionIndex
	result, err := s.grading.Grade(ctx, GradeRequest{
		UserID:              userID,
		ProblemID:           *question.ProblemID,
		Origin:              models.OriginAssessment,
		AssessmentSessionID: &session.ID,
		QuestionIndex:       &questionIndex,
		Code:                payload.Code,
		Language:            payload.Language,
		HasPremiumAccess:    hasPremium,
	})
	if err != nil {
		return dto.CodingAnswerResponse{}, err
	}

	// Grading can outlast the window; the deadline is re-checked against the
	// server clock before the answer is recorded. The submission stays in the
	// log for audit, but it does not score.
	if !session.WindowOpenAt(s.now()) {
		return dto.CodingAnswerResponse{}, ErrSessionClosed
	}

	saved, err := s.assessments.SaveAnswerIfOpen(ctx, session.ID, models.AssessmentAnswer{
		QuestionIndex: payload.QuestionIndex,
		SubmissionID:  &result.Submission.ID,
		Correct:       result.Summary.Overall == models.VerdictAccepted,
		PassedCount:   result.Summary.PassedCount,
		TotalCount:    result.Summary.TotalCount,
		AnsweredAt:    s.now(),
	})
	if err != nil {
		return dto.CodingAnswerResponse{}, err
	}
	if !saved {
		// Lost the race to a concurrent completion.
		return dto.CodingAnswerResponse{}, ErrSessionClosed
	}

	return dto.CodingAnswerResponse{
		PassedCount: result.Summary.PassedCount,
		TotalCount:  result.Summary.TotalCount,
	}, nil
}

func (s *assessmentService) Complete(ctx context.Context, userID uint, payload dto.CompleteAssessmentRequest) (dto.CompleteAssessmentResponse, error) {
	session, err := s.loadSession(ctx, userID, payload.SubmissionID)
	if err != nil {
		return dto.CompleteAssessmentResponse{}, err
	}

	if session.Status == models.AssessmentStatusCompleted {
		// Completion is idempotent: a second finish call confirms the score.
		return dto.CompleteAssessmentResponse{
			SubmissionID: session.PublicID,
			Score:        session.Score,
			CompletedAt:  *session.CompletedAt,
		}, nil
	}

	return s.finalize(ctx, session)
}

func (s *assessmentService) Report(ctx context.Context, userID, assessmentID uint, publicID string) (dto.AssessmentReport, error) {
	session, err := s.loadSession(ctx, userID, publicID)
	if err != nil {
		return dto.AssessmentReport{}, err
	}
	if session.AssessmentID != assessmentID {
		return dto.AssessmentReport{}, ErrSessionNotFound
	}

	if session.Status == models.AssessmentStatusInProgress {
		// Expiry is detected on the next interaction; finalize before the
		// report instead of trusting the client to have called complete.
		if s.now().Before(session.ExpiresAt()) {
			return dto.AssessmentReport{}, ErrSessionInProgress
		}
		if _, err := s.finalize(ctx, session); err != nil {
			return dto.AssessmentReport{}, err
		}
		session, err = s.loadSession(ctx, userID, publicID)
		if err != nil {
			return dto.AssessmentReport{}, err
		}
	}

	assessment, err := s.loadAssessment(ctx, session.AssessmentID)
	if err != nil {
		return dto.AssessmentReport{}, err
	}

	answersByIndex := make(map[int]models.AssessmentAnswer, len(session.Answers))
	for _, answer := range session.Answers {
		answersByIndex[answer.QuestionIndex] = answer
	}

	report := dto.AssessmentReport{
		SubmissionID: session.PublicID,
		AssessmentID: session.AssessmentID,
		Score:        session.Score,
		StartedAt:    session.StartedAt,
		CompletedAt:  session.CompletedAt,
		Questions:    make([]dto.QuestionReport, 0, len(assessment.Questions)),
		Subjects:     make(map[string]dto.SubjectScore),
	}

	for _, question := range assessment.Questions {
		answer, answered := answersByIndex[question.Index]
		line := dto.QuestionReport{
			QuestionIndex: question.Index,
			Kind:          question.Kind,
			Subject:       question.Subject,
			Answered:      answered,
			Marks:         question.Marks,
		}
		report.TotalMarks += question.Marks

		if answered {
			line.Correct = answer.Correct
			line.SelectedOption = answer.SelectedOption
			line.PassedCount = answer.PassedCount
			line.TotalCount = answer.TotalCount
			if answer.Correct {
				line.MarksAwarded = question.Marks
			}
		}
		if question.Kind == models.QuestionKindMCQ {
			line.CorrectOption = question.CorrectOption
		}

		if question.Subject != "" {
			subject := report.Subjects[question.Subject]
			subject.Total++
			if answered && answer.Correct {
				subject.Correct++
			}
			report.Subjects[question.Subject] = subject
		}

		report.Questions = append(report.Questions, line)
	}

	return report, nil
}

func (s *assessmentService) finalize(ctx context.Context, session models.AssessmentSession) (dto.CompleteAssessmentResponse, error) {
	assessment, err := s.loadAssessment(ctx, session.AssessmentID)
	if err != nil {
		return dto.CompleteAssessmentResponse{}, err
	}

	score, subjects := scoreSession(assessment, session.Answers)
	completedAt := s.now()

	applied, err := s.assessments.CompleteSession(ctx, session.ID, score, subjects, completedAt)
	if err != nil {
		return dto.CompleteAssessmentResponse{}, err
	}
	if !applied {
		// Lost the race to a concurrent finish; the stored result wins.
		stored, loadErr := s.assessments.GetSessionByPublicID(ctx, session.PublicID)
		if loadErr != nil {
			return dto.CompleteAssessmentResponse{}, loadErr
		}
		return dto.CompleteAssessmentResponse{
			SubmissionID: stored.PublicID,
			Score:        stored.Score,
			CompletedAt:  *stored.CompletedAt,
		}, nil
	}

	s.publisher.SessionCompleted(events.SessionCompleted{
		SessionKind: "assessment",
		SessionID:   session.ID,
		UserID:      session.UserID,
		CompletedAt: completedAt,
	})

	observability.SessionTransitions().WithLabelValues("assessment", "completed").Inc()
	s.logger.Info().
		Str("session", session.PublicID).
		Uint("user_id", session.UserID).
		Int("score", score).
		Msg("assessment session completed")

	return dto.CompleteAssessmentResponse{
		SubmissionID: session.PublicID,
		Score:        score,
		CompletedAt:  completedAt,
	}, nil
}

// loadOpenSession resolves a session owned by the user that still accepts
// writes. The window check uses the server clock only.
func (s *assessmentService) loadOpenSession(ctx context.Context, userID uint, publicID string) (models.AssessmentSession, error) {
	session, err := s.loadSession(ctx, userID, publicID)
	if err != nil {
		return models.AssessmentSession{}, err
	}
	if !session.WindowOpenAt(s.now()) {
		return models.AssessmentSession{}, ErrSessionClosed
	}
	return session, nil
}

func (s *assessmentService) loadSession(ctx context.Context, userID uint, publicID string) (models.AssessmentSession, error) {
	session, err := s.assessments.GetSessionByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.AssessmentSession{}, ErrSessionNotFound
		}
		return models.AssessmentSession{}, err
	}
	if session.UserID != userID {
		return models.AssessmentSession{}, ErrNotSessionOwner
	}
	return session, nil
}

func (s *assessmentService) loadAssessment(ctx context.Context, assessmentID uint) (models.Assessment, error) {
	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assessment{}, ErrAssessmentNotFound
		}
		return models.Assessment{}, err
	}
	return assessment, nil
}

func (s *assessmentService) questionAt(ctx context.Context, assessmentID uint, index int) (models.AssessmentQuestion, error) {
	assessment, err := s.loadAssessment(ctx, assessmentID)
	if err != nil {
		return models.AssessmentQuestion{}, err
	}
	for _, question := range assessment.Questions {
		if question.Index == index {
			return question, nil
		}
	}
	return models.AssessmentQuestion{}, ErrQuestionNotFound
}

func scoreSession(assessment models.Assessment, answers []models.AssessmentAnswer) (int, datatypes.JSONMap) {
	answersByIndex := make(map[int]models.AssessmentAnswer, len(answers))
	for _, answer := range answers {
		answersByIndex[answer.QuestionIndex] = answer
	}

	score := 0
	subjects := datatypes.JSONMap{}
	for _, question := range assessment.Questions {
		answer, answered := answersByIndex[question.Index]
		correct := answered && answer.Correct
		if correct {
			score += question.Marks
		}

		if question.Subject == "" {
			continue
		}
		entry, _ := subjects[question.Subject].(map[string]interface{})
		if entry == nil {
			entry = map[string]interface{}{"total": 0, "correct": 0}
		}
		entry["total"] = entry["total"].(int) + 1
		if correct {
			entry["correct"] = entry["correct"].(int) + 1
		}
		subjects[question.Subject] = entry
	}

	return score, subjects
}

func decodeOptions(raw datatypes.JSON) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var options []string
	if err := json.Unmarshal(raw, &options); err != nil {
		return nil, err
	}
	return options, nil
}
