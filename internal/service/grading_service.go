package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/codeclash/codeclash-api/internal/dto"
	"github.com/codeclash/codeclash-api/internal/events"
	"github.com/codeclash/codeclash-api/internal/models"
	"github.com/codeclash/codeclash-api/internal/observability"
	"github.com/codeclash/codeclash-api/internal/repository"
	"github.com/codeclash/codeclash-api/pkg/judge"
)

// ErrProblemNotFound indicates the problem cannot be located.
var ErrProblemNotFound = errors.New("problem not found")

// ErrPremiumRequired indicates the caller lacks access to a premium problem.
var ErrPremiumRequired = errors.New("premium access required")

// ErrUnsupportedLanguage indicates the requested language is not allowed.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// ErrJudgeUnavailable indicates the external judge could not grade the
// attempt. The submission is still recorded with a judge-error verdict so the
// attempt is auditable, and the caller may retry.
var ErrJudgeUnavailable = errors.New("judge unavailable")

// ErrCustomCasesNotAllowed indicates custom cases were supplied outside the
// freeform context.
var ErrCustomCasesNotAllowed = errors.New("custom test cases only allowed in freeform practice")

var supportedLanguages = map[string]struct{}{
	"python":     {},
	"javascript": {},
	"go":         {},
	"java":       {},
	"cpp":        {},
}

// GradeRequest describes one grading attempt.
type GradeRequest struct {
	UserID              uint
	ProblemID           uint
	Origin              string
	ContestID           *uint
	AssessmentSessionID *uint
	QuestionIndex       *int
	Code                string
	Language            string
	ExtraCases          []dto.CustomCase
	HasPremiumAccess    bool
}

// GradeResult is the fully resolved outcome of one grading attempt.
type GradeResult struct {
	Submission models.Submission
	Summary    VerdictSummary
	Cases      []CaseResult
}

// GradingService orchestrates the judge and verdict aggregation for one
// submission and persists the immutable attempt record.
type GradingService interface {
	Grade(ctx context.Context, req GradeRequest) (GradeResult, error)
}

// GradingConfig holds grading pipeline knobs.
type GradingConfig struct {
	MaxConcurrency int
}

type gradingService struct {
	problems    repository.ProblemRepository
	submissions repository.SubmissionRepository
	judge       judge.Client
	publisher   events.Publisher
	logger      zerolog.Logger
	tracer      trace.Tracer
	config      GradingConfig
	now         func() time.Time
}

// NewGradingService constructs the grading pipeline.
func NewGradingService(problems repository.ProblemRepository, submissions repository.SubmissionRepository, judgeClient judge.Client, publisher events.Publisher, logger zerolog.Logger, cfg GradingConfig) GradingService {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	return &gradingService{
		problems:    problems,
		submissions: submissions,
		judge:       judgeClient,
		publisher:   publisher,
		logger:      logger.With().Str("component", "grading_service").Logger(),
		tracer:      otel.Tracer("github.com/codeclash/codeclash-api/internal/service/grading"),
		config:      cfg,
		now:         time.Now,
	}
}

func (s *gradingService) Grade(ctx context.Context, req GradeRequest) (GradeResult, error) {
	ctx, span := s.tracer.Start(ctx, "grading.grade", trace.WithAttributes(
		attribute.Int("problem.id", int(req.ProblemID)),
		attribute.String("submission.origin", req.Origin),
	))
	defer span.End()

	language := strings.ToLower(strings.TrimSpace(req.Language))
	if _, ok := supportedLanguages[language]; !ok {
		return GradeResult{}, ErrUnsupportedLanguage
	}

	if req.Origin != models.OriginFreeform && len(req.ExtraCases) > 0 {
		return GradeResult{}, ErrCustomCasesNotAllowed
	}

	problem, err := s.problems.GetByID(ctx, req.ProblemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return GradeResult{}, ErrProblemNotFound
		}
		return GradeResult{}, err
	}

	// The access gate runs before any judge dispatch so a denied caller never
	// consumes execution capacity.
	if problem.Premium && !req.HasPremiumAccess {
		return GradeResult{}, ErrPremiumRequired
	}

	cases := buildCaseList(problem, req.ExtraCases)

	dispatchStart := s.now()
	results, judgeErr := s.dispatch(ctx, problem, language, req.Code, cases)
	observability.GradingLatency().WithLabelValues(req.Origin).Observe(s.now().Sub(dispatchStart).Seconds())

	if judgeErr != nil {
		// A single unavailable case degrades the whole attempt: a partial
		// verdict would report false confidence.
		submission := s.buildSubmission(req, language, models.VerdictJudgeError, VerdictSummary{
			Overall:    models.VerdictJudgeError,
			TotalCount: officialCaseCount(cases, req.Origin == models.OriginFreeform),
		})
		if createErr := s.submissions.Create(ctx, submission); createErr != nil {
			s.logger.Error().Err(createErr).Msg("failed to record judge-error submission")
		}
		observability.GradingSubmissions().WithLabelValues(req.Origin, models.VerdictJudgeError).Inc()
		span.RecordError(judgeErr)
		span.SetStatus(codes.Error, "judge unavailable")

		return GradeResult{Submission: *submission}, ErrJudgeUnavailable
	}

	includeCustom := req.Origin == models.OriginFreeform
	summary := AggregateVerdict(results, includeCustom)

	submission := s.buildSubmission(req, language, summary.Overall, summary)
	if err := s.submissions.Create(ctx, submission); err != nil {
		return GradeResult{}, err
	}

	observability.GradingSubmissions().WithLabelValues(req.Origin, summary.Overall).Inc()
	span.SetAttributes(
		attribute.String("submission.verdict", summary.Overall),
		attribute.Int("submission.passed", summary.PassedCount),
	)

	if summary.Overall == models.VerdictAccepted && req.Origin != models.OriginAssessment {
		s.publisher.SubmissionAccepted(events.SubmissionAccepted{
			SubmissionID: submission.ID,
			UserID:       req.UserID,
			ProblemID:    req.ProblemID,
			Origin:       req.Origin,
			AcceptedAt:   submission.CreatedAt,
		})
	}

	s.logger.Info().
		Uint("user_id", req.UserID).
		Uint("problem_id", req.ProblemID).
		Str("origin", req.Origin).
		Str("verdict", summary.Overall).
		Int("passed", summary.PassedCount).
		Int("total", summary.TotalCount).
		Msg("submission graded")

	return GradeResult{Submission: *submission, Summary: summary, Cases: results}, nil
}

// dispatch fans the case list out to the judge. Cases are independent, so
// parallel dispatch is safe; the aggregator only ever sees the completed set.
func (s *gradingService) dispatch(ctx context.Context, problem models.Problem, language, code string, cases []CaseResult) ([]CaseResult, error) {
	results := make([]CaseResult, len(cases))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.config.MaxConcurrency)

	for i, tc := range cases {
		i, tc := i, tc
		group.Go(func() error {
			result, err := s.judge.Execute(groupCtx, judge.Request{
				Code:           code,
				Language:       language,
				Stdin:          tc.Input,
				ExpectedOutput: tc.Expected,
				TimeLimitSec:   problem.TimeLimitSec,
				MemoryLimitKB:  problem.MemoryLimitKB,
			})
			if err != nil {
				return err
			}

			judged := tc
			judged.Stdout = result.Stdout
			judged.Stderr = result.Stderr
			judged.StatusID = result.StatusID
			judged.RuntimeSec = result.RuntimeSec
			judged.MemoryKB = result.MemoryKB
			results[i] = judged
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func (s *gradingService) buildSubmission(req GradeRequest, language, verdict string, summary VerdictSummary) *models.Submission {
	return &models.Submission{
		UserID:              req.UserID,
		ProblemID:           req.ProblemID,
		Origin:              req.Origin,
		ContestID:           req.ContestID,
		AssessmentSessionID: req.AssessmentSessionID,
		QuestionIndex:       req.QuestionIndex,
		Language:            language,
		Code:                req.Code,
		Verdict:             verdict,
		PassedCount:         summary.PassedCount,
		TotalCount:          summary.TotalCount,
		RuntimeSec:          summary.MaxRuntimeSec,
		MemoryKB:            summary.MaxMemoryKB,
		CreatedAt:           s.now(),
	}
}

func buildCaseList(problem models.Problem, extra []dto.CustomCase) []CaseResult {
	cases := make([]CaseResult, 0, len(problem.TestCases)+len(extra))
	for _, tc := range problem.VisibleCases() {
		cases = append(cases, CaseResult{Source: CaseSourceSample, Input: tc.Input, Expected: tc.Expected})
	}
	for _, tc := range problem.HiddenCases() {
		cases = append(cases, CaseResult{Source: CaseSourceHidden, Input: tc.Input, Expected: tc.Expected})
	}
	for _, tc := range extra {
		cases = append(cases, CaseResult{Source: CaseSourceCustom, Input: tc.Input, Expected: tc.Expected})
	}
	return cases
}

func officialCaseCount(cases []CaseResult, includeCustom bool) int {
	count := 0
	for _, tc := range cases {
		if tc.Source == CaseSourceCustom && !includeCustom {
			continue
		}
		count++
	}
	return count
}

// BuildCaseViews converts judged cases into the response breakdown. Hidden
// case inputs and expected outputs are redacted to pass/fail in every
// context.
func BuildCaseViews(cases []CaseResult) []dto.CaseView {
	views := make([]dto.CaseView, 0, len(cases))
	for _, tc := range cases {
		if tc.Source == CaseSourceHidden {
			views = append(views, dto.CaseView{
				Source:   tc.Source,
				Passed:   tc.Passed(),
				StatusID: tc.StatusID,
			})
			continue
		}

		views = append(views, dto.CaseView{
			Source:   tc.Source,
			Passed:   tc.Passed(),
			StatusID: tc.StatusID,
			Stdin:    tc.Input,
			Stdout:   tc.Stdout,
			Stderr:   tc.Stderr,
			Expected: tc.Expected,
		})
	}
	return views
}
