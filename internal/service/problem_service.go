package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/codeclash/codeclash-api/internal/dto"
	"github.com/codeclash/codeclash-api/internal/repository"
)

// ProblemService exposes the solver-facing problem catalogue.
type ProblemService interface {
	List(ctx context.Context, query repository.ProblemQuery) ([]dto.ProblemSummary, int64, error)
	GetBySlug(ctx context.Context, slug string, hasPremium bool) (dto.ProblemDetail, error)
}

type problemService struct {
	problems repository.ProblemRepository
	logger   zerolog.Logger
}

// NewProblemService constructs the problem catalogue service.
func NewProblemService(problems repository.ProblemRepository, logger zerolog.Logger) ProblemService {
	return &problemService{
		problems: problems,
		logger:   logger.With().Str("component", "problem_service").Logger(),
	}
}

func (s *problemService) List(ctx context.Context, query repository.ProblemQuery) ([]dto.ProblemSummary, int64, error) {
	problems, total, err := s.problems.List(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]dto.ProblemSummary, 0, len(problems))
	for _, problem := range problems {
		summaries = append(summaries, dto.NewProblemSummary(problem))
	}
	return summaries, total, nil
}

func (s *problemService) GetBySlug(ctx context.Context, slug string, hasPremium bool) (dto.ProblemDetail, error) {
	problem, err := s.problems.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProblemDetail{}, ErrProblemNotFound
		}
		return dto.ProblemDetail{}, err
	}

	if problem.Premium && !hasPremium {
		return dto.ProblemDetail{}, ErrPremiumRequired
	}

	return dto.NewProblemDetail(problem), nil
}
