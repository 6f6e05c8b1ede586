package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/codeclash/codeclash-api/internal/config"
	"github.com/codeclash/codeclash-api/internal/dto"
	"github.com/codeclash/codeclash-api/internal/handler"
	"github.com/codeclash/codeclash-api/internal/models"
	"github.com/codeclash/codeclash-api/internal/repository"
	"github.com/codeclash/codeclash-api/internal/router"
	"github.com/codeclash/codeclash-api/internal/service"
	"github.com/codeclash/codeclash-api/pkg/judge"
)

// testJudge accepts every case unless a status is pinned for the stdin.
type testJudge struct {
	statusByInput map[string]int
	err           error
}

func (s *testJudge) Execute(ctx context.Context, req judge.Request) (judge.Result, error) {
	if s.err != nil {
		return judge.Result{}, s.err
	}
	statusID, ok := s.statusByInput[req.Stdin]
	if !ok {
		statusID = judge.StatusAccepted
	}
	return judge.Result{StatusID: statusID, Stdout: req.ExpectedOutput, RuntimeSec: 0.02, MemoryKB: 512}, nil
}

type submissionEnvelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Kind    string            `json:"kind"`
	Data    dto.GradeResponse `json:"data"`
}

func setupSubmissionApp(t *testing.T, judgeClient judge.Client, premium bool) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Problem{}, &models.TestCase{}, &models.Submission{}, &models.StreakState{},
	))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	problemRepo := repository.NewProblemRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	streakRepo := repository.NewStreakRepository(db)

	gradingService := service.NewGradingService(problemRepo, submissionRepo, judgeClient, nil, logger, service.GradingConfig{MaxConcurrency: 2})
	rewardService := service.NewRewardService(streakRepo, nil, nil, logger)

	app := fiber.New()
	submissionHandler := handler.NewSubmissionHandler(gradingService, rewardService, submissionRepo, validate, logger)

	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret"}, router.Dependencies{
		SubmissionHandler: submissionHandler,
		JWTMiddleware: func(c *fiber.Ctx) error {
			c.Locals("user_id", uint(1))
			c.Locals("premium", premium)
			return c.Next()
		},
	})

	return app, db
}

func seedProblem(t *testing.T, db *gorm.DB, premium bool) models.Problem {
	t.Helper()
	problem := models.Problem{
		Slug:       "two-sum",
		Title:      "Two Sum",
		Statement:  "add the numbers",
		Difficulty: models.DifficultyEasy,
		Premium:    premium,
		TestCases: []models.TestCase{
			{Input: "1 2", Expected: "3", Hidden: false},
			{Input: "4 5", Expected: "9", Hidden: true},
		},
	}
	require.NoError(t, db.Create(&problem).Error)
	return problem
}

func postJSON(t *testing.T, app *fiber.App, path string, payload interface{}) (*submissionEnvelope, int) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope submissionEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return &envelope, resp.StatusCode
}

func TestSubmissionRunRedactsHiddenCases(t *testing.T) {
	app, db := setupSubmissionApp(t, &testJudge{}, false)
	problem := seedProblem(t, db, false)

	envelope, status := postJSON(t, app, fmt.Sprintf("/api/v1/submission/run/%d", problem.ID), dto.RunRequest{
		Code:      "print(a+b)",
		Language:  "python",
		TestCases: []dto.CustomCase{{Input: "10 10", Expected: "20"}},
	})

	require.Equal(t, fiber.StatusOK, status)
	require.True(t, envelope.Success)
	require.True(t, envelope.Data.Accepted)
	require.Equal(t, 3, envelope.Data.TotalCount)
	require.Len(t, envelope.Data.TestCases, 3)
	require.Nil(t, envelope.Data.Streak)

	for _, view := range envelope.Data.TestCases {
		if view.Source == "hidden" {
			require.Empty(t, view.Stdin)
			require.Empty(t, view.Expected)
			require.Empty(t, view.Stdout)
		} else {
			require.NotEmpty(t, view.Stdin)
		}
	}
}

func TestSubmissionSubmitCreditsStreak(t *testing.T) {
	app, db := setupSubmissionApp(t, &testJudge{}, false)
	problem := seedProblem(t, db, false)

	envelope, status := postJSON(t, app, fmt.Sprintf("/api/v1/submission/submit/%d", problem.ID), dto.SubmitRequest{
		Code:     "print(a+b)",
		Language: "python",
	})

	require.Equal(t, fiber.StatusOK, status)
	require.True(t, envelope.Data.Accepted)
	require.NotNil(t, envelope.Data.Streak)
	require.Equal(t, 1, *envelope.Data.Streak)
}

func TestSubmissionSubmitRejectedAttemptHasNoStreak(t *testing.T) {
	app, db := setupSubmissionApp(t, &testJudge{statusByInput: map[string]int{"4 5": judge.StatusWrongAnswer}}, false)
	problem := seedProblem(t, db, false)

	envelope, status := postJSON(t, app, fmt.Sprintf("/api/v1/submission/submit/%d", problem.ID), dto.SubmitRequest{
		Code:     "print(0)",
		Language: "python",
	})

	require.Equal(t, fiber.StatusOK, status)
	require.False(t, envelope.Data.Accepted)
	require.Equal(t, "wrong-answer", envelope.Data.Verdict)
	require.Nil(t, envelope.Data.Streak)
}

func TestSubmissionPremiumGate(t *testing.T) {
	app, db := setupSubmissionApp(t, &testJudge{}, false)
	problem := seedProblem(t, db, true)

	envelope, status := postJSON(t, app, fmt.Sprintf("/api/v1/submission/submit/%d", problem.ID), dto.SubmitRequest{
		Code:     "print(a+b)",
		Language: "python",
	})

	require.Equal(t, fiber.StatusForbidden, status)
	require.False(t, envelope.Success)
	require.Equal(t, "access-denied", envelope.Kind)
}

func TestSubmissionJudgeOutageMapsToServiceUnavailable(t *testing.T) {
	app, db := setupSubmissionApp(t, &testJudge{err: judge.ErrUnavailable}, false)
	problem := seedProblem(t, db, false)

	envelope, status := postJSON(t, app, fmt.Sprintf("/api/v1/submission/submit/%d", problem.ID), dto.SubmitRequest{
		Code:     "print(a+b)",
		Language: "python",
	})

	require.Equal(t, fiber.StatusServiceUnavailable, status)
	require.Equal(t, "judge-unavailable", envelope.Kind)

	// The failed attempt is still visible in the log.
	var count int64
	require.NoError(t, db.Model(&models.Submission{}).Where("verdict = ?", models.VerdictJudgeError).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestSubmissionUnknownProblem(t *testing.T) {
	app, _ := setupSubmissionApp(t, &testJudge{}, false)

	envelope, status := postJSON(t, app, "/api/v1/submission/submit/999", dto.SubmitRequest{
		Code:     "print(1)",
		Language: "python",
	})

	require.Equal(t, fiber.StatusNotFound, status)
	require.Equal(t, "not-found", envelope.Kind)
}
