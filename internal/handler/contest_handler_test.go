package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/codeclash/codeclash-api/internal/config"
	"github.com/codeclash/codeclash-api/internal/dto"
	"github.com/codeclash/codeclash-api/internal/handler"
	"github.com/codeclash/codeclash-api/internal/router"
	"github.com/codeclash/codeclash-api/internal/service"
)

type stubContestService struct {
	submitErr    error
	registerErr  error
	submitResult dto.ContestSubmitResponse
	board        dto.Leaderboard
}

func (s *stubContestService) Get(ctx context.Context, contestID, viewerID uint) (dto.ContestView, error) {
	return dto.ContestView{ID: contestID}, nil
}

func (s *stubContestService) Register(ctx context.Context, contestID, userID uint) error {
	return s.registerErr
}

func (s *stubContestService) Unregister(ctx context.Context, contestID, userID uint) error {
	return s.registerErr
}

func (s *stubContestService) Submit(ctx context.Context, contestID, userID uint, payload dto.ContestSubmitRequest, hasPremium bool) (dto.ContestSubmitResponse, error) {
	if s.submitErr != nil {
		return dto.ContestSubmitResponse{}, s.submitErr
	}
	return s.submitResult, nil
}

func (s *stubContestService) Leaderboard(ctx context.Context, contestID uint) (dto.Leaderboard, error) {
	return s.board, nil
}

func (s *stubContestService) Subscribe(contestID uint) (<-chan dto.Leaderboard, func()) {
	ch := make(chan dto.Leaderboard)
	return ch, func() { close(ch) }
}

func setupContestApp(t *testing.T, svc service.ContestService) *fiber.App {
	t.Helper()

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret"}, router.Dependencies{
		ContestHandler: handler.NewContestHandler(svc, validate, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			c.Locals("user_id", uint(1))
			return c.Next()
		},
	})
	return app
}

func contestRequest(t *testing.T, app *fiber.App, method, path string, payload interface{}) (map[string]interface{}, int) {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope, resp.StatusCode
}

func TestContestSubmitErrorKinds(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"window closed", service.ErrWindowClosed, fiber.StatusForbidden, "window-closed"},
		{"not registered", service.ErrNotRegistered, fiber.StatusForbidden, "access-denied"},
		{"unknown contest", service.ErrContestNotFound, fiber.StatusNotFound, "not-found"},
		{"problem outside contest", service.ErrProblemNotInContest, fiber.StatusNotFound, "not-found"},
		{"judge outage", service.ErrJudgeUnavailable, fiber.StatusServiceUnavailable, "judge-unavailable"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := setupContestApp(t, &stubContestService{submitErr: tc.err})

			envelope, status := contestRequest(t, app, "POST", "/api/v1/contest/1/submit", dto.ContestSubmitRequest{
				ProblemID: 1, Code: "x", Language: "python",
			})
			require.Equal(t, tc.status, status)
			require.Equal(t, tc.kind, envelope["kind"])
			require.Equal(t, false, envelope["success"])
		})
	}
}

func TestContestRegisterFullMapsToConflict(t *testing.T) {
	app := setupContestApp(t, &stubContestService{registerErr: service.ErrContestFull})

	envelope, status := contestRequest(t, app, "POST", "/api/v1/contest/1/register", nil)
	require.Equal(t, fiber.StatusConflict, status)
	require.Equal(t, "contest-full", envelope["kind"])
}

func TestContestSubmitSuccess(t *testing.T) {
	app := setupContestApp(t, &stubContestService{submitResult: dto.ContestSubmitResponse{
		Status: "accepted", MarksAwarded: 100, PassedCount: 5, TotalCount: 5,
	}})

	envelope, status := contestRequest(t, app, "POST", "/api/v1/contest/1/submit", dto.ContestSubmitRequest{
		ProblemID: 1, Code: "x", Language: "python",
	})
	require.Equal(t, fiber.StatusOK, status)
	data := envelope["data"].(map[string]interface{})
	require.Equal(t, float64(100), data["marks_awarded"])
}

func TestContestLeaderboardEndpoint(t *testing.T) {
	app := setupContestApp(t, &stubContestService{board: dto.Leaderboard{
		ContestID:   1,
		GeneratedAt: time.Now().UTC(),
		Entries:     []dto.LeaderboardEntry{{Rank: 1, UserID: 2, TotalScore: 150, Solved: 2}},
	}})

	envelope, status := contestRequest(t, app, "GET", "/api/v1/contest/1/leaderboard", nil)
	require.Equal(t, fiber.StatusOK, status)
	data := envelope["data"].(map[string]interface{})
	entries := data["entries"].([]interface{})
	require.Len(t, entries, 1)
}

func TestContestInvalidIDRejected(t *testing.T) {
	app := setupContestApp(t, &stubContestService{})

	envelope, status := contestRequest(t, app, "GET", "/api/v1/contest/abc", nil)
	require.Equal(t, fiber.StatusBadRequest, status)
	require.Equal(t, false, envelope["success"])
}

func TestContestLeaderboardStreamRejectsMalformedID(t *testing.T) {
	app := setupContestApp(t, &stubContestService{})

	req := httptest.NewRequest("GET", "/api/v1/contest/abc/leaderboard/ws", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")

	// The malformed id bounces with a plain HTTP error before any upgrade.
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestContestLeaderboardStreamRequiresUpgrade(t *testing.T) {
	app := setupContestApp(t, &stubContestService{})

	req := httptest.NewRequest("GET", "/api/v1/contest/1/leaderboard/ws", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}
