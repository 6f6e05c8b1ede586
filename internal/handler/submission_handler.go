package handler

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/codeclash/codeclash-api/internal/dto"
	"github.com/codeclash/codeclash-api/internal/models"
	"github.com/codeclash/codeclash-api/internal/repository"
	"github.com/codeclash/codeclash-api/internal/service"
	"github.com/codeclash/codeclash-api/internal/utils"
	"gorm.io/gorm"
)

// SubmissionHandler exposes freeform practice grading: exploratory runs with
// custom cases and official submissions that feed the streak.
type SubmissionHandler struct {
	grading     service.GradingService
	rewards     service.RewardService
	submissions repository.SubmissionRepository
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(grading service.GradingService, rewards service.RewardService, submissions repository.SubmissionRepository, validator *validator.Validate, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		grading:     grading,
		rewards:     rewards,
		submissions: submissions,
		validator:   validator,
		logger:      logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register wires the handler endpoints into the router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Post("/run/:problemId", h.run)
	router.Post("/submit/:problemId", h.submit)
	router.Get("", h.list)
	router.Get("/:id", h.get)
}

func (h *SubmissionHandler) run(c *fiber.Ctx) error {
	problemID, err := parseUintParam(c, "problemId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.RunRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	result, err := h.grading.Grade(c.Context(), service.GradeRequest{
		UserID:           userID,
		ProblemID:        problemID,
		Origin:           models.OriginFreeform,
		Code:             payload.Code,
		Language:         payload.Language,
		ExtraCases:       payload.TestCases,
		HasPremiumAccess: premiumFromContext(c),
	})
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "run graded", h.gradeResponse(result, nil))
}

func (h *SubmissionHandler) submit(c *fiber.Ctx) error {
	problemID, err := parseUintParam(c, "problemId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	result, err := h.grading.Grade(c.Context(), service.GradeRequest{
		UserID:           userID,
		ProblemID:        problemID,
		Origin:           models.OriginFreeform,
		Code:             payload.Code,
		Language:         payload.Language,
		HasPremiumAccess: premiumFromContext(c),
	})
	if err != nil {
		return h.handleError(c, err)
	}

	// Streak credit is idempotent per calendar day, so crediting here and in
	// the event consumer cannot double count.
	var streak *int
	if result.Submission.IsAccepted() {
		state, creditErr := h.rewards.CreditActivity(c.Context(), userID, time.Now())
		if creditErr != nil {
			requestLogger(h.logger, c).Warn().Err(creditErr).Uint("user_id", userID).Msg("streak credit failed")
		} else {
			current := state.CurrentStreak
			streak = &current
		}
	}

	return utils.SendSuccess(c, "submission graded", h.gradeResponse(result, streak))
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	filter := repository.SubmissionFilter{
		UserID: &userID,
		Origin: c.Query("origin"),
		Limit:  limit,
	}
	if raw := c.Query("problem_id"); raw != "" {
		problemID, parseErr := parseQueryInt(c, "problem_id")
		if parseErr != nil || problemID < 0 {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid problem_id")
		}
		id := uint(problemID)
		filter.ProblemID = &id
	}

	records, err := h.submissions.List(c.Context(), filter)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", records)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	record, err := h.submissions.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.SendErrorKind(c, fiber.StatusNotFound, utils.KindNotFound, "submission not found")
		}
		return h.handleError(c, err)
	}
	if record.UserID != userID {
		return utils.SendErrorKind(c, fiber.StatusForbidden, utils.KindAccessDenied, "forbidden")
	}

	return utils.SendSuccess(c, "submission retrieved", record)
}

func (h *SubmissionHandler) gradeResponse(result service.GradeResult, streak *int) dto.GradeResponse {
	return dto.GradeResponse{
		SubmissionID: result.Submission.ID,
		Verdict:      result.Submission.Verdict,
		Accepted:     result.Submission.IsAccepted(),
		PassedCount:  result.Summary.PassedCount,
		TotalCount:   result.Summary.TotalCount,
		RuntimeSec:   result.Summary.MaxRuntimeSec,
		MemoryKB:     result.Summary.MaxMemoryKB,
		TestCases:    service.BuildCaseViews(result.Cases),
		Streak:       streak,
	}
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrProblemNotFound):
		return utils.SendErrorKind(c, fiber.StatusNotFound, utils.KindNotFound, "problem not found")
	case errors.Is(err, service.ErrPremiumRequired):
		return utils.SendErrorKind(c, fiber.StatusForbidden, utils.KindAccessDenied, "premium access required")
	case errors.Is(err, service.ErrUnsupportedLanguage):
		return utils.SendErrorKind(c, fiber.StatusBadRequest, utils.KindValidationError, "language not supported")
	case errors.Is(err, service.ErrCustomCasesNotAllowed):
		return utils.SendErrorKind(c, fiber.StatusBadRequest, utils.KindValidationError, err.Error())
	case errors.Is(err, service.ErrJudgeUnavailable):
		return utils.SendErrorKind(c, fiber.StatusServiceUnavailable, utils.KindJudgeUnavailable, "judge unavailable, attempt recorded")
	case isValidationError(err):
		return utils.SendErrorKind(c, fiber.StatusBadRequest, utils.KindValidationError, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("submission operation failed")
		return utils.SendErrorKind(c, fiber.StatusInternalServerError, utils.KindInternal, "internal server error")
	}
}
