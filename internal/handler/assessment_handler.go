package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/codeclash/codeclash-api/internal/dto"
	"github.com/codeclash/codeclash-api/internal/service"
	"github.com/codeclash/codeclash-api/internal/utils"
)

// AssessmentHandler exposes the timed assessment lifecycle.
type AssessmentHandler struct {
	service   service.AssessmentService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAssessmentHandler constructs the handler.
func NewAssessmentHandler(service service.AssessmentService, validator *validator.Validate, logger zerolog.Logger) *AssessmentHandler {
	return &AssessmentHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "assessment_handler").Logger(),
	}
}

// Register wires the handler endpoints into the router group.
func (h *AssessmentHandler) Register(router fiber.Router) {
	router.Post("/:id/start", h.start)
	router.Post("/:id/mcq-answer", h.answerMCQ)
	router.Post("/:id/coding-answer", h.answerCoding)
	router.Post("/:id/complete", h.complete)
	router.Get("/:id/report/:submissionId", h.report)
}

func (h *AssessmentHandler) start(c *fiber.Ctx) error {
	assessmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	response, err := h.service.Start(c.Context(), assessmentID, userID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "assessment started", response)
}

func (h *AssessmentHandler) answerMCQ(c *fiber.Ctx) error {
	var payload dto.MCQAnswerRequest
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

	if err := h.service.AnswerMCQ(c.Context(), userID, payload); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "answer recorded", nil)
}

func (h *AssessmentHandler) answerCoding(c *fiber.Ctx) error {
	var payload dto.CodingAnswerRequest
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

	response, err := h.service.AnswerCoding(c.Context(), userID, payload, premiumFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "answer graded", response)
}

func (h *AssessmentHandler) complete(c *fiber.Ctx) error {
	var payload dto.CompleteAssessmentRequest
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

	response, err := h.service.Complete(c.Context(), userID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assessment completed", response)
}

func (h *AssessmentHandler) report(c *fiber.Ctx) error {
	assessmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	publicID := strings.TrimSpace(c.Params("submissionId"))
	if publicID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "submission id required")
	}

	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	report, err := h.service.Report(c.Context(), userID, assessmentID, publicID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "report retrieved", report)
}

func (h *AssessmentHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrAssessmentNotFound), errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrQuestionNotFound):
		return utils.SendErrorKind(c, fiber.StatusNotFound, utils.KindNotFound, err.Error())
	case errors.Is(err, service.ErrNotSessionOwner):
		return utils.SendErrorKind(c, fiber.StatusForbidden, utils.KindAccessDenied, "forbidden")
	case errors.Is(err, service.ErrSessionClosed):
		return utils.SendErrorKind(c, fiber.StatusConflict, utils.KindSessionClosed, "session is closed")
	case errors.Is(err, service.ErrSessionInProgress):
		return utils.SendErrorKind(c, fiber.StatusConflict, utils.KindSessionClosed, "session still in progress")
	case errors.Is(err, service.ErrActiveSessionExists):
		return utils.SendErrorKind(c, fiber.StatusConflict, utils.KindValidationError, "an active session already exists")
	case errors.Is(err, service.ErrQuestionKindMismatch), errors.Is(err, service.ErrInvalidOption):
		return utils.SendErrorKind(c, fiber.StatusBadRequest, utils.KindValidationError, err.Error())
	case errors.Is(err, service.ErrUnsupportedLanguage):
		return utils.SendErrorKind(c, fiber.StatusBadRequest, utils.KindValidationError, "language not supported")
	case errors.Is(err, service.ErrJudgeUnavailable):
		return utils.SendErrorKind(c, fiber.StatusServiceUnavailable, utils.KindJudgeUnavailable, "judge unavailable, attempt recorded")
	case isValidationError(err):
		return utils.SendErrorKind(c, fiber.StatusBadRequest, utils.KindValidationError, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("assessment operation failed")
		return utils.SendErrorKind(c, fiber.StatusInternalServerError, utils.KindInternal, "internal server error")
	}
}
