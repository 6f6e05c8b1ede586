package handler

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/codeclash/codeclash-api/internal/dto"
	"github.com/codeclash/codeclash-api/internal/service"
	"github.com/codeclash/codeclash-api/internal/utils"
)

// ContestHandler exposes contest registration, graded submissions, and the
// leaderboard including its live websocket stream.
type ContestHandler struct {
	service   service.ContestService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewContestHandler constructs the handler.
func NewContestHandler(service service.ContestService, validator *validator.Validate, logger zerolog.Logger) *ContestHandler {
	return &ContestHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "contest_handler").Logger(),
	}
}

// Register wires the handler endpoints into the router group.
func (h *ContestHandler) Register(router fiber.Router) {
	router.Get("/:id", h.get)
	router.Post("/:id/register", h.register)
	router.Delete("/:id/register", h.unregister)
	router.Post("/:id/submit", h.submit)
	router.Get("/:id/leaderboard", h.leaderboard)

	router.Use("/:id/leaderboard/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		// Reject a malformed id before the connection is hijacked.
		if _, err := parseUintParam(c, "id"); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		return c.Next()
	})
	router.Get("/:id/leaderboard/ws", websocket.New(h.streamLeaderboard))
}

func (h *ContestHandler) get(c *fiber.Ctx) error {
	contestID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	view, err := h.service.Get(c.Context(), contestID, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "contest retrieved", view)
}

func (h *ContestHandler) register(c *fiber.Ctx) error {
	contestID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	if err := h.service.Register(c.Context(), contestID, userID); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "registered for contest", nil)
}

func (h *ContestHandler) unregister(c *fiber.Ctx) error {
	contestID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	if err := h.service.Unregister(c.Context(), contestID, userID); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "registration withdrawn", nil)
}

func (h *ContestHandler) submit(c *fiber.Ctx) error {
	contestID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ContestSubmitRequest
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

	response, err := h.service.Submit(c.Context(), contestID, userID, payload, premiumFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "contest submission graded", response)
}

func (h *ContestHandler) leaderboard(c *fiber.Ctx) error {
	contestID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	board, err := h.service.Leaderboard(c.Context(), contestID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "leaderboard retrieved", board)
}

func (h *ContestHandler) streamLeaderboard(conn *websocket.Conn) {
	raw, err := strconv.ParseUint(conn.Params("id"), 10, 64)
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid contest id"))
		_ = conn.Close()
		return
	}
	contestID := uint(raw)

	updates, cancel := h.service.Subscribe(contestID)
	defer cancel()
	defer conn.Close()

	h.logger.Info().Uint("contest_id", contestID).Msg("leaderboard stream connected")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	for {
		select {
		case board, ok := <-updates:
			if !ok {
				return
			}
			if writeErr := conn.WriteJSON(board); writeErr != nil {
				h.logger.Debug().Err(writeErr).Uint("contest_id", contestID).Msg("leaderboard stream write failed")
				return
			}
		case <-closed:
			h.logger.Info().Uint("contest_id", contestID).Msg("leaderboard stream disconnected")
			return
		}
	}
}

func (h *ContestHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrContestNotFound):
		return utils.SendErrorKind(c, fiber.StatusNotFound, utils.KindNotFound, "contest not found")
	case errors.Is(err, service.ErrProblemNotFound), errors.Is(err, service.ErrProblemNotInContest):
		return utils.SendErrorKind(c, fiber.StatusNotFound, utils.KindNotFound, err.Error())
	case errors.Is(err, service.ErrWindowClosed):
		return utils.SendErrorKind(c, fiber.StatusForbidden, utils.KindWindowClosed, "contest window closed")
	case errors.Is(err, service.ErrContestFull):
		return utils.SendErrorKind(c, fiber.StatusConflict, utils.KindContestFull, "contest is full")
	case errors.Is(err, service.ErrNotRegistered):
		return utils.SendErrorKind(c, fiber.StatusForbidden, utils.KindAccessDenied, "not registered for contest")
	case errors.Is(err, service.ErrPremiumRequired):
		return utils.SendErrorKind(c, fiber.StatusForbidden, utils.KindAccessDenied, "premium access required")
	case errors.Is(err, service.ErrUnsupportedLanguage):
		return utils.SendErrorKind(c, fiber.StatusBadRequest, utils.KindValidationError, "language not supported")
	case errors.Is(err, service.ErrJudgeUnavailable):
		return utils.SendErrorKind(c, fiber.StatusServiceUnavailable, utils.KindJudgeUnavailable, "judge unavailable, attempt recorded")
	case isValidationError(err):
		return utils.SendErrorKind(c, fiber.StatusBadRequest, utils.KindValidationError, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("contest operation failed")
		return utils.SendErrorKind(c, fiber.StatusInternalServerError, utils.KindInternal, "internal server error")
	}
}
