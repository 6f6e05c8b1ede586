package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/codeclash/codeclash-api/internal/repository"
	"github.com/codeclash/codeclash-api/internal/service"
	"github.com/codeclash/codeclash-api/internal/utils"
)

// ProblemHandler exposes the problem catalogue.
type ProblemHandler struct {
	service service.ProblemService
	logger  zerolog.Logger
}

// NewProblemHandler constructs the handler.
func NewProblemHandler(service service.ProblemService, logger zerolog.Logger) *ProblemHandler {
	return &ProblemHandler{
		service: service,
		logger:  logger.With().Str("component", "problem_handler").Logger(),
	}
}

// Register wires the handler endpoints into the router group.
func (h *ProblemHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:slug", h.get)
}

func (h *ProblemHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}

	query := repository.ProblemQuery{
		Difficulty: strings.TrimSpace(c.Query("difficulty")),
		Tag:        strings.TrimSpace(c.Query("tag")),
		Search:     strings.TrimSpace(c.Query("search")),
		Page:       page,
		PageSize:   pageSize,
	}

	problems, total, err := h.service.List(c.Context(), query)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "problems retrieved", fiber.Map{
		"problems": problems,
		"total":    total,
	})
}

func (h *ProblemHandler) get(c *fiber.Ctx) error {
	slug := strings.TrimSpace(c.Params("slug"))
	if slug == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "slug required")
	}

	detail, err := h.service.GetBySlug(c.Context(), slug, premiumFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "problem retrieved", detail)
}

func (h *ProblemHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrProblemNotFound):
		return utils.SendErrorKind(c, fiber.StatusNotFound, utils.KindNotFound, "problem not found")
	case errors.Is(err, service.ErrPremiumRequired):
		return utils.SendErrorKind(c, fiber.StatusForbidden, utils.KindAccessDenied, "premium access required")
	default:
		h.logger.Error().Err(err).Msg("problem operation failed")
		return utils.SendErrorKind(c, fiber.StatusInternalServerError, utils.KindInternal, "internal server error")
	}
}
