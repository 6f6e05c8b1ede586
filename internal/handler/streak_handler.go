package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/codeclash/codeclash-api/internal/service"
	"github.com/codeclash/codeclash-api/internal/utils"
)

// StreakHandler exposes the caller's daily activity streak.
type StreakHandler struct {
	rewards service.RewardService
	logger  zerolog.Logger
}

// NewStreakHandler constructs the handler.
func NewStreakHandler(rewards service.RewardService, logger zerolog.Logger) *StreakHandler {
	return &StreakHandler{
		rewards: rewards,
		logger:  logger.With().Str("component", "streak_handler").Logger(),
	}
}

// Register wires the handler endpoints into the router group.
func (h *StreakHandler) Register(router fiber.Router) {
	router.Get("", h.get)
}

func (h *StreakHandler) get(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	state, err := h.rewards.Streak(c.Context(), userID)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Uint("user_id", userID).Msg("streak lookup failed")
		return utils.SendErrorKind(c, fiber.StatusInternalServerError, utils.KindInternal, "internal server error")
	}

	return utils.SendSuccess(c, "streak retrieved", fiber.Map{
		"current_streak":     state.CurrentStreak,
		"max_streak":         state.MaxStreak,
		"last_activity_date": state.LastActivityDate,
	})
}
