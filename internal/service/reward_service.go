package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/codeclash/codeclash-api/internal/events"
	"github.com/codeclash/codeclash-api/internal/models"
	"github.com/codeclash/codeclash-api/internal/repository"
)

const dayFormat = "2006-01-02"

// RewardService is the reward trigger: it observes accepted submissions and
// session completions and maintains daily streaks. Streak credit is
// idempotent per calendar day, so re-delivery or a second accepted
// submission on the same day never double-increments.
type RewardService interface {
	Start(ctx context.Context) error
	CreditActivity(ctx context.Context, userID uint, at time.Time) (models.StreakState, error)
	Streak(ctx context.Context, userID uint) (models.StreakState, error)
}

type rewardService struct {
	streaks repository.StreakRepository
	nats    *nats.Conn
	guard   *redis.Client
	logger  zerolog.Logger
	now     func() time.Time
}

// NewRewardService constructs the reward trigger.
func NewRewardService(streaks repository.StreakRepository, natsConn *nats.Conn, guard *redis.Client, logger zerolog.Logger) RewardService {
	return &rewardService{
		streaks: streaks,
		nats:    natsConn,
		guard:   guard,
		logger:  logger.With().Str("component", "reward_service").Logger(),
		now:     time.Now,
	}
}

// Start subscribes to the event subjects. Events arrive asynchronously;
// correctness does not depend on delivery order because the daily credit is
// idempotent.
func (s *rewardService) Start(ctx context.Context) error {
	if s.nats == nil {
		return nil
	}

	acceptedSub, err := s.nats.Subscribe(events.SubjectSubmissionAccepted, func(msg *nats.Msg) {
		var event events.SubmissionAccepted
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			s.logger.Error().Err(err).Msg("failed to decode submission accepted event")
			return
		}
		s.credit(event.UserID, event.AcceptedAt)
	})
	if err != nil {
		return fmt.Errorf("subscribe submission accepted: %w", err)
	}

	completedSub, err := s.nats.Subscribe(events.SubjectSessionCompleted, func(msg *nats.Msg) {
		var event events.SessionCompleted
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			s.logger.Error().Err(err).Msg("failed to decode session completed event")
			return
		}
		s.credit(event.UserID, event.CompletedAt)
	})
	if err != nil {
		_ = acceptedSub.Unsubscribe()
		return fmt.Errorf("subscribe session completed: %w", err)
	}

	go func() {
		<-ctx.Done()
		_ = acceptedSub.Unsubscribe()
		_ = completedSub.Unsubscribe()
	}()

	return nil
}

func (s *rewardService) credit(userID uint, at time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := s.CreditActivity(ctx, userID, at); err != nil {
		s.logger.Error().Err(err).Uint("user_id", userID).Msg("failed to credit streak")
	}
}

// CreditActivity applies the calendar-day streak rule: yesterday extends the
// streak, today is already credited, anything older resets to one.
func (s *rewardService) CreditActivity(ctx context.Context, userID uint, at time.Time) (models.StreakState, error) {
	if at.IsZero() {
		at = s.now()
	}
	today := at.UTC().Format(dayFormat)

	state, err := s.streaks.Get(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.StreakState{}, err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		state = models.StreakState{UserID: userID}
	}

	if state.LastActivityDate == today {
		return state, nil
	}

	// The Redis day key catches concurrent triggers racing the row update.
	var guardKey string
	if s.guard != nil {
		guardKey = fmt.Sprintf("streak:credited:%d:%s", userID, today)
		acquired, guardErr := s.guard.SetNX(ctx, guardKey, "1", 48*time.Hour).Result()
		if guardErr != nil {
			s.logger.Warn().Err(guardErr).Msg("streak guard unavailable, relying on stored date")
			guardKey = ""
		} else if !acquired {
			return state, nil
		}
	}

	yesterday := at.UTC().AddDate(0, 0, -1).Format(dayFormat)
	if state.LastActivityDate == yesterday {
		state.CurrentStreak++
	} else {
		state.CurrentStreak = 1
	}
	if state.CurrentStreak > state.MaxStreak {
		state.MaxStreak = state.CurrentStreak
	}
	state.LastActivityDate = today

	if err := s.streaks.Save(ctx, &state); err != nil {
		// Release the day key so the next trigger can retry the credit.
		if guardKey != "" {
			if delErr := s.guard.Del(ctx, guardKey).Err(); delErr != nil {
				s.logger.Warn().Err(delErr).Msg("failed to release streak guard key")
			}
		}
		return models.StreakState{}, err
	}

	s.logger.Info().
		Uint("user_id", userID).
		Int("streak", state.CurrentStreak).
		Msg("streak credited")

	return state, nil
}

func (s *rewardService) Streak(ctx context.Context, userID uint) (models.StreakState, error) {
	state, err := s.streaks.Get(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.StreakState{UserID: userID}, nil
	}
	return state, err
}
