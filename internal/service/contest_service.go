package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/codeclash/codeclash-api/internal/dto"
	"github.com/codeclash/codeclash-api/internal/models"
	"github.com/codeclash/codeclash-api/internal/observability"
	"github.com/codeclash/codeclash-api/internal/repository"
)

// ErrContestNotFound indicates the contest cannot be located.
var ErrContestNotFound = errors.New("contest not found")

// ErrWindowClosed indicates the contest or session is outside its active
// time window. The server clock decides; client timers never gate writes.
var ErrWindowClosed = errors.New("window closed")

// ErrContestFull indicates the contest reached its participant cap.
var ErrContestFull = errors.New("contest full")

// ErrNotRegistered indicates the user has no registration for the contest.
var ErrNotRegistered = errors.New("not registered for contest")

// ErrProblemNotInContest indicates the problem is not part of the contest.
var ErrProblemNotInContest = errors.New("problem not part of contest")

const leaderboardFeedBuffer = 8

// ContestService governs contest registration, windowed submissions,
// best-attempt scoring, and the leaderboard.
type ContestService interface {
	Get(ctx context.Context, contestID, viewerID uint) (dto.ContestView, error)
	Register(ctx context.Context, contestID, userID uint) error
	Unregister(ctx context.Context, contestID, userID uint) error
	Submit(ctx context.Context, contestID, userID uint, payload dto.ContestSubmitRequest, hasPremium bool) (dto.ContestSubmitResponse, error)
	Leaderboard(ctx context.Context, contestID uint) (dto.Leaderboard, error)
	Subscribe(contestID uint) (<-chan dto.Leaderboard, func())
}

type contestService struct {
	contests repository.ContestRepository
	grading  GradingService
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	feed     *leaderboardFeed
	now      func() time.Time
}

// NewContestService constructs the contest controller.
func NewContestService(contests repository.ContestRepository, grading GradingService, cache *redis.Client, cacheTTL time.Duration, logger zerolog.Logger) ContestService {
	return &contestService{
		contests: contests,
		grading:  grading,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger.With().Str("component", "contest_service").Logger(),
		feed:     newLeaderboardFeed(),
		now:      time.Now,
	}
}

func (s *contestService) Get(ctx context.Context, contestID, viewerID uint) (dto.ContestView, error) {
	contest, err := s.loadContest(ctx, contestID)
	if err != nil {
		return dto.ContestView{}, err
	}

	registered, err := s.contests.IsRegistered(ctx, contestID, viewerID)
	if err != nil {
		return dto.ContestView{}, err
	}

	scores, err := s.contests.ListUserScores(ctx, contestID, viewerID)
	if err != nil {
		return dto.ContestView{}, err
	}
	awarded := make(map[uint]int, len(scores))
	total := 0
	for _, score := range scores {
		awarded[score.ProblemID] = score.MarksAwarded
		total += score.MarksAwarded
	}

	now := s.now()
	view := dto.ContestView{
		ID:              contest.ID,
		Slug:            contest.Slug,
		Title:           contest.Title,
		Description:     contest.Description,
		StartTime:       contest.StartTime,
		EndTime:         contest.EndTime,
		Status:          contest.StatusAt(now),
		MaxParticipants: contest.MaxParticipants,
		Registered:      registered,
		TotalScore:      total,
		Problems:        make([]dto.ContestProblemView, 0, len(contest.Problems)),
	}

	for _, cp := range contest.Problems {
		view.Problems = append(view.Problems, dto.ContestProblemView{
			ProblemID:    cp.ProblemID,
			Slug:         cp.Problem.Slug,
			Title:        cp.Problem.Title,
			Difficulty:   cp.Problem.Difficulty,
			Marks:        cp.Marks,
			MarksAwarded: awarded[cp.ProblemID],
		})
	}

	return view, nil
}

func (s *contestService) Register(ctx context.Context, contestID, userID uint) error {
	contest, err := s.loadContest(ctx, contestID)
	if err != nil {
		return err
	}

	if contest.StatusAt(s.now()) == models.ContestStatusEnded {
		return ErrWindowClosed
	}

	if contest.MaxParticipants > 0 {
		count, err := s.contests.CountRegistrations(ctx, contestID)
		if err != nil {
			return err
		}
		if count >= int64(contest.MaxParticipants) {
			already, regErr := s.contests.IsRegistered(ctx, contestID, userID)
			if regErr != nil {
				return regErr
			}
			if !already {
				return ErrContestFull
			}
			// Re-registering an existing participant stays a no-op.
			return nil
		}
	}

	if err := s.contests.Register(ctx, &models.ContestRegistration{
		ContestID:    contestID,
		UserID:       userID,
		RegisteredAt: s.now(),
	}); err != nil {
		return err
	}

	observability.SessionTransitions().WithLabelValues("contest", "registered").Inc()
	return nil
}

func (s *contestService) Unregister(ctx context.Context, contestID, userID uint) error {
	contest, err := s.loadContest(ctx, contestID)
	if err != nil {
		return err
	}

	if contest.StatusAt(s.now()) == models.ContestStatusEnded {
		return ErrWindowClosed
	}

	return s.contests.Unregister(ctx, contestID, userID)
}

func (s *contestService) Submit(ctx context.Context, contestID, userID uint, payload dto.ContestSubmitRequest, hasPremium bool) (dto.ContestSubmitResponse, error) {
	contest, err := s.loadContest(ctx, contestID)
	if err != nil {
		return dto.ContestSubmitResponse{}, err
	}

	// Every write re-validates against the server-held window; a client
	// countdown that has not reached zero changes nothing.
	if !contest.WindowOpenAt(s.now()) {
		return dto.ContestSubmitResponse{}, ErrWindowClosed
	}

	registered, err := s.contests.IsRegistered(ctx, contestID, userID)
	if err != nil {
		return dto.ContestSubmitResponse{}, err
	}
	if !registered {
		return dto.ContestSubmitResponse{}, ErrNotRegistered
	}

	var slot *models.ContestProblem
	for i := range contest.Problems {
		if contest.Problems[i].ProblemID == payload.ProblemID {
			slot = &contest.Problems[i]
			break
		}
	}
	if slot == nil {
		return dto.ContestSubmitResponse{}, ErrProblemNotInContest
	}

	result, err := s.grading.Grade(ctx, GradeRequest{
		UserID:           userID,
		ProblemID:        payload.ProblemID,
		Origin:           models.OriginContest,
		ContestID:        &contestID,
		Code:             payload.Code,
		Language:         payload.Language,
		HasPremiumAccess: hasPremium,
	})
	if err != nil {
		return dto.ContestSubmitResponse{}, err
	}

	// All-or-nothing marks: pass counts are informational, the award is the
	// full problem marks iff the verdict is accepted.
	marks := 0
	if result.Summary.Overall == models.VerdictAccepted {
		marks = slot.Marks
	}

	best, err := s.contests.UpsertScoreIfBetter(ctx, models.ContestScore{
		ContestID:        contestID,
		UserID:           userID,
		ProblemID:        payload.ProblemID,
		MarksAwarded:     marks,
		PassedCount:      result.Summary.PassedCount,
		TotalCount:       result.Summary.TotalCount,
		BestSubmissionID: result.Submission.ID,
		AchievedAt:       result.Submission.CreatedAt,
	})
	if err != nil {
		return dto.ContestSubmitResponse{}, err
	}

	s.invalidateLeaderboard(ctx, contestID)
	go s.broadcastLeaderboard(contestID)

	return dto.ContestSubmitResponse{
		Status:       result.Summary.Overall,
		MarksAwarded: best.MarksAwarded,
		PassedCount:  result.Summary.PassedCount,
		TotalCount:   result.Summary.TotalCount,
	}, nil
}

func (s *contestService) Leaderboard(ctx context.Context, contestID uint) (dto.Leaderboard, error) {
	cacheKey := leaderboardCacheKey(contestID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var board dto.Leaderboard
			if unmarshalErr := json.Unmarshal([]byte(cached), &board); unmarshalErr == nil {
				return board, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read leaderboard cache")
		}
	}

	if _, err := s.loadContest(ctx, contestID); err != nil {
		return dto.Leaderboard{}, err
	}

	board, err := s.computeLeaderboard(ctx, contestID)
	if err != nil {
		return dto.Leaderboard{}, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(board); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store leaderboard cache")
			}
		}
	}

	return board, nil
}

func (s *contestService) Subscribe(contestID uint) (<-chan dto.Leaderboard, func()) {
	return s.feed.subscribe(contestID)
}

func (s *contestService) computeLeaderboard(ctx context.Context, contestID uint) (dto.Leaderboard, error) {
	scores, err := s.contests.ListScores(ctx, contestID)
	if err != nil {
		return dto.Leaderboard{}, err
	}

	type standing struct {
		userID     uint
		total      int
		solved     int
		lastScored time.Time
	}

	byUser := make(map[uint]*standing)
	for _, score := range scores {
		row, ok := byUser[score.UserID]
		if !ok {
			row = &standing{userID: score.UserID}
			byUser[score.UserID] = row
		}
		row.total += score.MarksAwarded
		if score.MarksAwarded > 0 {
			row.solved++
			// The timestamp of the submission that achieved the final total.
			if score.AchievedAt.After(row.lastScored) {
				row.lastScored = score.AchievedAt
			}
		}
	}

	standings := make([]*standing, 0, len(byUser))
	for _, row := range byUser {
		standings = append(standings, row)
	}

	sort.Slice(standings, func(i, j int) bool {
		if standings[i].total != standings[j].total {
			return standings[i].total > standings[j].total
		}
		if !standings[i].lastScored.Equal(standings[j].lastScored) {
			return standings[i].lastScored.Before(standings[j].lastScored)
		}
		return standings[i].userID < standings[j].userID
	})

	board := dto.Leaderboard{
		ContestID:   contestID,
		GeneratedAt: s.now(),
		Entries:     make([]dto.LeaderboardEntry, 0, len(standings)),
	}
	for i, row := range standings {
		board.Entries = append(board.Entries, dto.LeaderboardEntry{
			Rank:       i + 1,
			UserID:     row.userID,
			TotalScore: row.total,
			Solved:     row.solved,
			LastScored: row.lastScored,
		})
	}

	return board, nil
}

func (s *contestService) broadcastLeaderboard(contestID uint) {
	if !s.feed.hasSubscribers(contestID) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	board, err := s.computeLeaderboard(ctx, contestID)
	if err != nil {
		s.logger.Warn().Err(err).Uint("contest_id", contestID).Msg("failed to compute live leaderboard")
		return
	}

	s.feed.broadcast(contestID, board)
}

func (s *contestService) invalidateLeaderboard(ctx context.Context, contestID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, leaderboardCacheKey(contestID)).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate leaderboard cache")
	}
}

func (s *contestService) loadContest(ctx context.Context, contestID uint) (models.Contest, error) {
	contest, err := s.contests.GetByID(ctx, contestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Contest{}, ErrContestNotFound
		}
		return models.Contest{}, err
	}
	return contest, nil
}

func leaderboardCacheKey(contestID uint) string {
	return fmt.Sprintf("contest:leaderboard:%d", contestID)
}

type leaderboardFeed struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.Leaderboard]struct{}
}

func newLeaderboardFeed() *leaderboardFeed {
	return &leaderboardFeed{subscribers: make(map[uint]map[chan dto.Leaderboard]struct{})}
}

func (f *leaderboardFeed) subscribe(contestID uint) (<-chan dto.Leaderboard, func()) {
	ch := make(chan dto.Leaderboard, leaderboardFeedBuffer)

	f.mu.Lock()
	if f.subscribers[contestID] == nil {
		f.subscribers[contestID] = make(map[chan dto.Leaderboard]struct{})
	}
	f.subscribers[contestID][ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if subs, ok := f.subscribers[contestID]; ok {
			if _, exists := subs[ch]; exists {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(f.subscribers, contestID)
			}
		}
		f.mu.Unlock()
	}

	return ch, cancel
}

func (f *leaderboardFeed) hasSubscribers(contestID uint) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers[contestID]) > 0
}

func (f *leaderboardFeed) broadcast(contestID uint, board dto.Leaderboard) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for ch := range f.subscribers[contestID] {
		select {
		case ch <- board:
		default:
			// Slow consumers drop updates rather than block grading.
		}
	}
}
