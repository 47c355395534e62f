package gamification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/skinclinic-api/pkg/logging"
)

const (
	leaderboardKey     = "leaderboard"
	defaultBoardLimit  = 10
	maxBoardLimit      = 100
	dayLayout          = "2006-01-02"
	activityPointValue = 5
)

var (
	ErrInvalidUser      = errors.New("gamification: user id required")
	ErrInvalidPoints    = errors.New("gamification: points must be positive")
	ErrUnknownChallenge = errors.New("gamification: unknown challenge")
)

// Challenge is a goal that awards RewardPoints once Target is reached.
type Challenge struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Target       int64  `json:"target"`
	RewardPoints int64  `json:"rewardPoints"`
}

// DefaultChallenges is the built-in challenge catalogue.
var DefaultChallenges = []Challenge{
	{ID: "first-booking", Title: "First Glow", Description: "Book your first treatment", Target: 1, RewardPoints: 50},
	{ID: "routine-7", Title: "Routine Builder", Description: "Log your skincare routine 7 days in a row", Target: 7, RewardPoints: 100},
	{ID: "review-3", Title: "Word of Mouth", Description: "Leave three product reviews", Target: 3, RewardPoints: 75},
	{ID: "refer-friend", Title: "Bring a Friend", Description: "Refer a friend who books", Target: 1, RewardPoints: 150},
}

// Streak is a user's consecutive-day activity record.
type Streak struct {
	Current int    `json:"current"`
	Best    int    `json:"best"`
	LastDay string `json:"lastDay,omitempty"`
}

// ChallengeProgress reports a user's position on one challenge.
type ChallengeProgress struct {
	ChallengeID string `json:"challengeId"`
	Progress    int64  `json:"progress"`
	Target      int64  `json:"target"`
	Completed   bool   `json:"completed"`
	// Awarded is true only on the call that completed the challenge.
	Awarded bool  `json:"awarded"`
	Points  int64 `json:"points"`
}

// LeaderboardEntry is one ranked user.
type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"userId"`
	Points int64  `json:"points"`
}

// Profile summarises a user's gamification state.
type Profile struct {
	UserID              string   `json:"userId"`
	Points              int64    `json:"points"`
	Streak              Streak   `json:"streak"`
	CompletedChallenges []string `json:"completedChallenges"`
}

// Service implements the gamification rules on top of a Store.
type Service struct {
	store      Store
	challenges map[string]Challenge
	catalogue  []Challenge
	logger     *logging.Logger

	// streakMu serialises streak read-modify-write within this process.
	streakMu sync.Mutex
}

func NewService(store Store, challenges []Challenge, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if challenges == nil {
		challenges = DefaultChallenges
	}
	byID := make(map[string]Challenge, len(challenges))
	for _, c := range challenges {
		byID[c.ID] = c
	}
	return &Service{
		store:      store,
		challenges: byID,
		catalogue:  challenges,
		logger:     logger,
	}
}

func streakKey(userID string) string        { return "streak:" + userID }
func completedKey(userID string) string     { return "completed:" + userID }
func progressKey(userID, cid string) string { return "progress:" + cid + ":" + userID }

// Challenges returns the catalogue.
func (s *Service) Challenges() []Challenge {
	out := make([]Challenge, len(s.catalogue))
	copy(out, s.catalogue)
	return out
}

// AwardPoints adds points and returns the user's new total.
func (s *Service) AwardPoints(ctx context.Context, userID string, points int64, reason string) (int64, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, ErrInvalidUser
	}
	if points <= 0 {
		return 0, ErrInvalidPoints
	}
	total, err := s.store.ZIncrBy(ctx, leaderboardKey, userID, float64(points))
	if err != nil {
		return 0, fmt.Errorf("gamification: award points: %w", err)
	}
	s.logger.Info("points awarded", "user_id", userID, "points", points, "reason", reason, "total", int64(total))
	return int64(total), nil
}

// RecordActivity registers activity on day. Consecutive days extend the
// streak, a repeat of the same day is a no-op and a gap resets it to 1.
func (s *Service) RecordActivity(ctx context.Context, userID string, day time.Time) (Streak, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Streak{}, ErrInvalidUser
	}
	today := day.Format(dayLayout)

	s.streakMu.Lock()
	defer s.streakMu.Unlock()

	streak, err := s.loadStreak(ctx, userID)
	if err != nil {
		return Streak{}, err
	}
	if streak.LastDay == today {
		return streak, nil
	}

	yesterday := day.AddDate(0, 0, -1).Format(dayLayout)
	if streak.LastDay == yesterday {
		streak.Current++
	} else {
		streak.Current = 1
	}
	if streak.Current > streak.Best {
		streak.Best = streak.Current
	}
	streak.LastDay = today

	raw, err := json.Marshal(streak)
	if err != nil {
		return Streak{}, fmt.Errorf("gamification: encode streak: %w", err)
	}
	if err := s.store.Set(ctx, streakKey(userID), string(raw)); err != nil {
		return Streak{}, fmt.Errorf("gamification: save streak: %w", err)
	}
	if _, err := s.AwardPoints(ctx, userID, activityPointValue, "daily_activity"); err != nil {
		return Streak{}, err
	}
	return streak, nil
}

func (s *Service) loadStreak(ctx context.Context, userID string) (Streak, error) {
	raw, err := s.store.Get(ctx, streakKey(userID))
	if errors.Is(err, ErrNotFound) {
		return Streak{}, nil
	}
	if err != nil {
		return Streak{}, fmt.Errorf("gamification: load streak: %w", err)
	}
	var streak Streak
	if err := json.Unmarshal([]byte(raw), &streak); err != nil {
		return Streak{}, fmt.Errorf("gamification: decode streak: %w", err)
	}
	return streak, nil
}

// Progress advances a challenge by delta. The reward is granted exactly once,
// on the call that first reaches the target.
func (s *Service) Progress(ctx context.Context, userID, challengeID string, delta int64) (ChallengeProgress, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ChallengeProgress{}, ErrInvalidUser
	}
	c, ok := s.challenges[challengeID]
	if !ok {
		return ChallengeProgress{}, ErrUnknownChallenge
	}
	if delta <= 0 {
		delta = 1
	}

	progress, err := s.store.IncrBy(ctx, progressKey(userID, c.ID), delta)
	if err != nil {
		return ChallengeProgress{}, fmt.Errorf("gamification: progress: %w", err)
	}
	out := ChallengeProgress{
		ChallengeID: c.ID,
		Progress:    min(progress, c.Target),
		Target:      c.Target,
	}
	if progress < c.Target {
		return out, nil
	}

	out.Completed = true
	added, err := s.store.SAdd(ctx, completedKey(userID), c.ID)
	if err != nil {
		return ChallengeProgress{}, fmt.Errorf("gamification: complete challenge: %w", err)
	}
	if added {
		total, err := s.AwardPoints(ctx, userID, c.RewardPoints, "challenge:"+c.ID)
		if err != nil {
			return ChallengeProgress{}, err
		}
		out.Awarded = true
		out.Points = total
		s.logger.Info("challenge completed", "user_id", userID, "challenge_id", c.ID)
	}
	return out, nil
}

// Leaderboard ranks users by points descending, breaking ties by user id.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultBoardLimit
	}
	if limit > maxBoardLimit {
		limit = maxBoardLimit
	}
	members, err := s.store.ZAll(ctx, leaderboardKey)
	if err != nil {
		return nil, fmt.Errorf("gamification: leaderboard: %w", err)
	}
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].Score != members[j].Score {
			return members[i].Score > members[j].Score
		}
		return members[i].ID < members[j].ID
	})
	if len(members) > limit {
		members = members[:limit]
	}
	out := make([]LeaderboardEntry, len(members))
	for i, m := range members {
		out[i] = LeaderboardEntry{Rank: i + 1, UserID: m.ID, Points: int64(m.Score)}
	}
	return out, nil
}

// Profile loads everything known about a user.
func (s *Service) Profile(ctx context.Context, userID string) (Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Profile{}, ErrInvalidUser
	}
	points, err := s.store.ZScore(ctx, leaderboardKey, userID)
	if err != nil {
		return Profile{}, fmt.Errorf("gamification: profile points: %w", err)
	}
	streak, err := s.loadStreak(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	completed, err := s.store.SMembers(ctx, completedKey(userID))
	if err != nil {
		return Profile{}, fmt.Errorf("gamification: profile challenges: %w", err)
	}
	return Profile{
		UserID:              userID,
		Points:              int64(points),
		Streak:              streak,
		CompletedChallenges: completed,
	}, nil
}
