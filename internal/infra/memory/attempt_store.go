package memory

import (
	"context"
	"sort"
	"sync"

	"weekly-trivia-service/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptStore, used for
// infra-free runs and tests.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]domain.Attempt
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{attempts: make(map[string]domain.Attempt)}
}

func attemptKey(a domain.Attempt) string {
	return a.UserID + "|" + string(a.WeekKey) + "|" + string(a.Language)
}

// SaveBest keeps at most one attempt per (user, week, language); a
// resubmission replaces the row only when it beats the stored one.
func (s *AttemptStore) SaveBest(_ context.Context, attempt domain.Attempt) (domain.Attempt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := attemptKey(attempt)
	existing, ok := s.attempts[key]
	if ok && !attempt.Beats(existing) {
		return existing, false, nil
	}
	s.attempts[key] = attempt
	return attempt, true, nil
}

// Best returns the stored attempt for one player this week.
func (s *AttemptStore) Best(_ context.Context, userID string, week domain.WeekKey, lang domain.Language) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[attemptKey(domain.Attempt{UserID: userID, WeekKey: week, Language: lang})]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return attempt, nil
}

// Leaderboard orders attempts by score descending, duration ascending, and
// created-at ascending so total ties resolve to whoever got there first.
func (s *AttemptStore) Leaderboard(_ context.Context, week domain.WeekKey, lang domain.Language, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	board := make([]domain.Attempt, 0, len(s.attempts))
	for _, attempt := range s.attempts {
		if attempt.WeekKey == week && attempt.Language == lang {
			board = append(board, attempt)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(board, func(i, j int) bool {
		if board[i].Score != board[j].Score {
			return board[i].Score > board[j].Score
		}
		if board[i].DurationMs != board[j].DurationMs {
			return board[i].DurationMs < board[j].DurationMs
		}
		return board[i].CreatedAt.Before(board[j].CreatedAt)
	})

	if limit > 0 && len(board) > limit {
		board = board[:limit]
	}

	entries := make([]domain.LeaderboardEntry, 0, len(board))
	for _, attempt := range board {
		entries = append(entries, domain.LeaderboardEntry{
			UserID:      attempt.UserID,
			DisplayName: attempt.DisplayName,
			Username:    attempt.Username,
			AvatarURL:   attempt.AvatarURL,
			Score:       attempt.Score,
			DurationMs:  attempt.DurationMs,
		})
	}
	return entries, nil
}
