package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"weekly-trivia-service/internal/domain"
)

// AttemptStore persists weekly attempts and serves ranked leaderboards.
// SaveBest applies the keep-best policy: the stored row only changes when
// the new attempt beats it (higher score, then lower duration).
type AttemptStore interface {
	SaveBest(ctx context.Context, attempt domain.Attempt) (domain.Attempt, bool, error)
	Leaderboard(ctx context.Context, week domain.WeekKey, lang domain.Language, limit int) ([]domain.LeaderboardEntry, error)
}

// SubmissionResult is what a client gets back for a stored attempt.
type SubmissionResult struct {
	SubmissionID   string `json:"submissionId"`
	BestScore      int    `json:"bestScore"`
	BestDurationMs int64  `json:"bestDurationMs"`
	Improved       bool   `json:"improved"`
}

// AttemptService validates submissions, persists them, and fans leaderboard
// snapshots out to live subscribers.
type AttemptService struct {
	store            AttemptStore
	logger           *zap.SugaredLogger
	now              func() time.Time
	leaderboardLimit int

	mu   sync.Mutex
	hubs map[string]*leaderboardHub
}

func NewAttemptService(store AttemptStore, logger *zap.SugaredLogger) *AttemptService {
	return &AttemptService{
		store:            store,
		logger:           logger,
		now:              time.Now,
		leaderboardLimit: 50,
		hubs:             make(map[string]*leaderboardHub),
	}
}

// NewAttemptServiceWithClock is test-only for deterministic timestamps.
func NewAttemptServiceWithClock(store AttemptStore, logger *zap.SugaredLogger, now func() time.Time) *AttemptService {
	s := NewAttemptService(store, logger)
	s.now = now
	return s
}

// Submit validates and stores one attempt. Validation on the write path is
// strict: out-of-range scores and non-positive durations are rejected, not
// normalized.
func (s *AttemptService) Submit(ctx context.Context, attempt domain.Attempt) (SubmissionResult, error) {
	if attempt.UserID == "" {
		return SubmissionResult{}, fmt.Errorf("%w: missing user id", domain.ErrInvalidAttempt)
	}
	if attempt.Score < 0 || attempt.Score > domain.QuestionCount {
		return SubmissionResult{}, fmt.Errorf("%w: score %d outside [0,%d]", domain.ErrInvalidAttempt, attempt.Score, domain.QuestionCount)
	}
	if attempt.DurationMs <= 0 {
		return SubmissionResult{}, fmt.Errorf("%w: duration %dms must be positive", domain.ErrInvalidAttempt, attempt.DurationMs)
	}
	if attempt.WeekKey == "" {
		attempt.WeekKey = domain.WeekKeyFor(s.now())
	}
	attempt.Language = domain.NormalizeLanguage(string(attempt.Language))
	attempt.CreatedAt = s.now()

	best, improved, err := s.store.SaveBest(ctx, attempt)
	if err != nil {
		return SubmissionResult{}, err
	}

	s.broadcast(ctx, attempt.WeekKey, attempt.Language)

	return SubmissionResult{
		SubmissionID:   uuid.NewString(),
		BestScore:      best.Score,
		BestDurationMs: best.DurationMs,
		Improved:       improved,
	}, nil
}

// Leaderboard returns the ranked board for one (week, language) pair. An
// empty board is a successful read; a missing schema surfaces as
// domain.ErrStoreNotProvisioned so callers can tell the two apart.
func (s *AttemptService) Leaderboard(ctx context.Context, week domain.WeekKey, lang domain.Language) (domain.Leaderboard, error) {
	entries, err := s.store.Leaderboard(ctx, week, lang, s.leaderboardLimit)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return domain.Leaderboard{
		WeekKey:   week,
		Language:  lang,
		Entries:   entries,
		UpdatedAt: s.now(),
	}, nil
}

// Subscribe returns a channel receiving leaderboard snapshots for a
// (week, language) pair, starting with the current board. The caller must
// invoke cancel to avoid leaks.
func (s *AttemptService) Subscribe(ctx context.Context, week domain.WeekKey, lang domain.Language) (<-chan domain.Leaderboard, func(), error) {
	initial, err := s.Leaderboard(ctx, week, lang)
	if err != nil {
		return nil, nil, err
	}

	hub := s.hub(week, lang, true)
	ch, unsubscribe := hub.subscribe()
	ch <- initial

	cancel := func() {
		unsubscribe()
		s.dropHubIfEmpty(week, lang)
	}
	return ch, cancel, nil
}

func (s *AttemptService) broadcast(ctx context.Context, week domain.WeekKey, lang domain.Language) {
	hub := s.hub(week, lang, false)
	if hub == nil {
		return
	}
	board, err := s.Leaderboard(ctx, week, lang)
	if err != nil {
		s.logger.Warnw("leaderboard broadcast skipped", "week", week, "language", lang, "error", err)
		return
	}
	hub.broadcast(board)
}

func (s *AttemptService) hub(week domain.WeekKey, lang domain.Language, create bool) *leaderboardHub {
	key := string(week) + ":" + string(lang)
	s.mu.Lock()
	defer s.mu.Unlock()
	hub, ok := s.hubs[key]
	if !ok && create {
		hub = newLeaderboardHub()
		s.hubs[key] = hub
	}
	return hub
}

func (s *AttemptService) dropHubIfEmpty(week domain.WeekKey, lang domain.Language) {
	key := string(week) + ":" + string(lang)
	s.mu.Lock()
	defer s.mu.Unlock()
	if hub, ok := s.hubs[key]; ok && hub.isEmpty() {
		delete(s.hubs, key)
	}
}

// leaderboardHub fans snapshots out to websocket subscribers of one board.
type leaderboardHub struct {
	mu          sync.Mutex
	subscribers map[chan domain.Leaderboard]struct{}
}

func newLeaderboardHub() *leaderboardHub {
	return &leaderboardHub{subscribers: make(map[chan domain.Leaderboard]struct{})}
}

func (h *leaderboardHub) subscribe() (chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *leaderboardHub) broadcast(board domain.Leaderboard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- board:
		default:
			// Drop the stale snapshot so a slow reader cannot block the rest.
			select {
			case <-ch:
			default:
			}
			ch <- board
		}
	}
}

func (h *leaderboardHub) isEmpty() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers) == 0
}
