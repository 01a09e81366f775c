package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"weekly-trivia-service/internal/domain"
	"weekly-trivia-service/internal/pool"
	"weekly-trivia-service/internal/rng"
	"weekly-trivia-service/internal/trivia"
)

// PayloadRepository serves weekly payloads, typically through a cache layer
// that falls back to a Generator on miss.
type PayloadRepository interface {
	GetPayload(ctx context.Context, week domain.WeekKey, lang domain.Language) (domain.WeeklyTriviaPayload, error)
}

// Generator computes a payload from scratch. TriviaService is the only
// implementation; caches wrap it.
type Generator interface {
	Generate(ctx context.Context, week domain.WeekKey, lang domain.Language) (domain.WeeklyTriviaPayload, error)
}

// TriviaService derives the weekly quiz: week key + language → seed → tiered
// candidate pool → questions. The result is a pure function of its inputs
// and the catalog snapshot, so it carries no state of its own.
type TriviaService struct {
	pool    *pool.Builder
	builder *trivia.Builder
	tiers   []domain.RelaxationTier
	logger  *zap.SugaredLogger
	now     func() time.Time
}

func NewTriviaService(poolBuilder *pool.Builder, questionBuilder *trivia.Builder, tiers []domain.RelaxationTier, logger *zap.SugaredLogger) *TriviaService {
	if len(tiers) == 0 {
		tiers = domain.DefaultRelaxationTiers()
	}
	return &TriviaService{
		pool:    poolBuilder,
		builder: questionBuilder,
		tiers:   tiers,
		logger:  logger,
		now:     time.Now,
	}
}

// CurrentWeekKey returns the key clients get when they do not pin a week.
func (s *TriviaService) CurrentWeekKey() domain.WeekKey {
	return domain.WeekKeyFor(s.now())
}

// Generate computes the full payload for one (week, language) pair. The
// seed stream is consumed in a fixed order — page selection, candidate
// shuffle, then per-question distractors — which is what keeps independent
// computations byte-identical.
func (s *TriviaService) Generate(ctx context.Context, week domain.WeekKey, lang domain.Language) (domain.WeeklyTriviaPayload, error) {
	seed := rng.Seed(string(week) + ":" + string(lang))
	stream := rng.NewStream(seed)

	candidates, err := s.pool.Build(ctx, stream, lang, s.tiers, domain.QuestionCount)
	if err != nil {
		return domain.WeeklyTriviaPayload{}, err
	}

	questions, err := s.builder.Build(stream, candidates, week, lang)
	if err != nil {
		s.logger.Warnw("weekly quiz not ready", "week", week, "language", lang, "pool", len(candidates))
		return domain.WeeklyTriviaPayload{}, err
	}

	return domain.WeeklyTriviaPayload{
		WeekKey:       week,
		Language:      lang,
		LanguageLabel: lang.Label(),
		Questions:     questions,
	}, nil
}
