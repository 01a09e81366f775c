package memory

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"weekly-trivia-service/internal/domain"
)

type countingGenerator struct {
	calls atomic.Int32
}

func (g *countingGenerator) Generate(_ context.Context, week domain.WeekKey, lang domain.Language) (domain.WeeklyTriviaPayload, error) {
	g.calls.Add(1)
	questions := make([]domain.TriviaQuestion, domain.QuestionCount)
	for i := range questions {
		questions[i] = domain.TriviaQuestion{
			ID:           fmt.Sprintf("%s:%s:%d:%d", week, lang, i+1, i),
			SourceItemID: int64(i + 1),
			Year:         2000,
			Options:      []string{"1999", "2000", "2001", "2002"},
			CorrectIndex: 1,
		}
	}
	return domain.WeeklyTriviaPayload{WeekKey: week, Language: lang, LanguageLabel: lang.Label(), Questions: questions}, nil
}

func TestPayloadCacheHitsAfterFirstCompute(t *testing.T) {
	gen := &countingGenerator{}
	cache := NewPayloadCache(gen, time.Minute)
	ctx := context.Background()

	first, err := cache.GetPayload(ctx, "2026-W07", domain.LanguageEnglish)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	second, err := cache.GetPayload(ctx, "2026-W07", domain.LanguageEnglish)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if gen.calls.Load() != 1 {
		t.Fatalf("expected one compute, got %d", gen.calls.Load())
	}
	if first.Questions[0].ID != second.Questions[0].ID {
		t.Fatal("cache returned a different payload")
	}
}

func TestPayloadCacheKeysOnWeekAndLanguage(t *testing.T) {
	gen := &countingGenerator{}
	cache := NewPayloadCache(gen, time.Minute)
	ctx := context.Background()

	_, _ = cache.GetPayload(ctx, "2026-W07", domain.LanguageEnglish)
	_, _ = cache.GetPayload(ctx, "2026-W07", domain.LanguageTelugu)
	_, _ = cache.GetPayload(ctx, "2026-W08", domain.LanguageEnglish)

	if gen.calls.Load() != 3 {
		t.Fatalf("distinct keys must compute separately, got %d calls", gen.calls.Load())
	}
}
