// Package pool builds the deduplicated candidate list a weekly quiz is drawn
// from. Tiers run strict to permissive so well-voted titles are preferred,
// while sparse languages still end up with enough rows to fill a quiz.
package pool

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"weekly-trivia-service/internal/catalog"
	"weekly-trivia-service/internal/domain"
	"weekly-trivia-service/internal/rng"
)

// Builder assembles candidate pools from the catalog.
type Builder struct {
	client catalog.Client
	logger *zap.SugaredLogger
}

func NewBuilder(client catalog.Client, logger *zap.SugaredLogger) *Builder {
	return &Builder{client: client, logger: logger}
}

// Build collects candidates tier by tier until at least target items are
// pooled, or every tier is exhausted. The returned slice is already
// seeded-shuffled; callers must not reshuffle it.
//
// The stream is consumed in a fixed order per tier: first the page-pool
// shuffle, then the pool shuffle. Page fetches run in parallel but never
// touch the stream, so concurrency cannot perturb the draw order.
func (b *Builder) Build(ctx context.Context, stream *rng.Stream, lang domain.Language, tiers []domain.RelaxationTier, target int) ([]domain.CatalogItem, error) {
	if len(tiers) == 0 {
		tiers = domain.DefaultRelaxationTiers()
	}

	var pooled []domain.CatalogItem
	seen := make(map[int64]struct{})

	for i, tier := range tiers {
		items, err := b.collectTier(ctx, stream, lang, tier)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if _, dup := seen[item.ID]; dup {
				continue
			}
			seen[item.ID] = struct{}{}
			pooled = append(pooled, item)
		}

		stream.Shuffle(len(pooled), func(a, c int) {
			pooled[a], pooled[c] = pooled[c], pooled[a]
		})

		if len(pooled) >= target {
			b.logger.Debugw("candidate pool filled",
				"language", lang, "tier", i, "minVoteCount", tier.MinVoteCount, "size", len(pooled))
			return pooled, nil
		}
		b.logger.Infow("candidate pool short, relaxing",
			"language", lang, "tier", i, "minVoteCount", tier.MinVoteCount, "size", len(pooled), "target", target)
	}

	return pooled, nil
}

// collectTier fetches page 1 to learn the page count, picks the remaining
// pages by seeded shuffle, and fetches them in parallel. Page 1 items always
// lead the merge so dedup order stays deterministic.
func (b *Builder) collectTier(ctx context.Context, stream *rng.Stream, lang domain.Language, tier domain.RelaxationTier) ([]domain.CatalogItem, error) {
	first, err := b.client.Discover(ctx, lang, 1, tier.MinVoteCount)
	if err != nil {
		return nil, err
	}

	pages := b.choosePages(stream, first.TotalPages, tier.PagesWanted)

	results := make([][]domain.CatalogItem, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	for i, page := range pages {
		i, page := i, page
		g.Go(func() error {
			res, err := b.client.Discover(gctx, lang, page, tier.MinVoteCount)
			if err != nil {
				return err
			}
			results[i] = res.Items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make([]domain.CatalogItem, 0, len(first.Items)*(len(pages)+1))
	merged = append(merged, first.Items...)
	for _, items := range results {
		merged = append(merged, items...)
	}
	return merged, nil
}

// choosePages picks up to pagesWanted-1 extra page numbers from [2,totalPages]
// by shuffling the page pool and taking a prefix. The whole pool is shuffled,
// not just the prefix, so the number of stream draws depends only on
// totalPages and recomputation against the same snapshot stays aligned.
func (b *Builder) choosePages(stream *rng.Stream, totalPages, pagesWanted int) []int {
	if totalPages < 1 {
		totalPages = 1
	}
	// The upstream caps deep pagination; going past the cap returns errors,
	// not data.
	if totalPages > 500 {
		totalPages = 500
	}

	remaining := make([]int, 0, totalPages-1)
	for p := 2; p <= totalPages; p++ {
		remaining = append(remaining, p)
	}
	shuffled := stream.ShuffleInts(remaining)

	extra := pagesWanted - 1
	if extra < 0 {
		extra = 0
	}
	if extra > len(shuffled) {
		extra = len(shuffled)
	}
	return shuffled[:extra]
}
