// Package trivia turns a pooled candidate list into the week's questions.
package trivia

import (
	"fmt"
	"strconv"

	"weekly-trivia-service/internal/domain"
	"weekly-trivia-service/internal/rng"
)

// Builder emits release-year questions from an already-shuffled candidate
// list. Ordering matters: the pool shuffled the candidates while consuming
// the shared stream, so the builder takes a plain prefix and must not
// reshuffle, or the pipeline's draw order falls apart.
type Builder struct {
	minYear int
	maxYear int
}

func NewBuilder(minYear, maxYear int) *Builder {
	if minYear == 0 {
		minYear = domain.MinReleaseYear
	}
	return &Builder{minYear: minYear, maxYear: maxYear}
}

// Build produces exactly domain.QuestionCount questions, or ErrNotReady when
// the pool is short. Per question the stream is consumed in position order:
// distractor draws first, then the option shuffle.
func (b *Builder) Build(stream *rng.Stream, candidates []domain.CatalogItem, week domain.WeekKey, lang domain.Language) ([]domain.TriviaQuestion, error) {
	if len(candidates) < domain.QuestionCount {
		return nil, domain.ErrNotReady
	}

	questions := make([]domain.TriviaQuestion, 0, domain.QuestionCount)
	for pos, item := range candidates[:domain.QuestionCount] {
		options, correctIndex := b.buildOptions(stream, item.ReleaseYear)
		questions = append(questions, domain.TriviaQuestion{
			ID:           fmt.Sprintf("%s:%s:%d:%d", week, lang, item.ID, pos),
			SourceItemID: item.ID,
			Title:        item.Title,
			Year:         item.ReleaseYear,
			Poster:       item.PosterPath,
			QuestionText: fmt.Sprintf("In which year was %q released?", item.Title),
			Options:      options,
			CorrectIndex: correctIndex,
		})
	}
	return questions, nil
}

// buildOptions generates three distractor years around the correct one and
// shuffles the four together. Candidate years are clamped into the valid
// window, and the insertion-ordered set naturally absorbs duplicates, which
// is why the loop retries instead of assuming a fixed draw count.
func (b *Builder) buildOptions(stream *rng.Stream, year int) ([]string, int) {
	years := []int{year}
	seen := map[int]struct{}{year: {}}

	for len(years) < domain.OptionCount {
		delta := 1 + stream.Intn(10)
		if stream.Float64() < 0.5 {
			delta = -delta
		}
		candidate := clamp(year+delta, b.minYear, b.maxYear)
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		years = append(years, candidate)
	}

	stream.Shuffle(len(years), func(i, j int) {
		years[i], years[j] = years[j], years[i]
	})

	options := make([]string, len(years))
	correctIndex := 0
	for i, y := range years {
		options[i] = strconv.Itoa(y)
		if y == year {
			correctIndex = i
		}
	}
	return options, correctIndex
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
