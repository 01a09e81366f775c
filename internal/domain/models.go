package domain

import (
	"fmt"
	"time"
)

// Language is one of the catalog languages the trivia engine supports.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageTelugu  Language = "te"
	LanguageHindi   Language = "hi"
	LanguageTamil   Language = "ta"

	DefaultLanguage = LanguageEnglish
)

var languageLabels = map[Language]string{
	LanguageEnglish: "English",
	LanguageTelugu:  "Telugu",
	LanguageHindi:   "Hindi",
	LanguageTamil:   "Tamil",
}

// NormalizeLanguage maps arbitrary input to a supported language, falling
// back to the default for anything unrecognized.
func NormalizeLanguage(raw string) Language {
	lang := Language(raw)
	if _, ok := languageLabels[lang]; ok {
		return lang
	}
	return DefaultLanguage
}

// Label returns the human-readable name of the language.
func (l Language) Label() string {
	if label, ok := languageLabels[l]; ok {
		return label
	}
	return languageLabels[DefaultLanguage]
}

// WeekKey identifies an ISO-8601 week, e.g. "2026-W07". It is the stability
// boundary for a generated quiz: every date within the same Mon-Sun UTC week
// maps to the same key.
type WeekKey string

// WeekKeyFor derives the ISO week key for t, evaluated in UTC.
func WeekKeyFor(t time.Time) WeekKey {
	year, week := t.UTC().ISOWeek()
	return WeekKey(fmt.Sprintf("%d-W%02d", year, week))
}

// CatalogItem is a normalized row from the external movie catalog. Rows
// missing a title or a parsable release date never make it past the catalog
// client.
type CatalogItem struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	ReleaseYear      int     `json:"releaseYear"`
	PosterPath       string  `json:"posterPath,omitempty"`
	OriginalLanguage string  `json:"originalLanguage"`
	Popularity       float64 `json:"popularity"`
	VoteCount        int     `json:"voteCount"`
}

// TriviaQuestion is one release-year question. Options holds exactly four
// distinct year strings, one of which equals the source item's release year;
// CorrectIndex points at it.
type TriviaQuestion struct {
	ID           string   `json:"id"`
	SourceItemID int64    `json:"sourceItemId"`
	Title        string   `json:"title"`
	Year         int      `json:"year"`
	Poster       string   `json:"poster,omitempty"`
	QuestionText string   `json:"questionText"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}

// WeeklyTriviaPayload is the full quiz for one (week, language) pair. It is a
// pure function of its key plus the catalog snapshot at generation time,
// which is what makes it safe to cache at any layer.
type WeeklyTriviaPayload struct {
	WeekKey       WeekKey          `json:"weekKey"`
	Language      Language         `json:"language"`
	LanguageLabel string           `json:"languageLabel"`
	Questions     []TriviaQuestion `json:"questions"`
}

// Attempt is one player's submitted result for a weekly quiz.
type Attempt struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Username    string    `json:"username,omitempty"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	WeekKey     WeekKey   `json:"weekKey"`
	Language    Language  `json:"language"`
	Score       int       `json:"score"`
	DurationMs  int64     `json:"durationMs"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Beats reports whether a ranks strictly above other under the leaderboard
// ordering: higher score first, then lower duration.
func (a Attempt) Beats(other Attempt) bool {
	if a.Score != other.Score {
		return a.Score > other.Score
	}
	return a.DurationMs < other.DurationMs
}

// LeaderboardEntry is a read-only projection of an attempt joined with
// minimal user identity. Rank is 1-based.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Username    string `json:"username,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	Score       int    `json:"score"`
	DurationMs  int64  `json:"durationMs"`
}

// Leaderboard is the ordered scoreboard for one (week, language) pair.
type Leaderboard struct {
	WeekKey   WeekKey            `json:"weekKey"`
	Language  Language           `json:"language"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// RelaxationTier is one (minVoteCount, pagesWanted) step of the candidate
// pool's fallback ladder, ordered strict to permissive.
type RelaxationTier struct {
	MinVoteCount int `yaml:"minVoteCount" json:"minVoteCount"`
	PagesWanted  int `yaml:"pagesWanted" json:"pagesWanted"`
}

// DefaultRelaxationTiers matches the tuning the engine shipped with. Strict
// tiers favor well-known titles; the loose tail guarantees sparse languages
// still fill a quiz.
func DefaultRelaxationTiers() []RelaxationTier {
	return []RelaxationTier{
		{MinVoteCount: 500, PagesWanted: 2},
		{MinVoteCount: 200, PagesWanted: 3},
		{MinVoteCount: 50, PagesWanted: 4},
		{MinVoteCount: 0, PagesWanted: 6},
	}
}

const (
	// QuestionCount is the fixed size of a weekly quiz.
	QuestionCount = 10
	// OptionCount is the number of year options per question.
	OptionCount = 4
	// MinReleaseYear is the lower bound of the valid release-year window.
	MinReleaseYear = 1950
)
