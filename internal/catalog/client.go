// Package catalog wraps the external movie catalog's paginated discover API.
// Responses are decoded into a strict intermediate struct and malformed rows
// are dropped right here, so nothing loosely typed leaks deeper into the
// pipeline.
package catalog

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"encoding/json"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"weekly-trivia-service/internal/domain"
)

// Client issues discover-by-language queries against the catalog API.
type Client interface {
	Discover(ctx context.Context, lang domain.Language, page, minVoteCount int) (DiscoverResult, error)
}

// DiscoverResult is one page of normalized catalog rows.
type DiscoverResult struct {
	Items      []domain.CatalogItem
	TotalPages int
}

// Options tunes the HTTP client. Zero values fall back to the defaults the
// engine shipped with.
type Options struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	MaxAttempts    int
	RatePerSecond  float64
	MinYear        int
	MaxYear        int
}

const defaultBaseURL = "https://api.themoviedb.org/3"

// HTTPClient implements Client over the real catalog API.
type HTTPClient struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	minYear     int
	maxYear     int
	logger      *zap.SugaredLogger
	jitter      *rand.Rand
}

// NewHTTPClient builds a catalog client. It fails fast when no API key is
// configured; that is a deployment problem, not something to retry.
func NewHTTPClient(opts Options, logger *zap.SugaredLogger) (*HTTPClient, error) {
	if opts.APIKey == "" {
		return nil, domain.ErrCatalogNotConfigured
	}
	baseURL := strings.TrimSuffix(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	rps := opts.RatePerSecond
	if rps <= 0 {
		rps = 20
	}
	minYear := opts.MinYear
	if minYear == 0 {
		minYear = domain.MinReleaseYear
	}
	maxYear := opts.MaxYear
	if maxYear == 0 {
		maxYear = time.Now().UTC().Year()
	}
	return &HTTPClient{
		baseURL:     baseURL,
		apiKey:      opts.APIKey,
		httpClient:  &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(rate.Limit(rps), 5),
		maxAttempts: attempts,
		minYear:     minYear,
		maxYear:     maxYear,
		logger:      logger,
		jitter:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// discoverResponse mirrors the catalog wire format. Only the fields the
// engine needs are decoded.
type discoverResponse struct {
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
	Results    []discoverRow `json:"results"`
}

type discoverRow struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	ReleaseDate      string  `json:"release_date"`
	PosterPath       string  `json:"poster_path"`
	OriginalLanguage string  `json:"original_language"`
	Popularity       float64 `json:"popularity"`
	VoteCount        int     `json:"vote_count"`
}

// Discover fetches one page of the discover listing for a language. Upstream
// failures are absorbed after the retry budget: the result is simply empty,
// and the pool's relaxation tiers compensate. Only context cancellation
// propagates as an error.
func (c *HTTPClient) Discover(ctx context.Context, lang domain.Language, page, minVoteCount int) (DiscoverResult, error) {
	if page < 1 {
		page = 1
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return DiscoverResult{}, err
		}

		resp, retryable, err := c.fetchPage(ctx, lang, page, minVoteCount)
		if err == nil {
			return c.normalize(resp), nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return DiscoverResult{}, ctx.Err()
		}
		if !retryable {
			break
		}
		if attempt < c.maxAttempts {
			c.sleepBackoff(ctx, attempt)
		}
	}

	c.logger.Warnw("catalog page yielded no items after retries",
		"language", lang, "page", page, "minVoteCount", minVoteCount, "error", lastErr)
	return DiscoverResult{}, nil
}

func (c *HTTPClient) fetchPage(ctx context.Context, lang domain.Language, page, minVoteCount int) (discoverResponse, bool, error) {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("with_original_language", string(lang))
	q.Set("sort_by", "popularity.desc")
	q.Set("vote_count.gte", strconv.Itoa(minVoteCount))
	q.Set("page", strconv.Itoa(page))
	q.Set("include_adult", "false")

	endpoint := c.baseURL + "/discover/movie?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return discoverResponse{}, false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return discoverResponse{}, true, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		_, _ = io.Copy(io.Discard, resp.Body)
		return discoverResponse{}, true, fmt.Errorf("catalog discover returned status %d", resp.StatusCode)
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return discoverResponse{}, false, fmt.Errorf("catalog discover returned status %d", resp.StatusCode)
	}

	var decoded discoverResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return discoverResponse{}, false, fmt.Errorf("decode catalog discover: %w", err)
	}
	return decoded, false, nil
}

// normalize converts wire rows into catalog items, dropping anything without
// a title or a parsable release year inside the valid window.
func (c *HTTPClient) normalize(resp discoverResponse) DiscoverResult {
	items := make([]domain.CatalogItem, 0, len(resp.Results))
	for _, row := range resp.Results {
		year, ok := releaseYear(row.ReleaseDate)
		if row.Title == "" || !ok {
			continue
		}
		if year < c.minYear || year > c.maxYear {
			continue
		}
		items = append(items, domain.CatalogItem{
			ID:               row.ID,
			Title:            row.Title,
			ReleaseYear:      year,
			PosterPath:       row.PosterPath,
			OriginalLanguage: row.OriginalLanguage,
			Popularity:       row.Popularity,
			VoteCount:        row.VoteCount,
		})
	}
	totalPages := resp.TotalPages
	if totalPages < 1 {
		totalPages = 1
	}
	return DiscoverResult{Items: items, TotalPages: totalPages}
}

func releaseYear(date string) (int, bool) {
	if len(date) < 4 {
		return 0, false
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil || year <= 0 {
		return 0, false
	}
	return year, true
}

func (c *HTTPClient) sleepBackoff(ctx context.Context, attempt int) {
	base := time.Duration(attempt) * 200 * time.Millisecond
	jittered := base + time.Duration(c.jitter.Int63n(int64(100*time.Millisecond)))
	timer := time.NewTimer(jittered)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
