package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"weekly-trivia-service/internal/app"
	"weekly-trivia-service/internal/catalog"
	"weekly-trivia-service/internal/domain"
	"weekly-trivia-service/internal/infra/memory"
	"weekly-trivia-service/internal/pool"
	"weekly-trivia-service/internal/trivia"
)

type fakeCatalog struct {
	mu    sync.Mutex
	pages map[string]catalog.DiscoverResult
}

func (f *fakeCatalog) Discover(_ context.Context, lang domain.Language, page, minVoteCount int) (catalog.DiscoverResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("%s/%d/%d", lang, minVoteCount, page)
	if res, ok := f.pages[key]; ok {
		res.TotalPages = 1
		return res, nil
	}
	return catalog.DiscoverResult{TotalPages: 1}, nil
}

func catalogItems(startID int64, n int) []domain.CatalogItem {
	out := make([]domain.CatalogItem, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.CatalogItem{
			ID:          startID + int64(i),
			Title:       fmt.Sprintf("Movie %d", startID+int64(i)),
			ReleaseYear: 1980 + i,
			VoteCount:   700,
		})
	}
	return out
}

func newTestServer(t *testing.T, pages map[string]catalog.DiscoverResult, store app.AttemptStore) *httptest.Server {
	t.Helper()
	logger := zap.NewNop().Sugar()
	triviaService := app.NewTriviaService(
		pool.NewBuilder(&fakeCatalog{pages: pages}, logger),
		trivia.NewBuilder(1950, 2026),
		[]domain.RelaxationTier{{MinVoteCount: 500, PagesWanted: 1}, {MinVoteCount: 0, PagesWanted: 1}},
		logger,
	)
	payloads := memory.NewPayloadCache(triviaService, time.Minute)
	attempts := app.NewAttemptService(store, logger)
	api := NewAPI(payloads, triviaService, attempts, logger)
	server := httptest.NewServer(api.Router(nil))
	t.Cleanup(server.Close)
	return server
}

func defaultPages() map[string]catalog.DiscoverResult {
	return map[string]catalog.DiscoverResult{
		"en/500/1": {Items: catalogItems(1, 14)},
		"te/500/1": {Items: catalogItems(100, 12)},
	}
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			t.Fatalf("decode %s: %v (%s)", url, err, body)
		}
	}
	return resp
}

func TestWeeklyEndpoint(t *testing.T) {
	server := newTestServer(t, defaultPages(), memory.NewAttemptStore())

	var payload domain.WeeklyTriviaPayload
	resp := getJSON(t, server.URL+"/api/v1/trivia/weekly?lang=en&week=2026-W07", &payload)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if cc := resp.Header.Get("Cache-Control"); !strings.Contains(cc, "s-maxage") || !strings.Contains(cc, "stale-while-revalidate") {
		t.Fatalf("expected shared-cache directives, got %q", cc)
	}
	if payload.WeekKey != "2026-W07" || payload.Language != domain.LanguageEnglish {
		t.Fatalf("unexpected payload key: %s/%s", payload.WeekKey, payload.Language)
	}
	if len(payload.Questions) != domain.QuestionCount {
		t.Fatalf("expected %d questions, got %d", domain.QuestionCount, len(payload.Questions))
	}
}

func TestWeeklyEndpointIsStableAcrossRequests(t *testing.T) {
	server := newTestServer(t, defaultPages(), memory.NewAttemptStore())

	fetch := func() string {
		resp, err := http.Get(server.URL + "/api/v1/trivia/weekly?lang=en&week=2026-W07")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return string(body)
	}
	if fetch() != fetch() {
		t.Fatal("the same (week, lang) must serve identical bodies")
	}
}

func TestWeeklyEndpointRejectsMalformedWeek(t *testing.T) {
	server := newTestServer(t, defaultPages(), memory.NewAttemptStore())
	resp := getJSON(t, server.URL+"/api/v1/trivia/weekly?week=not-a-week", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestWeeklyEndpointNormalizesLanguage(t *testing.T) {
	server := newTestServer(t, defaultPages(), memory.NewAttemptStore())
	var payload domain.WeeklyTriviaPayload
	resp := getJSON(t, server.URL+"/api/v1/trivia/weekly?lang=xx&week=2026-W07", &payload)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if payload.Language != domain.DefaultLanguage || payload.LanguageLabel != "English" {
		t.Fatalf("unknown language should normalize to the default, got %s", payload.Language)
	}
}

func TestWeeklyEndpointNotReady(t *testing.T) {
	pages := map[string]catalog.DiscoverResult{
		"ta/0/1": {Items: catalogItems(1, 3)},
	}
	server := newTestServer(t, pages, memory.NewAttemptStore())

	var errResp struct {
		Code string `json:"code"`
	}
	resp := getJSON(t, server.URL+"/api/v1/trivia/weekly?lang=ta&week=2026-W07", &errResp)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	if errResp.Code != "not_ready" {
		t.Fatalf("expected not_ready code, got %q", errResp.Code)
	}
}

func submitAttempt(t *testing.T, server *httptest.Server, userID string, body map[string]any) *http.Response {
	t.Helper()
	raw, _ := json.Marshal(body)
	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/v1/trivia/attempts", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return resp
}

func TestSubmitAttemptRequiresAuth(t *testing.T) {
	server := newTestServer(t, defaultPages(), memory.NewAttemptStore())
	resp := submitAttempt(t, server, "", map[string]any{"weekKey": "2026-W07", "language": "en", "score": 5, "durationMs": 1000})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestSubmitAttemptValidation(t *testing.T) {
	server := newTestServer(t, defaultPages(), memory.NewAttemptStore())
	for _, body := range []map[string]any{
		{"weekKey": "2026-W07", "language": "en", "score": 11, "durationMs": 1000},
		{"weekKey": "2026-W07", "language": "en", "score": -2, "durationMs": 1000},
		{"weekKey": "2026-W07", "language": "en", "score": 5, "durationMs": 0},
	} {
		resp := submitAttempt(t, server, "u1", body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400 for %v, got %d", body, resp.StatusCode)
		}
	}
}

func TestSubmitAndLeaderboardFlow(t *testing.T) {
	server := newTestServer(t, defaultPages(), memory.NewAttemptStore())

	resp := submitAttempt(t, server, "u1", map[string]any{
		"weekKey": "2026-W07", "language": "en", "score": 10, "durationMs": 30000, "displayName": "Alice",
	})
	var result app.SubmissionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if result.SubmissionID == "" || !result.Improved {
		t.Fatalf("unexpected submission result: %+v", result)
	}

	resp2 := submitAttempt(t, server, "u2", map[string]any{
		"weekKey": "2026-W07", "language": "en", "score": 10, "durationMs": 25000, "displayName": "Bob",
	})
	resp2.Body.Close()

	var board domain.Leaderboard
	lbResp := getJSON(t, server.URL+"/api/v1/trivia/leaderboard?lang=en&week=2026-W07", &board)
	if lbResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", lbResp.StatusCode)
	}
	if len(board.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(board.Entries))
	}
	if board.Entries[0].UserID != "u2" || board.Entries[0].Rank != 1 {
		t.Fatalf("faster perfect score should rank first, got %+v", board.Entries[0])
	}
}

func TestLeaderboardEmptyIsSuccess(t *testing.T) {
	server := newTestServer(t, defaultPages(), memory.NewAttemptStore())
	var board domain.Leaderboard
	resp := getJSON(t, server.URL+"/api/v1/trivia/leaderboard?lang=en&week=2026-W07", &board)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("an empty board is a successful read, got %d", resp.StatusCode)
	}
	if board.Entries == nil || len(board.Entries) != 0 {
		t.Fatalf("expected an explicit empty entry list, got %+v", board.Entries)
	}
}

func TestLeaderboardNotProvisioned(t *testing.T) {
	server := newTestServer(t, defaultPages(), notProvisionedStore{})
	var errResp struct {
		Code string `json:"code"`
	}
	resp := getJSON(t, server.URL+"/api/v1/trivia/leaderboard?lang=en&week=2026-W07", &errResp)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	if errResp.Code != "not_provisioned" {
		t.Fatalf("expected not_provisioned code, got %q", errResp.Code)
	}
}

type notProvisionedStore struct{}

func (notProvisionedStore) SaveBest(context.Context, domain.Attempt) (domain.Attempt, bool, error) {
	return domain.Attempt{}, false, domain.ErrStoreNotProvisioned
}

func (notProvisionedStore) Leaderboard(context.Context, domain.WeekKey, domain.Language, int) ([]domain.LeaderboardEntry, error) {
	return nil, domain.ErrStoreNotProvisioned
}
