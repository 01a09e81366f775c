// Package http exposes the trivia engine over REST plus a websocket
// leaderboard stream. Authentication is an external collaborator: a fronting
// gateway verifies the caller and forwards identity in headers; this layer
// only refuses writes that arrive without one.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"weekly-trivia-service/internal/app"
	"weekly-trivia-service/internal/domain"
)

// API wires the trivia use cases into HTTP handlers.
type API struct {
	payloads app.PayloadRepository
	trivia   *app.TriviaService
	attempts *app.AttemptService
	ws       *LeaderboardStream
	logger   *zap.SugaredLogger
}

func NewAPI(payloads app.PayloadRepository, triviaService *app.TriviaService, attempts *app.AttemptService, logger *zap.SugaredLogger) *API {
	return &API{
		payloads: payloads,
		trivia:   triviaService,
		attempts: attempts,
		ws:       NewLeaderboardStream(attempts, logger),
		logger:   logger,
	}
}

// Router builds the chi router with the shared middleware stack.
func (a *API) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-User-ID", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1/trivia", func(r chi.Router) {
		r.Get("/weekly", a.handleWeekly)
		r.Post("/attempts", a.handleSubmitAttempt)
		r.Get("/leaderboard", a.handleLeaderboard)
		r.Get("/leaderboard/ws", a.ws.ServeWS)
	})

	return r
}

var weekKeyPattern = regexp.MustCompile(`^\d{4}-W\d{2}$`)

// resolveKey normalizes the (week, language) query pair. Unknown languages
// fall back to the default; a malformed week is the caller's mistake.
func (a *API) resolveKey(r *http.Request) (domain.WeekKey, domain.Language, error) {
	lang := domain.NormalizeLanguage(r.URL.Query().Get("lang"))
	week := domain.WeekKey(r.URL.Query().Get("week"))
	if week == "" {
		week = a.trivia.CurrentWeekKey()
	} else if !weekKeyPattern.MatchString(string(week)) {
		return "", "", errors.New("week must look like 2026-W07")
	}
	return week, lang, nil
}

func (a *API) handleWeekly(w http.ResponseWriter, r *http.Request) {
	week, lang, err := a.resolveKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	payload, err := a.payloads.GetPayload(r.Context(), week, lang)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}

	// The payload is immutable per key for the life of the week, so shared
	// caches may hold it far longer than browsers.
	w.Header().Set("Cache-Control", "public, max-age=300, s-maxage=14400, stale-while-revalidate=3600")
	writeJSON(w, http.StatusOK, payload)
}

type submitRequest struct {
	WeekKey     string `json:"weekKey"`
	Language    string `json:"language"`
	Score       int    `json:"score"`
	DurationMs  int64  `json:"durationMs"`
	DisplayName string `json:"displayName"`
	Username    string `json:"username"`
	AvatarURL   string `json:"avatarUrl"`
}

func (a *API) handleSubmitAttempt(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "attempt submission requires authentication")
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid submission body")
		return
	}

	result, err := a.attempts.Submit(r.Context(), domain.Attempt{
		UserID:      userID,
		DisplayName: req.DisplayName,
		Username:    req.Username,
		AvatarURL:   req.AvatarURL,
		WeekKey:     domain.WeekKey(req.WeekKey),
		Language:    domain.Language(req.Language),
		Score:       req.Score,
		DurationMs:  req.DurationMs,
	})
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	week, lang, err := a.resolveKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	board, err := a.attempts.Leaderboard(r.Context(), week, lang)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// writeDomainError maps the error taxonomy onto status codes. "Not ready"
// and "not provisioned" get distinct machine-readable codes so clients can
// show a retry affordance instead of a generic failure.
func (a *API) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAttempt):
		writeError(w, http.StatusBadRequest, "invalid_attempt", err.Error())
	case errors.Is(err, domain.ErrNotReady):
		writeError(w, http.StatusServiceUnavailable, "not_ready", "this week's quiz is not ready yet, try again shortly")
	case errors.Is(err, domain.ErrCatalogNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "catalog_not_configured", "movie catalog credentials are not configured")
	case errors.Is(err, domain.ErrStoreNotProvisioned):
		writeError(w, http.StatusServiceUnavailable, "not_provisioned", "the leaderboard store is not provisioned")
	default:
		a.logger.Errorw("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
