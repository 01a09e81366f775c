package http

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"weekly-trivia-service/internal/app"
	"weekly-trivia-service/internal/domain"
)

// LeaderboardStream pushes leaderboard snapshots to websocket clients as
// attempts land. The stream is read-only; clients submit over REST.
type LeaderboardStream struct {
	attempts *app.AttemptService
	upgrader websocket.Upgrader
	logger   *zap.SugaredLogger
}

func NewLeaderboardStream(attempts *app.AttemptService, logger *zap.SugaredLogger) *LeaderboardStream {
	return &LeaderboardStream{
		attempts: attempts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS upgrades the request and streams board updates until the client
// disconnects.
func (s *LeaderboardStream) ServeWS(w http.ResponseWriter, r *http.Request) {
	lang := domain.NormalizeLanguage(r.URL.Query().Get("lang"))
	week := domain.WeekKey(r.URL.Query().Get("week"))
	if week == "" || !weekKeyPattern.MatchString(string(week)) {
		http.Error(w, "missing or malformed week", http.StatusBadRequest)
		return
	}

	updates, cancel, err := s.attempts.Subscribe(r.Context(), week, lang)
	if err != nil {
		http.Error(w, "leaderboard unavailable", http.StatusServiceUnavailable)
		return
	}
	defer cancel()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// The read pump only exists to notice the peer going away; inbound
	// frames are ignored.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case board, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage[domain.Leaderboard]{Type: "leaderboard", Payload: board}); err != nil {
				s.logger.Debugw("ws write error", "error", err)
				return
			}
		case <-readerDone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
