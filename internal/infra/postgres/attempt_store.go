package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"weekly-trivia-service/internal/domain"
)

// AttemptStore persists weekly attempts in Postgres.
type AttemptStore struct {
	pool *pgxpool.Pool
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

// undefinedTable is the Postgres code raised when the schema has not been
// migrated yet.
const undefinedTable = "42P01"

// SaveBest upserts the (user, week, language) row under the keep-best
// policy. The conflict guard only lets a new attempt through when it beats
// the stored one on score, then duration.
func (s *AttemptStore) SaveBest(ctx context.Context, attempt domain.Attempt) (domain.Attempt, bool, error) {
	const upsert = `
		INSERT INTO trivia_attempts
			(user_id, week_key, language, display_name, username, avatar_url, score, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, week_key, language) DO UPDATE SET
			score        = EXCLUDED.score,
			duration_ms  = EXCLUDED.duration_ms,
			display_name = EXCLUDED.display_name,
			username     = EXCLUDED.username,
			avatar_url   = EXCLUDED.avatar_url,
			created_at   = EXCLUDED.created_at
		WHERE EXCLUDED.score > trivia_attempts.score
		   OR (EXCLUDED.score = trivia_attempts.score AND EXCLUDED.duration_ms < trivia_attempts.duration_ms)
		RETURNING score, duration_ms, created_at`

	stored := attempt
	err := s.pool.QueryRow(ctx, upsert,
		attempt.UserID, string(attempt.WeekKey), string(attempt.Language),
		attempt.DisplayName, attempt.Username, attempt.AvatarURL,
		attempt.Score, attempt.DurationMs, attempt.CreatedAt,
	).Scan(&stored.Score, &stored.DurationMs, &stored.CreatedAt)
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Attempt{}, false, mapStoreErr("save attempt", err)
	}

	// The guard rejected the update: the stored attempt is still the best.
	existing, err := s.Best(ctx, attempt.UserID, attempt.WeekKey, attempt.Language)
	if err != nil {
		return domain.Attempt{}, false, err
	}
	return existing, false, nil
}

// Best reads a player's stored attempt for the week.
func (s *AttemptStore) Best(ctx context.Context, userID string, week domain.WeekKey, lang domain.Language) (domain.Attempt, error) {
	const query = `
		SELECT user_id, week_key, language, display_name, username, avatar_url, score, duration_ms, created_at
		FROM trivia_attempts
		WHERE user_id = $1 AND week_key = $2 AND language = $3`

	var a domain.Attempt
	var week2, lang2 string
	err := s.pool.QueryRow(ctx, query, userID, string(week), string(lang)).Scan(
		&a.UserID, &week2, &lang2, &a.DisplayName, &a.Username, &a.AvatarURL,
		&a.Score, &a.DurationMs, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, mapStoreErr("read attempt", err)
	}
	a.WeekKey = domain.WeekKey(week2)
	a.Language = domain.Language(lang2)
	return a, nil
}

// Leaderboard returns the ranked board. Ordering lives in the SQL so rank
// position is unambiguous: score descending, duration ascending, then the
// earlier submission on a total tie.
func (s *AttemptStore) Leaderboard(ctx context.Context, week domain.WeekKey, lang domain.Language, limit int) ([]domain.LeaderboardEntry, error) {
	const query = `
		SELECT user_id, display_name, username, avatar_url, score, duration_ms
		FROM trivia_attempts
		WHERE week_key = $1 AND language = $2
		ORDER BY score DESC, duration_ms ASC, created_at ASC
		LIMIT $3`

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, query, string(week), string(lang), limit)
	if err != nil {
		return nil, mapStoreErr("read leaderboard", err)
	}
	defer rows.Close()

	entries := make([]domain.LeaderboardEntry, 0)
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.Username, &e.AvatarURL, &e.Score, &e.DurationMs); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreErr("read leaderboard", err)
	}
	return entries, nil
}

func mapStoreErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return fmt.Errorf("%s: %w", op, domain.ErrStoreNotProvisioned)
	}
	return fmt.Errorf("%s: %w", op, err)
}
