package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nakuljn/ember-dating/internal/domain/apperr"
	"github.com/nakuljn/ember-dating/internal/domain/model"
)

type MatchRepo struct {
	pool *pgxpool.Pool
}

func NewMatchRepo(pool *pgxpool.Pool) *MatchRepo {
	return &MatchRepo{pool: pool}
}

const matchColumns = `id::text, user_a_id, user_b_id, created_at, last_message_seq, last_message_at`

func scanMatch(row pgx.Row) (model.Match, error) {
	var m model.Match
	err := row.Scan(&m.ID, &m.UserAID, &m.UserBID, &m.CreatedAt, &m.LastMessageSeq, &m.LastMessageAt)
	return m, err
}

// CreateOrGet inserts the match for the canonical pair or returns the one
// that already exists. created is true only for the inserting caller.
func (r *MatchRepo) CreateOrGet(ctx context.Context, userID, targetID int64, now time.Time) (model.Match, bool, error) {
	if userID <= 0 || targetID <= 0 || userID == targetID {
		return model.Match{}, false, fmt.Errorf("invalid match payload")
	}
	q, err := conn(ctx, r.pool)
	if err != nil {
		return model.Match{}, false, err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	userA, userB := model.CanonicalPair(userID, targetID)
	match, err := scanMatch(q.QueryRow(ctx, `
INSERT INTO matches (
	id,
	user_a_id,
	user_b_id,
	created_at
) VALUES ($1, $2, $3, $4)
ON CONFLICT (user_a_id, user_b_id) DO NOTHING
RETURNING `+matchColumns, uuid.NewString(), userA, userB, now.UTC()))
	if err == nil {
		return match, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Match{}, false, wrapErr("create match", err)
	}

	match, err = scanMatch(q.QueryRow(ctx, `
SELECT `+matchColumns+`
FROM matches
WHERE user_a_id = $1 AND user_b_id = $2
`, userA, userB))
	if err != nil {
		return model.Match{}, false, wrapErr("get existing match", err)
	}
	return match, false, nil
}

func (r *MatchRepo) GetByID(ctx context.Context, matchID string) (model.Match, error) {
	if _, err := uuid.Parse(strings.TrimSpace(matchID)); err != nil {
		return model.Match{}, apperr.ErrNotFound
	}
	q, err := conn(ctx, r.pool)
	if err != nil {
		return model.Match{}, err
	}

	match, err := scanMatch(q.QueryRow(ctx, `
SELECT `+matchColumns+`
FROM matches
WHERE id = $1
`, matchID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Match{}, apperr.ErrNotFound
		}
		return model.Match{}, wrapErr("get match", err)
	}
	return match, nil
}

func (r *MatchRepo) ListForUser(ctx context.Context, userID int64, limit int) ([]model.Match, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if limit <= 0 {
		limit = 100
	}
	q, err := conn(ctx, r.pool)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
SELECT `+matchColumns+`
FROM matches
WHERE user_a_id = $1 OR user_b_id = $1
ORDER BY COALESCE(last_message_at, created_at) DESC, id DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, wrapErr("list matches", err)
	}
	defer rows.Close()

	items := make([]model.Match, 0, limit)
	for rows.Next() {
		item, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, wrapErr("iterate matches", rows.Err())
	}

	return items, nil
}

// AdvanceSeq locks the match row and hands out the next message sequence.
// The returned time never goes backwards within a match.
func (r *MatchRepo) AdvanceSeq(ctx context.Context, matchID string, now time.Time) (int64, time.Time, error) {
	tx, ok := txFromContext(ctx)
	if !ok {
		return 0, time.Time{}, fmt.Errorf("transaction is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var (
		seq    int64
		sentAt time.Time
	)
	err := tx.QueryRow(ctx, `
UPDATE matches
SET
	last_message_seq = last_message_seq + 1,
	last_message_at = GREATEST(COALESCE(last_message_at, $2), $2)
WHERE id = $1
RETURNING last_message_seq, last_message_at
`, matchID, now.UTC()).Scan(&seq, &sentAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, time.Time{}, apperr.ErrNotFound
		}
		return 0, time.Time{}, wrapErr("advance message seq", err)
	}
	return seq, sentAt.UTC(), nil
}
