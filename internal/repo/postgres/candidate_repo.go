package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nakuljn/ember-dating/internal/domain/model"
)

type CandidateRepo struct {
	pool *pgxpool.Pool
}

func NewCandidateRepo(pool *pgxpool.Pool) *CandidateRepo {
	return &CandidateRepo{pool: pool}
}

// ListCandidates returns active users other than the viewer, optionally
// without those already swiped, newest first, keyset-paged by (created_at, id).
func (r *CandidateRepo) ListCandidates(ctx context.Context, query model.CandidateQuery) ([]model.Candidate, error) {
	if query.ViewerUserID <= 0 {
		return nil, fmt.Errorf("invalid viewer id")
	}
	if query.Limit <= 0 {
		query.Limit = 20
	}
	q, err := conn(ctx, r.pool)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
SELECT u.id, u.display_name, u.created_at
FROM users u
WHERE
	u.id <> $1
	AND u.deactivated_at IS NULL
	AND (
		NOT $6::boolean
		OR NOT EXISTS (
			SELECT 1
			FROM swipes s
			WHERE s.actor_user_id = $1 AND s.target_user_id = u.id
		)
	)
	AND (
		NOT $2::boolean
		OR (u.created_at, u.id) < ($3, $4)
	)
ORDER BY u.created_at DESC, u.id DESC
LIMIT $5
`, query.ViewerUserID, query.HasCursor, query.CursorCreatedAt.UTC(), query.CursorUserID, query.Limit, query.ExcludeSwiped)
	if err != nil {
		return nil, wrapErr("list candidates", err)
	}
	defer rows.Close()

	items := make([]model.Candidate, 0, query.Limit)
	for rows.Next() {
		var item model.Candidate
		if err := rows.Scan(&item.UserID, &item.DisplayName, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, wrapErr("iterate candidates", rows.Err())
	}
	return items, nil
}
