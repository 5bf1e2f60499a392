package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nakuljn/ember-dating/internal/domain/enums"
	"github.com/nakuljn/ember-dating/internal/domain/model"
)

type SwipeRepo struct {
	pool *pgxpool.Pool
}

func NewSwipeRepo(pool *pgxpool.Pool) *SwipeRepo {
	return &SwipeRepo{pool: pool}
}

// Upsert records the latest decision of actor about target. A repeat of the
// stored decision leaves the row untouched and reports Changed=false; the
// conflicting row stays locked until the surrounding transaction ends.
func (r *SwipeRepo) Upsert(ctx context.Context, actorUserID, targetUserID int64, decision enums.Decision, now time.Time) (model.SwipeUpsert, error) {
	if actorUserID <= 0 || targetUserID <= 0 || !decision.Valid() {
		return model.SwipeUpsert{}, fmt.Errorf("invalid swipe payload")
	}
	tx, ok := txFromContext(ctx)
	if !ok {
		return model.SwipeUpsert{}, fmt.Errorf("transaction is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	result := model.SwipeUpsert{
		Swipe: model.Swipe{
			ActorUserID:  actorUserID,
			TargetUserID: targetUserID,
			Decision:     decision,
			UpdatedAt:    now.UTC(),
		},
	}

	var inserted bool
	err := tx.QueryRow(ctx, `
INSERT INTO swipes (
	actor_user_id,
	target_user_id,
	decision,
	updated_at
) VALUES ($1, $2, $3, $4)
ON CONFLICT (actor_user_id, target_user_id) DO UPDATE SET
	decision = EXCLUDED.decision,
	updated_at = EXCLUDED.updated_at
WHERE swipes.decision <> EXCLUDED.decision
RETURNING (xmax = 0) AS inserted
`, actorUserID, targetUserID, string(decision), now.UTC()).Scan(&inserted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			result.Previous = decision
			return result, nil
		}
		return model.SwipeUpsert{}, wrapErr("upsert swipe", err)
	}

	result.Changed = true
	if !inserted {
		result.Previous = decision.Opposite()
	}
	return result, nil
}

func (r *SwipeRepo) Get(ctx context.Context, actorUserID, targetUserID int64) (model.Swipe, bool, error) {
	if actorUserID <= 0 || targetUserID <= 0 {
		return model.Swipe{}, false, fmt.Errorf("invalid swipe lookup payload")
	}
	q, err := conn(ctx, r.pool)
	if err != nil {
		return model.Swipe{}, false, err
	}

	var (
		swipe    model.Swipe
		decision string
	)
	err = q.QueryRow(ctx, `
SELECT actor_user_id, target_user_id, decision, updated_at
FROM swipes
WHERE actor_user_id = $1 AND target_user_id = $2
`, actorUserID, targetUserID).Scan(&swipe.ActorUserID, &swipe.TargetUserID, &decision, &swipe.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Swipe{}, false, nil
		}
		return model.Swipe{}, false, wrapErr("get swipe", err)
	}

	swipe.Decision = enums.Decision(decision)
	return swipe, true, nil
}

func (r *SwipeRepo) HasLike(ctx context.Context, fromUserID, toUserID int64) (bool, error) {
	swipe, ok, err := r.Get(ctx, fromUserID, toUserID)
	if err != nil {
		return false, err
	}
	return ok && swipe.Decision == enums.DecisionLike, nil
}

// ListIncomingLikes returns likes addressed to userID that userID has not
// answered yet and that are not already part of a match.
func (r *SwipeRepo) ListIncomingLikes(ctx context.Context, userID int64, limit int) ([]model.Swipe, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if limit <= 0 {
		limit = 50
	}
	q, err := conn(ctx, r.pool)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
SELECT s.actor_user_id, s.target_user_id, s.decision, s.updated_at
FROM swipes s
JOIN users u ON u.id = s.actor_user_id
WHERE
	s.target_user_id = $1
	AND s.decision = 'like'
	AND u.deactivated_at IS NULL
	AND NOT EXISTS (
		SELECT 1
		FROM swipes back
		WHERE back.actor_user_id = $1 AND back.target_user_id = s.actor_user_id
	)
ORDER BY s.updated_at DESC, s.actor_user_id DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, wrapErr("list incoming likes", err)
	}
	defer rows.Close()

	items := make([]model.Swipe, 0, limit)
	for rows.Next() {
		var (
			item     model.Swipe
			decision string
		)
		if err := rows.Scan(&item.ActorUserID, &item.TargetUserID, &decision, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan incoming like: %w", err)
		}
		item.Decision = enums.Decision(decision)
		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, wrapErr("iterate incoming likes", rows.Err())
	}

	return items, nil
}
