package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nakuljn/ember-dating/internal/domain/enums"
	"github.com/nakuljn/ember-dating/internal/domain/model"
)

type NotificationRepo struct {
	pool *pgxpool.Pool
}

func NewNotificationRepo(pool *pgxpool.Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

func (r *NotificationRepo) Insert(ctx context.Context, n model.Notification) error {
	if n.ID == "" || n.UserID <= 0 || n.MatchID == "" || n.Kind == "" {
		return fmt.Errorf("invalid notification payload")
	}
	q, err := conn(ctx, r.pool)
	if err != nil {
		return err
	}

	if _, err := q.Exec(ctx, `
INSERT INTO notifications (
	id,
	user_id,
	kind,
	match_id,
	peer_id,
	created_at
) VALUES ($1, $2, $3, $4, $5, $6)
`, n.ID, n.UserID, string(n.Kind), n.MatchID, n.PeerID, n.CreatedAt.UTC()); err != nil {
		return wrapErr("insert notification", err)
	}
	return nil
}

// ListUndelivered returns up to limit pending notifications for userID that
// sort after the cursor, oldest first.
func (r *NotificationRepo) ListUndelivered(ctx context.Context, userID int64, after model.NotificationCursor, limit int) ([]model.Notification, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if limit <= 0 {
		limit = 100
	}
	var (
		afterCreatedAt *time.Time
		afterID        *string
	)
	if !after.IsZero() {
		ts := after.CreatedAt.UTC()
		afterCreatedAt, afterID = &ts, &after.ID
	}
	q, err := conn(ctx, r.pool)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
SELECT id::text, user_id, kind, match_id::text, peer_id, created_at, delivered_at
FROM notifications
WHERE user_id = $1
	AND delivered_at IS NULL
	AND ($2::timestamptz IS NULL OR (created_at, id) > ($2::timestamptz, $3::uuid))
ORDER BY created_at ASC, id ASC
LIMIT $4
`, userID, afterCreatedAt, afterID, limit)
	if err != nil {
		return nil, wrapErr("list pending notifications", err)
	}
	defer rows.Close()

	items := make([]model.Notification, 0)
	for rows.Next() {
		var (
			item model.Notification
			kind string
		)
		if err := rows.Scan(&item.ID, &item.UserID, &kind, &item.MatchID, &item.PeerID, &item.CreatedAt, &item.DeliveredAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		item.Kind = enums.NotificationKind(kind)
		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, wrapErr("iterate notifications", rows.Err())
	}
	return items, nil
}

func (r *NotificationRepo) MarkDelivered(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	q, err := conn(ctx, r.pool)
	if err != nil {
		return err
	}

	if _, err := q.Exec(ctx, `
UPDATE notifications
SET delivered_at = $2
WHERE id = ANY($1::uuid[]) AND delivered_at IS NULL
`, ids, at.UTC()); err != nil {
		return wrapErr("mark notifications delivered", err)
	}
	return nil
}

func (r *NotificationRepo) DeleteDeliveredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	q, err := conn(ctx, r.pool)
	if err != nil {
		return 0, err
	}

	result, err := q.Exec(ctx, `
DELETE FROM notifications
WHERE delivered_at IS NOT NULL AND delivered_at < $1
`, cutoff.UTC())
	if err != nil {
		return 0, wrapErr("delete delivered notifications", err)
	}
	return result.RowsAffected(), nil
}
