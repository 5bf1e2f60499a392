package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type QuotaRepo struct {
	pool *pgxpool.Pool
}

func NewQuotaRepo(pool *pgxpool.Pool) *QuotaRepo {
	return &QuotaRepo{pool: pool}
}

func (r *QuotaRepo) GetUsed(ctx context.Context, userID int64, dayKey string) (int, error) {
	if userID <= 0 || strings.TrimSpace(dayKey) == "" {
		return 0, fmt.Errorf("invalid quota lookup payload")
	}
	q, err := conn(ctx, r.pool)
	if err != nil {
		return 0, err
	}

	var used int
	err = q.QueryRow(ctx, `
SELECT used
FROM quotas_daily
WHERE user_id = $1 AND day_key = $2::date
`, userID, dayKey).Scan(&used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, wrapErr("get daily quota usage", err)
	}

	return used, nil
}

// ConsumeWithLimit takes one unit when used < limit. The conditional upsert
// keeps concurrent callers from overshooting the limit.
func (r *QuotaRepo) ConsumeWithLimit(ctx context.Context, userID int64, dayKey string, limit int, now time.Time) (int, bool, error) {
	if userID <= 0 || strings.TrimSpace(dayKey) == "" {
		return 0, false, fmt.Errorf("invalid quota consume payload")
	}
	if limit <= 0 {
		return 0, false, nil
	}
	q, err := conn(ctx, r.pool)
	if err != nil {
		return 0, false, err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var used int
	err = q.QueryRow(ctx, `
INSERT INTO quotas_daily (
	user_id,
	day_key,
	used,
	updated_at
) VALUES ($1, $2::date, 1, $4)
ON CONFLICT (user_id, day_key) DO UPDATE SET
	used = quotas_daily.used + 1,
	updated_at = EXCLUDED.updated_at
WHERE quotas_daily.used < $3
RETURNING used
`, userID, dayKey, limit, now.UTC()).Scan(&used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return limit, false, nil
		}
		return 0, false, wrapErr("consume daily quota", err)
	}

	return used, true, nil
}

func (r *QuotaRepo) DeleteBefore(ctx context.Context, dayKey string) (int64, error) {
	if strings.TrimSpace(dayKey) == "" {
		return 0, fmt.Errorf("invalid quota cleanup payload")
	}
	q, err := conn(ctx, r.pool)
	if err != nil {
		return 0, err
	}

	result, err := q.Exec(ctx, `
DELETE FROM quotas_daily
WHERE day_key < $1::date
`, dayKey)
	if err != nil {
		return 0, wrapErr("delete old quota counters", err)
	}
	return result.RowsAffected(), nil
}
