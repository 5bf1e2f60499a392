package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nakuljn/ember-dating/internal/domain/apperr"
	"github.com/nakuljn/ember-dating/internal/domain/model"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Create(ctx context.Context, user model.User) (model.User, error) {
	user.DisplayName = strings.TrimSpace(user.DisplayName)
	if user.DailySwipeLimit != nil && *user.DailySwipeLimit < 0 {
		return model.User{}, fmt.Errorf("invalid user payload")
	}
	q, err := conn(ctx, r.pool)
	if err != nil {
		return model.User{}, err
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	err = q.QueryRow(ctx, `
INSERT INTO users (
	display_name,
	daily_swipe_limit,
	telegram_chat_id,
	deactivated_at,
	created_at
) VALUES ($1, $2, $3, $4, $5)
RETURNING id
`, user.DisplayName, user.DailySwipeLimit, user.TelegramChatID, user.DeactivatedAt, user.CreatedAt.UTC()).Scan(&user.ID)
	if err != nil {
		return model.User{}, wrapErr("create user", err)
	}

	return user, nil
}

func (r *UserRepo) GetByID(ctx context.Context, userID int64) (model.User, error) {
	if userID <= 0 {
		return model.User{}, fmt.Errorf("invalid user id")
	}
	q, err := conn(ctx, r.pool)
	if err != nil {
		return model.User{}, err
	}

	var user model.User
	err = q.QueryRow(ctx, `
SELECT id, display_name, daily_swipe_limit, telegram_chat_id, deactivated_at, created_at
FROM users
WHERE id = $1
`, userID).Scan(
		&user.ID,
		&user.DisplayName,
		&user.DailySwipeLimit,
		&user.TelegramChatID,
		&user.DeactivatedAt,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, apperr.ErrNotFound
		}
		return model.User{}, wrapErr("get user", err)
	}

	return user, nil
}

func (r *UserRepo) SetDailySwipeLimit(ctx context.Context, userID int64, limit *int) error {
	if userID <= 0 || (limit != nil && *limit < 0) {
		return fmt.Errorf("invalid daily swipe limit payload")
	}
	q, err := conn(ctx, r.pool)
	if err != nil {
		return err
	}

	result, err := q.Exec(ctx, `
UPDATE users
SET daily_swipe_limit = $2
WHERE id = $1
`, userID, limit)
	if err != nil {
		return wrapErr("set daily swipe limit", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *UserRepo) Deactivate(ctx context.Context, userID int64, at time.Time) error {
	if userID <= 0 {
		return fmt.Errorf("invalid user id")
	}
	q, err := conn(ctx, r.pool)
	if err != nil {
		return err
	}

	result, err := q.Exec(ctx, `
UPDATE users
SET deactivated_at = COALESCE(deactivated_at, $2)
WHERE id = $1
`, userID, at.UTC())
	if err != nil {
		return wrapErr("deactivate user", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
