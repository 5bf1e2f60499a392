package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nakuljn/ember-dating/internal/domain/apperr"
	"github.com/nakuljn/ember-dating/internal/domain/model"
)

type UserRepo struct {
	s *Store
}

func (r *UserRepo) Create(ctx context.Context, user model.User) (model.User, error) {
	user.DisplayName = strings.TrimSpace(user.DisplayName)
	if user.DailySwipeLimit != nil && *user.DailySwipeLimit < 0 {
		return model.User{}, fmt.Errorf("invalid user payload")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	// timestamptz precision
	user.CreatedAt = user.CreatedAt.Truncate(time.Microsecond)

	err := r.s.run(ctx, "create user", func(tx *txState) error {
		r.s.nextUserID++
		user.ID = r.s.nextUserID
		r.s.users[user.ID] = user
		id := user.ID
		tx.onRollback(func() { delete(r.s.users, id) })
		return nil
	})
	if err != nil {
		return model.User{}, err
	}
	return user, nil
}

func (r *UserRepo) GetByID(ctx context.Context, userID int64) (model.User, error) {
	if userID <= 0 {
		return model.User{}, fmt.Errorf("invalid user id")
	}

	var user model.User
	err := r.s.run(ctx, "get user", func(*txState) error {
		found, ok := r.s.users[userID]
		if !ok {
			return apperr.ErrNotFound
		}
		user = found
		return nil
	})
	return user, err
}

func (r *UserRepo) SetDailySwipeLimit(ctx context.Context, userID int64, limit *int) error {
	if userID <= 0 || (limit != nil && *limit < 0) {
		return fmt.Errorf("invalid daily swipe limit payload")
	}
	return r.update(ctx, "set daily swipe limit", userID, func(u *model.User) {
		if limit == nil {
			u.DailySwipeLimit = nil
			return
		}
		v := *limit
		u.DailySwipeLimit = &v
	})
}

func (r *UserRepo) Deactivate(ctx context.Context, userID int64, at time.Time) error {
	if userID <= 0 {
		return fmt.Errorf("invalid user id")
	}
	return r.update(ctx, "deactivate user", userID, func(u *model.User) {
		if u.DeactivatedAt == nil {
			ts := at.UTC()
			u.DeactivatedAt = &ts
		}
	})
}

func (r *UserRepo) update(ctx context.Context, op string, userID int64, mutate func(*model.User)) error {
	return r.s.run(ctx, op, func(tx *txState) error {
		prev, ok := r.s.users[userID]
		if !ok {
			return apperr.ErrNotFound
		}
		next := prev
		mutate(&next)
		r.s.users[userID] = next
		tx.onRollback(func() { r.s.users[userID] = prev })
		return nil
	})
}
