package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nakuljn/ember-dating/internal/domain/model"
)

type NotificationRepo struct {
	s *Store
}

func (r *NotificationRepo) Insert(ctx context.Context, n model.Notification) error {
	if n.ID == "" || n.UserID <= 0 || n.MatchID == "" || n.Kind == "" {
		return fmt.Errorf("invalid notification payload")
	}

	return r.s.run(ctx, "insert notification", func(tx *txState) error {
		n.CreatedAt = n.CreatedAt.UTC()
		r.s.notifications[n.ID] = n
		id := n.ID
		tx.onRollback(func() { delete(r.s.notifications, id) })
		return nil
	})
}

func (r *NotificationRepo) ListUndelivered(ctx context.Context, userID int64, after model.NotificationCursor, limit int) ([]model.Notification, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if limit <= 0 {
		limit = 100
	}

	items := make([]model.Notification, 0)
	err := r.s.run(ctx, "list pending notifications", func(*txState) error {
		for _, n := range r.s.notifications {
			if n.UserID == userID && n.DeliveredAt == nil && after.Precedes(n) {
				items = append(items, n)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r *NotificationRepo) MarkDelivered(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	return r.s.run(ctx, "mark notifications delivered", func(tx *txState) error {
		ts := at.UTC()
		for _, id := range ids {
			prev, ok := r.s.notifications[id]
			if !ok || prev.DeliveredAt != nil {
				continue
			}
			next := prev
			next.DeliveredAt = &ts
			r.s.notifications[id] = next
			tx.onRollback(func() { r.s.notifications[prev.ID] = prev })
		}
		return nil
	})
}

func (r *NotificationRepo) DeleteDeliveredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := r.s.run(ctx, "delete delivered notifications", func(tx *txState) error {
		for id, n := range r.s.notifications {
			if n.DeliveredAt == nil || !n.DeliveredAt.Before(cutoff) {
				continue
			}
			delete(r.s.notifications, id)
			deleted++
			saved := n
			tx.onRollback(func() { r.s.notifications[saved.ID] = saved })
		}
		return nil
	})
	return deleted, err
}
