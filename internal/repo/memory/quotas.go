package memory

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type QuotaRepo struct {
	s *Store
}

func (r *QuotaRepo) GetUsed(ctx context.Context, userID int64, dayKey string) (int, error) {
	if userID <= 0 || strings.TrimSpace(dayKey) == "" {
		return 0, fmt.Errorf("invalid quota lookup payload")
	}

	var used int
	err := r.s.run(ctx, "get daily quota usage", func(*txState) error {
		used = r.s.quotas[quotaKey{userID: userID, dayKey: dayKey}]
		return nil
	})
	return used, err
}

func (r *QuotaRepo) ConsumeWithLimit(ctx context.Context, userID int64, dayKey string, limit int, _ time.Time) (int, bool, error) {
	if userID <= 0 || strings.TrimSpace(dayKey) == "" {
		return 0, false, fmt.Errorf("invalid quota consume payload")
	}
	if limit <= 0 {
		return 0, false, nil
	}

	var (
		used    int
		allowed bool
	)
	err := r.s.run(ctx, "consume daily quota", func(tx *txState) error {
		key := quotaKey{userID: userID, dayKey: dayKey}
		prev, existed := r.s.quotas[key]
		if prev >= limit {
			used = limit
			return nil
		}
		r.s.quotas[key] = prev + 1
		tx.onRollback(func() {
			if existed {
				r.s.quotas[key] = prev
				return
			}
			delete(r.s.quotas, key)
		})
		used, allowed = prev+1, true
		return nil
	})
	return used, allowed, err
}

func (r *QuotaRepo) DeleteBefore(ctx context.Context, dayKey string) (int64, error) {
	if strings.TrimSpace(dayKey) == "" {
		return 0, fmt.Errorf("invalid quota cleanup payload")
	}

	var deleted int64
	err := r.s.run(ctx, "delete old quota counters", func(tx *txState) error {
		for key, used := range r.s.quotas {
			if key.dayKey >= dayKey {
				continue
			}
			delete(r.s.quotas, key)
			deleted++
			k, v := key, used
			tx.onRollback(func() { r.s.quotas[k] = v })
		}
		return nil
	})
	return deleted, err
}
