package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nakuljn/ember-dating/internal/domain/enums"
	"github.com/nakuljn/ember-dating/internal/domain/model"
)

type SwipeRepo struct {
	s *Store
}

func (r *SwipeRepo) Upsert(ctx context.Context, actorUserID, targetUserID int64, decision enums.Decision, now time.Time) (model.SwipeUpsert, error) {
	if actorUserID <= 0 || targetUserID <= 0 || !decision.Valid() {
		return model.SwipeUpsert{}, fmt.Errorf("invalid swipe payload")
	}
	if err := r.s.requireTx(ctx); err != nil {
		return model.SwipeUpsert{}, err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var result model.SwipeUpsert
	err := r.s.run(ctx, "upsert swipe", func(tx *txState) error {
		key := swipeKey{actor: actorUserID, target: targetUserID}
		prev, existed := r.s.swipes[key]
		if existed && prev.Decision == decision {
			result = model.SwipeUpsert{Swipe: prev, Previous: prev.Decision}
			return nil
		}

		next := model.Swipe{
			ActorUserID:  actorUserID,
			TargetUserID: targetUserID,
			Decision:     decision,
			UpdatedAt:    now.UTC(),
		}
		r.s.swipes[key] = next
		tx.onRollback(func() {
			if existed {
				r.s.swipes[key] = prev
				return
			}
			delete(r.s.swipes, key)
		})

		result = model.SwipeUpsert{Swipe: next, Changed: true}
		if existed {
			result.Previous = prev.Decision
		}
		return nil
	})
	return result, err
}

func (r *SwipeRepo) Get(ctx context.Context, actorUserID, targetUserID int64) (model.Swipe, bool, error) {
	if actorUserID <= 0 || targetUserID <= 0 {
		return model.Swipe{}, false, fmt.Errorf("invalid swipe lookup payload")
	}

	var (
		swipe model.Swipe
		found bool
	)
	err := r.s.run(ctx, "get swipe", func(*txState) error {
		swipe, found = r.s.swipes[swipeKey{actor: actorUserID, target: targetUserID}]
		return nil
	})
	return swipe, found, err
}

func (r *SwipeRepo) HasLike(ctx context.Context, fromUserID, toUserID int64) (bool, error) {
	swipe, ok, err := r.Get(ctx, fromUserID, toUserID)
	if err != nil {
		return false, err
	}
	return ok && swipe.Decision == enums.DecisionLike, nil
}

func (r *SwipeRepo) ListIncomingLikes(ctx context.Context, userID int64, limit int) ([]model.Swipe, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if limit <= 0 {
		limit = 50
	}

	items := make([]model.Swipe, 0)
	err := r.s.run(ctx, "list incoming likes", func(*txState) error {
		for key, swipe := range r.s.swipes {
			if key.target != userID || swipe.Decision != enums.DecisionLike {
				continue
			}
			if actor, ok := r.s.users[key.actor]; !ok || !actor.Active() {
				continue
			}
			if _, answered := r.s.swipes[swipeKey{actor: userID, target: key.actor}]; answered {
				continue
			}
			items = append(items, swipe)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(items, func(i, j int) bool {
		if !items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].UpdatedAt.After(items[j].UpdatedAt)
		}
		return items[i].ActorUserID > items[j].ActorUserID
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
