package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nakuljn/ember-dating/internal/domain/apperr"
	"github.com/nakuljn/ember-dating/internal/domain/model"
)

type MatchRepo struct {
	s *Store
}

func (r *MatchRepo) CreateOrGet(ctx context.Context, userID, targetID int64, now time.Time) (model.Match, bool, error) {
	if userID <= 0 || targetID <= 0 || userID == targetID {
		return model.Match{}, false, fmt.Errorf("invalid match payload")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var (
		match   model.Match
		created bool
	)
	err := r.s.run(ctx, "create match", func(tx *txState) error {
		a, b := model.CanonicalPair(userID, targetID)
		key := pairKey{a: a, b: b}
		if id, ok := r.s.matchByPair[key]; ok {
			match = r.s.matches[id]
			return nil
		}

		match = model.Match{
			ID:        uuid.NewString(),
			UserAID:   a,
			UserBID:   b,
			CreatedAt: now.UTC(),
		}
		r.s.matches[match.ID] = match
		r.s.matchByPair[key] = match.ID
		id := match.ID
		tx.onRollback(func() {
			delete(r.s.matches, id)
			delete(r.s.matchByPair, key)
		})
		created = true
		return nil
	})
	return match, created, err
}

func (r *MatchRepo) GetByID(ctx context.Context, matchID string) (model.Match, error) {
	var match model.Match
	err := r.s.run(ctx, "get match", func(*txState) error {
		found, ok := r.s.matches[matchID]
		if !ok {
			return apperr.ErrNotFound
		}
		match = found
		return nil
	})
	return match, err
}

func (r *MatchRepo) ListForUser(ctx context.Context, userID int64, limit int) ([]model.Match, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if limit <= 0 {
		limit = 100
	}

	items := make([]model.Match, 0)
	err := r.s.run(ctx, "list matches", func(*txState) error {
		for _, m := range r.s.matches {
			if m.HasMember(userID) {
				items = append(items, m)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	activity := func(m model.Match) time.Time {
		if m.LastMessageAt != nil {
			return *m.LastMessageAt
		}
		return m.CreatedAt
	}
	sort.Slice(items, func(i, j int) bool {
		ai, aj := activity(items[i]), activity(items[j])
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		return items[i].ID > items[j].ID
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r *MatchRepo) AdvanceSeq(ctx context.Context, matchID string, now time.Time) (int64, time.Time, error) {
	if err := r.s.requireTx(ctx); err != nil {
		return 0, time.Time{}, err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var (
		seq    int64
		sentAt time.Time
	)
	err := r.s.run(ctx, "advance message seq", func(tx *txState) error {
		prev, ok := r.s.matches[matchID]
		if !ok {
			return apperr.ErrNotFound
		}

		next := prev
		next.LastMessageSeq++
		sentAt = now.UTC()
		if prev.LastMessageAt != nil && prev.LastMessageAt.After(sentAt) {
			sentAt = *prev.LastMessageAt
		}
		next.LastMessageAt = &sentAt
		r.s.matches[matchID] = next
		tx.onRollback(func() { r.s.matches[matchID] = prev })

		seq = next.LastMessageSeq
		return nil
	})
	return seq, sentAt, err
}
