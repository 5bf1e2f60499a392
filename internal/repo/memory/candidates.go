package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/nakuljn/ember-dating/internal/domain/model"
)

type CandidateRepo struct {
	s *Store
}

func (r *CandidateRepo) ListCandidates(ctx context.Context, query model.CandidateQuery) ([]model.Candidate, error) {
	if query.ViewerUserID <= 0 {
		return nil, fmt.Errorf("invalid viewer id")
	}
	if query.Limit <= 0 {
		query.Limit = 20
	}

	items := make([]model.Candidate, 0)
	err := r.s.run(ctx, "list candidates", func(*txState) error {
		for id, u := range r.s.users {
			if id == query.ViewerUserID || !u.Active() {
				continue
			}
			if _, swiped := r.s.swipes[swipeKey{actor: query.ViewerUserID, target: id}]; swiped && query.ExcludeSwiped {
				continue
			}
			if query.HasCursor && !before(u, query) {
				continue
			}
			items = append(items, model.Candidate{UserID: u.ID, DisplayName: u.DisplayName, CreatedAt: u.CreatedAt})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].UserID > items[j].UserID
	})
	if len(items) > query.Limit {
		items = items[:query.Limit]
	}
	return items, nil
}

// before reports (created_at, id) < cursor.
func before(u model.User, q model.CandidateQuery) bool {
	if u.CreatedAt.Equal(q.CursorCreatedAt) {
		return u.ID < q.CursorUserID
	}
	return u.CreatedAt.Before(q.CursorCreatedAt)
}
