package candidates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nakuljn/ember-dating/internal/domain/apperr"
	"github.com/nakuljn/ember-dating/internal/domain/enums"
	"github.com/nakuljn/ember-dating/internal/domain/model"
	memrepo "github.com/nakuljn/ember-dating/internal/repo/memory"
)

func seedUsers(t *testing.T, store *memrepo.Store, n int) []int64 {
	t.Helper()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		u, err := store.Users().Create(context.Background(), model.User{
			DisplayName: "user",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		ids = append(ids, u.ID)
	}
	return ids
}

func TestNextCandidatesPagesWithoutGaps(t *testing.T) {
	store := memrepo.NewStore()
	ids := seedUsers(t, store, 6)
	svc := NewService(store.Candidates())

	seen := map[int64]bool{}
	cursor := ""
	for pages := 0; pages < 5; pages++ {
		page, err := svc.NextCandidates(context.Background(), ids[0], false, cursor, 2)
		if err != nil {
			t.Fatalf("next candidates: %v", err)
		}
		for _, id := range page.UserIDs() {
			if id == ids[0] {
				t.Fatalf("viewer must not be listed")
			}
			if seen[id] {
				t.Fatalf("candidate %d listed twice", id)
			}
			seen[id] = true
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	if len(seen) != 5 {
		t.Fatalf("expected 5 candidates across pages, got %d", len(seen))
	}
}

func TestNextCandidatesExcludesSwipedAndDeactivated(t *testing.T) {
	store := memrepo.NewStore()
	ids := seedUsers(t, store, 4)
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	if err := store.WithTx(ctx, func(txCtx context.Context) error {
		_, err := store.Swipes().Upsert(txCtx, ids[0], ids[1], enums.DecisionPass, now)
		return err
	}); err != nil {
		t.Fatalf("upsert swipe: %v", err)
	}
	if err := store.Users().Deactivate(ctx, ids[2], now); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	svc := NewService(store.Candidates())
	page, err := svc.NextCandidates(ctx, ids[0], true, "", 10)
	if err != nil {
		t.Fatalf("next candidates: %v", err)
	}
	got := page.UserIDs()
	if len(got) != 1 || got[0] != ids[3] {
		t.Fatalf("expected only user %d, got %v", ids[3], got)
	}
	if page.NextCursor != "" {
		t.Fatalf("short page must not carry a cursor")
	}

	page, err = svc.NextCandidates(ctx, ids[0], false, "", 10)
	if err != nil {
		t.Fatalf("next candidates: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("swiped users must be listed when not excluded, got %v", page.UserIDs())
	}
}

func TestNextCandidatesRejectsBadCursor(t *testing.T) {
	svc := NewService(memrepo.NewStore().Candidates())

	for _, raw := range []string{"%%%", "bm90LWpzb24", "e30"} {
		_, err := svc.NextCandidates(context.Background(), 1, false, raw, 10)
		if !errors.Is(err, ErrInvalidCursor) || !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("cursor %q: expected invalid cursor, got %v", raw, err)
		}
	}
}

func TestCursorRoundTrip(t *testing.T) {
	raw, err := encodeCursor(pageCursor{CreatedAt: 1700000000000000, UserID: 7})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, ok, err := decodeCursor(raw)
	if err != nil || !ok {
		t.Fatalf("decode: ok=%v err=%v", ok, err)
	}
	if decoded.UserID != 7 || decoded.CreatedAt != 1700000000000000 {
		t.Fatalf("unexpected cursor %+v", decoded)
	}
}
