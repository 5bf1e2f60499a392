package swipes_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nakuljn/ember-dating/internal/domain/apperr"
	"github.com/nakuljn/ember-dating/internal/domain/enums"
	"github.com/nakuljn/ember-dating/internal/domain/model"
	"github.com/nakuljn/ember-dating/internal/pkg/clock"
	memrepo "github.com/nakuljn/ember-dating/internal/repo/memory"
	matchessvc "github.com/nakuljn/ember-dating/internal/services/matches"
	quotasvc "github.com/nakuljn/ember-dating/internal/services/quota"
	swipessvc "github.com/nakuljn/ember-dating/internal/services/swipes"
)

type fixture struct {
	svc   *swipessvc.Service
	store *memrepo.Store
	now   time.Time
}

func newFixture(t *testing.T, dailyLimit int) *fixture {
	t.Helper()
	f := &fixture{
		store: memrepo.NewStore(),
		now:   time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC),
	}
	clk := clock.Func(func() time.Time { return f.now })

	ledger := quotasvc.NewService(quotasvc.Dependencies{
		Users:    f.store.Users(),
		Counters: f.store.Quotas(),
		Clock:    clk,
	}, quotasvc.Config{DefaultDailyLimit: dailyLimit})
	detector := matchessvc.NewService(matchessvc.Dependencies{
		Tx:            f.store,
		Swipes:        f.store.Swipes(),
		Matches:       f.store.Matches(),
		Notifications: f.store.Notifications(),
		Clock:         clk,
	})
	f.svc = swipessvc.NewService(swipessvc.Dependencies{
		Tx:       f.store,
		Users:    f.store.Users(),
		Swipes:   f.store.Swipes(),
		Ledger:   ledger,
		Detector: detector,
		Clock:    clk,
	})
	return f
}

func (f *fixture) users(t *testing.T, n int) []int64 {
	t.Helper()
	out := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		u, err := f.store.Users().Create(context.Background(), model.User{DisplayName: "user"})
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		out = append(out, u.ID)
	}
	return out
}

func (f *fixture) swipe(t *testing.T, actor, target int64, d enums.Decision) swipessvc.Outcome {
	t.Helper()
	out, err := f.svc.RecordSwipe(context.Background(), actor, target, d)
	if err != nil {
		t.Fatalf("record swipe %d->%d: %v", actor, target, err)
	}
	return out
}

func TestQuotaOfThreeAcrossTwoDays(t *testing.T) {
	f := newFixture(t, 3)
	ids := f.users(t, 6)
	actor := ids[0]

	for i, target := range ids[1:4] {
		out := f.swipe(t, actor, target, enums.DecisionLike)
		if out.Result != enums.SwipeResultRecorded || out.Remaining != 2-i {
			t.Fatalf("like #%d: unexpected outcome %+v", i+1, out)
		}
	}

	out := f.swipe(t, actor, ids[4], enums.DecisionLike)
	if out.Result != enums.SwipeResultQuotaExceeded || out.Remaining != 0 {
		t.Fatalf("fourth like must exceed quota, got %+v", out)
	}
	if _, found, _ := f.store.Swipes().Get(context.Background(), actor, ids[4]); found {
		t.Fatalf("denied like must not be stored")
	}

	f.now = f.now.Add(24 * time.Hour)
	out = f.swipe(t, actor, ids[4], enums.DecisionLike)
	if out.Result != enums.SwipeResultRecorded || out.Remaining != 2 {
		t.Fatalf("first like of day two must pass, got %+v", out)
	}
}

func TestPassNeverConsumesQuota(t *testing.T) {
	f := newFixture(t, 1)
	ids := f.users(t, 4)

	for _, target := range ids[1:3] {
		out := f.swipe(t, ids[0], target, enums.DecisionPass)
		if out.Result != enums.SwipeResultRecorded || out.Remaining != 1 {
			t.Fatalf("pass must be recorded without consuming, got %+v", out)
		}
	}
	if out := f.swipe(t, ids[0], ids[3], enums.DecisionLike); out.Result != enums.SwipeResultRecorded {
		t.Fatalf("like after passes must still fit the quota, got %+v", out)
	}
}

func TestRepeatedLikeIsNoop(t *testing.T) {
	f := newFixture(t, 5)
	ids := f.users(t, 2)

	first := f.swipe(t, ids[0], ids[1], enums.DecisionLike)
	second := f.swipe(t, ids[0], ids[1], enums.DecisionLike)
	if first.Remaining != 4 || second.Remaining != 4 || !second.Noop || second.Result != enums.SwipeResultRecorded {
		t.Fatalf("repeat like must not consume quota: first=%+v second=%+v", first, second)
	}
}

func TestFlipFromPassToLikeConsumes(t *testing.T) {
	f := newFixture(t, 5)
	ids := f.users(t, 2)

	f.swipe(t, ids[0], ids[1], enums.DecisionPass)
	out := f.swipe(t, ids[0], ids[1], enums.DecisionLike)
	if out.Noop || out.Remaining != 4 {
		t.Fatalf("changing pass to like must consume, got %+v", out)
	}
}

func TestInvalidTargets(t *testing.T) {
	f := newFixture(t, 5)
	ids := f.users(t, 3)
	if err := f.store.Users().Deactivate(context.Background(), ids[2], f.now); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	targets := map[string]int64{"self": ids[0], "unknown": 999, "deactivated": ids[2], "zero": 0, "negative": -3}
	for name, target := range targets {
		t.Run(name, func(t *testing.T) {
			out := f.swipe(t, ids[0], target, enums.DecisionLike)
			if out.Result != enums.SwipeResultInvalidTarget {
				t.Fatalf("expected InvalidTarget, got %+v", out)
			}
			if out.Remaining != 5 {
				t.Fatalf("invalid target must report the real remaining count, got %d", out.Remaining)
			}
		})
	}

	used, _ := f.store.Quotas().GetUsed(context.Background(), ids[0], "2026-02-10")
	if used != 0 {
		t.Fatalf("invalid targets must not consume quota, used=%d", used)
	}
}

func TestReciprocalLikeMatches(t *testing.T) {
	f := newFixture(t, 5)
	ids := f.users(t, 2)

	if out := f.swipe(t, ids[0], ids[1], enums.DecisionLike); out.Matched {
		t.Fatalf("one-sided like must not match")
	}
	out := f.swipe(t, ids[1], ids[0], enums.DecisionLike)
	if !out.Matched || out.MatchID == "" {
		t.Fatalf("reciprocal like must match, got %+v", out)
	}
}

func TestConcurrentDuplicateLikesConsumeOnce(t *testing.T) {
	f := newFixture(t, 5)
	ids := f.users(t, 2)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.RecordSwipe(context.Background(), ids[0], ids[1], enums.DecisionLike); err != nil {
				t.Errorf("record swipe: %v", err)
			}
		}()
	}
	wg.Wait()

	used, err := f.store.Quotas().GetUsed(context.Background(), ids[0], "2026-02-10")
	if err != nil {
		t.Fatalf("get used: %v", err)
	}
	if used != 1 {
		t.Fatalf("duplicate likes must consume once, used=%d", used)
	}
}

func TestTransientStoreFailureRollsBack(t *testing.T) {
	f := newFixture(t, 5)
	ids := f.users(t, 2)

	f.store.SetFault(func(op string) error {
		if op == "consume daily quota" {
			return apperr.Transient(errors.New("serialization failure"))
		}
		return nil
	})

	_, err := f.svc.RecordSwipe(context.Background(), ids[0], ids[1], enums.DecisionLike)
	if !apperr.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	f.store.SetFault(nil)

	if _, found, _ := f.store.Swipes().Get(context.Background(), ids[0], ids[1]); found {
		t.Fatalf("failed swipe must be rolled back")
	}
}

func TestUnknownActorIsUnauthenticated(t *testing.T) {
	f := newFixture(t, 5)
	ids := f.users(t, 1)

	_, err := f.svc.RecordSwipe(context.Background(), 404, ids[0], enums.DecisionLike)
	if !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}
