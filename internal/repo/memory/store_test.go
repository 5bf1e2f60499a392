package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nakuljn/ember-dating/internal/domain/apperr"
	"github.com/nakuljn/ember-dating/internal/domain/enums"
	"github.com/nakuljn/ember-dating/internal/domain/model"
	memrepo "github.com/nakuljn/ember-dating/internal/repo/memory"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func seedUsers(t *testing.T, store *memrepo.Store, n int) []int64 {
	t.Helper()
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		u, err := store.Users().Create(context.Background(), model.User{DisplayName: "u", CreatedAt: t0.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
		ids = append(ids, u.ID)
	}
	return ids
}

func TestWithTxRollsBackOnError(t *testing.T) {
	store := memrepo.NewStore()
	ids := seedUsers(t, store, 2)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(txCtx context.Context) error {
		_, err := store.Swipes().Upsert(txCtx, ids[0], ids[1], enums.DecisionLike, t0)
		require.NoError(t, err)
		_, allowed, err := store.Quotas().ConsumeWithLimit(txCtx, ids[0], "2026-03-01", 5, t0)
		require.NoError(t, err)
		require.True(t, allowed)
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, found, err := store.Swipes().Get(ctx, ids[0], ids[1])
	require.NoError(t, err)
	require.False(t, found)

	used, err := store.Quotas().GetUsed(ctx, ids[0], "2026-03-01")
	require.NoError(t, err)
	require.Zero(t, used)
}

func TestSwipeUpsertReportsChanges(t *testing.T) {
	store := memrepo.NewStore()
	ids := seedUsers(t, store, 2)
	ctx := context.Background()

	upsert := func(d enums.Decision) model.SwipeUpsert {
		var res model.SwipeUpsert
		require.NoError(t, store.WithTx(ctx, func(txCtx context.Context) error {
			var err error
			res, err = store.Swipes().Upsert(txCtx, ids[0], ids[1], d, t0)
			return err
		}))
		return res
	}

	first := upsert(enums.DecisionLike)
	require.True(t, first.Changed)
	require.Empty(t, first.Previous)

	repeat := upsert(enums.DecisionLike)
	require.False(t, repeat.Changed)

	flip := upsert(enums.DecisionPass)
	require.True(t, flip.Changed)
	require.Equal(t, enums.DecisionLike, flip.Previous)

	_, err := store.Swipes().Upsert(ctx, ids[0], ids[1], enums.DecisionLike, t0)
	require.Error(t, err, "upsert outside a transaction must fail")
}

func TestQuotaConsumeNeverExceedsLimitUnderContention(t *testing.T) {
	store := memrepo.NewStore()
	ids := seedUsers(t, store, 1)
	ctx := context.Background()

	const limit = 3
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, allowed, err := store.Quotas().ConsumeWithLimit(ctx, ids[0], "2026-03-01", limit, t0)
			if err != nil {
				t.Errorf("consume: %v", err)
				return
			}
			if allowed {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, limit, granted)
	used, err := store.Quotas().GetUsed(ctx, ids[0], "2026-03-01")
	require.NoError(t, err)
	require.Equal(t, limit, used)

	_, allowed, err := store.Quotas().ConsumeWithLimit(ctx, ids[0], "2026-03-02", limit, t0)
	require.NoError(t, err)
	require.True(t, allowed, "a new day key starts from zero")

	deleted, err := store.Quotas().DeleteBefore(ctx, "2026-03-02")
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)
}

func TestMatchCreateOrGetIsCanonical(t *testing.T) {
	store := memrepo.NewStore()
	ids := seedUsers(t, store, 2)
	ctx := context.Background()

	first, created, err := store.Matches().CreateOrGet(ctx, ids[1], ids[0], t0)
	require.NoError(t, err)
	require.True(t, created)
	require.Less(t, first.UserAID, first.UserBID)

	again, created, err := store.Matches().CreateOrGet(ctx, ids[0], ids[1], t0.Add(time.Minute))
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, again.ID)
}

func TestMessagesSeqReadAndDelivery(t *testing.T) {
	store := memrepo.NewStore()
	ids := seedUsers(t, store, 2)
	ctx := context.Background()

	match, _, err := store.Matches().CreateOrGet(ctx, ids[0], ids[1], t0)
	require.NoError(t, err)

	send := func(at time.Time, content string) model.Message {
		var msg model.Message
		require.NoError(t, store.WithTx(ctx, func(txCtx context.Context) error {
			seq, sentAt, err := store.Matches().AdvanceSeq(txCtx, match.ID, at)
			if err != nil {
				return err
			}
			msg = model.Message{ID: uuid.NewString(), MatchID: match.ID, SenderID: ids[0], RecipientID: ids[1], Seq: seq, Content: content, SentAt: sentAt}
			return store.Messages().Insert(txCtx, msg)
		}))
		return msg
	}

	m1 := send(t0.Add(2*time.Second), "hi")
	m2 := send(t0.Add(time.Second), "there")
	require.EqualValues(t, 1, m1.Seq)
	require.EqualValues(t, 2, m2.Seq)
	require.False(t, m2.SentAt.Before(m1.SentAt), "sent_at must not go backwards in seq order")

	pending, err := store.Messages().ListUndelivered(ctx, ids[1], model.MessageCursor{}, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, m1.ID, pending[0].ID)

	require.NoError(t, store.Messages().MarkDelivered(ctx, []string{m1.ID}, t0.Add(time.Minute)))
	pending, err = store.Messages().ListUndelivered(ctx, ids[1], model.MessageCursor{}, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, m2.ID, pending[0].ID)

	_, _, err = store.Messages().MarkRead(ctx, m1.ID, ids[0], t0.Add(time.Minute))
	require.ErrorIs(t, err, apperr.ErrNotAMember)

	read, changed, err := store.Messages().MarkRead(ctx, m1.ID, ids[1], t0.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, changed)
	again, changed, err := store.Messages().MarkRead(ctx, m1.ID, ids[1], t0.Add(time.Hour))
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, *read.ReadAt, *again.ReadAt)

	history, err := store.Messages().ListByMatch(ctx, match.ID, 0, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, m2.ID, history[0].ID)

	history, err = store.Messages().ListByMatch(ctx, match.ID, 2, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, m1.ID, history[0].ID)
}

func TestUndeliveredKeysetPagesWithoutGaps(t *testing.T) {
	store := memrepo.NewStore()
	ids := seedUsers(t, store, 3)
	ctx := context.Background()

	first, _, err := store.Matches().CreateOrGet(ctx, ids[0], ids[1], t0)
	require.NoError(t, err)
	second, _, err := store.Matches().CreateOrGet(ctx, ids[2], ids[1], t0)
	require.NoError(t, err)

	// both matches share one timestamp so paging has to break ties
	want := make(map[string]bool)
	for i := 0; i < 3; i++ {
		for _, m := range []model.Match{first, second} {
			require.NoError(t, store.WithTx(ctx, func(txCtx context.Context) error {
				seq, sentAt, err := store.Matches().AdvanceSeq(txCtx, m.ID, t0.Add(time.Second))
				if err != nil {
					return err
				}
				msg := model.Message{ID: uuid.NewString(), MatchID: m.ID, SenderID: m.Peer(ids[1]), RecipientID: ids[1], Seq: seq, Content: "x", SentAt: sentAt}
				want[msg.ID] = true
				return store.Messages().Insert(txCtx, msg)
			}))
		}
	}

	var (
		after model.MessageCursor
		got   []model.Message
	)
	for {
		page, err := store.Messages().ListUndelivered(ctx, ids[1], after, 2)
		require.NoError(t, err)
		got = append(got, page...)
		if len(page) < 2 {
			break
		}
		after = page[len(page)-1].Cursor()
	}

	require.Len(t, got, len(want))
	for i, msg := range got {
		require.True(t, want[msg.ID])
		if i > 0 {
			require.True(t, got[i-1].Cursor().Precedes(msg), "page order must be strictly increasing")
		}
	}
}

func TestMessageSoftDeleteAndDuplicateInsert(t *testing.T) {
	store := memrepo.NewStore()
	ids := seedUsers(t, store, 2)
	ctx := context.Background()

	match, _, err := store.Matches().CreateOrGet(ctx, ids[0], ids[1], t0)
	require.NoError(t, err)

	msg := model.Message{ID: uuid.NewString(), MatchID: match.ID, SenderID: ids[0], RecipientID: ids[1], Seq: 1, Content: "oops", SentAt: t0.Add(time.Second)}
	require.NoError(t, store.Messages().Insert(ctx, msg))
	require.ErrorIs(t, store.Messages().Insert(ctx, msg), apperr.ErrDuplicate)

	_, _, err = store.Messages().SoftDelete(ctx, msg.ID, ids[1], t0.Add(time.Minute))
	require.ErrorIs(t, err, apperr.ErrNotAMember)
	_, _, err = store.Messages().SoftDelete(ctx, "missing", ids[0], t0.Add(time.Minute))
	require.ErrorIs(t, err, apperr.ErrNotFound)

	deleted, changed, err := store.Messages().SoftDelete(ctx, msg.ID, ids[0], t0.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, changed)
	require.True(t, deleted.Deleted())

	again, changed, err := store.Messages().SoftDelete(ctx, msg.ID, ids[0], t0.Add(time.Hour))
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, *deleted.DeletedAt, *again.DeletedAt)

	history, err := store.Messages().ListByMatch(ctx, match.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.EqualValues(t, 1, history[0].Seq)
	require.Empty(t, history[0].Redacted().Content)
}

func TestCandidatesPagingAndExclusion(t *testing.T) {
	store := memrepo.NewStore()
	ids := seedUsers(t, store, 5)
	ctx := context.Background()
	viewer := ids[0]

	require.NoError(t, store.WithTx(ctx, func(txCtx context.Context) error {
		_, err := store.Swipes().Upsert(txCtx, viewer, ids[4], enums.DecisionPass, t0)
		return err
	}))
	require.NoError(t, store.Users().Deactivate(ctx, ids[3], t0))

	page, err := store.Candidates().ListCandidates(ctx, model.CandidateQuery{ViewerUserID: viewer, ExcludeSwiped: true, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, ids[2], page[0].UserID)

	next, err := store.Candidates().ListCandidates(ctx, model.CandidateQuery{
		ViewerUserID:    viewer,
		ExcludeSwiped:   true,
		HasCursor:       true,
		CursorCreatedAt: page[0].CreatedAt,
		CursorUserID:    page[0].UserID,
		Limit:           10,
	})
	require.NoError(t, err)
	require.Len(t, next, 1)
	require.Equal(t, ids[1], next[0].UserID)

	all, err := store.Candidates().ListCandidates(ctx, model.CandidateQuery{ViewerUserID: viewer, Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 3, "swiped users are kept when not excluded; deactivated never")
}

func TestFaultHookAbortsOperation(t *testing.T) {
	store := memrepo.NewStore()
	ids := seedUsers(t, store, 1)

	store.SetFault(func(op string) error {
		if op == "get user" {
			return apperr.Transient(errors.New("connection reset"))
		}
		return nil
	})

	_, err := store.Users().GetByID(context.Background(), ids[0])
	require.True(t, apperr.IsTransient(err))
}
