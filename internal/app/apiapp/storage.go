package apiapp

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/nakuljn/ember-dating/internal/config"
	"github.com/nakuljn/ember-dating/internal/domain/enums"
	"github.com/nakuljn/ember-dating/internal/domain/model"
	memrepo "github.com/nakuljn/ember-dating/internal/repo/memory"
	pgrepo "github.com/nakuljn/ember-dating/internal/repo/postgres"
	chatsvc "github.com/nakuljn/ember-dating/internal/services/chat"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(context.Context) error) error
}

type userRepo interface {
	Create(ctx context.Context, user model.User) (model.User, error)
	GetByID(ctx context.Context, userID int64) (model.User, error)
}

type swipeRepo interface {
	Upsert(ctx context.Context, actorUserID, targetUserID int64, decision enums.Decision, now time.Time) (model.SwipeUpsert, error)
	HasLike(ctx context.Context, fromUserID, toUserID int64) (bool, error)
	ListIncomingLikes(ctx context.Context, userID int64, limit int) ([]model.Swipe, error)
}

type quotaRepo interface {
	GetUsed(ctx context.Context, userID int64, dayKey string) (int, error)
	ConsumeWithLimit(ctx context.Context, userID int64, dayKey string, limit int, now time.Time) (int, bool, error)
	DeleteBefore(ctx context.Context, dayKey string) (int64, error)
}

type matchRepo interface {
	CreateOrGet(ctx context.Context, userID, targetID int64, now time.Time) (model.Match, bool, error)
	GetByID(ctx context.Context, matchID string) (model.Match, error)
	ListForUser(ctx context.Context, userID int64, limit int) ([]model.Match, error)
	AdvanceSeq(ctx context.Context, matchID string, now time.Time) (int64, time.Time, error)
}

type notificationRepo interface {
	Insert(ctx context.Context, n model.Notification) error
	ListUndelivered(ctx context.Context, userID int64, after model.NotificationCursor, limit int) ([]model.Notification, error)
	MarkDelivered(ctx context.Context, ids []string, at time.Time) error
	DeleteDeliveredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type candidateRepo interface {
	ListCandidates(ctx context.Context, query model.CandidateQuery) ([]model.Candidate, error)
}

// repositories is the storage surface the services need, backed by either
// driver.
type repositories struct {
	tx            txRunner
	users         userRepo
	swipes        swipeRepo
	quotas        quotaRepo
	matches       matchRepo
	messages      chatsvc.MessageStore
	notifications notificationRepo
	candidates    candidateRepo

	pool *pgxpool.Pool
}

func (r repositories) close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

func openRepositories(ctx context.Context, cfg config.Config, log *zap.Logger) (repositories, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		log.Warn("using in-memory storage, data is lost on restart")
		store := memrepo.NewStore()
		return repositories{
			tx:            store,
			users:         store.Users(),
			swipes:        store.Swipes(),
			quotas:        store.Quotas(),
			matches:       store.Matches(),
			messages:      store.Messages(),
			notifications: store.Notifications(),
			candidates:    store.Candidates(),
		}, nil

	case config.StorageDriverPostgres:
		pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			return repositories{}, err
		}
		if err := pgrepo.WaitReady(ctx, pool, cfg.Postgres.ReadyTimeout); err != nil {
			pool.Close()
			return repositories{}, err
		}
		if cfg.Postgres.AutoMigrate {
			if err := pgrepo.Migrate(ctx, pool); err != nil {
				pool.Close()
				return repositories{}, err
			}
			log.Info("postgres schema applied")
		}
		return repositories{
			tx:            pgrepo.NewTxManager(pool),
			users:         pgrepo.NewUserRepo(pool),
			swipes:        pgrepo.NewSwipeRepo(pool),
			quotas:        pgrepo.NewQuotaRepo(pool),
			matches:       pgrepo.NewMatchRepo(pool),
			messages:      pgrepo.NewMessageRepo(pool),
			notifications: pgrepo.NewNotificationRepo(pool),
			candidates:    pgrepo.NewCandidateRepo(pool),
			pool:          pool,
		}, nil

	default:
		return repositories{}, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
