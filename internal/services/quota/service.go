package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nakuljn/ember-dating/internal/domain/apperr"
	"github.com/nakuljn/ember-dating/internal/domain/model"
	"github.com/nakuljn/ember-dating/internal/domain/rules"
	"github.com/nakuljn/ember-dating/internal/pkg/clock"
)

type UserStore interface {
	GetByID(ctx context.Context, userID int64) (model.User, error)
}

type CounterStore interface {
	GetUsed(ctx context.Context, userID int64, dayKey string) (int, error)
	ConsumeWithLimit(ctx context.Context, userID int64, dayKey string, limit int, now time.Time) (int, bool, error)
}

type Config struct {
	DefaultDailyLimit int
	Location          *time.Location
}

type Consumption struct {
	Allowed   bool
	Used      int
	Limit     int
	Remaining int
}

type Dependencies struct {
	Users    UserStore
	Counters CounterStore
	Clock    clock.Clock
}

// Service is the swipe quota ledger. Day boundaries are computed in one
// fixed reference zone, never the client's.
type Service struct {
	users    UserStore
	counters CounterStore
	cfg      Config
	clock    clock.Clock
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.DefaultDailyLimit <= 0 {
		cfg.DefaultDailyLimit = rules.DefaultDailySwipeLimit
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if deps.Clock == nil {
		deps.Clock = clock.System()
	}

	return &Service{
		users:    deps.Users,
		counters: deps.Counters,
		cfg:      cfg,
		clock:    deps.Clock,
	}
}

func (s *Service) Now() time.Time {
	return s.clock.Now().UTC()
}

func (s *Service) DayKey(at time.Time) string {
	return rules.DayKey(at, s.cfg.Location)
}

// TryConsume takes one unit of userID's allowance for dayKey. A denial
// leaves the counter untouched. When ctx carries a transaction the
// consumption joins it.
func (s *Service) TryConsume(ctx context.Context, userID int64, dayKey string) (Consumption, error) {
	if userID <= 0 || dayKey == "" {
		return Consumption{}, apperr.ErrValidation
	}

	limit, err := s.limitFor(ctx, userID)
	if err != nil {
		return Consumption{}, err
	}

	used, allowed, err := s.counters.ConsumeWithLimit(ctx, userID, dayKey, limit, s.Now())
	if err != nil {
		return Consumption{}, fmt.Errorf("consume quota: %w", err)
	}

	return Consumption{
		Allowed:   allowed,
		Used:      used,
		Limit:     limit,
		Remaining: rules.Remaining(limit, used),
	}, nil
}

func (s *Service) Remaining(ctx context.Context, userID int64, dayKey string) (int, error) {
	limit, err := s.limitFor(ctx, userID)
	if err != nil {
		return 0, err
	}
	used, err := s.counters.GetUsed(ctx, userID, dayKey)
	if err != nil {
		return 0, fmt.Errorf("get quota usage: %w", err)
	}
	return rules.Remaining(limit, used), nil
}

func (s *Service) Snapshot(ctx context.Context, userID int64) (model.Quota, error) {
	if userID <= 0 {
		return model.Quota{}, apperr.ErrValidation
	}

	now := s.Now()
	dayKey := s.DayKey(now)
	limit, err := s.limitFor(ctx, userID)
	if err != nil {
		return model.Quota{}, err
	}
	used, err := s.counters.GetUsed(ctx, userID, dayKey)
	if err != nil {
		return model.Quota{}, fmt.Errorf("get quota usage: %w", err)
	}

	return model.Quota{
		UserID:    userID,
		DayKey:    dayKey,
		Limit:     limit,
		Used:      used,
		Remaining: rules.Remaining(limit, used),
		ResetsAt:  rules.NextResetAt(now, s.cfg.Location),
	}, nil
}

func (s *Service) limitFor(ctx context.Context, userID int64) (int, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return s.cfg.DefaultDailyLimit, nil
		}
		return 0, fmt.Errorf("load user limit: %w", err)
	}
	return rules.ResolveDailyLimit(user.DailySwipeLimit, s.cfg.DefaultDailyLimit), nil
}
