package swipes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nakuljn/ember-dating/internal/domain/apperr"
	"github.com/nakuljn/ember-dating/internal/domain/enums"
	"github.com/nakuljn/ember-dating/internal/domain/model"
	"github.com/nakuljn/ember-dating/internal/pkg/clock"
	matchessvc "github.com/nakuljn/ember-dating/internal/services/matches"
	quotasvc "github.com/nakuljn/ember-dating/internal/services/quota"
)

type TxRunner interface {
	WithTx(ctx context.Context, fn func(context.Context) error) error
}

type UserStore interface {
	GetByID(ctx context.Context, userID int64) (model.User, error)
}

type SwipeStore interface {
	Upsert(ctx context.Context, actorUserID, targetUserID int64, decision enums.Decision, now time.Time) (model.SwipeUpsert, error)
}

type Ledger interface {
	DayKey(at time.Time) string
	TryConsume(ctx context.Context, userID int64, dayKey string) (quotasvc.Consumption, error)
	Remaining(ctx context.Context, userID int64, dayKey string) (int, error)
}

type MatchDetector interface {
	CheckAndCreateMatch(ctx context.Context, actorID, targetID int64) (matchessvc.Result, error)
}

type Metrics interface {
	SwipeRecorded(outcome string)
}

type Dependencies struct {
	Tx       TxRunner
	Users    UserStore
	Swipes   SwipeStore
	Ledger   Ledger
	Detector MatchDetector
	Metrics  Metrics
	Clock    clock.Clock
}

type Outcome struct {
	Result    enums.SwipeResult
	Matched   bool
	MatchID   string
	Remaining int
	// Noop is set when the same decision was already stored.
	Noop bool
}

type Service struct {
	tx       TxRunner
	users    UserStore
	swipes   SwipeStore
	ledger   Ledger
	detector MatchDetector
	metrics  Metrics
	clock    clock.Clock
}

var errQuotaDenied = errors.New("quota denied")

func NewService(deps Dependencies) *Service {
	if deps.Clock == nil {
		deps.Clock = clock.System()
	}
	return &Service{
		tx:       deps.Tx,
		users:    deps.Users,
		swipes:   deps.Swipes,
		ledger:   deps.Ledger,
		detector: deps.Detector,
		metrics:  deps.Metrics,
		clock:    deps.Clock,
	}
}

// RecordSwipe stores actor's decision about target. Only a changed like
// consumes quota; the swipe upsert and the quota unit commit together or not
// at all. Match detection runs after commit for every like, so a retried
// like repairs a detection that failed earlier.
func (s *Service) RecordSwipe(ctx context.Context, actorID, targetID int64, decision enums.Decision) (Outcome, error) {
	if actorID <= 0 || !decision.Valid() {
		return Outcome{}, apperr.ErrValidation
	}

	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Outcome{}, fmt.Errorf("%w: unknown actor", apperr.ErrUnauthenticated)
		}
		return Outcome{}, fmt.Errorf("load actor: %w", err)
	}
	if !actor.Active() {
		return Outcome{}, fmt.Errorf("%w: actor deactivated", apperr.ErrUnauthenticated)
	}

	now := s.clock.Now().UTC()
	dayKey := s.ledger.DayKey(now)

	valid, err := s.validTarget(ctx, actorID, targetID)
	if err != nil {
		return Outcome{}, err
	}
	if !valid {
		left, err := s.ledger.Remaining(ctx, actorID, dayKey)
		if err != nil {
			return Outcome{}, fmt.Errorf("read remaining quota: %w", err)
		}
		return s.finish(Outcome{Result: enums.SwipeResultInvalidTarget, Remaining: left}), nil
	}

	var (
		out       = Outcome{Result: enums.SwipeResultRecorded}
		consumed  bool
		remaining int
	)
	err = s.tx.WithTx(ctx, func(txCtx context.Context) error {
		upsert, err := s.swipes.Upsert(txCtx, actorID, targetID, decision, now)
		if err != nil {
			return err
		}
		if !upsert.Changed {
			out.Noop = true
			return nil
		}
		if decision != enums.DecisionLike {
			return nil
		}

		consumption, err := s.ledger.TryConsume(txCtx, actorID, dayKey)
		if err != nil {
			return err
		}
		if !consumption.Allowed {
			return errQuotaDenied
		}
		consumed, remaining = true, consumption.Remaining
		return nil
	})
	if errors.Is(err, errQuotaDenied) {
		return s.finish(Outcome{Result: enums.SwipeResultQuotaExceeded}), nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("record swipe: %w", err)
	}

	if consumed {
		out.Remaining = remaining
	} else {
		out.Remaining, err = s.ledger.Remaining(ctx, actorID, dayKey)
		if err != nil {
			return Outcome{}, fmt.Errorf("read remaining quota: %w", err)
		}
	}

	if decision == enums.DecisionLike && s.detector != nil {
		res, err := s.detector.CheckAndCreateMatch(ctx, actorID, targetID)
		if err != nil {
			return Outcome{}, fmt.Errorf("detect match: %w", err)
		}
		if res.Found {
			out.Matched = true
			out.MatchID = res.Match.ID
		}
	}

	return s.finish(out), nil
}

func (s *Service) validTarget(ctx context.Context, actorID, targetID int64) (bool, error) {
	if targetID <= 0 || targetID == actorID {
		return false, nil
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load target: %w", err)
	}
	return target.Active(), nil
}

func (s *Service) finish(out Outcome) Outcome {
	if s.metrics != nil {
		s.metrics.SwipeRecorded(string(out.Result))
	}
	return out
}
