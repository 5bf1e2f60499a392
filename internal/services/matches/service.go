package matches

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nakuljn/ember-dating/internal/domain/apperr"
	"github.com/nakuljn/ember-dating/internal/domain/enums"
	"github.com/nakuljn/ember-dating/internal/domain/model"
	"github.com/nakuljn/ember-dating/internal/pkg/clock"
)

type TxRunner interface {
	WithTx(ctx context.Context, fn func(context.Context) error) error
}

type SwipeStore interface {
	HasLike(ctx context.Context, fromUserID, toUserID int64) (bool, error)
	ListIncomingLikes(ctx context.Context, userID int64, limit int) ([]model.Swipe, error)
}

type MatchStore interface {
	CreateOrGet(ctx context.Context, userID, targetID int64, now time.Time) (model.Match, bool, error)
	GetByID(ctx context.Context, matchID string) (model.Match, error)
	ListForUser(ctx context.Context, userID int64, limit int) ([]model.Match, error)
}

type NotificationStore interface {
	Insert(ctx context.Context, n model.Notification) error
}

// Notifier hands freshly persisted notifications to live delivery. It must
// not block on slow connections.
type Notifier interface {
	DeliverNotifications(ctx context.Context, items []model.Notification)
}

type Metrics interface {
	MatchCreated()
}

type Dependencies struct {
	Tx            TxRunner
	Swipes        SwipeStore
	Matches       MatchStore
	Notifications NotificationStore
	Notifier      Notifier
	Metrics       Metrics
	Clock         clock.Clock
}

type Service struct {
	tx            TxRunner
	swipes        SwipeStore
	matches       MatchStore
	notifications NotificationStore
	notifier      Notifier
	metrics       Metrics
	clock         clock.Clock
}

// Result of a reciprocal-like check. Found is false when the other side has
// not liked back; Created is true only for the caller that inserted the row.
type Result struct {
	Match   model.Match
	Found   bool
	Created bool
}

type MatchItem struct {
	Match  model.Match
	PeerID int64
}

func NewService(deps Dependencies) *Service {
	if deps.Clock == nil {
		deps.Clock = clock.System()
	}
	return &Service{
		tx:            deps.Tx,
		swipes:        deps.Swipes,
		matches:       deps.Matches,
		notifications: deps.Notifications,
		notifier:      deps.Notifier,
		metrics:       deps.Metrics,
		clock:         deps.Clock,
	}
}

// CheckAndCreateMatch runs after actor's like on target is durable. When
// target already likes actor the pair's single match is created or fetched.
// Notifications are persisted in the creating transaction and pushed only
// after it commits.
func (s *Service) CheckAndCreateMatch(ctx context.Context, actorID, targetID int64) (Result, error) {
	if actorID <= 0 || targetID <= 0 || actorID == targetID {
		return Result{}, apperr.ErrValidation
	}

	reciprocal, err := s.swipes.HasLike(ctx, targetID, actorID)
	if err != nil {
		return Result{}, fmt.Errorf("lookup reciprocal like: %w", err)
	}
	if !reciprocal {
		return Result{}, nil
	}

	var (
		res    = Result{Found: true}
		notifs []model.Notification
	)
	now := s.clock.Now().UTC()
	err = s.tx.WithTx(ctx, func(txCtx context.Context) error {
		match, created, err := s.matches.CreateOrGet(txCtx, actorID, targetID, now)
		if err != nil {
			return err
		}
		res.Match, res.Created = match, created
		if !created {
			return nil
		}

		notifs = []model.Notification{
			newMatchNotification(match.UserAID, match.UserBID, match.ID, now),
			newMatchNotification(match.UserBID, match.UserAID, match.ID, now),
		}
		for _, n := range notifs {
			if err := s.notifications.Insert(txCtx, n); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("create match: %w", err)
	}

	if res.Created {
		if s.metrics != nil {
			s.metrics.MatchCreated()
		}
		if s.notifier != nil {
			s.notifier.DeliverNotifications(ctx, notifs)
		}
	}
	return res, nil
}

func (s *Service) Get(ctx context.Context, userID int64, matchID string) (model.Match, error) {
	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return model.Match{}, err
	}
	if !match.HasMember(userID) {
		return model.Match{}, apperr.ErrNotAMember
	}
	return match, nil
}

func (s *Service) List(ctx context.Context, userID int64, limit int) ([]MatchItem, error) {
	if userID <= 0 {
		return nil, apperr.ErrValidation
	}
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	rows, err := s.matches.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}

	items := make([]MatchItem, 0, len(rows))
	for _, m := range rows {
		items = append(items, MatchItem{Match: m, PeerID: m.Peer(userID)})
	}
	return items, nil
}

// IncomingLikes lists users who liked userID and are still waiting for an
// answer.
func (s *Service) IncomingLikes(ctx context.Context, userID int64, limit int) ([]model.Swipe, error) {
	if userID <= 0 {
		return nil, apperr.ErrValidation
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := s.swipes.ListIncomingLikes(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list incoming likes: %w", err)
	}
	return rows, nil
}

func newMatchNotification(userID, peerID int64, matchID string, at time.Time) model.Notification {
	return model.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      enums.NotificationKindMatch,
		MatchID:   matchID,
		PeerID:    peerID,
		CreatedAt: at,
	}
}
