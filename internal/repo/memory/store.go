// Package memory is a process-local store with the same contracts as the
// postgres repositories. One mutex serializes every operation; WithTx holds
// it for the whole closure and undoes recorded writes when the closure fails.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/nakuljn/ember-dating/internal/domain/model"
)

type swipeKey struct {
	actor  int64
	target int64
}

type quotaKey struct {
	userID int64
	dayKey string
}

type pairKey struct {
	a int64
	b int64
}

type Store struct {
	mu sync.Mutex

	fault func(op string) error

	nextUserID    int64
	users         map[int64]model.User
	swipes        map[swipeKey]model.Swipe
	quotas        map[quotaKey]int
	matches       map[string]model.Match
	matchByPair   map[pairKey]string
	messages      map[string]model.Message
	notifications map[string]model.Notification
}

func NewStore() *Store {
	return &Store{
		users:         make(map[int64]model.User),
		swipes:        make(map[swipeKey]model.Swipe),
		quotas:        make(map[quotaKey]int),
		matches:       make(map[string]model.Match),
		matchByPair:   make(map[pairKey]string),
		messages:      make(map[string]model.Message),
		notifications: make(map[string]model.Notification),
	}
}

type txContextKey struct{}

type txState struct {
	store *Store
	undo  []func()
}

func (t *txState) onRollback(fn func()) {
	if t != nil {
		t.undo = append(t.undo, fn)
	}
}

// SetFault installs a hook consulted before every operation; a non-nil
// return aborts the operation with that error.
func (s *Store) SetFault(fn func(op string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = fn
}

func (s *Store) WithTx(ctx context.Context, fn func(context.Context) error) error {
	if _, ok := s.txFrom(ctx); ok {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fault != nil {
		if err := s.fault("begin tx"); err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
	}

	tx := &txState{store: s}
	if err := fn(context.WithValue(ctx, txContextKey{}, tx)); err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}
	return nil
}

func (s *Store) txFrom(ctx context.Context) (*txState, bool) {
	tx, ok := ctx.Value(txContextKey{}).(*txState)
	return tx, ok && tx != nil && tx.store == s
}

// run executes fn under the store lock unless ctx already carries one of
// this store's transactions.
func (s *Store) run(ctx context.Context, op string, fn func(tx *txState) error) error {
	tx, inTx := s.txFrom(ctx)
	if !inTx {
		s.mu.Lock()
		defer s.mu.Unlock()
	}

	if s.fault != nil {
		if err := s.fault(op); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return fn(tx)
}

func (s *Store) requireTx(ctx context.Context) error {
	if _, ok := s.txFrom(ctx); !ok {
		return fmt.Errorf("transaction is required")
	}
	return nil
}

func (s *Store) Users() *UserRepo                 { return &UserRepo{s: s} }
func (s *Store) Swipes() *SwipeRepo               { return &SwipeRepo{s: s} }
func (s *Store) Quotas() *QuotaRepo               { return &QuotaRepo{s: s} }
func (s *Store) Matches() *MatchRepo              { return &MatchRepo{s: s} }
func (s *Store) Messages() *MessageRepo           { return &MessageRepo{s: s} }
func (s *Store) Notifications() *NotificationRepo { return &NotificationRepo{s: s} }
func (s *Store) Candidates() *CandidateRepo       { return &CandidateRepo{s: s} }
