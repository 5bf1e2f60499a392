package chat

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nakuljn/ember-dating/internal/domain/apperr"
	"github.com/nakuljn/ember-dating/internal/domain/enums"
	"github.com/nakuljn/ember-dating/internal/domain/model"
	"github.com/nakuljn/ember-dating/internal/pkg/clock"
	"github.com/nakuljn/ember-dating/internal/pkg/validate"
)

const (
	defaultIdleTimeout     = 5 * time.Minute
	defaultMaxContentRunes = 2000
	defaultSendBuffer      = 64
	defaultReplayLimit     = 500
	defaultRetryAttempts   = 3
	defaultRetryInitial    = 50 * time.Millisecond
	defaultHistoryLimit    = 50
	maxHistoryLimit        = 200
	nudgeTimeout           = 10 * time.Second

	matchLockStripes = 64
)

const (
	deliveryLive     = "live"
	deliveryReplay   = "replay"
	deliveryDeferred = "deferred"
	deliveryRemote   = "remote"
)

type TxRunner interface {
	WithTx(ctx context.Context, fn func(context.Context) error) error
}

type MatchStore interface {
	GetByID(ctx context.Context, matchID string) (model.Match, error)
	AdvanceSeq(ctx context.Context, matchID string, now time.Time) (int64, time.Time, error)
}

type MessageStore interface {
	Insert(ctx context.Context, msg model.Message) error
	GetByID(ctx context.Context, messageID string) (model.Message, error)
	MarkRead(ctx context.Context, messageID string, readerID int64, at time.Time) (model.Message, bool, error)
	SoftDelete(ctx context.Context, messageID string, senderID int64, at time.Time) (model.Message, bool, error)
	MarkDelivered(ctx context.Context, messageIDs []string, at time.Time) error
	ListUndelivered(ctx context.Context, recipientID int64, after model.MessageCursor, limit int) ([]model.Message, error)
	ListByMatch(ctx context.Context, matchID string, beforeSeq int64, limit int) ([]model.Message, error)
}

type NotificationStore interface {
	ListUndelivered(ctx context.Context, userID int64, after model.NotificationCursor, limit int) ([]model.Notification, error)
	MarkDelivered(ctx context.Context, ids []string, at time.Time) error
}

type UserStore interface {
	GetByID(ctx context.Context, userID int64) (model.User, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, userID int64) (int64, bool, error)
}

type Pusher interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

type Bus interface {
	Publish(ctx context.Context, payload []byte) error
	Subscribe(ctx context.Context, handle func([]byte)) error
}

type Metrics interface {
	MessagePersisted()
	ConnectionOpened()
	ConnectionClosed()
	Delivery(mode string)
}

type Dependencies struct {
	Tx            TxRunner
	Matches       MatchStore
	Messages      MessageStore
	Notifications NotificationStore
	Users         UserStore
	Limiter       RateLimiter
	Pusher        Pusher
	Bus           Bus
	Metrics       Metrics
	Logger        *zap.Logger
	Clock         clock.Clock
}

type Config struct {
	IdleTimeout     time.Duration
	MaxContentRunes int
	SendBuffer      int
	ReplayLimit     int
	RetryAttempts   int
	RetryInitial    time.Duration
}

// TooFastError carries the number of seconds until sending is allowed again.
type TooFastError struct {
	RetryAfterSec int64
}

func (e *TooFastError) Error() string {
	return fmt.Sprintf("too fast, retry after %ds", e.RetryAfterSec)
}

func (e *TooFastError) Unwrap() error {
	return apperr.ErrTooFast
}

// Manager owns the live connections of this instance and every chat
// operation that may push events to them.
type Manager struct {
	tx            TxRunner
	matches       MatchStore
	messages      MessageStore
	notifications NotificationStore
	users         UserStore
	limiter       RateLimiter
	pusher        Pusher
	bus           Bus
	metrics       Metrics
	log           *zap.Logger
	clock         clock.Clock
	cfg           Config

	instanceID string
	hub        *hub
	matchLocks [matchLockStripes]sync.Mutex
	nudges     sync.WaitGroup
}

func NewManager(deps Dependencies, cfg Config) *Manager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.MaxContentRunes <= 0 {
		cfg.MaxContentRunes = defaultMaxContentRunes
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	if cfg.ReplayLimit <= 0 {
		cfg.ReplayLimit = defaultReplayLimit
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = defaultRetryAttempts
	}
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = defaultRetryInitial
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = clock.System()
	}

	return &Manager{
		tx:            deps.Tx,
		matches:       deps.Matches,
		messages:      deps.Messages,
		notifications: deps.Notifications,
		users:         deps.Users,
		limiter:       deps.Limiter,
		pusher:        deps.Pusher,
		bus:           deps.Bus,
		metrics:       deps.Metrics,
		log:           deps.Logger.With(zap.String("component", "chat")),
		clock:         deps.Clock,
		cfg:           cfg,
		instanceID:    uuid.NewString(),
		hub:           newHub(),
	}
}

func (m *Manager) InstanceID() string {
	return m.instanceID
}

// Online reports whether userID has a live connection on this instance.
func (m *Manager) Online(userID int64) bool {
	_, ok := m.hub.get(userID)
	return ok
}

func (m *Manager) Connections() int {
	return m.hub.size()
}

// Connect registers a live connection for userID, closing any previous one,
// and queues the whole undelivered backlog: notifications first, then
// messages, oldest first. Events produced meanwhile are queued after the
// backlog. When the store cannot be read the previous connection is left
// untouched.
func (m *Manager) Connect(ctx context.Context, userID int64) (*Session, error) {
	if userID <= 0 {
		return nil, apperr.ErrUnauthenticated
	}

	if _, err := m.messages.ListUndelivered(ctx, userID, model.MessageCursor{}, 1); err != nil {
		return nil, fmt.Errorf("list undelivered messages: %w", err)
	}

	s := newSession(userID, m.cfg.SendBuffer, m.cfg.IdleTimeout, m.sessionClosed)
	if prev := m.hub.register(s); prev != nil {
		prev.close(ErrReplaced)
	}
	if m.metrics != nil {
		m.metrics.ConnectionOpened()
	}

	// live events are held in s until every backlog page is queued
	backlog, err := m.backlog(ctx, userID)
	if err != nil {
		s.Close()
		return nil, err
	}
	if !s.replay(backlog) {
		return nil, s.closedErr()
	}
	for range backlog {
		m.observeDelivery(deliveryReplay)
	}

	m.log.Debug("chat connection opened",
		zap.Int64("user_id", userID),
		zap.Int("backlog", len(backlog)),
	)
	return s, nil
}

// backlog pages through everything pending for userID. ReplayLimit bounds
// one page, not the replay.
func (m *Manager) backlog(ctx context.Context, userID int64) ([]Event, error) {
	out := make([]Event, 0)

	var notifAfter model.NotificationCursor
	for {
		page, err := m.notifications.ListUndelivered(ctx, userID, notifAfter, m.cfg.ReplayLimit)
		if err != nil {
			return nil, fmt.Errorf("list pending notifications: %w", err)
		}
		for _, n := range page {
			out = append(out, notificationEvent(n))
		}
		if len(page) < m.cfg.ReplayLimit {
			break
		}
		notifAfter = page[len(page)-1].Cursor()
	}

	var msgAfter model.MessageCursor
	for {
		page, err := m.messages.ListUndelivered(ctx, userID, msgAfter, m.cfg.ReplayLimit)
		if err != nil {
			return nil, fmt.Errorf("list undelivered messages: %w", err)
		}
		for _, msg := range page {
			out = append(out, messageEvent(msg))
		}
		if len(page) < m.cfg.ReplayLimit {
			break
		}
		msgAfter = page[len(page)-1].Cursor()
	}
	return out, nil
}

func (m *Manager) sessionClosed(s *Session) {
	m.hub.unregister(s)
	if m.metrics != nil {
		m.metrics.ConnectionClosed()
	}
	m.log.Debug("chat connection closed",
		zap.Int64("user_id", s.userID),
		zap.Error(s.Err()),
	)
}

// Delivered records that ev reached the client socket.
func (m *Manager) Delivered(ctx context.Context, ev Event) error {
	now := m.clock.Now().UTC()
	switch {
	case ev.Message != nil:
		if err := m.messages.MarkDelivered(ctx, []string{ev.Message.ID}, now); err != nil {
			return fmt.Errorf("mark message delivered: %w", err)
		}
	case ev.Notification != nil:
		if err := m.notifications.MarkDelivered(ctx, []string{ev.Notification.ID}, now); err != nil {
			return fmt.Errorf("mark notification delivered: %w", err)
		}
	}
	return nil
}

// Send persists a message from senderID into matchID and pushes it to the
// other member. The per-match lock spans persist and enqueue, so a
// recipient connected here sees messages in seq order.
func (m *Manager) Send(ctx context.Context, senderID int64, matchID, content string) (model.Message, error) {
	if senderID <= 0 {
		return model.Message{}, apperr.ErrUnauthenticated
	}
	if !validate.Required(content) {
		return model.Message{}, fmt.Errorf("%w: empty content", apperr.ErrValidation)
	}
	if !validate.MaxRunes(content, m.cfg.MaxContentRunes) {
		return model.Message{}, fmt.Errorf("%w: content too long", apperr.ErrValidation)
	}

	match, err := m.membership(ctx, senderID, matchID)
	if err != nil {
		return model.Message{}, err
	}

	if m.limiter != nil {
		retryAfter, allowed, err := m.limiter.Allow(ctx, senderID)
		if err != nil {
			m.log.Warn("chat rate limiter unavailable", zap.Int64("user_id", senderID), zap.Error(err))
		} else if !allowed {
			return model.Message{}, &TooFastError{RetryAfterSec: retryAfter}
		}
	}

	lock := m.matchLock(match.ID)
	lock.Lock()
	defer lock.Unlock()

	// one id for every attempt, so a commit that landed before its error
	// reached us is found instead of written twice
	id := uuid.NewString()
	msg, err := withRetry(ctx, m.cfg.RetryAttempts, m.cfg.RetryInitial, func() (model.Message, error) {
		return m.persist(ctx, match, id, senderID, content)
	})
	if err != nil {
		return model.Message{}, fmt.Errorf("persist message: %w", err)
	}
	if m.metrics != nil {
		m.metrics.MessagePersisted()
	}

	m.deliver(ctx, msg.RecipientID, messageEvent(msg))
	return msg, nil
}

func (m *Manager) persist(ctx context.Context, match model.Match, id string, senderID int64, content string) (model.Message, error) {
	var msg model.Message
	err := m.tx.WithTx(ctx, func(txCtx context.Context) error {
		stored, err := m.messages.GetByID(txCtx, id)
		switch {
		case err == nil:
			msg = stored
			return nil
		case !errors.Is(err, apperr.ErrNotFound):
			return err
		}

		seq, sentAt, err := m.matches.AdvanceSeq(txCtx, match.ID, m.clock.Now().UTC())
		if err != nil {
			return err
		}
		msg = model.Message{
			ID:          id,
			MatchID:     match.ID,
			SenderID:    senderID,
			RecipientID: match.Peer(senderID),
			Seq:         seq,
			Content:     content,
			SentAt:      sentAt,
		}
		return m.messages.Insert(txCtx, msg)
	})
	if errors.Is(err, apperr.ErrDuplicate) {
		return m.messages.GetByID(ctx, id)
	}
	return msg, err
}

// MarkRead sets read_at on a message addressed to readerID. Repeating the
// call returns the original read_at and sends no second receipt.
func (m *Manager) MarkRead(ctx context.Context, readerID int64, messageID string) (model.Message, error) {
	if readerID <= 0 {
		return model.Message{}, apperr.ErrUnauthenticated
	}
	if !validate.Required(messageID) {
		return model.Message{}, fmt.Errorf("%w: message id is required", apperr.ErrValidation)
	}

	type result struct {
		msg     model.Message
		changed bool
	}
	res, err := withRetry(ctx, m.cfg.RetryAttempts, m.cfg.RetryInitial, func() (result, error) {
		msg, changed, err := m.messages.MarkRead(ctx, messageID, readerID, m.clock.Now().UTC())
		return result{msg: msg, changed: changed}, err
	})
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return model.Message{}, apperr.ErrNotAMember
		}
		return model.Message{}, fmt.Errorf("mark message read: %w", err)
	}

	if res.changed {
		m.deliver(ctx, res.msg.SenderID, receiptEvent(res.msg))
	}
	return res.msg, nil
}

// Delete withdraws a message senderID sent. The row stays in the log with
// its seq; history shows it without content. Repeating the call returns the
// original deleted_at and notifies nobody.
func (m *Manager) Delete(ctx context.Context, senderID int64, messageID string) (model.Message, error) {
	if senderID <= 0 {
		return model.Message{}, apperr.ErrUnauthenticated
	}
	if !validate.Required(messageID) {
		return model.Message{}, fmt.Errorf("%w: message id is required", apperr.ErrValidation)
	}

	type result struct {
		msg     model.Message
		changed bool
	}
	res, err := withRetry(ctx, m.cfg.RetryAttempts, m.cfg.RetryInitial, func() (result, error) {
		msg, changed, err := m.messages.SoftDelete(ctx, messageID, senderID, m.clock.Now().UTC())
		return result{msg: msg, changed: changed}, err
	})
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return model.Message{}, apperr.ErrNotAMember
		}
		return model.Message{}, fmt.Errorf("delete message: %w", err)
	}

	if res.changed {
		m.deliver(ctx, res.msg.RecipientID, deletionEvent(res.msg))
	}
	return res.msg.Redacted(), nil
}

// History returns up to limit messages older than beforeSeq, oldest first.
// beforeSeq <= 0 means the latest page.
func (m *Manager) History(ctx context.Context, userID int64, matchID string, beforeSeq int64, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	if _, err := m.membership(ctx, userID, matchID); err != nil {
		return nil, err
	}

	items, err := m.messages.ListByMatch(ctx, matchID, beforeSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	for i := range items {
		items[i] = items[i].Redacted()
	}
	return items, nil
}

// DeliverNotifications pushes freshly persisted notifications to their
// owners. Rows stay pending until a socket write succeeds.
func (m *Manager) DeliverNotifications(ctx context.Context, notifs []model.Notification) {
	for _, n := range notifs {
		m.deliver(ctx, n.UserID, notificationEvent(n))
	}
}

func (m *Manager) membership(ctx context.Context, userID int64, matchID string) (model.Match, error) {
	if !validate.Required(matchID) {
		return model.Match{}, fmt.Errorf("%w: match id is required", apperr.ErrValidation)
	}

	match, err := m.matches.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return model.Match{}, apperr.ErrNotAMember
		}
		return model.Match{}, fmt.Errorf("load match: %w", err)
	}
	if !match.HasMember(userID) {
		return model.Match{}, apperr.ErrNotAMember
	}
	return match, nil
}

// deliver pushes ev to userID's local session. Without one the event is
// handed to the other instances and the user gets an offline nudge; the
// durable row is replayed on the next connect either way.
func (m *Manager) deliver(ctx context.Context, userID int64, ev Event) {
	if s, ok := m.hub.get(userID); ok && s.push(ev) {
		m.observeDelivery(deliveryLive)
		return
	}

	if m.bus != nil {
		if err := m.publish(ctx, userID, ev); err != nil {
			m.log.Warn("chat fan-out publish failed", zap.Int64("user_id", userID), zap.Error(err))
		}
	}
	m.observeDelivery(deliveryDeferred)

	if text := nudgeText(ev); text != "" {
		m.nudge(userID, text)
	}
}

func (m *Manager) observeDelivery(mode string) {
	if m.metrics != nil {
		m.metrics.Delivery(mode)
	}
}

func nudgeText(ev Event) string {
	switch {
	case ev.Kind == enums.EventKindMessageDeleted:
		return ""
	case ev.Message != nil:
		return "You have a new message on Ember."
	case ev.Notification != nil:
		return "It's a match! Open Ember to say hi."
	}
	return ""
}

// nudge sends an offline push in the background.
func (m *Manager) nudge(userID int64, text string) {
	if m.pusher == nil || m.users == nil {
		return
	}

	m.nudges.Add(1)
	go func() {
		defer m.nudges.Done()

		ctx, cancel := context.WithTimeout(context.Background(), nudgeTimeout)
		defer cancel()

		user, err := m.users.GetByID(ctx, userID)
		if err != nil || user.TelegramChatID == nil || !user.Active() {
			return
		}
		if err := m.pusher.SendText(ctx, *user.TelegramChatID, text); err != nil {
			m.log.Warn("offline push failed", zap.Int64("user_id", userID), zap.Error(err))
		}
	}()
}

func (m *Manager) matchLock(matchID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(matchID))
	return &m.matchLocks[h.Sum32()%matchLockStripes]
}

// Shutdown closes every local connection and waits for pending nudges.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.hub.closeAll()

	done := make(chan struct{})
	go func() {
		m.nudges.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
