package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nakuljn/ember-dating/internal/domain/enums"
)

var (
	ErrReplaced     = errors.New("connection replaced by a newer one")
	ErrIdle         = errors.New("connection idle")
	ErrSlowConsumer = errors.New("connection send queue overflow")
	ErrClosed       = errors.New("connection closed")
)

// Session is the server side of one live connection. Events are queued in
// order; while the session is connecting, live events are held back until
// the backlog replay has been queued.
type Session struct {
	userID  int64
	maxLive int
	idle    time.Duration
	onClose func(*Session)

	mu      sync.Mutex
	state   enums.ConnState
	queue   []Event
	pending []Event
	seen    map[string]struct{}
	reason  error
	timer   *time.Timer

	ready     chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(userID int64, maxLive int, idle time.Duration, onClose func(*Session)) *Session {
	s := &Session{
		userID:  userID,
		maxLive: maxLive,
		idle:    idle,
		onClose: onClose,
		state:   enums.ConnStateConnecting,
		seen:    make(map[string]struct{}),
		ready:   make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	if idle > 0 {
		s.timer = time.AfterFunc(idle, func() { s.close(ErrIdle) })
	}
	return s
}

func (s *Session) UserID() int64 {
	return s.userID
}

func (s *Session) State() enums.ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session has been closed for any reason.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err reports why the session closed, or nil while it is open.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Touch records activity and pushes the idle deadline forward.
func (s *Session) Touch() {
	if s.timer == nil {
		return
	}
	select {
	case <-s.done:
	default:
		s.timer.Reset(s.idle)
	}
}

// Ready is signalled whenever events are queued. Consumers drain with Pop.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

// Pop dequeues the oldest queued event.
func (s *Session) Pop() (Event, bool) {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return Event{}, false
	}
	ev := s.queue[0]
	s.queue[0] = Event{}
	s.queue = s.queue[1:]
	s.mu.Unlock()

	s.Touch()
	return ev, true
}

// Next blocks until an event is queued, the session closes or ctx ends.
func (s *Session) Next(ctx context.Context) (Event, error) {
	for {
		if ev, ok := s.Pop(); ok {
			return ev, nil
		}

		select {
		case <-s.ready:
		case <-s.done:
			return Event{}, s.closedErr()
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

func (s *Session) Close() {
	s.close(ErrClosed)
}

func (s *Session) close(reason error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = enums.ConnStateDisconnected
		s.reason = reason
		s.queue = nil
		s.pending = nil
		s.mu.Unlock()

		if s.timer != nil {
			s.timer.Stop()
		}
		if s.onClose != nil {
			s.onClose(s)
		}
		close(s.done)
	})
}

func (s *Session) closedErr() error {
	if err := s.Err(); err != nil {
		return err
	}
	return ErrClosed
}

// push queues a live event. It reports false when the session is gone.
func (s *Session) push(ev Event) bool {
	s.mu.Lock()
	switch s.state {
	case enums.ConnStateDisconnected:
		s.mu.Unlock()
		return false
	case enums.ConnStateConnecting:
		s.pending = append(s.pending, ev)
		s.mu.Unlock()
		return true
	}

	if s.maxLive > 0 && len(s.queue) >= s.maxLive {
		s.mu.Unlock()
		s.close(ErrSlowConsumer)
		return false
	}
	s.enqueueLocked(ev)
	s.mu.Unlock()
	s.signal()
	return true
}

// replay queues backlog events, then the live events held back meanwhile,
// and switches the session to connected.
func (s *Session) replay(backlog []Event) bool {
	s.mu.Lock()
	if s.state != enums.ConnStateConnecting {
		s.mu.Unlock()
		return false
	}
	for _, ev := range backlog {
		if _, dup := s.seen[ev.ID]; !dup {
			s.enqueueLocked(ev)
		}
	}
	for _, ev := range s.pending {
		if _, dup := s.seen[ev.ID]; !dup {
			s.enqueueLocked(ev)
		}
	}
	s.pending = nil
	// live events after this point arrive once each
	s.seen = nil
	s.state = enums.ConnStateConnected
	s.mu.Unlock()
	s.signal()
	return true
}

func (s *Session) enqueueLocked(ev Event) {
	if ev.ID != "" && s.seen != nil {
		s.seen[ev.ID] = struct{}{}
	}
	s.queue = append(s.queue, ev)
}

func (s *Session) signal() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
	s.Touch()
}
