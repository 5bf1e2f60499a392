package rate

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	minuteWindow = time.Minute
	tenSecWindow = 10 * time.Second
)

// ActionChatSend is the only action limited today; keys are namespaced by
// action so others can share the store.
const ActionChatSend = "chat_send"

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	WindowState(ctx context.Context, key string) (int64, time.Duration, error)
}

type Limiter struct {
	store     WindowStore
	action    string
	perMinute int
	per10Sec  int
}

func NewLimiter(store WindowStore, action string, perMinute, per10Sec int) *Limiter {
	if perMinute < 0 {
		perMinute = 0
	}
	if per10Sec < 0 {
		per10Sec = 0
	}
	action = strings.TrimSpace(action)
	if action == "" {
		action = ActionChatSend
	}

	return &Limiter{
		store:     store,
		action:    action,
		perMinute: perMinute,
		per10Sec:  per10Sec,
	}
}

// Allow counts one action for userID. When a window is exceeded it returns
// allowed=false and the seconds until the tightest window reopens.
func (l *Limiter) Allow(ctx context.Context, userID int64) (int64, bool, error) {
	if userID <= 0 {
		return 0, false, fmt.Errorf("invalid user id")
	}
	if l.store == nil {
		return 0, false, fmt.Errorf("rate limiter store is nil")
	}

	retryAfterSec := int64(0)
	for _, w := range l.windows(userID) {
		count, ttl, err := l.store.IncrementWindow(ctx, w.key, w.size)
		if err != nil {
			return 0, false, err
		}
		if count > int64(w.limit) {
			retryAfterSec = max(retryAfterSec, ceilSeconds(ttl))
		}
	}

	if retryAfterSec > 0 {
		return retryAfterSec, false, nil
	}
	return 0, true, nil
}

func (l *Limiter) RetryAfter(ctx context.Context, userID int64) (int64, error) {
	if userID <= 0 {
		return 0, fmt.Errorf("invalid user id")
	}
	if l.store == nil {
		return 0, fmt.Errorf("rate limiter store is nil")
	}

	retryAfterSec := int64(0)
	for _, w := range l.windows(userID) {
		count, ttl, err := l.store.WindowState(ctx, w.key)
		if err != nil {
			return 0, err
		}
		if count >= int64(w.limit) {
			retryAfterSec = max(retryAfterSec, ceilSeconds(ttl))
		}
	}

	return retryAfterSec, nil
}

type window struct {
	key   string
	size  time.Duration
	limit int
}

func (l *Limiter) windows(userID int64) []window {
	id := strconv.FormatInt(userID, 10)
	out := make([]window, 0, 2)
	if l.perMinute > 0 {
		out = append(out, window{key: "rate:" + l.action + ":min:" + id, size: minuteWindow, limit: l.perMinute})
	}
	if l.per10Sec > 0 {
		out = append(out, window{key: "rate:" + l.action + ":10s:" + id, size: tenSecWindow, limit: l.per10Sec})
	}
	return out
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	sec := int64(d / time.Second)
	if d%time.Second != 0 {
		sec++
	}
	if sec <= 0 {
		sec = 1
	}
	return sec
}
