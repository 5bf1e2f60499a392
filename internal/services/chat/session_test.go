package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nakuljn/ember-dating/internal/domain/enums"
	"github.com/nakuljn/ember-dating/internal/domain/model"
)

func TestReplayBuffersLiveEventsAndDropsDuplicates(t *testing.T) {
	s := newSession(1, 10, 0, nil)

	m1 := model.Message{ID: "m1", Seq: 1}
	m2 := model.Message{ID: "m2", Seq: 2}
	m3 := model.Message{ID: "m3", Seq: 3}

	// m2 is committed while the backlog query runs, so it shows up both as a
	// live event and in the backlog.
	require.True(t, s.push(messageEvent(m2)))
	require.True(t, s.push(messageEvent(m3)))
	require.True(t, s.replay([]Event{messageEvent(m1), messageEvent(m2)}))
	require.Equal(t, enums.ConnStateConnected, s.State())

	ctx := context.Background()
	for _, want := range []string{"m1", "m2", "m3"} {
		ev, err := s.Next(ctx)
		require.NoError(t, err)
		require.Equal(t, want, ev.Message.ID)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err := s.Next(waitCtx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSlowConsumerIsClosed(t *testing.T) {
	closed := make(chan *Session, 1)
	s := newSession(1, 2, 0, func(s *Session) { closed <- s })
	require.True(t, s.replay(nil))

	require.True(t, s.push(messageEvent(model.Message{ID: "a"})))
	require.True(t, s.push(messageEvent(model.Message{ID: "b"})))
	require.False(t, s.push(messageEvent(model.Message{ID: "c"})))

	require.Same(t, s, <-closed)
	require.ErrorIs(t, s.Err(), ErrSlowConsumer)
}

func TestPushAfterCloseIsRejected(t *testing.T) {
	s := newSession(1, 2, 0, nil)
	s.Close()
	s.Close()

	require.False(t, s.push(messageEvent(model.Message{ID: "a"})))
	require.False(t, s.replay(nil))
	require.Equal(t, enums.ConnStateDisconnected, s.State())
}
