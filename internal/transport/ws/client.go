package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nakuljn/ember-dating/internal/domain/enums"
	chatsvc "github.com/nakuljn/ember-dating/internal/services/chat"
)

const (
	closeReplaced = 4000
	closeIdle     = 4001
	closeSlow     = 4002
)

// client pairs one websocket with one chat session.
type client struct {
	conn    *websocket.Conn
	session *chatsvc.Session
	chat    *chatsvc.Manager
	cfg     Config
	log     *zap.Logger
	replies chan ServerFrame
}

func (c *client) readPump(ctx context.Context) {
	defer c.session.Close()

	c.conn.SetReadLimit(c.cfg.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("ws read failed", zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		c.session.Touch()

		if !c.reply(c.handle(ctx, data)) {
			return
		}
	}
}

func (c *client) handle(ctx context.Context, data []byte) ServerFrame {
	var frame ClientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return errorFrame("", "VALIDATION_ERROR", "malformed frame")
	}

	switch enums.EventKind(frame.EventType) {
	case enums.EventKindMessage:
		var p SendPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return errorFrame(frame.RequestID, "VALIDATION_ERROR", "malformed message payload")
		}
		msg, err := c.chat.Send(ctx, c.session.UserID(), p.MatchID, p.Content)
		if err != nil {
			return failureFrame(frame.RequestID, err)
		}
		sentAt := msg.SentAt.UTC()
		return ackFrame(frame.RequestID, AckPayload{ID: msg.ID, Seq: msg.Seq, SentAt: &sentAt})

	case enums.EventKindReadReceipt:
		var p ReadPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return errorFrame(frame.RequestID, "VALIDATION_ERROR", "malformed read_receipt payload")
		}
		msg, err := c.chat.MarkRead(ctx, c.session.UserID(), p.MessageID)
		if err != nil {
			return failureFrame(frame.RequestID, err)
		}
		var readAt *time.Time
		if msg.ReadAt != nil {
			at := msg.ReadAt.UTC()
			readAt = &at
		}
		return ackFrame(frame.RequestID, AckPayload{ID: msg.ID, ReadAt: readAt})

	case enums.EventKindMessageDeleted:
		var p DeletePayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return errorFrame(frame.RequestID, "VALIDATION_ERROR", "malformed message_deleted payload")
		}
		msg, err := c.chat.Delete(ctx, c.session.UserID(), p.MessageID)
		if err != nil {
			return failureFrame(frame.RequestID, err)
		}
		var deletedAt *time.Time
		if msg.DeletedAt != nil {
			at := msg.DeletedAt.UTC()
			deletedAt = &at
		}
		return ackFrame(frame.RequestID, AckPayload{ID: msg.ID, DeletedAt: deletedAt})

	default:
		return errorFrame(frame.RequestID, "UNSUPPORTED_EVENT", "unsupported event_type")
	}
}

// reply hands a frame to the write pump. It reports false once the session
// is gone.
func (c *client) reply(frame ServerFrame) bool {
	select {
	case c.replies <- frame:
		return true
	case <-c.session.Done():
		return false
	}
}

func (c *client) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		c.session.Close()
		_ = c.conn.Close()
	}()

	for {
		if !c.flush(ctx) {
			return
		}

		select {
		case <-c.session.Ready():
		case frame := <-c.replies:
			if err := c.write(frame); err != nil {
				return
			}
			c.session.Touch()
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.session.Done():
			c.writeClose(c.session.Err())
			return
		}
	}
}

// flush writes every queued event; an event is marked delivered only after
// its frame was written.
func (c *client) flush(ctx context.Context) bool {
	for {
		ev, ok := c.session.Pop()
		if !ok {
			return true
		}
		frame, ok := eventFrame(ev)
		if !ok {
			continue
		}
		if err := c.write(frame); err != nil {
			c.log.Debug("ws write failed", zap.Error(err))
			return false
		}
		if err := c.chat.Delivered(ctx, ev); err != nil {
			c.log.Warn("mark delivered failed", zap.String("event_id", ev.ID), zap.Error(err))
		}
	}
}

func (c *client) write(frame ServerFrame) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
	return c.conn.WriteJSON(frame)
}

func (c *client) writeClose(reason error) {
	code, text := websocket.CloseNormalClosure, "closed"
	switch {
	case errors.Is(reason, chatsvc.ErrReplaced):
		code, text = closeReplaced, "replaced by a newer connection"
	case errors.Is(reason, chatsvc.ErrIdle):
		code, text = closeIdle, "idle timeout"
	case errors.Is(reason, chatsvc.ErrSlowConsumer):
		code, text = closeSlow, "send queue overflow"
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(c.cfg.WriteWait))
}
