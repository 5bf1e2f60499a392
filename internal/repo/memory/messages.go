package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nakuljn/ember-dating/internal/domain/apperr"
	"github.com/nakuljn/ember-dating/internal/domain/model"
)

type MessageRepo struct {
	s *Store
}

func (r *MessageRepo) Insert(ctx context.Context, msg model.Message) error {
	if msg.ID == "" || msg.MatchID == "" || msg.SenderID <= 0 || msg.RecipientID <= 0 || msg.Seq <= 0 {
		return fmt.Errorf("invalid message payload")
	}

	return r.s.run(ctx, "insert message", func(tx *txState) error {
		if _, ok := r.s.matches[msg.MatchID]; !ok {
			return fmt.Errorf("insert message: match %s does not exist", msg.MatchID)
		}
		if _, dup := r.s.messages[msg.ID]; dup {
			return fmt.Errorf("insert message %s: %w", msg.ID, apperr.ErrDuplicate)
		}
		msg.SentAt = msg.SentAt.UTC()
		r.s.messages[msg.ID] = msg
		id := msg.ID
		tx.onRollback(func() { delete(r.s.messages, id) })
		return nil
	})
}

func (r *MessageRepo) GetByID(ctx context.Context, messageID string) (model.Message, error) {
	var msg model.Message
	err := r.s.run(ctx, "get message", func(*txState) error {
		found, ok := r.s.messages[messageID]
		if !ok {
			return apperr.ErrNotFound
		}
		msg = found
		return nil
	})
	return msg, err
}

func (r *MessageRepo) MarkRead(ctx context.Context, messageID string, readerID int64, at time.Time) (model.Message, bool, error) {
	if readerID <= 0 {
		return model.Message{}, false, fmt.Errorf("invalid read receipt payload")
	}

	var (
		msg     model.Message
		changed bool
	)
	err := r.s.run(ctx, "mark message read", func(tx *txState) error {
		prev, ok := r.s.messages[messageID]
		if !ok {
			return apperr.ErrNotFound
		}
		if prev.RecipientID != readerID {
			return apperr.ErrNotAMember
		}
		if prev.ReadAt != nil {
			msg = prev
			return nil
		}

		readAt := at.UTC()
		if readAt.Before(prev.SentAt) {
			readAt = prev.SentAt
		}
		next := prev
		next.ReadAt = &readAt
		r.s.messages[messageID] = next
		tx.onRollback(func() { r.s.messages[messageID] = prev })

		msg, changed = next, true
		return nil
	})
	return msg, changed, err
}

func (r *MessageRepo) MarkDelivered(ctx context.Context, messageIDs []string, at time.Time) error {
	if len(messageIDs) == 0 {
		return nil
	}

	return r.s.run(ctx, "mark messages delivered", func(tx *txState) error {
		ts := at.UTC()
		for _, id := range messageIDs {
			prev, ok := r.s.messages[id]
			if !ok || prev.DeliveredAt != nil {
				continue
			}
			next := prev
			next.DeliveredAt = &ts
			r.s.messages[id] = next
			tx.onRollback(func() { r.s.messages[prev.ID] = prev })
		}
		return nil
	})
}

// ListUndelivered returns up to limit pending messages for recipient that
// sort after the cursor, in send order.
func (r *MessageRepo) ListUndelivered(ctx context.Context, recipientID int64, after model.MessageCursor, limit int) ([]model.Message, error) {
	if recipientID <= 0 {
		return nil, fmt.Errorf("invalid recipient id")
	}
	if limit <= 0 {
		limit = 500
	}

	items := r.collect(ctx, "list undelivered messages", func(m model.Message) bool {
		return m.RecipientID == recipientID && m.DeliveredAt == nil && after.Precedes(m)
	})
	if items.err != nil {
		return nil, items.err
	}

	list := items.list
	sort.Slice(list, func(i, j int) bool {
		if !list[i].SentAt.Equal(list[j].SentAt) {
			return list[i].SentAt.Before(list[j].SentAt)
		}
		if list[i].MatchID != list[j].MatchID {
			return list[i].MatchID < list[j].MatchID
		}
		return list[i].Seq < list[j].Seq
	})
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// SoftDelete marks a message deleted by its sender. The row stays in the log;
// a repeated call returns the stored message and changed=false.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID string, senderID int64, at time.Time) (model.Message, bool, error) {
	if senderID <= 0 {
		return model.Message{}, false, fmt.Errorf("invalid delete payload")
	}

	var (
		msg     model.Message
		changed bool
	)
	err := r.s.run(ctx, "delete message", func(tx *txState) error {
		prev, ok := r.s.messages[messageID]
		if !ok {
			return apperr.ErrNotFound
		}
		if prev.SenderID != senderID {
			return apperr.ErrNotAMember
		}
		if prev.DeletedAt != nil {
			msg = prev
			return nil
		}

		deletedAt := at.UTC()
		if deletedAt.Before(prev.SentAt) {
			deletedAt = prev.SentAt
		}
		next := prev
		next.DeletedAt = &deletedAt
		r.s.messages[messageID] = next
		tx.onRollback(func() { r.s.messages[messageID] = prev })

		msg, changed = next, true
		return nil
	})
	return msg, changed, err
}

func (r *MessageRepo) ListByMatch(ctx context.Context, matchID string, beforeSeq int64, limit int) ([]model.Message, error) {
	if matchID == "" {
		return nil, fmt.Errorf("invalid match id")
	}
	if limit <= 0 {
		limit = 50
	}

	items := r.collect(ctx, "list match messages", func(m model.Message) bool {
		return m.MatchID == matchID && (beforeSeq <= 0 || m.Seq < beforeSeq)
	})
	if items.err != nil {
		return nil, items.err
	}

	list := items.list
	sort.Slice(list, func(i, j int) bool { return list[i].Seq < list[j].Seq })
	if len(list) > limit {
		list = list[len(list)-limit:]
	}
	return list, nil
}

type collected struct {
	list []model.Message
	err  error
}

func (r *MessageRepo) collect(ctx context.Context, op string, keep func(model.Message) bool) collected {
	out := collected{list: make([]model.Message, 0)}
	out.err = r.s.run(ctx, op, func(*txState) error {
		for _, m := range r.s.messages {
			if keep(m) {
				out.list = append(out.list, m)
			}
		}
		return nil
	})
	return out
}
