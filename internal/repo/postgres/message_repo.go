package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nakuljn/ember-dating/internal/domain/apperr"
	"github.com/nakuljn/ember-dating/internal/domain/model"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

const messageColumns = `id::text, match_id::text, sender_id, recipient_id, seq, content, sent_at, delivered_at, read_at, deleted_at`

func scanMessage(row pgx.Row) (model.Message, error) {
	var m model.Message
	err := row.Scan(&m.ID, &m.MatchID, &m.SenderID, &m.RecipientID, &m.Seq, &m.Content, &m.SentAt, &m.DeliveredAt, &m.ReadAt, &m.DeletedAt)
	return m, err
}

func (r *MessageRepo) Insert(ctx context.Context, msg model.Message) error {
	if msg.ID == "" || msg.MatchID == "" || msg.SenderID <= 0 || msg.RecipientID <= 0 || msg.Seq <= 0 {
		return fmt.Errorf("invalid message payload")
	}
	q, err := conn(ctx, r.pool)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, `
INSERT INTO messages (
	id,
	match_id,
	sender_id,
	recipient_id,
	seq,
	content,
	sent_at
) VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING
`, msg.ID, msg.MatchID, msg.SenderID, msg.RecipientID, msg.Seq, msg.Content, msg.SentAt.UTC())
	if err != nil {
		return wrapErr("insert message", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("insert message %s: %w", msg.ID, apperr.ErrDuplicate)
	}
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, messageID string) (model.Message, error) {
	if _, err := uuid.Parse(strings.TrimSpace(messageID)); err != nil {
		return model.Message{}, apperr.ErrNotFound
	}
	q, err := conn(ctx, r.pool)
	if err != nil {
		return model.Message{}, err
	}

	msg, err := scanMessage(q.QueryRow(ctx, `
SELECT `+messageColumns+`
FROM messages
WHERE id = $1
`, messageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Message{}, apperr.ErrNotFound
		}
		return model.Message{}, wrapErr("get message", err)
	}
	return msg, nil
}

// MarkRead sets read_at once. A repeated call returns the stored message and
// changed=false.
func (r *MessageRepo) MarkRead(ctx context.Context, messageID string, readerID int64, at time.Time) (model.Message, bool, error) {
	if readerID <= 0 {
		return model.Message{}, false, fmt.Errorf("invalid read receipt payload")
	}
	if _, err := uuid.Parse(strings.TrimSpace(messageID)); err != nil {
		return model.Message{}, false, apperr.ErrNotFound
	}
	q, err := conn(ctx, r.pool)
	if err != nil {
		return model.Message{}, false, err
	}

	msg, err := scanMessage(q.QueryRow(ctx, `
UPDATE messages
SET read_at = GREATEST($3, sent_at)
WHERE id = $1 AND recipient_id = $2 AND read_at IS NULL
RETURNING `+messageColumns, messageID, readerID, at.UTC()))
	if err == nil {
		return msg, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Message{}, false, wrapErr("mark message read", err)
	}

	msg, err = r.GetByID(ctx, messageID)
	if err != nil {
		return model.Message{}, false, err
	}
	if msg.RecipientID != readerID {
		return model.Message{}, false, apperr.ErrNotAMember
	}
	return msg, false, nil
}

func (r *MessageRepo) MarkDelivered(ctx context.Context, messageIDs []string, at time.Time) error {
	if len(messageIDs) == 0 {
		return nil
	}
	q, err := conn(ctx, r.pool)
	if err != nil {
		return err
	}

	if _, err := q.Exec(ctx, `
UPDATE messages
SET delivered_at = $2
WHERE id = ANY($1::uuid[]) AND delivered_at IS NULL
`, messageIDs, at.UTC()); err != nil {
		return wrapErr("mark messages delivered", err)
	}
	return nil
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

	var (
		afterSentAt  *time.Time
		afterMatchID *string
	)
	if !after.IsZero() {
		ts := after.SentAt.UTC()
		afterSentAt, afterMatchID = &ts, &after.MatchID
	}

	return r.list(ctx, "list undelivered messages", `
SELECT `+messageColumns+`
FROM messages
WHERE recipient_id = $1
	AND delivered_at IS NULL
	AND ($2::timestamptz IS NULL OR (sent_at, match_id, seq) > ($2::timestamptz, $3::uuid, $4::bigint))
ORDER BY sent_at ASC, match_id ASC, seq ASC
LIMIT $5
`, recipientID, afterSentAt, afterMatchID, after.Seq, limit)
}

// SoftDelete sets deleted_at once on a message owned by senderID. A repeated
// call returns the stored message and changed=false.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID string, senderID int64, at time.Time) (model.Message, bool, error) {
	if senderID <= 0 {
		return model.Message{}, false, fmt.Errorf("invalid delete payload")
	}
	if _, err := uuid.Parse(strings.TrimSpace(messageID)); err != nil {
		return model.Message{}, false, apperr.ErrNotFound
	}
	q, err := conn(ctx, r.pool)
	if err != nil {
		return model.Message{}, false, err
	}

	msg, err := scanMessage(q.QueryRow(ctx, `
UPDATE messages
SET deleted_at = GREATEST($3, sent_at)
WHERE id = $1 AND sender_id = $2 AND deleted_at IS NULL
RETURNING `+messageColumns, messageID, senderID, at.UTC()))
	if err == nil {
		return msg, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Message{}, false, wrapErr("delete message", err)
	}

	msg, err = r.GetByID(ctx, messageID)
	if err != nil {
		return model.Message{}, false, err
	}
	if msg.SenderID != senderID {
		return model.Message{}, false, apperr.ErrNotAMember
	}
	return msg, false, nil
}

// ListByMatch pages history backwards from beforeSeq and returns the page
// oldest first. beforeSeq <= 0 starts at the newest message.
func (r *MessageRepo) ListByMatch(ctx context.Context, matchID string, beforeSeq int64, limit int) ([]model.Message, error) {
	if strings.TrimSpace(matchID) == "" {
		return nil, fmt.Errorf("invalid match id")
	}
	if limit <= 0 {
		limit = 50
	}

	return r.list(ctx, "list match messages", `
SELECT * FROM (
	SELECT `+messageColumns+`
	FROM messages
	WHERE match_id = $1 AND ($2 <= 0 OR seq < $2)
	ORDER BY seq DESC
	LIMIT $3
) page
ORDER BY seq ASC
`, matchID, beforeSeq, limit)
}

func (r *MessageRepo) list(ctx context.Context, op, sql string, args ...any) ([]model.Message, error) {
	q, err := conn(ctx, r.pool)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()

	items := make([]model.Message, 0)
	for rows.Next() {
		item, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, wrapErr(op, rows.Err())
	}
	return items, nil
}
