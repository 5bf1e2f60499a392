package candidates

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nakuljn/ember-dating/internal/domain/apperr"
	"github.com/nakuljn/ember-dating/internal/domain/model"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

var ErrInvalidCursor = fmt.Errorf("%w: invalid cursor", apperr.ErrValidation)

type Repository interface {
	ListCandidates(ctx context.Context, query model.CandidateQuery) ([]model.Candidate, error)
}

type Page struct {
	Items      []model.Candidate
	NextCursor string
}

func (p Page) UserIDs() []int64 {
	ids := make([]int64, 0, len(p.Items))
	for _, item := range p.Items {
		ids = append(ids, item.UserID)
	}
	return ids
}

type pageCursor struct {
	CreatedAt int64 `json:"c"`
	UserID    int64 `json:"u"`
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NextCandidates returns one page of users the viewer may swipe on, newest
// accounts first. The cursor is opaque to clients.
func (s *Service) NextCandidates(ctx context.Context, userID int64, excludeSwiped bool, cursor string, limit int) (Page, error) {
	if userID <= 0 {
		return Page{}, apperr.ErrValidation
	}
	if s.repo == nil {
		return Page{}, fmt.Errorf("candidate repository is nil")
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	decoded, hasCursor, err := decodeCursor(cursor)
	if err != nil {
		return Page{}, err
	}

	query := model.CandidateQuery{
		ViewerUserID:  userID,
		ExcludeSwiped: excludeSwiped,
		HasCursor:     hasCursor,
		Limit:         limit,
	}
	if hasCursor {
		query.CursorCreatedAt = time.UnixMicro(decoded.CreatedAt).UTC()
		query.CursorUserID = decoded.UserID
	}

	items, err := s.repo.ListCandidates(ctx, query)
	if err != nil {
		return Page{}, fmt.Errorf("list candidates: %w", err)
	}

	page := Page{Items: items}
	if len(items) == limit {
		last := items[len(items)-1]
		next, err := encodeCursor(pageCursor{
			CreatedAt: last.CreatedAt.UTC().UnixMicro(),
			UserID:    last.UserID,
		})
		if err != nil {
			return Page{}, err
		}
		page.NextCursor = next
	}
	return page, nil
}

func decodeCursor(raw string) (pageCursor, bool, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return pageCursor{}, false, nil
	}

	data, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return pageCursor{}, false, ErrInvalidCursor
	}

	var cursor pageCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return pageCursor{}, false, ErrInvalidCursor
	}
	if cursor.CreatedAt <= 0 || cursor.UserID <= 0 {
		return pageCursor{}, false, ErrInvalidCursor
	}
	return cursor, true, nil
}

func encodeCursor(cursor pageCursor) (string, error) {
	payload, err := json.Marshal(cursor)
	if err != nil {
		return "", fmt.Errorf("marshal candidate cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(payload), nil
}
