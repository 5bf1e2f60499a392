package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nakuljn/ember-dating/internal/domain/model"
	memrepo "github.com/nakuljn/ember-dating/internal/repo/memory"
	authsvc "github.com/nakuljn/ember-dating/internal/services/auth"
	chatsvc "github.com/nakuljn/ember-dating/internal/services/chat"
)

type messagesFixture struct {
	router  http.Handler
	matchID string
	ann     int64
	ben     int64
	eve     int64
}

func newMessagesFixture(t *testing.T) *messagesFixture {
	t.Helper()
	ctx := context.Background()
	store := memrepo.NewStore()

	var ids []int64
	for _, name := range []string{"ann", "ben", "eve"} {
		u, err := store.Users().Create(ctx, model.User{DisplayName: name})
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		ids = append(ids, u.ID)
	}
	match, _, err := store.Matches().CreateOrGet(ctx, ids[0], ids[1], time.Now())
	if err != nil {
		t.Fatalf("create match: %v", err)
	}

	manager := chatsvc.NewManager(chatsvc.Dependencies{
		Tx:            store,
		Matches:       store.Matches(),
		Messages:      store.Messages(),
		Notifications: store.Notifications(),
		Users:         store.Users(),
	}, chatsvc.Config{MaxContentRunes: 10})
	t.Cleanup(func() { _ = manager.Shutdown(context.Background()) })

	h := NewMessagesHandler(manager)
	r := chi.NewRouter()
	r.Get("/matches/{id}/messages", h.History)
	r.Post("/matches/{id}/messages", h.Send)
	r.Post("/messages/{id}/read", h.Read)
	r.Delete("/messages/{id}", h.Delete)

	return &messagesFixture{router: r, matchID: match.ID, ann: ids[0], ben: ids[1], eve: ids[2]}
}

func (f *messagesFixture) do(method, path string, userID int64, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(authsvc.WithIdentity(req.Context(), authsvc.Identity{UserID: userID, SID: "sid"}))
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func TestMessagesHandlerSendAndRead(t *testing.T) {
	f := newMessagesFixture(t)

	rr := f.do(http.MethodPost, "/matches/"+f.matchID+"/messages", f.ann, `{"content":"hello"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusCreated)
	}
	var sent struct {
		ID  string `json:"id"`
		Seq int64  `json:"seq"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &sent); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if sent.ID == "" || sent.Seq != 1 {
		t.Fatalf("unexpected message: %+v", sent)
	}

	if rr := f.do(http.MethodPost, "/messages/"+sent.ID+"/read", f.ann, ""); rr.Code != http.StatusForbidden {
		t.Fatalf("sender marking read: got %d want %d", rr.Code, http.StatusForbidden)
	}

	first := f.do(http.MethodPost, "/messages/"+sent.ID+"/read", f.ben, "")
	second := f.do(http.MethodPost, "/messages/"+sent.ID+"/read", f.ben, "")
	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("mark read: got %d and %d", first.Code, second.Code)
	}
	var a, b struct {
		ReadAt time.Time `json:"read_at"`
	}
	_ = json.Unmarshal(first.Body.Bytes(), &a)
	_ = json.Unmarshal(second.Body.Bytes(), &b)
	if a.ReadAt.IsZero() || !a.ReadAt.Equal(b.ReadAt) {
		t.Fatalf("read_at must be set once: %v vs %v", a.ReadAt, b.ReadAt)
	}
}

func TestMessagesHandlerRejections(t *testing.T) {
	f := newMessagesFixture(t)
	path := "/matches/" + f.matchID + "/messages"

	cases := []struct {
		name   string
		method string
		user   int64
		body   string
		status int
	}{
		{"outsider send", http.MethodPost, f.eve, `{"content":"hi"}`, http.StatusForbidden},
		{"outsider history", http.MethodGet, f.eve, "", http.StatusForbidden},
		{"empty content", http.MethodPost, f.ann, `{"content":"   "}`, http.StatusBadRequest},
		{"too long", http.MethodPost, f.ann, `{"content":"way past ten runes"}`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, f.ann, `{"text":"hi"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rr := f.do(tc.method, path, tc.user, tc.body); rr.Code != tc.status {
				t.Fatalf("unexpected status: got %d want %d (%s)", rr.Code, tc.status, rr.Body.String())
			}
		})
	}

	if rr := f.do(http.MethodGet, "/matches/missing/messages", f.ann, ""); rr.Code != http.StatusForbidden {
		t.Fatalf("unknown match: got %d want %d", rr.Code, http.StatusForbidden)
	}
}

func TestMessagesHandlerDelete(t *testing.T) {
	f := newMessagesFixture(t)

	rr := f.do(http.MethodPost, "/matches/"+f.matchID+"/messages", f.ann, `{"content":"oops"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("send: got %d", rr.Code)
	}
	var sent struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &sent)

	if rr := f.do(http.MethodDelete, "/messages/"+sent.ID, f.ben, ""); rr.Code != http.StatusForbidden {
		t.Fatalf("recipient delete: got %d want %d", rr.Code, http.StatusForbidden)
	}
	if rr := f.do(http.MethodDelete, "/messages/"+sent.ID, f.ann, ""); rr.Code != http.StatusOK {
		t.Fatalf("sender delete: got %d want %d", rr.Code, http.StatusOK)
	}

	rr = f.do(http.MethodGet, "/matches/"+f.matchID+"/messages", f.ben, "")
	var history struct {
		Items []struct {
			Seq       int64      `json:"seq"`
			Content   string     `json:"content"`
			DeletedAt *time.Time `json:"deleted_at"`
		} `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history.Items) != 1 {
		t.Fatalf("deleted message must stay in history: %+v", history.Items)
	}
	if item := history.Items[0]; item.Seq != 1 || item.Content != "" || item.DeletedAt == nil {
		t.Fatalf("unexpected deleted item: %+v", item)
	}
}
