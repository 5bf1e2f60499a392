package apiapp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nakuljn/ember-dating/internal/config"
	"github.com/nakuljn/ember-dating/internal/domain/model"
)

type appFixture struct {
	app    *App
	server *httptest.Server
}

func newAppFixture(t *testing.T) *appFixture {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := config.Default()
	cfg.Storage.Driver = config.StorageDriverMemory
	cfg.Redis.Addr = mr.Addr()
	cfg.Quota.DefaultDailyLimit = 2

	ctx, cancel := context.WithCancel(context.Background())
	app, err := New(ctx, cfg, zap.NewNop())
	if err != nil {
		cancel()
		t.Fatalf("new app: %v", err)
	}
	if err := app.Start(ctx); err != nil {
		cancel()
		t.Fatalf("start app: %v", err)
	}
	server := httptest.NewServer(app.Handler())

	t.Cleanup(func() {
		server.Close()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = app.Shutdown(shutdownCtx)
		cancel()
	})
	return &appFixture{app: app, server: server}
}

func (f *appFixture) user(t *testing.T, name string) (int64, string) {
	t.Helper()
	ctx := context.Background()
	u, err := f.app.users.Create(ctx, model.User{DisplayName: name})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	tokens, err := f.app.auth.IssueForUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}
	return u.ID, tokens.AccessToken
}

func (f *appFixture) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, f.server.URL+path, &payload)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

type swipeBody struct {
	Outcome   string `json:"outcome"`
	Code      string `json:"code"`
	Matched   bool   `json:"matched"`
	MatchID   string `json:"match_id"`
	Remaining int    `json:"remaining"`
}

type frame struct {
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func TestHealthzAndMetricsArePublic(t *testing.T) {
	f := newAppFixture(t)

	var health map[string]string
	if code := f.do(t, http.MethodGet, "/healthz", "", nil, &health); code != http.StatusOK {
		t.Fatalf("healthz status: got %d", code)
	}
	if health["status"] != "ok" {
		t.Fatalf("unexpected health body: %v", health)
	}

	resp, err := f.server.Client().Get(f.server.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status: got %d", resp.StatusCode)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newAppFixture(t)

	if code := f.do(t, http.MethodGet, "/quota", "", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("quota without token: got %d want %d", code, http.StatusUnauthorized)
	}
	if code := f.do(t, http.MethodPost, "/swipe", "garbage", map[string]any{"target_id": 1, "decision": "like"}, nil); code != http.StatusUnauthorized {
		t.Fatalf("swipe with bad token: got %d want %d", code, http.StatusUnauthorized)
	}
}

func TestSwipeQuotaIsEnforcedOverHTTP(t *testing.T) {
	f := newAppFixture(t)
	_, token := f.user(t, "ann")
	b, _ := f.user(t, "ben")
	c, _ := f.user(t, "cat")
	d, _ := f.user(t, "dan")

	for i, target := range []int64{b, c} {
		var out swipeBody
		code := f.do(t, http.MethodPost, "/swipe", token, map[string]any{"target_id": target, "decision": "like"}, &out)
		if code != http.StatusOK || out.Outcome != "Recorded" || out.Remaining != 1-i {
			t.Fatalf("like %d: status=%d body=%+v", i, code, out)
		}
	}

	var denied swipeBody
	if code := f.do(t, http.MethodPost, "/swipe", token, map[string]any{"target_id": d, "decision": "like"}, &denied); code != http.StatusTooManyRequests {
		t.Fatalf("third like: got %d want %d", code, http.StatusTooManyRequests)
	}
	if denied.Code != "QUOTA_EXCEEDED" || denied.Remaining != 0 {
		t.Fatalf("unexpected denial body: %+v", denied)
	}

	var passed swipeBody
	if code := f.do(t, http.MethodPost, "/swipe", token, map[string]any{"target_id": d, "decision": "dislike"}, &passed); code != http.StatusOK {
		t.Fatalf("pass after exhaustion: got %d", code)
	}

	var quota struct {
		Remaining int       `json:"remaining"`
		ResetsAt  time.Time `json:"resets_at"`
	}
	if code := f.do(t, http.MethodGet, "/quota", token, nil, &quota); code != http.StatusOK {
		t.Fatalf("quota status: got %d", code)
	}
	if quota.Remaining != 0 || !quota.ResetsAt.After(time.Now()) {
		t.Fatalf("unexpected quota: %+v", quota)
	}

	var self swipeBody
	if code := f.do(t, http.MethodPost, "/swipe", token, map[string]any{"target_id": 9999, "decision": "pass"}, &self); code != http.StatusBadRequest || self.Code != "INVALID_TARGET" {
		t.Fatalf("unknown target: status=%d body=%+v", code, self)
	}
}

func TestMutualLikeNotifiesAndDeliversChat(t *testing.T) {
	f := newAppFixture(t)
	ann, annToken := f.user(t, "ann")
	ben, benToken := f.user(t, "ben")

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/chat?access_token=" + benToken
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	defer conn.Close()

	var first swipeBody
	if code := f.do(t, http.MethodPost, "/swipe", annToken, map[string]any{"target_id": ben, "decision": "like"}, &first); code != http.StatusOK || first.Matched {
		t.Fatalf("first like: status=%d body=%+v", code, first)
	}

	var likes struct {
		Items []struct {
			UserID int64 `json:"user_id"`
		} `json:"items"`
	}
	if code := f.do(t, http.MethodGet, "/likes/received", benToken, nil, &likes); code != http.StatusOK {
		t.Fatalf("likes received: got %d", code)
	}
	if len(likes.Items) != 1 || likes.Items[0].UserID != ann {
		t.Fatalf("unexpected incoming likes: %+v", likes)
	}

	var second swipeBody
	if code := f.do(t, http.MethodPost, "/swipe", benToken, map[string]any{"target_id": ann, "decision": "like"}, &second); code != http.StatusOK {
		t.Fatalf("reciprocal like: got %d", code)
	}
	if !second.Matched || second.MatchID == "" {
		t.Fatalf("expected a match: %+v", second)
	}

	matchFrame := readFrame(t, conn)
	if matchFrame.EventType != "match" || !strings.Contains(string(matchFrame.Payload), second.MatchID) {
		t.Fatalf("unexpected match frame: %s %s", matchFrame.EventType, matchFrame.Payload)
	}

	var sent struct {
		ID  string `json:"id"`
		Seq int64  `json:"seq"`
	}
	path := "/matches/" + second.MatchID + "/messages"
	if code := f.do(t, http.MethodPost, path, annToken, map[string]string{"content": "hi ben"}, &sent); code != http.StatusCreated {
		t.Fatalf("send message: got %d", code)
	}
	if sent.Seq != 1 {
		t.Fatalf("unexpected seq: %d", sent.Seq)
	}

	msgFrame := readFrame(t, conn)
	if msgFrame.EventType != "message" || !strings.Contains(string(msgFrame.Payload), "hi ben") {
		t.Fatalf("unexpected message frame: %s %s", msgFrame.EventType, msgFrame.Payload)
	}

	var history struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	if code := f.do(t, http.MethodGet, path, benToken, nil, &history); code != http.StatusOK {
		t.Fatalf("history: got %d", code)
	}
	if len(history.Items) != 1 || history.Items[0].ID != sent.ID {
		t.Fatalf("unexpected history: %+v", history)
	}

	_, outsiderToken := f.user(t, "eve")
	if code := f.do(t, http.MethodGet, path, outsiderToken, nil, nil); code != http.StatusForbidden {
		t.Fatalf("outsider history: got %d want %d", code, http.StatusForbidden)
	}

	if code := f.do(t, http.MethodPost, "/messages/"+sent.ID+"/read", benToken, nil, nil); code != http.StatusOK {
		t.Fatalf("mark read: got %d", code)
	}
}
