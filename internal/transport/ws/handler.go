// Package ws serves the persistent chat channel over gorilla/websocket.
package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nakuljn/ember-dating/internal/pkg/validate"
	authsvc "github.com/nakuljn/ember-dating/internal/services/auth"
	chatsvc "github.com/nakuljn/ember-dating/internal/services/chat"
	httperrors "github.com/nakuljn/ember-dating/internal/transport/http/errors"
)

const (
	defaultWriteWait       = 10 * time.Second
	defaultPongWait        = 60 * time.Second
	defaultMaxMessageBytes = 8 << 10
	replyBuffer            = 16
)

type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, accessToken string) (authsvc.Identity, error)
}

type Config struct {
	WriteWait       time.Duration
	PongWait        time.Duration
	MaxMessageBytes int64
	AllowedOrigins  []string
}

type Handler struct {
	chat     *chatsvc.Manager
	auth     IdentityResolver
	cfg      Config
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewHandler(chat *chatsvc.Manager, auth IdentityResolver, cfg Config, log *zap.Logger) *Handler {
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaultWriteWait
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaultPongWait
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = defaultMaxMessageBytes
	}
	if log == nil {
		log = zap.NewNop()
	}

	h := &Handler{chat: chat, auth: auth, cfg: cfg, log: log}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}

// ServeHTTP authenticates, upgrades and then runs the read pump until the
// connection ends. The write pump runs in its own goroutine.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.chat == nil || h.auth == nil {
		httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{
			Code:    "CHAT_SERVICE_UNAVAILABLE",
			Message: "chat service is unavailable",
		})
		return
	}

	token, ok := accessToken(r)
	if !ok {
		httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{Code: "UNAUTHORIZED", Message: "missing access token"})
		return
	}
	identity, err := h.auth.ResolveIdentity(r.Context(), token)
	if err != nil {
		h.log.Debug("ws auth failed", zap.Error(err))
		httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{Code: "UNAUTHORIZED", Message: "invalid access token"})
		return
	}

	// The request context ends with ServeHTTP; the pumps get their own.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	// Register before upgrading so nothing sent after the handshake can miss
	// the session.
	session, err := h.chat.Connect(ctx, identity.UserID)
	if err != nil {
		h.log.Warn("ws connect failed", zap.Int64("user_id", identity.UserID), zap.Error(err))
		httperrors.Write(w, http.StatusServiceUnavailable, httperrors.APIError{
			Code:    "TEMP_UNAVAILABLE",
			Message: "chat backlog is unavailable, retry later",
		})
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		session.Close()
		h.log.Debug("ws upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		conn:    conn,
		session: session,
		chat:    h.chat,
		cfg:     h.cfg,
		log:     h.log.With(zap.Int64("user_id", identity.UserID)),
		replies: make(chan ServerFrame, replyBuffer),
	}
	go c.writePump(ctx)
	c.readPump(ctx)
}

func accessToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(r.Header.Get("Authorization")), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && strings.TrimSpace(parts[1]) != "" {
		return strings.TrimSpace(parts[1]), true
	}
	if token := r.URL.Query().Get("access_token"); validate.Required(token) {
		return strings.TrimSpace(token), true
	}
	return "", false
}
