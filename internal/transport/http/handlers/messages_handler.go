package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	authsvc "github.com/nakuljn/ember-dating/internal/services/auth"
	chatsvc "github.com/nakuljn/ember-dating/internal/services/chat"
	"github.com/nakuljn/ember-dating/internal/transport/http/dto"
	httperrors "github.com/nakuljn/ember-dating/internal/transport/http/errors"
)

// MessagesHandler is the HTTP fallback for clients without a live channel.
type MessagesHandler struct {
	chat *chatsvc.Manager
}

func NewMessagesHandler(chat *chatsvc.Manager) *MessagesHandler {
	return &MessagesHandler{chat: chat}
}

func (h *MessagesHandler) History(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.chat == nil {
		writeInternal(w, "CHAT_SERVICE_UNAVAILABLE", "chat service is unavailable")
		return
	}

	query := r.URL.Query()
	items, err := h.chat.History(
		r.Context(),
		identity.UserID,
		chi.URLParam(r, "id"),
		parseInt64OrDefault(query.Get("before_seq"), 0),
		parseIntOrDefault(query.Get("limit"), 0),
	)
	if err != nil {
		writeServiceError(w, err, "failed to load messages")
		return
	}

	resp := make([]dto.MessageResponse, 0, len(items))
	for _, msg := range items {
		resp = append(resp, dto.MapMessage(msg))
	}
	httperrors.Write(w, http.StatusOK, dto.MessagesResponse{Items: resp})
}

func (h *MessagesHandler) Send(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.chat == nil {
		writeInternal(w, "CHAT_SERVICE_UNAVAILABLE", "chat service is unavailable")
		return
	}

	var req dto.SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	msg, err := h.chat.Send(r.Context(), identity.UserID, chi.URLParam(r, "id"), req.Content)
	if err != nil {
		writeServiceError(w, err, "failed to send message")
		return
	}
	httperrors.Write(w, http.StatusCreated, dto.MapMessage(msg))
}

func (h *MessagesHandler) Read(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.chat == nil {
		writeInternal(w, "CHAT_SERVICE_UNAVAILABLE", "chat service is unavailable")
		return
	}

	msg, err := h.chat.MarkRead(r.Context(), identity.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "failed to mark message read")
		return
	}
	httperrors.Write(w, http.StatusOK, dto.MapMessage(msg))
}

// Delete withdraws a message the caller sent. The row keeps its seq and
// loses its content.
func (h *MessagesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.chat == nil {
		writeInternal(w, "CHAT_SERVICE_UNAVAILABLE", "chat service is unavailable")
		return
	}

	msg, err := h.chat.Delete(r.Context(), identity.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "failed to delete message")
		return
	}
	httperrors.Write(w, http.StatusOK, dto.MapMessage(msg))
}
