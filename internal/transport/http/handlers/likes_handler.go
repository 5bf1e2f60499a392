package handlers

import (
	"net/http"

	authsvc "github.com/nakuljn/ember-dating/internal/services/auth"
	matchessvc "github.com/nakuljn/ember-dating/internal/services/matches"
	"github.com/nakuljn/ember-dating/internal/transport/http/dto"
	httperrors "github.com/nakuljn/ember-dating/internal/transport/http/errors"
)

type LikesHandler struct {
	service *matchessvc.Service
}

func NewLikesHandler(service *matchessvc.Service) *LikesHandler {
	return &LikesHandler{service: service}
}

// Received lists users who liked the caller and are still waiting for an
// answer.
func (h *LikesHandler) Received(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "LIKES_SERVICE_UNAVAILABLE", "likes service is unavailable")
		return
	}

	rows, err := h.service.IncomingLikes(r.Context(), identity.UserID, parseIntOrDefault(r.URL.Query().Get("limit"), 50))
	if err != nil {
		writeServiceError(w, err, "failed to load incoming likes")
		return
	}

	items := make([]dto.IncomingLikeResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, dto.IncomingLikeResponse{UserID: row.ActorUserID, LikedAt: row.UpdatedAt})
	}
	httperrors.Write(w, http.StatusOK, dto.IncomingLikesResponse{Items: items})
}
