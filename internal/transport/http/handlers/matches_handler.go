package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	authsvc "github.com/nakuljn/ember-dating/internal/services/auth"
	matchessvc "github.com/nakuljn/ember-dating/internal/services/matches"
	"github.com/nakuljn/ember-dating/internal/transport/http/dto"
	httperrors "github.com/nakuljn/ember-dating/internal/transport/http/errors"
)

type MatchesHandler struct {
	service *matchessvc.Service
}

func NewMatchesHandler(service *matchessvc.Service) *MatchesHandler {
	return &MatchesHandler{service: service}
}

func (h *MatchesHandler) Handle(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "MATCHES_SERVICE_UNAVAILABLE", "matches service is unavailable")
		return
	}

	items, err := h.service.List(r.Context(), identity.UserID, parseIntOrDefault(r.URL.Query().Get("limit"), 100))
	if err != nil {
		writeServiceError(w, err, "failed to load matches")
		return
	}

	resp := make([]dto.MatchItemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, dto.MapMatch(item.Match, item.PeerID))
	}
	httperrors.Write(w, http.StatusOK, dto.MatchesResponse{Items: resp})
}

func (h *MatchesHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "MATCHES_SERVICE_UNAVAILABLE", "matches service is unavailable")
		return
	}

	match, err := h.service.Get(r.Context(), identity.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "failed to load match")
		return
	}
	httperrors.Write(w, http.StatusOK, dto.MapMatch(match, match.Peer(identity.UserID)))
}
