package handlers

import (
	"net/http"

	authsvc "github.com/nakuljn/ember-dating/internal/services/auth"
	quotasvc "github.com/nakuljn/ember-dating/internal/services/quota"
	"github.com/nakuljn/ember-dating/internal/transport/http/dto"
	httperrors "github.com/nakuljn/ember-dating/internal/transport/http/errors"
)

type QuotaHandler struct {
	service *quotasvc.Service
}

func NewQuotaHandler(service *quotasvc.Service) *QuotaHandler {
	return &QuotaHandler{service: service}
}

func (h *QuotaHandler) Handle(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "QUOTA_SERVICE_UNAVAILABLE", "quota service is unavailable")
		return
	}

	snapshot, err := h.service.Snapshot(r.Context(), identity.UserID)
	if err != nil {
		writeServiceError(w, err, "failed to load quota")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.QuotaResponse{
		Remaining: snapshot.Remaining,
		Limit:     snapshot.Limit,
		ResetsAt:  snapshot.ResetsAt.UTC(),
	})
}
