package handlers

import (
	"net/http"
	"strconv"
	"strings"

	authsvc "github.com/nakuljn/ember-dating/internal/services/auth"
	candidatesvc "github.com/nakuljn/ember-dating/internal/services/candidates"
	"github.com/nakuljn/ember-dating/internal/transport/http/dto"
	httperrors "github.com/nakuljn/ember-dating/internal/transport/http/errors"
)

type CandidateHandler struct {
	service *candidatesvc.Service
}

func NewCandidateHandler(service *candidatesvc.Service) *CandidateHandler {
	return &CandidateHandler{service: service}
}

func (h *CandidateHandler) Handle(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "CANDIDATE_SERVICE_UNAVAILABLE", "candidate service is unavailable")
		return
	}

	query := r.URL.Query()
	excludeSwiped := true
	if raw := strings.TrimSpace(query.Get("exclude_swiped")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeBadRequest(w, "VALIDATION_ERROR", "exclude_swiped must be a boolean")
			return
		}
		excludeSwiped = parsed
	}

	page, err := h.service.NextCandidates(
		r.Context(),
		identity.UserID,
		excludeSwiped,
		query.Get("cursor"),
		parseIntOrDefault(query.Get("limit"), 0),
	)
	if err != nil {
		writeServiceError(w, err, "failed to load candidates")
		return
	}

	items := make([]dto.CandidateItem, 0, len(page.Items))
	for _, c := range page.Items {
		items = append(items, dto.CandidateItem{UserID: c.UserID, DisplayName: c.DisplayName})
	}
	httperrors.Write(w, http.StatusOK, dto.CandidatesResponse{
		Items:      items,
		NextCursor: page.NextCursor,
	})
}
