package handlers

import (
	"net/http"

	"github.com/nakuljn/ember-dating/internal/domain/enums"
	authsvc "github.com/nakuljn/ember-dating/internal/services/auth"
	swipesvc "github.com/nakuljn/ember-dating/internal/services/swipes"
	"github.com/nakuljn/ember-dating/internal/transport/http/dto"
	httperrors "github.com/nakuljn/ember-dating/internal/transport/http/errors"
)

type SwipeHandler struct {
	service *swipesvc.Service
}

func NewSwipeHandler(service *swipesvc.Service) *SwipeHandler {
	return &SwipeHandler{service: service}
}

func (h *SwipeHandler) Handle(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "SWIPE_SERVICE_UNAVAILABLE", "swipe service is unavailable")
		return
	}

	var req dto.SwipeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	decision, ok := enums.ParseDecision(req.Decision)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "decision must be like or pass")
		return
	}

	out, err := h.service.RecordSwipe(r.Context(), identity.UserID, req.TargetID, decision)
	if err != nil {
		writeServiceError(w, err, "failed to process swipe")
		return
	}

	resp := dto.SwipeResponse{
		Outcome:   string(out.Result),
		Matched:   out.Matched,
		MatchID:   out.MatchID,
		Remaining: out.Remaining,
	}
	status := http.StatusOK
	switch out.Result {
	case enums.SwipeResultQuotaExceeded:
		status, resp.Code = http.StatusTooManyRequests, "QUOTA_EXCEEDED"
	case enums.SwipeResultInvalidTarget:
		status, resp.Code = http.StatusBadRequest, "INVALID_TARGET"
	}
	httperrors.Write(w, status, resp)
}
