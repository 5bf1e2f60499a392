package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nakuljn/ember-dating/internal/domain/apperr"
	"github.com/nakuljn/ember-dating/internal/pkg/validate"
	authsvc "github.com/nakuljn/ember-dating/internal/services/auth"
	chatsvc "github.com/nakuljn/ember-dating/internal/services/chat"
	"github.com/nakuljn/ember-dating/internal/transport/http/dto"
	httperrors "github.com/nakuljn/ember-dating/internal/transport/http/errors"
)

type AuthHandler struct {
	service *authsvc.Service
}

func NewAuthHandler(service *authsvc.Service) *AuthHandler {
	return &AuthHandler{service: service}
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}

	var req dto.RefreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}
	if !validate.Required(req.RefreshToken) {
		writeBadRequest(w, "VALIDATION_ERROR", "refresh_token is required")
		return
	}

	res, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		handleAuthError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.AuthTokensResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresInSec: max(0, int64(time.Until(res.AccessExpires).Seconds())),
		UserID:       res.UserID,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	if err := h.service.Logout(r.Context(), identity.SID); err != nil {
		handleAuthError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.OKResponse{OK: true})
}

func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	if err := h.service.LogoutAll(r.Context(), identity.UserID); err != nil {
		handleAuthError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.OKResponse{OK: true})
}

func handleAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authsvc.ErrInvalidInput):
		writeBadRequest(w, "INVALID_REQUEST", "request validation failed")
	case errors.Is(err, authsvc.ErrUnauthorized), errors.Is(err, apperr.ErrUnauthenticated):
		writeUnauthorized(w, "UNAUTHORIZED", "authentication failed")
	default:
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}

// writeServiceError maps the shared error taxonomy onto the JSON envelope.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	var tooFast *chatsvc.TooFastError
	switch {
	case errors.As(err, &tooFast):
		httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
			Code:          "TOO_FAST",
			Message:       "too many messages, slow down",
			RetryAfterSec: tooFast.RetryAfterSec,
		})
	case errors.Is(err, apperr.ErrUnauthenticated):
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
	case errors.Is(err, apperr.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", validationMessage(err))
	case errors.Is(err, apperr.ErrNotAMember):
		httperrors.Write(w, http.StatusForbidden, httperrors.APIError{Code: "NOT_A_MEMBER", Message: "not a member of this match"})
	case errors.Is(err, apperr.ErrNotFound):
		httperrors.Write(w, http.StatusNotFound, httperrors.APIError{Code: "NOT_FOUND", Message: "not found"})
	case apperr.IsTransient(err):
		httperrors.Write(w, http.StatusServiceUnavailable, httperrors.APIError{Code: "TEMP_UNAVAILABLE", Message: "temporarily unavailable, retry later"})
	default:
		writeInternal(w, "INTERNAL_ERROR", fallback)
	}
}

func validationMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), apperr.ErrValidation.Error()+": ")
	if msg == "" || msg == apperr.ErrValidation.Error() {
		return "invalid request"
	}
	return msg
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{Code: code, Message: message})
}

func writeUnauthorized(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{Code: code, Message: message})
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{Code: code, Message: message})
}

func parseIntOrDefault(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return value
}

func parseInt64OrDefault(raw string, fallback int64) int64 {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return fallback
	}
	return value
}
