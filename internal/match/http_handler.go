package match

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/rkatarai/hayaoshi/internal/store"
	httperrors "github.com/rkatarai/hayaoshi/pkg/http/errors"
)

// HTTPHandler exposes the read-only session endpoints. Gameplay itself is
// WebSocket-only; this exists for lobby screens and debugging.
type HTTPHandler struct {
	service *Service
	logger  zerolog.Logger
}

// NewHTTPHandler creates the read-only session HTTP handler.
func NewHTTPHandler(service *Service, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{service: service, logger: logger}
}

// HandleGetSession serves GET /v1/sessions/{id} with a spectator view of the
// session. The answer key is never included.
func (h *HTTPHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeInvalidRequest, "method not allowed")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeMissingField, "session id is required")
		return
	}

	sess, err := h.service.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		httperrors.RespondNotFound(w, httperrors.ErrCodeSessionNotFound, "session not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("session_id", id).Msg("session fetch failed")
		httperrors.RespondInternalError(w, "could not fetch session")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(sessionView(sess, "")); err != nil {
		h.logger.Warn().Err(err).Msg("response encode failed")
	}
}
