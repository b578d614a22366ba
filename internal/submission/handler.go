package submission

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/wordrush/internal/auth"
	"github.com/gokatarajesh/wordrush/internal/idempotency"
	"github.com/gokatarajesh/wordrush/internal/round"
	"github.com/gokatarajesh/wordrush/internal/round/validation"
	httperrors "github.com/gokatarajesh/wordrush/pkg/http/errors"
)

const maxBodyBytes = 1 << 20

// IdempotencyHeader may carry the round id when the body omits it.
const IdempotencyHeader = "Idempotency-Key"

type rejection struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Errors  []validation.Error `json:"errors"`
}

// Handler exposes the submission endpoint.
type Handler struct {
	svc     *Service
	devMode bool
	logger  zerolog.Logger
}

// NewHandler builds the HTTP handler. devMode adds internal error text to
// 500 responses.
func NewHandler(svc *Service, devMode bool, logger zerolog.Logger) *Handler {
	return &Handler{
		svc:     svc,
		devMode: devMode,
		logger:  logger.With().Str("component", "submission_http").Logger(),
	}
}

// Register mounts the handler's routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("POST /v1/rounds", auth.RequireAuth(http.HandlerFunc(h.HandleSubmit)))
}

// HandleSubmit scores a finished round.
// Route: POST /v1/rounds
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	var sub round.Submission
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&sub); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid request body")
		return
	}
	if sub.RoundID == "" {
		sub.RoundID = r.Header.Get(IdempotencyHeader)
	}

	resp, replayed, err := h.svc.Submit(r.Context(), userID, sub)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	httperrors.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var rejected *RejectedError
	switch {
	case errors.As(err, &rejected):
		httperrors.RespondJSON(w, http.StatusBadRequest, rejection{
			Success: false,
			Message: validation.Summary(rejected.Errors),
			Errors:  rejected.Errors,
		})
	case errors.Is(err, idempotency.ErrInFlight):
		httperrors.RespondError(w, http.StatusConflict, httperrors.ErrCodeConflict, "Round submission already in progress")
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("round submission failed")
		if h.devMode {
			httperrors.RespondErrorWithDetails(w, http.StatusInternalServerError, httperrors.ErrCodeInternalError,
				"Failed to submit round", map[string]interface{}{"error": err.Error()})
			return
		}
		httperrors.RespondInternalError(w, "Failed to submit round")
	}
}
