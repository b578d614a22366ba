package leaderboard

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/wordrush/internal/auth"
	"github.com/gokatarajesh/wordrush/internal/db/repository"
	"github.com/gokatarajesh/wordrush/internal/round"
	httperrors "github.com/gokatarajesh/wordrush/pkg/http/errors"
	ws "github.com/gokatarajesh/wordrush/pkg/http/ws"
)

const (
	defaultLimit    = 10
	maxLimit        = 100
	defaultDuration = 60
)

// HTTPHandler exposes REST endpoints for leaderboard queries and the live
// leaderboard socket.
type HTTPHandler struct {
	svc      *Service
	hub      *ws.Hub
	verifier auth.TokenVerifier
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHTTPHandler constructs a leaderboard HTTP handler. hub and verifier are
// only needed by HandleWebSocket.
func NewHTTPHandler(svc *Service, hub *ws.Hub, verifier auth.TokenVerifier, upgrader websocket.Upgrader, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:      svc,
		hub:      hub,
		verifier: verifier,
		upgrader: upgrader,
		logger:   logger.With().Str("component", "leaderboard_http").Logger(),
	}
}

// Register mounts the handler's routes on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/leaderboards/{period}", h.HandleTop)
	mux.Handle("GET /v1/leaderboards/{period}/me", auth.RequireAuth(http.HandlerFunc(h.HandleMe)))
	mux.HandleFunc("GET /v1/leaderboards/{period}/stats", h.HandleStats)
	mux.HandleFunc("GET /ws/leaderboard", h.HandleWebSocket)
}

type topResponse struct {
	Period      round.Period          `json:"period"`
	DurationSec int                   `json:"durationSec"`
	Scope       string                `json:"scope"`
	Top         []ws.LeaderboardEntry `json:"top"`
	Source      string                `json:"source"`
	RetrievedAt string                `json:"retrievedAt"`
}

// HandleTop responds with the top entries of a board.
// Route: GET /v1/leaderboards/{period}?duration=60&scope=global&limit=10
func (h *HTTPHandler) HandleTop(w http.ResponseWriter, r *http.Request) {
	key, ok := h.boardFromRequest(w, r)
	if !ok {
		return
	}

	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= maxLimit {
			limit = parsed
		}
	}

	entries, source, err := h.svc.Top(r.Context(), key, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("period", string(key.Period)).Msg("leaderboard fetch failed")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeLeaderboardFetchFailed, "Failed to fetch leaderboard")
		return
	}

	writeJSON(w, topResponse{
		Period:      key.Period,
		DurationSec: key.DurationSec,
		Scope:       key.Scope,
		Top:         toWSEntries(entries),
		Source:      source,
		RetrievedAt: now().Format(time.RFC3339),
	})
}

// HandleMe responds with the caller's rank on a board.
// Route: GET /v1/leaderboards/{period}/me?duration=60
func (h *HTTPHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}
	key, ok := h.boardFromRequest(w, r)
	if !ok {
		return
	}

	pos, err := h.svc.Position(r.Context(), key, userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID.String()).Msg("leaderboard rank lookup failed")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeLeaderboardFetchFailed, "Failed to fetch leaderboard position")
		return
	}
	writeJSON(w, pos)
}

// HandleStats responds with a board summary.
// Route: GET /v1/leaderboards/{period}/stats?duration=60
func (h *HTTPHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	key, ok := h.boardFromRequest(w, r)
	if !ok {
		return
	}

	stats, err := h.svc.Stats(r.Context(), key)
	if err != nil {
		h.logger.Error().Err(err).Str("period", string(key.Period)).Msg("leaderboard stats failed")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeLeaderboardFetchFailed, "Failed to fetch leaderboard stats")
		return
	}
	writeJSON(w, stats)
}

// HandleWebSocket upgrades the connection and streams leaderboard updates.
// Route: GET /ws/leaderboard?token=...
func (h *HTTPHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Missing token")
		return
	}
	claims, err := h.verifier.ValidateAccessToken(token)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket token validation failed")
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	userID := claims.UserID
	wsConn := ws.NewConnection(conn, h.logger.With().Str("user_id", userID.String()).Logger())
	h.hub.Register(userID, wsConn)
	go wsConn.WritePump()

	wsConn.ReadPump(func(msg ws.Message) error {
		switch msg.Type {
		case ws.TypePing:
			return wsConn.Send(ws.Message{Type: ws.TypePong, RequestID: msg.RequestID})
		case ws.TypeSubscribe, ws.TypeUnsubscribe:
			topic, problem := subscriptionTopic(msg.Payload)
			if problem != "" {
				return sendError(wsConn, msg.RequestID, httperrors.ErrCodeInvalidRequest, problem)
			}
			if msg.Type == ws.TypeSubscribe {
				wsConn.Follow(topic)
			} else {
				wsConn.Unfollow(topic)
			}
			reply, err := ws.NewMessage(ws.TypeSubscriptions, ws.SubscriptionsPayload{Topics: wsConn.Topics()})
			if err != nil {
				return err
			}
			reply.RequestID = msg.RequestID
			return wsConn.Send(reply)
		default:
			return sendError(wsConn, msg.RequestID, httperrors.ErrCodeUnknownMessageType, "Unknown message type: "+msg.Type)
		}
	})

	h.hub.Unregister(userID, wsConn)
}

// subscriptionTopic returns the board topic of a subscribe payload, or a
// client-facing problem description.
func subscriptionTopic(raw json.RawMessage) (string, string) {
	var sub ws.SubscribePayload
	if err := json.Unmarshal(raw, &sub); err != nil {
		return "", "Invalid subscription payload"
	}
	period, err := round.ParsePeriod(sub.Period)
	if err != nil {
		return "", "Unknown leaderboard period"
	}
	if sub.DurationSec == 0 {
		sub.DurationSec = defaultDuration
	}
	if !round.IsAllowedDuration(sub.DurationSec) {
		return "", "Duration must be 60, 75, or 90 seconds"
	}
	return ws.Topic(string(period), sub.DurationSec), ""
}

func sendError(c *ws.Connection, requestID, code, message string) error {
	reply, err := ws.NewMessage(ws.TypeError, ws.ErrorPayload{Code: code, Message: message})
	if err != nil {
		return err
	}
	reply.RequestID = requestID
	return c.Send(reply)
}

func (h *HTTPHandler) boardFromRequest(w http.ResponseWriter, r *http.Request) (repository.BoardKey, bool) {
	period, err := round.ParsePeriod(r.PathValue("period"))
	if err != nil {
		httperrors.RespondNotFound(w, httperrors.ErrCodeUnknownWindow, "Unknown leaderboard period")
		return repository.BoardKey{}, false
	}

	duration := defaultDuration
	if raw := r.URL.Query().Get("duration"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || !slices.Contains(round.AllowedDurations, parsed) {
			httperrors.RespondValidationError(w, httperrors.ErrCodeInvalidRequest, "Duration must be 60, 75, or 90 seconds", "duration")
			return repository.BoardKey{}, false
		}
		duration = parsed
	}

	return h.svc.WithScope(period, duration, r.URL.Query().Get("scope")), true
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
