package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/rmacdonaldsmith/eventsd-go/internal/hub"
)

const (
	// defaultRecentLimit is the number of events returned by the admin
	// events endpoint when no limit is given.
	defaultRecentLimit = 100
	// maxRecentLimit caps the admin events endpoint.
	maxRecentLimit = 1000
	// maxBodyBytes caps publish and login request bodies.
	maxBodyBytes = 1 << 20
)

// Handlers contains HTTP handlers for the API
type Handlers struct {
	hub     *hub.Hub
	jwtAuth *JWTAuth
	logger  *slog.Logger
}

// NewHandlers creates a new handlers instance
func NewHandlers(h *hub.Hub, jwtAuth *JWTAuth, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{
		hub:     h,
		jwtAuth: jwtAuth,
		logger:  logger,
	}
}

// Auth endpoints

// Login handles POST /api/v1/auth/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if err := h.validateJSON(r); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req AuthRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.validateAuthRequest(&req); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// No credential store: the client ID is the identity, "admin" is the
	// administrator.
	isAdmin := req.ClientID == "admin"

	token, expiresAt, err := h.jwtAuth.GenerateToken(req.ClientID, isAdmin)
	if err != nil {
		h.writeError(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	h.logger.Info("issued token", "client_id", req.ClientID, "admin", isAdmin)
	h.writeJSON(w, AuthResponse{
		Token:     token,
		ClientID:  req.ClientID,
		ExpiresAt: expiresAt,
	}, http.StatusOK)
}

// Event endpoints

// PublishEvent handles POST /api/v1/events
func (h *Handlers) PublishEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.validateJSON(r); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req PublishRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.validatePublishRequest(&req); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	event, deliveries, err := h.hub.Publish(r.Context(), req.RoutingKey, req.Msg)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, hub.ErrClosed) {
			status = http.StatusServiceUnavailable
		}
		h.writeError(w, fmt.Sprintf("Failed to publish event: %v", err), status)
		return
	}

	h.logger.Debug("published",
		"client_id", GetClientID(r),
		"routing_key", event.RoutingKey,
		"id", event.ID,
		"deliveries", deliveries)

	h.writeJSON(w, PublishResponse{
		ID:         event.ID,
		RoutingKey: event.RoutingKey,
		Time:       event.Time,
		Microtime:  event.Microtime,
		Deliveries: deliveries,
	}, http.StatusCreated)
}

// Admin endpoints

// AdminGetStats handles GET /api/v1/admin/stats
func (h *Handlers) AdminGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.hub.Stats(r.Context())
	if err != nil {
		h.writeError(w, "Failed to get stats: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, AdminStatsResponse{Stats: stats}, http.StatusOK)
}

// AdminListBindings handles GET /api/v1/admin/bindings
func (h *Handlers) AdminListBindings(w http.ResponseWriter, r *http.Request) {
	bindings, err := h.hub.Bindings(r.Context())
	if err != nil {
		h.writeError(w, "Failed to list bindings: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, AdminBindingsResponse{Bindings: bindings}, http.StatusOK)
}

// AdminRecentEvents handles GET /api/v1/admin/events?pattern={pattern}&limit={limit}
func (h *Handlers) AdminRecentEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	pattern := query.Get("pattern")

	limit := defaultRecentLimit
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxRecentLimit)
	}

	records, err := h.hub.RecentEvents(r.Context(), pattern, limit)
	if err != nil {
		h.writeError(w, "Failed to read events: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, AdminEventsResponse{
		Events:  records,
		Pattern: pattern,
		Count:   len(records),
	}, http.StatusOK)
}

// Health endpoint

// Health handles GET /api/v1/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Healthy: true, Message: "ok"}
	stats, err := h.hub.Stats(r.Context())
	if err != nil {
		resp.Healthy = false
		resp.Message = err.Error()
	}
	resp.Sessions = stats.Sessions

	statusCode := http.StatusOK
	if !resp.Healthy {
		statusCode = http.StatusServiceUnavailable
	}
	h.writeJSON(w, resp, statusCode)
}

// Helper methods

// writeError writes an error response as JSON
func (h *Handlers) writeError(w http.ResponseWriter, message string, statusCode int) {
	h.writeJSON(w, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}, statusCode)
}

// writeJSON writes a JSON response
func (h *Handlers) writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Debug("write response", "err", err)
	}
}

// validateJSON validates that the request has valid JSON content-type
func (h *Handlers) validateJSON(r *http.Request) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return errors.New("Content-Type must be application/json")
	}
	return nil
}

// validateAuthRequest validates authentication request fields
func (h *Handlers) validateAuthRequest(req *AuthRequest) error {
	if req.ClientID == "" {
		return errors.New("clientId is required")
	}
	if len(req.ClientID) < 2 {
		return errors.New("clientId must be at least 2 characters")
	}
	return nil
}

// validateRoutingKey checks a concrete (non-pattern) routing key.
func (h *Handlers) validateRoutingKey(key string) error {
	if key == "" {
		return errors.New("routingKey is required")
	}
	if strings.ContainsAny(key, "*# \t\r\n") {
		return errors.New("routingKey must not contain wildcards or whitespace")
	}
	for _, part := range strings.Split(key, ".") {
		if part == "" {
			return errors.New("routingKey must not contain empty words")
		}
	}
	return nil
}

// validatePublishRequest validates event publishing request fields
func (h *Handlers) validatePublishRequest(req *PublishRequest) error {
	// Msg may be null; subscribers receive it as is.
	return h.validateRoutingKey(req.RoutingKey)
}
