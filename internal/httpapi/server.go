package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/rmacdonaldsmith/eventsd-go/internal/hub"
)

// DefaultSecretKey signs tokens when no secret is configured. Only suitable
// for development.
const DefaultSecretKey = "eventsd-dev-secret-key-change-in-production"

// Server represents the HTTP API server
type Server struct {
	hub        *hub.Hub
	jwtAuth    *JWTAuth
	handlers   *Handlers
	middleware *Middleware
	server     *http.Server
	logger     *slog.Logger
}

// Config holds server configuration
type Config struct {
	// Addr is the listen address, e.g. ":8151"
	Addr string

	// SecretKey signs JWTs. Defaults to DefaultSecretKey.
	SecretKey string

	// TokenTTL is how long login tokens stay valid. Defaults to
	// DefaultTokenTTL. Ignored when Auth is set.
	TokenTTL time.Duration

	// Auth issues and validates tokens. Defaults to a JWTAuth built from
	// SecretKey and TokenTTL; set it to share one authority with the hub.
	Auth *JWTAuth

	// NoAuth disables authentication on the websocket and publish
	// endpoints. Admin endpoints always require an admin token.
	NoAuth bool

	// PublishRate limits POST /api/v1/events to this many requests per
	// second across all clients. Zero disables the limit.
	PublishRate float64

	// PublishBurst is the limiter burst. Defaults to PublishRate rounded up.
	PublishBurst int

	// Logger receives request logs. Defaults to a discard logger.
	Logger *slog.Logger
}

// NewServer creates a new HTTP API server
func NewServer(h *hub.Hub, config Config) *Server {
	secretKey := config.SecretKey
	if secretKey == "" {
		secretKey = DefaultSecretKey
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var limiter *rate.Limiter
	if config.PublishRate > 0 {
		burst := config.PublishBurst
		if burst <= 0 {
			burst = max(1, int(config.PublishRate+0.999))
		}
		limiter = rate.NewLimiter(rate.Limit(config.PublishRate), burst)
	}

	jwtAuth := config.Auth
	if jwtAuth == nil {
		jwtAuth = NewJWTAuth(secretKey, config.TokenTTL)
	}

	server := &Server{
		hub:        h,
		jwtAuth:    jwtAuth,
		handlers:   NewHandlers(h, jwtAuth, logger),
		middleware: NewMiddleware(jwtAuth, config.NoAuth, limiter, logger),
		logger:     logger,
	}

	server.server = &http.Server{
		Addr:              config.Addr,
		Handler:           server.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}
	return server
}

// Handler returns the root handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Auth returns the token issuer and validator. It also authenticates gRPC
// bus streams.
func (s *Server) Auth() *JWTAuth {
	return s.jwtAuth
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	err := s.server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully stops the HTTP server. Hijacked websocket connections are
// not tracked by http.Server; close the hub to end them.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	// Apply global middleware
	withMiddleware := func(handler http.HandlerFunc) http.Handler {
		return s.middleware.Recovery(
			s.middleware.Logging(
				s.middleware.CORS(
					s.middleware.ContentType(handler))))
	}

	// The websocket upgrade writes its own response.
	mux.Handle("/socket", s.middleware.Recovery(
		s.middleware.Logging(
			s.middleware.AuthRequired(s.hub.ServeWebSocket))))

	// Authentication endpoints (no auth required)
	mux.Handle("/api/v1/auth/login", withMiddleware(s.onlyMethod(http.MethodPost, s.handlers.Login)))

	// Event endpoints (auth required)
	mux.Handle("/api/v1/events", withMiddleware(s.onlyMethod(http.MethodPost,
		s.middleware.AuthRequired(s.middleware.RateLimit(s.handlers.PublishEvent)))))

	// Admin endpoints (admin auth required)
	mux.Handle("/api/v1/admin/stats", withMiddleware(s.onlyMethod(http.MethodGet, s.middleware.AdminRequired(s.handlers.AdminGetStats))))
	mux.Handle("/api/v1/admin/bindings", withMiddleware(s.onlyMethod(http.MethodGet, s.middleware.AdminRequired(s.handlers.AdminListBindings))))
	mux.Handle("/api/v1/admin/events", withMiddleware(s.onlyMethod(http.MethodGet, s.middleware.AdminRequired(s.handlers.AdminRecentEvents))))

	// Health endpoint (no auth required)
	mux.Handle("/api/v1/health", withMiddleware(s.onlyMethod(http.MethodGet, s.handlers.Health)))

	// Root endpoint with API info
	mux.Handle("/", withMiddleware(s.handleRoot))

	return mux
}

// onlyMethod rejects any other method with 405 before auth runs.
func (s *Server) onlyMethod(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

// handleRoot provides API information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, "Not found", http.StatusNotFound)
		return
	}

	info := map[string]any{
		"service":     "eventsd",
		"version":     "1.0.0",
		"description": "Routing-key publish/subscribe over websocket and gRPC",
		"endpoints": map[string]any{
			"socket": "GET /socket (websocket; consume/stop frames in, event frames out)",
			"auth": map[string]string{
				"login": "POST /api/v1/auth/login",
			},
			"events": map[string]string{
				"publish": "POST /api/v1/events",
			},
			"admin": map[string]string{
				"stats":    "GET /api/v1/admin/stats",
				"bindings": "GET /api/v1/admin/bindings",
				"events":   "GET /api/v1/admin/events?pattern={pattern}&limit={limit}",
			},
			"health": "GET /api/v1/health",
		},
		"authentication": "Bearer JWT token (Authorization header or token query parameter)",
	}

	s.writeJSON(w, info, http.StatusOK)
}

// Helper methods

// writeError writes an error response as JSON
func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}, statusCode)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("write response", "err", err)
	}
}
