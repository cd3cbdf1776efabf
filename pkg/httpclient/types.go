package httpclient

import (
	"fmt"
	"time"
)

// Config holds client configuration
type Config struct {
	// ServerURL is the base URL of the eventsd HTTP API (e.g., "http://localhost:8151")
	ServerURL string

	// ClientID is the identifier this client logs in with. Only needed for
	// Authenticate; a client given a token with SetToken can do without.
	ClientID string

	// Timeout for HTTP requests
	Timeout time.Duration

	// MaxRetries is how many times a request is retried after a transport
	// error or a 429/503 response. Publishes are only retried on 429.
	MaxRetries int

	// RetryDelay is the pause before the first retry, doubled on each
	// further attempt.
	RetryDelay time.Duration

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool
}

// SetDefaults sets reasonable default values for the config
func (c *Config) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 200 * time.Millisecond
	}
}

// AuthResponse represents the response from authentication
type AuthResponse struct {
	Token     string    `json:"token"`
	ClientID  string    `json:"clientId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// PublishRequest represents an event publishing request
type PublishRequest struct {
	RoutingKey string `json:"routingKey"`
	Msg        any    `json:"msg"`
}

// PublishResponse represents an event publishing response
type PublishResponse struct {
	ID         string  `json:"id"`
	RoutingKey string  `json:"routingKey"`
	Time       int64   `json:"time"`
	Microtime  float64 `json:"microtime"`
	Deliveries int     `json:"deliveries"`
}

// AdminStatsResponse represents server statistics
type AdminStatsResponse struct {
	Sessions          int    `json:"sessions"`
	WebSocketSessions int    `json:"websocketSessions"`
	GRPCSessions      int    `json:"grpcSessions"`
	Bindings          int    `json:"bindings"`
	Patterns          int    `json:"patterns"`
	Published         uint64 `json:"published"`
	Delivered         uint64 `json:"delivered"`
	Dropped           uint64 `json:"dropped"`
	RetainedEvents    int    `json:"retainedEvents"`
}

// BindingInfo describes one server-side binding
type BindingInfo struct {
	Pattern   string `json:"pattern"`
	Group     string `json:"group,omitempty"`
	SessionID string `json:"sessionId"`
	Transport string `json:"transport"`
	Subject   string `json:"subject,omitempty"`
}

// AdminBindingsResponse lists every binding on the server
type AdminBindingsResponse struct {
	Bindings []BindingInfo `json:"bindings"`
}

// EventRecord is a retained event as returned by the admin events endpoint
type EventRecord struct {
	Offset     int64   `json:"offset"`
	Time       int64   `json:"time"`
	Microtime  float64 `json:"microtime"`
	Msg        any     `json:"msg"`
	ID         string  `json:"id"`
	RoutingKey string  `json:"routingKey"`
}

// AdminEventsResponse lists recently published events
type AdminEventsResponse struct {
	Events  []EventRecord `json:"events"`
	Pattern string        `json:"pattern,omitempty"`
	Count   int           `json:"count"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Healthy  bool   `json:"healthy"`
	Sessions int    `json:"sessions"`
	Message  string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// APIError is returned for any response with a status of 400 or above.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Status)
	}
	return fmt.Sprintf("API error (%d): %s - %s", e.StatusCode, e.Status, e.Message)
}
