package httpapi

import (
	"time"

	"github.com/rmacdonaldsmith/eventsd-go/internal/hub"
	"github.com/rmacdonaldsmith/eventsd-go/pkg/eventlog"
)

// Request/Response types for the HTTP API

// AuthRequest represents a login request
type AuthRequest struct {
	ClientID string `json:"clientId"`
}

// AuthResponse represents a login response
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

// AdminStatsResponse represents hub statistics
type AdminStatsResponse struct {
	hub.Stats
}

// AdminBindingsResponse lists every binding held by connected sessions
type AdminBindingsResponse struct {
	Bindings []hub.BindingInfo `json:"bindings"`
}

// AdminEventsResponse lists recently published events
type AdminEventsResponse struct {
	Events  []eventlog.Record `json:"events"`
	Pattern string            `json:"pattern,omitempty"`
	Count   int               `json:"count"`
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
