package httpapi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenIssuer is the iss claim of every token eventsd signs. Tokens from any
// other issuer are rejected even when the signature checks out.
const TokenIssuer = "eventsd"

// DefaultTokenTTL is used when NewJWTAuth gets a ttl <= 0.
const DefaultTokenTTL = 24 * time.Hour

var (
	// ErrEmptyClientID is returned when issuing a token without client ID
	ErrEmptyClientID = errors.New("clientID cannot be empty")
	// ErrEmptyToken is returned when validating an empty token
	ErrEmptyToken = errors.New("token cannot be empty")
	// ErrInvalidToken wraps every reason a token is refused other than expiry
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned for a well-formed token past its expiry
	ErrTokenExpired = errors.New("token expired")
)

// Claims are the claims of an eventsd token. The standard subject claim is
// the client ID; it becomes the subject of every websocket or gRPC session
// opened with the token and of every event published with it.
type Claims struct {
	Admin bool `json:"adm,omitempty"`
	jwt.RegisteredClaims
}

// ClientID returns the client the token was issued to.
func (c *Claims) ClientID() string {
	return c.Subject
}

// JWTAuth issues and validates HS256 tokens. It is safe for concurrent use.
type JWTAuth struct {
	secretKey []byte
	ttl       time.Duration
	parser    *jwt.Parser
}

// NewJWTAuth creates a token authority signing with secretKey. Tokens are
// valid for ttl, or DefaultTokenTTL when ttl <= 0.
func NewJWTAuth(secretKey string, ttl time.Duration) *JWTAuth {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &JWTAuth{
		secretKey: []byte(secretKey),
		ttl:       ttl,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(TokenIssuer),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
	}
}

// TTL returns how long issued tokens stay valid.
func (j *JWTAuth) TTL() time.Duration {
	return j.ttl
}

// GenerateToken issues a token for clientID.
func (j *JWTAuth) GenerateToken(clientID string, admin bool) (string, time.Time, error) {
	if clientID == "" {
		return "", time.Time{}, ErrEmptyClientID
	}

	now := time.Now()
	expiresAt := now.Add(j.ttl)

	claims := Claims{
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			Subject:   clientID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken checks a token, with or without a "Bearer " prefix, and
// returns its claims. Failures wrap ErrEmptyToken, ErrTokenExpired or
// ErrInvalidToken.
func (j *JWTAuth) ValidateToken(tokenString string) (*Claims, error) {
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")
	if tokenString == "" {
		return nil, ErrEmptyToken
	}

	claims := &Claims{}
	_, err := j.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return j.secretKey, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	case claims.Subject == "":
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

// Authenticate validates a token and returns its client ID, so the hub can
// accept the same tokens on gRPC bus streams.
func (j *JWTAuth) Authenticate(token string) (string, error) {
	claims, err := j.ValidateToken(token)
	if err != nil {
		return "", err
	}
	return claims.ClientID(), nil
}
