package models

import "github.com/golang-jwt/jwt/v4"

// Token type discriminator carried in the token_type claim. Only access
// tokens may authenticate API requests or realtime handshakes.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	AgentID   string `json:"agent_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}
