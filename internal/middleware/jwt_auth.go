package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/petertzy/molthub/backend/internal/models"
)

var (
	// ErrInvalidToken covers malformed, expired, and badly signed tokens
	ErrInvalidToken = errors.New("invalid token")
	// ErrNotAccessToken is returned when a refresh-class token is presented
	// where an access token is required.
	ErrNotAccessToken = errors.New("token is not an access token")
)

// JWTVerifier validates bearer access tokens issued by the auth service. It
// backs both the HTTP middleware and the realtime handshake.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a verifier for tokens signed with the given secret
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// VerifyAccessToken checks the signature, expiry, and token class, returning
// the agent the token was issued to.
func (v *JWTVerifier) VerifyAccessToken(tokenString string) (string, error) {
	claims := &models.JwtCustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.TokenType != models.TokenTypeAccess {
		return "", ErrNotAccessToken
	}
	if claims.AgentID == "" {
		return "", ErrInvalidToken
	}
	return claims.AgentID, nil
}

// JWTAuthMiddleware checks for a valid bearer access token and stores the
// authenticated agent id in the request context.
func JWTAuthMiddleware(verifier *JWTVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
			}

			// Expecting "Bearer <token>"
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
			}

			agentID, err := verifier.VerifyAccessToken(parts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired access token")
			}

			c.Set("agentID", agentID)
			return next(c)
		}
	}
}

// AgentIDFromContext returns the authenticated agent id, or "" when the
// request was not authenticated.
func AgentIDFromContext(c echo.Context) string {
	agentID, _ := c.Get("agentID").(string)
	return agentID
}
