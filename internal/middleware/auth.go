package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/agent-mesh/region-router/internal/config"
	"github.com/agent-mesh/region-router/pkg/logger"
	"github.com/golang-jwt/jwt/v4"
)

// AuthMiddleware validates HMAC-signed bearer tokens on the API surface.
// When auth is disabled every request passes through.
type AuthMiddleware struct {
	config config.AuthConfig
	logger *logger.Logger
}

// NewAuthMiddleware creates a new JWT authentication middleware
func NewAuthMiddleware(cfg config.AuthConfig, logger *logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		config: cfg,
		logger: logger.MiddlewareLogger("auth"),
	}
}

// Authenticate returns the bearer-token authentication middleware
func (am *AuthMiddleware) Authenticate() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !am.config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			token, err := am.extractToken(r)
			if err != nil {
				am.logger.WithFields(map[string]interface{}{
					"path":   r.URL.Path,
					"method": r.Method,
					"error":  err.Error(),
				}).Warn("Request rejected by authentication")

				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if err := am.validateToken(token); err != nil {
				am.logger.WithFields(map[string]interface{}{
					"path":  r.URL.Path,
					"error": err.Error(),
				}).Warn("Invalid bearer token")

				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractToken pulls the bearer token from the Authorization header
func (am *AuthMiddleware) extractToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("malformed Authorization header")
	}

	return parts[1], nil
}

// validateToken parses and verifies the token signature and expiry
func (am *AuthMiddleware) validateToken(tokenString string) error {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(am.config.SecretKey), nil
	})
	if err != nil {
		return err
	}

	if !token.Valid {
		return fmt.Errorf("token is not valid")
	}

	return nil
}
