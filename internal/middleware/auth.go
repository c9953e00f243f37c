package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"survey-bknd/internal/auth"
)

type AuthMiddleware struct {
	verifier *auth.Verifier
	logr     *zap.Logger
}

type contextKey string

const (
	ContextUserIDKey  contextKey = "userID"
	ContextAuthMethod contextKey = "authMethod"
)

// NewAuthMiddleware creates a reusable JWT auth middleware instance
func NewAuthMiddleware(verifier *auth.Verifier, logr *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		logr:     logr,
	}
}

// JWTAuth validates the bearer token and attaches the subject to the request context
func (m *AuthMiddleware) JWTAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "missing authorization header", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			http.Error(w, "invalid token format", http.StatusUnauthorized)
			return
		}

		claims, err := m.verifier.Verify(tokenString)
		if err != nil {
			m.logr.Warn("token verification failed", zap.Error(err))
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ContextUserIDKey, claims.Subject)
		ctx = context.WithValue(ctx, ContextAuthMethod, claims.AuthMethod)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID returns the authenticated subject, or "" on unauthenticated requests.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(ContextUserIDKey).(string)
	return id
}
