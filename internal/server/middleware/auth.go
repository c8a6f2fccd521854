package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/taskloop/authd/internal/auth"
	"github.com/taskloop/authd/internal/model"
	"github.com/taskloop/authd/internal/service"
)

type contextKeyAuth string

const (
	// claimsKey is the context key for the verified token claims.
	claimsKey contextKeyAuth = "auth_claims"
	// actorKey is the context key for the resolved admin account.
	actorKey contextKeyAuth = "auth_actor"
)

// Authenticate returns an HTTP middleware that validates the request's
// bearer token. A missing Authorization header yields 401; a malformed,
// expired, or revoked token yields 403. A store failure during the
// revocation lookup is not a verdict on the token and yields 500. On success
// the verified claims are attached to the request context.
func Authenticate(svc *service.AuthService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeAuthError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			token := strings.TrimPrefix(header, "Bearer ")
			claims, err := svc.Tokens().Verify(r.Context(), token)
			if err != nil {
				if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrTokenRevoked) {
					writeAuthError(w, http.StatusForbidden, "Invalid token")
					return
				}
				logger.Error("token verification failed", "error", err)
				writeAuthError(w, http.StatusInternalServerError, "Internal server error")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin returns an HTTP middleware that enforces administrative
// access. It must run after Authenticate: it resolves the token subject to a
// live account and checks it against the authorization policy, returning 403
// before any handler touches the store. The resolved account is attached to
// the context for audit attribution.
func RequireAdmin(svc *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil {
				writeAuthError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			u, err := svc.Store().GetUserByID(r.Context(), claims.UserID)
			if err != nil || !svc.Policy().IsAdmin(u) {
				writeAuthError(w, http.StatusForbidden, "Admin access required")
				return
			}

			ctx := context.WithValue(r.Context(), actorKey, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaims extracts the verified token claims from the context. Returns nil
// for unauthenticated requests.
func GetClaims(ctx context.Context) *auth.Claims {
	if c, ok := ctx.Value(claimsKey).(*auth.Claims); ok {
		return c
	}
	return nil
}

// GetActor extracts the resolved admin account from the context. Returns nil
// outside the admin surface.
func GetActor(ctx context.Context) *model.User {
	if u, ok := ctx.Value(actorKey).(*model.User); ok {
		return u
	}
	return nil
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.ErrorResponse{
		Error: model.ErrorDetail{Code: status, Message: message},
	})
}
