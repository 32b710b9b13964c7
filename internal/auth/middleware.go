// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/tomtom215/cbd-importer/internal/logging"
)

type contextKey string

// ClaimsContextKey holds the verified *Claims.
const ClaimsContextKey contextKey = "claims"

// Auth modes accepted by NewMiddleware.
const (
	AuthModeJWT  = "jwt"
	AuthModeNone = "none"
)

// TokenQueryParam carries the token on WebSocket handshakes.
const TokenQueryParam = "token"

// ErrorResponder writes an authentication failure.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, status int, code, message string)

// Middleware enforces bearer authentication.
type Middleware struct {
	jwtManager *JWTManager
	authMode   string
	respond    ErrorResponder
}

// NewMiddleware creates the middleware. respond may be nil, in which case
// failures are written with http.Error.
func NewMiddleware(jwtManager *JWTManager, authMode string, respond ErrorResponder) *Middleware {
	if respond == nil {
		respond = func(w http.ResponseWriter, _ *http.Request, status int, _, message string) {
			http.Error(w, message, status)
		}
	}
	return &Middleware{
		jwtManager: jwtManager,
		authMode:   authMode,
		respond:    respond,
	}
}

// Authenticate rejects requests without a valid token: 401 when none is
// presented, 403 when it does not verify.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.authMode == AuthModeNone {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ClaimsContextKey, &Claims{})))
			return
		}

		token := extractToken(r)
		if token == "" {
			m.respond(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Access denied, no token provided.")
			return
		}

		claims, err := m.jwtManager.ValidateToken(token)
		if err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("token validation failed")
			m.respond(w, r, http.StatusForbidden, "FORBIDDEN", "Invalid or expired token.")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ClaimsContextKey, claims)))
	})
}

// extractToken reads "Authorization: Bearer <t>", then the token query
// parameter. A non-bearer Authorization header counts as no token.
func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get(TokenQueryParam)
}

// ClaimsFromContext returns the claims stored by Authenticate.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*Claims)
	return claims, ok && claims != nil
}

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	if claims, ok := ClaimsFromContext(ctx); ok {
		return claims.UserID
	}
	return ""
}
