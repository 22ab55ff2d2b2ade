package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"

	"vehicle-booking-engine/internal/config"
	"vehicle-booking-engine/internal/domain"
	"vehicle-booking-engine/internal/logger"
	"vehicle-booking-engine/internal/security"
)

const OperatorKeyHeader = "X-Operator-Key"

// AuthMiddleware enforces the security level configured for each named
// route and stores the caller in the request context.
type AuthMiddleware struct {
	tokenManager security.TokenManager
	operatorKey  *security.OperatorKey
}

func NewAuthMiddleware(tm security.TokenManager, operatorKey *security.OperatorKey) *AuthMiddleware {
	return &AuthMiddleware{tokenManager: tm, operatorKey: operatorKey}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := ""
		if route := mux.CurrentRoute(r); route != nil {
			name = route.GetName()
		}
		level := config.GetSecurityLevel(name)

		// Public endpoint - skip auth
		if level == config.SecurityPublic {
			next.ServeHTTP(w, r)
			return
		}

		if level == config.SecurityOperator {
			if key := r.Header.Get(OperatorKeyHeader); key != "" {
				if !m.operatorKey.Verify(key) {
					writeStatus(w, http.StatusUnauthorized, "unauthenticated", "invalid operator key")
					return
				}
				next.ServeHTTP(w, r.WithContext(withActor(r.Context(), domain.SystemActor())))
				return
			}
		}

		token := extractToken(r)
		if token == "" {
			writeStatus(w, http.StatusUnauthorized, "unauthenticated", "authorization token is not provided")
			return
		}
		claims, err := m.tokenManager.ValidateToken(token)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, security.ErrExpiredToken) {
				msg = "token has expired"
			}
			writeStatus(w, http.StatusUnauthorized, "unauthenticated", msg)
			return
		}

		actor := claims.Actor()
		if level == config.SecurityOperator && !actor.IsAdmin {
			writeStatus(w, http.StatusForbidden, "forbidden", "admin token or operator key required")
			return
		}
		next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actor)))
	})
}

func extractToken(r *http.Request) string {
	token := r.Header.Get("Authorization")
	// Remove Bearer prefix if present
	if len(token) > 7 && strings.ToUpper(token[0:7]) == "BEARER " {
		token = token[7:]
	}
	return strings.TrimSpace(token)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// LoggingMiddleware logs one line per request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := ""
		if cr := mux.CurrentRoute(r); cr != nil {
			route = cr.GetName()
		}
		logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
