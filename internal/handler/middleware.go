package handler

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/msomdec/drive-tagger/internal/domain"
	"github.com/msomdec/drive-tagger/internal/service"
)

type contextKey string

const sessionContextKey contextKey = "session"

const authCookieName = "auth_token"

// SessionFromContext extracts the authenticated session from the request
// context. Returns nil if no session is present.
func SessionFromContext(ctx context.Context) *domain.Session {
	session, _ := ctx.Value(sessionContextKey).(*domain.Session)
	return session
}

// RequireAuth is middleware that protects routes requiring authentication.
// It reads the auth_token cookie, resolves it to a live session of an
// allow-listed account and injects the session into the request context.
// Returns 401 for unauthenticated requests.
func RequireAuth(auth *service.AuthService, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(authCookieName)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Not signed in.")
			return
		}

		session, err := auth.Authenticate(r.Context(), cookie.Value)
		if err != nil {
			slog.Debug("rejected session", "error", err, "request_id", middleware.GetReqID(r.Context()))
			writeError(w, http.StatusUnauthorized, "Not signed in.")
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RateLimit rejects requests with 429 once the client address has used up
// its tokens.
func RateLimit(limiter *service.TokenBucket, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "Too many sign-in attempts. Please wait a minute.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestLogger emits one log record per request.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			slog.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

// SecurityHeaders sets conservative response headers on every response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'self'; img-src 'self' https:")
		next.ServeHTTP(w, r)
	})
}

// Chain wraps h with the request-scoped middleware stack: request id, panic
// recovery, access log and security headers. Forwarding headers replace the
// client address only when trustProxy is set, since RateLimit keys on it.
func Chain(h http.Handler, trustProxy bool) http.Handler {
	h = SecurityHeaders(h)
	h = RequestLogger(h)
	h = middleware.Recoverer(h)
	if trustProxy {
		h = middleware.RealIP(h)
	}
	return middleware.RequestID(h)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
