package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"dpterminal/internal/domain/session"
	"dpterminal/internal/metrics"
	"dpterminal/pkg/errors"
	"dpterminal/pkg/logger"
)

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// recoverer turns handler panics into a 500 JSON response
func recoverer(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.ErrorWithContext(r.Context(),
						errors.Wrapf(errors.ErrInternal, "panic serving %s %s: %v", r.Method, r.URL.Path, rec),
						map[string]string{"component": "http"},
					)
					writeError(w, http.StatusInternalServerError, "Internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger logs and measures matched routes by their path template
func requestLogger(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			duration := time.Since(start)
			metrics.RecordHTTPRequest(route, r.Method, wrapped.statusCode, duration)

			log.Debugw("HTTP request",
				"method", r.Method,
				"route", route,
				"status", wrapped.statusCode,
				"duration_ms", duration.Milliseconds(),
				"remote_addr", r.RemoteAddr,
			)
		})
	}
}

// sessionCookie attaches a session id to the request context, issuing a new
// cookie when the request has none or an invalid one
func sessionCookie(name string, ttl time.Duration, secure bool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(name); err == nil {
				if parsed, err := uuid.Parse(c.Value); err == nil {
					id = parsed.String()
				}
			}
			if id == "" {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     name,
					Value:    id,
					Path:     "/",
					MaxAge:   int(ttl.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r.WithContext(session.WithID(r.Context(), id)))
		})
	}
}

// cors allows credentialed requests from the configured origins. "*" allows any origin.
func cors(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(strings.TrimSpace(o), "/")] = struct{}{}
	}
	_, allowAll := allowed["*"]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := allowed[origin]; !ok && !allowAll {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type")
				h.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// probePaths stay reachable over plain HTTP
var probePaths = map[string]bool{"/health": true, "/ready": true, "/live": true, "/metrics": true}

// httpsRedirect sends plain HTTP requests to their https:// equivalent.
// X-Forwarded-Proto from a terminating proxy counts as the request scheme.
func httpsRedirect(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") || probePaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			http.Redirect(w, r, "https://"+r.Host+r.URL.RequestURI(), http.StatusMovedPermanently)
		})
	}
}
