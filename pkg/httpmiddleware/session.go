package httpmiddleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	// SessionHeader carries the session id in both directions.
	SessionHeader = "X-Session-ID"
	// SessionCookie is the cookie fallback for browsers.
	SessionCookie = "sid"
)

// sessionKey is the context key for the session id value.
type sessionKey struct{}

// SessionFromContext extracts the session id from the context.
// It returns an empty string if no session id is present.
func SessionFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(sessionKey{}).(string); ok {
		return id
	}
	return ""
}

// WithSession returns a copy of ctx carrying the session id.
func WithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionConfig configures the Session middleware.
type SessionConfig struct {
	// CookieMaxAge is the lifetime of the sid cookie. Zero disables the
	// cookie.
	CookieMaxAge time.Duration
	// Secure marks the cookie Secure.
	Secure bool
}

// Session returns a middleware that ensures every request belongs to a
// shopper session. The id is read from the X-Session-ID header, then from
// the sid cookie. When neither carries a valid value a new UUID is
// generated. Incoming values must be at most 128 bytes of printable ASCII
// (0x20-0x7E).
//
// The session id is:
//   - Set on the response X-Session-ID header.
//   - Refreshed in the sid cookie when CookieMaxAge is set.
//   - Stored in the request context (retrieve with SessionFromContext).
func Session(cfg SessionConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(SessionHeader)
			if !isValidSessionID(id) {
				id = ""
				if c, err := r.Cookie(SessionCookie); err == nil && isValidSessionID(c.Value) {
					id = c.Value
				}
			}
			if id == "" {
				id = uuid.New().String()
			}

			w.Header().Set(SessionHeader, id)
			if cfg.CookieMaxAge > 0 {
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    id,
					Path:     "/",
					MaxAge:   int(cfg.CookieMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   cfg.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), id)))
		})
	}
}

func isValidSessionID(id string) bool {
	if len(id) == 0 || len(id) > 128 {
		return false
	}
	for i := range len(id) {
		if id[i] < 0x20 || id[i] > 0x7E {
			return false
		}
	}
	return true
}
