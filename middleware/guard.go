package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/tidegate/authcore"
)

type principalContextKey struct{}

// PrincipalFromContext returns the principal injected by [Guard].
func PrincipalFromContext(ctx context.Context) (*authcore.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*authcore.Principal)
	return p, ok
}

// Guard authenticates the request's bearer token and injects the
// resolved principal into the request context. Every failure is a
// uniform 401.
func Guard(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			principal, err := engine.CurrentUser(r.Context(), token)
			if err != nil {
				writeError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), principalContextKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSuperuser is [Guard] plus a privilege check.
func RequireSuperuser(engine *authcore.Engine) func(http.Handler) http.Handler {
	guard := Guard(engine)
	return func(next http.Handler) http.Handler {
		return guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok || !principal.IsSuperuser {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

// RateLimit charges one window hit per request before passing it on.
// Authenticated requests (those behind [Guard]) are keyed by principal;
// anonymous requests by client IP.
func RateLimit(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			ctx := authcore.WithClientIP(r.Context(), clientIP(r))
			principal, _ := PrincipalFromContext(ctx)

			if err := engine.CheckRateLimit(ctx, principal, r.URL.Path); err != nil {
				writeError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// writeError maps the engine's error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch authcore.KindOf(err) {
	case authcore.KindUnauthorized:
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case authcore.KindForbidden:
		http.Error(w, "forbidden", http.StatusForbidden)
	case authcore.KindRateLimited:
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
	case authcore.KindNotFound:
		http.Error(w, "not found", http.StatusNotFound)
	case authcore.KindConflict:
		http.Error(w, "conflict", http.StatusConflict)
	case authcore.KindBadRequest:
		http.Error(w, "bad request", http.StatusBadRequest)
	case authcore.KindUnavailable:
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
