package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goSession "github.com/MrEthical07/goSession"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the authorization result injected by [Guard].
func AuthResultFromContext(ctx context.Context) (*goSession.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*goSession.AuthResult)
	return res, ok
}

// SubjectFromContext returns the verified subject id injected by [Guard].
func SubjectFromContext(ctx context.Context) (string, bool) {
	res, ok := AuthResultFromContext(ctx)
	if !ok {
		return "", false
	}
	return res.Subject, true
}

// Guard returns middleware that authorizes each request through the engine.
// An empty requiredPermission enforces authentication only.
func Guard(engine *goSession.Engine, requiredPermission string) func(http.Handler) http.Handler {
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

			res, err := engine.Authorize(r.Context(), token, requiredPermission)
			if err != nil {
				if errors.Is(err, goSession.ErrPermissionDenied) {
					http.Error(w, "forbidden", http.StatusForbidden)
					return
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
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
