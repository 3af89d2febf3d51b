package http

import (
	"context"
	"net/http"

	"github.com/bnema/mediafetch/internal/adapter/http/middleware"
)

const (
	ClientCookieName = "mf_client"
	ClientCookieAge  = 365 * 24 * 60 * 60
	CookiePath       = "/"
	CookieSameSite   = http.SameSiteLaxMode
)

// IdentityService issues and verifies signed client tokens.
type IdentityService interface {
	Issue() (clientID, token string)
	Verify(token string) (string, error)
}

type clientIDKey struct{}

// IdentityMiddleware makes sure every request carries a valid client token.
// Requests without one, or with a forged one, get a fresh identity. This
// separates the jobs of different browsers; it does not authenticate.
func IdentityMiddleware(ids IdentityService, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var clientID string
		if cookie, err := r.Cookie(ClientCookieName); err == nil {
			if id, err := ids.Verify(cookie.Value); err == nil {
				clientID = id
			}
		}

		if clientID == "" {
			id, token := ids.Issue()
			clientID = id
			http.SetCookie(w, &http.Cookie{
				Name:     ClientCookieName,
				Value:    token,
				MaxAge:   ClientCookieAge,
				Path:     CookiePath,
				Secure:   middleware.IsTLS(r),
				HttpOnly: true,
				SameSite: CookieSameSite,
			})
		}

		next.ServeHTTP(w, r.WithContext(WithClientID(r.Context(), clientID)))
	})
}

func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDKey{}, clientID)
}

// ClientID returns the identity attached by IdentityMiddleware.
func ClientID(ctx context.Context) string {
	id, _ := ctx.Value(clientIDKey{}).(string)
	return id
}
