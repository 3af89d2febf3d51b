package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bnema/mediafetch/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoClient() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(ClientID(r.Context())))
	})
}

func TestIdentityMiddleware_IssuesCookie(t *testing.T) {
	ids := service.NewIdentityService("secret")
	h := IdentityMiddleware(ids, echoClient())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, ClientCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.False(t, cookies[0].Secure)

	id, err := ids.Verify(cookies[0].Value)
	require.NoError(t, err)
	assert.Equal(t, id, rec.Body.String())
}

func TestIdentityMiddleware_KeepsValidCookie(t *testing.T) {
	ids := service.NewIdentityService("secret")
	id, token := ids.Issue()
	h := IdentityMiddleware(ids, echoClient())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: ClientCookieName, Value: token})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, id, rec.Body.String())
}

func TestIdentityMiddleware_ReplacesForgedCookie(t *testing.T) {
	ids := service.NewIdentityService("secret")
	_, foreign := service.NewIdentityService("other").Issue()
	h := IdentityMiddleware(ids, echoClient())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	req.AddCookie(&http.Cookie{Name: ClientCookieName, Value: foreign})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.NotEqual(t, foreign, cookies[0].Value)
	assert.True(t, cookies[0].Secure)
	assert.NotEmpty(t, rec.Body.String())
}
