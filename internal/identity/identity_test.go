package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ashureev/neurochess/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) store.Repository {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "identity.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestMiddlewareIssuesCookieAndCreatesPlayer(t *testing.T) {
	repo := newRepo(t)

	var seenPlayer, seenTab string
	h := Middleware(repo, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenPlayer = PlayerIDFromContext(r.Context())
		seenTab = TabIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set(TabHeaderName, "tab-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, isValidPlayerID(seenPlayer), "bad id %q", seenPlayer)
	assert.Equal(t, "tab-1", seenTab)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, PlayerCookieName, cookies[0].Name)
	assert.Equal(t, seenPlayer, cookies[0].Value)
	assert.False(t, cookies[0].Secure)

	player, err := repo.GetPlayer(context.Background(), seenPlayer)
	require.NoError(t, err)
	require.NotNil(t, player)
	assert.Equal(t, deriveUsername(seenPlayer), player.Username)
}

func TestMiddlewareReusesValidCookie(t *testing.T) {
	repo := newRepo(t)
	existing := generatePlayerID()

	var seen string
	h := Middleware(repo, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = PlayerIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/?session_id=bad%20tab", nil)
	req.AddCookie(&http.Cookie{Name: PlayerCookieName, Value: existing})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, existing, seen)
	assert.True(t, rec.Result().Cookies()[0].Secure)
}

func TestMiddlewareReplacesForgedCookie(t *testing.T) {
	repo := newRepo(t)

	var seen string
	h := Middleware(repo, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = PlayerIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: PlayerCookieName, Value: "anon_../../etc"})
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.NotEqual(t, "anon_../../etc", seen)
	assert.True(t, isValidPlayerID(seen))
}

func TestSanitizeTabID(t *testing.T) {
	tests := map[string]string{
		"":          DefaultTabIDValue,
		"  ":        DefaultTabIDValue,
		"tab-42":    "tab-42",
		"has space": DefaultTabIDValue,
		"a:b.c_d-e": "a:b.c_d-e",
		"<script>":  DefaultTabIDValue,
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeTabID(in), "input %q", in)
	}
}

func TestContextDefaults(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, PlayerIDFromContext(ctx))
	assert.Empty(t, UsernameFromContext(ctx))
	assert.Equal(t, DefaultTabIDValue, TabIDFromContext(ctx))

	ctx = WithPlayer(ctx, "anon_0123456789abcdef0123456789abcdef", "t1")
	assert.Equal(t, "guest-abcdef", UsernameFromContext(ctx))
	assert.Equal(t, "t1", TabIDFromContext(ctx))
}
