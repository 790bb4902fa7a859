// Package identity assigns anonymous per-device player IDs and per-tab
// session IDs to incoming requests.
package identity

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ashureev/neurochess/internal/domain"
	"github.com/ashureev/neurochess/internal/store"
	"github.com/google/uuid"
)

const (
	PlayerCookieName   = "neurochess_anon_id"
	TabHeaderName      = "X-Neurochess-Session-ID"
	DefaultTabIDValue  = "default"
	playerCookieMaxAge = 30 * 24 * time.Hour
)

type contextKey int

const (
	playerIDKey contextKey = iota
	usernameKey
	tabIDKey
)

var (
	playerIDPattern = regexp.MustCompile(`^anon_[a-f0-9]{32}$`)
	tabIDPattern    = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)
)

// PlayerIDFromContext extracts the player ID from the request context.
func PlayerIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(playerIDKey).(string); ok {
		return v
	}
	return ""
}

// UsernameFromContext extracts the display name from the request context.
func UsernameFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(usernameKey).(string); ok {
		return v
	}
	return ""
}

// TabIDFromContext extracts the browser tab ID from the request context.
func TabIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(tabIDKey).(string); ok {
		return v
	}
	return DefaultTabIDValue
}

// WithPlayer returns a context carrying the given identity.
func WithPlayer(ctx context.Context, playerID, tabID string) context.Context {
	ctx = context.WithValue(ctx, playerIDKey, playerID)
	ctx = context.WithValue(ctx, usernameKey, deriveUsername(playerID))
	return context.WithValue(ctx, tabIDKey, sanitizeTabID(tabID))
}

func generatePlayerID() string {
	return "anon_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func isValidPlayerID(id string) bool {
	return playerIDPattern.MatchString(id)
}

func sanitizeTabID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !tabIDPattern.MatchString(id) {
		return DefaultTabIDValue
	}
	return id
}

func deriveUsername(playerID string) string {
	if len(playerID) > 13 {
		return "guest-" + playerID[len(playerID)-6:]
	}
	return "guest"
}

// ensurePlayer creates the player on first sight and refreshes last_seen_at
// otherwise.
func ensurePlayer(ctx context.Context, repo store.Repository, playerID string, now time.Time) error {
	player, err := repo.GetPlayer(ctx, playerID)
	if err != nil {
		return fmt.Errorf("load player: %w", err)
	}
	if player != nil {
		return repo.UpdateLastSeen(ctx, playerID, now)
	}

	return repo.UpsertPlayer(ctx, &domain.Player{
		PlayerID:   playerID,
		Username:   deriveUsername(playerID),
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

func setPlayerCookie(w http.ResponseWriter, id string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     PlayerCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(playerCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(playerCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

// getOrCreatePlayerID reuses a valid cookie, refreshing its expiry, or mints
// a new one.
func getOrCreatePlayerID(w http.ResponseWriter, r *http.Request, isDev bool) string {
	id := ""
	if c, err := r.Cookie(PlayerCookieName); err == nil && isValidPlayerID(c.Value) {
		id = c.Value
	} else {
		id = generatePlayerID()
	}
	setPlayerCookie(w, id, isDev)
	return id
}

func tabIDFromRequest(r *http.Request) string {
	tid := r.Header.Get(TabHeaderName)
	if tid == "" {
		tid = r.URL.Query().Get("session_id")
	}
	return sanitizeTabID(tid)
}

// Middleware injects the anonymous player identity and tab ID.
func Middleware(repo store.Repository, isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			playerID := getOrCreatePlayerID(w, r, isDev)

			if err := ensurePlayer(r.Context(), repo, playerID, time.Now()); err != nil {
				http.Error(w, `{"error":"failed to initialize player"}`, http.StatusInternalServerError)
				return
			}

			ctx := WithPlayer(r.Context(), playerID, tabIDFromRequest(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IPFromRequest returns a normalized remote IP for request logging.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
