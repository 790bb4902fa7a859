// Package domain contains core domain types for the neurochess application.
package domain

import (
	"time"
)

// Player is an anonymous per-device visitor identified by a cookie.
type Player struct {
	PlayerID   string    `json:"player_id"`
	Username   string    `json:"username"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IdleFor returns how long the player has been inactive at now.
// Returns 0 for players seen in the future (clock skew).
func (p *Player) IdleFor(now time.Time) time.Duration {
	idle := now.Sub(p.LastSeenAt)
	if idle < 0 {
		return 0
	}
	return idle
}
