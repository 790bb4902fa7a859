// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/neurochess/internal/domain"
)

// Repository persists anonymous players and their aggregate counters.
type Repository interface {
	// GetPlayer retrieves a player by ID. It returns nil, nil when unknown.
	GetPlayer(ctx context.Context, playerID string) (*domain.Player, error)

	// UpsertPlayer creates or updates a player record.
	UpsertPlayer(ctx context.Context, player *domain.Player) error

	// UpdateLastSeen updates the last_seen_at timestamp for a player.
	UpdateLastSeen(ctx context.Context, playerID string, lastSeen time.Time) error

	// GetStats returns the counters for a player, zero-valued when none exist.
	GetStats(ctx context.Context, playerID string) (*domain.PlayerStats, error)

	// AddStats atomically increments the counters for a player.
	AddStats(ctx context.Context, playerID string, delta domain.StatsDelta) error

	// DeleteInactivePlayers removes players (and their counters) not seen
	// within retention.
	DeleteInactivePlayers(ctx context.Context, retention time.Duration) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
