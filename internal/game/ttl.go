package game

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/neurochess/internal/store"
)

const ttlWorkerInterval = 5 * time.Minute

// CleanupCallback is called for each player whose games were closed.
type CleanupCallback func(playerID string)

// StartTTLWorker runs a background goroutine that periodically closes games
// of idle players and prunes players unseen for longer than retention.
func StartTTLWorker(ctx context.Context, repo store.Repository, registry *Registry, idleTTL, retention time.Duration, onCleanup CleanupCallback) {
	ticker := time.NewTicker(ttlWorkerInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("TTL worker started", "interval", ttlWorkerInterval, "idle_ttl", idleTTL, "retention", retention)

		for {
			select {
			case <-ticker.C:
				sweep(ctx, repo, registry, idleTTL, retention, time.Now(), onCleanup)
			case <-ctx.Done():
				slog.Info("TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweep(ctx context.Context, repo store.Repository, registry *Registry, idleTTL, retention time.Duration, now time.Time, onCleanup CleanupCallback) {
	closed := 0
	for _, playerID := range registry.Players() {
		player, err := repo.GetPlayer(ctx, playerID)
		if err != nil {
			slog.Error("TTL worker failed to load player", "error", err, "player_id", playerID)
			continue
		}
		if player != nil && player.IdleFor(now) <= idleTTL {
			continue
		}

		slog.Info("TTL worker closing idle games", "player_id", playerID)
		registry.ClosePlayer(playerID)
		closed++
		if onCleanup != nil {
			onCleanup(playerID)
		}
	}
	if closed > 0 {
		slog.Info("TTL worker cleanup completed", "closed", closed)
	}

	if deleted, err := repo.DeleteInactivePlayers(ctx, retention); err != nil {
		slog.Error("TTL worker failed to prune players", "error", err)
	} else if deleted > 0 {
		slog.Info("TTL worker pruned inactive players", "count", deleted)
	}
}
