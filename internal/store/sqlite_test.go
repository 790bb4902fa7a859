package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/neurochess/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "data", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestPlayerRoundTrip(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	missing, err := repo.GetPlayer(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)

	now := time.Unix(1_700_000_000, 0)
	require.NoError(t, repo.UpsertPlayer(ctx, &domain.Player{
		PlayerID:   "p1",
		Username:   "guest",
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}))

	got, err := repo.GetPlayer(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "guest", got.Username)
	assert.True(t, got.LastSeenAt.Equal(now))

	later := now.Add(time.Hour)
	require.NoError(t, repo.UpdateLastSeen(ctx, "p1", later))
	got, err = repo.GetPlayer(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, got.LastSeenAt.Equal(later))

	// Unknown players are logged, not failed.
	assert.NoError(t, repo.UpdateLastSeen(ctx, "ghost", later))
}

func TestAddStatsAccumulates(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	empty, err := repo.GetStats(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.Games)

	require.NoError(t, repo.AddStats(ctx, "p1", domain.StatsDelta{Games: 1, HumanMoves: 1}))
	require.NoError(t, repo.AddStats(ctx, "p1", domain.StatsDelta{AgentMoves: 1, Attempts: 3}))
	require.NoError(t, repo.AddStats(ctx, "p1", domain.StatsDelta{AgentMoves: 1, Attempts: 11, Fallbacks: 1}))
	require.NoError(t, repo.AddStats(ctx, "p1", domain.StatsDelta{}))

	stats, err := repo.GetStats(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.PlayerStats{
		PlayerID:   "p1",
		Games:      1,
		HumanMoves: 1,
		AgentMoves: 2,
		Fallbacks:  1,
		Attempts:   14,
	}, *stats)
}

func TestAddStatsConcurrent(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.AddStats(ctx, "p1", domain.StatsDelta{HumanMoves: 1}))
		}()
	}
	wg.Wait()

	stats, err := repo.GetStats(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(20), stats.HumanMoves)
}

func TestDeleteInactivePlayers(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for id, seen := range map[string]time.Time{
		"stale": now.Add(-48 * time.Hour),
		"fresh": now,
	} {
		require.NoError(t, repo.UpsertPlayer(ctx, &domain.Player{
			PlayerID: id, Username: id, LastSeenAt: seen, CreatedAt: seen, UpdatedAt: seen,
		}))
		require.NoError(t, repo.AddStats(ctx, id, domain.StatsDelta{Games: 1}))
	}

	n, err := repo.DeleteInactivePlayers(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stale, err := repo.GetPlayer(ctx, "stale")
	require.NoError(t, err)
	assert.Nil(t, stale)
	staleStats, err := repo.GetStats(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, int64(0), staleStats.Games)

	fresh, err := repo.GetPlayer(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, fresh)
}

func TestPing(t *testing.T) {
	repo := newTestStore(t)
	assert.NoError(t, repo.Ping(context.Background()))
}
