package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/neurochess/internal/domain"
	"github.com/ashureev/neurochess/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	writeRetries   = 3
	writeBaseDelay = 100 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Pragmas are applied to every pooled connection, so concurrent writers
	// wait on the busy timeout instead of failing immediately.
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS players (
		player_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_players_last_seen ON players(last_seen_at);

	CREATE TABLE IF NOT EXISTS player_stats (
		player_id TEXT PRIMARY KEY,
		games INTEGER NOT NULL DEFAULT 0,
		human_moves INTEGER NOT NULL DEFAULT 0,
		agent_moves INTEGER NOT NULL DEFAULT 0,
		fallbacks INTEGER NOT NULL DEFAULT 0,
		attempts INTEGER NOT NULL DEFAULT 0
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetPlayer retrieves a player by ID.
func (s *SQLiteStore) GetPlayer(ctx context.Context, playerID string) (*domain.Player, error) {
	query := `
		SELECT player_id, username, last_seen_at, created_at, updated_at
		FROM players WHERE player_id = ?`

	var player domain.Player
	var lastSeen, createdAt, updatedAt int64

	err := s.db.QueryRowContext(ctx, query, playerID).Scan(
		&player.PlayerID, &player.Username, &lastSeen, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan player row: %w", err)
	}

	player.LastSeenAt = time.Unix(lastSeen, 0)
	player.CreatedAt = time.Unix(createdAt, 0)
	player.UpdatedAt = time.Unix(updatedAt, 0)
	return &player, nil
}

// UpsertPlayer creates or updates a player record.
func (s *SQLiteStore) UpsertPlayer(ctx context.Context, player *domain.Player) error {
	query := `
	INSERT INTO players (player_id, username, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(player_id) DO UPDATE SET
		username = excluded.username,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	return shared.RetryOnConflict(ctx, writeRetries, writeBaseDelay, func() error {
		_, err := s.db.ExecContext(ctx, query,
			player.PlayerID, player.Username, player.LastSeenAt.Unix(),
			player.CreatedAt.Unix(), player.UpdatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("upsert player: %w", err)
		}
		return nil
	})
}

// UpdateLastSeen updates the last_seen_at timestamp for a player.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, playerID string, lastSeen time.Time) error {
	query := `UPDATE players SET last_seen_at = ?, updated_at = ? WHERE player_id = ?`

	var rows int64
	err := shared.RetryOnConflict(ctx, writeRetries, writeBaseDelay, func() error {
		result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), playerID)
		if err != nil {
			return fmt.Errorf("update last_seen: %w", err)
		}
		rows, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "player_id", playerID)
	}
	return nil
}

// GetStats returns the counters for a player.
func (s *SQLiteStore) GetStats(ctx context.Context, playerID string) (*domain.PlayerStats, error) {
	query := `
		SELECT games, human_moves, agent_moves, fallbacks, attempts
		FROM player_stats WHERE player_id = ?`

	stats := domain.PlayerStats{PlayerID: playerID}
	err := s.db.QueryRowContext(ctx, query, playerID).Scan(
		&stats.Games, &stats.HumanMoves, &stats.AgentMoves, &stats.Fallbacks, &stats.Attempts,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return &stats, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan player stats: %w", err)
	}
	return &stats, nil
}

// AddStats atomically increments the counters for a player.
// SQLITE_BUSY errors are retried with exponential backoff.
func (s *SQLiteStore) AddStats(ctx context.Context, playerID string, delta domain.StatsDelta) error {
	if delta.IsZero() {
		return nil
	}

	query := `
	INSERT INTO player_stats (player_id, games, human_moves, agent_moves, fallbacks, attempts)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(player_id) DO UPDATE SET
		games = player_stats.games + excluded.games,
		human_moves = player_stats.human_moves + excluded.human_moves,
		agent_moves = player_stats.agent_moves + excluded.agent_moves,
		fallbacks = player_stats.fallbacks + excluded.fallbacks,
		attempts = player_stats.attempts + excluded.attempts`

	err := shared.RetryOnConflict(ctx, writeRetries, writeBaseDelay, func() error {
		_, err := s.db.ExecContext(ctx, query,
			playerID, delta.Games, delta.HumanMoves, delta.AgentMoves, delta.Fallbacks, delta.Attempts,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("add stats for %s: %w", playerID, err)
	}
	return nil
}

// DeleteInactivePlayers removes players not seen within retention along
// with their counters.
func (s *SQLiteStore) DeleteInactivePlayers(ctx context.Context, retention time.Duration) (int64, error) {
	threshold := time.Now().Add(-retention).Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin prune: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM player_stats WHERE player_id IN (
			SELECT player_id FROM players WHERE last_seen_at < ?
		)`, threshold); err != nil {
		return 0, fmt.Errorf("prune player stats: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM players WHERE last_seen_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("prune players: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}
	return rows, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
