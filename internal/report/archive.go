package report

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Archive stores finished reports beyond the markdown file
type Archive interface {
	Save(ctx context.Context, r *Report) error
	Close() error
}

const createReportsTable = `
	CREATE TABLE IF NOT EXISTS coaching_reports (
		run_id TEXT PRIMARY KEY,
		puuid TEXT NOT NULL,
		riot_id TEXT NOT NULL,
		region TEXT NOT NULL,
		model TEXT NOT NULL,
		match_count INTEGER NOT NULL,
		matches_json TEXT NOT NULL,
		body TEXT NOT NULL,
		generated_at TEXT NOT NULL
	)`

// NewArchive opens the archive named by rawURL:
// postgres:// and postgresql:// use pgx, libsql:// and https:// use Turso,
// anything else is treated as a local sqlite file.
func NewArchive(ctx context.Context, rawURL string) (Archive, error) {
	switch driver, dsn := archiveDriver(rawURL); driver {
	case "pgx":
		return NewPostgresArchive(ctx, dsn)
	default:
		return NewSQLArchive(ctx, driver, dsn)
	}
}

// archiveDriver maps an archive URL to a driver name and DSN
func archiveDriver(rawURL string) (string, string) {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return "pgx", rawURL
	case strings.HasPrefix(lower, "libsql://"), strings.HasPrefix(lower, "https://"):
		return "libsql", rawURL
	default:
		return "sqlite", rawURL
	}
}

// SQLArchive writes reports through database/sql (sqlite or libsql)
type SQLArchive struct {
	db *sql.DB
}

// NewSQLArchive opens dsn with driver, pings it and creates the table
func NewSQLArchive(ctx context.Context, driver, dsn string) (*SQLArchive, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s archive: %w", driver, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s archive: %w", driver, err)
	}

	if _, err := db.ExecContext(ctx, createReportsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create reports table: %w", err)
	}
	return &SQLArchive{db: db}, nil
}

func (a *SQLArchive) Save(ctx context.Context, r *Report) error {
	matches, err := json.Marshal(r.Matches)
	if err != nil {
		return fmt.Errorf("failed to marshal matches: %w", err)
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO coaching_reports
			(run_id, puuid, riot_id, region, model, match_count, matches_json, body, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Player.PUUID, r.Player.RiotID(), string(r.Region), r.Model,
		len(r.Matches), string(matches), r.Body, r.GeneratedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to archive report: %w", err)
	}
	return nil
}

func (a *SQLArchive) Close() error {
	return a.db.Close()
}

// PostgresArchive writes reports to Postgres through a pgx pool
type PostgresArchive struct {
	pool *pgxpool.Pool
}

// NewPostgresArchive connects, pings and creates the table
func NewPostgresArchive(ctx context.Context, dbURL string) (*PostgresArchive, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, createReportsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create reports table: %w", err)
	}
	return &PostgresArchive{pool: pool}, nil
}

func (a *PostgresArchive) Save(ctx context.Context, r *Report) error {
	matches, err := json.Marshal(r.Matches)
	if err != nil {
		return fmt.Errorf("failed to marshal matches: %w", err)
	}

	_, err = a.pool.Exec(ctx, `
		INSERT INTO coaching_reports
			(run_id, puuid, riot_id, region, model, match_count, matches_json, body, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.RunID, r.Player.PUUID, r.Player.RiotID(), string(r.Region), r.Model,
		len(r.Matches), string(matches), r.Body, r.GeneratedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to archive report: %w", err)
	}
	return nil
}

func (a *PostgresArchive) Close() error {
	a.pool.Close()
	return nil
}
