// Package checkpoint persists compacted matches while a run is in progress
// so an interrupted run can resume without refetching them.
package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"flashcoach/internal/compactor"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite"
)

// Store is a sqlite-backed checkpoint of compacted matches keyed by player and match
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the checkpoint database at path
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}
	// sqlite serializes writers anyway
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// init creates the schema
func (s *Store) init(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS compacted_matches (
			puuid TEXT NOT NULL,
			match_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			record_json TEXT NOT NULL,
			absent INTEGER NOT NULL DEFAULT 0,
			saved_at TEXT NOT NULL,
			PRIMARY KEY (puuid, match_id)
		);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create checkpoint schema: %w", err)
	}
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns every checkpointed record for puuid, keyed by match id
func (s *Store) Load(ctx context.Context, puuid string) (map[string]compactor.CompactedMatch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT match_id, record_json FROM compacted_matches WHERE puuid = ? AND absent = 0 ORDER BY position`, puuid)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoint: %w", err)
	}
	defer rows.Close()

	records := make(map[string]compactor.CompactedMatch)
	for rows.Next() {
		var matchID, raw string
		if err := rows.Scan(&matchID, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint row: %w", err)
		}
		var record compactor.CompactedMatch
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("corrupt checkpoint for %s: %w", matchID, err)
		}
		records[matchID] = record
	}
	return records, rows.Err()
}

// Save upserts one compacted record; position is its index in the match listing
func (s *Store) Save(ctx context.Context, puuid string, position int, record compactor.CompactedMatch) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO compacted_matches (puuid, match_id, position, record_json, absent, saved_at)
		VALUES (?, ?, ?, ?, 0, ?)
		ON CONFLICT (puuid, match_id) DO UPDATE SET
			position = excluded.position,
			record_json = excluded.record_json,
			absent = 0,
			saved_at = excluded.saved_at`,
		puuid, record.MatchID, position, string(data), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save checkpoint for %s: %w", record.MatchID, err)
	}
	return nil
}

// SaveAbsent records that puuid was not in matchID, so a resume skips it
func (s *Store) SaveAbsent(ctx context.Context, puuid string, position int, matchID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO compacted_matches (puuid, match_id, position, record_json, absent, saved_at)
		VALUES (?, ?, ?, '', 1, ?)
		ON CONFLICT (puuid, match_id) DO UPDATE SET
			position = excluded.position,
			record_json = '',
			absent = 1,
			saved_at = excluded.saved_at`,
		puuid, matchID, position, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save checkpoint for %s: %w", matchID, err)
	}
	return nil
}

// LoadAbsent returns the match ids recorded by SaveAbsent for puuid
func (s *Store) LoadAbsent(ctx context.Context, puuid string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT match_id FROM compacted_matches WHERE puuid = ? AND absent = 1`, puuid)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoint: %w", err)
	}
	defer rows.Close()

	absent := make(map[string]bool)
	for rows.Next() {
		var matchID string
		if err := rows.Scan(&matchID); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint row: %w", err)
		}
		absent[matchID] = true
	}
	return absent, rows.Err()
}

// Clear drops every record for puuid, called once a report has been produced
func (s *Store) Clear(ctx context.Context, puuid string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM compacted_matches WHERE puuid = ?`, puuid); err != nil {
		return fmt.Errorf("failed to clear checkpoint: %w", err)
	}
	return nil
}
