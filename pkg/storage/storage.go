package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sw33tLie/leaguebundle/pkg/league"
	_ "modernc.org/sqlite"
)

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS settings (
  key        TEXT PRIMARY KEY,
  value      TEXT NOT NULL,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS bundles (
  id                     INTEGER PRIMARY KEY,
  league_id              TEXT NOT NULL,
  season                 INTEGER NOT NULL,
  fetched_at             TEXT NOT NULL,
  status                 TEXT NOT NULL,
  team_count             INTEGER NOT NULL,
  total_rostered_players INTEGER NOT NULL,
  matchup_count          INTEGER NOT NULL,
  payload                TEXT NOT NULL,
  created_at             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_bundles_league ON bundles(league_id, season, id);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// Get implements KV.
func (d *DB) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := d.sql.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set implements KV. Last write wins.
func (d *DB) Set(ctx context.Context, key, value string) error {
	_, err := d.sql.ExecContext(ctx, `INSERT INTO settings(key, value, updated_at) VALUES(?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`, key, value)
	return err
}

// SaveBundle appends a fetched bundle to the history and returns its id.
func (d *DB) SaveBundle(ctx context.Context, b *league.Bundle, status string) (int64, error) {
	if b == nil {
		return 0, errors.New("nil bundle")
	}
	payload, err := json.Marshal(b)
	if err != nil {
		return 0, fmt.Errorf("encoding bundle: %w", err)
	}
	s := b.Meta.Summary
	res, err := d.sql.ExecContext(ctx, `INSERT INTO bundles(league_id, season, fetched_at, status, team_count, total_rostered_players, matchup_count, payload) VALUES(?,?,?,?,?,?,?,?)`,
		b.Meta.LeagueID, b.Meta.Season, b.Meta.FetchedAtISO, status, s.TeamCount, s.TotalRosteredPlayers, s.MatchupCount, string(payload))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListBundles returns history records, newest first, without payloads.
func (d *DB) ListBundles(ctx context.Context, opts ListOptions) ([]BundleRecord, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	if opts.LeagueID != "" {
		where += " AND league_id = ?"
		args = append(args, opts.LeagueID)
	}
	if opts.Season != 0 {
		where += " AND season = ?"
		args = append(args, opts.Season)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	q := "SELECT id, league_id, season, fetched_at, status, team_count, total_rostered_players, matchup_count, created_at FROM bundles " + where + " ORDER BY id DESC LIMIT ?"
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []BundleRecord{}
	for rows.Next() {
		var r BundleRecord
		var createdAtStr string
		if err := rows.Scan(&r.ID, &r.LeagueID, &r.Season, &r.FetchedAt, &r.Status, &r.Summary.TeamCount, &r.Summary.TotalRosteredPlayers, &r.Summary.MatchupCount, &createdAtStr); err != nil {
			return nil, err
		}
		r.CreatedAt = parseTimestamp(createdAtStr)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LatestBundle returns the newest stored bundle, optionally for one league.
func (d *DB) LatestBundle(ctx context.Context, leagueID string) (*league.Bundle, error) {
	q := "SELECT payload FROM bundles ORDER BY id DESC LIMIT 1"
	args := []interface{}{}
	if leagueID != "" {
		q = "SELECT payload FROM bundles WHERE league_id = ? ORDER BY id DESC LIMIT 1"
		args = append(args, leagueID)
	}
	var payload string
	err := d.sql.QueryRowContext(ctx, q, args...).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var b league.Bundle
	if err := json.Unmarshal([]byte(payload), &b); err != nil {
		return nil, fmt.Errorf("decoding stored bundle: %w", err)
	}
	return &b, nil
}

// parseTimestamp reads SQLite CURRENT_TIMESTAMP values.
// Try "2006-01-02 15:04:05" then RFC3339
func parseTimestamp(s string) time.Time {
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}
