// Package db provides the persistence layer used by the application. It wraps
// a SQLite database holding the analysis cache and the history of exported
// playlists. Callers open a single DB instance using New and reuse it for all
// operations.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"Camelot-Organizer-Go/pkg/music"
)

// DB wraps a sql.DB connection and exposes helper methods for the
// application's persistence layer.
type DB struct {
	*sql.DB
}

// New opens the SQLite database located at path. If the file does not
// exist it is created along with the required schema.
func New(path string) (*DB, error) {
	d, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// Each connection to ":memory:" is a separate database.
	if path == ":memory:" {
		d.SetMaxOpenConns(1)
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analysis (
			track_id TEXT NOT NULL,
			source TEXT NOT NULL,
			tempo REAL NOT NULL,
			musical_key INTEGER NOT NULL,
			mode INTEGER NOT NULL,
			analyzed_at TIMESTAMP NOT NULL,
			PRIMARY KEY (track_id, source)
		)`,
		`CREATE TABLE IF NOT EXISTS exports (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			source_playlist_id TEXT,
			playlist_id TEXT NOT NULL,
			name TEXT NOT NULL,
			track_count INTEGER NOT NULL,
			group_count INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_exports_user ON exports(user_id, created_at)`,
	}
	// Errors here likely mean the database file is not writable.
	for _, s := range stmts {
		if _, err := d.Exec(s); err != nil {
			d.Close()
			return nil, fmt.Errorf("init db: %w", err)
		}
	}
	return &DB{d}, nil
}

// SaveAnalysis upserts analysis values produced by source.
func (db *DB) SaveAnalysis(ctx context.Context, source string, feats []music.Features) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO analysis(track_id, source, tempo, musical_key, mode, analyzed_at) VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(track_id, source) DO UPDATE SET tempo=excluded.tempo, musical_key=excluded.musical_key, mode=excluded.mode, analyzed_at=excluded.analyzed_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	now := time.Now().UTC()
	for _, f := range feats {
		if _, err := stmt.ExecContext(ctx, f.ID, source, f.Tempo, f.Key, f.Mode, now); err != nil {
			return fmt.Errorf("save analysis %s: %w", f.ID, err)
		}
	}
	return tx.Commit()
}

// GetAnalysis returns the cached values for ids produced by source. IDs
// without a cached entry are absent from the map.
func (db *DB) GetAnalysis(ctx context.Context, source string, ids []string) (map[string]music.Features, error) {
	out := make(map[string]music.Features)
	// SQLite limits the number of bound parameters per statement.
	const chunk = 500
	for start := 0; start < len(ids); start += chunk {
		part := ids[start:min(start+chunk, len(ids))]
		args := make([]any, 0, len(part)+1)
		args = append(args, source)
		for _, id := range part {
			args = append(args, id)
		}
		q := `SELECT track_id, tempo, musical_key, mode FROM analysis WHERE source=? AND track_id IN (?` +
			strings.Repeat(",?", len(part)-1) + `)`
		rows, err := db.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var f music.Features
			if err := rows.Scan(&f.ID, &f.Tempo, &f.Key, &f.Mode); err != nil {
				rows.Close()
				return nil, err
			}
			out[f.ID] = f
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Export records a playlist written back to the provider.
type Export struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	SourcePlaylistID string    `json:"source_playlist_id"`
	PlaylistID       string    `json:"playlist_id"`
	Name             string    `json:"name"`
	TrackCount       int       `json:"track_count"`
	GroupCount       int       `json:"group_count"`
	CreatedAt        time.Time `json:"created_at"`
}

// AddExport stores e, assigning a new ID and timestamp when unset. The
// stored record is returned.
func (db *DB) AddExport(ctx context.Context, e Export) (Export, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx, `INSERT INTO exports(id, user_id, source_playlist_id, playlist_id, name, track_count, group_count, created_at) VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.SourcePlaylistID, e.PlaylistID, e.Name, e.TrackCount, e.GroupCount, e.CreatedAt)
	if err != nil {
		return Export{}, err
	}
	return e, nil
}

// ListExports returns the exports made by userID, newest first. A limit of
// zero or less returns every record.
func (db *DB) ListExports(ctx context.Context, userID string, limit int) ([]Export, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx, `SELECT id, user_id, source_playlist_id, playlist_id, name, track_count, group_count, created_at FROM exports WHERE user_id=? ORDER BY created_at DESC, id LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Export
	for rows.Next() {
		var e Export
		if err := rows.Scan(&e.ID, &e.UserID, &e.SourcePlaylistID, &e.PlaylistID, &e.Name, &e.TrackCount, &e.GroupCount, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
