// Package sqlite stores transcripts in a SQLite database using the pure Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/promptmesh/core"
	"github.com/hupe1980/promptmesh/transcript"
)

const schema = `
CREATE TABLE IF NOT EXISTS transcript (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	agent TEXT NOT NULL,
	role TEXT NOT NULL,
	message TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transcript_agent ON transcript(agent, seq);
`

// Options configures a Store.
type Options struct {
	Now func() time.Time
}

// Store is a core.TranscriptStore backed by SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ core.TranscriptStore = (*Store)(nil)

// Open opens or creates the database at path. Use ":memory:" for a private
// in-memory database.
func Open(path string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create transcript directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open transcript database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create transcript schema: %w", err)
	}

	return &Store{db: db, now: opts.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Append implements core.TranscriptStore.
func (s *Store) Append(ctx context.Context, entry core.TranscriptEntry) error {
	entry, err := transcript.Prepare(entry, s.now)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO transcript (id, agent, role, message, created_at) VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.Agent, entry.Role, entry.Message, entry.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("append transcript entry: %w", err)
	}

	return nil
}

// List implements core.TranscriptStore. A limit <= 0 returns everything.
func (s *Store) List(ctx context.Context, agent string, limit int) ([]core.TranscriptEntry, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent, role, message, created_at FROM (
			SELECT seq, id, agent, role, message, created_at FROM transcript
			WHERE agent = ? ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC`, agent, limit)
	if err != nil {
		return nil, fmt.Errorf("list transcript: %w", err)
	}
	defer rows.Close()

	var out []core.TranscriptEntry
	for rows.Next() {
		var (
			e  core.TranscriptEntry
			ts int64
		)
		if err := rows.Scan(&e.ID, &e.Agent, &e.Role, &e.Message, &ts); err != nil {
			return nil, fmt.Errorf("scan transcript entry: %w", err)
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, e)
	}

	return out, rows.Err()
}
