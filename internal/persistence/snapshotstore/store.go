// Package snapshotstore is the optional durable sink spec.md §1 reserves
// as "a future plug-in point only": it stores opaque, versioned
// World.Serialize() blobs keyed by world id, for operator inspection, not
// deterministic replay. Grounded on the teacher's jmoiron/sqlx +
// modernc.org/sqlite connection pattern (tobyjaguar-mini-world's
// internal/persistence/db.go) and the voxelcraft example's zstd-wrapped
// snapshot writer (internal/persistence/snapshot/snapshot.go).
package snapshotstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"
)

// Store is the plug-in point World's caller may poll to persist and
// recover a snapshot. A failing Store must never block a tick (spec.md
// §7) — callers are expected to log and continue past a Store error.
type Store interface {
	Save(ctx context.Context, worldID string, payload []byte) error
	LoadLatest(ctx context.Context, worldID string) ([]byte, bool, error)
	Close() error
}

// Null is the default, zero-config store: Save is a no-op and LoadLatest
// always misses.
type Null struct{}

func (Null) Save(context.Context, string, []byte) error                { return nil }
func (Null) LoadLatest(context.Context, string) ([]byte, bool, error)  { return nil, false, nil }
func (Null) Close() error                                              { return nil }

// SQLite persists zstd-compressed snapshot payloads in a single table,
// keyed by world id, retaining the latest row per world.
type SQLite struct {
	db      *sqlx.DB
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// Open opens or creates a SQLite database at path and runs its migration.
func Open(path string) (*SQLite, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("snapshotstore: open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("snapshotstore: migrate: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("snapshotstore: zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		enc.Close()
		return nil, fmt.Errorf("snapshotstore: zstd decoder: %w", err)
	}
	return &SQLite{db: db, encoder: enc, decoder: dec}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	world_id   TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	saved_at   TEXT NOT NULL
);
`

// Save compresses payload and upserts it as worldID's latest snapshot.
func (s *SQLite) Save(ctx context.Context, worldID string, payload []byte) error {
	compressed := s.encoder.EncodeAll(payload, nil)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (world_id, payload, saved_at) VALUES (?, ?, ?)
		 ON CONFLICT(world_id) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		worldID, compressed, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("snapshotstore: save %s: %w", worldID, err)
	}
	return nil
}

// LoadLatest returns worldID's most recently saved snapshot, decompressed
// back to the raw World.Serialize() payload.
func (s *SQLite) LoadLatest(ctx context.Context, worldID string) ([]byte, bool, error) {
	var compressed []byte
	err := s.db.GetContext(ctx, &compressed, "SELECT payload FROM snapshots WHERE world_id = ?", worldID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("snapshotstore: load %s: %w", worldID, err)
	}
	payload, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, false, fmt.Errorf("snapshotstore: decompress %s: %w", worldID, err)
	}
	return payload, true, nil
}

// Close releases the zstd codecs and the underlying database connection.
func (s *SQLite) Close() error {
	s.encoder.Close()
	s.decoder.Close()
	return s.db.Close()
}
