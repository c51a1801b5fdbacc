// Package snapshot persists the cleaned incident table between the clean and
// map stages as gzip-compressed gob.
package snapshot

import (
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/couchcryptid/crime-change-map/internal/domain"
)

// ErrSchemaMismatch is returned when a snapshot was written by an
// incompatible version.
var ErrSchemaMismatch = errors.New("snapshot schema mismatch")

// Encode writes snap to w.
func Encode(w io.Writer, snap domain.Snapshot) error {
	zw := gzip.NewWriter(w)
	if err := gob.NewEncoder(zw).Encode(snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush snapshot: %w", err)
	}
	return nil
}

// Decode reads a snapshot from r and checks its schema version.
func Decode(r io.Reader) (domain.Snapshot, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("open snapshot: %w", err)
	}
	defer zr.Close()

	var snap domain.Snapshot
	if err := gob.NewDecoder(zr).Decode(&snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.SchemaVersion != domain.SnapshotSchemaVersion {
		return domain.Snapshot{}, fmt.Errorf("%w: got version %d, want %d",
			ErrSchemaMismatch, snap.SchemaVersion, domain.SnapshotSchemaVersion)
	}
	return snap, nil
}

// Write saves snap to path. The file is written to a temporary sibling and
// renamed, so a failed run never leaves a truncated snapshot behind.
func Write(path string, snap domain.Snapshot) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // already renamed on success

	if err := Encode(tmp, snap); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Read loads the snapshot at path.
func Read(path string) (domain.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Store adapts Write and Read to pipeline.SnapshotStore.
type Store struct{}

func (Store) Write(path string, snap domain.Snapshot) error { return Write(path, snap) }

func (Store) Read(path string) (domain.Snapshot, error) { return Read(path) }
