// Package persistence saves and restores agent state snapshots.
//
// Anything that can serialise itself implements Persistable. The Store keeps
// one snapshot per name in the persistence_snapshots table, encoded as CBOR
// and optionally compressed with zstd.
//
// Persistence is best effort. Every failure is reported as
// ErrPersistenceFailure and the caller logs it and carries on.
package persistence

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Snapshot encodings stored alongside the data.
const (
	EncodingCBOR     = "cbor"
	EncodingCBORZstd = "cbor+zstd"
)

// Persistable is implemented by state that survives restarts.
type Persistable interface {
	// Persist writes the current state to w. It leaves the modified flag
	// alone; the store calls MarkPersisted once the snapshot is stored.
	Persist(w io.Writer) error

	// MarkPersisted clears the modified flag.
	MarkPersisted()

	// Restore replaces the current state with the one read from r. On error
	// the previous state is kept.
	Restore(r io.Reader) error

	// IsModified reports whether the state changed since it was last stored
	// or restored.
	IsModified() bool
}

// DB is the subset of *database.DB used by the store.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Logger defines the logging interface used by the Store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store persists named snapshots in SQLite.
type Store struct {
	db       DB
	compress bool
	enc      *zstd.Encoder
	dec      *zstd.Decoder
	now      func() time.Time
	logger   Logger
}

// NewStore creates a store on db. The persistence_snapshots migration must
// have been applied. When compress is true new snapshots are zstd-compressed;
// compressed snapshots are always readable.
func NewStore(db DB, compress bool) (*Store, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}

	return &Store{
		db:       db,
		compress: compress,
		enc:      enc,
		dec:      dec,
		now:      time.Now,
		logger:   noopLogger{},
	}, nil
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// Close releases the compression resources.
func (s *Store) Close() error {
	s.dec.Close()
	return s.enc.Close()
}

// Save writes p's current state under name, replacing any previous
// snapshot. p is marked persisted only after the snapshot is stored, so a
// failed save is retried by the next SaveIfModified.
//
// Returns:
//   - error: wrapping ErrPersistenceFailure if encoding or storage fails
func (s *Store) Save(ctx context.Context, name string, p Persistable) error {
	var buf bytes.Buffer
	if err := p.Persist(&buf); err != nil {
		return fmt.Errorf("%w: encoding %s: %w", ErrPersistenceFailure, name, err)
	}

	data, encoding := buf.Bytes(), EncodingCBOR
	if s.compress {
		data, encoding = s.enc.EncodeAll(data, nil), EncodingCBORZstd
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO persistence_snapshots (name, encoding, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			encoding = excluded.encoding,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		name, encoding, data, s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: storing %s: %w", ErrPersistenceFailure, name, err)
	}
	p.MarkPersisted()

	s.logger.Debug("snapshot saved", "name", name, "encoding", encoding, "bytes", len(data))
	return nil
}

// SaveIfModified saves p only when it reports changes.
// It returns whether a save was attempted.
func (s *Store) SaveIfModified(ctx context.Context, name string, p Persistable) (bool, error) {
	if !p.IsModified() {
		return false, nil
	}
	return true, s.Save(ctx, name, p)
}

// Load restores p from the snapshot saved under name.
//
// Returns:
//   - error: ErrSnapshotNotFound if nothing was saved yet, or an error
//     wrapping ErrPersistenceFailure if the snapshot cannot be read
func (s *Store) Load(ctx context.Context, name string, p Persistable) error {
	var (
		encoding string
		data     []byte
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT encoding, data FROM persistence_snapshots WHERE name = ?", name,
	).Scan(&encoding, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("%w: loading %s: %w", ErrPersistenceFailure, name, err)
	}

	switch encoding {
	case EncodingCBOR:
	case EncodingCBORZstd:
		data, err = s.dec.DecodeAll(data, nil)
		if err != nil {
			return fmt.Errorf("%w: decompressing %s: %w", ErrPersistenceFailure, name, err)
		}
	default:
		return fmt.Errorf("%w: %s: %w %q", ErrPersistenceFailure, name, ErrUnknownEncoding, encoding)
	}

	if err := p.Restore(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: restoring %s: %w", ErrPersistenceFailure, name, err)
	}

	s.logger.Debug("snapshot restored", "name", name, "encoding", encoding)
	return nil
}
