package persistence

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-agent/internal/infrastructure/database"
	_ "github.com/nerrad567/gray-logic-agent/migrations" // registers embedded migrations
)

// counterState is a minimal Persistable used to exercise the store.
type counterState struct {
	Count    int      `cbor:"count"`
	Labels   []string `cbor:"labels"`
	modified bool
	failOn   error
}

func (c *counterState) Persist(w io.Writer) error {
	if c.failOn != nil {
		return c.failOn
	}
	return Encode(w, c)
}

func (c *counterState) MarkPersisted() { c.modified = false }

func (c *counterState) Restore(r io.Reader) error {
	var next counterState
	if err := Decode(r, &next); err != nil {
		return err
	}
	c.Count, c.Labels, c.modified = next.Count, next.Labels, false
	return nil
}

func (c *counterState) IsModified() bool { return c.modified }

// flakyDB fails every ExecContext while fail is set.
type flakyDB struct {
	DB
	fail  bool
	execs int
}

func (f *flakyDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	f.execs++
	if f.fail {
		return nil, errors.New("disk full")
	}
	return f.DB.ExecContext(ctx, query, args...)
}

func openStore(t *testing.T, compress bool) (*Store, *database.DB) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "agent.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	store, err := NewStore(db, compress)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() }) //nolint:errcheck // Test cleanup
	return store, db
}

func TestStore_SaveLoad(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "zstd"
		}
		t.Run(name, func(t *testing.T) {
			store, db := openStore(t, compress)
			ctx := context.Background()

			in := &counterState{Count: 7, Labels: []string{"LED Control"}, modified: true}
			if err := store.Save(ctx, "counter", in); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			if in.IsModified() {
				t.Error("Save() did not clear the modified flag")
			}

			var encoding string
			if err := db.QueryRowContext(ctx,
				"SELECT encoding FROM persistence_snapshots WHERE name = ?", "counter",
			).Scan(&encoding); err != nil {
				t.Fatalf("query encoding: %v", err)
			}
			want := EncodingCBOR
			if compress {
				want = EncodingCBORZstd
			}
			if encoding != want {
				t.Errorf("encoding = %q, want %q", encoding, want)
			}

			out := &counterState{}
			if err := store.Load(ctx, "counter", out); err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if out.Count != 7 || len(out.Labels) != 1 || out.Labels[0] != "LED Control" {
				t.Errorf("Load() = %+v", out)
			}
		})
	}
}

func TestStore_SaveOverwrites(t *testing.T) {
	store, _ := openStore(t, false)
	ctx := context.Background()

	for _, n := range []int{1, 2, 3} {
		if err := store.Save(ctx, "counter", &counterState{Count: n}); err != nil {
			t.Fatalf("Save(%d) error = %v", n, err)
		}
	}

	out := &counterState{}
	if err := store.Load(ctx, "counter", out); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if out.Count != 3 {
		t.Errorf("Count = %d, want 3", out.Count)
	}
}

func TestStore_LoadMissing(t *testing.T) {
	store, _ := openStore(t, false)

	err := store.Load(context.Background(), "nothing", &counterState{})
	if !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("Load() error = %v, want ErrSnapshotNotFound", err)
	}
}

func TestStore_Failures(t *testing.T) {
	store, db := openStore(t, false)
	ctx := context.Background()

	t.Run("persist error", func(t *testing.T) {
		err := store.Save(ctx, "bad", &counterState{failOn: errors.New("disk full")})
		if !errors.Is(err, ErrPersistenceFailure) {
			t.Errorf("Save() error = %v, want ErrPersistenceFailure", err)
		}
	})

	t.Run("corrupt snapshot keeps state", func(t *testing.T) {
		if _, err := db.ExecContext(ctx,
			"INSERT INTO persistence_snapshots (name, encoding, data, updated_at) VALUES (?, ?, ?, ?)",
			"corrupt", EncodingCBOR, []byte{0xff, 0x00}, "2026-10-15T00:00:00Z",
		); err != nil {
			t.Fatalf("insert: %v", err)
		}

		state := &counterState{Count: 42}
		err := store.Load(ctx, "corrupt", state)
		if !errors.Is(err, ErrPersistenceFailure) {
			t.Errorf("Load() error = %v, want ErrPersistenceFailure", err)
		}
		if state.Count != 42 {
			t.Errorf("failed restore changed state: Count = %d", state.Count)
		}
	})

	t.Run("unknown encoding", func(t *testing.T) {
		if _, err := db.ExecContext(ctx,
			"INSERT INTO persistence_snapshots (name, encoding, data, updated_at) VALUES (?, ?, ?, ?)",
			"future", "cbor+brotli", []byte{0x00}, "2026-10-15T00:00:00Z",
		); err != nil {
			t.Fatalf("insert: %v", err)
		}
		err := store.Load(ctx, "future", &counterState{})
		if !errors.Is(err, ErrUnknownEncoding) {
			t.Errorf("Load() error = %v, want ErrUnknownEncoding", err)
		}
	})
}

func TestStore_SaveIfModified(t *testing.T) {
	store, _ := openStore(t, false)
	ctx := context.Background()

	state := &counterState{Count: 1}
	saved, err := store.SaveIfModified(ctx, "counter", state)
	if err != nil || saved {
		t.Fatalf("SaveIfModified(clean) = (%v, %v), want (false, nil)", saved, err)
	}

	state.modified = true
	saved, err = store.SaveIfModified(ctx, "counter", state)
	if err != nil || !saved {
		t.Fatalf("SaveIfModified(dirty) = (%v, %v), want (true, nil)", saved, err)
	}
}

func TestStore_SaveIfModifiedRetriesAfterStoreFailure(t *testing.T) {
	_, db := openStore(t, false)
	flaky := &flakyDB{DB: db, fail: true}
	store, err := NewStore(flaky, false)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer store.Close() //nolint:errcheck // Test cleanup
	ctx := context.Background()

	state := &counterState{Count: 5, modified: true}
	saved, err := store.SaveIfModified(ctx, "counter", state)
	if !saved || !errors.Is(err, ErrPersistenceFailure) {
		t.Fatalf("SaveIfModified(failing) = (%v, %v), want (true, ErrPersistenceFailure)", saved, err)
	}
	if !state.IsModified() {
		t.Fatal("IsModified() = false after a failed save")
	}

	flaky.fail = false
	saved, err = store.SaveIfModified(ctx, "counter", state)
	if err != nil || !saved {
		t.Fatalf("SaveIfModified(retry) = (%v, %v), want (true, nil)", saved, err)
	}
	if state.IsModified() {
		t.Error("IsModified() = true after a successful save")
	}
	if flaky.execs != 2 {
		t.Errorf("ExecContext calls = %d, want 2", flaky.execs)
	}

	out := &counterState{}
	if err := store.Load(ctx, "counter", out); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if out.Count != 5 {
		t.Errorf("Count = %d, want 5", out.Count)
	}
}

func TestCodec_Deterministic(t *testing.T) {
	a := map[string]int{"b": 2, "a": 1, "c": 3}
	first, err := Marshal(a)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	for range 10 {
		again, _ := Marshal(a)
		if !bytes.Equal(first, again) {
			t.Fatal("Marshal() output is not deterministic")
		}
	}

	var out map[string]int
	if err := Unmarshal(first, &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if out["c"] != 3 {
		t.Errorf("Unmarshal() = %v", out)
	}
}
