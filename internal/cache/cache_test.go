package cache

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/jmapc/internal/shape"
	"github.com/roach88/jmapc/internal/wire"
)

type statefulStore interface {
	Store
	IDs(ctx context.Context, accountID, typeName string) ([]string, error)
}

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func stores(t *testing.T) map[string]statefulStore {
	return map[string]statefulStore{
		"sqlite": openTestSQLite(t),
		"memory": NewMemory(),
	}
}

func delta(state string, upserts map[string]string, removed ...string) shape.Delta {
	d := shape.Delta{AccountID: "A1", TypeName: "Task", State: state, Removed: removed}
	if upserts != nil {
		d.Upserts = make(map[string]json.RawMessage, len(upserts))
		for id, data := range upserts {
			d.Upserts[id] = json.RawMessage(data)
		}
	}
	return d
}

func TestApplyAndRead(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Apply(ctx, delta("s1", map[string]string{
				"t1": `{"id":"t1","title":"one","progress":"needs-action"}`,
				"t2": `{"id":"t2","title":"two"}`,
			})))

			state, err := s.State(ctx, "A1", "Task")
			require.NoError(t, err)
			assert.Equal(t, "s1", state)

			got, err := s.Entity(ctx, "A1", "Task", "t1")
			require.NoError(t, err)
			assert.Equal(t, `{"id":"t1","progress":"needs-action","title":"one"}`, string(got))

			ids, err := s.IDs(ctx, "A1", "Task")
			require.NoError(t, err)
			assert.Equal(t, []string{"t1", "t2"}, ids)

			_, err = s.Entity(ctx, "A1", "Task", "t9")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = s.Entity(ctx, "A2", "Task", "t1")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestApplyMergesPartialRecords(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Apply(ctx, delta("s1", map[string]string{
				"t1": `{"id":"t1","title":"one","progress":"needs-action"}`,
			})))
			require.NoError(t, s.Apply(ctx, delta("s2", map[string]string{
				"t1": `{"progress":"completed","percentComplete":100}`,
			})))

			got, err := s.Entity(ctx, "A1", "Task", "t1")
			require.NoError(t, err)
			assert.JSONEq(t, `{"id":"t1","title":"one","progress":"completed","percentComplete":100}`, string(got))

			state, err := s.State(ctx, "A1", "Task")
			require.NoError(t, err)
			assert.Equal(t, "s2", state)
		})
	}
}

func TestApplyRemoves(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Apply(ctx, delta("s1", map[string]string{
				"t1": `{"id":"t1"}`, "t2": `{"id":"t2"}`,
			})))
			require.NoError(t, s.Apply(ctx, delta("s2", nil, "t1", "t7")))

			_, err := s.Entity(ctx, "A1", "Task", "t1")
			assert.ErrorIs(t, err, ErrNotFound)
			ids, err := s.IDs(ctx, "A1", "Task")
			require.NoError(t, err)
			assert.Equal(t, []string{"t2"}, ids)
		})
	}
}

func TestApplyRemoveThenUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Apply(ctx, delta("s1", map[string]string{"t1": `{"id":"t1","title":"old"}`})))
			require.NoError(t, s.Apply(ctx, delta("s2", map[string]string{"t1": `{"id":"t1"}`}, "t1")))

			got, err := s.Entity(ctx, "A1", "Task", "t1")
			require.NoError(t, err)
			assert.Equal(t, `{"id":"t1"}`, string(got))
		})
	}
}

func TestApplyWithoutStateKeepsState(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Apply(ctx, delta("s1", nil)))
			require.NoError(t, s.Apply(ctx, delta("", nil, "t1")))

			state, err := s.State(ctx, "A1", "Task")
			require.NoError(t, err)
			assert.Equal(t, "s1", state)
		})
	}
}

func TestApplyPatches(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Apply(ctx, delta("s1", map[string]string{
				"t1": `{"id":"t1","title":"old","keywords":{"home":true},"due":"2026-01-01T00:00:00Z"}`,
				"t2": `{"id":"t2","title":"two"}`,
			})))

			d := delta("s2", map[string]string{"t1": `{"percentComplete":10}`})
			d.OldState = "s1"
			d.Patches = map[string]wire.Object{
				"t1": {
					"title":         wire.String("new"),
					"keywords/work": wire.Bool(true),
					"due":           wire.Null{},
				},
				"t2": {"alerts/a1/trigger": wire.String("x")},
				"t9": {"title": wire.String("never cached")},
			}
			require.NoError(t, s.Apply(ctx, d))

			got, err := s.Entity(ctx, "A1", "Task", "t1")
			require.NoError(t, err)
			assert.JSONEq(t, `{"id":"t1","title":"new","keywords":{"home":true,"work":true},"percentComplete":10}`, string(got))

			_, err = s.Entity(ctx, "A1", "Task", "t2")
			assert.ErrorIs(t, err, ErrNotFound, "a patch that does not resolve drops the record")
			_, err = s.Entity(ctx, "A1", "Task", "t9")
			assert.ErrorIs(t, err, ErrNotFound)

			state, err := s.State(ctx, "A1", "Task")
			require.NoError(t, err)
			assert.Equal(t, "s2", state)
		})
	}
}

func TestApplyStateOnlyFromOldState(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Apply(ctx, delta("s1", nil)))

			stale := delta("s3", map[string]string{"t1": `{"id":"t1"}`})
			stale.OldState = "s2"
			require.NoError(t, s.Apply(ctx, stale))

			state, err := s.State(ctx, "A1", "Task")
			require.NoError(t, err)
			assert.Equal(t, "s1", state)
			_, err = s.Entity(ctx, "A1", "Task", "t1")
			assert.NoError(t, err, "records are still written")

			next := delta("s2", nil)
			next.OldState = "s1"
			require.NoError(t, s.Apply(ctx, next))
			state, err = s.State(ctx, "A1", "Task")
			require.NoError(t, err)
			assert.Equal(t, "s2", state)
		})
	}
}

func TestApplyFailureIsAtomic(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Apply(ctx, delta("s1", map[string]string{
				"t1": `{"id":"t1"}`,
				"t2": `[1,2]`,
			}))
			require.Error(t, err)
			assert.True(t, IsCacheWriteFailure(err))

			state, err := s.State(ctx, "A1", "Task")
			require.NoError(t, err)
			assert.Empty(t, state)
			_, err = s.Entity(ctx, "A1", "Task", "t1")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestApplyRejectsIncompleteDelta(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Apply(context.Background(), shape.Delta{State: "s1"})
			assert.True(t, IsCacheWriteFailure(err))
		})
	}
}

func TestSQLiteClosedIsWriteFailure(t *testing.T) {
	s := openTestSQLite(t)
	require.NoError(t, s.Close())

	err := s.Apply(context.Background(), delta("s1", nil))
	var cf *CacheWriteFailure
	require.ErrorAs(t, err, &cf)
	assert.Equal(t, "begin", cf.Message)
	assert.NotNil(t, cf.Cause)
}

func TestSQLiteReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Apply(context.Background(), delta("s9", map[string]string{"t1": `{"id":"t1"}`})))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	state, err := s.State(context.Background(), "A1", "Task")
	require.NoError(t, err)
	assert.Equal(t, "s9", state)
}

func TestSQLitePragmas(t *testing.T) {
	s := openTestSQLite(t)
	var mode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestCacheWriteFailureMessage(t *testing.T) {
	cause := errors.New("disk full")
	err := writeFailure(cause, "write %s %s", "Task", "t1")
	assert.Equal(t, "cache write failure: write Task t1: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
}
