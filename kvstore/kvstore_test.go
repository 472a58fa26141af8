package kvstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type record struct {
	Name  string
	Tags  []string
	Flags map[string]bool
}

type store interface {
	Get(ctx context.Context, key string) (*record, error)
	Set(ctx context.Context, key string, v *record) error
	Has(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

type nopBadgerLogger struct{}

func (nopBadgerLogger) Errorf(string, ...interface{})   {}
func (nopBadgerLogger) Warningf(string, ...interface{}) {}
func (nopBadgerLogger) Infof(string, ...interface{})    {}
func (nopBadgerLogger) Debugf(string, ...interface{})   {}

func openStores(t *testing.T) map[string]store {
	t.Helper()
	dir := t.TempDir()

	bdb, err := Open(filepath.Join(dir, "badger"), nopBadgerLogger{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { bdb.Close() })

	jf, err := OpenJSONFile[record](filepath.Join(dir, "data.json"))
	require.NoError(t, err)

	sdb, err := OpenSQLite(filepath.Join(dir, "data.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sdb.Close() })

	return map[string]store{
		"badger": NewBadger[record](bdb, 0),
		"json":   jf,
		"sqlite": NewSQL[record](sdb),
	}
}

func TestStores(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "moderation:1")
			assert.ErrorIs(t, err, ErrNotFound)

			ok, err := s.Has(ctx, "moderation:1")
			require.NoError(t, err)
			assert.False(t, ok)

			in := &record{Name: "one", Tags: []string{"a", "b"}, Flags: map[string]bool{"x": true}}
			require.NoError(t, s.Set(ctx, "moderation:1", in))
			require.NoError(t, s.Set(ctx, "moderation:2", &record{Name: "two"}))
			require.NoError(t, s.Set(ctx, "other:3", &record{Name: "three"}))

			ok, err = s.Has(ctx, "moderation:1")
			require.NoError(t, err)
			assert.True(t, ok)

			out, err := s.Get(ctx, "moderation:1")
			require.NoError(t, err)
			assert.Equal(t, in, out)

			// values are copies
			out.Tags[0] = "changed"
			again, err := s.Get(ctx, "moderation:1")
			require.NoError(t, err)
			assert.Equal(t, "a", again.Tags[0])

			keys, err := s.Keys(ctx, "moderation:")
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"moderation:1", "moderation:2"}, keys)

			require.NoError(t, s.Set(ctx, "moderation:2", &record{Name: "two again"}))
			out, err = s.Get(ctx, "moderation:2")
			require.NoError(t, err)
			assert.Equal(t, "two again", out.Name)

			require.NoError(t, s.Delete(ctx, "moderation:2"))
			ok, err = s.Has(ctx, "moderation:2")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestJSONFileReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "data.json")

	j, err := OpenJSONFile[record](path)
	require.NoError(t, err)
	require.NoError(t, j.Set(ctx, "moderation:1", &record{Name: "persisted"}))
	require.NoError(t, j.Close())

	_, err = os.Stat(path)
	require.NoError(t, err)

	j, err = OpenJSONFile[record](path)
	require.NoError(t, err)
	out, err := j.Get(ctx, "moderation:1")
	require.NoError(t, err)
	assert.Equal(t, "persisted", out.Name)
}

func TestJSONFileCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := OpenJSONFile[record](path)
	assert.Error(t, err)
}

func TestBadgerReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "badger")

	db, err := Open(path, nopBadgerLogger{}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, NewBadger[record](db, 0).Set(ctx, "moderation:1", &record{Name: "kept"}))
	require.NoError(t, db.Close())

	db, err = Open(path, nopBadgerLogger{}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	out, err := NewBadger[record](db, time.Hour).Get(ctx, "moderation:1")
	require.NoError(t, err)
	assert.Equal(t, "kept", out.Name)
}

func TestSQLiteMemory(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer db.Close()

	s := NewSQL[record](db)
	require.NoError(t, s.Set(ctx, "moderation:1", &record{Name: "mem"}))

	keys, err := s.Keys(ctx, "moderation:")
	require.NoError(t, err)
	assert.Equal(t, []string{"moderation:1"}, keys)

	keys, err = s.Keys(ctx, "moderation:%")
	require.NoError(t, err)
	assert.Empty(t, keys)
}
