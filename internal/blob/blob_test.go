package blob

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStore runs the behaviour every Store implementation must share
func testStore(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("put and get", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "images/a.jpg", "image/jpeg", []byte("fake jpeg data")))

		r, info, err := store.Get(ctx, "images/a.jpg")
		require.NoError(t, err)
		defer r.Close()

		data, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, []byte("fake jpeg data"), data)
		assert.Equal(t, "images/a.jpg", info.Key)
		assert.Equal(t, int64(len("fake jpeg data")), info.Size)
		assert.Equal(t, "image/jpeg", info.ContentType)
		assert.False(t, info.ModTime.IsZero())
	})

	t.Run("overwrite replaces content", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "images/b.jpg", "image/jpeg", []byte("one")))
		require.NoError(t, store.Put(ctx, "images/b.jpg", "image/jpeg", []byte("two")))

		r, _, err := store.Get(ctx, "images/b.jpg")
		require.NoError(t, err)
		defer r.Close()
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, "two", string(data))
	})

	t.Run("list by prefix", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "metadata/photos-1.json", "application/json", []byte("[]")))
		require.NoError(t, store.Put(ctx, "metadata/photos-2.json", "application/json", []byte("[]")))

		infos, err := store.List(ctx, "metadata/photos-")
		require.NoError(t, err)
		require.Len(t, infos, 2)
		assert.Equal(t, "metadata/photos-1.json", infos[0].Key)
		assert.Equal(t, "metadata/photos-2.json", infos[1].Key)

		none, err := store.List(ctx, "nothing/")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "images/c.png", "image/png", []byte("png")))
		require.NoError(t, store.Delete(ctx, "images/c.png"))

		_, _, err := store.Get(ctx, "images/c.png")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("missing key", func(t *testing.T) {
		_, _, err := store.Get(ctx, "images/missing.jpg")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestMemoryStoreModTimeIncreases(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, key := range []string{"k/1", "k/2", "k/3"} {
		require.NoError(t, store.Put(ctx, key, "text/plain", nil))
	}
	infos, err := store.List(ctx, "k/")
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.True(t, infos[1].ModTime.After(infos[0].ModTime))
	assert.True(t, infos[2].ModTime.After(infos[1].ModTime))
	assert.Equal(t, 3, store.Len())
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.Put(ctx, "a", "text/plain", nil), context.Canceled)
	_, err := store.List(ctx, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalStore(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	testStore(t, store)
}

func TestLocalStorePathTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, _, err = store.Get(ctx, "../../etc/passwd")
	assert.Error(t, err)
	assert.Error(t, store.Put(ctx, "images/../../escape.jpg", "image/jpeg", []byte("x")))
	assert.Error(t, store.Delete(ctx, "/etc/passwd"))
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("GALLERY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("GALLERY_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	db, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer db.Close()

	store, err := NewPostgresStore(ctx, db)
	require.NoError(t, err)
	_, err = db.Exec(ctx, `TRUNCATE blobs`)
	require.NoError(t, err)

	testStore(t, store)
}

func TestValidKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"images/a.jpg", true},
		{"metadata/photos-1.json", true},
		{"", false},
		{"/abs", false},
		{"a/../b", false},
		{"a//b", false},
		{"a\\b", false},
		{"./a", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidKey(tt.key))
		})
	}
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "image/png", ContentTypeFor("images/x.PNG"))
	assert.Equal(t, "image/jpeg", ContentTypeFor("images/x.jpeg"))
	assert.Equal(t, "application/json", ContentTypeFor("metadata/photos-1.json"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("images/x"))
}
