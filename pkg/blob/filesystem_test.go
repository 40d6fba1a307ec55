package blob

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSystemStorePutGetDelete(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileSystemStore(t.TempDir())
	require.NoError(t, err)

	err = s.Put(ctx, "2026/abc123.pdf", strings.NewReader("hello world"), "application/pdf")
	require.NoError(t, err)

	rc, err := s.Get(ctx, "2026/abc123.pdf")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello world", string(data))

	require.NoError(t, s.Delete(ctx, "2026/abc123.pdf"))

	_, err = s.Get(ctx, "2026/abc123.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileSystemStorePutReplaces(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileSystemStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "key", strings.NewReader("one"), "text/plain"))
	require.NoError(t, s.Put(ctx, "key", strings.NewReader("two"), "text/plain"))

	rc, err := s.Get(ctx, "key")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "two", string(data))
}

func TestFileSystemStoreDeleteMissing(t *testing.T) {
	s, err := NewFileSystemStore(t.TempDir())
	require.NoError(t, err)

	err = s.Delete(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileSystemStoreRejectsTraversal(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileSystemStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../escape", "..", "/etc/passwd", "."} {
		err := s.Put(ctx, key, strings.NewReader("x"), "text/plain")
		assert.Error(t, err, "key %q", key)
		_, err = s.Get(ctx, key)
		assert.Error(t, err, "key %q", key)
	}
}
