package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_PutAndDelete(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir, "/uploads/")
	require.NoError(t, err)
	ctx := context.Background()

	url, err := l.Put(ctx, "avatars/u1-abc.png", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/avatars/u1-abc.png", url)

	b, err := os.ReadFile(filepath.Join(dir, "avatars", "u1-abc.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(b))

	key, ok := l.KeyFromURL(url)
	require.True(t, ok)
	assert.Equal(t, "avatars/u1-abc.png", key)

	require.NoError(t, l.Delete(ctx, key))
	_, err = os.Stat(filepath.Join(dir, "avatars", "u1-abc.png"))
	assert.True(t, os.IsNotExist(err))

	// deleting twice is fine
	assert.NoError(t, l.Delete(ctx, key))
}

func TestLocal_PathStaysInsideDir(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir, "/uploads")
	require.NoError(t, err)

	p, err := l.path("../../etc/passwd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, dir))
}

func TestKeyFromURL(t *testing.T) {
	_, ok := keyFromURL("/uploads", "https://example.com/avatar.png")
	assert.False(t, ok)
	_, ok = keyFromURL("/uploads", "/uploads/../secret")
	assert.False(t, ok)
	key, ok := keyFromURL("https://storage.googleapis.com/b", "https://storage.googleapis.com/b/avatars/x.jpg")
	assert.True(t, ok)
	assert.Equal(t, "avatars/x.jpg", key)
}

func TestContentTypeForKey(t *testing.T) {
	assert.Equal(t, "image/jpeg", contentTypeForKey("a/B.JPEG"))
	assert.Equal(t, "", contentTypeForKey("a/b.txt"))
}
