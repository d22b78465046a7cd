package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persondir/internal/blob/core"
)

func TestPutWritesDataAndSidecar(t *testing.T) {
	ctx := context.Background()
	s, err := New(filepath.Join(t.TempDir(), "reports"))
	require.NoError(t, err)

	info, err := s.Put(ctx, "load/2024/a.json", strings.NewReader(`{"n":1}`), core.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"kind": "load"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), info.Size)
	assert.Len(t, info.ETag, 64)
	assert.FileExists(t, filepath.Join(s.Root(), "load", "2024", "a.json"))
	assert.FileExists(t, filepath.Join(s.Root(), "load", "2024", "a.json.meta"))

	got, rc, err := s.Get(ctx, "load/2024/a.json")
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, `{"n":1}`, string(body))
	assert.Equal(t, info.ETag, got.ETag)
	assert.Equal(t, "load", got.Metadata["kind"])
	assert.Equal(t, "application/json", got.ContentType)
}

func TestPutIsCreateOnly(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	_, err = s.Put(ctx, "a.json", strings.NewReader("1"), core.PutOptions{})
	require.NoError(t, err)
	_, err = s.Put(ctx, "a.json", strings.NewReader("2"), core.PutOptions{})
	assert.ErrorIs(t, err, core.ErrExists)

	_, rc, err := s.Get(ctx, "a.json")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "1", string(body))

	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".put-"), "temp file left behind: %s", e.Name())
	}
}

func TestRejectsEscapingKeys(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	for _, key := range []string{"", "../x", "/etc/passwd", "a/../../x", "x.meta"} {
		_, err := s.Put(context.Background(), key, strings.NewReader("x"), core.PutOptions{})
		assert.ErrorIs(t, err, core.ErrInvalidKey, key)
	}
	_, err = New("")
	assert.Error(t, err)
}

func TestListFiltersByPrefix(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	for _, k := range []string{"indexdemo/b.json", "load/b.json", "load/a.json"} {
		_, err := s.Put(ctx, k, strings.NewReader("{}"), core.PutOptions{})
		require.NoError(t, err)
	}

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "indexdemo/b.json", all[0].Key)

	loads, err := s.List(ctx, "load/")
	require.NoError(t, err)
	require.Len(t, loads, 2)
	assert.Equal(t, "load/a.json", loads[0].Key)
	assert.Equal(t, "load/b.json", loads[1].Key)

	_, _, err = s.Get(ctx, "load/c.json")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
