package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sin-text/backend/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createUploadStore(t *testing.T) *UploadStore {
	t.Helper()
	store, err := NewUploadStore(filepath.Join(t.TempDir(), "pdf"), observability.Nop())
	require.NoError(t, err)
	return store
}

func TestNewUploadStore_CreatesDirectory(t *testing.T) {
	store := createUploadStore(t)
	assert.DirExists(t, store.Dir())
}

func TestUploadStore_Save(t *testing.T) {
	t.Run("saves file from reader", func(t *testing.T) {
		store := createUploadStore(t)

		info, err := store.Save("bando di gara.pdf", strings.NewReader("%PDF-1.4"))
		require.NoError(t, err)

		assert.Equal(t, "bando di gara.pdf", info.OriginalName)
		assert.Equal(t, int64(8), info.Size)
		assert.True(t, strings.HasSuffix(info.ID, "-bando_di_gara.pdf"), info.ID)
		assert.Equal(t, filepath.Join(store.Dir(), info.ID), info.Path)

		data, err := os.ReadFile(info.Path)
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.4", string(data))
	})

	t.Run("saves empty file", func(t *testing.T) {
		store := createUploadStore(t)

		info, err := store.Save("empty.pdf", strings.NewReader(""))
		require.NoError(t, err)
		assert.Equal(t, int64(0), info.Size)
		assert.FileExists(t, info.Path)
	})

	t.Run("same name never collides", func(t *testing.T) {
		store := createUploadStore(t)

		a, err := store.Save("x.pdf", strings.NewReader("a"))
		require.NoError(t, err)
		b, err := store.Save("x.pdf", strings.NewReader("b"))
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("path components are stripped", func(t *testing.T) {
		store := createUploadStore(t)

		info, err := store.Save("../../etc/passwd", strings.NewReader("x"))
		require.NoError(t, err)
		assert.Equal(t, store.Dir(), filepath.Dir(info.Path))
		assert.True(t, strings.HasSuffix(info.ID, "-passwd"))
	})
}

func TestUploadStore_Remove(t *testing.T) {
	store := createUploadStore(t)

	info, err := store.Save("x.pdf", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, store.Remove(info.ID))
	assert.NoFileExists(t, info.Path)

	// second removal is a no-op
	assert.NoError(t, store.Remove(info.ID))
	assert.ErrorIs(t, store.Remove("../x"), ErrInvalidName)
}

func TestUploadStore_Sweep(t *testing.T) {
	store := createUploadStore(t)

	stale, err := store.Save("old.pdf", strings.NewReader("x"))
	require.NoError(t, err)
	fresh, err := store.Save("new.pdf", strings.NewReader("y"))
	require.NoError(t, err)

	past := time.Now().Add(-3 * time.Hour)
	require.NoError(t, os.Chtimes(stale.Path, past, past))

	removed, err := store.Sweep(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, stale.Path)
	assert.FileExists(t, fresh.Path)
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"bando.pdf", "bando.pdf"},
		{"capitolato àè.pdf", "capitolato___.pdf"},
		{`C:\docs\gara.pdf`, "gara.pdf"},
		{"..", "upload.pdf"},
		{"", "upload.pdf"},
		{".hidden.pdf", "hidden.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitize(tt.in))
		})
	}
}
