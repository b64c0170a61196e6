package pdftext

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sin-text/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_Failures(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.pdf")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	garbage := filepath.Join(dir, "garbage.pdf")
	require.NoError(t, os.WriteFile(garbage, []byte("this is not a pdf at all"), 0644))

	tests := []struct {
		name string
		path string
	}{
		{name: "zero bytes", path: empty},
		{name: "not a pdf", path: garbage},
		{name: "missing file", path: filepath.Join(dir, "missing.pdf")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := NewExtractor().Extract(context.Background(), tt.path)
			assert.Empty(t, text)
			assert.ErrorIs(t, err, models.ErrExtraction)
		})
	}
}

func TestExtract_CancelledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExtractor().Extract(ctx, path)
	assert.ErrorIs(t, err, models.ErrExtraction)
}
