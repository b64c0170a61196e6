package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/sin-text/backend/internal/models"
)

// UploadStore keeps incoming PDFs on disk for the duration of a run.
type UploadStore struct {
	dir string
	log zerolog.Logger
}

// NewUploadStore creates the upload directory if needed.
func NewUploadStore(dir string, log zerolog.Logger) (*UploadStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	return &UploadStore{
		dir: dir,
		log: log.With().Str("component", "uploads").Logger(),
	}, nil
}

// Dir returns the directory uploads are written to.
func (s *UploadStore) Dir() string {
	return s.dir
}

// Save copies r to a new file named after the client's original name.
func (s *UploadStore) Save(name string, r io.Reader) (*models.UploadedFile, error) {
	now := time.Now()
	id := UploadName(now, name)
	path := filepath.Join(s.dir, id)

	f, err := os.Create(path)
	if err != nil {
		return nil, models.WriteFailure("creating upload file", err)
	}

	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, models.WriteFailure("writing upload file", err)
	}

	info := &models.UploadedFile{
		ID:           id,
		Path:         path,
		OriginalName: name,
		Size:         size,
		UploadedAt:   now,
	}

	s.log.Debug().Str("file", id).Int64("size", size).Msg("upload stored")
	return info, nil
}

// Remove deletes an upload. Removing an unknown or already deleted upload is
// not an error.
func (s *UploadStore) Remove(id string) error {
	if err := validName(id); err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(s.dir, id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting upload: %w", err)
	}
	return nil
}

// Sweep deletes uploads older than maxAge, including files left behind by a
// previous process. It returns the number of files removed.
func (s *UploadStore) Sweep(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed, err := sweepDir(s.dir, cutoff)
	if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("swept stale uploads")
	}
	return removed, err
}

// sweepDir removes regular files in dir last modified before cutoff.
func sweepDir(dir string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", dir, err)
	}

	removed := 0
	var firstErr error
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("removing %s: %w", e.Name(), err)
			}
			continue
		}
		removed++
	}
	return removed, firstErr
}
