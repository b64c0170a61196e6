// Package storage owns the on-disk lifecycle of uploads and generated
// artifacts.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sin-text/backend/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

// copyBufferSize bounds the memory used by a single download.
const copyBufferSize = 64 * 1024

var (
	// ErrNotFound is returned when the requested artifact does not exist.
	ErrNotFound = errors.New("artifact not found")
	// ErrIncomplete is returned when fewer bytes reached the destination than
	// the artifact holds.
	ErrIncomplete = errors.New("artifact stream incomplete")
)

// Converter renders an HTML document into the artifact format.
type Converter interface {
	Convert(ctx context.Context, htmlDoc string) ([]byte, error)
}

// StreamStats reports how much of an artifact reached the destination.
type StreamStats struct {
	Expected int64
	Sent     int64
}

// ArtifactStore persists converted documents and streams them back.
type ArtifactStore struct {
	dir       string
	ext       string
	converter Converter
	log       zerolog.Logger
	now       func() time.Time
}

// NewArtifactStore creates the output directory if needed. ext is the file
// extension given to every artifact, including the leading dot.
func NewArtifactStore(dir, ext string, converter Converter, log zerolog.Logger) (*ArtifactStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating artifact directory: %w", err)
	}

	return &ArtifactStore{
		dir:       dir,
		ext:       ext,
		converter: converter,
		log:       log.With().Str("component", "artifacts").Logger(),
		now:       time.Now,
	}, nil
}

// Dir returns the output directory.
func (s *ArtifactStore) Dir() string {
	return s.dir
}

// Persist converts htmlDoc once and writes the result under a fresh name.
// meta supplies the model and source name recorded in the sidecar; its other
// fields are filled in here.
func (s *ArtifactStore) Persist(ctx context.Context, htmlDoc string, meta models.GeneratedArtifact) (*models.GeneratedArtifact, error) {
	data, err := s.converter.Convert(ctx, htmlDoc)
	if err != nil {
		return nil, models.AsPipelineError(err, models.KindConversion)
	}

	now := s.now()
	name := ArtifactName(now, s.ext)
	path := filepath.Join(s.dir, name)

	if err := writeAtomic(s.dir, path, data); err != nil {
		return nil, models.WriteFailure("failed to write artifact", err)
	}

	artifact := meta
	artifact.FileName = name
	artifact.Path = path
	artifact.Size = int64(len(data))
	artifact.CreatedAt = now

	if err := s.writeMeta(&artifact); err != nil {
		// The document itself is usable; only the metadata endpoint degrades.
		s.log.Warn().Err(err).Str("file", name).Msg("failed to write artifact metadata")
	}

	s.log.Info().Str("file", name).Int64("size", artifact.Size).Msg("artifact persisted")
	return &artifact, nil
}

// Stream copies the named artifact to dst through a bounded buffer. prepare
// runs after the artifact is known to exist and before the first byte is
// written, so callers can set response headers.
func (s *ArtifactStore) Stream(name string, dst io.Writer, prepare func(*models.GeneratedArtifact) error) (*StreamStats, error) {
	if err := validName(name); err != nil {
		return nil, models.ReadFailure("invalid artifact name", err)
	}

	path := filepath.Join(s.dir, name)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, models.ReadFailure("artifact not found", fmt.Errorf("%w: %s", ErrNotFound, name))
		}
		return nil, models.ReadFailure("failed to open artifact", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, models.ReadFailure("failed to stat artifact", err)
	}
	if !info.Mode().IsRegular() {
		return nil, models.ReadFailure("artifact not found", fmt.Errorf("%w: %s", ErrNotFound, name))
	}

	artifact := &models.GeneratedArtifact{
		FileName:  name,
		Path:      path,
		Size:      info.Size(),
		CreatedAt: info.ModTime(),
	}
	if prepare != nil {
		if err := prepare(artifact); err != nil {
			return nil, err
		}
	}

	stats := &StreamStats{Expected: artifact.Size}
	buf := make([]byte, copyBufferSize)
	n, err := io.CopyBuffer(dst, io.LimitReader(f, artifact.Size), buf)
	stats.Sent = n
	if err != nil {
		return stats, fmt.Errorf("%w: sent %d of %d bytes: %w", ErrIncomplete, stats.Sent, stats.Expected, err)
	}
	if stats.Sent != stats.Expected {
		return stats, fmt.Errorf("%w: sent %d of %d bytes", ErrIncomplete, stats.Sent, stats.Expected)
	}
	return stats, nil
}

// Lookup reads the sidecar metadata of an artifact.
func (s *ArtifactStore) Lookup(name string) (*models.GeneratedArtifact, error) {
	if err := validName(name); err != nil {
		return nil, err
	}

	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("stat artifact: %w", err)
	}

	data, err := os.ReadFile(path + metaSuffix)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no metadata for %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("reading metadata: %w", err)
	}

	var artifact models.GeneratedArtifact
	if err := msgpack.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	artifact.Path = path
	return &artifact, nil
}

// Sweep deletes artifacts and sidecars last modified more than maxAge ago.
// A non-positive maxAge keeps everything.
func (s *ArtifactStore) Sweep(maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}

	removed, err := sweepDir(s.dir, s.now().Add(-maxAge))
	if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("swept expired artifacts")
	}
	return removed, err
}

func (s *ArtifactStore) writeMeta(artifact *models.GeneratedArtifact) error {
	data, err := msgpack.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	return writeAtomic(s.dir, artifact.Path+metaSuffix, data)
}

// writeAtomic writes data to a temp file in dir and renames it into place, so
// a reader never sees a partially written file.
func writeAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming %s: %w", strings.TrimPrefix(path, dir+string(filepath.Separator)), err)
	}
	return nil
}
