// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"
	"io"

	"github.com/labstack/echo/v4"
	"github.com/sin-text/backend/internal/models"
	"github.com/sin-text/backend/internal/progress"
	"github.com/sin-text/backend/internal/storage"
)

// UploadHandler accepts PDFs and streams the run's progress back
type UploadHandler interface {
	HandleUpload(c echo.Context) error
	HandleWebSocketUpload(c echo.Context) error
}

// ArtifactHandler serves generated documents
type ArtifactHandler interface {
	HandleDownload(c echo.Context) error
	HandleArtifactInfo(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// Processor runs one upload through the pipeline, reporting on sink.
// This allows mocking in tests
type Processor interface {
	Process(ctx context.Context, upload *models.UploadedFile, sink progress.Sink) (*models.RunResult, error)
}

// UploadSaver stores an incoming file
type UploadSaver interface {
	Save(name string, r io.Reader) (*models.UploadedFile, error)
}

// ArtifactSource streams and describes persisted artifacts
type ArtifactSource interface {
	Stream(name string, dst io.Writer, prepare func(*models.GeneratedArtifact) error) (*storage.StreamStats, error)
	Lookup(name string) (*models.GeneratedArtifact, error)
}
