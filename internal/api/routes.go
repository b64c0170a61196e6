// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Uploads      UploadSaver
	Artifacts    ArtifactSource
	Processor    Processor
	ContentType  string
	AllowOrigin  func(origin string) bool
	Version      string
	PipelineMode string
	Logger       zerolog.Logger
}

// Handlers holds all handler instances
type Handlers struct {
	Health   HealthHandler
	Upload   UploadHandler
	Artifact ArtifactHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:   NewHealthHandler(deps.Version, deps.PipelineMode),
		Upload:   NewUploadHandler(deps.Uploads, deps.Processor, deps.AllowOrigin, deps.Logger),
		Artifact: NewArtifactHandler(deps.Artifacts, deps.ContentType, deps.Logger),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	api := e.Group("/api")

	api.GET("/health", handlers.Health.HandleHealth)

	api.POST("/upload", handlers.Upload.HandleUpload)
	api.GET("/download/:fileName", handlers.Artifact.HandleDownload)
	api.GET("/artifacts/:fileName", handlers.Artifact.HandleArtifactInfo)
}

// RegisterWebSocketRoutes registers WebSocket routes
func RegisterWebSocketRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/api/ws/upload", handlers.Upload.HandleWebSocketUpload)
}

// IsStreamingPath reports whether a request path must bypass buffering
// middleware (timeout, gzip).
func IsStreamingPath(path string) bool {
	return path == "/api/upload" || path == "/api/ws/upload" || strings.HasPrefix(path, "/api/download/")
}
