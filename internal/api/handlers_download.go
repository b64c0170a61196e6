// handlers_download.go - Artifact download and metadata handlers
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/sin-text/backend/internal/models"
	"github.com/sin-text/backend/internal/storage"
)

// ArtifactHandlerImpl implements the ArtifactHandler interface
type ArtifactHandlerImpl struct {
	artifacts   ArtifactSource
	contentType string
	log         zerolog.Logger
}

// NewArtifactHandler creates a new artifact handler. contentType is sent with
// every download.
func NewArtifactHandler(artifacts ArtifactSource, contentType string, log zerolog.Logger) ArtifactHandler {
	return &ArtifactHandlerImpl{
		artifacts:   artifacts,
		contentType: contentType,
		log:         log.With().Str("handler", "download").Logger(),
	}
}

// HandleDownload streams a generated document as an attachment. Any failure
// before the first byte is a 500; a failure mid-stream is logged with the
// byte counts since the status is already on the wire.
func (h *ArtifactHandlerImpl) HandleDownload(c echo.Context) error {
	name := c.Param("fileName")
	res := c.Response()

	stats, err := h.artifacts.Stream(name, res, func(a *models.GeneratedArtifact) error {
		header := res.Header()
		header.Set(echo.HeaderContentType, h.contentType)
		header.Set(echo.HeaderContentLength, strconv.FormatInt(a.Size, 10))
		header.Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", a.FileName))
		res.WriteHeader(http.StatusOK)
		return nil
	})
	if err != nil {
		if res.Committed {
			evt := h.log.Error().Err(err).Str("file", name)
			if stats != nil {
				evt = evt.Int64("expected", stats.Expected).Int64("sent", stats.Sent)
			}
			evt.Msg("download interrupted")
			return nil
		}
		h.log.Error().Err(err).Str("file", name).Msg("download failed")
		return NewInternalError("Errore durante il download del file", err)
	}

	h.log.Info().Str("file", name).Int64("bytes", stats.Sent).Msg("download completed")
	return nil
}

// HandleArtifactInfo returns the metadata recorded when the artifact was
// generated.
func (h *ArtifactHandlerImpl) HandleArtifactInfo(c echo.Context) error {
	name := c.Param("fileName")

	meta, err := h.artifacts.Lookup(name)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrInvalidName):
			return NewBadRequestError("invalid file name", err)
		case errors.Is(err, storage.ErrNotFound):
			return NewNotFoundError("artifact", name)
		default:
			return NewInternalError("failed to read artifact metadata", err)
		}
	}

	return c.JSON(http.StatusOK, meta)
}
