// handlers_upload.go - PDF upload handlers
package api

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/sin-text/backend/internal/models"
	"github.com/sin-text/backend/internal/progress"
)

// UploadHandlerImpl implements the UploadHandler interface
type UploadHandlerImpl struct {
	uploads   UploadSaver
	processor Processor
	upgrader  websocket.Upgrader
	log       zerolog.Logger
}

// NewUploadHandler creates a new upload handler instance. allowOrigin decides
// which browser origins may open the WebSocket variant; nil allows all.
func NewUploadHandler(uploads UploadSaver, processor Processor, allowOrigin func(string) bool, log zerolog.Logger) UploadHandler {
	return &UploadHandlerImpl{
		uploads:   uploads,
		processor: processor,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowOrigin == nil || allowOrigin(origin)
			},
			ReadBufferSize:  64 * 1024, // 64KB read buffer
			WriteBufferSize: 64 * 1024, // 64KB write buffer
		},
		log: log.With().Str("handler", "upload").Logger(),
	}
}

// HandleUpload accepts a multipart PDF in field "file" and answers with a
// text/event-stream carrying the run's progress. The response always ends
// with exactly one complete or error event.
func (h *UploadHandlerImpl) HandleUpload(c echo.Context) error {
	// The body is consumed before the stream is committed.
	fh, formErr := c.FormFile("file")

	sink := progress.NewSSESink(c.Response())
	defer sink.Close()

	if formErr != nil {
		h.log.Warn().Err(formErr).Msg("upload without file")
		progress.Fail(sink, models.ValidationFailure("Nessun file caricato", formErr))
		return nil
	}

	src, err := fh.Open()
	if err != nil {
		progress.Fail(sink, models.ValidationFailure("impossibile leggere il file caricato", err))
		return nil
	}
	info, err := h.uploads.Save(fh.Filename, src)
	src.Close()
	if err != nil {
		h.log.Error().Err(err).Str("name", fh.Filename).Msg("failed to store upload")
		progress.Fail(sink, err)
		return nil
	}

	progress.Emit(sink, "File caricato: "+info.OriginalName)
	h.processor.Process(c.Request().Context(), info, sink)
	return nil
}
