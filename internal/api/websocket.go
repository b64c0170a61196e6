package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sin-text/backend/internal/models"
	"github.com/sin-text/backend/internal/progress"
)

// WebSocket message types for upload protocol
const (
	// Client -> Server messages
	MsgTypeUpload = "upload"
	MsgTypePing   = "ping"
)

// readWait bounds how long the server waits for the upload message.
const readWait = 60 * time.Second

// WebSocket message structure
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Single message upload payload
type FileUploadPayload struct {
	Name string `json:"name"`
	Data string `json:"data"` // Base64 encoded file
}

// HandleWebSocketUpload upgrades the connection, waits for one upload message
// and streams the run's progress as JSON text frames, then closes.
func (h *UploadHandlerImpl) HandleWebSocketUpload(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	sink := progress.NewWSSink(ws)
	defer sink.Close()

	h.log.Debug().Msg("websocket client connected")

	info, err := h.receiveUpload(ws)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upload rejected")
		progress.Fail(sink, err)
		return nil
	}

	progress.Emit(sink, "File caricato: "+info.OriginalName)
	h.processor.Process(c.Request().Context(), info, sink)
	return nil
}

// receiveUpload reads messages until an upload arrives, answering pings.
func (h *UploadHandlerImpl) receiveUpload(ws *websocket.Conn) (*models.UploadedFile, error) {
	ws.SetReadLimit(int64(h.upgrader.ReadBufferSize) * 1024)

	for {
		ws.SetReadDeadline(time.Now().Add(readWait))

		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			return nil, models.ValidationFailure("failed to read upload message", err)
		}

		switch msg.Type {
		case MsgTypePing:
			ws.SetWriteDeadline(time.Now().Add(readWait))
			if err := ws.WriteJSON(WSMessage{Type: "pong"}); err != nil {
				return nil, models.ValidationFailure("connection lost", err)
			}
		case MsgTypeUpload:
			var payload FileUploadPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				return nil, models.ValidationFailure("invalid upload payload", err)
			}
			decoded, err := base64.StdEncoding.DecodeString(payload.Data)
			if err != nil {
				return nil, models.ValidationFailure("invalid base64 data", err)
			}
			return h.uploads.Save(payload.Name, bytes.NewReader(decoded))
		default:
			return nil, models.ValidationFailure(fmt.Sprintf("unknown message type: %s", msg.Type), nil)
		}
	}
}
