package progress

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sin-text/backend/internal/models"
)

const wsWriteWait = 10 * time.Second

// WSSink pushes events as JSON text frames on a WebSocket connection.
type WSSink struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	once   sync.Once
}

// NewWSSink wraps an upgraded connection. The sink owns the connection and
// closes it on Close.
func NewWSSink(conn *websocket.Conn) *WSSink {
	return &WSSink{conn: conn}
}

func (s *WSSink) Emit(evt models.ProgressEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteJSON(stamp(evt))
}

// Close sends a normal-closure frame and releases the connection.
func (s *WSSink) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed = true

		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
		err = s.conn.Close()
	})
	return err
}
