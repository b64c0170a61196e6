package progress

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/sin-text/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeFrames(t *testing.T, body string) []models.ProgressEvent {
	t.Helper()
	var events []models.ProgressEvent
	for _, frame := range strings.Split(strings.TrimSpace(body), "\n\n") {
		require.True(t, strings.HasPrefix(frame, "data: "), "bad frame %q", frame)
		var evt models.ProgressEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &evt))
		events = append(events, evt)
	}
	return events
}

func TestSSESink(t *testing.T) {
	rec := httptest.NewRecorder()
	sink := NewSSESink(rec)

	require.NoError(t, Emit(sink, "Estrazione del testo completata"))
	require.NoError(t, Emit(sink, "Invio del prompt", 30))
	require.NoError(t, Complete(sink, "pronto", &models.RunResult{FileName: "sintesi.docx", ModelUsed: "m"}))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.True(t, rec.Flushed)

	events := decodeFrames(t, rec.Body.String())
	require.Len(t, events, 3)

	assert.Equal(t, models.EventStatus, events[0].Type)
	assert.Nil(t, events[0].Progress)
	assert.Equal(t, models.EventProgress, events[1].Type)
	assert.Equal(t, 30, *events[1].Progress)
	assert.Equal(t, models.EventComplete, events[2].Type)
	assert.Equal(t, 100, *events[2].Progress)
	assert.Equal(t, "sintesi.docx", events[2].Result.FileName)
	assert.False(t, events[2].Timestamp.IsZero())
}

func TestSSESink_CloseIsIdempotent(t *testing.T) {
	rec := httptest.NewRecorder()
	sink := NewSSESink(rec)

	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
	assert.ErrorIs(t, Emit(sink, "late"), ErrClosed)
	assert.Empty(t, rec.Body.String())
}

func TestFail_CarriesErrorInfo(t *testing.T) {
	rec := httptest.NewRecorder()
	sink := NewSSESink(rec)

	pe := models.InferenceFailure(models.ReasonTimeout, "stage timed out", nil)
	pe.Stage = 2
	require.NoError(t, Fail(sink, pe))

	events := decodeFrames(t, rec.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, models.EventError, events[0].Type)
	require.NotNil(t, events[0].Error)
	assert.Equal(t, "inference", events[0].Error.Kind)
	assert.Equal(t, "timeout", events[0].Error.Reason)
	assert.Equal(t, 2, events[0].Error.Stage)
}

type brokenSink struct {
	calls int
}

func (b *brokenSink) Emit(models.ProgressEvent) error {
	b.calls++
	return errors.New("broken pipe")
}

func (b *brokenSink) Close() error { return nil }

func TestBestEffort(t *testing.T) {
	inner := &brokenSink{}
	var reported []error
	sink := BestEffort(inner, func(err error) { reported = append(reported, err) })

	assert.NoError(t, Emit(sink, "one"))
	assert.NoError(t, Emit(sink, "two", 50))
	assert.NoError(t, Emit(sink, "three"))

	assert.Equal(t, 1, inner.calls)
	require.Len(t, reported, 1)
	assert.EqualError(t, reported[0], "broken pipe")
}

func TestWSSink(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sink := NewWSSink(conn)
		defer sink.Close()
		Emit(sink, "Inizio elaborazione del documento", 10)
		Complete(sink, "fatto", &models.RunResult{FileName: "a.docx"})
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first, second models.ProgressEvent
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, 10, *first.Progress)
	assert.Equal(t, models.EventComplete, second.Type)
	assert.Equal(t, "a.docx", second.Result.FileName)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}
