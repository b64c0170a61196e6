package api

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sin-text/backend/internal/config"
	"github.com/sin-text/backend/internal/models"
	"github.com/sin-text/backend/internal/observability"
	"github.com/sin-text/backend/internal/pipeline"
	"github.com/sin-text/backend/internal/prompt"
	"github.com/sin-text/backend/internal/storage"
	"github.com/sin-text/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	echo      *echo.Echo
	uploads   *storage.UploadStore
	artifacts *storage.ArtifactStore
	completer *testutil.FakeCompleter
}

func newAPIFixture(t *testing.T, extractor pipeline.Extractor) *apiFixture {
	t.Helper()
	log := observability.Nop()
	dir := t.TempDir()

	uploads, err := storage.NewUploadStore(filepath.Join(dir, "pdf"), log)
	require.NoError(t, err)
	artifacts, err := storage.NewArtifactStore(filepath.Join(dir, "docx"), ".docx", &testutil.FakeConverter{}, log)
	require.NoError(t, err)

	completer := testutil.NewFakeCompleter(testutil.Reply{Text: "<h2>Informazioni Generali</h2>", Model: "fake/claude"})
	plan, err := pipeline.PlanFor(config.ModeSingle, prompt.DefaultTemplates())
	require.NoError(t, err)
	runner := pipeline.NewRunner(pipeline.RunnerConfig{
		Extractor:    extractor,
		Orchestrator: pipeline.NewOrchestrator(completer, pipeline.OrchestratorOptions{StageTimeout: time.Second}, log),
		Plan:         plan,
		Artifacts:    artifacts,
		Uploads:      uploads,
		Logger:       log,
	})

	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(log, true)
	handlers := NewHandlers(&Dependencies{
		Uploads:      uploads,
		Artifacts:    artifacts,
		Processor:    runner,
		ContentType:  "application/test",
		Version:      "test",
		PipelineMode: config.ModeSingle,
		Logger:       log,
	})
	RegisterRoutes(e, handlers)
	RegisterWebSocketRoutes(e, handlers)

	return &apiFixture{echo: e, uploads: uploads, artifacts: artifacts, completer: completer}
}

func multipartBody(t *testing.T, field, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, name)
	require.NoError(t, err)
	part.Write(content)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func parseEvents(t *testing.T, body string) []models.ProgressEvent {
	t.Helper()
	var events []models.ProgressEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var evt models.ProgressEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &evt))
		events = append(events, evt)
	}
	return events
}

func TestHandleUpload_StreamsRun(t *testing.T) {
	f := newAPIFixture(t, &testutil.FakeExtractor{Text: "Progetto Alfa, importo 100000 euro, durata 6 mesi"})

	body, contentType := multipartBody(t, "file", "capitolato.pdf", []byte("%PDF-1.4"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()

	f.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))

	events := parseEvents(t, rec.Body.String())
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	assert.Equal(t, models.EventComplete, last.Type)
	require.NotNil(t, last.Result)
	require.NotNil(t, last.Progress)
	assert.Equal(t, 100, *last.Progress)
	assert.Equal(t, "fake/claude", last.Result.ModelUsed)
	assert.True(t, strings.HasPrefix(last.Result.FileName, "sintesi_"))

	terminal := 0
	for _, evt := range events {
		if evt.Type == models.EventComplete || evt.Type == models.EventError {
			terminal++
		}
	}
	assert.Equal(t, 1, terminal)
	assert.Len(t, f.completer.Calls(), 1)
}

func TestHandleUpload_MissingFile(t *testing.T) {
	f := newAPIFixture(t, &testutil.FakeExtractor{Text: "x"})

	body, contentType := multipartBody(t, "other", "capitolato.pdf", []byte("%PDF"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()

	f.echo.ServeHTTP(rec, req)

	events := parseEvents(t, rec.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, models.EventError, events[0].Type)
	require.NotNil(t, events[0].Error)
	assert.Equal(t, string(models.KindValidation), events[0].Error.Kind)
	assert.Empty(t, f.completer.Calls())
}

func TestHandleUpload_EmptyPDF(t *testing.T) {
	f := newAPIFixture(t, &testutil.FakeExtractor{})

	body, contentType := multipartBody(t, "file", "vuoto.pdf", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()

	f.echo.ServeHTTP(rec, req)

	events := parseEvents(t, rec.Body.String())
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, models.EventError, last.Type)
	assert.Equal(t, string(models.KindExtraction), last.Error.Kind)
	assert.Empty(t, f.completer.Calls())

	matches, _ := filepath.Glob(filepath.Join(f.artifacts.Dir(), "*.docx"))
	assert.Empty(t, matches)
}

func TestHandleWebSocketUpload(t *testing.T) {
	f := newAPIFixture(t, &testutil.FakeExtractor{Text: "Progetto Alfa"})
	server := httptest.NewServer(f.echo)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/ws/upload"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	payload, _ := json.Marshal(FileUploadPayload{
		Name: "capitolato.pdf",
		Data: base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")),
	})
	require.NoError(t, conn.WriteJSON(WSMessage{Type: MsgTypeUpload, Payload: payload}))

	var events []models.ProgressEvent
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var evt models.ProgressEvent
		if err := conn.ReadJSON(&evt); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			break
		}
		events = append(events, evt)
	}

	require.NotEmpty(t, events)
	assert.Equal(t, models.EventComplete, events[len(events)-1].Type)
}

func TestHandleWebSocketUpload_BadPayload(t *testing.T) {
	f := newAPIFixture(t, &testutil.FakeExtractor{Text: "x"})
	server := httptest.NewServer(f.echo)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/ws/upload"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	payload, _ := json.Marshal(FileUploadPayload{Name: "x.pdf", Data: "%%%"})
	require.NoError(t, conn.WriteJSON(WSMessage{Type: MsgTypeUpload, Payload: payload}))

	var evt models.ProgressEvent
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, models.EventError, evt.Type)
	assert.Equal(t, string(models.KindValidation), evt.Error.Kind)
}
