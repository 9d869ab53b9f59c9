package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/ytpipe-go/api/handlers"
	"github.com/yourusername/ytpipe-go/internal/domain"
	"github.com/yourusername/ytpipe-go/internal/infrastructure"
	"github.com/yourusername/ytpipe-go/pkg/logger"
)

type fakeSession struct {
	mu      sync.Mutex
	state   domain.SessionState
	current *domain.DownloadRequest
	last    *domain.SessionResult
	stops   int
}

func (f *fakeSession) Download(url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.IsBusy() {
		return domain.ErrSessionActive
	}
	req, err := domain.NewDownloadRequest(url, "/videos")
	if err != nil {
		return err
	}
	f.state = domain.StateRunning
	f.current = req
	return nil
}

func (f *fakeSession) Toggle(url string) (bool, error) {
	if f.State().IsBusy() {
		f.StopDownload()
		return false, nil
	}
	if err := f.Download(url); err != nil {
		return false, err
	}
	return true, nil
}

func (f *fakeSession) StopDownload() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	if f.state.IsBusy() {
		f.state = domain.StateCancelling
	}
}

func (f *fakeSession) State() domain.SessionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSession) Current() *domain.DownloadRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.state.IsBusy() {
		return nil
	}
	return f.current
}

func (f *fakeSession) LastResult() *domain.SessionResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *fakeSession) ActiveProcesses() []infrastructure.ProcessInfo {
	return nil
}

type fakeTools struct{ statuses []infrastructure.ToolStatus }

func (f fakeTools) Check(ctx context.Context) []infrastructure.ToolStatus {
	return f.statuses
}

type memoryRepo struct {
	records map[string]*domain.SessionRecord
}

func (m *memoryRepo) Create(r *domain.SessionRecord) error { m.records[r.ID] = r; return nil }
func (m *memoryRepo) Update(r *domain.SessionRecord) error { m.records[r.ID] = r; return nil }
func (m *memoryRepo) FindByID(id string) (*domain.SessionRecord, error) {
	if r, ok := m.records[id]; ok {
		return r, nil
	}
	return nil, domain.ErrNotFound
}
func (m *memoryRepo) FindRecent(limit int) ([]*domain.SessionRecord, error) {
	var out []*domain.SessionRecord
	for _, r := range m.records {
		out = append(out, r)
	}
	return out, nil
}
func (m *memoryRepo) FindByState(state domain.SessionState) ([]*domain.SessionRecord, error) {
	var out []*domain.SessionRecord
	for _, r := range m.records {
		if r.State == state {
			out = append(out, r)
		}
	}
	return out, nil
}
func (m *memoryRepo) Delete(id string) error { delete(m.records, id); return nil }
func (m *memoryRepo) GetStats() (*domain.SessionStats, error) {
	stats := &domain.SessionStats{Total: int64(len(m.records))}
	for _, r := range m.records {
		if r.State == domain.StateSucceeded {
			stats.Succeeded++
		}
	}
	return stats, nil
}

type fixture struct {
	router  *gin.Engine
	session *fakeSession
	ring    *logger.RingBuffer
	repo    *memoryRepo
	events  *handlers.EventsHandler
	dlDir   string
	logsDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		session: &fakeSession{state: domain.StateIdle},
		ring:    logger.NewRingBuffer(10),
		repo:    &memoryRepo{records: map[string]*domain.SessionRecord{}},
		dlDir:   t.TempDir(),
		logsDir: t.TempDir(),
	}
	log := zap.NewNop()
	f.events = handlers.NewEventsHandler(f.session, log)

	svc := Services{
		Session: f.session,
		Tools: fakeTools{statuses: []infrastructure.ToolStatus{
			{Tool: "yt-dlp", Available: true, Version: "2024.04.09"},
			{Tool: "ffmpeg", Available: false, Error: "not found"},
		}},
		Library: infrastructure.NewLibrary(f.dlDir, log),
		History: f.repo,
		Ring:    f.ring,
		LogsDir: f.logsDir,
		Events:  f.events,
		Version: "test",
	}
	f.router = SetupRouter(svc, logger.NewSingleLoggerAdapter(log))
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])

	w = f.do(http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "ffmpeg unavailable", decode(t, w)["reason"])
}

func TestDownloadEndpoints(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		state  domain.SessionState
	}{
		{"missing url", http.MethodPost, "/api/v1/download", `{}`, http.StatusBadRequest, domain.StateIdle},
		{"blank url", http.MethodPost, "/api/v1/download", `{"url":"  "}`, http.StatusBadRequest, domain.StateIdle},
		{"start", http.MethodPost, "/api/v1/download", `{"url":"https://example.com/v"}`, http.StatusAccepted, domain.StateRunning},
		{"busy", http.MethodPost, "/api/v1/download", `{"url":"https://example.com/w"}`, http.StatusConflict, domain.StateRunning},
		{"stop", http.MethodPost, "/api/v1/stop", "", http.StatusAccepted, domain.StateCancelling},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.state, f.session.State())
		})
	}

	assert.Equal(t, "https://example.com/v", f.session.current.URL)
}

func TestToggle(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/v1/toggle", "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "idle toggle needs a url")

	w = f.do(http.MethodPost, "/api/v1/toggle", `{"url":"https://example.com/v"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, true, decode(t, w)["started"])

	w = f.do(http.MethodPost, "/api/v1/toggle", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, false, decode(t, w)["started"])
	assert.Equal(t, 1, f.session.stops)
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	f.session.last = &domain.SessionResult{
		ID:    "abc",
		State: domain.StateFailed,
		Err:   &domain.ToolExitError{Tool: "yt-dlp", Code: 1},
	}

	w := f.do(http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "idle", body["state"])
	assert.Equal(t, false, body["active"])
	assert.Nil(t, body["current"])
	last := body["last_result"].(map[string]interface{})
	assert.Equal(t, "failed", last["state"])
	assert.Equal(t, "yt-dlp exited with code 1", last["error"])
	assert.Equal(t, []interface{}{}, body["processes"])
}

func TestFilesEndpoints(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.dlDir, "clip.mp4"), make([]byte, 2048), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(f.dlDir, "notes.txt"), []byte("x"), 0644))

	w := f.do(http.MethodGet, "/api/v1/files", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 1, body["count"])
	file := body["files"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "clip.mp4", file["name"])
	assert.Equal(t, "2.0 KB", file["human_size"])

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodDelete, "/api/v1/files/..", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/v1/files/missing.mp4", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/api/v1/files/clip.mp4", "").Code)
	assert.NoFileExists(t, filepath.Join(f.dlDir, "clip.mp4"))
}

func TestHistoryEndpoints(t *testing.T) {
	f := newFixture(t)
	f.repo.records["a"] = &domain.SessionRecord{ID: "a", URL: "https://example.com/a", State: domain.StateSucceeded}
	f.repo.records["b"] = &domain.SessionRecord{ID: "b", URL: "https://example.com/b", State: domain.StateFailed}

	w := f.do(http.MethodGet, "/api/v1/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["count"])

	w = f.do(http.MethodGet, "/api/v1/history?state=failed", "")
	assert.EqualValues(t, 1, decode(t, w)["count"])

	w = f.do(http.MethodGet, "/api/v1/history/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)
	assert.EqualValues(t, 2, stats["total"])
	assert.EqualValues(t, 1, stats["succeeded"])

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/history/a", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/v1/history/zzz", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/api/v1/history/a", "").Code)
	assert.Len(t, f.repo.records, 1)
}

func TestHistoryDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()
	router := SetupRouter(Services{
		Session: &fakeSession{state: domain.StateIdle},
		Tools:   fakeTools{},
		Library: infrastructure.NewLibrary(t.TempDir(), log),
		Ring:    logger.NewRingBuffer(10),
		LogsDir: t.TempDir(),
	}, logger.NewSingleLoggerAdapter(log))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/history", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogEndpoints(t *testing.T) {
	f := newFixture(t)
	f.ring.Append("[yt-dlp] first")
	f.ring.Append("[yt-dlp] second")

	w := f.do(http.MethodGet, "/api/v1/logs?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	lines := decode(t, w)["lines"].([]interface{})
	require.Len(t, lines, 1)
	assert.True(t, strings.HasSuffix(lines[0].(string), "[yt-dlp] second"))

	assert.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/api/v1/logs", "").Code)
	assert.Equal(t, 0, f.ring.Len())

	date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.Local)
	content := "=== [2024-05-01 10:00:00] Download: aaa ===\nURL: https://example.com/one\n[yt-dlp] ERROR: Unsupported URL\n[2024-05-01 10:00:01] FAILED: yt-dlp exited with code 1\n=== END ===\n"
	require.NoError(t, os.WriteFile(logger.DownloadLogPath(f.logsDir, date), []byte(content), 0644))

	w = f.do(http.MethodGet, "/api/v1/logs/download?date=2024-05-01&q=error", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{"[yt-dlp] ERROR: Unsupported URL"}, decode(t, w)["lines"])

	w = f.do(http.MethodGet, "/api/v1/logs/download/sessions?date=2024-05-01", "")
	require.Equal(t, http.StatusOK, w.Code)
	sessions := decode(t, w)["sessions"].([]interface{})
	require.Len(t, sessions, 1)
	assert.Equal(t, "FAILED", sessions[0].(map[string]interface{})["status"])

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/logs/download?date=yesterday", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/logs/category/queue", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/logs/category/access", "").Code)

	w = f.do(http.MethodGet, "/api/v1/logs/categories", "")
	assert.Equal(t, []interface{}{"session", "access", "error"}, decode(t, w)["categories"])
}

func TestNoRoute(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/api/v1/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not found", decode(t, w)["error"])
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodOptions, "/api/v1/download", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func readEvent(t *testing.T, conn *websocket.Conn) handlers.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var ev handlers.Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestEventsWebSocket(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.events.ForwardLogs(ctx, f.ring)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	ev := readEvent(t, conn)
	require.Equal(t, handlers.EventStatus, ev.Type)
	assert.Equal(t, domain.StateIdle, ev.Status.State)

	require.Eventually(t, func() bool { return f.events.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	f.events.PublishProgress(domain.DownloadingEvent(42.5, 3*time.Second))
	ev = readEvent(t, conn)
	require.Equal(t, handlers.EventProgress, ev.Type)
	assert.InDelta(t, 0.425, ev.Progress.Progress, 1e-9)

	f.ring.Append("[yt-dlp] hello")
	ev = readEvent(t, conn)
	require.Equal(t, handlers.EventLog, ev.Type)
	assert.True(t, strings.HasSuffix(ev.Line, "[yt-dlp] hello"))

	f.events.PublishResult(&domain.SessionResult{ID: "abc", State: domain.StateCancelled, Err: domain.ErrCancelled})
	ev = readEvent(t, conn)
	require.Equal(t, handlers.EventResult, ev.Type)
	assert.Equal(t, domain.StateCancelled, ev.Result.State)
	assert.Equal(t, "download cancelled", ev.Result.Error)

	conn.Close()
	assert.Eventually(t, func() bool { return f.events.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
