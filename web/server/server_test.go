package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/df07/go-corner-culling/pkg/config"
	"github.com/df07/go-corner-culling/pkg/store"
	"github.com/df07/go-corner-culling/pkg/wire"
)

type testLogger struct{}

func (l *testLogger) Printf(format string, args ...interface{}) {}

func newTestServer(t *testing.T, sceneName string, withStore bool) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Scene = sceneName
	cfg.Culling.FrameBudget = 0
	cfg.Sim.Characters = 0

	var st *store.Store
	if withStore {
		var err error
		st, err = store.Open(filepath.Join(t.TempDir(), "maps.db"), &testLogger{})
		if err != nil {
			t.Fatalf("Expected store to open, got %v", err)
		}
		t.Cleanup(func() { st.Close() })
	}

	s, err := NewServer(cfg, st, t.TempDir())
	if err != nil {
		t.Fatalf("Expected server to start, got %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_UnknownScene(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Scene = "nowhere"
	if _, err := NewServer(cfg, nil, t.TempDir()); err == nil {
		t.Error("Expected an error for an unknown scene")
	}
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t, "corridor", false)
	rec := do(t, s.Handler(), http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("Expected ok status, got %s", rec.Body.String())
	}
}

func TestServer_Cull(t *testing.T) {
	s := newTestServer(t, "corridor", false)

	rec := do(t, s.Handler(), http.MethodGet, "/api/cull?frame=7", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp CullResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Expected JSON response, got %v", err)
	}
	if resp.Frame != 7 || resp.ViewerID != 1000 {
		t.Errorf("Expected frame 7 viewer 1000, got frame %d viewer %d", resp.Frame, resp.ViewerID)
	}
	if !slices.Contains(resp.Visible, 1) {
		t.Errorf("Expected candidate 1 visible, got %v", resp.Visible)
	}
	for _, id := range []uint64{2, 3, 4, 6} {
		if !slices.Contains(resp.Hidden, id) {
			t.Errorf("Expected candidate %d hidden, got %v", id, resp.Hidden)
		}
	}

	if rec := do(t, s.Handler(), http.MethodGet, "/api/cull?frame=abc", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for a bad frame number, got %d", rec.Code)
	}
}

func TestServer_CullProtobuf(t *testing.T) {
	s := newTestServer(t, "corridor", false)

	req := httptest.NewRequest(http.MethodGet, "/api/cull", nil)
	req.Header.Set("Accept", "application/x-protobuf")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env wire.Envelope
	if err := env.Unmarshal(rec.Body.Bytes()); err != nil {
		t.Fatalf("Expected envelope, got %v", err)
	}
	var frame wire.Frame
	if err := frame.Unmarshal(env.Payload); err != nil {
		t.Fatalf("Expected frame, got %v", err)
	}
	if env.Type != wire.TypeFrame || frame.ViewerID != 1000 {
		t.Errorf("Expected frame for viewer 1000, got %v for viewer %d", env.Type, frame.ViewerID)
	}
}

func TestServer_Occluders(t *testing.T) {
	s := newTestServer(t, "corridor", false)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/occluders",
		`{"descriptor":{"kind":"sphere","radius":50},"transform":{"translation":{"X":500,"Y":0,"Z":100}},"dynamic":true}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID      uint64 `json:"id"`
		Pending int    `json:"pending"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("Expected JSON response, got %v", err)
	}
	if created.Pending != 1 {
		t.Errorf("Expected 1 pending change, got %d", created.Pending)
	}
	s.registry.Commit()

	path := "/api/occluders/" + strconv.FormatUint(created.ID, 10)
	if rec := do(t, h, http.MethodPut, path, `{"translation":{"X":600,"Y":0,"Z":100}}`); rec.Code != http.StatusNoContent {
		t.Errorf("Expected status 204 for move, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodDelete, path, ""); rec.Code != http.StatusNoContent {
		t.Errorf("Expected status 204 for delete, got %d", rec.Code)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"BadJSON", http.MethodPost, "/api/occluders", `{`, http.StatusBadRequest},
		{"UnknownKind", http.MethodPost, "/api/occluders", `{"descriptor":{"kind":"blob"}}`, http.StatusBadRequest},
		{"TooFewCorners", http.MethodPost, "/api/occluders", `{"descriptor":{"kind":"polygon","corners":[{"X":0,"Y":0,"Z":0}]}}`, http.StatusBadRequest},
		{"BadID", http.MethodDelete, "/api/occluders/x", "", http.StatusBadRequest},
		{"UnknownID", http.MethodDelete, "/api/occluders/999", "", http.StatusNotFound},
		{"MoveStatic", http.MethodPut, "/api/occluders/1", `{}`, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			if rec.Code != tt.status {
				t.Errorf("Expected status %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestServer_Maps(t *testing.T) {
	s := newTestServer(t, "corridor", true)
	h := s.Handler()

	if rec := do(t, h, http.MethodPost, "/api/maps/corridor/save", ""); rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for save, got %d: %s", rec.Code, rec.Body.String())
	}

	rec := do(t, h, http.MethodGet, "/api/maps", "")
	var maps []store.MapInfo
	if err := json.NewDecoder(rec.Body).Decode(&maps); err != nil {
		t.Fatalf("Expected JSON map list, got %v", err)
	}
	if len(maps) != 1 || maps[0].Name != "corridor" || maps[0].Occluders != 3 {
		t.Errorf("Expected one corridor map with 3 occluders, got %+v", maps)
	}

	// Loading replaces whatever was registered since
	s.registry.Unregister(1)
	s.registry.Commit()
	rec = do(t, h, http.MethodPost, "/api/maps/corridor/load", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for load, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := s.registry.Snapshot().Len(); got != 3 {
		t.Errorf("Expected 3 occluders after load, got %d", got)
	}

	if rec := do(t, h, http.MethodPost, "/api/maps/missing/load", ""); rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for a missing map, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/api/maps/corridor", ""); rec.Code != http.StatusNoContent {
		t.Errorf("Expected status 204 for delete, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/api/maps/corridor", ""); rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for a second delete, got %d", rec.Code)
	}
}

func TestServer_MapsWithoutStore(t *testing.T) {
	s := newTestServer(t, "corridor", false)
	if rec := do(t, s.Handler(), http.MethodGet, "/api/maps", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503 for list, got %d", rec.Code)
	}
	if rec := do(t, s.Handler(), http.MethodPost, "/api/maps/x/save", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503 for save, got %d", rec.Code)
	}
}

func TestServer_StepAndStats(t *testing.T) {
	s := newTestServer(t, "arena", false)
	ctx := context.Background()

	for range s.config.Session.CullingPeriod {
		if err := s.Step(ctx, time.Second/64); err != nil {
			t.Fatalf("Expected step to succeed, got %v", err)
		}
	}

	rec := do(t, s.Handler(), http.MethodGet, "/api/stats", "")
	var stats StatsResponse
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("Expected JSON stats, got %v", err)
	}
	if stats.Frames != 1 {
		t.Errorf("Expected 1 culled frame, got %d", stats.Frames)
	}
	if stats.Characters != 4 {
		t.Errorf("Expected 4 characters, got %d", stats.Characters)
	}
	// Each of the 4 viewers tests its 2 enemies
	if stats.Last.Candidates != 8 {
		t.Errorf("Expected 8 candidates in the last cull, got %d", stats.Last.Candidates)
	}
	if stats.Profile.Frames != 4 {
		t.Errorf("Expected 4 profiled passes, got %d", stats.Profile.Frames)
	}
}

func TestServer_WebSocketStream(t *testing.T) {
	s := newTestServer(t, "arena", false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.hub.Run(ctx)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?viewer=1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Expected websocket to connect, got %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	// The current map arrives first
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Expected map message, got %v", err)
	}
	var env wire.Envelope
	if err := env.Unmarshal(data); err != nil || env.Type != wire.TypeMap {
		t.Fatalf("Expected map envelope, got %v (%v)", env.Type, err)
	}
	var m wire.Map
	if err := m.Unmarshal(env.Payload); err != nil {
		t.Fatalf("Expected map to decode, got %v", err)
	}
	if m.Name != "arena" || len(m.Records) != s.registry.Snapshot().Len() {
		t.Errorf("Expected arena map with %d records, got %q with %d", s.registry.Snapshot().Len(), m.Name, len(m.Records))
	}

	deadline := time.Now().Add(5 * time.Second)
	for s.hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Timeout waiting for client registration")
		}
		time.Sleep(5 * time.Millisecond)
	}

	for range s.config.Session.CullingPeriod {
		if err := s.Step(ctx, time.Second/64); err != nil {
			t.Fatalf("Expected step to succeed, got %v", err)
		}
	}

	// Only viewer 1's result is delivered
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Expected frame message, got %v", err)
	}
	if kind != websocket.BinaryMessage {
		t.Fatalf("Expected binary message, got type %d", kind)
	}
	if err := env.Unmarshal(data); err != nil || env.Type != wire.TypeFrame {
		t.Fatalf("Expected frame envelope, got %v (%v)", env.Type, err)
	}
	var frame wire.Frame
	if err := frame.Unmarshal(env.Payload); err != nil {
		t.Fatalf("Expected frame to decode, got %v", err)
	}
	if frame.ViewerID != 1 {
		t.Errorf("Expected frame for viewer 1, got viewer %d", frame.ViewerID)
	}
	if got := len(frame.Visible) + len(frame.Hidden); got != 2 {
		t.Errorf("Expected 2 enemies tested, got %d", got)
	}
}

func TestServer_StepSpectator(t *testing.T) {
	// The corridor has no characters; its viewer is culled on its own
	s := newTestServer(t, "corridor", false)

	for range s.config.Session.CullingPeriod {
		if err := s.Step(context.Background(), time.Second/64); err != nil {
			t.Fatalf("Expected step to succeed, got %v", err)
		}
	}

	s.mu.Lock()
	last := s.lastStats
	s.mu.Unlock()
	if last.Candidates != 6 {
		t.Errorf("Expected 6 scene candidates culled, got %d", last.Candidates)
	}
	if last.Hidden < 4 {
		t.Errorf("Expected at least 4 hidden candidates, got %d", last.Hidden)
	}
}
