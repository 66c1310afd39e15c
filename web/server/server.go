package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/df07/go-corner-culling/pkg/config"
	"github.com/df07/go-corner-culling/pkg/core"
	"github.com/df07/go-corner-culling/pkg/culling"
	"github.com/df07/go-corner-culling/pkg/geometry"
	"github.com/df07/go-corner-culling/pkg/registry"
	"github.com/df07/go-corner-culling/pkg/scene"
	"github.com/df07/go-corner-culling/pkg/session"
	"github.com/df07/go-corner-culling/pkg/sim"
	"github.com/df07/go-corner-culling/pkg/store"
	"github.com/df07/go-corner-culling/pkg/wire"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server runs a culling session over the configured scene and streams the
// results to websocket clients
type Server struct {
	config   *config.Config
	sceneDir string
	scene    *scene.Scene
	registry *registry.Registry
	culler   *culling.Culler
	session  *session.Session
	world    *sim.World
	store    *store.Store // nil when persistence is disabled
	hub      *Hub
	logger   core.Logger
	console  chan ConsoleMessage

	frames    atomic.Uint64
	mu        sync.Mutex
	lastStats culling.FrameStats
}

// OccluderRequest is the body of POST /api/occluders
type OccluderRequest struct {
	Descriptor geometry.Descriptor `json:"descriptor"`
	Transform  geometry.Transform  `json:"transform"`
	Dynamic    bool                `json:"dynamic"`
}

// StatsResponse is the body of GET /api/stats
type StatsResponse struct {
	Scene          string             `json:"scene"`
	Version        uint64             `json:"version"`
	Occluders      int                `json:"occluders"`
	Pending        int                `json:"pending"`
	Characters     int                `json:"characters"`
	Clients        int                `json:"clients"`
	Frames         uint64             `json:"frames"`
	TimerIncrement int                `json:"timer_increment"`
	Profile        culling.Profile    `json:"profile"`
	Last           culling.FrameStats `json:"last"`
}

// CullResponse is the JSON form of one culling result
type CullResponse struct {
	Frame    uint64             `json:"frame"`
	ViewerID uint64             `json:"viewer"`
	Visible  []uint64           `json:"visible"`
	Hidden   []uint64           `json:"hidden"`
	Stats    culling.FrameStats `json:"stats"`
}

// NewServer loads the configured scene from the built-ins or sceneDir and
// sets up the session around it. st may be nil.
func NewServer(cfg *config.Config, st *store.Store, sceneDir string) (*Server, error) {
	consoleChan := make(chan ConsoleMessage, 256)
	logger := NewWebLogger("server", consoleChan)

	sc, err := scene.Resolve(cfg.Server.Scene, sceneDir)
	if err != nil {
		return nil, err
	}

	reg := registry.New(logger)
	if _, err := sc.Populate(reg); err != nil {
		return nil, err
	}

	culler := culling.NewCuller(reg, cfg.Culling, NewWebLogger("culling", consoleChan))
	s := &Server{
		config:   cfg,
		sceneDir: sceneDir,
		scene:    sc,
		registry: reg,
		culler:   culler,
		session:  session.New(culler, reg, nil, cfg.Session, logger),
		world:    sim.NewWorld(cfg.Sim, sim.SnapshotBlocker{Source: reg}),
		store:    st,
		hub:      NewHub(cfg.Server.WriteTimeout.Std(), log.Default()),
		logger:   logger,
		console:  consoleChan,
	}

	// Simulated characters replace the ones the scene places
	if cfg.Sim.Characters > 0 {
		s.world.Populate()
		s.world.Sync(s.session)
	} else {
		for _, c := range sc.Characters {
			s.session.Upsert(c)
		}
	}

	logger.Printf("[Server] scene %q: %d occluders, %d characters, %d candidates\n",
		sc.Name, reg.Snapshot().Len(), len(s.session.Characters()), len(sc.Candidates))
	return s, nil
}

// Close stops the culler
func (s *Server) Close() {
	s.culler.Close()
}

// Handler returns the HTTP routes of the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/scenes", s.handleScenes)
	mux.HandleFunc("GET /api/cull", s.handleCull)
	mux.HandleFunc("GET /api/occluders", s.handleListOccluders)
	mux.HandleFunc("POST /api/occluders", s.handleAddOccluder)
	mux.HandleFunc("PUT /api/occluders/{id}", s.handleMoveOccluder)
	mux.HandleFunc("DELETE /api/occluders/{id}", s.handleRemoveOccluder)
	mux.HandleFunc("GET /api/maps", s.handleListMaps)
	mux.HandleFunc("POST /api/maps/{name}/save", s.handleSaveMap)
	mux.HandleFunc("POST /api/maps/{name}/load", s.handleLoadMap)
	mux.HandleFunc("DELETE /api/maps/{name}", s.handleDeleteMap)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Start serves HTTP and runs the frame loop until ctx is done
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Server.Port)
	httpServer := &http.Server{Addr: addr, Handler: s.Handler()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Starting culling server on http://localhost%s", addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		s.hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		s.forwardConsole(gctx)
		return nil
	})
	g.Go(func() error {
		return s.Run(gctx)
	})
	return g.Wait()
}

// Run ticks the session at the configured frame rate until ctx is done
func (s *Server) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(s.config.Server.FrameRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Step(ctx, interval); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Printf("[Server] step failed: %v\n", err)
			}
		}
	}
}

// Step advances the simulation by dt, ticks the session and broadcasts
// every culling result it produced
func (s *Server) Step(ctx context.Context, dt time.Duration) error {
	if s.world.Len() > 0 {
		s.world.Step(dt)
		s.world.Sync(s.session)
	}

	report, err := s.session.Tick(ctx)
	if err != nil {
		return err
	}
	if !report.Culled {
		return nil
	}

	// A scene viewer that is not a character watches as a spectator
	results := report.Results
	if len(s.scene.Candidates) > 0 && !s.isCharacter(s.scene.Viewer.ID) {
		r, err := s.culler.Cull(ctx, s.scene.Frame(report.Tick))
		if err != nil {
			return err
		}
		results = append(results, r)
	}

	var total culling.FrameStats
	for _, r := range results {
		total.Add(r.Stats)
		frame := wire.NewFrame(r)
		if !s.hub.Broadcast(r.ViewerID, frame.Envelope().Marshal()) {
			s.logger.Printf("[Server] broadcast queue full, dropped frame %d for viewer %d\n", r.Frame, r.ViewerID)
		}
	}
	s.frames.Add(1)
	s.mu.Lock()
	s.lastStats = total
	s.mu.Unlock()
	return nil
}

func (s *Server) isCharacter(id uint64) bool {
	for _, c := range s.session.Characters() {
		if c.ID == id {
			return true
		}
	}
	return false
}

// forwardConsole sends server log lines to every client as JSON text
func (s *Server) forwardConsole(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.console:
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			s.hub.BroadcastText(data)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// errorStatus maps domain errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, registry.ErrUnknownOccluder), errors.Is(err, store.ErrMapNotFound):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrStaticOccluder):
		return http.StatusConflict
	case errors.Is(err, geometry.ErrTooFewCorners), errors.Is(err, geometry.ErrDegenerate),
		errors.Is(err, geometry.ErrNonPlanar), errors.Is(err, geometry.ErrNonConvex),
		errors.Is(err, geometry.ErrUnknownKind), errors.Is(err, store.ErrInvalidName):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// handleHealth provides a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.registry.Snapshot()
	s.mu.Lock()
	last := s.lastStats
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, StatsResponse{
		Scene:          s.scene.Name,
		Version:        snap.Version,
		Occluders:      snap.Len(),
		Pending:        s.registry.Pending(),
		Characters:     len(s.session.Characters()),
		Clients:        s.hub.Clients(),
		Frames:         s.frames.Load(),
		TimerIncrement: s.session.TimerIncrement(),
		Profile:        s.culler.Profiler().Profile(),
		Last:           last,
	})
}

func (s *Server) handleScenes(w http.ResponseWriter, r *http.Request) {
	scenes, err := scene.ListAllScenes(s.sceneDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, scenes)
}

// handleCull culls the scene viewer's candidates on demand. Clients that
// accept application/x-protobuf get the wire envelope instead of JSON.
func (s *Server) handleCull(w http.ResponseWriter, r *http.Request) {
	number, err := parseIntParam(r.URL.Query(), "frame", 0, 0, 1<<31-1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.culler.Cull(r.Context(), s.scene.Frame(uint64(number)))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	if r.Header.Get("Accept") == "application/x-protobuf" {
		frame := wire.NewFrame(result)
		w.Header().Set("Content-Type", "application/x-protobuf")
		w.WriteHeader(http.StatusOK)
		w.Write(frame.Envelope().Marshal())
		return
	}
	writeJSON(w, http.StatusOK, CullResponse{
		Frame:    result.Frame,
		ViewerID: result.ViewerID,
		Visible:  result.VisibleIDs(),
		Hidden:   result.HiddenIDs(),
		Stats:    result.Stats,
	})
}

func (s *Server) handleListOccluders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Snapshot().Records())
}

// handleAddOccluder queues a new occluder; it is published at the next cull
func (s *Server) handleAddOccluder(w http.ResponseWriter, r *http.Request) {
	var req OccluderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id, err := s.registry.Register(req.Descriptor, req.Transform, req.Dynamic)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "pending": s.registry.Pending()})
}

func (s *Server) handleMoveOccluder(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var transform geometry.Transform
	if err := json.NewDecoder(r.Body).Decode(&transform); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.registry.Move(id, transform); err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveOccluder(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.registry.Unregister(id); err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var errNoStore = errors.New("map store disabled")

func (s *Server) handleListMaps(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, errNoStore)
		return
	}
	maps, err := s.store.ListMaps()
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, maps)
}

// handleSaveMap stores the published occluders under the given name
func (s *Server) handleSaveMap(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, errNoStore)
		return
	}
	name := r.PathValue("name")
	records := s.registry.Snapshot().Records()
	if err := s.store.SaveMap(name, records); err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "saved": len(records)})
}

// handleLoadMap replaces every occluder with the stored map and commits
func (s *Server) handleLoadMap(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, errNoStore)
		return
	}
	name := r.PathValue("name")
	records, err := s.store.LoadMap(name)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	skipped := s.registry.Restore(records)
	snap := s.registry.Commit()
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    name,
		"loaded":  len(records) - skipped,
		"skipped": skipped,
		"version": snap.Version,
	})
}

func (s *Server) handleDeleteMap(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, errNoStore)
		return
	}
	if err := s.store.DeleteMap(r.PathValue("name")); err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleWebSocket streams culling frames. The optional viewer parameter
// limits the stream to one viewer's results. The current map is sent first.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	viewer, err := parseIntParam(r.URL.Query(), "viewer", 0, 0, 1<<31-1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Server] websocket upgrade failed: %v", err)
		return
	}

	m := wire.Map{Name: s.scene.Name, Records: s.registry.Snapshot().Records()}
	if err := conn.WriteMessage(websocket.BinaryMessage, m.Envelope().Marshal()); err != nil {
		conn.Close()
		return
	}
	s.hub.Register(conn, uint64(viewer))

	go func() {
		defer s.hub.Unregister(conn)
		for {
			// Clients only send control frames; reading detects disconnects
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func parseID(value string) (registry.ID, error) {
	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid occluder id: %s", value)
	}
	return registry.ID(id), nil
}

// parseIntParam parses an integer parameter from URL query with validation
func parseIntParam(values url.Values, key string, defaultValue, min, max int) (int, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", key, value)
		}
		if parsed < min || parsed > max {
			return 0, fmt.Errorf("%s must be between %d and %d, got: %d", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}
