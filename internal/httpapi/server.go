// Package httpapi is the daemon's north-facing HTTP surface:
// system information, server creation, and the websocket upgrade that
// hands off into internal/wsbus. Grounded on the original codebase's
// internal/web/server.go for the plain net/http.ServeMux routing idiom,
// adapted from a single-purpose dashboard server to a small bearer-
// authenticated JSON+websocket API.
package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sys/unix"

	"github.com/pyrohost/alerion/internal/apperrors"
	"github.com/pyrohost/alerion/internal/metrics"
	"github.com/pyrohost/alerion/internal/pool"
	"github.com/pyrohost/alerion/internal/version"
	"github.com/pyrohost/alerion/internal/wsbus"
)

// Server is the daemon's HTTP surface: one ServeMux bound to a server
// pool, a bearer token, and a websocket authenticator.
type Server struct {
	pool    *pool.Pool
	auth    *wsbus.Authenticator
	token   string
	metrics *metrics.Metrics
	log     *slog.Logger

	upgrader websocket.Upgrader
}

// New constructs a Server. token is compared against incoming
// `Authorization: Bearer <token>` headers on /api/system and
// /api/servers; auth validates the per-frame JWT on the websocket route.
func New(p *pool.Pool, auth *wsbus.Authenticator, token string, m *metrics.Metrics, log *slog.Logger) *Server {
	return &Server{
		pool:    p,
		auth:    auth,
		token:   token,
		metrics: m,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler builds the routed, metrics-wrapped http.Handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/system", s.handleSystem)
	mux.HandleFunc("/api/servers", s.handleCreateServer)
	mux.HandleFunc("/api/servers/{uuid}/ws", s.handleWebsocket)

	return s.metrics.Middleware(mux)
}

// systemInfo is the body of GET /api/system, shaped after
// crates/alerion_datamodel/src/webserver.rs's SystemInformation.
type systemInfo struct {
	Architecture  string `json:"architecture"`
	CPUCount      int    `json:"cpu_count"`
	KernelVersion string `json:"kernel_version"`
	OS            string `json:"os"`
	Version       string `json:"version"`
}

func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.checkBearer(w, r) {
		return
	}

	info := systemInfo{
		Architecture:  runtime.GOARCH,
		CPUCount:      runtime.NumCPU(),
		KernelVersion: kernelVersion(),
		OS:            runtime.GOOS,
		Version:       version.Current,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(info)
}

func kernelVersion() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "unknown"
	}
	return unix.ByteSliceToString(uts.Release[:])
}

// createServerRequest is the body of POST /api/servers.
type createServerRequest struct {
	UUID              uuid.UUID `json:"uuid"`
	StartOnCompletion bool      `json:"start_on_completion"`
}

func (s *Server) handleCreateServer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.checkBearer(w, r) {
		return
	}

	var req createServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if _, err := s.pool.Create(r.Context(), req.UUID, req.StartOnCompletion); err != nil {
		s.log.Error("failed to create server", "server", req.UUID, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("uuid"))
	if err != nil {
		http.Error(w, "invalid server uuid", http.StatusBadRequest)
		return
	}

	srv, ok := s.pool.Get(id)
	if !ok {
		http.Error(w, (&apperrors.NotFoundError{UUID: id.String()}).Error(), http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "server", id, "error", err)
		return
	}

	session := wsbus.NewSession(conn, srv.Bus, s.auth, srv, id.String(), s.log)
	session.OnAuthFailed(s.metrics.WebsocketAuthFailed.Inc)

	s.metrics.WebsocketConnections.Inc()
	defer s.metrics.WebsocketConnections.Dec()

	session.Run()
}

func (s *Server) checkBearer(w http.ResponseWriter, r *http.Request) bool {
	want := fmt.Sprintf("Bearer %s", s.token)
	if r.Header.Get("Authorization") != want {
		http.Error(w, apperrors.ErrUnauthorized.Error(), http.StatusUnauthorized)
		return false
	}
	return true
}
