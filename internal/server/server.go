// Package server aggregates the panel client, container adapter, state
// database, and local filesystem layout for one server UUID, and owns
// the websocket bus that fans its output out to subscribers. Grounded
// on crates/alerion_core/src/servers/server.rs's Server/Fs/WebsocketBucket.
package server

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/pyrohost/alerion/internal/apperrors"
	"github.com/pyrohost/alerion/internal/dockeradapter"
	"github.com/pyrohost/alerion/internal/install"
	"github.com/pyrohost/alerion/internal/localdata"
	"github.com/pyrohost/alerion/internal/panel"
	"github.com/pyrohost/alerion/internal/runtimepipeline"
	"github.com/pyrohost/alerion/internal/statedb"
	"github.com/pyrohost/alerion/internal/wsbus"
)

// Server is one supervised game server: its panel-scoped API client, its
// container adapter handle, its bind-mount/log paths, and the bus that
// fans its console output out to authenticated websocket clients.
type Server struct {
	UUID   uuid.UUID
	Bus    *wsbus.Bus
	log    *slog.Logger
	panel  panel.ServerAPI
	docker *dockeradapter.Client
	paths  *localdata.Paths
	db     *statedb.DB

	supervisor *runtimepipeline.Supervisor
}

// New constructs a Server and starts its runtime supervisor goroutine. It
// does not install or start anything by itself; callers call
// InstallIfAppropriate explicitly, mirroring
// crates/alerion_core/src/servers/server.rs's Server::new.
func New(ctx context.Context, id uuid.UUID, panelClient *panel.Client, docker *dockeradapter.Client, paths *localdata.Paths, db *statedb.DB, log *slog.Logger) *Server {
	bus, inbound := wsbus.NewBus()
	serverLog := log.With("server", id.String())

	s := &Server{
		UUID:   id,
		Bus:    bus,
		log:    serverLog,
		panel:  panelClient.ServerAPI(id),
		docker: docker,
		paths:  paths,
		db:     db,
	}

	deps := runtimepipeline.Dependencies{
		UUID:   id,
		Docker: docker,
		Panel:  s.panel,
		Paths:  paths,
		DB:     db,
		Bus:    bus,
		Log:    serverLog,
	}
	s.supervisor = runtimepipeline.NewSupervisor(deps, inbound)
	go s.supervisor.Run(ctx)

	return s
}

// InstallIfAppropriate launches an installation in the background if and
// only if the server is currently Bare; otherwise it returns
// apperrors.ErrConflict without doing anything, matching
// Server::install_if_appropriate's non-bare guard.
func (s *Server) InstallIfAppropriate(ctx context.Context) error {
	var wasBare bool
	s.db.Update(s.UUID, func(r *statedb.Record) {
		wasBare = r.State.IsBare()
		if wasBare {
			r.State = statedb.StateInstalling
		}
	})
	if !wasBare {
		return apperrors.ErrConflict
	}

	deps := install.Dependencies{
		UUID:   s.UUID,
		Docker: s.docker,
		Panel:  s.panel,
		Paths:  s.paths,
		DB:     s.db,
		Bus:    s.Bus,
		Log:    s.log,
	}

	go func() {
		if _, err := install.Engage(ctx, deps, false); err != nil {
			s.log.Error("installation pipeline failed", "error", err)
		}
	}()

	return nil
}

// GetState returns the server's persisted lifecycle state.
func (s *Server) GetState() statedb.State {
	return s.db.Get(s.UUID).State
}

// Dispatch publishes a lifecycle action to the server's control bus,
// where the runtime supervisor picks it up.
func (s *Server) Dispatch(action wsbus.SetStateAction) {
	s.Bus.Publish(wsbus.InboundMessage{Action: action})
}

// StatusString renders the current state as the lowercase wire status
// string a websocket client expects in a `status` frame.
func (s *Server) StatusString() string {
	return strings.ToLower(string(s.GetState()))
}
