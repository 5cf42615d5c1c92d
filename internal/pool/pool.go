// Package pool is the in-memory registry of Server objects, one per
// server UUID, with creation, lookup, and a startup sweep that recovers
// every server the panel knows about. Grounded on
// crates/alerion_core/src/servers/pool.rs's ServerPool, adapted to a
// sync.RWMutex-guarded map.
package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/pyrohost/alerion/internal/dockeradapter"
	"github.com/pyrohost/alerion/internal/localdata"
	"github.com/pyrohost/alerion/internal/panel"
	"github.com/pyrohost/alerion/internal/server"
	"github.com/pyrohost/alerion/internal/statedb"
	"github.com/pyrohost/alerion/internal/wsbus"
)

// Pool holds every server this daemon currently supervises.
type Pool struct {
	mu      sync.RWMutex
	servers map[uuid.UUID]*server.Server

	panel  *panel.Client
	docker *dockeradapter.Client
	paths  *localdata.Paths
	db     *statedb.DB
	log    *slog.Logger
}

// New constructs an empty Pool bound to the shared panel client, Docker
// adapter, filesystem layout, and state database.
func New(panelClient *panel.Client, docker *dockeradapter.Client, paths *localdata.Paths, db *statedb.DB, log *slog.Logger) *Pool {
	return &Pool{
		servers: make(map[uuid.UUID]*server.Server),
		panel:   panelClient,
		docker:  docker,
		paths:   paths,
		db:      db,
		log:     log,
	}
}

// Create registers a new server for id, or returns the existing
// registration if one is already present: a duplicate create is
// idempotent, not an error.
func (p *Pool) Create(ctx context.Context, id uuid.UUID, autostart bool) (*server.Server, error) {
	p.mu.Lock()
	if existing, ok := p.servers[id]; ok {
		p.mu.Unlock()
		return existing, nil
	}

	s := server.New(ctx, id, p.panel, p.docker, p.paths, p.db, p.log)
	p.servers[id] = s
	p.mu.Unlock()

	if err := s.InstallIfAppropriate(ctx); err != nil {
		p.log.Debug("skipping installation on create", "server", id, "error", err)
	}
	if autostart {
		s.Dispatch(wsbus.ActionStart)
	}

	return s, nil
}

// FetchExisting pages through every server the panel knows about and
// registers each one, logging and continuing past any single server's
// failure rather than aborting the whole sweep.
func (p *Pool) FetchExisting(ctx context.Context) error {
	p.log.Info("fetching existing servers from the panel")

	listed, err := p.panel.GetServers()
	if err != nil {
		return fmt.Errorf("failed to list servers from the panel: %w", err)
	}

	for _, item := range listed {
		if _, err := p.Create(ctx, item.UUID, false); err != nil {
			p.log.Error("failed to recover server", "server", item.UUID, "error", err)
			continue
		}
	}

	return nil
}

// Get returns the registered Server for id, if any.
func (p *Pool) Get(id uuid.UUID) (*server.Server, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.servers[id]
	return s, ok
}

// Count returns the number of servers currently registered.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.servers)
}
