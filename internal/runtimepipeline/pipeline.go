// Package runtimepipeline runs the long-running server container:
// Offline → Starting → Running, streaming output for the lifetime of
// the process, and reacting to `set state` requests published on the
// server's bus. Grounded on crates/alerion_core/src/docker/run.rs's
// engage/monitor/docker_configuration for container shape and
// streaming. The original never wires `set state` end to end, so the
// stop/restart/kill handling here is new, built in the same
// goroutine-per-pipeline idiom as internal/install.
package runtimepipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/docker/docker/api/types/mount"
	"github.com/google/uuid"

	"github.com/pyrohost/alerion/internal/dockeradapter"
	"github.com/pyrohost/alerion/internal/localdata"
	"github.com/pyrohost/alerion/internal/panel"
	"github.com/pyrohost/alerion/internal/statedb"
	"github.com/pyrohost/alerion/internal/wsbus"
)

const (
	containerUser      = "container"
	containerHome      = "/home/container"
	stopTimeoutSeconds = 600
	pidsLimit          = 256
)

// Dependencies bundles the per-server collaborators this pipeline needs.
// Shared in shape with internal/install.Dependencies.
type Dependencies struct {
	UUID   uuid.UUID
	Docker *dockeradapter.Client
	Panel  panel.ServerAPI
	Paths  *localdata.Paths
	DB     *statedb.DB
	Bus    *wsbus.Bus
	Log    *slog.Logger
}

// Supervisor drives exactly one server's runtime lifecycle, handling
// start/stop/restart/kill requests arriving over the bus's inbound
// channel one at a time. Each start runs the container in its own
// goroutine, so a stop or kill can be issued while it is running.
type Supervisor struct {
	deps    Dependencies
	inbound <-chan wsbus.InboundMessage

	mu               sync.Mutex
	containerID      string
	running          bool
	stopRequested    bool
	restartRequested bool
}

// NewSupervisor builds a Supervisor reading control requests from
// inbound, the same channel returned by wsbus.NewBus for this server.
func NewSupervisor(deps Dependencies, inbound <-chan wsbus.InboundMessage) *Supervisor {
	return &Supervisor{deps: deps, inbound: inbound}
}

// Run drains inbound until it closes or ctx is cancelled. Meant to be run
// in its own goroutine for the lifetime of the server.
func (s *Supervisor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.inbound:
			if !ok {
				return
			}
			s.handle(ctx, msg.Action)
		}
	}
}

func (s *Supervisor) handle(ctx context.Context, action wsbus.SetStateAction) {
	switch action {
	case wsbus.ActionStart:
		s.start(ctx)
	case wsbus.ActionStop:
		s.stop(ctx, false)
	case wsbus.ActionKill:
		s.stop(ctx, true)
	case wsbus.ActionRestart:
		s.restart(ctx)
	default:
		s.deps.Log.Warn("ignoring unrecognized lifecycle action", "action", action)
	}
}

func (s *Supervisor) start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopRequested = false
	s.mu.Unlock()

	go s.runOnce(ctx)
}

func (s *Supervisor) stop(ctx context.Context, force bool) {
	s.mu.Lock()
	s.stopRequested = true
	containerID := s.containerID
	s.mu.Unlock()

	if containerID == "" {
		return
	}

	if force {
		if err := s.deps.Docker.ForceRemove(ctx, containerID); err != nil {
			s.deps.Log.Error("failed to force-remove server container", "error", err)
		}
		return
	}
	if err := s.deps.Docker.Stop(ctx, containerID, stopTimeoutSeconds); err != nil {
		s.deps.Log.Error("failed to stop server container", "error", err)
	}
}

func (s *Supervisor) restart(ctx context.Context) {
	s.mu.Lock()
	alreadyRunning := s.running
	s.restartRequested = alreadyRunning
	s.mu.Unlock()

	if !alreadyRunning {
		s.start(ctx)
		return
	}
	s.stop(ctx, false)
}

// runOnce creates, starts, and streams one instance of the server
// container to completion, then finalizes state: Offline on a deliberate
// stop, Unhealthy on an unexpected exit. If a restart was requested while
// running, it re-enters start once Offline is observed.
func (s *Supervisor) runOnce(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.running = false
		restart := s.restartRequested
		s.restartRequested = false
		s.mu.Unlock()
		if restart {
			s.start(ctx)
		}
	}()

	deps := s.deps
	log := deps.Log

	settings, err := deps.Panel.GetSettings()
	if err != nil {
		log.Error("failed to fetch server settings", "error", err)
		deps.DB.Update(deps.UUID, func(r *statedb.Record) { r.State = statedb.StateUnhealthy })
		return
	}

	serverMountPath, err := deps.Paths.MountsOf(deps.UUID).Get(localdata.PurposeServer)
	if err != nil {
		log.Error("failed to resolve server bind mount", "error", err)
		deps.DB.Update(deps.UUID, func(r *statedb.Record) { r.State = statedb.StateUnhealthy })
		return
	}

	resources := dockeradapter.ResourceLimitsFromBuildConfig(dockeradapter.BuildConfig{
		MemoryLimitMiB: settings.BuildConfig.MemoryLimit,
		CPULimitPct:    settings.BuildConfig.CPULimit,
		Threads:        settings.BuildConfig.Threads,
	})

	containerCfg := dockeradapter.ContainerConfig{
		Name:        localdata.ContainerName(deps.UUID, localdata.PurposeServer),
		Image:       settings.Process.Image,
		Hostname:    shortUID(deps.UUID),
		User:        containerUser,
		WorkingDir:  containerHome,
		Cmd:         runtimeCommand(settings.Process),
		Env:         dockeradapter.FormatEnvironment(settings.Environment),
		Mounts:      []mount.Mount{dockeradapter.BindMount(serverMountPath, containerHome)},
		StopTimeout: stopTimeoutSeconds,
		PidsLimit:   pidsLimit,
		Resources:   resources,
	}

	containerID, err := deps.Docker.RecreateContainer(ctx, containerCfg, true)
	if err != nil {
		log.Error("failed to create server container", "error", err)
		deps.DB.Update(deps.UUID, func(r *statedb.Record) { r.State = statedb.StateUnhealthy })
		return
	}

	s.mu.Lock()
	s.containerID = containerID
	s.mu.Unlock()

	if err := deps.Docker.Start(ctx, containerID); err != nil {
		log.Error("server container failed to start", "error", err)
		deps.DB.Update(deps.UUID, func(r *statedb.Record) { r.State = statedb.StateUnhealthy })
		return
	}

	deps.DB.Update(deps.UUID, func(r *statedb.Record) { r.State = statedb.StateStarting })

	attached, err := deps.Docker.Attach(ctx, containerID, false)
	if err != nil {
		log.Error("failed to attach to server container", "error", err)
		deps.DB.Update(deps.UUID, func(r *statedb.Record) { r.State = statedb.StateUnhealthy })
		return
	}

	deps.DB.Update(deps.UUID, func(r *statedb.Record) { r.State = statedb.StateRunning })
	monitor(deps, attached)
	attached.Close()

	s.mu.Lock()
	deliberate := s.stopRequested
	s.mu.Unlock()

	if deliberate {
		deps.DB.Update(deps.UUID, func(r *statedb.Record) { r.State = statedb.StateStopping })
		deps.DB.Update(deps.UUID, func(r *statedb.Record) { r.State = statedb.StateOffline })
		return
	}

	log.Warn("server container exited without a stop request; marking unhealthy")
	deps.DB.Update(deps.UUID, func(r *statedb.Record) { r.State = statedb.StateUnhealthy })
}

func monitor(deps Dependencies, attached *dockeradapter.Attached) {
	logger, err := deps.Paths.Logger(deps.UUID, localdata.PurposeServer)
	if err != nil {
		deps.Log.Error("failed to open server log file", "error", err)
		logger = nil
	}
	if logger != nil {
		defer logger.Close()
	}

	onChunk := func(chunk []byte) {
		sanitized := dockeradapter.SanitizeOutput(chunk)
		deps.Bus.Broadcast(wsbus.OutboundMessage{Kind: wsbus.KindServerOutput, Output: sanitized})
		if logger != nil {
			if _, err := logger.Write([]byte(sanitized)); err != nil {
				deps.Log.Error("failed to write server log", "error", err)
			}
		}
	}

	if err := attached.Demux(onChunk, onChunk); err != nil {
		deps.Log.Error("server stream ended with an error", "error", err)
	}
}

// runtimeCommand composes the container's entry command from the panel's
// startup recipe: the configured entrypoint followed by the startup
// string, mirroring how wings hands the startup script to the egg's
// shell entrypoint.
func runtimeCommand(proc panel.ProcessConfiguration) []string {
	if proc.Startup == "" {
		return proc.Entrypoint
	}
	cmd := make([]string, 0, len(proc.Entrypoint)+1)
	cmd = append(cmd, proc.Entrypoint...)
	cmd = append(cmd, proc.Startup)
	return cmd
}

func shortUID(id uuid.UUID) string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
