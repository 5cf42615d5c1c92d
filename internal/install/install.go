// Package install runs the installation pipeline described in
// §4.F: recreate both bind mounts, run the egg's install script inside a
// disposable container, stream its output, and report the outcome back
// to the panel. Grounded on
// crates/alerion_core/src/docker/install.rs's engage/installation_core/
// monitor, adapted to Go's goroutine-per-pipeline idiom used by the
// the original codebase's internal/orchestrator/spawner_docker.go.
package install

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/docker/docker/api/types/mount"
	"github.com/google/uuid"

	"github.com/pyrohost/alerion/internal/dockeradapter"
	"github.com/pyrohost/alerion/internal/localdata"
	"github.com/pyrohost/alerion/internal/panel"
	"github.com/pyrohost/alerion/internal/statedb"
	"github.com/pyrohost/alerion/internal/wsbus"
)

const (
	installerScriptName = "installer.sh"
	stopTimeoutSeconds  = 5
	pidsLimit           = 256
)

// Dependencies bundles the per-server collaborators Engage needs. None of
// them are install-specific; they are shared with internal/runtimepipeline
// and owned by internal/server.
type Dependencies struct {
	UUID   uuid.UUID
	Docker *dockeradapter.Client
	Panel  panel.ServerAPI
	Paths  *localdata.Paths
	DB     *statedb.DB
	Bus    *wsbus.Bus
	Log    *slog.Logger
}

// Engage installs (or reinstalls) a server: it transitions the persisted
// state to Installing, runs the install container to completion, reports
// the result to the panel, and leaves the state at Offline on success or
// Unhealthy on failure. reinstall indicates a prior install attempt
// already exists and is about to be discarded.
func Engage(ctx context.Context, deps Dependencies, reinstall bool) (bool, error) {
	settings, err := deps.Panel.GetSettings()
	if err != nil {
		deps.DB.Update(deps.UUID, func(r *statedb.Record) { r.State = statedb.StateUnhealthy })
		return false, fmt.Errorf("failed to fetch server settings: %w", err)
	}
	installCfg, err := deps.Panel.GetInstallInstructions()
	if err != nil {
		deps.DB.Update(deps.UUID, func(r *statedb.Record) { r.State = statedb.StateUnhealthy })
		return false, fmt.Errorf("failed to fetch install instructions: %w", err)
	}

	deps.DB.Update(deps.UUID, func(r *statedb.Record) { r.State = statedb.StateInstalling })

	success := installationCore(ctx, deps, settings, installCfg)

	if err := deps.Panel.PostInstallationStatus(success, reinstall); err != nil {
		deps.Log.Error("failed to report installation status to panel", "error", err)
	}

	finalState := statedb.StateOffline
	if !success {
		finalState = statedb.StateUnhealthy
	}
	deps.DB.Update(deps.UUID, func(r *statedb.Record) { r.State = finalState })

	return success, nil
}

func installationCore(ctx context.Context, deps Dependencies, settings *panel.ServerSettings, installCfg *panel.InstallInstructions) bool {
	log := deps.Log
	mounts := deps.Paths.MountsOf(deps.UUID)

	installMountPath, err := mounts.Recreate(localdata.PurposeInstaller)
	if err != nil {
		log.Error("failed to recreate installation bind mount", "error", err)
		return false
	}
	serverMountPath, err := mounts.Recreate(localdata.PurposeServer)
	if err != nil {
		log.Error("failed to recreate server bind mount", "error", err)
		return false
	}

	resources := dockeradapter.ResourceLimitsFromBuildConfig(dockeradapter.BuildConfig{
		MemoryLimitMiB: settings.BuildConfig.MemoryLimit,
		CPULimitPct:    settings.BuildConfig.CPULimit,
		Threads:        settings.BuildConfig.Threads,
	})

	containerCfg := dockeradapter.ContainerConfig{
		Name:       localdata.ContainerName(deps.UUID, localdata.PurposeInstaller),
		Image:      installCfg.ContainerImage,
		Hostname:   shortUID(deps.UUID),
		User:       "0:0",
		WorkingDir: "/mnt/install",
		Cmd:        []string{installCfg.Entrypoint, installerScriptName},
		Env:        dockeradapter.FormatEnvironment(settings.Environment),
		Mounts: []mount.Mount{
			dockeradapter.BindMount(installMountPath, "/mnt/install"),
			dockeradapter.BindMount(serverMountPath, "/mnt/server"),
		},
		StopTimeout: stopTimeoutSeconds,
		PidsLimit:   pidsLimit,
		Resources:   resources,
	}

	containerID, err := deps.Docker.RecreateContainer(ctx, containerCfg, false)
	if err != nil {
		log.Error("failed to create installation container", "error", err)
		return false
	}

	script := dockeradapter.NormalizeScript(installCfg.Script)
	if err := writeInstallerScript(installMountPath, script); err != nil {
		log.Error("failed to write installation script", "error", err)
		return false
	}

	if err := deps.Docker.Start(ctx, containerID); err != nil {
		log.Error("installation container failed to start", "error", err)
		return false
	}

	attached, err := deps.Docker.Attach(ctx, containerID, false)
	if err != nil {
		log.Error("failed to attach to installation container", "error", err)
		return false
	}
	monitor(deps, attached)
	attached.Close()

	success := true
	resp, err := deps.Docker.Inspect(ctx, containerID)
	switch {
	case err != nil:
		log.Error("failed to inspect installation container", "error", err)
		success = false
	case resp.State != nil && resp.State.ExitCode == 0:
		log.Info("server installed successfully")
	case resp.State != nil:
		log.Error("installation exited with a non-zero status", "exit_code", resp.State.ExitCode)
		success = false
	default:
		log.Error("installation container reported no exit state; treating as failure")
		success = false
	}

	if err := deps.Docker.ForceRemove(ctx, containerID); err != nil {
		log.Error("failed to delete installation container", "error", err)
	}

	return success
}

func monitor(deps Dependencies, attached *dockeradapter.Attached) {
	logger, err := deps.Paths.Logger(deps.UUID, localdata.PurposeInstaller)
	if err != nil {
		deps.Log.Error("failed to open installation log file", "error", err)
		logger = nil
	}
	if logger != nil {
		defer logger.Close()
	}

	onChunk := func(chunk []byte) {
		sanitized := dockeradapter.SanitizeOutput(chunk)
		deps.Bus.Broadcast(wsbus.OutboundMessage{Kind: wsbus.KindInstallOutput, Output: sanitized})
		if logger != nil {
			if _, err := logger.Write([]byte(sanitized)); err != nil {
				deps.Log.Error("failed to write installation log", "error", err)
			}
		}
	}

	if err := attached.Demux(onChunk, onChunk); err != nil {
		deps.Log.Error("installation stream ended with an error", "error", err)
	}
}

func writeInstallerScript(mountPath, contents string) error {
	path := filepath.Join(mountPath, installerScriptName)
	return os.WriteFile(path, []byte(contents), 0755)
}

func shortUID(id uuid.UUID) string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
