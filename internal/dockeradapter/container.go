package dockeradapter

import (
	"context"
	"io"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/pyrohost/alerion/internal/apperrors"
	"github.com/pyrohost/alerion/internal/version"
)

// ContainerConfig describes a container this adapter can recreate. It
// covers both the installer and the long-running server container
// shapes used by the installation and runtime pipelines.
type ContainerConfig struct {
	Name        string
	Image       string
	Hostname    string
	User        string
	WorkingDir  string
	Cmd         []string
	Env         []string
	Mounts      []mount.Mount
	StopTimeout int // seconds
	PidsLimit   int64
	Resources   container.Resources
}

// RecreateContainer implements the recreate-or-use contract: if
// the named container does not exist, create it. If it exists but lacks
// (or mismatches) the agent label, it is foreign — force-remove then
// create. If it exists and is agent-owned, reuseIfOwned decides whether
// to reuse it as-is (server containers) or force-remove and recreate it
// (installer containers always start clean).
func (c *Client) RecreateContainer(ctx context.Context, cfg ContainerConfig, reuseIfOwned bool) (string, error) {
	existing, err := c.api.ContainerInspect(ctx, cfg.Name)
	switch {
	case client.IsErrNotFound(err):
		return c.createContainer(ctx, cfg)
	case err != nil:
		return "", &apperrors.DockerError{Op: "inspect " + cfg.Name, Err: err}
	}

	owned := existing.Config != nil && existing.Config.Labels[version.LabelKey] == version.Current
	if owned && reuseIfOwned {
		return existing.ID, nil
	}

	if err := c.ForceRemove(ctx, existing.ID); err != nil {
		return "", err
	}
	return c.createContainer(ctx, cfg)
}

func (c *Client) createContainer(ctx context.Context, cfg ContainerConfig) (string, error) {
	labels := version.Label()

	stopTimeout := cfg.StopTimeout
	containerCfg := &container.Config{
		Image:      cfg.Image,
		Hostname:   cfg.Hostname,
		User:       cfg.User,
		WorkingDir: cfg.WorkingDir,
		Cmd:        cfg.Cmd,
		Env:        cfg.Env,
		Labels:     labels,
		StopTimeout: &stopTimeout,
	}

	pidsLimit := cfg.PidsLimit
	hostCfg := &container.HostConfig{
		Mounts:    cfg.Mounts,
		Resources: cfg.Resources,
		PidsLimit: &pidsLimit,
	}

	resp, err := c.api.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, cfg.Name)
	if err != nil {
		return "", &apperrors.DockerError{Op: "create " + cfg.Name, Err: err}
	}
	return resp.ID, nil
}

// Start starts a previously created container.
func (c *Client) Start(ctx context.Context, containerID string) error {
	if err := c.api.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return &apperrors.DockerError{Op: "start " + containerID, Err: err}
	}
	return nil
}

// Stop stops a running container, waiting up to timeoutSeconds for a
// graceful exit before the engine escalates to SIGKILL.
func (c *Client) Stop(ctx context.Context, containerID string, timeoutSeconds int) error {
	timeout := timeoutSeconds
	if err := c.api.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout}); err != nil {
		return &apperrors.DockerError{Op: "stop " + containerID, Err: err}
	}
	return nil
}

// ForceRemove deletes a container with force=true, v=true, link=false.
func (c *Client) ForceRemove(ctx context.Context, containerID string) error {
	err := c.api.ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force:         true,
		RemoveVolumes: true,
		RemoveLinks:   false,
	})
	if err != nil && !client.IsErrNotFound(err) {
		return &apperrors.DockerError{Op: "remove " + containerID, Err: err}
	}
	return nil
}

// Inspect returns full container metadata, including exit code when
// exited.
func (c *Client) Inspect(ctx context.Context, containerID string) (container.InspectResponse, error) {
	resp, err := c.api.ContainerInspect(ctx, containerID)
	if err != nil {
		return container.InspectResponse{}, &apperrors.DockerError{Op: "inspect " + containerID, Err: err}
	}
	return resp, nil
}

// Attached is the bidirectional stream handle returned by Attach: writes
// go to the container's stdin, and Demux splits the multiplexed
// stdout/stderr stream into tagged chunks via onStdout/onStderr.
type Attached struct {
	conn   io.Closer
	Stdin  io.Writer
	reader io.Reader
}

// Close releases the underlying connection.
func (a *Attached) Close() error { return a.conn.Close() }

// Demux reads the attached stream to completion, invoking onStdout and
// onStderr for each demultiplexed chunk ("the reader
// multiplexes stdout and stderr as tagged byte chunks"). Returns when the
// engine closes the stream.
func (a *Attached) Demux(onStdout, onStderr func([]byte)) error {
	outW := callbackWriter{fn: onStdout}
	errW := callbackWriter{fn: onStderr}
	_, err := stdcopy.StdCopy(outW, errW, a.reader)
	if err != nil && err != io.EOF {
		return &apperrors.DockerError{Op: "demux stream", Err: err}
	}
	return nil
}

type callbackWriter struct {
	fn func([]byte)
}

func (w callbackWriter) Write(p []byte) (int, error) {
	if w.fn != nil {
		cp := make([]byte, len(p))
		copy(cp, p)
		w.fn(cp)
	}
	return len(p), nil
}

// Attach attaches to a container's main process stream. wantStdin opens
// the stdin writer; otherwise Stdin is nil.
func (c *Client) Attach(ctx context.Context, containerID string, wantStdin bool) (*Attached, error) {
	resp, err := c.api.ContainerAttach(ctx, containerID, container.AttachOptions{
		Stream: true,
		Stdin:  wantStdin,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return nil, &apperrors.DockerError{Op: "attach " + containerID, Err: err}
	}

	attached := &Attached{conn: resp.Conn, reader: resp.Reader}
	if wantStdin {
		attached.Stdin = resp.Conn
	}
	return attached, nil
}
