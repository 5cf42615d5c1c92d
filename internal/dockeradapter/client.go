// Package dockeradapter is the typed wrapper over the container engine
// client: named bind-mounts, recreate-or-reuse containers,
// attach streams, forced removal. Grounded on the original codebase's
// internal/docker/{client.go,client_interface.go,mock_client.go} for the
// mockable-subset-interface shape and the stdcopy/jsonmessage idioms,
// extended with the inspect/attach/recreate operations the original codebase's
// exec-only wrapper didn't need.
package dockeradapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	specs "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/pyrohost/alerion/internal/apperrors"
)

// APIClient defines the subset of the Docker SDK this adapter depends on,
// kept narrow so it can be mocked in tests (the original codebase's
// internal/docker/client.go APIClient pattern).
type APIClient interface {
	Ping(ctx context.Context) (types.Ping, error)
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *specs.Platform, containerName string) (container.CreateResponse, error)
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerAttach(ctx context.Context, containerID string, options container.AttachOptions) (types.HijackedResponse, error)
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	Close() error
}

// Client wraps APIClient with the higher-level operations the rest of the
// daemon consumes.
type Client struct {
	api APIClient
}

// NewClient connects to the local Docker engine using the ambient
// environment (DOCKER_HOST, etc.), negotiating the API version.
func NewClient() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, &apperrors.DockerError{Op: "connect", Err: err}
	}
	return &Client{api: cli}, nil
}

// Close releases the underlying engine connection.
func (c *Client) Close() error { return c.api.Close() }

// CheckDaemon verifies the engine is reachable.
func (c *Client) CheckDaemon(ctx context.Context) error {
	if _, err := c.api.Ping(ctx); err != nil {
		return &apperrors.DockerError{Op: "ping", Err: err}
	}
	return nil
}

// PullImage pulls imageRef, draining and inspecting the progress stream
// for a terminal error the way jsonmessage.JSONMessage reports it.
func (c *Client) PullImage(ctx context.Context, imageRef string) error {
	reader, err := c.api.ImagePull(ctx, imageRef, image.PullOptions{})
	if err != nil {
		return &apperrors.DockerError{Op: "image pull", Err: err}
	}
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	for {
		var msg jsonmessage.JSONMessage
		if err := decoder.Decode(&msg); err != nil {
			if err == io.EOF {
				break
			}
			continue
		}
		if msg.Error != nil {
			return &apperrors.DockerError{Op: "image pull", Err: fmt.Errorf("%s", msg.Error.Message)}
		}
	}
	return nil
}
