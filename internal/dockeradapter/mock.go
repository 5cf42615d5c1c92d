package dockeradapter

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
)

// MockAPI implements APIClient for tests, following the original codebase's
// XxxFunc-field mock pattern (internal/docker/mock_client.go): every
// method is overridable, with a sane zero-value default otherwise.
type MockAPI struct {
	PingFunc             func(ctx context.Context) (types.Ping, error)
	ImagePullFunc        func(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreateFunc  func(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *specs.Platform, containerName string) (container.CreateResponse, error)
	ContainerInspectFunc func(ctx context.Context, containerID string) (container.InspectResponse, error)
	ContainerStartFunc   func(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerAttachFunc  func(ctx context.Context, containerID string, options container.AttachOptions) (types.HijackedResponse, error)
	ContainerStopFunc    func(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemoveFunc  func(ctx context.Context, containerID string, options container.RemoveOptions) error
	CloseFunc            func() error
}

func (m *MockAPI) Ping(ctx context.Context) (types.Ping, error) {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return types.Ping{}, nil
}

func (m *MockAPI) ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error) {
	if m.ImagePullFunc != nil {
		return m.ImagePullFunc(ctx, ref, options)
	}
	return io.NopCloser(strings.NewReader("")), nil
}

func (m *MockAPI) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *specs.Platform, containerName string) (container.CreateResponse, error) {
	if m.ContainerCreateFunc != nil {
		return m.ContainerCreateFunc(ctx, config, hostConfig, networkingConfig, platform, containerName)
	}
	return container.CreateResponse{ID: "mock-" + containerName}, nil
}

func (m *MockAPI) ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error) {
	if m.ContainerInspectFunc != nil {
		return m.ContainerInspectFunc(ctx, containerID)
	}
	return container.InspectResponse{}, &notFoundError{}
}

func (m *MockAPI) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	if m.ContainerStartFunc != nil {
		return m.ContainerStartFunc(ctx, containerID, options)
	}
	return nil
}

func (m *MockAPI) ContainerAttach(ctx context.Context, containerID string, options container.AttachOptions) (types.HijackedResponse, error) {
	if m.ContainerAttachFunc != nil {
		return m.ContainerAttachFunc(ctx, containerID, options)
	}
	server, clientConn := net.Pipe()
	go server.Close()
	return types.HijackedResponse{Conn: clientConn, Reader: bufio.NewReader(clientConn)}, nil
}

func (m *MockAPI) ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error {
	if m.ContainerStopFunc != nil {
		return m.ContainerStopFunc(ctx, containerID, options)
	}
	return nil
}

func (m *MockAPI) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	if m.ContainerRemoveFunc != nil {
		return m.ContainerRemoveFunc(ctx, containerID, options)
	}
	return nil
}

func (m *MockAPI) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// notFoundError satisfies client.IsErrNotFound via the errdefs NotFound
// interface so tests can simulate "container does not exist yet" without
// pulling in the real engine's error types.
type notFoundError struct{}

func (e *notFoundError) Error() string   { return "mock: not found" }
func (e *notFoundError) NotFound() bool { return true }

// NewMockClient returns a Client backed by a configurable MockAPI.
func NewMockClient() (*Client, *MockAPI) {
	mock := &MockAPI{}
	return &Client{api: mock}, mock
}
