package runtimepipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyrohost/alerion/internal/dockeradapter"
	"github.com/pyrohost/alerion/internal/localdata"
	"github.com/pyrohost/alerion/internal/panel"
	"github.com/pyrohost/alerion/internal/statedb"
	"github.com/pyrohost/alerion/internal/wsbus"
)

func newTestSupervisor(t *testing.T) (*Supervisor, *dockeradapter.MockAPI, Dependencies, *wsbus.Bus) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/remote/servers/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(struct {
			Settings panel.ServerSettings `json:"settings"`
		}{Settings: panel.ServerSettings{
			BuildConfig: panel.BuildConfig{MemoryLimit: 512},
			Process:     panel.ProcessConfiguration{Image: "test:latest", Entrypoint: []string{"bash", "-c"}, Startup: "run.sh"},
		}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	id := uuid.New()
	paths, err := localdata.New(t.TempDir())
	require.NoError(t, err)
	db, err := statedb.Open(paths.DBFile())
	require.NoError(t, err)

	client, mock := dockeradapter.NewMockClient()
	bus, inbound := wsbus.NewBus()

	deps := Dependencies{
		UUID:   id,
		Docker: client,
		Panel:  panel.New(srv.URL, "id", "secret").ServerAPI(id),
		Paths:  paths,
		DB:     db,
		Bus:    bus,
		Log:    slog.Default(),
	}

	return NewSupervisor(deps, inbound), mock, deps, bus
}

func TestStartTransitionsThroughStartingToRunningThenOfflineOnDeliberateStop(t *testing.T) {
	sup, mock, deps, bus := newTestSupervisor(t)

	serverConn, clientConn := net.Pipe()
	mock.ContainerAttachFunc = func(ctx context.Context, id string, opts container.AttachOptions) (types.HijackedResponse, error) {
		return types.HijackedResponse{Conn: clientConn, Reader: bufio.NewReader(clientConn)}, nil
	}

	stopped := make(chan struct{})
	mock.ContainerStopFunc = func(ctx context.Context, id string, opts container.StopOptions) error {
		close(stopped)
		serverConn.Close()
		return nil
	}

	ctx := context.Background()

	bus.Publish(wsbus.InboundMessage{Action: wsbus.ActionStart})
	go sup.Run(ctx)

	require.Eventually(t, func() bool {
		return deps.DB.Get(deps.UUID).State == statedb.StateRunning
	}, 2*time.Second, 10*time.Millisecond)

	bus.Publish(wsbus.InboundMessage{Action: wsbus.ActionStop})

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("expected Stop to be called on the container")
	}

	require.Eventually(t, func() bool {
		return deps.DB.Get(deps.UUID).State == statedb.StateOffline
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUnexpectedExitMarksUnhealthy(t *testing.T) {
	sup, _, deps, bus := newTestSupervisor(t)

	ctx := context.Background()
	bus.Publish(wsbus.InboundMessage{Action: wsbus.ActionStart})
	go sup.Run(ctx)

	assert.Eventually(t, func() bool {
		state := deps.DB.Get(deps.UUID).State
		return state == statedb.StateUnhealthy
	}, 2*time.Second, 10*time.Millisecond)
}
