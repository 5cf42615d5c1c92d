package pool

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyrohost/alerion/internal/dockeradapter"
	"github.com/pyrohost/alerion/internal/localdata"
	"github.com/pyrohost/alerion/internal/panel"
	"github.com/pyrohost/alerion/internal/statedb"
)

func newTestPool(t *testing.T, panelURL string) *Pool {
	t.Helper()
	paths, err := localdata.New(t.TempDir())
	require.NoError(t, err)
	db, err := statedb.Open(paths.DBFile())
	require.NoError(t, err)
	client, _ := dockeradapter.NewMockClient()
	return New(panel.New(panelURL, "id", "secret"), client, paths, db, slog.Default())
}

func TestCreateIsIdempotentForDuplicateUUID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/remote/servers/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(struct {
			Settings panel.ServerSettings `json:"settings"`
		}{})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := newTestPool(t, srv.URL)
	id := uuid.New()

	first, err := p.Create(context.Background(), id, false)
	require.NoError(t, err)
	second, err := p.Create(context.Background(), id, false)
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestFetchExistingRegistersAllPagedServers(t *testing.T) {
	const pages, perPage = 3, 2

	mux := http.NewServeMux()
	mux.HandleFunc("/api/remote/servers", func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page == 0 {
			page = 1
		}
		items := make([]panel.ServerListItem, perPage)
		for i := range items {
			items[i] = panel.ServerListItem{UUID: uuid.New()}
		}
		resp := struct {
			Data []panel.ServerListItem `json:"data"`
			Meta struct {
				Pagination struct {
					CurrentPage int `json:"current_page"`
					LastPage    int `json:"last_page"`
				} `json:"pagination"`
			} `json:"meta"`
		}{Data: items}
		resp.Meta.Pagination.CurrentPage = page
		resp.Meta.Pagination.LastPage = pages
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/api/remote/servers/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(struct {
			Settings panel.ServerSettings `json:"settings"`
		}{})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := newTestPool(t, srv.URL)
	require.NoError(t, p.FetchExisting(context.Background()))

	p.mu.RLock()
	count := len(p.servers)
	p.mu.RUnlock()
	assert.Equal(t, pages*perPage, count)
}
