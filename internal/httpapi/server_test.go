package httpapi

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyrohost/alerion/internal/dockeradapter"
	"github.com/pyrohost/alerion/internal/localdata"
	"github.com/pyrohost/alerion/internal/metrics"
	"github.com/pyrohost/alerion/internal/panel"
	"github.com/pyrohost/alerion/internal/pool"
	"github.com/pyrohost/alerion/internal/statedb"
	"github.com/pyrohost/alerion/internal/wsbus"
)

const testToken = "daemon-secret"
const testJWTSecret = "jwt-secret"

func newTestServer(t *testing.T, panelURL string) *Server {
	t.Helper()

	paths, err := localdata.New(t.TempDir())
	require.NoError(t, err)
	db, err := statedb.Open(paths.DBFile())
	require.NoError(t, err)
	client, _ := dockeradapter.NewMockClient()

	p := pool.New(panel.New(panelURL, "id", "secret"), client, paths, db, slog.Default())
	auth := wsbus.NewAuthenticator([]byte(testJWTSecret), "panel")

	return New(p, auth, testToken, metrics.New(), slog.Default())
}

func newPanelMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/remote/servers/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(struct {
			Settings panel.ServerSettings `json:"settings"`
		}{})
	})
	return mux
}

func TestHandleSystemRequiresBearerToken(t *testing.T) {
	panelSrv := httptest.NewServer(newPanelMux())
	defer panelSrv.Close()
	s := newTestServer(t, panelSrv.URL)

	req := httptest.NewRequest(http.MethodGet, "/api/system", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleSystemReturnsInfo(t *testing.T) {
	panelSrv := httptest.NewServer(newPanelMux())
	defer panelSrv.Close()
	s := newTestServer(t, panelSrv.URL)

	req := httptest.NewRequest(http.MethodGet, "/api/system", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var info systemInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.NotEmpty(t, info.Architecture)
	assert.Greater(t, info.CPUCount, 0)
}

func TestHandleSystemOptionsIsPreflight(t *testing.T) {
	panelSrv := httptest.NewServer(newPanelMux())
	defer panelSrv.Close()
	s := newTestServer(t, panelSrv.URL)

	req := httptest.NewRequest(http.MethodOptions, "/api/system", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandleCreateServerIsIdempotent(t *testing.T) {
	panelSrv := httptest.NewServer(newPanelMux())
	defer panelSrv.Close()
	s := newTestServer(t, panelSrv.URL)

	id := uuid.New()
	body, _ := json.Marshal(createServerRequest{UUID: id})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/servers", bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+testToken)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	_, ok := s.pool.Get(id)
	assert.True(t, ok)
}

func TestHandleWebsocketUpgradesAndRejectsUnknownServer(t *testing.T) {
	panelSrv := httptest.NewServer(newPanelMux())
	defer panelSrv.Close()
	s := newTestServer(t, panelSrv.URL)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/servers/{uuid}/ws", s.handleWebsocket)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):] + "/api/servers/" + uuid.New().String() + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleWebsocketAuthFlow(t *testing.T) {
	panelSrv := httptest.NewServer(newPanelMux())
	defer panelSrv.Close()
	s := newTestServer(t, panelSrv.URL)

	id := uuid.New()
	_, err := s.pool.Create(t.Context(), id, false)
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/servers/{uuid}/ws", s.handleWebsocket)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):] + "/api/servers/" + id.String() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	claims := wsbus.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "panel",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		ServerUUID:  id.String(),
		Permissions: []string{"*"},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(map[string]any{"event": "auth", "args": []string{signed}}))

	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "auth success", frame["event"])
}
