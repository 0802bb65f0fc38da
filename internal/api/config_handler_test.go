package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dashEditor/internal/auth"
	"dashEditor/internal/codec"
	"dashEditor/internal/configfile"
	"dashEditor/internal/document"
	"dashEditor/internal/editor"
	"dashEditor/internal/errcode"
	"dashEditor/internal/notify"
)

const configPath = "/srv/dashboard.yml"

func init() {
	gin.SetMode(gin.TestMode)
}

type idleTimer struct{}

func (idleTimer) Stop() bool { return true }

// neverFire keeps structured edits pending until /config/flush is called.
func neverFire(time.Duration, func()) editor.Timer { return idleTimer{} }

func sampleDocument(widgetType string) document.Document {
	return document.Document{
		Pages: []document.Page{{
			Name: "Home",
			Columns: []document.Column{{
				Size:    document.SizeFull,
				Widgets: []document.Widget{document.NewWidget(widgetType, nil)},
			}},
		}},
	}
}

type testServer struct {
	router *gin.Engine
	fs     afero.Fs
	coord  *editor.Coordinator
	hub    *notify.Hub
}

func newTestServer(t *testing.T, withFile bool, authService *auth.AuthService) *testServer {
	t.Helper()
	fs := afero.NewMemMapFs()
	if withFile {
		require.NoError(t, afero.WriteFile(fs, configPath, []byte(codec.Encode(sampleDocument("clock"))), 0o644))
	}

	hub := notify.NewHub(8, nil)
	coord := editor.New(
		configfile.New(configPath, configfile.WithFs(fs)),
		editor.WithAfterFunc(neverFire),
		editor.WithSink(hub),
	)
	if withFile {
		require.NoError(t, coord.Load(context.Background()))
	}

	router := NewRouter(nil)
	deps := Dependencies{Editor: coord, Events: hub, Auth: authService}
	if authService != nil {
		deps.RateCounter = &fakeRateCounter{}
	}
	RegisterRoutes(router, deps)

	return &testServer{router: router, fs: fs, coord: coord, hub: hub}
}

func (s *testServer) do(t *testing.T, method, path string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeState(t *testing.T, w *httptest.ResponseRecorder) stateResponse {
	t.Helper()
	var resp stateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestGetConfig(t *testing.T) {
	s := newTestServer(t, true, nil)

	w := s.do(t, http.MethodGet, "/v1/config", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeState(t, w)
	assert.Equal(t, errcode.OK, resp.Code)
	assert.True(t, resp.Exists)
	require.NotNil(t, resp.Document)
	assert.Equal(t, "clock", resp.Document.Pages[0].Columns[0].Widgets[0].Type)
	assert.Equal(t, codec.Encode(sampleDocument("clock")), resp.RawText)
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
}

func TestGetConfigMissingFile(t *testing.T) {
	s := newTestServer(t, false, nil)

	w := s.do(t, http.MethodGet, "/v1/config", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code":4004`)

	w = s.do(t, http.MethodGet, "/v1/config/exists", nil, nil)
	assert.JSONEq(t, `{"exists":false}`, w.Body.String())
}

func TestPutConfigThenFlush(t *testing.T) {
	s := newTestServer(t, true, nil)
	body, err := json.Marshal(map[string]any{
		"document":    sampleDocument("weather"),
		"description": "Swap widget",
	})
	require.NoError(t, err)

	w := s.do(t, http.MethodPut, "/v1/config", body, map[string]string{"Content-Type": "application/json"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	resp := decodeState(t, w)
	assert.True(t, resp.Pending)
	assert.Equal(t, "weather", resp.Document.Pages[0].Columns[0].Widgets[0].Type)

	onDisk, err := afero.ReadFile(s.fs, configPath)
	require.NoError(t, err)
	assert.Contains(t, string(onDisk), "clock")

	w = s.do(t, http.MethodPost, "/v1/config/flush", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decodeState(t, w).Pending)

	onDisk, err = afero.ReadFile(s.fs, configPath)
	require.NoError(t, err)
	assert.Equal(t, codec.Encode(sampleDocument("weather")), string(onDisk))

	w = s.do(t, http.MethodGet, "/v1/history", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var hist struct {
		Entries []struct {
			Description string `json:"description"`
		} `json:"entries"`
		CanUndo bool `json:"can_undo"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	require.Len(t, hist.Entries, 2)
	assert.Equal(t, "Swap widget", hist.Entries[1].Description)
	assert.True(t, hist.CanUndo)
}

func TestPutConfigRejectsInvalidDocument(t *testing.T) {
	s := newTestServer(t, true, nil)

	w := s.do(t, http.MethodPut, "/v1/config", []byte(`{"document":{"pages":[]}}`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"code":4000`)

	w = s.do(t, http.MethodPut, "/v1/config", []byte(`{}`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPutRawTextWithSyntaxError(t *testing.T) {
	s := newTestServer(t, true, nil)
	broken := "pages:\n  - name: Home\n\tcolumns: []\n"

	w := s.do(t, http.MethodPut, "/v1/config/raw", []byte(broken), map[string]string{"Content-Type": "application/yaml"})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeState(t, w)
	assert.Equal(t, errcode.DecodeFailed, resp.Code)
	require.NotNil(t, resp.DecodeError)
	assert.Equal(t, 3, resp.DecodeError.Line)
	assert.Equal(t, broken, resp.RawText)
	require.NotNil(t, resp.Document, "last valid document is kept")
	assert.Equal(t, "clock", resp.Document.Pages[0].Columns[0].Widgets[0].Type)

	w = s.do(t, http.MethodGet, "/v1/config/raw", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, broken, w.Body.String())
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "application/yaml"))
}

func TestPutRawTextCreatesMissingFile(t *testing.T) {
	s := newTestServer(t, false, nil)
	text := codec.Encode(sampleDocument("search"))

	w := s.do(t, http.MethodPut, "/v1/config/raw", []byte(text), nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeState(t, w)
	assert.True(t, resp.Exists)
	assert.Equal(t, "search", resp.Document.Pages[0].Columns[0].Widgets[0].Type)
}

func TestUndoRedoEndpoints(t *testing.T) {
	s := newTestServer(t, true, nil)

	w := s.do(t, http.MethodPost, "/v1/history/undo", nil, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"code":4009`)

	_, err := s.coord.ApplyRawTextEdit(context.Background(), codec.Encode(sampleDocument("weather")))
	require.NoError(t, err)

	w = s.do(t, http.MethodPost, "/v1/history/undo", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeState(t, w)
	assert.Equal(t, "clock", resp.Document.Pages[0].Columns[0].Widgets[0].Type)
	assert.True(t, resp.CanRedo)

	w = s.do(t, http.MethodPost, "/v1/history/redo", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decodeState(t, w)
	assert.Equal(t, "weather", resp.Document.Pages[0].Columns[0].Widgets[0].Type)
	assert.False(t, resp.CanRedo)
}

func TestInitialBackupEndpoint(t *testing.T) {
	s := newTestServer(t, true, nil)

	// Load already created it
	w := s.do(t, http.MethodPost, "/v1/config/initial-backup", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"created":false}`, w.Body.String())

	exists, err := afero.Exists(s.fs, configPath+".initial.backup")
	require.NoError(t, err)
	assert.True(t, exists)
}

type fakeRateCounter struct {
	counts map[string]int64
}

func (f *fakeRateCounter) Incr(ctx context.Context, key string) *redis.IntCmd {
	if f.counts == nil {
		f.counts = map[string]int64{}
	}
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeRateCounter) Expire(context.Context, string, time.Duration) *redis.BoolCmd {
	return redis.NewBoolResult(true, nil)
}

func newAuthService(t *testing.T) *auth.AuthService {
	t.Helper()
	hash, err := auth.HashPassword("open-sesame")
	require.NoError(t, err)
	svc, err := auth.NewAuthService(hash, "secret", time.Hour)
	require.NoError(t, err)
	return svc
}

func TestPasswordGate(t *testing.T) {
	s := newTestServer(t, true, newAuthService(t))

	w := s.do(t, http.MethodGet, "/v1/config", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/v1/auth/login", []byte(`{"password":"wrong"}`), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/v1/auth/login", []byte(`{"password":"open-sesame"}`), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var token tokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &token))
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, 3600, token.ExpiresIn)

	w = s.do(t, http.MethodGet, "/v1/config", nil, map[string]string{"Authorization": "Bearer " + token.AccessToken})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoginRateLimit(t *testing.T) {
	s := newTestServer(t, true, newAuthService(t))

	var last int
	for i := 0; i < defaultLoginRateLimitPerHour+1; i++ {
		last = s.do(t, http.MethodPost, "/v1/auth/login", []byte(`{"password":"wrong"}`), nil).Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestLoginRouteAbsentWithoutGate(t *testing.T) {
	s := newTestServer(t, true, nil)

	w := s.do(t, http.MethodPost, "/v1/auth/login", []byte(`{"password":"x"}`), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, true, nil)

	w := s.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dasheditor_http_requests_total")
}
