package devserver

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/livereload"
	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
)

func siteRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<html><body><h1>Home</h1></body></html>"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "css"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "css", "style.min.css"), []byte("a{}"), 0o600))
	return root
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestHandler_ServesWorkingRootWithLiveReload(t *testing.T) {
	hub := livereload.NewHub(nil)
	defer hub.Shutdown()
	h := New(config.ServerConfig{LiveReload: true}, siteRoot(t), hub, nil).Handler()

	code, body := get(t, h, "/")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `<script async src="/livereload.js"></script></body>`)

	code, body = get(t, h, "/css/style.min.css")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "a{}", body)

	code, body = get(t, h, livereload.ClientPath)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "EventSource")

	code, _ = get(t, h, "/missing.html")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHandler_LiveReloadDisabled(t *testing.T) {
	h := New(config.ServerConfig{LiveReload: false}, siteRoot(t), nil, nil).Handler()

	_, body := get(t, h, "/index.html")
	assert.NotContains(t, body, "livereload.js")
	code, _ := get(t, h, livereload.ClientPath)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHandler_Metrics(t *testing.T) {
	reg := prom.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)
	rec.IncTaskResult("compile-styles", metrics.ResultSuccess)
	h := New(config.ServerConfig{Metrics: true}, siteRoot(t), nil, reg).Handler()

	code, body := get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "assetbuilder_task_results_total")
}

func TestStartStop(t *testing.T) {
	hub := livereload.NewHub(nil)
	s := New(config.ServerConfig{Host: "127.0.0.1", Port: 0, LiveReload: true}, siteRoot(t), hub, nil)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()), "second start is a no-op")
	addr := s.Addr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + "/index.html")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Contains(t, string(body), "<h1>Home</h1>")

	require.NoError(t, s.Stop(context.Background()))
	_, err = http.Get("http://" + addr + "/index.html")
	assert.Error(t, err)
}

func TestStart_BindFailure(t *testing.T) {
	first := New(config.ServerConfig{Host: "127.0.0.1", Port: 0}, siteRoot(t), nil, nil)
	require.NoError(t, first.Start(context.Background()))
	defer func() { _ = first.Stop(context.Background()) }()

	_, portStr, err := net.SplitHostPort(first.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	second := New(config.ServerConfig{Host: "127.0.0.1", Port: port}, siteRoot(t), nil, nil)
	err = second.Start(context.Background())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryServer))
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := New(config.ServerConfig{Host: "127.0.0.1", Port: 0}, siteRoot(t), livereload.NewHub(nil), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return s.Addr() != "" }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
