package livereload

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func connect(t *testing.T, hub *Hub) *bufio.Reader {
	t.Helper()
	server := httptest.NewServer(hub)
	t.Cleanup(server.Close)

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, ": connected\n", line)
	return reader
}

// readUntil reads lines until one contains want or the window elapses.
func readUntil(reader *bufio.Reader, want string, window time.Duration) bool {
	found := make(chan bool, 1)
	go func() {
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				found <- false
				return
			}
			if strings.Contains(line, want) {
				found <- true
				return
			}
		}
	}()
	select {
	case ok := <-found:
		return ok
	case <-time.After(window):
		return false
	}
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Clients() == n }, time.Second, 5*time.Millisecond)
}

func TestHub_InitialConnectReceivesCurrentHash(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Shutdown()
	hub.Broadcast("abc123")

	reader := connect(t, hub)
	require.True(t, readUntil(reader, `data: {"hash":"abc123"}`, 500*time.Millisecond))
}

func TestHub_ConnectBeforeFirstBuildReceivesEmptyBaseline(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Shutdown()

	reader := connect(t, hub)
	require.True(t, readUntil(reader, `data: {"hash":""}`, 500*time.Millisecond))
	waitForClients(t, hub, 1)

	hub.Broadcast("first")
	require.True(t, readUntil(reader, `data: {"hash":"first"}`, 500*time.Millisecond))
}

func TestHub_BroadcastSendsEvent(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Shutdown()

	reader := connect(t, hub)
	waitForClients(t, hub, 1)

	hub.Notify("newhash")
	require.True(t, readUntil(reader, "newhash", 500*time.Millisecond))
}

func TestHub_DuplicateBroadcastIgnored(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Shutdown()

	reader := connect(t, hub)
	waitForClients(t, hub, 1)

	hub.Broadcast("hash1")
	require.True(t, readUntil(reader, "hash1", 500*time.Millisecond))

	hub.Broadcast("hash1")
	require.False(t, readUntil(reader, "hash1", 200*time.Millisecond), "duplicate hash must not be re-sent")
}

func TestHub_ShutdownRejectsNewClients(t *testing.T) {
	hub := NewHub(nil)
	hub.Shutdown()
	hub.Shutdown()

	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, EventsPath, nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("styles", []byte("body{}"))
	require.NotEmpty(t, a)
	require.Equal(t, a, Fingerprint("styles", []byte("body{}")))
	require.NotEqual(t, a, Fingerprint("styles", []byte("body{color:red}")))
	require.NotEqual(t, a, Fingerprint("scripts", []byte("body{}")))
}
