package command

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokpass/internal/cli/config"
	"github.com/yndnr/tokpass/internal/cli/connection"
)

// mockBackend serves the login endpoint with a configurable response.
type mockBackend struct {
	*httptest.Server
	calls atomic.Int32

	mu     sync.Mutex
	status int
	body   string
	last   map[string]string
}

func newMockBackend(t *testing.T) *mockBackend {
	t.Helper()
	m := &mockBackend{status: http.StatusOK, body: `{"access":"access-token-0123456789","refresh":"refresh-token-0123456789"}`}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != connection.LoginPath || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		m.calls.Add(1)

		var creds map[string]string
		_ = json.NewDecoder(r.Body).Decode(&creds)

		m.mu.Lock()
		m.last = creds
		status, body := m.status, m.body
		m.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(m.Close)
	return m
}

// respond sets the next responses.
func (m *mockBackend) respond(status int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status, m.body = status, body
}

func (m *mockBackend) lastCredentials() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// isolate points HOME at a temp dir and clears tokpass variables.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, config.EnvPrefix) || name == config.BackendURLEnv {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
	return home
}

type result struct {
	stdout string
	stderr string
	err    error
}

// runApp runs the CLI with args (without the program name).
func runApp(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	return runAppReader(t, strings.NewReader(stdin), args...)
}

func runAppReader(t *testing.T, stdin io.Reader, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer

	app := App()
	app.Reader = stdin
	app.Writer = &out
	app.ErrWriter = &errOut
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run(append([]string{"tokpass"}, args...))
	return result{stdout: out.String(), stderr: errOut.String(), err: err}
}

// testEnv is an isolated home with a mock backend.
type testEnv struct {
	home    string
	backend *mockBackend
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return &testEnv{home: isolate(t), backend: newMockBackend(t)}
}

func (e *testEnv) storeDir() string {
	return filepath.Join(e.home, "store")
}

// run runs the CLI against the mock backend and the isolated store.
func (e *testEnv) run(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	full := append([]string{"--backend-url", e.backend.URL, "--store-dir", e.storeDir()}, args...)
	return runApp(t, stdin, full...)
}
