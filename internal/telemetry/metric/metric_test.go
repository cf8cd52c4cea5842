package metric

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r.registry == nil {
		t.Fatal("registry field is nil")
	}
	if r.LoginAttempts == nil || r.PersistenceFailures == nil ||
		r.StorageReadFailures == nil || r.SessionState == nil {
		t.Fatal("metric not initialized")
	}
}

func TestRegistry_ObserveLogin(t *testing.T) {
	r := NewRegistry()
	r.ObserveLogin(OutcomeSuccess)
	r.ObserveLogin(OutcomeSuccess)
	r.ObserveLogin(OutcomeConnection)

	if got := testutil.ToFloat64(r.LoginAttempts.WithLabelValues(OutcomeSuccess)); got != 2 {
		t.Errorf("success count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.LoginAttempts.WithLabelValues(OutcomeConnection)); got != 1 {
		t.Errorf("connection count = %v, want 1", got)
	}
}

func TestRegistry_Failures(t *testing.T) {
	r := NewRegistry()
	r.ObservePersistenceFailure("set")
	r.ObserveReadFailure()

	if got := testutil.ToFloat64(r.PersistenceFailures.WithLabelValues("set")); got != 1 {
		t.Errorf("persistence failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.StorageReadFailures); got != 1 {
		t.Errorf("read failures = %v, want 1", got)
	}
}

func TestRegistry_SetSessionState(t *testing.T) {
	r := NewRegistry()
	states := []string{"logged_out", "logged_in"}

	r.SetSessionState("logged_in", states...)
	r.SetSessionState("logged_out", states...)

	if got := testutil.ToFloat64(r.SessionState.WithLabelValues("logged_out")); got != 1 {
		t.Errorf("logged_out = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.SessionState.WithLabelValues("logged_in")); got != 0 {
		t.Errorf("logged_in = %v, want 0", got)
	}
}

func TestRegistry_NilSafe(t *testing.T) {
	var r *Registry
	r.ObserveLogin(OutcomeSuccess)
	r.ObservePersistenceFailure("delete")
	r.ObserveReadFailure()
	r.SetSessionState("logged_in")
	if err := r.WriteTextfile("/tmp/ignored.prom"); err != nil {
		t.Errorf("nil WriteTextfile() error = %v", err)
	}
}

func TestRegistry_WriteTextfile(t *testing.T) {
	r := NewRegistry()
	r.ObserveLogin(OutcomeAuth)

	path := filepath.Join(t.TempDir(), "tokpass.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), `tokpass_login_attempts_total{outcome="auth"} 1`) {
		t.Errorf("textfile missing login counter:\n%s", data)
	}
}
