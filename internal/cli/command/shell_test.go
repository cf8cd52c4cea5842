package command

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/tokpass/internal/cli/config"
	"github.com/yndnr/tokpass/internal/telemetry/logger"
)

func TestShell_LoginLogout(t *testing.T) {
	env := newTestEnv(t)

	input := strings.Join([]string{
		"status",
		"login user@example.com",
		"pw",
		"login",
		"logout",
		"exit",
	}, "\n") + "\n"

	res := env.run(t, input, "shell")
	if res.err != nil {
		t.Fatalf("shell error = %v (stderr %q)", res.err, res.stderr)
	}

	for _, want := range []string{
		"Type 'help' for commands.",
		"tokpass [profile]> ",
		"Already logged in.",
		"Not logged in to " + env.backend.URL,
	} {
		if !strings.Contains(res.stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, res.stdout)
		}
	}
	if !strings.HasSuffix(strings.TrimSpace(res.stdout), "tokpass [login]>") {
		t.Errorf("last prompt should show the login view:\n%s", res.stdout)
	}
	if got := env.backend.lastCredentials(); got["password"] != "pw" {
		t.Errorf("backend received %v", got)
	}
	if n := env.backend.calls.Load(); n != 1 {
		t.Errorf("backend called %d times, want 1", n)
	}

	data, err := os.ReadFile(filepath.Join(env.home, ".tokpass", "history"))
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	history := string(data)
	if !strings.Contains(history, "login user@example.com") || !strings.Contains(history, "logout") {
		t.Errorf("history = %q", history)
	}
	for _, line := range strings.Split(history, "\n") {
		if line == "pw" {
			t.Error("history must not contain the password")
		}
	}
}

func TestShell_FormErrorsKeepShellRunning(t *testing.T) {
	env := newTestEnv(t)
	env.backend.respond(401, `{"detail":"Invalid credentials"}`)

	res := env.run(t, "login user@example.com\nbad\nstatus\nexit\n", "shell")
	if res.err != nil {
		t.Fatalf("shell error = %v", res.err)
	}
	if !strings.Contains(res.stderr, "error: Invalid credentials") {
		t.Errorf("stderr = %q", res.stderr)
	}
	if strings.Contains(res.stdout, "tokpass [profile]> ") {
		t.Errorf("failed login must not reach the profile view:\n%s", res.stdout)
	}
}

func TestShell_ConfigReload(t *testing.T) {
	env := newTestEnv(t)

	cfg := config.Default()
	cfg.Log.Level = "warn"
	path := config.DefaultConfigPath()
	if err := config.Save(cfg, path); err != nil {
		t.Fatal(err)
	}
	logger.SetLevel("warn")
	t.Cleanup(func() { logger.SetLevel("warn") })

	pr, pw := io.Pipe()
	defer pw.Close()
	done := make(chan result, 1)
	go func() {
		full := []string{"--backend-url", env.backend.URL, "--store-dir", env.storeDir(), "shell"}
		done <- runAppReader(t, pr, full...)
	}()

	cfg.Log.Level = "debug"
	deadline := time.Now().Add(5 * time.Second)
	for logger.GetLevel() != "debug" {
		select {
		case res := <-done:
			t.Fatalf("shell exited before the reload: err=%v stderr=%q", res.err, res.stderr)
		default:
		}
		if time.Now().After(deadline) {
			t.Fatal("log level change was not applied")
		}
		if err := config.Save(cfg, path); err != nil {
			t.Fatal(err)
		}
		time.Sleep(100 * time.Millisecond)
	}

	go io.WriteString(pw, "exit\n")
	select {
	case res := <-done:
		if res.err != nil {
			t.Errorf("shell error = %v", res.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("shell did not exit")
	}
}
