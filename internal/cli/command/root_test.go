package command

import (
	"reflect"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"
)

func TestApp(t *testing.T) {
	app := App()
	if app == nil {
		t.Fatal("App() returned nil")
	}
	if app.Name != "tokpass" {
		t.Errorf("Name = %q, want %q", app.Name, "tokpass")
	}
	if app.Version == "" {
		t.Error("Version should not be empty")
	}

	commandNames := make(map[string]bool)
	for _, cmd := range app.Commands {
		commandNames[cmd.Name] = true
	}
	for _, name := range []string{"login", "logout", "status", "shell", "config"} {
		if !commandNames[name] {
			t.Errorf("missing required command: %s", name)
		}
	}
}

func TestApp_GlobalFlags(t *testing.T) {
	flagNames := make(map[string]bool)
	for _, flag := range App().Flags {
		flagNames[flag.Names()[0]] = true
	}

	required := []string{"backend-url", "config", "store-dir", "ephemeral", "output", "log-level", "log-format", "verbose"}
	for _, name := range required {
		if !flagNames[name] {
			t.Errorf("missing required flag: %s", name)
		}
	}
}

func TestParseGlobalFlags(t *testing.T) {
	var got *GlobalFlags
	app := &cli.App{
		Flags: globalFlags(),
		Action: func(c *cli.Context) error {
			got = ParseGlobalFlags(c)
			return nil
		},
	}

	args := []string{
		"test",
		"--backend-url", "https://api.example.com",
		"--store-dir", "/tmp/store",
		"--ephemeral",
		"-o", "json",
		"--log-format", "json",
		"-V",
	}
	if err := app.Run(args); err != nil {
		t.Fatal(err)
	}

	want := &GlobalFlags{
		BackendURL: "https://api.example.com",
		StoreDir:   "/tmp/store",
		Ephemeral:  true,
		Output:     "json",
		LogFormat:  "json",
		Verbose:    true,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseGlobalFlags() = %+v, want %+v", got, want)
	}
}

func TestGlobalFlags_Overrides(t *testing.T) {
	tests := []struct {
		name  string
		flags GlobalFlags
		want  map[string]any
	}{
		{"none", GlobalFlags{}, map[string]any{}},
		{
			"all",
			GlobalFlags{BackendURL: "https://x", StoreDir: "/s", Ephemeral: true, Output: "yaml", LogLevel: "info", LogFormat: "json"},
			map[string]any{
				"backend_url":     "https://x",
				"store.dir":       "/s",
				"store.ephemeral": true,
				"output":          "yaml",
				"log.level":       "info",
				"log.format":      "json",
			},
		},
		{"verbose wins", GlobalFlags{LogLevel: "error", Verbose: true}, map[string]any{"log.level": "debug"}},
		{"config path is not a key", GlobalFlags{ConfigPath: "/etc/tokpass.yaml"}, map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.flags.Overrides(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Overrides() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApp_InvalidConfiguration(t *testing.T) {
	isolate(t)

	res := runApp(t, "", "--backend-url", "ftp://example.com", "--ephemeral", "status")
	if res.err == nil {
		t.Fatal("expected error for non-http backend URL")
	}
	if !strings.Contains(res.err.Error(), "invalid configuration") {
		t.Errorf("error = %v", res.err)
	}
}

func TestApp_DefaultActionIsStatus(t *testing.T) {
	env := newTestEnv(t)

	res := env.run(t, "")
	if res.err != nil {
		t.Fatalf("run error = %v (stderr %q)", res.err, res.stderr)
	}
	if !strings.Contains(res.stdout, "Not logged in to "+env.backend.URL) {
		t.Errorf("stdout = %q", res.stdout)
	}
}
