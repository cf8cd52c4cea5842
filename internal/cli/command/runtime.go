// Package command provides CLI command definitions for tokpass.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/yndnr/tokpass/internal/cli/config"
	"github.com/yndnr/tokpass/internal/cli/connection"
	"github.com/yndnr/tokpass/internal/cli/output"
	"github.com/yndnr/tokpass/internal/core/service"
	"github.com/yndnr/tokpass/internal/infra/securestore"
	"github.com/yndnr/tokpass/internal/infra/shutdown"
	"github.com/yndnr/tokpass/internal/infra/tlsroots"
	"github.com/yndnr/tokpass/internal/telemetry/logger"
	"github.com/yndnr/tokpass/internal/telemetry/metric"
)

// runtime holds the wired services for one command invocation.
type runtime struct {
	cfg        *config.CLIConfig
	configPath string
	format     output.Format

	logger   logger.Logger
	metrics  *metric.Registry
	storage  securestore.Storage
	store    *service.SessionStore
	renderer *output.ScreenRenderer
	router   *service.Router
	form     *service.LoginForm
	shutdown *shutdown.Handler

	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

// newRuntime loads and validates the configuration and wires the services.
// The caller must call close.
func newRuntime(c *cli.Context) (*runtime, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	format, err := output.ParseFormat(cfg.Output)
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:        cfg,
		configPath: configPath(c),
		format:     format,
		in:         stdin(c),
		out:        &syncWriter{w: stdout(c)},
		errOut:     &syncWriter{w: stderr(c)},
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Format = cfg.Log.Format
	logCfg.File = cfg.Log.File
	logCfg.Output = rt.errOut
	log, logCloser, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)
	rt.logger = log

	rt.shutdown = shutdown.NewHandler(shutdown.DefaultTimeout, log)
	rt.shutdown.OnShutdown("logger", func(context.Context) error {
		return logCloser.Close()
	})

	rt.metrics = metric.NewRegistry()
	if cfg.Metrics.Textfile != "" {
		rt.shutdown.OnShutdown("metrics", func(context.Context) error {
			return rt.metrics.WriteTextfile(cfg.Metrics.Textfile)
		})
	}

	rt.storage, err = openStorage(cfg, log)
	if err != nil {
		_ = rt.close()
		return nil, err
	}
	rt.shutdown.OnShutdown("storage", func(context.Context) error {
		return rt.storage.Close()
	})

	rt.store = service.NewSessionStore(rt.storage,
		service.WithSessionLogger(log),
		service.WithSessionMetrics(rt.metrics),
	)
	rt.renderer = output.NewScreenRenderer(rt.out, format, cfg.BackendURL)
	rt.router = service.NewRouter(rt.store, rt.renderer)

	var clientOpts []connection.ClientOption
	if cfg.TLS.CAFile != "" {
		tlsCfg, err := tlsroots.ClientConfig(cfg.TLS.CAFile)
		if err != nil {
			_ = rt.close()
			return nil, err
		}
		clientOpts = append(clientOpts, connection.WithTLSConfig(tlsCfg))
	}
	auth := connection.NewAuthClient(connection.NewHTTPClient(cfg.BackendURL, clientOpts...))
	formOpts := []service.LoginOption{
		service.WithLoginLogger(log),
		service.WithLoginMetrics(rt.metrics),
		service.WithRateLimit(cfg.Login.Rate, cfg.Login.Burst),
		service.WithLoginTimeout(cfg.Login.Timeout),
	}
	if cfg.Login.Precheck {
		formOpts = append(formOpts, service.WithLocalValidation())
	}
	rt.form = service.NewLoginForm(rt.store, auth, formOpts...)
	rt.shutdown.OnShutdown("session", func(context.Context) error {
		rt.router.Stop()
		rt.form.Close()
		rt.store.Close()
		return nil
	})

	log.Debug("runtime ready",
		"backend_url", cfg.BackendURL,
		"ephemeral", cfg.Store.Ephemeral,
		"config", rt.configPath,
	)
	return rt, nil
}

func openStorage(cfg *config.CLIConfig, log logger.Logger) (securestore.Storage, error) {
	if cfg.Store.Ephemeral {
		log.Debug("using ephemeral storage")
		return securestore.NewMemory(), nil
	}
	vcfg := securestore.DefaultVaultConfig(cfg.Store.Dir)
	vcfg.Cipher = securestore.CipherType(cfg.Store.Cipher)
	if cfg.Store.Passphrase != "" {
		vcfg.Passphrase = []byte(cfg.Store.Passphrase)
	}
	v, err := securestore.OpenVault(vcfg, log)
	if errors.Is(err, securestore.ErrVaultLocked) {
		log.Warn("secure storage is held by another tokpass process, session will not persist", "dir", cfg.Store.Dir)
		return securestore.NewUnavailable(err), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open secure storage: %w", err)
	}
	return v, nil
}

// load runs the initial read from secure storage and waits for it.
func (rt *runtime) load(ctx context.Context) error {
	if err := rt.store.Initialize(ctx); err != nil {
		return err
	}
	return rt.store.WaitLoaded(ctx)
}

// render draws the view routed from the current session.
func (rt *runtime) render() {
	snap := rt.store.Snapshot()
	rt.renderer.Render(service.Route(snap), snap)
}

// close runs the shutdown hooks.
func (rt *runtime) close() error {
	return rt.shutdown.Run()
}

// withRuntime builds the runtime, runs fn and tears everything down.
func withRuntime(c *cli.Context, fn func(ctx context.Context, rt *runtime) error) (err error) {
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, rt)
}

// secretReader reads a secret without echo when in is a terminal.
// It returns nil otherwise, so callers fall back to a plain line read.
func secretReader(in io.Reader, out io.Writer) func(label string) (string, error) {
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return func(label string) (string, error) {
		fmt.Fprint(out, label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

// syncWriter serializes writes from the router, spinner, logger and shell.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
