package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/sourcegraph/conc"

	"github.com/sdfolio/sdwf/internal/actionlog"
	"github.com/sdfolio/sdwf/internal/config"
	"github.com/sdfolio/sdwf/internal/eventbus"
	"github.com/sdfolio/sdwf/internal/gateway"
	"github.com/sdfolio/sdwf/internal/project"
	"github.com/sdfolio/sdwf/internal/server"
	"github.com/sdfolio/sdwf/internal/sync"
	"github.com/sdfolio/sdwf/internal/tickboard"
	"github.com/sdfolio/sdwf/pkg/clog"
	"github.com/sdfolio/sdwf/pkg/panicerr"
	"github.com/sdfolio/sdwf/pkg/storage"
)

var (
	app = kingpin.New("sdwf-server", "Team workflow state server with offline and remote-backed modes")

	runCmd  = app.Command("run", "Run the server").Default()
	runHost = runCmd.Flag("host", "Address to bind to (overrides SDWF_HTTP_HOST)").String()
	runPort = runCmd.Flag("port", "Port to bind to (overrides SDWF_HTTP_PORT)").Int()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))
	switch command {
	case runCmd.FullCommand():
		if err := run(*runHost, *runPort); err != nil {
			slog.Error("server exited", "error", err)
			os.Exit(1)
		}
	}
}

func run(hostOverride string, portOverride int) error {
	env, err := config.LoadEnv()
	if err != nil {
		return err
	}

	// Setup logger
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewHTTPTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	host := env.HTTPHost
	if hostOverride != "" {
		host = hostOverride
	}
	port, err := strconv.Atoi(env.HTTPPort)
	if err != nil {
		return errors.New("SDWF_HTTP_PORT must be an integer")
	}
	if portOverride != 0 {
		port = portOverride
	}

	// Setup storage
	var store storage.Storage
	switch env.StorageEnv.Type {
	case "s3":
		store, err = storage.NewS3Storage(context.Background(), env.StorageEnv.S3Bucket, env.StorageEnv.S3Prefix, env.StorageEnv.S3Region)
		if err != nil {
			return err
		}
	default:
		store, err = storage.NewLocalStorage(env.StorageEnv.BaseDir)
		if err != nil {
			return err
		}
	}

	bus := eventbus.New()

	// Setup workflow templates
	registry := project.NewRegistry()
	if env.TemplateEnv.Path != "" {
		if err := registry.LoadFile(env.TemplateEnv.Path); err != nil {
			slog.Warn("failed to load workflow templates, using builtins", "path", env.TemplateEnv.Path, "error", err)
		}
	}

	// Select the backing store once. The engine never branches on mode.
	var (
		engineStore sync.Store
		gate        sync.AuthGate
	)
	if env.RemoteEnabled() {
		client := gateway.NewPostgRESTClient(env.RemoteEnv.URL, env.RemoteEnv.AnonKey, env.RemoteEnv.ServiceToken)
		engineStore = sync.NewRemoteStore(client)
		gate = sync.NewSessionGate(client)
		slog.Info("running in remote mode", "url", env.RemoteEnv.URL)
	} else {
		engineStore = sync.NewLocalStore(store)
		gate = sync.AllowAllGate{}
		slog.Info("running in local mode", "base_dir", env.StorageEnv.BaseDir)
	}

	engine := sync.New(engineStore, gate, registry,
		sync.WithBus(bus),
		sync.WithPollInterval(env.RemoteEnv.PollInterval),
	)

	actions := actionlog.NewRepository(store)
	recorder := actionlog.NewRecorder(actions, bus)
	ticks := tickboard.NewRepository(store, bus)

	srv := server.New(host, port, engine, actions, ticks)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := engine.Start(ctx); err != nil {
		return err
	}
	defer engine.Stop()

	var wg conc.WaitGroup
	wg.Go(func() {
		if err := panicerr.SafeContext(recorder.Run)(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("action log recorder stopped", "error", err)
		}
	})
	if env.TemplateEnv.Path != "" && env.TemplateEnv.Watch {
		wg.Go(func() {
			if err := panicerr.SafeContext(func(ctx context.Context) error {
				return project.WatchTemplates(ctx, registry, env.TemplateEnv.Path)
			})(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("template watcher stopped", "error", err)
			}
		})
	}
	wg.Go(func() {
		if err := srv.Start(); err != nil {
			slog.Error("http server stopped", "error", err)
			stop()
		}
	})

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shut down http server", "error", err)
	}
	wg.Wait()
	return nil
}
