// nrelay - headless game client.
//
// nrelay keeps one protocol session per configured account connected to its
// game server, walks characters around, runs extensions on the packet
// stream, and exposes sessions over a REST API, MQTT and an interactive
// console.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nrelay-go/nrelay/internal/api"
	"github.com/nrelay-go/nrelay/internal/cli"
	"github.com/nrelay-go/nrelay/internal/client"
	"github.com/nrelay-go/nrelay/internal/config"
	"github.com/nrelay-go/nrelay/internal/db"
	"github.com/nrelay-go/nrelay/internal/events"
	"github.com/nrelay-go/nrelay/internal/extensions"
	"github.com/nrelay-go/nrelay/internal/hooks"
	"github.com/nrelay-go/nrelay/internal/protocol"
	"github.com/nrelay-go/nrelay/internal/relay"
	"github.com/nrelay-go/nrelay/internal/resources"
	"github.com/nrelay-go/nrelay/internal/scheduler"
	"github.com/nrelay-go/nrelay/internal/telemetry"
	"github.com/nrelay-go/nrelay/internal/util"
)

const (
	AppName    = "nrelay"
	AppVersion = "1.0.0"
	Banner     = `
             _
  _ __  _ __| | __ _ _   _
 | '_ \| '__| |/ _' | | | |
 | | | | |  | | (_| | |_| |
 |_| |_|_|  |_|\__,_|\__, |
                     |___/  v%s
`
)

func main() {
	fmt.Printf(Banner, AppVersion)
	fmt.Println()
	telemetry.AppVersion = AppVersion

	// Defaults first; reconfigured once the config is loaded
	if err := util.InitLogger(util.DefaultLogConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info().
		Str("version", AppVersion).
		Str("platform", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Msg("starting " + AppName)

	if err := config.LoadEnvFile(config.DefaultEnvFile); err != nil {
		log.Warn().Err(err).Msg("ignoring env file")
	}

	cfg, err := config.Load(config.DefaultConfigDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging := cfg.GetLogging()
	if err := util.InitLogger(util.LogConfig{
		Level:      logging.Level,
		Directory:  logging.Directory,
		MaxSizeMB:  logging.MaxSizeMB,
		MaxBackups: logging.MaxBackups,
		MaxAgeDays: logging.MaxAgeDays,
		Console:    logging.Console,
	}); err != nil {
		log.Warn().Err(err).Msg("failed to reconfigure logger, using defaults")
	}

	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if !validation.IsValid() {
		for _, e := range validation.Errors {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}

		if cfg.IsFirstRun() {
			log.Info().Msg("first run detected, launching setup wizard")
			if err := config.RunSetupWizard(cfg, os.Stdin, os.Stdout); err != nil {
				log.Fatal().Err(err).Msg("setup wizard failed")
			}
		} else {
			log.Fatal().Msg("configuration validation failed, please fix the errors above")
		}
	}

	hostInfo := util.GetHostInfo()
	log.Info().
		Str("hostname", hostInfo.Hostname).
		Str("os", hostInfo.OS).
		Str("cpu", hostInfo.CPUModel).
		Int("cpus", hostInfo.CPUs).
		Uint64("memory_mb", hostInfo.MemoryMB).
		Msg("host information")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventBus := events.NewEventBus()

	// Extensions
	registry := hooks.NewRegistry()
	host := hooks.NewHost(registry)
	exts, err := extensions.FromConfig(cfg.GetExtensions(), eventBus)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure extensions")
	}
	host.Load(exts...)

	tiles, err := resources.LoadTileTable(cfg.GetResources().TileSpeedsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load tile speeds")
	}

	// Connection journal
	var history *db.HistoryDatabase
	if dbCfg := cfg.GetDatabase(); dbCfg.Enabled {
		history, err = db.NewHistoryDatabase(dbCfg.Path)
		if err != nil {
			log.Warn().Err(err).Msg("failed to open history database, journal disabled")
		} else {
			history.Attach(eventBus)
			defer history.Close()
		}
	}

	// Sessions
	clients, err := relay.BuildClients(cfg, client.Options{
		Packets: protocol.DefaultRegistry().SetStrict(cfg.GetClient().StrictDecoding),
		Hooks:   registry,
		Tiles:   tiles,
		Events:  eventBus,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build sessions")
	}
	mgr := relay.NewManager()
	for _, c := range clients {
		if err := mgr.Add(c); err != nil {
			log.Fatal().Err(err).Msg("failed to register session")
		}
	}

	var mqttHandler *telemetry.MQTTHandler
	if mqttCfg := cfg.GetMQTT(); mqttCfg.Enabled {
		mqttHandler, err = telemetry.NewMQTTHandler(mqttCfg, eventBus)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize MQTT, telemetry disabled")
		}
	}

	var apiServer *api.Server
	if cfg.GetAPI().Enabled {
		apiServer = api.NewServer(cfg, eventBus, mgr)
		if history != nil {
			apiServer.SetDependencies(host, history)
		} else {
			apiServer.SetDependencies(host, nil)
		}
	}

	var pruner scheduler.Pruner
	if history != nil {
		pruner = history
	}
	sched := scheduler.NewScheduler(cfg, pruner, mgr)

	cliHandler := cli.NewCLI(eventBus, mgr, host, os.Stdin, os.Stdout)

	// The console's quit command arrives as a shutdown event
	quitCh := make(chan struct{}, 1)
	eventBus.Subscribe(events.EventShutdown, "main", func(ctx context.Context, event events.Event) error {
		if event.Source == "cli" {
			select {
			case quitCh <- struct{}{}:
			default:
			}
		}
		return nil
	})

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Int("sessions", len(clients)).Msg("starting sessions")
		mgr.Start(ctx)
	}()

	if apiServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Int("port", cfg.GetAPI().Port).Msg("starting REST API server")
			if err := startWithRetry(ctx, "API server", apiServer.Start, 15); err != nil {
				log.Warn().Err(err).Msg("API server failed after retries (non-fatal)")
			}
		}()
	}

	if mqttHandler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Msg("starting MQTT telemetry")
			if err := mqttHandler.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("MQTT telemetry failed")
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Start(ctx)
	}()

	// The console blocks on stdin, so it is not waited for on shutdown
	go cliHandler.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case <-quitCh:
		log.Info().Msg("shutdown requested from console")
	}

	log.Info().Msg("initiating graceful shutdown...")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all tasks stopped gracefully")
	case <-time.After(30 * time.Second):
		log.Warn().Msg("shutdown timed out after 30 seconds, forcing exit")
	}

	// Last, so the final disconnect events reach the journal
	eventBus.Stop()

	log.Info().Msg(AppName + " stopped")
}

// startWithRetry retries startFn while the port is still held by a
// previous process.
func startWithRetry(ctx context.Context, name string, startFn func(context.Context) error, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = startFn(ctx)
		if lastErr == nil {
			return nil
		}
		if i < maxRetries {
			log.Warn().Err(lastErr).Str("component", name).Int("retry", i+1).Int("max", maxRetries).Msg("bind failed, retrying in 3s...")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
		}
	}
	return lastErr
}
