package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/powersteer/steerstate/internal/core"
	"github.com/powersteer/steerstate/internal/events"
	"github.com/powersteer/steerstate/internal/watch"
	"github.com/powersteer/steerstate/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the diagnostics HTTP server",
	Long: `Serve the read-only diagnostics API: session listing, persisted state,
health summaries, and journal events.

Examples:
  # Start with defaults (localhost:8643)
  steerstate serve

  # Bind elsewhere
  steerstate serve --host 0.0.0.0 --port 9000`,
	RunE: runServe,
}

var (
	serveHost string
	servePort int
	serveCORS bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host address to bind to")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on")
	serveCmd.Flags().BoolVar(&serveCORS, "cors", false, "Enable CORS headers")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	webCfg := web.DefaultConfig()
	webCfg.Host = cfg.Serve.Host
	webCfg.Port = cfg.Serve.Port
	webCfg.EnableCORS = cfg.Serve.EnableCORS
	webCfg.CORSOrigins = cfg.Serve.CORSOrigins

	if serveHost != "" {
		webCfg.Host = serveHost
	}
	if servePort != 0 {
		webCfg.Port = servePort
	}
	if cmd.Flags().Changed("cors") {
		webCfg.EnableCORS = serveCORS
	}

	opts, err := storeOptions(cfg, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Feed journal appends from every known session onto the bus so the
	// stream endpoint has something to say. Sessions created while the
	// server runs are picked up on restart.
	bus := events.New(256)
	defer bus.Close()

	g, watchCtx := errgroup.WithContext(ctx)
	ids, err := listSessionIDs(cfg.State.Dir)
	if err != nil {
		return err
	}
	for _, id := range ids {
		watcher := watch.New(cfg.State.Dir, core.SessionID(id), bus, logger)
		g.Go(func() error { return watcher.Run(watchCtx) })
	}

	srv := web.New(webCfg, cfg.State.Dir, logger,
		web.WithStoreOptions(opts),
		web.WithDetector(newDetector(cfg)),
		web.WithEventBus(bus))
	if err := srv.Start(); err != nil {
		return err
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	shutdownErr := srv.Shutdown(shutdownCtx)
	if err := g.Wait(); err != nil {
		logger.Warn("session watcher exited", "error", err.Error())
	}
	return shutdownErr
}
