package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/memoraos/neuralmap/internal/engine"
	"github.com/memoraos/neuralmap/internal/logging"
	"github.com/memoraos/neuralmap/internal/orbit"
	"github.com/memoraos/neuralmap/internal/provider"
	"github.com/memoraos/neuralmap/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	servePort int
	serveBind string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the view engine and its HTTP/WebSocket API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (overrides config)")
	serveCmd.Flags().StringVar(&serveBind, "bind", "", "Listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if serveBind != "" {
		cfg.Server.Bind = serveBind
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	client := provider.NewClient(cfg.Provider.URL, cfg.Provider.Timeout(), log.Named("provider"))
	scene := engine.NewScene(engine.Options{
		Scheduler:     orbit.NewTickerScheduler(cfg.Timing.TickInterval()),
		Source:        client,
		Store:         db,
		SourceName:    client.BaseURL(),
		Layout:        layoutOptions(cfg.Layout),
		ExpandDelay:   cfg.Timing.ExpandDelay(),
		OrbitDelay:    cfg.Timing.OrbitDelay(),
		SearchPulse:   cfg.Timing.SearchPulse(),
		PollInterval:  cfg.Provider.PollInterval(),
		KeepSnapshots: cfg.Database.KeepSnapshots,
		Metrics:       engine.NewMetrics(reg),
		Log:           log.Named("scene"),
	})

	srv := server.New(server.Options{
		Scene:          scene,
		DB:             db,
		Provider:       client,
		Gatherer:       reg,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Version:        VersionString(),
		Log:            log.Named("http"),
	})
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return scene.Run(ctx)
	})
	g.Go(func() error {
		log.Info("neuralmap serving",
			zap.String("addr", httpServer.Addr),
			zap.String("provider", client.BaseURL()),
			zap.String("db", db.Path))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
