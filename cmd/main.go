package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"goban/internal/adapters"
	"goban/internal/bootstrap"
	gameDelivery "goban/internal/delivery/game"
	"goban/internal/metrics"
	repo "goban/internal/repository"
	gameuc "goban/internal/usecase/game"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "goban",
		Short:        "Real-time two-player Go server",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", ".env", "optional env file")
	root.PersistentFlags().String("redis", "", "redis address or redis:// URL for the record mirror")
	root.PersistentFlags().String("log-level", "info", "debug, info, warn or error")

	root.AddCommand(newServeCommand(), newRecordCommand())
	return root
}

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the shared game over websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			return serve(cmd.Context(), *cfg, logger)
		},
	}

	cmd.Flags().String("port", "8080", "HTTP port")
	cmd.Flags().Int("board-size", 19, "board size of the first game")
	return cmd
}

func newRecordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "record",
		Short: "Print the SGF record mirrored to redis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			if cfg.RedisUrl == "" {
				return errors.New("no redis address configured")
			}

			redisAdapter := adapters.NewAdapterRedis(cfg, logger)
			if err = redisAdapter.Init(cmd.Context()); err != nil {
				return err
			}
			defer redisAdapter.Close()

			sgfText, err := repo.NewRecordRepository(*cfg, logger, redisAdapter.GetClient()).LoadRecord(cmd.Context())
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), sgfText)
			return err
		},
	}
}

func setup(cmd *cobra.Command) (*bootstrap.Config, *zap.SugaredLogger, error) {
	cfgPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, err
	}

	cfg, err := bootstrap.Setup(cfgPath, cmd.Flags())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup configuration: %w", err)
	}

	logger, err := NewLogger(cfg.LogLevel, cfg.Development)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func NewLogger(level string, development bool) (*zap.SugaredLogger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	zapCfg := zap.NewProductionConfig()
	if development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.Sugar(), nil
}

type mainDeliveryHandler struct {
	game     *gameDelivery.GameHandler
	registry *prometheus.Registry
}

func (h *mainDeliveryHandler) Router(r *chi.Mux) {
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	h.game.Routes(r)
	r.Handle("/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
}

func newRecordStore(ctx context.Context, cfg bootstrap.Config, log *zap.SugaredLogger) (gameuc.RecordStore, func(), error) {
	if cfg.RedisUrl == "" {
		log.Info("no redis configured, keeping the record in memory")
		return repo.NewMemoryRecordRepository(), func() {}, nil
	}

	redisAdapter := adapters.NewAdapterRedis(&cfg, log)
	if err := redisAdapter.Init(ctx); err != nil {
		return nil, nil, err
	}

	closeFn := func() {
		if err := redisAdapter.Close(); err != nil {
			log.Warnf("failed to close redis: %v", err)
		}
	}
	return repo.NewRecordRepository(cfg, log, redisAdapter.GetClient()), closeFn, nil
}

func serve(ctx context.Context, cfg bootstrap.Config, log *zap.SugaredLogger) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store, closeStore, err := newRecordStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	recorder := gameuc.NewRecorder(store, log)
	recorderDone := make(chan struct{})
	go func() {
		defer close(recorderDone)
		recorder.Run(ctx)
	}()

	session, err := gameuc.NewSessionManager(cfg, log, metrics.New(registry), recorder)
	if err != nil {
		return err
	}

	handlers := &mainDeliveryHandler{
		game:     gameDelivery.NewGameHandler(ctx, log, session),
		registry: registry,
	}
	r := chi.NewRouter()
	handlers.Router(r)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("Server is running on port %s", cfg.ServerPort)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("server failed: %v", err)
		}
	case <-ctx.Done():
		log.Info("Received shutdown signal")
		err = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warnf("graceful shutdown failed: %v", shutdownErr)
	}

	stop()
	<-recorderDone
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
