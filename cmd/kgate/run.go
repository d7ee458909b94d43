package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/kookworks/kgate/internal/config"
	"github.com/kookworks/kgate/pkg/asset"
	"github.com/kookworks/kgate/pkg/event"
	"github.com/kookworks/kgate/pkg/gateway"
	"github.com/kookworks/kgate/pkg/message"
	"github.com/kookworks/kgate/pkg/telemetry"
)

func runCmd() *cobra.Command {
	var (
		configDir   string
		mode        string
		metricsAddr string
		logLevel    string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the platform and dispatch events",
		Long: `Load kgate.json, connect through the configured receiver, and run
until interrupted.

Examples:
  kgate run
  kgate run --config /etc/kgate
  kgate run --mode webhook --metrics-addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGateway(configDir, mode, metricsAddr, logLevel)
		},
	}

	cmd.Flags().StringVarP(&configDir, "config", "c", ".", "Directory containing kgate.json")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Receiver mode override (websocket or webhook)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	return cmd
}

func runGateway(configDir, mode, metricsAddr, logLevel string) error {
	logger := newLogger(logLevel)

	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	if mode != "" {
		cfg.Mode = mode
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		telemetry.EnableMetrics()
		go serveMetrics(ctx, cfg.MetricsAddr, logger)
	}

	codec := message.NewCodec(asset.NewAPIUploader(cfg.Token, asset.WithLogger(logger)))
	dispatcher := event.NewDispatcher(event.DefaultDedupCapacity, logger)
	classifier := event.NewClassifier(codec, dispatcher, event.IgnorePolicy(cfg.Ignore), logger)

	dispatcher.On(event.NameMessage, func(ctx context.Context, payload any) {
		msg, ok := payload.(*event.MessageEvent)
		if !ok {
			return
		}
		logger.Info("message",
			"kind", msg.Kind,
			"channel", msg.ChannelID,
			"author", msg.AuthorID,
			"content", msg.RawContent)
	})

	receiver, err := gateway.Build(cfg.Mode, gateway.Deps{
		Config: cfg,
		Handler: func(ctx context.Context, payload json.RawMessage) {
			if err := classifier.HandleEvent(ctx, payload); err != nil {
				logger.Warn("drop event", "error", err)
			}
		},
		Logger: logger,
	}, gateway.Factories())
	if err != nil {
		return err
	}

	logger.Info("starting", "mode", cfg.Mode, "compress", cfg.Compress)
	return receiver.Run(ctx)
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server", "error", err)
	}
}
