package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rulegraph/internal/index"
	"rulegraph/internal/pipeline"
	"rulegraph/internal/server"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

var (
	serveAddr    string
	serveWatch   bool
	servePreload bool
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Reload datasets when their source files change")
	serveCmd.Flags().BoolVar(&servePreload, "preload", false, "Load every dataset before accepting requests")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logger, reg := setup()
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}
		if cfg.Log.Level != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.Telemetry.TraceStdout {
			shutdown, err := initTracer()
			if err != nil {
				log.Fatalf("Failed to start tracing: %v", err)
			}
			defer shutdown()
		}

		if servePreload {
			for _, c := range reg.Countries() {
				if _, err := reg.Get(ctx, c); err != nil {
					log.Fatalf("Failed to load dataset %s: %v", c, err)
				}
			}
		}

		if cfg.Server.Watch || serveWatch {
			watcher := pipeline.NewIncrementalSync(reg, cfg.Datasets, logger)
			watcher.OnReload(func(country string, ds *index.Dataset, err error) {
				if err == nil {
					logger.Info("dataset refreshed from disk", "country", country, "version", ds.Repo.Version())
				}
			})
			go func() {
				if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("file watcher stopped", "error", err)
				}
			}()
		}

		svc := server.NewService(reg, cfg, logger)
		srv := server.NewHTTPServer(cfg.Server.Addr, server.NewRouter(svc, logger))

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("shutdown failed", "error", err)
			}
		}()

		logger.Info("listening", "addr", cfg.Server.Addr, "datasets", reg.Countries())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	},
}

// initTracer installs an SDK tracer provider that prints spans to stdout.
func initTracer() (func(), error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}, nil
}
