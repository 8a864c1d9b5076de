package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/simp-lee/epubsplit"
	"github.com/simp-lee/epubsplit/internal/config"
	"github.com/simp-lee/epubsplit/internal/server"
)

func main() {
	configPath := flag.String("config", os.Getenv("EPUBSPLIT_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	opts, err := cfg.ConverterOptions()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	conv, err := epubsplit.NewConverter(opts)
	if err != nil {
		logger.Fatal("failed to create converter", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.New(conv, logger, cfg.Server),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout * 2,
	}

	// Graceful shutdown.
	idle := make(chan struct{})
	go func() {
		defer close(idle)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Warn("shutdown incomplete", zap.Error(err))
		}
	}()

	marker := opts.MarkerPattern
	if marker == "" {
		marker = epubsplit.DefaultMarkerPattern
	}
	logger.Info("starting epubsplitd",
		zap.String("addr", cfg.Server.Addr),
		zap.String("marker", marker),
		zap.String("no_chapters", opts.NoChapters.String()),
		zap.Bool("verify", opts.Verify),
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
	<-idle
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	if cfg.Development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
