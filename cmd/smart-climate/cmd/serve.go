package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/VectorBarks/smart-climate-sub002/internal/config"
	"github.com/VectorBarks/smart-climate-sub002/internal/mqtt"
	"github.com/VectorBarks/smart-climate-sub002/internal/service"
)

var serveDebug bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the offset learning service",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "enable debug logging")
}

func runServe(cmd *cobra.Command, args []string) error {
	log, err := newLogger(serveDebug)
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	clientID := fmt.Sprintf("smart-climate-%s", uuid.NewString()[:8])
	client, err := mqtt.NewRealClient(cfg.MQTTBroker, clientID, log)
	if err != nil {
		return fmt.Errorf("connect to broker %s: %w", cfg.MQTTBroker, err)
	}

	svc := service.New(cfg, client, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx); err != nil {
		return err
	}

	watcher, err := config.NewWatcher(flagConfig, log)
	if err != nil {
		log.Warn("config watcher unavailable, live reload disabled", zap.Error(err))
	} else {
		defer watcher.Close()
		if err := watcher.Watch(svc.ApplyConfig); err != nil {
			log.Warn("config watch failed, live reload disabled", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: svc.Router(),
	}
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown failed", zap.Error(err))
	}
	svc.Shutdown("signal")
	return nil
}
