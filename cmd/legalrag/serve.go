package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	chiTransport "github.com/kailas-cloud/legalrag/internal/transport/chi"
	healthuc "github.com/kailas-cloud/legalrag/internal/usecase/health"
)

var errEmptyIndex = errors.New("index is empty")

func runServe(ctx context.Context, args []string) error {
	var common commonFlags
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	common.register(fs)
	port := fs.Int("port", 0, "HTTP port (overrides http.port)")
	if err := fs.Parse(args); err != nil {
		return err //nolint:wrapcheck // flag errors are printed by the flag set
	}

	a, err := newApp(ctx, common, "serve")
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.logger

	if err := a.loadIndex(ctx); err != nil {
		return err
	}

	health := healthuc.New().
		WithRequired("index", healthuc.CheckerFunc(func(context.Context) error {
			if a.store.Len() == 0 {
				return errEmptyIndex
			}
			return nil
		})).
		WithOptional("embedding", a.embedder).
		WithOptional("chat", a.chat)
	if a.kv != nil {
		health.WithOptional("cache", healthuc.CheckerFunc(a.kv.Ping))
	}

	server := chiTransport.NewServer(a.pipeline(), health, logger)
	handler := chiTransport.NewRouter(server, chiTransport.RouterOptions{
		APIKeys:        a.cfg.Auth.APIKeys,
		RequestTimeout: time.Duration(a.cfg.HTTP.RequestTimeoutSec) * time.Second,
		Logger:         logger,
	})

	httpPort := a.cfg.HTTP.Port
	if *port > 0 {
		httpPort = *port
	}
	addr := fmt.Sprintf(":%d", httpPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(a.cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(a.cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr), zap.Int("documents", a.store.Len()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}
