package apilib

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/transifex/jsonapi-server/internal/config"
	"github.com/transifex/jsonapi-server/internal/logger"
	"github.com/transifex/jsonapi-server/internal/server"
	"github.com/transifex/jsonapi-server/internal/store"
)

type ServeCommandArguments struct {
	Listen   string
	Database string
	Token    string
	Debug    bool
}

// ApplyOverrides copies the non-empty command line values over the ones of
// the configuration file
func (arguments ServeCommandArguments) ApplyOverrides(cfg *config.Config) {
	if arguments.Listen != "" {
		cfg.Main.Listen = arguments.Listen
	}
	if arguments.Database != "" {
		cfg.Main.Database = arguments.Database
	}
	if arguments.Token != "" {
		cfg.Main.Token = arguments.Token
	}
	if arguments.Debug {
		cfg.Main.LogLevel = "debug"
	}
}

// OpenStore opens the configured database, ':memory:' when none is set
func OpenStore(cfg *config.Config) (*store.Store, error) {
	path := cfg.Main.Database
	if path == "" {
		path = ":memory:"
	}
	return store.Open(path)
}

/*
ServeCommand
Serve the configured resource types until the context is cancelled or the
process receives SIGINT/SIGTERM. In-flight requests get five seconds to finish.
*/
func ServeCommand(
	ctx context.Context, cfg *config.Config, arguments ServeCommandArguments,
) error {
	arguments.ApplyOverrides(cfg)
	log := logger.Init(logger.Config{
		Level:  cfg.Main.LogLevel,
		Format: cfg.Main.LogFormat,
	})

	st, err := OpenStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	srv, err := server.New(cfg, st, log)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Main.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		log.Info("listening",
			"address", cfg.Main.Listen,
			"base_url", cfg.Main.BaseURL,
			"resources", len(cfg.Resources),
		)
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), 5*time.Second,
	)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
