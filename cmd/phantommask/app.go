package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nkiryanov/phantommask/internal/db"
	"github.com/nkiryanov/phantommask/internal/handlers"
	"github.com/nkiryanov/phantommask/internal/logger"
	"github.com/nkiryanov/phantommask/internal/repository/postgres"
	"github.com/nkiryanov/phantommask/internal/service/catalog"
	"github.com/nkiryanov/phantommask/internal/service/report"
	"github.com/nkiryanov/phantommask/internal/service/search"
	"github.com/nkiryanov/phantommask/internal/service/tokenmanager"
	"github.com/nkiryanov/phantommask/internal/service/trade"
	"github.com/nkiryanov/phantommask/internal/telemetry"
)

const (
	serviceName     = "phantommask"
	serviceVersion  = "1.0.0"
	shutdownTimeout = 5 * time.Second
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler
	Logger     logger.Logger

	// Released in reverse order when server stops
	closers []func(context.Context) error
}

func NewServerApp(ctx context.Context, c *Config) (_ *ServerApp, err error) {
	app := &ServerApp{ListenAddr: c.ListenAddr}

	// Release what was acquired if initialization fails halfway
	defer func() {
		if err != nil {
			err = errors.Join(err, app.close(context.Background()))
		}
	}()

	// Initialize logger
	app.Logger, err = logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:       c.OTLPEndpoint,
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("error while initializing telemetry: %w", err)
	}
	app.closers = append(app.closers, shutdownTelemetry)

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN, db.WithLockTimeout(c.LockTimeout))
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}
	app.closers = append(app.closers, func(context.Context) error {
		pool.Close()
		return nil
	})

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: c.SecretKey})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager: %w", err)
	}
	tradeService, err := trade.NewService(storage, trade.WithLogger(app.Logger.With("service", "trade")))
	if err != nil {
		return nil, fmt.Errorf("error while creating trade service: %w", err)
	}

	app.Handler = handlers.NewRouter(handlers.Services{
		Catalog: catalog.NewService(storage.Pharmacy(), storage.Listing()),
		Report:  report.NewService(storage.Transaction()),
		Search:  search.NewService(storage.Pharmacy(), storage.Mask()),
		Trade:   tradeService,
	}, tokenManager, app.Logger)

	return app, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// Listen and serve until context is cancelled
	g.Go(func() error {
		s.Logger.Info("Starting server", "address", s.ListenAddr)
		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	// Then close gracefully connections
	g.Go(func() error {
		<-gctx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(timeoutCtx)
		if errors.Is(err, context.DeadlineExceeded) {
			s.Logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
			err = httpServer.Close()
		}
		s.Logger.Info("HTTP server stopped")
		return err
	})

	err := g.Wait()

	timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return errors.Join(err, s.close(timeoutCtx))
}

func (s *ServerApp) close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i](ctx))
	}
	s.closers = nil
	return errors.Join(errs...)
}
