// Package server builds the application's dependencies and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/JakeFAU/tasklist/internal/api"
	"github.com/JakeFAU/tasklist/internal/clock/system"
	"github.com/JakeFAU/tasklist/internal/config"
	gcppublisher "github.com/JakeFAU/tasklist/internal/publisher/pubsub"
	"github.com/JakeFAU/tasklist/internal/tasks"
	"github.com/JakeFAU/tasklist/internal/telemetry"
)

// App contains the application's dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	tracing   *telemetry.Handle
	store     tasks.Store
	publisher *gcppublisher.Publisher
	apiServer *api.Server
}

// Build creates the application's dependencies. tracing must already be started so
// the gRPC clients built here pick up its instrumentation.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, tracing *telemetry.Handle) (*App, error) {
	if tracing == nil {
		return nil, errors.New("telemetry handle is required")
	}
	app := &App{
		cfg:     cfg,
		logger:  logger,
		tracing: tracing,
	}
	logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.String("store_backend", cfg.Store.Backend),
	)

	var err error
	app.store, err = OpenStore(ctx, cfg, logger, tracing.GRPCClientOptions())
	if err != nil {
		return nil, err
	}

	app.publisher, err = OpenPublisher(ctx, cfg, logger, tracing.GRPCClientOptions())
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	opts := []api.Option{
		api.WithInstrumentations(tracing.Instrumentations(), cfg.Application.ServiceName),
	}
	if app.publisher != nil {
		opts = append(opts, api.WithPublisher(app.publisher, cfg.PubSub.TopicName))
	}
	app.apiServer, err = api.NewServer(app.store, system.New(), logger, opts...)
	if err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("api server init failed: %w", err)
	}
	return app, nil
}

// Handler exposes the HTTP handler, mostly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run listens on the configured port and blocks until SIGINT, SIGTERM or ctx ends.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Server.Port))
	if err != nil {
		a.Close(context.Background())
		return fmt.Errorf("listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves HTTP on ln until a signal arrives or ctx ends, then shuts down
// gracefully and releases every dependency.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: a.cfg.ReadHeaderTimeout(),
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
		close(serveErr)
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	a.Close(shutdownCtx)
	return <-serveErr
}

// Close releases the store, the publisher and the tracing providers. Failures are logged.
func (a *App) Close(ctx context.Context) {
	a.closeInfrastructure()
	a.closeObservability(ctx)
	a.logger.Info("shutdown complete")
}

func (a *App) closeInfrastructure() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("task store close failed", zap.Error(err))
		}
		a.store = nil
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("pubsub publisher close failed", zap.Error(err))
		}
		a.publisher = nil
	}
}

func (a *App) closeObservability(ctx context.Context) {
	// Shutdown logs its own failures.
	_ = a.tracing.Shutdown(ctx)
	// Sync reports ENOTTY or EINVAL when stdout is a terminal or pipe.
	_ = a.logger.Sync()
}
