// Package server orchestrates all components: COMMS client, definitions,
// executor, dispatcher, events and the HTTP surface.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/usecase-executor/internal/config"
	"github.com/morezero/usecase-executor/pkg/bootstrap"
	"github.com/morezero/usecase-executor/pkg/commsutil"
	"github.com/morezero/usecase-executor/pkg/db"
	"github.com/morezero/usecase-executor/pkg/dispatcher"
	"github.com/morezero/usecase-executor/pkg/events"
	"github.com/morezero/usecase-executor/pkg/execution"
)

const logPrefix = "server:server"

// Server is the usecase-executor orchestrator.
type Server struct {
	cfg        *config.Config
	nc         *comms.Conn
	pool       *pgxpool.Pool
	subs       []*comms.Subscription
	httpServer *http.Server
	exec       *execution.Executor
}

// SetupLogging installs the default slog text handler at the configured level.
func SetupLogging(cfg *config.Config) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
}

// Run starts the server, blocks until shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}
	SetupLogging(cfg)

	slog.Info(fmt.Sprintf("%s - Starting usecase-executor", logPrefix))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &Server{cfg: cfg}
	if err := s.start(ctx); err != nil {
		s.close(ctx)
		return err
	}

	slog.Info(fmt.Sprintf("%s - Usecase-executor is ready", logPrefix))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	s.close(ctx)
	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

func (s *Server) start(ctx context.Context) error {
	cfg := s.cfg

	// Step 1: Connect to COMMS
	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName)
	if err != nil {
		return fmt.Errorf("%s - failed to connect to COMMS: %w", logPrefix, err)
	}
	s.nc = nc

	// Step 2: Connect to database when definitions or migrations need it
	if cfg.UsesDatabase() {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
		}
		s.pool = pool

		if cfg.RunMigrations {
			migrations, err := db.LoadMigrations(cfg.MigrationPath)
			if err != nil {
				return fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
			}
			if err := db.RunMigrations(ctx, pool, migrations); err != nil {
				return fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
			}
		}
	}

	// Step 3: Executor with execution events
	var publisher events.EventPublisher = &events.NoOpPublisher{}
	if !cfg.DisableEvents {
		publisher = events.NewCommsPublisher(nc, &events.CommsPublisherOpts{GlobalSubject: cfg.EventSubject})
	}
	exec, err := NewExecutor(cfg, execution.WithObserver(events.NewObserver(publisher, cfg.COMMSName)))
	if err != nil {
		return err
	}
	s.exec = exec

	// Step 4: Definitions
	defs, err := LoadDefinitions(ctx, cfg, s.pool)
	if err != nil {
		return err
	}
	if err := bootstrap.Apply(defs, exec); err != nil {
		return fmt.Errorf("%s - failed to apply definitions: %w", logPrefix, err)
	}

	// Step 5: Dispatcher subscriptions
	disp := dispatcher.NewDispatcher(exec, cfg.RequestTimeout)
	subs, err := disp.Subscribe(ctx, nc, cfg.ExecuteSubject, cfg.QueueGroup)
	if err != nil {
		return err
	}
	s.subs = subs

	// Step 6: HTTP server
	httpAddr := cfg.ListenAddr()
	mux := buildMux(exec, cfg.HTTPContext, newHealthFunc(nc, s.pool), cfg.HealthCheckTimeout)
	s.httpServer = &http.Server{Addr: httpAddr, Handler: mux}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, httpAddr))
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()
	return nil
}

// close releases whatever start acquired.
func (s *Server) close(ctx context.Context) {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	if s.httpServer != nil {
		s.httpServer.Shutdown(ctx)
	}
	if s.nc != nil {
		s.nc.Drain()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}
