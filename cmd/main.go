package main

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LJAM96/lmsilo-core/config"
	"github.com/LJAM96/lmsilo-core/internal/circuitbreaker"
	"github.com/LJAM96/lmsilo-core/internal/handler"
	"github.com/LJAM96/lmsilo-core/internal/httpserver"
	"github.com/LJAM96/lmsilo-core/internal/metrics"
	"github.com/LJAM96/lmsilo-core/internal/upstream"
	"github.com/LJAM96/lmsilo-core/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	collector := metrics.NewCollector(1000, log)
	collector.Start(ctx)

	defaults, err := circuitOptions(cfg.CircuitDefaults)
	if err != nil {
		log.Error("Invalid circuit defaults", slog.Any("err", err))
		os.Exit(1)
	}
	registry := circuitbreaker.NewRegistry(append(defaults, circuitbreaker.WithLogger(log))...)

	guards, err := initializeGuards(cfg, registry, collector, log)
	if err != nil {
		log.Error("Failed to initialize upstream guards", slog.Any("err", err))
		os.Exit(1)
	}

	mux := setupRouter(guards, registry, collector, log)

	srv, err := httpserver.New(cfg.Server.Address, mux)
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("Starting server", slog.String("address", srv.Addr()))

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting server", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func initializeGuards(
	cfg *config.Config,
	registry *circuitbreaker.Registry,
	collector *metrics.Collector,
	log *slog.Logger,
) ([]*handler.Guard, error) {
	var guards []*handler.Guard

	for _, upCfg := range cfg.Upstreams {
		u, err := url.Parse(upCfg.URL)
		if err != nil {
			log.Error("Failed to parse upstream URL",
				slog.String("upstream", upCfg.Name),
				slog.String("url", upCfg.URL),
				slog.String("error", err.Error()))
			continue
		}

		opts, err := circuitOptions(upCfg.Circuit)
		if err != nil {
			log.Error("Invalid circuit overrides",
				slog.String("upstream", upCfg.Name),
				slog.String("error", err.Error()))
			continue
		}
		opts = append(opts, collector.Observers(upCfg.Name)...)

		cb := registry.GetBreaker(upCfg.Name, opts...)
		guards = append(guards, handler.NewGuard(log, upstream.New(upCfg.Name, u), cb, collector))

		log.Info("Registered upstream guard",
			slog.String("circuit", upCfg.Name),
			slog.String("url", upCfg.URL))
	}

	if len(guards) == 0 {
		return nil, errors.New("no valid upstreams configured")
	}

	return guards, nil
}

// circuitOptions converts a circuit config section into breaker options.
// Zero fields produce no option, so defaults apply.
func circuitOptions(cc config.CircuitConfig) ([]circuitbreaker.Option, error) {
	var opts []circuitbreaker.Option

	if cc.FailureThreshold > 0 {
		opts = append(opts, circuitbreaker.WithFailureThreshold(cc.FailureThreshold))
	}

	if cc.RecoveryTimeout != "" {
		timeout, err := time.ParseDuration(cc.RecoveryTimeout)
		if err != nil {
			return nil, err
		}
		opts = append(opts, circuitbreaker.WithRecoveryTimeout(timeout))
	}

	if cc.HalfOpenMaxCalls > 0 {
		opts = append(opts, circuitbreaker.WithHalfOpenMaxCalls(cc.HalfOpenMaxCalls))
	}

	return opts, nil
}
