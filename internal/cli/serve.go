package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Jinnapat/jod-rod-matching-service/internal/config"
	"github.com/Jinnapat/jod-rod-matching-service/internal/database"
	"github.com/Jinnapat/jod-rod-matching-service/internal/handler"
	"github.com/Jinnapat/jod-rod-matching-service/internal/logger"
	"github.com/Jinnapat/jod-rod-matching-service/internal/metrics"
	"github.com/Jinnapat/jod-rod-matching-service/internal/queue"
	"github.com/Jinnapat/jod-rod-matching-service/internal/repository"
	"github.com/Jinnapat/jod-rod-matching-service/internal/router"
	"github.com/Jinnapat/jod-rod-matching-service/internal/scheduler"
	"github.com/Jinnapat/jod-rod-matching-service/internal/service"
	"github.com/Jinnapat/jod-rod-matching-service/internal/upstream"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(cfgPath *string) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reservation HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *cfgPath, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "create the schema before serving")
	return cmd
}

// newPublisher connects the configured broker.
func newPublisher(b config.BrokerConfig) (queue.Publisher, error) {
	switch b.Kind {
	case config.BrokerNATS:
		return queue.NewNATSPublisher(b.NATSURL)
	case config.BrokerAMQP, "":
		return queue.NewAMQPPublisher(b.AMQPURL)
	}
	return nil, fmt.Errorf("unknown broker kind %q", b.Kind)
}

func runServe(ctx context.Context, cfgPath string, migrate bool) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	var m *metrics.Collector
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.NewCollector(reg)
		metricsHandler = m.Handler()
	}

	db, err := database.Open(cfg.DB.User, cfg.DB.Pass, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if migrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
	}

	rdb := config.NewRedisClient(config.RedisOptions())
	if rdb != nil {
		defer rdb.Close()
	}

	broker, err := newPublisher(cfg.Broker)
	if err != nil {
		return err
	}
	pub := queue.NewAsyncPublisher(broker, m, cfg.Upstream.Timeout)
	defer func() {
		if err := pub.Close(); err != nil {
			logger.Warn("broker close failed", "error", err)
		}
	}()

	sched := scheduler.New(m)
	defer sched.Stop()

	checker := upstream.NewClient(cfg.Upstream.UserServiceURL, cfg.Upstream.ParkingLotServiceURL, cfg.Upstream.Timeout,
		upstream.WithNameCache(upstream.NewNameCache(rdb, cfg.Upstream.NameCacheTTL)),
		upstream.WithMetrics(m),
	)
	svc := service.NewReservationService(repository.NewReservationRepo(db), checker, pub, sched, service.Options{
		Duration:        cfg.Reservation.Duration(),
		CancelOnConfirm: cfg.Reservation.CancelOnConfirm,
		ExpiryTimeout:   2 * cfg.Upstream.Timeout,
		Metrics:         m,
	})

	deps := map[string]handler.Pinger{"mysql": db.PingContext}
	if rdb != nil {
		deps["redis"] = redisPinger(rdb)
	}
	e := router.New(router.Deps{
		Reservations: handler.NewReservationHandler(svc),
		Health:       handler.NewHealthHandler(deps),
		Redis:        rdb,
		Cache:        config.LoadCacheConfig(),
		RateLimit:    config.LoadRateLimitConfig(),
		JWTSecret:    cfg.JWTSecret,
		Metrics:      metricsHandler,
	})

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env,
			"reservation_duration", cfg.Reservation.Duration().String(),
			"cancel_on_confirm", cfg.Reservation.CancelOnConfirm)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "pending_deadlines", sched.Pending())
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(sctx)
}

func redisPinger(rdb *redis.Client) handler.Pinger {
	return func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
}
