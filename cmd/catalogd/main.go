package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-repository-kit/adapters/bunstore"
	"github.com/goliatone/go-repository-kit/adapters/mongostore"
	"github.com/goliatone/go-repository-kit/internal/broker"
	"github.com/goliatone/go-repository-kit/internal/config"
	"github.com/goliatone/go-repository-kit/internal/logging"
	"github.com/goliatone/go-repository-kit/internal/services/order"
	"github.com/goliatone/go-repository-kit/internal/services/product"
	"github.com/goliatone/go-repository-kit/internal/services/user"
	"github.com/goliatone/go-repository-kit/pkg/di"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("REPOKIT_CONFIG"), "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		_, _ = os.Stderr.WriteString("load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		_, _ = os.Stderr.WriteString("init logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("catalogd stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	initCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	container, err := di.NewContainer(initCtx, cfg, di.WithLogger(logger))
	if err != nil {
		return err
	}
	defer container.Close()

	pg, err := bunstore.OpenPostgres(initCtx, cfg.Postgres.DSN, cfg.PoolConfig())
	if err != nil {
		return err
	}
	defer pg.Close()
	if err := bunstore.CreateTable[order.Order](initCtx, pg); err != nil {
		return err
	}

	mc, err := mongostore.Connect(initCtx, cfg.Mongo.URI, cfg.Mongo.Timeout)
	if err != nil {
		return err
	}
	defer func() {
		if err := mc.Disconnect(context.Background()); err != nil {
			logger.Warn("mongo disconnect failed", zap.Error(err))
		}
	}()
	mdb := mc.Database(cfg.Mongo.Database)

	bc, err := broker.Connect(cfg.NATS.URL, cfg.NATS.Name,
		broker.WithTimeout(cfg.NATS.Timeout),
		broker.WithLogger(logger.Named("broker")),
	)
	if err != nil {
		return err
	}
	defer bc.Close()

	services, err := registerServices(container, mdb, pg, bc, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, a := range services {
			if err := a.Unsubscribe(); err != nil {
				logger.Warn("unsubscribe failed", zap.Error(err))
			}
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := container.RegisterMetrics(reg, cfg.Metrics.Namespace); err != nil {
		return err
	}

	logger.Info("catalogd started",
		zap.String("nats_url", cfg.NATS.URL),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.String("metrics_addr", cfg.Metrics.Addr),
	)

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("catalogd shutting down", zap.String("reason", context.Cause(gctx).Error()))
		return nil
	})
	return g.Wait()
}

// registerServices builds the user and product services over MongoDB and
// the order service over PostgreSQL, all behind the shared cache.
func registerServices(container *di.Container, mdb *mongo.Database, pg bun.IDB, bc *broker.Client, logger *zap.Logger) ([]*broker.Actions, error) {
	userBase, err := di.NewRepository[user.User](container,
		mongostore.New[user.User](mdb.Collection("users"), mongostore.WithUpdatedAtField("updated_at")))
	if err != nil {
		return nil, err
	}
	productBase, err := di.NewRepository[product.Product](container,
		mongostore.New[product.Product](mdb.Collection("products"), mongostore.WithUpdatedAtField("updated_at")))
	if err != nil {
		return nil, err
	}
	orderBase, err := di.NewRepository[order.Order](container,
		bunstore.New[order.Order](pg, bunstore.WithUpdatedAtColumn("updated_at")))
	if err != nil {
		return nil, err
	}

	cacher := container.Cacher()
	users := user.NewService(user.NewRepository(userBase), user.WithLogger(logger.Named("user")))
	products := product.NewService(product.NewRepository(productBase, cacher, bc), product.WithLogger(logger.Named("product")))
	orders := order.NewService(order.NewRepository(orderBase, cacher, bc), bc, order.WithLogger(logger.Named("order")))

	var out []*broker.Actions
	for _, register := range []func(*broker.Client) (*broker.Actions, error){
		users.Register,
		products.Register,
		orders.Register,
	} {
		a, err := register(bc)
		if err != nil {
			for _, prev := range out {
				_ = prev.Unsubscribe()
			}
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
