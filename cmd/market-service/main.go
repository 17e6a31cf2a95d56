package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	evcache "github.com/radieske/pool-market-poc/internal/market-events/cache"
	"github.com/radieske/pool-market-poc/internal/market-service/engine"
	mhttp "github.com/radieske/pool-market-poc/internal/market-service/http"
	"github.com/radieske/pool-market-poc/internal/market-service/lock"
	mmetrics "github.com/radieske/pool-market-poc/internal/market-service/metrics"
	"github.com/radieske/pool-market-poc/internal/market-service/producer"
	"github.com/radieske/pool-market-poc/internal/market-service/repo"
	"github.com/radieske/pool-market-poc/internal/market-service/wallet"
	"github.com/radieske/pool-market-poc/internal/market-service/ws"
	"github.com/radieske/pool-market-poc/internal/shared/cache"
	"github.com/radieske/pool-market-poc/internal/shared/config"
	"github.com/radieske/pool-market-poc/internal/shared/db"
	"github.com/radieske/pool-market-poc/internal/shared/kafka"
	"github.com/radieske/pool-market-poc/internal/shared/logger"
	"github.com/radieske/pool-market-poc/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "market-service"
	}

	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}
	for _, w := range cfg.Warnings() {
		log.Warn("config", zap.String("warning", w))
	}
	log.Info("starting service",
		zap.String("store", cfg.MarketStore), zap.String("lock", cfg.LockBackend), zap.Bool("kafka", cfg.KafkaEnabled))

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	health := map[string]metrics.HealthFunc{}

	// Store: memória (padrão) ou Postgres
	var store repo.Store = repo.NewMemory()
	if cfg.MarketStore == "postgres" {
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pg, err := db.ConnectPostgres(cctx, cfg.PostgresDSN)
		cancel()
		if err != nil {
			log.Fatal("postgres connect", zap.Error(err))
		}
		defer pg.Close()
		pgStore := repo.NewPostgres(pg)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			log.Fatal("postgres schema", zap.Error(err))
		}
		store = pgStore
		log.Info("postgres connected")
	}
	health["store"] = store.Ping

	// Redis: lock distribuído, snapshot para o WebSocket e Pub/Sub
	var rdb *redis.Client
	{
		cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		rdb, err = cache.ConnectRedis(cctx, cfg.RedisAddr)
		cancel()
		switch {
		case err != nil && cfg.LockBackend == "redis":
			log.Fatal("redis connect (required by LOCK_BACKEND=redis)", zap.Error(err))
		case err != nil:
			log.Warn("redis unavailable, websocket feed disabled", zap.Error(err))
			rdb = nil
		default:
			defer rdb.Close()
			health["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
			log.Info("redis connected")
		}
	}

	// Notifier: Kafka ou descarte
	var notifier engine.Notifier = engine.NopNotifier{}
	if cfg.KafkaEnabled {
		writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMarketEvents)
		defer writer.Close()
		notifier = producer.NewKafkaPublisher(writer)
		log.Info("kafka writer ready", zap.String("topic", cfg.TopicMarketEvents))
	}

	// Wallet: paga ganhos e financia apostas; sem WALLET_URL o engine roda sem mover valor
	var payer engine.Payer = engine.NopPayer{}
	var httpOpts []mhttp.Option
	if cfg.WalletURL != "" {
		wcli := wallet.New(cfg.WalletURL)
		defer wcli.Close()
		payer = wcli
		httpOpts = append(httpOpts, mhttp.WithFunder(wcli))
	} else {
		log.Warn("WALLET_URL not set: bets are unfunded and payouts are not transferred")
	}

	collectors := mmetrics.New(prometheus.DefaultRegisterer)
	engOpts := []engine.Option{
		engine.WithLockWait(cfg.LockMaxWait),
		engine.WithHooks(collectors.Hooks()),
	}
	if cfg.LockBackend == "redis" {
		engOpts = append(engOpts, engine.WithLocker(lock.NewRedis(rdb, cfg.LockTTL)))
	}
	eng := engine.New(log, store, payer, notifier, engOpts...)

	var hub *ws.Hub
	if rdb != nil {
		hub = ws.NewHub(log, func(*http.Request) bool { return true }, evcache.NewRedisCache(rdb, cfg.SnapshotTTL))
		httpOpts = append(httpOpts, mhttp.WithWebSocket(hub.HandleWS))
	}

	api := mhttp.NewServer(log, eng, httpOpts...)
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsSrv := metrics.NewMetricsServer(cfg.MetricsPort, metrics.Check(health))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("api listening", zap.String("addr", apiSrv.Addr))
		return listen(apiSrv)
	})
	g.Go(func() error {
		log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))
		return listen(metricsSrv)
	})
	if hub != nil {
		g.Go(func() error { return ws.RunRedisSubscriber(gctx, log, rdb, cfg.RedisPubSubChannel, hub) })
	}
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Join(apiSrv.Shutdown(sctx), metricsSrv.Shutdown(sctx))
	})

	if err := g.Wait(); err != nil {
		log.Error("service stopped with error", zap.Error(err))
		return
	}
	log.Info("service stopped")
}

func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", srv.Addr, err)
	}
	return nil
}
