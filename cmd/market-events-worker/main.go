package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/pool-market-poc/internal/market-events/cache"
	"github.com/radieske/pool-market-poc/internal/market-events/consumer"
	"github.com/radieske/pool-market-poc/internal/market-events/pubsub"
	"github.com/radieske/pool-market-poc/internal/market-events/repository"
	sharedcache "github.com/radieske/pool-market-poc/internal/shared/cache"
	"github.com/radieske/pool-market-poc/internal/shared/config"
	"github.com/radieske/pool-market-poc/internal/shared/db"
	"github.com/radieske/pool-market-poc/internal/shared/kafka"
	"github.com/radieske/pool-market-poc/internal/shared/logger"
	"github.com/radieske/pool-market-poc/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "market-events-worker"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Redis é obrigatório: snapshot + Pub/Sub
	cctx, ccancel := context.WithTimeout(ctx, 5*time.Second)
	redisClient, err := sharedcache.ConnectRedis(cctx, cfg.RedisAddr)
	ccancel()
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	health := map[string]metrics.HealthFunc{
		"redis": func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}

	// Histórico no Postgres só quando o market-service também usa Postgres
	var history consumer.EventLog
	if cfg.MarketStore == "postgres" {
		cctx, ccancel := context.WithTimeout(ctx, 10*time.Second)
		pg, err := db.ConnectPostgres(cctx, cfg.PostgresDSN)
		ccancel()
		if err != nil {
			log.Fatal("postgres connect", zap.Error(err))
		}
		defer pg.Close()
		repo := repository.NewPostgresRepo(pg)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatal("postgres schema", zap.Error(err))
		}
		history = repo
		health["postgres"] = pg.PingContext
	}

	// Consumer group market-events-worker
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicMarketEvents, "market-events-worker")
	defer reader.Close()

	dlq := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMarketEventsDLQ)
	defer dlq.Close()

	// Métricas Prometheus por estágio
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "market_events_consumed_total", Help: "mensagens consumidas"})
	cached := prometheus.NewCounter(prometheus.CounterOpts{Name: "market_events_snapshots_total", Help: "snapshots gravados no Redis"})
	persisted := prometheus.NewCounter(prometheus.CounterOpts{Name: "market_events_persisted_total", Help: "eventos gravados no histórico"})
	broadcast := prometheus.NewCounter(prometheus.CounterOpts{Name: "market_events_broadcast_total", Help: "eventos repassados ao WebSocket"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "market_events_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, cached, persisted, broadcast, errorsBy)

	proc := &consumer.Processor{
		Log:         log,
		Reader:      reader,
		Cache:       cache.NewRedisCache(redisClient, cfg.SnapshotTTL),
		History:     history,
		Broadcaster: pubsub.NewRedisBroadcaster(redisClient),
		Channel:     cfg.RedisPubSubChannel,
		DLQ:         dlq,
		OnConsumed:  func() { consumed.Inc() },
		OnCached:    func() { cached.Inc() },
		OnPersist:   func() { persisted.Inc() },
		OnBroadcast: func() { broadcast.Inc() },
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	msrv := metrics.StartMetricsServer(cfg.MetricsPort, metrics.Check(health), func(err error) {
		log.Error("metrics server failed", zap.Error(err))
	})
	defer msrv.Close()
	log.Info("metrics/health listening", zap.String("addr", msrv.Addr))

	log.Info("market-events-worker started", zap.String("topic", cfg.TopicMarketEvents))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("market-events-worker stopped")
}
