package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/pool-market-poc/internal/shared/config"
	"github.com/radieske/pool-market-poc/internal/shared/db"
	"github.com/radieske/pool-market-poc/internal/shared/logger"
	"github.com/radieske/pool-market-poc/internal/shared/metrics"
	whttp "github.com/radieske/pool-market-poc/internal/wallet-service/http"
	wrepo "github.com/radieske/pool-market-poc/internal/wallet-service/repo"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "wallet-service"
	}

	// Inicializa logger estruturado
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}
	log.Info("starting service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Conexão com Postgres para operações de carteira
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pg, err := db.ConnectPostgres(cctx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	repo := wrepo.NewPostgres(pg)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatal("postgres schema", zap.Error(err))
	}
	api := whttp.NewServer(log, repo)

	// Servidor HTTP público (API de wallet)
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort, // ex: 8082
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Servidor de métricas e health check
	msrv := metrics.StartMetricsServer(cfg.MetricsPort, repo.Ping, func(err error) {
		log.Fatal("metrics srv", zap.Error(err))
	})
	log.Info("metrics/health listening", zap.String("addr", msrv.Addr))

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = apiSrv.Shutdown(sctx)
		_ = msrv.Shutdown(sctx)
	}()

	log.Info("api listening", zap.String("addr", apiSrv.Addr))
	if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("api srv", zap.Error(err))
	}
	log.Info("service stopped")
}
