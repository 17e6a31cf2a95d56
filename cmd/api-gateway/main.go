package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/pool-market-poc/internal/shared/config"
	"github.com/radieske/pool-market-poc/internal/shared/logger"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "api-gateway"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	walletURL := cfg.WalletURL
	if walletURL == "" {
		walletURL = "http://localhost:8082"
	}
	market, err := proxy(cfg.MarketURL)
	if err != nil {
		log.Fatal("market url", zap.Error(err))
	}
	wallet, err := proxy(walletURL)
	if err != nil {
		log.Fatal("wallet url", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           routes(market, wallet),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("api-gateway listening", zap.String("addr", srv.Addr),
		zap.String("market", cfg.MarketURL), zap.String("wallet", walletURL))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("gateway failed", zap.Error(err))
	}
}

func proxy(to string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(to)
	if err != nil {
		return nil, err
	}
	return httputil.NewSingleHostReverseProxy(u), nil
}

// routes: /api/markets/* e /api/users/* -> market-service; /api/wallet/* -> wallet-service
func routes(market, wallet http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(withCORS)

	r.Handle("/api/markets", http.StripPrefix("/api", market))
	r.Handle("/api/markets/*", http.StripPrefix("/api", market))
	r.Handle("/api/users/*", http.StripPrefix("/api", market))
	r.Handle("/api/ws", http.StripPrefix("/api", market))
	r.Handle("/api/wallet", http.StripPrefix("/api", wallet))
	r.Handle("/api/wallet/*", http.StripPrefix("/api", wallet))
	return r
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
