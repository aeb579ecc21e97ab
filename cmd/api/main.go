package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/georgemunganga/onchain-storefront/internal/chain"
	"github.com/georgemunganga/onchain-storefront/internal/config"
	"github.com/georgemunganga/onchain-storefront/internal/modules/auth"
	"github.com/georgemunganga/onchain-storefront/internal/modules/metadata"
	"github.com/georgemunganga/onchain-storefront/internal/modules/purchase"
	"github.com/georgemunganga/onchain-storefront/internal/modules/shop"
	"github.com/georgemunganga/onchain-storefront/internal/modules/strategy"
	"github.com/georgemunganga/onchain-storefront/internal/modules/user"
	"github.com/georgemunganga/onchain-storefront/internal/platform/database"
	"github.com/georgemunganga/onchain-storefront/internal/platform/events"
	"github.com/georgemunganga/onchain-storefront/internal/platform/logger"
	"github.com/georgemunganga/onchain-storefront/internal/platform/metrics"
)

func main() {
	cfg := config.MustLoad()

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	db, err := database.Open(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatal("connect database", zap.Error(err))
	}
	defer db.Close()
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, log); err != nil {
			log.Fatal("migrate database", zap.Error(err))
		}
	}

	client, err := chain.Dial(ctx, cfg.Chain, log, m)
	if err != nil {
		log.Fatal("connect chain", zap.Error(err))
	}
	defer client.Close()

	cache, err := metadata.NewCache(ctx, cfg.IPFS)
	if err != nil {
		log.Fatal("create metadata cache", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("connect redis", zap.Error(err))
	}

	publisher := events.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
	defer publisher.Close()

	var factory common.Address
	if cfg.Chain.FactoryAddress != "" {
		if factory, err = chain.ParseAddress(cfg.Chain.FactoryAddress); err != nil {
			log.Fatal("parse factory address", zap.Error(err))
		}
	}

	// ── Router ──────────────────────────────────────────────
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(logger.Middleware(log))
	router.Use(m.Middleware)
	router.Use(middleware.Recoverer)

	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	// ── Identity ────────────────────────────────────────────
	userService := user.NewService(user.NewPostgresRepository(db), log)
	authService := auth.NewService(
		auth.Options{
			Secret:     []byte(cfg.Auth.JWTSecret),
			Domain:     cfg.Auth.Domain,
			NonceTTL:   cfg.Redis.NonceTTL,
			SessionTTL: cfg.Auth.SessionTTL,
		},
		auth.NewRedisNonceStore(rdb),
		auth.NewPostgresSessionRepository(db),
		userService,
		log,
	)
	authenticate := auth.Authenticate(authService)
	operatorOnly := chi.Chain(authenticate, auth.RequireWallet(client.From())).Handler

	auth.NewHandler(authService).RegisterRoutes(router)
	user.NewHandler(userService).RegisterRoutes(router, authenticate)

	// ── Metadata ────────────────────────────────────────────
	metadataService := metadata.NewService(cfg.IPFS, cache, log, m)
	metadata.NewHandler(metadataService).RegisterRoutes(router, operatorOnly)

	// ── Strategies ──────────────────────────────────────────
	resolver := strategy.NewResolver(client, strategy.DefaultRegistry, cfg.Resolver.Concurrency, log, m)
	strategyService := strategy.NewService(client, resolver, publisher, log, m)
	strategy.NewHandler(strategyService).RegisterRoutes(router, operatorOnly)

	// ── Shops, products & orders ────────────────────────────
	shopService := shop.NewService(client, shop.Options{Factory: factory, Concurrency: cfg.Resolver.Concurrency},
		metadataService, strategyService, publisher, log)
	shop.NewHandler(shopService).RegisterRoutes(router, operatorOnly)

	// ── Purchases ───────────────────────────────────────────
	purchaseService := purchase.NewService(purchase.NewPostgresRepository(db), client, shopService,
		cfg.Chain.ChainID, publisher, log, m)
	purchase.NewHandler(purchaseService, client).RegisterRoutes(router, operatorOnly)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr), zap.String("operator", client.From().Hex()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown", zap.Error(err))
	}
}
