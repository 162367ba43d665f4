package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"topup-ledger/internal/audit"
	"topup-ledger/internal/auth"
	"topup-ledger/internal/btcpay"
	"topup-ledger/internal/config"
	"topup-ledger/internal/ledger"
	"topup-ledger/internal/reporting"
	"topup-ledger/internal/topup"
	"topup-ledger/pkg/logger"
	"topup-ledger/pkg/metrics"
	"topup-ledger/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, "topup-api")
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	verifier, err := btcpay.NewVerifier(cfg.BTCPay.WebhookSecret)
	if err != nil {
		log.Error("btcpay verifier init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	webhookMetrics := metrics.NewWebhook(reg)

	ledgerStore := ledger.NewPostgresStore(db)
	invoices := topup.NewPostgresInvoiceRepo(db)
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))

	processor, err := topup.NewProcessor(topup.Deps{
		Verifier: verifier,
		Resolver: topup.NewResolver(
			topup.EventMetadataStrategy{},
			topup.InvoiceSnapshotStrategy{Invoices: invoices},
		),
		Classifier: topup.Classifier{CreditOnProcessing: cfg.BTCPay.CreditOnProcessing},
		Ledger:     ledger.NewService(ledgerStore),
		Invoices:   invoices,
		Cache:      topup.NewRedisSettledCache(rdb, cfg.Redis.SettledHintTTL),
		Notifier:   topup.NewRedisNotifier(rdb),
		Audit:      auditSvc,
		Metrics:    webhookMetrics,
	})
	if err != nil {
		log.Error("processor init failed", "err", err)
		os.Exit(1)
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		Auth:         authManager,
		Processor:    processor,
		MaxBodyBytes: cfg.BTCPay.MaxBodyBytes,
		Ledger:       ledgerStore,
		Audit:        auditSvc,
		Reports:      reporting.NewService(ledgerStore),
		Registry:     reg,
		Ready: func(ctx context.Context) error {
			if err := utils.HealthCheck(ctx, db, 2*time.Second); err != nil {
				return err
			}
			return rdb.Ping(ctx).Err()
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "credit_on_processing", cfg.BTCPay.CreditOnProcessing)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	// In-flight webhook transactions finish or roll back before the pool closes.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
