package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kevin07696/amazonpay-service/internal/adapters/amazonpay"
	"github.com/kevin07696/amazonpay-service/internal/adapters/logging"
	"github.com/kevin07696/amazonpay-service/internal/adapters/postgres"
	"github.com/kevin07696/amazonpay-service/internal/config"
	adminHandler "github.com/kevin07696/amazonpay-service/internal/handlers/admin"
	cronHandler "github.com/kevin07696/amazonpay-service/internal/handlers/cron"
	paymentHandler "github.com/kevin07696/amazonpay-service/internal/handlers/payment"
	webhookHandler "github.com/kevin07696/amazonpay-service/internal/handlers/webhook"
	paymentService "github.com/kevin07696/amazonpay-service/internal/services/payment"
	refundService "github.com/kevin07696/amazonpay-service/internal/services/refund"
	subscriptionService "github.com/kevin07696/amazonpay-service/internal/services/subscription"
	"github.com/kevin07696/amazonpay-service/pkg/observability"
	"github.com/kevin07696/amazonpay-service/pkg/shutdown"
)

const refundSweepInterval = 15 * time.Minute

func main() {
	// .env is optional; real deployments configure the environment directly
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		panic(fmt.Sprintf("configuration error: %v", err))
	}

	zapLogger := initLogger(cfg.Logger)
	defer zapLogger.Sync()
	logger := logging.NewZapLogger(zapLogger)

	zapLogger.Info("starting amazonpay service",
		zap.Bool("sandbox", cfg.Gateway.Sandbox),
		zap.String("region", cfg.Gateway.Region))

	ctx := context.Background()

	// The merchant secret key comes through the secret manager in production;
	// the env backend keeps local setups working without one.
	secretManager, err := initSecretManager(ctx, cfg, logger)
	if err != nil {
		zapLogger.Fatal("failed to initialize secret manager", zap.Error(err))
	}
	if cfg.Secrets.SecretName != "" {
		secretKey, err := secretManager.GetSecret(ctx, cfg.Secrets.SecretName)
		if err != nil {
			zapLogger.Fatal("failed to resolve merchant secret key", zap.Error(err))
		}
		cfg.Gateway.SecretKey = secretKey
	}

	pool, err := initDatabase(ctx, cfg.Database)
	if err != nil {
		zapLogger.Fatal("failed to initialize database", zap.Error(err))
	}

	db := postgres.NewDBExecutor(pool)
	states := postgres.NewOrderStateRepository(db)
	ledger := postgres.NewLedgerRepository(db)
	refunds := postgres.NewRefundRepository(db)
	agreements := postgres.NewAgreementRepository(db)
	invoices := postgres.NewInvoiceRepository(db)

	httpClient := &http.Client{Timeout: time.Duration(cfg.Gateway.Timeout) * time.Second}
	gateway := amazonpay.NewClient(amazonpay.AuthConfig{
		MerchantID:  cfg.Gateway.MerchantID,
		AccessKeyID: cfg.Gateway.AccessKey,
		SecretKey:   cfg.Gateway.SecretKey,
		Region:      cfg.Gateway.Region,
		Sandbox:     cfg.Gateway.Sandbox,
	}, httpClient, logger)
	verifier := amazonpay.NewIPNVerifier(httpClient, logger)

	payments := paymentService.NewService(db, states, ledger, refunds, gateway, logger, paymentService.Config{
		StoreName:          cfg.Gateway.StoreName,
		SellerNoteTemplate: cfg.Gateway.SellerNoteTemplate,
	})
	subscriptions := subscriptionService.NewService(db, agreements, invoices, ledger, states, gateway, logger, subscriptionService.Config{
		StoreName:          cfg.Gateway.StoreName,
		SellerNoteTemplate: cfg.Gateway.SellerNoteTemplate,
		MaxCaptureAttempts: cfg.Billing.MaxCaptureAttempts,
		BillingBatchSize:   cfg.Billing.BatchSize,
	})
	refundProcessor := refundService.NewProcessor(refunds, gateway, payments, logger)

	paymentHdlr := paymentHandler.NewHandler(payments, logger, paymentHandler.Config{
		SuccessRedirectURL: cfg.Server.SuccessRedirectURL,
		FailureRedirectURL: cfg.Server.FailureRedirectURL,
	})
	webhookHdlr := webhookHandler.NewHandler(verifier, payments, logger)
	cronHdlr := cronHandler.NewHandler(subscriptions, refundProcessor, logger, cfg.Server.CronSecret)
	adminHdlr := adminHandler.NewHandler(subscriptions, logger, cfg.Server.AdminAPIKey)

	apiServer := newHTTPServer(cfg.Server.APIPort, apiRoutes(paymentHdlr, cronHdlr, adminHdlr))
	webhookServer := newHTTPServer(cfg.Server.WebhookPort, webhookRoutes(webhookHdlr))

	healthChecker := observability.NewHealthChecker(pool)
	metricsServer := observability.StartMetricsServer(strconv.Itoa(cfg.Server.MetricsPort), healthChecker, logger)

	manager := shutdown.NewManager(zapLogger, 30*time.Second)
	manager.RegisterNoErr("database", pool.Close)
	manager.Register("metrics-server", metricsServer.Shutdown)
	manager.Register("api-server", apiServer.Shutdown)
	manager.Register("webhook-server", webhookServer.Shutdown)

	if cfg.Billing.RefundSweepEnabled {
		sweeper := shutdown.NewPeriodicWorker("refund-sweep", refundSweepInterval, zapLogger)
		sweeper.Start(func(ctx context.Context) {
			if _, err := refundProcessor.ProcessOpenRefunds(ctx); err != nil {
				zapLogger.Error("refund sweep failed", zap.Error(err))
			}
		})
		manager.Register("refund-sweep", sweeper.Shutdown)
	}

	startServer(apiServer, "api", zapLogger)
	startServer(webhookServer, "webhook", zapLogger)

	zapLogger.Info("service started",
		zap.Int("api_port", cfg.Server.APIPort),
		zap.Int("webhook_port", cfg.Server.WebhookPort),
		zap.Int("metrics_port", cfg.Server.MetricsPort))

	manager.WaitForShutdown()
}

func apiRoutes(payments *paymentHandler.Handler, cron *cronHandler.Handler, admin *adminHandler.Handler) http.Handler {
	mux := http.NewServeMux()

	instrument := observability.InstrumentHandler
	mux.HandleFunc("/api/v1/payments/confirm-order", instrument("confirm_order", payments.ConfirmOrder))
	mux.HandleFunc("/api/v1/payments/authorize", instrument("authorize", payments.Authorize))
	mux.HandleFunc("/api/v1/payments/capture", instrument("capture", payments.Capture))
	mux.HandleFunc("/api/v1/payments/refund", instrument("refund", payments.Refund))
	mux.HandleFunc("/api/v1/payments/state", instrument("order_state", payments.GetOrderState))
	mux.HandleFunc("/api/v1/payments/history", instrument("order_history", payments.GetOrderHistory))
	mux.HandleFunc("/api/v1/payments/frontend-error", instrument("frontend_error", payments.LogFrontendError))
	mux.HandleFunc("/api/v1/payments/return", instrument("confirmation_return", payments.ConfirmationReturn))

	mux.HandleFunc("/cron/process-unpaid-invoices", instrument("cron_billing", cron.ProcessUnpaidInvoices))
	mux.HandleFunc("/cron/process-open-refunds", instrument("cron_refund_sweep", cron.ProcessOpenRefunds))
	mux.HandleFunc("/cron/health", cron.HealthCheck)

	mux.HandleFunc("/admin/agreements", instrument("admin_list_agreements", admin.ListAgreements))
	mux.HandleFunc("/admin/agreements/get", instrument("admin_get_agreement", admin.GetAgreement))
	mux.HandleFunc("/admin/agreements/cancel", instrument("admin_cancel_agreement", admin.CancelAgreement))
	mux.HandleFunc("/admin/agreements/suspend", instrument("admin_suspend_agreement", admin.SuspendAgreement))
	mux.HandleFunc("/admin/agreements/resume", instrument("admin_resume_agreement", admin.ResumeAgreement))

	return mux
}

func webhookRoutes(webhook *webhookHandler.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook/ipn", observability.InstrumentHandler("ipn", webhook.HandleIPN))
	return mux
}

func newHTTPServer(port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func startServer(server *http.Server, name string, logger *zap.Logger) {
	go func() {
		logger.Info("http server listening",
			zap.String("server", name),
			zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed",
				zap.String("server", name),
				zap.Error(err))
		}
	}()
}

func initLogger(cfg config.LoggerConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		panic(fmt.Sprintf("logger error: %v", err))
	}
	return logger
}

func initDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(pingCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
