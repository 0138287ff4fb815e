package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/brightcare/dental-booking-bot/internal/api/router"
	"github.com/brightcare/dental-booking-bot/internal/booking"
	appconfig "github.com/brightcare/dental-booking-bot/internal/config"
	"github.com/brightcare/dental-booking-bot/internal/invoice"
	"github.com/brightcare/dental-booking-bot/internal/nlu"
	"github.com/brightcare/dental-booking-bot/internal/notify"
	"github.com/brightcare/dental-booking-bot/internal/observability/metrics"
	"github.com/brightcare/dental-booking-bot/internal/payments"
	"github.com/brightcare/dental-booking-bot/internal/reminder"
	"github.com/brightcare/dental-booking-bot/internal/sheets"
	"github.com/brightcare/dental-booking-bot/internal/telegram"
	"github.com/brightcare/dental-booking-bot/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting dental booking bot",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clinicLocation, err := time.LoadLocation(cfg.ClinicTimezone)
	if err != nil {
		logger.Error("invalid clinic timezone", "timezone", cfg.ClinicTimezone, "error", err)
		os.Exit(1)
	}

	// Appointment and doctor data live in the clinic's Google Sheet.
	sheetClient, err := sheets.NewClient(ctx, cfg.GoogleSheetID, cfg.GoogleServiceAccountEmail, cfg.GooglePrivateKey, logger.Named("sheets"))
	if err != nil {
		logger.Error("failed to initialize sheets client", "error", err)
		os.Exit(1)
	}

	var stateStore booking.StateStore
	if cfg.SessionStore == "redis" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		stateStore = booking.NewRedisStateStore(redisClient, cfg.SessionTTL)
		logger.Info("using redis session store", "addr", cfg.RedisAddr)
	} else {
		stateStore = booking.NewMemoryStateStore()
		logger.Info("using in-memory session store")
	}

	analyzer, err := nlu.NewGeminiAnalyzer(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID, nlu.RetryPolicy{
		MaxAttempts: cfg.NLURetryAttempts,
		BaseWait:    cfg.NLURetryBaseWait,
	}, logger.Named("nlu"))
	if err != nil {
		logger.Error("failed to initialize language analyzer", "error", err)
		os.Exit(1)
	}
	defer analyzer.Close()

	botClient := telegram.NewClient(telegram.Config{
		BaseURL: cfg.TelegramBaseURL,
		Token:   cfg.TelegramBotToken,
		Logger:  logger.Named("telegram"),
	})
	adapter := telegram.NewAdapter(botClient)
	staff := notify.NewService(adapter, cfg.AdminChatIDs, logger.Named("notify"))

	razorpay := payments.NewClient(payments.ClientConfig{
		BaseURL:     cfg.RazorpayBaseURL,
		KeyID:       cfg.RazorpayKeyID,
		KeySecret:   cfg.RazorpayKeySecret,
		AmountPaise: cfg.ConsultationFeePaise,
		Logger:      logger.Named("razorpay"),
	})
	invoices := invoice.NewRenderer(cfg.ClinicName, "", cfg.ConsultationFeePaise)
	bookingMetrics := metrics.NewBookingMetrics(nil)

	engine := booking.NewEngine(booking.Config{
		States:    stateStore,
		Store:     sheetClient,
		Directory: sheetClient,
		NLU:       analyzer,
		Payments:  razorpay,
		Invoices:  invoices,
		Messenger: adapter,
		Staff:     staff,
		Files:     adapter,
		Reports:   &booking.DiskReportStore{Dir: cfg.ReportsDir, BaseURL: cfg.PublicBaseURL},
		Metrics:   bookingMetrics,
		Logger:    logger.Named("booking"),
		Location:  clinicLocation,
		FeePaise:  cfg.ConsultationFeePaise,
	})

	webhook := payments.NewWebhookHandler(payments.WebhookConfig{
		Secret:    cfg.RazorpayWebhookSecret,
		Store:     sheetClient,
		States:    stateStore,
		Messenger: adapter,
		Invoices:  invoices,
		Staff:     staff,
		Metrics:   bookingMetrics,
		Logger:    logger.Named("payments"),
		FeePaise:  cfg.ConsultationFeePaise,
	})

	poller := telegram.NewPoller(telegram.PollerConfig{
		Client:             botClient,
		Dialogue:           engine,
		Transcriber:        analyzer,
		AdminChatIDs:       cfg.AdminChatIDs,
		Logger:             logger.Named("poller"),
		PollTimeoutSeconds: cfg.PollTimeoutSeconds,
	})
	go poller.Run(ctx)

	scanner := reminder.NewScanner(reminder.Config{
		Store:    sheetClient,
		Sender:   adapter,
		Logger:   logger.Named("reminder"),
		Metrics:  bookingMetrics,
		Location: clinicLocation,
		Window:   cfg.ReminderWindow,
		Interval: cfg.ReminderInterval,
	})
	go scanner.Run(ctx)

	r := router.New(&router.Config{
		Logger:             logger,
		PaymentWebhook:     webhook,
		MetricsHandler:     promhttp.Handler(),
		ReportsDir:         cfg.ReportsDir,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
