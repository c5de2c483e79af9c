package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/facturo/facturo/internal/app"
	"github.com/facturo/facturo/internal/clients"
	"github.com/facturo/facturo/internal/delivery"
	"github.com/facturo/facturo/internal/invoices"
	"github.com/facturo/facturo/internal/platform/cache"
	"github.com/facturo/facturo/internal/platform/db"
	"github.com/facturo/facturo/internal/recurring"
	"github.com/facturo/facturo/jobs"
	"github.com/facturo/facturo/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	queueClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	clientRepo := clients.NewRepository(pool)
	clientService := clients.NewService(clientRepo)

	invoiceRepo := invoices.NewRepository(pool)

	recurringRepo := recurring.NewRepository(pool, invoiceRepo)
	recurringService := recurring.NewService(recurringRepo, clientService, queueClient, logger)
	generatorJob := recurring.NewGeneratorJob(recurringService, redisClient, logger)

	gotenberg := report.NewClient(cfg.GotenbergURL)
	renderer := delivery.NewPDFRenderer(gotenberg)
	mailer := delivery.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	deliveryRepo := delivery.NewRepository(pool)
	deliveryService := delivery.NewService(deliveryRepo, renderer, mailer, invoiceRepo, queueClient, cfg.ReminderInterval, logger)
	deliverJob := delivery.NewDeliverJob(deliveryService, logger)
	reminderJob := delivery.NewReminderScanJob(deliveryService, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeInvoiceDeliver, Handler: deliverJob.Handle},
			{Type: jobs.TaskTypeRecurringGenerate, Handler: generatorJob.Handle},
			{Type: jobs.TaskTypeReminderScan, Handler: reminderJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.RecurringCron, Task: jobs.NewRecurringGenerateTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.ReminderCron, Task: jobs.NewReminderScanTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
