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

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-shop-payments/internal/config"
	"github.com/ariefcatur/go-shop-payments/internal/currency"
	"github.com/ariefcatur/go-shop-payments/internal/httpx"
	kafkax "github.com/ariefcatur/go-shop-payments/internal/kafka"
	"github.com/ariefcatur/go-shop-payments/internal/mailer"
	"github.com/ariefcatur/go-shop-payments/internal/notify"
	"github.com/ariefcatur/go-shop-payments/internal/orders"
	"github.com/ariefcatur/go-shop-payments/internal/payments"
	"github.com/ariefcatur/go-shop-payments/internal/paypal"
	"github.com/ariefcatur/go-shop-payments/internal/postgres"
	"github.com/ariefcatur/go-shop-payments/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("payments api stopped", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	normalizer, err := currency.New(cfg.ExchangeRate, cfg.SettlementCurrency)
	if err != nil {
		return err
	}

	gateway := paypal.NewClient(paypal.BaseURL(cfg.PayPal.Mode), cfg.PayPal.ClientID, cfg.PayPal.Secret, cfg.PayPal.Timeout)

	// Notification: lewat Kafka (default) atau langsung SMTP
	var dispatcher payments.Dispatcher
	var prod *kafkax.Producer
	switch cfg.NotifyMode {
	case config.NotifyKafka:
		prod = kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPaid, 1024, logger)
		prod.Start(context.WithoutCancel(ctx))
		dispatcher = &notify.KafkaDispatcher{Producer: prod, ServiceName: cfg.ServiceName}
	default:
		var m mailer.Service = mailer.NewSMTPMailer(cfg.SMTP)
		if cfg.SMTP.Host == "" {
			logger.Warn("SMTP_HOST empty, confirmation emails are only recorded")
			m = &mailer.Mock{}
		}
		dispatcher = &notify.MailDispatcher{Mailer: m, From: cfg.EmailFrom, FromName: cfg.EmailFromName}
	}

	repo := &orders.Repo{DB: db}
	ctl := &payments.Controller{
		Store:      repo,
		Catalog:    repo,
		Gateway:    gateway,
		Webhooks:   &payments.Verifier{Gateway: gateway, WebhookID: cfg.PayPal.WebhookID},
		Normalizer: normalizer,
		Dispatcher: dispatcher,
		Locker:     &redisx.Locker{Redis: rdb},
		Dedup:      &redisx.Dedup{Redis: rdb, Service: cfg.ServiceName + "-webhook"},
		Cache:      &redisx.StatusCache{Redis: rdb},
		Logger:     logger,
	}

	router := httpx.NewRouter(cfg.PayPal.Timeout + 30*time.Second)
	(&httpx.PaymentsHandler{Service: ctl, Logger: logger}).Register(router)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP listening", "addr", cfg.HTTPAddr, "paypal_mode", cfg.PayPal.Mode, "notify_mode", cfg.NotifyMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		sctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		err := srv.Shutdown(sctx)
		ctl.Wait() // tunggu notifikasi yang masih jalan
		if prod != nil {
			prod.Close()      // tutup inbox -> flush & close writer
			prod.WaitClosed() // drain
		}
		return err
	})
	return g.Wait()
}
