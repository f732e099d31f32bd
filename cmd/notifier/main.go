package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-shop-payments/internal/config"
	kafkax "github.com/ariefcatur/go-shop-payments/internal/kafka"
	"github.com/ariefcatur/go-shop-payments/internal/mailer"
	"github.com/ariefcatur/go-shop-payments/internal/notify"
	"github.com/ariefcatur/go-shop-payments/internal/orders"
	"github.com/ariefcatur/go-shop-payments/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("component", "notifier")
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("notifier stopped", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	var m mailer.Service = mailer.NewSMTPMailer(cfg.SMTP)
	if cfg.SMTP.Host == "" {
		logger.Warn("SMTP_HOST empty, confirmation emails are only recorded")
		m = &mailer.Mock{}
	}

	w := &notify.Worker{
		Sender: &notify.MailDispatcher{Mailer: m, From: cfg.EmailFrom, FromName: cfg.EmailFromName},
		Dedup:  &redisx.Dedup{Redis: rdb, Service: "notifier"},
		Logger: logger,
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, orders.TopicOrderPaid, cfg.NotifierWorkers, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("consumer started", "group", cfg.NotifierGroup, "topic", orders.TopicOrderPaid, "workers", cfg.NotifierWorkers)
		return cons.Start(gctx, w.HandleOrderPaid)
	})
	return g.Wait()
}
