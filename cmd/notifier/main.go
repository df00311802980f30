package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/card-market/internal/bootstrap"
	"github.com/ariefcatur/card-market/internal/config"
	kafkax "github.com/ariefcatur/card-market/internal/kafka"
	"github.com/ariefcatur/card-market/internal/notify"
	"github.com/ariefcatur/card-market/internal/obs"
	"github.com/ariefcatur/card-market/internal/orders"
	"github.com/ariefcatur/card-market/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := obs.New(cfg.LogLevel, cfg.ServiceName+"-notifier")
	if len(cfg.KafkaBrokers) == 0 {
		log.Error("KAFKA_BROKERS is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sender notify.Sender = notify.LogSender{Log: log}
	if cfg.AlertWebhookURL != "" {
		sender = notify.WebhookSender{URL: cfg.AlertWebhookURL, Client: &http.Client{Timeout: 10 * time.Second}}
	}
	tries := cfg.NotifyMaxTries
	if tries < 1 {
		tries = 1
	}
	n := &notify.Notifier{
		Sender:        sender,
		OperatorEmail: cfg.OperatorEmail,
		MaxTries:      uint(tries),
		Log:           log,
	}
	if rdb := bootstrap.OpenRedis(ctx, cfg, log); rdb != nil {
		defer rdb.Close()
		n.Dedup = &redisx.Deduper{Redis: rdb, Service: "notifier"}
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, orders.TopicOrderPaid, cfg.NotifierWorkers, log)
	log.Info("notifier consumer started",
		"group", cfg.NotifierGroup, "topic", orders.TopicOrderPaid, "workers", cfg.NotifierWorkers)
	if err := cons.Start(ctx, n.Handle); err != nil {
		log.Error("consumer exit", "err", err)
		os.Exit(1)
	}
	log.Info("notifier stopped")
}
