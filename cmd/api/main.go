package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/card-market/internal/bootstrap"
	"github.com/ariefcatur/card-market/internal/checkout"
	"github.com/ariefcatur/card-market/internal/config"
	"github.com/ariefcatur/card-market/internal/housekeeping"
	"github.com/ariefcatur/card-market/internal/httpx"
	kafkax "github.com/ariefcatur/card-market/internal/kafka"
	"github.com/ariefcatur/card-market/internal/notify"
	"github.com/ariefcatur/card-market/internal/obs"
	"github.com/ariefcatur/card-market/internal/orders"
	"github.com/ariefcatur/card-market/internal/payment"
	"github.com/ariefcatur/card-market/internal/redisx"
	"github.com/ariefcatur/card-market/internal/settlement"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := obs.New(cfg.LogLevel, cfg.ServiceName)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Store
	st, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Error("store", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}
	defer st.Close()

	// Redis (optional)
	proc := &settlement.Processor{
		Store:    st,
		Verifier: payment.StripeVerifier{Secret: cfg.StripeWebhookSecret},
		Log:      log,
	}
	handler := &httpx.MarketHandler{Store: st, Settlement: proc, Log: log}
	sweeper := &housekeeping.Sweeper{Store: st, TTL: cfg.OrderPendingTTL, Interval: cfg.SweepInterval, Log: log}
	if rdb := bootstrap.OpenRedis(ctx, cfg, log); rdb != nil {
		defer rdb.Close()
		cache := &redisx.StatusCache{Redis: rdb}
		proc.Dedup = &redisx.Deduper{Redis: rdb, Service: cfg.ServiceName + "-webhook"}
		proc.Cache = cache
		handler.Cache = cache
		sweeper.Cache = cache
	}

	// Notifications
	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPaid, 1024, log)
		prod.Start(context.WithoutCancel(ctx))
		proc.Dispatcher = &notify.KafkaDispatcher{Producer: prod, Service: cfg.ServiceName}
	} else {
		proc.Dispatcher = notify.LogDispatcher{Log: log}
	}

	handler.Checkout = &checkout.Service{
		Store: st,
		Provider: payment.NewStripe(payment.StripeConfig{
			SecretKey:  cfg.StripeSecretKey,
			Currency:   cfg.Currency,
			SuccessURL: cfg.PublicBaseURL + "/success?session_id={CHECKOUT_SESSION_ID}",
			CancelURL:  cfg.PublicBaseURL + "/cart",
			SessionTTL: cfg.SessionTTL,
		}),
		Timeout: cfg.PaymentTimeout,
		Log:     log,
	}

	router := httpx.NewRouter()
	handler.Register(router)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP listening", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		log.Error("api exited", "err", err)
	}
	// In-flight webhooks are done; flush their notifications.
	if prod != nil {
		prod.Close()
		prod.WaitClosed()
	}
}
