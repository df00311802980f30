package config

import (
	"strings"
	"testing"
	"time"
)

var keys = []string{
	"HTTP_ADDR", "STORE_DRIVER", "POSTGRES_DSN", "SQLITE_PATH", "REDIS_ADDR", "KAFKA_BROKERS",
	"STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET", "PUBLIC_BASE_URL", "PAYMENT_TIMEOUT",
	"CHECKOUT_SESSION_TTL", "ORDER_PENDING_TTL", "SWEEP_INTERVAL", "NOTIFIER_WORKERS", "CURRENCY",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	c := Load()
	if c.HTTPAddr != ":8081" || c.StoreDriver != DriverPostgres {
		t.Fatalf("unexpected defaults %+v", c)
	}
	if c.PaymentTimeout != 10*time.Second || c.OrderPendingTTL != 24*time.Hour || c.SweepInterval != 10*time.Minute {
		t.Fatalf("duration defaults: %+v", c)
	}
	if c.RedisAddr != "" || len(c.KafkaBrokers) != 0 {
		t.Fatalf("optional backends should default off")
	}
	if c.Currency != "usd" || c.NotifierWorkers != 4 {
		t.Fatalf("unexpected defaults %+v", c)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("PAYMENT_TIMEOUT", "3")
	t.Setenv("ORDER_PENDING_TTL", "2h")
	t.Setenv("NOTIFIER_WORKERS", "x")
	t.Setenv("PUBLIC_BASE_URL", "https://shop.example.com/")
	c := Load()
	if c.StoreDriver != DriverSQLite {
		t.Fatalf("driver = %q", c.StoreDriver)
	}
	if len(c.KafkaBrokers) != 2 || c.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("brokers = %v", c.KafkaBrokers)
	}
	if c.PaymentTimeout != 3*time.Second || c.OrderPendingTTL != 2*time.Hour {
		t.Fatalf("durations = %v %v", c.PaymentTimeout, c.OrderPendingTTL)
	}
	if c.NotifierWorkers != 4 {
		t.Fatalf("bad int should fall back, got %d", c.NotifierWorkers)
	}
	if c.PublicBaseURL != "https://shop.example.com" {
		t.Fatalf("base url = %q", c.PublicBaseURL)
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	c := Load()
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected missing stripe settings")
	}
	for _, want := range []string{"STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}

	c.StripeSecretKey, c.StripeWebhookSecret = "sk_test", "whsec_test"
	if err := c.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	c.StoreDriver = "mongo"
	if err := c.Validate(); err == nil {
		t.Fatalf("unknown driver accepted")
	}
	c.StoreDriver = DriverMemory
	c.SessionTTL = 48 * time.Hour
	if err := c.Validate(); err == nil {
		t.Fatalf("session outliving pending ttl accepted")
	}
}
