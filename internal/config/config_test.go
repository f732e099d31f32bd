package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEnv(t *testing.T) {
	t.Setenv("PAYPAL_CLIENT_ID", "client")
	t.Setenv("PAYPAL_SECRET", "secret")
	t.Setenv("PAYPAL_WEBHOOK_ID", "WH-1")
}

func TestLoad_Defaults(t *testing.T) {
	validEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "sandbox", cfg.PayPal.Mode)
	assert.Equal(t, 15*time.Second, cfg.PayPal.Timeout)
	assert.Equal(t, "COP", cfg.StoreCurrency)
	assert.Equal(t, "USD", cfg.SettlementCurrency)
	assert.Equal(t, "4000", cfg.ExchangeRate.String())
	assert.Equal(t, NotifyKafka, cfg.NotifyMode)
	assert.Equal(t, 4, cfg.NotifierWorkers)
}

func TestLoad_Overrides(t *testing.T) {
	validEnv(t)
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("PAYPAL_MODE", "LIVE")
	t.Setenv("PAYPAL_TIMEOUT", "3s")
	t.Setenv("EXCHANGE_RATE", "3950.5")
	t.Setenv("SETTLEMENT_CURRENCY", "eur")
	t.Setenv("NOTIFY_MODE", "inline")
	t.Setenv("SMTP_TLS_MODE", "STARTTLS")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "live", cfg.PayPal.Mode)
	assert.Equal(t, 3*time.Second, cfg.PayPal.Timeout)
	assert.Equal(t, "3950.5", cfg.ExchangeRate.String())
	assert.Equal(t, "EUR", cfg.SettlementCurrency)
	assert.Equal(t, NotifyInline, cfg.NotifyMode)
	assert.Equal(t, "starttls", cfg.SMTP.TLSMode)
}

func TestLoad_MalformedValues(t *testing.T) {
	t.Setenv("PAYPAL_TIMEOUT", "soon")
	t.Setenv("EXCHANGE_RATE", "abc")
	t.Setenv("NOTIFIER_WORKERS", "many")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorContains(t, err, "PAYPAL_TIMEOUT")
	assert.ErrorContains(t, err, "EXCHANGE_RATE")
	assert.ErrorContains(t, err, "NOTIFIER_WORKERS")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing credentials", map[string]string{"PAYPAL_SECRET": ""}, "PAYPAL_CLIENT_ID and PAYPAL_SECRET"},
		{"missing webhook id", map[string]string{"PAYPAL_WEBHOOK_ID": ""}, "PAYPAL_WEBHOOK_ID"},
		{"bad mode", map[string]string{"PAYPAL_MODE": "prod"}, "PAYPAL_MODE"},
		{"zero rate", map[string]string{"EXCHANGE_RATE": "0"}, "EXCHANGE_RATE must be positive"},
		{"negative timeout", map[string]string{"PAYPAL_TIMEOUT": "-1s"}, "PAYPAL_TIMEOUT"},
		{"bad currency", map[string]string{"SETTLEMENT_CURRENCY": "DOLLAR"}, "3-letter"},
		{"bad notify mode", map[string]string{"NOTIFY_MODE": "carrier-pigeon"}, "NOTIFY_MODE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load()
			require.NoError(t, err)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
