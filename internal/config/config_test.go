package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PORT", "8080")
	t.Setenv("POSTGRES_USER", "app")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "shop")
	t.Setenv("POSTGRES_HOST", "localhost")
	t.Setenv("POSTGRES_PORT", "5433")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("BANK_CODE", "VCB")
	t.Setenv("BANK_ACCOUNT_NUMBER", "0123456789")
	t.Setenv("BANK_ACCOUNT_NAME", "SHOP JSC")
	t.Setenv("GO_ENV", "test")
}

func TestLoad_DefaultsApplied(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.PaymentTimeoutMinutes)
	assert.Equal(t, int64(1000), cfg.PaymentAmountTolerance)
	assert.Equal(t, int64(500000), cfg.FreeShippingThreshold)
	assert.Equal(t, int64(30000), cfg.FlatShippingFee)
	assert.Equal(t, 60, cfg.SweepIntervalSeconds)
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PAYMENT_TIMEOUT_MINUTES", "15")
	t.Setenv("PAYMENT_AMOUNT_TOLERANCE", "0")
	t.Setenv("FREE_SHIPPING_THRESHOLD", "1000000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.PaymentTimeoutMinutes)
	assert.Equal(t, int64(0), cfg.PaymentAmountTolerance)
	assert.Equal(t, int64(1000000), cfg.FreeShippingThreshold)
}

func TestLoad_MissingRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoad_RejectsNonPositiveTimeout(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PAYMENT_TIMEOUT_MINUTES", "-1")

	_, err := Load()
	assert.ErrorContains(t, err, "PAYMENT_TIMEOUT_MINUTES")
}
