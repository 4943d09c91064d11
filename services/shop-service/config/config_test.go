package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MONGO_URL", "mongodb://localhost:27017")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "inr", cfg.Currency)
	assert.Equal(t, 100, cfg.RateLimitPerHour)
	assert.Equal(t, 90*24*time.Hour, cfg.CookieExpiresIn)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.False(t, cfg.MongoTransactions)
	assert.Equal(t, 10*time.Minute, cfg.CheckoutPendingTTL)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("CART_LOCK_TTL", "soon")

	_, err := Load()
	assert.ErrorContains(t, err, "CART_LOCK_TTL")
}

func TestValidateListsMissing(t *testing.T) {
	cfg := &Config{MongoURL: "mongodb://x"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, "missing required environment variables: JWT_SECRET, STRIPE_SECRET_KEY, STRIPE_WEBHOOK_SECRET", err.Error())
}

type mapSecrets map[string]string

func (m mapSecrets) GetSecret(ctx context.Context, name string) (string, error) {
	v, ok := m[name]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func TestResolveSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET_NAME", "shopnow/jwt")
	t.Setenv("STRIPE_SECRET_KEY_NAME", "")

	cfg := &Config{JWTSecret: "from-env", StripeSecretKey: "sk_env"}
	require.NoError(t, cfg.ResolveSecrets(context.Background(), mapSecrets{"shopnow/jwt": "from-secrets"}))

	assert.Equal(t, "from-secrets", cfg.JWTSecret)
	assert.Equal(t, "sk_env", cfg.StripeSecretKey)

	t.Setenv("STRIPE_WEBHOOK_SECRET_NAME", "missing")
	assert.Error(t, cfg.ResolveSecrets(context.Background(), mapSecrets{"shopnow/jwt": "x"}))
}
