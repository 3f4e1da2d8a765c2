package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_platform")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_platform")
	t.Setenv("PORT", "9090")

	cfg := Config{Addr: "0.0.0.0:8080"}
	cfg.Stripe.SecretKey = "sk_test_explicit"
	cfg.applyPlatformDefaults()

	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "sk_test_explicit", cfg.Stripe.SecretKey)
	assert.Equal(t, "whsec_platform", cfg.Stripe.WebhookSecret)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
}

func TestApplyPlatformDefaults_KeepsCustomAddr(t *testing.T) {
	t.Setenv("PORT", "9090")
	cfg := Config{Addr: "127.0.0.1:7000"}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
}

func TestValidate(t *testing.T) {
	valid := Config{DatabaseURL: "postgres://x", Stripe: StripeConfig{SecretKey: "sk"}, Session: SessionConfig{Pepper: "p"}}
	require.NoError(t, valid.validate())

	noDB := valid
	noDB.DatabaseURL = ""
	require.ErrorContains(t, noDB.validate(), "database URL")

	noKey := valid
	noKey.Stripe.SecretKey = ""
	require.ErrorContains(t, noKey.validate(), "stripe secret key")

	// A missing webhook secret is allowed; deliveries are then rejected.
	noPepper := valid
	noPepper.Session.Pepper = ""
	require.ErrorContains(t, noPepper.validate(), "session pepper")
}

func TestWSOrigins(t *testing.T) {
	assert.Nil(t, wsOrigins([]string{"*"}))
	assert.Nil(t, wsOrigins([]string{"https://a.example", " * "}))
	assert.Equal(t, []string{"https://a.example"}, wsOrigins([]string{"https://a.example"}))
}
