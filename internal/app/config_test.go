package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("TENANT_TOTALS_POLICIES", "rightupnext_kovai:box,rightupnext_anna:standard")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 200, cfg.TenantPoolMax)
	require.Equal(t, "72h0m0s", cfg.TrialPeriod.String())
	require.Equal(t, map[string]string{"rightupnext_kovai": "box", "rightupnext_anna": "standard"}, cfg.TotalsPolicies)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsUnknownPolicy(t *testing.T) {
	t.Setenv("TENANT_TOTALS_POLICIES", "rightupnext_kovai:kovai")
	_, err := LoadConfig()
	require.ErrorContains(t, err, "unknown totals policy")
}

func TestInTestMode(t *testing.T) {
	t.Setenv("BILLING_TEST_MODE", "1")
	RefreshTestMode()
	require.True(t, InTestMode())
	t.Setenv("BILLING_TEST_MODE", "0")
	RefreshTestMode()
	require.False(t, InTestMode())
}

func TestNewLoggerHonoursLevelAndFormat(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := newLogger(&Config{AppEnv: "production", LogFormat: "json", LogLevel: "warn"}, buf)

	logger.Info("dropped")
	require.Zero(t, buf.Len())

	logger.Warn("kept", slog.String("tenant", "rightupnext_acme"))
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "kept", line["msg"])
	require.Equal(t, "production", line["env"])
	require.Equal(t, "rightupnext_acme", line["tenant"])
}

func TestPaymentVerifierNeedsSecret(t *testing.T) {
	require.Nil(t, PaymentVerifier(&Config{}))
	require.NotNil(t, PaymentVerifier(&Config{PaymentSigningSecret: "gateway-secret"}))
}
