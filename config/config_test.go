package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_RequiresQRSecret(t *testing.T) {
	t.Setenv("QR_SECRET_KEY", "")

	cfg, err := LoadConfig()

	assert.Nil(t, cfg)
	assert.ErrorIs(t, err, ErrMissingQRSecret)
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("QR_SECRET_KEY", "secret")
	for _, key := range []string{
		"BOARDING_TOKEN_TTL", "LEDGER_DRIVER", "FOLIO_PREFIX",
		"FOLIO_STRATEGY", "FOLIO_MAX_ATTEMPTS", "REAPER_INTERVAL", "TIMEZONE",
	} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.QRSecretKey)
	assert.Equal(t, 60*time.Second, cfg.BoardingTokenTTL)
	assert.Equal(t, "sqlite", cfg.LedgerDriver)
	assert.Equal(t, "OMA", cfg.FolioPrefix)
	assert.Equal(t, "random", cfg.FolioStrategy)
	assert.Equal(t, 5, cfg.FolioMaxAttempts)
	assert.Zero(t, cfg.ReaperInterval)
	assert.Equal(t, "America/Mexico_City", cfg.TimeZone)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("QR_SECRET_KEY", "secret")
	t.Setenv("BOARDING_TOKEN_TTL", "90s")
	t.Setenv("FOLIO_MAX_ATTEMPTS", "0")
	t.Setenv("SCAN_RATE_LIMIT", "12")
	t.Setenv("ENABLE_METRICS", "false")
	t.Setenv("BROADCAST_TIMEOUT", "not-a-duration")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.BoardingTokenTTL)
	assert.Equal(t, 1, cfg.FolioMaxAttempts)
	assert.Equal(t, 12, cfg.ScanRateLimit)
	assert.False(t, cfg.EnableMetrics)
	assert.Equal(t, 3*time.Second, cfg.BroadcastTimeout)
	assert.Equal(t, "UTC", cfg.TimeZone)
}
