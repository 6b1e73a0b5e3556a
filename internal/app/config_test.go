package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("API_KEY_HASH", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 120*time.Second, cfg.AppRequestTimeout)
	assert.Equal(t, int64(10<<20), cfg.ImportMaxUpload)
	assert.Equal(t, 10*time.Minute, cfg.ImportLockTTL)
	assert.Equal(t, 24*time.Hour, cfg.ImportReportTTL)
	tax, err := cfg.TaxPercent()
	require.NoError(t, err)
	assert.Equal(t, "8", tax.String())
	assert.Error(t, cfg.RequireAPIKey())
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("IMPORT_TAX_PERCENT", "7.25")
	t.Setenv("IMPORT_LOCK_TTL", "90s")
	t.Setenv("API_KEY_HASH", "$2a$10$abc")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	tax, err := cfg.TaxPercent()
	require.NoError(t, err)
	assert.Equal(t, "7.25", tax.String())
	assert.Equal(t, 90*time.Second, cfg.ImportLockTTL)
	assert.NoError(t, cfg.RequireAPIKey())
	assert.True(t, cfg.IsProduction())
}

func TestLoadConfigRejectsBadTax(t *testing.T) {
	for _, v := range []string{"abc", "-1", "101"} {
		t.Setenv("IMPORT_TAX_PERCENT", v)
		_, err := LoadConfig()
		assert.Error(t, err, v)
	}
}
