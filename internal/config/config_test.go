package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper() *viper.Viper {
	v := viper.New()
	v.Set("jwt_secret", "test-secret")
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newTestViper())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "./data/quickpay.db", cfg.DBPath)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.True(t, cfg.AutoSave)
	assert.False(t, cfg.AutoSubmit)
	assert.Equal(t, 300*time.Millisecond, cfg.SearchDebounce)
	assert.Equal(t, 100, cfg.PageLimit)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	_, err := Load(viper.New())
	assert.Error(t, err)
}

func TestLoadRejectsInvalidPageLimit(t *testing.T) {
	v := newTestViper()
	v.Set("page_limit", 0)
	_, err := Load(v)
	assert.Error(t, err)
}

func TestToleranceFor(t *testing.T) {
	v := newTestViper()
	v.Set("tolerances", map[string]string{"ugx": "1", "kes": "0.05"})

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.True(t, cfg.ToleranceFor("UGX").Equal(decimal.RequireFromString("1")))
	assert.True(t, cfg.ToleranceFor("kes").Equal(decimal.RequireFromString("0.05")))
	assert.True(t, cfg.ToleranceFor("USD").Equal(decimal.RequireFromString("0.01")), "unlisted currency defaults")
}

func TestLoadRejectsInvalidTolerance(t *testing.T) {
	v := newTestViper()
	v.Set("tolerances", map[string]string{"kes": "not-a-number"})
	_, err := Load(v)
	assert.Error(t, err)
}
