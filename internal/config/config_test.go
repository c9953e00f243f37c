package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"survey-bknd/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DEBOUNCE_WINDOW", "")
	t.Setenv("REDIS_ADDRESS", "")
	t.Setenv("JWT_PUBLIC_KEY_PATH", "")
	t.Setenv("REPORTING_MONTH", "")

	cfg := Load()
	assert.Equal(t, 400*time.Millisecond, cfg.DebounceWindow)
	assert.Equal(t, 50, cfg.DefaultPageSize)
	assert.Equal(t, 200, cfg.MaxPageSize)
	assert.Empty(t, cfg.RedisAddress)
	assert.Empty(t, cfg.JWTPublicKeyPath)
	assert.True(t, cfg.ReportingMonth.IsZero())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DEBOUNCE_WINDOW", "250ms")
	t.Setenv("MAX_PAGE_SIZE", "100")
	t.Setenv("BUNDEBUG", "true")
	t.Setenv("REPORTING_MONTH", "Dec-2025")

	cfg := Load()
	assert.Equal(t, 250*time.Millisecond, cfg.DebounceWindow)
	assert.Equal(t, 100, cfg.MaxPageSize)
	assert.True(t, cfg.BunDebug)
	assert.Equal(t, models.NewMonth(2025, time.December), cfg.Reference())
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("DEBOUNCE_WINDOW", "soon")
	t.Setenv("DEFAULT_PAGE_SIZE", "many")
	t.Setenv("REPORTING_MONTH", "Smarch-2025")

	cfg := Load()
	assert.Equal(t, 400*time.Millisecond, cfg.DebounceWindow)
	assert.Equal(t, 50, cfg.DefaultPageSize)
	assert.Equal(t, models.MonthOf(time.Now()), cfg.Reference())
}
