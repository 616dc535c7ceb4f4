package config

import (
	"testing"

	"leave-bot/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("BASE_ADMIN_CHAT_ID", "42")
	t.Setenv("DATABASE_URL", "leave.db")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.BaseAdminChatID)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	assert.Equal(t, 1.0, cfg.RateLimitPerSecond)
	assert.Equal(t, 5, cfg.RateLimitBurst)
	assert.True(t, cfg.AllowManagerBackdate)

	settings := cfg.DefaultSettings()
	assert.Equal(t, models.SettingsID, settings.ID)
	assert.Equal(t, models.AccrualYearStart, settings.AnnualLeaveAccrualPolicy)
	assert.False(t, settings.CarryOverEnabled)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_DRIVER", "Postgres")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DEFAULT_ACCRUAL_POLICY", "pro_rata")
	t.Setenv("DEFAULT_CARRY_OVER_ENABLED", "true")
	t.Setenv("DEFAULT_CARRY_OVER_LIMIT_HOURS", "40")
	t.Setenv("ALLOW_MANAGER_BACKDATE", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.Equal(t, models.AccrualProRata, cfg.DefaultAccrualPolicy)
	assert.True(t, cfg.DefaultCarryOverEnabled)
	assert.Equal(t, 40.0, cfg.DefaultCarryOverLimitHours)
	assert.False(t, cfg.AllowManagerBackdate)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing token", map[string]string{"TELEGRAM_BOT_TOKEN": ""}},
		{"bad driver", map[string]string{"DATABASE_DRIVER": "oracle"}},
		{"missing db url", map[string]string{"DATABASE_URL": ""}},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}},
		{"bad policy", map[string]string{"DEFAULT_ACCRUAL_POLICY": "MONTHLY"}},
		{"zero burst", map[string]string{"RATE_LIMIT_BURST": "0"}},
		{"negative carry-over", map[string]string{"DEFAULT_CARRY_OVER_LIMIT_HOURS": "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
