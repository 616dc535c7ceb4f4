package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"leave-bot/internal/models"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type BotConfig struct {
	TelegramToken   string
	BaseAdminChatID int64
	BotDebug        bool

	DatabaseDriver string
	DatabaseURL    string

	LogLevel    logrus.Level
	MetricsAddr string

	HolidaysFile string

	RateLimitPerSecond float64
	RateLimitBurst     int

	AllowManagerBackdate bool

	// Seed values for the settings row; used only when it does not exist yet.
	DefaultAccrualPolicy       models.AccrualPolicy
	DefaultCarryOverEnabled    bool
	DefaultCarryOverLimitHours float64
	DefaultShowTeamCalendar    bool
}

var instance *BotConfig
var once sync.Once

// GetBotConfig loads the configuration once and exits the process when it is
// unusable.
func GetBotConfig() *BotConfig {
	once.Do(func() {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			logrus.Fatalf("error loading env variables: %s", err.Error())
		}

		cfg, err := Load()
		if err != nil {
			logrus.Fatal(err)
		}
		instance = cfg
	})

	return instance
}

// Load reads the configuration from the process environment.
func Load() (*BotConfig, error) {
	cfg := &BotConfig{}

	cfg.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", "")
	if cfg.TelegramToken == "" {
		return nil, errors.New("could not get bot token")
	}

	cfg.BaseAdminChatID = getEnvAsInt("BASE_ADMIN_CHAT_ID", -2)
	if cfg.BaseAdminChatID == -2 {
		return nil, errors.New("could not get admin chat id")
	}
	cfg.BotDebug = getEnvAsBool("BOT_DEBUG", false)

	cfg.DatabaseDriver = strings.ToLower(getEnv("DATABASE_DRIVER", "sqlite"))
	switch cfg.DatabaseDriver {
	case "sqlite", "postgres", "mysql":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}
	cfg.DatabaseURL = getEnv("DATABASE_URL", "")
	if cfg.DatabaseURL == "" {
		return nil, errors.New("could not get db url")
	}

	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level
	cfg.MetricsAddr = getEnv("METRICS_ADDR", "")
	cfg.HolidaysFile = getEnv("HOLIDAYS_FILE", "")

	cfg.RateLimitPerSecond = getEnvAsFloat("RATE_LIMIT_PER_SECOND", 1)
	cfg.RateLimitBurst = int(getEnvAsInt("RATE_LIMIT_BURST", 5))
	if cfg.RateLimitPerSecond <= 0 || cfg.RateLimitBurst <= 0 {
		return nil, errors.New("rate limit must be positive")
	}

	cfg.AllowManagerBackdate = getEnvAsBool("ALLOW_MANAGER_BACKDATE", true)

	cfg.DefaultAccrualPolicy = models.AccrualPolicy(strings.ToUpper(getEnv("DEFAULT_ACCRUAL_POLICY", string(models.AccrualYearStart))))
	if !cfg.DefaultAccrualPolicy.Valid() {
		return nil, fmt.Errorf("invalid DEFAULT_ACCRUAL_POLICY %q", cfg.DefaultAccrualPolicy)
	}
	cfg.DefaultCarryOverEnabled = getEnvAsBool("DEFAULT_CARRY_OVER_ENABLED", false)
	cfg.DefaultCarryOverLimitHours = getEnvAsFloat("DEFAULT_CARRY_OVER_LIMIT_HOURS", 0)
	if cfg.DefaultCarryOverLimitHours < 0 {
		return nil, errors.New("DEFAULT_CARRY_OVER_LIMIT_HOURS must not be negative")
	}
	cfg.DefaultShowTeamCalendar = getEnvAsBool("DEFAULT_SHOW_TEAM_CALENDAR", false)

	return cfg, nil
}

// DefaultSettings is the settings row seeded on first start.
func (c *BotConfig) DefaultSettings() models.Settings {
	return models.Settings{
		ID:                           models.SettingsID,
		AnnualLeaveAccrualPolicy:     c.DefaultAccrualPolicy,
		CarryOverEnabled:             c.DefaultCarryOverEnabled,
		CarryOverLimitHours:          c.DefaultCarryOverLimitHours,
		ShowTeamCalendarForEmployees: c.DefaultShowTeamCalendar,
	}
}

func getEnv(key string, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}

	return defaultVal
}

func getEnvAsBool(name string, defaultVal bool) bool {
	valStr := getEnv(name, "")
	if val, err := strconv.ParseBool(valStr); err == nil {
		return val
	}

	return defaultVal
}

func getEnvAsInt(name string, defaultVal int64) int64 {
	valStr := getEnv(name, "")
	if val, err := strconv.ParseInt(valStr, 10, 64); err == nil {
		return val
	}

	return defaultVal
}

func getEnvAsFloat(name string, defaultVal float64) float64 {
	valStr := getEnv(name, "")
	if val, err := strconv.ParseFloat(valStr, 64); err == nil {
		return val
	}

	return defaultVal
}
