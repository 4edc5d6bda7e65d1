package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	DefaultDBPath         = "autoreply.db"
	DefaultStateCacheSize = 10000
	DefaultSendRate       = 25
)

type Config struct {
	BotToken             string
	OwnerID              int64
	BusinessConnectionID string
	DBPath               string
	SettingsFile         string
	StateCacheSize       int
	SendRate             float64
	MetricsAddr          string
}

// FromEnv reads the bot configuration. A .env file is loaded by the caller
// through godotenv/autoload.
func FromEnv() (*Config, error) {
	return Load(os.Getenv)
}

func Load(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		BotToken:             strings.TrimSpace(getenv("BOT_TOKEN")),
		BusinessConnectionID: strings.TrimSpace(getenv("BUSINESS_CONNECTION_ID")),
		DBPath:               strings.TrimSpace(getenv("DB_PATH")),
		SettingsFile:         strings.TrimSpace(getenv("SETTINGS_FILE")),
		MetricsAddr:          strings.TrimSpace(getenv("METRICS_ADDR")),
		StateCacheSize:       DefaultStateCacheSize,
		SendRate:             DefaultSendRate,
	}

	if cfg.BotToken == "" {
		return nil, errors.New("BOT_TOKEN environment variable is required")
	}

	if v := strings.TrimSpace(getenv("OWNER_ID")); v != "" {
		ownerID, err := strconv.ParseInt(v, 10, 64)
		if err != nil || ownerID <= 0 {
			return nil, fmt.Errorf("invalid OWNER_ID %q", v)
		}
		cfg.OwnerID = ownerID
	}
	if cfg.OwnerID == 0 && cfg.BusinessConnectionID == "" {
		return nil, errors.New("OWNER_ID or BUSINESS_CONNECTION_ID environment variable is required")
	}

	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath
	}

	if v := strings.TrimSpace(getenv("STATE_CACHE_SIZE")); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size <= 0 {
			return nil, fmt.Errorf("invalid STATE_CACHE_SIZE %q", v)
		}
		cfg.StateCacheSize = size
	}

	if v := strings.TrimSpace(getenv("SEND_RATE")); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r <= 0 {
			return nil, fmt.Errorf("invalid SEND_RATE %q", v)
		}
		cfg.SendRate = r
	}

	return cfg, nil
}
