package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// Application configuration loaded from environment variables. These are
// populated at startup by the LoadConfig function.
var (
	// VaultAccount is the ledger account that holds the vault's buffer.
	VaultAccount string
	// GovernorAccount is the initial governor of the vault.
	GovernorAccount string
	// StrategistAccount is the initial strategist. Defaults to the governor.
	StrategistAccount string

	// Mode selects the run mode: "live" runs mutating keeper cycles,
	// anything else runs the engine in observation mode.
	Mode string

	// CycleIntervalSeconds is the pause between keeper cycles.
	CycleIntervalSeconds uint64

	// OracleFeedURL is the base URL of the external price feed. Empty means
	// prices are administered locally instead of fetched.
	OracleFeedURL string
	// OracleRefreshSeconds is how long a fetched quote is served from cache.
	OracleRefreshSeconds uint64

	// WebPort is the listen port for the dashboard and API server.
	WebPort uint64

	// LogLevel is the zerolog level name ("debug", "info", "warn", "error").
	LogLevel string
)

// LoadConfig loads configuration from environment variables and sets the
// global config vars. Database configuration is loaded alongside.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	VaultAccount, err = getEnv("SVM_VAULT_ACCOUNT")
	if err != nil {
		return err
	}

	GovernorAccount, err = getEnv("SVM_GOVERNOR_ACCOUNT")
	if err != nil {
		return err
	}

	StrategistAccount = getEnvOr("SVM_STRATEGIST_ACCOUNT", GovernorAccount)

	Mode = getEnvOr("SVM_MODE", "observe")

	CycleIntervalSeconds, err = getEnvAsUint64("SVM_CYCLE_INTERVAL_SECONDS")
	if err != nil {
		return err
	}

	OracleFeedURL = getEnvOr("ORACLE_FEED_URL", "")
	OracleRefreshSeconds, err = getEnvAsUint64Or("ORACLE_REFRESH_SECONDS", 30)
	if err != nil {
		return err
	}

	WebPort, err = getEnvAsUint64Or("WEB_PORT", 8080)
	if err != nil {
		return err
	}

	LogLevel = getEnvOr("LOG_LEVEL", "info")

	if err := loadDatabaseConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("VaultAccount", VaultAccount).
		Str("Mode", Mode).
		Uint64("CycleIntervalSeconds", CycleIntervalSeconds).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOr retrieves a string environment variable with a fallback.
func getEnvOr(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvAsUint64 retrieves an environment variable as uint64. Returns error
// if not set or not parseable.
func getEnvAsUint64(key string) (uint64, error) {
	raw, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be an unsigned integer")
	}
	return value, nil
}

// getEnvAsUint64Or retrieves an environment variable as uint64 with a
// fallback when unset. A set but malformed value is still an error.
func getEnvAsUint64Or(key string, fallback uint64) (uint64, error) {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be an unsigned integer")
	}
	return value, nil
}
