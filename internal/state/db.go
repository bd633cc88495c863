// ./internal/state/db.go
package state

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// TestDBConnection tests if the database connection is healthy.
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	return DB.Ping()
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS vault_parameters (
			params_id SERIAL PRIMARY KEY,
			version INTEGER NOT NULL DEFAULT 1,
			config_name VARCHAR(255) NOT NULL DEFAULT 'default',
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			activated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			vault_buffer_bps INTEGER NOT NULL,
			redeem_fee_bps INTEGER NOT NULL,
			auto_allocate_threshold NUMERIC(78, 0) NOT NULL,
			rebase_threshold NUMERIC(78, 0) NOT NULL,
			max_supply_diff_bps INTEGER NOT NULL,
			capital_paused BOOLEAN NOT NULL DEFAULT FALSE,
			rebase_paused BOOLEAN NOT NULL DEFAULT FALSE,
			stale_price_policy VARCHAR(16) NOT NULL,
			max_price_age_seconds BIGINT NOT NULL,
			CONSTRAINT uq_vault_parameters_config_version UNIQUE (config_name, version)
		);
		CREATE INDEX IF NOT EXISTS idx_vault_parameters_config_active ON vault_parameters(config_name, is_active, activated_at DESC);

		CREATE TABLE IF NOT EXISTS operation_receipts (
			receipt_id SERIAL PRIMARY KEY,
			op_id VARCHAR(64) NOT NULL,
			kind VARCHAR(32) NOT NULL,
			account VARCHAR(255),
			asset VARCHAR(64),
			asset_amount NUMERIC(78, 0) NOT NULL,
			token_units NUMERIC(78, 0) NOT NULL,
			fee_units NUMERIC(78, 0) NOT NULL,
			success BOOLEAN NOT NULL,
			message TEXT,
			op_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_operation_receipts_timestamp ON operation_receipts(op_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_operation_receipts_kind ON operation_receipts(kind);
		CREATE INDEX IF NOT EXISTS idx_operation_receipts_account ON operation_receipts(account);

		CREATE TABLE IF NOT EXISTS allocation_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			cycle_number INTEGER NOT NULL,
			cycle_id VARCHAR(64) NOT NULL,
			snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			total_value NUMERIC(78, 0) NOT NULL,
			total_supply NUMERIC(78, 0) NOT NULL,
			transfers JSONB,
			rebased BOOLEAN NOT NULL DEFAULT FALSE
		);
		CREATE INDEX IF NOT EXISTS idx_allocation_snapshots_cycle ON allocation_snapshots(cycle_number DESC);
		CREATE INDEX IF NOT EXISTS idx_allocation_snapshots_timestamp ON allocation_snapshots(snapshot_timestamp DESC);

		CREATE TABLE IF NOT EXISTS withdrawal_requests (
			request_id BIGINT PRIMARY KEY,
			requester VARCHAR(255) NOT NULL,
			asset VARCHAR(64) NOT NULL,
			units_burned NUMERIC(78, 0) NOT NULL,
			amount_owed NUMERIC(78, 0) NOT NULL,
			queued_total NUMERIC(78, 0) NOT NULL,
			status VARCHAR(16) NOT NULL,
			requested_at TIMESTAMPTZ NOT NULL,
			claimed_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_withdrawal_requests_requester ON withdrawal_requests(requester);
		CREATE INDEX IF NOT EXISTS idx_withdrawal_requests_status ON withdrawal_requests(status);
	`

	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to apply database schema: %w", err)
	}

	if err := ensureCycleCounterTable(); err != nil {
		return err
	}

	log.Info().Msg("Database schema ensured successfully.")
	return nil
}
