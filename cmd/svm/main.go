package main

import (
	"context"
	"os"
	"time"

	"github.com/meridian-money/svm/internal/bank"
	"github.com/meridian-money/svm/internal/config"
	"github.com/meridian-money/svm/internal/governance"
	"github.com/meridian-money/svm/internal/keeper"
	"github.com/meridian-money/svm/internal/logger"
	"github.com/meridian-money/svm/internal/oracle"
	"github.com/meridian-money/svm/internal/state"
	"github.com/meridian-money/svm/internal/token"
	"github.com/meridian-money/svm/internal/vault"
	"github.com/meridian-money/svm/internal/web"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	DEFAULT_PARAMS_CONFIG_NAME    = "default_svm_vault"
	DEFAULT_PARAMS_CONFIG_VERSION = 1
)

// main is the entry point for the SVM system.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(config.LogLevel)
	log.Info().Msg("SVM Core Logic Starting...")

	// Initialize Database Connection
	dbCfg := state.DBConfig{
		Host: config.DBHost, Port: int(config.DBPort),
		User: config.DBUser, Password: config.DBPassword,
		DBName: config.DBName, SSLMode: config.DBSSLMode,
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// Load Vault Parameters
	vaultParams, err := state.LoadActiveVaultParameters(DEFAULT_PARAMS_CONFIG_NAME)
	if err != nil || vaultParams == nil {
		log.Warn().Err(err).Msg("No active vault parameters found, using defaults and saving.")
		defaultParams := config.DefaultVaultParameters
		if _, err := state.SaveVaultParameters(defaultParams, DEFAULT_PARAMS_CONFIG_NAME, DEFAULT_PARAMS_CONFIG_VERSION, true); err != nil {
			log.Fatal().Err(err).Msg("Failed to save initial default vault parameters.")
		}
		vaultParams = &defaultParams
	}
	log.Info().Msg("Vault parameters loaded successfully.")

	// --- 2. Core Component Initialization ---
	assetBackend := bank.NewLedger()

	var priceProvider oracle.PriceProvider
	if config.OracleFeedURL != "" {
		feed, err := oracle.NewFeedProvider(config.OracleFeedURL, time.Duration(config.OracleRefreshSeconds)*time.Second)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize oracle feed provider")
		}
		priceProvider = feed
		log.Info().Str("url", config.OracleFeedURL).Msg("Using external oracle feed")
	} else {
		priceProvider = oracle.NewFixedProvider()
		log.Warn().Msg("ORACLE_FEED_URL not set. Prices must be administered locally.")
	}

	tokenLedger := token.NewRebasing()

	authority, err := governance.NewAuthority(config.GovernorAccount)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize governance authority")
	}
	if config.StrategistAccount != config.GovernorAccount {
		if err := authority.SetStrategist(config.GovernorAccount, config.StrategistAccount); err != nil {
			log.Fatal().Err(err).Msg("Failed to assign strategist role")
		}
	}

	coreVault, err := vault.New(vault.Config{
		Account:    config.VaultAccount,
		Backend:    assetBackend,
		Oracle:     priceProvider,
		Token:      tokenLedger,
		Authority:  authority,
		Parameters: vaultParams,
		Receipts:   state.ReceiptWriter{},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize vault")
	}
	log.Info().Str("account", config.VaultAccount).Msg("Vault initialized")

	// --- 3. Start Web Server ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort, coreVault, tokenLedger)
	go func() {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting SVM web dashboard")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 4. Run Mode Gate (Safety Switch) ---
	ctx := context.Background()

	if config.Mode != "live" {
		log.Warn().Str("mode", config.Mode).Msg("SVM_MODE is not 'live'. Running in observation mode, no keeper cycles will execute.")
		<-ctx.Done()
		return
	}

	log.Warn().Msg("Initializing SVM in LIVE mode. Keeper cycles will mutate vault state.")

	// --- 5. Create Keeper Instance with Dependency Injection ---
	keeperInstance, err := keeper.NewKeeper(keeper.Config{
		Vault:      coreVault,
		Token:      tokenLedger,
		Strategist: config.StrategistAccount,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create keeper instance")
	}

	log.Info().Msg("Keeper instance created successfully")

	// --- 6. Start Keeper Main Loop ---
	loopInterval := time.Duration(config.CycleIntervalSeconds) * time.Second
	log.Info().Str("interval", loopInterval.String()).Msg("Starting keeper main loop")

	keeperInstance.RunLoop(ctx, loopInterval)
}
