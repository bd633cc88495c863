package config

// Database connection configuration, populated by loadDatabaseConfig as part
// of LoadConfig.
var (
	DBHost     string
	DBPort     uint64
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
)

func loadDatabaseConfig() error {
	var err error

	DBHost, err = getEnv("DB_HOST")
	if err != nil {
		return err
	}

	DBPort, err = getEnvAsUint64Or("DB_PORT", 5432)
	if err != nil {
		return err
	}

	DBUser, err = getEnv("DB_USER")
	if err != nil {
		return err
	}

	DBPassword, err = getEnv("DB_PASSWORD")
	if err != nil {
		return err
	}

	DBName, err = getEnv("DB_NAME")
	if err != nil {
		return err
	}

	DBSSLMode = getEnvOr("DB_SSLMODE", "disable")

	return nil
}
