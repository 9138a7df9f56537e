package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	Port          string
	AllowedOrigin string
	UploadDir     string

	PinataJWT      string
	PinataAPIBase  string
	PinataGateway  string
	PinningTimeout time.Duration

	EthProvider     string
	ContractAddress string
	LedgerAccount   string
	LedgerGas       uint64
	LedgerTimeout   time.Duration

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "crashchain"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		Port:          getenv("PORT", "3000"),
		AllowedOrigin: getenv("ALLOWED_ORIGIN", "http://localhost:5173"),
		UploadDir:     getenv("UPLOAD_DIR", os.TempDir()),

		PinataJWT:      strings.TrimSpace(getenv("PINATA_JWT", "")),
		PinataAPIBase:  getenv("PINATA_API_BASE", "https://api.pinata.cloud"),
		PinataGateway:  strings.TrimSpace(getenv("PINATA_GATEWAY", "gateway.pinata.cloud")),
		PinningTimeout: getenvDuration("PINNING_TIMEOUT", 30*time.Second),

		EthProvider:     getenv("ETH_PROVIDER", "http://localhost:8545"),
		ContractAddress: strings.TrimSpace(getenv("CONTRACT_ADDRESS", "")),
		LedgerAccount:   strings.TrimSpace(getenv("LEDGER_ACCOUNT", "")),
		LedgerGas:       uint64(getenvInt64("LEDGER_GAS", 500000)),
		LedgerTimeout:   getenvDuration("LEDGER_TIMEOUT", 15*time.Second),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "crashchain"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 20)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 3600)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 600)),
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
