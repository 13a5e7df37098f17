package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	LogLevel  string
	LogFormat string

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

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// CheckoutRate and CheckoutBurst bound order creation per user.
	CheckoutRate  float64
	CheckoutBurst int

	PayPal PayPalConfig
	Crypto CryptoConfig

	CashAppUsername string

	// OrderWebhookURL receives best-effort order event notifications.
	// Empty disables the notifier.
	OrderWebhookURL string
}

type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	Sandbox      bool
	ReturnURL    string
	CancelURL    string
}

type CryptoConfig struct {
	ETHAddress string
	LTCAddress string

	// Explorer and price feed endpoints are overridable for tests.
	EtherscanBaseURL   string
	BlockCypherBaseURL string
	PriceFeedBaseURL   string
	EtherscanAPIKey    string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")

	return Config{
		AppName:     getenv("APP_SERVICE", "storefront"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: environment,
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "json"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "storefront"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
		RedisDB:       getenvInt("REDIS_DB", 0),

		CheckoutRate:  getenvFloat("CHECKOUT_RATE", 0.2),
		CheckoutBurst: getenvInt("CHECKOUT_BURST", 3),

		PayPal: PayPalConfig{
			ClientID:     strings.TrimSpace(getenv("PAYPAL_CLIENT_ID", "")),
			ClientSecret: strings.TrimSpace(getenv("PAYPAL_CLIENT_SECRET", "")),
			Sandbox:      getenvBool("PAYPAL_SANDBOX", true),
			ReturnURL:    getenv("PAYPAL_RETURN_URL", ""),
			CancelURL:    getenv("PAYPAL_CANCEL_URL", ""),
		},
		Crypto: CryptoConfig{
			ETHAddress:         strings.TrimSpace(getenv("ETH_WALLET_ADDRESS", "")),
			LTCAddress:         strings.TrimSpace(getenv("LTC_WALLET_ADDRESS", "")),
			EtherscanBaseURL:   getenv("ETHERSCAN_BASE_URL", "https://api.etherscan.io"),
			BlockCypherBaseURL: getenv("BLOCKCYPHER_BASE_URL", "https://api.blockcypher.com/v1/ltc/main"),
			PriceFeedBaseURL:   getenv("PRICE_FEED_BASE_URL", "https://api.coingecko.com/api/v3"),
			EtherscanAPIKey:    strings.TrimSpace(getenv("ETHERSCAN_API_KEY", "")),
		},

		CashAppUsername: strings.TrimSpace(getenv("CASHAPP_USERNAME", "")),

		OrderWebhookURL: strings.TrimSpace(getenv("ORDER_WEBHOOK_URL", "")),
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
