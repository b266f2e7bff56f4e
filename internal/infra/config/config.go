package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Delivery store backends.
const (
	DeliveryStoreSQLite   = "sqlite"
	DeliveryStorePostgres = "postgres"
	DeliveryStoreMemory   = "memory"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	RPCURL             string
	ChainID            int64 // 0 means ask the node
	ExecutorPrivateKey string
	AutomationExecutor common.Address // zero means the network's dedicated caller
	ChainReadTimeout   time.Duration

	AutomationAPIURL  string
	AutomationAPIKey  string
	AutomationTimeout time.Duration
	ProductName       string

	GroupsFile        string
	DatabaseURL       string
	DeliveryStore     string
	DeliveryDBPath    string
	DeliveryNamespace string

	DeadlineTierMode   string
	DeadlineTierWindow time.Duration

	CronSpecDeadlineCheck string
	CronSpecDutyRefresh   string // For refreshing advisory duty state

	HTTPAddr             string
	TelegramToken        string
	MemberTelegramID     int64
	AdminTelegramID      int64
	LogLevel             string
	Environment          string
	BootstrapConcurrency int
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.RPCURL = os.Getenv("RPC_URL")
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC_URL is not set")
	}

	if cfg.ChainID, err = envInt64("CHAIN_ID", 0); err != nil {
		return nil, err
	}
	cfg.ExecutorPrivateKey = strings.TrimPrefix(os.Getenv("EXECUTOR_PRIVATE_KEY"), "0x")

	if executor := os.Getenv("AUTOMATION_EXECUTOR"); executor != "" {
		if !common.IsHexAddress(executor) {
			return nil, fmt.Errorf("invalid AUTOMATION_EXECUTOR: %q is not a hex address", executor)
		}
		cfg.AutomationExecutor = common.HexToAddress(executor)
	}
	if cfg.ChainReadTimeout, err = envDuration("CHAIN_READ_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	cfg.AutomationAPIURL = os.Getenv("AUTOMATION_API_URL")
	cfg.AutomationAPIKey = os.Getenv("AUTOMATION_API_KEY")
	if cfg.AutomationTimeout, err = envDuration("AUTOMATION_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	cfg.ProductName = envOrDefault("PRODUCT_NAME", "Susu")

	cfg.GroupsFile = envOrDefault("GROUPS_FILE", "groups.toml")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cfg.DeliveryStore = strings.ToLower(envOrDefault("DELIVERY_STORE", DeliveryStoreSQLite))
	switch cfg.DeliveryStore {
	case DeliveryStoreSQLite, DeliveryStoreMemory:
	case DeliveryStorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DELIVERY_STORE=postgres requires DATABASE_URL")
		}
	default:
		return nil, fmt.Errorf("invalid DELIVERY_STORE %q: want sqlite, postgres or memory", cfg.DeliveryStore)
	}
	cfg.DeliveryDBPath = envOrDefault("DELIVERY_DB_PATH", "data/deliveries.db")
	cfg.DeliveryNamespace = envOrDefault("DELIVERY_NAMESPACE", "susu")

	cfg.DeadlineTierMode = strings.ToLower(envOrDefault("DEADLINE_TIER_MODE", "crossing"))
	if cfg.DeadlineTierWindow, err = envDuration("DEADLINE_TIER_WINDOW", 5*time.Minute); err != nil {
		return nil, err
	}

	cfg.CronSpecDeadlineCheck = envOrDefault("CRON_SPEC_DEADLINE_CHECK", "* * * * *") // Default: every minute
	cfg.CronSpecDutyRefresh = envOrDefault("CRON_SPEC_DUTY_REFRESH", "*/15 * * * *")

	cfg.HTTPAddr = envOrDefault("HTTP_ADDR", ":8080")
	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.MemberTelegramID, err = envInt64("MEMBER_TELEGRAM_ID", 0); err != nil {
		return nil, err
	}
	if cfg.AdminTelegramID, err = envInt64("ADMIN_TELEGRAM_ID", 0); err != nil {
		return nil, err
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	concurrency, err := envInt64("BOOTSTRAP_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}
	if concurrency < 1 {
		return nil, fmt.Errorf("invalid BOOTSTRAP_CONCURRENCY: must be at least 1")
	}
	cfg.BootstrapConcurrency = int(concurrency)

	return cfg, nil
}

// TelegramEnabled reports whether member notifications can go out over Telegram.
func (c *AppConfig) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.MemberTelegramID != 0
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt64(key string, def int64) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return v, nil
}
