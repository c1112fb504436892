package config

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Server
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`

	// Database
	DBDriver   string `mapstructure:"db_driver"`
	DBHost     string `mapstructure:"db_host"`
	DBPort     string `mapstructure:"db_port"`
	DBUser     string `mapstructure:"db_user"`
	DBPassword string `mapstructure:"db_password"`
	DBName     string `mapstructure:"db_name"`
	DBSSLMode  string `mapstructure:"db_sslmode"`
	SQLitePath string `mapstructure:"sqlite_path"`

	// JWT
	JWTSecret        string        `mapstructure:"jwt_secret"`
	JWTExpirationDur time.Duration `mapstructure:"-"`

	// Pipeline export key (X-API-Key); empty disables pipeline endpoints
	PipelineAPIKey string `mapstructure:"pipeline_api_key"`

	// Attachments
	UploadDir   string `mapstructure:"upload_dir"`
	MaxUploadMB int64  `mapstructure:"max_upload_mb"`

	// Year assigned to new budgets that do not specify one
	DefaultBudgetYear int `mapstructure:"budget_default_year"`
}

var (
	appConfig *Config
	mu        sync.Mutex
)

// Load loads configuration from an optional .env file, an optional
// config.yaml, and environment variables, in increasing precedence.
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Parse JWT expiration duration
	expStr := v.GetString("jwt_expires_in")
	expDur, err := time.ParseDuration(expStr)
	if err != nil {
		log.Printf("Warning: invalid JWT_EXPIRES_IN value '%s', falling back to 15m\n", expStr)
		expDur = 15 * time.Minute
	}
	config.JWTExpirationDur = expDur

	if err := validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	mu.Lock()
	appConfig = config
	mu.Unlock()
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	mu.Lock()
	cfg := appConfig
	mu.Unlock()
	if cfg != nil {
		return cfg
	}

	cfg, err := Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("env", "development")
	v.SetDefault("port", "8080")

	// Database
	v.SetDefault("db_driver", "postgres")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "budgetoffice")
	v.SetDefault("db_password", "budgetoffice")
	v.SetDefault("db_name", "budgetoffice")
	v.SetDefault("db_sslmode", "disable")
	v.SetDefault("sqlite_path", "budgetoffice.db")

	// JWT
	v.SetDefault("jwt_secret", "fallback-secret-key-for-dev-only")
	v.SetDefault("jwt_expires_in", "15m")

	v.SetDefault("pipeline_api_key", "")

	v.SetDefault("upload_dir", "storage/uploads")
	v.SetDefault("max_upload_mb", 5)

	v.SetDefault("budget_default_year", time.Now().Year())
}

func validate(c *Config) error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("db_driver must be 'postgres' or 'sqlite', got %q", c.DBDriver)
	}
	if c.DefaultBudgetYear < 1900 || c.DefaultBudgetYear > 9999 {
		return fmt.Errorf("budget_default_year out of range: %d", c.DefaultBudgetYear)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be positive, got %d", c.MaxUploadMB)
	}
	return nil
}
