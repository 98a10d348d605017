package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// DatabaseConfig holds database configuration for the key mapping, history and warehouse store
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`     // Maximum number of open connections to the database
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`     // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`  // Maximum amount of time a connection may be reused (e.g., "5m", "1h")
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"` // Maximum amount of time a connection may be idle (e.g., "10m", "30m")
}

// ClickHouseConfig holds the optional analytical export sink configuration
type ClickHouseConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Addrs    []string `mapstructure:"addrs"`
	Database string   `mapstructure:"database"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
}

// WorkerConfig holds intra-stage worker pool configuration
type WorkerConfig struct {
	WorkerPoolSize  int `mapstructure:"pool_size"`
	WorkerQueueSize int `mapstructure:"queue_size"`
}

// RetryConfig bounds retries of store reads and writes
type RetryConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
	MaxRetries      uint64        `mapstructure:"max_retries"`
}

// CleanerConfig holds cleaner configuration
type CleanerConfig struct {
	DateLayouts []string `mapstructure:"date_layouts"`
	NullTokens  []string `mapstructure:"null_tokens"`
}

// AssemblerConfig holds fact assembler configuration
type AssemblerConfig struct {
	AllowLazyDimensions bool `mapstructure:"allow_lazy_dimensions"`
}

// ValidatorConfig holds integrity validator configuration
type ValidatorConfig struct {
	// MaxCriticalNullRate is the highest tolerated share (0..1) of empty critical fields
	MaxCriticalNullRate float64 `mapstructure:"max_critical_null_rate"`
}

// WarehouseConfig holds configuration for the warehouse builder
type WarehouseConfig struct {
	BaseConfig `mapstructure:",squash"`
	Database   DatabaseConfig   `mapstructure:"database"`
	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Cleaner    CleanerConfig    `mapstructure:"cleaner"`
	Assembler  AssemblerConfig  `mapstructure:"assembler"`
	Validator  ValidatorConfig  `mapstructure:"validator"`
	InputDir   string           `mapstructure:"input_dir"`
}

// DefaultDateLayouts are the source date formats understood by the cleaner
var DefaultDateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05Z07:00",
	"01/02/2006",
	"1/2/2006",
	"01/02/2006 15:04:05",
	"Jan 2, 2006",
}

// DefaultNullTokens are the string values treated as missing by the cleaner
var DefaultNullTokens = []string{"N/A", "NA", "NULL", "NONE", "NAN", "-"}

// LoadWarehouseConfig loads configuration for the warehouse builder
func LoadWarehouseConfig(configFile string, envPath string) (*WarehouseConfig, error) {
	v := configureViper("warehouse", configFile, envPath)

	// Set defaults
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.conn_max_idle_time", "10m")
	v.SetDefault("clickhouse.database", "inspections")
	v.SetDefault("worker.pool_size", 8)
	v.SetDefault("worker.queue_size", 1024)
	v.SetDefault("retry.initial_interval", "200ms")
	v.SetDefault("retry.max_interval", "5s")
	v.SetDefault("retry.max_elapsed_time", "30s")
	v.SetDefault("retry.max_retries", 5)
	v.SetDefault("cleaner.date_layouts", DefaultDateLayouts)
	v.SetDefault("cleaner.null_tokens", DefaultNullTokens)
	v.SetDefault("assembler.allow_lazy_dimensions", true)
	v.SetDefault("validator.max_critical_null_rate", 0.05)
	v.SetDefault("input_dir", "data/bronze")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use environment variables
	}

	var cfg WarehouseConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks required fields and value ranges
func (c *WarehouseConfig) Validate() error {
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.DBName == "" {
		return errors.New("database.dbname is required")
	}
	if c.Validator.MaxCriticalNullRate < 0 || c.Validator.MaxCriticalNullRate > 1 {
		return fmt.Errorf("validator.max_critical_null_rate must be within [0, 1], got %v", c.Validator.MaxCriticalNullRate)
	}
	if c.Worker.WorkerPoolSize <= 0 {
		return fmt.Errorf("worker.pool_size must be positive, got %d", c.Worker.WorkerPoolSize)
	}
	if len(c.Cleaner.DateLayouts) == 0 {
		return errors.New("cleaner.date_layouts must not be empty")
	}
	if c.ClickHouse.Enabled && len(c.ClickHouse.Addrs) == 0 {
		return errors.New("clickhouse.addrs is required when clickhouse is enabled")
	}
	return nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath, service)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		v.AddConfigPath("config/")
	}

	v.SetEnvPrefix("FF_WAREHOUSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind all environment variables
	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"sentry_dsn",
		// Database
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// ClickHouse
		"clickhouse.enabled",
		"clickhouse.addrs",
		"clickhouse.database",
		"clickhouse.username",
		"clickhouse.password",
		// Worker
		"worker.pool_size",
		"worker.queue_size",
		// Retry
		"retry.initial_interval",
		"retry.max_interval",
		"retry.max_elapsed_time",
		"retry.max_retries",
		// Stages
		"cleaner.date_layouts",
		"cleaner.null_tokens",
		"assembler.allow_lazy_dimensions",
		"validator.max_critical_null_rate",
		"input_dir",
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	// Always try shared base first, then local, then optional per-service local.
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
