package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	LogLevel string `mapstructure:"log_level"`
	DBPath   string `mapstructure:"db_path"`

	// LinkedIn credentials
	LinkedInEmail    string `mapstructure:"linkedin_email"`
	LinkedInPassword string `mapstructure:"linkedin_password"`

	// Scraper pacing and timeouts
	Headless          bool `mapstructure:"headless"`
	MinDelaySeconds   int  `mapstructure:"min_delay_seconds"`
	MaxDelaySeconds   int  `mapstructure:"max_delay_seconds"`
	PageTimeoutSecs   int  `mapstructure:"page_timeout_seconds"`
	RunTimeoutMinutes int  `mapstructure:"run_timeout_minutes"`

	// Sync defaults
	ThresholdDays int `mapstructure:"threshold_days"`
	MaxProfiles   int `mapstructure:"max_profiles"`

	// Run lock
	RedisAddr       string `mapstructure:"redis_addr"`
	LockTTLMinutes  int    `mapstructure:"lock_ttl_minutes"`

	// Object storage (S3-compatible, e.g. Backblaze B2)
	B2Endpoint  string `mapstructure:"b2_endpoint"`
	B2KeyID     string `mapstructure:"b2_key_id"`
	B2AppKey    string `mapstructure:"b2_app_key"`
	B2Bucket    string `mapstructure:"b2_bucket"`
	B2UseSSL    bool   `mapstructure:"b2_use_ssl"`
}

var AppConfig *Config

// Initialize loads or creates the configuration file
func Initialize() error {
	// Credentials may live in a local .env, as in deployment via cron
	_ = godotenv.Load()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".alumnisync")
	configFile := filepath.Join(configDir, "config.yaml")

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err := createDefaultConfig(configFile); err != nil {
			return err
		}
	}

	viper.SetConfigFile(configFile)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("alumnisync")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("log_level", "info")
	viper.SetDefault("db_path", filepath.Join(configDir, "alumnisync.db"))
	viper.SetDefault("linkedin_email", "")
	viper.SetDefault("linkedin_password", "")
	viper.SetDefault("headless", true)
	viper.SetDefault("min_delay_seconds", 5)
	viper.SetDefault("max_delay_seconds", 15)
	viper.SetDefault("page_timeout_seconds", 30)
	viper.SetDefault("run_timeout_minutes", 120)
	viper.SetDefault("threshold_days", 180)
	viper.SetDefault("max_profiles", 100)
	viper.SetDefault("redis_addr", "localhost:6379")
	viper.SetDefault("lock_ttl_minutes", 150)
	viper.SetDefault("b2_endpoint", "s3.us-west-004.backblazeb2.com")
	viper.SetDefault("b2_key_id", "")
	viper.SetDefault("b2_app_key", "")
	viper.SetDefault("b2_bucket", "")
	viper.SetDefault("b2_use_ssl", true)

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	AppConfig = &Config{}
	if err := viper.Unmarshal(AppConfig); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return nil
}

// createDefaultConfig creates a default config file
func createDefaultConfig(path string) error {
	defaultConfig := `# alumnisync configuration
log_level: info

# LinkedIn credentials (keep this file secure!)
linkedin_email: ""
linkedin_password: ""

# Scraper pacing
headless: true
min_delay_seconds: 5
max_delay_seconds: 15
page_timeout_seconds: 30
run_timeout_minutes: 120

# Sync defaults
threshold_days: 180
max_profiles: 100

# Run lock (prevents overlapping scheduled runs)
redis_addr: localhost:6379
lock_ttl_minutes: 150

# Object storage for profile snapshots (S3-compatible)
b2_endpoint: s3.us-west-004.backblazeb2.com
b2_key_id: ""
b2_app_key: ""
b2_bucket: ""
b2_use_ssl: true
`
	return os.WriteFile(path, []byte(defaultConfig), 0600)
}

// Set updates a configuration value
func Set(key, value string) error {
	viper.Set(key, value)
	return viper.WriteConfig()
}

// Get retrieves a configuration value
func Get(key string) string {
	return viper.GetString(key)
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".alumnisync", "config.yaml")
}
