package config

import (
	"errors"
	"fmt"
	"os"

	"recinto/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig         `yaml:"app"`
	Database   DatabaseConfig    `yaml:"database"`
	Redis      RedisConfig       `yaml:"redis"`
	Logging    LoggingConfig     `yaml:"logging"`
	Monitoring MonitoringConfig  `yaml:"monitoring"`
	API        APIConfig         `yaml:"api"`
	Booking    BookingConfig     `yaml:"booking"`
	Telegram   TelegramConfig    `yaml:"telegram"`
	Resources  []models.Resource `yaml:"resources"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	Port      int                `yaml:"port"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type BookingConfig struct {
	PaymentWindowHours int `yaml:"payment_window_hours"`
	ExpirySweepMinutes int `yaml:"expiry_sweep_minutes"`
	FeedBuffer         int `yaml:"feed_buffer"`
	IntervalCacheTTL   int `yaml:"interval_cache_ttl"` // seconds
}

type TelegramConfig struct {
	Enabled      bool    `yaml:"enabled"`
	BotToken     string  `yaml:"bot_token"`
	AdminChatIDs []int64 `yaml:"admin_chat_ids"`
}

func Load(configPath string) (*Config, error) {
	// .env переменные подставляются в YAML до разбора
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return errors.New("telegram bot token is required when telegram is enabled")
	}

	return ValidateResources(c.Resources)
}

func ValidateResources(resources []models.Resource) error {
	ids := make(map[int64]bool)
	for _, r := range resources {
		if r.ID == 0 {
			return fmt.Errorf("resource '%s' has invalid ID 0", r.Name)
		}
		if ids[r.ID] {
			return fmt.Errorf("duplicate resource ID found: %d", r.ID)
		}
		ids[r.ID] = true

		switch r.Category {
		case models.CategoryCabin, models.CategoryPavilion, models.CategoryPool:
		default:
			return fmt.Errorf("resource %d has unknown category %q", r.ID, r.Category)
		}
		switch r.Modality {
		case models.PerNight, models.PerDay, models.PerPerson:
		default:
			return fmt.Errorf("resource %d has unknown modality %q", r.ID, r.Modality)
		}

		if r.BaseCapacity < 0 || r.ExtraCapacity < 0 {
			return fmt.Errorf("resource %d has negative capacity", r.ID)
		}
		if r.MemberRate < 0 || r.ExternalRate < 0 ||
			r.MemberExtraRate < 0 || r.ExternalExtraRate < 0 ||
			r.MemberPoolRate < 0 || r.ExternalPoolRate < 0 {
			return fmt.Errorf("resource %d has negative rates", r.ID)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}

	if c.Booking.PaymentWindowHours == 0 {
		c.Booking.PaymentWindowHours = models.DefaultPaymentWindowHours
	}
	if c.Booking.ExpirySweepMinutes == 0 {
		c.Booking.ExpirySweepMinutes = 15
	}
	if c.Booking.FeedBuffer == 0 {
		c.Booking.FeedBuffer = models.DefaultFeedBuffer
	}
	if c.Booking.IntervalCacheTTL == 0 {
		c.Booking.IntervalCacheTTL = models.IntervalCacheTTL
	}

	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 10
	}
}
