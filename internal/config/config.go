package config

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

// DBConfig describes the relational store.
type DBConfig struct {
	Driver     string `validate:"oneof=mysql sqlite3"`
	Host       string `validate:"required_if=Driver mysql"`
	Port       int    `validate:"min=1,max=65535"`
	User       string `validate:"required_if=Driver mysql"`
	Password   string
	Name       string `validate:"required_if=Driver mysql"`
	SQLitePath string `validate:"required_if=Driver sqlite3"`

	MaxOpenConns    int `validate:"min=0"`
	MaxIdleConns    int `validate:"min=0"`
	ConnMaxLifetime time.Duration
}

// WeatherLinkConfig holds the station credentials. Only commands that fetch need it.
type WeatherLinkConfig struct {
	BaseURL    string `validate:"required,url"`
	APIKey     string `validate:"required"`
	APISecret  string `validate:"required"`
	StationID  string `validate:"required"`
	MaxRetries int    `validate:"min=0,max=10"`
}

type AppConfig struct {
	AppEnv   string `validate:"oneof=dev prod"`
	LogLevel slog.Level
	LogFile  string

	// LogMaxBackups is how many rotated log files are kept; 0 keeps all.
	LogMaxBackups int `validate:"gte=0"`
	LogMaxSizeMB  int `validate:"gt=0"`

	DB          DBConfig
	WeatherLink WeatherLinkConfig `validate:"-"`

	HTTPTimeout   time.Duration `validate:"gt=0"`
	CycleTimeout  time.Duration `validate:"gt=0"`
	HealthTimeout time.Duration `validate:"gt=0"`

	// FetchInterval controls how often the in-process scheduler runs a cycle.
	FetchInterval   time.Duration `validate:"gte=1m"`
	ScheduleEnabled bool

	Port            string `validate:"required,numeric"`
	AutoMigrate     bool
	MetricsTextfile string

	LocalTimezone *time.Location
	PlotWindow    time.Duration `validate:"gt=0"`
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}
	var err error

	cfg.AppEnv = getenvDefault("APP_ENV", "dev")
	cfg.LogLevel, err = ParseLogLevel(getenvDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogFile = strings.TrimSpace(os.Getenv("LOG_FILE"))
	cfg.LogMaxBackups = getenvInt("LOG_MAX_BACKUPS", 7)
	cfg.LogMaxSizeMB = getenvInt("LOG_MAX_SIZE_MB", 100)

	cfg.DB = DBConfig{
		Driver:       getenvDefault("DB_DRIVER", "mysql"),
		Host:         getenvDefault("DB_HOST", "localhost"),
		Port:         getenvInt("DB_PORT", 3306),
		User:         strings.TrimSpace(os.Getenv("DB_USER")),
		Password:     os.Getenv("DB_PASS"),
		Name:         strings.TrimSpace(os.Getenv("DB_NAME")),
		SQLitePath:   getenvDefault("SQLITE_PATH", "data/weather.db"),
		MaxOpenConns: getenvInt("DB_MAX_OPEN_CONNS", 1),
		MaxIdleConns: getenvInt("DB_MAX_IDLE_CONNS", 1),
	}
	if cfg.DB.ConnMaxLifetime, err = getenvDuration("DB_CONN_MAX_LIFETIME", "0s"); err != nil {
		return nil, err
	}

	cfg.WeatherLink = WeatherLinkConfig{
		BaseURL:    getenvDefault("WEATHERLINK_BASE_URL", "https://api.weatherlink.com/v2"),
		APIKey:     strings.TrimSpace(os.Getenv("API_KEY")),
		APISecret:  strings.TrimSpace(os.Getenv("API_SECRET")),
		StationID:  strings.TrimSpace(os.Getenv("STATION_ID")),
		MaxRetries: getenvInt("FETCH_MAX_RETRIES", 0),
	}

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.CycleTimeout, err = getenvDuration("CYCLE_TIMEOUT", "60s"); err != nil {
		return nil, err
	}
	if cfg.HealthTimeout, err = getenvDuration("HEALTH_TIMEOUT", "10s"); err != nil {
		return nil, err
	}

	// Scheduler interval: default 5 minutes.
	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", "5m"); err != nil {
		return nil, err
	}
	cfg.ScheduleEnabled = getenvBool("SCHEDULE_ENABLED", false)

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.AutoMigrate = getenvBool("AUTO_MIGRATE", true)
	cfg.MetricsTextfile = strings.TrimSpace(os.Getenv("METRICS_TEXTFILE"))

	tzName := getenvDefault("LOCAL_TIMEZONE", "America/Los_Angeles")
	cfg.LocalTimezone, err = time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid LOCAL_TIMEZONE %q: %w", tzName, err)
	}
	if cfg.PlotWindow, err = getenvDuration("PLOT_WINDOW", "12h"); err != nil {
		return nil, err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// RequireWeatherLink validates the station credentials for commands that fetch.
func (c *AppConfig) RequireWeatherLink() error {
	if err := validate.Struct(c.WeatherLink); err != nil {
		return fmt.Errorf("weatherlink configuration (API_KEY, API_SECRET, STATION_ID): %w", err)
	}
	return nil
}

// ParseLogLevel maps a LOG_LEVEL value onto a slog.Level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	s := getenvDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
