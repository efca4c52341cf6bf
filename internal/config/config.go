package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/bassista/tasksync/internal/logger"
	"github.com/bassista/tasksync/internal/storage"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Remote  RemoteConfig
	Sync    SyncConfig
	Log     LogConfig
	Misc    MiscConfig
}

type ServerConfig struct {
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ShutDownTimeout    time.Duration
	RequestTimeout     time.Duration
	CORSAllowedOrigins string
}

type StorageConfig struct {
	Engine string
	Path   string
	Watch  bool
}

type RemoteConfig struct {
	Latency     time.Duration
	FailureRate float64
	Seed        bool
}

type SyncConfig struct {
	// RefreshInterval is the period of the background force-refresh. Zero disables it.
	RefreshInterval         time.Duration
	MarkDirtyOnWriteFailure bool
}

type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type MiscConfig struct {
	GinMode        string
	HoneybadgerKey string
	HoneybadgerEnv string
}

// LoadConfig reads config.yaml from confPath (if present), then .env, then the
// environment. Variables like TASKSYNC_SERVER_PORT override server.port.
func LoadConfig(confPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(confPath)
	setDefaults()

	viper.SetEnvPrefix("TASKSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config file error: %w", err)
		}
		logger.WithComponent("config").Info("No config file found, using defaults and env vars")
	}

	port, err := getEnvOrViperPort("PORT", "server.port")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               port,
			ReadTimeout:        viper.GetDuration("server.read_timeout"),
			WriteTimeout:       viper.GetDuration("server.write_timeout"),
			IdleTimeout:        viper.GetDuration("server.idle_timeout"),
			ShutDownTimeout:    viper.GetDuration("server.shutdown_timeout"),
			RequestTimeout:     viper.GetDuration("server.request_timeout"),
			CORSAllowedOrigins: viper.GetString("server.cors_allowed_origins"),
		},
		Storage: StorageConfig{
			Engine: viper.GetString("storage.engine"),
			Path:   viper.GetString("storage.path"),
			Watch:  viper.GetBool("storage.watch"),
		},
		Remote: RemoteConfig{
			Latency:     viper.GetDuration("remote.latency"),
			FailureRate: viper.GetFloat64("remote.failure_rate"),
			Seed:        viper.GetBool("remote.seed"),
		},
		Sync: SyncConfig{
			RefreshInterval:         viper.GetDuration("sync.refresh_interval"),
			MarkDirtyOnWriteFailure: viper.GetBool("sync.mark_dirty_on_write_failure"),
		},
		Log: LogConfig{
			Level:      getEnvOrDefault("LOG_LEVEL", viper.GetString("log.level")),
			File:       viper.GetString("log.file"),
			MaxSizeMB:  viper.GetInt("log.max_size_mb"),
			MaxBackups: viper.GetInt("log.max_backups"),
			MaxAgeDays: viper.GetInt("log.max_age_days"),
		},
		Misc: MiscConfig{
			GinMode:        viper.GetString("misc.gin_mode"),
			HoneybadgerKey: getEnvOrDefault("HONEYBADGER_API_KEY", viper.GetString("misc.honeybadger_api_key")),
			HoneybadgerEnv: getEnvOrDefault("GO_ENV", viper.GetString("misc.honeybadger_env")),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 10*time.Second)
	viper.SetDefault("server.write_timeout", 0)
	viper.SetDefault("server.idle_timeout", 120*time.Second)
	viper.SetDefault("server.shutdown_timeout", 5*time.Second)
	viper.SetDefault("server.request_timeout", 10*time.Second)
	viper.SetDefault("server.cors_allowed_origins", "*")

	viper.SetDefault("storage.engine", storage.EngineJSON)
	viper.SetDefault("storage.path", "./data/tasks.json")
	viper.SetDefault("storage.watch", true)

	viper.SetDefault("remote.latency", 2*time.Second)
	viper.SetDefault("remote.failure_rate", 0.0)
	viper.SetDefault("remote.seed", true)

	viper.SetDefault("sync.refresh_interval", 0)
	viper.SetDefault("sync.mark_dirty_on_write_failure", false)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.max_size_mb", 10)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age_days", 28)

	viper.SetDefault("misc.gin_mode", gin.ReleaseMode)
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.IdleTimeout < 0 {
		return errors.New("server timeouts must not be negative")
	}
	if c.Server.ShutDownTimeout <= 0 {
		return errors.New("server.shutdown_timeout must be positive")
	}
	if c.Server.RequestTimeout < 0 {
		return errors.New("server.request_timeout must not be negative")
	}

	switch c.Storage.Engine {
	case storage.EngineJSON, storage.EngineSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the %s engine", c.Storage.Engine)
		}
	case storage.EngineMemory:
	default:
		return fmt.Errorf("storage.engine must be one of %s, %s, %s, got %q",
			storage.EngineJSON, storage.EngineSQLite, storage.EngineMemory, c.Storage.Engine)
	}

	if c.Remote.Latency < 0 {
		return errors.New("remote.latency must not be negative")
	}
	if c.Remote.FailureRate < 0 || c.Remote.FailureRate > 1 {
		return fmt.Errorf("remote.failure_rate must be between 0 and 1, got %v", c.Remote.FailureRate)
	}
	if c.Sync.RefreshInterval < 0 {
		return errors.New("sync.refresh_interval must not be negative")
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.File != "" && c.Log.MaxSizeMB <= 0 {
		return errors.New("log.max_size_mb must be positive when log.file is set")
	}

	switch c.Misc.GinMode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
	default:
		return fmt.Errorf("misc.gin_mode must be one of debug, release, test, got %q", c.Misc.GinMode)
	}
	return nil
}

func getEnvOrDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// getEnvOrViperPort prefers a bare port variable (as set by most PaaS hosts)
// over the configured value.
func getEnvOrViperPort(envKey, viperKey string) (int, error) {
	if v := os.Getenv(envKey); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", envKey, err)
		}
		return port, nil
	}
	return viper.GetInt(viperKey), nil
}
