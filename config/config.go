package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

const EnvPrefix = "LISTENTOME"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Game     GameConfig     `mapstructure:"game"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	HTTPAddress      string        `mapstructure:"http_address"`
	RPCAddress       string        `mapstructure:"rpc_address"`
	GRPCAddress      string        `mapstructure:"grpc_address"`
	MetricsNamespace string        `mapstructure:"metrics_namespace"`
	Heartbeat        time.Duration `mapstructure:"heartbeat"`
}

// GameConfig holds the per-room rules and phase deadlines.
type GameConfig struct {
	MinPlayers      int           `mapstructure:"min_players"`
	MaxPlayers      int           `mapstructure:"max_players"`
	TurnTimeout     time.Duration `mapstructure:"turn_timeout"`
	ResponseTimeout time.Duration `mapstructure:"response_timeout"`
	ViewTimeout     time.Duration `mapstructure:"view_timeout"`
	CleanupDelay    time.Duration `mapstructure:"cleanup_delay"`
}

type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

const (
	DriverMemory   = "memory"
	DriverGorm     = "gorm"
	DriverPostgres = "postgres"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":9090")
	v.SetDefault("server.grpc_address", ":9091")
	v.SetDefault("server.metrics_namespace", "listentome")
	v.SetDefault("server.heartbeat", "60s")

	v.SetDefault("game.min_players", 3)
	v.SetDefault("game.max_players", 8)
	v.SetDefault("game.turn_timeout", "60s")
	v.SetDefault("game.response_timeout", "30s")
	v.SetDefault("game.view_timeout", "15s")
	v.SetDefault("game.cleanup_delay", "10s")

	v.SetDefault("database.driver", DriverMemory)
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.dbname", "listentome")
	v.SetDefault("database.postgres.sslmode", "disable")

	v.SetDefault("log.level", "info")
}

// LoadConfig reads config.yaml from path (if present), then .env and
// LISTENTOME_* environment variables on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	g := c.Game
	if g.MinPlayers < 3 {
		return fmt.Errorf("game.min_players must be at least 3, got %d", g.MinPlayers)
	}
	if g.MaxPlayers > 8 || g.MaxPlayers < g.MinPlayers {
		return fmt.Errorf("game.max_players must be between %d and 8, got %d", g.MinPlayers, g.MaxPlayers)
	}
	if g.TurnTimeout <= 0 || g.ResponseTimeout <= 0 || g.ViewTimeout <= 0 {
		return errors.New("game timeouts must be positive")
	}
	if c.Server.Heartbeat < 0 {
		return errors.New("server.heartbeat must not be negative")
	}
	if g.CleanupDelay < 0 {
		return errors.New("game.cleanup_delay must not be negative")
	}
	if c.Log.Level != "" {
		if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
			return fmt.Errorf("log.level: %w", err)
		}
	}
	switch c.Database.Driver {
	case DriverMemory, DriverGorm, DriverPostgres:
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	return nil
}

// DSN renders the libpq connection string shared by both postgres drivers.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}
