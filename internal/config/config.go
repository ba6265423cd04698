package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config собирает все настройки сервера из окружения.
type Config struct {
	Server      ServerConfig      `envPrefix:"SERVER_"`
	Storage     StorageConfig     `envPrefix:"STORAGE_"`
	Redis       RedisConfig       `envPrefix:"REDIS_"`
	Auth        AuthConfig        `envPrefix:"AUTH_"`
	Limits      LimitsConfig      `envPrefix:"LIMITS_"`
	Maintenance MaintenanceConfig `envPrefix:"MAINTENANCE_"`
	Log         LogConfig         `envPrefix:"LOG_"`
	Owner       OwnerConfig       `envPrefix:"OWNER_"`
}

type ServerConfig struct {
	Port            string        `env:"PORT" envDefault:"8765"`
	EvictOnRebind   bool          `env:"EVICT_ON_REBIND" envDefault:"false"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	ReadLimit       int64         `env:"READ_LIMIT" envDefault:"65536"`
	SendQueueSize   int           `env:"SEND_QUEUE_SIZE" envDefault:"256"`
	WriteWait       time.Duration `env:"WRITE_WAIT" envDefault:"10s"`
	PongWait        time.Duration `env:"PONG_WAIT" envDefault:"60s"`
	AuthTimeout     time.Duration `env:"AUTH_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type StorageConfig struct {
	Driver       string `env:"DRIVER" envDefault:"sqlite"`
	DSN          string `env:"DSN" envDefault:"artem_messenger.db"`
	MaxOpenConns int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns int    `env:"MAX_IDLE_CONNS" envDefault:"5"`
}

type RedisConfig struct {
	// Пустой URL включает лимитер в памяти процесса.
	URL string `env:"URL"`
}

type AuthConfig struct {
	JWTSecret         string        `env:"JWT_SECRET"`
	SessionTTL        time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	BcryptCost        int           `env:"BCRYPT_COST" envDefault:"10"`
	MinPasswordLength int           `env:"MIN_PASSWORD_LENGTH" envDefault:"6"`
}

type LimitsConfig struct {
	MaxMessageLength  int `env:"MAX_MESSAGE_LENGTH" envDefault:"4000"`
	MaxUsernameLength int `env:"MAX_USERNAME_LENGTH" envDefault:"32"`
	MessagesPerMinute int `env:"MESSAGES_PER_MINUTE" envDefault:"30"`
	HistoryLimit      int `env:"HISTORY_LIMIT" envDefault:"50"`
	SearchLimit       int `env:"SEARCH_LIMIT" envDefault:"20"`
	PreviewLength     int `env:"PREVIEW_LENGTH" envDefault:"50"`
}

type MaintenanceConfig struct {
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Pretty bool   `env:"PRETTY" envDefault:"false"`
}

// OwnerConfig задаёт учётку владельца, создаваемую при первом запуске.
type OwnerConfig struct {
	Username string `env:"USERNAME"`
	Tag      string `env:"TAG"`
	Password string `env:"PASSWORD"`
}

func (o OwnerConfig) Enabled() bool {
	return o.Username != "" && o.Tag != "" && o.Password != ""
}

// Load подхватывает .env.local или .env (если есть) и разбирает окружение.
func Load() (*Config, error) {
	if err := godotenv.Load(".env.local"); err != nil {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}
	return Parse()
}

// Parse читает только переменные окружения, без .env файлов.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("error getting env configs: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
