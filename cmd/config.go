package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	HTTPPort string `env:"HTTP_PORT" env-default:"8080"`

	// StoreDriver selects the order store and courier directory.
	StoreDriver         string `env:"STORE_DRIVER" env-default:"postgres"`
	DBHost              string `env:"DB_HOST" env-default:"localhost"`
	DBPort              string `env:"DB_PORT" env-default:"5432"`
	DBUser              string `env:"DB_USER" env-default:"postgres"`
	DBPassword          string `env:"DB_PASSWORD"`
	DBName              string `env:"DB_NAME" env-default:"dispatch"`
	DBSslMode           string `env:"DB_SSLMODE" env-default:"disable"`
	OrdersNotifyChannel string `env:"ORDERS_NOTIFY_CHANNEL" env-default:"orders_changed"`

	// RedisURL enables Redis presence and session markers, e.g.
	// redis://:password@localhost:6379/0. Empty keeps them in memory.
	RedisURL   string        `env:"REDIS_URL"`
	SessionTTL time.Duration `env:"SESSION_TTL" env-default:"24h"`

	// KafkaBrokers enables order change events. Empty disables publishing.
	KafkaBrokers           []string `env:"KAFKA_BROKERS" env-separator:","`
	KafkaOrderChangedTopic string   `env:"KAFKA_ORDER_CHANGED_TOPIC" env-default:"orders.changed"`

	ValidityCheckInterval time.Duration `env:"VALIDITY_CHECK_INTERVAL" env-default:"30s"`
	RefetchDelay          time.Duration `env:"REFETCH_DELAY" env-default:"500ms"`
	ShutdownTimeout       time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"10s"`

	// SeedDemo adds a demo courier and offers at startup.
	SeedDemo bool `env:"SEED_DEMO" env-default:"false"`

	LogLevel string `env:"LOG_LEVEL" env-default:"info"`
}

// LoadConfig reads .env when present, then the environment.
func LoadConfig(dotenvFiles ...string) (Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	if err := godotenv.Load(dotenvFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read env variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var err error
	if c.StoreDriver != StoreDriverPostgres && c.StoreDriver != StoreDriverMemory {
		err = errors.Join(err, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q",
			StoreDriverPostgres, StoreDriverMemory, c.StoreDriver))
	}
	if c.ValidityCheckInterval <= 0 {
		err = errors.Join(err, errors.New("VALIDITY_CHECK_INTERVAL must be positive"))
	}
	if c.RefetchDelay <= 0 {
		err = errors.Join(err, errors.New("REFETCH_DELAY must be positive"))
	}
	return err
}
