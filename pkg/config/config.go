package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const defaultConfigPath = "./config/local.yaml"

type Config struct {
	Env      string   `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTP     `yaml:"http"`
	Postgres PG       `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
	Kafka    Kafka    `yaml:"kafka"`
	Auth     Auth     `yaml:"auth"`
	Checkout Checkout `yaml:"checkout"`
	History  History  `yaml:"history"`
	Limiter  Limiter  `yaml:"limiter"`
	Logger   Logger   `yaml:"logger"`
	Tracing  Tracing  `yaml:"tracing"`
}

type HTTP struct {
	Port        string        `yaml:"port" env:"HTTP_PORT" env-default:":3000"`
	Timeout     time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"10s"`
	ReadTimeout time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"5s"`
}

type PG struct {
	URL      string `yaml:"url" env:"DB_URL"`
	MaxConns int32  `yaml:"max_conns" env:"DB_MAX_CONNS" env-default:"10"`
	MinConns int32  `yaml:"min_conns" env:"DB_MIN_CONNS" env-default:"2"`
}

type Redis struct {
	Enabled bool          `yaml:"enabled" env:"REDIS_ENABLED" env-default:"false"`
	Addr    string        `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	TTL     time.Duration `yaml:"ttl" env:"REDIS_TTL" env-default:"10m"`
}

type Kafka struct {
	Enabled bool     `yaml:"enabled" env:"KAFKA_ENABLED" env-default:"false"`
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:"," env-default:"localhost:9092"`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"order_events"`
}

type Auth struct {
	AccessSecret string `yaml:"access_secret" env:"ACCESS_SECRET"`
}

// Checkout.Atomic switches line writes from the concurrent best-effort mode
// to a single transaction that rolls back on any failed line.
type Checkout struct {
	Atomic bool `yaml:"atomic" env:"CHECKOUT_ATOMIC" env-default:"false"`
}

type History struct {
	Concurrency int `yaml:"concurrency" env:"HISTORY_CONCURRENCY" env-default:"8"`
}

type Limiter struct {
	Max        int           `yaml:"max" env:"LIMITER_MAX" env-default:"60"`
	Expiration time.Duration `yaml:"expiration" env:"LIMITER_EXPIRATION" env-default:"1m"`
}

type Logger struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

type Tracing struct {
	Enabled     bool    `yaml:"enabled" env:"TRACING_ENABLED" env-default:"false"`
	Endpoint    string  `yaml:"endpoint" env:"JAEGER_ENDPOINT" env-default:"localhost:4318"`
	SampleRatio float64 `yaml:"sample_ratio" env:"TRACING_SAMPLE_RATIO" env-default:"1"`
}

func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %q: %w", path, err)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	if strings.TrimSpace(cfg.Postgres.URL) == "" {
		return nil, fmt.Errorf("postgres url is required")
	}

	return &cfg, nil
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	return cfg
}
