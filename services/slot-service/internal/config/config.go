package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	libconfig "github.com/md-rashed-zaman/apptslots/libs/config"
)

const (
	TransportKafka = "kafka"
	TransportAMQP  = "amqp"
	TransportNone  = "none"
)

type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"slot-service"`
	HTTPPort    string `env:"PORT" envDefault:"8080"`
	GRPCPort    string `env:"GRPC_PORT" envDefault:"9090"`
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	RedisURL    string `env:"REDIS_URL"`

	Slots struct {
		QueryTimeout     time.Duration `env:"SLOTS_QUERY_TIMEOUT" envDefault:"5s"`
		TypeCacheSize    int           `env:"SLOTS_TYPE_CACHE_SIZE" envDefault:"512"`
		TypeCacheTTL     time.Duration `env:"SLOTS_TYPE_CACHE_TTL" envDefault:"1m"`
		IntervalCacheTTL time.Duration `env:"SLOTS_INTERVAL_CACHE_TTL" envDefault:"10m"`
	}

	Events struct {
		Transport     string   `env:"INVALIDATION_TRANSPORT" envDefault:"kafka"`
		KafkaBrokers  []string `env:"KAFKA_BROKERS" envSeparator:","`
		KafkaGroupID  string   `env:"KAFKA_GROUP_ID" envDefault:"slot-service"`
		TypeTopic     string   `env:"KAFKA_TYPE_TOPIC" envDefault:"appointment.type.changed.v1"`
		CalendarTopic string   `env:"KAFKA_CALENDAR_TOPIC" envDefault:"calendar.changed.v1"`
		AMQPURL       string   `env:"AMQP_URL"`
		AMQPExchange  string   `env:"AMQP_EXCHANGE" envDefault:"apptslots.events"`
		AMQPQueue     string   `env:"AMQP_QUEUE" envDefault:"slot-service.invalidation"`
	}

	HTTP struct {
		RateLimitPerMinute int      `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120"`
		CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	}

	Admin struct {
		JWTSecret string `env:"ADMIN_JWT_SECRET"`
		JWKSURL   string `env:"ADMIN_JWKS_URL"`
	}

	Google struct {
		ClientID     string `env:"GOOGLE_CLIENT_ID"`
		ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
		RefreshToken string `env:"GOOGLE_REFRESH_TOKEN"`
	}
}

// Load reads an optional .env file, then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := libconfig.CheckPort("PORT", c.HTTPPort); err != nil {
		return err
	}
	if err := libconfig.CheckPort("GRPC_PORT", c.GRPCPort); err != nil {
		return err
	}
	if c.Slots.QueryTimeout <= 0 {
		return fmt.Errorf("SLOTS_QUERY_TIMEOUT must be positive")
	}
	if c.Slots.TypeCacheSize < 0 {
		return fmt.Errorf("SLOTS_TYPE_CACHE_SIZE must not be negative")
	}
	switch c.Events.Transport {
	case TransportKafka:
		if len(c.Events.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when INVALIDATION_TRANSPORT=kafka")
		}
	case TransportAMQP:
		if c.Events.AMQPURL == "" {
			return fmt.Errorf("AMQP_URL is required when INVALIDATION_TRANSPORT=amqp")
		}
	case TransportNone:
	default:
		return fmt.Errorf("INVALIDATION_TRANSPORT must be one of kafka, amqp, none (got %q)", c.Events.Transport)
	}
	return nil
}

// GoogleEnabled reports whether Google Calendar meetings should be merged in.
func (c Config) GoogleEnabled() bool {
	return c.Google.ClientID != "" && c.Google.ClientSecret != "" && c.Google.RefreshToken != ""
}
