package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config carries everything the serve command wires together. Values come
// from an optional YAML file first, then environment variables override
// field by field, so a bare container with only env vars still works.
type Config struct {
	Port    string `yaml:"port"`
	GinMode string `yaml:"ginMode"`

	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`

	RabbitMQ struct {
		URI      string `yaml:"uri"`
		Exchange string `yaml:"exchange"`
	} `yaml:"rabbitmq"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`

	JWTSecret string `yaml:"jwtSecret"`

	Stream struct {
		PollInterval string `yaml:"pollInterval"`
		MaxLifetime  string `yaml:"maxLifetime"`
	} `yaml:"stream"`

	Timer struct {
		Tick        string `yaml:"tick"`
		QuestionGap string `yaml:"questionGap"`
	} `yaml:"timer"`

	Consul struct {
		Address        string `yaml:"address"`
		ServiceID      string `yaml:"serviceId"`
		ServiceName    string `yaml:"serviceName"`
		ServiceAddress string `yaml:"serviceAddress"`
	} `yaml:"consul"`
}

// Load builds the config from CONFIG_PATH (if set) and the environment.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.Port = envOr("PORT", defaultStr(cfg.Port, "8080"))
	cfg.GinMode = envOr("GIN_MODE", defaultStr(cfg.GinMode, "release"))
	cfg.Mongo.URI = envOr("MONGO_URI", defaultStr(cfg.Mongo.URI, "mongodb://localhost:27017"))
	cfg.Mongo.Database = envOr("MONGO_DATABASE", defaultStr(cfg.Mongo.Database, "quizblitz"))
	cfg.RabbitMQ.URI = envOr("RABBITMQ_URI", cfg.RabbitMQ.URI)
	cfg.RabbitMQ.Exchange = envOr("RABBITMQ_EXCHANGE", cfg.RabbitMQ.Exchange)
	cfg.Redis.Addr = envOr("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envOr("REDIS_PASSWORD", cfg.Redis.Password)
	if raw := os.Getenv("REDIS_DB"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			cfg.Redis.DB = n
		}
	}
	cfg.Redis.TTL = envOr("REDIS_TTL", cfg.Redis.TTL)
	cfg.JWTSecret = envOr("JWT_SECRET", defaultStr(cfg.JWTSecret, "quizblitz-dev-secret"))
	cfg.Stream.PollInterval = envOr("STREAM_POLL_INTERVAL", cfg.Stream.PollInterval)
	cfg.Stream.MaxLifetime = envOr("STREAM_MAX_LIFETIME", cfg.Stream.MaxLifetime)
	cfg.Timer.Tick = envOr("TIMER_TICK", cfg.Timer.Tick)
	cfg.Timer.QuestionGap = envOr("TIMER_QUESTION_GAP", cfg.Timer.QuestionGap)
	cfg.Consul.Address = envOr("CONSUL_ADDRESS", cfg.Consul.Address)
	cfg.Consul.ServiceID = envOr("CONSUL_SERVICE_ID", defaultStr(cfg.Consul.ServiceID, "quizblitz-service"))
	cfg.Consul.ServiceName = envOr("CONSUL_SERVICE_NAME", defaultStr(cfg.Consul.ServiceName, "quizblitz-service"))
	cfg.Consul.ServiceAddress = envOr("CONSUL_SERVICE_ADDRESS", defaultStr(cfg.Consul.ServiceAddress, "localhost"))

	return cfg, nil
}

// PollInterval is the poll-mode cadence for event delivery.
func (c Config) PollInterval() time.Duration {
	return durationOr(c.Stream.PollInterval, 2*time.Second)
}

// StreamMaxLifetime bounds every SSE connection.
func (c Config) StreamMaxLifetime() time.Duration {
	return durationOr(c.Stream.MaxLifetime, 5*time.Minute)
}

// TimerTick is the countdown resolution.
func (c Config) TimerTick() time.Duration {
	return durationOr(c.Timer.Tick, time.Second)
}

// QuestionGap is the reveal pause between question end and auto-advance.
func (c Config) QuestionGap() time.Duration {
	return durationOr(c.Timer.QuestionGap, 5*time.Second)
}

// RedisTTL bounds cached question snapshots.
func (c Config) RedisTTL() time.Duration {
	return durationOr(c.Redis.TTL, 10*time.Minute)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultStr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func durationOr(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
