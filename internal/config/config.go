// Package config loads the service configuration from environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the bioscope core service.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	Port            int
	Env             string
	ShutdownTimeout time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int
}

type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
}

type RedisConfig struct {
	URL string
}

// KafkaConfig carries broker connectivity and the classification topic
// layout.
type KafkaConfig struct {
	Brokers     []string
	GroupID     string
	ClientID    string
	JobTopic    string
	ResultTopic string

	TLSEnabled bool
	TLSCAFile  string
	TLSCert    string
	TLSKey     string

	SASLEnabled   bool
	SASLUsername  string
	SASLPassword  string
	SASLMechanism string
}

type TelemetryConfig struct {
	Enabled          bool
	ExporterEndpoint string
	SampleProb       float64
	InsecureExporter bool
}

// Load reads configuration from environment variables and returns a
// validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            envInt("BIOSCOPE_PORT", 8080),
			Env:             envString("BIOSCOPE_ENV", "development"),
			ShutdownTimeout: envDuration("BIOSCOPE_SHUTDOWN_TIMEOUT", 20*time.Second),
			RateLimitRPS:    envFloat("BIOSCOPE_RATE_LIMIT_RPS", 50),
			RateLimitBurst:  envInt("BIOSCOPE_RATE_LIMIT_BURST", 100),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Kafka: KafkaConfig{
			Brokers:     strings.Split(envString("KAFKA_BROKERS", "localhost:9092"), ","),
			GroupID:     envString("KAFKA_GROUP_ID", "classification-result-group"),
			ClientID:    envString("KAFKA_CLIENT_ID", "bioscope-core"),
			JobTopic:    envString("KAFKA_JOB_TOPIC", "classification-job"),
			ResultTopic: envString("KAFKA_RESULT_TOPIC", "classification-result"),

			TLSEnabled: envBool("KAFKA_TLS_ENABLED", false),
			TLSCAFile:  os.Getenv("KAFKA_TLS_CA_FILE"),
			TLSCert:    os.Getenv("KAFKA_TLS_CERT_FILE"),
			TLSKey:     os.Getenv("KAFKA_TLS_KEY_FILE"),

			SASLEnabled:   envBool("KAFKA_SASL_ENABLED", false),
			SASLUsername:  os.Getenv("KAFKA_SASL_USERNAME"),
			SASLPassword:  os.Getenv("KAFKA_SASL_PASSWORD"),
			SASLMechanism: os.Getenv("KAFKA_SASL_MECHANISM"),
		},
		Telemetry: TelemetryConfig{
			Enabled:          envBool("OTEL_ENABLED", false),
			ExporterEndpoint: envString("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
			SampleProb:       envFloat("OTEL_SAMPLE_PROBABILITY", 1.0),
			InsecureExporter: envBool("OTEL_INSECURE_EXPORTER", true),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if len(c.Kafka.Brokers) == 0 || c.Kafka.Brokers[0] == "" {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.Kafka.SASLEnabled && (c.Kafka.SASLUsername == "" || c.Kafka.SASLPassword == "") {
		return fmt.Errorf("KAFKA_SASL_USERNAME and KAFKA_SASL_PASSWORD are required when KAFKA_SASL_ENABLED is true")
	}
	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
