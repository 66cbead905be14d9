// Package kafka provides a Kafka-based implementation of the event bus for
// asynchronous messaging.
package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/IBM/sarama"
)

// TLSConfig carries the optional TLS material for broker connections.
type TLSConfig struct {
	Enabled  bool
	CAFile   string
	CertFile string
	KeyFile  string
}

// SASLConfig carries the optional SASL credentials for broker connections.
// Mechanism defaults to SCRAM-SHA-512.
type SASLConfig struct {
	Enabled   bool
	Username  string
	Password  string
	Mechanism string
}

// ClientConfig contains all configuration needed for Kafka client setup.
type ClientConfig struct {
	Brokers     []string
	GroupID     string
	ClientID    string
	ServiceType string

	TLS  TLSConfig
	SASL SASLConfig
}

// NewClient creates and configures a Kafka client with the provided settings.
// It sets up consistent configuration for both the producer and consumer
// roles so a single client can back both.
func NewClient(cfg *ClientConfig) (sarama.Client, error) {
	config := sarama.NewConfig()
	config.ClientID = cfg.ClientID

	// Consumer settings. Offsets are committed manually, only after a message
	// has been fully processed.
	config.Consumer.Return.Errors = true
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Group.Session.Timeout = 20 * time.Second
	config.Consumer.Group.Heartbeat.Interval = 6 * time.Second
	config.Consumer.Group.Member.UserData = []byte(cfg.ClientID)
	config.Consumer.Offsets.AutoCommit.Enable = false

	// Producer settings. Publication blocks until the broker acknowledges
	// receipt so callers can distinguish "accepted" from "lost before send".
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Return.Successes = true
	config.Producer.Partitioner = sarama.NewHashPartitioner

	// Version should be consistent across all components.
	config.Version = sarama.V3_6_0_0

	if cfg.TLS.Enabled {
		tlsConfig, err := buildTLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("configuring kafka tls: %w", err)
		}
		config.Net.TLS.Enable = true
		config.Net.TLS.Config = tlsConfig
	}

	if cfg.SASL.Enabled {
		if err := applySASLConfig(config, cfg.SASL); err != nil {
			return nil, fmt.Errorf("configuring kafka sasl: %w", err)
		}
	}

	return sarama.NewClient(cfg.Brokers, config)
}

func buildTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.CAFile != "" {
		caCert, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("reading ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.CAFile)
		}
		tlsConfig.RootCAs = pool
	}

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("loading client key pair: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

func applySASLConfig(config *sarama.Config, cfg SASLConfig) error {
	config.Net.SASL.Enable = true
	config.Net.SASL.User = cfg.Username
	config.Net.SASL.Password = cfg.Password

	mechanism := cfg.Mechanism
	if mechanism == "" {
		mechanism = sarama.SASLTypeSCRAMSHA512
	}

	switch mechanism {
	case sarama.SASLTypeSCRAMSHA512:
		config.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
		config.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
			return &scramClient{hashGeneratorFcn: sha512HashGenerator}
		}
	case sarama.SASLTypeSCRAMSHA256:
		config.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
		config.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
			return &scramClient{hashGeneratorFcn: sha256HashGenerator}
		}
	case sarama.SASLTypePlaintext:
		config.Net.SASL.Mechanism = sarama.SASLTypePlaintext
	default:
		return fmt.Errorf("unsupported sasl mechanism %q", mechanism)
	}

	return nil
}
