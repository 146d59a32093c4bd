// Package config handles configuration loading for the integration
// services.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax). This allows sensitive values
// like database credentials and the key encryption key to be injected at
// runtime.
//
// # Configuration Sections
//
//   - server: AS2 receive endpoint (listen address, path, TLS)
//   - local: our AS2 identity (id, message-id domain, MDN address)
//   - storage: Database connection (MongoDB URI, database name)
//   - keys: private key encryption at rest
//   - delivery: outbound queue sweep interval, concurrency, retry budget
//   - polling: default poll interval for inbound jobs
//   - retention: transport log retention window
//
// # Example Configuration
//
//	server:
//	  addr: ":8443"
//	  path: /as2
//	  tls:
//	    enabled: true
//	    certFile: /etc/ssl/server.crt
//	    keyFile: /etc/ssl/server.key
//
//	local:
//	  as2Id: MYCOMPANY-AS2
//	  domain: edi.mycompany.example
//	  mdnAddress: https://edi.mycompany.example/as2
//
//	storage:
//	  mongodb:
//	    uri: ${MONGODB_URI}
//	    database: edi
//
//	keys:
//	  encryptionKey: ${EDI_KEY_ENCRYPTION_KEY}
//
// See [Load] for loading configuration from a file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Local     LocalConfig     `yaml:"local"`
	Storage   StorageConfig   `yaml:"storage"`
	Keys      KeysConfig      `yaml:"keys"`
	Delivery  DeliveryConfig  `yaml:"delivery"`
	Polling   PollingConfig   `yaml:"polling"`
	Retention RetentionConfig `yaml:"retention"`
}

// ServerConfig holds the AS2 receive endpoint settings
type ServerConfig struct {
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
	TLS  struct {
		Enabled  bool   `yaml:"enabled"`
		CertFile string `yaml:"certFile"`
		KeyFile  string `yaml:"keyFile"`
	} `yaml:"tls"`
}

// LocalConfig holds our AS2 identity
type LocalConfig struct {
	AS2ID string `yaml:"as2Id"`
	// TenantID scopes the delivery queue and poll jobs this process serves.
	TenantID string `yaml:"tenantId"`
	// Domain is the right-hand side of generated Message-Id values
	Domain string `yaml:"domain"`
	// MDNAddress is where partners deliver asynchronous receipts
	MDNAddress string `yaml:"mdnAddress"`
}

// StorageConfig holds database settings
type StorageConfig struct {
	MongoDB MongoDBConfig `yaml:"mongodb"`
}

// MongoDBConfig holds MongoDB connection settings
type MongoDBConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// KeysConfig holds private key protection settings
type KeysConfig struct {
	// EncryptionKey seals stored private keys when set. Usually an
	// env var reference like ${EDI_KEY_ENCRYPTION_KEY}.
	EncryptionKey string `yaml:"encryptionKey"`
}

// DeliveryConfig holds outbound queue settings
type DeliveryConfig struct {
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
	MaxAttempts int           `yaml:"maxAttempts"`
	Compress    bool          `yaml:"compress"`
}

// PollingConfig holds inbound polling settings
type PollingConfig struct {
	DefaultInterval time.Duration `yaml:"defaultInterval"`
}

// RetentionConfig holds transport log retention settings
type RetentionConfig struct {
	// TransportLog is how long log entries are kept. Zero disables
	// the retention sweep.
	TransportLog time.Duration `yaml:"transportLog"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8443"
	}
	if c.Server.Path == "" {
		c.Server.Path = "/as2"
	}
	if c.Local.TenantID == "" {
		c.Local.TenantID = "default"
	}
	if c.Storage.MongoDB.Database == "" {
		c.Storage.MongoDB.Database = "edi"
	}
	if c.Delivery.Interval == 0 {
		c.Delivery.Interval = 5 * time.Second
	}
	if c.Delivery.Concurrency == 0 {
		c.Delivery.Concurrency = 4
	}
	if c.Delivery.MaxAttempts == 0 {
		c.Delivery.MaxAttempts = 5
	}
	if c.Polling.DefaultInterval == 0 {
		c.Polling.DefaultInterval = time.Minute
	}
	if c.Retention.TransportLog == 0 {
		c.Retention.TransportLog = 90 * 24 * time.Hour
	}
}

func (c *Config) validate() error {
	if c.Local.AS2ID == "" {
		return fmt.Errorf("local.as2Id is required")
	}
	if c.Local.Domain == "" {
		return fmt.Errorf("local.domain is required")
	}
	if c.Storage.MongoDB.URI == "" {
		return fmt.Errorf("storage.mongodb.uri is required")
	}
	if c.Server.TLS.Enabled && (c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "") {
		return fmt.Errorf("server.tls.certFile and keyFile are required when TLS is enabled")
	}
	return nil
}
