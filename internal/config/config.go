package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// Values come from config.yaml in the given path and are overridden by
// environment variables (server.address -> SERVER_ADDRESS).
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Database DatabaseConfig `mapstructure:"database"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	S3       S3Config       `mapstructure:"s3"`
	Audit    AuditConfig    `mapstructure:"audit"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// Record store backends.
const (
	BackendMongo  = "mongo"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

type StoreConfig struct {
	Backend string `mapstructure:"backend"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	Prefix          string `mapstructure:"prefix"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// Audit note backends. "store" keeps notes next to the records.
const (
	AuditBackendStore = "store"
	AuditBackendS3    = "s3"
)

type AuditConfig struct {
	Backend string `mapstructure:"backend"`
}

// JWTConfig enables bearer-token operator attribution when Secret is set.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type LedgerConfig struct {
	StudentRequiresCompletion bool `mapstructure:"student_requires_completion"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	// Every key gets a default so AutomaticEnv can override it during Unmarshal.
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("store.backend", BackendMongo)
	viper.SetDefault("database.uri", "mongodb://localhost:27017")
	viper.SetDefault("database.name", "equipment_app")
	viper.SetDefault("sqlite.path", "equipment.db")
	viper.SetDefault("s3.endpoint", "")
	viper.SetDefault("s3.region", "us-east-1")
	viper.SetDefault("s3.access_key_id", "")
	viper.SetDefault("s3.secret_access_key", "")
	viper.SetDefault("s3.bucket_name", "")
	viper.SetDefault("s3.prefix", "audit")
	viper.SetDefault("s3.use_ssl", true)
	viper.SetDefault("audit.backend", AuditBackendStore)
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("ledger.student_requires_completion", true)

	err = viper.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// No file; defaults and env vars only.
		err = nil
	} else if err != nil {
		return
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}
	if err = config.Validate(); err != nil {
		return
	}
	return config, nil
}

// Validate rejects unknown backends and missing settings they depend on.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendMongo:
		if c.Database.URI == "" || c.Database.Name == "" {
			return fmt.Errorf("config: database.uri and database.name are required for the mongo backend")
		}
	case BackendSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("config: sqlite.path is required for the sqlite backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("config: unknown store.backend %q", c.Store.Backend)
	}

	switch c.Audit.Backend {
	case AuditBackendStore:
	case AuditBackendS3:
		if c.S3.BucketName == "" {
			return fmt.Errorf("config: s3.bucket_name is required for the s3 audit backend")
		}
	default:
		return fmt.Errorf("config: unknown audit.backend %q", c.Audit.Backend)
	}
	return nil
}
