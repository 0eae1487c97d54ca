// Package config assembles a fully wired document service from explicit
// configuration. All settings are validated eagerly at load time so a
// misconfigured server fails at startup, not on the first request.
package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/obrahub/obradocs/pkg/obradocs"
	"github.com/obrahub/obradocs/pkg/obradocs/auth"
	"github.com/obrahub/obradocs/pkg/obradocs/repo/memory"
	repopg "github.com/obrahub/obradocs/pkg/obradocs/repo/postgres"
	"github.com/obrahub/obradocs/pkg/obradocs/sigv4"
	s3storage "github.com/obrahub/obradocs/pkg/obradocs/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of
// library defaults, then validates the result.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:         "8080",
		Environment:  "development",
		DatabaseType: "memory",
	}
}

// ServerConfig represents server configuration for the document service.
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"

	// Object storage configuration
	Storage StorageConfig

	// Identity provider configuration
	Identity IdentityConfig

	// EnableObjectCheck verifies uploaded objects against the store during
	// confirmation.
	EnableObjectCheck bool

	// EnableCompensation deletes the document row when file registration
	// fails partway through an upload intent.
	EnableCompensation bool
}

// StorageConfig holds the S3-compatible endpoint the service signs URLs for.
type StorageConfig struct {
	Endpoint        string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
}

// IdentityConfig points at the identity provider used to resolve bearer
// tokens into user identities.
type IdentityConfig struct {
	BaseURL string
	AnonKey string
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}
	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	if c.Storage.Endpoint == "" {
		return errors.New("storage endpoint is required")
	}
	if c.Storage.Bucket == "" {
		return errors.New("storage bucket is required")
	}
	if c.Storage.AccessKeyID == "" || c.Storage.SecretAccessKey == "" {
		return errors.New("storage credentials are required")
	}

	if c.Identity.BaseURL == "" {
		return errors.New("identity base URL is required")
	}
	if c.Identity.AnonKey == "" {
		return errors.New("identity anon key is required")
	}

	return nil
}

// BuildService creates a Service instance from the server configuration.
func (c *ServerConfig) BuildService() (obradocs.Service, error) {
	repo, err := c.buildRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}

	signer := &sigv4.Signer{
		Endpoint:        c.Storage.Endpoint,
		Bucket:          c.Storage.Bucket,
		AccessKeyID:     c.Storage.AccessKeyID,
		SecretAccessKey: c.Storage.SecretAccessKey,
	}

	options := []obradocs.Option{
		obradocs.WithRepository(repo),
		obradocs.WithSigner(signer),
		obradocs.WithBucket(c.Storage.Bucket),
	}

	if c.EnableObjectCheck {
		store, err := s3storage.New(s3storage.Config{
			Endpoint:        c.Storage.Endpoint,
			Bucket:          c.Storage.Bucket,
			AccessKeyID:     c.Storage.AccessKeyID,
			SecretAccessKey: c.Storage.SecretAccessKey,
			UsePathStyle:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build object store: %w", err)
		}
		options = append(options, obradocs.WithObjectStore(store))
	}

	if c.EnableCompensation {
		options = append(options, obradocs.WithCompensation())
	}

	return obradocs.New(options...)
}

// BuildVerifier creates the token verifier backing the authorization gate.
func (c *ServerConfig) BuildVerifier() auth.Verifier {
	return auth.NewHTTPVerifier(c.Identity.BaseURL, c.Identity.AnonKey)
}

// buildRepository creates a Repository based on the configuration.
func (c *ServerConfig) buildRepository() (obradocs.Repository, error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil
	case "postgres":
		pool, err := pgxpool.New(context.Background(), c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		return repopg.NewWithPool(pool), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// PingPostgres verifies connectivity to Postgres before the server starts
// taking traffic.
func PingPostgres(databaseURL string) error {
	if databaseURL == "" {
		return errors.New("database_url is required")
	}
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create pgx pool: %w", err)
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
