package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOptions() Option {
	return func(c *ServerConfig) error {
		c.Storage = StorageConfig{
			Endpoint:        "https://acct.r2.cloudflarestorage.com",
			Bucket:          "obradocs",
			AccessKeyID:     "key",
			SecretAccessKey: "secret",
		}
		c.Identity = IdentityConfig{
			BaseURL: "https://project.supabase.co",
			AnonKey: "anon",
		}
		return nil
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(validOptions())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "memory", cfg.DatabaseType)
	assert.False(t, cfg.EnableObjectCheck)
	assert.False(t, cfg.EnableCompensation)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr string
	}{
		{"empty port", func(c *ServerConfig) { c.Port = "" }, "port is required"},
		{"bad database type", func(c *ServerConfig) { c.DatabaseType = "sqlite" }, "database_type"},
		{"postgres without url", func(c *ServerConfig) { c.DatabaseType = "postgres" }, "database_url is required"},
		{"missing endpoint", func(c *ServerConfig) { c.Storage.Endpoint = "" }, "storage endpoint"},
		{"missing bucket", func(c *ServerConfig) { c.Storage.Bucket = "" }, "storage bucket"},
		{"missing credentials", func(c *ServerConfig) { c.Storage.SecretAccessKey = "" }, "storage credentials"},
		{"missing identity url", func(c *ServerConfig) { c.Identity.BaseURL = "" }, "identity base URL"},
		{"missing anon key", func(c *ServerConfig) { c.Identity.AnonKey = "" }, "identity anon key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(validOptions(), func(c *ServerConfig) error {
				tt.mutate(c)
				return nil
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBuildServiceWithMemoryRepository(t *testing.T) {
	cfg, err := Load(validOptions())
	require.NoError(t, err)

	svc, err := cfg.BuildService()
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestBuildVerifier(t *testing.T) {
	cfg, err := Load(validOptions())
	require.NoError(t, err)
	assert.NotNil(t, cfg.BuildVerifier())
}
