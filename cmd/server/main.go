package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ilyakaznacheev/cleanenv"

	"github.com/obrahub/obradocs/internal/migrate"
	"github.com/obrahub/obradocs/pkg/obradocs/api"
	"github.com/obrahub/obradocs/pkg/obradocs/auth"
	"github.com/obrahub/obradocs/pkg/obradocs/config"
)

type EnvConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`

	DatabaseURL string `env:"DATABASE_URL" env-default:""`

	Storage  StorageEnv
	Identity IdentityEnv

	EnableObjectCheck  bool `env:"ENABLE_OBJECT_CHECK" env-default:"false"`
	EnableCompensation bool `env:"ENABLE_COMPENSATION" env-default:"false"`
	RunMigrations      bool `env:"RUN_MIGRATIONS" env-default:"false"`
}

type StorageEnv struct {
	Endpoint        string `env:"R2_ENDPOINT"`
	Bucket          string `env:"R2_BUCKET"`
	AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"R2_SECRET_ACCESS_KEY"`
}

type IdentityEnv struct {
	BaseURL string `env:"IDENTITY_URL"`
	AnonKey string `env:"IDENTITY_ANON_KEY"`
}

func main() {
	var env EnvConfig
	if err := cleanenv.ReadEnv(&env); err != nil {
		slog.Error("failed to read environment", "err", err)
		os.Exit(1)
	}

	databaseType := "memory"
	if env.DatabaseURL != "" {
		databaseType = "postgres"
	}

	cfg, err := config.Load(func(c *config.ServerConfig) error {
		c.Port = env.Port
		c.Environment = env.Environment
		c.DatabaseType = databaseType
		c.DatabaseURL = env.DatabaseURL
		c.Storage = config.StorageConfig{
			Endpoint:        env.Storage.Endpoint,
			Bucket:          env.Storage.Bucket,
			AccessKeyID:     env.Storage.AccessKeyID,
			SecretAccessKey: env.Storage.SecretAccessKey,
		}
		c.Identity = config.IdentityConfig{
			BaseURL: env.Identity.BaseURL,
			AnonKey: env.Identity.AnonKey,
		}
		c.EnableObjectCheck = env.EnableObjectCheck
		c.EnableCompensation = env.EnableCompensation
		return nil
	})
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	if cfg.DatabaseType == "postgres" {
		if err := config.PingPostgres(cfg.DatabaseURL); err != nil {
			slog.Error("database unreachable", "err", err)
			os.Exit(1)
		}
		if env.RunMigrations {
			if err := migrate.Up(context.Background(), cfg.DatabaseURL); err != nil {
				slog.Error("migrations failed", "err", err)
				os.Exit(1)
			}
		}
	}

	svc, err := cfg.BuildService()
	if err != nil {
		slog.Error("failed to build service", "err", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(api.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api/v1/documents", func(r chi.Router) {
		r.Use(auth.Middleware(cfg.BuildVerifier()))
		r.Mount("/", api.NewDocumentsHandler(svc).Routes())
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: r,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "err", err)
		os.Exit(1)
	}

	slog.Info("server exited")
}
