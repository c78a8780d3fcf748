package app

import (
	"context"
	"fmt"
	"time"

	"alumnisync/internal/config"
	"alumnisync/internal/database"
	"alumnisync/internal/logging"
)

// App is the dependency container for the CLI application
type App struct {
	Store  *database.Store
	Config *config.Config
	Logger *logging.Logger
}

// NewApp initializes and returns a new App instance
func NewApp(ctx context.Context) (*App, error) {
	if err := config.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize config: %w", err)
	}

	store, err := database.Open(config.AppConfig.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &App{
		Store:  store,
		Config: config.AppConfig,
		Logger: logging.New(config.AppConfig.LogLevel),
	}, nil
}

// Close closes all resources
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// MinDelay is the configured lower pacing bound.
func (a *App) MinDelay() time.Duration {
	return time.Duration(a.Config.MinDelaySeconds) * time.Second
}

// MaxDelay is the configured upper pacing bound.
func (a *App) MaxDelay() time.Duration {
	return time.Duration(a.Config.MaxDelaySeconds) * time.Second
}

// PageTimeout is the configured per-page timeout.
func (a *App) PageTimeout() time.Duration {
	return time.Duration(a.Config.PageTimeoutSecs) * time.Second
}

// RunTimeout is the configured whole-run wall clock limit.
func (a *App) RunTimeout() time.Duration {
	return time.Duration(a.Config.RunTimeoutMinutes) * time.Minute
}

// LockTTL is the configured run lock expiry.
func (a *App) LockTTL() time.Duration {
	return time.Duration(a.Config.LockTTLMinutes) * time.Minute
}
