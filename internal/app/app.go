package app

import (
	"context"
	"log/slog"

	msql "reai-timetracker/internal/adapter/mysql"
	"reai-timetracker/internal/adapter/reai"
	"reai-timetracker/internal/config"
	"reai-timetracker/internal/migrate"
	"reai-timetracker/internal/usecase"
)

// App wires the adapters and the tracker service.
type App struct {
	log   *slog.Logger
	cfg   *config.Config
	store *msql.Store
	svc   *usecase.TrackerService
}

func New(ctx context.Context, log *slog.Logger, cfg *config.Config) (*App, error) {
	// Run migrations before opening the store for use.
	if err := migrate.Run(ctx, cfg.MySQL.DSN, log); err != nil {
		return nil, err
	}
	store, err := msql.NewStore(ctx, cfg.MySQL.DSN, log)
	if err != nil {
		return nil, err
	}

	directory := reai.NewClient(cfg.ReAI.BaseURL, cfg.ReAI.APISecret, reai.Options{
		DialTimeout: cfg.ReAI.DialTimeout,
		Timeout:     cfg.ReAI.Timeout,
	}, log)

	svc := &usecase.TrackerService{
		Log:             log,
		Store:           store,
		Directory:       directory,
		Loc:             cfg.Location(),
		AutoStopOnStart: cfg.Timer.AutoStopOnStart,
	}

	return &App{log: log, cfg: cfg, store: store, svc: svc}, nil
}

// Close releases the store connection pool.
func (a *App) Close() error { return a.store.Close() }
