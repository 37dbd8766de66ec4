// Package app wires every built component into one App, the shared
// core used by cmd/bqlite-server — config and logger construction
// follow the teacher's NewApp shape (load version, resolve config path,
// build logger, build storage, wire services, start background loops).
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/bqlite/internal/common"
	"github.com/bobmcallan/bqlite/internal/engine/local"
	"github.com/bobmcallan/bqlite/internal/engine/remote"
	"github.com/bobmcallan/bqlite/internal/historystore"
	"github.com/bobmcallan/bqlite/internal/ingest"
	"github.com/bobmcallan/bqlite/internal/interfaces"
	"github.com/bobmcallan/bqlite/internal/schema"
	"github.com/bobmcallan/bqlite/internal/scheduler"
	"github.com/bobmcallan/bqlite/internal/service"
	"github.com/bobmcallan/bqlite/internal/slotpool"
	"github.com/bobmcallan/bqlite/internal/storage/surrealdb"
	"github.com/bobmcallan/bqlite/internal/validator"
)

// App holds every initialized component. It is the shared core used by
// cmd/bqlite-server.
type App struct {
	Config  *common.Config
	Logger  *common.Logger
	Storage *surrealdb.Manager

	Scheduler *scheduler.Scheduler
	Facade    *service.Facade

	StartupTime time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes configuration, storage, engines, the scheduler,
// and the service facade. configPath may be empty, in which case the
// default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	common.LoadVersionFromFile()
	binDir := getBinaryDir()

	if configPath == "" {
		configPath = os.Getenv("BQLITE_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "bqlite-service.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/bqlite-service.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLogger(config.Logging.Level)

	ctx := context.Background()

	storageManager, err := surrealdb.NewManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	history, err := historystore.New(ctx, storageManager.DB(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history store: %w", err)
	}
	if n, err := history.Reconcile(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to reconcile orphaned RUNNING jobs")
	} else if n > 0 {
		logger.Warn().Int("count", n).Msg("reconciled orphaned RUNNING jobs from a prior crash")
	}

	schemaStore := surrealdb.NewSchemaStore(storageManager.DB(), logger)
	registry := schema.New(schemaStore, logger)

	engines := make(map[string]interfaces.ExecutionEngine)
	if config.Engines.Local.Enabled {
		eng := local.New(logger)
		if err := eng.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialize local engine: %w", err)
		}
		engines["local"] = eng
	}
	if config.Engines.Remote.Enabled {
		eng := remote.New(logger, config.Engines.Remote.GetSimulatedLatency())
		if err := eng.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialize remote engine: %w", err)
		}
		engines["remote"] = eng
	}
	if len(engines) == 0 {
		return nil, fmt.Errorf("no execution engines enabled in configuration")
	}

	pool := slotpool.New(config.Scheduler.TotalSlots)
	sched := scheduler.New(pool, engines, history, logger, config.Scheduler.GetTickInterval())

	val := validator.New(engines)
	ing := ingest.New(registry, logger)
	facade := service.New(sched, val, registry, ing, history, engines, logger)

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return &App{
		Config:      config,
		Logger:      logger,
		Storage:     storageManager,
		Scheduler:   sched,
		Facade:      facade,
		StartupTime: startupStart,
	}, nil
}

// Start launches the scheduler's admission loop.
func (a *App) Start() {
	a.Scheduler.Start()
}

// Close releases all resources held by the App.
// Shutdown order: stop the scheduler, then close storage.
func (a *App) Close() {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}
