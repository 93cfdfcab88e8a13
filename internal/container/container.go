package container

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"gorevsig/adapters/postgres"
	"gorevsig/adapters/rng"
	"gorevsig/app"
	"gorevsig/internal"
	"gorevsig/internal/config"
	"gorevsig/ports"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB *sqlx.DB

	// Repositories (nil when no database is configured)
	RunRepo ports.RunRepository

	RNG     ports.RNGPort
	Options app.Options
	Ranking *app.RankingService
}

// New creates a new dependency injection container. Configuration errors
// surface here, before any input is read.
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config: cfg,
		Logger: internal.NewConfiguredLogger(cfg.Log.Level, cfg.Log.Format),
		RNG:    rng.NewSeededAdapter(),
	}

	opts, err := app.OptionsFromConfig(cfg.Ranking)
	if err != nil {
		return nil, err
	}
	c.Options = opts

	svc, err := app.NewRankingService(opts, c.RNG, c.Logger)
	if err != nil {
		return nil, err
	}
	c.Ranking = svc

	return c, nil
}

// InitDatabase connects, migrates and attaches the run repository. It is a
// no-op when no database URL is configured.
func (c *Container) InitDatabase(ctx context.Context) error {
	if !c.Config.Database.Enabled() {
		c.Logger.Debug("no database configured, runs will not be persisted")
		return nil
	}

	db, err := postgres.Connect(ctx, c.Config.Database.Driver, c.Config.Database.URL, c.Config.Database.MaxOpenConns)
	if err != nil {
		return err
	}
	return c.InitWithDatabase(db)
}

// InitWithDatabase attaches an already migrated connection
func (c *Container) InitWithDatabase(db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}

	c.DB = db
	c.RunRepo = postgres.NewRunRepository(db)
	c.Ranking.WithStore(c.RunRepo)
	c.Logger.Info("run persistence enabled (%s)", c.Config.Database.Driver)
	return nil
}

// Shutdown releases held resources
func (c *Container) Shutdown(ctx context.Context) error {
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	return nil
}
