package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/beheryahmed1991/watch-metering.git/internal/config"
	"github.com/beheryahmed1991/watch-metering.git/internal/db"
	"github.com/beheryahmed1991/watch-metering.git/internal/logger"
	"github.com/beheryahmed1991/watch-metering.git/internal/migrate"
	"github.com/beheryahmed1991/watch-metering.git/internal/store/memory"
	"github.com/beheryahmed1991/watch-metering.git/internal/store/postgres"
	"github.com/beheryahmed1991/watch-metering.git/internal/subscription"
)

// @title Watch Metering Service
// @version 1.0
// @description Subscription plans and per-user video watch quotas
// @host localhost:8080
func main() {
	app := &cli.App{
		Name:           "watch-metering",
		Usage:          "subscription plans and video watch quotas",
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "manage the database schema",
				Subcommands: []*cli.Command{
					{Name: "up", Usage: "apply pending migrations", Action: migrateAction(migrate.Up)},
					{Name: "down", Usage: "roll back the latest migration", Action: migrateAction(migrate.Down)},
					{Name: "version", Usage: "print the applied migration version", Action: migrateVersion},
				},
			},
			{
				Name:  "usage",
				Usage: "inspect watch usage",
				Subcommands: []*cli.Command{
					{
						Name:  "refresh",
						Usage: "recompute and persist a user's watched count",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "user", Usage: "user id", Required: true},
						},
						Action: refreshUsage,
					},
				},
			},
			{
				Name:   "plans",
				Usage:  "print the plan catalogue",
				Action: listPlans,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func bootstrap() (config.Config, *slog.Logger, error) {
	_ = godotenv.Load("../.env", ".env")

	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	appLogger := logger.New(cfg.Log.Level, cfg.App.IsDev())
	slog.SetDefault(appLogger)
	return cfg, appLogger, nil
}

func openDatabase(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	database, err := db.New(ctx, db.Config{
		Driver:          cfg.DB.Driver,
		URL:             cfg.DB.DSN(),
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return database, nil
}

// backend is the storage selected by STORAGE_DRIVER. db is nil for memory.
type backend struct {
	tx subscription.Transactor
	db *sql.DB
}

func (b backend) Close() {
	if b.db != nil {
		_ = b.db.Close()
	}
}

func openBackend(ctx context.Context, cfg config.Config, log *slog.Logger) (backend, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		log.Warn("using in-memory storage, data is lost on restart")
		return backend{tx: memory.New()}, nil
	}

	database, err := openDatabase(ctx, cfg)
	if err != nil {
		return backend{}, err
	}

	if cfg.DB.AutoMigrate {
		if err := migrate.Up(ctx, database); err != nil {
			database.Close()
			return backend{}, fmt.Errorf("run migrations: %w", err)
		}
		log.Info("migrations applied")
	}

	return backend{tx: postgres.NewTransactor(database), db: database}, nil
}

func requirePostgres(cfg config.Config) error {
	if cfg.Storage.Driver != config.StoragePostgres {
		return fmt.Errorf("command requires STORAGE_DRIVER=%s", config.StoragePostgres)
	}
	return nil
}

func migrateAction(run func(context.Context, *sql.DB) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, appLogger, err := bootstrap()
		if err != nil {
			return err
		}
		if err := requirePostgres(cfg); err != nil {
			return err
		}

		database, err := openDatabase(c.Context, cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := run(c.Context, database); err != nil {
			return err
		}
		appLogger.Info("migration finished", "command", c.Command.Name)
		return nil
	}
}

func migrateVersion(c *cli.Context) error {
	cfg, _, err := bootstrap()
	if err != nil {
		return err
	}
	if err := requirePostgres(cfg); err != nil {
		return err
	}

	database, err := openDatabase(c.Context, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	version, err := migrate.Version(c.Context, database)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, version)
	return nil
}

func refreshUsage(c *cli.Context) error {
	userID, err := uuid.Parse(c.String("user"))
	if err != nil {
		return fmt.Errorf("invalid --user: %w", err)
	}

	cfg, appLogger, err := bootstrap()
	if err != nil {
		return err
	}
	if err := requirePostgres(cfg); err != nil {
		return err
	}

	b, err := openBackend(c.Context, cfg, appLogger)
	if err != nil {
		return err
	}
	defer b.Close()

	total, err := subscription.NewLedger(b.tx, appLogger).RefreshUsage(c.Context, userID)
	if err != nil {
		return fmt.Errorf("refresh usage for %s: %w", userID, err)
	}
	fmt.Fprintf(c.App.Writer, "%s\t%d\n", userID, total)
	return nil
}

func listPlans(c *cli.Context) error {
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PLAN\tPRICE\tDAYS\tVIDEOS")
	for _, p := range subscription.Catalogue() {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", p.Name, p.Price.StringFixed(2), p.DurationDays, p.MaxVideos)
	}
	fmt.Fprintf(w, "%s\tany\tany\tceil(5/3 x days x price)\n", subscription.PlanCustom)
	return w.Flush()
}
