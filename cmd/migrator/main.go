package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"papa-puns/internal/config"
	"papa-puns/migrations"

	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

var (
	flags  = flag.NewFlagSet("migrator", flag.ExitOnError)
	driver = flags.String("driver", "", "store driver to migrate (postgres or sqlite), defaults to STORE_DRIVER")
)

func main() {
	flags.Usage = usage
	flags.Parse(os.Args[1:])
	args := flags.Args()

	if len(args) < 1 {
		flags.Usage()
		os.Exit(1)
	}

	cfg, err := config.Read()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	tgt, err := resolveTarget(cfg, *driver)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve database: %v\n", err)
		os.Exit(1)
	}

	if tgt.SQLDriver == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(tgt.DSN), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create database dir: %v\n", err)
			os.Exit(1)
		}
	}

	db, err := sql.Open(tgt.SQLDriver, tgt.DSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()

	if err := db.PingContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect(tgt.Dialect); err != nil {
		fmt.Fprintf(os.Stderr, "Unsupported dialect: %v\n", err)
		os.Exit(1)
	}
	goose.SetTableName("schema_migrations")

	if err := goose.RunContext(ctx, args[0], db, ".", args[1:]...); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}
}

// target is the database a migration run talks to.
type target struct {
	SQLDriver string
	DSN       string
	Dialect   string
}

// resolveTarget picks the database from the store and database settings.
// The joke service and bot settings play no part, so cfg is not validated.
func resolveTarget(cfg *config.Config, override string) (target, error) {
	drv := cfg.Store.Driver
	if override != "" {
		drv = config.StoreDriver(override)
	}

	switch drv {
	case config.DriverPostgres:
		return target{SQLDriver: "pgx", DSN: cfg.Database.ConnectionString(), Dialect: "postgres"}, nil
	case config.DriverSQLite:
		path := cfg.Store.Path
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return target{}, err
			}
			path = filepath.Join(home, ".papa-puns", "papa-puns.db")
		}
		return target{SQLDriver: "sqlite", DSN: path, Dialect: "sqlite3"}, nil
	default:
		return target{}, fmt.Errorf("%w: %q has no schema to migrate", config.ErrUnknownDriver, drv)
	}
}

func usage() {
	fmt.Println(usagePrefix)
	flags.PrintDefaults()
	fmt.Println(usageCommands)
}

var (
	usagePrefix = `Usage: migrator [OPTIONS] COMMAND

or

Set environment variables
STORE_DRIVER, STORE_PATH, DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME

Options:
`

	usageCommands = `
Commands:
    up                   Migrate the database to the most recent version available
    up-by-one            Migrate the database up by 1
    up-to VERSION        Migrate the database to a specific VERSION
    down                 Roll back the version by 1
    down-to VERSION      Roll back to a specific VERSION
    redo                 Re-run the latest migration
    reset                Roll back all migrations
    status               Dump the migration status
    version              Print the current version
`
)
