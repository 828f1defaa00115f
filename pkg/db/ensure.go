package db

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ensureLogPrefix = "db:ensure"

// definitionsDBPattern restricts store database names to letters, digits and underscores.
var definitionsDBPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// storeExtensions are required by the definitions schema (gen_random_uuid).
var storeExtensions = []string{"pgcrypto"}

// EnsureResult reports what EnsureStore did.
type EnsureResult struct {
	Database string
	Created  bool
	Applied  int
}

// EnsureStore prepares the definitions store named in databaseURL: it creates
// the database when missing, enables storeExtensions and applies the pending
// migrations so that the usecase_* tables exist. Nil migrations skip the
// schema step.
func EnsureStore(ctx context.Context, databaseURL string, migrations []Migration) (*EnsureResult, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s - invalid database URL: %w", ensureLogPrefix, err)
	}
	name, err := storeDatabaseName(u)
	if err != nil {
		return nil, err
	}
	res := &EnsureResult{Database: name}

	if res.Created, err = createDatabase(ctx, maintenanceURL(u), name); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect to %q: %w", ensureLogPrefix, name, err)
	}
	defer pool.Close()

	for _, ext := range storeExtensions {
		if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE EXTENSION IF NOT EXISTS %s", quoteIdent(ext))); err != nil {
			return nil, fmt.Errorf("%s - CREATE EXTENSION %s: %w", ensureLogPrefix, ext, err)
		}
	}

	if migrations != nil {
		applied, err := appliedMigrations(ctx, pool)
		if err != nil {
			return nil, err
		}
		res.Applied = len(pendingMigrations(migrations, applied))
		if err := RunMigrations(ctx, pool, migrations); err != nil {
			return nil, err
		}
	}

	slog.Info(fmt.Sprintf("%s - Definitions store %q ready (created=%t, migrations applied=%d)", ensureLogPrefix, name, res.Created, res.Applied))
	return res, nil
}

// createDatabase creates name through the maintenance database unless it
// exists. It reports whether the database was created.
func createDatabase(ctx context.Context, maintenance, name string) (bool, error) {
	config, err := pgxpool.ParseConfig(maintenance)
	if err != nil {
		return false, fmt.Errorf("%s - failed to parse postgres URL: %w", ensureLogPrefix, err)
	}
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return false, fmt.Errorf("%s - failed to connect to postgres: %w", ensureLogPrefix, err)
	}
	defer pool.Close()

	var exists bool
	err = pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s - failed to check database: %w", ensureLogPrefix, err)
	}
	if exists {
		return false, nil
	}

	slog.Info(fmt.Sprintf("%s - Creating database %q", ensureLogPrefix, name))
	if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", quoteIdent(name))); err != nil {
		return false, fmt.Errorf("%s - CREATE DATABASE failed: %w", ensureLogPrefix, err)
	}
	return true, nil
}

func storeDatabaseName(u *url.URL) (string, error) {
	name := strings.TrimSpace(strings.TrimPrefix(u.Path, "/"))
	if name == "" {
		return "", fmt.Errorf("%s - database name empty in URL", ensureLogPrefix)
	}
	if !definitionsDBPattern.MatchString(name) {
		return "", fmt.Errorf("%s - database name %q contains invalid characters", ensureLogPrefix, name)
	}
	return name, nil
}

// maintenanceURL points u at the postgres database, keeping host, credentials and query.
func maintenanceURL(u *url.URL) string {
	m := *u
	m.Path = "/postgres"
	return m.String()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
