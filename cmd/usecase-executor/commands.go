package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/morezero/usecase-executor/internal/config"
	"github.com/morezero/usecase-executor/internal/server"
	"github.com/morezero/usecase-executor/pkg/bootstrap"
	"github.com/morezero/usecase-executor/pkg/commsutil"
	"github.com/morezero/usecase-executor/pkg/db"
	"github.com/morezero/usecase-executor/pkg/dispatcher"
)

const envHelp = `Environment:
  COMMS_URL                  NATS URL (default nats://127.0.0.1:4222)
  SERVICE_NAME               client name and event source (default usecase-executor)
  EXECUTOR_SUBJECT           execute subject (default usecase.execute)
  EXECUTOR_QUEUE             queue group shared by instances
  EXECUTOR_EVENT_SUBJECT     global executed event subject
  EXECUTOR_DISABLE_EVENTS    do not publish executed events
  EXECUTOR_REQUEST_TIMEOUT   per-request timeout (default 25s)
  USECASE_DEFINITIONS_FILE   YAML or JSON definitions file
  DEFINITIONS_FROM_DB        apply stored definitions over the file
  TEMPLATE_GLOB              templates for the "template" response processor
  REQUEST_RESOLUTION_MODE    strict (default) or permissive
  REQUEST_TYPE_CONVENTION    guess <Handler>Request types
  DATABASE_URL               Postgres URL (migrate, ensure-db, clear, seed, DEFINITIONS_FROM_DB)
  RUN_MIGRATIONS             apply migrations on serve
  MIGRATION_PATH             migrations directory (default migrations)
  EXECUTOR_HTTP_ADDR         HTTP listen address (default :HTTP_PORT, HTTP_PORT 8080)
  HTTP_CONTEXT               execution context for HTTP requests (default http)
  HEALTH_CHECK_TIMEOUT       /health timeout (default 5s)
  LOG_LEVEL                  debug, info, warn or error (default info)`

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "usecase-executor",
		Short:         "Run use cases over COMMS and HTTP with configurable input and response processing",
		Long:          "usecase-executor runs registered use cases in named execution contexts.\n\n" + envHelp,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return server.Run()
		},
	}
	root.AddCommand(
		serveCmd(),
		migrateCmd(),
		ensureDBCmd(),
		clearCmd(),
		seedCmd(),
		definitionsCmd(),
		callCmd(),
	)
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the executor (COMMS dispatcher, HTTP API, events); the default command",
		RunE: func(cmd *cobra.Command, args []string) error {
			return server.Run()
		},
	}
}

// withPool loads config, validates it for DB commands and opens a pool for fn.
func withPool(fn func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	server.SetupLogging(cfg)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	return fn(ctx, cfg, pool)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the definitions schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
					migrations, err := db.LoadMigrations(cfg.MigrationPath)
					if err != nil {
						return fmt.Errorf("load migrations: %w", err)
					}
					if err := db.RunMigrations(ctx, pool, migrations); err != nil {
						return fmt.Errorf("run migrations: %w", err)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
					return db.MigrationStatus(ctx, pool, cfg.MigrationPath, cmd.OutOrStdout())
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration (not supported; migrations are forward-only)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withPool(func(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
					return db.MigrationDown(ctx, pool, cmd.OutOrStdout())
				})
			},
		},
	)
	return cmd
}

func ensureDBCmd() *cobra.Command {
	var skipSchema bool
	cmd := &cobra.Command{
		Use:   "ensure-db [name]",
		Short: "Create the definitions database if missing and apply its schema (default: the DATABASE_URL database)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.ValidateForDB(); err != nil {
				return err
			}
			target, err := targetDatabaseURL(cfg.DatabaseURL, args)
			if err != nil {
				return err
			}
			var migrations []db.Migration
			if !skipSchema {
				if migrations, err = db.LoadMigrations(cfg.MigrationPath); err != nil {
					return fmt.Errorf("load migrations: %w", err)
				}
			}
			res, err := db.EnsureStore(context.Background(), target, migrations)
			if err != nil {
				return err
			}
			state := "exists"
			if res.Created {
				state = "created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database %q %s, %d migrations applied.\n", res.Database, state, res.Applied)
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipSchema, "skip-schema", false, "only create the database and extensions")
	return cmd
}

// targetDatabaseURL replaces the database in databaseURL with args[0] when
// given. The query (e.g. sslmode) is kept.
func targetDatabaseURL(databaseURL string, args []string) (string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	if len(args) > 0 && args[0] != "" {
		u.Path = "/" + args[0]
	}
	return u.String(), nil
}

func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all stored contexts and use-case configurations; schema preserved",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(func(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
				if err := db.ClearDefinitions(ctx, pool); err != nil {
					return fmt.Errorf("clear definitions: %w", err)
				}
				return nil
			})
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed [file]",
		Short: "Store the contexts and use-case configurations of a definitions file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				path := cfg.DefinitionsFile
				if len(args) > 0 {
					path = args[0]
				}
				res, err := db.SeedFromFile(ctx, pool, path)
				if err != nil {
					return fmt.Errorf("seed definitions: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d contexts and %d use case configurations.\n", res.Contexts, res.UseCases)
				return nil
			})
		},
	}
}

func definitionsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "definitions",
		Short: "Print the definitions serve would apply (defaults, file, then database)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			ctx := context.Background()
			var pool *pgxpool.Pool
			if cfg.DefinitionsFromDB {
				if err := cfg.ValidateForDB(); err != nil {
					return err
				}
				if pool, err = db.NewPool(ctx, cfg.DatabaseURL); err != nil {
					return fmt.Errorf("connect database: %w", err)
				}
				defer pool.Close()
			}
			defs, err := server.LoadDefinitions(ctx, cfg, pool)
			if err != nil {
				return err
			}
			return writeDefinitions(cmd.OutOrStdout(), defs, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of YAML")
	return cmd
}

func writeDefinitions(w io.Writer, defs *bootstrap.Definitions, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(defs)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(defs); err != nil {
		return err
	}
	return enc.Close()
}

func callCmd() *cobra.Command {
	var (
		inputJSON   string
		contextSpec string
		timeout     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "call <useCase>",
		Short: "Execute a use case on a running executor over COMMS and print the response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			payload, err := buildCallRequest(args[0], inputJSON, contextSpec)
			if err != nil {
				return err
			}
			data, err := commsutil.EncodePayload(payload)
			if err != nil {
				return err
			}

			nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName+"-cli")
			if err != nil {
				return err
			}
			defer nc.Close()

			msg, err := nc.Request(cfg.ExecuteSubject, data, timeout)
			if err != nil {
				return fmt.Errorf("request %s: %w", cfg.ExecuteSubject, err)
			}
			var resp dispatcher.ExecuteResponse
			if err := commsutil.DecodePayload(msg.Data, &resp); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(resp); err != nil {
				return err
			}
			if !resp.Ok && resp.Error != nil {
				return fmt.Errorf("%s: %s", resp.Error.Code, resp.Error.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&inputJSON, "input", "i", "", "JSON input passed to the input processor")
	cmd.Flags().StringVarP(&contextSpec, "context", "c", "", "context name or JSON context specification")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	return cmd
}

// buildCallRequest builds an execute request. A context that is not valid
// JSON is taken as a context name.
func buildCallRequest(useCase, inputJSON, contextSpec string) (*dispatcher.ExecuteRequest, error) {
	req := &dispatcher.ExecuteRequest{ID: uuid.NewString(), UseCase: useCase}
	if inputJSON != "" {
		if !json.Valid([]byte(inputJSON)) {
			return nil, fmt.Errorf("--input is not valid JSON")
		}
		req.Input = json.RawMessage(inputJSON)
	}
	if contextSpec != "" {
		if json.Valid([]byte(contextSpec)) {
			req.Context = json.RawMessage(contextSpec)
		} else {
			quoted, _ := json.Marshal(contextSpec)
			req.Context = quoted
		}
	}
	return req, nil
}
