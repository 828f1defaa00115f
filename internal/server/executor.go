package server

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/usecase-executor/internal/config"
	"github.com/morezero/usecase-executor/pkg/bootstrap"
	"github.com/morezero/usecase-executor/pkg/db"
	"github.com/morezero/usecase-executor/pkg/execution"
	"github.com/morezero/usecase-executor/pkg/processor/input"
	"github.com/morezero/usecase-executor/pkg/processor/response"
	"github.com/morezero/usecase-executor/pkg/usecase"
)

const executorLogPrefix = "server:executor"

// PingUseCase is registered on every executor.
const PingUseCase = "system.ping"

type pingUseCase struct {
	service string
	now     func() time.Time
}

func (p pingUseCase) Execute(context.Context) (map[string]string, error) {
	return map[string]string{
		"status":    "ok",
		"service":   p.service,
		"timestamp": p.now().UTC().Format(time.RFC3339),
	}, nil
}

// NewExecutor builds an executor with the built-in input and response
// processors and the system.ping use case. Request types resolve as
// configured by REQUEST_RESOLUTION_MODE and REQUEST_TYPE_CONVENTION; opts
// are applied after that and may replace the resolver.
func NewExecutor(cfg *config.Config, opts ...execution.Option) (*execution.Executor, error) {
	mode, err := cfg.ResolutionMode()
	if err != nil {
		return nil, err
	}
	resolverOpts := []usecase.ResolverOption{usecase.WithMode(mode)}
	if cfg.RequestTypeConvention {
		resolverOpts = append(resolverOpts, usecase.WithConventionStrategy())
	}
	resolver := usecase.NewRequestResolver(nil, resolverOpts...)
	slog.Debug(fmt.Sprintf("%s - Request type resolution mode %s (convention=%t)", executorLogPrefix, resolver.Mode(), cfg.RequestTypeConvention))

	e := execution.NewExecutor(append([]execution.Option{execution.WithRequestResolver(resolver)}, opts...)...)

	e.SetInputProcessor("default", input.Default{})
	e.SetInputProcessor("array", input.Array{})
	e.SetInputProcessor("json", input.JSON{})
	e.SetInputProcessor("http", input.HTTP{})

	e.SetResponseProcessor("default", response.Identity{})
	e.SetResponseProcessor("identity", response.Identity{})
	e.SetResponseProcessor("json", response.JSON{})

	if cfg.TemplateGlob != "" {
		tmpl, err := template.ParseGlob(cfg.TemplateGlob)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to parse templates %s: %w", executorLogPrefix, cfg.TemplateGlob, err)
		}
		e.SetResponseProcessor("template", response.NewTemplate(tmpl))
		slog.Info(fmt.Sprintf("%s - Template renderer enabled with %s", executorLogPrefix, cfg.TemplateGlob))
	}

	if err := e.SetUseCase(PingUseCase, pingUseCase{service: cfg.COMMSName, now: time.Now}); err != nil {
		return nil, fmt.Errorf("%s - failed to register %s: %w", executorLogPrefix, PingUseCase, err)
	}
	return e, nil
}

// LoadDefinitions resolves the definitions to apply: the built-in defaults,
// overridden by the definitions file, overridden by stored definitions when
// pool is non-nil.
func LoadDefinitions(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (*bootstrap.Definitions, error) {
	fileDefs, err := bootstrap.LoadDefinitions(cfg.DefinitionsFile)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to load definitions: %w", executorLogPrefix, err)
	}
	defs := bootstrap.MergeDefinitions(bootstrap.GetDefaultDefinitions(), fileDefs)

	if pool != nil && cfg.DefinitionsFromDB {
		stored, err := db.LoadStoredDefinitions(ctx, db.NewRepository(pool))
		if err != nil {
			return nil, fmt.Errorf("%s - failed to load stored definitions: %w", executorLogPrefix, err)
		}
		defs = bootstrap.MergeDefinitions(defs, stored)
	}
	return defs, nil
}
