package db

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/usecase-executor/pkg/bootstrap"
)

const seedLogPrefix = "db:seed"

// SeedResult counts what SeedDefinitions wrote.
type SeedResult struct {
	Contexts int
	UseCases int
}

// SeedDefinitions upserts every context and use-case configuration of defs in
// a single transaction and marks defs.DefaultContext as the default when set.
func SeedDefinitions(ctx context.Context, pool *pgxpool.Pool, defs *bootstrap.Definitions, userID string) (SeedResult, error) {
	var res SeedResult
	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		var err error
		res, err = seedDefinitions(ctx, NewRepository(tx), defs, userID)
		return err
	})
	if err != nil {
		return SeedResult{}, err
	}
	slog.Info(fmt.Sprintf("%s - Seeded %d contexts and %d use case configurations", seedLogPrefix, res.Contexts, res.UseCases))
	return res, nil
}

func seedDefinitions(ctx context.Context, repo *Repository, defs *bootstrap.Definitions, userID string) (SeedResult, error) {
	var res SeedResult

	for _, name := range sortedNames(defs.Contexts) {
		c := defs.Contexts[name]
		in, err := specToJSON(c.Input)
		if err != nil {
			return res, fmt.Errorf("%s - context %s input: %w", seedLogPrefix, name, err)
		}
		out, err := specToJSON(c.Response)
		if err != nil {
			return res, fmt.Errorf("%s - context %s response: %w", seedLogPrefix, name, err)
		}
		if _, err := repo.UpsertContext(ctx, UpsertContextParams{Name: name, Input: in, Response: out, UserID: userID}); err != nil {
			return res, err
		}
		res.Contexts++
	}

	if defs.DefaultContext != "" {
		if _, ok := defs.Contexts[defs.DefaultContext]; ok {
			if err := repo.SetDefaultContext(ctx, defs.DefaultContext, userID); err != nil {
				return res, err
			}
		} else {
			slog.Warn(fmt.Sprintf("%s - Default context %q is not defined in the seeded file; not stored", seedLogPrefix, defs.DefaultContext))
		}
	}

	for _, name := range sortedNames(defs.UseCases) {
		u := defs.UseCases[name]
		in, err := specToJSON(u.Input)
		if err != nil {
			return res, fmt.Errorf("%s - use case %s input: %w", seedLogPrefix, name, err)
		}
		out, err := specToJSON(u.Response)
		if err != nil {
			return res, fmt.Errorf("%s - use case %s response: %w", seedLogPrefix, name, err)
		}
		if _, err := repo.UpsertUseCase(ctx, UpsertUseCaseParams{
			UseCase:     name,
			Description: optionalString(u.Description),
			Input:       in,
			Response:    out,
			RequestType: optionalString(u.RequestType),
			UserID:      userID,
		}); err != nil {
			return res, err
		}
		res.UseCases++
	}

	return res, nil
}

// SeedFromFile loads definitions with bootstrap.LoadDefinitions(path) and
// seeds them.
func SeedFromFile(ctx context.Context, pool *pgxpool.Pool, path string) (SeedResult, error) {
	defs, err := bootstrap.LoadDefinitions(path)
	if err != nil {
		return SeedResult{}, err
	}
	return SeedDefinitions(ctx, pool, defs, SystemUserID)
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
