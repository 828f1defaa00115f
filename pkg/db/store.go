package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/morezero/usecase-executor/pkg/bootstrap"
)

const storeLogPrefix = "db:store"

// StoredDefinitionsName is the name given to definitions read from the database.
const StoredDefinitionsName = "database"

// DefinitionSource lists stored definitions. *Repository satisfies it.
type DefinitionSource interface {
	ListContexts(ctx context.Context) ([]ContextRecord, error)
	ListUseCases(ctx context.Context) ([]UseCaseRecord, error)
}

// LoadStoredDefinitions reads every stored context and use-case configuration
// into a Definitions value suitable for bootstrap.MergeDefinitions.
func LoadStoredDefinitions(ctx context.Context, src DefinitionSource) (*bootstrap.Definitions, error) {
	contexts, err := src.ListContexts(ctx)
	if err != nil {
		return nil, err
	}
	useCases, err := src.ListUseCases(ctx)
	if err != nil {
		return nil, err
	}

	defs := &bootstrap.Definitions{
		Name:     StoredDefinitionsName,
		Contexts: make(map[string]bootstrap.ContextDefinition, len(contexts)),
		UseCases: make(map[string]bootstrap.UseCaseDefinition, len(useCases)),
	}

	for _, c := range contexts {
		in, err := specFromJSON(c.Input)
		if err != nil {
			return nil, fmt.Errorf("%s - context %s input: %w", storeLogPrefix, c.Name, err)
		}
		out, err := specFromJSON(c.Response)
		if err != nil {
			return nil, fmt.Errorf("%s - context %s response: %w", storeLogPrefix, c.Name, err)
		}
		defs.Contexts[c.Name] = bootstrap.ContextDefinition{Input: in, Response: out}
		if c.IsDefault {
			defs.DefaultContext = c.Name
		}
	}

	for _, u := range useCases {
		in, err := specFromJSON(u.Input)
		if err != nil {
			return nil, fmt.Errorf("%s - use case %s input: %w", storeLogPrefix, u.UseCase, err)
		}
		out, err := specFromJSON(u.Response)
		if err != nil {
			return nil, fmt.Errorf("%s - use case %s response: %w", storeLogPrefix, u.UseCase, err)
		}
		def := bootstrap.UseCaseDefinition{Input: in, Response: out}
		if u.Description != nil {
			def.Description = *u.Description
		}
		if u.RequestType != nil {
			def.RequestType = *u.RequestType
		}
		defs.UseCases[u.UseCase] = def
	}

	slog.Info(fmt.Sprintf("%s - Loaded %d contexts and %d use case configurations", storeLogPrefix, len(defs.Contexts), len(defs.UseCases)))
	return defs, nil
}

func specFromJSON(b []byte) (bootstrap.ProcessorSpec, error) {
	var spec bootstrap.ProcessorSpec
	if len(b) == 0 {
		return spec, nil
	}
	if err := spec.UnmarshalJSON(b); err != nil {
		return spec, err
	}
	return spec, nil
}

func specToJSON(spec bootstrap.ProcessorSpec) ([]byte, error) {
	if spec.IsZero() {
		return nil, nil
	}
	return spec.MarshalJSON()
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
