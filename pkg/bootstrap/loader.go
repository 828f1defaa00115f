package bootstrap

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/morezero/usecase-executor/pkg/execution"
	"github.com/morezero/usecase-executor/pkg/semver"
)

const logPrefix = "bootstrap:loader"

// EnvDefinitionsFile names a definitions file to try after explicit paths.
const EnvDefinitionsFile = "USECASE_DEFINITIONS_FILE"

// SupportedVersions is the range of definition file versions this loader reads.
const SupportedVersions = "^1.0.0"

// DefaultPaths are tried after explicit paths and the environment variable.
var DefaultPaths = []string{"config/usecases.yaml", "usecases.yaml", "usecases.json"}

// LoadDefinitions loads use-case definitions from file paths or environment.
// It tries paths in order: first any paths passed in, then USECASE_DEFINITIONS_FILE,
// then DefaultPaths. Unreadable or invalid files are skipped. If nothing loads,
// the built-in defaults are returned.
func LoadDefinitions(paths ...string) (*Definitions, error) {
	all := make([]string, 0, len(paths)+len(DefaultPaths)+1)
	for _, p := range paths {
		if p != "" {
			all = append(all, p)
		}
	}
	if envPath := os.Getenv(EnvDefinitionsFile); envPath != "" {
		all = append(all, envPath)
	}
	all = append(all, DefaultPaths...)

	for _, p := range all {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}

		defs, err := ParseDefinitions(data, filepath.Ext(p))
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - Failed to parse definitions file %s: %v", logPrefix, p, err))
			continue
		}

		slog.Info(fmt.Sprintf("%s - Loaded definitions from %s", logPrefix, p))
		return defs, nil
	}

	slog.Info(fmt.Sprintf("%s - Using default definitions", logPrefix))
	return GetDefaultDefinitions(), nil
}

// ParseDefinitions decodes a definitions document. ext selects the format
// (".json" for JSON, anything else for YAML) and the version is checked
// against SupportedVersions.
func ParseDefinitions(data []byte, ext string) (*Definitions, error) {
	var defs Definitions
	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, &defs); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(data, &defs); err != nil {
			return nil, err
		}
	}

	if defs.Version == "" {
		return nil, fmt.Errorf("missing version")
	}
	if !semver.SatisfiesRange(defs.Version, SupportedVersions) {
		return nil, fmt.Errorf("unsupported definitions version %s (want %s)", defs.Version, SupportedVersions)
	}
	return &defs, nil
}

// GetDefaultDefinitions returns the built-in definitions.
func GetDefaultDefinitions() *Definitions {
	return &Definitions{
		Name:           "usecase-executor-defaults",
		Version:        "1.0.0",
		Description:    "Default use-case execution contexts",
		DefaultContext: execution.DefaultContextName,
		Contexts: map[string]ContextDefinition{
			execution.DefaultContextName: {
				Input:    NewProcessorSpec("default"),
				Response: NewProcessorSpec("default"),
			},
			"http": {
				Input:    NewProcessorSpec("http"),
				Response: NewProcessorSpec("json"),
			},
		},
		UseCases: map[string]UseCaseDefinition{},
	}
}

// MergeDefinitions merges override into base. Contexts and use cases are
// replaced per name; scalar fields are replaced when set.
func MergeDefinitions(base, override *Definitions) *Definitions {
	merged := *base

	merged.Contexts = make(map[string]ContextDefinition, len(base.Contexts)+len(override.Contexts))
	for name, c := range base.Contexts {
		merged.Contexts[name] = c
	}
	for name, c := range override.Contexts {
		merged.Contexts[name] = c
	}

	merged.UseCases = make(map[string]UseCaseDefinition, len(base.UseCases)+len(override.UseCases))
	for name, u := range base.UseCases {
		merged.UseCases[name] = u
	}
	for name, u := range override.UseCases {
		merged.UseCases[name] = u
	}

	if override.Name != "" {
		merged.Name = override.Name
	}
	if override.Version != "" {
		merged.Version = override.Version
	}
	if override.Description != "" {
		merged.Description = override.Description
	}
	if override.DefaultContext != "" {
		merged.DefaultContext = override.DefaultContext
	}

	return &merged
}

// Target receives definitions. *execution.Executor satisfies it.
type Target interface {
	AddContextDefinition(name string, input, response interface{}) error
	SetDefaultContextName(name string)
	Configure(useCase string, cfg *execution.Configuration)
}

// Apply registers the contexts, the default context name and the per-use-case
// configurations of defs on t. Names are applied in sorted order so the first
// error reported is stable.
func Apply(defs *Definitions, t Target) error {
	for _, name := range sortedKeys(defs.Contexts) {
		c := defs.Contexts[name]
		if err := t.AddContextDefinition(name, c.Input.Value(), c.Response.Value()); err != nil {
			return fmt.Errorf("%s - context %s: %w", logPrefix, name, err)
		}
	}
	if defs.DefaultContext != "" {
		t.SetDefaultContextName(defs.DefaultContext)
	}

	for _, name := range sortedKeys(defs.UseCases) {
		u := defs.UseCases[name]
		cfg, err := execution.NewConfiguration(u.Input.Value(), u.Response.Value())
		if err != nil {
			return fmt.Errorf("%s - use case %s: %w", logPrefix, name, err)
		}
		cfg.SetRequestTypeName(u.RequestType)
		t.Configure(name, cfg)
	}

	slog.Info(fmt.Sprintf("%s - Applied %d contexts and %d use case configurations", logPrefix, len(defs.Contexts), len(defs.UseCases)))
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
