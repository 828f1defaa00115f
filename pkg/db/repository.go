package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const repoLogPrefix = "db:repository"

// SystemUserID is recorded in created_by/modified_by for writes made by the
// executor itself (seeding from a definitions file).
const SystemUserID = "00000000-0000-0000-0000-000000000001"

// DBTX is the subset of pgxpool.Pool and pgx.Tx the repository needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides database access for use-case definitions.
type Repository struct {
	db DBTX
}

// NewRepository creates a new Repository over a pool or a transaction.
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

// =========================================================================
// CONTEXT OPERATIONS
// =========================================================================

const contextColumns = `id, name, input, response, is_default, revision, created, created_by, modified, modified_by`

// GetContext finds a context by name. It returns nil when none exists.
func (r *Repository) GetContext(ctx context.Context, name string) (*ContextRecord, error) {
	slog.Debug(fmt.Sprintf("%s - GetContext name=%s", repoLogPrefix, name))

	row := r.db.QueryRow(ctx,
		`SELECT `+contextColumns+`
		 FROM usecase_contexts
		 WHERE name = $1
		 LIMIT 1`, name)
	return scanContext(row)
}

// ListContexts returns all contexts ordered by name.
func (r *Repository) ListContexts(ctx context.Context) ([]ContextRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+contextColumns+`
		 FROM usecase_contexts
		 ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("%s - ListContexts failed: %w", repoLogPrefix, err)
	}
	defer rows.Close()

	var out []ContextRecord
	for rows.Next() {
		c, err := scanContext(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s - ListContexts rows failed: %w", repoLogPrefix, err)
	}
	return out, nil
}

// UpsertContextParams holds parameters for UpsertContext.
type UpsertContextParams struct {
	Name     string
	Input    []byte
	Response []byte
	UserID   string
}

// UpsertContext creates or replaces a context definition.
func (r *Repository) UpsertContext(ctx context.Context, params UpsertContextParams) (*ContextRecord, error) {
	slog.Info(fmt.Sprintf("%s - UpsertContext name=%s", repoLogPrefix, params.Name))

	row := r.db.QueryRow(ctx,
		`INSERT INTO usecase_contexts (name, input, response, created_by, modified_by)
		 VALUES ($1, $2::json, $3::json, $4::uuid, $4::uuid)
		 ON CONFLICT (name) DO UPDATE SET
		   input = EXCLUDED.input,
		   response = EXCLUDED.response,
		   revision = usecase_contexts.revision + 1,
		   modified = NOW(),
		   modified_by = EXCLUDED.modified_by
		 RETURNING `+contextColumns,
		params.Name, nullJSON(params.Input), nullJSON(params.Response), userOrSystem(params.UserID))
	return scanContext(row)
}

// SetDefaultContext marks name as the default context and clears the flag
// elsewhere. The context must exist.
func (r *Repository) SetDefaultContext(ctx context.Context, name, userID string) error {
	if _, err := r.db.Exec(ctx,
		`UPDATE usecase_contexts SET is_default = FALSE, modified = NOW(), modified_by = $2::uuid
		 WHERE is_default AND name <> $1`, name, userOrSystem(userID)); err != nil {
		return fmt.Errorf("%s - SetDefaultContext clear failed: %w", repoLogPrefix, err)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE usecase_contexts SET is_default = TRUE, modified = NOW(), modified_by = $2::uuid
		 WHERE name = $1`, name, userOrSystem(userID))
	if err != nil {
		return fmt.Errorf("%s - SetDefaultContext failed: %w", repoLogPrefix, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s - context %q not found", repoLogPrefix, name)
	}
	return nil
}

// DeleteContext removes a context. It reports whether a row was deleted.
func (r *Repository) DeleteContext(ctx context.Context, name string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM usecase_contexts WHERE name = $1`, name)
	if err != nil {
		return false, fmt.Errorf("%s - DeleteContext failed: %w", repoLogPrefix, err)
	}
	return tag.RowsAffected() > 0, nil
}

// =========================================================================
// USE CASE CONFIGURATION OPERATIONS
// =========================================================================

const useCaseColumns = `id, use_case, description, input, response, request_type, revision, created, created_by, modified, modified_by`

// GetUseCase finds the configuration of a use case. It returns nil when none exists.
func (r *Repository) GetUseCase(ctx context.Context, useCase string) (*UseCaseRecord, error) {
	slog.Debug(fmt.Sprintf("%s - GetUseCase useCase=%s", repoLogPrefix, useCase))

	row := r.db.QueryRow(ctx,
		`SELECT `+useCaseColumns+`
		 FROM usecase_configurations
		 WHERE use_case = $1
		 LIMIT 1`, useCase)
	return scanUseCase(row)
}

// ListUseCases returns all use-case configurations ordered by name.
func (r *Repository) ListUseCases(ctx context.Context) ([]UseCaseRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+useCaseColumns+`
		 FROM usecase_configurations
		 ORDER BY use_case ASC`)
	if err != nil {
		return nil, fmt.Errorf("%s - ListUseCases failed: %w", repoLogPrefix, err)
	}
	defer rows.Close()

	var out []UseCaseRecord
	for rows.Next() {
		u, err := scanUseCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s - ListUseCases rows failed: %w", repoLogPrefix, err)
	}
	return out, nil
}

// UpsertUseCaseParams holds parameters for UpsertUseCase.
type UpsertUseCaseParams struct {
	UseCase     string
	Description *string
	Input       []byte
	Response    []byte
	RequestType *string
	UserID      string
}

// UpsertUseCase creates or replaces the configuration of a use case.
func (r *Repository) UpsertUseCase(ctx context.Context, params UpsertUseCaseParams) (*UseCaseRecord, error) {
	slog.Info(fmt.Sprintf("%s - UpsertUseCase useCase=%s", repoLogPrefix, params.UseCase))

	row := r.db.QueryRow(ctx,
		`INSERT INTO usecase_configurations (use_case, description, input, response, request_type, created_by, modified_by)
		 VALUES ($1, $2, $3::json, $4::json, $5, $6::uuid, $6::uuid)
		 ON CONFLICT (use_case) DO UPDATE SET
		   description = COALESCE(EXCLUDED.description, usecase_configurations.description),
		   input = EXCLUDED.input,
		   response = EXCLUDED.response,
		   request_type = EXCLUDED.request_type,
		   revision = usecase_configurations.revision + 1,
		   modified = NOW(),
		   modified_by = EXCLUDED.modified_by
		 RETURNING `+useCaseColumns,
		params.UseCase, params.Description, nullJSON(params.Input), nullJSON(params.Response),
		params.RequestType, userOrSystem(params.UserID))
	return scanUseCase(row)
}

// DeleteUseCase removes a use-case configuration. It reports whether a row was deleted.
func (r *Repository) DeleteUseCase(ctx context.Context, useCase string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM usecase_configurations WHERE use_case = $1`, useCase)
	if err != nil {
		return false, fmt.Errorf("%s - DeleteUseCase failed: %w", repoLogPrefix, err)
	}
	return tag.RowsAffected() > 0, nil
}

// =========================================================================
// SCAN HELPERS
// =========================================================================

func scanContext(row pgx.Row) (*ContextRecord, error) {
	var c ContextRecord
	err := row.Scan(
		&c.ID, &c.Name, &c.Input, &c.Response, &c.IsDefault, &c.Revision,
		&c.Created, &c.CreatedBy, &c.Modified, &c.ModifiedBy,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s - scan context failed: %w", repoLogPrefix, err)
	}
	return &c, nil
}

func scanUseCase(row pgx.Row) (*UseCaseRecord, error) {
	var u UseCaseRecord
	err := row.Scan(
		&u.ID, &u.UseCase, &u.Description, &u.Input, &u.Response, &u.RequestType, &u.Revision,
		&u.Created, &u.CreatedBy, &u.Modified, &u.ModifiedBy,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s - scan use case failed: %w", repoLogPrefix, err)
	}
	return &u, nil
}

// nullJSON maps empty or "null" documents to SQL NULL.
func nullJSON(b []byte) interface{} {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	return string(b)
}

func userOrSystem(userID string) string {
	if userID == "" {
		return SystemUserID
	}
	return userID
}
