package db

import (
	"context"
	"fmt"
	"log/slog"
)

const clearLogPrefix = "db:clear"

// ClearDefinitions removes every stored context and use-case configuration.
// The schema is preserved.
func ClearDefinitions(ctx context.Context, db DBTX) error {
	slog.Info(fmt.Sprintf("%s - Clearing definition tables", clearLogPrefix))

	_, err := db.Exec(ctx, `TRUNCATE TABLE usecase_configurations, usecase_contexts`)
	if err != nil {
		return fmt.Errorf("%s - truncate failed: %w", clearLogPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Definitions cleared", clearLogPrefix))
	return nil
}
