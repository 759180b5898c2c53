// Package migration creates the signature schema on an empty database.
package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type migrationStep struct {
	Name string
	SQL  string
}

// sentinelQuery reports whether the schema was already created.
const sentinelQuery = "SELECT to_regclass('public.signatures') IS NOT NULL"

var steps = []migrationStep{
	{
		Name: "create_table_signatures",
		SQL: `CREATE TABLE IF NOT EXISTS signatures (
  id                    UUID        PRIMARY KEY,
  envelope_id           TEXT        UNIQUE,
  title                 TEXT        NOT NULL,
  template_id           TEXT        NOT NULL DEFAULT '',
  document_filename     TEXT        NOT NULL DEFAULT '',
  document_path         TEXT        NOT NULL DEFAULT '',
  document_size         BIGINT      NOT NULL DEFAULT 0 CHECK (document_size >= 0),
  document_content_type TEXT        NOT NULL DEFAULT '',
  status                TEXT        NOT NULL CHECK (status IN ('draft', 'sent', 'delivered', 'completed', 'declined')),
  status_at             TIMESTAMPTZ NOT NULL,
  created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_table_signers",
		SQL: `CREATE TABLE IF NOT EXISTS signers (
  id             UUID        PRIMARY KEY,
  signature_id   UUID        NOT NULL REFERENCES signatures (id) ON DELETE CASCADE,
  signing_order  INTEGER     NOT NULL CHECK (signing_order > 0),
  full_name      TEXT        NOT NULL,
  email          TEXT        NOT NULL,
  status         TEXT        NOT NULL CHECK (status IN ('draft', 'sent', 'delivered', 'completed', 'declined', 'authentication_failed', 'auto_responded')),
  status_at      TIMESTAMPTZ NOT NULL,
  status_details TEXT        NOT NULL DEFAULT '',
  UNIQUE (signature_id, signing_order)
);`,
	},
	{
		Name: "create_index_signatures_status",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_signatures_status ON signatures (status);`,
	},
	{
		Name: "create_index_signatures_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_signatures_created_at ON signatures (created_at);`,
	},
	{
		Name: "create_index_signers_email",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_signers_email ON signers (email);`,
	},
}

// IsMigrated reports whether the signatures table exists.
func IsMigrated(ctx context.Context, db *sql.DB) (bool, error) {
	var exists bool
	if err := db.QueryRowContext(ctx, sentinelQuery).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check sentinel table: %w", err)
	}
	return exists, nil
}

// EnsureMigrated runs every step when the signatures table does not exist yet.
// Steps are not wrapped in a transaction; each one is idempotent.
func EnsureMigrated(ctx context.Context, db *sql.DB, log *zap.Logger, dbHost string) error {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "database"), zap.String("db_host", dbHost))
	start := time.Now()

	log.Info("db_migration_check", zap.String("status", "starting"))

	exists, err := IsMigrated(ctx, db)
	if err != nil {
		log.Error("db_migration_failed",
			zap.String("status", "error"),
			zap.Error(err),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return err
	}

	if exists {
		log.Info("db_migration_skip",
			zap.String("status", "success"),
			zap.String("reason", "schema already exists"),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return nil
	}

	log.Info("db_migration_start", zap.String("status", "in_progress"), zap.Int("steps", len(steps)))

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("db_migration_failed",
				zap.String("status", "error"),
				zap.String("migration_step", step.Name),
				zap.Error(err),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Debug("db_migration_step",
			zap.String("status", "success"),
			zap.String("migration_step", step.Name),
			zap.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()),
		)
	}

	log.Info("db_migration_success",
		zap.String("status", "success"),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return nil
}
