package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial reconciliation schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS email_imports (
					id TEXT PRIMARY KEY,
					status TEXT NOT NULL DEFAULT 'pending',
					trigger_type TEXT NOT NULL,
					created_by TEXT,
					emails_fetched INTEGER NOT NULL DEFAULT 0,
					emails_parsed INTEGER NOT NULL DEFAULT 0,
					emails_matched INTEGER NOT NULL DEFAULT 0,
					error TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS email_messages (
					id TEXT PRIMARY KEY,
					import_id TEXT NOT NULL,
					provider_message_id TEXT NOT NULL UNIQUE,
					sender TEXT,
					subject TEXT,
					body TEXT,
					attachment_ref TEXT,
					status TEXT NOT NULL DEFAULT 'pending',
					error TEXT,
					received_at DATETIME,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (import_id) REFERENCES email_imports(id)
				)`,
				`CREATE INDEX idx_email_messages_import ON email_messages(import_id)`,
				`CREATE INDEX idx_email_messages_status ON email_messages(status)`,

				`CREATE TABLE IF NOT EXISTS email_transactions (
					id TEXT PRIMARY KEY,
					message_id TEXT NOT NULL,
					transaction_type TEXT NOT NULL,
					amount_minor INTEGER NOT NULL CHECK (amount_minor > 0),
					description TEXT,
					bank_reference TEXT,
					occurred_at DATETIME,
					status TEXT NOT NULL DEFAULT 'pending',
					matched_resident_id TEXT,
					match_confidence TEXT NOT NULL DEFAULT 'none',
					match_method TEXT NOT NULL DEFAULT 'none',
					match_candidates TEXT,
					category_id TEXT,
					payment_id TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (message_id) REFERENCES email_messages(id)
				)`,
				`CREATE INDEX idx_email_transactions_message ON email_transactions(message_id)`,
				`CREATE INDEX idx_email_transactions_status ON email_transactions(status)`,

				`CREATE TABLE IF NOT EXISTS residents (
					id TEXT PRIMARY KEY,
					full_name TEXT NOT NULL,
					house_number TEXT,
					account_number TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS resident_aliases (
					resident_id TEXT NOT NULL,
					alias TEXT NOT NULL,
					PRIMARY KEY (resident_id, alias),
					FOREIGN KEY (resident_id) REFERENCES residents(id)
				)`,

				`CREATE TABLE IF NOT EXISTS expense_categories (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL UNIQUE
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add audit log for state-changing actions",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS audit_log (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					actor TEXT,
					action TEXT NOT NULL,
					entity_type TEXT NOT NULL,
					entity_id TEXT,
					before_state TEXT,
					after_state TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_audit_log_entity ON audit_log(entity_type, entity_id)`,
			}
			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Record who skipped a transaction and why",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`ALTER TABLE email_transactions ADD COLUMN skipped_by TEXT`,
				`ALTER TABLE email_transactions ADD COLUMN skip_reason TEXT`,
			}
			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
