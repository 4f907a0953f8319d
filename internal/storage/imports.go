package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/residio-ng/residio/internal/common"
	"github.com/residio-ng/residio/internal/model"
	"github.com/residio-ng/residio/internal/service"
)

// CreateEmailImport persists a new import session.
func (s *SQLiteStorage) CreateEmailImport(ctx context.Context, imp *model.EmailImport) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateImport(imp); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO email_imports (id, status, trigger_type, created_by)
		VALUES (?, ?, ?, ?)
	`, imp.ID, string(model.ImportStatusPending), string(imp.Trigger), imp.CreatedBy)
	if err != nil {
		return fmt.Errorf("failed to insert import %s: %w", imp.ID, err)
	}
	return nil
}

// GetEmailImport retrieves one import session by ID.
func (s *SQLiteStorage) GetEmailImport(ctx context.Context, id string) (*model.EmailImport, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, trigger_type, COALESCE(created_by, ''),
		       emails_fetched, emails_parsed, emails_matched,
		       COALESCE(error, ''), created_at, updated_at
		FROM email_imports WHERE id = ?
	`, id)

	imp, err := scanImport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: import %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import %s: %w", id, err)
	}
	return imp, nil
}

// ListEmailImports returns sessions newest-first, optionally filtered.
func (s *SQLiteStorage) ListEmailImports(ctx context.Context, filter service.ImportFilter) ([]model.EmailImport, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT id, status, trigger_type, COALESCE(created_by, ''),
		       emails_fetched, emails_parsed, emails_matched,
		       COALESCE(error, ''), created_at, updated_at
		FROM email_imports
	`
	args := []any{}
	if filter.Status != nil {
		query += " WHERE status = ?"
		args = append(args, string(*filter.Status))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list imports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var imports []model.EmailImport
	for rows.Next() {
		imp, scanErr := scanImport(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan import: %w", scanErr)
		}
		imports = append(imports, *imp)
	}
	return imports, rows.Err()
}

// UpdateEmailImportStatus advances a session and applies counter updates.
// The transition table is enforced here and the current status is
// re-verified in the UPDATE's WHERE clause, so a concurrent writer cannot
// race the session backward.
func (s *SQLiteStorage) UpdateEmailImportStatus(ctx context.Context, id string, status model.ImportStatus, patch service.ImportPatch) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	imp, err := s.GetEmailImport(ctx, id)
	if err != nil {
		return err
	}

	if status != imp.Status && !imp.CanTransition(status) {
		return fmt.Errorf("%w: import %s cannot move %s -> %s",
			common.ErrInvalidTransition, id, imp.Status, status)
	}

	query := "UPDATE email_imports SET status = ?, updated_at = CURRENT_TIMESTAMP"
	args := []any{string(status)}
	if patch.EmailsFetched != nil {
		query += ", emails_fetched = ?"
		args = append(args, *patch.EmailsFetched)
	}
	if patch.EmailsParsed != nil {
		query += ", emails_parsed = ?"
		args = append(args, *patch.EmailsParsed)
	}
	if patch.EmailsMatched != nil {
		query += ", emails_matched = ?"
		args = append(args, *patch.EmailsMatched)
	}
	if patch.Error != "" {
		query += ", error = ?"
		args = append(args, patch.Error)
	}
	query += " WHERE id = ? AND status = ?"
	args = append(args, id, string(imp.Status))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update import %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update of import %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: import %s changed concurrently", common.ErrInvalidTransition, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImport(row rowScanner) (*model.EmailImport, error) {
	var imp model.EmailImport
	var status, trigger string
	err := row.Scan(&imp.ID, &status, &trigger, &imp.CreatedBy,
		&imp.EmailsFetched, &imp.EmailsParsed, &imp.EmailsMatched,
		&imp.Error, &imp.CreatedAt, &imp.UpdatedAt)
	if err != nil {
		return nil, err
	}
	imp.Status = model.ImportStatus(status)
	imp.Trigger = model.ImportTrigger(trigger)
	return &imp, nil
}
