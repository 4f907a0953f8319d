package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/residio-ng/residio/internal/common"
	"github.com/residio-ng/residio/internal/model"
)

// GetResidentDirectory returns the full resident directory with aliases.
// The snapshot is cached briefly since the matcher reads it on every
// matching run.
func (s *SQLiteStorage) GetResidentDirectory(ctx context.Context) ([]model.Resident, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	s.cacheMutex.RLock()
	if s.directoryCache != nil && time.Now().Before(s.cacheExpiry) {
		cached := s.directoryCache
		s.cacheMutex.RUnlock()
		return cached, nil
	}
	s.cacheMutex.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, full_name, COALESCE(house_number, ''),
		       COALESCE(account_number, ''), created_at
		FROM residents ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query residents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var residents []model.Resident
	index := make(map[string]int)
	for rows.Next() {
		var r model.Resident
		if err := rows.Scan(&r.ID, &r.FullName, &r.HouseNumber, &r.AccountNumber, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan resident: %w", err)
		}
		index[r.ID] = len(residents)
		residents = append(residents, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	aliasRows, err := s.db.QueryContext(ctx, `SELECT resident_id, alias FROM resident_aliases ORDER BY resident_id, alias`)
	if err != nil {
		return nil, fmt.Errorf("failed to query aliases: %w", err)
	}
	defer func() { _ = aliasRows.Close() }()

	for aliasRows.Next() {
		var residentID, alias string
		if err := aliasRows.Scan(&residentID, &alias); err != nil {
			return nil, fmt.Errorf("failed to scan alias: %w", err)
		}
		if i, ok := index[residentID]; ok {
			residents[i].Aliases = append(residents[i].Aliases, alias)
		}
	}
	if err := aliasRows.Err(); err != nil {
		return nil, err
	}

	s.cacheMutex.Lock()
	s.directoryCache = residents
	s.cacheExpiry = time.Now().Add(directoryCacheTTL)
	s.cacheMutex.Unlock()

	return residents, nil
}

// GetResident retrieves one resident by ID, including aliases.
func (s *SQLiteStorage) GetResident(ctx context.Context, id string) (*model.Resident, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var r model.Resident
	err := s.db.QueryRowContext(ctx, `
		SELECT id, full_name, COALESCE(house_number, ''),
		       COALESCE(account_number, ''), created_at
		FROM residents WHERE id = ?
	`, id).Scan(&r.ID, &r.FullName, &r.HouseNumber, &r.AccountNumber, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: resident %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resident %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT alias FROM resident_aliases WHERE resident_id = ? ORDER BY alias`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query aliases for %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var alias string
		if err := rows.Scan(&alias); err != nil {
			return nil, fmt.Errorf("failed to scan alias: %w", err)
		}
		r.Aliases = append(r.Aliases, alias)
	}
	return &r, rows.Err()
}

// SaveResident upserts a resident and replaces its aliases.
func (s *SQLiteStorage) SaveResident(ctx context.Context, resident *model.Resident) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateResident(resident); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO residents (id, full_name, house_number, account_number)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			full_name = excluded.full_name,
			house_number = excluded.house_number,
			account_number = excluded.account_number
	`, resident.ID, resident.FullName, resident.HouseNumber, resident.AccountNumber)
	if err != nil {
		return fmt.Errorf("failed to upsert resident %s: %w", resident.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM resident_aliases WHERE resident_id = ?`, resident.ID); err != nil {
		return fmt.Errorf("failed to clear aliases for %s: %w", resident.ID, err)
	}
	for _, alias := range resident.Aliases {
		if _, err := tx.ExecContext(ctx, `INSERT INTO resident_aliases (resident_id, alias) VALUES (?, ?)`, resident.ID, alias); err != nil {
			return fmt.Errorf("failed to insert alias %q for %s: %w", alias, resident.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit resident %s: %w", resident.ID, err)
	}

	s.cacheMutex.Lock()
	s.directoryCache = nil
	s.cacheMutex.Unlock()

	return nil
}

// GetExpenseCategory retrieves one expense category by ID.
func (s *SQLiteStorage) GetExpenseCategory(ctx context.Context, id string) (*model.ExpenseCategory, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var c model.ExpenseCategory
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM expense_categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: expense category %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense category %s: %w", id, err)
	}
	return &c, nil
}

// GetExpenseCategories lists the expense categories available for debit
// review.
func (s *SQLiteStorage) GetExpenseCategories(ctx context.Context) ([]model.ExpenseCategory, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM expense_categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query expense categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.ExpenseCategory
	for rows.Next() {
		var c model.ExpenseCategory
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// SaveExpenseCategory upserts an expense category.
func (s *SQLiteStorage) SaveExpenseCategory(ctx context.Context, category model.ExpenseCategory) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(category.ID, "category ID"); err != nil {
		return err
	}
	if err := validateString(category.Name, "category name"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expense_categories (id, name)
		VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, category.ID, category.Name)
	if err != nil {
		return fmt.Errorf("failed to upsert expense category %s: %w", category.ID, err)
	}
	return nil
}
