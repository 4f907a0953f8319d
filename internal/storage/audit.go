package storage

import (
	"context"
	"fmt"

	"github.com/residio-ng/residio/internal/model"
)

// AppendAudit records one state-changing action.
func (s *SQLiteStorage) AppendAudit(ctx context.Context, entry model.AuditEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(entry.Action, "action"); err != nil {
		return err
	}
	if err := validateString(entry.EntityType, "entityType"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (actor, action, entity_type, entity_id, before_state, after_state)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.Actor, entry.Action, entry.EntityType, entry.EntityID, entry.Before, entry.After)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}
