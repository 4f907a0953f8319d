package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/residio-ng/residio/internal/model"
	"github.com/residio-ng/residio/internal/service"
)

// CreateEmailImport opens a new import session in pending state.
func (p *Pipeline) CreateEmailImport(ctx context.Context, trigger model.ImportTrigger, createdBy string) (*model.EmailImport, error) {
	imp := &model.EmailImport{
		ID:        uuid.NewString(),
		Status:    model.ImportStatusPending,
		Trigger:   trigger,
		CreatedBy: createdBy,
	}
	if err := p.storage.CreateEmailImport(ctx, imp); err != nil {
		return nil, fmt.Errorf("failed to create import session: %w", err)
	}

	p.audit(ctx, createdBy, "import.create", "email_import", imp.ID, "", string(imp.Status))
	return imp, nil
}

// GetEmailImport returns one session.
func (p *Pipeline) GetEmailImport(ctx context.Context, id string) (*model.EmailImport, error) {
	return p.storage.GetEmailImport(ctx, id)
}

// ListEmailImports returns sessions newest-first.
func (p *Pipeline) ListEmailImports(ctx context.Context, filter service.ImportFilter) ([]model.EmailImport, error) {
	return p.storage.ListEmailImports(ctx, filter)
}

// failImport marks a session failed with the cause. Once failed, no stage
// may advance the session again.
func (p *Pipeline) failImport(ctx context.Context, importID string, cause error) {
	err := p.storage.UpdateEmailImportStatus(ctx, importID, model.ImportStatusFailed, service.ImportPatch{
		Error: cause.Error(),
	})
	if err != nil {
		slog.Error("Failed to mark import failed",
			"import_id", importID,
			"cause", cause,
			"error", err)
	}
}

// audit records a state-changing action. Audit failures are logged, not
// propagated: losing an audit row must not abort the action it describes.
func (p *Pipeline) audit(ctx context.Context, actor, action, entityType, entityID, before, after string) {
	err := p.storage.AppendAudit(ctx, model.AuditEntry{
		Actor:      actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Before:     before,
		After:      after,
	})
	if err != nil {
		slog.Error("Failed to append audit entry", "action", action, "error", err)
	}
}
