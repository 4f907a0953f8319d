// Package model defines the core domain types shared across the application.
package model

import "time"

// ImportStatus represents the lifecycle state of an email import session.
type ImportStatus string

// Import session statuses. Progression is forward-only; failed is terminal.
const (
	ImportStatusPending   ImportStatus = "pending"
	ImportStatusFetching  ImportStatus = "fetching"
	ImportStatusParsing   ImportStatus = "parsing"
	ImportStatusMatching  ImportStatus = "matching"
	ImportStatusCompleted ImportStatus = "completed"
	ImportStatusFailed    ImportStatus = "failed"
)

// ImportTrigger records what started an import session.
type ImportTrigger string

// Import triggers.
const (
	TriggerManual    ImportTrigger = "manual"
	TriggerScheduled ImportTrigger = "scheduled"
)

// importTransitions is the allowed forward progression for import sessions.
// Any non-terminal state may additionally transition to failed.
var importTransitions = map[ImportStatus]ImportStatus{
	ImportStatusPending:  ImportStatusFetching,
	ImportStatusFetching: ImportStatusParsing,
	ImportStatusParsing:  ImportStatusMatching,
	ImportStatusMatching: ImportStatusCompleted,
}

// EmailImport represents one end-to-end fetch/parse/match run.
type EmailImport struct {
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ID            string
	Status        ImportStatus
	Trigger       ImportTrigger
	CreatedBy     string
	Error         string
	EmailsFetched int
	EmailsParsed  int
	EmailsMatched int
}

// CanTransition reports whether the session may move to the target status.
func (i *EmailImport) CanTransition(to ImportStatus) bool {
	if i.Status == ImportStatusFailed || i.Status == ImportStatusCompleted {
		return false
	}
	if to == ImportStatusFailed {
		return true
	}
	return importTransitions[i.Status] == to
}

// IsTerminal reports whether the session can no longer advance.
func (i *EmailImport) IsTerminal() bool {
	return i.Status == ImportStatusCompleted || i.Status == ImportStatusFailed
}
