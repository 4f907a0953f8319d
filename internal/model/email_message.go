package model

import "time"

// MessageStatus represents the parse state of a fetched email.
type MessageStatus string

// Message statuses. A message is written once by the fetcher and moved to a
// terminal state by the parsing stage; it is never mutated afterward.
const (
	MessageStatusPending MessageStatus = "pending"
	MessageStatusParsed  MessageStatus = "parsed"
	MessageStatusFailed  MessageStatus = "failed"
	MessageStatusSkipped MessageStatus = "skipped"
)

// EmailMessage is one raw email captured during a fetch, prior to
// transaction extraction. ProviderMessageID is the mailbox dedup key:
// refetching the same window must never duplicate rows.
type EmailMessage struct {
	ReceivedAt        time.Time
	CreatedAt         time.Time
	ID                string
	ImportID          string
	ProviderMessageID string
	Sender            string
	Subject           string
	Body              string
	AttachmentRef     string
	Status            MessageStatus
	Error             string
}

// HasAttachment reports whether the message carries a statement attachment.
func (m *EmailMessage) HasAttachment() bool {
	return m.AttachmentRef != ""
}
