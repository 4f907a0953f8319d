// Package gmail implements the mailbox collaborator over the Gmail API.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/residio-ng/residio/internal/common"
	"github.com/residio-ng/residio/internal/service"
)

const mailboxUser = "me"

// Config holds mailbox query settings.
type Config struct {
	// Senders narrows listing to these from-addresses or domains.
	Senders []string
}

// Client talks to one Gmail mailbox.
type Client struct {
	svc *gmailapi.Service
	cfg Config
}

// NewClient creates a Gmail mailbox client with the given API options
// (typically an OAuth token source).
func NewClient(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Client, error) {
	svc, err := gmailapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMailboxConnection, err)
	}
	return &Client{svc: svc, cfg: cfg}, nil
}

// ListMessagesByCriteria lists candidate messages matching the criteria.
func (c *Client) ListMessagesByCriteria(ctx context.Context, criteria service.ListCriteria) ([]service.MessageRef, error) {
	query := c.buildQuery(criteria)

	call := c.svc.Users.Messages.List(mailboxUser).Q(query).Context(ctx)
	if criteria.MaxResults > 0 {
		call = call.MaxResults(int64(criteria.MaxResults))
	}

	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("%w: listing messages: %v", common.ErrMailboxConnection, err)
	}

	refs := make([]service.MessageRef, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		refs = append(refs, service.MessageRef{ProviderMessageID: msg.Id})
	}
	return refs, nil
}

// GetMessage downloads one message, decoding its text body and noting the
// first PDF attachment if any.
func (c *Client) GetMessage(ctx context.Context, providerID string) (*service.RawEmail, error) {
	msg, err := c.svc.Users.Messages.Get(mailboxUser, providerID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: getting message %s: %v", common.ErrMailboxConnection, providerID, err)
	}

	email := &service.RawEmail{
		ProviderID: msg.Id,
		ReceivedAt: time.UnixMilli(msg.InternalDate),
	}
	for _, header := range msg.Payload.Headers {
		switch header.Name {
		case "Subject":
			email.Subject = header.Value
		case "From":
			email.Sender = header.Value
		}
	}

	email.Body = extractBody(msg.Payload)
	email.AttachmentID = findPDFAttachment(msg.Payload)

	return email, nil
}

// GetAttachment downloads and decodes one attachment.
func (c *Client) GetAttachment(ctx context.Context, providerID, attachmentID string) ([]byte, error) {
	body, err := c.svc.Users.Messages.Attachments.Get(mailboxUser, providerID, attachmentID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: getting attachment: %v", common.ErrMailboxConnection, err)
	}
	data, err := base64.URLEncoding.DecodeString(body.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode attachment data: %w", err)
	}
	return data, nil
}

// buildQuery assembles a Gmail search query from the criteria plus the
// configured sender filter.
func (c *Client) buildQuery(criteria service.ListCriteria) string {
	var parts []string

	senders := criteria.Senders
	if len(senders) == 0 {
		senders = c.cfg.Senders
	}
	if len(senders) > 0 {
		parts = append(parts, "from:("+strings.Join(senders, " OR ")+")")
	}
	if criteria.Subject != "" {
		parts = append(parts, fmt.Sprintf("subject:%q", criteria.Subject))
	}
	if criteria.SinceDays > 0 {
		parts = append(parts, fmt.Sprintf("newer_than:%dd", criteria.SinceDays))
	}

	return strings.Join(parts, " ")
}

// extractBody walks the MIME tree for the first text part, preferring
// plain text over HTML.
func extractBody(part *gmailapi.MessagePart) string {
	if part == nil {
		return ""
	}

	if plain := findTextPart(part, "text/plain"); plain != "" {
		return plain
	}
	return findTextPart(part, "text/html")
}

func findTextPart(part *gmailapi.MessagePart, mimeType string) string {
	if part.MimeType == mimeType && part.Body != nil && part.Body.Data != "" {
		decoded, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err != nil {
			return ""
		}
		return string(decoded)
	}
	for _, child := range part.Parts {
		if text := findTextPart(child, mimeType); text != "" {
			return text
		}
	}
	return ""
}

// findPDFAttachment returns the attachment ID of the first PDF part.
func findPDFAttachment(part *gmailapi.MessagePart) string {
	if part == nil {
		return ""
	}
	if part.Body != nil && part.Body.AttachmentId != "" &&
		(part.MimeType == "application/pdf" || strings.HasSuffix(strings.ToLower(part.Filename), ".pdf")) {
		return part.Body.AttachmentId
	}
	for _, child := range part.Parts {
		if id := findPDFAttachment(child); id != "" {
			return id
		}
	}
	return ""
}
