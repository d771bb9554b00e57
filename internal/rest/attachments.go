package rest

import (
	"context"
	"net/http"

	"github.com/dmelo/supportdesk/internal/cache"
)

// AttachmentInput registers an uploaded asset with the backend. Exactly one
// owner field is set depending on what the file was attached to.
type AttachmentInput struct {
	Filename     string `json:"filename"`
	PublicID     string `json:"cloudinary_public_id,omitempty"`
	URL          string `json:"url"`
	SecureURL    string `json:"secure_url,omitempty"`
	ResourceType string `json:"resource_type,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	Size         int64  `json:"size,omitempty"`
	Format       string `json:"format,omitempty"`

	TicketID  string `json:"ticket_id,omitempty"`
	TestingID string `json:"testing_id,omitempty"`
}

// ListAttachments returns all attachment records.
func (c *Client) ListAttachments(ctx context.Context) ([]cache.Entity, error) {
	var attachments []cache.Entity
	if err := c.get(ctx, "/attachments/", &attachments); err != nil {
		return nil, err
	}
	return attachments, nil
}

// CreateAttachment registers an attachment record after a direct upload.
func (c *Client) CreateAttachment(ctx context.Context, in AttachmentInput) (cache.Entity, error) {
	var attachment cache.Entity
	if err := c.do(ctx, http.MethodPost, "/attachments/", in, &attachment); err != nil {
		return nil, err
	}
	return attachment, nil
}

// DeleteAttachment removes an attachment record.
func (c *Client) DeleteAttachment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/attachments/"+id, nil, nil)
}
