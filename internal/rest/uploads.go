package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/dmelo/supportdesk/internal/cache"
)

// UploadSignature is the backend's signed-upload grant for direct uploads
// to the object-storage provider.
type UploadSignature struct {
	CloudName    string `json:"cloud_name"`
	APIKey       string `json:"api_key"`
	Timestamp    int64  `json:"timestamp"`
	Signature    string `json:"signature"`
	UploadPreset string `json:"upload_preset,omitempty"`
}

// uploadResult is the subset of the provider's response the backend cares
// about when registering the attachment record.
type uploadResult struct {
	PublicID     string `json:"public_id"`
	URL          string `json:"url"`
	SecureURL    string `json:"secure_url"`
	ResourceType string `json:"resource_type"`
	Format       string `json:"format"`
	Bytes        int64  `json:"bytes"`
}

// SignUpload requests a signed-upload grant from the backend.
func (c *Client) SignUpload(ctx context.Context) (UploadSignature, error) {
	var sig UploadSignature
	err := c.get(ctx, "/uploads/sign", &sig)
	return sig, err
}

// UploadFile runs the full signed-upload flow: fetch a signature, POST the
// file directly to the storage provider as multipart form data, then
// register the resulting asset as an attachment record. owner ties the
// attachment to a ticket or testing record.
func (c *Client) UploadFile(ctx context.Context, filename string, content io.Reader, owner AttachmentInput) (cache.Entity, error) {
	sig, err := c.SignUpload(ctx)
	if err != nil {
		return nil, fmt.Errorf("sign upload: %w", err)
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, err
	}
	size, err := io.Copy(part, content)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	_ = form.WriteField("api_key", sig.APIKey)
	_ = form.WriteField("timestamp", strconv.FormatInt(sig.Timestamp, 10))
	_ = form.WriteField("signature", sig.Signature)
	if sig.UploadPreset != "" {
		_ = form.WriteField("upload_preset", sig.UploadPreset)
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	uploadURL := fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/upload", sig.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload to provider: %w", err)
	}
	defer drain(resp)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Message: "storage provider rejected upload"}
	}

	var result uploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}

	record := owner
	record.Filename = filepath.Base(filename)
	record.PublicID = result.PublicID
	record.URL = result.URL
	record.SecureURL = result.SecureURL
	record.ResourceType = result.ResourceType
	record.Format = result.Format
	record.Size = result.Bytes
	if record.Size == 0 {
		record.Size = size
	}
	return c.CreateAttachment(ctx, record)
}
