package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/and161185/makerhub/internal/model"
)

// UploadFile is one file part of a multipart upload.
type UploadFile struct {
	Field  string // form field, defaults to "file"
	Name   string
	Reader io.Reader
}

// Upload posts a multipart body. The body is buffered so a retry after refresh can resend it.
func (c *Client) Upload(ctx context.Context, endpoint string, file UploadFile, fields map[string]string, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("api: write field %s: %w", k, err)
		}
	}
	field := file.Field
	if field == "" {
		field = "file"
	}
	part, err := w.CreateFormFile(field, file.Name)
	if err != nil {
		return fmt.Errorf("api: create form file: %w", err)
	}
	if _, err := io.Copy(part, file.Reader); err != nil {
		return fmt.Errorf("api: read upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("api: close multipart: %w", err)
	}
	return c.dispatch(ctx, &request{
		method:      http.MethodPost,
		endpoint:    endpoint,
		body:        buf.Bytes(),
		contentType: w.FormDataContentType(),
	}, out)
}

// UploadTo stores a file under the given category ("image", "avatar" or "file").
func (c *Client) UploadTo(ctx context.Context, category, name string, r io.Reader) (*model.Upload, error) {
	var out model.Upload
	err := c.Upload(ctx, "/upload/"+url.PathEscape(category), UploadFile{Name: name, Reader: r}, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
