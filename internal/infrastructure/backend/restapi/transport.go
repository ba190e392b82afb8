package restapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/formpack-portal/internal/core/domain"
)

const (
	maxErrorBodyBytes   = 2048
	maxStatusBodyBytes  = 4096
	maxPackageBodyBytes = 8 << 20
)

// packageURL builds path?packageId=<id> with form-style query encoding.
func (c *Client) packageURL(path, packageID string) (string, error) {
	fragment, err := runtime.StyleParamWithLocation("form", true, "packageId", runtime.ParamLocationQuery, packageID)
	if err != nil {
		return "", fmt.Errorf("encode packageId: %w", err)
	}
	query, err := url.ParseQuery(fragment)
	if err != nil {
		return "", fmt.Errorf("parse packageId query: %w", err)
	}
	return c.baseURL + path + "?" + query.Encode(), nil
}

func (c *Client) get(ctx context.Context, rawURL string, limit int64, operation string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", operation, err)
	}
	return c.do(req, limit, operation)
}

func (c *Client) postMultipart(ctx context.Context, path, name string, files []domain.UploadFile, operation string) ([]byte, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("name", name); err != nil {
		return nil, fmt.Errorf("write %s name field: %w", operation, err)
	}
	for _, file := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, file.Name))
		contentType := strings.TrimSpace(file.ContentType)
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, fmt.Errorf("create %s file part: %w", operation, err)
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, fmt.Errorf("write %s file part: %w", operation, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close %s multipart body: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.do(req, maxStatusBodyBytes, operation)
}

func (c *Client) do(req *http.Request, limit int64, operation string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, formatBackendHTTPError(operation, resp)
	}
	payload, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", operation, err)
	}
	if int64(len(payload)) > limit {
		return nil, domain.WrapError(domain.ErrInvalidResponse, operation, fmt.Errorf("response exceeds %d bytes", limit))
	}
	return payload, nil
}

func formatBackendHTTPError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
}
