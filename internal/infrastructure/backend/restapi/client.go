package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/formpack-portal/internal/core/domain"
	"github.com/kirillkom/formpack-portal/internal/infrastructure/resilience"
)

const (
	operationCreate = "create_package"
	operationStatus = "get_package_status"
	operationGet    = "get_package"
)

type Options struct {
	Timeout           time.Duration
	ValidateResponses bool
	Executor          *resilience.Executor
	HTTPClient        *http.Client
}

// Client talks to the package backend over its three REST endpoints.
type Client struct {
	baseURL    string
	validate   bool
	executor   *resilience.Executor
	httpClient *http.Client
}

func New(baseURL string, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		validate:   opts.ValidateResponses,
		executor:   opts.Executor,
		httpClient: httpClient,
	}
}

func (c *Client) CreatePackage(ctx context.Context, name string, files []domain.UploadFile) (string, error) {
	if len(files) == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, operationCreate, fmt.Errorf("no files selected"))
	}
	body, err := resilience.Call(ctx, c.executor, operationCreate, func(callCtx context.Context) ([]byte, error) {
		return c.postMultipart(callCtx, "/createPackage", name, files, operationCreate)
	}, classifyCreateError)
	if err != nil {
		return "", mapBackendError(operationCreate, err)
	}

	id, err := parsePackageID(body)
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidResponse, operationCreate, err)
	}
	return id, nil
}

func (c *Client) GetPackageStatus(ctx context.Context, packageID string) (domain.StatusReading, error) {
	target, err := c.packageURL("/getPackageStatus", packageID)
	if err != nil {
		return domain.StatusReading{}, domain.WrapError(domain.ErrInvalidInput, operationStatus, err)
	}
	body, err := resilience.Call(ctx, c.executor, operationStatus, func(callCtx context.Context) ([]byte, error) {
		return c.get(callCtx, target, maxStatusBodyBytes, operationStatus)
	}, classifyBackendError)
	if err != nil {
		return domain.StatusReading{}, mapBackendError(operationStatus, err)
	}
	return domain.ReadStatus(string(body)), nil
}

func (c *Client) GetPackage(ctx context.Context, packageID string) (*domain.Package, error) {
	target, err := c.packageURL("/getPackage", packageID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, operationGet, err)
	}
	body, err := resilience.Call(ctx, c.executor, operationGet, func(callCtx context.Context) ([]byte, error) {
		return c.get(callCtx, target, maxPackageBodyBytes, operationGet)
	}, classifyBackendError)
	if err != nil {
		return nil, mapBackendError(operationGet, err)
	}

	if c.validate {
		var raw any
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, domain.WrapError(domain.ErrInvalidResponse, operationGet, fmt.Errorf("decode package json: %w", err))
		}
		if err := validateComponent("Package", raw); err != nil {
			return nil, domain.WrapError(domain.ErrInvalidResponse, operationGet, fmt.Errorf("package schema: %w", err))
		}
	}

	var wire wirePackage
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidResponse, operationGet, fmt.Errorf("decode package: %w", err))
	}
	pkg := wire.Package
	if len(wire.ID) > 0 {
		id, err := scalarString(wire.ID)
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidResponse, operationGet, fmt.Errorf("decode packageId: %w", err))
		}
		pkg.ID = id
	}
	return &pkg, nil
}

// wirePackage decodes a package record whose packageId may be a JSON string
// or number.
type wirePackage struct {
	domain.Package
	ID json.RawMessage `json:"packageId"`
}

// parsePackageID accepts packageId as a JSON string or number and falls back
// to an "id" member.
func parsePackageID(body []byte) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	for _, key := range []string{"packageId", "id"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		id, err := scalarString(raw)
		if err != nil {
			return "", fmt.Errorf("decode %s: %w", key, err)
		}
		if id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("create response has no package id")
}

func scalarString(raw json.RawMessage) (string, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text), nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var number json.Number
	if err := dec.Decode(&number); err != nil {
		return "", fmt.Errorf("expected string or number, got %s", string(raw))
	}
	return number.String(), nil
}
