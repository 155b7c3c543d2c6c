// Package backend talks to the remote recognition service: a health probe,
// the image quality analysis endpoint, and the full recognition endpoint.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hpungsan/medscan/internal/drug"
	"github.com/hpungsan/medscan/internal/errors"
)

// Endpoint paths relative to the base URL.
const (
	PathHealth       = "/health"
	PathAnalyzeImage = "/analyze-image"
	PathRecognize    = "/recognize"
)

// ImageField is the multipart field name both upload endpoints read.
const ImageField = "image"

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 5 * 1024 * 1024

// Client calls the recognition backend.
type Client struct {
	baseURL     string
	http        *http.Client
	logger      *log.Logger
	defaultWait time.Duration
	maxWait     time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client (tests use httptest's).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithDefaultWait sets the flash-retry delay used when guidance has no wait_time.
func WithDefaultWait(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.defaultWait = d
		}
	}
}

// WithMaxWait sets the ceiling applied to a guidance wait_time.
func WithMaxWait(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.maxWait = d
		}
	}
}

// New creates a Client for baseURL. A zero timeout means no client-side timeout.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        &http.Client{Timeout: timeout},
		logger:      log.Default(),
		defaultWait: drug.DefaultWait,
		maxWait:     drug.MaxWait,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health probes GET {base}/health. Any network error or non-2xx status is
// reported as a CONNECTIVITY error.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+PathHealth, nil)
	if err != nil {
		return errors.NewConnectivity(c.baseURL, err)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Printf("GET %s failed (request %s): %v", PathHealth, reqID, err)
		return errors.NewConnectivity(c.baseURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	c.logger.Printf("GET %s -> %d (request %s)", PathHealth, resp.StatusCode, reqID)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.NewConnectivity(c.baseURL, fmt.Errorf("health check returned HTTP %d", resp.StatusCode))
	}
	return nil
}

// upload POSTs img as multipart field "image" and returns the status and body.
func (c *Client) upload(ctx context.Context, path string, img drug.Image) (int, []byte, error) {
	if len(img.Data) == 0 {
		return 0, nil, fmt.Errorf("image is empty")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	contentType := img.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(img.Data)
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="%s"; filename="%s"`, ImageField, uploadFilename(img.Filename, contentType)))
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return 0, nil, fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return 0, nil, fmt.Errorf("write multipart part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return 0, nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Printf("POST %s failed (request %s): %v", path, reqID, err)
		return 0, nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	c.logger.Printf("POST %s -> %d in %s (request %s)", path, resp.StatusCode, time.Since(start).Round(time.Millisecond), reqID)
	return resp.StatusCode, body, nil
}

// uploadFilename guarantees an image extension the backend accepts
// (png, jpg, jpeg, bmp).
func uploadFilename(name, contentType string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "capture"
	}
	name = strings.NewReplacer(`"`, "", "\r", "", "\n", "").Replace(name)

	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".bmp":
		return name
	}
	switch contentType {
	case "image/png":
		return name + ".png"
	case "image/bmp":
		return name + ".bmp"
	default:
		return name + ".jpg"
	}
}

func isSuccessStatus(status int) bool {
	return status >= 200 && status <= 299
}
