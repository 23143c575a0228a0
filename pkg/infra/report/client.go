package report

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
)

// Client talks to the coverage/report endpoint and the package index
// publish endpoint. Both accept multipart uploads.
type Client struct {
	httpClient  *http.Client
	coverageURL string
	publishURL  string
	token       string
}

var _ interfaces.ReportClient = (*Client)(nil)

// Option is a functional option for Client configuration
type Option func(*Client)

// WithHTTPClient overrides the HTTP client, mainly for tests
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithToken sets the bearer token attached to publish requests
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// New creates a report client for the given endpoints
func New(coverageURL, publishURL string, opts ...Option) *Client {
	c := &Client{
		httpClient:  http.DefaultClient,
		coverageURL: coverageURL,
		publishURL:  publishURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UploadCoverage uploads a coverage report for a commit
func (c *Client) UploadCoverage(ctx context.Context, repository, sha, flag string, report io.Reader) error {
	if c.coverageURL == "" {
		return goerr.New("coverage endpoint not configured")
	}

	fields := map[string]string{
		"repository": repository,
		"commit":     sha,
	}
	if flag != "" {
		fields["flag"] = flag
	}

	return c.upload(ctx, c.coverageURL, "report", "coverage.xml", report, fields)
}

// PublishPackage uploads a distribution file to the package index
func (c *Client) PublishPackage(ctx context.Context, filename string, dist io.Reader) error {
	if c.publishURL == "" {
		return goerr.New("publish endpoint not configured")
	}

	return c.upload(ctx, c.publishURL, "content", filename, dist, map[string]string{
		":action": "file_upload",
	})
}

func (c *Client) upload(ctx context.Context, url, fileField, filename string, r io.Reader, fields map[string]string) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return goerr.Wrap(err, "failed to write form field", goerr.V("field", k))
		}
	}

	fw, err := mw.CreateFormFile(fileField, filename)
	if err != nil {
		return goerr.Wrap(err, "failed to create form file")
	}
	if _, err := io.Copy(fw, r); err != nil {
		return goerr.Wrap(err, "failed to copy upload body")
	}
	if err := mw.Close(); err != nil {
		return goerr.Wrap(err, "failed to finalize multipart body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return goerr.Wrap(err, "failed to create upload request", goerr.V("url", url))
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(err, "failed to upload", goerr.V("url", url))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return goerr.New("upload rejected", goerr.V("url", url), goerr.V("status", resp.StatusCode))
	}
	return nil
}
