// Package status provides an HTTP client for the analysis backend's
// read-only scan status endpoint.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/factsentry/factsentry/internal/domain/scanning"
	"github.com/factsentry/factsentry/pkg/common/logger"
)

const defaultRequestTimeout = 10 * time.Second

var _ scanning.StatusReader = (*Client)(nil)

// Client implements scanning.StatusReader against the analysis backend's
// GET /scans/{scan_id} endpoint. Requests are traced via an instrumented
// transport.
type Client struct {
	baseURL    string
	httpClient *http.Client

	logger *logger.Logger
}

// NewClient creates a status client for the given base URL.
func NewClient(baseURL string, logger *logger.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   defaultRequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.With("component", "status_client"),
	}
}

// ReadStatus fetches the backend's current view of the scan.
func (c *Client) ReadStatus(ctx context.Context, scanID string) (*scanning.StatusSnapshot, error) {
	endpoint := fmt.Sprintf("%s/scans/%s", c.baseURL, url.PathEscape(scanID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %d for scan %s", resp.StatusCode, scanID)
	}

	var snap scanning.StatusSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}

	c.logger.Debug(ctx, "Fetched scan status",
		"scan_id", scanID,
		"status", snap.Status.String(),
		"messages_scanned", snap.MessagesScanned,
	)

	return &snap, nil
}
