// Package socrata implements the paginated SODA client used to pull IDEAM
// rainfall observations from the open-data portal.
package socrata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/geoandina/rainfall-etl/internal/domain"
)

// timestampLayout is the Socrata floating-timestamp form used in $where
// predicates; the dataset stores fechaobservacion without a zone marker.
const timestampLayout = "2006-01-02T15:04:05"

// Client queries one Socrata dataset. A single instance is reused across all
// block fetches of a run.
type Client struct {
	httpClient *http.Client
	baseURL    string
	dataset    string
	token      string
	logger     *slog.Logger
}

// NewClient creates a SODA client for the given portal host and dataset
// identifier. An empty token is allowed; the portal throttles tokenless
// clients aggressively.
func NewClient(host, dataset, token string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: host,
		dataset: dataset,
		token:   token,
		logger:  logger,
	}
}

// FetchPage retrieves one page of observation records whose timestamp falls
// inside the window. It returns a *domain.TransientError for network errors,
// timeouts, throttling, and 5xx responses, and a *domain.FatalError for auth
// rejections and malformed queries. A page shorter than limit signals
// exhaustion for the window; the caller owns that decision.
func (c *Client) FetchPage(ctx context.Context, window domain.TimeWindow, offset, limit int) ([]domain.RawRecord, error) {
	u := fmt.Sprintf("%s/resource/%s.json", c.baseURL, c.dataset)
	where := fmt.Sprintf("fechaobservacion >= '%s' AND fechaobservacion < '%s'",
		window.Start.Format(timestampLayout), window.End.Format(timestampLayout))
	params := url.Values{
		"$select": {"*"},
		"$where":  {where},
		"$order":  {"fechaobservacion"},
		"$limit":  {fmt.Sprint(limit)},
		"$offset": {fmt.Sprint(offset)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &domain.FatalError{Err: fmt.Errorf("create request: %w", err)}
	}
	if c.token != "" {
		req.Header.Set("X-App-Token", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyRequestError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, classifyStatus(resp.StatusCode, body)
	}

	var records []domain.RawRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		// A truncated body mid-transfer is a connectivity problem, not a
		// malformed query; retrying the same page is safe.
		return nil, &domain.TransientError{Err: fmt.Errorf("decode page at offset %d: %w", offset, err)}
	}

	return records, nil
}

// classifyRequestError maps transport-level failures. Timeouts and connection
// errors are transient; anything else on the request path is fatal.
func classifyRequestError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return &domain.TransientError{Err: err}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &domain.TransientError{Err: err}
	}
	return &domain.FatalError{Err: err}
}

func classifyStatus(status int, body []byte) error {
	err := fmt.Errorf("portal returned status %d: %s", status, body)
	switch {
	case status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500:
		return &domain.TransientError{Err: err}
	default:
		// 400 malformed query, 401/403 bad token: retrying cannot help.
		return &domain.FatalError{Err: err}
	}
}
