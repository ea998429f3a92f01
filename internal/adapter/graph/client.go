package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vertextoedge/sharepoint-list-sync/internal/domain"
	"github.com/vertextoedge/sharepoint-list-sync/internal/port"
	"go.uber.org/zap"
)

// maxPages bounds continuation-link following
const maxPages = 10000

// ClientConfig contains Graph client settings
type ClientConfig struct {
	BaseURL         string
	SiteID          string
	MediaListID     string // document library holding media folders
	MediaListName   string // resolved to MediaListID on first use when the id is empty
	PageSize        int
	MetadataTimeout time.Duration
	DownloadTimeout time.Duration
}

// Client is a Microsoft Graph API client scoped to one SharePoint site
type Client struct {
	cfg            ClientConfig
	tokens         port.TokenSource
	httpClient     *http.Client
	downloadClient *http.Client
	logger         *zap.Logger

	mediaListMu sync.Mutex
	mediaListID string
}

// Ensure Client implements the list and drive ports
var (
	_ port.ListClient  = (*Client)(nil)
	_ port.DriveClient = (*Client)(nil)
)

// NewClient creates a new Graph API client
func NewClient(cfg ClientConfig, tokens port.TokenSource, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MetadataTimeout <= 0 {
		cfg.MetadataTimeout = 30 * time.Second
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 120 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	downloadTransport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     120 * time.Second,
		ForceAttemptHTTP2:   true,

		// Disable compression for binary files (saves CPU)
		DisableCompression: true,

		ResponseHeaderTimeout: 30 * time.Second,
	}

	return &Client{
		cfg:    cfg,
		tokens: tokens,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.MetadataTimeout,
		},
		downloadClient: &http.Client{
			Transport: downloadTransport,
			Timeout:   cfg.DownloadTimeout,
		},
		logger:      logger,
		mediaListID: cfg.MediaListID,
	}
}

// WithHTTPClients replaces the transports, mainly for tests
func (c *Client) WithHTTPClients(api, download *http.Client) *Client {
	if api != nil {
		c.httpClient = api
	}
	if download != nil {
		c.downloadClient = download
	}
	return c
}

// siteURL builds an absolute URL below the configured site
func (c *Client) siteURL(format string, args ...any) string {
	return c.cfg.BaseURL + "/sites/" + c.cfg.SiteID + "/" + fmt.Sprintf(format, args...)
}

// doRequest performs an authenticated request. A 401 invalidates the token and
// retries once; a second 401 is an AuthError.
func (c *Client) doRequest(ctx context.Context, client *http.Client, method, urlStr string) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		token, _, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, method, urlStr, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return resp, nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		apiErr := newAPIError(resp.StatusCode, body)

		if apiErr.IsUnauthorized() {
			c.tokens.Invalidate()
			if attempt == 0 {
				continue
			}
			return nil, domain.NewAuthError("graph rejected the access token", apiErr)
		}
		if apiErr.IsThrottled() {
			return nil, domain.NewRetryableError(apiErr, retryAfter(resp.Header, time.Now()))
		}
		return nil, apiErr
	}
}

// retryAfter reads the Retry-After header, given either in seconds or as an
// HTTP date. Zero means the server gave no advice.
func retryAfter(h http.Header, now time.Time) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now).Round(time.Second)
	}
	return 0
}

// getJSON performs a GET and decodes the JSON body into out
func (c *Client) getJSON(ctx context.Context, urlStr string, out any) error {
	resp, err := c.doRequest(ctx, c.httpClient, http.MethodGet, urlStr)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &decodeError{err: err}
	}
	return nil
}

// decodeError marks a malformed response body
type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "failed to decode response: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func isDecodeError(err error) bool {
	var de *decodeError
	return errors.As(err, &de)
}

// collectPages follows @odata.nextLink until exhausted
func collectPages[T any](ctx context.Context, c *Client, firstURL string) ([]T, error) {
	var all []T
	next := firstURL
	for pages := 0; next != ""; pages++ {
		if pages >= maxPages {
			return nil, fmt.Errorf("pagination exceeded %d pages", maxPages)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var p page[T]
		if err := c.getJSON(ctx, next, &p); err != nil {
			return nil, err
		}
		all = append(all, p.Value...)

		if p.NextLink == next {
			break
		}
		next = p.NextLink
	}
	return all, nil
}
