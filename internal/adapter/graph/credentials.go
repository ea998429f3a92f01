package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/vertextoedge/sharepoint-list-sync/internal/domain"
	"github.com/vertextoedge/sharepoint-list-sync/internal/port"
)

// CredentialConfig contains client-credentials settings
type CredentialConfig struct {
	Authority    string
	TenantID     string
	ClientID     string
	ClientSecret string
	Scope        string
	SafetyMargin time.Duration
}

// CredentialProvider obtains and caches an app-only access token
type CredentialProvider struct {
	cfg        CredentialConfig
	httpClient *http.Client
	now        func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// Ensure CredentialProvider implements port.TokenSource
var _ port.TokenSource = (*CredentialProvider)(nil)

// NewCredentialProvider creates a provider. httpClient and now may be nil.
func NewCredentialProvider(cfg CredentialConfig, httpClient *http.Client, now func() time.Time) *CredentialProvider {
	if cfg.Authority == "" {
		cfg.Authority = DefaultAuthority
	}
	if cfg.Scope == "" {
		cfg.Scope = DefaultScope
	}
	if cfg.SafetyMargin <= 0 {
		cfg.SafetyMargin = 60 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if now == nil {
		now = time.Now
	}
	return &CredentialProvider{cfg: cfg, httpClient: httpClient, now: now}
}

// Token returns the cached token, exchanging credentials when it is missing or
// within the safety margin of expiry.
func (p *CredentialProvider) Token(ctx context.Context) (string, time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && p.now().Before(p.expiry.Add(-p.cfg.SafetyMargin)) {
		return p.token, p.expiry, nil
	}

	if err := p.checkConfig(); err != nil {
		return "", time.Time{}, err
	}

	token, expiry, err := p.exchange(ctx)
	if err != nil {
		return "", time.Time{}, err
	}

	p.token = token
	p.expiry = expiry
	return token, expiry, nil
}

// Invalidate drops the cached token
func (p *CredentialProvider) Invalidate() {
	p.mu.Lock()
	p.token = ""
	p.expiry = time.Time{}
	p.mu.Unlock()
}

func (p *CredentialProvider) checkConfig() error {
	switch {
	case p.cfg.TenantID == "":
		return domain.NewAuthError("tenant id is not configured", nil)
	case p.cfg.ClientID == "":
		return domain.NewAuthError("client id is not configured", nil)
	case p.cfg.ClientSecret == "":
		return domain.NewAuthError("client secret is not configured", nil)
	}
	return nil
}

func (p *CredentialProvider) exchange(ctx context.Context) (string, time.Time, error) {
	endpoint := fmt.Sprintf("%s/%s/oauth2/v2.0/token",
		strings.TrimRight(p.cfg.Authority, "/"), url.PathEscape(p.cfg.TenantID))

	form := url.Values{
		"client_id":     {p.cfg.ClientID},
		"client_secret": {p.cfg.ClientSecret},
		"grant_type":    {"client_credentials"},
		"scope":         {p.cfg.Scope},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, domain.NewAuthError("failed to create token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	issuedAt := p.now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, domain.NewAuthError("token request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", time.Time{}, domain.NewAuthError("failed to read token response", err)
	}

	var tr tokenResponse
	decodeErr := json.Unmarshal(body, &tr)

	if resp.StatusCode < 200 || resp.StatusCode > 299 || tr.Error != "" {
		reason := fmt.Sprintf("identity endpoint returned %d", resp.StatusCode)
		if tr.Error != "" {
			return "", time.Time{}, domain.NewAuthError(reason, fmt.Errorf("%s: %s", tr.Error, tr.ErrorDescription))
		}
		return "", time.Time{}, domain.NewAuthError(reason, nil)
	}
	if decodeErr != nil {
		return "", time.Time{}, domain.NewAuthError("failed to decode token response", decodeErr)
	}
	if tr.AccessToken == "" {
		return "", time.Time{}, domain.NewAuthError("identity endpoint returned no access token", nil)
	}

	expiresIn, err := tr.ExpiresIn.Int64()
	if err != nil || expiresIn <= 0 {
		expiresIn = 3600
	}

	return tr.AccessToken, issuedAt.Add(time.Duration(expiresIn) * time.Second), nil
}
