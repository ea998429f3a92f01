package graph

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vertextoedge/sharepoint-list-sync/internal/domain"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTokenServer(t *testing.T, calls *int32, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/tenant-1/oauth2/v2.0/token", r.URL.Path)
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "client-1", r.PostForm.Get("client_id"))
		assert.Equal(t, "secret", r.PostForm.Get("client_secret"))
		assert.Equal(t, DefaultScope, r.PostForm.Get("scope"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func credentialConfig(authority string) CredentialConfig {
	return CredentialConfig{
		Authority:    authority,
		TenantID:     "tenant-1",
		ClientID:     "client-1",
		ClientSecret: "secret",
	}
}

func TestCredentialProvider_CachesUntilSafetyMargin(t *testing.T) {
	var calls int32
	srv := newTokenServer(t, &calls, http.StatusOK, `{"access_token":"tok","expires_in":3600,"token_type":"Bearer"}`)
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}

	p := NewCredentialProvider(credentialConfig(srv.URL), srv.Client(), clock.Now)

	token, expiry, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
	assert.Equal(t, clock.now.Add(time.Hour), expiry)

	clock.now = clock.now.Add(58 * time.Minute)
	_, _, err = p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "token should come from cache")

	// inside the 60s margin
	clock.now = clock.now.Add(90 * time.Second)
	_, _, err = p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "token should be refreshed")
}

func TestCredentialProvider_Invalidate(t *testing.T) {
	var calls int32
	srv := newTokenServer(t, &calls, http.StatusOK, `{"access_token":"tok","expires_in":"3599"}`)
	p := NewCredentialProvider(credentialConfig(srv.URL), srv.Client(), nil)

	_, _, err := p.Token(context.Background())
	require.NoError(t, err)
	p.Invalidate()
	_, _, err = p.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCredentialProvider_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		cfg    func(CredentialConfig) CredentialConfig
	}{
		{
			name:   "missing tenant",
			status: http.StatusOK,
			cfg:    func(c CredentialConfig) CredentialConfig { c.TenantID = ""; return c },
		},
		{
			name:   "missing secret",
			status: http.StatusOK,
			cfg:    func(c CredentialConfig) CredentialConfig { c.ClientSecret = ""; return c },
		},
		{
			name:   "rejected",
			status: http.StatusUnauthorized,
			body:   `{"error":"invalid_client","error_description":"AADSTS7000215: Invalid client secret"}`,
		},
		{
			name:   "no token in body",
			status: http.StatusOK,
			body:   `{"token_type":"Bearer"}`,
		},
		{
			name:   "malformed body",
			status: http.StatusOK,
			body:   `<html>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := newTokenServer(t, &calls, tt.status, tt.body)
			cfg := credentialConfig(srv.URL)
			if tt.cfg != nil {
				cfg = tt.cfg(cfg)
			}

			p := NewCredentialProvider(cfg, srv.Client(), nil)
			_, _, err := p.Token(context.Background())

			require.Error(t, err)
			assert.True(t, domain.IsAuthError(err), "want AuthError, got %T: %v", err, err)
		})
	}
}
