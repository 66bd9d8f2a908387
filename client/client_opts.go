package client

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Credential carries authentication material for a registry host.
// Token takes precedence over username/password when both are set.
type Credential struct {
	Username string
	Password string
	Token    string
}

// Empty reports whether the credential carries no material.
func (c Credential) Empty() bool {
	return c.Username == "" && c.Password == "" && c.Token == ""
}

// CredentialFunc resolves the credential for a registry host.
// Returning an empty credential means anonymous access.
type CredentialFunc func(ctx context.Context, host string) (Credential, error)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request deadline. Use zero to rely solely
// on the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithUserAgent sets the User-Agent header for requests.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithCredential sets a static credential used for every registry.
func WithCredential(cred Credential) Option {
	return func(c *Client) {
		c.credential = func(context.Context, string) (Credential, error) {
			return cred, nil
		}
	}
}

// WithCredentialFunc sets a per-host credential resolver, such as one
// backed by the docker credential store.
func WithCredentialFunc(fn CredentialFunc) Option {
	return func(c *Client) {
		c.credential = fn
	}
}

// WithPlainHTTP enables plain HTTP (no TLS) for registries.
// This is useful for local development registries.
func WithPlainHTTP(enabled bool) Option {
	return func(c *Client) {
		c.plainHTTP = enabled
	}
}

// WithPageSize sets the page size requested for catalog and tag
// listings. Use zero to let the registry choose.
func WithPageSize(n int) Option {
	return func(c *Client) {
		c.pageSize = n
	}
}

// WithLogger sets the logger for request tracing.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}
