package rex

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/meigma/rex/cache"
	"github.com/meigma/rex/client"
	"github.com/meigma/rex/fetch"
)

// Option configures an Explorer.
type Option func(*Explorer) error

// WithCredential sets a static credential used for every registry.
func WithCredential(cred client.Credential) Option {
	return func(e *Explorer) error {
		e.clientOpts = append(e.clientOpts, client.WithCredential(cred))
		return nil
	}
}

// WithCredentialFunc sets a per-host credential resolver.
func WithCredentialFunc(fn client.CredentialFunc) Option {
	return func(e *Explorer) error {
		e.clientOpts = append(e.clientOpts, client.WithCredentialFunc(fn))
		return nil
	}
}

// WithCacheDir enables the disk-backed metadata cache rooted at dir.
// Without it every call goes to the network.
func WithCacheDir(dir string) Option {
	return func(e *Explorer) error {
		e.cacheDir = dir
		return nil
	}
}

// WithStaleness sets the freshness windows for cached listings.
// Manifests and configs are content-addressed and never expire.
func WithStaleness(ttl cache.TTL) Option {
	return func(e *Explorer) error {
		e.ttl = ttl
		return nil
	}
}

// WithConcurrency bounds the number of in-flight registry requests.
func WithConcurrency(n int) Option {
	return func(e *Explorer) error {
		e.fetchOpts = append(e.fetchOpts, fetch.WithConcurrency(n))
		return nil
	}
}

// WithMaxRetries sets how many times rate-limited requests are retried.
func WithMaxRetries(n uint64) Option {
	return func(e *Explorer) error {
		e.fetchOpts = append(e.fetchOpts, fetch.WithMaxRetries(n))
		return nil
	}
}

// WithConfigMetadata controls whether tag fetches also retrieve image
// configs for creation time and platform details.
func WithConfigMetadata(enabled bool) Option {
	return func(e *Explorer) error {
		e.fetchOpts = append(e.fetchOpts, fetch.WithConfigMetadata(enabled))
		return nil
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(e *Explorer) error {
		e.clientOpts = append(e.clientOpts, client.WithHTTPClient(hc))
		return nil
	}
}

// WithTimeout sets the per-request deadline.
func WithTimeout(d time.Duration) Option {
	return func(e *Explorer) error {
		e.clientOpts = append(e.clientOpts, client.WithTimeout(d))
		return nil
	}
}

// WithPlainHTTP enables plain HTTP (no TLS) for registries.
// This is useful for local development registries.
func WithPlainHTTP(enabled bool) Option {
	return func(e *Explorer) error {
		e.clientOpts = append(e.clientOpts, client.WithPlainHTTP(enabled))
		return nil
	}
}

// WithUserAgent sets the User-Agent header for requests.
func WithUserAgent(ua string) Option {
	return func(e *Explorer) error {
		e.clientOpts = append(e.clientOpts, client.WithUserAgent(ua))
		return nil
	}
}

// WithLogger sets the logger shared by the client, fetcher, and cache.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Explorer) error {
		e.logger = logger
		return nil
	}
}
