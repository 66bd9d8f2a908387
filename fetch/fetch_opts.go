package fetch

import (
	"log/slog"

	"github.com/meigma/rex/cache"
)

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithStore sets the metadata cache. Without a store every call goes
// to the network.
func WithStore(store cache.Store) Option {
	return func(f *Fetcher) {
		f.store = store
	}
}

// WithConcurrency bounds the number of in-flight registry requests.
// Values below 1 select the default.
func WithConcurrency(n int) Option {
	return func(f *Fetcher) {
		if n >= 1 {
			f.concurrency = n
		}
	}
}

// WithMaxRetries sets how many times a rate-limited request is retried
// before its failure is recorded. Use 0 to disable retries.
func WithMaxRetries(n uint64) Option {
	return func(f *Fetcher) {
		f.maxRetries = n
	}
}

// WithConfigMetadata controls whether tag fetches also retrieve the
// image config blob for creation time and build details. Enabled by
// default; disabling halves the requests per tag.
func WithConfigMetadata(enabled bool) Option {
	return func(f *Fetcher) {
		f.fetchConfig = enabled
	}
}

// WithLogger sets the logger for fetch tracing.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}
