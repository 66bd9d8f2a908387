// Package cache defines the caching model for fetched registry
// metadata.
//
// Two consistency regimes coexist. Manifest and config entries are
// content-addressed: keyed by their digest, immutable, written at most
// once. Listing entries (catalogs, tag lists, tag resolutions) mutate
// on the registry side, so they are keyed by location and carry a
// freshness window instead.
package cache

import (
	"errors"
	"time"
)

// Kind identifies the type of cached payload.
type Kind string

const (
	KindCatalog  Kind = "catalog"
	KindTagList  Kind = "taglist"
	KindResolve  Kind = "resolve"
	KindManifest Kind = "manifest"
	KindConfig   Kind = "config"
)

// ContentAddressed reports whether entries of this kind are keyed by
// their content digest and therefore immutable.
func (k Kind) ContentAddressed() bool {
	return k == KindManifest || k == KindConfig
}

// Sentinel errors for store operations.
var (
	// ErrIO is returned on disk failures. Callers treat it as a miss.
	ErrIO = errors.New("cache: io failure")

	// ErrCorrupt is returned when a stored entry cannot be decoded.
	// The entry is evicted and treated as a miss.
	ErrCorrupt = errors.New("cache: corrupt entry")

	// ErrIntegrity is returned when a payload does not match its
	// claimed digest. Unlike the other cache errors it must surface.
	ErrIntegrity = errors.New("cache: payload does not match digest")
)

// Entry is a single cached payload with its metadata.
type Entry struct {
	Key       string    `json:"key"`
	Kind      Kind      `json:"kind"`
	Payload   []byte    `json:"payload"`
	Digest    string    `json:"digest,omitempty"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Store is durable key-value storage for registry metadata.
//
// Implementations must be safe for concurrent use; content-addressed
// keys must tolerate concurrent writers without corruption.
type Store interface {
	// Get returns the entry for key if present and fresh.
	Get(key string, kind Kind) (*Entry, bool)

	// Put stores an entry. Re-putting an existing content-addressed
	// key is a no-op success.
	Put(entry *Entry) error

	// Invalidate drops the entry for key if present.
	Invalidate(key string) error
}

// TTL holds the freshness windows for listing kinds. Content-addressed
// kinds never expire.
type TTL struct {
	Catalog time.Duration
	TagList time.Duration
	Resolve time.Duration
}

// DefaultTTL returns the default freshness policy.
func DefaultTTL() TTL {
	return TTL{
		Catalog: 5 * time.Minute,
		TagList: 5 * time.Minute,
		Resolve: 5 * time.Minute,
	}
}

// For returns the freshness window for kind, or zero for
// content-addressed kinds.
func (t TTL) For(kind Kind) time.Duration {
	switch kind {
	case KindCatalog:
		return t.Catalog
	case KindTagList:
		return t.TagList
	case KindResolve:
		return t.Resolve
	default:
		return 0
	}
}

// ListingKey builds the location-addressed key for a listing entry.
// repository is empty for catalog entries.
func ListingKey(registry, repository string, kind Kind) string {
	return registry + "/" + repository + "/" + string(kind)
}

// ResolveKey builds the key for a cached tag-to-digest resolution.
func ResolveKey(registry, repository, tag string) string {
	return registry + "/" + repository + "/" + string(KindResolve) + "/" + tag
}

// ContentKey builds the content-addressed key for a digest in
// canonical algorithm:hex form.
func ContentKey(digest string) string {
	return digest
}
