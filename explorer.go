package rex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/meigma/rex/cache"
	"github.com/meigma/rex/cache/disk"
	"github.com/meigma/rex/client"
	"github.com/meigma/rex/digest"
	"github.com/meigma/rex/fetch"
	"github.com/meigma/rex/oci"
	"github.com/meigma/rex/reference"
	"github.com/meigma/rex/search"
)

// ErrNoCache is returned by cache maintenance methods when the
// explorer was built without WithCacheDir.
var ErrNoCache = errors.New("rex: no cache configured")

// Explorer provides high-level, cached, concurrent access to registry
// metadata. Safe for concurrent use.
type Explorer struct {
	registry *client.Client
	fetcher  *fetch.Fetcher
	store    *disk.Store // nil without WithCacheDir

	cacheDir   string
	ttl        cache.TTL
	logger     *slog.Logger
	clientOpts []client.Option
	fetchOpts  []fetch.Option
}

// New creates an Explorer with the given options.
func New(opts ...Option) (*Explorer, error) {
	e := &Explorer{ttl: cache.DefaultTTL()}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	if e.logger != nil {
		e.clientOpts = append(e.clientOpts, client.WithLogger(e.logger))
		e.fetchOpts = append(e.fetchOpts, fetch.WithLogger(e.logger))
	}
	e.registry = client.New(e.clientOpts...)

	if e.cacheDir != "" {
		diskOpts := []disk.Option{disk.WithTTL(e.ttl)}
		if e.logger != nil {
			diskOpts = append(diskOpts, disk.WithLogger(e.logger))
		}
		store, err := disk.New(e.cacheDir, diskOpts...)
		if err != nil {
			return nil, err
		}
		e.store = store
		e.fetchOpts = append(e.fetchOpts, fetch.WithStore(store))
	}

	e.fetcher = fetch.New(e.registry, e.fetchOpts...)
	return e, nil
}

// Check verifies that the registry speaks the distribution API and
// accepts the configured credentials.
func (e *Explorer) Check(ctx context.Context, registry string) error {
	return e.registry.Ping(ctx, registry)
}

// Repositories returns the registry catalog.
func (e *Explorer) Repositories(ctx context.Context, registry string) ([]string, error) {
	return e.fetcher.Repositories(ctx, registry)
}

// Tags returns the tags of a repository.
func (e *Explorer) Tags(ctx context.Context, registry, repository string) ([]string, error) {
	return e.fetcher.ListTags(ctx, registry, repository)
}

// FetchRepositories returns the catalog with per-repository tag counts.
func (e *Explorer) FetchRepositories(ctx context.Context, registry string) ([]fetch.RepositoryItem, []fetch.Failure, error) {
	return e.fetcher.ListRepositories(ctx, registry)
}

// FetchTags retrieves metadata for the given tags of one repository.
func (e *Explorer) FetchTags(ctx context.Context, registry, repository string, tags []string) ([]fetch.TagInfo, []fetch.Failure, error) {
	return e.fetcher.FetchTags(ctx, registry, repository, tags)
}

// FetchAllTags retrieves metadata for every tag of a repository.
func (e *Explorer) FetchAllTags(ctx context.Context, registry, repository string) ([]fetch.TagInfo, []fetch.Failure, error) {
	return e.fetcher.FetchAllTags(ctx, registry, repository)
}

// Resolve returns the metadata for a single reference string.
func (e *Explorer) Resolve(ctx context.Context, refStr string) (*fetch.TagInfo, error) {
	ref, err := reference.Parse(refStr)
	if err != nil {
		return nil, err
	}
	return e.fetcher.Resolve(ctx, ref)
}

// Manifest returns the manifest or index a reference points to.
func (e *Explorer) Manifest(ctx context.Context, refStr string) (*client.ManifestResult, error) {
	ref, err := reference.Parse(refStr)
	if err != nil {
		return nil, err
	}
	res, _, err := e.fetcher.Manifest(ctx, ref)
	return res, err
}

// Config returns the image config for a reference. For an index
// reference, platform selects the child manifest (os/arch or
// os/arch/variant); it is ignored for plain manifests.
func (e *Explorer) Config(ctx context.Context, refStr, platform string) (ocispec.Image, error) {
	ref, err := reference.Parse(refStr)
	if err != nil {
		return ocispec.Image{}, err
	}

	res, _, err := e.fetcher.Manifest(ctx, ref)
	if err != nil {
		return ocispec.Image{}, err
	}

	manifest := res.Document.Manifest
	if res.Document.Index != nil {
		desc, ok := oci.MatchPlatform(res.Document.Index, platform)
		if !ok {
			return ocispec.Image{}, fmt.Errorf("%w: no manifest for platform %s in %s", ErrNotFound, platform, refStr)
		}
		childRef, err := reference.Parse(ref.Registry() + "/" + ref.Repository() + "@" + desc.Digest.String())
		if err != nil {
			return ocispec.Image{}, err
		}
		child, _, err := e.fetcher.Manifest(ctx, childRef)
		if err != nil {
			return ocispec.Image{}, err
		}
		manifest = child.Document.Manifest
	}
	if manifest == nil {
		return ocispec.Image{}, ErrInvalidDocument
	}

	d, err := digest.Parse(manifest.Config.Digest.String())
	if err != nil {
		return ocispec.Image{}, err
	}
	return e.fetcher.Config(ctx, ref.Registry(), ref.Repository(), d)
}

// SearchRepositories fuzzy-matches the catalog against query.
func (e *Explorer) SearchRepositories(ctx context.Context, registry, query string) ([]search.Match, error) {
	repos, err := e.Repositories(ctx, registry)
	if err != nil {
		return nil, err
	}
	return search.Rank(query, repos), nil
}

// SearchTags fuzzy-matches a repository's tags against query.
func (e *Explorer) SearchTags(ctx context.Context, registry, repository, query string) ([]search.Match, error) {
	tags, err := e.Tags(ctx, registry, repository)
	if err != nil {
		return nil, err
	}
	return search.Rank(query, tags), nil
}

// CacheStats reports the size of the on-disk cache.
func (e *Explorer) CacheStats() (disk.Stats, error) {
	if e.store == nil {
		return disk.Stats{}, ErrNoCache
	}
	return e.store.Stats()
}

// CachePrune removes expired listings and corrupt entries from the
// cache, returning the number of files removed and bytes reclaimed.
func (e *Explorer) CachePrune() (int, int64, error) {
	if e.store == nil {
		return 0, 0, ErrNoCache
	}
	return e.store.Prune()
}

// CacheClear removes all cache entries.
func (e *Explorer) CacheClear() (int, int64, error) {
	if e.store == nil {
		return 0, 0, ErrNoCache
	}
	return e.store.Clear()
}
