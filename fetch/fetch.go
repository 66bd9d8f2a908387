// Package fetch coordinates concurrent retrieval of registry metadata.
//
// A Fetcher fans requests out across a bounded pool of workers,
// consults the cache before the network, retries rate-limited requests
// with exponential backoff, and stops issuing new requests once the
// registry rejects credentials. Results always come back in the order
// the inputs were given, regardless of completion order.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/meigma/rex/cache"
	"github.com/meigma/rex/client"
	"github.com/meigma/rex/digest"
	"github.com/meigma/rex/oci"
	"github.com/meigma/rex/reference"
)

const (
	defaultConcurrency = 4
	defaultMaxRetries  = 3
)

// ErrSkipped marks work that was never attempted because an earlier
// request in the same batch came back unauthorized.
var ErrSkipped = errors.New("fetch: skipped after unauthorized response")

// Registry is the client surface the fetchers need. *client.Client
// satisfies it.
type Registry interface {
	Catalog(ctx context.Context, registry string) ([]string, error)
	Tags(ctx context.Context, registry, repository string) ([]string, error)
	Manifest(ctx context.Context, ref reference.Reference) (*client.ManifestResult, error)
	Blob(ctx context.Context, registry, repository string, d digest.Digest) ([]byte, error)
}

// TagInfo is the collected metadata for one tag.
type TagInfo struct {
	Repository string        `json:"repository"`
	Tag        string        `json:"tag"`
	Digest     digest.Digest `json:"digest"`
	MediaType  string        `json:"mediaType"`
	Size       int64         `json:"size"`
	Platforms  []string      `json:"platforms,omitempty"`
	Created    *time.Time    `json:"created,omitempty"`
	FromCache  bool          `json:"fromCache"`
}

// RepositoryItem summarizes one repository in a registry.
type RepositoryItem struct {
	Name     string `json:"name"`
	TagCount int    `json:"tagCount"`
}

// Failure records why one input could not be fetched.
type Failure struct {
	Repository string
	Tag        string
	Err        error
}

func (f Failure) String() string {
	if f.Tag != "" {
		return f.Repository + ":" + f.Tag + ": " + f.Err.Error()
	}
	return f.Repository + ": " + f.Err.Error()
}

// Fetcher retrieves registry metadata concurrently with a cache in
// front of the network. Safe for concurrent use.
type Fetcher struct {
	registry    Registry
	store       cache.Store
	concurrency int
	maxRetries  uint64
	fetchConfig bool
	logger      *slog.Logger
}

// New creates a Fetcher backed by the given registry client.
func New(registry Registry, opts ...Option) *Fetcher {
	f := &Fetcher{
		registry:    registry,
		concurrency: defaultConcurrency,
		maxRetries:  defaultMaxRetries,
		fetchConfig: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fetcher) log() *slog.Logger {
	if f.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return f.logger
}

// ListRepositories returns the registry catalog with per-repository
// tag counts. The catalog itself is cached; tag counts are fetched
// concurrently and repositories whose tag listing fails are reported
// as failures rather than failing the whole listing.
func (f *Fetcher) ListRepositories(ctx context.Context, registry string) ([]RepositoryItem, []Failure, error) {
	repos, err := f.catalog(ctx, registry)
	if err != nil {
		return nil, nil, err
	}

	items := make([]*RepositoryItem, len(repos))

	errs, err := f.forEach(ctx, len(repos), func(ctx context.Context, i int) error {
		tags, err := f.tagList(ctx, registry, repos[i])
		if err != nil {
			return err
		}
		items[i] = &RepositoryItem{Name: repos[i], TagCount: len(tags)}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var out []RepositoryItem
	var failures []Failure
	for i, item := range items {
		if item != nil {
			out = append(out, *item)
			continue
		}
		failures = append(failures, Failure{Repository: repos[i], Err: errs[i]})
	}
	return out, failures, nil
}

// Repositories returns the registry catalog, cache-first.
func (f *Fetcher) Repositories(ctx context.Context, registry string) ([]string, error) {
	return f.catalog(ctx, registry)
}

// ListTags returns the tags of a repository, cache-first.
func (f *Fetcher) ListTags(ctx context.Context, registry, repository string) ([]string, error) {
	return f.tagList(ctx, registry, repository)
}

// FetchTags retrieves metadata for the given tags of one repository.
// Successful results come back in input order; inputs that failed are
// reported in the failure list, also in input order. The returned
// error is non-nil only when the whole batch was aborted, such as by
// context cancellation.
func (f *Fetcher) FetchTags(ctx context.Context, registry, repository string, tags []string) ([]TagInfo, []Failure, error) {
	results := make([]*TagInfo, len(tags))

	errs, err := f.forEach(ctx, len(tags), func(ctx context.Context, i int) error {
		info, err := f.tagInfo(ctx, registry, repository, tags[i])
		if err != nil {
			return err
		}
		results[i] = info
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var out []TagInfo
	var failures []Failure
	for i, info := range results {
		if info != nil {
			out = append(out, *info)
			continue
		}
		failures = append(failures, Failure{Repository: repository, Tag: tags[i], Err: errs[i]})
	}
	return out, failures, nil
}

// FetchAllTags lists a repository's tags and fetches metadata for all
// of them.
func (f *Fetcher) FetchAllTags(ctx context.Context, registry, repository string) ([]TagInfo, []Failure, error) {
	tags, err := f.tagList(ctx, registry, repository)
	if err != nil {
		return nil, nil, err
	}
	return f.FetchTags(ctx, registry, repository, tags)
}

// Manifest returns the manifest document for a reference, cache-first.
// The boolean reports whether the result came from the cache.
func (f *Fetcher) Manifest(ctx context.Context, ref reference.Reference) (*client.ManifestResult, bool, error) {
	if d := ref.Digest(); !d.IsZero() {
		if res, ok := f.cachedManifest(d.String()); ok {
			return res, true, nil
		}
		res, err := f.fetchManifest(ctx, ref)
		return res, false, err
	}
	tag := ref.Tag()
	if tag == "" {
		tag = "latest"
	}
	return f.manifestFor(ctx, ref.Registry(), ref.Repository(), tag)
}

// Config returns the decoded image config for a manifest's config
// descriptor, cache-first.
func (f *Fetcher) Config(ctx context.Context, registry, repository string, d digest.Digest) (ocispec.Image, error) {
	return f.configFor(ctx, registry, repository, d.String())
}

// Resolve returns the metadata for a single parsed reference.
func (f *Fetcher) Resolve(ctx context.Context, ref reference.Reference) (*TagInfo, error) {
	if !ref.Digest().IsZero() {
		return f.infoByDigest(ctx, ref.Registry(), ref.Repository(), ref.Tag(), ref.Digest())
	}
	tag := ref.Tag()
	if tag == "" {
		tag = "latest"
	}
	return f.tagInfo(ctx, ref.Registry(), ref.Repository(), tag)
}

// forEach runs task for each index with bounded concurrency and
// collects per-index errors. Once any task comes back unauthorized,
// indexes that have not started are recorded as ErrSkipped instead of
// being attempted. The returned error is non-nil only when the batch
// as a whole was aborted, such as by context cancellation.
func (f *Fetcher) forEach(ctx context.Context, n int, task func(ctx context.Context, i int) error) ([]error, error) {
	sem := semaphore.NewWeighted(int64(f.concurrency))
	var unauthorized atomic.Bool
	errs := make([]error, n)

	eg, ctx := errgroup.WithContext(ctx)
	for i := range n {
		eg.Go(func() error {
			if unauthorized.Load() {
				errs[i] = ErrSkipped
				return nil
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			if unauthorized.Load() {
				errs[i] = ErrSkipped
				return nil
			}

			err := task(ctx, i)
			if err == nil {
				return nil
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if errors.Is(err, client.ErrUnauthorized) {
				unauthorized.Store(true)
			}
			errs[i] = err
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return errs, nil
}

// tagInfo assembles the metadata for one tag, cache-first.
func (f *Fetcher) tagInfo(ctx context.Context, registry, repository, tag string) (*TagInfo, error) {
	res, fromCache, err := f.manifestFor(ctx, registry, repository, tag)
	if err != nil {
		return nil, err
	}
	return f.buildInfo(ctx, registry, repository, tag, res, fromCache)
}

// infoByDigest assembles metadata for a digest reference, bypassing
// tag resolution.
func (f *Fetcher) infoByDigest(ctx context.Context, registry, repository, tag string, d digest.Digest) (*TagInfo, error) {
	if res, ok := f.cachedManifest(d.String()); ok {
		return f.buildInfo(ctx, registry, repository, tag, res, true)
	}

	ref, err := reference.Parse(registry + "/" + repository + "@" + d.String())
	if err != nil {
		return nil, err
	}
	res, err := f.fetchManifest(ctx, ref)
	if err != nil {
		return nil, err
	}
	return f.buildInfo(ctx, registry, repository, tag, res, false)
}

func (f *Fetcher) buildInfo(ctx context.Context, registry, repository, tag string, res *client.ManifestResult, fromCache bool) (*TagInfo, error) {
	info := &TagInfo{
		Repository: repository,
		Tag:        tag,
		Digest:     res.Digest,
		MediaType:  res.MediaType,
		Size:       res.Document.Size(),
		Platforms:  res.Document.Platforms(),
		FromCache:  fromCache,
	}

	if f.fetchConfig && res.Document.Manifest != nil {
		cfg, err := f.configFor(ctx, registry, repository, res.Document.Manifest.Config.Digest.String())
		if err != nil {
			return nil, err
		}
		info.Created = cfg.Created
		if cfg.OS != "" && cfg.Architecture != "" {
			info.Platforms = []string{oci.PlatformString(cfg.Platform)}
		}
	}
	return info, nil
}

// manifestFor returns the manifest for a tag, trying the cached
// tag resolution and manifest first.
func (f *Fetcher) manifestFor(ctx context.Context, registry, repository, tag string) (*client.ManifestResult, bool, error) {
	if f.store != nil {
		if entry, ok := f.store.Get(cache.ResolveKey(registry, repository, tag), cache.KindResolve); ok {
			if res, ok := f.cachedManifest(string(entry.Payload)); ok {
				f.log().Debug("manifest cache hit", "repository", repository, "tag", tag)
				return res, true, nil
			}
		}
	}

	ref, err := reference.Parse(registry + "/" + repository + ":" + tag)
	if err != nil {
		return nil, false, err
	}
	res, err := f.fetchManifest(ctx, ref)
	if err != nil {
		return nil, false, err
	}

	if f.store != nil {
		f.put(&cache.Entry{
			Key:     cache.ResolveKey(registry, repository, tag),
			Kind:    cache.KindResolve,
			Payload: []byte(res.Digest.String()),
		})
	}
	return res, false, nil
}

// cachedManifest reconstructs a ManifestResult from a cached entry.
func (f *Fetcher) cachedManifest(digestStr string) (*client.ManifestResult, bool) {
	if f.store == nil {
		return nil, false
	}
	entry, ok := f.store.Get(cache.ContentKey(digestStr), cache.KindManifest)
	if !ok {
		return nil, false
	}
	d, err := digest.Parse(entry.Digest)
	if err != nil {
		return nil, false
	}
	doc, err := oci.Decode(entry.Payload)
	if err != nil {
		return nil, false
	}
	return &client.ManifestResult{
		Raw:      entry.Payload,
		Digest:   d,
		Document: doc,
	}, true
}

// fetchManifest retrieves a manifest from the network with rate-limit
// retries and writes it through to the cache.
func (f *Fetcher) fetchManifest(ctx context.Context, ref reference.Reference) (*client.ManifestResult, error) {
	var res *client.ManifestResult
	err := f.withRetry(ctx, func() error {
		var err error
		res, err = f.registry.Manifest(ctx, ref)
		return err
	})
	if err != nil {
		return nil, err
	}

	if f.store != nil {
		f.put(&cache.Entry{
			Key:     cache.ContentKey(res.Digest.String()),
			Kind:    cache.KindManifest,
			Payload: res.Raw,
			Digest:  res.Digest.String(),
		})
	}
	return res, nil
}

// configFor returns the image config for a manifest, cache-first.
func (f *Fetcher) configFor(ctx context.Context, registry, repository, digestStr string) (ocispec.Image, error) {
	if f.store != nil {
		if entry, ok := f.store.Get(cache.ContentKey(digestStr), cache.KindConfig); ok {
			cfg, err := oci.DecodeConfig(entry.Payload)
			if err == nil {
				return cfg, nil
			}
		}
	}

	d, err := digest.Parse(digestStr)
	if err != nil {
		return ocispec.Image{}, fmt.Errorf("config digest %q: %w", digestStr, err)
	}

	var body []byte
	err = f.withRetry(ctx, func() error {
		var err error
		body, err = f.registry.Blob(ctx, registry, repository, d)
		return err
	})
	if err != nil {
		return ocispec.Image{}, err
	}

	if f.store != nil {
		f.put(&cache.Entry{
			Key:     cache.ContentKey(digestStr),
			Kind:    cache.KindConfig,
			Payload: body,
			Digest:  digestStr,
		})
	}
	return oci.DecodeConfig(body)
}

// catalog returns the repository catalog, cache-first.
func (f *Fetcher) catalog(ctx context.Context, registry string) ([]string, error) {
	key := cache.ListingKey(registry, "", cache.KindCatalog)
	if f.store != nil {
		if entry, ok := f.store.Get(key, cache.KindCatalog); ok {
			var repos []string
			if err := json.Unmarshal(entry.Payload, &repos); err == nil {
				return repos, nil
			}
		}
	}

	var repos []string
	err := f.withRetry(ctx, func() error {
		var err error
		repos, err = f.registry.Catalog(ctx, registry)
		return err
	})
	if err != nil {
		return nil, err
	}

	if f.store != nil {
		if payload, err := json.Marshal(repos); err == nil {
			f.put(&cache.Entry{Key: key, Kind: cache.KindCatalog, Payload: payload})
		}
	}
	return repos, nil
}

// tagList returns a repository's tags, cache-first.
func (f *Fetcher) tagList(ctx context.Context, registry, repository string) ([]string, error) {
	key := cache.ListingKey(registry, repository, cache.KindTagList)
	if f.store != nil {
		if entry, ok := f.store.Get(key, cache.KindTagList); ok {
			var tags []string
			if err := json.Unmarshal(entry.Payload, &tags); err == nil {
				return tags, nil
			}
		}
	}

	var tags []string
	err := f.withRetry(ctx, func() error {
		var err error
		tags, err = f.registry.Tags(ctx, registry, repository)
		return err
	})
	if err != nil {
		return nil, err
	}

	if f.store != nil {
		if payload, err := json.Marshal(tags); err == nil {
			f.put(&cache.Entry{Key: key, Kind: cache.KindTagList, Payload: payload})
		}
	}
	return tags, nil
}

// put writes an entry to the store. Caching is opportunistic, so
// write failures are logged and otherwise ignored.
func (f *Fetcher) put(entry *cache.Entry) {
	if err := f.store.Put(entry); err != nil {
		f.log().Warn("cache write failed", "key", entry.Key, "err", err)
	}
}

// rateLimitBackOff replaces the next wait interval with the server's
// Retry-After hint when one was provided. The hint is consumed by a
// single interval; exhaustion (Stop) from the wrapped policy always
// passes through.
type rateLimitBackOff struct {
	backoff.BackOff
	hint time.Duration
}

func (b *rateLimitBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop {
		return backoff.Stop
	}
	if b.hint > 0 {
		next = b.hint
		b.hint = 0
	}
	return next
}

// withRetry runs op, retrying rate-limited responses with exponential
// backoff. A Retry-After hint from the registry replaces the next
// backoff interval. All other errors are returned immediately.
func (f *Fetcher) withRetry(ctx context.Context, op func() error) error {
	rl := &rateLimitBackOff{BackOff: backoff.WithMaxRetries(backoff.NewExponentialBackOff(), f.maxRetries)}
	bo := backoff.WithContext(rl, ctx)
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		var rle *client.RateLimitError
		if !errors.As(err, &rle) {
			return backoff.Permanent(err)
		}
		rl.hint = rle.RetryAfter
		f.log().Debug("retrying rate-limited request", "retry_after", rle.RetryAfter)
		return err
	}, bo)
}
