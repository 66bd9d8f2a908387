// Package rex explores OCI container registries without pulling
// images: repository catalogs, tag listings, manifests, and image
// configs, retrieved concurrently and cached on disk.
//
// This package provides a unified high-level API through [Explorer].
// For lower-level building blocks use the subpackages directly:
// [github.com/meigma/rex/client] speaks the distribution API,
// [github.com/meigma/rex/fetch] coordinates concurrent retrieval, and
// [github.com/meigma/rex/cache] holds the metadata store.
//
// # Quick Start
//
// List the tags of a repository with their metadata:
//
//	ex, err := rex.New(rex.WithCacheDir("/var/cache/rex"))
//	if err != nil {
//	    return err
//	}
//	infos, failures, err := ex.FetchAllTags(ctx, "ghcr.io", "myorg/myapp")
//
// Inspect a single reference:
//
//	info, err := ex.Resolve(ctx, "ghcr.io/myorg/myapp:v1.2.3")
//
// # Caching
//
// With WithCacheDir set, manifests and configs are stored
// content-addressed and reused forever, while catalog and tag listings
// expire per the staleness windows configured with WithStaleness.
package rex
