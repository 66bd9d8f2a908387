package rex

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/rex/digest"
)

// fakeRegistryServer serves a minimal distribution API with one
// repository holding one tag.
func fakeRegistryServer(t *testing.T) (host string, manifestDigest digest.Digest) {
	t.Helper()

	created := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	cfgBody := []byte(fmt.Sprintf(`{"architecture":"arm64","os":"linux","created":%q}`, created.Format(time.RFC3339)))
	cfgDigest := digest.FromBytes(cfgBody)

	manifest := []byte(fmt.Sprintf(`{
		"schemaVersion": 2,
		"mediaType": "application/vnd.oci.image.manifest.v1+json",
		"config": {"mediaType": "application/vnd.oci.image.config.v1+json", "digest": %q, "size": %d},
		"layers": [{"mediaType": "application/vnd.oci.image.layer.v1.tar+gzip", "digest": %q, "size": 4096}]
	}`, cfgDigest, len(cfgBody), cfgDigest))
	manifestDigest = digest.FromBytes(manifest)

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v2/_catalog", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"repositories":["myorg/app","myorg/worker"]}`)
	})
	mux.HandleFunc("/v2/myorg/app/tags/list", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"name":"myorg/app","tags":["v1"]}`)
	})
	mux.HandleFunc("/v2/myorg/worker/tags/list", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"name":"myorg/worker","tags":[]}`)
	})
	serveManifest := func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.oci.image.manifest.v1+json")
		w.Header().Set("Docker-Content-Digest", manifestDigest.String())
		w.Write(manifest)
	}
	mux.HandleFunc("/v2/myorg/app/manifests/v1", serveManifest)
	mux.HandleFunc("/v2/myorg/app/manifests/"+manifestDigest.String(), serveManifest)
	mux.HandleFunc("/v2/myorg/app/blobs/"+cfgDigest.String(), func(w http.ResponseWriter, _ *http.Request) {
		w.Write(cfgBody)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://"), manifestDigest
}

func newTestExplorer(t *testing.T, opts ...Option) *Explorer {
	t.Helper()
	ex, err := New(append([]Option{WithPlainHTTP(true)}, opts...)...)
	require.NoError(t, err)
	return ex
}

func TestExplorerEndToEnd(t *testing.T) {
	t.Parallel()

	host, manifestDigest := fakeRegistryServer(t)
	ex := newTestExplorer(t, WithCacheDir(t.TempDir()))
	ctx := context.Background()

	require.NoError(t, ex.Check(ctx, host))

	repos, err := ex.Repositories(ctx, host)
	require.NoError(t, err)
	assert.Equal(t, []string{"myorg/app", "myorg/worker"}, repos)

	items, failures, err := ex.FetchRepositories(ctx, host)
	require.NoError(t, err)
	assert.Empty(t, failures)
	require.Len(t, items, 2)
	assert.Equal(t, 1, items[0].TagCount)

	infos, failures, err := ex.FetchAllTags(ctx, host, "myorg/app")
	require.NoError(t, err)
	assert.Empty(t, failures)
	require.Len(t, infos, 1)
	assert.Equal(t, "v1", infos[0].Tag)
	assert.Equal(t, manifestDigest, infos[0].Digest)
	assert.Equal(t, []string{"linux/arm64"}, infos[0].Platforms)
	require.NotNil(t, infos[0].Created)

	info, err := ex.Resolve(ctx, host+"/myorg/app:v1")
	require.NoError(t, err)
	assert.Equal(t, manifestDigest, info.Digest)
	assert.True(t, info.FromCache, "second lookup should come from cache")

	cfg, err := ex.Config(ctx, host+"/myorg/app:v1", "")
	require.NoError(t, err)
	assert.Equal(t, "arm64", cfg.Architecture)

	stats, err := ex.CacheStats()
	require.NoError(t, err)
	assert.Positive(t, stats.Entries)
}

func TestExplorerSearch(t *testing.T) {
	t.Parallel()

	host, _ := fakeRegistryServer(t)
	ex := newTestExplorer(t)
	ctx := context.Background()

	matches, err := ex.SearchRepositories(ctx, host, "worker")
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "myorg/worker", matches[0].Value)

	tags, err := ex.SearchTags(ctx, host, "myorg/app", "v")
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "v1", tags[0].Value)
}

func TestExplorerManifest(t *testing.T) {
	t.Parallel()

	host, manifestDigest := fakeRegistryServer(t)
	ex := newTestExplorer(t)

	res, err := ex.Manifest(context.Background(), host+"/myorg/app:v1")
	require.NoError(t, err)
	assert.Equal(t, manifestDigest, res.Digest)
	require.NotNil(t, res.Document.Manifest)

	_, err = ex.Manifest(context.Background(), "not a valid ref!!")
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func TestExplorerNoCacheMaintenance(t *testing.T) {
	t.Parallel()

	ex := newTestExplorer(t)
	_, err := ex.CacheStats()
	assert.ErrorIs(t, err, ErrNoCache)
	_, _, err = ex.CachePrune()
	assert.ErrorIs(t, err, ErrNoCache)
	_, _, err = ex.CacheClear()
	assert.ErrorIs(t, err, ErrNoCache)
}
