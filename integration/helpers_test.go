//go:build integration

package integration

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	godigest "github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/meigma/rex"
)

// --- Registry Container Setup ---

var (
	registryOnce sync.Once
	registryAddr string
	registryErr  error
)

// getRegistry returns the shared registry address, starting the container if needed.
// The container is shared across all tests for performance.
func getRegistry(tb testing.TB) string {
	tb.Helper()

	if os.Getenv("SKIP_DOCKER_TESTS") == "1" {
		tb.Skip("SKIP_DOCKER_TESTS is set")
	}

	registryOnce.Do(func() {
		ctx := context.Background()
		registryAddr, registryErr = startRegistryContainer(ctx)
	})

	if registryErr != nil {
		tb.Fatalf("start registry container: %v", registryErr)
	}

	return registryAddr
}

// startRegistryContainer starts a registry:2 container and returns the host:port address.
func startRegistryContainer(ctx context.Context) (string, error) {
	req := testcontainers.ContainerRequest{
		Image:        "registry:2",
		ExposedPorts: []string{"5000/tcp"},
		WaitingFor:   wait.ForHTTP("/v2/").WithPort("5000/tcp").WithStatusCodeMatcher(isOKStatus),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("start registry container: %w", err)
	}

	// Note: Container cleanup is handled by testcontainers Reaper.

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve registry host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5000/tcp")
	if err != nil {
		return "", fmt.Errorf("resolve registry port: %w", err)
	}

	return fmt.Sprintf("%s:%s", host, port.Port()), nil
}

func isOKStatus(status int) bool {
	return status >= 200 && status < 300
}

// --- Test Explorer Factory ---

// newTestExplorer creates an explorer configured for the local test registry,
// caching under a per-test temp directory.
func newTestExplorer(tb testing.TB, opts ...rex.Option) *rex.Explorer {
	tb.Helper()

	allOpts := append([]rex.Option{
		rex.WithPlainHTTP(true),
		rex.WithCacheDir(tb.TempDir()),
	}, opts...)

	explorer, err := rex.New(allOpts...)
	require.NoError(tb, err, "create test explorer")

	return explorer
}

// --- Image Seeding ---

// seedSpec describes a single-platform image to push into the test registry.
type seedSpec struct {
	Repository string
	Tag        string
	OS         string
	Arch       string
	Created    time.Time
	LayerSize  int
}

// seedImage pushes a minimal image (one layer, one config, one manifest)
// into the registry over the Distribution push protocol and returns the
// manifest digest.
func seedImage(tb testing.TB, addr string, spec seedSpec) godigest.Digest {
	tb.Helper()

	if spec.OS == "" {
		spec.OS = "linux"
	}
	if spec.Arch == "" {
		spec.Arch = "amd64"
	}
	if spec.LayerSize == 0 {
		spec.LayerSize = 256
	}

	layer := make([]byte, spec.LayerSize)
	_, err := rand.Read(layer)
	require.NoError(tb, err, "generate layer content")
	layerDigest := pushBlob(tb, addr, spec.Repository, layer)

	created := spec.Created
	config := ocispec.Image{
		Created: &created,
		Platform: ocispec.Platform{
			OS:           spec.OS,
			Architecture: spec.Arch,
		},
		Config: ocispec.ImageConfig{
			Cmd: []string{"/bin/sh"},
		},
	}
	configRaw, err := json.Marshal(config)
	require.NoError(tb, err, "marshal config")
	configDigest := pushBlob(tb, addr, spec.Repository, configRaw)

	manifest := ocispec.Manifest{
		MediaType: ocispec.MediaTypeImageManifest,
		Config: ocispec.Descriptor{
			MediaType: ocispec.MediaTypeImageConfig,
			Digest:    configDigest,
			Size:      int64(len(configRaw)),
		},
		Layers: []ocispec.Descriptor{{
			MediaType: ocispec.MediaTypeImageLayerGzip,
			Digest:    layerDigest,
			Size:      int64(len(layer)),
		}},
	}
	manifest.SchemaVersion = 2
	manifestRaw, err := json.Marshal(manifest)
	require.NoError(tb, err, "marshal manifest")

	return pushManifest(tb, addr, spec.Repository, spec.Tag, manifestRaw)
}

// pushBlob uploads a blob via the two-step upload flow and returns its digest.
func pushBlob(tb testing.TB, addr, repository string, data []byte) godigest.Digest {
	tb.Helper()

	d := godigest.FromBytes(data)

	startURL := fmt.Sprintf("http://%s/v2/%s/blobs/uploads/", addr, repository)
	resp, err := http.Post(startURL, "", nil)
	require.NoError(tb, err, "start blob upload")
	resp.Body.Close()
	require.Equal(tb, http.StatusAccepted, resp.StatusCode, "start blob upload status")

	loc := resp.Header.Get("Location")
	require.NotEmpty(tb, loc, "upload location")
	if strings.HasPrefix(loc, "/") {
		loc = "http://" + addr + loc
	}
	sep := "?"
	if strings.Contains(loc, "?") {
		sep = "&"
	}

	req, err := http.NewRequest(http.MethodPut, loc+sep+"digest="+d.String(), bytes.NewReader(data))
	require.NoError(tb, err, "build blob put")
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err = http.DefaultClient.Do(req)
	require.NoError(tb, err, "put blob")
	resp.Body.Close()
	require.Equal(tb, http.StatusCreated, resp.StatusCode, "put blob status")

	return d
}

// pushManifest uploads a manifest under the given tag and returns its digest.
func pushManifest(tb testing.TB, addr, repository, tag string, payload []byte) godigest.Digest {
	tb.Helper()

	u := fmt.Sprintf("http://%s/v2/%s/manifests/%s", addr, repository, tag)
	req, err := http.NewRequest(http.MethodPut, u, bytes.NewReader(payload))
	require.NoError(tb, err, "build manifest put")
	req.Header.Set("Content-Type", ocispec.MediaTypeImageManifest)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(tb, err, "put manifest")
	resp.Body.Close()
	require.Equal(tb, http.StatusCreated, resp.StatusCode, "put manifest status")

	return godigest.FromBytes(payload)
}
