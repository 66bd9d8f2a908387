// Package client implements a registry client speaking the OCI
// Distribution API over plain HTTP.
//
// The client covers the read-only surface of the API: ping, catalog
// and tag listings with Link-header pagination, manifest retrieval by
// tag or digest, and blob retrieval with digest verification. Failures
// are classified into the sentinel errors in this package so callers
// can distinguish auth problems, missing content, rate limiting, and
// transport faults without inspecting status codes.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/meigma/rex/digest"
	"github.com/meigma/rex/oci"
	"github.com/meigma/rex/reference"
)

const (
	defaultUserAgent = "rex/1.0"
	defaultTimeout   = 30 * time.Second

	// dockerAPIHost is the API endpoint behind the docker.io alias.
	dockerAPIHost = "registry-1.docker.io"
)

// Client is a read-only OCI Distribution API client. It is safe for
// concurrent use.
type Client struct {
	httpClient *http.Client
	userAgent  string
	plainHTTP  bool
	credential CredentialFunc
	timeout    time.Duration
	pageSize   int
	logger     *slog.Logger
}

// New creates a registry client with the given options.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		userAgent:  defaultUserAgent,
		timeout:    defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// baseURL returns the API root for a registry host.
func (c *Client) baseURL(registry string) string {
	host := registry
	if host == reference.DefaultRegistry {
		host = dockerAPIHost
	}
	scheme := "https"
	if c.plainHTTP {
		scheme = "http"
	}
	return scheme + "://" + host
}

// Ping checks that the registry implements the Distribution API.
func (c *Client) Ping(ctx context.Context, registry string) error {
	resp, err := c.get(ctx, registry, c.baseURL(registry)+"/v2/", "")
	if err != nil {
		return err
	}
	if resp.status != http.StatusOK {
		return resp.statusError()
	}
	return nil
}

// Catalog lists all repositories the registry exposes, following
// pagination links until exhausted.
func (c *Client) Catalog(ctx context.Context, registry string) ([]string, error) {
	var repos []string
	err := c.paginate(ctx, registry, c.baseURL(registry)+"/v2/_catalog", func(body []byte) error {
		var page struct {
			Repositories []string `json:"repositories"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return fmt.Errorf("%w: decode catalog page: %v", ErrProtocol, err)
		}
		repos = append(repos, page.Repositories...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return repos, nil
}

// Tags lists all tags for a repository, following pagination links
// until exhausted.
func (c *Client) Tags(ctx context.Context, registry, repository string) ([]string, error) {
	var tags []string
	first := fmt.Sprintf("%s/v2/%s/tags/list", c.baseURL(registry), repository)
	err := c.paginate(ctx, registry, first, func(body []byte) error {
		var page struct {
			Name string   `json:"name"`
			Tags []string `json:"tags"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return fmt.Errorf("%w: decode tag list page: %v", ErrProtocol, err)
		}
		tags = append(tags, page.Tags...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// ManifestResult is a retrieved manifest or index together with its
// raw bytes and verified digest.
type ManifestResult struct {
	Raw       []byte
	Digest    digest.Digest
	MediaType string
	Document  oci.ManifestOrIndex
}

// Manifest retrieves the manifest or index the reference points to.
// A digest reference is fetched by digest; otherwise the tag is used,
// defaulting to "latest".
//
// The returned digest is computed from the body. If the registry sends
// a Docker-Content-Digest header that disagrees with the content, or a
// digest reference does not match what was served, the result is
// discarded with ErrProtocol.
func (c *Client) Manifest(ctx context.Context, ref reference.Reference) (*ManifestResult, error) {
	target := ref.Tag()
	if !ref.Digest().IsZero() {
		target = ref.Digest().String()
	} else if target == "" {
		target = "latest"
	}

	u := fmt.Sprintf("%s/v2/%s/manifests/%s", c.baseURL(ref.Registry()), ref.Repository(), target)
	resp, err := c.get(ctx, ref.Registry(), u, oci.AcceptHeader)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, resp.statusError()
	}

	computed := digest.FromBytes(resp.body)
	if header := resp.header.Get("Docker-Content-Digest"); header != "" {
		hd, err := digest.Parse(header)
		if err != nil {
			return nil, fmt.Errorf("%w: digest header %q: %v", ErrProtocol, header, err)
		}
		if hd.Algorithm() == computed.Algorithm() && hd != computed {
			return nil, fmt.Errorf("%w: digest header %s does not match content %s", ErrProtocol, hd, computed)
		}
	}
	if d := ref.Digest(); !d.IsZero() && d != computed {
		return nil, fmt.Errorf("%w: requested %s but registry served %s", ErrProtocol, d, computed)
	}

	mediaType := resp.header.Get("Content-Type")
	doc, err := oci.Decode(resp.body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	return &ManifestResult{
		Raw:       resp.body,
		Digest:    computed,
		MediaType: mediaType,
		Document:  doc,
	}, nil
}

// ManifestForPlatform retrieves the image manifest for a platform,
// given as an os/arch or os/arch/variant selector. If the reference
// points at an index, the matching child manifest is fetched; if it
// points directly at a manifest, that manifest is returned regardless
// of platform. ErrNotFound is returned when the index has no entry for
// the platform.
func (c *Client) ManifestForPlatform(ctx context.Context, ref reference.Reference, platform string) (*ManifestResult, error) {
	res, err := c.Manifest(ctx, ref)
	if err != nil {
		return nil, err
	}
	if res.Document.Index == nil {
		return res, nil
	}

	desc, ok := oci.MatchPlatform(res.Document.Index, platform)
	if !ok {
		return nil, fmt.Errorf("%w: no manifest for platform %s in %s", ErrNotFound, platform, ref)
	}

	child, err := reference.Parse(ref.Registry() + "/" + ref.Repository() + "@" + desc.Digest.String())
	if err != nil {
		return nil, fmt.Errorf("%w: child manifest digest %q: %v", ErrProtocol, desc.Digest, err)
	}
	return c.Manifest(ctx, child)
}

// Blob retrieves a blob by digest and verifies the content against it.
// Intended for small blobs such as image configs.
func (c *Client) Blob(ctx context.Context, registry, repository string, d digest.Digest) ([]byte, error) {
	u := fmt.Sprintf("%s/v2/%s/blobs/%s", c.baseURL(registry), repository, d)
	resp, err := c.get(ctx, registry, u, "")
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, resp.statusError()
	}
	if !d.Verify(resp.body) {
		return nil, fmt.Errorf("%w: blob content does not match %s", ErrProtocol, d)
	}
	return resp.body, nil
}

// Config retrieves and decodes the image config blob.
func (c *Client) Config(ctx context.Context, registry, repository string, d digest.Digest) (ocispec.Image, error) {
	body, err := c.Blob(ctx, registry, repository, d)
	if err != nil {
		return ocispec.Image{}, err
	}
	img, err := oci.DecodeConfig(body)
	if err != nil {
		return ocispec.Image{}, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	return img, nil
}

// paginate fetches listing pages starting at first, handing each body
// to collect, until no next link remains.
func (c *Client) paginate(ctx context.Context, registry, first string, collect func(body []byte) error) error {
	next := first
	if c.pageSize > 0 {
		next = first + "?n=" + strconv.Itoa(c.pageSize)
	}

	for next != "" {
		resp, err := c.get(ctx, registry, next, "")
		if err != nil {
			return err
		}
		if resp.status != http.StatusOK {
			return resp.statusError()
		}
		if err := collect(resp.body); err != nil {
			return err
		}

		next, err = nextLink(resp.header.Get("Link"), resp.url)
		if err != nil {
			return err
		}
	}
	return nil
}

// nextLink extracts the rel="next" target from a Link header value,
// resolved against the current page URL. Returns "" when there is no
// next page.
func nextLink(link, current string) (string, error) {
	if link == "" {
		return "", nil
	}
	for _, part := range strings.Split(link, ",") {
		target, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.Contains(params, `rel="next"`) {
			continue
		}
		target = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(target), "<"), ">")
		base, err := url.Parse(current)
		if err != nil {
			return "", fmt.Errorf("%w: page url %q: %v", ErrProtocol, current, err)
		}
		ref, err := url.Parse(target)
		if err != nil {
			return "", fmt.Errorf("%w: link header target %q: %v", ErrProtocol, target, err)
		}
		return base.ResolveReference(ref).String(), nil
	}
	return "", nil
}

// response is a fully read registry response.
type response struct {
	url    string
	status int
	header http.Header
	body   []byte
}

// get performs an authenticated GET and reads the full body.
// Request failures are classified as transport errors unless the
// caller's context was cancelled.
func (c *Client) get(ctx context.Context, registry, url, accept string) (*response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrProtocol, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	if c.credential != nil {
		cred, err := c.credential(ctx, registry)
		if err != nil {
			return nil, fmt.Errorf("resolve credentials for %s: %w", registry, err)
		}
		switch {
		case cred.Token != "":
			req.Header.Set("Authorization", "Bearer "+cred.Token)
		case cred.Username != "":
			req.SetBasicAuth(cred.Username, cred.Password)
		}
	}

	c.log().Debug("registry request", "url", url)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.Canceled {
			return nil, context.Canceled
		}
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response body: %v", ErrTransport, err)
	}

	return &response{
		url:    url,
		status: resp.StatusCode,
		header: resp.Header,
		body:   body,
	}, nil
}

// statusError classifies a non-200 response.
func (r *response) statusError() error {
	switch {
	case r.status == http.StatusUnauthorized || r.status == http.StatusForbidden:
		return fmt.Errorf("%w: %s returned %d", ErrUnauthorized, r.url, r.status)
	case r.status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, r.url)
	case r.status == http.StatusTooManyRequests:
		return &RateLimitError{
			RetryAfter: parseRetryAfter(r.header.Get("Retry-After"), time.Now()),
			URL:        r.url,
		}
	case r.status >= 500:
		return fmt.Errorf("%w: %s returned %d", ErrTransport, r.url, r.status)
	default:
		return fmt.Errorf("%w: %s returned unexpected status %d", ErrProtocol, r.url, r.status)
	}
}

// parseRetryAfter interprets a Retry-After header value, which is
// either a delay in seconds or an HTTP date. Unparseable or past
// values yield zero.
func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
