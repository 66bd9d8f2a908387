// Package oci provides typed access to the manifest, index, and config
// documents returned by the distribution API.
//
// It wraps the opencontainers image-spec types and handles the Docker
// media-type aliases transparently.
package oci

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Docker-scheme media types accepted alongside the OCI ones.
const (
	MediaTypeDockerManifest     = "application/vnd.docker.distribution.manifest.v2+json"
	MediaTypeDockerManifestList = "application/vnd.docker.distribution.manifest.list.v2+json"
)

// AcceptHeader is the Accept value sent on manifest requests.
var AcceptHeader = strings.Join([]string{
	ocispec.MediaTypeImageManifest,
	ocispec.MediaTypeImageIndex,
	MediaTypeDockerManifest,
	MediaTypeDockerManifestList,
}, ", ")

// ErrInvalidDocument is returned when a payload is not a manifest or index.
var ErrInvalidDocument = errors.New("oci: invalid manifest document")

// ManifestOrIndex holds the decoded form of a manifest endpoint payload.
// Exactly one of Manifest and Index is non-nil.
type ManifestOrIndex struct {
	Manifest *ocispec.Manifest
	Index    *ocispec.Index
}

// IsIndex reports whether the payload was a multi-platform index.
func (m ManifestOrIndex) IsIndex() bool { return m.Index != nil }

// Decode parses payload as either an image manifest or an image index.
//
// Detection uses the mediaType field when present and falls back to the
// document shape (a "manifests" array marks an index).
func Decode(payload []byte) (ManifestOrIndex, error) {
	var probe struct {
		MediaType string          `json:"mediaType"`
		Manifests json.RawMessage `json:"manifests"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ManifestOrIndex{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	isIndex := probe.MediaType == ocispec.MediaTypeImageIndex ||
		probe.MediaType == MediaTypeDockerManifestList ||
		(probe.MediaType == "" && probe.Manifests != nil)

	if isIndex {
		var index ocispec.Index
		if err := json.Unmarshal(payload, &index); err != nil {
			return ManifestOrIndex{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		return ManifestOrIndex{Index: &index}, nil
	}

	var manifest ocispec.Manifest
	if err := json.Unmarshal(payload, &manifest); err != nil {
		return ManifestOrIndex{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if manifest.Config.Digest == "" {
		return ManifestOrIndex{}, fmt.Errorf("%w: manifest has no config descriptor", ErrInvalidDocument)
	}
	return ManifestOrIndex{Manifest: &manifest}, nil
}

// DecodeConfig parses an image config blob.
func DecodeConfig(payload []byte) (ocispec.Image, error) {
	var cfg ocispec.Image
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return ocispec.Image{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return cfg, nil
}

// Size returns the aggregate byte size reported by the document: the
// sum of layer sizes for a manifest, or of child manifest sizes for an
// index.
func (m ManifestOrIndex) Size() int64 {
	var total int64
	switch {
	case m.Manifest != nil:
		for _, layer := range m.Manifest.Layers {
			total += layer.Size
		}
	case m.Index != nil:
		for _, desc := range m.Index.Manifests {
			total += desc.Size
		}
	}
	return total
}

// Platforms returns the os/arch strings advertised by an index, or nil
// for a plain manifest.
func (m ManifestOrIndex) Platforms() []string {
	if m.Index == nil {
		return nil
	}
	var platforms []string
	for _, desc := range m.Index.Manifests {
		if desc.Platform == nil {
			continue
		}
		platforms = append(platforms, PlatformString(*desc.Platform))
	}
	return platforms
}

// PlatformString renders p as os/arch or os/arch/variant.
func PlatformString(p ocispec.Platform) string {
	s := p.OS + "/" + p.Architecture
	if p.Variant != "" {
		s += "/" + p.Variant
	}
	return s
}

// MatchPlatform returns the descriptor of the index child matching the
// selector, which is an os/arch or os/arch/variant string. The second
// return is false when no child matches.
func MatchPlatform(index *ocispec.Index, selector string) (ocispec.Descriptor, bool) {
	for _, desc := range index.Manifests {
		if desc.Platform == nil {
			continue
		}
		if PlatformString(*desc.Platform) == selector {
			return desc, true
		}
		// Allow "os/arch" to match a descriptor carrying a variant.
		if desc.Platform.Variant != "" && desc.Platform.OS+"/"+desc.Platform.Architecture == selector {
			return desc, true
		}
	}
	return ocispec.Descriptor{}, false
}
