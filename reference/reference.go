// Package reference parses image references into their registry,
// repository, tag, and digest parts.
//
// The grammar follows the distribution reference format:
//
//	reference  := [registry "/"] repository [":" tag] ["@" digest]
//	repository := path-component ("/" path-component)*
//
// The registry part is recognized only when the first path segment
// looks like a hostname (contains a dot or port, or is "localhost");
// otherwise the reference is resolved against DefaultRegistry.
package reference

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/meigma/rex/digest"
)

// DefaultRegistry is assumed when a reference omits the registry host.
const DefaultRegistry = "docker.io"

// ErrInvalid is returned when a reference string is malformed.
var ErrInvalid = errors.New("reference: invalid reference")

var (
	pathComponent    = `[a-z0-9]+(?:(?:[._]|__|[-]+)[a-z0-9]+)*`
	repositoryRegexp = regexp.MustCompile(`^` + pathComponent + `(?:/` + pathComponent + `)*$`)
	tagRegexp        = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9._-]{0,127}$`)
)

// Reference is a parsed, validated image reference. Immutable after Parse.
type Reference struct {
	registry   string
	repository string
	tag        string
	digest     digest.Digest
}

// Parse validates s against the reference grammar.
//
// Accepted forms: "repo", "registry/repo", "registry/repo:tag",
// "registry/repo@digest", and "registry/repo:tag@digest".
func Parse(s string) (Reference, error) {
	if s == "" {
		return Reference{}, fmt.Errorf("%w: empty string", ErrInvalid)
	}

	name := s
	var dgst digest.Digest
	if before, after, ok := strings.Cut(name, "@"); ok {
		d, err := digest.Parse(after)
		if err != nil {
			return Reference{}, fmt.Errorf("%w: digest suffix of %q: %v", ErrInvalid, s, err)
		}
		dgst = d
		name = before
	}

	var tag string
	// The tag separator is the last colon that appears after the last
	// slash, distinguishing it from a registry port.
	if i := strings.LastIndex(name, ":"); i > strings.LastIndex(name, "/") {
		tag = name[i+1:]
		name = name[:i]
		if !tagRegexp.MatchString(tag) {
			return Reference{}, fmt.Errorf("%w: tag %q", ErrInvalid, tag)
		}
	}

	registry, repository := splitHostname(name)
	if repository == "" {
		return Reference{}, fmt.Errorf("%w: empty repository in %q", ErrInvalid, s)
	}
	if !repositoryRegexp.MatchString(repository) {
		return Reference{}, fmt.Errorf("%w: repository %q", ErrInvalid, repository)
	}

	return Reference{
		registry:   registry,
		repository: repository,
		tag:        tag,
		digest:     dgst,
	}, nil
}

// splitHostname separates the registry host from the repository path.
// A first segment without a dot, colon, or "localhost" is part of the
// repository and the registry defaults to DefaultRegistry.
func splitHostname(name string) (registry, repository string) {
	i := strings.Index(name, "/")
	if i == -1 {
		return DefaultRegistry, name
	}
	host := name[:i]
	if !strings.ContainsAny(host, ".:") && host != "localhost" {
		return DefaultRegistry, name
	}
	return host, name[i+1:]
}

// Registry returns the registry host.
func (r Reference) Registry() string { return r.registry }

// Repository returns the repository path.
func (r Reference) Repository() string { return r.repository }

// Tag returns the tag, or "" when the reference has none.
func (r Reference) Tag() string { return r.tag }

// Digest returns the digest; check IsZero for absence.
func (r Reference) Digest() digest.Digest { return r.digest }

// String returns the fully qualified form of the reference.
func (r Reference) String() string {
	var b strings.Builder
	b.WriteString(r.registry)
	b.WriteString("/")
	b.WriteString(r.repository)
	if r.tag != "" {
		b.WriteString(":")
		b.WriteString(r.tag)
	}
	if !r.digest.IsZero() {
		b.WriteString("@")
		b.WriteString(r.digest.String())
	}
	return b.String()
}
