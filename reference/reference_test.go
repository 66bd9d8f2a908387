package reference

import (
	"errors"
	"strings"
	"testing"
)

const sampleDigest = "sha256:7173b809ca12ec5dee4506cd86be934c4596dd234ee82c0662eac04a8c2c71dc"

func TestParseForms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in         string
		registry   string
		repository string
		tag        string
		digest     string
	}{
		{"alpine", DefaultRegistry, "alpine", "", ""},
		{"library/alpine", DefaultRegistry, "library/alpine", "", ""},
		{"ghcr.io/user/repo", "ghcr.io", "user/repo", "", ""},
		{"ghcr.io/user/repo:latest", "ghcr.io", "user/repo", "latest", ""},
		{"localhost/repo:v1", "localhost", "repo", "v1", ""},
		{"localhost:5000/repo", "localhost:5000", "repo", "", ""},
		{"localhost:5000/repo:v1.2.3", "localhost:5000", "repo", "v1.2.3", ""},
		{"ghcr.io/user/repo@" + sampleDigest, "ghcr.io", "user/repo", "", sampleDigest},
		{"ghcr.io/user/repo:latest@" + sampleDigest, "ghcr.io", "user/repo", "latest", sampleDigest},
		{"alpine:3.19", DefaultRegistry, "alpine", "3.19", ""},
	}

	for _, tt := range tests {
		ref, err := Parse(tt.in)
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", tt.in, err)
		}
		if ref.Registry() != tt.registry {
			t.Errorf("Parse(%q).Registry() = %q, want %q", tt.in, ref.Registry(), tt.registry)
		}
		if ref.Repository() != tt.repository {
			t.Errorf("Parse(%q).Repository() = %q, want %q", tt.in, ref.Repository(), tt.repository)
		}
		if ref.Tag() != tt.tag {
			t.Errorf("Parse(%q).Tag() = %q, want %q", tt.in, ref.Tag(), tt.tag)
		}
		if got := ref.Digest().String(); got != tt.digest {
			t.Errorf("Parse(%q).Digest() = %q, want %q", tt.in, got, tt.digest)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()

	invalid := []string{
		"",
		"ghcr.io/",
		"ghcr.io//repo",
		"ghcr.io/user//repo",
		"ghcr.io/UPPER/repo",
		"repo:" + strings.Repeat("t", 129),
		"repo:.dot-first",
		"ghcr.io/user/repo@sha256:invalid-digest",
		"ghcr.io/user/repo@notadigest",
	}
	for _, s := range invalid {
		if _, err := Parse(s); !errors.Is(err, ErrInvalid) {
			t.Errorf("Parse(%q) error = %v, want ErrInvalid", s, err)
		}
	}
}

func TestStringFullyQualified(t *testing.T) {
	t.Parallel()

	in := "ghcr.io/user/repo:latest@" + sampleDigest
	ref, err := Parse(in)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := ref.String(); got != in {
		t.Fatalf("String() = %q, want %q", got, in)
	}

	// Defaulted registry appears in the qualified form.
	ref, err = Parse("alpine:latest")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := ref.String(); got != DefaultRegistry+"/alpine:latest" {
		t.Fatalf("String() = %q", got)
	}
}

func TestEqualityStructural(t *testing.T) {
	t.Parallel()

	a, _ := Parse("ghcr.io/user/repo:latest")
	b, _ := Parse("ghcr.io/user/repo:latest")
	if a != b {
		t.Fatal("equal references compare unequal")
	}
}
