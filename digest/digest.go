// Package digest parses and validates OCI content digests.
//
// A digest is the canonical identifier for immutable registry content,
// written as algorithm:hex. Parsing is strict: unknown algorithms and
// malformed hex payloads are rejected before any value is constructed,
// so a Digest obtained from Parse is always safe to use as a cache key
// or verification target.
package digest

import (
	"errors"
	"fmt"
	"strings"

	ocidigest "github.com/opencontainers/go-digest"
)

// ErrInvalid is returned when a digest string is malformed.
var ErrInvalid = errors.New("digest: invalid digest")

// hexLengths maps supported algorithms to their encoded length.
var hexLengths = map[string]int{
	"sha256": 64,
	"sha512": 128,
}

// Digest is a validated content digest.
//
// The zero value represents "no digest"; valid values are produced only
// by Parse or FromBytes. Digest values are comparable with ==.
type Digest struct {
	algorithm string
	hex       string
}

// Parse validates s as an algorithm:hex content digest.
func Parse(s string) (Digest, error) {
	algorithm, hex, ok := strings.Cut(s, ":")
	if !ok || algorithm == "" || hex == "" {
		return Digest{}, fmt.Errorf("%w: %q is not in algorithm:hex form", ErrInvalid, s)
	}
	want, ok := hexLengths[algorithm]
	if !ok {
		return Digest{}, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalid, algorithm)
	}
	if len(hex) != want {
		return Digest{}, fmt.Errorf("%w: %s payload must be %d hex characters, got %d", ErrInvalid, algorithm, want, len(hex))
	}
	for i := 0; i < len(hex); i++ {
		c := hex[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return Digest{}, fmt.Errorf("%w: non-hex character %q in %q", ErrInvalid, c, s)
		}
	}
	return Digest{algorithm: algorithm, hex: hex}, nil
}

// FromBytes computes the canonical (sha256) digest of payload.
func FromBytes(payload []byte) Digest {
	d := ocidigest.Canonical.FromBytes(payload)
	return Digest{algorithm: string(d.Algorithm()), hex: d.Encoded()}
}

// Algorithm returns the hash algorithm identifier, e.g. "sha256".
func (d Digest) Algorithm() string { return d.algorithm }

// Hex returns the lowercase hex payload.
func (d Digest) Hex() string { return d.hex }

// String returns the canonical algorithm:hex form.
func (d Digest) String() string {
	if d.IsZero() {
		return ""
	}
	return d.algorithm + ":" + d.hex
}

// MarshalText implements encoding.TextMarshaler, emitting the
// canonical algorithm:hex form.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty text
// decodes to the zero value.
func (d *Digest) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = Digest{}
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// IsZero reports whether d is the zero value rather than a parsed digest.
func (d Digest) IsZero() bool { return d.algorithm == "" }

// Verify reports whether payload hashes to d.
func (d Digest) Verify(payload []byte) bool {
	alg := ocidigest.Algorithm(d.algorithm)
	if !alg.Available() {
		return false
	}
	return alg.FromBytes(payload).Encoded() == d.hex
}
