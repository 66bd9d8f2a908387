package digest

import (
	"errors"
	"strings"
	"testing"
)

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()

	valid := []string{
		"sha256:7173b809ca12ec5dee4506cd86be934c4596dd234ee82c0662eac04a8c2c71dc",
		"sha256:" + strings.Repeat("0", 64),
		"sha512:" + strings.Repeat("ab", 64),
	}
	for _, s := range valid {
		d, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", s, err)
		}
		if got := d.String(); got != s {
			t.Fatalf("String() = %q, want %q", got, s)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()

	invalid := []string{
		"",
		"sha256",
		"sha256:",
		":deadbeef",
		"sha256:invalid-digest",
		"md5:d41d8cd98f00b204e9800998ecf8427e",
		"sha256:" + strings.Repeat("0", 63),
		"sha256:" + strings.Repeat("0", 65),
		"sha256:" + strings.Repeat("A", 64), // uppercase hex is not canonical
		"sha512:" + strings.Repeat("0", 64), // sha256-length payload
	}
	for _, s := range invalid {
		d, err := Parse(s)
		if err == nil {
			t.Fatalf("Parse(%q) succeeded, want error", s)
		}
		if !errors.Is(err, ErrInvalid) {
			t.Fatalf("Parse(%q) error = %v, want ErrInvalid", s, err)
		}
		if !d.IsZero() {
			t.Fatalf("Parse(%q) returned non-zero digest %v on error", s, d)
		}
	}
}

func TestAccessors(t *testing.T) {
	t.Parallel()

	hex := strings.Repeat("4e", 32)
	d, err := Parse("sha256:" + hex)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if d.Algorithm() != "sha256" {
		t.Errorf("Algorithm() = %q, want sha256", d.Algorithm())
	}
	if d.Hex() != hex {
		t.Errorf("Hex() = %q, want %q", d.Hex(), hex)
	}
}

func TestFromBytesVerify(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"schemaVersion":2}`)
	d := FromBytes(payload)

	if d.Algorithm() != "sha256" {
		t.Fatalf("FromBytes() algorithm = %q, want sha256", d.Algorithm())
	}
	if !d.Verify(payload) {
		t.Fatal("Verify() = false for matching payload")
	}
	if d.Verify([]byte("tampered")) {
		t.Fatal("Verify() = true for mismatched payload")
	}

	// FromBytes output round-trips through Parse.
	if _, err := Parse(d.String()); err != nil {
		t.Fatalf("Parse(FromBytes().String()) error = %v", err)
	}
}

func TestTextRoundTrip(t *testing.T) {
	t.Parallel()

	d := FromBytes([]byte("payload"))
	text, err := d.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() error = %v", err)
	}
	if string(text) != d.String() {
		t.Fatalf("MarshalText() = %q, want %q", text, d.String())
	}

	var got Digest
	if err := got.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText(%q) error = %v", text, err)
	}
	if got != d {
		t.Fatalf("UnmarshalText round trip = %v, want %v", got, d)
	}

	var zero Digest
	if err := zero.UnmarshalText(nil); err != nil {
		t.Fatalf("UnmarshalText(nil) error = %v", err)
	}
	if !zero.IsZero() {
		t.Fatal("UnmarshalText(nil) did not produce the zero value")
	}

	if err := got.UnmarshalText([]byte("sha256:short")); err == nil {
		t.Fatal("UnmarshalText() accepted malformed digest")
	}
}

func TestEquality(t *testing.T) {
	t.Parallel()

	s := "sha256:" + strings.Repeat("1f", 32)
	a, _ := Parse(s)
	b, _ := Parse(s)
	if a != b {
		t.Fatal("equal digests compare unequal")
	}
}
