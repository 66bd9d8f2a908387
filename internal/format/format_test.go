package format

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/meigma/rex/digest"
)

func TestBytes(t *testing.T) {
	t.Parallel()

	if got := Bytes(-1); got != "-" {
		t.Fatalf("Bytes(-1) = %q, want -", got)
	}
	if got := Bytes(1500); got != "1.5 kB" {
		t.Fatalf("Bytes(1500) = %q, want 1.5 kB", got)
	}
}

func TestAge(t *testing.T) {
	t.Parallel()

	if got := Age(nil); got != "-" {
		t.Fatalf("Age(nil) = %q, want -", got)
	}
	past := time.Now().Add(-48 * time.Hour)
	if got := Age(&past); !strings.Contains(got, "ago") {
		t.Fatalf("Age(past) = %q, want relative form", got)
	}
}

func TestShortDigest(t *testing.T) {
	t.Parallel()

	d := digest.FromBytes([]byte("content"))
	got := ShortDigest(d)
	if len(got) != 12 {
		t.Fatalf("ShortDigest() = %q, want 12 chars", got)
	}
	if !strings.HasPrefix(d.Hex(), got) {
		t.Fatalf("ShortDigest() = %q is not a prefix of %q", got, d.Hex())
	}
	if got := ShortDigest(digest.Digest{}); got != "-" {
		t.Fatalf("ShortDigest(zero) = %q, want -", got)
	}
}

func TestTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := Table(&buf, []string{"TAG", "SIZE"}, [][]string{
		{"latest", "12 MB"},
		{"v1.0.0", "11 MB"},
	})
	if err != nil {
		t.Fatalf("Table() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Table() produced %d lines, want 3", len(lines))
	}
	if !strings.HasPrefix(lines[0], "TAG") {
		t.Fatalf("Table() header = %q", lines[0])
	}
}

func TestJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := JSON(&buf, map[string]int{"n": 1}); err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	if !strings.Contains(buf.String(), "\"n\": 1") {
		t.Fatalf("JSON() output = %q", buf.String())
	}
}
