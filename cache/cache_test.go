package cache

import (
	"strings"
	"testing"
)

func TestKeys(t *testing.T) {
	t.Parallel()

	if got := ListingKey("ghcr.io", "test/repo", KindTagList); got != "ghcr.io/test/repo/taglist" {
		t.Fatalf("ListingKey() = %q", got)
	}
	if got := ListingKey("ghcr.io", "", KindCatalog); got != "ghcr.io//catalog" {
		t.Fatalf("ListingKey() = %q", got)
	}
	if got := ResolveKey("ghcr.io", "test/repo", "v1"); got != "ghcr.io/test/repo/resolve/v1" {
		t.Fatalf("ResolveKey() = %q", got)
	}

	d := "sha256:" + strings.Repeat("ab", 32)
	if got := ContentKey(d); got != d {
		t.Fatalf("ContentKey(%q) = %q", d, got)
	}
}

func TestKindContentAddressed(t *testing.T) {
	t.Parallel()

	for _, kind := range []Kind{KindManifest, KindConfig} {
		if !kind.ContentAddressed() {
			t.Fatalf("%s.ContentAddressed() = false", kind)
		}
	}
	for _, kind := range []Kind{KindCatalog, KindTagList, KindResolve} {
		if kind.ContentAddressed() {
			t.Fatalf("%s.ContentAddressed() = true", kind)
		}
	}
}
