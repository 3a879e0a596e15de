package assets

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLookupTriesExtensionsInOrder(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Virat Kohli.jpeg"), []byte("img"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	a, err := Lookup(dir, "Virat Kohli", ".jpg", "jpeg")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if a.Name != "Virat Kohli.jpeg" {
		t.Fatalf("name = %q", a.Name)
	}
	if a.Base64() != "aW1n" {
		t.Fatalf("base64 = %q", a.Base64())
	}
	if got := a.DataURI(); got != "data:image/jpeg;base64,aW1n" {
		t.Fatalf("data uri = %q", got)
	}
}

func TestLookupMissingIsNotFound(t *testing.T) {
	_, err := Lookup(t.TempDir(), "stadium.jpeg")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), "stadium.jpeg") {
		t.Fatalf("error should name the file, got %q", err)
	}
}

func TestLookupRejectsEscapes(t *testing.T) {
	for _, name := range []string{"", "..", "../secret", "a/b", `a\b`, "x..y"} {
		if _, err := Lookup(t.TempDir(), name); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("Lookup(%q) err = %v, want ErrInvalidName", name, err)
		}
	}
}
