// Package assets resolves optional image files shown alongside dashboards.
package assets

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when no file exists for an asset name.
var ErrNotFound = errors.New("asset not found")

// ErrInvalidName is returned for names that would leave the asset directory.
var ErrInvalidName = errors.New("invalid asset name")

// Asset is a file loaded from the asset directory.
type Asset struct {
	Name string
	Path string
	Data []byte
}

// ContentType guesses the MIME type from the extension, then the content.
func (a *Asset) ContentType() string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(a.Path))); ct != "" {
		return ct
	}
	return http.DetectContentType(a.Data)
}

// Base64 returns the standard base64 encoding of the file.
func (a *Asset) Base64() string {
	return base64.StdEncoding.EncodeToString(a.Data)
}

// DataURI returns the asset as an inline data: URI.
func (a *Asset) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", a.ContentType(), a.Base64())
}

// Lookup finds name in dir. When exts are given each is tried in order
// (name + ext); otherwise name is used as is. Names containing path
// separators or "..", and names that are blank, are rejected.
func Lookup(dir, name string, exts ...string) (*Asset, error) {
	clean, err := sanitize(name)
	if err != nil {
		return nil, err
	}
	candidates := []string{clean}
	if len(exts) > 0 {
		candidates = candidates[:0]
		for _, ext := range exts {
			if ext != "" && !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			candidates = append(candidates, clean+ext)
		}
	}
	for _, c := range candidates {
		p := filepath.Join(dir, c)
		data, err := os.ReadFile(p)
		if err == nil {
			return &Asset{Name: c, Path: p, Data: data}, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read asset %s: %w", p, err)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, strings.Join(candidates, ", "))
}

func sanitize(name string) (string, error) {
	n := strings.TrimSpace(name)
	if n == "" || n == "." || n == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if strings.ContainsAny(n, `/\`) || strings.Contains(n, "..") || strings.ContainsRune(n, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return n, nil
}
