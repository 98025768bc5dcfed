// Package storage persists rendered guides on the local filesystem and maps
// them, and the pre-built static products, to public URLs.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// URL prefixes the HTTP layer serves the two roots under.
const (
	DownloadsPrefix = "/downloads/"
	AssetsPrefix    = "/guides/"
)

var (
	// ErrAssetMissing is returned when a static product file is not deployed.
	ErrAssetMissing = errors.New("storage: static asset missing")
	// ErrBadName rejects names that would escape a storage root.
	ErrBadName = errors.New("storage: invalid file name")
)

// Store writes guides under a downloads root and resolves static assets.
type Store struct {
	downloads string
	assets    string
	baseURL   string
}

// New creates the downloads and assets roots if needed. An empty assetsDir
// is left alone. baseURL is prefixed to every returned URL ("" yields
// root-relative URLs).
func New(downloadsDir, assetsDir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(downloadsDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create downloads dir: %w", err)
	}
	if assetsDir != "" {
		if err := os.MkdirAll(assetsDir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: create assets dir: %w", err)
		}
	}
	return &Store{
		downloads: downloadsDir,
		assets:    assetsDir,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}, nil
}

// DownloadsDir returns the root generated guides are written to.
func (s *Store) DownloadsDir() string { return s.downloads }

// AssetsDir returns the static products root.
func (s *Store) AssetsDir() string { return s.assets }

// GuideName is the content-addressed file name for data.
func GuideName(data []byte) string {
	sum := sha256.Sum256(data)
	return "guide-" + hex.EncodeToString(sum[:])[:16] + ".pdf"
}

// PutGuide writes data under its content-addressed name and returns the
// public URL. The file appears atomically; identical content is written once.
func (s *Store) PutGuide(data []byte) (string, error) {
	name := GuideName(data)
	dst := filepath.Join(s.downloads, name)
	if _, err := os.Stat(dst); err == nil {
		return s.url(DownloadsPrefix, name), nil
	}

	tmp, err := os.CreateTemp(s.downloads, ".guide-*")
	if err != nil {
		return "", fmt.Errorf("storage: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("storage: write guide: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("storage: close guide: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("storage: chmod guide: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("storage: publish guide: %w", err)
	}
	return s.url(DownloadsPrefix, name), nil
}

// AssetURL returns the public URL of a deployed static asset.
func (s *Store) AssetURL(name string) (string, error) {
	if !validName(name) {
		return "", ErrBadName
	}
	fi, err := os.Stat(filepath.Join(s.assets, name))
	if err != nil || fi.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrAssetMissing, name)
	}
	return s.url(AssetsPrefix, name), nil
}

// LocalPath maps a URL returned by this store back to its file, reporting
// false for anything else.
func (s *Store) LocalPath(u string) (string, bool) {
	rel := strings.TrimPrefix(u, s.baseURL)
	switch {
	case strings.HasPrefix(rel, DownloadsPrefix):
		name := strings.TrimPrefix(rel, DownloadsPrefix)
		if validName(name) {
			return filepath.Join(s.downloads, name), true
		}
	case strings.HasPrefix(rel, AssetsPrefix):
		name := strings.TrimPrefix(rel, AssetsPrefix)
		if validName(name) {
			return filepath.Join(s.assets, name), true
		}
	}
	return "", false
}

func (s *Store) url(prefix, name string) string {
	return s.baseURL + path.Join(prefix, name)
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`) && !strings.HasPrefix(name, ".")
}
