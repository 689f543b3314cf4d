// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package contentstore keeps raw fetched content on disk, addressed by a hash
// of the source URL. Paths handed out are relative to the store root so the
// directory can be relocated without rewriting registry rows.
package contentstore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pdiddy/rivalry-research/pkg/types"
)

// Standard file names inside a URL directory.
const (
	ContentFile    = "content.txt"
	originalPrefix = "original."
)

const urlHashLen = 16

// ErrContentMissing is returned by Get when nothing is stored at a path.
var ErrContentMissing = fmt.Errorf("content missing: %w", fs.ErrNotExist)

// Store is a directory tree of URL-hash subdirectories.
type Store struct {
	root string
}

// New opens the store rooted at root, creating the directory if needed.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: empty content root", types.ErrStorageUnavailable)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating content root %s: %v", types.ErrStorageUnavailable, root, err)
	}
	return &Store{root: root}, nil
}

// Root returns the store root directory.
func (s *Store) Root() string { return s.root }

// HashURL returns the directory name used for rawURL.
func HashURL(rawURL string) string {
	h := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(h[:])[:urlHashLen]
}

// Dir returns the relative directory for rawURL.
func Dir(rawURL string) string {
	return HashURL(rawURL)
}

// OriginalName returns the file name for raw upstream bytes with extension ext
// (e.g. "html" -> "original.html").
func OriginalName(ext string) string {
	return originalPrefix + strings.TrimPrefix(ext, ".")
}

// Put writes content to <root>/<hash(rawURL)>/<name> and returns the path
// relative to the root. Writing the same URL and name again replaces the
// file in place. The write goes through a temporary file and a rename so a
// crash never leaves a partial file behind.
func (s *Store) Put(rawURL, name string, content []byte) (string, error) {
	rel, dest, tmpPath, err := s.writeTemp(rawURL, name, content)
	if err != nil {
		return "", err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: renaming temp file: %v", types.ErrStorageUnavailable, err)
	}
	return rel, nil
}

// Create writes content like Put but never replaces an existing file. The
// complete temp file is hard-linked into place, so of several concurrent
// writers exactly one succeeds and readers never see a partial file. When a
// file is already stored, created is false and the stored bytes are left
// untouched.
func (s *Store) Create(rawURL, name string, content []byte) (rel string, created bool, err error) {
	rel, dest, tmpPath, err := s.writeTemp(rawURL, name, content)
	if err != nil {
		return "", false, err
	}
	defer os.Remove(tmpPath)

	if err := os.Link(tmpPath, dest); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return rel, false, nil
		}
		return "", false, fmt.Errorf("%w: linking %s: %v", types.ErrStorageUnavailable, rel, err)
	}
	return rel, true, nil
}

// writeTemp writes content to a temp file next to its final location.
func (s *Store) writeTemp(rawURL, name string, content []byte) (rel, dest, tmpPath string, err error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", "", "", fmt.Errorf("invalid content file name %q", name)
	}

	rel = path.Join(Dir(rawURL), name)
	dest = filepath.Join(s.root, filepath.FromSlash(rel))
	dir := filepath.Dir(dest)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", "", fmt.Errorf("%w: creating directory %s: %v", types.ErrStorageUnavailable, dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".put-*.tmp")
	if err != nil {
		return "", "", "", fmt.Errorf("%w: creating temp file: %v", types.ErrStorageUnavailable, err)
	}
	tmpPath = tmpFile.Name()

	_, writeErr := tmpFile.Write(content)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return "", "", "", fmt.Errorf("%w: writing content: %v", types.ErrStorageUnavailable, writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return "", "", "", fmt.Errorf("%w: closing temp file: %v", types.ErrStorageUnavailable, closeErr)
	}
	return rel, dest, tmpPath, nil
}

// Get reads back exactly what Put wrote at relPath.
func (s *Store) Get(relPath string) ([]byte, error) {
	abs, err := s.resolve(relPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", relPath, ErrContentMissing)
		}
		return nil, fmt.Errorf("%w: reading %s: %v", types.ErrStorageUnavailable, relPath, err)
	}
	return data, nil
}

// Open streams the content at relPath. Callers close the reader.
func (s *Store) Open(relPath string) (io.ReadCloser, error) {
	abs, err := s.resolve(relPath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", relPath, ErrContentMissing)
		}
		return nil, fmt.Errorf("%w: opening %s: %v", types.ErrStorageUnavailable, relPath, err)
	}
	return f, nil
}

// Exists reports whether a regular file is stored at relPath.
func (s *Store) Exists(relPath string) bool {
	abs, err := s.resolve(relPath)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && info.Mode().IsRegular()
}

// resolve maps a relative store path to an absolute one, rejecting paths
// that are absolute or climb out of the root.
func (s *Store) resolve(relPath string) (string, error) {
	if relPath == "" {
		return "", fmt.Errorf("empty content path: %w", ErrContentMissing)
	}
	clean := path.Clean(filepath.ToSlash(relPath))
	if path.IsAbs(clean) || filepath.IsAbs(relPath) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("content path %q is outside the store", relPath)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}
