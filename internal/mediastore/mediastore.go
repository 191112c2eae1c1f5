// Package mediastore persists uploaded video clips on disk and maps between
// stored paths and the download URLs handed to clients.
//
// All file operations go through Go's os.Root so they are confined to the
// configured media directory at the OS level. Path traversal via "../",
// absolute paths or symlinks pointing outside the base directory is rejected
// by the sandbox rather than by string checks alone.
package mediastore

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/colsign/colsign-go/internal/conf"
	"github.com/colsign/colsign-go/internal/errors"
	"github.com/google/uuid"
)

const (
	// SubmissionDir holds contributor-recorded clips.
	SubmissionDir = "sign_data_videos"
	// ExampleDir holds the admin-curated example clips of the catalog.
	ExampleDir = "video_examples"

	clipExtension = ".mp4"

	// URLPrefix is the public route under which stored clips are served.
	URLPrefix = "/media/"
)

// Store is the clip storage surface used by the API layer.
type Store interface {
	SaveSubmissionClip(label string, src io.Reader) (string, error)
	SaveExampleClip(filename string, src io.Reader) (string, error)
	Open(relPath string) (fs.File, error)
	Remove(relPath string) error
	DownloadURL(relPath string) string
	ParseURL(url string) string
	Close() error
}

// DiskStore implements Store on the local filesystem, rooted at the
// configured media export path.
type DiskStore struct {
	baseDir string
	root    *os.Root
}

// New opens a disk store rooted at the media path from settings, creating
// the directory tree if needed.
func New(settings *conf.Settings) (*DiskStore, error) {
	absPath, err := filepath.Abs(settings.Media.Export.Path)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "resolve-media-path").
			Build()
	}

	for _, dir := range []string{absPath, filepath.Join(absPath, SubmissionDir), filepath.Join(absPath, ExampleDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.New(err).
				Category(errors.CategoryFileIO).
				Context("operation", "create-media-directory").
				Context("path", dir).
				Build()
		}
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "open-media-root").
			Build()
	}

	return &DiskStore{baseDir: absPath, root: root}, nil
}

// BaseDir returns the absolute media directory the store is rooted at.
func (s *DiskStore) BaseDir() string {
	return s.baseDir
}

// SaveSubmissionClip stores a contributor clip under a collision-free name
// derived from the sign label and returns the store-relative path.
func (s *DiskStore) SaveSubmissionClip(label string, src io.Reader) (string, error) {
	name := fmt.Sprintf("%s_%s%s", sanitizeName(label), uuid.New().String(), clipExtension)
	relPath := path.Join(SubmissionDir, name)
	if err := s.write(relPath, src); err != nil {
		return "", err
	}
	return relPath, nil
}

// SaveExampleClip stores a catalog example clip under its original filename
// and returns the store-relative path. An existing clip with the same name
// is overwritten.
func (s *DiskStore) SaveExampleClip(filename string, src io.Reader) (string, error) {
	name := sanitizeName(strings.TrimSuffix(filename, path.Ext(filename)))
	if name == "" {
		return "", errors.Newf("invalid example clip filename: %q", filename).
			Category(errors.CategoryValidation).
			Context("operation", "save-example-clip").
			Build()
	}
	relPath := path.Join(ExampleDir, name+clipExtension)
	if err := s.write(relPath, src); err != nil {
		return "", err
	}
	return relPath, nil
}

func (s *DiskStore) write(relPath string, src io.Reader) error {
	f, err := s.root.Create(relPath)
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "create-clip").
			Context("path", relPath).
			Build()
	}

	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		_ = s.root.Remove(relPath)
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "write-clip").
			Context("path", relPath).
			Build()
	}
	if err := f.Close(); err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "close-clip").
			Context("path", relPath).
			Build()
	}
	return nil
}

// Open returns the stored clip for reading. Paths outside the media root are
// rejected by the sandbox.
func (s *DiskStore) Open(relPath string) (fs.File, error) {
	f, err := s.root.Open(relPath)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "open-clip").
			Context("path", relPath).
			Build()
	}
	return f, nil
}

// Remove deletes a stored clip. Missing files are treated as already
// removed.
func (s *DiskStore) Remove(relPath string) error {
	if err := s.root.Remove(relPath); err != nil && !os.IsNotExist(err) {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "remove-clip").
			Context("path", relPath).
			Build()
	}
	return nil
}

// DownloadURL returns the public URL under which a stored clip is served.
func (s *DiskStore) DownloadURL(relPath string) string {
	return URLPrefix + relPath
}

// ParseURL maps a download URL back to the store-relative path. It returns
// the empty string for URLs that do not point into this store, which lets
// callers treat foreign URLs as a no-op during cleanup.
func (s *DiskStore) ParseURL(url string) string {
	if !strings.HasPrefix(url, URLPrefix) {
		return ""
	}
	relPath := path.Clean(strings.TrimPrefix(url, URLPrefix))
	if relPath == "." || strings.HasPrefix(relPath, "..") || path.IsAbs(relPath) {
		return ""
	}
	switch {
	case strings.HasPrefix(relPath, SubmissionDir+"/"), strings.HasPrefix(relPath, ExampleDir+"/"):
		return relPath
	default:
		return ""
	}
}

// Close releases the sandboxed root.
func (s *DiskStore) Close() error {
	return s.root.Close()
}

// sanitizeName flattens a label into a safe filename fragment. Spaces become
// underscores and path-significant characters are stripped.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == ' ':
			b.WriteRune('_')
		case r == '/' || r == '\\' || r == '.' || r == '\x00':
			// drop path-significant characters
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
