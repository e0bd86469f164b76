package storage

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrInvalidKey is returned for keys that were not produced by Save
var ErrInvalidKey = errors.New("invalid storage key")

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// StoredFile describes a file written by Save
type StoredFile struct {
	Key          string
	OriginalName string
	ContentType  string
	Size         int64
}

// Uploads stores uploaded documents on the local file system under
// collision-free keys
type Uploads struct {
	dir string
	log *logrus.Logger
}

// NewUploads creates the upload directory if needed
func NewUploads(dir string, log *logrus.Logger) (*Uploads, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &Uploads{dir: dir, log: log}, nil
}

// Save writes r under a new random key. The original name is only kept as
// metadata.
func (u *Uploads) Save(r io.Reader, originalName, contentType string) (*StoredFile, error) {
	name := SanitizeFilename(originalName)
	key := uuid.NewString() + extension(name, contentType)

	// Write to a temp file first so readers never see a partial document
	tmp, err := os.CreateTemp(u.dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	size, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to write upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(u.dir, key)); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	u.log.WithFields(logrus.Fields{"key": key, "name": name, "size": size}).Debug("Upload stored")
	return &StoredFile{Key: key, OriginalName: name, ContentType: contentType, Size: size}, nil
}

// Open opens a stored file for reading
func (u *Uploads) Open(key string) (io.ReadSeekCloser, error) {
	path, err := u.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	return f, nil
}

// Remove deletes a stored file. Missing files are not an error.
func (u *Uploads) Remove(key string) error {
	path, err := u.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove upload: %w", err)
	}
	return nil
}

func (u *Uploads) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", ErrInvalidKey
	}
	return filepath.Join(u.dir, key), nil
}

// SanitizeFilename strips directories and anything outside [A-Za-z0-9._-]
// from a client supplied file name
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, " ", "_")
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, "._")
	for strings.Contains(name, "..") {
		name = strings.ReplaceAll(name, "..", ".")
	}
	if name == "" {
		return "documento"
	}
	return name
}

func extension(name, contentType string) string {
	if ext := strings.ToLower(filepath.Ext(name)); ext != "" && ext != "." {
		return ext
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
