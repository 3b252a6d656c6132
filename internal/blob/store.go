// Package blob implements the upload collaborator of the chat relay: it
// accepts a file, sanitizes its name, stores it under a server-controlled
// directory, and hands back the URL clients embed in message content. The
// relay core never inspects file contents.
package blob

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// URLPrefix is the public path uploaded files are served under.
const URLPrefix = "/uploads/"

// ErrTooLarge is returned when an upload exceeds the store's size limit.
var ErrTooLarge = errors.New("file exceeds maximum upload size")

// Store saves uploaded files on disk. Stored names carry a random prefix so
// concurrent uploads of the same filename never clobber each other.
type Store struct {
	dir     string
	maxSize int64
}

// NewStore creates a store rooted at dir. maxSize caps a single upload in
// bytes; zero or negative disables the cap.
func NewStore(dir string, maxSize int64) *Store {
	return &Store{dir: dir, maxSize: maxSize}
}

// Save writes the upload to disk under a sanitized, uniquely prefixed name
// and returns the URL path it will be served from.
func (s *Store) Save(filename string, src io.Reader) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating upload directory: %w", err)
	}

	stored := uuid.NewString()[:8] + "_" + SanitizeFilename(filename)
	target := filepath.Join(s.dir, stored)

	dst, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}

	reader := src
	if s.maxSize > 0 {
		reader = io.LimitReader(src, s.maxSize+1)
	}

	written, err := io.Copy(dst, reader)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err == nil && s.maxSize > 0 && written > s.maxSize {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(target)
		if errors.Is(err, ErrTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("writing upload file: %w", err)
	}

	return URLPrefix + stored, nil
}

// FilePath resolves a stored name back to its on-disk path for serving. Any
// path components in the request are stripped first, so a crafted name cannot
// escape the upload directory.
func (s *Store) FilePath(name string) string {
	return filepath.Join(s.dir, SanitizeFilename(name))
}

// SanitizeFilename reduces a client-supplied filename to a safe flat name:
// directory components are dropped and anything outside letters, digits, dot,
// underscore, and dash becomes an underscore. Empty or dot-only names fall
// back to "file".
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	cleaned := b.String()
	if strings.Trim(cleaned, "._-") == "" {
		return "file"
	}
	return cleaned
}
