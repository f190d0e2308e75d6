// Package storage keeps enrolled face images on the local filesystem,
// one directory per identity.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charukad/traceiq/internal/event"
	"github.com/google/uuid"
	"github.com/h2non/filetype"
)

var log = event.Log

// DefaultExtension is used when neither the file name nor the content identify an allowed type.
const DefaultExtension = ".jpg"

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// Store saves and deletes face image assets.
type Store interface {
	// Save writes data as <identity>/<face><ext> and returns the locator.
	Save(identityID, faceID uuid.UUID, data []byte, extHint string) (string, error)
	// Delete removes the asset behind locator. A missing asset is not an error.
	Delete(locator string) error
}

// LocalStore implements Store on a base directory.
type LocalStore struct {
	basePath string
}

// NewLocalStore creates the base directory if needed.
func NewLocalStore(basePath string) (*LocalStore, error) {
	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base storage path '%s': %w", basePath, err)
	}

	if err := os.MkdirAll(absBasePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory '%s': %w", absBasePath, err)
	}

	log.Debugf("storage: using %s", absBasePath)
	return &LocalStore{basePath: absBasePath}, nil
}

// Extension picks the file extension for an upload. The hint may be a file name or an
// extension; when it is not an allowed image type the content is sniffed instead.
func Extension(extHint string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(extHint))
	if ext == "" && strings.HasPrefix(extHint, ".") {
		ext = strings.ToLower(extHint)
	}
	if allowedExtensions[ext] {
		return ext
	}

	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		if sniffed := "." + kind.Extension; allowedExtensions[sniffed] {
			return sniffed
		}
	}
	return DefaultExtension
}

// resolve maps a locator to an absolute path inside the base directory.
func (s *LocalStore) resolve(locator string) (string, error) {
	if locator == "" {
		return "", errors.New("empty locator")
	}
	full := filepath.Join(s.basePath, filepath.FromSlash(locator))
	if full != s.basePath && !strings.HasPrefix(full, s.basePath+string(filepath.Separator)) {
		return "", fmt.Errorf("locator '%s' resolves outside storage", locator)
	}
	return full, nil
}

// Save writes the image to a temp file and renames it into place.
func (s *LocalStore) Save(identityID, faceID uuid.UUID, data []byte, extHint string) (string, error) {
	locator := identityID.String() + "/" + faceID.String() + Extension(extHint, data)

	full, err := s.resolve(locator)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(full)

	tmp, err := createTemp(dir)
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close image: %w", err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to move image into place: %w", err)
	}

	return locator, nil
}

// createTemp creates a temp file in dir, recreating dir once if a concurrent
// Delete removed it in between.
func createTemp(dir string) (*os.File, error) {
	for attempt := 0; ; attempt++ {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory '%s': %w", dir, err)
		}
		tmp, err := os.CreateTemp(dir, ".upload-*")
		if err == nil {
			return tmp, nil
		}
		if attempt > 0 || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to create temp file: %w", err)
		}
	}
}

// Delete removes the asset and, if it was the last one, its identity directory.
func (s *LocalStore) Delete(locator string) error {
	full, err := s.resolve(locator)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete '%s': %w", locator, err)
	}

	dir := filepath.Dir(full)
	if dir == s.basePath {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read '%s': %w", dir, err)
	}
	if len(entries) == 0 {
		// A concurrent Save may have refilled the directory; Remove then fails and that is fine.
		if err := os.Remove(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Debugf("storage: keeping %s: %v", dir, err)
		}
	}
	return nil
}

// Path returns the absolute filesystem path of a locator.
func (s *LocalStore) Path(locator string) (string, error) {
	return s.resolve(locator)
}
