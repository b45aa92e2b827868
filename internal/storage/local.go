package storage

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"product-catalog/internal/domain"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// UploadsPath is the URL prefix under which local images are served.
const UploadsPath = "/uploads/"

// LocalStore keeps images as files in a directory and links them below BASE_URL.
type LocalStore struct {
	fs      afero.Fs
	dir     string
	baseURL string
}

// NewLocalStore creates the uploads directory when missing.
func NewLocalStore(fs afero.Fs, dir, baseURL string) (*LocalStore, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return &LocalStore{fs: fs, dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStore) Put(ctx context.Context, obj Object) (domain.ImageRef, error) {
	name := uuid.NewString() + extensionFor(obj.ContentType)

	if err := afero.WriteFile(s.fs, filepath.Join(s.dir, name), obj.Data, 0o644); err != nil {
		return domain.ImageRef{}, fmt.Errorf("failed to write image: %w", err)
	}

	return domain.ImageRef{URL: s.baseURL + UploadsPath + name}, nil
}

// Delete removes the file behind a local image URL. URLs that do not point
// into the uploads path belong to some other host and are ignored, as are
// files that are already gone.
func (s *LocalStore) Delete(ctx context.Context, ref domain.ImageRef) error {
	name, ok := fileName(ref.URL)
	if !ok {
		return nil
	}

	err := s.fs.Remove(filepath.Join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove image %s: %w", name, err)
	}
	return nil
}

// Handler serves the stored files. Mount it under UploadsPath.
func (s *LocalStore) Handler() http.Handler {
	return http.StripPrefix(UploadsPath, http.FileServer(afero.NewHttpFs(s.fs).Dir(s.dir)))
}

func fileName(url string) (string, bool) {
	idx := strings.Index(url, UploadsPath)
	if idx < 0 {
		return "", false
	}
	name := url[idx+len(UploadsPath):]
	if name == "" || name != path.Base(name) || name == ".." {
		return "", false
	}
	return name, true
}
