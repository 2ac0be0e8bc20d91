package media

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/xid"
)

// Store writes uploaded files to a directory on local disk. The returned
// paths are relative to the media root (e.g. "reports/cv37....jpg") — that
// relative form is what gets persisted, so the media root can move without a
// data migration.
//
// Swapping local disk for a cloud bucket means replacing this type; nothing
// above it knows where the bytes live.
type Store struct {
	root string
}

// NewStore creates the media root directory if needed.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("media: creating root %s: %w", root, err)
	}
	return &Store{root: root}, nil
}

// Root returns the media root directory, for wiring the file server.
func (s *Store) Root() string {
	return s.root
}

// Save copies an uploaded file into subdir under the media root and returns
// its root-relative path. The stored name is a fresh xid plus the upload's
// original extension — client-supplied filenames never touch the filesystem.
func (s *Store) Save(subdir string, fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("media: opening upload %s: %w", fh.Filename, err)
	}
	defer src.Close()

	name := xid.New().String() + safeExt(fh.Filename)
	rel := path.Join(subdir, name)

	dir := filepath.Join(s.root, subdir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("media: creating dir %s: %w", dir, err)
	}

	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("media: creating file %s: %w", rel, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("media: writing file %s: %w", rel, err)
	}

	return rel, nil
}

// safeExt extracts a usable extension from the client filename.
// Anything suspicious collapses to no extension rather than an error.
func safeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) > 10 || strings.ContainsAny(ext, "/\\") {
		return ""
	}
	return ext
}
