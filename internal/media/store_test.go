package media

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// uploadHeader fabricates a *multipart.FileHeader the way the handlers
// receive one: build a real multipart body and let net/http parse it.
func uploadHeader(t *testing.T, fieldName, fileName, content string) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(fieldName, fileName)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("writing part: %v", err)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		t.Fatalf("ParseMultipartForm: %v", err)
	}
	return req.MultipartForm.File[fieldName][0]
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

// =========================================================================
// SAVE TESTS
// =========================================================================

func TestSave_WritesFileAndReturnsRelativePath(t *testing.T) {
	store := newTestStore(t)
	fh := uploadHeader(t, "image", "pothole.jpg", "fake image bytes")

	rel, err := store.Save("reports", fh)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if !strings.HasPrefix(rel, "reports/") {
		t.Errorf("Save() path = %q, want reports/ prefix", rel)
	}
	if !strings.HasSuffix(rel, ".jpg") {
		t.Errorf("Save() path = %q, want .jpg suffix", rel)
	}

	// The path is root-relative; the bytes must be on disk under the root.
	data, err := os.ReadFile(filepath.Join(store.Root(), rel))
	if err != nil {
		t.Fatalf("reading stored file: %v", err)
	}
	if string(data) != "fake image bytes" {
		t.Errorf("stored content = %q, want %q", data, "fake image bytes")
	}
}

func TestSave_IgnoresClientFilename(t *testing.T) {
	store := newTestStore(t)
	fh := uploadHeader(t, "image", "../../etc/passwd", "nope")

	rel, err := store.Save("reports", fh)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// The stored name is generated; the client's path must not appear.
	if strings.Contains(rel, "..") || strings.Contains(rel, "passwd") {
		t.Errorf("Save() path = %q leaks the client filename", rel)
	}
}

func TestSave_UniqueNamesForSameFilename(t *testing.T) {
	store := newTestStore(t)

	rel1, err := store.Save("reports", uploadHeader(t, "f", "same.jpg", "one"))
	if err != nil {
		t.Fatalf("Save() #1 error = %v", err)
	}
	rel2, err := store.Save("reports", uploadHeader(t, "f", "same.jpg", "two"))
	if err != nil {
		t.Fatalf("Save() #2 error = %v", err)
	}

	if rel1 == rel2 {
		t.Errorf("Save() reused name %q for two uploads", rel1)
	}
}

// =========================================================================
// EXTENSION TESTS
// =========================================================================

func TestSafeExt(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"photo.JPG", ".jpg"},
		{"note.m4a", ".m4a"},
		{"noextension", ""},
		{"weird.reallylongextension", ""},
		{"dir/photo.png", ".png"},
	}

	for _, tt := range tests {
		if got := safeExt(tt.filename); got != tt.want {
			t.Errorf("safeExt(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

// Guard against the helper itself rotting.
func TestUploadHeaderHelper(t *testing.T) {
	fh := uploadHeader(t, "image", "a.jpg", "content")
	f, err := fh.Open()
	if err != nil {
		t.Fatalf("opening header: %v", err)
	}
	defer f.Close()
	data, _ := io.ReadAll(f)
	if string(data) != "content" {
		t.Errorf("helper content = %q", data)
	}
}
