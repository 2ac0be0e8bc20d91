package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sakif/civicfix/internal/apperror"
	"github.com/sakif/civicfix/internal/geo"
	"github.com/sakif/civicfix/internal/media"
	"github.com/sakif/civicfix/internal/model"
	"github.com/sakif/civicfix/internal/repository"
)

// =========================================================================
// MOCK REPOSITORY
// =========================================================================
//
// An in-memory implementation of repository.ReportRepository. The service
// doesn't know whether it talks to this or to SQLite — that's the point of
// the interface. The calls slice records the operation sequence so tests can
// assert on the create-then-attach two-step.

type mockReportRepo struct {
	reports map[string]*model.Report
	order   []string // insertion order, newest appended last
	calls   []string // operation log: "create", "update", ...
	nextID  int
	// set to a non-nil error to simulate a database failure
	createErr error
	updateErr error
}

func newMockRepo() *mockReportRepo {
	return &mockReportRepo{reports: make(map[string]*model.Report)}
}

func (m *mockReportRepo) Create(_ context.Context, report *model.Report) error {
	m.calls = append(m.calls, "create")
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	report.ID = fmt.Sprintf("mock-%d", m.nextID)
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	stored := *report
	m.reports[report.ID] = &stored
	m.order = append(m.order, report.ID)
	return nil
}

func (m *mockReportRepo) GetByID(_ context.Context, id string) (*model.Report, error) {
	m.calls = append(m.calls, "get")
	report, ok := m.reports[id]
	if !ok {
		return nil, apperror.NotFound("report", id)
	}
	result := *report
	return &result, nil
}

func (m *mockReportRepo) List(_ context.Context, opts repository.ListOptions) ([]model.Report, error) {
	m.calls = append(m.calls, "list")
	// Newest first, like the real repository.
	result := make([]model.Report, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		result = append(result, *m.reports[m.order[i]])
	}
	if opts.Offset >= len(result) {
		return []model.Report{}, nil
	}
	result = result[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(result) {
		result = result[:opts.Limit]
	}
	return result, nil
}

func (m *mockReportRepo) Count(_ context.Context) (int, error) {
	return len(m.reports), nil
}

func (m *mockReportRepo) Update(_ context.Context, report *model.Report) error {
	m.calls = append(m.calls, "update")
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.reports[report.ID]; !ok {
		return apperror.NotFound("report", report.ID)
	}
	stored := *report
	m.reports[report.ID] = &stored
	return nil
}

func (m *mockReportRepo) Delete(_ context.Context, id string) error {
	m.calls = append(m.calls, "delete")
	if _, ok := m.reports[id]; !ok {
		return apperror.NotFound("report", id)
	}
	delete(m.reports, id)
	return nil
}

func (m *mockReportRepo) Any(_ context.Context) (bool, error) {
	return len(m.reports) > 0, nil
}

// =========================================================================
// HELPERS
// =========================================================================

func newTestReportService(t *testing.T) (*ReportService, *mockReportRepo) {
	t.Helper()
	repo := newMockRepo()
	store, err := media.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewReportService(repo, store, logger), repo
}

// uploadHeader fabricates a *multipart.FileHeader by building a real
// multipart body and letting net/http parse it.
func uploadHeader(t *testing.T, fileName, content string) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	part.Write([]byte(content))
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		t.Fatalf("ParseMultipartForm: %v", err)
	}
	return req.MultipartForm.File["file"][0]
}

func validCreateInput() CreateReportInput {
	return CreateReportInput{
		Name:  "Alex Chen",
		Title: "Pothole on Main Street",
		Body:  "A large pothole has developed",
	}
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestCreate_Success(t *testing.T) {
	svc, _ := newTestReportService(t)

	report, err := svc.Create(context.Background(), validCreateInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if report.ID == "" {
		t.Error("expected report to have an ID")
	}
	if report.Name != "Alex Chen" {
		t.Errorf("Name = %q", report.Name)
	}
}

func TestCreate_TrimsNameAndTitle(t *testing.T) {
	svc, _ := newTestReportService(t)

	in := validCreateInput()
	in.Name = "  Alex Chen  "
	in.Title = "  Pothole  "

	report, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if report.Name != "Alex Chen" || report.Title != "Pothole" {
		t.Errorf("Name/Title = %q/%q, want trimmed", report.Name, report.Title)
	}
}

func TestCreate_ValidationFailures(t *testing.T) {
	svc, _ := newTestReportService(t)

	tests := []struct {
		name   string
		mutate func(*CreateReportInput)
	}{
		{"empty name", func(in *CreateReportInput) { in.Name = "" }},
		{"name too long", func(in *CreateReportInput) { in.Name = strings.Repeat("a", MaxNameLength+1) }},
		{"empty title", func(in *CreateReportInput) { in.Title = "" }},
		{"title too long", func(in *CreateReportInput) { in.Title = strings.Repeat("a", MaxTitleLength+1) }},
		{"location too long", func(in *CreateReportInput) { in.Location = strings.Repeat("a", MaxLocationLength+1) }},
		{"negative likes", func(in *CreateReportInput) { in.Likes = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validCreateInput()
			tt.mutate(&in)

			_, err := svc.Create(context.Background(), in)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Create() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestCreate_BodyOrVoiceRule(t *testing.T) {
	svc, _ := newTestReportService(t)

	// No body, no voice: rejected.
	in := validCreateInput()
	in.Body = "   "
	_, err := svc.Create(context.Background(), in)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("Create() without body or voice: error = %v, want ErrValidation", err)
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Field != "body" {
		t.Errorf("error field = %q, want body", appErr.Field)
	}

	// No body but a voice note: accepted.
	in = validCreateInput()
	in.Body = ""
	in.Voice = uploadHeader(t, "note.m4a", "audio bytes")
	report, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create() with voice note: error = %v", err)
	}
	if report.Voice == "" {
		t.Error("Create() did not attach the voice note path")
	}
}

func TestCreate_AttachesFilesAfterBaseSave(t *testing.T) {
	svc, repo := newTestReportService(t)

	in := validCreateInput()
	in.Image = uploadHeader(t, "pothole.jpg", "image bytes")

	report, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// The upload lands in a second save: insert first, then an update with
	// the stored path attached.
	if want := []string{"create", "update"}; fmt.Sprint(repo.calls) != fmt.Sprint(want) {
		t.Errorf("repo calls = %v, want %v", repo.calls, want)
	}
	if report.Image == "" || !strings.HasPrefix(report.Image, "reports/") {
		t.Errorf("Image = %q, want reports/ path", report.Image)
	}

	stored := repo.reports[report.ID]
	if stored.Image != report.Image {
		t.Errorf("stored Image = %q, want %q", stored.Image, report.Image)
	}
}

func TestCreate_RepositoryError(t *testing.T) {
	svc, repo := newTestReportService(t)
	repo.createErr = errors.New("database is on fire")

	_, err := svc.Create(context.Background(), validCreateInput())
	if err == nil {
		t.Fatal("Create() should propagate repository errors")
	}
}

// =========================================================================
// UPDATE TESTS
// =========================================================================

func TestUpdate_FullResetsOmittedFields(t *testing.T) {
	svc, _ := newTestReportService(t)

	in := validCreateInput()
	in.Location = "Main Street"
	in.Coords = &geo.Point{Lat: 1, Lng: 2}
	in.Likes = 7
	created, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	name, title, body := "Alex Chen", "New title", "new body"
	updated, err := svc.Update(context.Background(), created.ID, UpdateReportInput{
		Name:  &name,
		Title: &title,
		Body:  &body,
	}, false)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	// PUT semantics: what wasn't sent resets.
	if updated.Location != "" || updated.Coords != nil || updated.Likes != 0 {
		t.Errorf("full update kept omitted fields: Location=%q Coords=%v Likes=%d",
			updated.Location, updated.Coords, updated.Likes)
	}
	if updated.Title != "New title" {
		t.Errorf("Title = %q", updated.Title)
	}
}

func TestUpdate_FullRequiresNameAndTitle(t *testing.T) {
	svc, _ := newTestReportService(t)
	created, _ := svc.Create(context.Background(), validCreateInput())

	body := "new body"
	_, err := svc.Update(context.Background(), created.ID, UpdateReportInput{Body: &body}, false)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("full Update() without name: error = %v, want ErrValidation", err)
	}
}

func TestUpdate_PartialTouchesOnlyProvidedFields(t *testing.T) {
	svc, _ := newTestReportService(t)

	in := validCreateInput()
	in.Location = "Main Street"
	in.Likes = 7
	created, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	likes := 8
	updated, err := svc.Update(context.Background(), created.ID, UpdateReportInput{Likes: &likes}, true)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if updated.Likes != 8 {
		t.Errorf("Likes = %d, want 8", updated.Likes)
	}
	// Everything else survives.
	if updated.Location != "Main Street" || updated.Title != created.Title {
		t.Errorf("partial update clobbered other fields: Location=%q Title=%q",
			updated.Location, updated.Title)
	}
}

func TestUpdate_PartialCannotRemoveLastContent(t *testing.T) {
	svc, _ := newTestReportService(t)
	created, _ := svc.Create(context.Background(), validCreateInput())

	// Blanking the body with no voice note would leave a content-free report.
	empty := ""
	_, err := svc.Update(context.Background(), created.ID, UpdateReportInput{Body: &empty}, true)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Update() error = %v, want ErrValidation", err)
	}
}

func TestUpdate_PartialKeepsStoredVoiceWhenBodyCleared(t *testing.T) {
	svc, _ := newTestReportService(t)

	in := validCreateInput()
	in.Voice = uploadHeader(t, "note.m4a", "audio")
	created, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	// A stored voice note satisfies the content rule even with an empty body.
	empty := ""
	updated, err := svc.Update(context.Background(), created.ID, UpdateReportInput{Body: &empty}, true)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Body != "" || updated.Voice == "" {
		t.Errorf("Body=%q Voice=%q", updated.Body, updated.Voice)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	svc, _ := newTestReportService(t)

	name, title := "n", "t"
	_, err := svc.Update(context.Background(), "nonexistent", UpdateReportInput{Name: &name, Title: &title}, false)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// GET / LIST / DELETE TESTS
// =========================================================================

func TestGetByID_EmptyID(t *testing.T) {
	svc, _ := newTestReportService(t)

	_, err := svc.GetByID(context.Background(), "  ")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("GetByID() error = %v, want ErrValidation", err)
	}
}

func TestList_ReturnsTotalCount(t *testing.T) {
	svc, _ := newTestReportService(t)

	for i := 0; i < 5; i++ {
		if _, err := svc.Create(context.Background(), validCreateInput()); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}

	reports, total, err := svc.List(context.Background(), 2, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(reports) != 2 {
		t.Errorf("List() returned %d reports, want 2", len(reports))
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
}

func TestList_ClampsLimit(t *testing.T) {
	svc, _ := newTestReportService(t)

	// Zero/negative fall back to the default; absurd values cap out.
	if _, _, err := svc.List(context.Background(), 0, -3); err != nil {
		t.Fatalf("List() with zero limit: %v", err)
	}
	if _, _, err := svc.List(context.Background(), 10_000, 0); err != nil {
		t.Fatalf("List() with huge limit: %v", err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	svc, _ := newTestReportService(t)

	err := svc.Delete(context.Background(), "nonexistent")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// SEED TESTS
// =========================================================================

func TestSeed_EmptyTable(t *testing.T) {
	svc, repo := newTestReportService(t)

	seeded, err := svc.Seed(context.Background())
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if !seeded {
		t.Fatal("Seed() on empty table should report seeded = true")
	}
	if len(repo.reports) != 2 {
		t.Errorf("Seed() created %d reports, want 2", len(repo.reports))
	}
}

func TestSeed_IsIdempotent(t *testing.T) {
	svc, repo := newTestReportService(t)

	if _, err := svc.Seed(context.Background()); err != nil {
		t.Fatalf("first Seed(): %v", err)
	}
	seeded, err := svc.Seed(context.Background())
	if err != nil {
		t.Fatalf("second Seed(): %v", err)
	}

	if seeded {
		t.Error("second Seed() should report seeded = false")
	}
	if len(repo.reports) != 2 {
		t.Errorf("second Seed() changed the table: %d reports", len(repo.reports))
	}
}

func TestSeed_SkipsNonEmptyTable(t *testing.T) {
	svc, repo := newTestReportService(t)

	if _, err := svc.Create(context.Background(), validCreateInput()); err != nil {
		t.Fatalf("setup: %v", err)
	}

	seeded, err := svc.Seed(context.Background())
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if seeded {
		t.Error("Seed() with existing reports should report seeded = false")
	}
	if len(repo.reports) != 1 {
		t.Errorf("Seed() touched a non-empty table: %d reports", len(repo.reports))
	}
}
