// Package service contains the business logic layer: validation and
// orchestration, with no knowledge of HTTP.
//
// Handlers parse requests and write responses; services enforce the rules
// (what makes a report valid, what seeding means); repositories talk to the
// database. Each layer receives interfaces or primitives from the one below,
// so every layer is testable on its own — services run against mock
// repositories, repositories against in-memory SQLite.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"strings"

	"github.com/sakif/civicfix/internal/apperror"
	"github.com/sakif/civicfix/internal/geo"
	"github.com/sakif/civicfix/internal/media"
	"github.com/sakif/civicfix/internal/model"
	"github.com/sakif/civicfix/internal/repository"
)

const (
	MaxNameLength     = 120
	MaxTitleLength    = 255
	MaxLocationLength = 255
	DefaultListLimit  = 20
	MaxListLimit      = 100
)

// ReportService handles business logic for civic reports.
type ReportService struct {
	repo   repository.ReportRepository
	media  *media.Store
	logger *slog.Logger
}

func NewReportService(repo repository.ReportRepository, mediaStore *media.Store, logger *slog.Logger) *ReportService {
	return &ReportService{
		repo:   repo,
		media:  mediaStore,
		logger: logger,
	}
}

// CreateReportInput carries the normalized fields of a create request.
// Coords is nil when the client supplied no usable coordinates; Image and
// Voice are optional uploads.
type CreateReportInput struct {
	Name     string
	Title    string
	Body     string
	Location string
	ImageURL string
	Coords   *geo.Point
	Comments int
	Likes    int
	Shares   int
	Image    *multipart.FileHeader
	Voice    *multipart.FileHeader
}

// Create validates and persists a new report.
//
// A report needs a non-empty body OR a voice note — a photo alone is not a
// report. Uploads are attached in a second save after the base record is
// persisted; a crash between the two saves leaves a record without its file
// reference, a window we accept and pin down in tests.
func (s *ReportService) Create(ctx context.Context, in CreateReportInput) (*model.Report, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Title = strings.TrimSpace(in.Title)

	if in.Name == "" {
		return nil, apperror.ValidationFailed("name", "reporter name is required")
	}
	if len(in.Name) > MaxNameLength {
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("name must be %d characters or less", MaxNameLength))
	}
	if in.Title == "" {
		return nil, apperror.ValidationFailed("title", "title is required")
	}
	if len(in.Title) > MaxTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	if len(in.Location) > MaxLocationLength {
		return nil, apperror.ValidationFailed("location",
			fmt.Sprintf("location must be %d characters or less", MaxLocationLength))
	}
	if strings.TrimSpace(in.Body) == "" && in.Voice == nil {
		return nil, apperror.ValidationFailed("body", "report must include a body or a voice note")
	}
	if in.Comments < 0 || in.Likes < 0 || in.Shares < 0 {
		return nil, apperror.ValidationFailed("counters", "counters must not be negative")
	}

	report := &model.Report{
		Name:     in.Name,
		Title:    in.Title,
		Body:     in.Body,
		ImageURL: in.ImageURL,
		Location: in.Location,
		Coords:   in.Coords,
		Comments: in.Comments,
		Likes:    in.Likes,
		Shares:   in.Shares,
	}

	if err := s.repo.Create(ctx, report); err != nil {
		s.logger.Error("failed to create report",
			slog.String("title", in.Title),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating report: %w", err)
	}

	// Second step: store uploads and attach their paths. Not atomic with
	// the insert above.
	if in.Image != nil || in.Voice != nil {
		if err := s.attachFiles(ctx, report, in.Image, in.Voice); err != nil {
			return nil, err
		}
	}

	s.logger.Info("report created",
		slog.String("id", report.ID),
		slog.String("title", report.Title),
	)

	return report, nil
}

// UpdateReportInput carries the fields of an update request. Nil means "not
// provided" — significant for partial updates, where absent fields keep
// their stored values.
type UpdateReportInput struct {
	Name     *string
	Title    *string
	Body     *string
	Location *string
	ImageURL *string
	Coords   *geo.Point
	Comments *int
	Likes    *int
	Shares   *int
	Image    *multipart.FileHeader
	Voice    *multipart.FileHeader
}

// Update applies a full (PUT) or partial (PATCH) update.
//
// Full updates require name and title and reset the optional text fields
// that were omitted; partial updates only touch what was provided. Stored
// files persist until explicitly replaced by a new upload. Either way the
// resulting record must still satisfy the body-or-voice rule.
func (s *ReportService) Update(ctx context.Context, id string, in UpdateReportInput, partial bool) (*model.Report, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "report ID is required")
	}

	report, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !partial {
		if in.Name == nil {
			return nil, apperror.ValidationFailed("name", "reporter name is required")
		}
		if in.Title == nil {
			return nil, apperror.ValidationFailed("title", "title is required")
		}
		// Omitted optional fields reset to their defaults on a full update.
		report.Body = ""
		report.Location = ""
		report.ImageURL = ""
		report.Coords = nil
		report.Comments = 0
		report.Likes = 0
		report.Shares = 0
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperror.ValidationFailed("name", "reporter name is required")
		}
		if len(name) > MaxNameLength {
			return nil, apperror.ValidationFailed("name",
				fmt.Sprintf("name must be %d characters or less", MaxNameLength))
		}
		report.Name = name
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, apperror.ValidationFailed("title", "title is required")
		}
		if len(title) > MaxTitleLength {
			return nil, apperror.ValidationFailed("title",
				fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
		}
		report.Title = title
	}
	if in.Body != nil {
		report.Body = *in.Body
	}
	if in.Location != nil {
		if len(*in.Location) > MaxLocationLength {
			return nil, apperror.ValidationFailed("location",
				fmt.Sprintf("location must be %d characters or less", MaxLocationLength))
		}
		report.Location = *in.Location
	}
	if in.ImageURL != nil {
		report.ImageURL = *in.ImageURL
	}
	if in.Coords != nil {
		report.Coords = in.Coords
	}
	for field, pair := range map[string]struct {
		val *int
		dst *int
	}{
		"comments": {in.Comments, &report.Comments},
		"likes":    {in.Likes, &report.Likes},
		"shares":   {in.Shares, &report.Shares},
	} {
		if pair.val == nil {
			continue
		}
		if *pair.val < 0 {
			return nil, apperror.ValidationFailed(field, field+" must not be negative")
		}
		*pair.dst = *pair.val
	}

	if strings.TrimSpace(report.Body) == "" && report.Voice == "" && in.Voice == nil {
		return nil, apperror.ValidationFailed("body", "report must include a body or a voice note")
	}

	if err := s.repo.Update(ctx, report); err != nil {
		s.logger.Error("failed to update report",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating report: %w", err)
	}

	// File replacement is a follow-up save, same as on create.
	if in.Image != nil || in.Voice != nil {
		if err := s.attachFiles(ctx, report, in.Image, in.Voice); err != nil {
			return nil, err
		}
	}

	s.logger.Info("report updated", slog.String("id", report.ID))

	return report, nil
}

// attachFiles stores the uploads and saves their paths onto the record.
func (s *ReportService) attachFiles(ctx context.Context, report *model.Report, image, voice *multipart.FileHeader) error {
	if image != nil {
		path, err := s.media.Save("reports", image)
		if err != nil {
			s.logger.Error("failed to store report image",
				slog.String("id", report.ID),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("storing report image: %w", err)
		}
		report.Image = path
	}
	if voice != nil {
		path, err := s.media.Save("voice", voice)
		if err != nil {
			s.logger.Error("failed to store report voice note",
				slog.String("id", report.ID),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("storing report voice note: %w", err)
		}
		report.Voice = path
	}
	if err := s.repo.Update(ctx, report); err != nil {
		return fmt.Errorf("attaching files to report %s: %w", report.ID, err)
	}
	return nil
}

// GetByID retrieves a report; NotFound propagates for the handler's 404.
func (s *ReportService) GetByID(ctx context.Context, id string) (*model.Report, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "report ID is required")
	}
	return s.repo.GetByID(ctx, id)
}

// List returns one page of reports (newest first) plus the total count for
// the pagination envelope.
func (s *ReportService) List(ctx context.Context, limit, offset int) ([]model.Report, int, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	reports, err := s.repo.List(ctx, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.logger.Error("failed to list reports", slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("listing reports: %w", err)
	}

	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("counting reports: %w", err)
	}

	return reports, total, nil
}

// Delete removes a report permanently.
func (s *ReportService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "report ID is required")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("report deleted", slog.String("id", id))
	return nil
}

// Seed inserts two demo reports for quick testing, but only into an empty
// table. Returns false when reports already exist — the caller reports
// "already seeded" and nothing is written.
func (s *ReportService) Seed(ctx context.Context) (bool, error) {
	exists, err := s.repo.Any(ctx)
	if err != nil {
		return false, fmt.Errorf("checking for existing reports: %w", err)
	}
	if exists {
		return false, nil
	}

	demos := []model.Report{
		{
			Name:     "Alex Chen",
			Title:    "Pothole on Main Street, near City Hall",
			Body:     "A large and dangerous pothole has developed on Main Street...",
			ImageURL: "https://images.unsplash.com/photo-1519682337058-a94d519337bc?q=80&w=1600&auto=format&fit=crop",
			Comments: 5,
			Likes:    28,
			Shares:   3,
		},
		{
			Name:     "Maria Rodriguez",
			Title:    "Broken street light on Oak Avenue",
			Body:     "The street light on Oak Avenue has been out for three nights...",
			ImageURL: "https://images.unsplash.com/photo-1603052875138-981d558d4f25?q=80&w=1600&auto=format&fit=crop",
			Comments: 5,
			Likes:    15,
			Shares:   1,
		},
	}
	for i := range demos {
		if err := s.repo.Create(ctx, &demos[i]); err != nil {
			return false, fmt.Errorf("seeding reports: %w", err)
		}
	}

	s.logger.Info("demo reports seeded", slog.Int("count", len(demos)))
	return true, nil
}
