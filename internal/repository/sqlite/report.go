package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/civicfix/internal/apperror"
	"github.com/sakif/civicfix/internal/geo"
	"github.com/sakif/civicfix/internal/model"
	"github.com/sakif/civicfix/internal/repository"
)

// compile-time check that *DB implements repository.ReportRepository
var _ repository.ReportRepository = (*DB)(nil)

const reportColumns = `id, name, title, body, image, image_url, voice,
	location, coords_lat, coords_lng, comments, likes, shares, created_at`

// Create inserts a new report. The ID (an xid — 20 chars, URL-safe,
// sortable by creation time) and CreatedAt are set here; the caller's struct
// is updated in place.
func (db *DB) Create(ctx context.Context, report *model.Report) error {
	report.ID = xid.New().String()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}

	lat, lng := coordsColumns(report.Coords)

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO reports (`+reportColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ID,
		report.Name,
		report.Title,
		report.Body,
		report.Image,
		report.ImageURL,
		report.Voice,
		report.Location,
		lat,
		lng,
		report.Comments,
		report.Likes,
		report.Shares,
		report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating report: %w", err)
	}

	return nil
}

// GetByID retrieves a single report.
// sql.ErrNoRows translates to the domain's NotFound — the handler turns
// that into a 404.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Report, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)

	report, err := scanReport(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("report", id)
		}
		return nil, fmt.Errorf("sqlite: getting report %s: %w", id, err)
	}

	return report, nil
}

// List returns reports newest-first with LIMIT/OFFSET pagination.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Report, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+reportColumns+` FROM reports
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing reports: %w", err)
	}
	defer rows.Close()

	reports := make([]model.Report, 0, limit)
	for rows.Next() {
		report, err := scanReport(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning report row: %w", err)
		}
		reports = append(reports, *report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating reports: %w", err)
	}

	return reports, nil
}

// Count returns the total number of reports, for the pagination envelope.
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting reports: %w", err)
	}
	return n, nil
}

// Any reports whether the table has at least one row.
func (db *DB) Any(ctx context.Context) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx, `SELECT 1 FROM reports LIMIT 1`).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: checking for reports: %w", err)
	}
	return true, nil
}

// Update rewrites every mutable column. ID and created_at are immutable —
// partial-update semantics are the service layer's concern; by the time a
// report reaches here it is the full desired state.
func (db *DB) Update(ctx context.Context, report *model.Report) error {
	lat, lng := coordsColumns(report.Coords)

	result, err := db.conn.ExecContext(ctx,
		`UPDATE reports
		 SET name = ?, title = ?, body = ?, image = ?, image_url = ?,
		     voice = ?, location = ?, coords_lat = ?, coords_lng = ?,
		     comments = ?, likes = ?, shares = ?
		 WHERE id = ?`,
		report.Name,
		report.Title,
		report.Body,
		report.Image,
		report.ImageURL,
		report.Voice,
		report.Location,
		lat,
		lng,
		report.Comments,
		report.Likes,
		report.Shares,
		report.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating report %s: %w", report.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("report", report.ID)
	}

	return nil
}

// Delete removes a report. No soft-delete, no cascading side effects.
func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting report %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("report", id)
	}

	return nil
}

// scanReport reads one row regardless of whether it came from QueryRow or a
// rows iterator — both expose the same Scan signature.
func scanReport(scan func(dest ...any) error) (*model.Report, error) {
	var (
		r        model.Report
		lat, lng sql.NullFloat64
	)
	err := scan(
		&r.ID,
		&r.Name,
		&r.Title,
		&r.Body,
		&r.Image,
		&r.ImageURL,
		&r.Voice,
		&r.Location,
		&lat,
		&lng,
		&r.Comments,
		&r.Likes,
		&r.Shares,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat.Valid && lng.Valid {
		r.Coords = &geo.Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	return &r, nil
}

// coordsColumns splits an optional point into two nullable columns.
func coordsColumns(p *geo.Point) (lat, lng any) {
	if p == nil {
		return nil, nil
	}
	return p.Lat, p.Lng
}
