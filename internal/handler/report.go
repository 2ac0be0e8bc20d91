package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sakif/civicfix/internal/geo"
	"github.com/sakif/civicfix/internal/media"
	"github.com/sakif/civicfix/internal/service"
)

// ReportHandler manages the report CRUD endpoints plus the demo-data seed.
// It parses the heterogeneous bodies clients send (JSON or multipart, with
// their coordinate aliases) and hands normalized input to the service.
type ReportHandler struct {
	reports *service.ReportService
	logger  *slog.Logger
}

func NewReportHandler(reports *service.ReportService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, logger: logger}
}

// pageResponse is the pagination envelope: total count, absolute
// next/previous page links (null at the edges), and the page of results.
type pageResponse struct {
	Count    int              `json:"count"`
	Next     *string          `json:"next"`
	Previous *string          `json:"previous"`
	Results  []reportResponse `json:"results"`
}

// HandleList returns one page of reports, newest first.
//
// HTTP: GET /reports/?page=N&page_size=M
func (h *ReportHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r.URL.Query(), "page", 1)
	if page < 1 {
		page = 1
	}
	// Clamp page_size with the same rules the service applies, so the
	// offset and the next/previous links agree with what List actually
	// returns. An unclamped oversized value would make the handler think
	// one page covered everything.
	size := queryInt(r.URL.Query(), "page_size", service.DefaultListLimit)
	if size <= 0 {
		size = service.DefaultListLimit
	}
	if size > service.MaxListLimit {
		size = service.MaxListLimit
	}

	reports, total, err := h.reports.List(r.Context(), size, (page-1)*size)
	if err != nil {
		writeError(w, err)
		return
	}

	now := time.Now()
	results := make([]reportResponse, 0, len(reports))
	for i := range reports {
		results = append(results, newReportResponse(r, &reports[i], now))
	}

	resp := pageResponse{
		Count:   total,
		Results: results,
	}
	if page*size < total {
		resp.Next = pageLink(r, page+1, size)
	}
	if page > 1 {
		resp.Previous = pageLink(r, page-1, size)
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleCreate accepts a new report as JSON or multipart (file fields
// "image" and "voice") and responds 201 with the serialized record.
func (h *ReportHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := parseRequestBody(r)
	if err != nil {
		h.logger.Warn("invalid report body", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	in := service.CreateReportInput{
		Coords: geo.ExtractCoords(body.fields),
		Image:  body.file("image"),
		Voice:  body.file("voice"),
	}
	in.Name, _ = body.str("name")
	in.Title, _ = body.str("title")
	in.Body, _ = body.str("body")
	in.Location, _ = body.str("location")
	in.ImageURL, _ = body.str("image_url")
	in.Comments, _ = body.intVal("comments")
	in.Likes, _ = body.intVal("likes")
	in.Shares, _ = body.intVal("shares")

	report, err := h.reports.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, newReportResponse(r, report, time.Now()))
}

// HandleGetByID returns a single report.
//
// HTTP: GET /reports/{id}/
func (h *ReportHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newReportResponse(r, report, time.Now()))
}

// HandleUpdate replaces a report (PUT). Omitted optional fields reset.
func (h *ReportHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// HandlePartialUpdate applies only the provided fields (PATCH).
func (h *ReportHandler) HandlePartialUpdate(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *ReportHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	body, err := parseRequestBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	in := service.UpdateReportInput{
		Name:     body.strPtr("name"),
		Title:    body.strPtr("title"),
		Body:     body.strPtr("body"),
		Location: body.strPtr("location"),
		ImageURL: body.strPtr("image_url"),
		Coords:   geo.ExtractCoords(body.fields),
		Comments: body.intPtr("comments"),
		Likes:    body.intPtr("likes"),
		Shares:   body.intPtr("shares"),
		Image:    body.file("image"),
		Voice:    body.file("voice"),
	}

	report, err := h.reports.Update(r.Context(), r.PathValue("id"), in, partial)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newReportResponse(r, report, time.Now()))
}

// HandleDelete removes a report. 204 on success, 404 if it never existed.
func (h *ReportHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.reports.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleSeed inserts the two demo reports into an empty database.
//
// HTTP: POST /seed/ — the router rejects other methods with 405.
// Calling it again is a no-op that answers "Already seeded".
func (h *ReportHandler) HandleSeed(w http.ResponseWriter, r *http.Request) {
	seeded, err := h.reports.Seed(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	detail := "Already seeded"
	if seeded {
		detail = "Seeded"
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": detail})
}

func queryInt(values url.Values, key string, fallback int) int {
	raw := values.Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// pageLink rebuilds the request URL with a different page number, as an
// absolute URL. When the client sent a page_size, the link carries the
// effective (clamped) size rather than echoing the raw value.
func pageLink(r *http.Request, page, size int) *string {
	u := *r.URL
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	if q.Has("page_size") {
		q.Set("page_size", strconv.Itoa(size))
	}
	u.RawQuery = q.Encode()
	link := media.RequestBase(r) + u.Path
	if u.RawQuery != "" {
		link += "?" + u.RawQuery
	}
	return &link
}
